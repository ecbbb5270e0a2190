package database

import (
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var tourGraphColumns = []string{
	"tour_id", "start_time", "end_time", "fare", "cancelled", "message", "direct_duration",
	"company_id", "company_name", "company_lat", "company_lng",
	"vehicle_id", "license_plate",
	"request_id", "passengers", "wheelchairs", "bikes", "luggage",
	"customer_id", "ticket_code", "ticket_checked", "request_cancelled",
	"event_id", "is_pickup", "lat", "lng",
	"scheduled_time_start", "scheduled_time_end", "communicated_time",
	"prev_leg_duration", "next_leg_duration",
	"event_group", "address", "event_cancelled",
	"customer_name", "customer_phone",
}

type driverValue = driver.Value

// eventRow builds one fully populated join row for the given tour and event
func eventRow(tourID, requestID, eventID int64, isPickup bool, start, end int64) []driverValue {
	return []driverValue{
		tourID, int64(1700000000000), int64(1700007200000), int64(2500), false, nil, int64(900000),
		int64(7), "Prima Transit GmbH", 48.137, 11.575,
		int64(42), "M-PT 1042",
		requestID, int64(2), int64(0), int64(0), int64(1),
		"c0ffee", "5f4dcc3b5aa765d61d8327deb882cf99", true, false,
		eventID, isPickup, 48.2, 11.6,
		start, end, nil,
		int64(660000), int64(660000),
		nil, "Sendlinger Str. 1", false,
		"Maria Huber", "+49 151 2345678",
	}
}

func addRow(rows *sqlmock.Rows, values []driverValue) *sqlmock.Rows {
	return rows.AddRow(values...)
}

func TestFetchTourGraph(t *testing.T) {
	t.Run("Reconstructs Nested Tours", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		repo := NewTourRepository(&mockDatabase{db: db})

		rows := sqlmock.NewRows(tourGraphColumns)
		// Tour 1 with one request covering pickup and dropoff
		addRow(rows, eventRow(1, 10, 100, true, 1000, 2000))
		addRow(rows, eventRow(1, 10, 101, false, 3000, 4000))
		// Tour 2 with a single event
		addRow(rows, eventRow(2, 20, 200, true, 5000, 6000))

		mock.ExpectQuery(`SELECT(.+)FROM tour t`).WillReturnRows(rows)

		tours, err := repo.FetchTourGraph()
		require.NoError(t, err)
		require.Len(t, tours, 2)

		assert.Equal(t, int64(1), tours[0].ID)
		require.Len(t, tours[0].Events, 2)
		assert.Equal(t, int64(100), tours[0].Events[0].ID)
		assert.Equal(t, int64(10), tours[0].Events[0].RequestID)
		assert.True(t, tours[0].Events[0].IsPickup)
		assert.False(t, tours[0].Events[1].IsPickup)
		assert.Equal(t, int64(660000), tours[0].Events[0].NextLegDuration)

		assert.Equal(t, int64(2), tours[1].ID)
		require.Len(t, tours[1].Events, 1)

		require.NotNil(t, tours[0].VehicleID)
		assert.Equal(t, int64(42), *tours[0].VehicleID)
		require.NotNil(t, tours[0].CompanyLat)
		assert.InDelta(t, 48.137, *tours[0].CompanyLat, 0.0001)
		require.NotNil(t, tours[0].StartTime)
		assert.Equal(t, time.UnixMilli(1700000000000).UTC(), *tours[0].StartTime)

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Tour Without Events Keeps Empty List", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		repo := NewTourRepository(&mockDatabase{db: db})

		rows := sqlmock.NewRows(tourGraphColumns)
		// LEFT JOIN row for a tour with no request or event
		addRow(rows, []driverValue{
			int64(3), nil, nil, nil, true, nil, nil,
			nil, nil, nil, nil,
			nil, nil,
			nil, nil, nil, nil, nil,
			nil, nil, nil, nil,
			nil, nil, nil, nil,
			nil, nil, nil,
			nil, nil,
			nil, nil, nil,
			nil, nil,
		})

		mock.ExpectQuery(`SELECT(.+)FROM tour t`).WillReturnRows(rows)

		tours, err := repo.FetchTourGraph()
		require.NoError(t, err)
		require.Len(t, tours, 1)
		assert.Equal(t, int64(3), tours[0].ID)
		assert.True(t, tours[0].Cancelled)
		assert.Empty(t, tours[0].Events)
		assert.Nil(t, tours[0].StartTime)
		assert.Nil(t, tours[0].VehicleID)

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Duplicate Tour Rows Collapse Into One Tour", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		repo := NewTourRepository(&mockDatabase{db: db})

		rows := sqlmock.NewRows(tourGraphColumns)
		addRow(rows, eventRow(5, 50, 500, true, 1000, 2000))
		addRow(rows, eventRow(5, 50, 501, false, 3000, 4000))
		addRow(rows, eventRow(5, 51, 502, true, 5000, 6000))

		mock.ExpectQuery(`SELECT(.+)FROM tour t`).WillReturnRows(rows)

		tours, err := repo.FetchTourGraph()
		require.NoError(t, err)
		require.Len(t, tours, 1)
		assert.Len(t, tours[0].Events, 3)

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Query Failure Wraps ErrDataUnavailable", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		repo := NewTourRepository(&mockDatabase{db: db})

		mock.ExpectQuery(`SELECT(.+)FROM tour t`).
			WillReturnError(fmt.Errorf("connection refused"))

		tours, err := repo.FetchTourGraph()
		assert.Nil(t, tours)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrDataUnavailable))
		assert.Contains(t, err.Error(), "connection refused")

		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

// mockDatabase wraps a sqlmock-backed *sql.DB behind the DB interface
type mockDatabase struct {
	db *sql.DB
}

func (m *mockDatabase) Get(dest interface{}, query string, args ...interface{}) error {
	return fmt.Errorf("Get not implemented in mock")
}

func (m *mockDatabase) Select(dest interface{}, query string, args ...interface{}) error {
	return fmt.Errorf("Select not implemented in mock")
}

func (m *mockDatabase) Query(query string, args ...interface{}) (*sql.Rows, error) {
	return m.db.Query(query, args...)
}

func (m *mockDatabase) QueryRow(query string, args ...interface{}) *sql.Row {
	return m.db.QueryRow(query, args...)
}

func (m *mockDatabase) Exec(query string, args ...interface{}) (sql.Result, error) {
	return m.db.Exec(query, args...)
}

func (m *mockDatabase) Close() error {
	return m.db.Close()
}

func (m *mockDatabase) Ping() error {
	return m.db.Ping()
}
