package database

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/primatransit/tour-audit-backend/internal/models"
)

// ErrDataUnavailable marks a total failure of the tour row source. It is the
// only fatal condition in an audit run; every other problem becomes a finding.
var ErrDataUnavailable = errors.New("tour data source unavailable")

// TourRepository loads the denormalized tour/request/event join rows and
// reassembles them into the nested tour graph the auditor works on
type TourRepository struct {
	db DB
}

// NewTourRepository creates a new TourRepository
func NewTourRepository(db DB) *TourRepository {
	return &TourRepository{db: db}
}

// tourGraphQuery returns one row per tour x request x event combination.
// LEFT JOINs keep tours and requests without children in the result set
// (their event columns come back NULL). Ordering by tour, request, then
// scheduled event start makes reconstruction and audit output deterministic.
const tourGraphQuery = `
	SELECT
		t.id AS tour_id,
		t.departure AS start_time,
		t.arrival AS end_time,
		t.fare,
		t.cancelled,
		t.message,
		t.direct_duration,
		c.id AS company_id,
		c.name AS company_name,
		c.lat AS company_lat,
		c.lng AS company_lng,
		v.id AS vehicle_id,
		v.license_plate,
		r.id AS request_id,
		r.passengers,
		r.wheelchairs,
		r.bikes,
		r.luggage,
		r.customer AS customer_id,
		md5(r.ticket_code) AS ticket_code,
		r.ticket_checked,
		r.cancelled AS request_cancelled,
		e.id AS event_id,
		e.is_pickup,
		e.lat,
		e.lng,
		e.scheduled_time_start,
		e.scheduled_time_end,
		e.communicated_time,
		e.prev_leg_duration,
		e.next_leg_duration,
		e.event_group,
		e.address,
		e.cancelled AS event_cancelled,
		u.name AS customer_name,
		u.phone AS customer_phone
	FROM tour t
	LEFT JOIN vehicle v ON t.vehicle = v.id
	LEFT JOIN company c ON v.company = c.id
	LEFT JOIN request r ON r.tour = t.id
	LEFT JOIN event e ON e.request = r.id
	LEFT JOIN "user" u ON r.customer = u.id
	ORDER BY t.id, r.id, e.scheduled_time_start
`

// FetchTourGraph fetches the full tour/request/event dataset and rebuilds the
// ownership tree: an insertion-ordered list of tours, each owning its events.
// Tours without any request or event still appear, with an empty event list.
// If the row source cannot be reached the call fails with ErrDataUnavailable;
// there is no partial-result mode.
func (r *TourRepository) FetchTourGraph() ([]*models.Tour, error) {
	rows, err := r.db.Query(tourGraphQuery)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to query tour graph: %v", ErrDataUnavailable, err)
	}
	defer rows.Close()

	tours := []*models.Tour{}
	byID := make(map[int64]*models.Tour)

	for rows.Next() {
		var (
			tourID         int64
			startTime      sql.NullInt64
			endTime        sql.NullInt64
			fare           sql.NullInt64
			cancelled      sql.NullBool
			message        sql.NullString
			directDuration sql.NullInt64
			companyID      sql.NullInt64
			companyName    sql.NullString
			companyLat     sql.NullFloat64
			companyLng     sql.NullFloat64
			vehicleID      sql.NullInt64
			licensePlate   sql.NullString

			requestID        sql.NullInt64
			passengers       sql.NullInt64
			wheelchairs      sql.NullInt64
			bikes            sql.NullInt64
			luggage          sql.NullInt64
			customerID       sql.NullString
			ticketCode       sql.NullString
			ticketChecked    sql.NullBool
			requestCancelled sql.NullBool

			eventID            sql.NullInt64
			isPickup           sql.NullBool
			lat                sql.NullFloat64
			lng                sql.NullFloat64
			scheduledTimeStart sql.NullInt64
			scheduledTimeEnd   sql.NullInt64
			communicatedTime   sql.NullInt64
			prevLegDuration    sql.NullInt64
			nextLegDuration    sql.NullInt64
			eventGroup         sql.NullString
			address            sql.NullString
			eventCancelled     sql.NullBool

			customerName  sql.NullString
			customerPhone sql.NullString
		)

		err := rows.Scan(
			&tourID, &startTime, &endTime, &fare, &cancelled, &message, &directDuration,
			&companyID, &companyName, &companyLat, &companyLng,
			&vehicleID, &licensePlate,
			&requestID, &passengers, &wheelchairs, &bikes, &luggage,
			&customerID, &ticketCode, &ticketChecked, &requestCancelled,
			&eventID, &isPickup, &lat, &lng,
			&scheduledTimeStart, &scheduledTimeEnd, &communicatedTime,
			&prevLegDuration, &nextLegDuration,
			&eventGroup, &address, &eventCancelled,
			&customerName, &customerPhone,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan tour row: %w", err)
		}

		tour, ok := byID[tourID]
		if !ok {
			tour = &models.Tour{
				ID:             tourID,
				StartTime:      millisToTime(startTime),
				EndTime:        millisToTime(endTime),
				Fare:           nullInt64(fare),
				Cancelled:      cancelled.Bool,
				Message:        nullString(message),
				DirectDuration: nullInt64(directDuration),
				CompanyID:      nullInt64(companyID),
				CompanyName:    nullString(companyName),
				CompanyLat:     nullFloat64(companyLat),
				CompanyLng:     nullFloat64(companyLng),
				VehicleID:      nullInt64(vehicleID),
				LicensePlate:   nullString(licensePlate),
				Events:         []models.Event{},
			}
			byID[tourID] = tour
			tours = append(tours, tour)
		}

		// Rows from tours or requests without events carry NULL event columns;
		// the tour still exists, it just has nothing to append.
		if !eventID.Valid {
			continue
		}

		tour.Events = append(tour.Events, models.Event{
			ID:                 eventID.Int64,
			RequestID:          requestID.Int64,
			Passengers:         int(passengers.Int64),
			Wheelchairs:        int(wheelchairs.Int64),
			Bikes:              int(bikes.Int64),
			Luggage:            int(luggage.Int64),
			CustomerID:         nullString(customerID),
			CustomerName:       nullString(customerName),
			CustomerPhone:      nullString(customerPhone),
			TicketCode:         nullString(ticketCode),
			TicketChecked:      ticketChecked.Bool,
			RequestCancelled:   requestCancelled.Bool,
			IsPickup:           isPickup.Bool,
			Lat:                lat.Float64,
			Lng:                lng.Float64,
			ScheduledTimeStart: scheduledTimeStart.Int64,
			ScheduledTimeEnd:   scheduledTimeEnd.Int64,
			CommunicatedTime:   nullInt64(communicatedTime),
			PrevLegDuration:    prevLegDuration.Int64,
			NextLegDuration:    nextLegDuration.Int64,
			EventGroup:         nullString(eventGroup),
			Address:            nullString(address),
			Cancelled:          eventCancelled.Bool,
		})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: failed to read tour rows: %v", ErrDataUnavailable, err)
	}

	return tours, nil
}

// millisToTime converts an epoch-millisecond column to a calendar timestamp.
// NULL maps to nil, never to the zero epoch.
func millisToTime(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := time.UnixMilli(v.Int64).UTC()
	return &t
}

func nullString(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	return &v.String
}

func nullInt64(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	return &v.Int64
}

func nullFloat64(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	return &v.Float64
}
