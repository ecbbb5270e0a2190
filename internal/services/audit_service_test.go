package services

import (
	"fmt"
	"io"
	"testing"

	"github.com/primatransit/tour-audit-backend/internal/models"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubTourSource serves a fixed tour graph or a fixed error
type stubTourSource struct {
	tours []*models.Tour
	err   error
	calls int
}

func (s *stubTourSource) FetchTourGraph() ([]*models.Tour, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.tours, nil
}

// stubDurations answers every lookup with the same routed duration in seconds
type stubDurations struct {
	duration int64
	err      error
	calls    int
}

func (s *stubDurations) OneToMany(fromLat, fromLng, toLat, toLng float64) (int64, error) {
	s.calls++
	if s.err != nil {
		return 0, s.err
	}
	return s.duration, nil
}

func newTestAuditService(source TourSource, durations *stubDurations) *TourAuditService {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return NewTourAuditService(source, durations, logger)
}

func findingsOfKind(findings []models.Finding, kind models.FindingKind) []models.Finding {
	matched := []models.Finding{}
	for _, f := range findings {
		if f.Kind == kind {
			matched = append(matched, f)
		}
	}
	return matched
}

func int64Ptr(v int64) *int64 {
	return &v
}

func float64Ptr(v float64) *float64 {
	return &v
}

func TestCheckRequestStructure(t *testing.T) {
	svc := newTestAuditService(&stubTourSource{}, &stubDurations{})

	t.Run("Three Events Reports One Count Mismatch", func(t *testing.T) {
		tour := &models.Tour{ID: 1, Events: []models.Event{
			{ID: 100, RequestID: 10, IsPickup: true},
			{ID: 101, RequestID: 10, IsPickup: true},
			{ID: 102, RequestID: 10, IsPickup: false},
		}}

		findings := svc.checkRequestStructure([]*models.Tour{tour})
		require.Len(t, findings, 1)
		assert.Equal(t, models.FindingRequestEventCountMismatch, findings[0].Kind)
		assert.Equal(t, models.SeverityError, findings[0].Severity)
		assert.Equal(t, int64(1), findings[0].TourID)
		require.NotNil(t, findings[0].RequestID)
		assert.Equal(t, int64(10), *findings[0].RequestID)
		assert.Equal(t, []int64{100, 101, 102}, findings[0].EventIDs)
	})

	t.Run("Two Pickups Reports Pickup Dropoff Mismatch", func(t *testing.T) {
		tour := &models.Tour{ID: 2, Events: []models.Event{
			{ID: 200, RequestID: 20, IsPickup: true},
			{ID: 201, RequestID: 20, IsPickup: true},
		}}

		findings := svc.checkRequestStructure([]*models.Tour{tour})
		require.Len(t, findings, 1)
		assert.Equal(t, models.FindingRequestPickupDropoffMismatch, findings[0].Kind)
	})

	t.Run("Both Checks Fire For The Same Request", func(t *testing.T) {
		tour := &models.Tour{ID: 3, Events: []models.Event{
			{ID: 300, RequestID: 30, IsPickup: true},
		}}

		findings := svc.checkRequestStructure([]*models.Tour{tour})
		assert.Len(t, findings, 2)
		assert.Len(t, findingsOfKind(findings, models.FindingRequestEventCountMismatch), 1)
		assert.Len(t, findingsOfKind(findings, models.FindingRequestPickupDropoffMismatch), 1)
	})

	t.Run("Well Formed Request Is Silent", func(t *testing.T) {
		tour := &models.Tour{ID: 4, Events: []models.Event{
			{ID: 400, RequestID: 40, IsPickup: true},
			{ID: 401, RequestID: 40, IsPickup: false},
		}}

		findings := svc.checkRequestStructure([]*models.Tour{tour})
		assert.Empty(t, findings)
	})
}

func TestCheckEmptyTours(t *testing.T) {
	svc := newTestAuditService(&stubTourSource{}, &stubDurations{})

	tours := []*models.Tour{
		{ID: 1, Events: []models.Event{}},
		{ID: 2, Events: []models.Event{{ID: 200, RequestID: 20, IsPickup: true}}},
	}

	findings := svc.checkEmptyTours(tours)
	require.Len(t, findings, 1)
	assert.Equal(t, models.FindingEmptyTour, findings[0].Kind)
	assert.Equal(t, models.SeverityInfo, findings[0].Severity)
	assert.Equal(t, int64(1), findings[0].TourID)
}

func TestCheckCancellationConsistency(t *testing.T) {
	svc := newTestAuditService(&stubTourSource{}, &stubDurations{})

	t.Run("Event And Request Flags Must Agree", func(t *testing.T) {
		tour := &models.Tour{ID: 1, Cancelled: true, Events: []models.Event{
			{ID: 100, RequestID: 10, Cancelled: true, RequestCancelled: true},
			{ID: 101, RequestID: 10, Cancelled: false, RequestCancelled: true},
		}}

		findings := svc.checkCancellationConsistency([]*models.Tour{tour})
		mismatches := findingsOfKind(findings, models.FindingCancellationFlagMismatch)
		require.Len(t, mismatches, 1)
		assert.Equal(t, []int64{101}, mismatches[0].EventIDs)
	})

	t.Run("Cancelled Tour With Live Request", func(t *testing.T) {
		tour := &models.Tour{ID: 2, Cancelled: true, Events: []models.Event{
			{ID: 200, RequestID: 20, Cancelled: false, RequestCancelled: false},
			{ID: 201, RequestID: 20, Cancelled: false, RequestCancelled: false},
		}}

		findings := svc.checkCancellationConsistency([]*models.Tour{tour})
		inconsistencies := findingsOfKind(findings, models.FindingTourCancellationInconsistency)
		require.Len(t, inconsistencies, 1)
		require.NotNil(t, inconsistencies[0].RequestID)
		assert.Equal(t, int64(20), *inconsistencies[0].RequestID)
	})

	t.Run("All Requests Cancelled But Tour Is Not", func(t *testing.T) {
		tour := &models.Tour{ID: 3, Cancelled: false, Events: []models.Event{
			{ID: 300, RequestID: 30, Cancelled: true, RequestCancelled: true},
			{ID: 301, RequestID: 30, Cancelled: true, RequestCancelled: true},
		}}

		findings := svc.checkCancellationConsistency([]*models.Tour{tour})
		inconsistencies := findingsOfKind(findings, models.FindingTourCancellationInconsistency)
		require.Len(t, inconsistencies, 1)
		assert.Nil(t, inconsistencies[0].RequestID)
	})

	t.Run("Empty Tour Is Not A Vacuous Cancellation Case", func(t *testing.T) {
		tour := &models.Tour{ID: 4, Cancelled: false, Events: []models.Event{}}

		findings := svc.checkCancellationConsistency([]*models.Tour{tour})
		assert.Empty(t, findings)
	})

	t.Run("Consistent Cancellation Is Silent", func(t *testing.T) {
		tour := &models.Tour{ID: 5, Cancelled: true, Events: []models.Event{
			{ID: 500, RequestID: 50, Cancelled: true, RequestCancelled: true},
			{ID: 501, RequestID: 50, Cancelled: true, RequestCancelled: true},
		}}

		findings := svc.checkCancellationConsistency([]*models.Tour{tour})
		assert.Empty(t, findings)
	})
}

func TestCheckCapacities(t *testing.T) {
	svc := newTestAuditService(&stubTourSource{}, &stubDurations{})

	t.Run("Zero Passengers Is Invalid", func(t *testing.T) {
		tour := &models.Tour{ID: 1, Events: []models.Event{
			{ID: 100, RequestID: 10, Passengers: 0},
		}}

		findings := svc.checkCapacities([]*models.Tour{tour})
		require.Len(t, findings, 1)
		assert.Equal(t, models.FindingInvalidPassengerCount, findings[0].Kind)
	})

	t.Run("Negative Capacity Is Invalid", func(t *testing.T) {
		tour := &models.Tour{ID: 2, Events: []models.Event{
			{ID: 200, RequestID: 20, Passengers: 1, Wheelchairs: -1},
		}}

		findings := svc.checkCapacities([]*models.Tour{tour})
		require.Len(t, findings, 1)
		assert.Equal(t, models.FindingInvalidCapacityValue, findings[0].Kind)
		assert.Contains(t, findings[0].Message, "wheelchairs")
	})

	t.Run("Zero Capacities Are Valid", func(t *testing.T) {
		tour := &models.Tour{ID: 3, Events: []models.Event{
			{ID: 300, RequestID: 30, Passengers: 1, Wheelchairs: 0, Bikes: 0, Luggage: 0},
		}}

		findings := svc.checkCapacities([]*models.Tour{tour})
		assert.Empty(t, findings)
	})
}

func TestRun(t *testing.T) {
	t.Run("Source Failure Aborts Without Running Validators", func(t *testing.T) {
		source := &stubTourSource{err: fmt.Errorf("connection refused")}
		durations := &stubDurations{duration: 600}
		svc := newTestAuditService(source, durations)

		result, err := svc.Run()
		require.Error(t, err)
		assert.Nil(t, result)
		assert.Contains(t, err.Error(), "failed to load tour graph")
		assert.Equal(t, 0, durations.calls)
	})

	t.Run("Repeated Runs Yield Identical Findings", func(t *testing.T) {
		tours := []*models.Tour{
			{ID: 1, Events: []models.Event{}},
			{ID: 2, VehicleID: int64Ptr(7), Events: []models.Event{
				{ID: 200, RequestID: 20, Passengers: 0, IsPickup: true},
			}},
		}
		source := &stubTourSource{tours: tours}
		svc := newTestAuditService(source, &stubDurations{duration: 600})

		first, err := svc.Run()
		require.NoError(t, err)
		second, err := svc.Run()
		require.NoError(t, err)

		assert.Equal(t, first.Findings, second.Findings)
		assert.Equal(t, first.Summary, second.Summary)
		assert.NotEqual(t, first.RunID, second.RunID)
	})

	t.Run("Summary Matches Findings", func(t *testing.T) {
		tours := []*models.Tour{
			{ID: 1, Events: []models.Event{}},
		}
		svc := newTestAuditService(&stubTourSource{tours: tours}, &stubDurations{duration: 600})

		result, err := svc.Run()
		require.NoError(t, err)
		assert.Equal(t, 1, result.TourCount)
		assert.Equal(t, len(result.Findings), result.Summary.Total)
		assert.Equal(t, result.Summary.Total, result.Summary.Errors+result.Summary.Infos)
		assert.Equal(t, 1, result.Summary.ByKind[models.FindingEmptyTour])
	})
}
