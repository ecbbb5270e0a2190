package services

import (
	"fmt"

	"github.com/primatransit/tour-audit-backend/internal/models"
)

// checkEventOverlaps verifies that the scheduled windows of non-cancelled
// events within a tour touch at most at a single boundary point. The pairwise
// scan is O(n²) per tour, which is fine for the handful of events a tour
// holds.
func (s *TourAuditService) checkEventOverlaps(tours []*models.Tour) []models.Finding {
	findings := []models.Finding{}

	for _, tour := range tours {
		active := []models.Event{}
		for _, event := range tour.Events {
			if !event.Cancelled {
				active = append(active, event)
			}
		}

		for i := 0; i < len(active); i++ {
			for j := i + 1; j < len(active); j++ {
				if active[i].Overlaps(active[j]) {
					findings = append(findings, models.Finding{
						Kind:     models.FindingEventOverlap,
						Severity: models.SeverityError,
						TourID:   tour.ID,
						EventIDs: []int64{active[i].ID, active[j].ID},
						Message:  fmt.Sprintf("events %d and %d in tour %d have overlapping scheduled windows", active[i].ID, active[j].ID, tour.ID),
					})
				}
			}
		}
	}

	return findings
}

// checkDirectDurations verifies the stored empty-vehicle travel time between
// two consecutive tours of the same vehicle. Tours are taken in id order as a
// proxy for chronological assignment order. Pairs on different vehicles, with
// a non-positive gap, or idle for more than five hours are skipped, not
// reported.
func (s *TourAuditService) checkDirectDurations(tours []*models.Tour) []models.Finding {
	findings := []models.Finding{}

	for i := 1; i < len(tours); i++ {
		earlier := tours[i-1]
		later := tours[i]

		if !earlier.HasSameVehicle(later) {
			continue
		}

		earlierEvents := earlier.SortedEvents()
		laterEvents := later.SortedEvents()
		if len(earlierEvents) == 0 || len(laterEvents) == 0 {
			continue
		}

		lastEvent := earlierEvents[len(earlierEvents)-1]
		firstEvent := laterEvents[0]

		gap := firstEvent.ScheduledTimeStart - lastEvent.ScheduledTimeEnd
		if gap <= 0 || gap > maxTourGapMillis {
			continue
		}

		expected, err := s.durations.OneToMany(lastEvent.Lat, lastEvent.Lng, firstEvent.Lat, firstEvent.Lng)
		if err != nil {
			findings = append(findings, lookupFailure(later.ID, []int64{lastEvent.ID, firstEvent.ID}, err))
			continue
		}

		var found int64
		if later.DirectDuration != nil {
			found = *later.DirectDuration
		}

		if expected*1000 != found {
			findings = append(findings, models.Finding{
				Kind:     models.FindingDirectDurationMismatch,
				Severity: models.SeverityError,
				TourID:   later.ID,
				EventIDs: []int64{lastEvent.ID, firstEvent.ID},
				Message: fmt.Sprintf("direct duration mismatch between tours %d and %d: expected %d s, found %g s",
					earlier.ID, later.ID, expected, float64(found)/1000),
			})
		}
	}

	return findings
}

// checkLegDurations reconciles the leg records of adjacent events within each
// tour: the same physical leg is stored from both ends and must agree, the
// stored duration must equal the routed duration plus the fixed buffer, and
// the scheduled windows must leave enough time to actually drive the leg.
// A failed routed lookup skips the latter two checks for that pair only.
func (s *TourAuditService) checkLegDurations(tours []*models.Tour) []models.Finding {
	findings := []models.Finding{}

	for _, tour := range tours {
		events := tour.SortedEvents()

		for i := 0; i+1 < len(events); i++ {
			earlier := events[i]
			later := events[i+1]

			if earlier.NextLegDuration != later.PrevLegDuration {
				findings = append(findings, models.Finding{
					Kind:     models.FindingLegDurationMismatch,
					Severity: models.SeverityError,
					TourID:   tour.ID,
					EventIDs: []int64{earlier.ID, later.ID},
					Message: fmt.Sprintf("leg duration mismatch between events %d and %d: %d ms recorded forward, %d ms recorded backward",
						earlier.ID, later.ID, earlier.NextLegDuration, later.PrevLegDuration),
				})
			}

			routed, err := s.durations.OneToMany(earlier.Lat, earlier.Lng, later.Lat, later.Lng)
			if err != nil {
				findings = append(findings, lookupFailure(tour.ID, []int64{earlier.ID, later.ID}, err))
				continue
			}

			expected := (routed + legBufferSeconds) * 1000
			if expected != earlier.NextLegDuration {
				findings = append(findings, models.Finding{
					Kind:     models.FindingDirectDurationMismatch,
					Severity: models.SeverityError,
					TourID:   tour.ID,
					EventIDs: []int64{earlier.ID, later.ID},
					Message: fmt.Sprintf("leg duration between events %d and %d: expected %d ms, found %d ms",
						earlier.ID, later.ID, expected, earlier.NextLegDuration),
				})
			}

			if later.ScheduledTimeEnd-earlier.ScheduledTimeStart > expected {
				findings = append(findings, models.Finding{
					Kind:     models.FindingScheduleWindowExceeded,
					Severity: models.SeverityError,
					TourID:   tour.ID,
					EventIDs: []int64{earlier.ID, later.ID},
					Message: fmt.Sprintf("time between events %d and %d is %g s, exceeding the expected %d s",
						earlier.ID, later.ID, float64(later.ScheduledTimeEnd-earlier.ScheduledTimeStart)/1000, routed+legBufferSeconds),
				})
			}
		}
	}

	return findings
}

// checkCompanyLegs verifies the legs between the company depot and the first
// and last event of each tour. The outbound leg is compared without any
// buffer; the inbound leg gets the fixed buffer added. That difference is
// deliberate.
func (s *TourAuditService) checkCompanyLegs(tours []*models.Tour) []models.Finding {
	findings := []models.Finding{}

	for _, tour := range tours {
		events := tour.SortedEvents()
		if len(events) == 0 {
			continue
		}
		if tour.CompanyLat == nil || tour.CompanyLng == nil {
			continue
		}

		first := events[0]
		last := events[len(events)-1]

		outbound, err := s.durations.OneToMany(*tour.CompanyLat, *tour.CompanyLng, first.Lat, first.Lng)
		if err != nil {
			findings = append(findings, lookupFailure(tour.ID, []int64{first.ID}, err))
		} else if outbound*1000 != first.PrevLegDuration {
			findings = append(findings, models.Finding{
				Kind:     models.FindingCompanyLegDurationMismatch,
				Severity: models.SeverityError,
				TourID:   tour.ID,
				EventIDs: []int64{first.ID},
				Message: fmt.Sprintf("outbound company leg of tour %d: expected %d s, found %g s",
					tour.ID, outbound, float64(first.PrevLegDuration)/1000),
			})
		}

		inbound, err := s.durations.OneToMany(last.Lat, last.Lng, *tour.CompanyLat, *tour.CompanyLng)
		if err != nil {
			findings = append(findings, lookupFailure(tour.ID, []int64{last.ID}, err))
		} else if (inbound+legBufferSeconds)*1000 != last.NextLegDuration {
			findings = append(findings, models.Finding{
				Kind:     models.FindingCompanyLegDurationMismatch,
				Severity: models.SeverityError,
				TourID:   tour.ID,
				EventIDs: []int64{last.ID},
				Message: fmt.Sprintf("inbound company leg of tour %d: expected %d s, found %g s",
					tour.ID, inbound+legBufferSeconds, float64(last.NextLegDuration)/1000),
			})
		}
	}

	return findings
}

// lookupFailure records an unavailable duration lookup. Low severity: the
// dependent checks are skipped for that pair, nothing else is affected.
func lookupFailure(tourID int64, eventIDs []int64, err error) models.Finding {
	return models.Finding{
		Kind:     models.FindingLookupFailure,
		Severity: models.SeverityInfo,
		TourID:   tourID,
		EventIDs: eventIDs,
		Message:  fmt.Sprintf("duration lookup failed: %v", err),
	}
}
