package services

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/primatransit/tour-audit-backend/internal/models"
	"github.com/primatransit/tour-audit-backend/pkg/routing"
	"github.com/sirupsen/logrus"
)

// TourSource provides the reconstructed tour graph for one audit run
type TourSource interface {
	FetchTourGraph() ([]*models.Tour, error)
}

// legBufferSeconds is the fixed loading/unloading buffer the dispatcher adds
// on top of routed travel time for in-tour legs and the inbound company leg.
// The outbound company leg carries no buffer; that asymmetry is intentional
// and must not be "fixed" here.
const legBufferSeconds = 60

// maxTourGapMillis bounds the idle gap between two tours of the same vehicle
// for which a stored direct duration is expected to match the routed one
const maxTourGapMillis = 5 * 3600 * 1000

// TourAuditService reconstructs nothing and repairs nothing: it loads the
// tour graph once and runs a fixed battery of read-only consistency checks
// over it, collecting findings instead of printing or enforcing anything.
type TourAuditService struct {
	tours     TourSource
	durations routing.DurationService
	logger    *logrus.Logger
}

// NewTourAuditService creates a new tour audit service
func NewTourAuditService(tours TourSource, durations routing.DurationService, logger *logrus.Logger) *TourAuditService {
	return &TourAuditService{
		tours:     tours,
		durations: durations,
		logger:    logger,
	}
}

// AuditResult is the outcome of one audit run
type AuditResult struct {
	RunID      uuid.UUID           `json:"run_id"`
	StartedAt  time.Time           `json:"started_at"`
	FinishedAt time.Time           `json:"finished_at"`
	TourCount  int                 `json:"tour_count"`
	Findings   []models.Finding    `json:"findings"`
	Summary    models.AuditSummary `json:"summary"`
}

// Run executes the full audit: load the graph, run every validator, return
// the concatenated findings. Validators are independent and never abort each
// other; only a failure of the row source itself is fatal, in which case no
// validator runs at all. Two runs over an unchanged data source produce an
// identical findings list.
func (s *TourAuditService) Run() (*AuditResult, error) {
	runID := uuid.New()
	startedAt := time.Now()

	s.logger.WithField("run_id", runID).Info("Starting tour audit run")

	tours, err := s.tours.FetchTourGraph()
	if err != nil {
		return nil, fmt.Errorf("failed to load tour graph: %w", err)
	}

	findings := []models.Finding{}
	findings = append(findings, s.checkRequestStructure(tours)...)
	findings = append(findings, s.checkEmptyTours(tours)...)
	findings = append(findings, s.checkCancellationConsistency(tours)...)
	findings = append(findings, s.checkCapacities(tours)...)
	findings = append(findings, s.checkEventOverlaps(tours)...)
	findings = append(findings, s.checkDirectDurations(tours)...)
	findings = append(findings, s.checkLegDurations(tours)...)
	findings = append(findings, s.checkCompanyLegs(tours)...)

	result := &AuditResult{
		RunID:      runID,
		StartedAt:  startedAt,
		FinishedAt: time.Now(),
		TourCount:  len(tours),
		Findings:   findings,
		Summary:    models.Summarize(findings),
	}

	s.logger.WithFields(logrus.Fields{
		"run_id":   runID,
		"tours":    result.TourCount,
		"findings": result.Summary.Total,
		"errors":   result.Summary.Errors,
		"duration": result.FinishedAt.Sub(result.StartedAt).String(),
	}).Info("Tour audit run completed")

	return result, nil
}

// checkRequestStructure verifies that every request group inside a tour has
// exactly two events and that those cover both a pickup and a dropoff. The
// two checks are independent; both may fire for the same group.
func (s *TourAuditService) checkRequestStructure(tours []*models.Tour) []models.Finding {
	findings := []models.Finding{}

	for _, tour := range tours {
		groups, order := tour.EventsByRequest()

		for _, requestID := range order {
			events := groups[requestID]
			ids := eventIDs(events)

			if len(events) != 2 {
				findings = append(findings, models.Finding{
					Kind:      models.FindingRequestEventCountMismatch,
					Severity:  models.SeverityError,
					TourID:    tour.ID,
					RequestID: &requestID,
					EventIDs:  ids,
					Message:   fmt.Sprintf("request %d in tour %d has %d events instead of 2", requestID, tour.ID, len(events)),
				})
			}

			pickupFound := false
			dropoffFound := false
			for _, event := range events {
				if event.IsPickup {
					pickupFound = true
				} else {
					dropoffFound = true
				}
			}

			if !pickupFound || !dropoffFound {
				findings = append(findings, models.Finding{
					Kind:      models.FindingRequestPickupDropoffMismatch,
					Severity:  models.SeverityError,
					TourID:    tour.ID,
					RequestID: &requestID,
					EventIDs:  ids,
					Message:   fmt.Sprintf("request %d in tour %d does not have both a pickup and a dropoff", requestID, tour.ID),
				})
			}
		}
	}

	return findings
}

// checkEmptyTours reports tours without any event. Informational: a tour may
// legitimately have no bookings yet.
func (s *TourAuditService) checkEmptyTours(tours []*models.Tour) []models.Finding {
	findings := []models.Finding{}

	for _, tour := range tours {
		if len(tour.Events) == 0 {
			findings = append(findings, models.Finding{
				Kind:     models.FindingEmptyTour,
				Severity: models.SeverityInfo,
				TourID:   tour.ID,
				Message:  fmt.Sprintf("tour %d has no associated events", tour.ID),
			})
		}
	}

	return findings
}

// checkCancellationConsistency verifies the three cancellation agreements:
// every event's flag matches its request's flag, a tour with only cancelled
// requests is itself cancelled, and a cancelled tour holds no live request.
func (s *TourAuditService) checkCancellationConsistency(tours []*models.Tour) []models.Finding {
	findings := []models.Finding{}

	for _, tour := range tours {
		for _, event := range tour.Events {
			if event.Cancelled != event.RequestCancelled {
				findings = append(findings, models.Finding{
					Kind:      models.FindingCancellationFlagMismatch,
					Severity:  models.SeverityError,
					TourID:    tour.ID,
					RequestID: &event.RequestID,
					EventIDs:  []int64{event.ID},
					Message:   fmt.Sprintf("event %d and request %d disagree on cancellation", event.ID, event.RequestID),
				})
			}
		}

		groups, order := tour.EventsByRequest()

		allRequestsCancelled := true
		for _, requestID := range order {
			if !groups[requestID][0].RequestCancelled {
				allRequestsCancelled = false
				if tour.Cancelled {
					findings = append(findings, models.Finding{
						Kind:      models.FindingTourCancellationInconsistency,
						Severity:  models.SeverityError,
						TourID:    tour.ID,
						RequestID: &requestID,
						Message:   fmt.Sprintf("tour %d is cancelled but request %d is not", tour.ID, requestID),
					})
				}
			}
		}

		// Tours without requests are covered by the empty-tour check; a
		// vacuous "all cancelled" must not flag them here.
		if len(order) > 0 && allRequestsCancelled && !tour.Cancelled {
			findings = append(findings, models.Finding{
				Kind:     models.FindingTourCancellationInconsistency,
				Severity: models.SeverityError,
				TourID:   tour.ID,
				Message:  fmt.Sprintf("all requests of tour %d are cancelled but the tour is not", tour.ID),
			})
		}
	}

	return findings
}

// checkCapacities verifies the per-request capacity values duplicated onto
// each event: passengers strictly positive, the rest non-negative.
func (s *TourAuditService) checkCapacities(tours []*models.Tour) []models.Finding {
	findings := []models.Finding{}

	for _, tour := range tours {
		for _, event := range tour.Events {
			if event.Passengers <= 0 {
				findings = append(findings, models.Finding{
					Kind:      models.FindingInvalidPassengerCount,
					Severity:  models.SeverityError,
					TourID:    tour.ID,
					RequestID: &event.RequestID,
					EventIDs:  []int64{event.ID},
					Message:   fmt.Sprintf("request %d has invalid passengers value %d, it should be positive", event.RequestID, event.Passengers),
				})
			}

			for _, capacity := range []struct {
				field string
				value int
			}{
				{"wheelchairs", event.Wheelchairs},
				{"bikes", event.Bikes},
				{"luggage", event.Luggage},
			} {
				if capacity.value < 0 {
					findings = append(findings, models.Finding{
						Kind:      models.FindingInvalidCapacityValue,
						Severity:  models.SeverityError,
						TourID:    tour.ID,
						RequestID: &event.RequestID,
						EventIDs:  []int64{event.ID},
						Message:   fmt.Sprintf("request %d has invalid %s value %d, it should be non-negative", event.RequestID, capacity.field, capacity.value),
					})
				}
			}
		}
	}

	return findings
}

// eventIDs collects the ids of a group of events
func eventIDs(events []models.Event) []int64 {
	ids := make([]int64, 0, len(events))
	for _, event := range events {
		ids = append(ids, event.ID)
	}
	return ids
}
