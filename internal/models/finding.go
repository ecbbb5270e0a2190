package models

// FindingKind identifies the consistency rule a finding was produced by
type FindingKind string

const (
	FindingRequestEventCountMismatch     FindingKind = "request_event_count_mismatch"
	FindingRequestPickupDropoffMismatch  FindingKind = "request_pickup_dropoff_mismatch"
	FindingEmptyTour                     FindingKind = "empty_tour"
	FindingCancellationFlagMismatch      FindingKind = "cancellation_flag_mismatch"
	FindingTourCancellationInconsistency FindingKind = "tour_cancellation_inconsistency"
	FindingInvalidPassengerCount         FindingKind = "invalid_passenger_count"
	FindingInvalidCapacityValue          FindingKind = "invalid_capacity_value"
	FindingEventOverlap                  FindingKind = "event_overlap"
	FindingLegDurationMismatch           FindingKind = "leg_duration_mismatch"
	FindingDirectDurationMismatch        FindingKind = "direct_duration_mismatch"
	FindingScheduleWindowExceeded        FindingKind = "schedule_window_exceeded"
	FindingCompanyLegDurationMismatch    FindingKind = "company_leg_duration_mismatch"
	FindingLookupFailure                 FindingKind = "lookup_failure"
)

// Severity represents how serious a finding is
type Severity string

const (
	SeverityError Severity = "error"
	SeverityInfo  Severity = "info"
)

// Finding is one audit diagnostic. Findings are reporting-only: they are
// collected and returned, never enforced against the data source.
type Finding struct {
	Kind      FindingKind `json:"kind"`
	Severity  Severity    `json:"severity"`
	TourID    int64       `json:"tour_id,omitempty"`
	RequestID *int64      `json:"request_id,omitempty"`
	EventIDs  []int64     `json:"event_ids,omitempty"`
	Message   string      `json:"message"`
}

// AuditSummary aggregates the findings of one run for quick reporting
type AuditSummary struct {
	Total  int                 `json:"total"`
	Errors int                 `json:"errors"`
	Infos  int                 `json:"infos"`
	ByKind map[FindingKind]int `json:"by_kind"`
}

// Summarize builds an AuditSummary from a findings list
func Summarize(findings []Finding) AuditSummary {
	summary := AuditSummary{
		ByKind: make(map[FindingKind]int),
	}

	for _, f := range findings {
		summary.Total++
		if f.Severity == SeverityError {
			summary.Errors++
		} else {
			summary.Infos++
		}
		summary.ByKind[f.Kind]++
	}

	return summary
}
