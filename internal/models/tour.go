package models

import (
	"sort"
	"time"
)

// Tour represents one scheduled vehicle run with its pickup/dropoff events.
// Tours are read-only snapshots reconstructed from the dispatch database;
// the auditor never mutates them.
type Tour struct {
	ID             int64      `json:"tour_id"`
	StartTime      *time.Time `json:"start_time,omitempty"`
	EndTime        *time.Time `json:"end_time,omitempty"`
	Fare           *int64     `json:"fare,omitempty"`
	Cancelled      bool       `json:"cancelled"`
	Message        *string    `json:"message,omitempty"`
	DirectDuration *int64     `json:"direct_duration,omitempty"` // milliseconds, empty-vehicle leg from the previous tour
	CompanyID      *int64     `json:"company_id,omitempty"`
	CompanyName    *string    `json:"company_name,omitempty"`
	CompanyLat     *float64   `json:"company_lat,omitempty"`
	CompanyLng     *float64   `json:"company_lng,omitempty"`
	VehicleID      *int64     `json:"vehicle_id,omitempty"`
	LicensePlate   *string    `json:"license_plate,omitempty"`
	Events         []Event    `json:"events"`
}

// Event represents one pickup or dropoff stop within a tour. Request-level
// fields (capacities, customer, cancellation) are flattened onto the event
// the same way the dispatch database joins them; the "request" is a grouping
// key over events, not a materialized entity.
type Event struct {
	ID                 int64    `json:"event_id"`
	RequestID          int64    `json:"request_id"`
	Passengers         int      `json:"passengers"`
	Wheelchairs        int      `json:"wheelchairs"`
	Bikes              int      `json:"bikes"`
	Luggage            int      `json:"luggage"`
	CustomerID         *string  `json:"customer_id,omitempty"`
	CustomerName       *string  `json:"customer_name,omitempty"`
	CustomerPhone      *string  `json:"customer_phone,omitempty"`
	TicketCode         *string  `json:"ticket_code,omitempty"` // anonymized (md5) at query time
	TicketChecked      bool     `json:"ticket_checked"`
	RequestCancelled   bool     `json:"request_cancelled"`
	IsPickup           bool     `json:"is_pickup"`
	Lat                float64  `json:"lat"`
	Lng                float64  `json:"lng"`
	ScheduledTimeStart int64    `json:"scheduled_time_start"` // epoch milliseconds
	ScheduledTimeEnd   int64    `json:"scheduled_time_end"`   // epoch milliseconds
	CommunicatedTime   *int64   `json:"communicated_time,omitempty"`
	PrevLegDuration    int64    `json:"prev_leg_duration"` // milliseconds
	NextLegDuration    int64    `json:"next_leg_duration"` // milliseconds
	EventGroup         *string  `json:"event_group,omitempty"`
	Address            *string  `json:"address,omitempty"`
	Cancelled          bool     `json:"cancelled"`
}

// Overlaps reports whether the scheduled windows of two events overlap by
// more than a single boundary point. Windows are half-open [start, end).
func (e Event) Overlaps(other Event) bool {
	return e.ScheduledTimeStart < other.ScheduledTimeEnd &&
		other.ScheduledTimeStart < e.ScheduledTimeEnd
}

// SortedEvents returns the tour's events ordered by scheduled start time.
// The sort is stable so ties keep their original (query) order, which keeps
// audit output deterministic.
func (t *Tour) SortedEvents() []Event {
	events := make([]Event, len(t.Events))
	copy(events, t.Events)
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].ScheduledTimeStart < events[j].ScheduledTimeStart
	})
	return events
}

// EventsByRequest groups the tour's events by their request id. The returned
// key slice preserves first-seen order so callers iterate deterministically.
func (t *Tour) EventsByRequest() (map[int64][]Event, []int64) {
	groups := make(map[int64][]Event)
	order := make([]int64, 0)

	for _, event := range t.Events {
		if _, seen := groups[event.RequestID]; !seen {
			order = append(order, event.RequestID)
		}
		groups[event.RequestID] = append(groups[event.RequestID], event)
	}

	return groups, order
}

// HasSameVehicle reports whether both tours have a vehicle assigned and it is
// the same one.
func (t *Tour) HasSameVehicle(other *Tour) bool {
	if t.VehicleID == nil || other.VehicleID == nil {
		return false
	}
	return *t.VehicleID == *other.VehicleID
}
