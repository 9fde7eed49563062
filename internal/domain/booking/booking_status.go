package booking

import "fmt"

// BookingStatus represents the current state of a booking in its lifecycle.
type BookingStatus string

const (
	StatusPendingPayment BookingStatus = "pending_payment"
	StatusConfirmed      BookingStatus = "confirmed"
	StatusActive         BookingStatus = "active"
	StatusCompleted      BookingStatus = "completed"
	StatusCancelled      BookingStatus = "cancelled"
	StatusExpired        BookingStatus = "expired"
	StatusNoShow         BookingStatus = "no_show"
)

// validTransitions defines the state machine for booking status transitions.
var validTransitions = map[BookingStatus][]BookingStatus{
	StatusPendingPayment: {StatusConfirmed, StatusExpired},
	StatusConfirmed:      {StatusActive, StatusCancelled, StatusExpired, StatusNoShow},
	StatusActive:         {StatusCompleted, StatusCancelled, StatusExpired},
	StatusCompleted:      {},
	StatusCancelled:      {},
	StatusExpired:        {},
	StatusNoShow:         {},
}

// overrideTargets are the statuses an administrator may force a booking into.
var overrideTargets = map[BookingStatus]bool{
	StatusConfirmed: true,
	StatusActive:    true,
	StatusCompleted: true,
	StatusCancelled: true,
	StatusExpired:   true,
}

// FreeingStatuses are the statuses whose bookings no longer claim their time window.
var FreeingStatuses = []BookingStatus{StatusCancelled, StatusCompleted, StatusExpired}

// IsValid returns true if the status is a recognized booking status.
func (s BookingStatus) IsValid() bool {
	_, exists := validTransitions[s]
	return exists
}

// CanTransitionTo returns true if a transition from this status to the target is allowed.
func (s BookingStatus) CanTransitionTo(target BookingStatus) bool {
	allowed, exists := validTransitions[s]
	if !exists {
		return false
	}
	for _, t := range allowed {
		if t == target {
			return true
		}
	}
	return false
}

// IsTerminal returns true if no further transitions are possible from this status.
func (s BookingStatus) IsTerminal() bool {
	allowed, exists := validTransitions[s]
	if !exists {
		return true
	}
	return len(allowed) == 0
}

// HoldsSpot returns true if a booking in this status keeps its spot reserved or occupied.
func (s BookingStatus) HoldsSpot() bool {
	return s == StatusConfirmed || s == StatusActive
}

// ClaimsWindow returns true if a booking in this status blocks overlapping bookings on its spot.
func (s BookingStatus) ClaimsWindow() bool {
	for _, f := range FreeingStatuses {
		if s == f {
			return false
		}
	}
	return s.IsValid()
}

// IsOverrideTarget returns true if an administrator may set this status directly.
func (s BookingStatus) IsOverrideTarget() bool {
	return overrideTargets[s]
}

// String returns the string representation of the status.
func (s BookingStatus) String() string {
	return string(s)
}

// ParseBookingStatus converts a string to a BookingStatus, returning an error if invalid.
func ParseBookingStatus(s string) (BookingStatus, error) {
	status := BookingStatus(s)
	if !status.IsValid() {
		return "", fmt.Errorf("invalid booking status: %s", s)
	}
	return status, nil
}
