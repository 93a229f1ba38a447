package booking

import "fmt"

// Status represents the current state of a rental booking in its lifecycle.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusConfirmed Status = "CONFIRMED"
	StatusCollected Status = "COLLECTED"
	StatusCompleted Status = "COMPLETED"
	StatusInvoiced  Status = "INVOICED"
	StatusPaid      Status = "PAID"
	StatusCancelled Status = "CANCELLED"
)

// validTransitions defines the state machine for booking status transitions.
// Once settlement has begun (COMPLETED and beyond) cancellation is no longer
// possible; PAID and CANCELLED are terminal.
var validTransitions = map[Status][]Status{
	StatusPending:   {StatusConfirmed, StatusCancelled},
	StatusConfirmed: {StatusCollected, StatusCancelled},
	StatusCollected: {StatusCompleted, StatusCancelled},
	StatusCompleted: {StatusInvoiced},
	StatusInvoiced:  {StatusPaid},
	StatusPaid:      {},
	StatusCancelled: {},
}

// IsValid returns true if the status is a recognized booking status.
func (s Status) IsValid() bool {
	_, exists := validTransitions[s]
	return exists
}

// CanTransitionTo returns true if a transition from this status to the target is allowed.
func (s Status) CanTransitionTo(target Status) bool {
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
func (s Status) IsTerminal() bool {
	allowed, exists := validTransitions[s]
	if !exists {
		return true
	}
	return len(allowed) == 0
}

// CanBeCancelled returns true if the booking can still be cancelled.
func (s Status) CanBeCancelled() bool {
	return s.CanTransitionTo(StatusCancelled)
}

// BlocksVehicle reports whether a booking in this status still claims its
// vehicle's dates. Settled and terminal statuses do not block new bookings.
func (s Status) BlocksVehicle() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusCollected:
		return true
	}
	return false
}

// String returns the string representation of the status.
func (s Status) String() string {
	return string(s)
}

// ParseStatus converts a string to a Status, returning an error if invalid.
func ParseStatus(s string) (Status, error) {
	status := Status(s)
	if !status.IsValid() {
		return "", fmt.Errorf("invalid booking status: %s", s)
	}
	return status, nil
}
