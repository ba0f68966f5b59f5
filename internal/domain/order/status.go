package order

import "fmt"

// Status is an order's lifecycle state.
type Status string

const (
	StatusPending        Status = "pending"
	StatusConfirmed      Status = "confirmed"
	StatusPreparing      Status = "preparing"
	StatusReady          Status = "ready"
	StatusOutForDelivery Status = "out_for_delivery"
	StatusDelivered      Status = "delivered"
	StatusCancelled      Status = "cancelled"
	StatusRejected       Status = "rejected"
)

// transitions is the full set of legal status changes. Terminal states
// (delivered, cancelled, rejected) have no outgoing transitions.
var transitions = map[Status][]Status{
	StatusPending:        {StatusConfirmed, StatusCancelled, StatusRejected},
	StatusConfirmed:      {StatusPreparing, StatusCancelled, StatusRejected},
	StatusPreparing:      {StatusReady, StatusCancelled},
	StatusReady:          {StatusOutForDelivery, StatusDelivered, StatusCancelled},
	StatusOutForDelivery: {StatusDelivered, StatusCancelled},
}

// ValidStatus reports whether s is a known status.
func ValidStatus(s Status) bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusPreparing, StatusReady,
		StatusOutForDelivery, StatusDelivered, StatusCancelled, StatusRejected:
		return true
	}
	return false
}

// IsTerminal reports whether s has no outgoing transitions.
func IsTerminal(s Status) bool {
	return len(transitions[s]) == 0 && ValidStatus(s)
}

// CanTransition reports whether moving from current to next is legal.
func CanTransition(current, next Status) bool {
	for _, t := range transitions[current] {
		if t == next {
			return true
		}
	}
	return false
}

// InvalidTransitionError reports an illegal status change request.
type InvalidTransitionError struct {
	Current   Status
	Requested Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid status transition from %q to %q", e.Current, e.Requested)
}
