// Package order defines order statuses and the transitions allowed between them.
package order

import "fmt"

// Status is the lifecycle state of an order.
type Status string

const (
	// StatusPending is the initial status set at checkout.
	StatusPending Status = "pending"

	// StatusConfirmed means staff accepted the order.
	StatusConfirmed Status = "confirmed"

	// StatusCompleted means the order was picked up.
	StatusCompleted Status = "completed"

	// StatusCancelled means the order was cancelled by the customer or staff.
	StatusCancelled Status = "cancelled"
)

var transitions = map[Status][]Status{
	StatusPending:   {StatusConfirmed, StatusCancelled},
	StatusConfirmed: {StatusCompleted, StatusCancelled},
}

// ParseStatus converts a string into a known Status.
func ParseStatus(s string) (Status, error) {
	switch st := Status(s); st {
	case StatusPending, StatusConfirmed, StatusCompleted, StatusCancelled:
		return st, nil
	default:
		return "", fmt.Errorf("unknown order status %q", s)
	}
}

// Terminal reports whether no further transition is possible.
func (s Status) Terminal() bool {
	return len(transitions[s]) == 0
}

// CanTransition reports whether staff may move an order from one status to another.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// CustomerCancellable reports whether the ordering customer may cancel an
// order in status s. Only pending orders qualify.
func CustomerCancellable(s Status) bool {
	return s == StatusPending
}
