package cart

// EventKind classifies engine events.
type EventKind string

const (
	EventCartChanged       EventKind = "cart_changed"
	EventSynced            EventKind = "synced"
	EventCheckoutCompleted EventKind = "checkout_completed"
	EventOrderCancelled    EventKind = "order_cancelled"
	EventFailed            EventKind = "failed"
)

// Event is emitted after an operation completes or fails.
type Event struct {
	Kind    EventKind `json:"kind"`
	Op      string    `json:"op,omitempty"`
	OrderID string    `json:"order_id,omitempty"`
	Message string    `json:"message"`
	Err     error     `json:"-"`
}

// Transient reports whether the event should be shown to the user as a notice.
func (e Event) Transient() bool {
	return e.Kind != EventCartChanged
}
