// Package notify carries order and catalog change notifications between the
// remote store and subscribed sessions.
package notify

import (
	"context"
	"errors"
	"time"

	"github.com/Sternrassler/pickup-client/pkg/order"
)

// Table names a remote table whose rows produce changes.
type Table string

const (
	TableOrders  Table = "orders"
	TableCatalog Table = "food_items"
)

// Event is the kind of row change.
type Event string

const (
	EventInsert Event = "INSERT"
	EventUpdate Event = "UPDATE"
	EventDelete Event = "DELETE"
)

// ErrEmptyFilter is returned when a subscription would receive nothing.
var ErrEmptyFilter = errors.New("notify: filter selects no changes")

// Change describes one changed row.
type Change struct {
	Table     Table        `json:"table"`
	Event     Event        `json:"event"`
	RowID     string       `json:"row_id"`
	UserID    string       `json:"user_id,omitempty"`
	Status    order.Status `json:"status,omitempty"`
	Available *bool        `json:"available,omitempty"`
	At        time.Time    `json:"at"`
}

// OrderChanged builds a change for an order row.
func OrderChanged(event Event, orderID, userID string, status order.Status) Change {
	return Change{
		Table:  TableOrders,
		Event:  event,
		RowID:  orderID,
		UserID: userID,
		Status: status,
		At:     time.Now().UTC(),
	}
}

// AvailabilityChanged builds a change for a catalog item's availability.
func AvailabilityChanged(itemID string, available bool) Change {
	return Change{
		Table:     TableCatalog,
		Event:     EventUpdate,
		RowID:     itemID,
		Available: &available,
		At:        time.Now().UTC(),
	}
}

// Filter selects the changes a subscriber receives.
type Filter struct {
	// UserID selects order changes for a single customer
	UserID string

	// AllOrders selects every order change (staff view)
	AllOrders bool

	// Catalog selects catalog availability changes
	Catalog bool
}

// Empty reports whether the filter selects nothing.
func (f Filter) Empty() bool {
	return f.UserID == "" && !f.AllOrders && !f.Catalog
}

// Matches reports whether c passes the filter.
func (f Filter) Matches(c Change) bool {
	switch c.Table {
	case TableOrders:
		return f.AllOrders || (f.UserID != "" && c.UserID == f.UserID)
	case TableCatalog:
		return f.Catalog
	default:
		return false
	}
}

// Handler is invoked for every matching change. Handlers run on the
// subscription's delivery goroutine and must not block for long.
type Handler func(Change)

// Subscription stays open until Close is called.
type Subscription interface {
	Close() error
}

// Publisher publishes changes.
type Publisher interface {
	Publish(ctx context.Context, c Change) error
}

// Bridge publishes changes and delivers them to subscribers.
type Bridge interface {
	Publisher
	Subscribe(ctx context.Context, f Filter, h Handler) (Subscription, error)
}
