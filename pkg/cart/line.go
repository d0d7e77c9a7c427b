package cart

import "github.com/Sternrassler/pickup-client/pkg/remote"

// Origin tells which store owns a cart line.
type Origin string

const (
	// OriginDraft lines live in the device-local draft store.
	OriginDraft Origin = "draft"

	// OriginSynced lines are rows in the remote cart.
	OriginSynced Origin = "synced"
)

// CartLine is one line of the unified cart.
type CartLine struct {
	ID        string `json:"id"`
	ItemID    string `json:"item_id"`
	Name      string `json:"name"`
	UnitPrice int    `json:"unit_price"`
	Quantity  int    `json:"quantity"`
	Origin    Origin `json:"origin"`
}

// Subtotal returns UnitPrice * Quantity.
func (l CartLine) Subtotal() int {
	return l.UnitPrice * l.Quantity
}

func lineFromRow(row remote.CartRow) CartLine {
	return CartLine{
		ID:        row.ID,
		ItemID:    row.ItemID,
		Name:      row.Item.Name,
		UnitPrice: row.Item.Price,
		Quantity:  row.Quantity,
		Origin:    OriginSynced,
	}
}

// View is a snapshot of the unified cart: drafts first, then synced lines.
type View struct {
	UserID    string     `json:"user_id,omitempty"`
	Lines     []CartLine `json:"lines"`
	ItemCount int        `json:"item_count"`
	Total     int        `json:"total"`

	// PendingCleanups counts checkouts whose remote cart still awaits deletion
	PendingCleanups int `json:"pending_cleanups,omitempty"`
}

func newView(userID string, drafts, synced []CartLine, pending int) View {
	v := View{
		UserID:          userID,
		Lines:           make([]CartLine, 0, len(drafts)+len(synced)),
		PendingCleanups: pending,
	}
	for _, group := range [][]CartLine{drafts, synced} {
		for _, l := range group {
			v.Lines = append(v.Lines, l)
			v.ItemCount += l.Quantity
			v.Total += l.Subtotal()
		}
	}
	return v
}

func total(lines []CartLine) int {
	sum := 0
	for _, l := range lines {
		sum += l.Subtotal()
	}
	return sum
}

func indexOf(lines []CartLine, id string) int {
	for i, l := range lines {
		if l.ID == id {
			return i
		}
	}
	return -1
}
