package remote

import (
	"time"

	"github.com/Sternrassler/pickup-client/pkg/order"
)

// CatalogItem is an item on the menu.
type CatalogItem struct {
	ID        string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Name      string    `gorm:"not null" json:"name"`
	Category  string    `gorm:"index" json:"category"`
	Price     int       `gorm:"not null" json:"price"`
	Available bool      `gorm:"column:is_available;not null" json:"is_available"`
	ImageURL  string    `json:"image_url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName overrides the table name used by CatalogItem.
func (CatalogItem) TableName() string {
	return "food_items"
}

// CartRow is a server-side cart line owned by a user.
type CartRow struct {
	ID        string      `gorm:"primaryKey;type:varchar(36)" json:"id"`
	UserID    string      `gorm:"index;not null" json:"user_id"`
	ItemID    string      `gorm:"not null" json:"item_id"`
	Quantity  int         `gorm:"not null" json:"quantity"`
	CreatedAt time.Time   `json:"created_at"`
	Item      CatalogItem `gorm:"foreignKey:ItemID" json:"item"`
}

// TableName overrides the table name used by CartRow.
func (CartRow) TableName() string {
	return "carts"
}

// Order is a placed order.
type Order struct {
	ID          string       `gorm:"primaryKey;type:varchar(36)" json:"id"`
	UserID      string       `gorm:"index;not null" json:"user_id"`
	TotalAmount int          `gorm:"not null" json:"total_amount"`
	Status      order.Status `gorm:"type:varchar(16);index;not null" json:"status"`
	PickupTime  string       `gorm:"not null" json:"pickup_time"`
	CreatedAt   time.Time    `json:"created_at"`
	Items       []OrderItem  `gorm:"foreignKey:OrderID" json:"items,omitempty"`
}

// OrderItem is one line of an order. PriceAtTime is captured at checkout and never updated.
type OrderItem struct {
	ID          uint        `gorm:"primaryKey" json:"-"`
	OrderID     string      `gorm:"index;not null;type:varchar(36)" json:"order_id"`
	ItemID      string      `gorm:"not null" json:"item_id"`
	Quantity    int         `gorm:"not null" json:"quantity"`
	PriceAtTime int         `gorm:"not null" json:"price_at_time"`
	Item        CatalogItem `gorm:"foreignKey:ItemID" json:"item"`
}
