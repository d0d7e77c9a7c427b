package remote

import (
	"context"
	"errors"
	"fmt"

	"github.com/Sternrassler/pickup-client/pkg/notify"
	"github.com/Sternrassler/pickup-client/pkg/order"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	// ErrNotFound indicates the requested row does not exist (or is not owned by the user).
	ErrNotFound = errors.New("record not found")

	// ErrStatusConflict indicates a conditional status update found a different current status.
	ErrStatusConflict = errors.New("order status changed concurrently")
)

// Store is the GORM implementation of the remote catalog, cart and order store.
// Order and catalog mutations are published to the configured notify.Publisher.
type Store struct {
	db        *gorm.DB
	publisher notify.Publisher
	logger    zerolog.Logger
}

// NewStore creates a new store. publisher may be nil.
func NewStore(db *gorm.DB, publisher notify.Publisher) *Store {
	return &Store{
		db:        db,
		publisher: publisher,
		logger:    log.With().Str("component", "remote").Logger(),
	}
}

// DB returns the underlying connection.
func (s *Store) DB() *gorm.DB {
	return s.db
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// publish sends a change after a committed write. Failures are logged only:
// the write already happened and notifications are advisory.
func (s *Store) publish(ctx context.Context, c notify.Change) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, c); err != nil {
		s.logger.Warn().Err(err).Str("table", string(c.Table)).Str("row_id", c.RowID).Msg("Failed to publish change")
	}
}

// ListItems returns the catalog, optionally restricted to one category.
func (s *Store) ListItems(ctx context.Context, category string) ([]CatalogItem, error) {
	var items []CatalogItem
	q := s.db.WithContext(ctx).Order("category, name")
	if category != "" {
		q = q.Where("category = ?", category)
	}
	if err := q.Find(&items).Error; err != nil {
		return nil, fmt.Errorf("failed to list items: %w", err)
	}
	return items, nil
}

// GetItem retrieves a catalog item by ID.
func (s *Store) GetItem(ctx context.Context, id string) (*CatalogItem, error) {
	var item CatalogItem
	if err := s.db.WithContext(ctx).First(&item, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("item %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get item %s: %w", id, err)
	}
	return &item, nil
}

// CreateItem adds an item to the catalog.
func (s *Store) CreateItem(ctx context.Context, item *CatalogItem) error {
	if item.ID == "" {
		item.ID = uuid.New().String()
	}
	if item.Price < 0 {
		return fmt.Errorf("item %s: negative price %d", item.ID, item.Price)
	}
	if err := s.db.WithContext(ctx).Create(item).Error; err != nil {
		return fmt.Errorf("failed to create item: %w", err)
	}
	return nil
}

// SetAvailability toggles whether an item can be ordered.
func (s *Store) SetAvailability(ctx context.Context, id string, available bool) (*CatalogItem, error) {
	res := s.db.WithContext(ctx).Model(&CatalogItem{}).Where("id = ?", id).Update("is_available", available)
	if res.Error != nil {
		return nil, fmt.Errorf("failed to update availability of %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, fmt.Errorf("item %s: %w", id, ErrNotFound)
	}

	s.publish(ctx, notify.AvailabilityChanged(id, available))
	return s.GetItem(ctx, id)
}

// ListCart returns the user's cart rows with their catalog items, oldest first.
func (s *Store) ListCart(ctx context.Context, userID string) ([]CartRow, error) {
	var rows []CartRow
	err := s.db.WithContext(ctx).
		Preload("Item").
		Where("user_id = ?", userID).
		Order("created_at, id").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list cart of %s: %w", userID, err)
	}
	return rows, nil
}

// InsertCartRows inserts rows in a single batch. Either every row is inserted or none.
func (s *Store) InsertCartRows(ctx context.Context, rows []CartRow) error {
	if len(rows) == 0 {
		return nil
	}
	for i := range rows {
		if rows[i].ID == "" {
			rows[i].ID = uuid.New().String()
		}
		if rows[i].Quantity <= 0 {
			return fmt.Errorf("cart row for item %s: non-positive quantity %d", rows[i].ItemID, rows[i].Quantity)
		}
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Omit(clause.Associations).Create(&rows).Error
	})
	if err != nil {
		return fmt.Errorf("failed to insert cart rows: %w", err)
	}
	return nil
}

// UpdateCartQuantity sets the quantity of one of the user's cart rows.
func (s *Store) UpdateCartQuantity(ctx context.Context, userID, rowID string, quantity int) error {
	if quantity <= 0 {
		return fmt.Errorf("cart row %s: non-positive quantity %d", rowID, quantity)
	}
	res := s.db.WithContext(ctx).
		Model(&CartRow{}).
		Where("id = ? AND user_id = ?", rowID, userID).
		Update("quantity", quantity)
	if res.Error != nil {
		return fmt.Errorf("failed to update cart row %s: %w", rowID, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("cart row %s: %w", rowID, ErrNotFound)
	}
	return nil
}

// DeleteCartRow deletes one of the user's cart rows.
func (s *Store) DeleteCartRow(ctx context.Context, userID, rowID string) error {
	res := s.db.WithContext(ctx).Delete(&CartRow{}, "id = ? AND user_id = ?", rowID, userID)
	if res.Error != nil {
		return fmt.Errorf("failed to delete cart row %s: %w", rowID, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("cart row %s: %w", rowID, ErrNotFound)
	}
	return nil
}

// DeleteCartRows deletes the listed rows of the user. Rows already gone are ignored.
func (s *Store) DeleteCartRows(ctx context.Context, userID string, rowIDs []string) (int64, error) {
	if len(rowIDs) == 0 {
		return 0, nil
	}
	res := s.db.WithContext(ctx).Delete(&CartRow{}, "user_id = ? AND id IN ?", userID, rowIDs)
	if res.Error != nil {
		return 0, fmt.Errorf("failed to delete cart rows: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// ClearCart deletes all of the user's cart rows.
func (s *Store) ClearCart(ctx context.Context, userID string) error {
	if err := s.db.WithContext(ctx).Delete(&CartRow{}, "user_id = ?", userID).Error; err != nil {
		return fmt.Errorf("failed to clear cart of %s: %w", userID, err)
	}
	return nil
}

// InsertOrder inserts the order row only; items are inserted with InsertOrderItems.
func (s *Store) InsertOrder(ctx context.Context, o *Order) error {
	if o.ID == "" {
		o.ID = uuid.New().String()
	}
	if o.Status == "" {
		o.Status = order.StatusPending
	}
	if err := s.db.WithContext(ctx).Omit(clause.Associations).Create(o).Error; err != nil {
		return fmt.Errorf("failed to insert order: %w", err)
	}

	s.publish(ctx, notify.OrderChanged(notify.EventInsert, o.ID, o.UserID, o.Status))
	return nil
}

// InsertOrderItems inserts all items of an order in one batch.
func (s *Store) InsertOrderItems(ctx context.Context, items []OrderItem) error {
	if len(items) == 0 {
		return nil
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Omit(clause.Associations).Create(&items).Error
	})
	if err != nil {
		return fmt.Errorf("failed to insert order items: %w", err)
	}
	return nil
}

// GetOrder retrieves an order with its items.
func (s *Store) GetOrder(ctx context.Context, id string) (*Order, error) {
	var o Order
	err := s.db.WithContext(ctx).Preload("Items.Item").First(&o, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("order %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get order %s: %w", id, err)
	}
	return &o, nil
}

// ListOrders returns the user's orders, newest first. An empty userID lists every order.
func (s *Store) ListOrders(ctx context.Context, userID string) ([]Order, error) {
	var orders []Order
	q := s.db.WithContext(ctx).Preload("Items.Item").Order("created_at DESC, id")
	if userID != "" {
		q = q.Where("user_id = ?", userID)
	}
	if err := q.Find(&orders).Error; err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	return orders, nil
}

// TransitionOrder moves an order from one status to another. The update is
// conditional on the current status so concurrent transitions cannot both win.
func (s *Store) TransitionOrder(ctx context.Context, id string, from, to order.Status) (*Order, error) {
	res := s.db.WithContext(ctx).
		Model(&Order{}).
		Where("id = ? AND status = ?", id, from).
		Update("status", to)
	if res.Error != nil {
		return nil, fmt.Errorf("failed to update order %s: %w", id, res.Error)
	}

	if res.RowsAffected == 0 {
		current, err := s.GetOrder(ctx, id)
		if err != nil {
			return nil, err
		}
		return current, fmt.Errorf("order %s is %s, not %s: %w", id, current.Status, from, ErrStatusConflict)
	}

	updated, err := s.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, notify.OrderChanged(notify.EventUpdate, updated.ID, updated.UserID, updated.Status))
	return updated, nil
}
