// Package cart implements the cart reconciliation engine: a unified cart over
// device-local drafts and remote cart rows, draft promotion, and checkout.
package cart

import (
	"context"
	"sync"

	"github.com/Sternrassler/pickup-client/internal/errs"
	"github.com/Sternrassler/pickup-client/pkg/order"
	"github.com/Sternrassler/pickup-client/pkg/remote"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Remote is the remote store capability the engine needs.
type Remote interface {
	ListCart(ctx context.Context, userID string) ([]remote.CartRow, error)
	InsertCartRows(ctx context.Context, rows []remote.CartRow) error
	UpdateCartQuantity(ctx context.Context, userID, rowID string, quantity int) error
	DeleteCartRow(ctx context.Context, userID, rowID string) error
	DeleteCartRows(ctx context.Context, userID string, rowIDs []string) (int64, error)
	ClearCart(ctx context.Context, userID string) error
	InsertOrder(ctx context.Context, o *remote.Order) error
	InsertOrderItems(ctx context.Context, items []remote.OrderItem) error
	GetOrder(ctx context.Context, id string) (*remote.Order, error)
	ListOrders(ctx context.Context, userID string) ([]remote.Order, error)
	TransitionOrder(ctx context.Context, id string, from, to order.Status) (*remote.Order, error)
}

// DraftPersistence loads and saves draft lines. Implemented by DraftStore.
type DraftPersistence interface {
	Load(ctx context.Context) ([]CartLine, error)
	Save(ctx context.Context, lines []CartLine) error
}

// CleanupStore loads and saves pending checkout cleanups. Implemented by Outbox.
type CleanupStore interface {
	Load(ctx context.Context) ([]Cleanup, error)
	Save(ctx context.Context, cleanups []Cleanup) error
}

// Config holds the engine configuration.
type Config struct {
	Drafts DraftPersistence // REQUIRED
	Outbox CleanupStore     // REQUIRED
	Remote Remote           // REQUIRED

	// Retry configures outbox flush retries
	Retry RetryConfig

	// OnEvent receives engine events. It runs while the engine lock is held
	// and must not call back into the engine.
	OnEvent func(Event)
}

// Engine is the cart of one session. All operations are serialized; remote
// calls are made while holding the lock so the displayed state is always
// the last confirmed one.
type Engine struct {
	mu sync.Mutex

	drafts  DraftPersistence
	outbox  CleanupStore
	remote  Remote
	retry   RetryConfig
	onEvent func(Event)
	logger  zerolog.Logger

	userID     string
	draftLines []CartLine
	synced     []CartLine
	cleanups   []Cleanup
}

// NewEngine creates an engine and loads persisted drafts and cleanups.
// Load failures are logged and the engine starts empty.
func NewEngine(ctx context.Context, cfg Config) (*Engine, error) {
	if cfg.Drafts == nil {
		return nil, errs.New("draft store is required")
	}
	if cfg.Outbox == nil {
		return nil, errs.New("outbox is required")
	}
	if cfg.Remote == nil {
		return nil, errs.New("remote store is required")
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = DefaultRetryConfig()
	}

	e := &Engine{
		drafts:  cfg.Drafts,
		outbox:  cfg.Outbox,
		remote:  cfg.Remote,
		retry:   cfg.Retry,
		onEvent: cfg.OnEvent,
		logger:  log.With().Str("component", "cart").Logger(),
	}

	lines, err := e.drafts.Load(ctx)
	if err != nil {
		e.logger.Warn().Err(err).Msg("Failed to load drafts, starting empty")
	}
	e.draftLines = lines

	cleanups, err := e.outbox.Load(ctx)
	if err != nil {
		e.logger.Warn().Err(err).Msg("Failed to load outbox, starting empty")
	}
	e.cleanups = cleanups
	outboxPending.Set(float64(len(e.cleanups)))

	return e, nil
}

// UserID returns the signed-in user, or "" when anonymous.
func (e *Engine) UserID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.userID
}

// SetUser switches the signed-in user and reloads synced lines.
// An empty userID signs out: synced lines are dropped, drafts stay.
func (e *Engine) SetUser(ctx context.Context, userID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.userID = userID
	e.synced = nil
	if userID == "" {
		e.emit(Event{Kind: EventCartChanged, Op: "setUser"})
		return nil
	}
	return e.refreshLocked(ctx)
}

// View returns a snapshot of the unified cart.
func (e *Engine) View() View {
	e.mu.Lock()
	defer e.mu.Unlock()
	return newView(e.userID, e.draftLines, e.synced, len(e.cleanups))
}

// Refresh flushes pending cleanups and reloads synced lines from the remote store.
func (e *Engine) Refresh(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.refreshLocked(ctx)
}

func (e *Engine) refreshLocked(ctx context.Context) error {
	if len(e.cleanups) > 0 {
		if _, err := e.flushLocked(ctx); err != nil {
			e.logger.Warn().Err(err).Msg("Outbox flush incomplete")
		}
	}
	if err := e.reloadLocked(ctx); err != nil {
		return e.fail("refresh", err)
	}
	e.emit(Event{Kind: EventCartChanged, Op: "refresh"})
	return nil
}

// reloadLocked replaces synced lines with the remote cart, hiding rows that
// belong to an already placed order awaiting cleanup.
func (e *Engine) reloadLocked(ctx context.Context) error {
	if e.userID == "" {
		e.synced = nil
		return nil
	}

	rows, err := e.remote.ListCart(ctx, e.userID)
	if err != nil {
		return errs.Wrap(err, "list remote cart")
	}

	hidden := make(map[string]bool)
	for _, c := range e.cleanups {
		for _, id := range c.RowIDs {
			hidden[id] = true
		}
	}

	synced := make([]CartLine, 0, len(rows))
	for _, row := range rows {
		if hidden[row.ID] || row.Quantity <= 0 {
			continue
		}
		synced = append(synced, lineFromRow(row))
	}
	e.synced = synced
	return nil
}

// AddItem adds one unit of an item as a draft. An existing draft line for
// the item is incremented; synced lines for the same item are left alone.
// Availability must be checked by the caller.
func (e *Engine) AddItem(ctx context.Context, itemID, name string, price int) (CartLine, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if itemID == "" {
		return CartLine{}, e.fail("addItem", validationFailed("item id is required"))
	}
	if price < 0 {
		return CartLine{}, e.fail("addItem", validationFailed("price must not be negative"))
	}

	next := append([]CartLine(nil), e.draftLines...)
	i := -1
	for j, l := range next {
		if l.ItemID == itemID {
			i = j
			break
		}
	}
	if i >= 0 {
		next[i].Quantity++
	} else {
		next = append(next, CartLine{
			ID:        uuid.NewString(),
			ItemID:    itemID,
			Name:      name,
			UnitPrice: price,
			Quantity:  1,
			Origin:    OriginDraft,
		})
		i = len(next) - 1
	}

	if err := e.saveDraftsLocked(ctx, next); err != nil {
		return CartLine{}, e.fail("addItem", err)
	}

	e.succeed("addItem", Event{Kind: EventCartChanged})
	return next[i], nil
}

// SetQuantity changes a line's quantity. A quantity of zero or less removes the line.
// Synced lines are updated remotely and only change locally after confirmation.
func (e *Engine) SetQuantity(ctx context.Context, lineID string, quantity int) error {
	if quantity <= 0 {
		return e.RemoveItem(ctx, lineID)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if i := indexOf(e.draftLines, lineID); i >= 0 {
		next := append([]CartLine(nil), e.draftLines...)
		next[i].Quantity = quantity
		if err := e.saveDraftsLocked(ctx, next); err != nil {
			return e.fail("setQuantity", err)
		}
		e.succeed("setQuantity", Event{Kind: EventCartChanged})
		return nil
	}

	i := indexOf(e.synced, lineID)
	if i < 0 {
		return e.fail("setQuantity", errs.Mark(errs.Newf("cart line %s", lineID), ErrNotFound))
	}

	if err := e.remote.UpdateCartQuantity(ctx, e.userID, lineID, quantity); err != nil {
		if !errs.Is(err, remote.ErrNotFound) {
			return e.fail("setQuantity", remoteWriteFailed(err, "update cart row"))
		}
		// The row is gone remotely; stop showing it.
		if rerr := e.reloadLocked(ctx); rerr != nil {
			e.logger.Warn().Err(rerr).Msg("Reload after missing cart row failed")
			e.synced = append(append([]CartLine(nil), e.synced[:i]...), e.synced[i+1:]...)
		}
		return e.fail("setQuantity", errs.Mark(errs.Wrapf(err, "cart line %s", lineID), ErrNotFound))
	}

	if err := e.reloadLocked(ctx); err != nil {
		e.logger.Warn().Err(err).Msg("Reload after confirmed update failed")
		e.synced[i].Quantity = quantity
	}
	e.succeed("setQuantity", Event{Kind: EventCartChanged})
	return nil
}

// RemoveItem removes a line. Synced lines are deleted remotely and only
// disappear locally after confirmation.
func (e *Engine) RemoveItem(ctx context.Context, lineID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if i := indexOf(e.draftLines, lineID); i >= 0 {
		next := append(append([]CartLine(nil), e.draftLines[:i]...), e.draftLines[i+1:]...)
		if err := e.saveDraftsLocked(ctx, next); err != nil {
			return e.fail("removeItem", err)
		}
		e.succeed("removeItem", Event{Kind: EventCartChanged})
		return nil
	}

	i := indexOf(e.synced, lineID)
	if i < 0 {
		return e.fail("removeItem", errs.Mark(errs.Newf("cart line %s", lineID), ErrNotFound))
	}

	err := e.remote.DeleteCartRow(ctx, e.userID, lineID)
	if err != nil && !errs.Is(err, remote.ErrNotFound) {
		return e.fail("removeItem", remoteWriteFailed(err, "delete cart row"))
	}

	if err := e.reloadLocked(ctx); err != nil {
		e.logger.Warn().Err(err).Msg("Reload after confirmed delete failed")
		e.synced = append(append([]CartLine(nil), e.synced[:i]...), e.synced[i+1:]...)
	}
	e.succeed("removeItem", Event{Kind: EventCartChanged})
	return nil
}

// SyncDrafts promotes every draft line to a remote cart row in one batch.
// Insertion is additive: a draft for an item already in the remote cart
// becomes a second row. On failure no drafts are cleared.
func (e *Engine) SyncDrafts(ctx context.Context) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.userID == "" {
		return 0, e.fail("syncDrafts", validationFailed("sign in to sync your cart"))
	}
	if len(e.draftLines) == 0 {
		return 0, nil
	}

	rows := make([]remote.CartRow, 0, len(e.draftLines))
	for _, l := range e.draftLines {
		rows = append(rows, remote.CartRow{
			ID:       uuid.NewString(),
			UserID:   e.userID,
			ItemID:   l.ItemID,
			Quantity: l.Quantity,
		})
	}

	if err := e.remote.InsertCartRows(ctx, rows); err != nil {
		return 0, e.fail("syncDrafts", remoteWriteFailed(err, "insert cart rows"))
	}

	synced := len(rows)
	e.draftLines = nil
	if err := e.drafts.Save(ctx, nil); err != nil {
		// The rows are remote now; a stale local copy would sync them twice.
		e.logger.Error().Err(err).Msg("Failed to clear synced drafts")
	}

	if err := e.reloadLocked(ctx); err != nil {
		return synced, e.fail("syncDrafts", err)
	}

	e.logger.Info().Str("user_id", e.userID).Int("lines", synced).Msg("Drafts synced")
	e.succeed("syncDrafts", Event{Kind: EventSynced, Message: "Cart synced"})
	return synced, nil
}

// ClearDrafts drops every draft line.
func (e *Engine) ClearDrafts(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.saveDraftsLocked(ctx, nil); err != nil {
		return e.fail("clearDrafts", err)
	}
	e.succeed("clearDrafts", Event{Kind: EventCartChanged})
	return nil
}

// saveDraftsLocked persists next and adopts it only when the write succeeds.
func (e *Engine) saveDraftsLocked(ctx context.Context, next []CartLine) error {
	if err := e.drafts.Save(ctx, next); err != nil {
		return errs.Wrap(err, "save drafts")
	}
	if len(next) == 0 {
		next = nil
	}
	e.draftLines = next
	return nil
}

// ListOrders returns the signed-in user's orders, newest first.
func (e *Engine) ListOrders(ctx context.Context) ([]remote.Order, error) {
	e.mu.Lock()
	userID := e.userID
	e.mu.Unlock()

	if userID == "" {
		return nil, validationFailed("sign in to see your orders")
	}
	orders, err := e.remote.ListOrders(ctx, userID)
	if err != nil {
		return nil, errs.Wrap(err, "list orders")
	}
	return orders, nil
}

func (e *Engine) emit(ev Event) {
	if e.onEvent != nil {
		e.onEvent(ev)
	}
}

func (e *Engine) succeed(op string, ev Event) {
	operationsTotal.WithLabelValues(op, "ok").Inc()
	ev.Op = op
	e.emit(ev)
}

func (e *Engine) fail(op string, err error) error {
	operationsTotal.WithLabelValues(op, "error").Inc()
	e.logger.Warn().Err(err).Str("operation", op).Msg("Cart operation failed")
	e.emit(Event{Kind: EventFailed, Op: op, Message: err.Error(), Err: err})
	return err
}
