package cart

import (
	"context"
	"regexp"
	"time"

	"github.com/Sternrassler/pickup-client/internal/errs"
	"github.com/Sternrassler/pickup-client/pkg/order"
	"github.com/Sternrassler/pickup-client/pkg/remote"
	"github.com/google/uuid"
)

var pickupTimePattern = regexp.MustCompile(`^([01][0-9]|2[0-3]):[0-5][0-9]$`)

// ValidPickupTime reports whether s is a 24-hour HH:MM time of day.
func ValidPickupTime(s string) bool {
	return pickupTimePattern.MatchString(s)
}

// Checkout turns the synced lines into an order:
//  1. insert the order as pending
//  2. insert one order item per synced line at the line's current price
//  3. delete the user's remote cart
//
// A failing step halts the sequence. Steps 1 and 2 are not rolled back when
// step 3 fails; instead the checked-out rows are queued in the outbox, hidden
// from the cart, and deleted by a later FlushOutbox. That case returns a
// *CheckoutError carrying the order id, marked ErrCheckoutIncomplete.
func (e *Engine) Checkout(ctx context.Context, pickupTime string) (*remote.Order, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch {
	case e.userID == "":
		return nil, e.fail("checkout", validationFailed("sign in to check out"))
	case pickupTime == "":
		return nil, e.fail("checkout", validationFailed("pickup time is required"))
	case !ValidPickupTime(pickupTime):
		return nil, e.fail("checkout", validationFailed("pickup time must be HH:MM"))
	case len(e.synced) == 0:
		return nil, e.fail("checkout", validationFailed("cart has no synced items"))
	}

	lines := append([]CartLine(nil), e.synced...)
	o := &remote.Order{
		ID:          uuid.NewString(),
		UserID:      e.userID,
		TotalAmount: total(lines),
		Status:      order.StatusPending,
		PickupTime:  pickupTime,
	}

	if err := e.remote.InsertOrder(ctx, o); err != nil {
		checkoutFailuresTotal.WithLabelValues(string(StepOrder)).Inc()
		return nil, e.fail("checkout", &CheckoutError{
			Step: StepOrder,
			Err:  remoteWriteFailed(err, "insert order"),
		})
	}

	items := make([]remote.OrderItem, 0, len(lines))
	for _, l := range lines {
		items = append(items, remote.OrderItem{
			OrderID:     o.ID,
			ItemID:      l.ItemID,
			Quantity:    l.Quantity,
			PriceAtTime: l.UnitPrice,
		})
	}
	if err := e.remote.InsertOrderItems(ctx, items); err != nil {
		checkoutFailuresTotal.WithLabelValues(string(StepItems)).Inc()
		return nil, e.fail("checkout", &CheckoutError{
			OrderID: o.ID,
			Step:    StepItems,
			Err:     remoteWriteFailed(err, "insert order items"),
		})
	}
	o.Items = items
	checkoutAmount.Observe(float64(o.TotalAmount))

	if err := e.remote.ClearCart(ctx, e.userID); err != nil {
		checkoutFailuresTotal.WithLabelValues(string(StepClearCart)).Inc()
		e.queueCleanupLocked(ctx, o.ID, lines)
		e.synced = nil
		return o, e.fail("checkout", &CheckoutError{
			OrderID: o.ID,
			Step:    StepClearCart,
			Err:     errs.Mark(remoteWriteFailed(err, "clear remote cart"), ErrCheckoutIncomplete),
		})
	}

	e.synced = nil
	e.logger.Info().
		Str("order_id", o.ID).
		Str("user_id", o.UserID).
		Int("total", o.TotalAmount).
		Str("pickup_time", o.PickupTime).
		Msg("Checkout completed")
	e.succeed("checkout", Event{
		Kind:    EventCheckoutCompleted,
		OrderID: o.ID,
		Message: "Order placed",
	})
	return o, nil
}

func (e *Engine) queueCleanupLocked(ctx context.Context, orderID string, lines []CartLine) {
	ids := make([]string, 0, len(lines))
	for _, l := range lines {
		ids = append(ids, l.ID)
	}

	next := append(append([]Cleanup(nil), e.cleanups...), Cleanup{
		OrderID:  orderID,
		UserID:   e.userID,
		RowIDs:   ids,
		QueuedAt: time.Now().UTC(),
	})
	if err := e.outbox.Save(ctx, next); err != nil {
		e.logger.Error().Err(err).Str("order_id", orderID).Msg("Failed to persist cart cleanup")
	}
	// Kept in memory either way so this session still hides the rows.
	e.cleanups = next
	outboxPending.Set(float64(len(e.cleanups)))
}

// FlushOutbox deletes the rows of every pending cleanup, retrying each with
// backoff. Only the rows recorded at checkout are deleted. It returns the
// number of cleanups completed.
func (e *Engine) FlushOutbox(ctx context.Context) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.flushLocked(ctx)
}

func (e *Engine) flushLocked(ctx context.Context) (int, error) {
	if len(e.cleanups) == 0 {
		return 0, nil
	}

	var remaining []Cleanup
	var lastErr error
	done := 0
	for _, c := range e.cleanups {
		err := retryWithBackoff(ctx, "flush_outbox", e.retry, func() error {
			_, err := e.remote.DeleteCartRows(ctx, c.UserID, c.RowIDs)
			return err
		})
		if err != nil {
			c.Attempts++
			remaining = append(remaining, c)
			lastErr = err
			continue
		}
		done++
		e.logger.Info().Str("order_id", c.OrderID).Msg("Deferred cart cleanup completed")
	}

	if err := e.outbox.Save(ctx, remaining); err != nil {
		e.logger.Error().Err(err).Msg("Failed to persist outbox")
	}
	e.cleanups = remaining
	outboxPending.Set(float64(len(e.cleanups)))

	if lastErr != nil {
		return done, remoteWriteFailed(lastErr, "flush outbox")
	}
	return done, nil
}

// CancelOrder cancels one of the user's orders. Only pending orders can be
// cancelled; any other status returns ErrInvalidTransition and leaves the
// order unchanged.
func (e *Engine) CancelOrder(ctx context.Context, orderID string) (*remote.Order, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.userID == "" {
		return nil, e.fail("cancelOrder", validationFailed("sign in to cancel orders"))
	}

	o, err := e.remote.GetOrder(ctx, orderID)
	if err != nil {
		if errs.Is(err, remote.ErrNotFound) {
			return nil, e.fail("cancelOrder", errs.Mark(err, ErrNotFound))
		}
		return nil, e.fail("cancelOrder", errs.Wrap(err, "get order"))
	}
	if o.UserID != e.userID {
		return nil, e.fail("cancelOrder", errs.Mark(errs.Newf("order %s", orderID), ErrNotFound))
	}
	if !order.CustomerCancellable(o.Status) {
		return nil, e.fail("cancelOrder", errs.Mark(
			errs.Newf("order %s is %s", orderID, o.Status), ErrInvalidTransition))
	}

	updated, err := e.remote.TransitionOrder(ctx, orderID, order.StatusPending, order.StatusCancelled)
	if err != nil {
		if errs.Is(err, remote.ErrStatusConflict) {
			return nil, e.fail("cancelOrder", errs.Mark(err, ErrInvalidTransition))
		}
		return nil, e.fail("cancelOrder", remoteWriteFailed(err, "cancel order"))
	}

	e.succeed("cancelOrder", Event{
		Kind:    EventOrderCancelled,
		OrderID: orderID,
		Message: "Order cancelled",
	})
	return updated, nil
}
