package cart

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Sternrassler/pickup-client/internal/errs"
	"github.com/Sternrassler/pickup-client/pkg/remote"
	"github.com/go-playground/validator/v10"
)

// Catalog looks up catalog items for commands that need current prices or availability.
type Catalog interface {
	GetItem(ctx context.Context, id string) (*remote.CatalogItem, error)
}

// Command names.
const (
	CmdAddItem     = "addItem"
	CmdSetQuantity = "setQuantity"
	CmdRemoveItem  = "removeItem"
	CmdSyncDrafts  = "syncDrafts"
	CmdClearDrafts = "clearDrafts"
	CmdCheckout    = "checkout"
	CmdCancelOrder = "cancelOrder"
)

// AddItemArgs are the arguments of addItem.
type AddItemArgs struct {
	ItemID string `json:"item_id" validate:"required"`
}

// SetQuantityArgs are the arguments of setQuantity.
type SetQuantityArgs struct {
	LineID   string `json:"line_id" validate:"required"`
	Quantity int    `json:"quantity"`
}

// RemoveItemArgs are the arguments of removeItem.
type RemoveItemArgs struct {
	LineID string `json:"line_id" validate:"required"`
}

// CheckoutArgs are the arguments of checkout.
type CheckoutArgs struct {
	PickupTime string `json:"pickup_time" validate:"required,pickuptime"`
}

// CancelOrderArgs are the arguments of cancelOrder.
type CancelOrderArgs struct {
	OrderID string `json:"order_id" validate:"required"`
}

// CommandFunc runs one command against an engine. args is the raw JSON body.
type CommandFunc func(ctx context.Context, e *Engine, args json.RawMessage) (any, error)

// Commands is the dispatch table of user-facing cart commands.
type Commands struct {
	table    map[string]CommandFunc
	catalog  Catalog
	validate *validator.Validate
}

// NewValidator returns a validator with the pickuptime rule registered.
// It panics if the rule cannot be registered.
func NewValidator() *validator.Validate {
	v := validator.New()
	if err := v.RegisterValidation("pickuptime", ValidatePickupTimeField); err != nil {
		panic(fmt.Sprintf("register pickuptime validation: %v", err))
	}
	return v
}

// ValidatePickupTimeField is the validator.Func behind the pickuptime tag.
func ValidatePickupTimeField(fl validator.FieldLevel) bool {
	return ValidPickupTime(fl.Field().String())
}

// NewCommands builds the dispatch table. addItem resolves name, price and
// availability through catalog.
func NewCommands(catalog Catalog) *Commands {
	c := &Commands{
		catalog:  catalog,
		validate: NewValidator(),
	}
	c.table = map[string]CommandFunc{
		CmdAddItem:     c.addItem,
		CmdSetQuantity: c.setQuantity,
		CmdRemoveItem:  c.removeItem,
		CmdSyncDrafts:  c.syncDrafts,
		CmdClearDrafts: c.clearDrafts,
		CmdCheckout:    c.checkout,
		CmdCancelOrder: c.cancelOrder,
	}
	return c
}

// Names returns the registered command names.
func (c *Commands) Names() []string {
	names := make([]string, 0, len(c.table))
	for name := range c.table {
		names = append(names, name)
	}
	return names
}

// Dispatch runs the named command.
func (c *Commands) Dispatch(ctx context.Context, e *Engine, name string, args json.RawMessage) (any, error) {
	fn, ok := c.table[name]
	if !ok {
		return nil, errs.Mark(errs.Newf("command %q", name), ErrUnknownCommand)
	}
	return fn(ctx, e, args)
}

// decode unmarshals and validates args into dst. Empty args decode as {}.
func (c *Commands) decode(args json.RawMessage, dst any) error {
	if len(args) == 0 {
		args = json.RawMessage("{}")
	}
	if err := json.Unmarshal(args, dst); err != nil {
		return errs.Mark(errs.Wrap(err, "decode arguments"), ErrValidationFailed)
	}
	if err := c.validate.Struct(dst); err != nil {
		return errs.Mark(errs.Wrap(err, "invalid arguments"), ErrValidationFailed)
	}
	return nil
}

func (c *Commands) addItem(ctx context.Context, e *Engine, args json.RawMessage) (any, error) {
	var a AddItemArgs
	if err := c.decode(args, &a); err != nil {
		return nil, err
	}

	item, err := c.catalog.GetItem(ctx, a.ItemID)
	if err != nil {
		if errs.Is(err, remote.ErrNotFound) {
			return nil, errs.Mark(err, ErrNotFound)
		}
		return nil, errs.Wrap(err, "get item")
	}
	if !item.Available {
		return nil, validationFailed(item.Name + " is currently unavailable")
	}

	line, err := e.AddItem(ctx, item.ID, item.Name, item.Price)
	if err != nil {
		return nil, err
	}
	return line, nil
}

func (c *Commands) setQuantity(ctx context.Context, e *Engine, args json.RawMessage) (any, error) {
	var a SetQuantityArgs
	if err := c.decode(args, &a); err != nil {
		return nil, err
	}
	if err := e.SetQuantity(ctx, a.LineID, a.Quantity); err != nil {
		return nil, err
	}
	return e.View(), nil
}

func (c *Commands) removeItem(ctx context.Context, e *Engine, args json.RawMessage) (any, error) {
	var a RemoveItemArgs
	if err := c.decode(args, &a); err != nil {
		return nil, err
	}
	if err := e.RemoveItem(ctx, a.LineID); err != nil {
		return nil, err
	}
	return e.View(), nil
}

func (c *Commands) syncDrafts(ctx context.Context, e *Engine, _ json.RawMessage) (any, error) {
	if _, err := e.SyncDrafts(ctx); err != nil {
		return nil, err
	}
	return e.View(), nil
}

func (c *Commands) clearDrafts(ctx context.Context, e *Engine, _ json.RawMessage) (any, error) {
	if err := e.ClearDrafts(ctx); err != nil {
		return nil, err
	}
	return e.View(), nil
}

func (c *Commands) checkout(ctx context.Context, e *Engine, args json.RawMessage) (any, error) {
	var a CheckoutArgs
	if err := c.decode(args, &a); err != nil {
		return nil, err
	}
	return e.Checkout(ctx, a.PickupTime)
}

func (c *Commands) cancelOrder(ctx context.Context, e *Engine, args json.RawMessage) (any, error) {
	var a CancelOrderArgs
	if err := c.decode(args, &a); err != nil {
		return nil, err
	}
	return e.CancelOrder(ctx, a.OrderID)
}
