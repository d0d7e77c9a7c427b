package cart

import (
	"context"
	"encoding/json"
	"sort"
	"testing"

	"github.com/Sternrassler/pickup-client/internal/errs"
	"github.com/Sternrassler/pickup-client/pkg/order"
	"github.com/Sternrassler/pickup-client/pkg/remote"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommands_Names(t *testing.T) {
	h := newHarness(t)
	names := NewCommands(h.remote).Names()
	sort.Strings(names)

	want := []string{CmdAddItem, CmdCancelOrder, CmdCheckout, CmdClearDrafts, CmdRemoveItem, CmdSetQuantity, CmdSyncDrafts}
	sort.Strings(want)
	assert.Equal(t, want, names)
}

func TestCommands_UnknownCommand(t *testing.T) {
	h := newHarness(t)
	_, err := NewCommands(h.remote).Dispatch(context.Background(), h.engine, "applyCoupon", nil)
	assert.True(t, errs.Is(err, ErrUnknownCommand))
}

func TestCommands_AddItemResolvesCatalog(t *testing.T) {
	h := newHarness(t)
	cmds := NewCommands(h.remote)
	ctx := context.Background()
	item := h.items["B"]

	out, err := cmds.Dispatch(ctx, h.engine, CmdAddItem, json.RawMessage(`{"item_id":"`+item.ID+`"}`))
	require.NoError(t, err)

	line, ok := out.(CartLine)
	require.True(t, ok)
	assert.Equal(t, "B", line.Name)
	assert.Equal(t, 50, line.UnitPrice)
	assert.Equal(t, OriginDraft, line.Origin)
}

func TestCommands_AddItemErrors(t *testing.T) {
	h := newHarness(t)
	cmds := NewCommands(h.remote)
	ctx := context.Background()
	_, err := h.remote.SetAvailability(ctx, h.items["C"].ID, false)
	require.NoError(t, err)

	tests := []struct {
		name string
		args string
		want error
	}{
		{"missing item id", `{}`, ErrValidationFailed},
		{"malformed json", `{"item_id":`, ErrValidationFailed},
		{"unknown item", `{"item_id":"nope"}`, ErrNotFound},
		{"unavailable item", `{"item_id":"` + h.items["C"].ID + `"}`, ErrValidationFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := cmds.Dispatch(ctx, h.engine, CmdAddItem, json.RawMessage(tt.args))
			assert.True(t, errs.Is(err, tt.want), "got %v", err)
		})
	}
	assert.Empty(t, h.engine.View().Lines)
}

func TestCommands_SetQuantityReturnsView(t *testing.T) {
	h := newHarness(t)
	cmds := NewCommands(h.remote)
	line := h.add(t, "A")

	out, err := cmds.Dispatch(context.Background(), h.engine, CmdSetQuantity,
		json.RawMessage(`{"line_id":"`+line.ID+`","quantity":4}`))
	require.NoError(t, err)

	v, ok := out.(View)
	require.True(t, ok)
	assert.Equal(t, 4, v.ItemCount)
	assert.Equal(t, 400, v.Total)
}

func TestCommands_CheckoutFlow(t *testing.T) {
	h := newHarness(t)
	cmds := NewCommands(h.remote)
	ctx := context.Background()
	h.signIn(t, "user-1")

	h.add(t, "A")
	_, err := cmds.Dispatch(ctx, h.engine, CmdSyncDrafts, nil)
	require.NoError(t, err)

	_, err = cmds.Dispatch(ctx, h.engine, CmdCheckout, json.RawMessage(`{"pickup_time":"7pm"}`))
	assert.True(t, errs.Is(err, ErrValidationFailed))

	out, err := cmds.Dispatch(ctx, h.engine, CmdCheckout, json.RawMessage(`{"pickup_time":"19:00"}`))
	require.NoError(t, err)
	placed, ok := out.(*remote.Order)
	require.True(t, ok)
	assert.Equal(t, 100, placed.TotalAmount)

	out, err = cmds.Dispatch(ctx, h.engine, CmdCancelOrder, json.RawMessage(`{"order_id":"`+placed.ID+`"}`))
	require.NoError(t, err)
	assert.Equal(t, order.StatusCancelled, out.(*remote.Order).Status)
}

func TestValidPickupTime(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"18:30", true},
		{"00:00", true},
		{"23:59", true},
		{"24:00", false},
		{"9:30", false},
		{"18:60", false},
		{"", false},
		{"18:30:00", false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := ValidPickupTime(tt.in); got != tt.want {
				t.Errorf("ValidPickupTime(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestNewValidator_PickupTimeTag(t *testing.T) {
	var v *validator.Validate
	require.NotPanics(t, func() { v = NewValidator() })
	assert.NoError(t, v.Struct(CheckoutArgs{PickupTime: "12:15"}))
	assert.Error(t, v.Struct(CheckoutArgs{PickupTime: "noon"}))
	assert.Error(t, v.Struct(CheckoutArgs{}))
}
