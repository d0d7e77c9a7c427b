package cart

import (
	"fmt"

	"github.com/Sternrassler/pickup-client/internal/errs"
)

// Error classes. Operations mark their errors with one of these; test with errs.Is.
var (
	// ErrRemoteWriteFailed indicates an insert, update or delete against the remote store failed.
	ErrRemoteWriteFailed = errs.New("remote write failed")

	// ErrInvalidTransition indicates a status change from an illegal state.
	ErrInvalidTransition = errs.New("invalid order status transition")

	// ErrValidationFailed indicates invalid input or unmet preconditions.
	ErrValidationFailed = errs.New("validation failed")

	// ErrNotFound indicates an unknown cart line or order.
	ErrNotFound = errs.New("not found")

	// ErrCheckoutIncomplete indicates the order was placed but the remote cart was not cleared.
	ErrCheckoutIncomplete = errs.New("checkout incomplete")

	// ErrUnknownCommand indicates a command name missing from the dispatch table.
	ErrUnknownCommand = errs.New("unknown command")
)

// CheckoutStep identifies one step of the checkout sequence.
type CheckoutStep string

const (
	StepOrder     CheckoutStep = "insert_order"
	StepItems     CheckoutStep = "insert_items"
	StepClearCart CheckoutStep = "clear_cart"
)

// CheckoutError reports which checkout step failed. OrderID is set once the
// order row exists.
type CheckoutError struct {
	OrderID string
	Step    CheckoutStep
	Err     error
}

// Error implements the error interface.
func (e *CheckoutError) Error() string {
	if e.OrderID != "" {
		return fmt.Sprintf("checkout %s failed at %s: %v", e.OrderID, e.Step, e.Err)
	}
	return fmt.Sprintf("checkout failed at %s: %v", e.Step, e.Err)
}

// Unwrap returns the underlying error.
func (e *CheckoutError) Unwrap() error {
	return e.Err
}

func remoteWriteFailed(err error, msg string) error {
	return errs.Mark(errs.Wrap(err, msg), ErrRemoteWriteFailed)
}

func validationFailed(msg string) error {
	return errs.Mark(errs.New(msg), ErrValidationFailed)
}
