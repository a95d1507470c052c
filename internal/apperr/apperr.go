package apperr

import (
	"errors"
	"fmt"
)

// Kind enumerates the business error categories surfaced to callers.
type Kind string

const (
	KindValidation              Kind = "validation"
	KindNotFound                Kind = "not_found"
	KindForbidden               Kind = "forbidden"
	KindInvalidTransition       Kind = "invalid_transition"
	KindInvalidReturnTransition Kind = "invalid_return_transition"
	KindInsufficientStock       Kind = "insufficient_stock"
	KindWindowExpired           Kind = "cancellation_window_expired"
	KindInvoiceCancelled        Kind = "invoice_cancelled"
	KindAlreadyExists           Kind = "already_exists"
	KindInternal                Kind = "internal"
)

// Error carries a kind, a human-readable message and optional structured
// context. Internal causes are wrapped but never leak into the message.
type Error struct {
	Kind    Kind
	Message string
	Context map[string]any
	cause   error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// With adds a single context value and returns the error for chaining.
func (e *Error) With(key string, value any) *Error {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// New constructs an Error with the supplied kind and message.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf constructs an Error with a formatted message.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Validation flags malformed input tied to a single field.
func Validation(field, message string) *Error {
	return New(KindValidation, message).With("field", field)
}

// NotFound flags an absent order/return/invoice/product.
func NotFound(entity string, id int64) *Error {
	return Newf(KindNotFound, "%s not found", entity).With("id", id)
}

// Forbidden flags an actor lacking ownership or role.
func Forbidden(message string) *Error {
	return New(KindForbidden, message)
}

// InvalidTransition names the rejected from->to pair.
func InvalidTransition(from, to string) *Error {
	return Newf(KindInvalidTransition, "invalid order transition %s -> %s", from, to).
		With("from", from).With("to", to)
}

// InvalidReturnTransition names the rejected from->to pair.
func InvalidReturnTransition(from, to string) *Error {
	return Newf(KindInvalidReturnTransition, "invalid return transition %s -> %s", from, to).
		With("from", from).With("to", to)
}

// InsufficientStock names the product that could not be reserved.
func InsufficientStock(productID int64, requested int) *Error {
	return Newf(KindInsufficientStock, "insufficient stock for product %d", productID).
		With("product_id", productID).With("requested", requested)
}

// WindowExpired flags a pharmacy cancellation past its deadline.
func WindowExpired(orderID int64) *Error {
	return New(KindWindowExpired, "cancellation window has expired").With("order_id", orderID)
}

// InvoiceCancelled flags a payment against a cancelled invoice.
func InvoiceCancelled(invoiceID int64) *Error {
	return New(KindInvoiceCancelled, "invoice is cancelled").With("invoice_id", invoiceID)
}

// AlreadyExists flags a duplicate per-order resource.
func AlreadyExists(message string) *Error {
	return New(KindAlreadyExists, message)
}

// Internal wraps a persistence or transport failure. The cause stays out of
// the user-visible message.
func Internal(message string, cause error) *Error {
	return &Error{Kind: KindInternal, Message: message, cause: cause}
}

// From returns the Error for any error value, wrapping unexpected ones as
// internal.
func From(err error) *Error {
	if err == nil {
		return nil
	}
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return Internal("internal error", err)
}

// KindOf reports the kind of an arbitrary error.
func KindOf(err error) Kind {
	return From(err).Kind
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind == kind
	}
	return false
}
