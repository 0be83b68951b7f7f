// Package apperr defines the error kinds shared by every bounded context.
//
// A business failure is an *Error carrying a stable Kind and a message that is
// safe to show to the caller. Infrastructure failures are plain wrapped errors
// and are reported as KindInternal.
package apperr

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindValidation         Kind = "validation_error"
	KindInsufficientStock  Kind = "insufficient_stock"
	KindAmountMismatch     Kind = "amount_mismatch"
	KindCouponInvalid      Kind = "coupon_invalid"
	KindCouponRequiresAuth Kind = "coupon_requires_auth"
	KindOrderNotFound      Kind = "order_not_found"
	KindProductNotFound    Kind = "product_not_found"
	KindUnauthorized       Kind = "unauthorized"
	KindForbidden          Kind = "forbidden"
	KindSignatureMismatch  Kind = "signature_mismatch"
	KindInvalidStatus      Kind = "invalid_status"
	KindConflict           Kind = "conflict"
	KindInternal           Kind = "internal"
)

// Sentinels for errors.Is. Any *Error matches the sentinel of its kind.
var (
	ErrValidation         = &Error{Kind: KindValidation}
	ErrInsufficientStock  = &Error{Kind: KindInsufficientStock}
	ErrAmountMismatch     = &Error{Kind: KindAmountMismatch}
	ErrCouponInvalid      = &Error{Kind: KindCouponInvalid}
	ErrCouponRequiresAuth = &Error{Kind: KindCouponRequiresAuth}
	ErrOrderNotFound      = &Error{Kind: KindOrderNotFound}
	ErrProductNotFound    = &Error{Kind: KindProductNotFound}
	ErrUnauthorized       = &Error{Kind: KindUnauthorized}
	ErrForbidden          = &Error{Kind: KindForbidden}
	ErrSignatureMismatch  = &Error{Kind: KindSignatureMismatch}
	ErrInvalidStatus      = &Error{Kind: KindInvalidStatus}
	ErrConflict           = &Error{Kind: KindConflict}
)

type Error struct {
	Kind    Kind
	Message string
	Fields  map[string]any
	Err     error
}

func (e *Error) Error() string {
	switch {
	case e.Message == "" && e.Err == nil:
		return string(e.Kind)
	case e.Err == nil:
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	default:
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports kind equality so callers can match against the package sentinels.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func Wrap(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Message: msg, Err: err}
}

func (e *Error) With(key string, value any) *Error {
	fields := make(map[string]any, len(e.Fields)+1)
	for k, v := range e.Fields {
		fields[k] = v
	}
	fields[key] = value
	return &Error{Kind: e.Kind, Message: e.Message, Fields: fields, Err: e.Err}
}

// KindOf returns the kind of the first *Error in err's chain, or KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

func Validation(format string, args ...any) *Error {
	return Newf(KindValidation, format, args...)
}

func InsufficientStock(productID string, available, requested int) *Error {
	return Newf(KindInsufficientStock, "product %s has %d in stock, %d requested", productID, available, requested).
		With("product_id", productID).
		With("available", available).
		With("requested", requested)
}

func OrderNotFound(id string) *Error {
	return Newf(KindOrderNotFound, "order %s not found", id).With("order_id", id)
}

func ProductNotFound(id string) *Error {
	return Newf(KindProductNotFound, "product %s not found", id).With("product_id", id)
}
