package model

import (
	"errors"
	"fmt"
)

// ErrorKind tells callers how to react to a failure.
type ErrorKind string

const (
	KindValidation        ErrorKind = "validation"
	KindNotFound          ErrorKind = "not_found"
	KindInsufficientStock ErrorKind = "insufficient_stock"
	KindConflict          ErrorKind = "conflict"
	KindTransient         ErrorKind = "transient"
	KindInternal          ErrorKind = "internal"
)

// Error is the failure type returned by the service layer. Message is safe
// to show to a client; Err keeps the underlying cause for logs.
type Error struct {
	Kind    ErrorKind
	Message string
	Details map[string]string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil && e.Kind != KindInternal && e.Kind != KindTransient {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Retryable reports whether the whole operation may be retried as is.
func (e *Error) Retryable() bool { return e.Kind == KindTransient }

// KindOf returns the kind of err, or KindInternal for untyped errors.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

func Validation(msg string, details map[string]string) *Error {
	return &Error{Kind: KindValidation, Message: msg, Details: details}
}

func NotFound(format string, args ...any) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

func Conflict(format string, args ...any) *Error {
	return &Error{Kind: KindConflict, Message: fmt.Sprintf(format, args...)}
}

// InsufficientStock names the product that could not cover the request.
func InsufficientStock(productID int64, name string, available, requested int) *Error {
	return &Error{
		Kind:    KindInsufficientStock,
		Message: fmt.Sprintf("product %q (id %d) has %d in stock, %d requested", name, productID, available, requested),
		Details: map[string]string{
			"product_id": fmt.Sprint(productID),
			"available":  fmt.Sprint(available),
			"requested":  fmt.Sprint(requested),
		},
	}
}

func Transient(err error) *Error {
	return &Error{Kind: KindTransient, Message: "data store temporarily unavailable, retry the request", Err: err}
}

func Internal(err error) *Error {
	return &Error{Kind: KindInternal, Message: "internal error", Err: err}
}
