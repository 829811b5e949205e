package core

import (
	"errors"
	"fmt"
)

// ErrorKind classifies failures returned by the engine
type ErrorKind string

const (
	KindNotFound             ErrorKind = "not_found"
	KindInvalidTransition    ErrorKind = "invalid_transition"
	KindInsufficientStock    ErrorKind = "insufficient_stock"
	KindDuplicatePayment     ErrorKind = "duplicate_payment"
	KindValidationFailed     ErrorKind = "validation_failed"
	KindPreconditionFailed   ErrorKind = "precondition_failed"
	KindExternalGatewayError ErrorKind = "external_gateway_error"
	KindConflict             ErrorKind = "conflict"
	KindInternal             ErrorKind = "internal"
)

// Error is a typed engine error with an optional field map
type Error struct {
	Kind    ErrorKind         `json:"kind"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
	Err     error             `json:"-"`
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind, so errors.Is(err, ErrNotFound) works
// regardless of message.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind && t.Message == ""
}

// Sentinels for errors.Is
var (
	ErrNotFound             = &Error{Kind: KindNotFound}
	ErrInvalidTransition    = &Error{Kind: KindInvalidTransition}
	ErrInsufficientStock    = &Error{Kind: KindInsufficientStock}
	ErrDuplicatePayment     = &Error{Kind: KindDuplicatePayment}
	ErrValidationFailed     = &Error{Kind: KindValidationFailed}
	ErrPreconditionFailed   = &Error{Kind: KindPreconditionFailed}
	ErrExternalGatewayError = &Error{Kind: KindExternalGatewayError}
	ErrConflict             = &Error{Kind: KindConflict}
)

// KindOf returns the kind of err, or KindInternal for untyped errors
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// NotFound reports a missing entity
func NotFound(entity, id string) *Error {
	return &Error{
		Kind:    KindNotFound,
		Message: fmt.Sprintf("%s not found", entity),
		Fields:  map[string]string{"entity": entity, "id": id},
	}
}

// InvalidTransition reports a state change that the state machine forbids
func InvalidTransition(entity, from, to string) *Error {
	return &Error{
		Kind:    KindInvalidTransition,
		Message: fmt.Sprintf("%s cannot move from %s to %s", entity, from, to),
		Fields:  map[string]string{"from": from, "to": to},
	}
}

// InsufficientStock reports a withdrawal larger than the quantity on hand
func InsufficientStock(stockItemID, available, requested string) *Error {
	return &Error{
		Kind:    KindInsufficientStock,
		Message: "insufficient stock",
		Fields:  map[string]string{"stock_item_id": stockItemID, "available": available, "requested": requested},
	}
}

// Validation reports invalid input on a field
func Validation(field, message string) *Error {
	return &Error{
		Kind:    KindValidationFailed,
		Message: message,
		Fields:  map[string]string{"field": field},
	}
}

// Precondition reports an operation attempted in the wrong state
func Precondition(message string) *Error {
	return &Error{Kind: KindPreconditionFailed, Message: message}
}

// DuplicatePayment reports a payment that matches a recent one
func DuplicatePayment(existingID string) *Error {
	return &Error{
		Kind:    KindDuplicatePayment,
		Message: "an identical payment was created less than 5 minutes ago",
		Fields:  map[string]string{"existing_payment_id": existingID},
	}
}

// Gateway wraps a payment processor failure
func Gateway(message string, err error) *Error {
	return &Error{Kind: KindExternalGatewayError, Message: message, Err: err}
}

// Conflict reports a lost race on a unique key or lock
func Conflict(message string, err error) *Error {
	return &Error{Kind: KindConflict, Message: message, Err: err}
}
