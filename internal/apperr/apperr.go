// Package apperr defines the error taxonomy shared by all session core
// services. Handlers map kinds to HTTP status codes; clients match on the
// stable code string.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an error with a stable, machine-readable code.
type Kind string

const (
	KindNotFound          Kind = "not_found"
	KindForbidden         Kind = "forbidden"
	KindInvalidState      Kind = "invalid_state"
	KindInvalidArgument   Kind = "invalid_argument"
	KindConflict          Kind = "conflict"
	KindResourceExhausted Kind = "resource_exhausted"
)

// Error carries a kind plus a human-readable message.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// New creates an Error with the given kind and message.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

// Newf creates an Error with a formatted message.
func Newf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func NotFound(msg string) *Error          { return New(KindNotFound, msg) }
func Forbidden(msg string) *Error         { return New(KindForbidden, msg) }
func InvalidState(msg string) *Error      { return New(KindInvalidState, msg) }
func InvalidArgument(msg string) *Error   { return New(KindInvalidArgument, msg) }
func Conflict(msg string) *Error          { return New(KindConflict, msg) }
func ResourceExhausted(msg string) *Error { return New(KindResourceExhausted, msg) }

// KindOf returns the kind of err, or "" if err carries no kind.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}
