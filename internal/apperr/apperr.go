// Package apperr defines the error kinds surfaced by the attendance services
// and their mapping onto HTTP status codes.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind int

const (
	KindInternal Kind = iota
	KindAuthenticationRequired
	KindAuthorizationDenied
	KindNotFound
	KindConflict
	KindNoMatch
	KindValidation
)

func (k Kind) String() string {
	switch k {
	case KindAuthenticationRequired:
		return "authentication_required"
	case KindAuthorizationDenied:
		return "authorization_denied"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindNoMatch:
		return "no_match"
	case KindValidation:
		return "validation_failed"
	default:
		return "internal"
	}
}

// HTTPStatus maps a kind onto the status code handlers respond with.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindAuthenticationRequired:
		return http.StatusUnauthorized
	case KindAuthorizationDenied:
		return http.StatusForbidden
	case KindNotFound, KindNoMatch:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindValidation:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// Error is a classified error with a stable machine-readable code.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func New(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

func Conflict(code, message string) *Error { return New(KindConflict, code, message) }

func NotFound(code, message string) *Error { return New(KindNotFound, code, message) }

func NoMatch(code, message string) *Error { return New(KindNoMatch, code, message) }

func Validation(code, message string) *Error { return New(KindValidation, code, message) }

func Unauthenticated(code, message string) *Error {
	return New(KindAuthenticationRequired, code, message)
}

func Forbidden(code, message string) *Error { return New(KindAuthorizationDenied, code, message) }

// Invalid builds a one-off validation error.
func Invalid(format string, args ...any) *Error {
	return New(KindValidation, "validation_failed", fmt.Sprintf(format, args...))
}

// Internal wraps an unexpected failure (store, broker) with context.
func Internal(op string, err error) *Error {
	return &Error{Kind: KindInternal, Code: "internal", Message: op, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain, or
// KindInternal for unclassified errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// CodeOf returns the code of the first *Error in err's chain.
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return "internal"
}

// Public returns the message safe to show to the caller. Internal errors
// never expose the wrapped cause.
func Public(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Kind != KindInternal {
		return e.Message
	}
	return "internal error"
}
