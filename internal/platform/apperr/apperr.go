// Package apperr defines the error kinds services return and how they map
// onto HTTP status codes.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindUnauthorized
	KindForbidden
	KindNotFound
	KindConflict
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindUnauthorized:
		return "unauthorized"
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	default:
		return "internal"
	}
}

// Store-level sentinels. Repositories wrap driver errors into these so
// services never inspect pgx or mongo errors directly.
var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("duplicate key")
)

// Error is a classified failure carrying a client-safe message.
type Error struct {
	Kind    Kind
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

func newf(kind Kind, format string, args ...interface{}) error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func Validation(format string, args ...interface{}) error {
	return newf(KindValidation, format, args...)
}

func Unauthorized(format string, args ...interface{}) error {
	return newf(KindUnauthorized, format, args...)
}

func Forbidden(format string, args ...interface{}) error {
	return newf(KindForbidden, format, args...)
}

func NotFound(format string, args ...interface{}) error {
	return newf(KindNotFound, format, args...)
}

// Conflict reports a state conflict. It is surfaced to clients as 400, the
// same as a validation failure, but stays distinguishable in logs and tests.
func Conflict(format string, args ...interface{}) error {
	return newf(KindConflict, format, args...)
}

// Internal wraps an unexpected failure. The message is what gets logged; the
// client only sees a generic message outside development.
func Internal(err error, format string, args ...interface{}) error {
	return &Error{Kind: KindInternal, Message: fmt.Sprintf(format, args...), Err: err}
}

// KindOf returns the kind of the first *Error in err's chain. Unclassified
// errors are internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Is reports whether err is classified as kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Message returns the client-safe message for err.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return "internal server error"
}

func HTTPStatus(kind Kind) int {
	switch kind {
	case KindValidation, KindConflict:
		return http.StatusBadRequest
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
