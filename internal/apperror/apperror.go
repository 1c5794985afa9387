// Package apperror models the error taxonomy every component in the hub
// raises, so the handler can translate any failure into a stable wire code
// without inspecting ad hoc string errors.
package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind string

const (
	InvalidInput        Kind = "invalid_input"
	PermissionDenied    Kind = "permission_denied"
	RateLimitExceeded   Kind = "rate_limit"
	InappropriateContent Kind = "inappropriate_content"
	NotFound            Kind = "not_found"
	Conflict             Kind = "conflict"
	Unauthorized        Kind = "unauthorized"
	Transient           Kind = "transient"
	Fatal               Kind = "fatal"
)

// Error is the typed error every component constructs for a domain failure.
// It wraps an underlying error (a driver error, a context deadline, ...) so
// errors.Is/errors.As keep working across the boundary.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf extracts the Kind of err, defaulting to Fatal for errors that were
// never classified (a programming omission, not a legitimate domain state).
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return Fatal
}

// httpStatus is the single lookup table mapping a Kind to the HTTP status a
// REST endpoint should answer with; WS code strings are the Kind value
// itself, per the wire protocol's {code, message} error frame shape.
var httpStatus = map[Kind]int{
	InvalidInput:         http.StatusBadRequest,
	PermissionDenied:     http.StatusForbidden,
	RateLimitExceeded:    http.StatusTooManyRequests,
	InappropriateContent: http.StatusUnprocessableEntity,
	NotFound:             http.StatusNotFound,
	Conflict:             http.StatusConflict,
	Unauthorized:         http.StatusUnauthorized,
	Transient:            http.StatusServiceUnavailable,
	Fatal:                http.StatusInternalServerError,
}

func HTTPStatus(kind Kind) int {
	if status, ok := httpStatus[kind]; ok {
		return status
	}
	return http.StatusInternalServerError
}
