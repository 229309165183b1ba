// Package apierror defines the error kinds produced by the stock-count core and the
// JSON envelopes used to report them over HTTP.
// All errors returned to clients go through this package so that internal details
// (stack traces, DB errors, etc.) never leak.
package apierror

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a failure independently of the message attached to it.
type Kind string

const (
	KindValidation        Kind = "validation_error"
	KindPermissionDenied  Kind = "permission_denied"
	KindInvalidTransition Kind = "invalid_transition"
	KindNotFound          Kind = "not_found"
	KindConflict          Kind = "conflict"
	KindUnauthenticated   Kind = "unauthenticated"
)

// Error is the error value returned by services. It matches any other *Error of the
// same Kind under errors.Is, so callers compare against the Err* sentinels below.
type Error struct {
	Kind   Kind
	Msg    string
	Fields map[string]string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

var (
	ErrValidation        = &Error{Kind: KindValidation, Msg: "validation error"}
	ErrPermissionDenied  = &Error{Kind: KindPermissionDenied, Msg: "permission denied"}
	ErrInvalidTransition = &Error{Kind: KindInvalidTransition, Msg: "invalid transition"}
	ErrNotFound          = &Error{Kind: KindNotFound, Msg: "not found"}
	ErrConflict          = &Error{Kind: KindConflict, Msg: "conflict"}
	ErrUnauthenticated   = &Error{Kind: KindUnauthenticated, Msg: "authentication required"}
)

func Validation(msg string, fields map[string]string) *Error {
	return &Error{Kind: KindValidation, Msg: msg, Fields: fields}
}

func PermissionDenied(format string, args ...any) *Error {
	return &Error{Kind: KindPermissionDenied, Msg: fmt.Sprintf(format, args...)}
}

func InvalidTransition(entity string, from, to string) *Error {
	return &Error{Kind: KindInvalidTransition, Msg: fmt.Sprintf("%s: transition %s -> %s is not allowed", entity, from, to)}
}

func NotFound(entity string, id any) *Error {
	return &Error{Kind: KindNotFound, Msg: fmt.Sprintf("%s %v not found", entity, id)}
}

func Conflict(format string, args ...any) *Error {
	return &Error{Kind: KindConflict, Msg: fmt.Sprintf(format, args...)}
}

func Unauthenticated(msg string) *Error {
	return &Error{Kind: KindUnauthenticated, Msg: msg}
}

// Wrap attaches a kind to an underlying error.
func Wrap(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// KindOf returns the kind carried by err, or "" for errors that did not originate here.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// HTTPStatus maps a kind to its response status.
func HTTPStatus(kind Kind) int {
	switch kind {
	case KindValidation:
		return http.StatusUnprocessableEntity
	case KindPermissionDenied:
		return http.StatusForbidden
	case KindInvalidTransition, KindConflict:
		return http.StatusConflict
	case KindNotFound:
		return http.StatusNotFound
	case KindUnauthenticated:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// APIError is the canonical error envelope for all 4xx/5xx HTTP responses.
type APIError struct {
	Detail string `json:"detail"`
	Code   Kind   `json:"code,omitempty"`
}

func New(msg string) *APIError {
	return &APIError{Detail: msg}
}

// ValidationError wraps multiple field errors.
type ValidationError struct {
	Detail string            `json:"detail"`
	Code   Kind              `json:"code"`
	Fields map[string]string `json:"fields"`
}

func NewValidation(fields map[string]string) *ValidationError {
	return &ValidationError{Detail: "validation error", Code: KindValidation, Fields: fields}
}

// Envelope converts err into a status code and response body. ok is false for errors
// without a kind; those must be logged and reported as a generic 500.
func Envelope(err error) (status int, body any, ok bool) {
	var e *Error
	if !errors.As(err, &e) {
		return http.StatusInternalServerError, New("internal server error"), false
	}
	status = HTTPStatus(e.Kind)
	if e.Kind == KindValidation && len(e.Fields) > 0 {
		return status, &ValidationError{Detail: e.Msg, Code: e.Kind, Fields: e.Fields}, true
	}
	return status, &APIError{Detail: e.Msg, Code: e.Kind}, true
}
