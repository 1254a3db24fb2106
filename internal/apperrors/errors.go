// Package apperrors carries the error taxonomy shared by services and the
// HTTP layer. Every service failure is one of five kinds; the handler layer
// maps kinds to status codes and never leaks anything beyond the stable
// message string.
package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an application error.
type Kind int

const (
	// KindValidation is malformed, missing or inconsistent input (400).
	KindValidation Kind = iota
	// KindNotFound means a referenced entity is absent (404).
	KindNotFound
	// KindForbidden means the requester is authenticated but not authorized
	// for this entity (403).
	KindForbidden
	// KindConflict means state already satisfies or conflicts with the
	// request (409).
	KindConflict
	// KindInternal is a storage or external-service failure (500).
	KindInternal
)

// Error is an application error with a stable, user-visible message.
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

func (e *Error) Unwrap() error {
	return e.Err
}

// Validation returns a KindValidation error with the given message.
func Validation(message string) error {
	return &Error{Kind: KindValidation, Message: message}
}

// NotFound returns a KindNotFound error with the given message.
func NotFound(message string) error {
	return &Error{Kind: KindNotFound, Message: message}
}

// Forbidden returns a KindForbidden error with the given message.
func Forbidden(message string) error {
	return &Error{Kind: KindForbidden, Message: message}
}

// Conflict returns a KindConflict error with the given message.
func Conflict(message string) error {
	return &Error{Kind: KindConflict, Message: message}
}

// Internal wraps a lower-level failure. The message is what callers see;
// err is retained for logging via Unwrap.
func Internal(message string, err error) error {
	return &Error{Kind: KindInternal, Message: message, Err: err}
}

// Is lets errors.Is match two application errors by kind and message,
// so sentinel-style comparisons keep working across wrapping.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return e.Kind == t.Kind && e.Message == t.Message
}

// KindOf extracts the kind of err, defaulting to KindInternal for
// unclassified errors (storage failures, programming errors).
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// IsKind reports whether err is an application error of the given kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}

// UserMessage returns the stable message for err. Unclassified errors map to
// a generic message so internals never leak to clients.
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return "Internal server error"
}

// HTTPStatus maps err to the response status code.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindForbidden:
		return http.StatusForbidden
	case KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
