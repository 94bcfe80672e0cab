package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error for callers and for the HTTP layer.
type Kind string

const (
	KindInvalidInput      Kind = "InvalidInput"
	KindNotFound          Kind = "NotFound"
	KindForbidden         Kind = "Forbidden"
	KindUnauthorized      Kind = "Unauthorized"
	KindInsufficientStock Kind = "InsufficientStock"
	KindInsufficientFunds Kind = "InsufficientFunds"
	KindConflict          Kind = "Conflict"
	KindInternal          Kind = "Internal"
)

// Error is the error type returned by the store and service layers
type Error struct {
	Kind    Kind   `json:"code"`
	Message string `json:"error"`
	Details string `json:"details,omitempty"`
	Err     error  `json:"-"`
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

// HTTPStatus returns the status code the API responds with for this error
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case KindInvalidInput, KindInsufficientStock, KindInsufficientFunds:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindForbidden:
		return http.StatusForbidden
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func New(kind Kind, message, details string) *Error {
	return &Error{Kind: kind, Message: message, Details: details}
}

// Wrap attaches a kind and message to an underlying error
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

func InvalidInput(message string) *Error {
	return New(KindInvalidInput, message, "")
}

// NotFound reports a missing entity, e.g. NotFound("customer", "alice").
func NotFound(entity, ref string) *Error {
	return New(KindNotFound, fmt.Sprintf("%s not found", capitalize(entity)),
		fmt.Sprintf("%s: %s", entity, ref))
}

func Forbidden(message string) *Error {
	return New(KindForbidden, message, "")
}

func Unauthorized(message string) *Error {
	return New(KindUnauthorized, message, "")
}

func InsufficientStock(available, requested int) *Error {
	return New(KindInsufficientStock,
		fmt.Sprintf("Insufficient stock. Available stock: %d.", available),
		fmt.Sprintf("Available: %d, Requested: %d", available, requested))
}

// InsufficientFunds carries the shortfall so clients can tell how much to top up.
func InsufficientFunds(shortfall string) *Error {
	return New(KindInsufficientFunds, "Insufficient funds in wallet.",
		fmt.Sprintf("Shortfall: %s", shortfall))
}

// Conflict is the retryable failure for lost-update races.
func Conflict(message string, err error) *Error {
	return Wrap(KindConflict, message, err)
}

func Internal(message string, err error) *Error {
	return Wrap(KindInternal, message, err)
}

// KindOf returns the kind of the first *Error in err's chain, or KindInternal.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

func Is(err error, kind Kind) bool {
	if err == nil {
		return false
	}
	return KindOf(err) == kind
}

// From converts any error into an *Error, defaulting to Internal.
func From(err error) *Error {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return Internal("internal error", err)
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	if s[0] >= 'a' && s[0] <= 'z' {
		return string(s[0]-'a'+'A') + s[1:]
	}
	return s
}
