// Package apperrors holds the error taxonomy shared by repositories, services
// and handlers. Every domain failure wraps exactly one of the kind sentinels so
// callers classify with errors.Is and handlers map to a status code.
package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Kinds.
var (
	ErrValidation      = errors.New("validation error")
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrForbidden       = errors.New("forbidden")
	ErrNotFound        = errors.New("not found")
	ErrStateConflict   = errors.New("state conflict")
	ErrStorage         = errors.New("storage error")
)

// Error is a domain failure with a caller-safe message.
type Error struct {
	Kind    error
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Is lets errors.Is match both the kind and the wrapped cause.
func (e *Error) Is(target error) bool {
	return target == e.Kind
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newKind(kind error, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Validation creates a user-correctable input error.
func Validation(message string) *Error { return newKind(ErrValidation, message) }

// Unauthenticated creates a 401-class error.
func Unauthenticated(message string) *Error { return newKind(ErrUnauthenticated, message) }

// Forbidden creates a 403-class error.
func Forbidden(message string) *Error { return newKind(ErrForbidden, message) }

// NotFound creates a 404-class error.
func NotFound(message string) *Error { return newKind(ErrNotFound, message) }

// Conflict creates a state-conflict error.
func Conflict(message string) *Error { return newKind(ErrStateConflict, message) }

// Storage wraps a persistence failure. The message never reaches clients.
func Storage(op string, err error) *Error {
	return &Error{Kind: ErrStorage, Message: op, Err: err}
}

// Domain errors of the auth and checkout flows.
var (
	ErrEmailTaken            = Validation("Email already exist")
	ErrInvalidCredentials    = Unauthenticated("Invalid credentials")
	ErrInvalidToken          = Unauthenticated("Invalid token")
	ErrUserNotFound          = NotFound("User not found")
	ErrInvalidOrExpiredToken = Validation("Invalid or expired token")
	ErrEmptyCart             = Conflict("Cart is empty")
	ErrOrderNotFound         = NotFound("Order not found")
	ErrProductNotFound       = NotFound("Product not found")
	ErrCartItemNotFound      = NotFound("Item not found in cart")
)

// HTTPStatus returns the status code for err's kind; unknown errors are 500.
func HTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrValidation), errors.Is(err, ErrStateConflict):
		return http.StatusBadRequest
	case errors.Is(err, ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage returns the message safe to show a client, or fallback when
// err is a storage or unclassified failure.
func PublicMessage(err error, fallback string) string {
	var appErr *Error
	if errors.As(err, &appErr) && appErr.Kind != ErrStorage {
		return appErr.Message
	}
	return fallback
}
