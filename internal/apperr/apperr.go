package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrValidation         = errors.New("validation error")
	ErrInvalidTransition  = errors.New("invalid transition")
	ErrQuantityExceeded   = errors.New("quantity exceeded")
	ErrInsufficientCredit = errors.New("insufficient credit")
	ErrPermissionDenied   = errors.New("permission denied")
	ErrNotFound           = errors.New("not found")
	ErrUnauthenticated    = errors.New("unauthenticated")
)

// Validation wraps ErrValidation with a formatted message.
func Validation(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

func InvalidTransition(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidTransition, fmt.Sprintf(format, args...))
}

func QuantityExceeded(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrQuantityExceeded, fmt.Sprintf(format, args...))
}

func InsufficientCredit(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInsufficientCredit, fmt.Sprintf(format, args...))
}

func PermissionDenied(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrPermissionDenied, fmt.Sprintf(format, args...))
}

func NotFound(entity, id string) error {
	return fmt.Errorf("%w: %s %s", ErrNotFound, entity, id)
}

func Unauthenticated(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrUnauthenticated, fmt.Sprintf(format, args...))
}

// Kind returns the wire code of the first taxonomy error found in err's chain,
// or "INTERNAL" when err is not one of them.
func Kind(err error) string {
	switch {
	case errors.Is(err, ErrValidation):
		return "VALIDATION_ERROR"
	case errors.Is(err, ErrInvalidTransition):
		return "INVALID_TRANSITION"
	case errors.Is(err, ErrQuantityExceeded):
		return "QUANTITY_EXCEEDED"
	case errors.Is(err, ErrInsufficientCredit):
		return "INSUFFICIENT_CREDIT"
	case errors.Is(err, ErrPermissionDenied):
		return "PERMISSION_DENIED"
	case errors.Is(err, ErrNotFound):
		return "NOT_FOUND"
	case errors.Is(err, ErrUnauthenticated):
		return "UNAUTHENTICATED"
	default:
		return "INTERNAL"
	}
}

// HTTPStatus maps err to the status code the API answers with.
func HTTPStatus(err error) int {
	switch Kind(err) {
	case "VALIDATION_ERROR":
		return http.StatusBadRequest
	case "INVALID_TRANSITION":
		return http.StatusConflict
	case "QUANTITY_EXCEEDED", "INSUFFICIENT_CREDIT":
		return http.StatusUnprocessableEntity
	case "PERMISSION_DENIED":
		return http.StatusForbidden
	case "NOT_FOUND":
		return http.StatusNotFound
	case "UNAUTHENTICATED":
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}
