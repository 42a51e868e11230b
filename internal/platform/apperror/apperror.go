// Package apperror holds the sentinel errors shared by stores, services and
// handlers. Stores return them (optionally wrapped) for facts about records;
// services wrap them with context; handlers map them to HTTP statuses.
// Anything that is not one of these sentinels is treated as a storage fault
// and surfaces as a 500.
package apperror

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrUnavailable  = errors.New("unavailable")
	ErrValidation   = errors.New("validation failed")
	ErrConflict     = errors.New("invalid state")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
)

// NotFound wraps ErrNotFound with the kind and id of the missing record.
func NotFound(kind, id string) error {
	return fmt.Errorf("%w: %s %s", ErrNotFound, kind, id)
}

// Invalid wraps ErrValidation with a field-level message.
func Invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// Conflict wraps ErrConflict with a description of the rejected transition.
func Conflict(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConflict, fmt.Sprintf(format, args...))
}

// StatusCode returns the HTTP status matching err.
func StatusCode(err error) int {
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// HTTPError converts err into an echo.HTTPError. Storage faults are not
// echoed back to the client.
func HTTPError(err error) *echo.HTTPError {
	code := StatusCode(err)
	if code == http.StatusInternalServerError {
		return echo.NewHTTPError(code, "internal server error").SetInternal(err)
	}
	return echo.NewHTTPError(code, err.Error())
}
