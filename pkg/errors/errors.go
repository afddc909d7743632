// Package errors defines the sentinel errors and HTTP status mapping shared
// across the archive services.
package errors

import (
	"errors"
	"net/http"
)

var (
	ErrObjectNotFound  = errors.New("object not found")
	ErrListingFailed   = errors.New("object listing failed")
	ErrInvalidMessage  = errors.New("invalid queue message")
	ErrRoutingMismatch = errors.New("no projector for content type")
	ErrValidation      = errors.New("envelope validation failed")
	ErrEnqueueFailed   = errors.New("enqueue failed")
	ErrRunGuard        = errors.New("pagination run guard tripped")
	ErrUnauthorized    = errors.New("unauthorized")
	ErrInvalidInput    = errors.New("invalid input")
	ErrInternal        = errors.New("internal error")
	ErrTimeout         = errors.New("operation timed out")
)

// HTTPStatusCode maps an error to the HTTP status the trigger service should
// return for it, by the sentinel in its chain.
func HTTPStatusCode(err error) int {
	switch {
	case errors.Is(err, ErrObjectNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrInvalidMessage):
		return http.StatusBadRequest
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, ErrRunGuard):
		return http.StatusConflict
	case errors.Is(err, ErrListingFailed), errors.Is(err, ErrEnqueueFailed):
		return http.StatusBadGateway
	case errors.Is(err, ErrTimeout):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
