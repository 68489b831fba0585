package authapi

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors
var (
	// ErrUnauthorized is returned when the server rejects the credentials
	// or token (HTTP 401/403).
	ErrUnauthorized = errors.New("unauthorized")

	// ErrUnavailable is returned when the server could not be reached or
	// failed on its side (network errors, timeouts, HTTP 5xx/408/429).
	ErrUnavailable = errors.New("auth server unavailable")

	// ErrRejected is returned for any other non successful status.
	ErrRejected = errors.New("request rejected")

	// ErrInvalidPayload is returned when a successful response carries no
	// usable data.
	ErrInvalidPayload = errors.New("invalid response payload")

	// ErrInvalidRequest is returned when a payload fails client side
	// validation. Nothing is sent in that case.
	ErrInvalidRequest = errors.New("invalid request")
)

// Error describes a failed Auth Gateway call.
type Error struct {
	// Op is the gateway operation: login, register, refresh or logout.
	Op string
	// StatusCode is the HTTP status, zero when no response was received.
	StatusCode int
	// Code and Message come from the response envelope when present.
	Code    int
	Message string
	// Err is one of the sentinel errors, possibly joined with a cause.
	Err error
}

func (e *Error) Error() string {
	switch {
	case e.StatusCode == 0:
		return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
	case e.Message != "":
		return fmt.Sprintf("%s failed: %s (HTTP %d)", e.Op, e.Message, e.StatusCode)
	default:
		return fmt.Sprintf("%s failed: %v (HTTP %d)", e.Op, e.Err, e.StatusCode)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

func statusError(status int) error {
	switch {
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		return ErrUnauthorized
	case status >= 500, status == http.StatusRequestTimeout, status == http.StatusTooManyRequests:
		return ErrUnavailable
	default:
		return ErrRejected
	}
}
