package session

import (
	"errors"
	"fmt"
)

var (
	// ErrProtocol is matched by every *ProtocolError.
	ErrProtocol = errors.New("auth response violates the session protocol")

	// ErrSessionExpired means the refresh token outlived its own expiry and
	// the session was torn down.
	ErrSessionExpired = errors.New("session expired")

	// ErrSessionInvalid means a renewal was rejected before the refresh token
	// expired and the session was torn down.
	ErrSessionInvalid = errors.New("session no longer valid")

	// ErrNotAuthenticated is returned by Token when there is no usable access
	// token after trying to ensure the session.
	ErrNotAuthenticated = errors.New("not authenticated")
)

// ProtocolError reports an Auth Gateway response that is missing, or has an
// unusable value for, a field the session needs.
type ProtocolError struct {
	Field  string
	Reason string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("%s: %s %s", ErrProtocol, e.Field, e.Reason)
}

func (e *ProtocolError) Unwrap() error {
	return ErrProtocol
}
