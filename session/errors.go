package session

import (
	"errors"
	"fmt"
)

type (
	// Error is returned by every failed verification. Kind is one of the
	// sentinel errors below.
	Error struct {
		Kind  error
		cause error
	}
)

var (
	ErrNoSession    = errors.New("no session cookie")
	ErrMalformed    = errors.New("malformed session token")
	ErrBadSignature = errors.New("session token signature mismatch")
	ErrExpired      = errors.New("session token expired")
)

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("session: %v, cause %v", e.Kind, e.cause)
	}
	return fmt.Sprintf("session: %v", e.Kind)
}

func (e *Error) Unwrap() error { return e.Kind }

// IsUnauthenticated reports whether err came from verifying a session.
// Callers should treat every such error as "not logged in".
func IsUnauthenticated(err error) bool {
	var se *Error
	return errors.As(err, &se)
}

func fail(kind error, cause error) error {
	return &Error{Kind: kind, cause: cause}
}
