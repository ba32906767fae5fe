package session

import (
	"errors"
	"fmt"
)

// ConnectionError reports that a room connection could not be established:
// either the bound session lacks connection parameters, or the transport
// connect failed. It is returned only from Connect.
type ConnectionError struct {
	Message string
	Err     error
}

func (e *ConnectionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("connection error: %s: %v", e.Message, e.Err)
	}
	return fmt.Sprintf("connection error: %s", e.Message)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// SessionError reports that an operation requiring an active session was
// invoked without one, or that a publish through the transport failed.
type SessionError struct {
	Op      string
	Message string
	Err     error
}

func (e *SessionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("session error: %s: %s: %v", e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("session error: %s: %s", e.Op, e.Message)
}

func (e *SessionError) Unwrap() error { return e.Err }

// IsConnectionError reports whether err is (or wraps) a ConnectionError.
func IsConnectionError(err error) bool {
	var ce *ConnectionError
	return errors.As(err, &ce)
}

// IsSessionError reports whether err is (or wraps) a SessionError.
func IsSessionError(err error) bool {
	var se *SessionError
	return errors.As(err, &se)
}
