package models

import (
	"errors"
	"fmt"
)

// ErrUnauthenticated marks a push channel closed by the sensor because
// the bearer token was missing or invalid. Unlike ordinary channel
// failures it is not retried; the session fails until acknowledged.
var ErrUnauthenticated = errors.New("unauthenticated")

// ChannelError wraps a push channel failure for one class. Channel errors
// are expected during normal operation and feed the reconnect loop; they
// are never fatal to the engine.
type ChannelError struct {
	Class string
	Op    string // dial, read, close
	Err   error
}

func (e *ChannelError) Error() string {
	return fmt.Sprintf("channel %s %s: %v", e.Class, e.Op, e.Err)
}

func (e *ChannelError) Unwrap() error { return e.Err }

// SnapshotError wraps a snapshot fetch or decode failure. Existing state
// is kept; the next poll retries.
type SnapshotError struct {
	Class  string
	Status int // HTTP status when the backend answered, 0 otherwise
	Err    error
}

func (e *SnapshotError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("snapshot %s: status %d: %v", e.Class, e.Status, e.Err)
	}
	return fmt.Sprintf("snapshot %s: %v", e.Class, e.Err)
}

func (e *SnapshotError) Unwrap() error { return e.Err }

// ControlError reports a rejected session command: an illegal state
// transition or a backend control refusal. The session state is left
// unchanged unless Fatal is set, in which case the session moved to
// Errored.
type ControlError struct {
	Class  string
	Op     string // start, stop, ack-error
	Reason string
	Fatal  bool
}

func (e *ControlError) Error() string {
	return fmt.Sprintf("control %s %s: %s", e.Op, e.Class, e.Reason)
}

// InternalInvariantError marks a state the engine considers impossible.
// Debug builds panic on it; production logs it and drops the offending
// message.
type InternalInvariantError struct {
	Detail string
}

func (e *InternalInvariantError) Error() string {
	return fmt.Sprintf("internal invariant violated: %s", e.Detail)
}

// ErrorResponse formalizes error messages returned to API clients.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
