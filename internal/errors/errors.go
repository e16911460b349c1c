package errors

import (
	"errors"
	"fmt"
	"time"
)

// SkeinError is the base interface for all skein errors.
type SkeinError interface {
	error
	IsSkeinError() bool
}

// Compile-time verification that all error types implement SkeinError.
var (
	_ SkeinError = (*ConnectionError)(nil)
	_ SkeinError = (*TimeoutError)(nil)
	_ SkeinError = (*ProtocolError)(nil)
	_ SkeinError = (*TransportError)(nil)
	_ SkeinError = (*SocketClosedError)(nil)
	_ SkeinError = (*HTTPError)(nil)
	_ SkeinError = (*SchemaError)(nil)
)

// Sentinel errors for commonly checked conditions.
var (
	// ErrNotConnected indicates an operation required an open connection.
	ErrNotConnected = errors.New("not connected")

	// ErrClientClosed indicates the client has been closed and cannot be reused.
	ErrClientClosed = errors.New("client closed: clients are single-use, create a new one with New()")

	// ErrConnectionClosed indicates the connection was torn down while the
	// operation was still pending.
	ErrConnectionClosed = errors.New("connection closed")

	// ErrReconnectFailed indicates automatic reconnection exhausted its
	// attempt budget. The client stays in the Failed state until a manual
	// Connect call.
	ErrReconnectFailed = errors.New("reconnect attempts exhausted")

	// ErrRequestTimeout indicates a correlated request timed out.
	ErrRequestTimeout = errors.New("request timeout")

	// ErrTransportNotConnected indicates the transport has no open stream.
	ErrTransportNotConnected = errors.New("transport not connected")

	// ErrMissingURL indicates no endpoint URL was configured.
	ErrMissingURL = errors.New("no URL configured")
)

// ConnectionError indicates an operation that needs an open connection could
// not run: the connection is absent, a connect attempt failed, or a teardown
// failed pending work. The wrapped error carries the specific condition, so
// errors.Is(err, ErrNotConnected) and friends work through it.
type ConnectionError struct {
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connection error: %v", e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// IsSkeinError implements SkeinError.
func (e *ConnectionError) IsSkeinError() bool { return true }

// TimeoutError indicates a correlated request exceeded its deadline without a
// matching response frame.
type TimeoutError struct {
	Action  string
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("action %q timed out after %s", e.Action, e.Timeout)
}

func (e *TimeoutError) Unwrap() error {
	return ErrRequestTimeout
}

// IsSkeinError implements SkeinError.
func (e *TimeoutError) IsSkeinError() bool { return true }

// ProtocolError indicates the remote side reported a failure (Remote holds
// the server's error text) or an inbound frame could not be parsed (Err holds
// the decode error). Parse failures are surfaced as diagnostics only and never
// fail an in-flight caller.
type ProtocolError struct {
	Remote string
	Err    error
}

func (e *ProtocolError) Error() string {
	if e.Remote != "" {
		return fmt.Sprintf("remote error: %s", e.Remote)
	}

	if e.Err != nil {
		return fmt.Sprintf("protocol error: %v", e.Err)
	}

	return "remote error: action failed"
}

func (e *ProtocolError) Unwrap() error {
	return e.Err
}

// IsSkeinError implements SkeinError.
func (e *ProtocolError) IsSkeinError() bool { return true }

// TransportError indicates the underlying stream failed during an operation.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport %s failed: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsSkeinError implements SkeinError.
func (e *TransportError) IsSkeinError() bool { return true }

// SocketClosedError reports why the stream stopped, carrying the close code
// from the wire when one was received. Code 1006 is used for streams that
// died without a close handshake.
type SocketClosedError struct {
	Code   int
	Reason string
}

func (e *SocketClosedError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("socket closed (code %d): %s", e.Code, e.Reason)
	}

	return fmt.Sprintf("socket closed (code %d)", e.Code)
}

// Normal reports whether the close was a clean shutdown (normal closure or
// going away). Anything else triggers reconnection.
func (e *SocketClosedError) Normal() bool {
	return e.Code == 1000 || e.Code == 1001
}

// IsSkeinError implements SkeinError.
func (e *SocketClosedError) IsSkeinError() bool { return true }

// HTTPError indicates the request/response transport got a non-2xx reply.
// Body holds a truncated copy of the response body for diagnostics.
type HTTPError struct {
	Status int
	Body   string
}

func (e *HTTPError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("http status %d: %s", e.Status, e.Body)
	}

	return fmt.Sprintf("http status %d", e.Status)
}

// IsSkeinError implements SkeinError.
func (e *HTTPError) IsSkeinError() bool { return true }

// SchemaError indicates an action payload failed its registered schema before
// transmission.
type SchemaError struct {
	Action string
	Err    error
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("payload for action %q rejected by schema: %v", e.Action, e.Err)
}

func (e *SchemaError) Unwrap() error {
	return e.Err
}

// IsSkeinError implements SkeinError.
func (e *SchemaError) IsSkeinError() bool { return true }
