package skein

import "github.com/skeinhq/skein-go/internal/errors"

// Re-export error types from internal package

// SkeinError is the base interface for all skein errors.
type SkeinError = errors.SkeinError

// ConnectionError indicates an operation that needs an open connection could
// not run: the connection is absent, a connect attempt failed, or a teardown
// failed pending work.
type ConnectionError = errors.ConnectionError

// TimeoutError indicates a correlated action exceeded its deadline without a
// matching response.
type TimeoutError = errors.TimeoutError

// ProtocolError indicates the remote side reported a failure or an inbound
// frame could not be parsed.
type ProtocolError = errors.ProtocolError

// TransportError indicates the underlying stream or HTTP exchange failed.
type TransportError = errors.TransportError

// SocketClosedError reports why the stream stopped, carrying the close code
// from the wire when one was received.
type SocketClosedError = errors.SocketClosedError

// HTTPError indicates the HTTP API returned a non-2xx status.
type HTTPError = errors.HTTPError

// SchemaError indicates an action payload failed its registered schema.
type SchemaError = errors.SchemaError

// Re-export sentinel errors from internal package.
var (
	// ErrNotConnected indicates an operation required an open connection.
	ErrNotConnected = errors.ErrNotConnected

	// ErrClientClosed indicates the client has been closed and cannot be reused.
	ErrClientClosed = errors.ErrClientClosed

	// ErrConnectionClosed indicates the connection was torn down while the
	// operation was still pending.
	ErrConnectionClosed = errors.ErrConnectionClosed

	// ErrReconnectFailed indicates automatic reconnection exhausted its
	// attempt budget.
	ErrReconnectFailed = errors.ErrReconnectFailed

	// ErrRequestTimeout indicates a correlated action timed out.
	ErrRequestTimeout = errors.ErrRequestTimeout

	// ErrTransportNotConnected indicates the transport has no open stream.
	ErrTransportNotConnected = errors.ErrTransportNotConnected

	// ErrMissingURL indicates no endpoint URL was configured.
	ErrMissingURL = errors.ErrMissingURL
)
