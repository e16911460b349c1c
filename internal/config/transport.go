// Package config provides configuration and boundary types for skein.
package config

import "context"

// Close codes shared with RFC 6455. The machine sends CloseNormal on
// explicit disconnect; transports report CloseAbnormal for streams that died
// without a close handshake.
const (
	CloseNormal    = 1000
	CloseGoingAway = 1001
	CloseAbnormal  = 1006
)

// Transport defines the duplex stream the connection machine drives.
// Implement this to substitute the wire for testing or alternative
// transports; the default implementation dials gorilla/websocket.
//
// A Transport is reused across reconnects: Dial may be called again after
// the previous stream ended.
type Transport interface {
	// Dial opens the stream to url. It must not be called while a previous
	// stream from this Transport is still open.
	Dial(ctx context.Context, url string) error

	// ReadMessages returns the current stream's inbound frames and a
	// channel reporting why reading stopped. Both belong to the most recent
	// Dial; the error channel receives exactly one value per stream, a
	// *SocketClosedError when a close code is known.
	ReadMessages(ctx context.Context) (<-chan []byte, <-chan error)

	// SendMessage writes one frame to the stream.
	// This method must be safe for concurrent use.
	SendMessage(ctx context.Context, data []byte) error

	// Close shuts the stream down with a close code and reason.
	// It's safe to call Close multiple times.
	Close(code int, reason string) error
}
