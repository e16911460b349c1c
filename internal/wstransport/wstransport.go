package wstransport

import (
	"context"
	stderrors "errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/skeinhq/skein-go/internal/config"
	"github.com/skeinhq/skein-go/internal/errors"
)

// closeGraceTimeout bounds the write of the close frame during shutdown.
const closeGraceTimeout = time.Second

// Transport implements config.Transport over a WebSocket connection.
type Transport struct {
	log     *slog.Logger
	dialer  *websocket.Dialer
	headers http.Header

	mu      sync.Mutex // Protects conn replacement
	conn    *websocket.Conn
	writeMu sync.Mutex // Serializes frame writes; gorilla allows one writer
}

// Compile-time verification that Transport implements the Transport interface.
var _ config.Transport = (*Transport)(nil)

// New creates a WebSocket transport.
//
// The handshake timeout and extra handshake headers come from the options;
// the target URL is supplied per Dial so reconnects reuse the same transport.
func New(log *slog.Logger, options *config.Options) *Transport {
	headers := make(http.Header, len(options.Headers))
	for name, value := range options.Headers {
		headers.Set(name, value)
	}

	return &Transport{
		log: log.With("component", "wstransport"),
		dialer: &websocket.Dialer{
			HandshakeTimeout: options.ConnectTimeout,
		},
		headers: headers,
	}
}

// Dial establishes the WebSocket connection.
//
// A transport holds at most one connection. Dialing over a broken stream
// discards the old connection, so the state machine can reuse the transport
// across reconnects.
func (t *Transport) Dial(ctx context.Context, url string) error {
	t.log.Debug("Dialing", "url", url)

	conn, resp, err := t.dialer.DialContext(ctx, url, t.headers)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}

	if err != nil {
		t.log.Error("Dial failed", "url", url, "error", err)

		return &errors.TransportError{Op: "dial", Err: err}
	}

	t.mu.Lock()
	old := t.conn
	t.conn = conn
	t.mu.Unlock()

	if old != nil {
		_ = old.Close()
	}

	t.log.Debug("Connection established", "url", url)

	return nil
}

// ReadMessages reads frames from the connection.
//
// This method starts a goroutine that reads messages until the stream ends.
// Exactly one value is delivered on the error channel per stream: the close
// that ended it. Server closes arrive as *errors.SocketClosedError carrying
// the peer's close code; reads that fail without a close frame (dropped TCP
// connection, killed process) are reported as an abnormal closure (1006).
// The goroutine closes both channels when it exits.
func (t *Transport) ReadMessages(ctx context.Context) (<-chan []byte, <-chan error) {
	messages := make(chan []byte)
	errs := make(chan error, 1)

	t.mu.Lock()
	conn := t.conn
	t.mu.Unlock()

	if conn == nil {
		errs <- errors.ErrTransportNotConnected
		close(messages)
		close(errs)

		return messages, errs
	}

	go func() {
		defer close(messages)
		defer close(errs)
		defer t.log.Debug("Read loop stopped")

		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				errs <- translateReadError(err)

				return
			}

			select {
			case messages <- data:
			case <-ctx.Done():
				errs <- ctx.Err()

				return
			}
		}
	}()

	return messages, errs
}

// SendMessage writes one text frame to the connection.
//
// Safe for concurrent use. A context deadline bounds the underlying write.
func (t *Transport) SendMessage(ctx context.Context, data []byte) error {
	t.mu.Lock()
	conn := t.conn
	t.mu.Unlock()

	if conn == nil {
		return errors.ErrTransportNotConnected
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetWriteDeadline(deadline)
		defer func() { _ = conn.SetWriteDeadline(time.Time{}) }()
	}

	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		t.log.Error("Write failed", "error", err, "data_len", len(data))

		return &errors.TransportError{Op: "write", Err: err}
	}

	return nil
}

// Close sends a close frame with the given code and tears down the connection.
//
// Closing an already-closed transport is a no-op.
func (t *Transport) Close(code int, reason string) error {
	t.mu.Lock()
	conn := t.conn
	t.conn = nil
	t.mu.Unlock()

	if conn == nil {
		return nil
	}

	t.log.Debug("Closing connection", "code", code, "reason", reason)

	deadline := time.Now().Add(closeGraceTimeout)
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), deadline)

	return conn.Close()
}

// translateReadError maps a gorilla read error to the close that ended the
// stream. Errors without a close frame count as abnormal closure.
func translateReadError(err error) error {
	var closeErr *websocket.CloseError
	if stderrors.As(err, &closeErr) {
		return &errors.SocketClosedError{Code: closeErr.Code, Reason: closeErr.Text}
	}

	return &errors.SocketClosedError{Code: config.CloseAbnormal, Reason: err.Error()}
}
