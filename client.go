package skein

import (
	"context"
	"encoding/json"
	"iter"
	"time"
)

// Client is the public surface of the skein runtime: one streaming
// connection carrying correlated actions and channel subscriptions, plus the
// service's HTTP API.
//
// A Client multiplexes concurrent SendAction calls and channel handlers over
// a single stream. Subscriptions survive reconnects; pending actions do not.
//
// Lifecycle: clients are single-use. After Close(), create a new client with
// New().
//
// Example usage:
//
//	client, err := skein.New(
//	    skein.WithURL("wss://example.com/stream"),
//	    skein.WithLogger(slog.Default()),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	if err := client.Connect(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
//	// Fire a correlated action and wait for its reply.
//	data, err := client.SendAction(ctx, "status", nil, 5*time.Second)
//
//	// Or consume a channel as an iterator.
//	for msg, err := range client.Listen(ctx, "ticker") {
//	    if err != nil {
//	        break
//	    }
//	    // Process message...
//	}
type Client interface {
	// Connect establishes the streaming connection.
	// Idempotent: while a connect or recovery attempt is in flight,
	// concurrent calls join it; while open, calls return nil immediately.
	// A manual Connect from StateFailed resets the reconnect attempt budget.
	Connect(ctx context.Context) error

	// Disconnect closes the streaming connection with a normal closure code
	// and fails every pending action with a ConnectionError. The subscribed
	// channel set is kept for the next Connect. Idempotent.
	Disconnect() error

	// Connected reports whether the streaming connection is open.
	Connected() bool

	// State returns the current connection lifecycle state.
	State() State

	// SendAction publishes an action envelope and waits for the correlated
	// response, returning its data. A non-positive timeout falls back to the
	// configured request timeout. Fails fast with a ConnectionError when the
	// connection is not open; nothing is ever queued.
	SendAction(ctx context.Context, action string, payload any, timeout time.Duration) (json.RawMessage, error)

	// Subscribe registers a handler for a channel and marks the channel
	// active across reconnects. Requires an open connection. Multiple
	// handlers per channel all fire, in registration order.
	Subscribe(channel string, handler ChannelHandler) error

	// Unsubscribe drops all handlers for a channel and stops resubscribing
	// it. The wire notification is best effort: skipped silently when the
	// connection is down.
	Unsubscribe(channel string) error

	// Publish sends a fire-and-forget message to a channel.
	// Requires an open connection.
	Publish(channel string, data any) error

	// Broadcast sends a message to every other subscriber of a channel.
	// Requires an open connection.
	Broadcast(channel string, data any) error

	// Listen returns an iterator over messages published on a channel,
	// subscribing on first use and detaching when the loop ends. Iteration
	// stops when ctx is cancelled or the client is closed.
	// Use iter.Pull2 if you need pull-based iteration instead of range.
	Listen(ctx context.Context, channel string) iter.Seq2[json.RawMessage, error]

	// HTTP returns the request/response client for the service's HTTP API.
	// Returns nil when no HTTP base URL is configured or derivable.
	HTTP() *RESTClient

	// Identity returns the per-instance id that scopes action replies.
	Identity() string

	// Close disconnects and permanently shuts down the client.
	// After Close(), the client cannot be reused. Safe to call multiple times.
	Close() error
}

// New creates a client from the options.
//
// The client starts disconnected; call Connect to open the stream:
//
//	client, err := skein.New(
//	    skein.WithURL("wss://example.com/stream"),
//	    skein.WithLogger(slog.Default()),
//	)
func New(opts ...Option) (Client, error) {
	return newClientImpl(applyOptions(opts))
}

// NewFromFile creates a client configured from a YAML file, with opts
// applied on top. File keys mirror the option names; see FileConfig.
func NewFromFile(path string, opts ...Option) (Client, error) {
	fc, err := LoadConfigFile(path)
	if err != nil {
		return nil, err
	}

	options := defaultOptions()
	fc.Apply(options)

	for _, opt := range opts {
		opt(options)
	}

	return newClientImpl(options)
}
