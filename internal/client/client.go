package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/skeinhq/skein-go/internal/config"
	"github.com/skeinhq/skein-go/internal/errors"
	"github.com/skeinhq/skein-go/internal/metrics"
	"github.com/skeinhq/skein-go/internal/protocol"
	"github.com/skeinhq/skein-go/internal/registry"
	"github.com/skeinhq/skein-go/internal/rest"
	"github.com/skeinhq/skein-go/internal/socket"
	"github.com/skeinhq/skein-go/internal/wstransport"
)

// listenBuffer is the per-iterator buffer for Listen. A consumer that falls
// behind by more than this many messages starts missing them.
const listenBuffer = 16

// Client ties the connection state machine, the request correlator, the
// subscription registry, and the HTTP client together behind one facade.
type Client struct {
	log      *slog.Logger
	options  *config.Options
	identity string

	envelopes  *protocol.EnvelopeBuilder
	correlator *protocol.Correlator
	registry   *registry.Registry
	machine    *socket.Machine
	metrics    *metrics.Metrics
	rest       *rest.Client

	mu        sync.Mutex
	closed    bool
	done      chan struct{}
	closeOnce sync.Once
}

// New creates a client from the options.
//
// The client is not connected after creation; call Connect. Each client gets
// a ULID identity whose reply channel scopes action responses to this
// instance.
func New(options *config.Options) (*Client, error) {
	if options == nil {
		options = config.Default()
	}

	if err := options.Validate(); err != nil {
		return nil, err
	}

	log := options.Logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	identity := ulid.Make().String()
	componentLog := log.With("component", "client")

	c := &Client{
		log:        componentLog,
		options:    options,
		identity:   identity,
		envelopes:  protocol.NewEnvelopeBuilder("client:"+identity, options.ActionSchemas),
		correlator: protocol.NewCorrelator(log),
		registry:   registry.New(log),
		metrics:    metrics.New(options.MetricsRegistry),
		done:       make(chan struct{}),
	}

	transport := options.Transport
	if transport != nil {
		componentLog.Debug("Using injected custom transport")
	} else {
		transport = wstransport.New(log, options)
	}

	c.machine = socket.NewMachine(log, options, transport, c.correlator, c.registry, c.metrics)

	// The HTTP side is optional: it exists whenever a base URL is configured
	// or derivable from the streaming URL.
	if options.HTTPBaseURL != "" || options.URL != "" {
		restClient, err := rest.New(log, options)
		if err != nil {
			return nil, err
		}

		c.rest = restClient
	}

	componentLog.Debug("Client created", "identity", identity)

	return c, nil
}

// Identity returns the per-instance ULID used to scope action replies.
func (c *Client) Identity() string {
	return c.identity
}

// isClosed reports whether Close has been called.
func (c *Client) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.closed
}

// Connect establishes the streaming connection.
//
// Connect is idempotent: calling it while a connection attempt or recovery
// is in flight joins that attempt instead of starting another.
func (c *Client) Connect(ctx context.Context) error {
	if c.isClosed() {
		return errors.ErrClientClosed
	}

	return c.machine.Connect(ctx)
}

// Disconnect closes the streaming connection and fails all pending actions.
//
// The desired subscription set is kept, so a later Connect resubscribes the
// same channels. Disconnecting an idle client is a no-op.
func (c *Client) Disconnect() error {
	if c.isClosed() {
		return errors.ErrClientClosed
	}

	return c.machine.Disconnect()
}

// Connected reports whether the streaming connection is open.
func (c *Client) Connected() bool {
	return c.machine.Connected()
}

// State returns the current connection state.
func (c *Client) State() config.State {
	return c.machine.State()
}

// SendAction publishes an action envelope and waits for the correlated
// response.
//
// The payload is validated against the action's registered schema, if any.
// A non-positive timeout falls back to the configured request timeout.
// Fails fast with ConnectionError when the connection is not open; pending
// actions are failed, not queued, if the connection drops while waiting.
func (c *Client) SendAction(
	ctx context.Context,
	action string,
	payload any,
	timeout time.Duration,
) (json.RawMessage, error) {
	if c.isClosed() {
		return nil, errors.ErrClientClosed
	}

	if !c.machine.Connected() {
		return nil, &errors.ConnectionError{Err: errors.ErrNotConnected}
	}

	if timeout <= 0 {
		timeout = c.options.RequestTimeout
	}

	id := c.correlator.NextID()

	envelope, err := c.envelopes.Build(action, payload, id)
	if err != nil {
		return nil, err
	}

	frame, err := protocol.Publish(c.options.ActionChannel, envelope)
	if err != nil {
		return nil, fmt.Errorf("encode action %q: %w", action, err)
	}

	c.log.Debug("Sending action", "action", action, "request_id", id, "timeout", timeout)

	result := c.correlator.Track(id, action)
	c.metrics.SetPending(c.correlator.Len())

	start := time.Now()

	if err := c.machine.Send(ctx, frame); err != nil {
		c.correlator.Discard(id)
		c.metrics.SetPending(c.correlator.Len())

		return nil, err
	}

	data, err := c.correlator.Await(ctx, id, action, result, timeout)

	c.metrics.SetPending(c.correlator.Len())
	c.metrics.ObserveAction(action, time.Since(start).Seconds())

	return data, err
}

// Subscribe registers a handler for a channel.
//
// The first handler on a channel sends a subscribe frame; additional
// handlers piggyback on the existing subscription. Requires an open
// connection. The subscription survives reconnects.
func (c *Client) Subscribe(channel string, handler registry.Handler) error {
	if c.isClosed() {
		return errors.ErrClientClosed
	}

	if channel == "" {
		return fmt.Errorf("empty channel")
	}

	if handler == nil {
		return fmt.Errorf("nil handler for channel %q", channel)
	}

	if !c.machine.Connected() {
		return &errors.ConnectionError{Err: errors.ErrNotConnected}
	}

	id, isNew := c.registry.Attach(channel, handler)
	if !isNew {
		return nil
	}

	if err := c.machine.Send(context.Background(), protocol.Subscribe(channel)); err != nil {
		c.registry.Detach(channel, id)

		return err
	}

	c.log.Info("Subscribed", "channel", channel)

	return nil
}

// Unsubscribe drops all handlers for a channel.
//
// The local registration always goes away, so the channel is not picked up
// again after a reconnect. The unsubscribe frame itself is best effort: when
// the connection is down there is nothing to tell, and a failed send only
// means the server keeps publishing to a channel nobody handles.
func (c *Client) Unsubscribe(channel string) error {
	if c.isClosed() {
		return errors.ErrClientClosed
	}

	if !c.registry.Remove(channel) {
		return nil
	}

	if c.machine.Connected() {
		if err := c.machine.Send(context.Background(), protocol.Unsubscribe(channel)); err != nil {
			c.log.Warn("Unsubscribe frame not sent", "channel", channel, "error", err)
		}
	}

	c.log.Info("Unsubscribed", "channel", channel)

	return nil
}

// Publish sends a message to a channel. Requires an open connection.
func (c *Client) Publish(channel string, data any) error {
	if c.isClosed() {
		return errors.ErrClientClosed
	}

	frame, err := protocol.Publish(channel, data)
	if err != nil {
		return fmt.Errorf("encode publish to %q: %w", channel, err)
	}

	return c.machine.Send(context.Background(), frame)
}

// Broadcast sends a message to all subscribers of a channel except this
// client. Requires an open connection.
func (c *Client) Broadcast(channel string, data any) error {
	if c.isClosed() {
		return errors.ErrClientClosed
	}

	frame, err := protocol.Broadcast(channel, data)
	if err != nil {
		return fmt.Errorf("encode broadcast to %q: %w", channel, err)
	}

	return c.machine.Send(context.Background(), frame)
}

// Listen returns an iterator over messages published on a channel.
//
// The iterator subscribes on first use and detaches its handler when the
// loop ends, unsubscribing the channel if no other handler remains. It
// survives reconnects: messages resume once the subscription is restored.
// Iteration ends when the context is cancelled or the client is closed.
// A consumer that falls behind the stream misses messages.
func (c *Client) Listen(ctx context.Context, channel string) iter.Seq2[json.RawMessage, error] {
	return func(yield func(json.RawMessage, error) bool) {
		if c.isClosed() {
			yield(nil, errors.ErrClientClosed)

			return
		}

		if !c.machine.Connected() {
			yield(nil, &errors.ConnectionError{Err: errors.ErrNotConnected})

			return
		}

		messages := make(chan json.RawMessage, listenBuffer)

		id, isNew := c.registry.Attach(channel, func(_ string, data json.RawMessage) {
			select {
			case messages <- data:
			default:
				c.log.Warn("Listener lagging, message dropped", "channel", channel)
			}
		})

		defer func() {
			if empty := c.registry.Detach(channel, id); empty && c.machine.Connected() {
				if err := c.machine.Send(context.Background(), protocol.Unsubscribe(channel)); err != nil {
					c.log.Warn("Unsubscribe frame not sent", "channel", channel, "error", err)
				}
			}
		}()

		if isNew {
			if err := c.machine.Send(context.Background(), protocol.Subscribe(channel)); err != nil {
				yield(nil, err)

				return
			}
		}

		for {
			select {
			case data := <-messages:
				if !yield(data, nil) {
					return
				}

			case <-ctx.Done():
				yield(nil, ctx.Err())

				return

			case <-c.done:
				yield(nil, errors.ErrClientClosed)

				return
			}
		}
	}
}

// HTTP returns the request/response client for the service's HTTP API.
//
// Returns nil when no HTTP base URL is configured or derivable, which only
// happens with a custom transport and no URL.
func (c *Client) HTTP() *rest.Client {
	return c.rest
}

// Close disconnects and permanently shuts down the client.
//
// After Close(), the client cannot be reused - create a new client with New().
// This method is safe to call multiple times.
func (c *Client) Close() error {
	var closeErr error

	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		c.mu.Unlock()

		c.log.Info("Closing client")

		close(c.done)

		closeErr = c.machine.Shutdown()

		if c.rest != nil {
			if err := c.rest.Close(); err != nil && closeErr == nil {
				closeErr = err
			}
		}

		c.log.Info("Client closed")
	})

	return closeErr
}
