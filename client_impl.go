package skein

import (
	"context"
	"encoding/json"
	"iter"
	"time"

	"github.com/skeinhq/skein-go/internal/client"
	"github.com/skeinhq/skein-go/internal/config"
)

// clientWrapper wraps the internal client to adapt it to the public interface.
type clientWrapper struct {
	impl *client.Client
}

// Compile-time check that *clientWrapper implements the Client interface.
var _ Client = (*clientWrapper)(nil)

// newClientImpl creates the internal client implementation.
func newClientImpl(options *config.Options) (Client, error) {
	impl, err := client.New(options)
	if err != nil {
		return nil, err
	}

	return &clientWrapper{impl: impl}, nil
}

// Connect establishes the streaming connection.
func (c *clientWrapper) Connect(ctx context.Context) error {
	return c.impl.Connect(ctx)
}

// Disconnect closes the streaming connection and fails all pending actions.
func (c *clientWrapper) Disconnect() error {
	return c.impl.Disconnect()
}

// Connected reports whether the streaming connection is open.
func (c *clientWrapper) Connected() bool {
	return c.impl.Connected()
}

// State returns the current connection lifecycle state.
func (c *clientWrapper) State() State {
	return c.impl.State()
}

// SendAction publishes an action envelope and waits for the correlated response.
func (c *clientWrapper) SendAction(
	ctx context.Context,
	action string,
	payload any,
	timeout time.Duration,
) (json.RawMessage, error) {
	return c.impl.SendAction(ctx, action, payload, timeout)
}

// Subscribe registers a handler for a channel.
func (c *clientWrapper) Subscribe(channel string, handler ChannelHandler) error {
	return c.impl.Subscribe(channel, handler)
}

// Unsubscribe drops all handlers for a channel.
func (c *clientWrapper) Unsubscribe(channel string) error {
	return c.impl.Unsubscribe(channel)
}

// Publish sends a fire-and-forget message to a channel.
func (c *clientWrapper) Publish(channel string, data any) error {
	return c.impl.Publish(channel, data)
}

// Broadcast sends a message to every other subscriber of a channel.
func (c *clientWrapper) Broadcast(channel string, data any) error {
	return c.impl.Broadcast(channel, data)
}

// Listen returns an iterator over messages published on a channel.
func (c *clientWrapper) Listen(ctx context.Context, channel string) iter.Seq2[json.RawMessage, error] {
	return c.impl.Listen(ctx, channel)
}

// HTTP returns the request/response client for the service's HTTP API.
func (c *clientWrapper) HTTP() *RESTClient {
	return c.impl.HTTP()
}

// Identity returns the per-instance id that scopes action replies.
func (c *clientWrapper) Identity() string {
	return c.impl.Identity()
}

// Close disconnects and permanently shuts down the client.
func (c *clientWrapper) Close() error {
	return c.impl.Close()
}
