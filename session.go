package skein

import (
	"context"
	"fmt"
)

// WithSession manages client lifecycle with automatic cleanup.
//
// This helper creates a client, connects it, executes the callback, and
// ensures proper cleanup via Close() when done.
//
// The callback receives a connected Client that is ready for use.
// If the callback returns an error, it is returned to the caller.
// If Close() fails, a warning is logged but does not override the callback's
// error.
//
// Example usage:
//
//	err := skein.WithSession(ctx, func(c skein.Client) error {
//	    if err := c.Subscribe("alerts", onAlert); err != nil {
//	        return err
//	    }
//	    _, err := c.SendAction(ctx, "ping", nil, 0)
//	    return err
//	},
//	    skein.WithURL("wss://example.com/stream"),
//	    skein.WithLogger(log),
//	)
func WithSession(ctx context.Context, fn func(Client) error, opts ...Option) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	options := applyOptions(opts)

	log := options.Logger
	if log == nil {
		log = NopLogger()
	}

	client, err := newClientImpl(options)
	if err != nil {
		return err
	}

	defer func() {
		if closeErr := client.Close(); closeErr != nil {
			log.Warn("failed to close client", "error", closeErr)
		}
	}()

	if err := client.Connect(ctx); err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}

	return fn(client)
}
