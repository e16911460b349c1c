// Package skein provides a Go client runtime for services that speak the
// skein protocol: correlated request/response actions and publish/subscribe
// channels multiplexed over one persistent streaming connection, with a
// plain HTTP API on the side.
//
// The client multiplexes any number of concurrent outstanding actions and
// live channel subscriptions over a single WebSocket, survives abnormal
// disconnects with bounded automatic reconnection, and restores the
// subscribed channel set after every reconnect. A caller's action settles
// exactly once: with the matching response, a timeout, or a connection
// error, whichever comes first.
//
// # Basic Usage
//
// Create a client, connect, and exchange messages:
//
//	client, err := skein.New(skein.WithURL("wss://example.com/stream"))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	ctx := context.Background()
//	if err := client.Connect(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
//	// Correlated request/response.
//	data, err := client.SendAction(ctx, "ping", nil, 5*time.Second)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Printf("pong: %s\n", data)
//
//	// Publish/subscribe.
//	err = client.Subscribe("alerts", func(channel string, data json.RawMessage) {
//	    fmt.Printf("[%s] %s\n", channel, data)
//	})
//
// # Sessions
//
// For scoped usage, WithSession handles connect and cleanup:
//
//	err := skein.WithSession(ctx, func(c skein.Client) error {
//	    _, err := c.SendAction(ctx, "ping", nil, 0)
//	    return err
//	}, skein.WithURL("wss://example.com/stream"))
//
// # Reconnection
//
// An abnormal close starts automatic recovery: the client redials with a
// fixed or linearly growing delay until the stream is back or the attempt
// budget is spent. Requests in flight when the connection drops fail
// immediately with a ConnectionError; they are never replayed. Subscribed
// channels are resubscribed on every successful reconnect. When the budget
// is spent the client parks in StateFailed and stays there until a manual
// Connect.
//
// # Logging
//
// For detailed operation tracking, use WithLogger:
//
//	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
//	client, err := skein.New(
//	    skein.WithURL("wss://example.com/stream"),
//	    skein.WithLogger(logger),
//	)
//
// # Error Handling
//
// The client surfaces typed errors for the distinct failure modes:
//
//	data, err := client.SendAction(ctx, "orders.create", order, 0)
//	if err != nil {
//	    var timeoutErr *skein.TimeoutError
//	    if errors.As(err, &timeoutErr) {
//	        log.Printf("no reply within %s", timeoutErr.Timeout)
//	    }
//	    var protoErr *skein.ProtocolError
//	    if errors.As(err, &protoErr) {
//	        log.Printf("service rejected the action: %s", protoErr.Remote)
//	    }
//	    if errors.Is(err, skein.ErrNotConnected) {
//	        log.Print("connect first")
//	    }
//	}
package skein
