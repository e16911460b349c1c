package skein

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestWithSession_ConnectsAndCleansUp(t *testing.T) {
	transport := newFakeTransport()

	var inside Client

	err := WithSession(context.Background(), func(c Client) error {
		inside = c

		require.True(t, c.Connected())

		return nil
	},
		WithURL("ws://service.test/stream"),
		WithTransport(transport),
	)
	require.NoError(t, err)

	// The session closed the client on the way out.
	require.ErrorIs(t, inside.Connect(context.Background()), ErrClientClosed)
}

func TestWithSession_PropagatesCallbackError(t *testing.T) {
	wantErr := fmt.Errorf("session work failed")

	err := WithSession(context.Background(), func(Client) error {
		return wantErr
	},
		WithURL("ws://service.test/stream"),
		WithTransport(newFakeTransport()),
	)
	require.ErrorIs(t, err, wantErr)
}

func TestWithSession_ConnectFailureSkipsCallback(t *testing.T) {
	failing := &dialFailTransport{}

	called := false

	err := WithSession(context.Background(), func(Client) error {
		called = true

		return nil
	},
		WithURL("ws://service.test/stream"),
		WithTransport(failing),
		WithConnectTimeout(time.Second),
	)
	require.Error(t, err)
	require.False(t, called)
}

func TestWithSession_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := WithSession(ctx, func(Client) error {
		t.Fatal("callback must not run")

		return nil
	},
		WithURL("ws://service.test/stream"),
		WithTransport(newFakeTransport()),
	)
	require.ErrorIs(t, err, context.Canceled)
}

func TestWithSession_InvalidOptions(t *testing.T) {
	err := WithSession(context.Background(), func(Client) error {
		t.Fatal("callback must not run")

		return nil
	})
	require.ErrorIs(t, err, ErrMissingURL)
}

// dialFailTransport fails every dial.
type dialFailTransport struct {
	fakeTransport
}

func (d *dialFailTransport) Dial(context.Context, string) error {
	return fmt.Errorf("service unreachable")
}
