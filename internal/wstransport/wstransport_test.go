package wstransport

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skeinhq/skein-go/internal/config"
	"github.com/skeinhq/skein-go/internal/errors"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(*http.Request) bool { return true },
}

// serve starts a test server that hands each upgraded connection to handle.
func serve(t *testing.T, handle func(*websocket.Conn, *http.Request)) string {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade failed: %v", err)

			return
		}

		handle(conn, r)
	}))
	t.Cleanup(srv.Close)

	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func newTestTransport(mutate func(*config.Options)) *Transport {
	opts := config.Default()
	opts.ConnectTimeout = 2 * time.Second

	if mutate != nil {
		mutate(opts)
	}

	return New(slog.Default(), opts)
}

func TestTransport_EchoRoundTrip(t *testing.T) {
	url := serve(t, func(conn *websocket.Conn, _ *http.Request) {
		for {
			kind, data, err := conn.ReadMessage()
			if err != nil {
				return
			}

			if err := conn.WriteMessage(kind, data); err != nil {
				return
			}
		}
	})

	tr := newTestTransport(nil)
	ctx := context.Background()

	require.NoError(t, tr.Dial(ctx, url))

	t.Cleanup(func() { _ = tr.Close(config.CloseNormal, "") })

	messages, errs := tr.ReadMessages(ctx)

	require.NoError(t, tr.SendMessage(ctx, []byte(`{"type":"subscribe","channel":"alerts"}`)))

	select {
	case msg := <-messages:
		assert.JSONEq(t, `{"type":"subscribe","channel":"alerts"}`, string(msg))
	case err := <-errs:
		t.Fatalf("stream ended: %v", err)
	case <-time.After(2 * time.Second):
		t.Fatal("no echo received")
	}
}

func TestTransport_HandshakeHeaders(t *testing.T) {
	headers := make(chan string, 1)

	url := serve(t, func(conn *websocket.Conn, r *http.Request) {
		headers <- r.Header.Get("Authorization")

		_ = conn.Close()
	})

	tr := newTestTransport(func(o *config.Options) {
		o.Headers = map[string]string{"Authorization": "Bearer sk-test"}
	})

	require.NoError(t, tr.Dial(context.Background(), url))

	t.Cleanup(func() { _ = tr.Close(config.CloseNormal, "") })

	select {
	case got := <-headers:
		assert.Equal(t, "Bearer sk-test", got)
	case <-time.After(2 * time.Second):
		t.Fatal("server never saw the handshake")
	}
}

func TestTransport_DialFailure(t *testing.T) {
	tr := newTestTransport(func(o *config.Options) {
		o.ConnectTimeout = 200 * time.Millisecond
	})

	err := tr.Dial(context.Background(), "ws://127.0.0.1:1/stream")

	var transportErr *errors.TransportError

	require.ErrorAs(t, err, &transportErr)
	assert.Equal(t, "dial", transportErr.Op)
}

func TestTransport_SendRequiresDial(t *testing.T) {
	tr := newTestTransport(nil)

	err := tr.SendMessage(context.Background(), []byte("{}"))
	require.ErrorIs(t, err, errors.ErrTransportNotConnected)
}

func TestTransport_ServerCloseFrameCarriesCode(t *testing.T) {
	url := serve(t, func(conn *websocket.Conn, _ *http.Request) {
		deadline := time.Now().Add(time.Second)
		_ = conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "maintenance"),
			deadline,
		)
		_ = conn.Close()
	})

	tr := newTestTransport(nil)

	require.NoError(t, tr.Dial(context.Background(), url))

	t.Cleanup(func() { _ = tr.Close(config.CloseNormal, "") })

	_, errs := tr.ReadMessages(context.Background())

	select {
	case err := <-errs:
		var closed *errors.SocketClosedError

		require.ErrorAs(t, err, &closed)
		assert.Equal(t, config.CloseGoingAway, closed.Code)
		assert.Equal(t, "maintenance", closed.Reason)
		assert.True(t, closed.Normal())
	case <-time.After(2 * time.Second):
		t.Fatal("stream error never delivered")
	}
}

func TestTransport_DroppedConnectionIsAbnormalClose(t *testing.T) {
	url := serve(t, func(conn *websocket.Conn, _ *http.Request) {
		// Kill the TCP connection without a close frame.
		_ = conn.UnderlyingConn().Close()
	})

	tr := newTestTransport(nil)

	require.NoError(t, tr.Dial(context.Background(), url))

	t.Cleanup(func() { _ = tr.Close(config.CloseNormal, "") })

	_, errs := tr.ReadMessages(context.Background())

	select {
	case err := <-errs:
		var closed *errors.SocketClosedError

		require.ErrorAs(t, err, &closed)
		assert.Equal(t, config.CloseAbnormal, closed.Code)
		assert.False(t, closed.Normal())
	case <-time.After(2 * time.Second):
		t.Fatal("stream error never delivered")
	}
}

func TestTransport_CloseIsIdempotent(t *testing.T) {
	url := serve(t, func(conn *websocket.Conn, _ *http.Request) {
		_, _, _ = conn.ReadMessage()
	})

	tr := newTestTransport(nil)

	require.NoError(t, tr.Dial(context.Background(), url))
	require.NoError(t, tr.Close(config.CloseNormal, "done"))
	require.NoError(t, tr.Close(config.CloseNormal, "done"))
}

func TestTransport_ReadBeforeDialFailsFast(t *testing.T) {
	tr := newTestTransport(nil)

	messages, errs := tr.ReadMessages(context.Background())

	select {
	case err := <-errs:
		require.ErrorIs(t, err, errors.ErrTransportNotConnected)
	case <-time.After(time.Second):
		t.Fatal("expected immediate stream error")
	}

	_, open := <-messages
	assert.False(t, open)
}
