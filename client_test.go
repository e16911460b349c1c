package skein

import (
	"context"
	"encoding/json"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeTransport implements Transport for testing the public surface. The
// respond hook scripts the remote side.
type fakeTransport struct {
	mu      sync.Mutex
	dials   int
	sent    []*Frame
	msgCh   chan []byte
	errCh   chan error
	respond func(frame *Frame) []*Frame
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{}
}

func (f *fakeTransport) Dial(_ context.Context, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.dials++
	f.msgCh = make(chan []byte, 32)
	f.errCh = make(chan error, 1)

	return nil
}

func (f *fakeTransport) ReadMessages(_ context.Context) (<-chan []byte, <-chan error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.msgCh, f.errCh
}

func (f *fakeTransport) SendMessage(_ context.Context, data []byte) error {
	var frame Frame
	if err := json.Unmarshal(data, &frame); err != nil {
		return err
	}

	f.mu.Lock()
	f.sent = append(f.sent, &frame)
	respond := f.respond
	msgCh := f.msgCh
	f.mu.Unlock()

	if respond == nil {
		return nil
	}

	for _, reply := range respond(&frame) {
		raw, err := json.Marshal(reply)
		if err != nil {
			return err
		}

		msgCh <- raw
	}

	return nil
}

func (f *fakeTransport) Close(code int, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	// End the blocked read, as a real closing stream would.
	if f.errCh != nil {
		select {
		case f.errCh <- &SocketClosedError{Code: code, Reason: reason}:
		default:
		}
	}

	return nil
}

// breakStream ends the current stream with the given close code, as if the
// peer or the network dropped it.
func (f *fakeTransport) breakStream(code int) {
	f.mu.Lock()
	errCh := f.errCh
	f.mu.Unlock()

	errCh <- &SocketClosedError{Code: code}
}

// deliver injects one inbound frame.
func (f *fakeTransport) deliver(t *testing.T, frame *Frame) {
	t.Helper()

	raw, err := json.Marshal(frame)
	require.NoError(t, err)

	f.mu.Lock()
	msgCh := f.msgCh
	f.mu.Unlock()

	msgCh <- raw
}

func (f *fakeTransport) sentFrames() []*Frame {
	f.mu.Lock()
	defer f.mu.Unlock()

	return slices.Clone(f.sent)
}

func (f *fakeTransport) countSent(frameType, channel string) int {
	var n int

	for _, frame := range f.sentFrames() {
		if frame.Type == frameType && frame.Channel == channel {
			n++
		}
	}

	return n
}

// echoTransport scripts a remote that answers every action with its payload.
func echoTransport() *fakeTransport {
	transport := newFakeTransport()
	transport.respond = func(frame *Frame) []*Frame {
		if frame.Type != TypePublish {
			return nil
		}

		var envelope ActionEnvelope
		if err := json.Unmarshal(frame.Data, &envelope); err != nil {
			return nil
		}

		data, err := json.Marshal(envelope.Payload)
		if err != nil {
			return nil
		}

		return []*Frame{{
			Type:      TypeResponse,
			RequestID: envelope.RequestID,
			Success:   true,
			Data:      data,
		}}
	}

	return transport
}

// newTestClient builds a connected client over the given transport.
func newTestClient(t *testing.T, transport Transport, opts ...Option) Client {
	t.Helper()

	opts = append([]Option{
		WithURL("ws://service.test/stream"),
		WithTransport(transport),
		WithReconnectDelay(5 * time.Millisecond),
		WithBackoff(BackoffFixed),
	}, opts...)

	client, err := New(opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	require.NoError(t, client.Connect(context.Background()))

	return client
}

func TestNew_RequiresURLOrTransport(t *testing.T) {
	_, err := New()
	require.ErrorIs(t, err, ErrMissingURL)
}

func TestNew_InvalidOptionRejected(t *testing.T) {
	_, err := New(
		WithURL("ws://service.test/stream"),
		WithRequestTimeout(-time.Second),
	)
	require.Error(t, err)
}

func TestClient_ConnectAndState(t *testing.T) {
	transport := newFakeTransport()
	client := newTestClient(t, transport)

	require.True(t, client.Connected())
	require.Equal(t, StateOpen, client.State())

	require.NoError(t, client.Disconnect())
	require.False(t, client.Connected())
	require.Equal(t, StateIdle, client.State())
}

func TestClient_FailsFastWhenNotConnected(t *testing.T) {
	client, err := New(
		WithURL("ws://service.test/stream"),
		WithTransport(newFakeTransport()),
	)
	require.NoError(t, err)

	defer client.Close()

	_, err = client.SendAction(context.Background(), "ping", nil, time.Second)
	require.ErrorIs(t, err, ErrNotConnected)

	var connErr *ConnectionError

	require.ErrorAs(t, err, &connErr)

	err = client.Subscribe("alerts", func(string, json.RawMessage) {})
	require.ErrorIs(t, err, ErrNotConnected)

	err = client.Broadcast("alerts", "x")
	require.ErrorIs(t, err, ErrNotConnected)
}

func TestClient_SendActionRoundTrip(t *testing.T) {
	client := newTestClient(t, echoTransport())

	data, err := client.SendAction(context.Background(),
		"echo", map[string]any{"greeting": "hi"}, time.Second)
	require.NoError(t, err)
	require.JSONEq(t, `{"greeting":"hi"}`, string(data))
}

func TestClient_SendActionTimesOut(t *testing.T) {
	client := newTestClient(t, newFakeTransport())

	_, err := client.SendAction(context.Background(), "ping", nil, 50*time.Millisecond)

	var timeoutErr *TimeoutError

	require.ErrorAs(t, err, &timeoutErr)
	require.ErrorIs(t, err, ErrRequestTimeout)
}

func TestClient_SubscribeReceivesMessages(t *testing.T) {
	transport := newFakeTransport()
	client := newTestClient(t, transport)

	received := make(chan json.RawMessage, 1)

	require.NoError(t, client.Subscribe("alerts", func(channel string, data json.RawMessage) {
		assert.Equal(t, "alerts", channel)
		received <- data
	}))

	transport.deliver(t, &Frame{
		Type:    TypeChannelMessage,
		Channel: "alerts",
		Data:    json.RawMessage(`{"level":"warn"}`),
	})

	select {
	case data := <-received:
		require.JSONEq(t, `{"level":"warn"}`, string(data))
	case <-time.After(2 * time.Second):
		t.Fatal("handler did not fire")
	}
}

// The public rendition of the recovery scenario: subscribe, lose the stream
// abnormally, reconnect automatically, and keep receiving.
func TestClient_RecoversSubscriptionsAfterAbnormalClose(t *testing.T) {
	transport := newFakeTransport()

	reconnected := make(chan bool, 2)
	client := newTestClient(t, transport,
		WithOnConnect(func(r bool) { reconnected <- r }),
	)

	require.False(t, <-reconnected)

	received := make(chan json.RawMessage, 1)

	require.NoError(t, client.Subscribe("alerts", func(_ string, data json.RawMessage) {
		received <- data
	}))

	transport.breakStream(CloseAbnormal)

	select {
	case r := <-reconnected:
		require.True(t, r, "recovery reports reconnected=true")
	case <-time.After(2 * time.Second):
		t.Fatal("client did not reconnect")
	}

	require.Equal(t, 2, transport.countSent(TypeSubscribe, "alerts"),
		"initial subscribe plus one resubscribe")

	transport.deliver(t, &Frame{
		Type:    TypeChannelMessage,
		Channel: "alerts",
		Data:    json.RawMessage(`"still here"`),
	})

	select {
	case data := <-received:
		require.Equal(t, `"still here"`, string(data))
	case <-time.After(2 * time.Second):
		t.Fatal("handler did not fire after reconnect")
	}
}

func TestClient_UnsubscribedChannelStaysQuiet(t *testing.T) {
	transport := newFakeTransport()
	client := newTestClient(t, transport)

	fired := make(chan struct{}, 1)

	require.NoError(t, client.Subscribe("alerts", func(string, json.RawMessage) {
		fired <- struct{}{}
	}))
	require.NoError(t, client.Unsubscribe("alerts"))

	transport.deliver(t, &Frame{
		Type:    TypeChannelMessage,
		Channel: "alerts",
		Data:    json.RawMessage(`1`),
	})

	select {
	case <-fired:
		t.Fatal("handler fired after unsubscribe")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestClient_UnmatchedFramesReachCallback(t *testing.T) {
	transport := newFakeTransport()

	unmatched := make(chan *Frame, 1)
	client := newTestClient(t, transport,
		WithOnUnmatched(func(frame *Frame) { unmatched <- frame }),
	)

	_ = client

	transport.deliver(t, &Frame{
		Type:    TypeChannelMessage,
		Channel: "nobody-listens",
		Data:    json.RawMessage(`1`),
	})

	select {
	case frame := <-unmatched:
		require.Equal(t, "nobody-listens", frame.Channel)
	case <-time.After(2 * time.Second):
		t.Fatal("unmatched frame not surfaced")
	}
}

func TestClient_MalformedFramesAreDiagnosticsOnly(t *testing.T) {
	transport := newFakeTransport()

	diags := make(chan error, 1)
	client := newTestClient(t, transport,
		WithOnSocketError(func(err error) { diags <- err }),
	)

	transport.mu.Lock()
	msgCh := transport.msgCh
	transport.mu.Unlock()

	msgCh <- []byte(`{not json`)

	select {
	case err := <-diags:
		var protoErr *ProtocolError

		require.ErrorAs(t, err, &protoErr)
	case <-time.After(2 * time.Second):
		t.Fatal("malformed frame not reported")
	}

	// The connection survives garbage input.
	require.True(t, client.Connected())
}

func TestClient_StateChangeObserver(t *testing.T) {
	var (
		mu          sync.Mutex
		transitions []State
	)

	transport := newFakeTransport()
	client := newTestClient(t, transport,
		WithOnStateChange(func(_, to State) {
			mu.Lock()
			transitions = append(transitions, to)
			mu.Unlock()
		}),
	)

	require.NoError(t, client.Disconnect())

	mu.Lock()
	defer mu.Unlock()

	require.Equal(t, []State{StateConnecting, StateOpen, StateClosing, StateIdle}, transitions)
}

func TestClient_ClosedClientRefusesEverything(t *testing.T) {
	client := newTestClient(t, newFakeTransport())

	require.NoError(t, client.Close())

	require.ErrorIs(t, client.Connect(context.Background()), ErrClientClosed)

	_, err := client.SendAction(context.Background(), "ping", nil, time.Second)
	require.ErrorIs(t, err, ErrClientClosed)
}

func TestClient_IdentityScopesReplyChannel(t *testing.T) {
	transport := echoTransport()
	client := newTestClient(t, transport)

	_, err := client.SendAction(context.Background(), "ping", nil, time.Second)
	require.NoError(t, err)

	frames := transport.sentFrames()
	require.NotEmpty(t, frames)

	var envelope ActionEnvelope

	require.NoError(t, json.Unmarshal(frames[0].Data, &envelope))
	require.Equal(t, "client:"+client.Identity(), envelope.ReplyChannel)
}

func TestClient_HTTPAvailableWithStreamURL(t *testing.T) {
	client := newTestClient(t, newFakeTransport())
	require.NotNil(t, client.HTTP())
}
