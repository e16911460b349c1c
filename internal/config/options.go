package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/skeinhq/skein-go/internal/errors"
	"github.com/skeinhq/skein-go/internal/protocol"
)

// State identifies the connection lifecycle phase. It is owned and mutated
// only by the connection state machine; everything else reads it.
type State int32

const (
	// StateIdle means no connection exists and none is being attempted.
	StateIdle State = iota
	// StateConnecting means a dial is in flight.
	StateConnecting
	// StateOpen means the stream is up and operations may be sent.
	StateOpen
	// StateClosing means an explicit disconnect is tearing the stream down.
	StateClosing
	// StateReconnecting means an abnormal close was seen and automatic
	// recovery is waiting out its backoff delay.
	StateReconnecting
	// StateFailed means reconnection exhausted its attempts. Terminal until
	// a manual Connect.
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	case StateReconnecting:
		return "reconnecting"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// BackoffMode selects how the reconnect delay grows between attempts.
type BackoffMode string

const (
	// BackoffFixed waits the same delay before every attempt.
	BackoffFixed BackoffMode = "fixed"
	// BackoffLinear waits delay * attempt, capped at MaxReconnectDelay.
	BackoffLinear BackoffMode = "linear"
)

// Default durations and limits applied by Default().
const (
	DefaultActionChannel        = "actions"
	DefaultRequestTimeout       = 30 * time.Second
	DefaultConnectTimeout       = 10 * time.Second
	DefaultMaxReconnectAttempts = 5
	DefaultReconnectDelay       = time.Second
	DefaultMaxReconnectDelay    = 30 * time.Second
	DefaultHTTPRetries          = 2
	DefaultHTTPTimeout          = 15 * time.Second
)

// Options configures the behavior of a skein client.
type Options struct {
	// Logger is the slog logger for diagnostics. If nil, logging is
	// disabled (silent operation).
	Logger *slog.Logger

	// URL is the streaming endpoint (ws:// or wss://). Required unless a
	// custom Transport is injected.
	URL string

	// HTTPBaseURL is the base URL for the request/response collaborator.
	// If empty it is derived from URL by swapping the scheme to http(s).
	HTTPBaseURL string

	// ActionChannel is the channel action envelopes are published to.
	ActionChannel string

	// RequestTimeout is the default deadline for SendAction when the caller
	// passes zero.
	RequestTimeout time.Duration

	// ConnectTimeout bounds a single dial attempt.
	ConnectTimeout time.Duration

	// Reconnect enables automatic recovery after an abnormal close.
	Reconnect bool

	// MaxReconnectAttempts caps automatic dials per outage before the
	// machine parks in the Failed state.
	MaxReconnectAttempts int

	// ReconnectDelay is the base delay between reconnect attempts.
	ReconnectDelay time.Duration

	// MaxReconnectDelay caps the grown delay under BackoffLinear.
	MaxReconnectDelay time.Duration

	// Backoff selects fixed or linear delay growth. No jitter is applied;
	// acceptable for a single client instance per process.
	Backoff BackoffMode

	// HTTPRetries is how many times the HTTP collaborator re-issues a
	// retryable request after the first failure.
	HTTPRetries int

	// HTTPTimeout bounds one HTTP attempt including body read.
	HTTPTimeout time.Duration

	// Headers are sent with the stream handshake and every HTTP request.
	Headers map[string]string

	// ActionSchemas maps action names to payload schemas. A registered
	// action's payload is validated before transmission.
	ActionSchemas map[string]*jsonschema.Schema

	// MetricsRegistry enables instrumentation when non-nil. Collectors are
	// registered once at client construction.
	MetricsRegistry prometheus.Registerer

	// OnConnect fires from the connection goroutine after the stream opens.
	// reconnected is true when recovery, not a manual Connect, opened it.
	OnConnect func(reconnected bool)

	// OnDisconnect fires when an open stream goes away, with the close
	// reason (nil for a clean local disconnect).
	OnDisconnect func(err error)

	// OnSocketError receives diagnostics: malformed inbound frames, failed
	// resubscribes, and the fatal reconnect-exhausted error. It must not
	// block; it runs on connection goroutines.
	OnSocketError func(err error)

	// OnUnmatched receives well-formed inbound frames that matched neither
	// a pending request nor a subscribed channel.
	OnUnmatched func(frame *protocol.Frame)

	// OnStateChange observes every lifecycle transition.
	OnStateChange func(from, to State)

	// Transport allows injecting a custom stream implementation. If nil,
	// the gorilla/websocket transport is created automatically.
	Transport Transport
}

// Default returns Options with every tunable at its documented default.
func Default() *Options {
	return &Options{
		ActionChannel:        DefaultActionChannel,
		RequestTimeout:       DefaultRequestTimeout,
		ConnectTimeout:       DefaultConnectTimeout,
		Reconnect:            true,
		MaxReconnectAttempts: DefaultMaxReconnectAttempts,
		ReconnectDelay:       DefaultReconnectDelay,
		MaxReconnectDelay:    DefaultMaxReconnectDelay,
		Backoff:              BackoffLinear,
		HTTPRetries:          DefaultHTTPRetries,
		HTTPTimeout:          DefaultHTTPTimeout,
	}
}

// Validate reports the first configuration problem found.
func (o *Options) Validate() error {
	if o.URL == "" && o.Transport == nil {
		return errors.ErrMissingURL
	}

	if o.ActionChannel == "" {
		return fmt.Errorf("action channel must not be empty")
	}

	if o.RequestTimeout <= 0 {
		return fmt.Errorf("request timeout must be positive, got %s", o.RequestTimeout)
	}

	if o.MaxReconnectAttempts < 0 {
		return fmt.Errorf("max reconnect attempts must not be negative, got %d", o.MaxReconnectAttempts)
	}

	if o.Reconnect && o.ReconnectDelay <= 0 {
		return fmt.Errorf("reconnect delay must be positive, got %s", o.ReconnectDelay)
	}

	switch o.Backoff {
	case BackoffFixed, BackoffLinear:
	default:
		return fmt.Errorf("unknown backoff mode %q", o.Backoff)
	}

	if o.HTTPRetries < 0 {
		return fmt.Errorf("http retries must not be negative, got %d", o.HTTPRetries)
	}

	return nil
}
