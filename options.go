package skein

import (
	"log/slog"
	"time"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/skeinhq/skein-go/internal/config"
)

// Option configures Options using the functional options pattern.
// This is the primary option type for configuring clients.
type Option func(*Options)

// defaultOptions returns Options with every tunable at its documented default.
func defaultOptions() *Options {
	return config.Default()
}

// applyOptions applies functional options on top of the defaults.
func applyOptions(opts []Option) *Options {
	options := defaultOptions()
	for _, opt := range opts {
		opt(options)
	}

	return options
}

// ===== Endpoints =====

// WithURL sets the streaming endpoint (ws:// or wss://).
// Required unless a custom transport is injected.
func WithURL(url string) Option {
	return func(o *Options) {
		o.URL = url
	}
}

// WithHTTPBaseURL sets the base URL for the HTTP API.
// If not set, it is derived from the streaming URL by swapping the scheme.
func WithHTTPBaseURL(url string) Option {
	return func(o *Options) {
		o.HTTPBaseURL = url
	}
}

// WithHeader adds a header sent with the stream handshake and every HTTP
// request. Typical use is authentication:
//
//	skein.WithHeader("Authorization", "Bearer "+token)
func WithHeader(name, value string) Option {
	return func(o *Options) {
		if o.Headers == nil {
			o.Headers = make(map[string]string, 1)
		}

		o.Headers[name] = value
	}
}

// ===== Basic Configuration =====

// WithLogger sets the logger for debug output.
// If not set, logging is disabled (silent operation).
func WithLogger(logger *slog.Logger) Option {
	return func(o *Options) {
		o.Logger = logger
	}
}

// WithActionChannel sets the channel action envelopes are published to.
// Defaults to "actions".
func WithActionChannel(channel string) Option {
	return func(o *Options) {
		o.ActionChannel = channel
	}
}

// WithRequestTimeout sets the default deadline for SendAction calls that
// pass a non-positive timeout.
func WithRequestTimeout(timeout time.Duration) Option {
	return func(o *Options) {
		o.RequestTimeout = timeout
	}
}

// WithConnectTimeout bounds a single dial attempt, including the handshake.
func WithConnectTimeout(timeout time.Duration) Option {
	return func(o *Options) {
		o.ConnectTimeout = timeout
	}
}

// ===== Reconnection =====

// WithReconnect enables or disables automatic recovery after an abnormal
// close. Enabled by default.
func WithReconnect(enabled bool) Option {
	return func(o *Options) {
		o.Reconnect = enabled
	}
}

// WithMaxReconnectAttempts caps automatic dials per outage. When the cap is
// exceeded the client parks in StateFailed until a manual Connect.
func WithMaxReconnectAttempts(attempts int) Option {
	return func(o *Options) {
		o.MaxReconnectAttempts = attempts
	}
}

// WithReconnectDelay sets the base delay between reconnect attempts.
func WithReconnectDelay(delay time.Duration) Option {
	return func(o *Options) {
		o.ReconnectDelay = delay
	}
}

// WithMaxReconnectDelay caps the grown delay under BackoffLinear.
func WithMaxReconnectDelay(max time.Duration) Option {
	return func(o *Options) {
		o.MaxReconnectDelay = max
	}
}

// WithBackoff selects how the reconnect delay grows between attempts:
// BackoffFixed or BackoffLinear. No jitter is applied in either mode.
func WithBackoff(mode BackoffMode) Option {
	return func(o *Options) {
		o.Backoff = mode
	}
}

// ===== HTTP =====

// WithHTTPRetries sets how many times an idempotent HTTP request is
// re-issued after a transient failure.
func WithHTTPRetries(retries int) Option {
	return func(o *Options) {
		o.HTTPRetries = retries
	}
}

// WithHTTPTimeout bounds one HTTP attempt including the body read.
func WithHTTPTimeout(timeout time.Duration) Option {
	return func(o *Options) {
		o.HTTPTimeout = timeout
	}
}

// ===== Callbacks =====

// WithOnConnect sets a callback fired after the stream opens. reconnected is
// false for a manual Connect and true when automatic recovery reopened the
// stream. It runs on a connection goroutine and must not block.
func WithOnConnect(fn func(reconnected bool)) Option {
	return func(o *Options) {
		o.OnConnect = fn
	}
}

// WithOnDisconnect sets a callback fired when an open stream goes away,
// with the close cause (nil for a clean local disconnect).
func WithOnDisconnect(fn func(err error)) Option {
	return func(o *Options) {
		o.OnDisconnect = fn
	}
}

// WithOnSocketError sets a callback receiving diagnostics: malformed inbound
// frames, failed resubscribes, and the fatal reconnect-exhausted error.
// Diagnostics never fail an in-flight caller; this callback is the only
// place they surface.
func WithOnSocketError(fn func(err error)) Option {
	return func(o *Options) {
		o.OnSocketError = fn
	}
}

// WithOnUnmatched sets a callback receiving well-formed inbound frames that
// matched neither a pending action nor a subscribed channel.
func WithOnUnmatched(fn func(frame *Frame)) Option {
	return func(o *Options) {
		o.OnUnmatched = fn
	}
}

// WithOnStateChange sets an observer for every connection state transition.
func WithOnStateChange(fn func(from, to State)) Option {
	return func(o *Options) {
		o.OnStateChange = fn
	}
}

// ===== Validation =====

// WithActionSchema registers a JSON schema for an action's payload. The
// payload of every SendAction call for that action is validated before
// transmission; violations fail the call with a SchemaError.
func WithActionSchema(action string, schema *jsonschema.Schema) Option {
	return func(o *Options) {
		if o.ActionSchemas == nil {
			o.ActionSchemas = make(map[string]*jsonschema.Schema, 1)
		}

		o.ActionSchemas[action] = schema
	}
}

// ===== Instrumentation =====

// WithMetrics registers the client's Prometheus collectors with reg:
// frame counters by type, reconnect and drop counters, connection state and
// pending-request gauges, and an action round-trip histogram. A nil
// registerer leaves instrumentation disabled.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(o *Options) {
		o.MetricsRegistry = reg
	}
}

// ===== Advanced =====

// WithTransport injects a custom transport implementation.
// The transport must implement the Transport interface.
func WithTransport(transport Transport) Option {
	return func(o *Options) {
		o.Transport = transport
	}
}
