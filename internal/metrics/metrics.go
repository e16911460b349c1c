// Package metrics provides optional Prometheus instrumentation for the
// client. A nil *Metrics no-ops every method, so callers never branch on
// whether instrumentation is enabled.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "skein"

// Drop reasons recorded by the router.
const (
	DropMalformed     = "malformed"
	DropStaleResponse = "stale_response"
	DropUnmatched     = "unmatched"
)

// Metrics holds the client's Prometheus collectors.
type Metrics struct {
	framesSent     *prometheus.CounterVec
	framesReceived *prometheus.CounterVec
	framesDropped  *prometheus.CounterVec
	reconnects     prometheus.Counter
	connState      prometheus.Gauge
	pending        prometheus.Gauge
	actionSeconds  *prometheus.HistogramVec
}

// New registers the client's collectors with reg and returns the handle.
// A nil registerer disables instrumentation entirely.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		return nil
	}

	factory := promauto.With(reg)

	return &Metrics{
		framesSent: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_sent_total",
			Help:      "Frames written to the stream, by frame type",
		}, []string{"type"}),

		framesReceived: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_received_total",
			Help:      "Well-formed frames read from the stream, by frame type",
		}, []string{"type"}),

		framesDropped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_dropped_total",
			Help:      "Inbound frames discarded without dispatch, by reason",
		}, []string{"reason"}),

		reconnects: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconnects_total",
			Help:      "Successful automatic reconnections",
		}),

		connState: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connection_state",
			Help:      "Connection state code (0 idle, 1 connecting, 2 open, 3 closing, 4 reconnecting, 5 failed)",
		}),

		pending: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pending_requests",
			Help:      "Correlated requests awaiting a response",
		}),

		actionSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "action_duration_seconds",
			Help:      "Round-trip time of correlated actions",
			Buckets:   prometheus.DefBuckets,
		}, []string{"action"}),
	}
}

// FrameSent records one outbound frame.
func (m *Metrics) FrameSent(frameType string) {
	if m == nil {
		return
	}

	m.framesSent.WithLabelValues(frameType).Inc()
}

// FrameReceived records one decoded inbound frame.
func (m *Metrics) FrameReceived(frameType string) {
	if m == nil {
		return
	}

	m.framesReceived.WithLabelValues(frameType).Inc()
}

// FrameDropped records a discarded inbound frame.
func (m *Metrics) FrameDropped(reason string) {
	if m == nil {
		return
	}

	m.framesDropped.WithLabelValues(reason).Inc()
}

// Reconnected records one successful automatic reconnection.
func (m *Metrics) Reconnected() {
	if m == nil {
		return
	}

	m.reconnects.Inc()
}

// SetState publishes the connection state code.
func (m *Metrics) SetState(code int32) {
	if m == nil {
		return
	}

	m.connState.Set(float64(code))
}

// SetPending publishes the pending request count.
func (m *Metrics) SetPending(n int) {
	if m == nil {
		return
	}

	m.pending.Set(float64(n))
}

// ObserveAction records one action round trip.
func (m *Metrics) ObserveAction(action string, seconds float64) {
	if m == nil {
		return
	}

	m.actionSeconds.WithLabelValues(action).Observe(seconds)
}
