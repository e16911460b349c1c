package protocol

import (
	"encoding/json"
	"log/slog"

	"github.com/skeinhq/skein-go/internal/errors"
	"github.com/skeinhq/skein-go/internal/metrics"
)

// DispatchFunc hands a channel message to its subscribers and reports how
// many handlers ran.
type DispatchFunc func(channel string, data json.RawMessage) int

// Router classifies every inbound frame and hands it to the right consumer.
//
// Classification order: a frame whose request_id matches a pending request
// settles that request; a response frame with an unknown id is dropped
// silently (it already settled or timed out); a frame naming a channel goes
// to that channel's handlers; anything left over is surfaced through the
// unmatched callback. Malformed input is reported as a diagnostic and
// otherwise ignored — it never tears down the connection and never reaches
// an in-flight caller.
type Router struct {
	log        *slog.Logger
	correlator *Correlator
	dispatch   DispatchFunc
	metrics    *metrics.Metrics

	onUnmatched func(frame *Frame)
	onError     func(err error)
}

// NewRouter creates a Router. dispatch must not be nil; the callbacks may be.
func NewRouter(
	log *slog.Logger,
	correlator *Correlator,
	dispatch DispatchFunc,
	onUnmatched func(frame *Frame),
	onError func(err error),
	m *metrics.Metrics,
) *Router {
	return &Router{
		log:         log.With("component", "router"),
		correlator:  correlator,
		dispatch:    dispatch,
		metrics:     m,
		onUnmatched: onUnmatched,
		onError:     onError,
	}
}

// Route processes one raw inbound frame. It runs on the read pump goroutine;
// handler and callback invocations are synchronous, which is what gives
// per-channel ordering.
func (r *Router) Route(raw []byte) {
	frame, err := Decode(raw)
	if err != nil {
		r.log.Warn("Dropping malformed frame", "error", err, "bytes", len(raw))
		r.metrics.FrameDropped(metrics.DropMalformed)

		if r.onError != nil {
			r.onError(&errors.ProtocolError{Err: err})
		}

		return
	}

	r.metrics.FrameReceived(frame.Type)

	if frame.RequestID != "" && r.correlator.Resolve(frame) {
		return
	}

	if frame.Type == TypeResponse {
		// Already settled or timed out; late responses die quietly.
		r.log.Debug("Dropping stale response", "request_id", frame.RequestID)
		r.metrics.FrameDropped(metrics.DropStaleResponse)

		return
	}

	if frame.Channel != "" {
		if n := r.dispatch(frame.Channel, frame.Data); n > 0 {
			return
		}
	}

	r.log.Debug("Unmatched frame", "type", frame.Type, "channel", frame.Channel)
	r.metrics.FrameDropped(metrics.DropUnmatched)

	if r.onUnmatched != nil {
		r.onUnmatched(frame)
	}
}
