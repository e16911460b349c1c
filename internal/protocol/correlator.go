package protocol

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/skeinhq/skein-go/internal/errors"
)

// Result settles a pending request. Exactly one of Frame or Err is set.
type Result struct {
	Frame *Frame
	Err   error
}

// pendingAction tracks one outstanding correlated request.
type pendingAction struct {
	action string
	result chan Result // buffered 1, written once by whoever claims the entry
}

// Correlator tracks outstanding request/response pairs by correlation id.
//
// Every pending entry settles exactly once, by whichever of {matching
// response, deadline, teardown, caller cancellation} happens first. The
// winner claims the entry under the lock before touching its result channel,
// so a late response finds nothing to resolve and is dropped.
type Correlator struct {
	log *slog.Logger

	// counter is monotonic for the life of the client and deliberately not
	// reset on reconnect: a stale in-flight id from a previous connection
	// epoch can never collide with a fresh one.
	counter atomic.Uint64

	pendingMu sync.Mutex
	pending   map[string]*pendingAction
}

// NewCorrelator creates a Correlator.
func NewCorrelator(log *slog.Logger) *Correlator {
	return &Correlator{
		log:     log.With("component", "correlator"),
		pending: make(map[string]*pendingAction, 16),
	}
}

// NextID issues the next correlation id.
func (c *Correlator) NextID() string {
	return strconv.FormatUint(c.counter.Add(1), 10)
}

// Track registers a pending request and returns the channel its settlement
// arrives on. Register before transmitting so a fast response cannot beat
// the bookkeeping. The caller must either receive a Result or call Discard.
func (c *Correlator) Track(id, action string) <-chan Result {
	pending := &pendingAction{
		action: action,
		result: make(chan Result, 1),
	}

	c.pendingMu.Lock()
	c.pending[id] = pending
	c.pendingMu.Unlock()

	c.log.Debug("Tracking request", "request_id", id, "action", action)

	return pending.result
}

// Discard drops a pending entry without settling it. Used when the send
// itself failed and no result will ever arrive.
func (c *Correlator) Discard(id string) {
	c.pendingMu.Lock()
	delete(c.pending, id)
	c.pendingMu.Unlock()
}

// Await blocks until the request settles or the deadline passes, returning
// the response frame's data. A response with its success flag down fails
// with a ProtocolError carrying the remote error text.
func (c *Correlator) Await(
	ctx context.Context,
	id string,
	action string,
	result <-chan Result,
	timeout time.Duration,
) (json.RawMessage, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case res := <-result:
		if res.Err != nil {
			c.log.Debug("Request failed", "request_id", id, "error", res.Err)

			return nil, res.Err
		}

		if !res.Frame.Success {
			c.log.Warn("Action rejected by remote",
				"request_id", id, "action", action, "error", res.Frame.Error)

			return nil, &errors.ProtocolError{Remote: res.Frame.Error}
		}

		c.log.Debug("Action resolved", "request_id", id, "action", action)

		return res.Frame.Data, nil

	case <-timer.C:
		c.Discard(id)
		c.log.Warn("Action timed out", "request_id", id, "action", action, "timeout", timeout)

		return nil, &errors.TimeoutError{Action: action, Timeout: timeout}

	case <-ctx.Done():
		c.Discard(id)
		c.log.Debug("Action cancelled", "request_id", id, "action", action)

		return nil, ctx.Err()
	}
}

// Resolve claims the pending entry matching frame.RequestID and settles it
// with the frame. It reports false when nothing is pending under that id,
// meaning the entry already settled or was never tracked; the router drops
// such frames.
func (c *Correlator) Resolve(frame *Frame) bool {
	// Find and claim the pending request atomically.
	c.pendingMu.Lock()

	pending, exists := c.pending[frame.RequestID]
	if exists {
		delete(c.pending, frame.RequestID)
	}

	c.pendingMu.Unlock()

	if !exists {
		return false
	}

	// We own the entry now; the channel is buffered so this never blocks.
	pending.result <- Result{Frame: frame}

	return true
}

// FailAll settles every pending request with err. Teardown calls this so
// in-flight callers fail immediately instead of timing out naturally.
func (c *Correlator) FailAll(err error) {
	c.pendingMu.Lock()
	claimed := c.pending
	c.pending = make(map[string]*pendingAction, 16)
	c.pendingMu.Unlock()

	for id, pending := range claimed {
		c.log.Debug("Failing pending request",
			"request_id", id, "action", pending.action, "error", err)
		pending.result <- Result{Err: err}
	}
}

// Len reports how many requests are currently pending.
func (c *Correlator) Len() int {
	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()

	return len(c.pending)
}
