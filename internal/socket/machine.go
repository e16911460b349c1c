package socket

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/skeinhq/skein-go/internal/config"
	"github.com/skeinhq/skein-go/internal/errors"
	"github.com/skeinhq/skein-go/internal/metrics"
	"github.com/skeinhq/skein-go/internal/protocol"
	"github.com/skeinhq/skein-go/internal/registry"
)

// connectCycle is one connect or recovery attempt cycle. Joiners hold their
// own pointer, so a finished cycle's outcome cannot be clobbered by the next.
type connectCycle struct {
	done chan struct{}
	err  error
}

// Machine owns the transport and the connection lifecycle: it is the only
// component that mutates connection state. All other components observe it
// through State or the configured callbacks.
type Machine struct {
	log        *slog.Logger
	opts       *config.Options
	transport  config.Transport
	correlator *protocol.Correlator
	registry   *registry.Registry
	router     *protocol.Router
	metrics    *metrics.Metrics
	backoff    Backoff

	mu          sync.Mutex
	state       config.State
	attempts    int
	manualClose bool

	// epoch counts successful opens; the read pump tags itself with the
	// epoch it serves so a stale pump cannot act on a newer connection.
	epoch uint64

	// cycle is non-nil while a connect or recovery cycle runs. Concurrent
	// Connect calls join it instead of racing a second dial.
	cycle *connectCycle

	// cancelRetry aborts a pending reconnect delay.
	cancelRetry chan struct{}

	group *errgroup.Group
}

// NewMachine wires the state machine to its collaborators. The router is
// built here because the machine's read pump is the only caller.
func NewMachine(
	log *slog.Logger,
	opts *config.Options,
	transport config.Transport,
	correlator *protocol.Correlator,
	reg *registry.Registry,
	m *metrics.Metrics,
) *Machine {
	machine := &Machine{
		log:        log.With("component", "socket"),
		opts:       opts,
		transport:  transport,
		correlator: correlator,
		registry:   reg,
		metrics:    m,
		backoff: Backoff{
			Mode:  opts.Backoff,
			Delay: opts.ReconnectDelay,
			Max:   opts.MaxReconnectDelay,
		},
	}

	machine.router = protocol.NewRouter(
		log, correlator, reg.Dispatch, opts.OnUnmatched, opts.OnSocketError, m)

	return machine
}

// State returns the current connection state.
func (m *Machine) State() config.State {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.state
}

// Connected reports whether the stream is open.
func (m *Machine) Connected() bool {
	return m.State() == config.StateOpen
}

// Connect opens the stream. It is idempotent: a call while Open returns nil
// immediately, and a call while a connect or recovery cycle is running joins
// that cycle and returns its outcome. From Idle or Failed it starts a fresh
// cycle and resets the reconnect attempt counter.
func (m *Machine) Connect(ctx context.Context) error {
	m.mu.Lock()

	switch m.state {
	case config.StateOpen:
		m.mu.Unlock()

		return nil

	case config.StateConnecting, config.StateReconnecting:
		cycle := m.cycle
		m.mu.Unlock()

		if cycle == nil {
			return nil
		}

		select {
		case <-cycle.done:
			return cycle.err
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	// Idle or Failed: start a fresh manual cycle.
	m.attempts = 0
	m.manualClose = false
	m.cycle = &connectCycle{done: make(chan struct{})}
	from := m.transitionLocked(config.StateConnecting)
	m.mu.Unlock()

	m.notifyState(from, config.StateConnecting)

	err := m.dial(ctx)

	m.mu.Lock()

	if m.manualClose {
		// Disconnect won the race; discard the fresh stream if we got one.
		if err == nil {
			_ = m.transport.Close(config.CloseNormal, "client disconnected")
		}

		connErr := &errors.ConnectionError{Err: errors.ErrConnectionClosed}
		m.finishCycleLocked(connErr)
		m.mu.Unlock()

		return connErr
	}

	if err != nil {
		connErr := &errors.ConnectionError{Err: err}
		from := m.transitionLocked(config.StateIdle)
		m.finishCycleLocked(connErr)
		m.mu.Unlock()

		m.notifyState(from, config.StateIdle)
		m.log.Warn("Connect failed", "url", m.opts.URL, "error", err)

		return connErr
	}

	from = m.openLocked()
	m.finishCycleLocked(nil)
	m.mu.Unlock()

	m.notifyState(from, config.StateOpen)
	m.log.Info("Connected", "url", m.opts.URL)

	// The desired-active set survives disconnects; restore it on every open,
	// not just automatic recovery. Empty on a first connect.
	m.resubscribe()

	if cb := m.opts.OnConnect; cb != nil {
		cb(false)
	}

	return nil
}

// Disconnect tears the connection down: it always lands in Idle immediately
// regardless of prior state, cancels any pending reconnect, closes the
// transport with a normal closure code, and fails every pending request.
// It is idempotent.
func (m *Machine) Disconnect() error {
	m.mu.Lock()

	m.manualClose = true

	if m.cancelRetry != nil {
		close(m.cancelRetry)
		m.cancelRetry = nil
	}

	m.finishCycleLocked(&errors.ConnectionError{Err: errors.ErrConnectionClosed})

	prev := m.state
	if prev == config.StateIdle {
		m.mu.Unlock()

		return nil
	}

	wasOpen := prev == config.StateOpen

	type change struct{ from, to config.State }

	changes := make([]change, 0, 2)

	if wasOpen {
		from := m.transitionLocked(config.StateClosing)
		changes = append(changes, change{from, config.StateClosing})
	}

	from := m.transitionLocked(config.StateIdle)
	changes = append(changes, change{from, config.StateIdle})
	m.mu.Unlock()

	var closeErr error
	if wasOpen {
		closeErr = m.transport.Close(config.CloseNormal, "client disconnect")
	}

	for _, c := range changes {
		m.notifyState(c.from, c.to)
	}

	m.failPending()
	m.log.Info("Disconnected")

	if wasOpen {
		if cb := m.opts.OnDisconnect; cb != nil {
			cb(nil)
		}
	}

	return closeErr
}

// Shutdown disconnects and then joins the read pump. Callers must not invoke
// it from a channel handler; handlers run on the pump being joined.
func (m *Machine) Shutdown() error {
	err := m.Disconnect()

	m.mu.Lock()
	group := m.group
	m.mu.Unlock()

	if group != nil {
		_ = group.Wait()
	}

	return err
}

// Send transmits one frame. It fails fast when the stream is not open;
// nothing is ever queued.
func (m *Machine) Send(ctx context.Context, frame *protocol.Frame) error {
	m.mu.Lock()
	open := m.state == config.StateOpen
	m.mu.Unlock()

	if !open {
		return &errors.ConnectionError{Err: errors.ErrNotConnected}
	}

	raw, err := frame.Encode()
	if err != nil {
		return err
	}

	if err := m.transport.SendMessage(ctx, raw); err != nil {
		return &errors.TransportError{Op: "send", Err: err}
	}

	m.metrics.FrameSent(frame.Type)

	return nil
}

// dial runs one transport dial bounded by the configured connect timeout.
func (m *Machine) dial(ctx context.Context) error {
	if m.opts.ConnectTimeout > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, m.opts.ConnectTimeout)
		defer cancel()
	}

	return m.transport.Dial(ctx, m.opts.URL)
}

// openLocked marks the stream open and starts its read pump. Must be called
// with mu held; returns the prior state.
func (m *Machine) openLocked() config.State {
	m.epoch++
	epoch := m.epoch
	m.attempts = 0
	from := m.transitionLocked(config.StateOpen)

	// The pump gets a background-based context: the dial context's deadline
	// must not kill reading after the connect succeeded.
	group, pumpCtx := errgroup.WithContext(context.Background())
	m.group = group

	msgs, errs := m.transport.ReadMessages(pumpCtx)

	group.Go(func() error {
		m.readPump(epoch, msgs, errs)

		return nil
	})

	return from
}

// readPump routes inbound frames until the stream reports why it stopped.
func (m *Machine) readPump(epoch uint64, msgs <-chan []byte, errs <-chan error) {
	for {
		select {
		case raw, ok := <-msgs:
			if !ok {
				msgs = nil

				continue
			}

			m.router.Route(raw)

		case err := <-errs:
			m.sessionEnded(epoch, err)

			return
		}
	}
}

// sessionEnded handles the end of one connection epoch: it fails pending
// requests and either parks in Idle or begins recovery.
func (m *Machine) sessionEnded(epoch uint64, cause error) {
	m.mu.Lock()

	if epoch != m.epoch || m.state != config.StateOpen {
		// A newer epoch took over, or Disconnect already handled this.
		m.mu.Unlock()

		return
	}

	recovering := m.shouldRecoverLocked(cause)

	var from config.State

	var cancel chan struct{}

	if recovering {
		from = m.transitionLocked(config.StateReconnecting)
		m.cycle = &connectCycle{done: make(chan struct{})}
		cancel = make(chan struct{})
		m.cancelRetry = cancel
	} else {
		from = m.transitionLocked(config.StateIdle)
	}

	to := m.state
	m.mu.Unlock()

	m.log.Warn("Connection lost", "cause", cause, "reconnecting", recovering)
	m.notifyState(from, to)
	m.failPending()

	if cb := m.opts.OnDisconnect; cb != nil {
		cb(cause)
	}

	if recovering {
		go m.recover(cancel)
	}
}

// shouldRecoverLocked decides whether an ended session triggers automatic
// reconnection. Clean closes and explicit disconnects never do.
func (m *Machine) shouldRecoverLocked(cause error) bool {
	if !m.opts.Reconnect || m.manualClose || cause == nil {
		return false
	}

	var closed *errors.SocketClosedError
	if stderrors.As(cause, &closed) && closed.Normal() {
		return false
	}

	return true
}

// recover runs the reconnect loop: wait, dial, repeat, until the stream is
// back, the attempt budget is gone, or Disconnect cancels it.
func (m *Machine) recover(cancel <-chan struct{}) {
	for {
		m.mu.Lock()

		if m.manualClose || m.state != config.StateReconnecting {
			m.mu.Unlock()

			return
		}

		m.attempts++
		attempt := m.attempts

		if attempt > m.opts.MaxReconnectAttempts {
			fatal := &errors.ConnectionError{Err: fmt.Errorf(
				"%w after %d attempts", errors.ErrReconnectFailed, m.opts.MaxReconnectAttempts)}
			from := m.transitionLocked(config.StateFailed)
			m.finishCycleLocked(fatal)
			m.cancelRetry = nil
			m.mu.Unlock()

			m.notifyState(from, config.StateFailed)
			m.log.Error("Reconnect attempts exhausted",
				"attempts", m.opts.MaxReconnectAttempts)

			if cb := m.opts.OnSocketError; cb != nil {
				cb(fatal)
			}

			return
		}

		delay := m.backoff.Next(attempt)
		m.mu.Unlock()

		m.log.Info("Reconnecting", "attempt", attempt,
			"max", m.opts.MaxReconnectAttempts, "delay", delay)

		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-cancel:
			timer.Stop()

			return
		}

		m.mu.Lock()

		if m.manualClose || m.state != config.StateReconnecting {
			m.mu.Unlock()

			return
		}

		from := m.transitionLocked(config.StateConnecting)
		m.mu.Unlock()
		m.notifyState(from, config.StateConnecting)

		err := m.dial(context.Background())

		m.mu.Lock()

		if m.manualClose {
			if err == nil {
				_ = m.transport.Close(config.CloseNormal, "client disconnected")
			}

			m.finishCycleLocked(&errors.ConnectionError{Err: errors.ErrConnectionClosed})
			m.mu.Unlock()

			return
		}

		if err != nil {
			from := m.transitionLocked(config.StateReconnecting)
			m.mu.Unlock()

			m.notifyState(from, config.StateReconnecting)
			m.log.Warn("Reconnect attempt failed", "attempt", attempt, "error", err)

			continue
		}

		from = m.openLocked()
		m.cancelRetry = nil
		m.finishCycleLocked(nil)
		m.mu.Unlock()

		m.notifyState(from, config.StateOpen)
		m.metrics.Reconnected()
		m.resubscribe()
		m.log.Info("Reconnected", "attempt", attempt)

		if cb := m.opts.OnConnect; cb != nil {
			cb(true)
		}

		return
	}
}

// resubscribe retransmits subscribe frames for the desired-active set.
// Fire-and-forget: failures are diagnostics, no acknowledgment is awaited,
// and channels count as active again on local state alone.
func (m *Machine) resubscribe() {
	channels := m.registry.Channels()
	if len(channels) == 0 {
		return
	}

	m.log.Info("Resubscribing channels", "count", len(channels))

	for _, channel := range channels {
		if err := m.Send(context.Background(), protocol.Subscribe(channel)); err != nil {
			m.log.Warn("Resubscribe failed", "channel", channel, "error", err)

			if cb := m.opts.OnSocketError; cb != nil {
				cb(&errors.TransportError{Op: "resubscribe", Err: err})
			}
		}
	}
}

// failPending rejects every pending request with a connection-closed error.
// Teardown must never let them time out naturally.
func (m *Machine) failPending() {
	m.correlator.FailAll(&errors.ConnectionError{Err: errors.ErrConnectionClosed})
	m.metrics.SetPending(0)
}

// transitionLocked swaps the state and returns the prior one. Must be called
// with mu held; notifyState emits the observer callback outside the lock.
func (m *Machine) transitionLocked(to config.State) config.State {
	from := m.state
	m.state = to
	m.metrics.SetState(int32(to))

	return from
}

func (m *Machine) notifyState(from, to config.State) {
	if from == to {
		return
	}

	m.log.Debug("State changed", "from", from, "to", to)

	if cb := m.opts.OnStateChange; cb != nil {
		cb(from, to)
	}
}

// finishCycleLocked settles the in-flight connect cycle, releasing joiners.
// Must be called with mu held.
func (m *Machine) finishCycleLocked(err error) {
	if m.cycle == nil {
		return
	}

	m.cycle.err = err
	close(m.cycle.done)
	m.cycle = nil
}
