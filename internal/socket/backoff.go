package socket

import (
	"time"

	"github.com/skeinhq/skein-go/internal/config"
)

// Backoff computes the wait before a reconnect attempt. No jitter is applied:
// a single client instance per process gains nothing from it, though a fleet
// of clients reconnecting against one service would want some.
type Backoff struct {
	Mode  config.BackoffMode
	Delay time.Duration
	Max   time.Duration
}

// Next returns the wait before the given attempt (1-based).
func (b Backoff) Next(attempt int) time.Duration {
	if attempt <= 0 {
		attempt = 1
	}

	delay := b.Delay
	if delay <= 0 {
		delay = config.DefaultReconnectDelay
	}

	if b.Mode == config.BackoffLinear {
		delay = time.Duration(attempt) * delay
	}

	if b.Max > 0 && delay > b.Max {
		delay = b.Max
	}

	return delay
}
