package socket

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/skeinhq/skein-go/internal/config"
)

func TestBackoff_FixedDelay(t *testing.T) {
	b := Backoff{Mode: config.BackoffFixed, Delay: 2 * time.Second, Max: 30 * time.Second}

	assert.Equal(t, 2*time.Second, b.Next(1))
	assert.Equal(t, 2*time.Second, b.Next(2))
	assert.Equal(t, 2*time.Second, b.Next(5))
}

func TestBackoff_LinearGrowth(t *testing.T) {
	b := Backoff{Mode: config.BackoffLinear, Delay: time.Second, Max: 30 * time.Second}

	assert.Equal(t, time.Second, b.Next(1))
	assert.Equal(t, 2*time.Second, b.Next(2))
	assert.Equal(t, 3*time.Second, b.Next(3))
}

func TestBackoff_CapsAtMax(t *testing.T) {
	b := Backoff{Mode: config.BackoffLinear, Delay: time.Second, Max: 3 * time.Second}

	assert.Equal(t, 3*time.Second, b.Next(3))
	assert.Equal(t, 3*time.Second, b.Next(10))
}

func TestBackoff_DefendsDegenerateInputs(t *testing.T) {
	b := Backoff{Mode: config.BackoffLinear, Delay: 0, Max: 0}

	assert.Equal(t, config.DefaultReconnectDelay, b.Next(0))
	assert.Equal(t, config.DefaultReconnectDelay, b.Next(1))
	assert.Equal(t, 2*config.DefaultReconnectDelay, b.Next(2))
}
