package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/skeinhq/skein-go/internal/errors"
)

func TestDefault_Validates(t *testing.T) {
	o := Default()
	o.URL = "ws://service.test/stream"

	require.NoError(t, o.Validate())
}

func TestValidate_RequiresURLOrTransport(t *testing.T) {
	o := Default()

	require.ErrorIs(t, o.Validate(), errors.ErrMissingURL)
}

func TestValidate_RejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Options)
	}{
		{"empty action channel", func(o *Options) { o.ActionChannel = "" }},
		{"negative request timeout", func(o *Options) { o.RequestTimeout = -time.Second }},
		{"negative reconnect attempts", func(o *Options) { o.MaxReconnectAttempts = -1 }},
		{"zero reconnect delay while enabled", func(o *Options) { o.ReconnectDelay = 0 }},
		{"unknown backoff mode", func(o *Options) { o.Backoff = "exponential" }},
		{"negative http retries", func(o *Options) { o.HTTPRetries = -1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := Default()
			o.URL = "ws://service.test/stream"
			tt.mutate(o)

			require.Error(t, o.Validate())
		})
	}
}

func TestValidate_ReconnectDisabledIgnoresDelay(t *testing.T) {
	o := Default()
	o.URL = "ws://service.test/stream"
	o.Reconnect = false
	o.ReconnectDelay = 0

	require.NoError(t, o.Validate())
}

func TestState_String(t *testing.T) {
	require.Equal(t, "idle", StateIdle.String())
	require.Equal(t, "open", StateOpen.String())
	require.Equal(t, "failed", StateFailed.String())
	require.Equal(t, "state(42)", State(42).String())
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "skein.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func TestLoadFile_FullConfig(t *testing.T) {
	path := writeConfig(t, `
url: wss://service.test/stream
http_base_url: https://service.test/api
action_channel: rpc
request_timeout: 5s
reconnect: false
max_reconnect_attempts: 3
reconnect_delay: 250ms
backoff: fixed
http_retries: 1
headers:
  Authorization: Bearer token
`)

	fc, err := LoadFile(path)
	require.NoError(t, err)

	o := Default()
	fc.Apply(o)

	require.Equal(t, "wss://service.test/stream", o.URL)
	require.Equal(t, "https://service.test/api", o.HTTPBaseURL)
	require.Equal(t, "rpc", o.ActionChannel)
	require.Equal(t, 5*time.Second, o.RequestTimeout)
	require.False(t, o.Reconnect)
	require.Equal(t, 3, o.MaxReconnectAttempts)
	require.Equal(t, 250*time.Millisecond, o.ReconnectDelay)
	require.Equal(t, BackoffFixed, o.Backoff)
	require.Equal(t, 1, o.HTTPRetries)
	require.Equal(t, "Bearer token", o.Headers["Authorization"])
	require.NoError(t, o.Validate())
}

func TestLoadFile_PartialConfigKeepsDefaults(t *testing.T) {
	path := writeConfig(t, "url: ws://service.test/stream\n")

	fc, err := LoadFile(path)
	require.NoError(t, err)

	o := Default()
	fc.Apply(o)

	require.Equal(t, "ws://service.test/stream", o.URL)
	require.Equal(t, DefaultActionChannel, o.ActionChannel)
	require.Equal(t, DefaultRequestTimeout, o.RequestTimeout)
	require.True(t, o.Reconnect)
}

func TestLoadFile_UnknownKeyRejected(t *testing.T) {
	path := writeConfig(t, "endpoint: ws://service.test/stream\n")

	_, err := LoadFile(path)
	require.Error(t, err)
}

func TestLoadFile_BadDuration(t *testing.T) {
	path := writeConfig(t, "request_timeout: soon\n")

	_, err := LoadFile(path)
	require.ErrorContains(t, err, "invalid duration")
}

func TestLoadFile_Missing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}
