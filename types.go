package skein

import (
	"github.com/skeinhq/skein-go/internal/config"
	"github.com/skeinhq/skein-go/internal/protocol"
	"github.com/skeinhq/skein-go/internal/registry"
	"github.com/skeinhq/skein-go/internal/rest"
)

// Re-export types from internal packages

// ===== Options and Configuration =====

// Options configures the behavior of a skein client. Construct it through
// the functional options; the zero value is not valid.
type Options = config.Options

// FileConfig is the YAML shape accepted by LoadConfigFile. Pointer fields
// distinguish "absent" from zero so a file only overrides what it names.
type FileConfig = config.FileConfig

// LoadConfigFile reads and decodes a YAML config file for NewFromFile or a
// manual FileConfig.Apply. Unknown keys are rejected.
func LoadConfigFile(path string) (*FileConfig, error) {
	return config.LoadFile(path)
}

// BackoffMode selects how the reconnect delay grows between attempts.
type BackoffMode = config.BackoffMode

const (
	// BackoffFixed waits the same delay before every attempt.
	BackoffFixed = config.BackoffFixed
	// BackoffLinear waits delay * attempt, capped at the max delay.
	BackoffLinear = config.BackoffLinear
)

// ===== Connection State =====

// State identifies the connection lifecycle phase.
type State = config.State

const (
	// StateIdle means no connection exists and none is being attempted.
	StateIdle = config.StateIdle
	// StateConnecting means a dial is in flight.
	StateConnecting = config.StateConnecting
	// StateOpen means the stream is up and operations may be sent.
	StateOpen = config.StateOpen
	// StateClosing means an explicit disconnect is tearing the stream down.
	StateClosing = config.StateClosing
	// StateReconnecting means automatic recovery is between attempts.
	StateReconnecting = config.StateReconnecting
	// StateFailed means reconnection exhausted its attempts. Terminal until
	// a manual Connect.
	StateFailed = config.StateFailed
)

// ===== Wire Protocol =====

// Frame is the wire unit exchanged over the stream.
type Frame = protocol.Frame

// ActionEnvelope is the application payload of a correlated publish frame.
type ActionEnvelope = protocol.ActionEnvelope

// Frame type tags on the wire.
const (
	TypeSubscribe      = protocol.TypeSubscribe
	TypeUnsubscribe    = protocol.TypeUnsubscribe
	TypePublish        = protocol.TypePublish
	TypeBroadcast      = protocol.TypeBroadcast
	TypeResponse       = protocol.TypeResponse
	TypeChannelMessage = protocol.TypeChannelMessage
)

// ===== Subscriptions =====

// ChannelHandler receives one message published on a subscribed channel.
// Handlers run synchronously on the connection's read goroutine in
// registration order; a slow handler delays everything behind it.
type ChannelHandler = registry.Handler

// ===== HTTP =====

// RESTClient is the request/response client for the service's HTTP API,
// reached through Client.HTTP.
type RESTClient = rest.Client

// RESTResponse is the outcome of a RESTClient call.
type RESTResponse = rest.Response
