package skein

import "github.com/skeinhq/skein-go/internal/config"

// Transport defines the duplex stream interface the client drives.
// Implement this to provide custom transports for testing, mocking,
// or alternative wire protocols.
//
// The default implementation dials gorilla/websocket. Custom transports are
// injected via WithTransport.
type Transport = config.Transport

// Close codes shared with RFC 6455. The client sends CloseNormal on explicit
// disconnect; transports report CloseAbnormal for streams that died without
// a close handshake. Anything other than CloseNormal and CloseGoingAway
// triggers automatic reconnection.
const (
	CloseNormal    = config.CloseNormal
	CloseGoingAway = config.CloseGoingAway
	CloseAbnormal  = config.CloseAbnormal
)
