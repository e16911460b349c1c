// Package socket drives the lifecycle of the streaming connection.
//
// This package owns the connection state machine: dialing, the read pump
// that feeds inbound frames to the protocol router, teardown on normal and
// abnormal closes, and automatic recovery with backoff and resubscription.
// It is transport-agnostic; the actual WebSocket handling lives behind the
// Transport interface.
package socket
