// Package wstransport provides the WebSocket transport for the streaming
// connection.
//
// This package implements the Transport interface on top of
// github.com/gorilla/websocket. It handles the dial handshake, serialized
// frame writes, close-frame semantics, and the translation of read errors
// into close codes the connection state machine can act on.
package wstransport
