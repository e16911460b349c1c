// Package client composes the skein runtime behind one facade.
//
// The Client ties together the connection state machine, the request
// correlator, the subscription registry, and the HTTP collaborator. Each of
// those owns its own state; the facade holds no protocol state of its own
// beyond the closed flag and the client identity.
//
// Operations that need an open connection fail fast with a ConnectionError
// instead of queuing. Correlated actions settle exactly once; subscriptions
// survive reconnects; Close is terminal.
package client
