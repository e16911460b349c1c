// Package protocol implements the wire protocol for the skein stream: frame
// encoding and decoding, action envelopes, request/response correlation, and
// classification of inbound traffic.
//
// The Correlator guarantees that every tracked request settles exactly once,
// by whichever of {matching response, deadline, teardown, cancellation}
// happens first. Correlation ids are monotonic for the life of the client
// and survive reconnects, so ids from an earlier connection epoch cannot be
// confused with fresh ones.
//
// The Router runs on the connection's read pump and dispatches synchronously:
// messages on one channel reach their handlers in arrival order.
//
// Example usage:
//
//	correlator := protocol.NewCorrelator(log)
//	id := correlator.NextID()
//	result := correlator.Track(id, "ping")
//
//	// ... transmit the publish frame carrying the envelope ...
//
//	data, err := correlator.Await(ctx, id, "ping", result, 5*time.Second)
package protocol
