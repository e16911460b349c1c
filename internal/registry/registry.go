// Package registry tracks channel subscriptions: which channels the caller
// wants active and, per channel, the ordered list of handlers to invoke.
//
// Presence in the registry is the desired-active flag. It is the single
// source of truth for what gets resubscribed after a reconnect, independent
// of whether the underlying stream is currently open.
package registry

import (
	"encoding/json"
	"log/slog"
	"maps"
	"slices"
	"sync"
)

// Handler receives one message published on a subscribed channel. Handlers
// run synchronously on the read pump in registration order; a slow handler
// delays everything behind it.
type Handler func(channel string, data json.RawMessage)

// entry pairs a handler with a registry-unique id so callers can detach
// exactly the handler they attached.
type entry struct {
	id      uint64
	handler Handler
}

// Registry is safe for concurrent use.
type Registry struct {
	log *slog.Logger

	mu       sync.RWMutex
	nextID   uint64
	channels map[string][]entry
}

// New creates an empty Registry.
func New(log *slog.Logger) *Registry {
	return &Registry{
		log:      log.With("component", "registry"),
		channels: make(map[string][]entry, 8),
	}
}

// Attach appends a handler to the channel's list and marks the channel
// desired-active. It returns an id for later Detach and reports whether the
// channel is newly desired, which is when the caller owes the wire a
// subscribe frame.
func (r *Registry) Attach(channel string, handler Handler) (uint64, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, existed := r.channels[channel]

	r.nextID++
	id := r.nextID
	r.channels[channel] = append(r.channels[channel], entry{id: id, handler: handler})

	r.log.Debug("Handler registered", "channel", channel, "handlers", len(r.channels[channel]))

	return id, !existed
}

// Add is Attach for callers that never detach a single handler.
func (r *Registry) Add(channel string, handler Handler) bool {
	_, isNew := r.Attach(channel, handler)

	return isNew
}

// Detach removes the handler identified by id. It reports whether the
// channel left the desired-active set as a result.
func (r *Registry) Detach(channel string, id uint64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	entries, existed := r.channels[channel]
	if !existed {
		return false
	}

	entries = slices.DeleteFunc(entries, func(e entry) bool { return e.id == id })
	if len(entries) == 0 {
		delete(r.channels, channel)

		r.log.Debug("Channel removed", "channel", channel)

		return true
	}

	r.channels[channel] = entries

	return false
}

// Remove clears all handlers for the channel and drops it from the
// desired-active set. It reports whether the channel was present.
func (r *Registry) Remove(channel string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, existed := r.channels[channel]
	delete(r.channels, channel)

	if existed {
		r.log.Debug("Channel removed", "channel", channel)
	}

	return existed
}

// Channels returns the desired-active set, sorted for deterministic
// resubscribe order.
func (r *Registry) Channels() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return slices.Sorted(maps.Keys(r.channels))
}

// Dispatch invokes every handler registered for the channel, in order, and
// reports how many ran. Handlers execute outside the lock so they may call
// back into the registry.
func (r *Registry) Dispatch(channel string, data json.RawMessage) int {
	r.mu.RLock()
	entries := slices.Clone(r.channels[channel])
	r.mu.RUnlock()

	for _, e := range entries {
		e.handler(channel, data)
	}

	return len(entries)
}

// Len reports how many channels are desired-active.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.channels)
}
