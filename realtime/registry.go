// Package realtime holds the presence registry, the per-connection session
// handler and the delivery hub between them. The registry is the only shared
// mutable structure of the subsystem; everything else is per-connection.
package realtime

import (
	"context"
	"sync"

	"care-chat/domain/event"
)

// EventSink is a user's live delivery channel. A sink must never block its
// caller beyond the context it is given.
type EventSink interface {
	Consume(ctx context.Context, e event.Event) error
}

// Registry maps an online user id to its delivery channel. Single process,
// in-memory, rebuilt from connection events alone. The registry owns handles,
// never connection teardown: replacing an entry does not close the previous
// channel, it only stops routing to it.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]EventSink
}

func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]EventSink)}
}

// Register installs or replaces the entry for userID. Last connected wins:
// a user connecting from a second channel takes over delivery.
func (r *Registry) Register(userID string, sink EventSink) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[userID] = sink
}

// Unregister removes the entry only when the stored sink is exactly the given
// one. A stale disconnect from a replaced connection must not evict the newer
// entry for the same user. Reports whether an entry was removed.
func (r *Registry) Unregister(userID string, sink EventSink) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.sessions[userID]
	if !ok || current != sink {
		return false
	}
	delete(r.sessions, userID)
	return true
}

func (r *Registry) Lookup(userID string) (EventSink, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sink, ok := r.sessions[userID]
	return sink, ok
}

func (r *Registry) IsOnline(userID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.sessions[userID]
	return ok
}

// Count reports how many users are currently connected.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
