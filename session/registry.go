// Package session tracks which sessions still have undelivered records,
// so session retention elsewhere does not prune data a pending record
// references.
package session

import "sync"

// Coordinator is notified when a record starts and stops pinning its
// session.
type Coordinator interface {
	// Lock pins sessionID on behalf of recordID.
	Lock(recordID, sessionID string)
	// Unlock releases the pin held by recordID. Unknown IDs are ignored.
	Unlock(recordID string)
}

// Registry is an in-process Coordinator.
type Registry struct {
	mu      sync.Mutex
	holders map[string]string // record ID -> session ID
	counts  map[string]int    // session ID -> live pins
}

var _ Coordinator = (*Registry)(nil)

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		holders: make(map[string]string),
		counts:  make(map[string]int),
	}
}

// Lock implements Coordinator. Records without a session are ignored.
func (r *Registry) Lock(recordID, sessionID string) {
	if sessionID == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.holders[recordID]; ok {
		return
	}
	r.holders[recordID] = sessionID
	r.counts[sessionID]++
}

// Unlock implements Coordinator.
func (r *Registry) Unlock(recordID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sessionID, ok := r.holders[recordID]
	if !ok {
		return
	}
	delete(r.holders, recordID)
	if r.counts[sessionID]--; r.counts[sessionID] <= 0 {
		delete(r.counts, sessionID)
	}
}

// Sessions returns the pinned sessions with their pin counts.
func (r *Registry) Sessions() map[string]int {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]int, len(r.counts))
	for k, v := range r.counts {
		out[k] = v
	}
	return out
}
