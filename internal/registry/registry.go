// Package registry holds the orchestrator's live sessions. It is the sole
// owner of Session objects; removal is the only way a session stops being
// live (it may still exist as a completed snapshot elsewhere).
package registry

import (
	"sort"
	"sync"

	"king-tiles-orchestrator/internal/model"
)

// Registry is a mutex-guarded map of live sessions keyed by game id.
type Registry struct {
	mu       sync.RWMutex
	sessions map[uint64]*model.Session
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{sessions: make(map[uint64]*model.Session)}
}

// Put inserts a session. It returns false without inserting if a session with
// the same id is already live; a game id maps to at most one live session.
func (r *Registry) Put(s *model.Session) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sessions[s.ID]; exists {
		return false
	}
	r.sessions[s.ID] = s
	return true
}

// Get returns the live session for id, or nil.
func (r *Registry) Get(id uint64) *model.Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sessions[id]
}

// Remove deletes the session for id, returning it if it was live.
func (r *Registry) Remove(id uint64) *model.Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := r.sessions[id]
	delete(r.sessions, id)
	return s
}

// List returns the live sessions ordered by id.
func (r *Registry) List() []*model.Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*model.Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
