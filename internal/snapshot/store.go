// Package snapshot stores completed-game snapshots. The orchestrator is the
// authoritative owner of this history; the leaderboard database is a
// downstream copy. Snapshots are indexed by session id and by board mode so
// the read path can serve "latest completed game per category" without
// touching a ledger.
package snapshot

import (
	"sync"

	"king-tiles-orchestrator/internal/model"
)

// Store is a mutex-guarded snapshot index.
type Store struct {
	mu     sync.RWMutex
	byID   map[uint64]*model.CompletedGameSnapshot
	byMode map[model.GameMode]*model.CompletedGameSnapshot
	latest *model.CompletedGameSnapshot
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		byID:   make(map[uint64]*model.CompletedGameSnapshot),
		byMode: make(map[model.GameMode]*model.CompletedGameSnapshot),
	}
}

// Put records a snapshot, superseding any earlier capture for the same
// session (settlement stores one snapshot after the end transaction and a
// second, final one after reward confirmation).
func (s *Store) Put(snap *model.CompletedGameSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.byID[snap.SessionID] = snap
	if cur := s.byMode[snap.Mode]; cur == nil || !snap.CompletedAt.Before(cur.CompletedAt) {
		s.byMode[snap.Mode] = snap
	}
	if s.latest == nil || !snap.CompletedAt.Before(s.latest.CompletedAt) {
		s.latest = snap
	}
}

// Get returns the snapshot for a session id, or nil.
func (s *Store) Get(id uint64) *model.CompletedGameSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.byID[id]
}

// LatestByMode returns the most recent snapshot for a board mode, or nil.
func (s *Store) LatestByMode(mode model.GameMode) *model.CompletedGameSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.byMode[mode]
}

// Latest returns the most recent snapshot overall, or nil.
func (s *Store) Latest() *model.CompletedGameSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latest
}

// SetRewardError persists a terminal reward failure on the stored snapshot's
// trace so operators and the manual retry entry point can see it.
func (s *Store) SetRewardError(id uint64, msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if snap := s.byID[id]; snap != nil {
		snap.Trace.RewardError = msg
	}
}
