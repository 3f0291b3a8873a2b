// Package inflight tracks currently-executing lifecycle operations per session
// id. The guard is an atomic check-and-set: two concurrent triggers for the
// same (id, operation) pair resolve to exactly one winner, which is what makes
// delegation, settlement and reward payout idempotent under racing timers,
// events, watchdog sweeps and manual retries.
package inflight

import "sync"

// Op names one guarded lifecycle operation.
type Op string

// Guarded operations.
const (
	OpStart  Op = "start"
	OpEnd    Op = "end"
	OpReward Op = "reward"
)

type token struct {
	id uint64
	op Op
}

// Guard is a set of in-flight operation tokens.
type Guard struct {
	mu     sync.Mutex
	tokens map[token]struct{}
}

// NewGuard creates an empty guard.
func NewGuard() *Guard {
	return &Guard{tokens: make(map[token]struct{})}
}

// TryAcquire atomically claims (id, op). It returns false if the operation is
// already in flight; the caller must then back off entirely.
func (g *Guard) TryAcquire(id uint64, op Op) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	t := token{id: id, op: op}
	if _, held := g.tokens[t]; held {
		return false
	}
	g.tokens[t] = struct{}{}
	return true
}

// Release returns the token. Safe to call for a token that is not held.
func (g *Guard) Release(id uint64, op Op) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.tokens, token{id: id, op: op})
}

// Held reports whether (id, op) is currently in flight. Point-in-time check;
// use TryAcquire for decisions.
func (g *Guard) Held(id uint64, op Op) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, held := g.tokens[token{id: id, op: op}]
	return held
}
