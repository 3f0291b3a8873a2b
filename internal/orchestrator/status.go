package orchestrator

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"king-tiles-orchestrator/internal/kingtiles"
	"king-tiles-orchestrator/internal/model"
)

// statusCache holds recently served status payloads with a per-entry expiry.
// Active sessions get a sub-second TTL so clients poll cheaply without going
// stale; settled sessions keep entries around longer since they no longer
// change except for a late reward hash, which invalidates explicitly.
type statusCache struct {
	mu      sync.Mutex
	entries map[uint64]cachedStatus
}

type cachedStatus struct {
	payload model.StatusPayload
	expires time.Time
}

func newStatusCache() *statusCache {
	return &statusCache{entries: make(map[uint64]cachedStatus)}
}

func (c *statusCache) get(id uint64) (model.StatusPayload, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[id]
	if !ok {
		return model.StatusPayload{}, false
	}
	if time.Now().After(e.expires) {
		delete(c.entries, id)
		return model.StatusPayload{}, false
	}
	return e.payload, true
}

func (c *statusCache) put(id uint64, p model.StatusPayload, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[id] = cachedStatus{payload: p, expires: time.Now().Add(ttl)}
}

func (c *statusCache) invalidate(id uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, id)
}

// GetStatus answers "what is happening now" for one session. The read path is
// cache, then completed snapshot, then live ledger state. For a live session
// the execution layer is authoritative; the base ledger only serves boards
// that never left it. A delegated board that cannot be read from the execution
// layer is reported unavailable rather than served from the stale base copy.
func (o *Orchestrator) GetStatus(ctx context.Context, id uint64) (model.StatusPayload, error) {
	if p, ok := o.cache.get(id); ok {
		return p, nil
	}

	// Settled sessions are immutable: answer from the snapshot without
	// touching either ledger.
	if snap := o.snapshots.Get(id); snap != nil {
		p := model.PayloadFromBoard(snap.Board, snap.Trace, "snapshot")
		p.CompletedAt = &snap.CompletedAt
		o.cache.put(id, p, o.cfg.Status.InactiveTTL)
		return p, nil
	}

	sess := o.registry.Get(id)
	if sess == nil {
		return model.StatusPayload{}, ErrUnknownSession
	}

	if board, ok := o.readRollup(ctx, sess, 2); ok {
		return o.serveBoard(sess, board, "rollup"), nil
	}

	board, err := o.base.FetchBoard(ctx, sess.BoardAddress)
	if err != nil {
		return model.StatusPayload{}, ErrTemporarilyUnavailable
	}
	if !board.IsActive {
		return o.serveBoard(sess, board, "base"), nil
	}

	// The base ledger says the game is running, which means the board is
	// delegated and the base copy is frozen at delegation time. Keep trying
	// the authoritative side a little longer before giving up.
	if board, ok := o.readRollup(ctx, sess, 4); ok {
		return o.serveBoard(sess, board, "rollup"), nil
	}
	log.Warn().Uint64("game_id", id).Msg("Execution layer unreachable for active session")
	return model.StatusPayload{}, ErrTemporarilyUnavailable
}

// readRollup attempts up to n execution-layer reads with a short pause between
// attempts.
func (o *Orchestrator) readRollup(ctx context.Context, sess *model.Session, n int) (*kingtiles.Board, bool) {
	for i := 0; i < n; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return nil, false
			case <-time.After(250 * time.Millisecond):
			}
		}
		b, err := o.rollup.FetchBoard(ctx, sess.BoardAddress)
		if err == nil {
			return b, true
		}
	}
	return nil, false
}

func (o *Orchestrator) serveBoard(sess *model.Session, board *kingtiles.Board, source string) model.StatusPayload {
	p := model.PayloadFromBoard(board, sess.Trace(), source)
	ttl := o.cfg.Status.InactiveTTL
	if p.Active {
		ttl = o.cfg.Status.ActiveTTL
	}
	o.cache.put(sess.ID, p, ttl)
	return p
}

// LatestStatus serves the id-less status query: the most recently created live
// session, falling back to the most recently completed one.
func (o *Orchestrator) LatestStatus(ctx context.Context) (model.StatusPayload, error) {
	var latest *model.Session
	for _, sess := range o.registry.List() {
		if latest == nil || sess.CreatedAt.After(latest.CreatedAt) {
			latest = sess
		}
	}
	if latest != nil {
		return o.GetStatus(ctx, latest.ID)
	}
	if snap := o.snapshots.Latest(); snap != nil {
		return o.GetStatus(ctx, snap.SessionID)
	}
	return model.StatusPayload{}, ErrUnknownSession
}

// SessionSummary is one row of the live-session listing. Active and
// PlayersCount come from the status cache when a recent read exists; the
// listing never blocks on a ledger.
type SessionSummary struct {
	SessionID               uint64                 `json:"session_id"`
	BoardAddress            string                 `json:"board_address"`
	BoardSideLen            uint8                  `json:"board_side_len"`
	MaxPlayers              uint8                  `json:"max_players"`
	RegistrationFeeLamports uint64                 `json:"registration_fee_lamports"`
	LamportsPerScore        uint64                 `json:"lamports_per_score"`
	Ticking                 bool                   `json:"ticking"`
	Active                  bool                   `json:"active"`
	PlayersCount            uint8                  `json:"players_count"`
	CreatedAt               time.Time              `json:"created_at"`
	Trace                   model.TransactionTrace `json:"trace"`
}

// SessionsView is the GET /sessions answer: every live session plus the most
// recently completed game in each board-dimension category.
type SessionsView struct {
	Live            []SessionSummary      `json:"live"`
	LatestCompleted []model.StatusPayload `json:"latest_completed"`
}

// ListSessions returns a summary of every live session, ordered by id.
func (o *Orchestrator) ListSessions() []SessionSummary {
	sessions := o.registry.List()
	out := make([]SessionSummary, 0, len(sessions))
	for _, s := range sessions {
		row := SessionSummary{
			SessionID:               s.ID,
			BoardAddress:            s.BoardAddress.String(),
			BoardSideLen:            s.BoardSideLen,
			MaxPlayers:              s.MaxPlayers,
			RegistrationFeeLamports: s.RegistrationFeeLamports,
			LamportsPerScore:        s.LamportsPerScore,
			Ticking:                 s.Ticking(),
			CreatedAt:               s.CreatedAt,
			Trace:                   s.Trace(),
		}
		if p, ok := o.cache.get(s.ID); ok {
			row.Active = p.Active
			row.PlayersCount = p.PlayersCount
		}
		out = append(out, row)
	}
	return out
}

// Sessions returns the full listing view served by GET /sessions.
func (o *Orchestrator) Sessions() SessionsView {
	view := SessionsView{
		Live:            o.ListSessions(),
		LatestCompleted: make([]model.StatusPayload, 0, len(model.Catalog)),
	}
	for _, mode := range model.Catalog {
		snap := o.snapshots.LatestByMode(mode)
		if snap == nil {
			continue
		}
		p := model.PayloadFromBoard(snap.Board, snap.Trace, "snapshot")
		p.CompletedAt = &snap.CompletedAt
		view.LatestCompleted = append(view.LatestCompleted, p)
	}
	return view
}
