// Package orchestrator implements the session lifecycle: discovery and
// recovery of sessions, delegation to the ephemeral rollup, periodic on-chain
// effects while a game runs, settlement back to the base ledger, reward
// distribution, and the cached read path clients consume.
package orchestrator

import (
	"context"
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/rs/zerolog/log"

	"king-tiles-orchestrator/internal/config"
	"king-tiles-orchestrator/internal/kingtiles"
	"king-tiles-orchestrator/internal/leaderboard"
	"king-tiles-orchestrator/internal/ledger"
	"king-tiles-orchestrator/internal/model"
	"king-tiles-orchestrator/internal/pkg/inflight"
	"king-tiles-orchestrator/internal/registry"
	"king-tiles-orchestrator/internal/snapshot"
)

// Orchestrator errors surfaced to the HTTP layer.
var (
	ErrInvalidMode            = errors.New("board mode is not in the catalog")
	ErrDuplicateSession       = errors.New("a board already exists for this session id")
	ErrCustodyMismatch        = errors.New("configured signer does not match the custody key")
	ErrSessionActive          = errors.New("session is still active")
	ErrUnknownSession         = errors.New("unknown session id")
	ErrTemporarilyUnavailable = errors.New("session state temporarily unavailable")
)

// ScoreSink receives final per-player scores from settlement. Writes are
// best-effort; failures are logged, never propagated.
type ScoreSink interface {
	Upsert(ctx context.Context, e leaderboard.Entry) error
}

// Orchestrator coordinates N independent sessions. All cross-session state
// (registry, snapshots, cache, in-flight guards) is internally synchronized;
// sessions never wait on each other.
type Orchestrator struct {
	cfg       *config.Config
	custody   solana.PublicKey
	base      ledger.Client
	rollup    ledger.Client
	registry  *registry.Registry
	snapshots *snapshot.Store
	scores    ScoreSink
	guard     *inflight.Guard
	cache     *statusCache

	// ctx scopes background work spawned by timers and async settlement; it
	// is the process lifetime, not any single request.
	ctx context.Context
}

// New wires an orchestrator. scores may be nil when no leaderboard store is
// configured. ctx bounds all background work the orchestrator spawns.
func New(ctx context.Context, cfg *config.Config, custody solana.PublicKey, base, rollup ledger.Client, scores ScoreSink) *Orchestrator {
	return &Orchestrator{
		cfg:       cfg,
		custody:   custody,
		base:      base,
		rollup:    rollup,
		registry:  registry.New(),
		snapshots: snapshot.NewStore(),
		scores:    scores,
		guard:     inflight.NewGuard(),
		cache:     newStatusCache(),
		ctx:       ctx,
	}
}

// Registry exposes the live-session table to the HTTP layer (read-only use).
func (o *Orchestrator) Registry() *registry.Registry {
	return o.registry
}

// Snapshots exposes the completed-game history.
func (o *Orchestrator) Snapshots() *snapshot.Store {
	return o.snapshots
}

// CreateSession validates a "start session" request against the catalog and
// the ledger, submits the start transaction and registers the new session.
func (o *Orchestrator) CreateSession(ctx context.Context, id uint64, boardSideLen, maxPlayers uint8, feeLamports, lamportsPerScore uint64) (*model.Session, error) {
	if !model.ValidMode(boardSideLen, maxPlayers) {
		return nil, ErrInvalidMode
	}
	if feeLamports == 0 || lamportsPerScore == 0 {
		return nil, ErrInvalidMode
	}
	if !o.custody.Equals(kingtiles.Treasury) {
		return nil, ErrCustodyMismatch
	}
	if o.registry.Get(id) != nil {
		return nil, ErrDuplicateSession
	}

	boardAddr, err := kingtiles.BoardAddress(id)
	if err != nil {
		return nil, err
	}

	// A restart must not be tricked into re-creating a board that already
	// exists on the base ledger but is not (yet) in the registry.
	if _, err := o.base.AccountOwner(ctx, boardAddr); err == nil {
		return nil, ErrDuplicateSession
	} else if !errors.Is(err, ledger.ErrAccountNotFound) {
		return nil, fmt.Errorf("failed to probe board account: %w", err)
	}

	sig, err := o.base.Submit(ctx, kingtiles.StartGameSession(id, boardSideLen, maxPlayers, feeLamports, lamportsPerScore))
	if err != nil {
		return nil, fmt.Errorf("failed to submit start transaction: %w", err)
	}

	sess := model.NewSession(id, boardAddr, boardSideLen, maxPlayers, feeLamports, lamportsPerScore)
	sess.UpdateTrace(func(t *model.TransactionTrace) {
		t.Start = sig.String()
	})
	if !o.registry.Put(sess) {
		return nil, ErrDuplicateSession
	}

	log.Info().
		Uint64("game_id", id).
		Str("board", boardAddr.String()).
		Uint8("side_len", boardSideLen).
		Uint8("max_players", maxPlayers).
		Str("tx", sig.String()).
		Msg("Session created")

	return sess, nil
}

// HandleGameStarted reacts to a session-start notification from the event
// stream: all registration slots filled, time to delegate and start ticking.
func (o *Orchestrator) HandleGameStarted(ctx context.Context, ev ledger.GameStarted) {
	sess := o.registry.Get(ev.GameID)
	if sess == nil {
		log.Warn().Uint64("game_id", ev.GameID).Msg("Start event for unknown session")
		return
	}
	if err := o.EnsureActive(ctx, sess); err != nil {
		log.Error().Uint64("game_id", ev.GameID).Err(err).Msg("Failed to activate session from start event")
	}
}

// ConsumeEvents drains the start-event stream until it closes or ctx ends.
func (o *Orchestrator) ConsumeEvents(ctx context.Context, stream ledger.EventStream) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-stream.Events():
			if !ok {
				return
			}
			o.HandleGameStarted(ctx, ev)
		}
	}
}

func (o *Orchestrator) explorerLink(sig solana.Signature) string {
	return fmt.Sprintf("https://explorer.solana.com/tx/%s?cluster=%s", sig, o.cfg.Ledger.ExplorerCluster)
}
