package orchestrator

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"king-tiles-orchestrator/internal/kingtiles"
	"king-tiles-orchestrator/internal/model"
	"king-tiles-orchestrator/internal/pkg/inflight"
)

// RunWatchdog periodically sweeps the registry for sessions that filled their
// registration but never got activated, typically because the start event was
// missed or a delegation attempt failed. It blocks until ctx ends.
func (o *Orchestrator) RunWatchdog(ctx context.Context) {
	ticker := time.NewTicker(o.cfg.Watchdog.Interval)
	defer ticker.Stop()

	log.Info().Dur("interval", o.cfg.Watchdog.Interval).Msg("Watchdog running")
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			o.sweep(ctx)
		}
	}
}

// sweep re-drives every stalled session through activation. Sessions that are
// already ticking, or that have an activation or settlement in flight, are
// left alone.
func (o *Orchestrator) sweep(ctx context.Context) {
	for _, sess := range o.registry.List() {
		if sess.Ticking() {
			continue
		}
		if o.guard.Held(sess.ID, inflight.OpStart) || o.guard.Held(sess.ID, inflight.OpEnd) {
			continue
		}
		o.checkSession(ctx, sess)
	}
}

func (o *Orchestrator) checkSession(ctx context.Context, sess *model.Session) {
	owner, err := o.base.AccountOwner(ctx, sess.BoardAddress)
	if err != nil {
		log.Warn().Uint64("game_id", sess.ID).Err(err).Msg("Watchdog could not read board owner")
		return
	}

	if owner.Equals(kingtiles.ProgramID) {
		// Not delegated. Only a filled registration warrants activation;
		// a waiting board stays parked until players arrive.
		board, err := o.base.FetchBoard(ctx, sess.BoardAddress)
		if err != nil {
			log.Warn().Uint64("game_id", sess.ID).Err(err).Msg("Watchdog could not read board")
			return
		}
		if board.Waiting() {
			return
		}
	}

	log.Info().Uint64("game_id", sess.ID).Msg("Watchdog re-driving stalled session")
	if err := o.EnsureActive(ctx, sess); err != nil {
		log.Error().Uint64("game_id", sess.ID).Err(err).Msg("Watchdog activation failed")
	}
}
