package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"king-tiles-orchestrator/internal/kingtiles"
	"king-tiles-orchestrator/internal/model"
	"king-tiles-orchestrator/internal/pkg/inflight"
)

// EnsureActive moves a registered-and-full session onto the execution layer
// and starts its tick scheduler. It is idempotent: the ownership check skips
// delegation for a board that already moved, and the start-in-flight guard
// collapses racing triggers (start event vs watchdog sweep) to one winner.
//
// A failure aborts this invocation only; the session stays live without a
// tick scheduler, and the watchdog re-drives it on its next sweep.
func (o *Orchestrator) EnsureActive(ctx context.Context, sess *model.Session) error {
	if !o.guard.TryAcquire(sess.ID, inflight.OpStart) {
		return nil
	}
	defer o.guard.Release(sess.ID, inflight.OpStart)

	owner, err := o.base.AccountOwner(ctx, sess.BoardAddress)
	if err != nil {
		return fmt.Errorf("failed to read board owner: %w", err)
	}

	if owner.Equals(kingtiles.ProgramID) {
		sig, err := o.base.Submit(ctx, kingtiles.DelegateBoard(sess.ID))
		if err != nil {
			return fmt.Errorf("failed to submit delegation: %w", err)
		}
		sess.UpdateTrace(func(t *model.TransactionTrace) {
			t.Delegate = sig.String()
		})
		log.Info().
			Uint64("game_id", sess.ID).
			Str("tx", sig.String()).
			Msg("Board delegated to execution layer")
	}

	board, err := o.fetchBoardPreferRollup(ctx, sess)
	if err != nil {
		return fmt.Errorf("failed to read board after delegation: %w", err)
	}
	if board.Waiting() {
		// Registration has not filled; nothing to tick yet.
		return nil
	}

	now, err := o.base.Now(ctx)
	if err != nil {
		return fmt.Errorf("failed to read ledger clock: %w", err)
	}
	remaining := board.RemainingSeconds(now)
	if remaining <= 0 {
		// Session ended before we got here (e.g. during downtime).
		return o.EndSession(ctx, sess)
	}

	o.startTicking(sess, time.Duration(remaining)*time.Second)
	log.Info().
		Uint64("game_id", sess.ID).
		Int64("remaining_s", remaining).
		Msg("Session ticking")
	return nil
}

// fetchBoardPreferRollup reads the board from the execution layer, which is
// authoritative while a session is delegated, falling back to the base ledger
// for boards that never left it.
func (o *Orchestrator) fetchBoardPreferRollup(ctx context.Context, sess *model.Session) (*kingtiles.Board, error) {
	board, err := o.rollup.FetchBoard(ctx, sess.BoardAddress)
	if err == nil {
		return board, nil
	}
	return o.base.FetchBoard(ctx, sess.BoardAddress)
}
