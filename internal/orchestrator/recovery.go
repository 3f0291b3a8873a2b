package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"king-tiles-orchestrator/internal/ledger"
	"king-tiles-orchestrator/internal/model"
)

// Recover reconstructs the live-session registry from ledger state. It runs
// once at process start, before the HTTP surface serves traffic productively,
// and converges every discovered session back to its correct phase:
// waiting-for-players sessions are registered without timers, mid-game
// sessions resume ticking with the ledger-clock remaining time, and sessions
// that ended during downtime settle immediately.
//
// A failure on one board is logged and skipped; it never aborts recovery of
// the others. Re-running against unchanged ledger state is a no-op.
func (o *Orchestrator) Recover(ctx context.Context) error {
	// Boards delegated to the execution layer are owned by the delegation
	// program on the base ledger and invisible to a program-account scan
	// there, so both ledgers are enumerated and merged by game id, with the
	// execution-layer view winning.
	merged := make(map[uint64]ledger.KeyedBoard)

	baseBoards, baseErr := o.base.ListBoards(ctx)
	if baseErr != nil {
		log.Error().Err(baseErr).Msg("Failed to enumerate boards on base ledger")
	}
	for _, kb := range baseBoards {
		merged[kb.Board.GameID] = kb
	}

	rollupBoards, rollupErr := o.rollup.ListBoards(ctx)
	if rollupErr != nil {
		log.Warn().Err(rollupErr).Msg("Failed to enumerate boards on execution layer")
	}
	for _, kb := range rollupBoards {
		merged[kb.Board.GameID] = kb
	}

	if baseErr != nil && rollupErr != nil {
		return fmt.Errorf("failed to enumerate boards on either ledger: %w", baseErr)
	}

	recovered := 0
	for _, kb := range merged {
		if err := o.recoverBoard(ctx, kb); err != nil {
			log.Error().
				Uint64("game_id", kb.Board.GameID).
				Str("board", kb.Address.String()).
				Err(err).
				Msg("Failed to recover session, skipping")
			continue
		}
		recovered++
	}

	log.Info().
		Int("discovered", len(merged)).
		Int("recovered", recovered).
		Int("live", o.registry.Len()).
		Msg("Recovery complete")
	return nil
}

// recoverBoard reinserts one discovered board into the registry and resumes
// its lifecycle phase.
func (o *Orchestrator) recoverBoard(ctx context.Context, kb ledger.KeyedBoard) error {
	board := kb.Board

	if o.registry.Get(board.GameID) != nil {
		return nil
	}
	if !board.IsActive && !board.Waiting() {
		// Ended and already settled (rewards flip the active flag off);
		// nothing left to drive.
		return nil
	}

	sess := model.NewSession(
		board.GameID,
		kb.Address,
		board.BoardSideLen,
		board.MaxPlayers,
		board.RegistrationFeeLamports,
		board.LamportsPerScore,
	)
	if !o.registry.Put(sess) {
		return nil
	}

	if board.Waiting() {
		// No timers: delegation runs when registration fills (start event or
		// watchdog).
		log.Info().Uint64("game_id", board.GameID).Msg("Recovered session waiting for players")
		return nil
	}

	// Remaining time comes from the ledger's clock, not ours.
	now, err := o.base.Now(ctx)
	if err != nil {
		return fmt.Errorf("failed to read ledger clock: %w", err)
	}
	remaining := board.RemainingSeconds(now)

	if remaining <= 0 {
		log.Info().Uint64("game_id", board.GameID).Msg("Recovered session already over, settling")
		go func() {
			if err := o.EndSession(o.ctx, sess); err != nil {
				log.Error().Uint64("game_id", sess.ID).Err(err).Msg("Post-recovery settlement failed")
			}
		}()
		return nil
	}

	o.startTicking(sess, time.Duration(remaining)*time.Second)
	log.Info().
		Uint64("game_id", board.GameID).
		Int64("remaining_s", remaining).
		Msg("Recovered mid-game session, ticking resumed")
	return nil
}
