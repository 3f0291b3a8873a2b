package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/rs/zerolog/log"

	"king-tiles-orchestrator/internal/config"
	"king-tiles-orchestrator/internal/kingtiles"
	"king-tiles-orchestrator/internal/leaderboard"
	"king-tiles-orchestrator/internal/model"
	"king-tiles-orchestrator/internal/pkg/inflight"
	"king-tiles-orchestrator/internal/pkg/retry"
)

// Settlement failure classes. Ownership mismatch gets its own tighter retry
// schedule because it is the common cross-ledger commit-latency case and
// self-resolves quickly; generic remote failures back off wider.
var (
	errStillDelegated = errors.New("board still owned by the execution layer")
	errNotOverYet     = errors.New("ledger reports the session has not ended")
)

// EndSession ends a session: stops its timers, submits the
// end+commit+undelegate transaction, captures the completed snapshot and
// kicks off reward distribution. The end-in-flight guard collapses duplicate
// triggers (countdown timer vs watchdog) to a single end submission.
func (o *Orchestrator) EndSession(ctx context.Context, sess *model.Session) error {
	if !o.guard.TryAcquire(sess.ID, inflight.OpEnd) {
		return nil
	}
	defer o.guard.Release(sess.ID, inflight.OpEnd)

	// Ordering matters: no periodic action may race the commit.
	sess.StopTimers()

	// Defensive re-check against the ledger's own clock. A premature trigger
	// (clock skew, duplicate event) must resume ticking, not force an end.
	board, err := o.fetchBoardPreferRollup(ctx, sess)
	if err != nil {
		return fmt.Errorf("failed to read board before end: %w", err)
	}
	now, err := o.base.Now(ctx)
	if err != nil {
		return fmt.Errorf("failed to read ledger clock: %w", err)
	}
	if board.IsActive {
		if remaining := board.RemainingSeconds(now); remaining > 0 {
			log.Warn().
				Uint64("game_id", sess.ID).
				Int64("remaining_s", remaining).
				Msg("End triggered early, resuming ticking")
			o.startTicking(sess, time.Duration(remaining)*time.Second)
			return nil
		}
	}

	sig, err := o.rollup.Submit(ctx, kingtiles.EndGameSession(sess.ID))
	if err != nil {
		// Session stays live; the watchdog re-drives it through delegation,
		// which routes straight back here once it sees remaining <= 0.
		return fmt.Errorf("failed to submit end transaction: %w", err)
	}
	sess.UpdateTrace(func(t *model.TransactionTrace) {
		t.End = sig.String()
	})
	log.Info().Uint64("game_id", sess.ID).Str("tx", sig.String()).Msg("Session ended, committing to base ledger")

	// The commit propagates asynchronously; give the base ledger a moment
	// before reading the final board.
	if err := retry.Sleep(ctx, o.cfg.Settlement.SettleDelay); err != nil {
		return err
	}

	final, err := o.base.FetchBoard(ctx, sess.BoardAddress)
	if err != nil {
		// Commit not observable yet. The rollup view read above is the best
		// known final state; reward distribution re-reads the base ledger
		// anyway before paying out.
		log.Warn().Uint64("game_id", sess.ID).Err(err).Msg("Committed board not yet readable on base ledger")
		final = board
	}

	snap := &model.CompletedGameSnapshot{
		SessionID:   sess.ID,
		Mode:        sess.Mode(),
		Board:       final,
		Trace:       sess.Trace(),
		CompletedAt: time.Now(),
	}
	o.snapshots.Put(snap)
	o.registry.Remove(sess.ID)
	o.cache.invalidate(sess.ID)
	o.publishScores(ctx, snap)

	return o.DistributeRewards(ctx, sess.ID)
}

// DistributeRewards pays every registered player score * lamports_per_score
// from the treasury, retrying under two separate schedules: a tight one for
// the board-still-delegated case (with a best-effort re-finalize), and a
// wider exponential one with jitter for everything else. Exhausting either
// budget persists the failure on the snapshot trace and stops automatic
// retries; the manual retry endpoint can pick it up from there.
//
// The reward-in-flight guard collapses duplicate triggers (automatic post-end
// distribution vs manual retries) to a single running sequence per session;
// losing callers return immediately.
func (o *Orchestrator) DistributeRewards(ctx context.Context, id uint64) error {
	if !o.guard.TryAcquire(id, inflight.OpReward) {
		return nil
	}
	defer o.guard.Release(id, inflight.OpReward)

	snap := o.snapshots.Get(id)
	if snap == nil {
		return ErrUnknownSession
	}
	if snap.Trace.Reward != "" {
		// A prior sequence already paid out.
		return nil
	}
	boardAddr := kingtiles.MustBoardAddress(id)

	general := policyFrom(o.cfg.Settlement.Reward).NewSchedule()
	ownership := policyFrom(o.cfg.Settlement.Ownership).NewSchedule()

	for {
		err := o.tryDistribute(ctx, id, boardAddr, snap)
		switch {
		case err == nil:
			return nil

		case errors.Is(err, errStillDelegated):
			// The commit/undelegate has not landed on the base ledger. Nudge
			// the rollup to re-finalize, then retry on the tight schedule.
			if _, ferr := o.rollup.Submit(ctx, kingtiles.EndGameSession(id)); ferr != nil {
				log.Warn().Uint64("game_id", id).Err(ferr).Msg("Re-finalize attempt failed")
			}
			delay, ok := ownership.Next()
			if !ok {
				o.failReward(id, err, ownership.Attempts())
				return err
			}
			log.Warn().Uint64("game_id", id).Dur("retry_in", delay).Msg("Board still delegated, retrying reward")
			if serr := retry.Sleep(ctx, delay); serr != nil {
				return serr
			}

		case errors.Is(err, errNotOverYet):
			// Skew between our earlier end decision and the ledger clock.
			// Re-checking shortly does not consume the retry budget.
			log.Warn().Uint64("game_id", id).Msg("Ledger says session not over, re-checking")
			if serr := retry.Sleep(ctx, o.cfg.Settlement.NotOverWait); serr != nil {
				return serr
			}

		default:
			delay, ok := general.Next()
			if !ok {
				o.failReward(id, err, general.Attempts())
				return err
			}
			log.Warn().
				Uint64("game_id", id).
				Int("attempt", general.Attempts()).
				Dur("retry_in", delay).
				Err(err).
				Msg("Reward distribution failed, retrying")
			if serr := retry.Sleep(ctx, delay); serr != nil {
				return serr
			}
		}
	}
}

func policyFrom(rc config.RetryConfig) retry.Policy {
	return retry.Policy{
		BaseDelay:   rc.BaseDelay,
		MaxDelay:    rc.MaxDelay,
		MaxAttempts: rc.MaxAttempts,
		JitterRatio: rc.JitterRatio,
	}
}

// tryDistribute performs one reward attempt against current ledger state.
func (o *Orchestrator) tryDistribute(ctx context.Context, id uint64, boardAddr solana.PublicKey, snap *model.CompletedGameSnapshot) error {
	// Raw owner probe, deliberately not the typed decoder: it distinguishes
	// "account missing" from "owned by the wrong program" from "settled".
	owner, err := o.base.AccountOwner(ctx, boardAddr)
	if err != nil {
		return fmt.Errorf("failed to read board owner: %w", err)
	}
	if !owner.Equals(kingtiles.ProgramID) {
		return errStillDelegated
	}

	board, err := o.base.FetchBoard(ctx, boardAddr)
	if err != nil {
		return fmt.Errorf("failed to read committed board: %w", err)
	}
	now, err := o.base.Now(ctx)
	if err != nil {
		return fmt.Errorf("failed to read ledger clock: %w", err)
	}
	if board.GameEndTimestamp > now {
		return errNotOverYet
	}

	payees := make([]solana.PublicKey, 0, len(board.Players))
	for _, p := range board.Players {
		payees = append(payees, p.Wallet)
	}

	sig, err := o.base.Submit(ctx, kingtiles.DistributeRewards(id, payees))
	if err != nil {
		return fmt.Errorf("failed to submit reward transaction: %w", err)
	}

	trace := snap.Trace
	trace.Reward = sig.String()
	trace.RewardLink = o.explorerLink(sig)
	trace.RewardError = ""

	final := &model.CompletedGameSnapshot{
		SessionID:   id,
		Mode:        snap.Mode,
		Board:       board,
		Trace:       trace,
		CompletedAt: time.Now(),
	}
	o.snapshots.Put(final)
	o.cache.invalidate(id)
	o.publishScores(ctx, final)

	log.Info().
		Uint64("game_id", id).
		Str("tx", sig.String()).
		Str("explorer", trace.RewardLink).
		Int("payees", len(payees)).
		Msg("Rewards distributed")

	go o.closeBoard(id)
	return nil
}

// closeBoard reclaims the board account's rent after settlement, waiting out
// the settle delay first so the reward transaction lands before the account
// disappears. Best-effort: the snapshot already holds final state.
func (o *Orchestrator) closeBoard(id uint64) {
	ctx, cancel := context.WithTimeout(o.ctx, time.Minute)
	defer cancel()

	if err := retry.Sleep(ctx, o.cfg.Settlement.SettleDelay); err != nil {
		return
	}
	sig, err := o.base.Submit(ctx, kingtiles.CloseBoard(id))
	if err != nil {
		log.Warn().Uint64("game_id", id).Err(err).Msg("Failed to close board account")
		return
	}
	log.Info().Uint64("game_id", id).Str("tx", sig.String()).Msg("Board account closed")
}

// RetryReward is the manual entry point for operators after the automatic
// retry budget is exhausted. Rejected while the session is still live.
func (o *Orchestrator) RetryReward(id uint64) error {
	if o.registry.Get(id) != nil {
		return ErrSessionActive
	}
	if o.snapshots.Get(id) == nil {
		return ErrUnknownSession
	}
	go func() {
		if err := o.DistributeRewards(o.ctx, id); err != nil {
			log.Error().Uint64("game_id", id).Err(err).Msg("Manual reward retry failed")
		}
	}()
	return nil
}

// failReward persists a terminal reward failure on the stored snapshot.
func (o *Orchestrator) failReward(id uint64, cause error, attempts int) {
	o.snapshots.SetRewardError(id, cause.Error())
	log.Error().
		Uint64("game_id", id).
		Int("attempts", attempts).
		Err(cause).
		Msg("Reward distribution gave up, manual retry required")
}

// publishScores hands final scores to the leaderboard store. Best-effort.
func (o *Orchestrator) publishScores(ctx context.Context, snap *model.CompletedGameSnapshot) {
	if o.scores == nil {
		return
	}
	for _, p := range snap.Board.Players {
		entry := leaderboard.Entry{
			Wallet:         p.Wallet.String(),
			GameID:         snap.SessionID,
			Score:          p.Score,
			RewardLamports: p.Score * snap.Board.LamportsPerScore,
		}
		if err := o.scores.Upsert(ctx, entry); err != nil {
			log.Warn().
				Uint64("game_id", snap.SessionID).
				Str("wallet", entry.Wallet).
				Err(err).
				Msg("Leaderboard write failed")
		}
	}
}
