package orchestrator

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/rs/zerolog/log"

	"king-tiles-orchestrator/internal/kingtiles"
	"king-tiles-orchestrator/internal/model"
)

// timerSet owns one session's running timers: four independent periodic
// actions plus the end countdown. Stop is idempotent and tears everything
// down as a unit.
type timerSet struct {
	cancel    context.CancelFunc
	countdown *time.Timer
	once      sync.Once
}

func (ts *timerSet) Stop() {
	ts.once.Do(func() {
		ts.cancel()
		if ts.countdown != nil {
			ts.countdown.Stop()
		}
	})
}

// startTicking runs the session's periodic on-chain effects for the remaining
// duration. Each action fires immediately, then on its own fixed period,
// independently of the others: a slow effect is never delayed by a fast one,
// and one action's transaction failure never stalls the rest. A separate
// countdown fires once at the deadline and invokes settlement.
//
// Installing the new timer set tears down any previously running timers for
// the same session, so a duplicate start is harmless.
func (o *Orchestrator) startTicking(sess *model.Session, remaining time.Duration) {
	ctx, cancel := context.WithCancel(o.ctx)
	ts := &timerSet{cancel: cancel}

	actions := []struct {
		name   string
		period time.Duration
		build  func() solana.Instruction
	}{
		{"score_tick", o.cfg.Ticks.Score, func() solana.Instruction {
			return kingtiles.UpdatePlayerScore(sess.ID)
		}},
		{"king_move", o.cfg.Ticks.King, func() solana.Instruction {
			return kingtiles.RequestKingMove(uint8(rand.Intn(256)), sess.ID)
		}},
		{"powerup_spawn", o.cfg.Ticks.Powerup, func() solana.Instruction {
			return kingtiles.RequestPowerupSpawn(uint8(rand.Intn(256)), sess.ID)
		}},
		{"bomb_drop", o.cfg.Ticks.Bomb, func() solana.Instruction {
			return kingtiles.RequestBombDrop(uint8(rand.Intn(256)), sess.ID)
		}},
	}
	for _, a := range actions {
		go o.runPeriodic(ctx, sess.ID, a.name, a.period, a.build)
	}

	ts.countdown = time.AfterFunc(remaining, func() {
		if err := o.EndSession(o.ctx, sess); err != nil {
			log.Error().Uint64("game_id", sess.ID).Err(err).Msg("Countdown settlement failed")
		}
	})

	sess.SetTimers(ts)
}

// runPeriodic submits one effect's transaction now and then on every period
// until the session's timers are stopped. Failures are logged and the action
// keeps firing; the remote ledger legitimately rejects late ticks once a
// session has ended.
func (o *Orchestrator) runPeriodic(ctx context.Context, gameID uint64, name string, period time.Duration, build func() solana.Instruction) {
	fire := func() {
		sig, err := o.rollup.Submit(ctx, build())
		if err != nil {
			if ctx.Err() == nil {
				log.Warn().Uint64("game_id", gameID).Str("action", name).Err(err).Msg("Periodic action failed")
			}
			return
		}
		log.Debug().Uint64("game_id", gameID).Str("action", name).Str("tx", sig.String()).Msg("Periodic action submitted")
	}

	fire()

	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fire()
		}
	}
}
