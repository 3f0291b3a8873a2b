package orchestrator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"king-tiles-orchestrator/internal/kingtiles"
	"king-tiles-orchestrator/internal/model"
)

func (f *fakeLedger) fetchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetchCalls
}

func TestGetStatus_SnapshotShortCircuitsLedgers(t *testing.T) {
	o, base, rollup := testOrchestrator(t)
	ctx := context.Background()

	board := activeBoard(1, time.Now().Unix()-30)
	board.IsActive = false
	completedAt := time.Now()
	o.Snapshots().Put(&model.CompletedGameSnapshot{
		SessionID:   1,
		Mode:        model.GameMode{BoardSideLen: 8, MaxPlayers: 2},
		Board:       board,
		Trace:       model.TransactionTrace{End: "endtx", Reward: "rewardtx"},
		CompletedAt: completedAt,
	})

	payload, err := o.GetStatus(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "snapshot", payload.Source)
	assert.False(t, payload.Active)
	assert.Equal(t, "rewardtx", payload.Trace.Reward)
	require.NotNil(t, payload.CompletedAt)
	assert.Equal(t, completedAt.Unix(), payload.CompletedAt.Unix())

	assert.Equal(t, 0, base.fetchCount())
	assert.Equal(t, 0, rollup.fetchCount())
}

func TestGetStatus_ActiveSessionServedFromRollupAndCached(t *testing.T) {
	o, _, rollup := testOrchestrator(t)
	ctx := context.Background()

	sess := model.NewSession(1, kingtiles.MustBoardAddress(1), 8, 2, 1000, 10)
	require.True(t, o.Registry().Put(sess))
	rollup.setBoard(sess.BoardAddress, activeBoard(1, time.Now().Unix()+60), kingtiles.DelegationProgram)

	payload, err := o.GetStatus(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "rollup", payload.Source)
	assert.True(t, payload.Active)
	assert.Len(t, payload.Cells, 64)
	assert.Equal(t, 1, rollup.fetchCount())

	// Second read within the TTL is answered from the cache.
	_, err = o.GetStatus(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, rollup.fetchCount())
}

func TestGetStatus_WaitingBoardFallsBackToBase(t *testing.T) {
	o, base, rollup := testOrchestrator(t)
	ctx := context.Background()

	sess := model.NewSession(1, kingtiles.MustBoardAddress(1), 8, 2, 1000, 10)
	require.True(t, o.Registry().Put(sess))

	rollup.mu.Lock()
	rollup.fetchErr = assert.AnError
	rollup.mu.Unlock()
	base.setBoard(sess.BoardAddress, &kingtiles.Board{GameID: 1, BoardSideLen: 8, MaxPlayers: 2}, kingtiles.ProgramID)

	payload, err := o.GetStatus(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "base", payload.Source)
	assert.False(t, payload.Active)
}

func TestGetStatus_ActiveSessionUnavailableWithoutRollup(t *testing.T) {
	o, base, rollup := testOrchestrator(t)
	ctx := context.Background()

	sess := model.NewSession(1, kingtiles.MustBoardAddress(1), 8, 2, 1000, 10)
	require.True(t, o.Registry().Put(sess))

	// The base ledger swears the game is running, so its frozen pre-delegation
	// copy must never be served.
	rollup.mu.Lock()
	rollup.fetchErr = assert.AnError
	rollup.mu.Unlock()
	base.setBoard(sess.BoardAddress, activeBoard(1, time.Now().Unix()+60), kingtiles.DelegationProgram)

	_, err := o.GetStatus(ctx, 1)
	assert.ErrorIs(t, err, ErrTemporarilyUnavailable)
}

func TestGetStatus_UnknownSession(t *testing.T) {
	o, _, _ := testOrchestrator(t)
	_, err := o.GetStatus(context.Background(), 404)
	assert.ErrorIs(t, err, ErrUnknownSession)
}

func TestLatestStatus(t *testing.T) {
	o, _, rollup := testOrchestrator(t)
	ctx := context.Background()

	_, err := o.LatestStatus(ctx)
	assert.ErrorIs(t, err, ErrUnknownSession)

	older := model.NewSession(1, kingtiles.MustBoardAddress(1), 8, 2, 1000, 10)
	require.True(t, o.Registry().Put(older))
	newer := model.NewSession(2, kingtiles.MustBoardAddress(2), 8, 2, 1000, 10)
	newer.CreatedAt = older.CreatedAt.Add(time.Second)
	require.True(t, o.Registry().Put(newer))

	rollup.setBoard(newer.BoardAddress, activeBoard(2, time.Now().Unix()+60), kingtiles.DelegationProgram)

	payload, err := o.LatestStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), payload.SessionID)
}

func TestListSessions(t *testing.T) {
	o, _, _ := testOrchestrator(t)

	require.True(t, o.Registry().Put(model.NewSession(2, kingtiles.MustBoardAddress(2), 10, 4, 1000, 10)))
	require.True(t, o.Registry().Put(model.NewSession(1, kingtiles.MustBoardAddress(1), 8, 2, 1000, 10)))

	list := o.ListSessions()
	require.Len(t, list, 2)
	assert.Equal(t, uint64(1), list[0].SessionID)
	assert.Equal(t, uint64(2), list[1].SessionID)
	assert.Equal(t, uint8(10), list[1].BoardSideLen)
	assert.False(t, list[0].Ticking)
}

func TestSessions_IncludesLatestCompletedPerMode(t *testing.T) {
	o, _, rollup := testOrchestrator(t)
	ctx := context.Background()

	live := model.NewSession(1, kingtiles.MustBoardAddress(1), 8, 2, 1000, 10)
	require.True(t, o.Registry().Put(live))

	done := activeBoard(2, time.Now().Unix()-60)
	done.IsActive = false
	o.Snapshots().Put(&model.CompletedGameSnapshot{
		SessionID:   2,
		Mode:        model.GameMode{BoardSideLen: 8, MaxPlayers: 2},
		Board:       done,
		CompletedAt: time.Now(),
	})

	// Warm the cache so the listing carries the live player count.
	rollup.setBoard(live.BoardAddress, activeBoard(1, time.Now().Unix()+60), kingtiles.DelegationProgram)
	_, err := o.GetStatus(ctx, 1)
	require.NoError(t, err)

	view := o.Sessions()
	require.Len(t, view.Live, 1)
	assert.True(t, view.Live[0].Active)
	assert.Equal(t, uint8(2), view.Live[0].PlayersCount)

	require.Len(t, view.LatestCompleted, 1)
	assert.Equal(t, uint64(2), view.LatestCompleted[0].SessionID)
	assert.Equal(t, "snapshot", view.LatestCompleted[0].Source)
	assert.NotNil(t, view.LatestCompleted[0].CompletedAt)
}

func TestStatusCache_ExpiresEntries(t *testing.T) {
	c := newStatusCache()
	c.put(1, model.StatusPayload{SessionID: 1}, 10*time.Millisecond)

	_, ok := c.get(1)
	assert.True(t, ok)

	time.Sleep(20 * time.Millisecond)
	_, ok = c.get(1)
	assert.False(t, ok)

	c.put(2, model.StatusPayload{SessionID: 2}, time.Minute)
	c.invalidate(2)
	_, ok = c.get(2)
	assert.False(t, ok)
}
