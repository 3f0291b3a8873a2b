package snapshot

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"king-tiles-orchestrator/internal/kingtiles"
	"king-tiles-orchestrator/internal/model"
)

func snap(id uint64, mode model.GameMode, at time.Time) *model.CompletedGameSnapshot {
	return &model.CompletedGameSnapshot{
		SessionID:   id,
		Mode:        mode,
		Board:       &kingtiles.Board{GameID: id, BoardSideLen: mode.BoardSideLen, MaxPlayers: mode.MaxPlayers},
		CompletedAt: at,
	}
}

func TestStore_PutSupersedesSameSession(t *testing.T) {
	s := NewStore()
	mode := model.GameMode{BoardSideLen: 8, MaxPlayers: 2}
	now := time.Now()

	first := snap(1, mode, now)
	s.Put(first)

	// Settlement writes twice: once after the end transaction, once after the
	// reward confirms. The second write wins.
	second := snap(1, mode, now.Add(time.Second))
	second.Trace.Reward = "rewardtx"
	s.Put(second)

	got := s.Get(1)
	require.NotNil(t, got)
	assert.Same(t, second, got)
	assert.Equal(t, "rewardtx", got.Trace.Reward)
}

func TestStore_LatestByMode(t *testing.T) {
	s := NewStore()
	small := model.GameMode{BoardSideLen: 8, MaxPlayers: 2}
	large := model.GameMode{BoardSideLen: 12, MaxPlayers: 6}
	now := time.Now()

	s.Put(snap(1, small, now))
	s.Put(snap(2, large, now.Add(time.Second)))
	s.Put(snap(3, small, now.Add(2*time.Second)))

	assert.Equal(t, uint64(3), s.LatestByMode(small).SessionID)
	assert.Equal(t, uint64(2), s.LatestByMode(large).SessionID)
	assert.Equal(t, uint64(3), s.Latest().SessionID)
	assert.Nil(t, s.LatestByMode(model.GameMode{BoardSideLen: 10, MaxPlayers: 4}))
}

func TestStore_SetRewardError(t *testing.T) {
	s := NewStore()
	mode := model.GameMode{BoardSideLen: 8, MaxPlayers: 2}
	s.Put(snap(1, mode, time.Now()))

	s.SetRewardError(1, "treasury balance too low")
	assert.Equal(t, "treasury balance too low", s.Get(1).Trace.RewardError)

	// Unknown id is a no-op.
	s.SetRewardError(99, "whatever")
	assert.Nil(t, s.Get(99))
}

func TestStore_GetUnknownReturnsNil(t *testing.T) {
	s := NewStore()
	assert.Nil(t, s.Get(1))
	assert.Nil(t, s.Latest())
}
