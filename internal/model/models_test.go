package model

import (
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"king-tiles-orchestrator/internal/kingtiles"
)

func TestValidMode(t *testing.T) {
	tests := []struct {
		sideLen    uint8
		maxPlayers uint8
		want       bool
	}{
		{8, 2, true},
		{10, 4, true},
		{12, 6, true},
		{8, 4, false},
		{10, 2, false},
		{9, 2, false},
		{0, 0, false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, ValidMode(tt.sideLen, tt.maxPlayers), "mode %dx%d/%d", tt.sideLen, tt.sideLen, tt.maxPlayers)
	}
}

type countingHandle struct {
	stops int
}

func (h *countingHandle) Stop() { h.stops++ }

func TestSession_SetTimersStopsPrevious(t *testing.T) {
	s := NewSession(1, solana.NewWallet().PublicKey(), 8, 2, 1000, 10)
	assert.False(t, s.Ticking())

	first := &countingHandle{}
	s.SetTimers(first)
	assert.True(t, s.Ticking())
	assert.Equal(t, 0, first.stops)

	second := &countingHandle{}
	s.SetTimers(second)
	assert.Equal(t, 1, first.stops)
	assert.True(t, s.Ticking())

	s.StopTimers()
	assert.Equal(t, 1, second.stops)
	assert.False(t, s.Ticking())
}

func TestSession_UpdateTrace(t *testing.T) {
	s := NewSession(1, solana.NewWallet().PublicKey(), 8, 2, 1000, 10)

	s.UpdateTrace(func(tr *TransactionTrace) { tr.Start = "starttx" })
	s.UpdateTrace(func(tr *TransactionTrace) { tr.End = "endtx" })

	// Trace returns a copy; mutating it must not touch the session.
	trace := s.Trace()
	trace.Start = "mutated"
	assert.Equal(t, "starttx", s.Trace().Start)
	assert.Equal(t, "endtx", s.Trace().End)
}

func TestPayloadFromBoard(t *testing.T) {
	w1 := solana.NewWallet().PublicKey()
	board := &kingtiles.Board{
		GameID:   3,
		IsActive: true,
		Players: []kingtiles.Player{
			{Wallet: w1, Score: 4, CurrentPosition: 9, PowerupScore: 1},
		},
		BoardSideLen:     8,
		MaxPlayers:       2,
		PlayersCount:     1,
		KingPosition:     12,
		GameEndTimestamp: 1_700_000_060,
	}
	board.Cells[12] = kingtiles.CellKing

	p := PayloadFromBoard(board, TransactionTrace{Start: "starttx"}, "rollup")

	assert.Equal(t, uint64(3), p.SessionID)
	assert.True(t, p.Active)
	assert.Equal(t, "rollup", p.Source)
	assert.Len(t, p.Cells, 64, "only the cells in play are exposed")
	assert.Equal(t, uint8(kingtiles.CellKing), p.Cells[12])
	require.Len(t, p.Players, 1)
	assert.Equal(t, w1.String(), p.Players[0].Wallet)
	assert.Equal(t, int16(9), p.Players[0].Position)
	assert.Equal(t, "starttx", p.Trace.Start)
	assert.Nil(t, p.CompletedAt)
}

func TestPayloadFromBoard_OversizedSideLen(t *testing.T) {
	// A decoded account with a side length outside the catalog must not slice
	// past the fixed cell array.
	board := &kingtiles.Board{GameID: 4, BoardSideLen: 200}
	p := PayloadFromBoard(board, TransactionTrace{}, "base")
	assert.Len(t, p.Cells, kingtiles.MaxBoardCells)
}
