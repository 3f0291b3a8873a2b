// Package model defines the data model for the session orchestrator.
package model

import (
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"

	"king-tiles-orchestrator/internal/kingtiles"
)

// GameMode is one entry of the fixed board catalog.
type GameMode struct {
	BoardSideLen uint8
	MaxPlayers   uint8
}

// Catalog lists the only valid board configurations the program accepts.
var Catalog = []GameMode{
	{BoardSideLen: 8, MaxPlayers: 2},
	{BoardSideLen: 10, MaxPlayers: 4},
	{BoardSideLen: 12, MaxPlayers: 6},
}

// ValidMode reports whether the side length / player count combination is in
// the catalog.
func ValidMode(boardSideLen, maxPlayers uint8) bool {
	for _, m := range Catalog {
		if m.BoardSideLen == boardSideLen && m.MaxPlayers == maxPlayers {
			return true
		}
	}
	return false
}

// TimerHandle is the tick scheduler's ownership token for a session's running
// timers. The data model treats it as opaque.
type TimerHandle interface {
	Stop()
}

// TransactionTrace is the append-only record of the hashes produced at each
// lifecycle phase. Fields are only ever added, except that a successful reward
// hash clears any prior reward error.
type TransactionTrace struct {
	Start       string `json:"start,omitempty"`
	Delegate    string `json:"delegate,omitempty"`
	End         string `json:"end,omitempty"`
	Reward      string `json:"reward,omitempty"`
	RewardLink  string `json:"reward_link,omitempty"`
	RewardError string `json:"reward_error,omitempty"`
}

// Session is the orchestrator's live view of one game instance. Configuration
// fields are immutable after creation; the trace and the timer handle are
// guarded by the internal mutex.
type Session struct {
	ID                      uint64
	BoardAddress            solana.PublicKey
	BoardSideLen            uint8
	MaxPlayers              uint8
	RegistrationFeeLamports uint64
	LamportsPerScore        uint64
	CreatedAt               time.Time

	mu     sync.Mutex
	trace  TransactionTrace
	timers TimerHandle
}

// NewSession builds a live session from its immutable configuration.
func NewSession(id uint64, board solana.PublicKey, sideLen, maxPlayers uint8, fee, lamportsPerScore uint64) *Session {
	return &Session{
		ID:                      id,
		BoardAddress:            board,
		BoardSideLen:            sideLen,
		MaxPlayers:              maxPlayers,
		RegistrationFeeLamports: fee,
		LamportsPerScore:        lamportsPerScore,
		CreatedAt:               time.Now(),
	}
}

// Mode returns the session's catalog entry.
func (s *Session) Mode() GameMode {
	return GameMode{BoardSideLen: s.BoardSideLen, MaxPlayers: s.MaxPlayers}
}

// Trace returns a copy of the session's transaction trace.
func (s *Session) Trace() TransactionTrace {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.trace
}

// UpdateTrace applies a mutation to the trace under the session lock.
func (s *Session) UpdateTrace(fn func(t *TransactionTrace)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.trace)
}

// SetTimers installs the scheduler's timer handle, stopping any previously
// installed one first.
func (s *Session) SetTimers(h TimerHandle) {
	s.mu.Lock()
	prev := s.timers
	s.timers = h
	s.mu.Unlock()
	if prev != nil {
		prev.Stop()
	}
}

// StopTimers tears down the session's timers, if any are running.
func (s *Session) StopTimers() {
	s.SetTimers(nil)
}

// Ticking reports whether the session currently has live timers.
func (s *Session) Ticking() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timers != nil
}

// CompletedGameSnapshot is an immutable capture of a session's final board
// state. It is produced right after the end transaction and superseded once
// the reward transaction confirms, and it is the only state retained after the
// session leaves the registry.
type CompletedGameSnapshot struct {
	SessionID   uint64
	Mode        GameMode
	Board       *kingtiles.Board
	Trace       TransactionTrace
	CompletedAt time.Time
}

// PlayerStatus is one player's entry in a status payload.
type PlayerStatus struct {
	Wallet       string `json:"wallet"`
	Score        uint64 `json:"score"`
	Position     int16  `json:"position"`
	PowerupScore uint64 `json:"powerup_score"`
}

// StatusPayload is the read-model answer to "what is happening now" for one
// session.
type StatusPayload struct {
	SessionID        uint64           `json:"session_id"`
	Active           bool             `json:"active"`
	BoardSideLen     uint8            `json:"board_side_len"`
	MaxPlayers       uint8            `json:"max_players"`
	PlayersCount     uint8            `json:"players_count"`
	Players          []PlayerStatus   `json:"players"`
	Cells            []uint8          `json:"cells"`
	KingPosition     uint8            `json:"king_position"`
	PowerupPosition  uint8            `json:"powerup_position"`
	BombPosition     uint8            `json:"bomb_position"`
	GameEndTimestamp int64            `json:"game_end_timestamp"`
	Trace            TransactionTrace `json:"trace"`
	Source           string           `json:"source"`
	CompletedAt      *time.Time       `json:"completed_at,omitempty"`
}

// PayloadFromBoard projects an on-chain board into a status payload. Source
// names where the board was read from ("rollup", "base" or "snapshot").
func PayloadFromBoard(board *kingtiles.Board, trace TransactionTrace, source string) StatusPayload {
	players := make([]PlayerStatus, 0, len(board.Players))
	for _, p := range board.Players {
		players = append(players, PlayerStatus{
			Wallet:       p.Wallet.String(),
			Score:        p.Score,
			Position:     p.CurrentPosition,
			PowerupScore: p.PowerupScore,
		})
	}
	return StatusPayload{
		SessionID:        board.GameID,
		Active:           board.IsActive,
		BoardSideLen:     board.BoardSideLen,
		MaxPlayers:       board.MaxPlayers,
		PlayersCount:     board.PlayersCount,
		Players:          players,
		Cells:            board.Cells[:board.ActiveCells()],
		KingPosition:     board.KingPosition,
		PowerupPosition:  board.PowerupPosition,
		BombPosition:     board.BombPosition,
		GameEndTimestamp: board.GameEndTimestamp,
		Trace:            trace,
		Source:           source,
	}
}
