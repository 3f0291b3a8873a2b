package kingtiles

import (
	"errors"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
)

// boardDiscriminator is the Anchor account discriminator for Board
// (sha256("account:Board")[0:8]).
var boardDiscriminator = [8]byte{0x4f, 0x30, 0xa0, 0x3f, 0x99, 0x84, 0xf0, 0x38}

// ErrNotBoardAccount is returned when account data does not carry the Board
// discriminator (wrong account, or a board mid-migration).
var ErrNotBoardAccount = errors.New("account data is not a board account")

// Player is one registered player's on-chain state.
type Player struct {
	Wallet          solana.PublicKey
	Score           uint64
	CurrentPosition int16
	ID              uint8
	PowerupScore    uint64
}

// Board mirrors the on-chain board account. Field order matters: it matches
// the borsh layout exactly.
type Board struct {
	GameID                  uint64
	Players                 []Player
	IsActive                bool
	Cells                   [MaxBoardCells]uint8
	BoardSideLen            uint8
	MaxPlayers              uint8
	RegistrationFeeLamports uint64
	LamportsPerScore        uint64
	PlayersCount            uint8
	KingPosition            uint8
	LastMoveTimestamp       int64
	GameEndTimestamp        int64
	PowerupPosition         uint8
	BombPosition            uint8
}

// Waiting reports whether the board is waiting for players to register: never
// started (zero end timestamp) and not active. An ended board is inactive too,
// but carries the timestamp of its end.
func (b *Board) Waiting() bool {
	return !b.IsActive && b.GameEndTimestamp == 0
}

// RemainingSeconds computes the session time left relative to the given ledger
// timestamp. Negative values mean the session is over.
func (b *Board) RemainingSeconds(ledgerNow int64) int64 {
	return b.GameEndTimestamp - ledgerNow
}

// ActiveCells returns the number of cells in play for this board's side
// length, clamped to the fixed cell array so a malformed account cannot drive
// an out-of-range slice.
func (b *Board) ActiveCells() int {
	side := int(b.BoardSideLen)
	if n := side * side; n <= MaxBoardCells {
		return n
	}
	return MaxBoardCells
}

// DecodeBoard parses a raw board account (discriminator + borsh payload).
func DecodeBoard(data []byte) (*Board, error) {
	if len(data) < 8 {
		return nil, ErrNotBoardAccount
	}
	if [8]byte(data[:8]) != boardDiscriminator {
		return nil, ErrNotBoardAccount
	}

	var board Board
	if err := bin.NewBorshDecoder(data[8:]).Decode(&board); err != nil {
		return nil, fmt.Errorf("failed to decode board account: %w", err)
	}
	return &board, nil
}

// EncodeBoard serializes a board back to raw account bytes. Used by tests to
// fabricate ledger state; the orchestrator itself never writes account data.
func EncodeBoard(board *Board) ([]byte, error) {
	buf := make([]byte, 0, 512)
	buf = append(buf, boardDiscriminator[:]...)

	body, err := bin.MarshalBorsh(board)
	if err != nil {
		return nil, fmt.Errorf("failed to encode board account: %w", err)
	}
	return append(buf, body...), nil
}
