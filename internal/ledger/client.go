// Package ledger wraps the remote chains the orchestrator talks to: the base
// ledger (authoritative, slow) and the ephemeral rollup (fast, gameplay). Both
// are reached through the same Client contract; the orchestrator holds one
// instance per ledger. Every call is at-least-once-attempted and may fail
// transiently; callers own their retry policy.
package ledger

import (
	"context"
	"errors"

	"github.com/gagliardetto/solana-go"

	"king-tiles-orchestrator/internal/kingtiles"
)

// ErrAccountNotFound is returned when an account does not exist on the queried
// ledger. Distinct from decode failures so settlement can tell "missing" from
// "owned by the wrong program".
var ErrAccountNotFound = errors.New("account not found")

// KeyedBoard pairs a decoded board with its account address.
type KeyedBoard struct {
	Address solana.PublicKey
	Board   *kingtiles.Board
}

// Client is the request/response surface of one ledger.
type Client interface {
	// Submit signs the instructions with the custody key and sends them as one
	// transaction, returning its signature.
	Submit(ctx context.Context, ixs ...solana.Instruction) (solana.Signature, error)

	// FetchBoard reads and decodes the board account at addr.
	// Returns ErrAccountNotFound if the account does not exist and
	// kingtiles.ErrNotBoardAccount if it exists but is not a board.
	FetchBoard(ctx context.Context, addr solana.PublicKey) (*kingtiles.Board, error)

	// AccountOwner reads the raw owner of an account without decoding it.
	// Returns ErrAccountNotFound if the account does not exist.
	AccountOwner(ctx context.Context, addr solana.PublicKey) (solana.PublicKey, error)

	// ListBoards enumerates every board account owned by the game program on
	// this ledger.
	ListBoards(ctx context.Context) ([]KeyedBoard, error)

	// Now returns the ledger's own clock as a unix timestamp. Implementations
	// may fall back to the local clock when the chain clock is unreadable;
	// that fallback reintroduces clock skew and is a documented risk.
	Now(ctx context.Context) (int64, error)
}

// GameStarted is emitted when a session's registration fills and the on-chain
// game begins.
type GameStarted struct {
	GameID uint64
}

// EventStream is a typed subscription to session-start notifications. The
// handler reacting to the stream is independent of the transport behind it.
type EventStream interface {
	// Events yields start notifications until the stream is closed. The
	// channel is closed when the stream shuts down.
	Events() <-chan GameStarted
	// Close tears down the subscription.
	Close()
}
