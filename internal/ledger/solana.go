package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/rs/zerolog/log"

	"king-tiles-orchestrator/internal/kingtiles"
)

// RPCClient is the solana-go backed Client implementation. The same type
// serves both ledgers; only the endpoint differs.
type RPCClient struct {
	name       string
	rpc        *rpc.Client
	signer     solana.PrivateKey
	commitment rpc.CommitmentType
}

// NewRPCClient builds a client for one ledger endpoint. The signer is the
// custody key; name tags log lines ("base" or "rollup").
func NewRPCClient(name, endpoint string, signer solana.PrivateKey, commitment rpc.CommitmentType) *RPCClient {
	if commitment == "" {
		commitment = rpc.CommitmentConfirmed
	}
	return &RPCClient{
		name:       name,
		rpc:        rpc.New(endpoint),
		signer:     signer,
		commitment: commitment,
	}
}

// Submit signs and sends one transaction carrying the given instructions.
func (c *RPCClient) Submit(ctx context.Context, ixs ...solana.Instruction) (solana.Signature, error) {
	recent, err := c.rpc.GetLatestBlockhash(ctx, c.commitment)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("failed to fetch blockhash: %w", err)
	}

	tx, err := solana.NewTransaction(ixs, recent.Value.Blockhash, solana.TransactionPayer(c.signer.PublicKey()))
	if err != nil {
		return solana.Signature{}, fmt.Errorf("failed to build transaction: %w", err)
	}

	if _, err := tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		if key.Equals(c.signer.PublicKey()) {
			return &c.signer
		}
		return nil
	}); err != nil {
		return solana.Signature{}, fmt.Errorf("failed to sign transaction: %w", err)
	}

	sig, err := c.rpc.SendTransactionWithOpts(ctx, tx, rpc.TransactionOpts{
		SkipPreflight:       true,
		PreflightCommitment: c.commitment,
	})
	if err != nil {
		return solana.Signature{}, fmt.Errorf("failed to send transaction: %w", err)
	}
	return sig, nil
}

// FetchBoard reads and decodes the board account at addr.
func (c *RPCClient) FetchBoard(ctx context.Context, addr solana.PublicKey) (*kingtiles.Board, error) {
	res, err := c.rpc.GetAccountInfoWithOpts(ctx, addr, &rpc.GetAccountInfoOpts{Commitment: c.commitment})
	if err != nil {
		if errors.Is(err, rpc.ErrNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to fetch account %s: %w", addr, err)
	}
	if res.Value == nil {
		return nil, ErrAccountNotFound
	}
	return kingtiles.DecodeBoard(res.Value.Data.GetBinary())
}

// AccountOwner reads the raw owner of addr without decoding the account.
func (c *RPCClient) AccountOwner(ctx context.Context, addr solana.PublicKey) (solana.PublicKey, error) {
	res, err := c.rpc.GetAccountInfoWithOpts(ctx, addr, &rpc.GetAccountInfoOpts{Commitment: c.commitment})
	if err != nil {
		if errors.Is(err, rpc.ErrNotFound) {
			return solana.PublicKey{}, ErrAccountNotFound
		}
		return solana.PublicKey{}, fmt.Errorf("failed to fetch account %s: %w", addr, err)
	}
	if res.Value == nil {
		return solana.PublicKey{}, ErrAccountNotFound
	}
	return res.Value.Owner, nil
}

// ListBoards enumerates board accounts owned by the game program on this
// ledger. Accounts that fail to decode are logged and skipped so one corrupt
// account cannot hide the rest.
func (c *RPCClient) ListBoards(ctx context.Context) ([]KeyedBoard, error) {
	res, err := c.rpc.GetProgramAccountsWithOpts(ctx, kingtiles.ProgramID, &rpc.GetProgramAccountsOpts{
		Commitment: c.commitment,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate program accounts: %w", err)
	}

	boards := make([]KeyedBoard, 0, len(res))
	for _, acc := range res {
		board, err := kingtiles.DecodeBoard(acc.Account.Data.GetBinary())
		if err != nil {
			log.Warn().
				Str("ledger", c.name).
				Str("account", acc.Pubkey.String()).
				Err(err).
				Msg("Skipping undecodable program account")
			continue
		}
		boards = append(boards, KeyedBoard{Address: acc.Pubkey, Board: board})
	}
	return boards, nil
}

// Now returns the ledger's own clock. If the chain clock cannot be read it
// falls back to the local wall clock, which can reintroduce the clock-skew
// problem the ledger clock exists to avoid; callers re-check skew-sensitive
// decisions against ledger time on their next attempt.
func (c *RPCClient) Now(ctx context.Context) (int64, error) {
	slot, err := c.rpc.GetSlot(ctx, c.commitment)
	if err != nil {
		log.Warn().Str("ledger", c.name).Err(err).Msg("Chain clock unavailable, falling back to local clock")
		return time.Now().Unix(), nil
	}
	blockTime, err := c.rpc.GetBlockTime(ctx, slot)
	if err != nil || blockTime == nil {
		log.Warn().Str("ledger", c.name).Err(err).Msg("Block time unavailable, falling back to local clock")
		return time.Now().Unix(), nil
	}
	return int64(*blockTime), nil
}
