// Package leaderboard persists final per-player scores. It is a downstream
// read model fed from completed-game snapshots; writes are best-effort from
// the orchestrator's perspective.
package leaderboard

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Entry is one (wallet, game) score row.
type Entry struct {
	Wallet         string `db:"wallet"`
	GameID         uint64 `db:"game_id"`
	Score          uint64 `db:"score"`
	RewardLamports uint64 `db:"reward_lamports"`
}

// Rank is one aggregated leaderboard row.
type Rank struct {
	Wallet      string `db:"wallet"`
	TotalScore  uint64 `db:"total_score"`
	GamesPlayed int    `db:"games_played"`
}

// Store handles leaderboard persistence.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a new Store instance.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Upsert records a player's final score for one game. Keyed by
// (wallet, game_id), so re-settling the same session overwrites rather than
// duplicates.
func (s *Store) Upsert(ctx context.Context, e Entry) error {
	const query = `
		INSERT INTO leaderboard (wallet, game_id, score, reward_lamports, recorded_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (wallet, game_id)
		DO UPDATE SET score = EXCLUDED.score, reward_lamports = EXCLUDED.reward_lamports, recorded_at = NOW()
	`

	if _, err := s.pool.Exec(ctx, query, e.Wallet, e.GameID, e.Score, e.RewardLamports); err != nil {
		return fmt.Errorf("failed to upsert leaderboard entry: %w", err)
	}
	return nil
}

// Top returns the highest-scoring wallets across all recorded games.
func (s *Store) Top(ctx context.Context, limit int) ([]*Rank, error) {
	const query = `
		SELECT wallet, SUM(score) AS total_score, COUNT(*) AS games_played
		FROM leaderboard
		GROUP BY wallet
		ORDER BY total_score DESC, wallet
		LIMIT $1
	`

	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query leaderboard: %w", err)
	}
	defer rows.Close()

	var ranks []*Rank
	for rows.Next() {
		var r Rank
		if err := rows.Scan(&r.Wallet, &r.TotalScore, &r.GamesPlayed); err != nil {
			return nil, fmt.Errorf("failed to scan leaderboard row: %w", err)
		}
		ranks = append(ranks, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read leaderboard rows: %w", err)
	}
	return ranks, nil
}

// ForGame returns the recorded entries for one game id, highest score first.
func (s *Store) ForGame(ctx context.Context, gameID uint64) ([]*Entry, error) {
	const query = `
		SELECT wallet, game_id, score, reward_lamports
		FROM leaderboard
		WHERE game_id = $1
		ORDER BY score DESC, wallet
	`

	rows, err := s.pool.Query(ctx, query, gameID)
	if err != nil {
		return nil, fmt.Errorf("failed to query game entries: %w", err)
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.Wallet, &e.GameID, &e.Score, &e.RewardLamports); err != nil {
			return nil, fmt.Errorf("failed to scan game entry: %w", err)
		}
		entries = append(entries, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read game entries: %w", err)
	}
	return entries, nil
}

// Migrate creates the leaderboard schema.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS leaderboard (
			wallet VARCHAR(64) NOT NULL,
			game_id BIGINT NOT NULL,
			score BIGINT NOT NULL,
			reward_lamports BIGINT NOT NULL DEFAULT 0,
			recorded_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (wallet, game_id)
		);
		CREATE INDEX IF NOT EXISTS idx_leaderboard_game ON leaderboard(game_id);
		CREATE INDEX IF NOT EXISTS idx_leaderboard_score ON leaderboard(score DESC);
	`)
	if err != nil {
		return fmt.Errorf("failed to create leaderboard schema: %w", err)
	}
	return nil
}
