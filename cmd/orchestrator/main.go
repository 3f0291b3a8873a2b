// Package main is the entry point for the King Tiles session orchestrator.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"king-tiles-orchestrator/internal/api"
	"king-tiles-orchestrator/internal/config"
	"king-tiles-orchestrator/internal/kingtiles"
	"king-tiles-orchestrator/internal/leaderboard"
	"king-tiles-orchestrator/internal/ledger"
	"king-tiles-orchestrator/internal/orchestrator"
	"king-tiles-orchestrator/internal/pkg/db"
)

func main() {
	// Configure zerolog
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	// Load configuration
	cfg, err := config.Load("config")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	log.Info().Msg("Configuration loaded successfully")

	// Load the custody keypair. It must be the on-chain treasury: every
	// lifecycle transaction is signed by it, so a mismatch is fatal here
	// rather than a per-request failure later.
	signer, err := solana.PrivateKeyFromSolanaKeygenFile(cfg.Custody.KeypairPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.Custody.KeypairPath).Msg("Failed to load custody keypair")
	}
	custody := signer.PublicKey()
	if !custody.Equals(kingtiles.Treasury) {
		log.Fatal().
			Str("configured", custody.String()).
			Str("expected", kingtiles.Treasury.String()).
			Msg("Custody keypair does not match the treasury address")
	}

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize database connection pool for the leaderboard
	dbPool, err := db.NewPool(ctx, &cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer dbPool.Close()

	if err := leaderboard.Migrate(ctx, dbPool.Pool); err != nil {
		log.Fatal().Err(err).Msg("Failed to run database migrations")
	}
	scores := leaderboard.NewStore(dbPool.Pool)

	// Ledger clients for the base chain and the ephemeral rollup
	commitment := rpc.CommitmentType(cfg.Ledger.Commitment)
	base := ledger.NewRPCClient("base", cfg.Ledger.BaseRPC, signer, commitment)
	rollup := ledger.NewRPCClient("rollup", cfg.Ledger.RollupRPC, signer, commitment)

	orch := orchestrator.New(ctx, cfg, custody, base, rollup, scores)

	// Rebuild the live-session registry from ledger state before serving
	if err := orch.Recover(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to recover sessions from ledger state")
	}

	// Start-event stream from the base ledger websocket
	stream := ledger.NewLogStream(ctx, cfg.Ledger.BaseWS)
	defer stream.Close()
	go orch.ConsumeEvents(ctx, stream)

	go orch.RunWatchdog(ctx)

	server := api.NewServer(cfg, orch, scores, dbPool)
	go func() {
		if err := server.Start(); err != nil {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	// Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	log.Info().Str("signal", sig.String()).Msg("Received shutdown signal")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown failed")
	}
	cancel()
	log.Info().Msg("Orchestrator stopped gracefully")
}
