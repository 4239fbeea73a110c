// Package main is the entry point for the RetroAchievements league bot.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"retro-league-bot/internal/bot"
	"retro-league-bot/internal/config"
	"retro-league-bot/internal/pkg/db"
	"retro-league-bot/internal/pkg/lock"
	"retro-league-bot/internal/pkg/metrics"
	"retro-league-bot/internal/repository"
	"retro-league-bot/internal/retroapi"
	"retro-league-bot/internal/scheduler"
	"retro-league-bot/internal/service"
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

	if len(cfg.League.Members) == 0 {
		log.Fatal().Msg("League roster is empty, nothing to track")
	}

	log.Info().
		Int("roster_size", len(cfg.League.Members)).
		Msg("Configuration loaded successfully")

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize the database pool. The pool reconnects lazily on use,
	// but startup requires a working connection: without the snapshot
	// store, monotonic snapshots cannot be guaranteed.
	dbPool := db.NewLazyPool(&cfg.Database)
	if err := dbPool.Connect(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer dbPool.Close()

	// Run database migrations
	pool, err := dbPool.Acquire(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to acquire database pool")
	}
	if err := runMigrations(ctx, pool); err != nil {
		log.Fatal().Err(err).Msg("Failed to run database migrations")
	}

	// Initialize the achievement source client
	raClient := retroapi.New(&retroapi.Config{
		BaseURL:           cfg.RetroAchievements.BaseURL,
		Username:          cfg.RetroAchievements.Username,
		APIKey:            cfg.RetroAchievements.APIKey,
		Timeout:           cfg.RetroAchievements.Timeout,
		RequestsPerSecond: cfg.RetroAchievements.RequestsPerSecond,
		Burst:             cfg.RetroAchievements.Burst,
		GameCacheMB:       cfg.RetroAchievements.GameCacheMB,
		GameCacheTTL:      cfg.RetroAchievements.GameCacheTTL,
	}, nil)

	// Initialize repositories and services
	snapshotRepo := repository.NewSnapshotRepository(dbPool)
	accountLock := lock.NewAccountLock()

	masteryService := service.NewMasteryService(raClient, snapshotRepo, cfg.League.Members, accountLock)
	rarityService := service.NewRarityService(raClient)
	leagueService := service.NewLeagueService(raClient, cfg.RetroAchievements.MaxConcurrency, nil)

	// Seed snapshots for roster members that have none, before the first
	// tick runs, so a fresh account never floods the chat.
	if err := masteryService.BootstrapAccounts(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to bootstrap accounts")
	}

	// Initialize bot
	leagueBot, err := bot.New(&bot.Dependencies{
		Config:         cfg,
		MasteryService: masteryService,
		LeagueService:  leagueService,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create bot")
	}

	// Start metrics endpoint if configured
	if cfg.Metrics.Addr != "" {
		go func() {
			log.Info().Str("addr", cfg.Metrics.Addr).Msg("Metrics endpoint listening")
			mux := http.NewServeMux()
			mux.Handle("/metrics", metrics.Handler())
			if err := http.ListenAndServe(cfg.Metrics.Addr, mux); err != nil {
				log.Error().Err(err).Msg("Metrics endpoint failed")
			}
		}()
	}

	// Start the mastery check scheduler
	checkScheduler := scheduler.New(
		cfg.Scheduler.Interval,
		cfg.League.Members,
		masteryService,
		rarityService,
		leagueBot,
	)
	go checkScheduler.Run(ctx)

	// Setup graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Start bot in a goroutine
	go func() {
		log.Info().Msg("Bot is starting...")
		leagueBot.Start()
	}()

	// Wait for shutdown signal
	sig := <-sigChan
	log.Info().Str("signal", sig.String()).Msg("Received shutdown signal")

	// Graceful shutdown
	cancel()
	leagueBot.Stop()
	log.Info().Msg("Bot stopped gracefully")
}

// runMigrations executes database migrations.
func runMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	log.Info().Msg("Running database migrations...")

	// Migration 1: Create mastery snapshots table
	_, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS mastery_snapshots (
			key VARCHAR(255) PRIMARY KEY,
			value JSONB NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
	`)
	if err != nil {
		return err
	}
	log.Info().Msg("Migration 1: mastery_snapshots table created")

	log.Info().Msg("All migrations completed successfully")
	return nil
}
