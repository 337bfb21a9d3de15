// Package main is the entry point for the Muzloto loyalty server:
// the Telegram bot and the mini-app HTTP API share one process.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/AndreyDiak/muzloto-server/internal/api"
	"github.com/AndreyDiak/muzloto-server/internal/bot"
	"github.com/AndreyDiak/muzloto-server/internal/config"
	"github.com/AndreyDiak/muzloto-server/internal/notify"
	"github.com/AndreyDiak/muzloto-server/internal/pkg/db"
	jwtpkg "github.com/AndreyDiak/muzloto-server/internal/pkg/jwt"
	"github.com/AndreyDiak/muzloto-server/internal/pkg/lock"
	"github.com/AndreyDiak/muzloto-server/internal/repository"
	"github.com/AndreyDiak/muzloto-server/internal/service"
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

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize database connection pool
	dbPool, err := db.NewPool(ctx, &cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer dbPool.Close()

	// Run database migrations
	if err := runMigrations(ctx, dbPool); err != nil {
		log.Fatal().Err(err).Msg("Failed to run database migrations")
	}

	// Initialize repositories
	userRepo := repository.NewUserRepository(dbPool.Pool)
	codeRepo := repository.NewCodeRepository(dbPool.Pool)
	eventRepo := repository.NewEventRepository(dbPool.Pool)
	catalogRepo := repository.NewCatalogRepository(dbPool.Pool)
	achievementRepo := repository.NewAchievementRepository(dbPool.Pool)
	ledgerRepo := repository.NewLedgerRepository(dbPool.Pool)
	tokenRepo := repository.NewTransferTokenRepository(dbPool.Pool)

	// Initialize services
	accountService := service.NewAccountService(userRepo, ledgerRepo)

	achievementService := service.NewAchievementService(
		dbPool.Pool,
		userRepo,
		achievementRepo,
		ledgerRepo,
		cfg.Achievements.Definitions,
		cfg.Rewards.MilestoneInterval,
		cfg.Rewards.Milestone,
	)

	ledgerService := service.NewLedgerService(
		dbPool.Pool,
		userRepo,
		catalogRepo,
		achievementRepo,
		ledgerRepo,
		achievementService,
		cfg.Rewards.Visit,
		cfg.Rewards.BingoDefault,
	)

	redemptionService := service.NewRedemptionService(
		dbPool.Pool,
		userRepo,
		codeRepo,
		eventRepo,
		catalogRepo,
		achievementRepo,
		ledgerRepo,
		ledgerService,
	)

	issuerService := service.NewIssuerService(codeRepo, cfg.Codes.Numeric, cfg.Codes.MaxAttempts)
	scannerService := service.NewScannerService(redemptionService)
	transferService := service.NewTransferService(
		dbPool.Pool,
		userRepo,
		ledgerRepo,
		tokenRepo,
		cfg.Rewards.TransferTokenTTL,
	)

	// Initialize user lock
	userLock := lock.NewUserLock()

	// Initialize bot
	telegramBot, err := bot.New(&bot.Dependencies{
		Config:      cfg,
		Accounts:    accountService,
		Evaluator:   achievementService,
		Redemptions: redemptionService,
		Issuer:      issuerService,
		Ledger:      ledgerService,
		UserLock:    userLock,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create bot")
	}

	notifier := notify.New(telegramBot.Telebot())

	// Initialize HTTP API
	jwtManager := jwtpkg.NewManager(cfg.Server.JWTSecret, "muzloto-server", cfg.Server.TokenTTL)

	router := api.SetupRouter(
		cfg,
		jwtManager,
		api.NewAuthHandler(cfg, accountService, jwtManager),
		api.NewAccountHandler(accountService, achievementService),
		api.NewRedemptionHandler(redemptionService),
		api.NewCatalogHandler(catalogRepo, ledgerService, redemptionService),
		api.NewAchievementHandler(achievementService),
		api.NewTransferHandler(transferService),
		api.NewStaffHandler(scannerService, issuerService, notifier),
	)

	server := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: router,
	}

	// Setup graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Start bot in a goroutine
	go func() {
		log.Info().Msg("Bot is starting...")
		telegramBot.Start()
	}()

	// Start HTTP server in a goroutine
	go func() {
		log.Info().Str("addr", cfg.Server.Addr).Msg("HTTP API is starting...")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	// Wait for shutdown signal
	sig := <-sigChan
	log.Info().Str("signal", sig.String()).Msg("Received shutdown signal")

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown failed")
	}
	telegramBot.Stop()
	log.Info().Msg("Server stopped gracefully")
}

// runMigrations executes database migrations.
func runMigrations(ctx context.Context, pool *db.Pool) error {
	log.Info().Msg("Running database migrations...")

	// Migration 1: users
	_, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS users (
			telegram_id BIGINT PRIMARY KEY,
			username VARCHAR(255) NOT NULL DEFAULT '',
			coins BIGINT NOT NULL DEFAULT 0,
			games_visited INT NOT NULL DEFAULT 0,
			tickets_purchased INT NOT NULL DEFAULT 0,
			bingo_collected INT NOT NULL DEFAULT 0,
			visit_rewards_claimed INT NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
	`)
	if err != nil {
		return err
	}
	log.Info().Msg("Migration 1: users table created")

	// Migration 2: events and catalog
	_, err = pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS events (
			id BIGSERIAL PRIMARY KEY,
			title TEXT NOT NULL,
			starts_at TIMESTAMPTZ NOT NULL,
			timezone TEXT NOT NULL DEFAULT 'UTC',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE TABLE IF NOT EXISTS catalog_items (
			id BIGSERIAL PRIMARY KEY,
			title TEXT NOT NULL,
			price BIGINT NOT NULL,
			active BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
	`)
	if err != nil {
		return err
	}
	log.Info().Msg("Migration 2: events and catalog_items tables created")

	// Migration 3: codes. The unique index spans all namespaces, which
	// is what makes namespace-less code entry in chat unambiguous.
	_, err = pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS codes (
			id BIGSERIAL PRIMARY KEY,
			value VARCHAR(16) NOT NULL,
			namespace VARCHAR(32) NOT NULL,
			event_id BIGINT REFERENCES events(id),
			catalog_item_id BIGINT REFERENCES catalog_items(id),
			coins_amount BIGINT,
			used_at TIMESTAMPTZ,
			used_by BIGINT,
			created_by BIGINT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE UNIQUE INDEX IF NOT EXISTS codes_value_key ON codes (value);
		CREATE INDEX IF NOT EXISTS idx_codes_namespace ON codes(namespace);
	`)
	if err != nil {
		return err
	}
	log.Info().Msg("Migration 3: codes table created")

	// Migration 4: registrations
	_, err = pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS registrations (
			id BIGSERIAL PRIMARY KEY,
			event_id BIGINT NOT NULL REFERENCES events(id) ON DELETE CASCADE,
			user_id BIGINT NOT NULL REFERENCES users(telegram_id) ON DELETE CASCADE,
			registered_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			UNIQUE (event_id, user_id)
		);
	`)
	if err != nil {
		return err
	}
	log.Info().Msg("Migration 4: registrations table created")

	// Migration 5: achievements
	_, err = pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS achievements (
			user_id BIGINT NOT NULL REFERENCES users(telegram_id) ON DELETE CASCADE,
			slug VARCHAR(64) NOT NULL,
			unlocked_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			reward_claimed_at TIMESTAMPTZ,
			PRIMARY KEY (user_id, slug)
		);
	`)
	if err != nil {
		return err
	}
	log.Info().Msg("Migration 5: achievements table created")

	// Migration 6: ledger
	_, err = pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS ledger_entries (
			id BIGSERIAL PRIMARY KEY,
			user_id BIGINT NOT NULL REFERENCES users(telegram_id) ON DELETE CASCADE,
			amount BIGINT NOT NULL,
			type VARCHAR(50) NOT NULL,
			description TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_ledger_user_time ON ledger_entries(user_id, created_at DESC);
	`)
	if err != nil {
		return err
	}
	log.Info().Msg("Migration 6: ledger_entries table created")

	// Migration 7: transfer tokens
	_, err = pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS transfer_tokens (
			token VARCHAR(64) PRIMARY KEY,
			from_user_id BIGINT NOT NULL REFERENCES users(telegram_id) ON DELETE CASCADE,
			amount BIGINT NOT NULL,
			expires_at TIMESTAMPTZ NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_transfer_tokens_expires ON transfer_tokens(expires_at);
	`)
	if err != nil {
		return err
	}
	log.Info().Msg("Migration 7: transfer_tokens table created")

	log.Info().Msg("All migrations completed successfully")
	return nil
}
