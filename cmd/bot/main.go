// Package main is the entry point for the Ludo table bot.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"ludo-table-bot/internal/api"
	"ludo-table-bot/internal/bot"
	"ludo-table-bot/internal/config"
	"ludo-table-bot/internal/pkg/db"
	"ludo-table-bot/internal/pkg/lock"
	"ludo-table-bot/internal/repository"
	"ludo-table-bot/internal/service"
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
	adminRepo := repository.NewAdminRepository(dbPool.Pool)
	tableRepo := repository.NewTableRepository(dbPool.Pool)
	txRepo := repository.NewTransactionRepository(dbPool.Pool)
	settlementRepo := repository.NewSettlementRepository(dbPool.Pool)

	// Initialize user lock
	userLock := lock.NewUserLock()

	// Initialize services
	ledgerService := service.NewLedgerService(userRepo, adminRepo, txRepo, userLock)
	settlementService := service.NewSettlementService(settlementRepo, userLock, cfg.Betting.CommissionPercent)

	// Seed the configured initial admin. One-shot: refused once any admin
	// exists, which is the expected state on every restart after the first.
	if cfg.Admin.InitialID != 0 {
		if _, err := ledgerService.BootstrapAdmin(ctx, cfg.Admin.InitialID, cfg.Admin.InitialUsername); err != nil {
			if !errors.Is(err, service.ErrAdminExists) {
				log.Fatal().Err(err).Msg("Failed to bootstrap initial admin")
			}
		}
	}

	// Initialize bot transport and gateway
	teleBot, err := bot.NewTeleBot(&cfg.Bot)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create bot")
	}
	gateway := bot.NewTelegramGateway(teleBot, cfg.Bot.GroupChatID)

	lifecycleService := service.NewLifecycleService(tableRepo, userRepo, settlementService, gateway)

	deps := &bot.Dependencies{
		Config:    cfg,
		Lifecycle: lifecycleService,
		Ledger:    ledgerService,
	}
	telegramBot := bot.New(deps, teleBot, gateway)

	// Initialize the mini-app API server
	apiServer := api.NewServer(cfg.HTTP.Listen, lifecycleService, ledgerService, gateway, dbPool, cfg.HTTP.MiniAppURL)

	// Setup graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Info().Msg("Bot is starting...")
		telegramBot.Start()
	}()

	go func() {
		if err := apiServer.Start(); err != nil {
			log.Fatal().Err(err).Msg("API server failed")
		}
	}()

	// Wait for shutdown signal
	sig := <-sigChan
	log.Info().Str("signal", sig.String()).Msg("Received shutdown signal")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := apiServer.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("API server shutdown failed")
	}
	telegramBot.Stop()
	log.Info().Msg("Bot stopped gracefully")
}

// runMigrations executes database migrations.
func runMigrations(ctx context.Context, pool *db.Pool) error {
	log.Info().Msg("Running database migrations...")

	// Migration 1: Create users table
	_, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS users (
			telegram_id BIGINT PRIMARY KEY,
			username VARCHAR(255) NOT NULL DEFAULT '',
			first_name VARCHAR(255) NOT NULL DEFAULT '',
			last_name VARCHAR(255) NOT NULL DEFAULT '',
			balance BIGINT NOT NULL DEFAULT 0 CHECK (balance >= 0),
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_users_username ON users(LOWER(username));
	`)
	if err != nil {
		return err
	}
	log.Info().Msg("Migration 1: users table created")

	// Migration 2: Create admins table
	_, err = pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS admins (
			telegram_id BIGINT PRIMARY KEY REFERENCES users(telegram_id) ON DELETE CASCADE,
			username VARCHAR(255) NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
	`)
	if err != nil {
		return err
	}
	log.Info().Msg("Migration 2: admins table created")

	// Migration 3: Create tables table
	_, err = pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS tables (
			id BIGSERIAL PRIMARY KEY,
			creator_id BIGINT NOT NULL REFERENCES users(telegram_id),
			acceptor_id BIGINT REFERENCES users(telegram_id),
			amount BIGINT NOT NULL CHECK (amount > 0),
			game_type VARCHAR(255) NOT NULL DEFAULT '',
			options TEXT NOT NULL DEFAULT '',
			table_number INT NOT NULL,
			message_id INT,
			status VARCHAR(20) NOT NULL DEFAULT 'open',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			completed_at TIMESTAMPTZ
		);
		CREATE INDEX IF NOT EXISTS idx_tables_message_status ON tables(message_id, status);
		CREATE INDEX IF NOT EXISTS idx_tables_creator_status ON tables(creator_id, status);
	`)
	if err != nil {
		return err
	}
	log.Info().Msg("Migration 3: tables table created")

	// Migration 4: Create transactions table
	_, err = pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS transactions (
			id BIGSERIAL PRIMARY KEY,
			user_id BIGINT NOT NULL REFERENCES users(telegram_id) ON DELETE CASCADE,
			amount BIGINT NOT NULL,
			type VARCHAR(50) NOT NULL,
			description TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_transactions_user_time ON transactions(user_id, created_at DESC);
		CREATE INDEX IF NOT EXISTS idx_transactions_type_time ON transactions(type, created_at DESC);
	`)
	if err != nil {
		return err
	}
	log.Info().Msg("Migration 4: transactions table created")

	log.Info().Msg("All migrations completed successfully")
	return nil
}
