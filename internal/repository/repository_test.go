// Package repository provides data access layer implementations.
// Tests use testcontainers-go to spin up a PostgreSQL container.
package repository

import (
	"context"
	"os/exec"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"ludo-table-bot/internal/model"
)

// checkDockerAvailable checks if Docker is available and running
func checkDockerAvailable() bool {
	cmd := exec.Command("docker", "info")
	err := cmd.Run()
	return err == nil
}

// setupTestDB creates a PostgreSQL container and returns a connection pool
// Skips the test if Docker is not available
func setupTestDB(t *testing.T) (*pgxpool.Pool, func()) {
	if !checkDockerAvailable() {
		t.Skip("Docker is not available, skipping integration test")
	}

	ctx := context.Background()

	// Create PostgreSQL container
	pgContainer, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err)

	// Get connection string
	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	// Create connection pool
	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)

	// Run migrations
	err = runMigrations(ctx, pool)
	require.NoError(t, err)

	// Return cleanup function
	cleanup := func() {
		pool.Close()
		_ = pgContainer.Terminate(ctx)
	}

	return pool, cleanup
}

// runMigrations applies the database schema
func runMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS users (
			telegram_id BIGINT PRIMARY KEY,
			username VARCHAR(255) NOT NULL DEFAULT '',
			first_name VARCHAR(255) NOT NULL DEFAULT '',
			last_name VARCHAR(255) NOT NULL DEFAULT '',
			balance BIGINT NOT NULL DEFAULT 0 CHECK (balance >= 0),
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		return err
	}

	_, err = pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS admins (
			telegram_id BIGINT PRIMARY KEY REFERENCES users(telegram_id) ON DELETE CASCADE,
			username VARCHAR(255) NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		return err
	}

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
		)
	`)
	if err != nil {
		return err
	}

	_, err = pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS transactions (
			id BIGSERIAL PRIMARY KEY,
			user_id BIGINT NOT NULL REFERENCES users(telegram_id) ON DELETE CASCADE,
			amount BIGINT NOT NULL,
			type VARCHAR(50) NOT NULL,
			description TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`)
	return err
}

// fundUser creates a user and credits an opening balance.
func fundUser(t *testing.T, repo *UserRepository, id int64, username string, balance int64) {
	t.Helper()
	ctx := context.Background()
	_, err := repo.Create(ctx, id, username, "", "")
	require.NoError(t, err)
	if balance > 0 {
		_, err = repo.Credit(ctx, id, balance)
		require.NoError(t, err)
	}
}

// ============================================================================
// UserRepository Tests
// ============================================================================

func TestUserRepository_CreateAndGet(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewUserRepository(pool)
	ctx := context.Background()

	user, err := repo.Create(ctx, 12345, "testuser", "Test", "User")
	require.NoError(t, err)
	assert.Equal(t, int64(12345), user.TelegramID)
	assert.Equal(t, "testuser", user.Username)
	assert.Equal(t, int64(0), user.Balance) // New accounts start empty
	assert.False(t, user.CreatedAt.IsZero())

	got, err := repo.GetByID(ctx, 12345)
	require.NoError(t, err)
	assert.Equal(t, "Test", got.FirstName)

	_, err = repo.GetByID(ctx, 99999)
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestUserRepository_GetByUsername(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewUserRepository(pool)
	ctx := context.Background()

	_, err := repo.Create(ctx, 12345, "TestUser", "", "")
	require.NoError(t, err)

	// Case-insensitive, with or without the leading @
	user, err := repo.GetByUsername(ctx, "testuser")
	require.NoError(t, err)
	assert.Equal(t, int64(12345), user.TelegramID)

	user, err = repo.GetByUsername(ctx, "@TESTUSER")
	require.NoError(t, err)
	assert.Equal(t, int64(12345), user.TelegramID)

	_, err = repo.GetByUsername(ctx, "@nobody")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestUserRepository_GetOrCreate(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewUserRepository(pool)
	ctx := context.Background()

	user, created, err := repo.GetOrCreate(ctx, 12345, "testuser", "Test", "User")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, int64(12345), user.TelegramID)

	// Second call finds the existing row
	user, created, err = repo.GetOrCreate(ctx, 12345, "testuser", "Test", "User")
	require.NoError(t, err)
	assert.False(t, created)

	// A changed profile is refreshed in place
	user, created, err = repo.GetOrCreate(ctx, 12345, "renamed", "Test", "User")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, "renamed", user.Username)
}

func TestUserRepository_CreditDebit(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewUserRepository(pool)
	ctx := context.Background()

	fundUser(t, repo, 12345, "testuser", 500)

	user, err := repo.Credit(ctx, 12345, 200)
	require.NoError(t, err)
	assert.Equal(t, int64(700), user.Balance)

	user, err = repo.Debit(ctx, 12345, 300)
	require.NoError(t, err)
	assert.Equal(t, int64(400), user.Balance)

	// A debit down to exactly zero is allowed
	user, err = repo.Debit(ctx, 12345, 400)
	require.NoError(t, err)
	assert.Equal(t, int64(0), user.Balance)

	// The floor rejects anything beyond, with no partial write
	_, err = repo.Debit(ctx, 12345, 1)
	var insufficient *InsufficientFundsError
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, int64(0), insufficient.Balance)
	assert.Equal(t, int64(1), insufficient.Needed)

	user, err = repo.GetByID(ctx, 12345)
	require.NoError(t, err)
	assert.Equal(t, int64(0), user.Balance)

	_, err = repo.Debit(ctx, 99999, 100)
	assert.ErrorIs(t, err, ErrUserNotFound)
}

// ============================================================================
// AdminRepository Tests
// ============================================================================

func TestAdminRepository(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	userRepo := NewUserRepository(pool)
	adminRepo := NewAdminRepository(pool)
	ctx := context.Background()

	fundUser(t, userRepo, 100, "boss", 0)

	any, err := adminRepo.Any(ctx)
	require.NoError(t, err)
	assert.False(t, any)

	isAdmin, err := adminRepo.IsAdmin(ctx, 100)
	require.NoError(t, err)
	assert.False(t, isAdmin)

	admin, err := adminRepo.Insert(ctx, 100, "boss")
	require.NoError(t, err)
	assert.Equal(t, int64(100), admin.TelegramID)

	isAdmin, err = adminRepo.IsAdmin(ctx, 100)
	require.NoError(t, err)
	assert.True(t, isAdmin)

	any, err = adminRepo.Any(ctx)
	require.NoError(t, err)
	assert.True(t, any)

	// Re-granting is idempotent and refreshes the username
	admin, err = adminRepo.Insert(ctx, 100, "boss2")
	require.NoError(t, err)
	assert.Equal(t, "boss2", admin.Username)
}

// ============================================================================
// TableRepository Tests
// ============================================================================

func TestTableRepository_InsertAndFind(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	userRepo := NewUserRepository(pool)
	tableRepo := NewTableRepository(pool)
	ctx := context.Background()

	fundUser(t, userRepo, 1, "creator", 0)

	table, err := tableRepo.Insert(ctx, 1, 600, "Full | 200+ game", "=>Fresh Id", 4217)
	require.NoError(t, err)
	assert.Equal(t, model.StatusOpen, table.Status)
	assert.Nil(t, table.MessageID)
	assert.Nil(t, table.AcceptorID)

	require.NoError(t, tableRepo.SetMessageID(ctx, table.ID, 777))

	found, err := tableRepo.FindByMessageID(ctx, 777, model.StatusOpen)
	require.NoError(t, err)
	assert.Equal(t, table.ID, found.ID)
	assert.Equal(t, int64(600), found.Amount)

	// Status is part of the lookup: a reply routed to the wrong phase
	// must not resolve
	_, err = tableRepo.FindByMessageID(ctx, 777, model.StatusMatched)
	assert.ErrorIs(t, err, ErrTableNotFound)

	_, err = tableRepo.FindByMessageID(ctx, 888, model.StatusOpen)
	assert.ErrorIs(t, err, ErrTableNotFound)
}

func TestTableRepository_SupersedeOpenByCreator(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	userRepo := NewUserRepository(pool)
	tableRepo := NewTableRepository(pool)
	ctx := context.Background()

	fundUser(t, userRepo, 1, "creator", 0)

	t1, err := tableRepo.Insert(ctx, 1, 100, "Full", "", 1111)
	require.NoError(t, err)
	require.NoError(t, tableRepo.SetMessageID(ctx, t1.ID, 10))

	// A second table never linked to a message
	_, err = tableRepo.Insert(ctx, 1, 200, "Full", "", 2222)
	require.NoError(t, err)

	messageIDs, err := tableRepo.SupersedeOpenByCreator(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []int{10}, messageIDs) // unlinked table contributes nothing

	count, err := tableRepo.CountOpenByCreator(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	// Both rows are now cancelled
	got, err := tableRepo.GetByID(ctx, t1.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCancelled, got.Status)
}

// ============================================================================
// SettlementRepository Tests
// ============================================================================

func TestSettlementRepository_Match(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	userRepo := NewUserRepository(pool)
	tableRepo := NewTableRepository(pool)
	settlementRepo := NewSettlementRepository(pool)
	txRepo := NewTransactionRepository(pool)
	ctx := context.Background()

	fundUser(t, userRepo, 1, "creator", 1000)
	fundUser(t, userRepo, 2, "acceptor", 1000)

	table, err := tableRepo.Insert(ctx, 1, 500, "Full", "", 1234)
	require.NoError(t, err)

	matched, err := settlementRepo.Match(ctx, table.ID, 2, 5678)
	require.NoError(t, err)
	assert.Equal(t, model.StatusMatched, matched.Status)
	require.NotNil(t, matched.AcceptorID)
	assert.Equal(t, int64(2), *matched.AcceptorID)
	assert.Equal(t, 5678, matched.TableNumber)

	// Both stakes escrowed
	creator, _ := userRepo.GetByID(ctx, 1)
	acceptor, _ := userRepo.GetByID(ctx, 2)
	assert.Equal(t, int64(500), creator.Balance)
	assert.Equal(t, int64(500), acceptor.Balance)

	// Ledger carries one escrow row per side
	txs, err := txRepo.GetByUserID(ctx, 2, 10)
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, model.TxTypeEscrow, txs[0].Type)
	assert.Equal(t, int64(-500), txs[0].Amount)

	// A duplicate delivery fails the status guard and moves nothing
	_, err = settlementRepo.Match(ctx, table.ID, 2, 9999)
	assert.ErrorIs(t, err, ErrTableNotOpen)
	creator, _ = userRepo.GetByID(ctx, 1)
	assert.Equal(t, int64(500), creator.Balance)
}

func TestSettlementRepository_MatchInsufficientFunds(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	userRepo := NewUserRepository(pool)
	tableRepo := NewTableRepository(pool)
	settlementRepo := NewSettlementRepository(pool)
	ctx := context.Background()

	fundUser(t, userRepo, 1, "creator", 1000)
	fundUser(t, userRepo, 2, "acceptor", 100)

	table, err := tableRepo.Insert(ctx, 1, 500, "Full", "", 1234)
	require.NoError(t, err)

	_, err = settlementRepo.Match(ctx, table.ID, 2, 5678)
	var insufficient *InsufficientFundsError
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, int64(2), insufficient.UserID)
	assert.Equal(t, int64(400), insufficient.Shortfall())

	// The whole transition rolled back: creator keeps their stake and the
	// table stays open
	creator, _ := userRepo.GetByID(ctx, 1)
	assert.Equal(t, int64(1000), creator.Balance)
	got, err := tableRepo.GetByID(ctx, table.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusOpen, got.Status)
	assert.Nil(t, got.AcceptorID)
}

func TestSettlementRepository_Payout(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	userRepo := NewUserRepository(pool)
	tableRepo := NewTableRepository(pool)
	settlementRepo := NewSettlementRepository(pool)
	ctx := context.Background()

	fundUser(t, userRepo, 1, "creator", 1000)
	fundUser(t, userRepo, 2, "acceptor", 1000)

	table, err := tableRepo.Insert(ctx, 1, 500, "Full", "", 1234)
	require.NoError(t, err)
	_, err = settlementRepo.Match(ctx, table.ID, 2, 5678)
	require.NoError(t, err)

	// 5% commission on one stake: winner gets 500 + (500 - 25)
	err = settlementRepo.Payout(ctx, table.ID, 1, 975)
	require.NoError(t, err)

	winner, _ := userRepo.GetByID(ctx, 1)
	loser, _ := userRepo.GetByID(ctx, 2)
	assert.Equal(t, int64(1475), winner.Balance)
	assert.Equal(t, int64(500), loser.Balance)

	got, err := tableRepo.GetByID(ctx, table.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, got.Status)
	assert.NotNil(t, got.CompletedAt)

	// Replays fail the guard; so does a refund after completion
	err = settlementRepo.Payout(ctx, table.ID, 1, 975)
	assert.ErrorIs(t, err, ErrTableNotMatched)
	_, err = settlementRepo.Refund(ctx, table.ID)
	assert.ErrorIs(t, err, ErrTableNotMatched)

	winner, _ = userRepo.GetByID(ctx, 1)
	assert.Equal(t, int64(1475), winner.Balance)
}

func TestSettlementRepository_Refund(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	userRepo := NewUserRepository(pool)
	tableRepo := NewTableRepository(pool)
	settlementRepo := NewSettlementRepository(pool)
	txRepo := NewTransactionRepository(pool)
	ctx := context.Background()

	fundUser(t, userRepo, 1, "creator", 1000)
	fundUser(t, userRepo, 2, "acceptor", 1000)

	table, err := tableRepo.Insert(ctx, 1, 300, "Full", "", 1234)
	require.NoError(t, err)
	_, err = settlementRepo.Match(ctx, table.ID, 2, 5678)
	require.NoError(t, err)

	cancelled, err := settlementRepo.Refund(ctx, table.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCancelled, cancelled.Status)

	// Exact reversal of escrow, no commission
	creator, _ := userRepo.GetByID(ctx, 1)
	acceptor, _ := userRepo.GetByID(ctx, 2)
	assert.Equal(t, int64(1000), creator.Balance)
	assert.Equal(t, int64(1000), acceptor.Balance)

	txs, err := txRepo.GetByUserID(ctx, 1, 10)
	require.NoError(t, err)
	require.Len(t, txs, 2) // escrow then refund
	assert.Equal(t, model.TxTypeRefund, txs[0].Type)
	assert.Equal(t, int64(300), txs[0].Amount)

	// Cancelling twice fails the guard
	_, err = settlementRepo.Refund(ctx, table.ID)
	assert.ErrorIs(t, err, ErrTableNotMatched)
}

// ============================================================================
// TransactionRepository Tests
// ============================================================================

func TestTransactionRepository_CreateAndList(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	userRepo := NewUserRepository(pool)
	txRepo := NewTransactionRepository(pool)
	ctx := context.Background()

	fundUser(t, userRepo, 12345, "testuser", 0)

	desc := "Added by admin 1"
	tx, err := txRepo.Create(ctx, 12345, 500, model.TxTypeAdminAdd, &desc)
	require.NoError(t, err)
	assert.Equal(t, int64(12345), tx.UserID)
	assert.Equal(t, int64(500), tx.Amount)
	assert.Equal(t, model.TxTypeAdminAdd, tx.Type)
	require.NotNil(t, tx.Description)
	assert.Equal(t, desc, *tx.Description)

	_, _ = txRepo.Create(ctx, 12345, -200, model.TxTypeAdminSub, nil)

	txs, err := txRepo.GetByUserID(ctx, 12345, 10)
	require.NoError(t, err)
	require.Len(t, txs, 2)
	assert.Equal(t, int64(-200), txs[0].Amount) // newest first
}
