package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"ludo-table-bot/internal/model"
)

// AdminRepository handles the privileged-user set.
type AdminRepository struct {
	pool *pgxpool.Pool
}

// NewAdminRepository creates a new AdminRepository instance.
func NewAdminRepository(pool *pgxpool.Pool) *AdminRepository {
	return &AdminRepository{pool: pool}
}

// GetByID retrieves an admin by Telegram ID.
// Returns ErrAdminNotFound if the user is not an admin.
func (r *AdminRepository) GetByID(ctx context.Context, telegramID int64) (*model.Admin, error) {
	const query = `SELECT telegram_id, username, created_at FROM admins WHERE telegram_id = $1`

	var admin model.Admin
	err := r.pool.QueryRow(ctx, query, telegramID).Scan(&admin.TelegramID, &admin.Username, &admin.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAdminNotFound
		}
		return nil, fmt.Errorf("failed to get admin: %w", err)
	}
	return &admin, nil
}

// IsAdmin reports whether the given Telegram ID is in the admin set.
func (r *AdminRepository) IsAdmin(ctx context.Context, telegramID int64) (bool, error) {
	const query = `SELECT EXISTS(SELECT 1 FROM admins WHERE telegram_id = $1)`

	var exists bool
	if err := r.pool.QueryRow(ctx, query, telegramID).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check admin: %w", err)
	}
	return exists, nil
}

// Insert grants admin rights. Inserting an existing admin is a no-op.
func (r *AdminRepository) Insert(ctx context.Context, telegramID int64, username string) (*model.Admin, error) {
	const query = `
		INSERT INTO admins (telegram_id, username, created_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (telegram_id) DO UPDATE SET username = EXCLUDED.username
		RETURNING telegram_id, username, created_at
	`

	var admin model.Admin
	err := r.pool.QueryRow(ctx, query, telegramID, username).Scan(&admin.TelegramID, &admin.Username, &admin.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert admin: %w", err)
	}
	return &admin, nil
}

// Any reports whether at least one admin exists. Used by the one-shot
// first-admin bootstrap.
func (r *AdminRepository) Any(ctx context.Context) (bool, error) {
	const query = `SELECT EXISTS(SELECT 1 FROM admins)`

	var exists bool
	if err := r.pool.QueryRow(ctx, query).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check for admins: %w", err)
	}
	return exists, nil
}
