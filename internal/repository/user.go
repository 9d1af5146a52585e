// Package repository provides data access layer implementations.
package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"ludo-table-bot/internal/model"
)

const userColumns = "telegram_id, username, first_name, last_name, balance, created_at, updated_at"

// UserRepository handles user data persistence.
type UserRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository creates a new UserRepository instance.
func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

func scanUser(row pgx.Row) (*model.User, error) {
	var user model.User
	err := row.Scan(
		&user.TelegramID,
		&user.Username,
		&user.FirstName,
		&user.LastName,
		&user.Balance,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// Create creates a new user with a zero balance. Funds only enter the
// ledger through admin fund commands or settlements.
func (r *UserRepository) Create(ctx context.Context, telegramID int64, username, firstName, lastName string) (*model.User, error) {
	const query = `
		INSERT INTO users (telegram_id, username, first_name, last_name, balance, created_at, updated_at)
		VALUES ($1, $2, $3, $4, 0, NOW(), NOW())
		RETURNING ` + userColumns

	user, err := scanUser(r.pool.QueryRow(ctx, query, telegramID, username, firstName, lastName))
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return user, nil
}

// GetByID retrieves a user by their Telegram ID.
// Returns ErrUserNotFound if the user does not exist.
func (r *UserRepository) GetByID(ctx context.Context, telegramID int64) (*model.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE telegram_id = $1`

	user, err := scanUser(r.pool.QueryRow(ctx, query, telegramID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// GetByUsername retrieves a user by username, case-insensitively. The
// leading "@" may be included or omitted.
func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE LOWER(username) = LOWER(TRIM(LEADING '@' FROM $1))`

	user, err := scanUser(r.pool.QueryRow(ctx, query, username))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user by username: %w", err)
	}
	return user, nil
}

// GetOrCreate retrieves a user by Telegram ID, creating one lazily if it
// doesn't exist. Profile fields are refreshed when they changed on the
// Telegram side.
func (r *UserRepository) GetOrCreate(ctx context.Context, telegramID int64, username, firstName, lastName string) (*model.User, bool, error) {
	user, err := r.GetByID(ctx, telegramID)
	if err == nil {
		if username != "" && (user.Username != username || user.FirstName != firstName || user.LastName != lastName) {
			if updated, uerr := r.UpdateProfile(ctx, telegramID, username, firstName, lastName); uerr == nil {
				user = updated
			}
		}
		return user, false, nil
	}
	if !errors.Is(err, ErrUserNotFound) {
		return nil, false, err
	}

	user, err = r.Create(ctx, telegramID, username, firstName, lastName)
	if err != nil {
		// Another delivery might have created the user concurrently.
		user, err = r.GetByID(ctx, telegramID)
		if err != nil {
			return nil, false, err
		}
		return user, false, nil
	}
	return user, true, nil
}

// UpdateProfile refreshes a user's Telegram profile fields.
func (r *UserRepository) UpdateProfile(ctx context.Context, telegramID int64, username, firstName, lastName string) (*model.User, error) {
	const query = `
		UPDATE users
		SET username = $2, first_name = $3, last_name = $4, updated_at = NOW()
		WHERE telegram_id = $1
		RETURNING ` + userColumns

	user, err := scanUser(r.pool.QueryRow(ctx, query, telegramID, username, firstName, lastName))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}
	return user, nil
}

// Credit adds amount to a user's balance.
func (r *UserRepository) Credit(ctx context.Context, telegramID int64, amount int64) (*model.User, error) {
	const query = `
		UPDATE users
		SET balance = balance + $2, updated_at = NOW()
		WHERE telegram_id = $1
		RETURNING ` + userColumns

	user, err := scanUser(r.pool.QueryRow(ctx, query, telegramID, amount))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to credit balance: %w", err)
	}
	return user, nil
}

// Debit subtracts amount from a user's balance. The update is guarded by
// the balance floor: a debit that would drive the balance negative is
// rejected with InsufficientFundsError and nothing is written.
func (r *UserRepository) Debit(ctx context.Context, telegramID int64, amount int64) (*model.User, error) {
	const query = `
		UPDATE users
		SET balance = balance - $2, updated_at = NOW()
		WHERE telegram_id = $1 AND balance >= $2
		RETURNING ` + userColumns

	user, err := scanUser(r.pool.QueryRow(ctx, query, telegramID, amount))
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("failed to debit balance: %w", err)
	}

	// No row matched: either the user is missing or the floor rejected
	// the debit.
	current, err := r.GetByID(ctx, telegramID)
	if err != nil {
		return nil, err
	}
	return nil, &InsufficientFundsError{UserID: telegramID, Balance: current.Balance, Needed: amount}
}

// List retrieves all users ordered by creation time, newest first.
func (r *UserRepository) List(ctx context.Context) ([]*model.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []*model.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating users: %w", err)
	}
	return users, nil
}
