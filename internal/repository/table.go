package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"ludo-table-bot/internal/model"
)

const tableColumns = "id, creator_id, acceptor_id, amount, game_type, options, table_number, message_id, status, created_at, completed_at"

// TableRepository handles betting-table persistence.
type TableRepository struct {
	pool *pgxpool.Pool
}

// NewTableRepository creates a new TableRepository instance.
func NewTableRepository(pool *pgxpool.Pool) *TableRepository {
	return &TableRepository{pool: pool}
}

func scanTable(row pgx.Row) (*model.Table, error) {
	var t model.Table
	err := row.Scan(
		&t.ID,
		&t.CreatorID,
		&t.AcceptorID,
		&t.Amount,
		&t.GameType,
		&t.Options,
		&t.TableNumber,
		&t.MessageID,
		&t.Status,
		&t.CreatedAt,
		&t.CompletedAt,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// Insert persists a new open table. The message_id is filled in by
// SetMessageID once the broadcast is confirmed delivered.
func (r *TableRepository) Insert(ctx context.Context, creatorID, amount int64, gameType, options string, tableNumber int) (*model.Table, error) {
	const query = `
		INSERT INTO tables (creator_id, amount, game_type, options, table_number, status, created_at)
		VALUES ($1, $2, $3, $4, $5, 'open', NOW())
		RETURNING ` + tableColumns

	t, err := scanTable(r.pool.QueryRow(ctx, query, creatorID, amount, gameType, options, tableNumber))
	if err != nil {
		return nil, fmt.Errorf("failed to insert table: %w", err)
	}
	return t, nil
}

// GetByID retrieves a table by its store identity.
func (r *TableRepository) GetByID(ctx context.Context, id int64) (*model.Table, error) {
	const query = `SELECT ` + tableColumns + ` FROM tables WHERE id = $1`

	t, err := scanTable(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTableNotFound
		}
		return nil, fmt.Errorf("failed to get table: %w", err)
	}
	return t, nil
}

// FindByMessageID locates the table whose live chat message has the given
// message id and status. This is the reply-routing lookup: message_id
// linkage is mandatory, replies to anything else are a not-found.
func (r *TableRepository) FindByMessageID(ctx context.Context, messageID int, status model.TableStatus) (*model.Table, error) {
	const query = `SELECT ` + tableColumns + ` FROM tables WHERE message_id = $1 AND status = $2`

	t, err := scanTable(r.pool.QueryRow(ctx, query, messageID, status))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTableNotFound
		}
		return nil, fmt.Errorf("failed to find table by message id: %w", err)
	}
	return t, nil
}

// SetMessageID records the chat message currently representing the table,
// together with the table number printed in it.
func (r *TableRepository) SetMessageID(ctx context.Context, id int64, messageID int) error {
	const query = `UPDATE tables SET message_id = $2 WHERE id = $1`

	tag, err := r.pool.Exec(ctx, query, id, messageID)
	if err != nil {
		return fmt.Errorf("failed to set message id: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrTableNotFound
	}
	return nil
}

// CancelOpen transitions a single open table to cancelled. Used to roll
// back a table whose broadcast could not be delivered.
func (r *TableRepository) CancelOpen(ctx context.Context, id int64) error {
	const query = `UPDATE tables SET status = 'cancelled', completed_at = NOW() WHERE id = $1 AND status = 'open'`

	if _, err := r.pool.Exec(ctx, query, id); err != nil {
		return fmt.Errorf("failed to cancel open table: %w", err)
	}
	return nil
}

// SupersedeOpenByCreator cancels every open table of the given creator and
// returns the chat message ids that represented them, so the caller can
// best-effort delete the stale broadcasts. Enforces the one-open-table-per-
// creator invariant.
func (r *TableRepository) SupersedeOpenByCreator(ctx context.Context, creatorID int64) ([]int, error) {
	const query = `
		UPDATE tables
		SET status = 'cancelled', completed_at = NOW()
		WHERE creator_id = $1 AND status = 'open'
		RETURNING message_id
	`

	rows, err := r.pool.Query(ctx, query, creatorID)
	if err != nil {
		return nil, fmt.Errorf("failed to supersede open tables: %w", err)
	}
	defer rows.Close()

	var messageIDs []int
	for rows.Next() {
		var messageID *int
		if err := rows.Scan(&messageID); err != nil {
			return nil, fmt.Errorf("failed to scan superseded table: %w", err)
		}
		if messageID != nil {
			messageIDs = append(messageIDs, *messageID)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating superseded tables: %w", err)
	}
	return messageIDs, nil
}

// CountOpenByCreator returns the number of open tables for a creator.
func (r *TableRepository) CountOpenByCreator(ctx context.Context, creatorID int64) (int, error) {
	const query = `SELECT COUNT(*) FROM tables WHERE creator_id = $1 AND status = 'open'`

	var count int
	if err := r.pool.QueryRow(ctx, query, creatorID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count open tables: %w", err)
	}
	return count, nil
}
