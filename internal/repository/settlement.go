package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"ludo-table-bot/internal/model"
)

// SettlementRepository performs the balance mutations that accompany table
// state transitions. Each operation is a single database transaction whose
// first statement is a compare-and-swap on the table status, so duplicate
// or out-of-order deliveries fail the guard and mutate nothing.
type SettlementRepository struct {
	pool *pgxpool.Pool
}

// NewSettlementRepository creates a new SettlementRepository instance.
func NewSettlementRepository(pool *pgxpool.Pool) *SettlementRepository {
	return &SettlementRepository{pool: pool}
}

// debitTx subtracts amount from a user's balance inside an open database
// transaction, guarded by the balance floor.
func debitTx(ctx context.Context, tx pgx.Tx, userID, amount int64) error {
	const query = `
		UPDATE users
		SET balance = balance - $2, updated_at = NOW()
		WHERE telegram_id = $1 AND balance >= $2
	`
	tag, err := tx.Exec(ctx, query, userID, amount)
	if err != nil {
		return fmt.Errorf("failed to debit user %d: %w", userID, err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	var balance int64
	err = tx.QueryRow(ctx, `SELECT balance FROM users WHERE telegram_id = $1`, userID).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrUserNotFound
		}
		return fmt.Errorf("failed to read balance of user %d: %w", userID, err)
	}
	return &InsufficientFundsError{UserID: userID, Balance: balance, Needed: amount}
}

// creditTx adds amount to a user's balance inside an open database
// transaction.
func creditTx(ctx context.Context, tx pgx.Tx, userID, amount int64) error {
	const query = `
		UPDATE users
		SET balance = balance + $2, updated_at = NOW()
		WHERE telegram_id = $1
	`
	tag, err := tx.Exec(ctx, query, userID, amount)
	if err != nil {
		return fmt.Errorf("failed to credit user %d: %w", userID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

// Match transitions an open table to matched and escrows both stakes in
// one atomic step: status CAS, acceptor and fresh table number set, both
// balances debited, escrow ledger rows written. Any failure rolls the
// whole thing back; in particular an insufficient balance on either side
// leaves no partial debit behind.
func (r *SettlementRepository) Match(ctx context.Context, tableID, acceptorID int64, tableNumber int) (*model.Table, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin match transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	const casQuery = `
		UPDATE tables
		SET status = 'matched', acceptor_id = $2, table_number = $3
		WHERE id = $1 AND status = 'open'
		RETURNING ` + tableColumns

	t, err := scanTable(tx.QueryRow(ctx, casQuery, tableID, acceptorID, tableNumber))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTableNotOpen
		}
		return nil, fmt.Errorf("failed to match table: %w", err)
	}

	if err := debitTx(ctx, tx, t.CreatorID, t.Amount); err != nil {
		return nil, err
	}
	if err := debitTx(ctx, tx, acceptorID, t.Amount); err != nil {
		return nil, err
	}

	desc := fmt.Sprintf("Stake for table #%d", tableNumber)
	if err := recordTx(ctx, tx, t.CreatorID, -t.Amount, model.TxTypeEscrow, desc); err != nil {
		return nil, err
	}
	if err := recordTx(ctx, tx, acceptorID, -t.Amount, model.TxTypeEscrow, desc); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit match: %w", err)
	}
	return t, nil
}

// Payout transitions a matched table to completed and credits the winner.
// The loser's stake was consumed at escrow time and is not touched.
func (r *SettlementRepository) Payout(ctx context.Context, tableID, winnerID, winnerAmount int64) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin payout transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	const casQuery = `
		UPDATE tables
		SET status = 'completed', completed_at = NOW()
		WHERE id = $1 AND status = 'matched'
		RETURNING table_number
	`

	var tableNumber int
	if err := tx.QueryRow(ctx, casQuery, tableID).Scan(&tableNumber); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrTableNotMatched
		}
		return fmt.Errorf("failed to complete table: %w", err)
	}

	if err := creditTx(ctx, tx, winnerID, winnerAmount); err != nil {
		return err
	}
	desc := fmt.Sprintf("Winnings for table #%d", tableNumber)
	if err := recordTx(ctx, tx, winnerID, winnerAmount, model.TxTypePayout, desc); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit payout: %w", err)
	}
	return nil
}

// Refund transitions a matched table to cancelled and returns both stakes,
// the exact reversal of escrow. No commission applies.
func (r *SettlementRepository) Refund(ctx context.Context, tableID int64) (*model.Table, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin refund transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	const casQuery = `
		UPDATE tables
		SET status = 'cancelled', completed_at = NOW()
		WHERE id = $1 AND status = 'matched'
		RETURNING ` + tableColumns

	t, err := scanTable(tx.QueryRow(ctx, casQuery, tableID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTableNotMatched
		}
		return nil, fmt.Errorf("failed to cancel table: %w", err)
	}
	if t.AcceptorID == nil {
		// Unreachable for a matched table; the invariant is enforced at
		// match time.
		return nil, fmt.Errorf("matched table %d has no acceptor", tableID)
	}

	if err := creditTx(ctx, tx, t.CreatorID, t.Amount); err != nil {
		return nil, err
	}
	if err := creditTx(ctx, tx, *t.AcceptorID, t.Amount); err != nil {
		return nil, err
	}

	desc := fmt.Sprintf("Refund for table #%d", t.TableNumber)
	if err := recordTx(ctx, tx, t.CreatorID, t.Amount, model.TxTypeRefund, desc); err != nil {
		return nil, err
	}
	if err := recordTx(ctx, tx, *t.AcceptorID, t.Amount, model.TxTypeRefund, desc); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit refund: %w", err)
	}
	return t, nil
}
