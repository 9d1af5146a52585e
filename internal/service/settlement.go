package service

import (
	"context"
	"fmt"

	"ludo-table-bot/internal/model"
	"ludo-table-bot/internal/pkg/lock"
)

// SettlementService owns all balance mutations tied to table state:
// escrow on match, payout on win, refund on cancel. The underlying store
// guards every operation on the table status, so calling any of them on a
// table that already left the expected state reports an error without
// touching balances.
type SettlementService struct {
	store             SettlementStore
	locks             *lock.UserLock
	commissionPercent int64
}

// NewSettlementService creates a new SettlementService instance.
func NewSettlementService(store SettlementStore, locks *lock.UserLock, commissionPercent int64) *SettlementService {
	return &SettlementService{
		store:             store,
		locks:             locks,
		commissionPercent: commissionPercent,
	}
}

// Commission returns the house cut on a win: a percentage of a single
// side's stake, not of the pot.
func (s *SettlementService) Commission(amount int64) int64 {
	return amount * s.commissionPercent / 100
}

// WinnerAmount returns what the winner is credited: their own stake back
// plus the loser's stake minus commission.
func (s *SettlementService) WinnerAmount(amount int64) int64 {
	return amount + (amount - s.Commission(amount))
}

// Escrow debits the stake from both players and transitions the table to
// matched, atomically. If either side cannot cover the stake the whole
// accept aborts and no partial debit is persisted.
func (s *SettlementService) Escrow(ctx context.Context, table *model.Table, acceptorID int64, tableNumber int) (*model.Table, error) {
	var matched *model.Table
	err := s.locks.WithPairLock(table.CreatorID, acceptorID, func() error {
		var err error
		matched, err = s.store.Match(ctx, table.ID, acceptorID, tableNumber)
		return err
	})
	if err != nil {
		return nil, err
	}
	return matched, nil
}

// Payout credits the winner and completes the table. Returns the credited
// amount.
func (s *SettlementService) Payout(ctx context.Context, table *model.Table, winnerID int64) (int64, error) {
	winnerAmount := s.WinnerAmount(table.Amount)
	err := s.locks.WithLock(winnerID, func() error {
		return s.store.Payout(ctx, table.ID, winnerID, winnerAmount)
	})
	if err != nil {
		return 0, fmt.Errorf("payout for table %d: %w", table.ID, err)
	}
	return winnerAmount, nil
}

// Refund returns both stakes and cancels the table, the exact reversal of
// escrow.
func (s *SettlementService) Refund(ctx context.Context, table *model.Table) (*model.Table, error) {
	acceptorID := table.CreatorID
	if table.AcceptorID != nil {
		acceptorID = *table.AcceptorID
	}
	var cancelled *model.Table
	err := s.locks.WithPairLock(table.CreatorID, acceptorID, func() error {
		var err error
		cancelled, err = s.store.Refund(ctx, table.ID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("refund for table %d: %w", table.ID, err)
	}
	return cancelled, nil
}
