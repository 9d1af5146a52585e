package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"ludo-table-bot/internal/model"
	"ludo-table-bot/internal/pkg/lock"
)

// LedgerService handles user registration, the admin set, and the
// administrative fund adjustments that sit outside the table lifecycle.
type LedgerService struct {
	users  UserStore
	admins AdminStore
	txs    LedgerWriter
	locks  *lock.UserLock
}

// NewLedgerService creates a new LedgerService instance.
func NewLedgerService(users UserStore, admins AdminStore, txs LedgerWriter, locks *lock.UserLock) *LedgerService {
	return &LedgerService{
		users:  users,
		admins: admins,
		txs:    txs,
		locks:  locks,
	}
}

// EnsureUser registers a user lazily on first contact, refreshing profile
// fields on later contacts.
func (s *LedgerService) EnsureUser(ctx context.Context, telegramID int64, username, firstName, lastName string) (*model.User, error) {
	user, created, err := s.users.GetOrCreate(ctx, telegramID, username, firstName, lastName)
	if err != nil {
		return nil, fmt.Errorf("failed to ensure user: %w", err)
	}
	if created {
		log.Info().Int64("telegram_id", telegramID).Str("username", username).Msg("User registered")
	}
	return user, nil
}

// GetUser retrieves a user by Telegram ID.
func (s *LedgerService) GetUser(ctx context.Context, telegramID int64) (*model.User, error) {
	return s.users.GetByID(ctx, telegramID)
}

// GetUserByUsername retrieves a user by username, with or without the
// leading "@".
func (s *LedgerService) GetUserByUsername(ctx context.Context, username string) (*model.User, error) {
	return s.users.GetByUsername(ctx, username)
}

// ListUsers returns all users, newest first.
func (s *LedgerService) ListUsers(ctx context.Context) ([]*model.User, error) {
	return s.users.List(ctx)
}

// IsAdmin reports whether the user is in the admin set.
func (s *LedgerService) IsAdmin(ctx context.Context, telegramID int64) (bool, error) {
	return s.admins.IsAdmin(ctx, telegramID)
}

// MakeAdmin grants admin rights to the target user, registering the user
// record lazily when the id has never been seen.
func (s *LedgerService) MakeAdmin(ctx context.Context, targetID int64) (*model.Admin, error) {
	user, _, err := s.users.GetOrCreate(ctx, targetID, "", "", "")
	if err != nil {
		return nil, fmt.Errorf("failed to ensure target user: %w", err)
	}
	admin, err := s.admins.Insert(ctx, targetID, user.Username)
	if err != nil {
		return nil, err
	}
	log.Info().Int64("admin_id", targetID).Msg("Admin granted")
	return admin, nil
}

// BootstrapAdmin creates the very first admin. It refuses once any admin
// exists, so the operation is one-shot.
func (s *LedgerService) BootstrapAdmin(ctx context.Context, telegramID int64, username string) (*model.Admin, error) {
	exists, err := s.admins.Any(ctx)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrAdminExists
	}
	if _, _, err := s.users.GetOrCreate(ctx, telegramID, username, "", ""); err != nil {
		return nil, fmt.Errorf("failed to ensure bootstrap user: %w", err)
	}
	admin, err := s.admins.Insert(ctx, telegramID, username)
	if err != nil {
		return nil, err
	}
	log.Info().Int64("admin_id", telegramID).Msg("First admin bootstrapped")
	return admin, nil
}

// AddFund credits the target user's balance. An administrative ledger
// adjustment, not a settlement.
func (s *LedgerService) AddFund(ctx context.Context, adminID, targetID, amount int64) (*model.User, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	if _, _, err := s.users.GetOrCreate(ctx, targetID, "", "", ""); err != nil {
		return nil, fmt.Errorf("failed to ensure target user: %w", err)
	}

	var user *model.User
	err := s.locks.WithLock(targetID, func() error {
		var err error
		user, err = s.users.Credit(ctx, targetID, amount)
		return err
	})
	if err != nil {
		return nil, err
	}

	desc := fmt.Sprintf("Added by admin %d", adminID)
	if _, err := s.txs.Create(ctx, targetID, amount, model.TxTypeAdminAdd, &desc); err != nil {
		log.Warn().Err(err).Int64("target_id", targetID).Msg("Failed to record admin_add transaction")
	}

	log.Info().
		Int64("admin_id", adminID).
		Int64("target_id", targetID).
		Int64("amount", amount).
		Msg("Admin added funds")
	return user, nil
}

// DeductFund debits the target user's balance. The balance floor applies:
// a deduction that would go below zero is rejected, not clamped.
func (s *LedgerService) DeductFund(ctx context.Context, adminID, targetID, amount int64) (*model.User, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}

	var user *model.User
	err := s.locks.WithLock(targetID, func() error {
		var err error
		user, err = s.users.Debit(ctx, targetID, amount)
		return err
	})
	if err != nil {
		return nil, err
	}

	desc := fmt.Sprintf("Deducted by admin %d", adminID)
	if _, err := s.txs.Create(ctx, targetID, -amount, model.TxTypeAdminSub, &desc); err != nil {
		log.Warn().Err(err).Int64("target_id", targetID).Msg("Failed to record admin_sub transaction")
	}

	log.Info().
		Int64("admin_id", adminID).
		Int64("target_id", targetID).
		Int64("amount", amount).
		Msg("Admin deducted funds")
	return user, nil
}
