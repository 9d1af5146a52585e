package repository

import (
	"errors"
	"fmt"
)

// Common errors for repository operations.
var (
	ErrUserNotFound  = errors.New("user not found")
	ErrAdminNotFound = errors.New("admin not found")
	ErrTableNotFound = errors.New("table not found")

	// ErrTableNotOpen is returned when a match is attempted against a
	// table that has already left the open state. This is the optimistic
	// concurrency guard against duplicate or racing accept deliveries.
	ErrTableNotOpen = errors.New("table is not open")

	// ErrTableNotMatched is the equivalent guard for settlement: payout
	// and refund act only on matched tables, so a redelivered resolve is
	// a no-op error instead of a double mutation.
	ErrTableNotMatched = errors.New("table is not matched")
)

// InsufficientFundsError reports a floor-guarded debit that was rejected
// because it would have driven the balance negative.
type InsufficientFundsError struct {
	UserID  int64
	Balance int64
	Needed  int64
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient funds for user %d: balance %d, needed %d", e.UserID, e.Balance, e.Needed)
}

// Shortfall returns how much the user is missing.
func (e *InsufficientFundsError) Shortfall() int64 {
	return e.Needed - e.Balance
}
