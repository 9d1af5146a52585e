package service

import "errors"

// Common errors for lifecycle and ledger operations.
var (
	ErrInvalidAmount  = errors.New("amount must be positive")
	ErrSelfAccept     = errors.New("cannot accept your own table")
	ErrNotParticipant = errors.New("winner is not a participant of the table")
	ErrAdminExists    = errors.New("an admin already exists")
)
