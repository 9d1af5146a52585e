// Package model defines the data models for the Ludo table bot.
package model

import "time"

// User represents a Telegram user account in the betting ledger.
// Users are created lazily on first contact and never deleted.
type User struct {
	TelegramID int64     `db:"telegram_id"`
	Username   string    `db:"username"`
	FirstName  string    `db:"first_name"`
	LastName   string    `db:"last_name"`
	Balance    int64     `db:"balance"`
	CreatedAt  time.Time `db:"created_at"`
	UpdatedAt  time.Time `db:"updated_at"`
}

// FullName returns the user's first and last name joined by a space.
func (u *User) FullName() string {
	if u.LastName == "" {
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}

// Admin represents a privileged user. Presence in the admins table is the
// sole authorization predicate for admin commands.
type Admin struct {
	TelegramID int64     `db:"telegram_id"`
	Username   string    `db:"username"`
	CreatedAt  time.Time `db:"created_at"`
}

// TableStatus is the lifecycle state of a betting table.
type TableStatus string

// Table lifecycle states. Completed and cancelled are terminal.
const (
	StatusOpen      TableStatus = "open"
	StatusMatched   TableStatus = "matched"
	StatusCompleted TableStatus = "completed"
	StatusCancelled TableStatus = "cancelled"
)

// Table is a proposed wager awaiting or having found a counterparty.
type Table struct {
	ID          int64       `db:"id"`
	CreatorID   int64       `db:"creator_id"`
	AcceptorID  *int64      `db:"acceptor_id"`
	Amount      int64       `db:"amount"`
	GameType    string      `db:"game_type"`
	Options     string      `db:"options"`
	TableNumber int         `db:"table_number"`
	MessageID   *int        `db:"message_id"`
	Status      TableStatus `db:"status"`
	CreatedAt   time.Time   `db:"created_at"`
	CompletedAt *time.Time  `db:"completed_at"`
}

// IsParticipant reports whether the given user is the creator or the
// acceptor of this table.
func (t *Table) IsParticipant(telegramID int64) bool {
	if t.CreatorID == telegramID {
		return true
	}
	return t.AcceptorID != nil && *t.AcceptorID == telegramID
}

// Transaction represents a balance change record in the audit ledger.
type Transaction struct {
	ID          int64     `db:"id"`
	UserID      int64     `db:"user_id"`
	Amount      int64     `db:"amount"`
	Type        string    `db:"type"`
	Description *string   `db:"description"`
	CreatedAt   time.Time `db:"created_at"`
}

// Transaction types for categorizing balance changes.
const (
	TxTypeEscrow   = "escrow"    // Stake debited when a table is matched
	TxTypePayout   = "payout"    // Winner credited on table completion
	TxTypeRefund   = "refund"    // Stake returned on table cancellation
	TxTypeAdminAdd = "admin_add" // Admin credited funds
	TxTypeAdminSub = "admin_sub" // Admin debited funds
)
