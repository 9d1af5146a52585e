// Package service provides business logic implementations.
package service

import (
	"context"

	tele "gopkg.in/telebot.v3"

	"ludo-table-bot/internal/model"
)

// TableStore is the table persistence surface consumed by the lifecycle
// engine.
type TableStore interface {
	Insert(ctx context.Context, creatorID, amount int64, gameType, options string, tableNumber int) (*model.Table, error)
	GetByID(ctx context.Context, id int64) (*model.Table, error)
	FindByMessageID(ctx context.Context, messageID int, status model.TableStatus) (*model.Table, error)
	SetMessageID(ctx context.Context, id int64, messageID int) error
	CancelOpen(ctx context.Context, id int64) error
	SupersedeOpenByCreator(ctx context.Context, creatorID int64) ([]int, error)
}

// UserStore is the user persistence surface.
type UserStore interface {
	GetByID(ctx context.Context, telegramID int64) (*model.User, error)
	GetByUsername(ctx context.Context, username string) (*model.User, error)
	GetOrCreate(ctx context.Context, telegramID int64, username, firstName, lastName string) (*model.User, bool, error)
	Credit(ctx context.Context, telegramID int64, amount int64) (*model.User, error)
	Debit(ctx context.Context, telegramID int64, amount int64) (*model.User, error)
	List(ctx context.Context) ([]*model.User, error)
}

// AdminStore is the privileged-user set.
type AdminStore interface {
	IsAdmin(ctx context.Context, telegramID int64) (bool, error)
	Insert(ctx context.Context, telegramID int64, username string) (*model.Admin, error)
	Any(ctx context.Context) (bool, error)
}

// SettlementStore performs the atomic status-guarded balance mutations.
type SettlementStore interface {
	Match(ctx context.Context, tableID, acceptorID int64, tableNumber int) (*model.Table, error)
	Payout(ctx context.Context, tableID, winnerID, winnerAmount int64) error
	Refund(ctx context.Context, tableID int64) (*model.Table, error)
}

// LedgerWriter appends audit rows for balance changes made outside the
// settlement transactions (admin fund commands).
type LedgerWriter interface {
	Create(ctx context.Context, userID int64, amount int64, txType string, description *string) (*model.Transaction, error)
}

// Gateway is the outbound messaging surface. Group sends are load-bearing;
// deletes are best-effort.
type Gateway interface {
	SendGroup(ctx context.Context, text string, entities []tele.MessageEntity) (messageID int, err error)
	SendGroupWebAppButton(ctx context.Context, text, buttonText, url string) (messageID int, err error)
	SendDirect(ctx context.Context, userID int64, text string) error
	DeleteGroupMessage(ctx context.Context, messageID int) error
	BotUsername() string
}
