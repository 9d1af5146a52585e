package handler

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"ludo-table-bot/internal/service"
)

// AccountHandler implements the public user commands.
type AccountHandler struct {
	ledger *service.LedgerService
}

// NewAccountHandler creates a new AccountHandler.
func NewAccountHandler(ledger *service.LedgerService) *AccountHandler {
	return &AccountHandler{ledger: ledger}
}

// HandleStart handles the /start command. Registration already happened
// in middleware, so this only greets.
func (h *AccountHandler) HandleStart(c tele.Context) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	return c.Reply(fmt.Sprintf(
		"🎲 Welcome, %s!\n\n"+
			"Open a table from the group's pinned button, or reply L to an open table to accept it.\n"+
			"Use /balance to check your funds.",
		sender.FirstName,
	))
}

// HandleBalance handles the /balance command.
func (h *AccountHandler) HandleBalance(c tele.Context) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	user, err := h.ledger.GetUser(context.Background(), sender.ID)
	if err != nil {
		log.Error().Err(err).Int64("user_id", sender.ID).Msg("Failed to load balance")
		return c.Reply("❌ Something went wrong, please try again.")
	}
	return c.Reply(fmt.Sprintf("💰 Your balance: Rs.%d.00", user.Balance))
}
