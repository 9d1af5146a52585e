// Package handler provides Telegram bot command and reply handlers.
package handler

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"ludo-table-bot/internal/model"
	"ludo-table-bot/internal/repository"
	"ludo-table-bot/internal/service"
)

// TableHandler dispatches the reply keywords that drive the table
// lifecycle: L/OK to accept, CANCEL and WIN for admin resolution.
type TableHandler struct {
	lifecycle *service.LifecycleService
	ledger    *service.LedgerService
}

// NewTableHandler creates a new TableHandler.
func NewTableHandler(lifecycle *service.LifecycleService, ledger *service.LedgerService) *TableHandler {
	return &TableHandler{lifecycle: lifecycle, ledger: ledger}
}

// replyAction is the lifecycle operation a reply keyword maps to.
type replyAction int

const (
	actionNone replyAction = iota
	actionAccept
	actionCancel
	actionWin
)

// classifyReply maps reply text to a lifecycle action, case-insensitively.
// Anything unrecognized is ordinary chat and must be left alone.
func classifyReply(text string) replyAction {
	keyword := strings.ToUpper(strings.TrimSpace(text))
	switch {
	case keyword == "L" || keyword == "OK":
		return actionAccept
	case keyword == "CANCEL":
		return actionCancel
	case strings.HasPrefix(keyword, "WIN"):
		return actionWin
	default:
		return actionNone
	}
}

// HandleText classifies a plain text message. Only replies to other
// messages are interesting; everything else falls through silently.
func (h *TableHandler) HandleText(c tele.Context) error {
	msg := c.Message()
	if msg == nil || msg.ReplyTo == nil || msg.Sender == nil {
		return nil
	}

	switch classifyReply(msg.Text) {
	case actionAccept:
		return h.handleAccept(c)
	case actionCancel:
		return h.handleCancel(c)
	case actionWin:
		return h.handleWin(c)
	}
	return nil
}

// handleAccept matches the sender against the open table behind the
// replied-to message.
func (h *TableHandler) handleAccept(c tele.Context) error {
	ctx := context.Background()
	msg := c.Message()

	table, err := h.lifecycle.LocateTableForReply(ctx, msg.ReplyTo.ID, model.StatusOpen)
	if err != nil {
		if errors.Is(err, repository.ErrTableNotFound) {
			return c.Reply("❌ Could not find an open table for that message.")
		}
		log.Error().Err(err).Msg("Failed to locate table for accept")
		return c.Reply("❌ Something went wrong, please try again.")
	}

	acceptor, err := h.ledger.GetUser(ctx, msg.Sender.ID)
	if err != nil {
		log.Error().Err(err).Int64("user_id", msg.Sender.ID).Msg("Failed to load acceptor")
		return c.Reply("❌ Something went wrong, please try again.")
	}

	if _, err := h.lifecycle.AcceptTable(ctx, table, acceptor); err != nil {
		return h.replyAcceptError(c, table, err)
	}
	return nil
}

// replyAcceptError maps an accept failure to a user-visible notice.
func (h *TableHandler) replyAcceptError(c tele.Context, table *model.Table, err error) error {
	var insufficient *repository.InsufficientFundsError
	switch {
	case errors.Is(err, service.ErrSelfAccept):
		return c.Reply("❌ You cannot accept your own table.")
	case errors.Is(err, repository.ErrTableNotOpen):
		return c.Reply("❌ This table is no longer open.")
	case errors.As(err, &insufficient):
		side := "You are"
		if insufficient.UserID == table.CreatorID {
			side = "The table creator is"
		}
		return c.Reply(fmt.Sprintf(
			"❌ Cannot match this table: %s short Rs.%d.00 (balance Rs.%d.00, stake Rs.%d.00). No funds were moved.",
			side, insufficient.Shortfall(), insufficient.Balance, insufficient.Needed,
		))
	default:
		log.Error().Err(err).Int64("table_id", table.ID).Msg("Failed to accept table")
		return c.Reply("❌ Could not match the table, please try again.")
	}
}

// handleCancel refunds a matched table. Admin-only; non-admin attempts
// are ignored without a reply so the keyword stays unadvertised.
func (h *TableHandler) handleCancel(c tele.Context) error {
	ctx := context.Background()
	msg := c.Message()

	isAdmin, err := h.ledger.IsAdmin(ctx, msg.Sender.ID)
	if err != nil {
		log.Error().Err(err).Msg("Admin check failed on cancel")
		return nil
	}
	if !isAdmin {
		return nil
	}

	table, err := h.lifecycle.LocateTableForReply(ctx, msg.ReplyTo.ID, model.StatusMatched)
	if err != nil {
		if errors.Is(err, repository.ErrTableNotFound) {
			return c.Reply("❌ Could not find a matched table for that message.")
		}
		log.Error().Err(err).Msg("Failed to locate table for cancel")
		return c.Reply("❌ Something went wrong, please try again.")
	}

	cancelled, err := h.lifecycle.ResolveCancel(ctx, table)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrTableNotMatched):
		return c.Reply("❌ This table has already been settled.")
	case cancelled != nil:
		// The refund is committed, only the announcement failed.
		log.Error().Err(err).Int64("table_id", table.ID).Msg("Cancel announcement failed")
		return c.Reply("⚠️ Refund completed, but the announcement could not be posted.")
	default:
		log.Error().Err(err).Int64("table_id", table.ID).Msg("Failed to cancel table")
		return c.Reply("❌ Could not cancel the table, please try again.")
	}
}

// handleWin settles a matched table in favour of the mentioned player.
// Admin-only; non-admin attempts are ignored without a reply.
func (h *TableHandler) handleWin(c tele.Context) error {
	ctx := context.Background()
	msg := c.Message()

	isAdmin, err := h.ledger.IsAdmin(ctx, msg.Sender.ID)
	if err != nil {
		log.Error().Err(err).Msg("Admin check failed on win")
		return nil
	}
	if !isAdmin {
		return nil
	}

	// Slice the original-case text so a username mention keeps its casing.
	trimmed := strings.TrimSpace(msg.Text)
	mentionText := strings.TrimSpace(trimmed[len("WIN"):])
	mentionID := winnerMentionID(msg)
	if mentionText == "" && mentionID == 0 {
		return c.Reply("Usage: WIN @player (reply to the match message)")
	}

	table, err := h.lifecycle.LocateTableForReply(ctx, msg.ReplyTo.ID, model.StatusMatched)
	if err != nil {
		if errors.Is(err, repository.ErrTableNotFound) {
			return c.Reply("❌ Could not find a matched table for that message.")
		}
		log.Error().Err(err).Msg("Failed to locate table for win")
		return c.Reply("❌ Something went wrong, please try again.")
	}

	winnerID, err := h.lifecycle.ResolveWinner(ctx, table, mentionID, mentionText)
	if err != nil {
		if errors.Is(err, service.ErrNotParticipant) {
			return c.Reply("❌ The winner must be one of the two players of this table.")
		}
		log.Error().Err(err).Int64("table_id", table.ID).Msg("Failed to resolve winner")
		return c.Reply("❌ Something went wrong, please try again.")
	}

	winnerAmount, err := h.lifecycle.ResolveWin(ctx, table, winnerID)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrTableNotMatched):
		return c.Reply("❌ This table has already been settled.")
	case winnerAmount > 0:
		log.Error().Err(err).Int64("table_id", table.ID).Msg("Win announcement failed")
		return c.Reply("⚠️ Payout completed, but the announcement could not be posted.")
	default:
		log.Error().Err(err).Int64("table_id", table.ID).Msg("Failed to settle win")
		return c.Reply("❌ Could not settle the table, please try again.")
	}
}

// winnerMentionID extracts the user id from a text-mention entity in the
// WIN message, if any. Players without a username are mentioned this way.
func winnerMentionID(msg *tele.Message) int64 {
	for _, entity := range msg.Entities {
		if entity.Type == tele.EntityTMention && entity.User != nil {
			return entity.User.ID
		}
	}
	return 0
}
