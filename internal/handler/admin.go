package handler

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"ludo-table-bot/internal/model"
	"ludo-table-bot/internal/repository"
	"ludo-table-bot/internal/service"
)

// AdminHandler implements the admin slash commands. Authorization is
// enforced upstream by the admin middleware group.
type AdminHandler struct {
	ledger     *service.LedgerService
	gateway    service.Gateway
	miniAppURL string
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(ledger *service.LedgerService, gateway service.Gateway, miniAppURL string) *AdminHandler {
	return &AdminHandler{ledger: ledger, gateway: gateway, miniAppURL: miniAppURL}
}

// HandleViewUsers handles the /viewusers command.
func (h *AdminHandler) HandleViewUsers(c tele.Context) error {
	users, err := h.ledger.ListUsers(context.Background())
	if err != nil {
		log.Error().Err(err).Msg("Failed to list users")
		return c.Reply("❌ Something went wrong, please try again.")
	}
	if len(users) == 0 {
		return c.Reply("No registered users yet.")
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("👥 Registered users (%d):\n\n", len(users)))
	for _, user := range users {
		sb.WriteString(fmt.Sprintf("%s — %d — Rs.%d.00\n", displayName(user), user.TelegramID, user.Balance))
	}
	return c.Reply(sb.String())
}

// HandleCheckBalance handles the /checkbalance command.
// Usage: /checkbalance <@username|telegram_id>
func (h *AdminHandler) HandleCheckBalance(c tele.Context) error {
	args := c.Args()
	if len(args) != 1 {
		return c.Reply("Usage: /checkbalance <@username|telegram_id>")
	}

	user, err := h.resolveTarget(context.Background(), args[0])
	if err != nil {
		return h.replyTargetError(c, args[0], err)
	}
	return c.Reply(fmt.Sprintf("💰 %s has Rs.%d.00", displayName(user), user.Balance))
}

// HandleAddFund handles the /addfund command.
// Usage: /addfund <@username|telegram_id> <amount>
func (h *AdminHandler) HandleAddFund(c tele.Context) error {
	ctx := context.Background()
	target, amount, ok := h.parseFundArgs(c, "/addfund")
	if !ok {
		return nil
	}

	user, err := h.resolveTarget(ctx, target)
	if err != nil {
		return h.replyTargetError(c, target, err)
	}

	updated, err := h.ledger.AddFund(ctx, c.Sender().ID, user.TelegramID, amount)
	if err != nil {
		if errors.Is(err, service.ErrInvalidAmount) {
			return c.Reply("❌ Amount must be a positive whole number.")
		}
		log.Error().Err(err).Int64("target_id", user.TelegramID).Msg("Failed to add funds")
		return c.Reply("❌ Something went wrong, please try again.")
	}
	return c.Reply(fmt.Sprintf("✅ Added Rs.%d.00 to %s. New balance: Rs.%d.00", amount, displayName(updated), updated.Balance))
}

// HandleDeductFund handles the /deductfund command.
// Usage: /deductfund <@username|telegram_id> <amount>
func (h *AdminHandler) HandleDeductFund(c tele.Context) error {
	ctx := context.Background()
	target, amount, ok := h.parseFundArgs(c, "/deductfund")
	if !ok {
		return nil
	}

	user, err := h.resolveTarget(ctx, target)
	if err != nil {
		return h.replyTargetError(c, target, err)
	}

	updated, err := h.ledger.DeductFund(ctx, c.Sender().ID, user.TelegramID, amount)
	if err != nil {
		var insufficient *repository.InsufficientFundsError
		switch {
		case errors.Is(err, service.ErrInvalidAmount):
			return c.Reply("❌ Amount must be a positive whole number.")
		case errors.As(err, &insufficient):
			return c.Reply(fmt.Sprintf(
				"❌ Cannot deduct Rs.%d.00: %s only has Rs.%d.00.",
				amount, displayName(user), insufficient.Balance,
			))
		default:
			log.Error().Err(err).Int64("target_id", user.TelegramID).Msg("Failed to deduct funds")
			return c.Reply("❌ Something went wrong, please try again.")
		}
	}
	return c.Reply(fmt.Sprintf("✅ Deducted Rs.%d.00 from %s. New balance: Rs.%d.00", amount, displayName(updated), updated.Balance))
}

// HandleMakeAdmin handles the /makeadmin command.
// Usage: /makeadmin <@username|telegram_id>
func (h *AdminHandler) HandleMakeAdmin(c tele.Context) error {
	ctx := context.Background()
	args := c.Args()
	if len(args) != 1 {
		return c.Reply("Usage: /makeadmin <@username|telegram_id>")
	}

	user, err := h.resolveTarget(ctx, args[0])
	if err != nil {
		// A numeric id that has never been seen is still grantable: the
		// user record is created lazily by MakeAdmin.
		if id, perr := strconv.ParseInt(args[0], 10, 64); perr == nil && errors.Is(err, repository.ErrUserNotFound) {
			if _, aerr := h.ledger.MakeAdmin(ctx, id); aerr != nil {
				log.Error().Err(aerr).Int64("target_id", id).Msg("Failed to grant admin")
				return c.Reply("❌ Something went wrong, please try again.")
			}
			return c.Reply(fmt.Sprintf("✅ User %d is now an admin.", id))
		}
		return h.replyTargetError(c, args[0], err)
	}

	if _, err := h.ledger.MakeAdmin(ctx, user.TelegramID); err != nil {
		log.Error().Err(err).Int64("target_id", user.TelegramID).Msg("Failed to grant admin")
		return c.Reply("❌ Something went wrong, please try again.")
	}
	return c.Reply(fmt.Sprintf("✅ %s is now an admin.", displayName(user)))
}

// HandleSendPinButton posts the mini-app launch button to the group so an
// admin can pin it.
func (h *AdminHandler) HandleSendPinButton(c tele.Context) error {
	if h.miniAppURL == "" {
		return c.Reply("❌ No mini-app URL is configured.")
	}

	text := "🎲 <b>Ludo Tables</b>\nTap below to open a new table."
	if _, err := h.gateway.SendGroupWebAppButton(context.Background(), text, "Open Table 🎲", h.miniAppURL); err != nil {
		log.Error().Err(err).Msg("Failed to send pin button")
		return c.Reply("❌ Could not post the button, please try again.")
	}
	return c.Reply("✅ Button posted. Pin it in the group.")
}

// parseFundArgs validates the shared <target> <amount> argument shape of
// the fund commands. On failure it replies with usage and returns ok=false.
func (h *AdminHandler) parseFundArgs(c tele.Context, command string) (target string, amount int64, ok bool) {
	args := c.Args()
	if len(args) != 2 {
		_ = c.Reply(fmt.Sprintf("Usage: %s <@username|telegram_id> <amount>", command))
		return "", 0, false
	}
	amount, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil || amount <= 0 {
		_ = c.Reply("❌ Amount must be a positive whole number.")
		return "", 0, false
	}
	return args[0], amount, true
}

// resolveTarget looks a user up by "@username" or numeric Telegram id.
func (h *AdminHandler) resolveTarget(ctx context.Context, ref string) (*model.User, error) {
	if strings.HasPrefix(ref, "@") {
		return h.ledger.GetUserByUsername(ctx, ref)
	}
	id, err := strconv.ParseInt(ref, 10, 64)
	if err != nil {
		// Not numeric either; treat it as a bare username.
		return h.ledger.GetUserByUsername(ctx, ref)
	}
	return h.ledger.GetUser(ctx, id)
}

func (h *AdminHandler) replyTargetError(c tele.Context, ref string, err error) error {
	if errors.Is(err, repository.ErrUserNotFound) {
		return c.Reply(fmt.Sprintf("❌ User %s not found.", ref))
	}
	log.Error().Err(err).Str("target", ref).Msg("Failed to resolve target user")
	return c.Reply("❌ Something went wrong, please try again.")
}

// displayName renders a user reference for admin-facing replies.
func displayName(user *model.User) string {
	if user.Username != "" {
		return "@" + user.Username
	}
	if name := user.FullName(); name != "" {
		return name
	}
	return strconv.FormatInt(user.TelegramID, 10)
}
