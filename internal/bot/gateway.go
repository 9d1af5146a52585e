package bot

import (
	"context"
	"fmt"
	"strconv"

	tele "gopkg.in/telebot.v3"
)

// TelegramGateway implements service.Gateway on top of telebot. All group
// traffic goes to the single configured group chat.
type TelegramGateway struct {
	bot         *tele.Bot
	groupChatID int64
}

// NewTelegramGateway creates a gateway bound to the group chat.
func NewTelegramGateway(bot *tele.Bot, groupChatID int64) *TelegramGateway {
	return &TelegramGateway{bot: bot, groupChatID: groupChatID}
}

// SendGroup posts a message to the group chat and returns its message id.
func (g *TelegramGateway) SendGroup(_ context.Context, text string, entities []tele.MessageEntity) (int, error) {
	opts := &tele.SendOptions{Entities: entities}
	msg, err := g.bot.Send(tele.ChatID(g.groupChatID), text, opts)
	if err != nil {
		return 0, fmt.Errorf("failed to send group message: %w", err)
	}
	return msg.ID, nil
}

// SendGroupWebAppButton posts a message with an inline web-app button to
// the group chat.
func (g *TelegramGateway) SendGroupWebAppButton(_ context.Context, text, buttonText, url string) (int, error) {
	markup := &tele.ReplyMarkup{}
	btn := markup.WebApp(buttonText, &tele.WebApp{URL: url})
	markup.Inline(markup.Row(btn))

	msg, err := g.bot.Send(tele.ChatID(g.groupChatID), text, markup, tele.ModeHTML)
	if err != nil {
		return 0, fmt.Errorf("failed to send web-app button: %w", err)
	}
	return msg.ID, nil
}

// SendDirect sends a private message to a user. Fails when the user has
// never opened a private chat with the bot; callers treat it as
// best-effort.
func (g *TelegramGateway) SendDirect(_ context.Context, userID int64, text string) error {
	if _, err := g.bot.Send(tele.ChatID(userID), text); err != nil {
		return fmt.Errorf("failed to send direct message: %w", err)
	}
	return nil
}

// DeleteGroupMessage removes a message from the group chat.
func (g *TelegramGateway) DeleteGroupMessage(_ context.Context, messageID int) error {
	stored := tele.StoredMessage{
		MessageID: strconv.Itoa(messageID),
		ChatID:    g.groupChatID,
	}
	if err := g.bot.Delete(stored); err != nil {
		return fmt.Errorf("failed to delete message %d: %w", messageID, err)
	}
	return nil
}

// BotUsername returns the bot's own username.
func (g *TelegramGateway) BotUsername() string {
	if g.bot.Me == nil {
		return ""
	}
	return g.bot.Me.Username
}
