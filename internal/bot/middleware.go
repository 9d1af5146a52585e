// Package bot provides middleware for the Telegram bot.
package bot

import (
	"context"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"ludo-table-bot/internal/service"
)

// RegistrationMiddleware lazily registers every user the bot hears from,
// keeping profile fields fresh. Registration failures are logged and do
// not block handling.
func RegistrationMiddleware(ledger *service.LedgerService) tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			sender := c.Sender()
			if sender != nil && !sender.IsBot {
				_, err := ledger.EnsureUser(context.Background(), sender.ID, sender.Username, sender.FirstName, sender.LastName)
				if err != nil {
					log.Warn().Err(err).Int64("user_id", sender.ID).Msg("Failed to register user")
				}
			}
			return next(c)
		}
	}
}

// AdminMiddleware restricts a handler group to users in the admin set.
// Unauthorized callers of slash commands get an explicit rejection.
func AdminMiddleware(ledger *service.LedgerService) tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			sender := c.Sender()
			if sender == nil {
				return nil
			}
			isAdmin, err := ledger.IsAdmin(context.Background(), sender.ID)
			if err != nil {
				log.Error().Err(err).Int64("user_id", sender.ID).Msg("Admin check failed")
				return c.Reply("❌ Something went wrong, please try again.")
			}
			if !isAdmin {
				log.Warn().
					Int64("user_id", sender.ID).
					Str("command", c.Text()).
					Msg("Non-admin attempted admin command")
				return c.Reply("❌ You are not authorized to use this command.")
			}
			return next(c)
		}
	}
}

// LoggingMiddleware logs all incoming messages.
func LoggingMiddleware() tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			logEvent := log.Debug()
			if sender := c.Sender(); sender != nil {
				logEvent = logEvent.
					Int64("user_id", sender.ID).
					Str("username", sender.Username)
			}
			if chat := c.Chat(); chat != nil {
				logEvent = logEvent.
					Int64("chat_id", chat.ID).
					Str("chat_type", string(chat.Type))
			}
			logEvent.Str("text", c.Text()).Msg("Received message")
			return next(c)
		}
	}
}

// RecoveryMiddleware recovers from panics in handlers so a malformed
// update can never take the process down.
func RecoveryMiddleware() tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			defer func() {
				if r := recover(); r != nil {
					log.Error().
						Interface("panic", r).
						Msg("Recovered from panic in handler")
					_ = c.Reply("❌ Something went wrong, please try again.")
				}
			}()
			return next(c)
		}
	}
}
