// Package bot provides the Telegram bot initialization and handler
// registration.
package bot

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"ludo-table-bot/internal/config"
	"ludo-table-bot/internal/handler"
	"ludo-table-bot/internal/service"
)

// Bot wraps the telebot instance with application dependencies.
type Bot struct {
	bot     *tele.Bot
	cfg     *config.Config
	gateway *TelegramGateway

	tableHandler   *handler.TableHandler
	adminHandler   *handler.AdminHandler
	accountHandler *handler.AccountHandler
}

// Dependencies holds everything the bot handlers need.
type Dependencies struct {
	Config    *config.Config
	Lifecycle *service.LifecycleService
	Ledger    *service.LedgerService
}

// New creates a new Bot instance. Long polling is the default transport;
// setting bot.webhook_url in the configuration switches to webhook
// delivery.
func New(deps *Dependencies, teleBot *tele.Bot, gateway *TelegramGateway) *Bot {
	b := &Bot{
		bot:     teleBot,
		cfg:     deps.Config,
		gateway: gateway,

		tableHandler:   handler.NewTableHandler(deps.Lifecycle, deps.Ledger),
		adminHandler:   handler.NewAdminHandler(deps.Ledger, gateway, deps.Config.HTTP.MiniAppURL),
		accountHandler: handler.NewAccountHandler(deps.Ledger),
	}

	b.registerMiddleware(deps.Ledger)
	b.registerHandlers(deps.Ledger)
	return b
}

// NewTeleBot builds the underlying telebot instance from configuration.
func NewTeleBot(cfg *config.BotConfig) (*tele.Bot, error) {
	if cfg.Token == "" {
		return nil, fmt.Errorf("bot token is required")
	}

	var poller tele.Poller
	if cfg.WebhookURL != "" {
		poller = &tele.Webhook{
			Listen:   cfg.WebhookListen,
			Endpoint: &tele.WebhookEndpoint{PublicURL: cfg.WebhookURL},
		}
	} else {
		poller = &tele.LongPoller{Timeout: 10 * time.Second}
	}

	teleBot, err := tele.NewBot(tele.Settings{
		Token:  cfg.Token,
		Poller: poller,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}
	return teleBot, nil
}

func (b *Bot) registerMiddleware(ledger *service.LedgerService) {
	b.bot.Use(RecoveryMiddleware())
	b.bot.Use(LoggingMiddleware())
	b.bot.Use(RegistrationMiddleware(ledger))
}

func (b *Bot) registerHandlers(ledger *service.LedgerService) {
	b.bot.Handle("/start", b.accountHandler.HandleStart)
	b.bot.Handle("/balance", b.accountHandler.HandleBalance)

	// Admin slash commands: explicit rejection for non-admins.
	adminGroup := b.bot.Group()
	adminGroup.Use(AdminMiddleware(ledger))
	adminGroup.Handle("/viewusers", b.adminHandler.HandleViewUsers)
	adminGroup.Handle("/checkbalance", b.adminHandler.HandleCheckBalance)
	adminGroup.Handle("/addfund", b.adminHandler.HandleAddFund)
	adminGroup.Handle("/deductfund", b.adminHandler.HandleDeductFund)
	adminGroup.Handle("/makeadmin", b.adminHandler.HandleMakeAdmin)
	adminGroup.Handle("/sendpinbutton", b.adminHandler.HandleSendPinButton)

	// Reply keywords (L/OK/CANCEL/WIN) arrive as plain text replies; the
	// handler does its own admin checks so privileged keywords can be
	// silently ignored for non-admins.
	b.bot.Handle(tele.OnText, b.tableHandler.HandleText)
}

// Start starts the bot transport.
func (b *Bot) Start() {
	log.Info().Bool("webhook", b.cfg.Bot.WebhookURL != "").Msg("Starting bot")
	b.bot.Start()
}

// Stop stops the bot gracefully.
func (b *Bot) Stop() {
	log.Info().Msg("Stopping bot")
	b.bot.Stop()
}

// Gateway returns the messaging gateway bound to this bot.
func (b *Bot) Gateway() *TelegramGateway {
	return b.gateway
}
