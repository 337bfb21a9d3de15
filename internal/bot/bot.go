package bot

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"github.com/AndreyDiak/muzloto-server/internal/config"
	"github.com/AndreyDiak/muzloto-server/internal/handler"
	"github.com/AndreyDiak/muzloto-server/internal/model"
	"github.com/AndreyDiak/muzloto-server/internal/pkg/lock"
	"github.com/AndreyDiak/muzloto-server/internal/service"
)

// Bot wraps the telebot instance with application dependencies.
type Bot struct {
	bot *tele.Bot
	cfg *config.Config

	accountHandler *handler.AccountHandler
	redeemHandler  *handler.RedeemHandler
	adminHandler   *handler.AdminHandler
}

// Dependencies holds everything the bot handlers need.
type Dependencies struct {
	Config      *config.Config
	Accounts    *service.AccountService
	Evaluator   *service.AchievementService
	Redemptions *service.RedemptionService
	Issuer      *service.IssuerService
	Ledger      *service.LedgerService
	UserLock    *lock.UserLock
}

// New creates a new Bot instance with the given dependencies.
func New(deps *Dependencies) (*Bot, error) {
	if deps.Config.Bot.Token == "" {
		return nil, fmt.Errorf("bot token is required")
	}

	pref := tele.Settings{
		Token:  deps.Config.Bot.Token,
		Poller: &tele.LongPoller{Timeout: 10 * time.Second},
	}

	teleBot, err := tele.NewBot(pref)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}

	b := &Bot{
		bot: teleBot,
		cfg: deps.Config,
	}

	b.accountHandler = handler.NewAccountHandler(deps.Accounts, deps.Evaluator, deps.UserLock)
	b.redeemHandler = handler.NewRedeemHandler(deps.Accounts, deps.Redemptions, deps.UserLock)
	b.adminHandler = handler.NewAdminHandler(deps.Issuer, deps.Ledger)

	b.registerMiddleware()
	b.registerHandlers()

	return b, nil
}

func (b *Bot) registerMiddleware() {
	b.bot.Use(LoggingMiddleware())
}

func (b *Bot) registerHandlers() {
	b.bot.Handle("/start", b.handleStart)
	b.bot.Handle("/balance", b.accountHandler.HandleBalance)
	b.bot.Handle("/code", b.redeemHandler.HandleCode)
	b.bot.Handle("/help", b.accountHandler.HandleHelp)

	// Prize codes are handed out by game hosts, who are staff.
	staffGroup := b.bot.Group()
	staffGroup.Use(StaffMiddleware(b.cfg))
	staffGroup.Handle("/issue_prize", b.adminHandler.HandleIssuePrize)

	adminGroup := b.bot.Group()
	adminGroup.Use(AdminMiddleware(b.cfg))
	adminGroup.Handle("/award", b.adminHandler.HandleAward)
}

// handleStart routes /start: a shop deep-link payload goes to the
// purchase flow, everything else gets the greeting.
func (b *Bot) handleStart(c tele.Context) error {
	if scan, ok := handler.StartPayload(c); ok && scan.Hint == model.NamespacePurchase {
		return b.redeemHandler.HandleShopPayload(c, scan)
	}
	return b.accountHandler.HandleStart(c)
}

// Start begins polling for updates. Blocks until Stop is called.
func (b *Bot) Start() {
	log.Info().Msg("Starting Telegram bot")
	b.bot.Start()
}

// Stop gracefully stops the bot.
func (b *Bot) Stop() {
	log.Info().Msg("Stopping Telegram bot")
	b.bot.Stop()
}

// Telebot returns the underlying bot, used to construct the notifier.
func (b *Bot) Telebot() *tele.Bot {
	return b.bot
}
