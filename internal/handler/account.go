// Package handler provides Telegram bot command handlers.
package handler

import (
	"context"
	"fmt"
	"strings"

	tele "gopkg.in/telebot.v3"

	"github.com/AndreyDiak/muzloto-server/internal/code"
	"github.com/AndreyDiak/muzloto-server/internal/pkg/lock"
	"github.com/AndreyDiak/muzloto-server/internal/service"
)

// AccountHandler handles account-related commands.
type AccountHandler struct {
	accounts  *service.AccountService
	evaluator *service.AchievementService
	userLock  *lock.UserLock
}

// NewAccountHandler creates a new AccountHandler.
func NewAccountHandler(accounts *service.AccountService, evaluator *service.AchievementService, userLock *lock.UserLock) *AccountHandler {
	return &AccountHandler{
		accounts:  accounts,
		evaluator: evaluator,
		userLock:  userLock,
	}
}

// HandleStart handles the /start command. A "shop-XXXXX" deep-link
// payload is routed to the purchase flow by the bot dispatcher before
// this handler runs; here only the plain greeting remains.
func (h *AccountHandler) HandleStart(c tele.Context) error {
	ctx := context.Background()
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	username := displayName(sender)

	h.userLock.Lock(sender.ID)
	defer h.userLock.Unlock(sender.ID)

	user, err := h.accounts.EnsureUser(ctx, sender.ID, username)
	if err != nil {
		return c.Reply("❌ Не получилось создать аккаунт, попробуйте позже")
	}

	return c.Reply(fmt.Sprintf(
		"🎵 Привет, @%s!\n\n"+
			"Это бот Музлото — копи монеты за визиты и побеждай в бинго.\n\n"+
			"💰 Баланс: %d монет\n\n"+
			"Команды:\n"+
			"/balance — баланс и статистика\n"+
			"/code <КОД> — ввести код с билета\n"+
			"/help — справка",
		username, user.Coins,
	))
}

// HandleBalance handles the /balance command.
func (h *AccountHandler) HandleBalance(c tele.Context) error {
	ctx := context.Background()
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	user, err := h.accounts.EnsureUser(ctx, sender.ID, displayName(sender))
	if err != nil {
		return c.Reply("❌ Не получилось получить баланс, попробуйте позже")
	}

	interval := h.evaluator.MilestoneInterval()
	progress := service.MilestoneProgress(user.GamesVisited, user.VisitRewardsClaimed, interval)

	msg := fmt.Sprintf(
		"💰 Баланс: %d монет\n\n"+
			"🎤 Визитов: %d\n"+
			"🎫 Покупок: %d\n"+
			"🏆 Бинго: %d\n\n"+
			"До подарка за визиты: %d из %d",
		user.Coins, user.GamesVisited, user.TicketsPurchased, user.BingoCollected,
		progress, interval,
	)
	if progress >= interval {
		msg += "\n🎁 Подарок за визиты готов — заберите его в приложении!"
	}
	return c.Reply(msg)
}

// HandleHelp handles the /help command.
func (h *AccountHandler) HandleHelp(c tele.Context) error {
	return c.Reply(
		"🎵 Музлото — как это работает:\n\n" +
			"1. Приходите на игру и сканируйте код с билета — получите монеты за визит.\n" +
			"2. Собрали бинго? Покажите карточку ведущему и получите приз-код.\n" +
			"3. Тратьте монеты в каталоге на мерч и напитки.\n\n" +
			"Команды:\n" +
			"/balance — баланс и статистика\n" +
			"/code <КОД> — ввести код вручную\n" +
			"/help — эта справка",
	)
}

func displayName(sender *tele.User) string {
	if sender.Username != "" {
		return sender.Username
	}
	return strings.TrimSpace(sender.FirstName + " " + sender.LastName)
}

// StartPayload extracts the deep-link payload from a /start message.
func StartPayload(c tele.Context) (code.Scan, bool) {
	args := c.Args()
	if len(args) == 0 {
		return code.Scan{}, false
	}
	scan, err := code.Parse(args[0])
	if err != nil {
		return code.Scan{}, false
	}
	return scan, true
}
