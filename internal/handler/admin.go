package handler

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	tele "gopkg.in/telebot.v3"

	"github.com/AndreyDiak/muzloto-server/internal/service"
)

// AdminHandler handles admin-only commands.
type AdminHandler struct {
	issuer *service.IssuerService
	ledger *service.LedgerService
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(issuer *service.IssuerService, ledger *service.LedgerService) *AdminHandler {
	return &AdminHandler{issuer: issuer, ledger: ledger}
}

// HandleIssuePrize handles /issue_prize [amount]. Without an amount the
// prize pays the configured default at redemption time.
func (h *AdminHandler) HandleIssuePrize(c tele.Context) error {
	ctx := context.Background()
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	var amount *int64
	if args := c.Args(); len(args) >= 1 {
		n, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil || n <= 0 {
			return c.Reply("Использование: /issue_prize [монеты]\nНапример: /issue_prize 500")
		}
		amount = &n
	}

	adminID := sender.ID
	prize, err := h.issuer.IssuePrize(ctx, amount, &adminID)
	if err != nil {
		return c.Reply("❌ Не получилось выпустить приз-код, попробуйте ещё раз")
	}

	payout := "стандартный приз"
	if amount != nil {
		payout = fmt.Sprintf("%d монет", *amount)
	}
	return c.Reply(fmt.Sprintf("🏆 Приз-код: %s (%s)", prize.Value, payout))
}

// HandleAward handles /award <telegram_id> <amount> [комментарий].
func (h *AdminHandler) HandleAward(c tele.Context) error {
	ctx := context.Background()

	args := c.Args()
	if len(args) < 2 {
		return c.Reply("Использование: /award <telegram_id> <монеты> [комментарий]")
	}

	userID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return c.Reply("Неверный telegram_id")
	}
	amount, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil || amount <= 0 {
		return c.Reply("Сумма должна быть положительным числом")
	}
	description := strings.Join(args[2:], " ")

	result, err := h.ledger.Award(ctx, userID, amount, description)
	if err != nil {
		if msg := awardErrorMessage(err); msg != "" {
			return c.Reply(msg)
		}
		return c.Reply("❌ Не получилось начислить монеты")
	}

	return c.Reply(fmt.Sprintf(
		"✅ Начислено %d монет пользователю %d\n💰 Его баланс: %d",
		amount, userID, result.User.Coins,
	))
}

func awardErrorMessage(err error) string {
	switch {
	case errors.Is(err, service.ErrUserNotFound):
		return "❌ Пользователь не найден, он должен сначала запустить бота"
	case errors.Is(err, service.ErrInvalidAmount):
		return "Сумма должна быть положительным числом"
	default:
		return ""
	}
}
