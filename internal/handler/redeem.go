package handler

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tele "gopkg.in/telebot.v3"

	"github.com/AndreyDiak/muzloto-server/internal/code"
	"github.com/AndreyDiak/muzloto-server/internal/model"
	"github.com/AndreyDiak/muzloto-server/internal/pkg/lock"
	"github.com/AndreyDiak/muzloto-server/internal/service"
)

// RedeemHandler handles code entry in chat: the /code command and
// shop deep-link payloads from /start.
type RedeemHandler struct {
	accounts    *service.AccountService
	redemptions *service.RedemptionService
	userLock    *lock.UserLock
}

// NewRedeemHandler creates a new RedeemHandler.
func NewRedeemHandler(accounts *service.AccountService, redemptions *service.RedemptionService, userLock *lock.UserLock) *RedeemHandler {
	return &RedeemHandler{
		accounts:    accounts,
		redemptions: redemptions,
		userLock:    userLock,
	}
}

// HandleCode handles the /code command: /code XXXXX.
func (h *RedeemHandler) HandleCode(c tele.Context) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	args := c.Args()
	if len(args) != 1 {
		return c.Reply("Использование: /code <КОД>\nНапример: /code A2B3C")
	}

	scan, err := code.Parse(args[0])
	if err != nil {
		return c.Reply("🤔 Это не похоже на код. Код — 5 символов, например A2B3C.")
	}
	return h.redeem(c, scan)
}

// HandleShopPayload redeems a purchase code arriving as a /start
// deep-link payload.
func (h *RedeemHandler) HandleShopPayload(c tele.Context, scan code.Scan) error {
	return h.redeem(c, scan)
}

func (h *RedeemHandler) redeem(c tele.Context, scan code.Scan) error {
	ctx := context.Background()
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	// The row must exist before a redemption can credit it.
	if _, err := h.accounts.EnsureUser(ctx, sender.ID, displayName(sender)); err != nil {
		return c.Reply("❌ Что-то пошло не так, попробуйте позже")
	}

	h.userLock.Lock(sender.ID)
	defer h.userLock.Unlock(sender.ID)

	var result *service.RedemptionResult
	var err error
	if scan.Hint == model.NamespacePurchase {
		result, err = h.redemptions.RedeemPurchaseCode(ctx, scan.Value, sender.ID)
	} else {
		result, err = h.redemptions.Redeem(ctx, scan.Value, sender.ID)
	}
	if err != nil {
		return c.Reply(redeemErrorMessage(err))
	}
	return c.Reply(redeemSuccessMessage(result))
}

func redeemSuccessMessage(result *service.RedemptionResult) string {
	var b strings.Builder

	switch {
	case result.Registration != nil:
		b.WriteString("🎤 Вы зарегистрированы на игру!\n")
		fmt.Fprintf(&b, "+%d монет за визит\n", result.CoinsEarned)
	case result.Item != nil:
		fmt.Fprintf(&b, "🛍 Покупка оформлена: %s (-%d монет)\n", result.Item.Title, result.Item.Price)
		if result.CoinsEarned > 0 {
			fmt.Fprintf(&b, "+%d монет бонусом\n", result.CoinsEarned)
		}
	default:
		fmt.Fprintf(&b, "🏆 Бинго! +%d монет\n", result.CoinsEarned)
	}

	for _, def := range result.Unlocked {
		fmt.Fprintf(&b, "🏅 Достижение: %s\n", def.Title)
	}
	fmt.Fprintf(&b, "\n💰 Баланс: %d монет", result.User.Coins)
	return b.String()
}

func redeemErrorMessage(err error) string {
	switch {
	case errors.Is(err, service.ErrInvalidCodeFormat):
		return "🤔 Это не похоже на код. Код — 5 символов, например A2B3C."
	case errors.Is(err, service.ErrCodeNotFound):
		return "❌ Такого кода нет. Проверьте символы и попробуйте ещё раз."
	case errors.Is(err, service.ErrCodeAlreadyUsed):
		return "⚠️ Этот код уже использован."
	case errors.Is(err, service.ErrAlreadyRegistered):
		return "✅ Вы уже зарегистрированы на эту игру."
	case errors.Is(err, service.ErrEventOver):
		return "⏰ Эта игра уже прошла, код больше не действует."
	case errors.Is(err, service.ErrInsufficientBalance):
		return "💸 Не хватает монет для покупки."
	case errors.Is(err, service.ErrTargetNotFound):
		return "❌ Код ссылается на несуществующую игру или товар."
	default:
		return "❌ Что-то пошло не так, попробуйте позже"
	}
}
