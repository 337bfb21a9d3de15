// Package notify sends fire-and-forget Telegram messages. Delivery is
// best effort: a user who blocked the bot must never fail the
// operation that triggered the notification.
package notify

import (
	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"
)

// Notifier sends out-of-band messages to users.
type Notifier struct {
	bot *tele.Bot
}

// New creates a new Notifier instance. A nil bot produces a notifier
// that drops everything, which keeps API-only deployments working.
func New(bot *tele.Bot) *Notifier {
	return &Notifier{bot: bot}
}

// Send delivers a message to the given Telegram user. Returns whether
// delivery succeeded; failures are logged and swallowed.
func (n *Notifier) Send(telegramID int64, message string) bool {
	if n.bot == nil {
		return false
	}
	if _, err := n.bot.Send(&tele.User{ID: telegramID}, message); err != nil {
		log.Warn().
			Err(err).
			Int64("user_id", telegramID).
			Msg("Failed to deliver notification")
		return false
	}
	return true
}
