// Package bot provides the Telegram bot initialization and middleware.
package bot

import (
	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"github.com/AndreyDiak/muzloto-server/internal/config"
)

// LoggingMiddleware logs incoming updates.
func LoggingMiddleware() tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			sender := c.Sender()
			if sender != nil {
				log.Debug().
					Int64("user_id", sender.ID).
					Str("username", sender.Username).
					Str("text", c.Text()).
					Msg("Incoming update")
			}
			return next(c)
		}
	}
}

// AdminMiddleware lets only configured admins through; everyone else
// is silently ignored.
func AdminMiddleware(cfg *config.Config) tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			sender := c.Sender()
			if sender == nil || !cfg.IsAdmin(sender.ID) {
				log.Debug().
					Int64("user_id", senderID(c)).
					Msg("Ignoring admin command from non-admin")
				return nil
			}
			return next(c)
		}
	}
}

// StaffMiddleware lets configured staff (admins included) through.
func StaffMiddleware(cfg *config.Config) tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			sender := c.Sender()
			if sender == nil || !cfg.IsStaff(sender.ID) {
				log.Debug().
					Int64("user_id", senderID(c)).
					Msg("Ignoring staff command from non-staff")
				return nil
			}
			return next(c)
		}
	}
}

func senderID(c tele.Context) int64 {
	if s := c.Sender(); s != nil {
		return s.ID
	}
	return 0
}
