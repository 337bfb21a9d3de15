// Package api exposes the mini-app HTTP surface over gin.
package api

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/AndreyDiak/muzloto-server/internal/api/middleware"
	"github.com/AndreyDiak/muzloto-server/internal/config"
	"github.com/AndreyDiak/muzloto-server/internal/model"
	"github.com/AndreyDiak/muzloto-server/internal/pkg/response"
	"github.com/AndreyDiak/muzloto-server/internal/service"
)

// ErrNoClaims is returned when a protected handler runs without
// authentication context.
var ErrNoClaims = errors.New("claims not found in context")

func userIDFromContext(c *gin.Context) (int64, error) {
	claims, ok := middleware.ClaimsFrom(c)
	if !ok {
		return 0, ErrNoClaims
	}
	return claims.UserID()
}

// writeServiceError maps the service error taxonomy onto HTTP statuses.
// Unmapped errors are logged and surface as opaque 500s.
func writeServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidCodeFormat),
		errors.Is(err, service.ErrInvalidAmount),
		errors.Is(err, service.ErrSelfTransfer):
		response.BadRequest(c, err.Error())
	case errors.Is(err, service.ErrCodeNotFound),
		errors.Is(err, service.ErrTargetNotFound),
		errors.Is(err, service.ErrUserNotFound),
		errors.Is(err, service.ErrUnknownAchievement),
		errors.Is(err, service.ErrTransferTokenInvalid):
		response.NotFound(c, err.Error())
	case errors.Is(err, service.ErrCodeAlreadyUsed),
		errors.Is(err, service.ErrAlreadyRegistered),
		errors.Is(err, service.ErrEventOver),
		errors.Is(err, service.ErrAlreadyClaimed),
		errors.Is(err, service.ErrNotUnlocked),
		errors.Is(err, service.ErrMilestoneNotReached),
		errors.Is(err, service.ErrInsufficientBalance),
		errors.Is(err, service.ErrCodeGenerationExhausted):
		response.Conflict(c, err.Error())
	default:
		log.Error().Err(err).Str("path", c.Request.URL.Path).Msg("Unhandled service error")
		response.InternalError(c, "internal server error")
	}
}

// userView is the JSON shape of a user profile.
type userView struct {
	TelegramID          int64  `json:"telegram_id"`
	Username            string `json:"username"`
	Coins               int64  `json:"coins"`
	GamesVisited        int    `json:"games_visited"`
	TicketsPurchased    int    `json:"tickets_purchased"`
	BingoCollected      int    `json:"bingo_collected"`
	VisitRewardsClaimed int    `json:"visit_rewards_claimed"`
}

func toUserView(u *model.User) userView {
	return userView{
		TelegramID:          u.TelegramID,
		Username:            u.Username,
		Coins:               u.Coins,
		GamesVisited:        u.GamesVisited,
		TicketsPurchased:    u.TicketsPurchased,
		BingoCollected:      u.BingoCollected,
		VisitRewardsClaimed: u.VisitRewardsClaimed,
	}
}

// unlockedView names the achievements an action just unlocked.
type unlockedView struct {
	Slug   string `json:"slug"`
	Title  string `json:"title"`
	Reward int64  `json:"reward"`
	Paid   bool   `json:"paid"`
}

func toUnlockedViews(defs []config.AchievementDef) []unlockedView {
	views := make([]unlockedView, 0, len(defs))
	for _, def := range defs {
		views = append(views, unlockedView{
			Slug:   def.Slug,
			Title:  def.Title,
			Reward: def.Reward,
			Paid:   def.AutoPay,
		})
	}
	return views
}
