package api

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/AndreyDiak/muzloto-server/internal/pkg/response"
	"github.com/AndreyDiak/muzloto-server/internal/service"
)

// AccountHandler serves the profile screen: balance, counters,
// milestone progress and the coin history.
type AccountHandler struct {
	accounts  *service.AccountService
	evaluator *service.AchievementService
}

// NewAccountHandler creates a new AccountHandler instance.
func NewAccountHandler(accounts *service.AccountService, evaluator *service.AchievementService) *AccountHandler {
	return &AccountHandler{accounts: accounts, evaluator: evaluator}
}

// Me handles GET /api/v1/me.
func (h *AccountHandler) Me(c *gin.Context) {
	userID, err := userIDFromContext(c)
	if err != nil {
		response.Unauthorized(c, "missing authentication")
		return
	}

	user, err := h.accounts.GetUser(c.Request.Context(), userID)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("history_limit", "20"))
	history, err := h.accounts.History(c.Request.Context(), userID, limit)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	type entryView struct {
		Amount      int64   `json:"amount"`
		Type        string  `json:"type"`
		Description *string `json:"description,omitempty"`
		CreatedAt   string  `json:"created_at"`
	}
	entries := make([]entryView, 0, len(history))
	for _, e := range history {
		entries = append(entries, entryView{
			Amount:      e.Amount,
			Type:        e.Type,
			Description: e.Description,
			CreatedAt:   e.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"),
		})
	}

	interval := h.evaluator.MilestoneInterval()
	progress := service.MilestoneProgress(user.GamesVisited, user.VisitRewardsClaimed, interval)

	response.Success(c, gin.H{
		"user":    toUserView(user),
		"history": entries,
		"visit_milestone": gin.H{
			"interval": interval,
			"progress": progress,
			"pending":  progress >= interval,
		},
	})
}
