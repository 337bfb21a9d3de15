package api

import (
	"github.com/gin-gonic/gin"

	"github.com/AndreyDiak/muzloto-server/internal/pkg/response"
	"github.com/AndreyDiak/muzloto-server/internal/service"
)

// AchievementHandler serves the achievements screen and the two claim
// flows: one-time achievement bonuses and the repeating visit
// milestone.
type AchievementHandler struct {
	evaluator *service.AchievementService
}

// NewAchievementHandler creates a new AchievementHandler instance.
func NewAchievementHandler(evaluator *service.AchievementService) *AchievementHandler {
	return &AchievementHandler{evaluator: evaluator}
}

// List handles GET /api/v1/achievements.
func (h *AchievementHandler) List(c *gin.Context) {
	userID, err := userIDFromContext(c)
	if err != nil {
		response.Unauthorized(c, "missing authentication")
		return
	}

	statuses, err := h.evaluator.ListWithStatus(c.Request.Context(), userID)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	type statusView struct {
		Slug      string `json:"slug"`
		Title     string `json:"title"`
		Threshold int    `json:"threshold"`
		Counter   string `json:"counter"`
		Reward    int64  `json:"reward"`
		Unlocked  bool   `json:"unlocked"`
		Claimed   bool   `json:"claimed"`
	}
	views := make([]statusView, 0, len(statuses))
	for _, s := range statuses {
		views = append(views, statusView{
			Slug:      s.Def.Slug,
			Title:     s.Def.Title,
			Threshold: s.Def.Threshold,
			Counter:   s.Def.Counter,
			Reward:    s.Def.Reward,
			Unlocked:  s.Unlocked,
			Claimed:   s.Claimed,
		})
	}
	response.Success(c, gin.H{"achievements": views})
}

type claimRequest struct {
	Slug string `json:"slug" binding:"required"`
}

// Claim handles POST /api/v1/achievements/claim.
func (h *AchievementHandler) Claim(c *gin.Context) {
	userID, err := userIDFromContext(c)
	if err != nil {
		response.Unauthorized(c, "missing authentication")
		return
	}

	var req claimRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	result, err := h.evaluator.Claim(c.Request.Context(), userID, req.Slug)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	response.Success(c, gin.H{
		"user":         toUserView(result.User),
		"coins_earned": result.CoinsEarned,
	})
}

// ClaimVisitReward handles POST /api/v1/achievements/claim-visit-reward.
func (h *AchievementHandler) ClaimVisitReward(c *gin.Context) {
	userID, err := userIDFromContext(c)
	if err != nil {
		response.Unauthorized(c, "missing authentication")
		return
	}

	result, err := h.evaluator.ClaimVisitReward(c.Request.Context(), userID)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	response.Success(c, gin.H{
		"user":         toUserView(result.User),
		"coins_earned": result.CoinsEarned,
	})
}
