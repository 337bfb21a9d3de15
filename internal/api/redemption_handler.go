package api

import (
	"github.com/gin-gonic/gin"

	"github.com/AndreyDiak/muzloto-server/internal/pkg/response"
	"github.com/AndreyDiak/muzloto-server/internal/service"
)

// RedemptionHandler serves the code entry flows of the mini-app:
// event registration and bingo prize claims.
type RedemptionHandler struct {
	redemptions *service.RedemptionService
}

// NewRedemptionHandler creates a new RedemptionHandler instance.
func NewRedemptionHandler(redemptions *service.RedemptionService) *RedemptionHandler {
	return &RedemptionHandler{redemptions: redemptions}
}

type codeRequest struct {
	Code string `json:"code" binding:"required"`
}

// RegisterForEvent handles POST /api/v1/events/register.
func (h *RedemptionHandler) RegisterForEvent(c *gin.Context) {
	userID, err := userIDFromContext(c)
	if err != nil {
		response.Unauthorized(c, "missing authentication")
		return
	}

	var req codeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	result, err := h.redemptions.RedeemRegistration(c.Request.Context(), req.Code, userID)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	payload := gin.H{
		"user":         toUserView(result.User),
		"coins_earned": result.CoinsEarned,
		"unlocked":     toUnlockedViews(result.Unlocked),
	}
	if result.Target.Registration != nil {
		payload["event"] = gin.H{
			"id":    result.Target.Registration.Event.ID,
			"title": result.Target.Registration.Event.Title,
		}
	}
	response.Success(c, payload)
}

// ClaimBingo handles POST /api/v1/bingo/claim.
func (h *RedemptionHandler) ClaimBingo(c *gin.Context) {
	userID, err := userIDFromContext(c)
	if err != nil {
		response.Unauthorized(c, "missing authentication")
		return
	}

	var req codeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	result, err := h.redemptions.RedeemPrize(c.Request.Context(), req.Code, userID)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	response.Success(c, gin.H{
		"user":         toUserView(result.User),
		"coins_earned": result.CoinsEarned,
		"unlocked":     toUnlockedViews(result.Unlocked),
	})
}
