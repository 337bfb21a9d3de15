package api

import (
	"github.com/gin-gonic/gin"

	"github.com/AndreyDiak/muzloto-server/internal/pkg/response"
	"github.com/AndreyDiak/muzloto-server/internal/service"
)

// TransferHandler serves the scan-to-transfer flow.
type TransferHandler struct {
	transfers *service.TransferService
}

// NewTransferHandler creates a new TransferHandler instance.
func NewTransferHandler(transfers *service.TransferService) *TransferHandler {
	return &TransferHandler{transfers: transfers}
}

type issueTokenRequest struct {
	Amount int64 `json:"amount" binding:"required"`
}

// IssueToken handles POST /api/v1/transfer/token.
func (h *TransferHandler) IssueToken(c *gin.Context) {
	userID, err := userIDFromContext(c)
	if err != nil {
		response.Unauthorized(c, "missing authentication")
		return
	}

	var req issueTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	token, err := h.transfers.IssueToken(c.Request.Context(), userID, req.Amount)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	response.Success(c, gin.H{
		"token":      token.Token,
		"amount":     token.Amount,
		"expires_at": token.ExpiresAt,
	})
}

type redeemTokenRequest struct {
	Token string `json:"token" binding:"required"`
}

// RedeemToken handles POST /api/v1/transfer/redeem.
func (h *TransferHandler) RedeemToken(c *gin.Context) {
	userID, err := userIDFromContext(c)
	if err != nil {
		response.Unauthorized(c, "missing authentication")
		return
	}

	var req redeemTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	user, err := h.transfers.RedeemToken(c.Request.Context(), req.Token, userID)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	response.Success(c, gin.H{"user": toUserView(user)})
}
