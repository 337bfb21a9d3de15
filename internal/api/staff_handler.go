package api

import (
	"fmt"

	"github.com/gin-gonic/gin"

	"github.com/AndreyDiak/muzloto-server/internal/model"
	"github.com/AndreyDiak/muzloto-server/internal/pkg/response"
	"github.com/AndreyDiak/muzloto-server/internal/service"
)

// Sender delivers out-of-band Telegram notifications. Delivery is best
// effort and must never fail the request that triggered it.
type Sender interface {
	Send(telegramID int64, message string) bool
}

// StaffHandler serves the staff scanner screen and code issuance.
type StaffHandler struct {
	scanner  *service.ScannerService
	issuer   *service.IssuerService
	notifier Sender
}

// NewStaffHandler creates a new StaffHandler instance. The notifier may
// be nil when the bot is not running.
func NewStaffHandler(scanner *service.ScannerService, issuer *service.IssuerService, notifier Sender) *StaffHandler {
	return &StaffHandler{scanner: scanner, issuer: issuer, notifier: notifier}
}

type scanRequest struct {
	Input         string `json:"input" binding:"required"`
	ParticipantID int64  `json:"participant_id" binding:"required"`
}

// Scan handles POST /api/v1/scanner/scan. The scanned redemption is
// applied to the participant named in the request, not to the staff
// member holding the scanner.
func (h *StaffHandler) Scan(c *gin.Context) {
	var req scanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	result, err := h.scanner.Scan(c.Request.Context(), req.Input, req.ParticipantID)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	payload := gin.H{
		"value":        result.Scan.Value,
		"participant":  toUserView(result.Participant),
		"coins_earned": result.Redemption.CoinsEarned,
		"unlocked":     toUnlockedViews(result.Redemption.Unlocked),
	}
	if result.Redemption.Code != nil {
		payload["namespace"] = result.Redemption.Code.Namespace
	}
	if result.Redemption.Item != nil {
		payload["item"] = gin.H{"id": result.Redemption.Item.ID, "title": result.Redemption.Item.Title}
	}

	// The participant is not in any chat during a staff scan, so the
	// outcome goes to them through the bot.
	if h.notifier != nil {
		h.notifier.Send(req.ParticipantID, scanNotification(result))
	}

	response.Success(c, payload)
}

func scanNotification(result *service.ScanResult) string {
	r := result.Redemption
	var msg string
	switch {
	case r.Registration != nil:
		msg = fmt.Sprintf("🎤 Вы зарегистрированы на игру! +%d монет", r.CoinsEarned)
	case r.Item != nil:
		msg = fmt.Sprintf("🛍 Покупка оформлена: %s (-%d монет)", r.Item.Title, r.Item.Price)
	default:
		msg = fmt.Sprintf("🏆 Бинго! +%d монет", r.CoinsEarned)
	}
	for _, def := range r.Unlocked {
		msg += fmt.Sprintf("\n🏅 Достижение: %s", def.Title)
	}
	return msg + fmt.Sprintf("\n💰 Баланс: %d монет", r.User.Coins)
}

type issueCodeRequest struct {
	Namespace string `json:"namespace" binding:"required"`
	EventID   int64  `json:"event_id"`
	ItemID    int64  `json:"item_id"`
	Amount    *int64 `json:"amount"`
}

// IssueCode handles POST /api/v1/codes/issue.
func (h *StaffHandler) IssueCode(c *gin.Context) {
	staffID, err := userIDFromContext(c)
	if err != nil {
		response.Unauthorized(c, "missing authentication")
		return
	}

	var req issueCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	var code *model.Code
	switch model.Namespace(req.Namespace) {
	case model.NamespaceRegistration:
		if req.EventID == 0 {
			response.BadRequest(c, "event_id is required for registration codes")
			return
		}
		code, err = h.issuer.IssueRegistration(c.Request.Context(), req.EventID, &staffID)
	case model.NamespacePurchase:
		if req.ItemID == 0 {
			response.BadRequest(c, "item_id is required for purchase codes")
			return
		}
		code, err = h.issuer.IssuePurchase(c.Request.Context(), req.ItemID, &staffID)
	case model.NamespacePrize:
		code, err = h.issuer.IssuePrize(c.Request.Context(), req.Amount, &staffID)
	default:
		response.BadRequest(c, "unknown namespace")
		return
	}
	if err != nil {
		writeServiceError(c, err)
		return
	}

	response.Success(c, gin.H{
		"value":     code.Value,
		"namespace": code.Namespace,
	})
}
