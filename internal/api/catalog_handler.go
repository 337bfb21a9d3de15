package api

import (
	"github.com/gin-gonic/gin"

	"github.com/AndreyDiak/muzloto-server/internal/pkg/response"
	"github.com/AndreyDiak/muzloto-server/internal/repository"
	"github.com/AndreyDiak/muzloto-server/internal/service"
)

// CatalogHandler serves the coin shop: listing items, buying directly
// and redeeming deep-link purchase codes.
type CatalogHandler struct {
	catalog     *repository.CatalogRepository
	ledger      *service.LedgerService
	redemptions *service.RedemptionService
}

// NewCatalogHandler creates a new CatalogHandler instance.
func NewCatalogHandler(
	catalog *repository.CatalogRepository,
	ledger *service.LedgerService,
	redemptions *service.RedemptionService,
) *CatalogHandler {
	return &CatalogHandler{catalog: catalog, ledger: ledger, redemptions: redemptions}
}

// List handles GET /api/v1/catalog.
func (h *CatalogHandler) List(c *gin.Context) {
	items, err := h.catalog.ListActive(c.Request.Context())
	if err != nil {
		writeServiceError(c, err)
		return
	}

	type itemView struct {
		ID    int64  `json:"id"`
		Title string `json:"title"`
		Price int64  `json:"price"`
	}
	views := make([]itemView, 0, len(items))
	for _, item := range items {
		views = append(views, itemView{ID: item.ID, Title: item.Title, Price: item.Price})
	}
	response.Success(c, gin.H{"items": views})
}

type purchaseRequest struct {
	ItemID int64 `json:"item_id" binding:"required"`
}

// Purchase handles POST /api/v1/catalog/purchase.
func (h *CatalogHandler) Purchase(c *gin.Context) {
	userID, err := userIDFromContext(c)
	if err != nil {
		response.Unauthorized(c, "missing authentication")
		return
	}

	var req purchaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	receipt, err := h.ledger.ApplyPurchase(c.Request.Context(), userID, req.ItemID)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	response.Success(c, gin.H{
		"user":         toUserView(receipt.User),
		"item":         gin.H{"id": receipt.Item.ID, "title": receipt.Item.Title, "price": receipt.Item.Price},
		"bonus_earned": receipt.BonusEarned,
		"unlocked":     toUnlockedViews(receipt.Unlocked),
	})
}

// RedeemPurchaseCode handles POST /api/v1/catalog/redeem-purchase-code.
func (h *CatalogHandler) RedeemPurchaseCode(c *gin.Context) {
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

	result, err := h.redemptions.RedeemPurchaseCode(c.Request.Context(), req.Code, userID)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	payload := gin.H{
		"user":         toUserView(result.User),
		"bonus_earned": result.CoinsEarned,
		"unlocked":     toUnlockedViews(result.Unlocked),
	}
	if result.Item != nil {
		payload["item"] = gin.H{"id": result.Item.ID, "title": result.Item.Title, "price": result.Item.Price}
	}
	response.Success(c, payload)
}
