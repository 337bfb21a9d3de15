package api

import (
	"github.com/gin-gonic/gin"

	"github.com/AndreyDiak/muzloto-server/internal/api/middleware"
	"github.com/AndreyDiak/muzloto-server/internal/config"
	jwtpkg "github.com/AndreyDiak/muzloto-server/internal/pkg/jwt"
)

// SetupRouter builds the gin engine with the full mini-app surface.
func SetupRouter(
	cfg *config.Config,
	jwtManager *jwtpkg.Manager,
	authHandler *AuthHandler,
	accountHandler *AccountHandler,
	redemptionHandler *RedemptionHandler,
	catalogHandler *CatalogHandler,
	achievementHandler *AchievementHandler,
	transferHandler *TransferHandler,
	staffHandler *StaffHandler,
) *gin.Engine {
	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	r.Use(middleware.Recovery())
	r.Use(middleware.RequestLogger())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// Public auth routes
	auth := r.Group("/api/v1/auth")
	{
		auth.POST("/login", authHandler.Login)
	}

	// Protected routes
	protected := r.Group("/api/v1")
	protected.Use(middleware.JWTAuth(jwtManager))
	{
		protected.GET("/me", accountHandler.Me)

		protected.POST("/events/register", redemptionHandler.RegisterForEvent)
		protected.POST("/bingo/claim", redemptionHandler.ClaimBingo)

		protected.GET("/catalog", catalogHandler.List)
		protected.POST("/catalog/purchase", catalogHandler.Purchase)
		protected.POST("/catalog/redeem-purchase-code", catalogHandler.RedeemPurchaseCode)

		protected.GET("/achievements", achievementHandler.List)
		protected.POST("/achievements/claim", achievementHandler.Claim)
		protected.POST("/achievements/claim-visit-reward", achievementHandler.ClaimVisitReward)

		protected.POST("/transfer/token", transferHandler.IssueToken)
		protected.POST("/transfer/redeem", transferHandler.RedeemToken)
	}

	// Staff routes (JWT + staff check)
	staff := r.Group("/api/v1")
	staff.Use(middleware.JWTAuth(jwtManager))
	staff.Use(middleware.StaffAuth())
	{
		staff.POST("/scanner/scan", staffHandler.Scan)
		staff.POST("/codes/issue", staffHandler.IssueCode)
	}

	return r
}
