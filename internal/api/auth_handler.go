package api

import (
	"errors"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/AndreyDiak/muzloto-server/internal/config"
	"github.com/AndreyDiak/muzloto-server/internal/pkg/initdata"
	jwtpkg "github.com/AndreyDiak/muzloto-server/internal/pkg/jwt"
	"github.com/AndreyDiak/muzloto-server/internal/pkg/response"
	"github.com/AndreyDiak/muzloto-server/internal/service"
)

// initDataMaxAge bounds how old a mini-app login payload may be.
const initDataMaxAge = 24 * time.Hour

// AuthHandler exchanges validated Telegram initData for a session
// token, creating the user row on first contact.
type AuthHandler struct {
	cfg        *config.Config
	accounts   *service.AccountService
	jwtManager *jwtpkg.Manager
}

// NewAuthHandler creates a new AuthHandler instance.
func NewAuthHandler(cfg *config.Config, accounts *service.AccountService, jwtManager *jwtpkg.Manager) *AuthHandler {
	return &AuthHandler{cfg: cfg, accounts: accounts, jwtManager: jwtManager}
}

type loginRequest struct {
	InitData string `json:"init_data" binding:"required"`
}

// Login handles POST /api/v1/auth/login.
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	tgUser, err := initdata.Validate(req.InitData, h.cfg.Bot.Token, initDataMaxAge)
	if err != nil {
		switch {
		case errors.Is(err, initdata.ErrSignatureInvalid), errors.Is(err, initdata.ErrExpired):
			response.Unauthorized(c, err.Error())
		default:
			response.BadRequest(c, err.Error())
		}
		return
	}

	user, err := h.accounts.EnsureUser(c.Request.Context(), tgUser.ID, tgUser.Username)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	staff := h.cfg.IsStaff(user.TelegramID)
	token, err := h.jwtManager.Generate(user.TelegramID, staff)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	response.Success(c, gin.H{
		"token": token,
		"staff": staff,
		"user":  toUserView(user),
	})
}
