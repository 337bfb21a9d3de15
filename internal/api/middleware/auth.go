package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	jwtpkg "github.com/AndreyDiak/muzloto-server/internal/pkg/jwt"
	"github.com/AndreyDiak/muzloto-server/internal/pkg/response"
)

// ContextKeyClaims is the gin context key the validated session claims
// are stored under.
const ContextKeyClaims = "user_claims"

// JWTAuth validates the Bearer session token and stores its claims in
// the request context.
func JWTAuth(jwtManager *jwtpkg.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			response.Unauthorized(c, "missing authorization header")
			c.Abort()
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			response.Unauthorized(c, "invalid authorization format")
			c.Abort()
			return
		}

		claims, err := jwtManager.Validate(parts[1])
		if err != nil {
			response.Unauthorized(c, "invalid or expired token")
			c.Abort()
			return
		}

		c.Set(ContextKeyClaims, claims)
		c.Next()
	}
}

// StaffAuth lets only staff sessions through. Must run after JWTAuth.
func StaffAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := ClaimsFrom(c)
		if !ok {
			response.Unauthorized(c, "missing authentication")
			c.Abort()
			return
		}
		if !claims.Staff {
			response.Forbidden(c, "staff access required")
			c.Abort()
			return
		}
		c.Next()
	}
}

// ClaimsFrom retrieves the session claims stored by JWTAuth.
func ClaimsFrom(c *gin.Context) (*jwtpkg.Claims, bool) {
	val, exists := c.Get(ContextKeyClaims)
	if !exists {
		return nil, false
	}
	claims, ok := val.(*jwtpkg.Claims)
	return claims, ok
}
