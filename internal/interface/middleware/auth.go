package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/oksasatya/rxcheck-identity/internal/domain/entity"
	"github.com/oksasatya/rxcheck-identity/pkg/helpers"
	"github.com/oksasatya/rxcheck-identity/pkg/response"
)

// Gin context keys set by Auth.
const (
	CtxUserID         = "userID"
	CtxUserEmail      = "userEmail"
	CtxUserRole       = "userRole"
	CtxUserIdentifier = "userIdentifier"
	CtxTempToken      = "tempToken"
)

// BearerToken returns the token from the Authorization header.
func BearerToken(c *gin.Context) string {
	h := strings.TrimSpace(c.GetHeader("Authorization"))
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

// Auth accepts session tokens only. Temporary second-factor tokens carry a
// different audience and are refused here.
func Auth(jwt *helpers.JWTManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := BearerToken(c)
		if token == "" {
			response.Error[any](c, http.StatusUnauthorized, "missing access token", nil)
			return
		}
		claims, err := jwt.ParseAccessToken(token)
		if err != nil {
			response.Error[any](c, http.StatusUnauthorized, "invalid access token", nil)
			return
		}
		c.Set(CtxUserID, claims.SubjectID)
		c.Set(CtxUserEmail, claims.Email)
		c.Set(CtxUserRole, claims.Role)
		c.Set(CtxUserIdentifier, claims.Identifier)
		c.Next()
	}
}

// TempAuth guards the second-factor completion step. It only checks the
// token shape; single use is enforced by the service.
func TempAuth(jwt *helpers.JWTManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := BearerToken(c)
		if token == "" {
			response.Error[any](c, http.StatusUnauthorized, "missing temporary token", nil)
			return
		}
		if _, err := jwt.ParseTemporaryToken(token); err != nil {
			response.Error[any](c, http.StatusUnauthorized, "invalid temporary token", nil)
			return
		}
		c.Set(CtxTempToken, token)
		c.Next()
	}
}

// RequireRole lets through sessions whose role is one of roles. Must run
// after Auth.
func RequireRole(roles ...entity.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		role := entity.Role(c.GetString(CtxUserRole))
		for _, r := range roles {
			if role == r {
				c.Next()
				return
			}
		}
		response.Error[any](c, http.StatusForbidden, "forbidden", nil)
	}
}

// SelfOrAdmin lets admins through, and anyone else only when the path
// parameter names their own identifier.
func SelfOrAdmin(param string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if entity.Role(c.GetString(CtxUserRole)) == entity.RoleAdmin {
			c.Next()
			return
		}
		own := c.GetString(CtxUserIdentifier)
		if own != "" && strings.EqualFold(strings.TrimSpace(c.Param(param)), own) {
			c.Next()
			return
		}
		response.Error[any](c, http.StatusForbidden, "forbidden", nil)
	}
}
