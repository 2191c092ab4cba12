package modules

import (
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	handlers "github.com/oksasatya/rxcheck-identity/internal/interface/http"
	"github.com/oksasatya/rxcheck-identity/internal/interface/middleware"
	"github.com/oksasatya/rxcheck-identity/pkg/helpers"
)

type AuthModule struct {
	Handler *handlers.AuthHandler
	JWT     *helpers.JWTManager
	RDB     *redis.Client
	Limits  Limits
}

func NewAuthModule(h *handlers.AuthHandler, jwt *helpers.JWTManager, rdb *redis.Client, limits Limits) *AuthModule {
	return &AuthModule{Handler: h, JWT: jwt, RDB: rdb, Limits: limits}
}

func (m *AuthModule) Register(rg *gin.RouterGroup) {
	// Public credential endpoints share an IP+route budget
	limiter := middleware.RateLimit(m.RDB, m.Limits.Auth, m.Limits.Window, middleware.KeyByIPAndPath(), nil)

	auth := rg.Group("/auth")
	auth.POST("/register", limiter, m.Handler.Register)
	auth.POST("/login", limiter, m.Handler.Login)
	auth.POST("/complete-2fa", limiter, middleware.TempAuth(m.JWT), m.Handler.CompleteSecondFactor)
	auth.POST("/validate", m.Handler.Validate)
	auth.POST("/password-reset/request", limiter, m.Handler.RequestPasswordReset)
	auth.POST("/password-reset/confirm", limiter, m.Handler.ConfirmPasswordReset)
}
