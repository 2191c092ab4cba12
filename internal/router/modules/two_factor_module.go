package modules

import (
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	handlers "github.com/oksasatya/rxcheck-identity/internal/interface/http"
	"github.com/oksasatya/rxcheck-identity/internal/interface/middleware"
	"github.com/oksasatya/rxcheck-identity/pkg/helpers"
)

type TwoFactorModule struct {
	Handler *handlers.TwoFactorHandler
	JWT     *helpers.JWTManager
	RDB     *redis.Client
	Limits  Limits
}

func NewTwoFactorModule(h *handlers.TwoFactorHandler, jwt *helpers.JWTManager, rdb *redis.Client, limits Limits) *TwoFactorModule {
	return &TwoFactorModule{Handler: h, JWT: jwt, RDB: rdb, Limits: limits}
}

func (m *TwoFactorModule) Register(rg *gin.RouterGroup) {
	tf := rg.Group("/2fa")
	tf.Use(
		middleware.Auth(m.JWT),
		// Code guessing is bounded by the stricter auth budget.
		middleware.RateLimit(m.RDB, m.Limits.Auth, m.Limits.Window, middleware.KeyByUserID(), nil),
	)
	{
		tf.POST("/setup", m.Handler.Setup)
		tf.POST("/enable", m.Handler.Enable)
		tf.POST("/verify", m.Handler.Verify)
		tf.POST("/disable", m.Handler.Disable)
	}
}
