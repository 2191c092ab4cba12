package modules

import (
	"expvar"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/oksasatya/rxcheck-identity/internal/interface/middleware"
)

type DebugModule struct {
	RDB    *redis.Client
	Limits Limits
}

func NewDebugModule(rdb *redis.Client, limits Limits) *DebugModule {
	return &DebugModule{RDB: rdb, Limits: limits}
}

func (m *DebugModule) Register(rg *gin.RouterGroup) {
	// Rate-limited per IP; private networks (scrapers) bypass the limit
	rl := middleware.RateLimit(m.RDB, m.Limits.API, m.Limits.Window, middleware.KeyByIP(), middleware.AllowPrivateIP())
	rg.GET("/debug/vars", rl, gin.WrapH(expvar.Handler()))
	rg.GET("/metrics", rl, gin.WrapH(promhttp.Handler()))
}
