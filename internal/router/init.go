package router

import (
	"github.com/oksasatya/rxcheck-identity/internal/container"
	handlers "github.com/oksasatya/rxcheck-identity/internal/interface/http"
	"github.com/oksasatya/rxcheck-identity/internal/router/modules"
)

// InitModules builds handlers from the container and adds every module to
// the registry. Call once at startup, after the container is populated.
func InitModules(r *Registry) {
	cfg := container.GetConfig()
	logger := container.GetLogger()
	svc := container.GetServices()
	jwt := container.GetJWT()
	rdb := container.GetRedis()

	limits := modules.Limits{
		Auth:   cfg.RateLimitAuth,
		API:    cfg.RateLimitAPI,
		Window: cfg.RateLimitWindow,
	}

	r.Add(
		modules.NewAuthModule(handlers.NewAuthHandler(svc.Auth, svc.Users, svc.Resets, logger), jwt, rdb, limits),
		modules.NewUserModule(handlers.NewUserHandler(svc.Users, logger), jwt, rdb, limits),
		modules.NewTwoFactorModule(handlers.NewTwoFactorHandler(svc.SecondFactor, logger), jwt, rdb, limits),
	)
	if cfg.DebugMetricsEnabled {
		r.Add(modules.NewDebugModule(rdb, limits))
	}
}
