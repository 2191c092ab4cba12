package modules

import (
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/oksasatya/rxcheck-identity/internal/domain/entity"
	handlers "github.com/oksasatya/rxcheck-identity/internal/interface/http"
	"github.com/oksasatya/rxcheck-identity/internal/interface/middleware"
	"github.com/oksasatya/rxcheck-identity/pkg/helpers"
)

// UserModule wires the profile and the users directory.
// Session: GET /me
// Admin: GET/POST /users, GET /users/search, DELETE /users/:identifier
// Self or admin: GET/PUT /users/:identifier, POST /users/:identifier/avatar
type UserModule struct {
	Handler *handlers.UserHandler
	JWT     *helpers.JWTManager
	RDB     *redis.Client
	Limits  Limits
}

func NewUserModule(h *handlers.UserHandler, jwt *helpers.JWTManager, rdb *redis.Client, limits Limits) *UserModule {
	return &UserModule{Handler: h, JWT: jwt, RDB: rdb, Limits: limits}
}

func (m *UserModule) Register(rg *gin.RouterGroup) {
	auth := rg.Group("/")
	auth.Use(
		middleware.Auth(m.JWT),
		middleware.RateLimit(m.RDB, m.Limits.API, m.Limits.Window, middleware.KeyByUserID(), nil),
	)
	auth.GET("/me", m.Handler.Me)

	admin := auth.Group("/users")
	admin.Use(middleware.RequireRole(entity.RoleAdmin))
	{
		admin.GET("", m.Handler.List)
		admin.POST("", m.Handler.Create)
		admin.GET("/search", m.Handler.Search)
		admin.DELETE("/:identifier", m.Handler.Delete)
	}

	self := auth.Group("/users/:identifier")
	self.Use(middleware.SelfOrAdmin("identifier"))
	{
		self.GET("", m.Handler.Get)
		self.PUT("", m.Handler.Update)
		self.POST("/avatar", m.Handler.UploadAvatar)
	}
}
