package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oksasatya/rxcheck-identity/internal/domain/entity"
	"github.com/oksasatya/rxcheck-identity/pkg/helpers"
)

func init() { gin.SetMode(gin.TestMode) }

var subject = helpers.Subject{ID: "u1", Email: "dante@example.com", Role: "patient", Identifier: "GODE561231HDFRNS02"}

func do(r http.Handler, method, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuth(t *testing.T) {
	jwt := helpers.NewJWTManager("secret", "test", time.Hour, time.Minute)
	session, _, err := jwt.GenerateAccessToken(subject, false)
	require.NoError(t, err)
	temp, _, err := jwt.GenerateTemporaryToken(subject)
	require.NoError(t, err)

	r := gin.New()
	r.GET("/me", Auth(jwt), func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString(CtxUserID)+"|"+c.GetString(CtxUserIdentifier))
	})
	r.POST("/complete", TempAuth(jwt), func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})

	w := do(r, http.MethodGet, "/me", session)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "u1|GODE561231HDFRNS02", w.Body.String())

	assert.Equal(t, http.StatusUnauthorized, do(r, http.MethodGet, "/me", "").Code)
	assert.Equal(t, http.StatusUnauthorized, do(r, http.MethodGet, "/me", temp).Code, "temporary tokens are not sessions")
	assert.Equal(t, http.StatusUnauthorized, do(r, http.MethodGet, "/me", "garbage").Code)

	assert.Equal(t, http.StatusOK, do(r, http.MethodPost, "/complete", temp).Code)
	assert.Equal(t, http.StatusUnauthorized, do(r, http.MethodPost, "/complete", session).Code)
}

func TestRoleGuards(t *testing.T) {
	jwt := helpers.NewJWTManager("secret", "test", time.Hour, time.Minute)
	patient, _, _ := jwt.GenerateAccessToken(subject, false)
	admin, _, _ := jwt.GenerateAccessToken(helpers.Subject{ID: "a1", Role: "admin", Identifier: "MAPR900215MJCRRS05"}, false)

	r := gin.New()
	r.GET("/users", Auth(jwt), RequireRole(entity.RoleAdmin), func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/users/:identifier", Auth(jwt), SelfOrAdmin("identifier"), func(c *gin.Context) { c.Status(http.StatusOK) })

	assert.Equal(t, http.StatusForbidden, do(r, http.MethodGet, "/users", patient).Code)
	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/users", admin).Code)

	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/users/gode561231hdfrns02", patient).Code)
	assert.Equal(t, http.StatusForbidden, do(r, http.MethodGet, "/users/MAPR900215MJCRRS05", patient).Code)
	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/users/GODE561231HDFRNS02", admin).Code)
}

func TestRateLimitLocalFallback(t *testing.T) {
	r := gin.New()
	r.GET("/login", RateLimit(nil, 2, time.Minute, KeyByIPAndPath(), nil), func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/open", RateLimit(nil, 1, time.Minute, KeyByIP(), func(*gin.Context) bool { return true }), func(c *gin.Context) { c.Status(http.StatusOK) })

	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/login", "").Code)
	w := do(r, http.MethodGet, "/login", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "2", w.Header().Get("X-RateLimit-Limit"))

	w = do(r, http.MethodGet, "/login", "")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "60", w.Header().Get("Retry-After"))

	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/open", "").Code)
	}
}

func TestRequestID(t *testing.T) {
	r := gin.New()
	r.Use(RequestIDMiddleware())
	r.GET("/", func(c *gin.Context) { c.String(http.StatusOK, c.GetString("request_id")) })

	w := do(r, http.MethodGet, "/", "")
	assert.Len(t, w.Body.String(), 36)
	assert.Equal(t, w.Body.String(), w.Header().Get(HeaderRequestID))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderRequestID, "7c1f1e0a-8f6c-4b1e-9d3f-0a2b4c6d8e10")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "7c1f1e0a-8f6c-4b1e-9d3f-0a2b4c6d8e10", w.Body.String())
}

func TestRealIP(t *testing.T) {
	r := gin.New()
	r.Use(RealIP())
	r.GET("/", func(c *gin.Context) { c.String(http.StatusOK, c.GetString("real_ip")) })

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "203.0.113.7", w.Body.String())
}
