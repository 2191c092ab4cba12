package handlers_test

import (
	"bytes"
	"encoding/json"
	"image"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pquerna/otp/totp"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/oksasatya/rxcheck-identity/internal/application"
	"github.com/oksasatya/rxcheck-identity/internal/domain/entity"
	"github.com/oksasatya/rxcheck-identity/internal/infrastructure/memory"
	totpprovider "github.com/oksasatya/rxcheck-identity/internal/infrastructure/totp"
	handlers "github.com/oksasatya/rxcheck-identity/internal/interface/http"
	"github.com/oksasatya/rxcheck-identity/internal/router"
	"github.com/oksasatya/rxcheck-identity/internal/router/modules"
	"github.com/oksasatya/rxcheck-identity/pkg/helpers"
	"github.com/oksasatya/rxcheck-identity/pkg/validation"
)

type envelope struct {
	Status  int             `json:"status"`
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   json.RawMessage `json:"error"`
}

type api struct {
	t      *testing.T
	engine *gin.Engine
	repo   *memory.UserRepository
	creds  *application.CredentialManager
}

func newAPI(t *testing.T) *api {
	t.Helper()
	gin.SetMode(gin.TestMode)
	validation.Init()

	logger := logrus.New()
	logger.SetOutput(io.Discard)
	repo := memory.NewUserRepository()
	creds := application.NewCredentialManager(helpers.NewBcryptHasher(bcrypt.MinCost))
	jwt := helpers.NewJWTManager("test-secret", "rxcheck-test", time.Hour, 5*time.Minute)
	provider := totpprovider.NewProvider(repo, "RxCheck")
	notes := application.NewNotifications(nil, logger, time.Second)

	users := application.NewUserService(repo, creds, &memoryStorage{}, nil, notes, logger)
	authSvc := application.NewAuthService(repo, creds, provider, jwt, memory.NewUsedTokenStore(), logger)
	resets := application.NewResetService(repo, creds, notes, logger, 15*time.Minute)
	factors := application.NewSecondFactorService(repo, provider, notes, logger)

	limits := modules.Limits{Auth: 1000, API: 1000, Window: time.Minute}
	engine := gin.New()
	reg := router.NewRegistry(engine, "/api")
	reg.Add(
		modules.NewAuthModule(handlers.NewAuthHandler(authSvc, users, resets, logger), jwt, nil, limits),
		modules.NewUserModule(handlers.NewUserHandler(users, logger), jwt, nil, limits),
		modules.NewTwoFactorModule(handlers.NewTwoFactorHandler(factors, logger), jwt, nil, limits),
		modules.NewDebugModule(nil, limits),
	)
	reg.RegisterAll()
	return &api{t: t, engine: engine, repo: repo, creds: creds}
}

func (a *api) call(method, path, token string, body any) (*httptest.ResponseRecorder, envelope) {
	a.t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(a.t, err)
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return a.serve(req)
}

func (a *api) serve(req *http.Request) (*httptest.ResponseRecorder, envelope) {
	w := httptest.NewRecorder()
	a.engine.ServeHTTP(w, req)
	var env envelope
	if w.Header().Get("Content-Type") != "image/png" && w.Body.Len() > 0 {
		_ = json.Unmarshal(w.Body.Bytes(), &env)
	}
	return w, env
}

// seedAdmin stores an admin directly, since admins cannot self-register.
func (a *api) seedAdmin() {
	a.t.Helper()
	hash, err := a.creds.Hash("admin-password")
	require.NoError(a.t, err)
	u, err := entity.NewUser(entity.UserParams{
		Name:          "Ana",
		FirstSurname:  "Hernández",
		SecondSurname: "Gil",
		Identifier:    "MAPR900215MJCRRS05",
		Email:         "admin@example.com",
		PasswordHash:  hash,
		Role:          entity.RoleAdmin,
	}, time.Now())
	require.NoError(a.t, err)
	_, err = a.repo.Create(a.t.Context(), u)
	require.NoError(a.t, err)
}

func (a *api) login(email, password string) string {
	a.t.Helper()
	w, env := a.call(http.MethodPost, "/api/auth/login", "", map[string]string{"email": email, "password": password})
	require.Equal(a.t, http.StatusOK, w.Code, w.Body.String())
	var tok struct {
		Token string `json:"token"`
	}
	require.NoError(a.t, json.Unmarshal(env.Data, &tok))
	return tok.Token
}

var patient = map[string]any{
	"name":           "Dante",
	"first_surname":  "Gómez",
	"second_surname": "Rivas",
	"identifier":     "GODE561231HDFRNS02",
	"email":          "dante@example.com",
	"password":       "s3cret-pass",
}

func TestRegisterAndLogin(t *testing.T) {
	a := newAPI(t)

	w, env := a.call(http.MethodPost, "/api/auth/register", "", patient)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var u map[string]any
	require.NoError(t, json.Unmarshal(env.Data, &u))
	assert.Equal(t, "GODE561231HDFRNS02", u["identifier"])
	assert.Equal(t, "patient", u["role"])
	assert.NotContains(t, u, "password_hash")

	w, _ = a.call(http.MethodPost, "/api/auth/register", "", patient)
	assert.Equal(t, http.StatusConflict, w.Code)

	token := a.login("dante@example.com", "s3cret-pass")
	w, env = a.call(http.MethodGet, "/api/me", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(env.Data, &u))
	assert.Equal(t, "dante@example.com", u["email"])

	w, env = a.call(http.MethodPost, "/api/auth/validate", "", map[string]string{"token": token})
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(env.Data, &u))
	assert.Equal(t, "GODE561231HDFRNS02", u["identifier"])

	w, _ = a.call(http.MethodPost, "/api/auth/login", "", map[string]string{"email": "dante@example.com", "password": "wrong-password"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRegisterValidation(t *testing.T) {
	a := newAPI(t)

	bad := map[string]any{}
	for k, v := range patient {
		bad[k] = v
	}
	bad["identifier"] = "GODE561231HDFRNS03"
	w, env := a.call(http.MethodPost, "/api/auth/register", "", bad)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, string(env.Error), "must be a valid CURP")

	bad["identifier"] = "GODE561231HDFRNS02"
	bad["role"] = "admin"
	w, _ = a.call(http.MethodPost, "/api/auth/register", "", bad)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestSecondFactorFlow(t *testing.T) {
	a := newAPI(t)
	w, _ := a.call(http.MethodPost, "/api/auth/register", "", patient)
	require.Equal(t, http.StatusCreated, w.Code)
	token := a.login("dante@example.com", "s3cret-pass")

	w, _ = a.call(http.MethodPost, "/api/2fa/setup", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
	_, err := png.Decode(bytes.NewReader(w.Body.Bytes()))
	require.NoError(t, err)

	stored, err := a.repo.FindByEmail(t.Context(), "dante@example.com")
	require.NoError(t, err)
	assert.Contains(t, w.Header().Get(handlers.HeaderOTPAuthURL), "secret="+stored.SecondFactorSecret)
	code, err := totp.GenerateCode(stored.SecondFactorSecret, time.Now())
	require.NoError(t, err)

	w, _ = a.call(http.MethodPost, "/api/2fa/enable", token, map[string]string{"code": code})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w, env := a.call(http.MethodPost, "/api/auth/login", "", map[string]string{"email": "dante@example.com", "password": "s3cret-pass"})
	require.Equal(t, http.StatusOK, w.Code)
	var tok struct {
		Token                string `json:"token"`
		RequiresSecondFactor bool   `json:"requires_second_factor"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &tok))
	assert.True(t, tok.RequiresSecondFactor)

	w, _ = a.call(http.MethodGet, "/api/me", tok.Token, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code, "temporary token must not open a session")

	w, _ = a.call(http.MethodPost, "/api/auth/complete-2fa", tok.Token, map[string]string{"code": code})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w, _ = a.call(http.MethodPost, "/api/auth/complete-2fa", tok.Token, map[string]string{"code": code})
	assert.Equal(t, http.StatusUnauthorized, w.Code, "temporary token is single use")
}

func TestPasswordResetIsMasked(t *testing.T) {
	a := newAPI(t)
	w, _ := a.call(http.MethodPost, "/api/auth/register", "", patient)
	require.Equal(t, http.StatusCreated, w.Code)

	known, envKnown := a.call(http.MethodPost, "/api/auth/password-reset/request", "", map[string]string{"email": "dante@example.com"})
	unknown, envUnknown := a.call(http.MethodPost, "/api/auth/password-reset/request", "", map[string]string{"email": "nobody@example.com"})
	assert.Equal(t, http.StatusAccepted, known.Code)
	assert.Equal(t, http.StatusAccepted, unknown.Code)
	assert.Equal(t, envKnown.Message, envUnknown.Message)

	stored, err := a.repo.FindByEmail(t.Context(), "dante@example.com")
	require.NoError(t, err)

	w, _ = a.call(http.MethodPost, "/api/auth/password-reset/confirm", "", map[string]string{
		"email": "nobody@example.com", "code": stored.ResetCode, "new_password": "new-password",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = a.call(http.MethodPost, "/api/auth/password-reset/confirm", "", map[string]string{
		"email": "dante@example.com", "code": "ZZZZZZ", "new_password": "new-password",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = a.call(http.MethodPost, "/api/auth/password-reset/confirm", "", map[string]string{
		"email": "Dante@Example.com", "code": strings.ToLower(stored.ResetCode), "new_password": "new-password",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	a.login("dante@example.com", "new-password")
}

func TestDirectoryGuards(t *testing.T) {
	a := newAPI(t)
	a.seedAdmin()
	w, _ := a.call(http.MethodPost, "/api/auth/register", "", patient)
	require.Equal(t, http.StatusCreated, w.Code)

	admin := a.login("admin@example.com", "admin-password")
	user := a.login("dante@example.com", "s3cret-pass")

	w, _ = a.call(http.MethodGet, "/api/users", user, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	w, env := a.call(http.MethodGet, "/api/users", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list []map[string]any
	require.NoError(t, json.Unmarshal(env.Data, &list))
	assert.Len(t, list, 2)

	w, _ = a.call(http.MethodGet, "/api/users/GODE561231HDFRNS02", user, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w, _ = a.call(http.MethodGet, "/api/users/MAPR900215MJCRRS05", user, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, _ = a.call(http.MethodPut, "/api/users/GODE561231HDFRNS02", user, map[string]string{"role": "admin"})
	assert.Equal(t, http.StatusForbidden, w.Code)
	w, env = a.call(http.MethodPut, "/api/users/GODE561231HDFRNS02", user, map[string]string{"phone": "+525512345678"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, string(env.Data), "+525512345678")

	w, _ = a.call(http.MethodPost, "/api/users", admin, map[string]any{
		"name":     "Farmacia Central",
		"tax_id":   "FAR850312AB1",
		"email":    "farmacia@example.com",
		"password": "s3cret-pass",
		"role":     "pharmacy",
	})
	assert.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w, env = a.call(http.MethodGet, "/api/users/search?q=dante", admin, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, string(env.Data))

	w, _ = a.call(http.MethodDelete, "/api/users/GODE561231HDFRNS02", admin, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w, _ = a.call(http.MethodGet, "/api/users/GODE561231HDFRNS02", admin, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	w, _ = a.call(http.MethodPost, "/api/auth/login", "", map[string]string{"email": "dante@example.com", "password": "s3cret-pass"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestUpdatePreHashedPasswordIsAdminOnly(t *testing.T) {
	a := newAPI(t)
	a.seedAdmin()
	w, _ := a.call(http.MethodPost, "/api/auth/register", "", patient)
	require.Equal(t, http.StatusCreated, w.Code)
	user := a.login("dante@example.com", "s3cret-pass")

	w, _ = a.call(http.MethodPut, "/api/users/GODE561231HDFRNS02", user, map[string]any{
		"password":           "plaintext-pass",
		"password_is_hashed": true,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	stored, err := a.repo.FindByIdentifier(t.Context(), "GODE561231HDFRNS02")
	require.NoError(t, err)
	assert.NotEqual(t, "plaintext-pass", stored.PasswordHash)
	assert.True(t, a.creds.IsHash(stored.PasswordHash))
	a.login("dante@example.com", "plaintext-pass")

	admin := a.login("admin@example.com", "admin-password")
	w, env := a.call(http.MethodPut, "/api/users/GODE561231HDFRNS02", admin, map[string]any{
		"password":           "plaintext",
		"password_is_hashed": true,
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, string(env.Error), "password")

	hash, err := a.creds.Hash("imported-pass")
	require.NoError(t, err)
	w, _ = a.call(http.MethodPut, "/api/users/GODE561231HDFRNS02", admin, map[string]any{
		"password":           hash,
		"password_is_hashed": true,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	a.login("dante@example.com", "imported-pass")
}

func TestUploadAvatar(t *testing.T) {
	a := newAPI(t)
	w, _ := a.call(http.MethodPost, "/api/auth/register", "", patient)
	require.Equal(t, http.StatusCreated, w.Code)
	token := a.login("dante@example.com", "s3cret-pass")

	var img bytes.Buffer
	require.NoError(t, png.Encode(&img, image.NewRGBA(image.Rect(0, 0, 40, 40))))
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("avatar", "me.png")
	require.NoError(t, err)
	_, err = fw.Write(img.Bytes())
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/users/GODE561231HDFRNS02/avatar", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	w, env := a.serve(req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var u map[string]any
	require.NoError(t, json.Unmarshal(env.Data, &u))
	assert.Contains(t, u["avatar_url"], "https://objects.test/users/")
}

func TestMetricsEndpoint(t *testing.T) {
	a := newAPI(t)
	req := httptest.NewRequest(http.MethodGet, "/api/metrics", nil)
	w := httptest.NewRecorder()
	a.engine.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "go_goroutines")
}
