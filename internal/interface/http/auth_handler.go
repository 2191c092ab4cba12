package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/oksasatya/rxcheck-identity/internal/application"
	"github.com/oksasatya/rxcheck-identity/internal/domain/entity"
	"github.com/oksasatya/rxcheck-identity/internal/domain/errs"
	"github.com/oksasatya/rxcheck-identity/internal/interface/middleware"
	"github.com/oksasatya/rxcheck-identity/pkg/response"
)

type AuthHandler struct {
	Auth   *application.AuthService
	Users  *application.UserService
	Resets *application.ResetService
	Logger *logrus.Logger
}

func NewAuthHandler(auth *application.AuthService, users *application.UserService, resets *application.ResetService, logger *logrus.Logger) *AuthHandler {
	return &AuthHandler{Auth: auth, Users: users, Resets: resets, Logger: logger}
}

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
	Code     string `json:"code" binding:"omitempty,otp"`
}

type codeRequest struct {
	Code string `json:"code" binding:"required,otp"`
}

type validateRequest struct {
	Token string `json:"token"`
}

type resetRequest struct {
	Email string `json:"email" binding:"required,email"`
}

type resetConfirmRequest struct {
	Email       string `json:"email" binding:"required,email"`
	Code        string `json:"code" binding:"required,len=6"`
	NewPassword string `json:"new_password" binding:"required,pwd"`
}

type tokenResponse struct {
	Token                string        `json:"token"`
	ExpiresAt            time.Time     `json:"expires_at"`
	RequiresSecondFactor bool          `json:"requires_second_factor"`
	User                 *userResponse `json:"user,omitempty"`
}

func toTokenResponse(res *application.LoginResult) tokenResponse {
	out := tokenResponse{
		Token:                res.Token,
		ExpiresAt:            res.ExpiresAt,
		RequiresSecondFactor: res.State == application.StateSecondFactorRequired,
	}
	if res.State == application.StateAuthenticated && res.User != nil {
		u := toUserResponse(res.User, "")
		out.User = &u
	}
	return out
}

// Register creates a non-admin account.
func (h *AuthHandler) Register(c *gin.Context) {
	var req userRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	if req.Role == entity.RoleAdmin {
		response.Error[any](c, http.StatusForbidden, "admin accounts cannot self-register", nil)
		return
	}
	req.PasswordIsHashed = false
	u, err := h.Users.Create(c.Request.Context(), req.input())
	if err != nil {
		writeError(c, h.Logger, err)
		return
	}
	response.Success(c, http.StatusCreated, toUserResponse(u, ""), "registered", nil)
}

// Login returns a session token, or a temporary token when a second factor
// is required and no code was supplied.
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	res, err := h.Auth.Login(c.Request.Context(), application.LoginInput{
		Email:            req.Email,
		Password:         req.Password,
		SecondFactorCode: req.Code,
	})
	if err != nil {
		writeError(c, h.Logger, err)
		return
	}
	msg := "login successful"
	if res.State == application.StateSecondFactorRequired {
		msg = "second factor required"
	}
	response.Success(c, http.StatusOK, toTokenResponse(res), msg, nil)
}

// CompleteSecondFactor exchanges the temporary bearer token and a code for a
// session token.
func (h *AuthHandler) CompleteSecondFactor(c *gin.Context) {
	var req codeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	res, err := h.Auth.CompleteSecondFactor(c.Request.Context(), c.GetString(middleware.CtxTempToken), req.Code)
	if err != nil {
		writeError(c, h.Logger, err)
		return
	}
	response.Success(c, http.StatusOK, toTokenResponse(res), "login successful", nil)
}

// Validate reports who a session token belongs to. The token is read from
// the body, or the Authorization header when the body has none.
func (h *AuthHandler) Validate(c *gin.Context) {
	var req validateRequest
	_ = c.ShouldBindJSON(&req)
	token := req.Token
	if token == "" {
		token = middleware.BearerToken(c)
	}
	if token == "" {
		response.Error[any](c, http.StatusBadRequest, "token is required", nil)
		return
	}
	claims, err := h.Auth.ValidateToken(c.Request.Context(), token)
	if err != nil {
		writeError(c, h.Logger, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{
		"id":         claims.SubjectID,
		"role":       claims.Role,
		"email":      claims.Email,
		"identifier": claims.Identifier,
	}, "token valid", nil)
}

// RequestPasswordReset always answers 202 for unknown accounts so the
// endpoint does not reveal which emails are registered.
func (h *AuthHandler) RequestPasswordReset(c *gin.Context) {
	var req resetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	if err := h.Resets.RequestReset(c.Request.Context(), req.Email); err != nil && !errors.Is(err, errs.ErrNotFound) {
		writeError(c, h.Logger, err)
		return
	}
	response.Message(c, http.StatusAccepted, "if the account exists a reset code was sent")
}

// ConfirmPasswordReset accepts the code in any case; codes are issued uppercase.
func (h *AuthHandler) ConfirmPasswordReset(c *gin.Context) {
	var req resetConfirmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	err := h.Resets.ConfirmReset(c.Request.Context(), req.Email, strings.ToUpper(strings.TrimSpace(req.Code)), req.NewPassword)
	if errors.Is(err, errs.ErrNotFound) {
		err = application.ErrInvalidResetCode
	}
	if err != nil {
		writeError(c, h.Logger, err)
		return
	}
	response.Message(c, http.StatusOK, "password updated")
}
