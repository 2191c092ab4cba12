package handlers

import (
	"bytes"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/oksasatya/rxcheck-identity/internal/application"
	"github.com/oksasatya/rxcheck-identity/internal/interface/middleware"
	"github.com/oksasatya/rxcheck-identity/pkg/response"
)

const HeaderOTPAuthURL = "X-OTPAuth-URL"

type TwoFactorHandler struct {
	Svc    *application.SecondFactorService
	Logger *logrus.Logger
}

func NewTwoFactorHandler(svc *application.SecondFactorService, logger *logrus.Logger) *TwoFactorHandler {
	return &TwoFactorHandler{Svc: svc, Logger: logger}
}

// Setup answers with the enrollment QR code as PNG and the otpauth URL in a
// header, for clients that cannot scan.
func (h *TwoFactorHandler) Setup(c *gin.Context) {
	setup, err := h.Svc.Setup(c.Request.Context(), c.GetString(middleware.CtxUserID))
	if err != nil {
		writeError(c, h.Logger, err)
		return
	}
	var buf bytes.Buffer
	if err := h.Svc.RenderQR(setup.OTPAuthURL, &buf); err != nil {
		writeError(c, h.Logger, err)
		return
	}
	c.Header(HeaderOTPAuthURL, setup.OTPAuthURL)
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, "image/png", buf.Bytes())
}

func (h *TwoFactorHandler) Enable(c *gin.Context) {
	var req codeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	if err := h.Svc.Enable(c.Request.Context(), c.GetString(middleware.CtxUserID), req.Code); err != nil {
		writeError(c, h.Logger, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"second_factor_enabled": true}, "two-factor authentication enabled", nil)
}

func (h *TwoFactorHandler) Verify(c *gin.Context) {
	var req codeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	ok, err := h.Svc.Verify(c.Request.Context(), c.GetString(middleware.CtxUserID), req.Code)
	if err != nil {
		writeError(c, h.Logger, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"valid": ok}, "code checked", nil)
}

func (h *TwoFactorHandler) Disable(c *gin.Context) {
	if err := h.Svc.Disable(c.Request.Context(), c.GetString(middleware.CtxUserID)); err != nil {
		writeError(c, h.Logger, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"second_factor_enabled": false}, "two-factor authentication disabled", nil)
}
