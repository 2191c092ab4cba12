package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/oksasatya/rxcheck-identity/internal/application"
	"github.com/oksasatya/rxcheck-identity/internal/domain/errs"
	"github.com/oksasatya/rxcheck-identity/pkg/response"
	"github.com/oksasatya/rxcheck-identity/pkg/validation"
)

// writeError maps the domain error taxonomy onto HTTP statuses. Details of
// authentication failures are never echoed. Reset codes are a 400, since the
// caller holds no credential yet.
func writeError(c *gin.Context, logger *logrus.Logger, err error) {
	var ve *errs.ValidationError
	var de *errs.DuplicateError
	switch {
	case errors.As(err, &ve):
		response.Error[any](c, http.StatusBadRequest, "validation failed", map[string]string{ve.Field: ve.Reason})
	case errors.Is(err, errs.ErrValidation):
		response.Error[any](c, http.StatusBadRequest, err.Error(), nil)
	case errors.As(err, &de):
		response.Error[any](c, http.StatusConflict, "already registered", map[string]string{de.Field: "already in use"})
	case errors.Is(err, application.ErrInvalidResetCode):
		response.Error[any](c, http.StatusBadRequest, "invalid or expired reset code", nil)
	case errors.Is(err, errs.ErrAuthentication):
		response.Error[any](c, http.StatusUnauthorized, "authentication failed", nil)
	case errors.Is(err, errs.ErrNotFound):
		response.Error[any](c, http.StatusNotFound, "not found", nil)
	case errors.Is(err, errs.ErrUnavailable):
		logError(c, logger, err)
		response.Error[any](c, http.StatusServiceUnavailable, "service temporarily unavailable", nil)
	default:
		logError(c, logger, err)
		response.Error[any](c, http.StatusInternalServerError, "internal error", nil)
	}
}

func bindError(c *gin.Context, err error) {
	response.Error[any](c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
}

func logError(c *gin.Context, logger *logrus.Logger, err error) {
	if logger == nil {
		return
	}
	logger.WithError(err).WithFields(logrus.Fields{
		"request_id": c.GetString("request_id"),
		"route":      c.FullPath(),
	}).Error("request failed")
}
