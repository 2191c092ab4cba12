package application

import (
	"fmt"

	"github.com/oksasatya/rxcheck-identity/internal/domain/errs"
)

var (
	ErrInvalidCredentials = fmt.Errorf("%w: invalid credentials", errs.ErrAuthentication)
	ErrInvalidCode        = fmt.Errorf("%w: invalid code", errs.ErrAuthentication)
	ErrInvalidToken       = fmt.Errorf("%w: invalid token", errs.ErrAuthentication)
	ErrInvalidResetCode   = fmt.Errorf("%w: invalid or expired reset code", errs.ErrAuthentication)
	ErrUserNotFound       = fmt.Errorf("user %w", errs.ErrNotFound)
	ErrSecondFactorNotSet = fmt.Errorf("%w: second factor not set up", errs.ErrValidation)
	ErrStorageDisabled    = fmt.Errorf("%w: object storage not configured", errs.ErrUnavailable)
)
