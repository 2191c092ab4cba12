package application

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/oksasatya/rxcheck-identity/internal/domain/entity"
	"github.com/oksasatya/rxcheck-identity/internal/domain/errs"
	"github.com/oksasatya/rxcheck-identity/internal/domain/port"
	repo "github.com/oksasatya/rxcheck-identity/internal/domain/repository"
)

// SecondFactorService manages a user's TOTP enrollment.
type SecondFactorService struct {
	Repo          repo.UserRepository
	Provider      port.SecondFactorProvider
	Notifications *Notifications
	Logger        *logrus.Logger
	Now           func() time.Time
}

func NewSecondFactorService(r repo.UserRepository, p port.SecondFactorProvider, n *Notifications, logger *logrus.Logger) *SecondFactorService {
	return &SecondFactorService{Repo: r, Provider: p, Notifications: n, Logger: logger, Now: time.Now}
}

type SecondFactorSetup struct {
	Secret     string
	OTPAuthURL string
}

// Setup generates and stores a new secret. The factor stays disabled until
// Enable confirms the user can produce codes.
func (s *SecondFactorService) Setup(ctx context.Context, userID string) (*SecondFactorSetup, error) {
	u, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	if u.SecondFactorEnabled {
		return nil, errs.Invalid("second_factor", "already enabled")
	}
	secret, url, err := s.Provider.GenerateSecret(ctx, u.ID, u.Email)
	if err != nil {
		return nil, err
	}
	return &SecondFactorSetup{Secret: secret, OTPAuthURL: url}, nil
}

// RenderQR writes the enrollment QR code as PNG.
func (s *SecondFactorService) RenderQR(otpAuthURL string, w io.Writer) error {
	return s.Provider.RenderChallengeImage(otpAuthURL, w)
}

func (s *SecondFactorService) Enable(ctx context.Context, userID, code string) error {
	u, err := s.load(ctx, userID)
	if err != nil {
		return err
	}
	if u.SecondFactorSecret == "" {
		return ErrSecondFactorNotSet
	}
	ok, err := s.Provider.VerifyCode(ctx, u.ID, strings.TrimSpace(code))
	if err != nil {
		return err
	}
	if !ok {
		return ErrInvalidCode
	}

	p := u.Params()
	p.SecondFactorEnabled = true
	next, err := u.Replace(p, s.Now())
	if err != nil {
		return err
	}
	if _, err := s.Repo.Update(ctx, next); err != nil {
		return err
	}
	s.Notifications.Dispatch(ctx, port.NotifySecondFactorEnabled, next.Email, map[string]any{
		"Name": next.FullName(),
	})
	return nil
}

// Verify checks a code without changing any state.
func (s *SecondFactorService) Verify(ctx context.Context, userID, code string) (bool, error) {
	u, err := s.load(ctx, userID)
	if err != nil {
		return false, err
	}
	if u.SecondFactorSecret == "" {
		return false, ErrSecondFactorNotSet
	}
	return s.Provider.VerifyCode(ctx, u.ID, strings.TrimSpace(code))
}

// Disable clears the secret and turns the factor off.
func (s *SecondFactorService) Disable(ctx context.Context, userID string) error {
	u, err := s.load(ctx, userID)
	if err != nil {
		return err
	}
	p := u.Params()
	p.SecondFactorEnabled = false
	p.SecondFactorSecret = ""
	next, err := u.Replace(p, s.Now())
	if err != nil {
		return err
	}
	_, err = s.Repo.Update(ctx, next)
	return err
}

func (s *SecondFactorService) load(ctx context.Context, userID string) (*entity.User, error) {
	u, err := s.Repo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	if !u.Active {
		return nil, ErrUserNotFound
	}
	return u, nil
}
