package application

import (
	"context"
	"crypto/subtle"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/oksasatya/rxcheck-identity/internal/domain/entity"
	"github.com/oksasatya/rxcheck-identity/internal/domain/errs"
	"github.com/oksasatya/rxcheck-identity/internal/domain/port"
	repo "github.com/oksasatya/rxcheck-identity/internal/domain/repository"
	"github.com/oksasatya/rxcheck-identity/pkg/metrics"
)

// ResetService runs the two-step password reset. All state lives on the
// stored user, so requests and confirmations may hit different instances.
type ResetService struct {
	Repo          repo.UserRepository
	Credentials   *CredentialManager
	Notifications *Notifications
	Logger        *logrus.Logger
	// CodeTTL bounds how long a code stays valid. Zero means no expiry.
	CodeTTL time.Duration
	Now     func() time.Time
}

func NewResetService(r repo.UserRepository, creds *CredentialManager, n *Notifications, logger *logrus.Logger, codeTTL time.Duration) *ResetService {
	return &ResetService{
		Repo:          r,
		Credentials:   creds,
		Notifications: n,
		Logger:        logger,
		CodeTTL:       codeTTL,
		Now:           time.Now,
	}
}

// RequestReset attaches a fresh code to the user and notifies them. A
// repeated request replaces the previous code.
func (s *ResetService) RequestReset(ctx context.Context, email string) error {
	u, err := s.activeByEmail(ctx, normalizeEmail(email))
	if err != nil {
		metrics.PasswordResets.WithLabelValues("request", outcome(err)).Inc()
		return err
	}

	code, err := s.Credentials.GenerateResetCode()
	if err != nil {
		return err
	}
	now := s.Now()
	p := u.Params()
	p.ResetCode = code
	p.ResetCodeExpiresAt = nil
	if s.CodeTTL > 0 {
		exp := now.Add(s.CodeTTL)
		p.ResetCodeExpiresAt = &exp
	}
	next, err := u.Replace(p, now)
	if err != nil {
		return err
	}
	if _, err := s.Repo.Update(ctx, next); err != nil {
		return err
	}
	metrics.PasswordResets.WithLabelValues("request", "ok").Inc()

	data := map[string]any{
		"Name": next.FullName(),
		"Code": code,
	}
	if next.ResetCodeExpiresAt != nil {
		data["ExpiresAt"] = next.ResetCodeExpiresAt.UTC().Format(time.RFC3339)
	}
	s.Notifications.Dispatch(ctx, port.NotifyPasswordReset, next.Email, data)
	return nil
}

// ConfirmReset consumes the code and stores the new password hash. The code
// is cleared on success so it cannot be confirmed twice.
func (s *ResetService) ConfirmReset(ctx context.Context, email, code, newPassword string) error {
	u, err := s.activeByEmail(ctx, normalizeEmail(email))
	if err != nil {
		metrics.PasswordResets.WithLabelValues("confirm", outcome(err)).Inc()
		return err
	}

	now := s.Now()
	if !u.ResetCodeValid(now) || subtle.ConstantTimeCompare([]byte(u.ResetCode), []byte(code)) != 1 {
		metrics.PasswordResets.WithLabelValues("confirm", "rejected").Inc()
		if s.Logger != nil {
			s.Logger.WithField("user_id", u.ID).Info("password reset code rejected")
		}
		return ErrInvalidResetCode
	}

	if err := checkPlaintext(newPassword); err != nil {
		return err
	}
	hash, err := s.Credentials.Hash(newPassword)
	if err != nil {
		return err
	}
	p := u.Params()
	p.PasswordHash = hash
	p.ResetCode = ""
	p.ResetCodeExpiresAt = nil
	next, err := u.Replace(p, now)
	if err != nil {
		return err
	}
	if _, err := s.Repo.Update(ctx, next); err != nil {
		return err
	}
	metrics.PasswordResets.WithLabelValues("confirm", "ok").Inc()
	return nil
}

func (s *ResetService) activeByEmail(ctx context.Context, email string) (*entity.User, error) {
	u, err := s.Repo.FindByEmail(ctx, email)
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

func outcome(err error) string {
	switch {
	case errors.Is(err, errs.ErrNotFound):
		return "not_found"
	case errors.Is(err, errs.ErrUnavailable):
		return "unavailable"
	default:
		return "error"
	}
}
