package application

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/oksasatya/rxcheck-identity/internal/domain/entity"
	"github.com/oksasatya/rxcheck-identity/internal/domain/errs"
	"github.com/oksasatya/rxcheck-identity/internal/domain/port"
	repo "github.com/oksasatya/rxcheck-identity/internal/domain/repository"
	"github.com/oksasatya/rxcheck-identity/pkg/helpers"
	"github.com/oksasatya/rxcheck-identity/pkg/metrics"
)

// AuthState is a step of the login state machine.
type AuthState string

const (
	StateStart                AuthState = "START"
	StateCredentialsChecked   AuthState = "CREDENTIALS_CHECKED"
	StateSecondFactorRequired AuthState = "SECOND_FACTOR_REQUIRED"
	StateFactorVerified       AuthState = "FACTOR_VERIFIED"
	StateAuthenticated        AuthState = "AUTHENTICATED"
	StateRejected             AuthState = "REJECTED"
)

type LoginInput struct {
	Email            string
	Password         string
	SecondFactorCode string
}

// LoginResult carries the issued token. State is either StateAuthenticated
// with a session token or StateSecondFactorRequired with a temporary token.
type LoginResult struct {
	State     AuthState
	Token     string
	ExpiresAt time.Time
	User      *entity.User
}

// Never matches a real password; verified against when the email is unknown
// so both paths pay for one bcrypt comparison.
const dummyPassword = "rxcheck-timing-equalizer"

type AuthService struct {
	Repo         repo.UserRepository
	Credentials  *CredentialManager
	SecondFactor port.SecondFactorProvider
	JWT          *helpers.JWTManager
	UsedTokens   port.UsedTokenStore
	Logger       *logrus.Logger
	Now          func() time.Time

	dummyOnce sync.Once
	dummyHash string
}

func NewAuthService(r repo.UserRepository, creds *CredentialManager, sf port.SecondFactorProvider, jwt *helpers.JWTManager, used port.UsedTokenStore, logger *logrus.Logger) *AuthService {
	return &AuthService{
		Repo:         r,
		Credentials:  creds,
		SecondFactor: sf,
		JWT:          jwt,
		UsedTokens:   used,
		Logger:       logger,
		Now:          time.Now,
	}
}

// Login checks the password and either issues a session token, or a
// temporary token when the account has a second factor and no code was sent.
func (s *AuthService) Login(ctx context.Context, in LoginInput) (*LoginResult, error) {
	email := normalizeEmail(in.Email)
	s.transition(StateStart, email)

	u, err := s.Repo.FindByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, errs.ErrNotFound) {
			return nil, err
		}
		s.Credentials.Verify(in.Password, s.dummy())
		return nil, s.reject(email, ErrInvalidCredentials)
	}
	if !s.Credentials.Verify(in.Password, u.PasswordHash) || !u.Active {
		return nil, s.reject(email, ErrInvalidCredentials)
	}
	s.transition(StateCredentialsChecked, email)

	if !u.SecondFactorEnabled {
		return s.issueSession(u, subjectOf(u), false)
	}

	code := strings.TrimSpace(in.SecondFactorCode)
	if code == "" {
		token, exp, err := s.JWT.GenerateTemporaryToken(subjectOf(u))
		if err != nil {
			return nil, err
		}
		s.transition(StateSecondFactorRequired, email)
		return &LoginResult{State: StateSecondFactorRequired, Token: token, ExpiresAt: exp, User: u}, nil
	}

	ok, err := s.SecondFactor.VerifyCode(ctx, u.ID, code)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, s.reject(email, ErrInvalidCode)
	}
	s.transition(StateFactorVerified, email)
	return s.issueSession(u, subjectOf(u), true)
}

// CompleteSecondFactor exchanges a temporary token and a valid code for a
// session token. Each temporary token can be exchanged once.
func (s *AuthService) CompleteSecondFactor(ctx context.Context, tempToken, code string) (*LoginResult, error) {
	claims, err := s.JWT.ParseTemporaryToken(tempToken)
	if err != nil {
		return nil, s.reject("", ErrInvalidToken)
	}
	s.transition(StateSecondFactorRequired, claims.Email)

	u, err := s.Repo.FindByID(ctx, claims.SubjectID)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return nil, s.reject(claims.Email, ErrInvalidToken)
		}
		return nil, err
	}
	if !u.Active || !u.SecondFactorEnabled {
		return nil, s.reject(claims.Email, ErrInvalidToken)
	}

	ok, err := s.SecondFactor.VerifyCode(ctx, u.ID, strings.TrimSpace(code))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, s.reject(claims.Email, ErrInvalidCode)
	}

	if s.UsedTokens != nil {
		ttl := claims.ExpiresAt.Time.Sub(s.Now())
		if ttl < time.Second {
			ttl = time.Second
		}
		first, err := s.UsedTokens.MarkUsed(ctx, claims.ID, ttl)
		if err != nil {
			return nil, err
		}
		if !first {
			return nil, s.reject(claims.Email, ErrInvalidToken)
		}
	}
	s.transition(StateFactorVerified, claims.Email)
	return s.issueSession(u, claims.Subject(), true)
}

// ValidateToken returns the claims of a session token.
func (s *AuthService) ValidateToken(_ context.Context, token string) (*helpers.Claims, error) {
	claims, err := s.JWT.ParseAccessToken(token)
	if err != nil {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func (s *AuthService) issueSession(u *entity.User, subj helpers.Subject, secondFactor bool) (*LoginResult, error) {
	token, exp, err := s.JWT.GenerateAccessToken(subj, secondFactor)
	if err != nil {
		if s.Logger != nil {
			s.Logger.WithError(err).WithField("user_id", u.ID).Error("generate access token failed")
		}
		return nil, err
	}
	s.transition(StateAuthenticated, subj.Email)
	return &LoginResult{State: StateAuthenticated, Token: token, ExpiresAt: exp, User: u}, nil
}

func (s *AuthService) transition(state AuthState, email string) {
	metrics.AuthTransitions.WithLabelValues(string(state)).Inc()
	if s.Logger != nil {
		s.Logger.WithFields(logrus.Fields{"state": state, "email": email}).Debug("auth transition")
	}
}

func (s *AuthService) reject(email string, err error) error {
	s.transition(StateRejected, email)
	return err
}

func (s *AuthService) dummy() string {
	s.dummyOnce.Do(func() {
		h, err := s.Credentials.Hash(dummyPassword)
		if err == nil {
			s.dummyHash = h
		}
	})
	return s.dummyHash
}

func subjectOf(u *entity.User) helpers.Subject {
	return helpers.Subject{ID: u.ID, Email: u.Email, Role: string(u.Role), Identifier: u.Identifier}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
