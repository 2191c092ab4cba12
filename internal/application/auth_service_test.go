package application_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/oksasatya/rxcheck-identity/internal/application"
	"github.com/oksasatya/rxcheck-identity/internal/domain/entity"
	"github.com/oksasatya/rxcheck-identity/internal/domain/errs"
	"github.com/oksasatya/rxcheck-identity/internal/infrastructure/memory"
)

func (f *fixture) authService(sf *mockSecondFactor) *application.AuthService {
	s := application.NewAuthService(f.repo, f.creds, sf, f.jwt, memory.NewUsedTokenStore(), f.logger)
	s.Now = f.clock
	return s
}

func withSecondFactor(p *entity.UserParams) {
	p.SecondFactorSecret = "JBSWY3DPEHPK3PXP"
	p.SecondFactorEnabled = true
}

func TestLogin_WithoutSecondFactor(t *testing.T) {
	f := newFixture(t)
	u := f.seed(t, "dante@example.com", "s3cret-pass")
	svc := f.authService(&mockSecondFactor{})

	res, err := svc.Login(f.ctx, application.LoginInput{Email: "  Dante@Example.com ", Password: "s3cret-pass"})
	require.NoError(t, err)
	assert.Equal(t, application.StateAuthenticated, res.State)
	assert.Equal(t, u.ID, res.User.ID)
	assert.WithinDuration(t, f.now.Add(time.Hour), res.ExpiresAt, time.Second)

	claims, err := svc.ValidateToken(f.ctx, res.Token)
	require.NoError(t, err)
	assert.Equal(t, u.ID, claims.SubjectID)
	assert.Equal(t, "GODE561231HDFRNS02", claims.Identifier)
	assert.Equal(t, "patient", claims.Role)
	assert.False(t, claims.RequiresSecondFactor)
	assert.False(t, claims.SecondFactorCompleted)
}

func TestLogin_Rejections(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "dante@example.com", "s3cret-pass")
	f.seed(t, "off@example.com", "s3cret-pass", func(p *entity.UserParams) {
		p.Identifier = "MAPR900215MJCRRS05"
		off := false
		p.Active = &off
	})
	svc := f.authService(&mockSecondFactor{})

	cases := map[string]application.LoginInput{
		"unknown email":  {Email: "nobody@example.com", Password: "s3cret-pass"},
		"wrong password": {Email: "dante@example.com", Password: "wrong-pass"},
		"empty password": {Email: "dante@example.com", Password: ""},
		"inactive user":  {Email: "off@example.com", Password: "s3cret-pass"},
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			res, err := svc.Login(f.ctx, in)
			assert.Nil(t, res)
			assert.ErrorIs(t, err, application.ErrInvalidCredentials)
			assert.ErrorIs(t, err, errs.ErrAuthentication)
		})
	}
}

func TestLogin_SecondFactorRequiresTemporaryToken(t *testing.T) {
	f := newFixture(t)
	u := f.seed(t, "dante@example.com", "s3cret-pass", withSecondFactor)
	sf := &mockSecondFactor{}
	svc := f.authService(sf)

	res, err := svc.Login(f.ctx, application.LoginInput{Email: "dante@example.com", Password: "s3cret-pass"})
	require.NoError(t, err)
	assert.Equal(t, application.StateSecondFactorRequired, res.State)
	assert.WithinDuration(t, f.now.Add(5*time.Minute), res.ExpiresAt, time.Second)

	// A temporary token is not a session.
	_, err = svc.ValidateToken(f.ctx, res.Token)
	assert.ErrorIs(t, err, application.ErrInvalidToken)

	claims, err := f.jwt.ParseTemporaryToken(res.Token)
	require.NoError(t, err)
	assert.Equal(t, u.ID, claims.SubjectID)
	assert.True(t, claims.RequiresSecondFactor)
	sf.AssertNotCalled(t, "VerifyCode", mock.Anything, mock.Anything, mock.Anything)
}

func TestLogin_SecondFactorCodeInline(t *testing.T) {
	f := newFixture(t)
	u := f.seed(t, "dante@example.com", "s3cret-pass", withSecondFactor)
	sf := &mockSecondFactor{}
	sf.On("VerifyCode", mock.Anything, u.ID, "123456").Return(true, nil).Once()
	sf.On("VerifyCode", mock.Anything, u.ID, "000000").Return(false, nil).Once()
	svc := f.authService(sf)

	res, err := svc.Login(f.ctx, application.LoginInput{Email: "dante@example.com", Password: "s3cret-pass", SecondFactorCode: " 123456 "})
	require.NoError(t, err)
	assert.Equal(t, application.StateAuthenticated, res.State)
	claims, err := svc.ValidateToken(f.ctx, res.Token)
	require.NoError(t, err)
	assert.True(t, claims.SecondFactorCompleted)

	_, err = svc.Login(f.ctx, application.LoginInput{Email: "dante@example.com", Password: "s3cret-pass", SecondFactorCode: "000000"})
	assert.ErrorIs(t, err, application.ErrInvalidCode)
	sf.AssertExpectations(t)
}

func TestLogin_SecondFactorOutage(t *testing.T) {
	f := newFixture(t)
	u := f.seed(t, "dante@example.com", "s3cret-pass", withSecondFactor)
	sf := &mockSecondFactor{}
	sf.On("VerifyCode", mock.Anything, u.ID, "123456").Return(false, errs.Unavailable("totp", errors.New("down")))
	svc := f.authService(sf)

	_, err := svc.Login(f.ctx, application.LoginInput{Email: "dante@example.com", Password: "s3cret-pass", SecondFactorCode: "123456"})
	assert.ErrorIs(t, err, errs.ErrUnavailable)
	assert.NotErrorIs(t, err, errs.ErrAuthentication)
}

func TestCompleteSecondFactor(t *testing.T) {
	f := newFixture(t)
	u := f.seed(t, "dante@example.com", "s3cret-pass", withSecondFactor)
	sf := &mockSecondFactor{}
	sf.On("VerifyCode", mock.Anything, u.ID, "654321").Return(true, nil)
	sf.On("VerifyCode", mock.Anything, u.ID, "111111").Return(false, nil)
	svc := f.authService(sf)

	first, err := svc.Login(f.ctx, application.LoginInput{Email: "dante@example.com", Password: "s3cret-pass"})
	require.NoError(t, err)

	_, err = svc.CompleteSecondFactor(f.ctx, first.Token, "111111")
	assert.ErrorIs(t, err, application.ErrInvalidCode)

	res, err := svc.CompleteSecondFactor(f.ctx, first.Token, "654321")
	require.NoError(t, err)
	assert.Equal(t, application.StateAuthenticated, res.State)
	claims, err := svc.ValidateToken(f.ctx, res.Token)
	require.NoError(t, err)
	assert.True(t, claims.SecondFactorCompleted)
	assert.Equal(t, u.ID, claims.SubjectID)

	_, err = svc.CompleteSecondFactor(f.ctx, first.Token, "654321")
	assert.ErrorIs(t, err, application.ErrInvalidToken, "temporary tokens are single use")
}

func TestCompleteSecondFactor_RejectsBadTokens(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "plain@example.com", "s3cret-pass")
	svc := f.authService(&mockSecondFactor{})

	session, err := svc.Login(f.ctx, application.LoginInput{Email: "plain@example.com", Password: "s3cret-pass"})
	require.NoError(t, err)

	for name, token := range map[string]string{
		"garbage":       "not-a-jwt",
		"session token": session.Token,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := svc.CompleteSecondFactor(f.ctx, token, "123456")
			assert.ErrorIs(t, err, application.ErrInvalidToken)
		})
	}
}

func TestCompleteSecondFactor_ExpiredToken(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "dante@example.com", "s3cret-pass", withSecondFactor)
	svc := f.authService(&mockSecondFactor{})

	first, err := svc.Login(f.ctx, application.LoginInput{Email: "dante@example.com", Password: "s3cret-pass"})
	require.NoError(t, err)

	f.now = f.now.Add(6 * time.Minute)
	_, err = svc.CompleteSecondFactor(context.Background(), first.Token, "123456")
	assert.ErrorIs(t, err, application.ErrInvalidToken)
}
