// Package totp implements the second factor with RFC 6238 time-based codes.
package totp

import (
	"context"
	"errors"
	"image/png"
	"io"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"

	"github.com/oksasatya/rxcheck-identity/internal/domain/errs"
	"github.com/oksasatya/rxcheck-identity/internal/domain/port"
	"github.com/oksasatya/rxcheck-identity/internal/domain/repository"
)

const (
	period   = 30
	skew     = 1
	qrPixels = 256
)

// Provider stores secrets on the user record and checks codes against them.
type Provider struct {
	repo   repository.UserRepository
	issuer string
	now    func() time.Time
}

func NewProvider(repo repository.UserRepository, issuer string) *Provider {
	return &Provider{repo: repo, issuer: issuer, now: time.Now}
}

// WithClock replaces the time source, for tests.
func (p *Provider) WithClock(now func() time.Time) *Provider {
	p.now = now
	return p
}

func (p *Provider) GenerateSecret(ctx context.Context, subjectID, email string) (string, string, error) {
	u, err := p.repo.FindByID(ctx, subjectID)
	if err != nil {
		return "", "", err
	}
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      p.issuer,
		AccountName: email,
		Period:      period,
		Digits:      otp.DigitsSix,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return "", "", err
	}

	params := u.Params()
	params.SecondFactorSecret = key.Secret()
	next, err := u.Replace(params, p.now())
	if err != nil {
		return "", "", err
	}
	if _, err := p.repo.Update(ctx, next); err != nil {
		return "", "", err
	}
	return key.Secret(), key.URL(), nil
}

// VerifyCode accepts codes from the current step and one step either side.
// Unknown subjects and users without a secret simply fail verification.
func (p *Provider) VerifyCode(ctx context.Context, subjectID, code string) (bool, error) {
	u, err := p.repo.FindByID(ctx, subjectID)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	if u.SecondFactorSecret == "" || code == "" {
		return false, nil
	}
	ok, err := totp.ValidateCustom(code, u.SecondFactorSecret, p.now().UTC(), totp.ValidateOpts{
		Period:    period,
		Skew:      skew,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	if err != nil {
		// Malformed codes are a failed attempt, not an outage.
		return false, nil
	}
	return ok, nil
}

func (p *Provider) RenderChallengeImage(otpAuthURL string, w io.Writer) error {
	key, err := otp.NewKeyFromURL(otpAuthURL)
	if err != nil {
		return errs.Invalid("otpauth_url", "malformed")
	}
	img, err := key.Image(qrPixels, qrPixels)
	if err != nil {
		return err
	}
	return png.Encode(w, img)
}

var _ port.SecondFactorProvider = (*Provider)(nil)
