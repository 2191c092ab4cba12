package helpers

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	// AudienceSession marks full session tokens.
	AudienceSession = "session"
	// AudienceSecondFactor marks temporary tokens that only complete 2FA.
	AudienceSecondFactor = "second-factor"
)

var ErrWrongTokenKind = errors.New("token not accepted here")

// JWTManager signs and parses HS256 session and temporary tokens.
type JWTManager struct {
	Secret    []byte
	Issuer    string
	AccessTTL time.Duration
	TempTTL   time.Duration

	now func() time.Time
}

func NewJWTManager(secret, issuer string, accessTTL, tempTTL time.Duration) *JWTManager {
	return &JWTManager{
		Secret:    []byte(secret),
		Issuer:    issuer,
		AccessTTL: accessTTL,
		TempTTL:   tempTTL,
		now:       time.Now,
	}
}

// WithClock replaces the time source, for tests.
func (m *JWTManager) WithClock(now func() time.Time) *JWTManager {
	m.now = now
	return m
}

// Subject is the identity a token speaks for.
type Subject struct {
	ID         string
	Email      string
	Role       string
	Identifier string
}

type Claims struct {
	SubjectID             string `json:"subject_id"`
	Email                 string `json:"email"`
	Role                  string `json:"role"`
	Identifier            string `json:"identifier"`
	RequiresSecondFactor  bool   `json:"requires_second_factor,omitempty"`
	SecondFactorCompleted bool   `json:"second_factor_completed,omitempty"`
	jwt.RegisteredClaims
}

func (c *Claims) Subject() Subject {
	return Subject{ID: c.SubjectID, Email: c.Email, Role: c.Role, Identifier: c.Identifier}
}

// GenerateAccessToken issues a full session token.
func (m *JWTManager) GenerateAccessToken(s Subject, secondFactorCompleted bool) (string, time.Time, error) {
	claims := m.claims(s, AudienceSession, m.AccessTTL)
	claims.SecondFactorCompleted = secondFactorCompleted
	return m.sign(claims)
}

// GenerateTemporaryToken issues a short-lived token that can only be
// exchanged at the second-factor completion step.
func (m *JWTManager) GenerateTemporaryToken(s Subject) (string, time.Time, error) {
	claims := m.claims(s, AudienceSecondFactor, m.TempTTL)
	claims.RequiresSecondFactor = true
	return m.sign(claims)
}

// ParseAccessToken accepts session tokens only.
func (m *JWTManager) ParseAccessToken(tokenStr string) (*Claims, error) {
	claims, err := m.parse(tokenStr, AudienceSession)
	if err != nil {
		return nil, err
	}
	if claims.RequiresSecondFactor {
		return nil, ErrWrongTokenKind
	}
	return claims, nil
}

// ParseTemporaryToken accepts second-factor tokens only.
func (m *JWTManager) ParseTemporaryToken(tokenStr string) (*Claims, error) {
	claims, err := m.parse(tokenStr, AudienceSecondFactor)
	if err != nil {
		return nil, err
	}
	if !claims.RequiresSecondFactor {
		return nil, ErrWrongTokenKind
	}
	return claims, nil
}

func (m *JWTManager) claims(s Subject, audience string, ttl time.Duration) *Claims {
	now := m.now()
	return &Claims{
		SubjectID:  s.ID,
		Email:      s.Email,
		Role:       s.Role,
		Identifier: s.Identifier,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   s.ID,
			Issuer:    m.Issuer,
			Audience:  jwt.ClaimStrings{audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
}

func (m *JWTManager) sign(claims *Claims) (string, time.Time, error) {
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := t.SignedString(m.Secret)
	return s, claims.ExpiresAt.Time, err
}

func (m *JWTManager) parse(tokenStr, audience string) (*Claims, error) {
	claims := &Claims{}
	tkn, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return m.Secret, nil
	},
		jwt.WithAudience(audience),
		jwt.WithIssuer(m.Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenInvalidAudience) {
			return nil, ErrWrongTokenKind
		}
		return nil, err
	}
	if !tkn.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}
