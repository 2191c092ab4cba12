package application

import (
	"github.com/oksasatya/rxcheck-identity/internal/domain/errs"
	"github.com/oksasatya/rxcheck-identity/pkg/helpers"
)

const (
	// MinPasswordLength applies to plaintext before hashing.
	MinPasswordLength = 8
	resetCodeLength   = 6
)

// PasswordHasher is the adaptive hashing primitive behind CredentialManager.
type PasswordHasher interface {
	Hash(plain string) (string, error)
	Verify(plain, hash string) bool
	IsHash(s string) bool
}

// CredentialManager owns password hashing and reset code issuance.
type CredentialManager struct {
	hasher PasswordHasher
}

func NewCredentialManager(hasher PasswordHasher) *CredentialManager {
	return &CredentialManager{hasher: hasher}
}

// Hash hashes a plaintext password. Callers holding an existing hash must
// not pass it here.
func (m *CredentialManager) Hash(plain string) (string, error) {
	if plain == "" {
		return "", errs.Invalid("password", "required")
	}
	return m.hasher.Hash(plain)
}

func (m *CredentialManager) Verify(plain, hash string) bool {
	if plain == "" || hash == "" {
		return false
	}
	return m.hasher.Verify(plain, hash)
}

// IsHash reports whether s was produced by the configured primitive.
func (m *CredentialManager) IsHash(s string) bool {
	return s != "" && m.hasher.IsHash(s)
}

// GenerateResetCode returns a 6-character uppercase alphanumeric code from
// crypto/rand.
func (m *CredentialManager) GenerateResetCode() (string, error) {
	return helpers.GenResetCode(resetCodeLength)
}

// checkPlaintext enforces the plaintext policy before hashing.
func checkPlaintext(plain string) error {
	if len(plain) < MinPasswordLength {
		return errs.Invalid("password", "must be at least 8 characters")
	}
	return nil
}
