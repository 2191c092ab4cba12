package entity

import (
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/oksasatya/rxcheck-identity/internal/domain/errs"
	"github.com/oksasatya/rxcheck-identity/internal/domain/identifier"
)

// MinPasswordHashLength is the shortest stored credential accepted.
const MinPasswordHashLength = 8

// User is the aggregate root for the identity domain.
//
// Values are built through NewUser or RestoreUser, which run every invariant.
// Changes go through Params and Replace, never field writes on a persisted
// value.
type User struct {
	ID                      string
	Name                    string
	FirstSurname            string
	SecondSurname           string
	Identifier              string
	TaxID                   string
	AvatarKey               string
	Email                   string
	PasswordHash            string `json:"-"`
	SecondFactorSecret      string `json:"-"`
	SecondFactorEnabled     bool
	Role                    Role
	Active                  bool
	ResetCode               string     `json:"-"`
	ResetCodeExpiresAt      *time.Time `json:"-"`
	BirthDate               string
	LicenseNumber           string
	Phone                   string
	Address                 string
	PrescriptionPermissions json.RawMessage
	TermsAcceptance         json.RawMessage
	CreatedAt               time.Time
	UpdatedAt               time.Time
}

// UserParams carries every field of a user. Active is a pointer so the zero
// value means "default to active".
type UserParams struct {
	ID                      string
	Name                    string
	FirstSurname            string
	SecondSurname           string
	Identifier              string
	TaxID                   string
	AvatarKey               string
	Email                   string
	PasswordHash            string
	SecondFactorSecret      string
	SecondFactorEnabled     bool
	Role                    Role
	Active                  *bool
	ResetCode               string
	ResetCodeExpiresAt      *time.Time
	BirthDate               string
	LicenseNumber           string
	Phone                   string
	Address                 string
	PrescriptionPermissions json.RawMessage
	TermsAcceptance         json.RawMessage
	CreatedAt               time.Time
	UpdatedAt               time.Time
}

// NewUser validates p and returns a user stamped with now as creation time
// when p carries none.
func NewUser(p UserParams, now time.Time) (*User, error) {
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = p.CreatedAt
	}
	return build(p)
}

// RestoreUser rebuilds a stored record. Storage adapters are the only callers
// allowed to supply the id and timestamps.
func RestoreUser(p UserParams) (*User, error) {
	return build(p)
}

func build(p UserParams) (*User, error) {
	if p.Role == "" {
		p.Role = RolePatient
	}
	if !p.Role.Valid() {
		return nil, errs.Invalid("role", "must be one of patient, admin, doctor, pharmacy")
	}
	if !strings.Contains(p.Email, "@") {
		return nil, errs.Invalid("email", "must contain @")
	}
	if len(p.PasswordHash) < MinPasswordHashLength {
		return nil, errs.Invalid("password", "too short")
	}
	if strings.TrimSpace(p.Name) == "" {
		return nil, errs.Invalid("name", "required")
	}
	if p.Role.RequiresSurnames() {
		if strings.TrimSpace(p.FirstSurname) == "" {
			return nil, errs.Invalid("first_surname", "required")
		}
		if strings.TrimSpace(p.SecondSurname) == "" {
			return nil, errs.Invalid("second_surname", "required")
		}
	}

	id, err := identifier.Validate(p.Identifier, p.Role.IdentifierKind())
	if err != nil {
		var idErr *identifier.Error
		if errors.As(err, &idErr) {
			return nil, &errs.ValidationError{Field: "identifier", Reason: string(idErr.Reason), Err: err}
		}
		return nil, err
	}
	if p.TaxID != "" {
		tax, err := identifier.ValidateTax(p.TaxID)
		if err != nil {
			var idErr *identifier.Error
			errors.As(err, &idErr)
			return nil, &errs.ValidationError{Field: "tax_id", Reason: string(idErr.Reason), Err: err}
		}
		p.TaxID = tax
	}

	active := true
	if p.Active != nil {
		active = *p.Active
	}

	return &User{
		ID:                      p.ID,
		Name:                    strings.TrimSpace(p.Name),
		FirstSurname:            strings.TrimSpace(p.FirstSurname),
		SecondSurname:           strings.TrimSpace(p.SecondSurname),
		Identifier:              id,
		TaxID:                   p.TaxID,
		AvatarKey:               p.AvatarKey,
		Email:                   p.Email,
		PasswordHash:            p.PasswordHash,
		SecondFactorSecret:      p.SecondFactorSecret,
		SecondFactorEnabled:     p.SecondFactorEnabled,
		Role:                    p.Role,
		Active:                  active,
		ResetCode:               p.ResetCode,
		ResetCodeExpiresAt:      p.ResetCodeExpiresAt,
		BirthDate:               p.BirthDate,
		LicenseNumber:           p.LicenseNumber,
		Phone:                   p.Phone,
		Address:                 p.Address,
		PrescriptionPermissions: p.PrescriptionPermissions,
		TermsAcceptance:         p.TermsAcceptance,
		CreatedAt:               p.CreatedAt,
		UpdatedAt:               p.UpdatedAt,
	}, nil
}

// Params returns a copy of the user's fields for building a replacement.
func (u *User) Params() UserParams {
	active := u.Active
	return UserParams{
		ID:                      u.ID,
		Name:                    u.Name,
		FirstSurname:            u.FirstSurname,
		SecondSurname:           u.SecondSurname,
		Identifier:              u.Identifier,
		TaxID:                   u.TaxID,
		AvatarKey:               u.AvatarKey,
		Email:                   u.Email,
		PasswordHash:            u.PasswordHash,
		SecondFactorSecret:      u.SecondFactorSecret,
		SecondFactorEnabled:     u.SecondFactorEnabled,
		Role:                    u.Role,
		Active:                  &active,
		ResetCode:               u.ResetCode,
		ResetCodeExpiresAt:      u.ResetCodeExpiresAt,
		BirthDate:               u.BirthDate,
		LicenseNumber:           u.LicenseNumber,
		Phone:                   u.Phone,
		Address:                 u.Address,
		PrescriptionPermissions: u.PrescriptionPermissions,
		TermsAcceptance:         u.TermsAcceptance,
		CreatedAt:               u.CreatedAt,
		UpdatedAt:               u.UpdatedAt,
	}
}

// Replace validates p as the next version of u. Id and creation time are
// carried over, and UpdatedAt is set to now.
func (u *User) Replace(p UserParams, now time.Time) (*User, error) {
	p.ID = u.ID
	p.CreatedAt = u.CreatedAt
	p.UpdatedAt = now
	return build(p)
}

// FullName joins the name parts that are set.
func (u *User) FullName() string {
	parts := []string{u.Name}
	for _, s := range []string{u.FirstSurname, u.SecondSurname} {
		if s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, " ")
}

// ResetCodeValid reports whether a reset code is pending and unexpired.
func (u *User) ResetCodeValid(now time.Time) bool {
	if u.ResetCode == "" {
		return false
	}
	return u.ResetCodeExpiresAt == nil || now.Before(*u.ResetCodeExpiresAt)
}
