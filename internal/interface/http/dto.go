package handlers

import (
	"encoding/json"
	"time"

	"github.com/oksasatya/rxcheck-identity/internal/application"
	"github.com/oksasatya/rxcheck-identity/internal/domain/entity"
)

type userResponse struct {
	ID                      string          `json:"id"`
	Name                    string          `json:"name"`
	FirstSurname            string          `json:"first_surname,omitempty"`
	SecondSurname           string          `json:"second_surname,omitempty"`
	Identifier              string          `json:"identifier"`
	TaxID                   string          `json:"tax_id,omitempty"`
	Email                   string          `json:"email"`
	Role                    entity.Role     `json:"role"`
	Active                  bool            `json:"active"`
	SecondFactorEnabled     bool            `json:"second_factor_enabled"`
	BirthDate               string          `json:"birth_date,omitempty"`
	LicenseNumber           string          `json:"license_number,omitempty"`
	Phone                   string          `json:"phone,omitempty"`
	Address                 string          `json:"address,omitempty"`
	PrescriptionPermissions json.RawMessage `json:"prescription_permissions,omitempty"`
	TermsAcceptance         json.RawMessage `json:"terms_acceptance,omitempty"`
	AvatarURL               string          `json:"avatar_url,omitempty"`
	CreatedAt               time.Time       `json:"created_at"`
	UpdatedAt               time.Time       `json:"updated_at"`
}

func toUserResponse(u *entity.User, avatarURL string) userResponse {
	return userResponse{
		ID:                      u.ID,
		Name:                    u.Name,
		FirstSurname:            u.FirstSurname,
		SecondSurname:           u.SecondSurname,
		Identifier:              u.Identifier,
		TaxID:                   u.TaxID,
		Email:                   u.Email,
		Role:                    u.Role,
		Active:                  u.Active,
		SecondFactorEnabled:     u.SecondFactorEnabled,
		BirthDate:               u.BirthDate,
		LicenseNumber:           u.LicenseNumber,
		Phone:                   u.Phone,
		Address:                 u.Address,
		PrescriptionPermissions: u.PrescriptionPermissions,
		TermsAcceptance:         u.TermsAcceptance,
		AvatarURL:               avatarURL,
		CreatedAt:               u.CreatedAt,
		UpdatedAt:               u.UpdatedAt,
	}
}

func fromAvatar(u *application.UserWithAvatar) userResponse {
	return toUserResponse(u.User, u.AvatarURL)
}

// userRequest is shared by register and admin create.
type userRequest struct {
	Name                    string          `json:"name" binding:"required"`
	FirstSurname            string          `json:"first_surname"`
	SecondSurname           string          `json:"second_surname"`
	Identifier              string          `json:"identifier" binding:"omitempty,curp"`
	TaxID                   string          `json:"tax_id" binding:"omitempty,rfc"`
	Email                   string          `json:"email" binding:"required,email"`
	Password                string          `json:"password" binding:"required"`
	PasswordIsHashed        bool            `json:"password_is_hashed"`
	Role                    entity.Role     `json:"role" binding:"omitempty,role"`
	BirthDate               string          `json:"birth_date"`
	LicenseNumber           string          `json:"license_number"`
	Phone                   string          `json:"phone"`
	Address                 string          `json:"address"`
	PrescriptionPermissions json.RawMessage `json:"prescription_permissions"`
	TermsAcceptance         json.RawMessage `json:"terms_acceptance"`
}

func (r userRequest) input() application.CreateUserInput {
	return application.CreateUserInput{
		Name:                    r.Name,
		FirstSurname:            r.FirstSurname,
		SecondSurname:           r.SecondSurname,
		Identifier:              r.Identifier,
		TaxID:                   r.TaxID,
		Email:                   r.Email,
		Password:                r.Password,
		PasswordIsHashed:        r.PasswordIsHashed,
		Role:                    r.Role,
		BirthDate:               r.BirthDate,
		LicenseNumber:           r.LicenseNumber,
		Phone:                   r.Phone,
		Address:                 r.Address,
		PrescriptionPermissions: r.PrescriptionPermissions,
		TermsAcceptance:         r.TermsAcceptance,
	}
}

type updateUserRequest struct {
	Name                    string          `json:"name"`
	FirstSurname            string          `json:"first_surname"`
	SecondSurname           string          `json:"second_surname"`
	TaxID                   string          `json:"tax_id" binding:"omitempty,rfc"`
	Email                   string          `json:"email" binding:"omitempty,email"`
	Password                string          `json:"password"`
	PasswordIsHashed        bool            `json:"password_is_hashed"`
	Role                    entity.Role     `json:"role" binding:"omitempty,role"`
	BirthDate               string          `json:"birth_date"`
	LicenseNumber           string          `json:"license_number"`
	Phone                   string          `json:"phone"`
	Address                 string          `json:"address"`
	PrescriptionPermissions json.RawMessage `json:"prescription_permissions"`
	TermsAcceptance         json.RawMessage `json:"terms_acceptance"`
}

func (r updateUserRequest) input() application.UpdateUserInput {
	return application.UpdateUserInput{
		Name:                    r.Name,
		FirstSurname:            r.FirstSurname,
		SecondSurname:           r.SecondSurname,
		TaxID:                   r.TaxID,
		Email:                   r.Email,
		Password:                r.Password,
		PasswordIsHashed:        r.PasswordIsHashed,
		Role:                    r.Role,
		BirthDate:               r.BirthDate,
		LicenseNumber:           r.LicenseNumber,
		Phone:                   r.Phone,
		Address:                 r.Address,
		PrescriptionPermissions: r.PrescriptionPermissions,
		TermsAcceptance:         r.TermsAcceptance,
	}
}
