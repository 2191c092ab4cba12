package entity

import "github.com/oksasatya/rxcheck-identity/internal/domain/identifier"

// Role is the authorization role of a user.
type Role string

const (
	RolePatient  Role = "patient"
	RoleAdmin    Role = "admin"
	RoleDoctor   Role = "doctor"
	RolePharmacy Role = "pharmacy"
)

// Roles lists every accepted role.
var Roles = []Role{RolePatient, RoleAdmin, RoleDoctor, RolePharmacy}

func (r Role) Valid() bool {
	for _, v := range Roles {
		if r == v {
			return true
		}
	}
	return false
}

// IdentifierKind tells which identifier rules apply to the role. Pharmacies
// register with their tax id.
func (r Role) IdentifierKind() identifier.Kind {
	if r == RolePharmacy {
		return identifier.Tax
	}
	return identifier.National
}

// RequiresSurnames is false only for pharmacies.
func (r Role) RequiresSurnames() bool { return r != RolePharmacy }
