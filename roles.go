package auth

import "strings"

// Role is the coarse capability tag embedded in every token
type Role string

const (
	RoleStudent Role = "Student"
	RoleCitizen Role = "Citizen"
	RoleAdmin   Role = "Admin"
)

// IsValid checks if the role is one of the predefined valid roles.
// Comparison is case sensitive, "admin" is not a role.
func (r Role) IsValid() bool {
	switch r {
	case RoleStudent, RoleCitizen, RoleAdmin:
		return true
	default:
		return false
	}
}

func (r Role) String() string {
	return string(r)
}

// Kind returns the account kind that mints tokens with this role
func (r Role) Kind() (AccountKind, bool) {
	switch r {
	case RoleStudent:
		return KindStudent, true
	case RoleCitizen:
		return KindCitizen, true
	case RoleAdmin:
		return KindAdmin, true
	default:
		return "", false
	}
}

// Role returns the role minted for accounts of this kind
func (k AccountKind) Role() Role {
	switch k {
	case KindStudent:
		return RoleStudent
	case KindCitizen:
		return RoleCitizen
	case KindAdmin:
		return RoleAdmin
	default:
		return ""
	}
}

// ParseRole accepts the canonical role names only
func ParseRole(value string) (Role, error) {
	role := Role(strings.TrimSpace(value))
	if !role.IsValid() {
		return "", withCause(ErrInvalidRole, nil, map[string]any{"role": value})
	}
	return role, nil
}

// GetAllRoles returns all the valid roles
func GetAllRoles() []Role {
	return []Role{RoleStudent, RoleCitizen, RoleAdmin}
}
