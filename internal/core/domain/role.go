package domain

import "fmt"

// Role is the access level assigned to an identity. Each identity maps
// to at most one role; assigning a new role replaces the old one.
type Role int

const (
	RoleUndefined Role = iota
	RoleBanned
	RoleMember
	RoleAdmin
	RoleOwner
)

func (r Role) String() string {
	switch r {
	case RoleUndefined:
		return "undefined"
	case RoleBanned:
		return "banned"
	case RoleMember:
		return "member"
	case RoleAdmin:
		return "admin"
	case RoleOwner:
		return "owner"
	}

	return fmt.Sprintf("role(%d)", int(r))
}

// Valid reports whether r is one of the defined roles.
func (r Role) Valid() bool {
	return r >= RoleUndefined && r <= RoleOwner
}

// ParseRole converts a role token from config or chat input into a Role.
func ParseRole(s string) (Role, error) {
	switch s {
	case "undefined":
		return RoleUndefined, nil
	case "banned":
		return RoleBanned, nil
	case "member":
		return RoleMember, nil
	case "admin":
		return RoleAdmin, nil
	case "owner":
		return RoleOwner, nil
	}

	return RoleUndefined, fmt.Errorf("%q: %w", s, ErrInvalidRole)
}
