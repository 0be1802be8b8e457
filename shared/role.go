package shared

import "fmt"

// Role is the identity role carried by the access token.
type Role int

const (
	RoleOwner Role = iota
	RoleOperator
	RoleAdmin
	RoleSuperAdmin
)

// Side is the side of a conversation a role writes on.
type Side string

const (
	SideOwner    Side = "owner"
	SideOperator Side = "operator"
)

func (r Role) String() string {
	switch r {
	case RoleOwner:
		return "user"
	case RoleOperator:
		return "support_agent"
	case RoleAdmin:
		return "admin"
	case RoleSuperAdmin:
		return "super_admin"
	}
	return fmt.Sprintf("role(%d)", int(r))
}

// Side maps every role onto a conversation side. Admins reply as operators.
func (r Role) Side() Side {
	switch r {
	case RoleOwner:
		return SideOwner
	case RoleOperator, RoleAdmin, RoleSuperAdmin:
		return SideOperator
	}
	panic(fmt.Sprintf("unknown role %d", int(r)))
}

func (r Role) IsSupport() bool {
	return r.Side() == SideOperator
}

// ParseRole maps a stored role name to a Role. Unknown names fall back to RoleOwner.
func ParseRole(name string) Role {
	switch name {
	case "support_agent", "support":
		return RoleOperator
	case "admin":
		return RoleAdmin
	case "super_admin":
		return RoleSuperAdmin
	default:
		return RoleOwner
	}
}

func (s Side) Opposite() Side {
	if s == SideOwner {
		return SideOperator
	}
	return SideOwner
}

func (s Side) Valid() bool {
	return s == SideOwner || s == SideOperator
}

// Identity is the caller established from a verified access token.
type Identity struct {
	UserID        string
	Role          Role
	Email         string
	EmailVerified bool
}
