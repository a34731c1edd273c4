package model

// Role is a privilege tier. The same closed vocabulary is used at both
// scopes: company-wide (User.Role) and per-machine (MachineAccess.Role).
type Role string

const (
	RoleAdmin      Role = "admin"
	RoleController Role = "controller"
	RoleViewer     Role = "viewer"
)

// Valid reports whether r is one of the recognized roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleController, RoleViewer:
		return true
	}
	return false
}

// Assignable reports whether r may be granted through a user-facing
// operation. Admin is excluded at both scopes: company admins exist only
// via seeding, and machine admins only via the creator grant.
func (r Role) Assignable() bool {
	return r == RoleController || r == RoleViewer
}
