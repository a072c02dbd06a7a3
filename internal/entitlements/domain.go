package entitlements

import "time"

// Role represents a named grouping of permissions assignable to users.
type Role struct {
	ID          int64
	Name        string
	DisplayName string
	Description string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Permission represents an atomic capability.
type Permission struct {
	ID          int64
	Name        string
	Category    string
	DisplayName string
}

// Grant records a role assigned to a user, including who granted it.
type Grant struct {
	UserID    int64
	RoleID    int64
	GrantedBy int64
	GrantedAt time.Time
}

// RoleWithPermissions is a role together with its attached permissions, as
// loaded from the entitlement store for one user.
type RoleWithPermissions struct {
	Role        Role
	Permissions []Permission
}

// Premium role names. Granting one of these awards the membership badge.
const (
	RoleDevPro    = "dev_pro"
	RoleGamingPro = "gaming_pro"
)

// IsPremiumRole reports whether the role name designates a premium tier.
func IsPremiumRole(name string) bool {
	return name == RoleDevPro || name == RoleGamingPro
}

// Well known permission names referenced by route policies.
const (
	PermAdminAccess     = "admin.access"
	PermAdminRoles      = "admin.roles"
	PermAdminContent    = "admin.content"
	PermAdminUsers      = "admin.users"
	PermModerateContent = "moderate.content"
	PermModerateUsers   = "moderate.users"
)
