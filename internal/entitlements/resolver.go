package entitlements

import (
	"sort"
	"strings"
)

// IntegrityWarning describes a dangling or malformed link found while
// resolving permissions. Warnings are surfaced for logging; they never fail
// the resolution.
type IntegrityWarning struct {
	RoleName string
	Detail   string
}

// Resolve computes the effective permission set from the user's loaded role
// assignments: the union of permission names across all roles, deduplicated
// and lowercased. Broken links are skipped and reported as warnings so one
// bad row cannot deny unrelated permissions.
func Resolve(grants []RoleWithPermissions) ([]string, []IntegrityWarning) {
	var warnings []IntegrityWarning
	seen := make(map[string]struct{})
	for _, g := range grants {
		if g.Role.Name == "" {
			warnings = append(warnings, IntegrityWarning{Detail: "role with empty name in grant"})
			continue
		}
		for _, p := range g.Permissions {
			name := strings.ToLower(strings.TrimSpace(p.Name))
			if name == "" {
				warnings = append(warnings, IntegrityWarning{
					RoleName: g.Role.Name,
					Detail:   "permission with empty name attached to role",
				})
				continue
			}
			seen[name] = struct{}{}
		}
	}
	perms := make([]string, 0, len(seen))
	for p := range seen {
		perms = append(perms, p)
	}
	sort.Strings(perms)
	return perms, warnings
}

// RoleNames extracts the assigned role names from loaded grants.
func RoleNames(grants []RoleWithPermissions) []string {
	names := make([]string, 0, len(grants))
	for _, g := range grants {
		if g.Role.Name == "" {
			continue
		}
		names = append(names, g.Role.Name)
	}
	return names
}
