// Package gate provides composable authorization predicates evaluated
// against an already loaded actor. Predicates are pure: no I/O, no state,
// safe to re-evaluate.
package gate

import (
	"strings"

	"github.com/skillforge/skillforge/internal/shared"
)

// Check is a single authorization predicate.
type Check func(actor *shared.Actor) error

// Authorize runs checks in order, short-circuiting on the first failure.
func Authorize(actor *shared.Actor, checks ...Check) error {
	for _, check := range checks {
		if err := check(actor); err != nil {
			return err
		}
	}
	return nil
}

// RequireAuthenticated fails when no identity is attached.
func RequireAuthenticated() Check {
	return func(actor *shared.Actor) error {
		if actor == nil {
			return shared.ErrUnauthenticated
		}
		return nil
	}
}

// RequireActive fails when the identity is disabled. An absent identity
// fails as unauthenticated.
func RequireActive() Check {
	return func(actor *shared.Actor) error {
		if actor == nil {
			return shared.ErrUnauthenticated
		}
		if !actor.Active {
			return shared.ErrAccountInactive
		}
		return nil
	}
}

// RequireAnyPermission succeeds when the actor holds at least one of the
// given permissions.
func RequireAnyPermission(perms ...string) Check {
	required := normalize(perms)
	return func(actor *shared.Actor) error {
		if actor == nil {
			return shared.ErrUnauthenticated
		}
		if len(required) == 0 {
			return nil
		}
		held := toSet(actor.Permissions)
		for _, p := range required {
			if _, ok := held[p]; ok {
				return nil
			}
		}
		return shared.ErrForbidden
	}
}

// RequireAllPermissions succeeds only when the actor holds every given
// permission.
func RequireAllPermissions(perms ...string) Check {
	required := normalize(perms)
	return func(actor *shared.Actor) error {
		if actor == nil {
			return shared.ErrUnauthenticated
		}
		held := toSet(actor.Permissions)
		for _, p := range required {
			if _, ok := held[p]; !ok {
				return shared.ErrForbidden
			}
		}
		return nil
	}
}

// RequireAnyRole succeeds when the actor's assigned role names intersect the
// given set.
func RequireAnyRole(roles ...string) Check {
	required := normalize(roles)
	return func(actor *shared.Actor) error {
		if actor == nil {
			return shared.ErrUnauthenticated
		}
		if len(required) == 0 {
			return nil
		}
		held := toSet(actor.Roles)
		for _, r := range required {
			if _, ok := held[r]; ok {
				return nil
			}
		}
		return shared.ErrForbidden
	}
}

func normalize(values []string) []string {
	unique := make(map[string]struct{}, len(values))
	for _, v := range values {
		v = strings.TrimSpace(strings.ToLower(v))
		if v == "" {
			continue
		}
		unique[v] = struct{}{}
	}
	normalized := make([]string, 0, len(unique))
	for v := range unique {
		normalized = append(normalized, v)
	}
	return normalized
}

func toSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[strings.ToLower(v)] = struct{}{}
	}
	return set
}
