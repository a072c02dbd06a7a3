package entitlements

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/skillforge/skillforge/internal/notify"
	"github.com/skillforge/skillforge/internal/platform/cache"
)

// RepositoryPort defines data access methods for entitlements.
type RepositoryPort interface {
	ListRoles(ctx context.Context) ([]Role, error)
	GetRoleByName(ctx context.Context, name string) (Role, error)
	ListPermissions(ctx context.Context) ([]Permission, error)
	LoadUserRoles(ctx context.Context, userID int64) ([]RoleWithPermissions, error)
	AssignRole(ctx context.Context, userID, roleID, grantedBy int64) (bool, error)
	RemoveRole(ctx context.Context, userID, roleID int64) error
}

// GrantEvaluator is notified when a role is newly granted, so membership
// milestones can be evaluated. Implemented by the achievements service.
type GrantEvaluator interface {
	EvaluateRoleGrant(ctx context.Context, userID int64, roleName string) error
}

// Service orchestrates entitlement reads and grant mutations.
type Service struct {
	repo      RepositoryPort
	cache     *cache.Versioned
	evaluator GrantEvaluator
	sink      notify.Sink
	logger    *slog.Logger
}

// NewService builds a Service instance.
func NewService(repo RepositoryPort, grantCache *cache.Versioned, evaluator GrantEvaluator, sink notify.Sink, logger *slog.Logger) *Service {
	if sink == nil {
		sink = notify.NopSink{}
	}
	return &Service{repo: repo, cache: grantCache, evaluator: evaluator, sink: sink, logger: logger}
}

// ListRoles returns the role catalog.
func (s *Service) ListRoles(ctx context.Context) ([]Role, error) {
	return s.repo.ListRoles(ctx)
}

// ListPermissions returns the permission catalog.
func (s *Service) ListPermissions(ctx context.Context) ([]Permission, error) {
	return s.repo.ListPermissions(ctx)
}

// EffectivePermissions resolves the user's permission set and role names from
// currently assigned roles. Grants are read through the versioned cache, so a
// grant mutation elsewhere invalidates the next check. Integrity warnings are
// logged here; they never turn into authorization failures.
func (s *Service) EffectivePermissions(ctx context.Context, userID int64) (perms []string, roles []string, err error) {
	grants, err := s.loadGrants(ctx, userID)
	if err != nil {
		return nil, nil, fmt.Errorf("entitlements: load grants: %w", err)
	}
	perms, warnings := Resolve(grants)
	for _, w := range warnings {
		s.logger.Warn("entitlement data integrity",
			slog.Int64("user_id", userID),
			slog.String("role", w.RoleName),
			slog.String("detail", w.Detail))
	}
	return perms, RoleNames(grants), nil
}

// AssignRole grants roleName to the user. Granting an already held role is a
// no-op. A new grant invalidates cached permission sets, triggers membership
// milestone evaluation and emits a role_granted event.
func (s *Service) AssignRole(ctx context.Context, userID int64, roleName string, grantedBy int64) error {
	role, err := s.repo.GetRoleByName(ctx, roleName)
	if err != nil {
		return err
	}
	created, err := s.repo.AssignRole(ctx, userID, role.ID, grantedBy)
	if err != nil {
		return fmt.Errorf("entitlements: assign role: %w", err)
	}
	if !created {
		return nil
	}
	if err := s.cache.Bump(ctx); err != nil {
		s.logger.Warn("entitlement cache bump", slog.Any("error", err))
	}
	if s.evaluator != nil {
		if err := s.evaluator.EvaluateRoleGrant(ctx, userID, role.Name); err != nil {
			s.logger.Error("role grant milestone", slog.Int64("user_id", userID), slog.Any("error", err))
		}
	}
	s.sink.Publish(ctx, notify.Event{
		Kind:   notify.KindRoleGranted,
		UserID: userID,
		Fields: map[string]string{
			"role":       role.DisplayName,
			"granted_by": strconv.FormatInt(grantedBy, 10),
		},
	})
	return nil
}

// RemoveRole revokes roleName from the user and emits a role_revoked event.
// Previously awarded badges are deliberately left untouched.
func (s *Service) RemoveRole(ctx context.Context, userID int64, roleName string, removedBy int64) error {
	role, err := s.repo.GetRoleByName(ctx, roleName)
	if err != nil {
		return err
	}
	if err := s.repo.RemoveRole(ctx, userID, role.ID); err != nil {
		return err
	}
	if err := s.cache.Bump(ctx); err != nil {
		s.logger.Warn("entitlement cache bump", slog.Any("error", err))
	}
	s.sink.Publish(ctx, notify.Event{
		Kind:   notify.KindRoleRevoked,
		UserID: userID,
		Fields: map[string]string{
			"role":       role.DisplayName,
			"removed_by": strconv.FormatInt(removedBy, 10),
		},
	})
	return nil
}

func (s *Service) loadGrants(ctx context.Context, userID int64) ([]RoleWithPermissions, error) {
	key, err := s.cache.BuildKey(ctx, "entitlements", "user", strconv.FormatInt(userID, 10))
	if err != nil {
		// Fail open on cache plumbing, closed on the store itself.
		return s.repo.LoadUserRoles(ctx, userID)
	}
	var grants []RoleWithPermissions
	err = s.cache.FetchJSON(ctx, key, &grants, func(ctx context.Context) (interface{}, error) {
		return s.repo.LoadUserRoles(ctx, userID)
	})
	if err != nil {
		return nil, err
	}
	return grants, nil
}
