package entitlements

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/skillforge/skillforge/internal/notify"
	"github.com/skillforge/skillforge/internal/platform/cache"
	"github.com/skillforge/skillforge/internal/shared"
)

type memoryRepo struct {
	roles     map[string]Role
	grants    map[[2]int64]bool
	loadCalls int
}

func newMemoryRepo(roles ...Role) *memoryRepo {
	repo := &memoryRepo{roles: make(map[string]Role), grants: make(map[[2]int64]bool)}
	for _, r := range roles {
		repo.roles[r.Name] = r
	}
	return repo
}

func (r *memoryRepo) ListRoles(ctx context.Context) ([]Role, error) {
	out := make([]Role, 0, len(r.roles))
	for _, role := range r.roles {
		out = append(out, role)
	}
	return out, nil
}

func (r *memoryRepo) GetRoleByName(ctx context.Context, name string) (Role, error) {
	if role, ok := r.roles[name]; ok {
		return role, nil
	}
	return Role{}, shared.ErrNotFound
}

func (r *memoryRepo) ListPermissions(ctx context.Context) ([]Permission, error) {
	return nil, nil
}

func (r *memoryRepo) LoadUserRoles(ctx context.Context, userID int64) ([]RoleWithPermissions, error) {
	r.loadCalls++
	var out []RoleWithPermissions
	for _, role := range r.roles {
		if r.grants[[2]int64{userID, role.ID}] {
			out = append(out, RoleWithPermissions{
				Role:        role,
				Permissions: []Permission{{ID: role.ID, Name: "perm." + role.Name}},
			})
		}
	}
	return out, nil
}

func (r *memoryRepo) AssignRole(ctx context.Context, userID, roleID, grantedBy int64) (bool, error) {
	key := [2]int64{userID, roleID}
	if r.grants[key] {
		return false, nil
	}
	r.grants[key] = true
	return true, nil
}

func (r *memoryRepo) RemoveRole(ctx context.Context, userID, roleID int64) error {
	key := [2]int64{userID, roleID}
	if !r.grants[key] {
		return shared.ErrNotFound
	}
	delete(r.grants, key)
	return nil
}

type recordingEvaluator struct {
	grants []string
}

func (e *recordingEvaluator) EvaluateRoleGrant(ctx context.Context, userID int64, roleName string) error {
	e.grants = append(e.grants, roleName)
	return nil
}

type recordingSink struct {
	events []notify.Event
}

func (s *recordingSink) Publish(ctx context.Context, ev notify.Event) {
	s.events = append(s.events, ev)
}

func testCache(t *testing.T) *cache.Versioned {
	t.Helper()
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return cache.NewVersioned(client, "entitlements", time.Minute)
}

func TestAssignRoleIsIdempotent(t *testing.T) {
	repo := newMemoryRepo(Role{ID: 1, Name: "dev_pro", DisplayName: "PRO Dev"})
	evaluator := &recordingEvaluator{}
	sink := &recordingSink{}
	svc := NewService(repo, nil, evaluator, sink, slog.Default())
	ctx := context.Background()

	require.NoError(t, svc.AssignRole(ctx, 1, "dev_pro", 99))
	require.NoError(t, svc.AssignRole(ctx, 1, "dev_pro", 99))

	require.Equal(t, []string{"dev_pro"}, evaluator.grants, "repeat grant fires no side effects")
	require.Len(t, sink.events, 1)
	require.Equal(t, notify.KindRoleGranted, sink.events[0].Kind)
	require.Equal(t, "99", sink.events[0].Fields["granted_by"])
}

func TestAssignRoleUnknownRole(t *testing.T) {
	svc := NewService(newMemoryRepo(), nil, nil, nil, slog.Default())
	err := svc.AssignRole(context.Background(), 1, "ghost", 99)
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestRemoveRole(t *testing.T) {
	repo := newMemoryRepo(Role{ID: 1, Name: "moderator", DisplayName: "Moderator"})
	evaluator := &recordingEvaluator{}
	sink := &recordingSink{}
	svc := NewService(repo, nil, evaluator, sink, slog.Default())
	ctx := context.Background()

	require.NoError(t, svc.AssignRole(ctx, 1, "moderator", 99))
	require.NoError(t, svc.RemoveRole(ctx, 1, "moderator", 42))

	perms, roles, err := svc.EffectivePermissions(ctx, 1)
	require.NoError(t, err)
	require.Empty(t, perms)
	require.Empty(t, roles)

	require.Len(t, sink.events, 2)
	require.Equal(t, notify.KindRoleRevoked, sink.events[1].Kind)
	require.Equal(t, "Moderator", sink.events[1].Fields["role"])
	require.Equal(t, "42", sink.events[1].Fields["removed_by"])

	// A second removal finds nothing and announces nothing.
	require.ErrorIs(t, svc.RemoveRole(ctx, 1, "moderator", 42), shared.ErrNotFound)
	require.Len(t, sink.events, 2)
	require.Equal(t, []string{"moderator"}, evaluator.grants, "removal never re-evaluates grants")
}

func TestEffectivePermissionsUnion(t *testing.T) {
	repo := newMemoryRepo(
		Role{ID: 1, Name: "admin", DisplayName: "Administrator"},
		Role{ID: 2, Name: "moderator", DisplayName: "Moderator"},
	)
	svc := NewService(repo, nil, nil, nil, slog.Default())
	ctx := context.Background()

	require.NoError(t, svc.AssignRole(ctx, 5, "admin", 99))
	require.NoError(t, svc.AssignRole(ctx, 5, "moderator", 99))

	perms, roles, err := svc.EffectivePermissions(ctx, 5)
	require.NoError(t, err)
	require.Equal(t, []string{"perm.admin", "perm.moderator"}, perms)
	require.ElementsMatch(t, []string{"admin", "moderator"}, roles)
}

func TestEffectivePermissionsCachedUntilGrantChanges(t *testing.T) {
	repo := newMemoryRepo(Role{ID: 1, Name: "admin", DisplayName: "Administrator"})
	svc := NewService(repo, testCache(t), nil, nil, slog.Default())
	ctx := context.Background()

	require.NoError(t, svc.AssignRole(ctx, 1, "admin", 99))
	loadsAfterAssign := repo.loadCalls

	_, _, err := svc.EffectivePermissions(ctx, 1)
	require.NoError(t, err)
	_, _, err = svc.EffectivePermissions(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, loadsAfterAssign+1, repo.loadCalls, "second read served from cache")

	// A new grant bumps the version; the next read goes to the store.
	repo.roles["moderator"] = Role{ID: 2, Name: "moderator", DisplayName: "Moderator"}
	require.NoError(t, svc.AssignRole(ctx, 1, "moderator", 99))

	perms, _, err := svc.EffectivePermissions(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, []string{"perm.admin", "perm.moderator"}, perms)
}
