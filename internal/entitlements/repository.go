package entitlements

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/skillforge/skillforge/internal/shared"
)

// Repository provides PostgreSQL backed persistence for roles, permissions
// and user grants.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ListRoles returns all catalog roles ordered by name.
func (r *Repository) ListRoles(ctx context.Context) ([]Role, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, display_name, description, created_at, updated_at FROM roles ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var roles []Role
	for rows.Next() {
		var role Role
		if err := rows.Scan(&role.ID, &role.Name, &role.DisplayName, &role.Description, &role.CreatedAt, &role.UpdatedAt); err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	return roles, rows.Err()
}

// GetRoleByName fetches a single role.
func (r *Repository) GetRoleByName(ctx context.Context, name string) (Role, error) {
	var role Role
	err := r.pool.QueryRow(ctx,
		`SELECT id, name, display_name, description, created_at, updated_at FROM roles WHERE name = $1`,
		name,
	).Scan(&role.ID, &role.Name, &role.DisplayName, &role.Description, &role.CreatedAt, &role.UpdatedAt)
	if err == pgx.ErrNoRows {
		return Role{}, shared.ErrNotFound
	}
	if err != nil {
		return Role{}, err
	}
	return role, nil
}

// ListPermissions returns the permission catalog ordered by category then name.
func (r *Repository) ListPermissions(ctx context.Context) ([]Permission, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, category, display_name FROM permissions ORDER BY category, name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var perms []Permission
	for rows.Next() {
		var p Permission
		if err := rows.Scan(&p.ID, &p.Name, &p.Category, &p.DisplayName); err != nil {
			return nil, err
		}
		perms = append(perms, p)
	}
	return perms, rows.Err()
}

// LoadUserRoles loads the user's assigned roles together with each role's
// attached permissions in a single round trip. The explicit join replaces the
// nested relational includes of the previous backend.
func (r *Repository) LoadUserRoles(ctx context.Context, userID int64) ([]RoleWithPermissions, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT r.id, r.name, r.display_name, r.description, r.created_at, r.updated_at,
		       p.id, p.name, p.category, p.display_name
		FROM user_roles ur
		JOIN roles r ON r.id = ur.role_id
		LEFT JOIN role_permissions rp ON rp.role_id = r.id
		LEFT JOIN permissions p ON p.id = rp.permission_id
		WHERE ur.user_id = $1
		ORDER BY r.name, p.name`,
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	byRole := make(map[int64]*RoleWithPermissions)
	var order []int64
	for rows.Next() {
		var role Role
		var permID *int64
		var permName, permCategory, permDisplay *string
		if err := rows.Scan(
			&role.ID, &role.Name, &role.DisplayName, &role.Description, &role.CreatedAt, &role.UpdatedAt,
			&permID, &permName, &permCategory, &permDisplay,
		); err != nil {
			return nil, err
		}
		entry, ok := byRole[role.ID]
		if !ok {
			entry = &RoleWithPermissions{Role: role}
			byRole[role.ID] = entry
			order = append(order, role.ID)
		}
		if permID != nil {
			perm := Permission{ID: *permID}
			if permName != nil {
				perm.Name = *permName
			}
			if permCategory != nil {
				perm.Category = *permCategory
			}
			if permDisplay != nil {
				perm.DisplayName = *permDisplay
			}
			entry.Permissions = append(entry.Permissions, perm)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	grants := make([]RoleWithPermissions, 0, len(order))
	for _, id := range order {
		grants = append(grants, *byRole[id])
	}
	return grants, nil
}

// AssignRole grants a role to a user. The insert is conflict-ignoring on the
// (user_id, role_id) key, so repeated grants are no-ops; the returned bool
// reports whether a new grant row was created.
func (r *Repository) AssignRole(ctx context.Context, userID, roleID, grantedBy int64) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		INSERT INTO user_roles (user_id, role_id, granted_by, granted_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (user_id, role_id) DO NOTHING`,
		userID, roleID, grantedBy,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// RemoveRole deletes a grant. Returns shared.ErrNotFound when no grant existed.
func (r *Repository) RemoveRole(ctx context.Context, userID, roleID int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM user_roles WHERE user_id = $1 AND role_id = $2`, userID, roleID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}
