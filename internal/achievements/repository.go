package achievements

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/skillforge/skillforge/internal/shared"
)

// Repository provides PostgreSQL backed persistence for badges and awards.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ListBadges returns the badge catalog.
func (r *Repository) ListBadges(ctx context.Context) ([]Badge, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, name, display_name, description, icon, category, rarity, xp_reward FROM badges ORDER BY category, name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var badges []Badge
	for rows.Next() {
		var b Badge
		if err := rows.Scan(&b.ID, &b.Name, &b.DisplayName, &b.Description, &b.Icon, &b.Category, &b.Rarity, &b.XPReward); err != nil {
			return nil, err
		}
		badges = append(badges, b)
	}
	return badges, rows.Err()
}

// GetBadgeByName fetches one catalog entry.
func (r *Repository) GetBadgeByName(ctx context.Context, name string) (Badge, error) {
	var b Badge
	err := r.pool.QueryRow(ctx,
		`SELECT id, name, display_name, description, icon, category, rarity, xp_reward FROM badges WHERE name = $1`,
		name,
	).Scan(&b.ID, &b.Name, &b.DisplayName, &b.Description, &b.Icon, &b.Category, &b.Rarity, &b.XPReward)
	if err == pgx.ErrNoRows {
		return Badge{}, shared.ErrNotFound
	}
	if err != nil {
		return Badge{}, err
	}
	return b, nil
}

// ListUserBadges returns all badges held by a user, newest first.
func (r *Repository) ListUserBadges(ctx context.Context, userID int64) ([]Award, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT ub.user_id, ub.badge_id, ub.awarded_at,
		       b.id, b.name, b.display_name, b.description, b.icon, b.category, b.rarity, b.xp_reward
		FROM user_badges ub
		JOIN badges b ON b.id = ub.badge_id
		WHERE ub.user_id = $1
		ORDER BY ub.awarded_at DESC, b.name`,
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var awards []Award
	for rows.Next() {
		var a Award
		if err := rows.Scan(
			&a.UserID, &a.BadgeID, &a.AwardedAt,
			&a.Badge.ID, &a.Badge.Name, &a.Badge.DisplayName, &a.Badge.Description,
			&a.Badge.Icon, &a.Badge.Category, &a.Badge.Rarity, &a.Badge.XPReward,
		); err != nil {
			return nil, err
		}
		awards = append(awards, a)
	}
	return awards, rows.Err()
}

// HasBadge reports whether the user already holds the badge.
func (r *Repository) HasBadge(ctx context.Context, userID, badgeID int64) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM user_badges WHERE user_id = $1 AND badge_id = $2)`,
		userID, badgeID,
	).Scan(&exists)
	return exists, err
}

// GrantBadge inserts the award if absent. The conflict-ignoring insert closes
// the race window between concurrent triggers of the same milestone; the
// returned bool reports whether this call created the award.
func (r *Repository) GrantBadge(ctx context.Context, userID, badgeID int64) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		INSERT INTO user_badges (user_id, badge_id, awarded_at)
		VALUES ($1, $2, now())
		ON CONFLICT (user_id, badge_id) DO NOTHING`,
		userID, badgeID,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}
