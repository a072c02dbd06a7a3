package progression

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/skillforge/skillforge/internal/platform/db"
	"github.com/skillforge/skillforge/internal/shared"
)

// Repository provides PostgreSQL backed persistence for progression records.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// AddXP atomically adds amount to the (user, category) record, creating it
// when absent, and recomputes the stored level in the same statement. The
// single conflict-updating insert serializes concurrent awards on the row,
// so no increment is ever lost. Returns the post-award XP total.
func (r *Repository) AddXP(ctx context.Context, userID int64, category string, amount int64) (int64, error) {
	var newXP int64
	err := r.pool.QueryRow(ctx, `
		INSERT INTO user_xp (user_id, category, xp, level, updated_at)
		VALUES ($1, $2, $3, floor(sqrt($3::numeric / 100))::int + 1, now())
		ON CONFLICT (user_id, category) DO UPDATE
		SET xp = user_xp.xp + excluded.xp,
		    level = floor(sqrt((user_xp.xp + excluded.xp)::numeric / 100))::int + 1,
		    updated_at = now()
		RETURNING xp`,
		userID, category, amount,
	).Scan(&newXP)
	if err != nil {
		return 0, err
	}
	return newXP, nil
}

// RecordQuizPass appends one pass event and returns the user's new pass
// total. Insert and count run in one repeatable-read transaction so the
// returned total always includes the pass just recorded, also under
// concurrent submissions for the same user.
func (r *Repository) RecordQuizPass(ctx context.Context, userID int64) (int, error) {
	var passes int
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			`INSERT INTO quiz_passes (user_id, passed_at) VALUES ($1, now())`,
			userID,
		); err != nil {
			return err
		}
		return tx.QueryRow(ctx,
			`SELECT count(*) FROM quiz_passes WHERE user_id = $1`,
			userID,
		).Scan(&passes)
	})
	if err != nil {
		return 0, err
	}
	return passes, nil
}

// GetRecord fetches one progression record.
func (r *Repository) GetRecord(ctx context.Context, userID int64, category string) (Record, error) {
	var rec Record
	err := r.pool.QueryRow(ctx,
		`SELECT user_id, category, xp, level, updated_at FROM user_xp WHERE user_id = $1 AND category = $2`,
		userID, category,
	).Scan(&rec.UserID, &rec.Category, &rec.XP, &rec.Level, &rec.UpdatedAt)
	if err == pgx.ErrNoRows {
		return Record{}, shared.ErrNotFound
	}
	if err != nil {
		return Record{}, err
	}
	return rec, nil
}

// ListRecords returns all records for one user.
func (r *Repository) ListRecords(ctx context.Context, userID int64) ([]Record, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT user_id, category, xp, level, updated_at FROM user_xp WHERE user_id = $1 ORDER BY category`,
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var records []Record
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.UserID, &rec.Category, &rec.XP, &rec.Level, &rec.UpdatedAt); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// TopEntries returns the highest-XP records for a category joined with user
// display data. Ties break on ascending user id so repeated reads over
// unchanged data order identically.
func (r *Repository) TopEntries(ctx context.Context, category string, limit int) ([]Entry, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT ux.user_id, u.username, COALESCE(u.display_name, ''), ux.xp, ux.level
		FROM user_xp ux
		JOIN users u ON u.id = ux.user_id
		WHERE ux.category = $1
		ORDER BY ux.xp DESC, ux.user_id ASC
		LIMIT $2`,
		category, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.UserID, &e.Username, &e.DisplayName, &e.XP, &e.Level); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
