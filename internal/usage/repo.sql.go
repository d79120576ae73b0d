package usage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/featurekit/featurekit/internal/platform/httpx"
)

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// CountersForUser returns the user's non-zero counters.
func (r *Repository) CountersForUser(ctx context.Context, userID int64) ([]Counter, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT user_id, feature_slug, used, updated_at
		FROM usage_counters
		WHERE user_id = $1 AND used > 0
		ORDER BY feature_slug`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var counters []Counter
	for rows.Next() {
		var c Counter
		if err := rows.Scan(&c.UserID, &c.FeatureSlug, &c.Used, &c.UpdatedAt); err != nil {
			return nil, err
		}
		counters = append(counters, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return counters, nil
}

// Increment adds delta to the counter, inserting the row on first use.
func (r *Repository) Increment(ctx context.Context, userID int64, slug string, delta int64) (Counter, error) {
	var c Counter
	err := r.pool.QueryRow(ctx, `
		INSERT INTO usage_counters (user_id, feature_slug, used)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, feature_slug) DO UPDATE SET
			used = usage_counters.used + EXCLUDED.used,
			updated_at = NOW()
		RETURNING user_id, feature_slug, used, updated_at`, userID, slug, delta).
		Scan(&c.UserID, &c.FeatureSlug, &c.Used, &c.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return Counter{}, fmt.Errorf("usage: unknown feature %s: %w", slug, httpx.ErrNotFound)
		}
		return Counter{}, err
	}
	return c, nil
}

// Reset zeroes one counter. Missing rows are fine: a never-used feature is
// already at zero.
func (r *Repository) Reset(ctx context.Context, userID int64, slug string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE usage_counters SET used = 0, updated_at = NOW()
		WHERE user_id = $1 AND feature_slug = $2`, userID, slug)
	return err
}

// ResetAll zeroes every non-zero counter and returns the affected user IDs.
func (r *Repository) ResetAll(ctx context.Context) ([]int64, error) {
	rows, err := r.pool.Query(ctx, `
		UPDATE usage_counters SET used = 0, updated_at = NOW()
		WHERE used > 0
		RETURNING user_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	seen := make(map[int64]struct{})
	var userIDs []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		userIDs = append(userIDs, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return userIDs, nil
}
