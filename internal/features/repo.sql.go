package features

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
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

// ListFeatures returns the full catalog ordered by slug.
func (r *Repository) ListFeatures(ctx context.Context) ([]Feature, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, slug, name, description, created_at, updated_at FROM features ORDER BY slug`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var features []Feature
	for rows.Next() {
		var f Feature
		if err := rows.Scan(&f.ID, &f.Slug, &f.Name, &f.Description, &f.CreatedAt, &f.UpdatedAt); err != nil {
			return nil, err
		}
		features = append(features, f)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return features, nil
}

// GetFeature fetches one catalog entry by slug.
func (r *Repository) GetFeature(ctx context.Context, slug string) (Feature, error) {
	var f Feature
	err := r.pool.QueryRow(ctx, `SELECT id, slug, name, description, created_at, updated_at FROM features WHERE slug = $1`, slug).
		Scan(&f.ID, &f.Slug, &f.Name, &f.Description, &f.CreatedAt, &f.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Feature{}, fmt.Errorf("features: %s: %w", slug, httpx.ErrNotFound)
	}
	if err != nil {
		return Feature{}, err
	}
	return f, nil
}

// CreateFeature inserts a new catalog entry.
func (r *Repository) CreateFeature(ctx context.Context, slug, name, description string) (Feature, error) {
	var f Feature
	err := r.pool.QueryRow(ctx, `
		INSERT INTO features (slug, name, description)
		VALUES ($1, $2, $3)
		RETURNING id, slug, name, description, created_at, updated_at`,
		slug, name, description).
		Scan(&f.ID, &f.Slug, &f.Name, &f.Description, &f.CreatedAt, &f.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Feature{}, fmt.Errorf("features: %s: %w", slug, httpx.ErrDuplicate)
		}
		return Feature{}, err
	}
	return f, nil
}

// UpdateFeature updates name and description; the slug is immutable.
func (r *Repository) UpdateFeature(ctx context.Context, slug, name, description string) (Feature, error) {
	var f Feature
	err := r.pool.QueryRow(ctx, `
		UPDATE features SET name = $2, description = $3, updated_at = NOW()
		WHERE slug = $1
		RETURNING id, slug, name, description, created_at, updated_at`,
		slug, name, description).
		Scan(&f.ID, &f.Slug, &f.Name, &f.Description, &f.CreatedAt, &f.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Feature{}, fmt.Errorf("features: %s: %w", slug, httpx.ErrNotFound)
	}
	if err != nil {
		return Feature{}, err
	}
	return f, nil
}

// DeleteFeature removes a catalog entry. Deletion is blocked while the slug
// is still referenced by a plan, role or override.
func (r *Repository) DeleteFeature(ctx context.Context, slug string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM features WHERE slug = $1`, slug)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return fmt.Errorf("features: %s still referenced: %w", slug, httpx.ErrConflict)
		}
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("features: %s: %w", slug, httpx.ErrNotFound)
	}
	return nil
}
