package overrides

import (
	"context"
	"errors"
	"fmt"
	"time"

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

const overrideColumns = `id, owner_id, feature_slug, override_type, value, expires_at, created_by, created_at, updated_at`

// ActiveUserOverrides returns the user's unexpired overrides.
func (r *Repository) ActiveUserOverrides(ctx context.Context, userID int64) ([]Override, error) {
	return r.queryOverrides(ctx, fmt.Sprintf(`
		SELECT %s FROM user_overrides
		WHERE owner_id = $1 AND (expires_at IS NULL OR expires_at > NOW())
		ORDER BY feature_slug`, overrideColumns), userID)
}

// ActiveOrgOverrides returns the organization's unexpired overrides.
func (r *Repository) ActiveOrgOverrides(ctx context.Context, orgID int64) ([]Override, error) {
	return r.queryOverrides(ctx, fmt.Sprintf(`
		SELECT %s FROM organization_overrides
		WHERE owner_id = $1 AND (expires_at IS NULL OR expires_at > NOW())
		ORDER BY feature_slug`, overrideColumns), orgID)
}

// UpsertUserOverride writes a user-scoped override, replacing any existing
// row for the same (user, feature) pair.
func (r *Repository) UpsertUserOverride(ctx context.Context, o Override) (Override, error) {
	return r.upsert(ctx, "user_overrides", o)
}

// UpsertOrgOverride writes an organization-scoped override.
func (r *Repository) UpsertOrgOverride(ctx context.Context, o Override) (Override, error) {
	return r.upsert(ctx, "organization_overrides", o)
}

// DeleteUserOverride removes a user-scoped override.
func (r *Repository) DeleteUserOverride(ctx context.Context, userID int64, slug string) error {
	return r.delete(ctx, "user_overrides", userID, slug)
}

// DeleteOrgOverride removes an organization-scoped override.
func (r *Repository) DeleteOrgOverride(ctx context.Context, orgID int64, slug string) error {
	return r.delete(ctx, "organization_overrides", orgID, slug)
}

// SweepExpiredUserOverrides deletes lapsed user overrides and returns the
// affected user IDs.
func (r *Repository) SweepExpiredUserOverrides(ctx context.Context, cutoff time.Time) ([]int64, error) {
	return r.sweep(ctx, "user_overrides", cutoff)
}

// SweepExpiredOrgOverrides deletes lapsed organization overrides and returns
// the affected organization IDs.
func (r *Repository) SweepExpiredOrgOverrides(ctx context.Context, cutoff time.Time) ([]int64, error) {
	return r.sweep(ctx, "organization_overrides", cutoff)
}

// MemberPairs returns every member of the organization.
func (r *Repository) MemberPairs(ctx context.Context, orgID int64) ([]Member, error) {
	rows, err := r.pool.Query(ctx, `SELECT user_id, org_id FROM org_members WHERE org_id = $1`, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var members []Member
	for rows.Next() {
		var m Member
		if err := rows.Scan(&m.UserID, &m.OrgID); err != nil {
			return nil, err
		}
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return members, nil
}

func (r *Repository) queryOverrides(ctx context.Context, query string, ownerID int64) ([]Override, error) {
	rows, err := r.pool.Query(ctx, query, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var overrides []Override
	for rows.Next() {
		var o Override
		if err := rows.Scan(&o.ID, &o.OwnerID, &o.FeatureSlug, &o.Type, &o.Value, &o.ExpiresAt, &o.CreatedBy, &o.CreatedAt, &o.UpdatedAt); err != nil {
			return nil, err
		}
		overrides = append(overrides, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return overrides, nil
}

func (r *Repository) upsert(ctx context.Context, table string, o Override) (Override, error) {
	query := fmt.Sprintf(`
		INSERT INTO %s (owner_id, feature_slug, override_type, value, expires_at, created_by)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (owner_id, feature_slug) DO UPDATE SET
			override_type = EXCLUDED.override_type,
			value = EXCLUDED.value,
			expires_at = EXCLUDED.expires_at,
			created_by = EXCLUDED.created_by,
			updated_at = NOW()
		RETURNING %s`, table, overrideColumns)
	var saved Override
	err := r.pool.QueryRow(ctx, query, o.OwnerID, o.FeatureSlug, o.Type, o.Value, o.ExpiresAt, o.CreatedBy).
		Scan(&saved.ID, &saved.OwnerID, &saved.FeatureSlug, &saved.Type, &saved.Value, &saved.ExpiresAt, &saved.CreatedBy, &saved.CreatedAt, &saved.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return Override{}, fmt.Errorf("overrides: unknown feature %s: %w", o.FeatureSlug, httpx.ErrNotFound)
		}
		return Override{}, err
	}
	return saved, nil
}

func (r *Repository) delete(ctx context.Context, table string, ownerID int64, slug string) error {
	tag, err := r.pool.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE owner_id = $1 AND feature_slug = $2`, table), ownerID, slug)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("overrides: no override for owner %d on %s: %w", ownerID, slug, httpx.ErrNotFound)
	}
	return nil
}

func (r *Repository) sweep(ctx context.Context, table string, cutoff time.Time) ([]int64, error) {
	rows, err := r.pool.Query(ctx, fmt.Sprintf(`
		DELETE FROM %s
		WHERE expires_at IS NOT NULL AND expires_at <= $1
		RETURNING owner_id`, table), cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	seen := make(map[int64]struct{})
	var owners []int64
	for rows.Next() {
		var owner int64
		if err := rows.Scan(&owner); err != nil {
			return nil, err
		}
		if _, ok := seen[owner]; ok {
			continue
		}
		seen[owner] = struct{}{}
		owners = append(owners, owner)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return owners, nil
}
