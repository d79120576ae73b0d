package roles

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/featurekit/featurekit/internal/platform/db"
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

// ListRoles returns all roles of one organization.
func (r *Repository) ListRoles(ctx context.Context, orgID int64) ([]Role, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, org_id, name, description, created_at, updated_at
		FROM roles WHERE org_id = $1 ORDER BY id`, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var roles []Role
	for rows.Next() {
		var role Role
		if err := rows.Scan(&role.ID, &role.OrgID, &role.Name, &role.Description, &role.CreatedAt, &role.UpdatedAt); err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return roles, nil
}

// GetRole fetches a role by ID.
func (r *Repository) GetRole(ctx context.Context, id int64) (Role, error) {
	var role Role
	err := r.pool.QueryRow(ctx, `
		SELECT id, org_id, name, description, created_at, updated_at
		FROM roles WHERE id = $1`, id).
		Scan(&role.ID, &role.OrgID, &role.Name, &role.Description, &role.CreatedAt, &role.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Role{}, fmt.Errorf("roles: %d: %w", id, httpx.ErrNotFound)
	}
	if err != nil {
		return Role{}, err
	}
	return role, nil
}

// CreateRole inserts a new role.
func (r *Repository) CreateRole(ctx context.Context, orgID int64, name, description string) (Role, error) {
	var role Role
	err := r.pool.QueryRow(ctx, `
		INSERT INTO roles (org_id, name, description)
		VALUES ($1, $2, $3)
		RETURNING id, org_id, name, description, created_at, updated_at`,
		orgID, name, description).
		Scan(&role.ID, &role.OrgID, &role.Name, &role.Description, &role.CreatedAt, &role.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Role{}, fmt.Errorf("roles: %s: %w", name, httpx.ErrDuplicate)
		}
		return Role{}, err
	}
	return role, nil
}

// DeleteRole removes a role together with its grants and holder links in
// one transaction.
func (r *Repository) DeleteRole(ctx context.Context, id int64) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM role_permissions WHERE role_id = $1`, id); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `DELETE FROM user_roles WHERE role_id = $1`, id); err != nil {
			return err
		}
		tag, err := tx.Exec(ctx, `DELETE FROM roles WHERE id = $1`, id)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("roles: %d: %w", id, httpx.ErrNotFound)
		}
		return nil
	})
}

// RoleGrants returns the grant rows of one role.
func (r *Repository) RoleGrants(ctx context.Context, roleID int64) ([]Grant, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT role_id, feature_slug, created_at FROM role_permissions
		WHERE role_id = $1 ORDER BY feature_slug`, roleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var grants []Grant
	for rows.Next() {
		var g Grant
		if err := rows.Scan(&g.RoleID, &g.FeatureSlug, &g.CreatedAt); err != nil {
			return nil, err
		}
		grants = append(grants, g)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return grants, nil
}

// Grant records a feature grant; granting twice is a no-op.
func (r *Repository) Grant(ctx context.Context, roleID int64, slug string) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO role_permissions (role_id, feature_slug)
		VALUES ($1, $2)
		ON CONFLICT (role_id, feature_slug) DO NOTHING`, roleID, slug)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return fmt.Errorf("roles: unknown role or feature %s: %w", slug, httpx.ErrNotFound)
		}
		return err
	}
	return nil
}

// Revoke deletes the grant row.
func (r *Repository) Revoke(ctx context.Context, roleID int64, slug string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM role_permissions WHERE role_id = $1 AND feature_slug = $2`, roleID, slug)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("roles: %s not granted by role %d: %w", slug, roleID, httpx.ErrNotFound)
	}
	return nil
}

// AssignRole gives a user the role inside one organization.
func (r *Repository) AssignRole(ctx context.Context, userID, roleID, orgID int64) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO user_roles (user_id, role_id, org_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, role_id, org_id) DO NOTHING`, userID, roleID, orgID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return fmt.Errorf("roles: unknown user or role: %w", httpx.ErrNotFound)
		}
		return err
	}
	return nil
}

// RemoveRole takes the role away from a user.
func (r *Repository) RemoveRole(ctx context.Context, userID, roleID, orgID int64) error {
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM user_roles WHERE user_id = $1 AND role_id = $2 AND org_id = $3`,
		userID, roleID, orgID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("roles: user %d does not hold role %d: %w", userID, roleID, httpx.ErrNotFound)
	}
	return nil
}

// UserRolePermissions aggregates distinct granted slugs across the user's
// roles inside one organization.
func (r *Repository) UserRolePermissions(ctx context.Context, userID, orgID int64) ([]string, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT DISTINCT rp.feature_slug
		FROM user_roles ur
		JOIN role_permissions rp ON rp.role_id = ur.role_id
		WHERE ur.user_id = $1 AND ur.org_id = $2
		ORDER BY rp.feature_slug`, userID, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var slugs []string
	for rows.Next() {
		var slug string
		if err := rows.Scan(&slug); err != nil {
			return nil, err
		}
		slugs = append(slugs, slug)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return slugs, nil
}

// Holders returns every (user, org) pair holding the role.
func (r *Repository) Holders(ctx context.Context, roleID int64) ([]Holder, error) {
	rows, err := r.pool.Query(ctx, `SELECT user_id, org_id FROM user_roles WHERE role_id = $1`, roleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var holders []Holder
	for rows.Next() {
		var h Holder
		if err := rows.Scan(&h.UserID, &h.OrgID); err != nil {
			return nil, err
		}
		holders = append(holders, h)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return holders, nil
}
