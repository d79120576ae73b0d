package plans

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

// ListPlans returns all plans ordered by id.
func (r *Repository) ListPlans(ctx context.Context) ([]Plan, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, description, created_at, updated_at FROM plans ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var plans []Plan
	for rows.Next() {
		var p Plan
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		plans = append(plans, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return plans, nil
}

// GetPlan fetches a plan by ID.
func (r *Repository) GetPlan(ctx context.Context, id int64) (Plan, error) {
	var p Plan
	err := r.pool.QueryRow(ctx, `SELECT id, name, description, created_at, updated_at FROM plans WHERE id = $1`, id).
		Scan(&p.ID, &p.Name, &p.Description, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Plan{}, fmt.Errorf("plans: %d: %w", id, httpx.ErrNotFound)
	}
	if err != nil {
		return Plan{}, err
	}
	return p, nil
}

// CreatePlan inserts a new plan.
func (r *Repository) CreatePlan(ctx context.Context, name, description string) (Plan, error) {
	var p Plan
	err := r.pool.QueryRow(ctx, `
		INSERT INTO plans (name, description) VALUES ($1, $2)
		RETURNING id, name, description, created_at, updated_at`,
		name, description).
		Scan(&p.ID, &p.Name, &p.Description, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Plan{}, fmt.Errorf("plans: %s: %w", name, httpx.ErrDuplicate)
		}
		return Plan{}, err
	}
	return p, nil
}

// PlanFeatures returns the feature flags of one plan.
func (r *Repository) PlanFeatures(ctx context.Context, planID int64) ([]PlanFeature, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT plan_id, feature_slug, enabled FROM plan_features
		WHERE plan_id = $1 ORDER BY feature_slug`, planID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var features []PlanFeature
	for rows.Next() {
		var pf PlanFeature
		if err := rows.Scan(&pf.PlanID, &pf.FeatureSlug, &pf.Enabled); err != nil {
			return nil, err
		}
		features = append(features, pf)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return features, nil
}

// PlanLimits returns the usage ceilings of one plan.
func (r *Repository) PlanLimits(ctx context.Context, planID int64) ([]PlanLimit, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT plan_id, feature_slug, max_limit FROM plan_limits
		WHERE plan_id = $1 ORDER BY feature_slug`, planID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var limits []PlanLimit
	for rows.Next() {
		var pl PlanLimit
		if err := rows.Scan(&pl.PlanID, &pl.FeatureSlug, &pl.MaxLimit); err != nil {
			return nil, err
		}
		limits = append(limits, pl)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return limits, nil
}

// SetPlanFeature upserts a plan's flag for one feature.
func (r *Repository) SetPlanFeature(ctx context.Context, planID int64, slug string, enabled bool) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO plan_features (plan_id, feature_slug, enabled)
		VALUES ($1, $2, $3)
		ON CONFLICT (plan_id, feature_slug) DO UPDATE SET enabled = EXCLUDED.enabled`,
		planID, slug, enabled)
	return mapReferenceError(err, slug)
}

// RemovePlanFeature drops a feature from a plan.
func (r *Repository) RemovePlanFeature(ctx context.Context, planID int64, slug string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM plan_features WHERE plan_id = $1 AND feature_slug = $2`, planID, slug)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("plans: feature %s not on plan %d: %w", slug, planID, httpx.ErrNotFound)
	}
	return nil
}

// SetPlanLimit upserts a plan's usage ceiling for one feature.
func (r *Repository) SetPlanLimit(ctx context.Context, planID int64, slug string, maxLimit int64) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO plan_limits (plan_id, feature_slug, max_limit)
		VALUES ($1, $2, $3)
		ON CONFLICT (plan_id, feature_slug) DO UPDATE SET max_limit = EXCLUDED.max_limit`,
		planID, slug, maxLimit)
	return mapReferenceError(err, slug)
}

// RemovePlanLimit drops a plan's ceiling for one feature, making it unlimited.
func (r *Repository) RemovePlanLimit(ctx context.Context, planID int64, slug string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM plan_limits WHERE plan_id = $1 AND feature_slug = $2`, planID, slug)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("plans: limit %s not on plan %d: %w", slug, planID, httpx.ErrNotFound)
	}
	return nil
}

// AssignPlan sets the user's active plan inside an organization, replacing
// any previous one.
func (r *Repository) AssignPlan(ctx context.Context, userID, orgID, planID int64) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO user_plans (user_id, org_id, plan_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, org_id) DO UPDATE SET plan_id = EXCLUDED.plan_id, updated_at = NOW()`,
		userID, orgID, planID)
	return mapReferenceError(err, fmt.Sprintf("plan %d", planID))
}

// UnassignPlan removes the user's plan inside an organization.
func (r *Repository) UnassignPlan(ctx context.Context, userID, orgID int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM user_plans WHERE user_id = $1 AND org_id = $2`, userID, orgID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("plans: no plan assigned to user %d in org %d: %w", userID, orgID, httpx.ErrNotFound)
	}
	return nil
}

// AssignedPairs returns every (user, org) pair currently on the plan.
func (r *Repository) AssignedPairs(ctx context.Context, planID int64) ([]Assignment, error) {
	rows, err := r.pool.Query(ctx, `SELECT user_id, org_id, plan_id FROM user_plans WHERE plan_id = $1`, planID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var pairs []Assignment
	for rows.Next() {
		var a Assignment
		if err := rows.Scan(&a.UserID, &a.OrgID, &a.PlanID); err != nil {
			return nil, err
		}
		pairs = append(pairs, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return pairs, nil
}

func mapReferenceError(err error, ref string) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23503" {
		return fmt.Errorf("plans: unknown reference %s: %w", ref, httpx.ErrNotFound)
	}
	return err
}
