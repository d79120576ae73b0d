package plans

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/featurekit/featurekit/internal/entitlement"
	"github.com/featurekit/featurekit/internal/platform/cache"
	"github.com/featurekit/featurekit/internal/platform/httpx"
	"github.com/featurekit/featurekit/internal/shared"
)

// Invalidator evicts resolved permission maps after a mutation. Eviction is
// best-effort and never fails the mutation.
type Invalidator interface {
	InvalidatePair(ctx context.Context, userID, orgID int64)
}

// FeaturesKey is the provider cache key for one plan's feature flags.
func FeaturesKey(planID int64) string { return fmt.Sprintf("plan-features:%d", planID) }

// LimitsKey is the provider cache key for one plan's usage ceilings.
func LimitsKey(planID int64) string { return fmt.Sprintf("plan-limits:%d", planID) }

// Service handles plan business logic and drives the fan-out invalidation
// that keeps resolved permission maps coherent with plan changes.
type Service struct {
	repo        RepositoryPort
	cache       *cache.JSONCache
	invalidator Invalidator
	audit       *shared.AuditLogger
	logger      *slog.Logger
}

// NewService builds a Service instance.
func NewService(repo RepositoryPort, c *cache.JSONCache, invalidator Invalidator, audit *shared.AuditLogger, logger *slog.Logger) *Service {
	return &Service{repo: repo, cache: c, invalidator: invalidator, audit: audit, logger: logger}
}

// ListPlans returns all plans.
func (s *Service) ListPlans(ctx context.Context) ([]Plan, error) {
	return s.repo.ListPlans(ctx)
}

// GetPlan fetches a plan by ID.
func (s *Service) GetPlan(ctx context.Context, id int64) (Plan, error) {
	return s.repo.GetPlan(ctx, id)
}

// CreatePlan inserts a new plan.
func (s *Service) CreatePlan(ctx context.Context, actorID int64, name, description string) (Plan, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Plan{}, fmt.Errorf("plans: name required: %w", httpx.ErrValidation)
	}
	plan, err := s.repo.CreatePlan(ctx, name, strings.TrimSpace(description))
	if err != nil {
		return Plan{}, err
	}
	s.record(ctx, actorID, "plan.create", plan.ID, nil)
	return plan, nil
}

// PlanFeatures returns a plan's feature flags in engine shape, served from
// the provider cache when possible.
func (s *Service) PlanFeatures(ctx context.Context, planID int64) ([]entitlement.PlanFeature, error) {
	var rows []PlanFeature
	err := s.cache.Fetch(ctx, FeaturesKey(planID), &rows, func(ctx context.Context) (interface{}, error) {
		return s.repo.PlanFeatures(ctx, planID)
	})
	if err != nil {
		return nil, err
	}
	features := make([]entitlement.PlanFeature, len(rows))
	for i, row := range rows {
		features[i] = entitlement.PlanFeature{Slug: row.FeatureSlug, Enabled: row.Enabled}
	}
	return features, nil
}

// PlanLimits returns a plan's ceilings in engine shape, cache-through.
func (s *Service) PlanLimits(ctx context.Context, planID int64) ([]entitlement.PlanLimit, error) {
	var rows []PlanLimit
	err := s.cache.Fetch(ctx, LimitsKey(planID), &rows, func(ctx context.Context) (interface{}, error) {
		return s.repo.PlanLimits(ctx, planID)
	})
	if err != nil {
		return nil, err
	}
	limits := make([]entitlement.PlanLimit, len(rows))
	for i, row := range rows {
		limits[i] = entitlement.PlanLimit{Slug: row.FeatureSlug, Max: row.MaxLimit}
	}
	return limits, nil
}

// SetPlanFeature toggles a feature on a plan and invalidates every assignee.
func (s *Service) SetPlanFeature(ctx context.Context, actorID, planID int64, slug string, enabled bool) error {
	slug = strings.TrimSpace(slug)
	if slug == "" {
		return fmt.Errorf("plans: feature slug required: %w", httpx.ErrValidation)
	}
	if err := s.repo.SetPlanFeature(ctx, planID, slug, enabled); err != nil {
		return err
	}
	s.record(ctx, actorID, "plan.feature.set", planID, map[string]any{"feature_slug": slug, "enabled": enabled})
	s.fanOut(ctx, planID, FeaturesKey(planID))
	return nil
}

// RemovePlanFeature drops a feature from a plan and invalidates assignees.
func (s *Service) RemovePlanFeature(ctx context.Context, actorID, planID int64, slug string) error {
	if err := s.repo.RemovePlanFeature(ctx, planID, strings.TrimSpace(slug)); err != nil {
		return err
	}
	s.record(ctx, actorID, "plan.feature.remove", planID, map[string]any{"feature_slug": slug})
	s.fanOut(ctx, planID, FeaturesKey(planID))
	return nil
}

// SetPlanLimit sets a plan's ceiling for one feature and invalidates assignees.
func (s *Service) SetPlanLimit(ctx context.Context, actorID, planID int64, slug string, maxLimit int64) error {
	slug = strings.TrimSpace(slug)
	if slug == "" {
		return fmt.Errorf("plans: feature slug required: %w", httpx.ErrValidation)
	}
	if maxLimit < 0 {
		return fmt.Errorf("plans: max_limit must be >= 0: %w", httpx.ErrValidation)
	}
	if err := s.repo.SetPlanLimit(ctx, planID, slug, maxLimit); err != nil {
		return err
	}
	s.record(ctx, actorID, "plan.limit.set", planID, map[string]any{"feature_slug": slug, "max_limit": maxLimit})
	s.fanOut(ctx, planID, LimitsKey(planID))
	return nil
}

// RemovePlanLimit removes a ceiling, making the feature unlimited on the plan.
func (s *Service) RemovePlanLimit(ctx context.Context, actorID, planID int64, slug string) error {
	if err := s.repo.RemovePlanLimit(ctx, planID, strings.TrimSpace(slug)); err != nil {
		return err
	}
	s.record(ctx, actorID, "plan.limit.remove", planID, map[string]any{"feature_slug": slug})
	s.fanOut(ctx, planID, LimitsKey(planID))
	return nil
}

// AssignPlan sets a user's active plan in an organization.
func (s *Service) AssignPlan(ctx context.Context, actorID, userID, orgID, planID int64) error {
	if err := s.repo.AssignPlan(ctx, userID, orgID, planID); err != nil {
		return err
	}
	s.record(ctx, actorID, "plan.assign", planID, map[string]any{"user_id": userID, "org_id": orgID})
	if s.invalidator != nil {
		s.invalidator.InvalidatePair(ctx, userID, orgID)
	}
	return nil
}

// UnassignPlan removes a user's plan in an organization.
func (s *Service) UnassignPlan(ctx context.Context, actorID, userID, orgID int64) error {
	if err := s.repo.UnassignPlan(ctx, userID, orgID); err != nil {
		return err
	}
	s.record(ctx, actorID, "plan.unassign", userID, map[string]any{"user_id": userID, "org_id": orgID})
	if s.invalidator != nil {
		s.invalidator.InvalidatePair(ctx, userID, orgID)
	}
	return nil
}

// fanOut drops the plan's provider cache entry, then evicts the resolved map
// of every (user, org) pair on the plan. A failed owner query leaves stale
// entries for at most one TTL window; the mutation itself has already
// succeeded.
func (s *Service) fanOut(ctx context.Context, planID int64, cacheKey string) {
	s.cache.Forget(ctx, cacheKey)
	if s.invalidator == nil {
		return
	}
	pairs, err := s.repo.AssignedPairs(ctx, planID)
	if err != nil {
		if s.logger != nil {
			s.logger.Warn("plan fan-out owner query", slog.Int64("plan_id", planID), slog.Any("error", err))
		}
		return
	}
	for _, p := range pairs {
		s.invalidator.InvalidatePair(ctx, p.UserID, p.OrgID)
	}
}

func (s *Service) record(ctx context.Context, actorID int64, action string, entityID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	log := shared.AuditLog{ActorID: actorID, Action: action, Entity: "plan", EntityID: fmt.Sprintf("%d", entityID), Meta: meta}
	if err := s.audit.Record(ctx, log); err != nil && s.logger != nil {
		s.logger.Warn("audit record", slog.String("action", action), slog.Any("error", err))
	}
}
