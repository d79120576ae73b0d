package plans

import "context"

// RepositoryPort defines data access methods for plans.
type RepositoryPort interface {
	ListPlans(ctx context.Context) ([]Plan, error)
	GetPlan(ctx context.Context, id int64) (Plan, error)
	CreatePlan(ctx context.Context, name, description string) (Plan, error)

	PlanFeatures(ctx context.Context, planID int64) ([]PlanFeature, error)
	PlanLimits(ctx context.Context, planID int64) ([]PlanLimit, error)
	SetPlanFeature(ctx context.Context, planID int64, slug string, enabled bool) error
	RemovePlanFeature(ctx context.Context, planID int64, slug string) error
	SetPlanLimit(ctx context.Context, planID int64, slug string, maxLimit int64) error
	RemovePlanLimit(ctx context.Context, planID int64, slug string) error

	AssignPlan(ctx context.Context, userID, orgID, planID int64) error
	UnassignPlan(ctx context.Context, userID, orgID int64) error
	// AssignedPairs is the affected-owners query for plan mutation fan-out:
	// every (user, org) pair whose active plan is planID.
	AssignedPairs(ctx context.Context, planID int64) ([]Assignment, error)
}
