package entitlement

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// RoleSource supplies the aggregated feature slugs a user's roles grant
// inside one organization.
type RoleSource interface {
	UserRolePermissions(ctx context.Context, userID, orgID int64) ([]string, error)
}

// OverrideSource supplies active (unexpired) overrides.
type OverrideSource interface {
	ActiveForUser(ctx context.Context, userID int64) ([]OverrideDirective, error)
	ActiveForOrganization(ctx context.Context, orgID int64) ([]OverrideDirective, error)
}

// PlanSource supplies a plan's feature flags and limits.
type PlanSource interface {
	PlanFeatures(ctx context.Context, planID int64) ([]PlanFeature, error)
	PlanLimits(ctx context.Context, planID int64) ([]PlanLimit, error)
}

// UsageSource supplies current usage counters for a user.
type UsageSource interface {
	UsageForUser(ctx context.Context, userID int64) ([]UsageCount, error)
}

// Providers groups the data sources a resolution reads from. All sources
// return empty results for legitimate absence; an error from any of them is
// a genuine failure and aborts the resolution.
type Providers struct {
	Roles     RoleSource
	Overrides OverrideSource
	Plans     PlanSource
	Usage     UsageSource
}

// buildContext fetches every input of one resolution concurrently and joins
// them into an immutable snapshot. When planID is nil the plan-derived
// slices stay empty: a user without a plan only has role- and
// override-granted features.
func (s *Service) buildContext(ctx context.Context, userID, orgID int64, planID *int64) (*PermissionContext, error) {
	ctx, cancel := context.WithTimeout(ctx, s.providerTimeout)
	defer cancel()

	pc := &PermissionContext{UserID: userID, OrgID: orgID, PlanID: planID}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slugs, err := s.providers.Roles.UserRolePermissions(gctx, userID, orgID)
		if err != nil {
			return &ProviderError{Source: "roles", Err: err}
		}
		pc.RoleSlugs = slugs
		return nil
	})
	g.Go(func() error {
		overrides, err := s.providers.Overrides.ActiveForUser(gctx, userID)
		if err != nil {
			return &ProviderError{Source: "user_overrides", Err: err}
		}
		pc.UserOverrides = overrides
		return nil
	})
	g.Go(func() error {
		overrides, err := s.providers.Overrides.ActiveForOrganization(gctx, orgID)
		if err != nil {
			return &ProviderError{Source: "org_overrides", Err: err}
		}
		pc.OrgOverrides = overrides
		return nil
	})
	g.Go(func() error {
		usage, err := s.providers.Usage.UsageForUser(gctx, userID)
		if err != nil {
			return &ProviderError{Source: "usage", Err: err}
		}
		pc.Usage = usage
		return nil
	})
	if planID != nil {
		id := *planID
		g.Go(func() error {
			features, err := s.providers.Plans.PlanFeatures(gctx, id)
			if err != nil {
				return &ProviderError{Source: "plan_features", Err: err}
			}
			pc.PlanFeatures = features
			return nil
		})
		g.Go(func() error {
			limits, err := s.providers.Plans.PlanLimits(gctx, id)
			if err != nil {
				return &ProviderError{Source: "plan_limits", Err: err}
			}
			pc.PlanLimits = limits
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return pc, nil
}
