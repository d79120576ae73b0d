package entitlement

import "strconv"

// ComputeLimits builds the per-feature quota map. The effective ceiling is
// the user's limit_increase override when present, else the organization's,
// else the plan limit. Features with no ceiling anywhere are unlimited and
// stay absent from the result.
func ComputeLimits(pc *PermissionContext) map[string]LimitStatus {
	ceilings := make(map[string]int64, len(pc.PlanLimits))
	for _, pl := range pc.PlanLimits {
		ceilings[pl.Slug] = pl.Max
	}
	applyLimitOverrides(ceilings, pc.OrgOverrides)
	applyLimitOverrides(ceilings, pc.UserOverrides)

	used := make(map[string]int64, len(pc.Usage))
	for _, u := range pc.Usage {
		used[u.Slug] = u.Used
	}

	limits := make(map[string]LimitStatus, len(ceilings))
	for slug, max := range ceilings {
		current := used[slug]
		remaining := max - current
		if remaining < 0 {
			remaining = 0
		}
		limits[slug] = LimitStatus{
			Max:       max,
			Used:      current,
			Remaining: remaining,
			Exceeded:  current >= max,
		}
	}
	return limits
}

func applyLimitOverrides(ceilings map[string]int64, overrides []OverrideDirective) {
	for _, o := range overrides {
		if o.Type != OverrideLimitIncrease {
			continue
		}
		// Override values are validated at creation; a row that slipped
		// through with a bad value must not zero out the plan limit.
		value, err := strconv.ParseInt(o.Value, 10, 64)
		if err != nil || value < 0 {
			continue
		}
		ceilings[o.FeatureSlug] = value
	}
}
