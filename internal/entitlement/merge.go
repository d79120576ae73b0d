package entitlement

// MergeFeatures folds the snapshot into the final feature map. Precedence,
// lowest to highest: plan defaults, role grants, organization overrides,
// user overrides. Each step only starts from the previous step's map; later
// steps overwrite outright.
func MergeFeatures(pc *PermissionContext) map[string]bool {
	features := make(map[string]bool, len(pc.PlanFeatures)+len(pc.RoleSlugs))

	// Step 1: plan defaults.
	for _, pf := range pc.PlanFeatures {
		features[pf.Slug] = pf.Enabled
	}

	// Step 2: role union. Roles only ever upgrade a feature to enabled;
	// they carry no deny semantics.
	for _, slug := range pc.RoleSlugs {
		features[slug] = true
	}

	// Steps 3 and 4: organization overrides, then user overrides on top.
	applyOverrides(features, pc.OrgOverrides)
	applyOverrides(features, pc.UserOverrides)

	return features
}

func applyOverrides(features map[string]bool, overrides []OverrideDirective) {
	for _, o := range overrides {
		switch o.Type {
		case OverrideFeatureEnable:
			features[o.FeatureSlug] = true
		case OverrideFeatureDisable:
			features[o.FeatureSlug] = false
		}
		// limit_increase does not touch the feature flag.
	}
}
