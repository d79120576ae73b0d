package entitlement

import "testing"

func TestMergeFeaturesPrecedence(t *testing.T) {
	pc := &PermissionContext{
		PlanFeatures: []PlanFeature{
			{Slug: "export", Enabled: true},
			{Slug: "reports", Enabled: false},
			{Slug: "api", Enabled: false},
		},
		RoleSlugs: []string{"reports"},
		OrgOverrides: []OverrideDirective{
			{FeatureSlug: "export", Type: OverrideFeatureDisable},
			{FeatureSlug: "api", Type: OverrideFeatureEnable},
		},
		UserOverrides: []OverrideDirective{
			{FeatureSlug: "api", Type: OverrideFeatureDisable},
		},
	}

	features := MergeFeatures(pc)

	if features["export"] {
		t.Fatalf("org disable must beat plan enable")
	}
	if !features["reports"] {
		t.Fatalf("role grant must beat plan disable")
	}
	if features["api"] {
		t.Fatalf("user override must beat org override")
	}
}

func TestMergeFeaturesRolesNeverDisable(t *testing.T) {
	pc := &PermissionContext{
		PlanFeatures: []PlanFeature{{Slug: "export", Enabled: true}},
		RoleSlugs:    []string{"export"},
	}
	if !MergeFeatures(pc)["export"] {
		t.Fatalf("role grant on an enabled feature must stay enabled")
	}
}

func TestMergeFeaturesUserEnableBeatsOrgDisable(t *testing.T) {
	pc := &PermissionContext{
		OrgOverrides:  []OverrideDirective{{FeatureSlug: "beta", Type: OverrideFeatureDisable}},
		UserOverrides: []OverrideDirective{{FeatureSlug: "beta", Type: OverrideFeatureEnable}},
	}
	if !MergeFeatures(pc)["beta"] {
		t.Fatalf("user enable must beat org disable")
	}
}

func TestMergeFeaturesLimitIncreaseDoesNotTouchFlags(t *testing.T) {
	pc := &PermissionContext{
		PlanFeatures:  []PlanFeature{{Slug: "export", Enabled: false}},
		UserOverrides: []OverrideDirective{{FeatureSlug: "export", Type: OverrideLimitIncrease, Value: "500"}},
	}
	if MergeFeatures(pc)["export"] {
		t.Fatalf("limit_increase must not enable a disabled feature")
	}
}

func TestMergeFeaturesNoPlan(t *testing.T) {
	pc := &PermissionContext{
		RoleSlugs:     []string{"reports"},
		UserOverrides: []OverrideDirective{{FeatureSlug: "beta", Type: OverrideFeatureEnable}},
	}
	features := MergeFeatures(pc)
	if !features["reports"] || !features["beta"] {
		t.Fatalf("role and override grants must survive without a plan: %v", features)
	}
	if features["export"] {
		t.Fatalf("unknown slug must default to disabled")
	}
}

func TestComputeLimitsCeilingPrecedence(t *testing.T) {
	pc := &PermissionContext{
		PlanLimits: []PlanLimit{
			{Slug: "export", Max: 100},
			{Slug: "api", Max: 1000},
		},
		OrgOverrides: []OverrideDirective{
			{FeatureSlug: "export", Type: OverrideLimitIncrease, Value: "200"},
			{FeatureSlug: "api", Type: OverrideLimitIncrease, Value: "2000"},
		},
		UserOverrides: []OverrideDirective{
			{FeatureSlug: "export", Type: OverrideLimitIncrease, Value: "500"},
		},
		Usage: []UsageCount{{Slug: "export", Used: 50}},
	}

	limits := ComputeLimits(pc)

	export := limits["export"]
	if export.Max != 500 {
		t.Fatalf("user ceiling must beat org and plan, got %d", export.Max)
	}
	if export.Used != 50 || export.Remaining != 450 || export.Exceeded {
		t.Fatalf("unexpected export status: %+v", export)
	}
	if api := limits["api"]; api.Max != 2000 {
		t.Fatalf("org ceiling must beat plan, got %d", api.Max)
	}
}

func TestComputeLimitsExceededAndClamped(t *testing.T) {
	pc := &PermissionContext{
		PlanLimits: []PlanLimit{{Slug: "export", Max: 100}},
		Usage:      []UsageCount{{Slug: "export", Used: 130}},
	}
	status := ComputeLimits(pc)["export"]
	if !status.Exceeded {
		t.Fatalf("used above max must be exceeded")
	}
	if status.Remaining != 0 {
		t.Fatalf("remaining must clamp at zero, got %d", status.Remaining)
	}
}

func TestComputeLimitsExactlyAtMaxIsExceeded(t *testing.T) {
	pc := &PermissionContext{
		PlanLimits: []PlanLimit{{Slug: "export", Max: 100}},
		Usage:      []UsageCount{{Slug: "export", Used: 100}},
	}
	if !ComputeLimits(pc)["export"].Exceeded {
		t.Fatalf("used equal to max must count as exceeded")
	}
}

func TestComputeLimitsAbsentMeansUnlimited(t *testing.T) {
	pc := &PermissionContext{
		Usage: []UsageCount{{Slug: "export", Used: 99999}},
	}
	if _, ok := ComputeLimits(pc)["export"]; ok {
		t.Fatalf("a feature without a ceiling must stay absent from limits")
	}
}

func TestComputeLimitsIgnoresInvalidOverrideValues(t *testing.T) {
	pc := &PermissionContext{
		PlanLimits: []PlanLimit{{Slug: "export", Max: 100}},
		UserOverrides: []OverrideDirective{
			{FeatureSlug: "export", Type: OverrideLimitIncrease, Value: "not-a-number"},
		},
	}
	if max := ComputeLimits(pc)["export"].Max; max != 100 {
		t.Fatalf("invalid override value must keep the plan ceiling, got %d", max)
	}
}

// End-to-end scenario: pro plan with export enabled at 100 exports, a
// reporting role, an org kill switch on export, a user limit raise to 500,
// and 50 exports already used this period.
func TestResolutionScenario(t *testing.T) {
	pc := &PermissionContext{
		PlanFeatures: []PlanFeature{{Slug: "export", Enabled: true}},
		PlanLimits:   []PlanLimit{{Slug: "export", Max: 100}},
		RoleSlugs:    []string{"reports"},
		OrgOverrides: []OverrideDirective{{FeatureSlug: "export", Type: OverrideFeatureDisable}},
		UserOverrides: []OverrideDirective{
			{FeatureSlug: "export", Type: OverrideLimitIncrease, Value: "500"},
		},
		Usage: []UsageCount{{Slug: "export", Used: 50}},
	}

	features := MergeFeatures(pc)
	limits := ComputeLimits(pc)

	if features["export"] {
		t.Fatalf("org disable stands: the user raise only touches the limit")
	}
	if !features["reports"] {
		t.Fatalf("role grant expected")
	}
	export := limits["export"]
	if export.Max != 500 || export.Used != 50 || export.Remaining != 450 || export.Exceeded {
		t.Fatalf("unexpected export limit: %+v", export)
	}
}
