// Package entitlement resolves which features a user may use inside an
// organization. A resolution merges four sources in strict precedence order:
// user overrides beat organization overrides, which beat role grants, which
// beat the subscription plan. The merged result is cached per (user, org)
// pair and rebuilt wholesale whenever any input changes.
package entitlement

import "time"

// OverrideType enumerates the supported override directives.
type OverrideType string

const (
	// OverrideFeatureEnable force-enables a feature.
	OverrideFeatureEnable OverrideType = "feature_enable"
	// OverrideFeatureDisable force-disables a feature.
	OverrideFeatureDisable OverrideType = "feature_disable"
	// OverrideLimitIncrease raises the usage limit of a feature.
	OverrideLimitIncrease OverrideType = "limit_increase"
)

// Valid reports whether t is one of the known override types.
func (t OverrideType) Valid() bool {
	switch t {
	case OverrideFeatureEnable, OverrideFeatureDisable, OverrideLimitIncrease:
		return true
	}
	return false
}

// OverrideDirective is the engine-facing shape of an active override row.
// Value is a string-encoded integer, meaningful only for limit_increase.
type OverrideDirective struct {
	FeatureSlug string
	Type        OverrideType
	Value       string
}

// PlanFeature is a plan's default flag for one feature.
type PlanFeature struct {
	Slug    string
	Enabled bool
}

// PlanLimit is a plan's usage ceiling for one feature. Features without a
// row are unlimited.
type PlanLimit struct {
	Slug string
	Max  int64
}

// UsageCount is the current usage counter for one feature.
type UsageCount struct {
	Slug string
	Used int64
}

// PermissionContext is the immutable snapshot of everything needed to
// resolve one (user, organization) pair. Plan-derived slices stay empty
// when no plan is supplied.
type PermissionContext struct {
	UserID        int64
	OrgID         int64
	PlanID        *int64
	RoleSlugs     []string
	UserOverrides []OverrideDirective
	OrgOverrides  []OverrideDirective
	PlanFeatures  []PlanFeature
	PlanLimits    []PlanLimit
	Usage         []UsageCount
}

// LimitStatus is the computed quota state for one feature.
type LimitStatus struct {
	Max       int64 `json:"max"`
	Used      int64 `json:"used"`
	Remaining int64 `json:"remaining"`
	Exceeded  bool  `json:"exceeded"`
}

// PermissionMap is the resolved decision for one (user, organization) pair.
// A slug absent from Features is disabled; a slug absent from Limits is
// unlimited. Cached is set on reads served from the resolution cache and is
// never persisted.
type PermissionMap struct {
	UserID     int64                  `json:"user_id"`
	OrgID      int64                  `json:"org_id"`
	Features   map[string]bool        `json:"features"`
	Limits     map[string]LimitStatus `json:"limits"`
	ResolvedAt time.Time              `json:"resolved_at"`
	Cached     bool                   `json:"-"`
}

// Check reasons reported alongside an allow/deny decision.
const (
	ReasonGranted         = "granted"
	ReasonFeatureDisabled = "feature_disabled"
	ReasonLimitExceeded   = "limit_exceeded"
)

// CheckResult is the outcome of a single feature check.
type CheckResult struct {
	FeatureSlug string       `json:"feature_slug"`
	Allowed     bool         `json:"allowed"`
	Reason      string       `json:"reason"`
	Limit       *LimitStatus `json:"limit,omitempty"`
}

// Pair identifies one resolution cache entry.
type Pair struct {
	UserID int64
	OrgID  int64
}
