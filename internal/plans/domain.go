// Package plans manages subscription plans: which features a plan enables
// by default and what usage limits it carries. A user holds at most one
// active plan per organization.
package plans

import "time"

// Plan is one subscription tier.
type Plan struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// PlanFeature is a plan's default flag for one feature. A feature without a
// row is simply not part of the plan.
type PlanFeature struct {
	PlanID      int64  `json:"plan_id"`
	FeatureSlug string `json:"feature_slug"`
	Enabled     bool   `json:"enabled"`
}

// PlanLimit is a plan's usage ceiling for one feature. A feature without a
// row is unlimited.
type PlanLimit struct {
	PlanID      int64  `json:"plan_id"`
	FeatureSlug string `json:"feature_slug"`
	MaxLimit    int64  `json:"max_limit"`
}

// Assignment links a user to their active plan inside one organization.
type Assignment struct {
	UserID int64 `json:"user_id"`
	OrgID  int64 `json:"org_id"`
	PlanID int64 `json:"plan_id"`
}
