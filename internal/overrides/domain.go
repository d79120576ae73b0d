// Package overrides manages per-user and per-organization exceptions. An
// override outranks both plan and roles: it can force a feature on or off,
// or raise its usage limit, optionally until an expiry time. At most one
// override exists per (owner, feature) pair; writing again replaces it.
package overrides

import (
	"time"

	"github.com/featurekit/featurekit/internal/entitlement"
)

// Override is one exception row. OwnerID is a user ID or an organization ID
// depending on which scope the row was read from.
type Override struct {
	ID          int64                    `json:"id"`
	OwnerID     int64                    `json:"owner_id"`
	FeatureSlug string                   `json:"feature_slug"`
	Type        entitlement.OverrideType `json:"override_type"`
	Value       string                   `json:"value,omitempty"`
	ExpiresAt   *time.Time               `json:"expires_at,omitempty"`
	CreatedBy   int64                    `json:"created_by"`
	CreatedAt   time.Time                `json:"created_at"`
	UpdatedAt   time.Time                `json:"updated_at"`
}

// Active reports whether the override is in force at the given instant.
// A nil expiry means permanent.
func (o Override) Active(at time.Time) bool {
	return o.ExpiresAt == nil || o.ExpiresAt.After(at)
}

// Directive converts the row into its engine-facing shape.
func (o Override) Directive() entitlement.OverrideDirective {
	return entitlement.OverrideDirective{
		FeatureSlug: o.FeatureSlug,
		Type:        o.Type,
		Value:       o.Value,
	}
}

// Member is one user of an organization — the unit of fan-out invalidation
// for organization-scoped override mutations.
type Member struct {
	UserID int64 `json:"user_id"`
	OrgID  int64 `json:"org_id"`
}
