// Package roles manages organization-scoped roles and the feature grants
// they carry. Roles only ever grant: revocation deletes the grant row, and
// nothing in a role can force a feature off.
package roles

import "time"

// Role is a named grant bundle inside one organization.
type Role struct {
	ID          int64     `json:"id"`
	OrgID       int64     `json:"org_id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Grant ties a feature slug to a role. Only granted rows exist.
type Grant struct {
	RoleID      int64     `json:"role_id"`
	FeatureSlug string    `json:"feature_slug"`
	CreatedAt   time.Time `json:"created_at"`
}

// Holder is one (user, org) pair holding a role — the unit of fan-out
// invalidation for role mutations.
type Holder struct {
	UserID int64 `json:"user_id"`
	OrgID  int64 `json:"org_id"`
}
