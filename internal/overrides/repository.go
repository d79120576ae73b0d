package overrides

import (
	"context"
	"time"
)

// RepositoryPort defines data access methods for overrides.
type RepositoryPort interface {
	// Active reads return only rows whose expiry is null or in the future.
	ActiveUserOverrides(ctx context.Context, userID int64) ([]Override, error)
	ActiveOrgOverrides(ctx context.Context, orgID int64) ([]Override, error)

	// Upserts keep at most one row per (owner, feature): writing an
	// existing pair replaces type, value and expiry in place.
	UpsertUserOverride(ctx context.Context, o Override) (Override, error)
	UpsertOrgOverride(ctx context.Context, o Override) (Override, error)
	DeleteUserOverride(ctx context.Context, userID int64, slug string) error
	DeleteOrgOverride(ctx context.Context, orgID int64, slug string) error

	// Sweeps delete rows that expired before the cutoff and report the
	// owners whose resolved maps need eviction.
	SweepExpiredUserOverrides(ctx context.Context, cutoff time.Time) ([]int64, error)
	SweepExpiredOrgOverrides(ctx context.Context, cutoff time.Time) ([]int64, error)

	// MemberPairs is the affected-owners query for organization override
	// fan-out.
	MemberPairs(ctx context.Context, orgID int64) ([]Member, error)
}
