package usage

import "context"

// RepositoryPort defines data access methods for usage counters.
type RepositoryPort interface {
	CountersForUser(ctx context.Context, userID int64) ([]Counter, error)

	// Increment adds delta to the counter, creating it at delta when the
	// row does not exist. Delta must be positive; counters never move
	// backwards outside a reset.
	Increment(ctx context.Context, userID int64, slug string, delta int64) (Counter, error)

	// Reset zeroes one user's counter for one feature.
	Reset(ctx context.Context, userID int64, slug string) error

	// ResetAll zeroes every counter and returns the affected user IDs so
	// their resolved maps can be evicted.
	ResetAll(ctx context.Context) ([]int64, error)
}
