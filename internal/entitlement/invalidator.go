package entitlement

import (
	"context"
	"log/slog"

	"github.com/featurekit/featurekit/internal/observability"
)

// Fanout performs best-effort resolution cache eviction on behalf of the
// mutation paths. Every method logs failures and keeps going: a missed
// eviction degrades to stale permissions for at most one TTL window and must
// never abort the write that triggered it.
type Fanout struct {
	cache   *Store
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewFanout constructs the invalidation helper.
func NewFanout(cache *Store, logger *slog.Logger, metrics *observability.Metrics) *Fanout {
	return &Fanout{cache: cache, logger: logger, metrics: metrics}
}

// InvalidatePair evicts the resolved entry for one (user, org) pair.
func (f *Fanout) InvalidatePair(ctx context.Context, userID, orgID int64) {
	if f == nil {
		return
	}
	if err := f.cache.Delete(ctx, userID, orgID); err != nil {
		f.warn(userID, orgID, err)
		return
	}
	f.metrics.InvalidationsAdd(1)
}

// InvalidatePairs evicts the resolved entry for every pair in the list.
// Used by the affected-owner fan-outs (role holders, plan assignees,
// organization members).
func (f *Fanout) InvalidatePairs(ctx context.Context, pairs []Pair) {
	if f == nil {
		return
	}
	for _, p := range pairs {
		f.InvalidatePair(ctx, p.UserID, p.OrgID)
	}
}

// InvalidateUser evicts every organization's resolved entry for one user.
func (f *Fanout) InvalidateUser(ctx context.Context, userID int64) {
	if f == nil {
		return
	}
	if err := f.cache.DeleteAllForUser(ctx, userID); err != nil {
		f.warn(userID, 0, err)
		return
	}
	f.metrics.InvalidationsAdd(1)
}

func (f *Fanout) warn(userID, orgID int64, err error) {
	if f.logger == nil {
		return
	}
	f.logger.Warn("entitlement invalidation failed",
		slog.Int64("user_id", userID),
		slog.Int64("org_id", orgID),
		slog.Any("error", err),
	)
}
