package jobs

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/featurekit/featurekit/internal/jobs"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskUsageReset zeroes every usage counter at the start of a billing
	// period.
	TaskUsageReset = "usage:reset"
	// TaskOverrideSweep deletes expired overrides and evicts the resolved
	// maps of their owners.
	TaskOverrideSweep = "overrides:sweep"
	// TaskWarmup pre-resolves permission maps for a list of pairs.
	TaskWarmup = "entitlements:warmup"
)

// UsageResetter zeroes all usage counters.
type UsageResetter interface {
	ResetAll(ctx context.Context) (int, error)
}

// OverrideSweeper removes lapsed overrides.
type OverrideSweeper interface {
	SweepExpired(ctx context.Context) (int, error)
}

// Warmer resolves one pair, filling the cache as a side effect.
type Warmer interface {
	Warm(ctx context.Context, userID, orgID int64, planID *int64) error
}

// WarmupTarget is one pair to pre-resolve.
type WarmupTarget struct {
	UserID int64  `json:"user_id"`
	OrgID  int64  `json:"org_id"`
	PlanID *int64 `json:"plan_id,omitempty"`
}

// WarmupPayload lists the pairs a warmup run resolves.
type WarmupPayload struct {
	Targets []WarmupTarget `json:"targets"`
}

// NewUsageResetTask constructs the periodic usage reset task.
func NewUsageResetTask() *asynq.Task {
	return asynq.NewTask(TaskUsageReset, nil)
}

// NewOverrideSweepTask constructs the periodic override sweep task.
func NewOverrideSweepTask() *asynq.Task {
	return asynq.NewTask(TaskOverrideSweep, nil)
}

// NewWarmupTask constructs a warmup task for the given pairs.
func NewWarmupTask(payload WarmupPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskWarmup, data), nil
}

// NewUsageResetHandler processes TaskUsageReset tasks.
func NewUsageResetHandler(svc UsageResetter, metrics *jobmetrics.Metrics, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		tracker := metrics.Track("usage_reset")
		affected, err := svc.ResetAll(ctx)
		if err != nil {
			logger.Error("usage reset", slog.Any("error", err))
			return tracker.End(err)
		}
		logger.Info("usage reset complete", slog.Int("users", affected))
		return tracker.End(nil)
	}
}

// NewOverrideSweepHandler processes TaskOverrideSweep tasks.
func NewOverrideSweepHandler(svc OverrideSweeper, metrics *jobmetrics.Metrics, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		tracker := metrics.Track("override_sweep")
		affected, err := svc.SweepExpired(ctx)
		if err != nil {
			logger.Error("override sweep", slog.Any("error", err))
			return tracker.End(err)
		}
		logger.Info("override sweep complete", slog.Int("owners", affected))
		return tracker.End(nil)
	}
}

// NewWarmupHandler processes TaskWarmup tasks. A malformed payload is not
// retried; a failed resolution of one target does not stop the rest.
func NewWarmupHandler(warmer Warmer, metrics *jobmetrics.Metrics, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		tracker := metrics.Track("warmup")
		var payload WarmupPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			_ = tracker.End(err)
			return asynq.SkipRetry
		}
		warmed := 0
		for _, target := range payload.Targets {
			if err := warmer.Warm(ctx, target.UserID, target.OrgID, target.PlanID); err != nil {
				logger.Warn("warmup target",
					slog.Int64("user_id", target.UserID),
					slog.Int64("org_id", target.OrgID),
					slog.Any("error", err))
				continue
			}
			warmed++
		}
		logger.Info("warmup complete", slog.Int("warmed", warmed), slog.Int("requested", len(payload.Targets)))
		return tracker.End(nil)
	}
}
