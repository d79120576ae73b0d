package usage

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/featurekit/featurekit/internal/entitlement"
	"github.com/featurekit/featurekit/internal/platform/httpx"
	"github.com/featurekit/featurekit/internal/shared"
)

// Invalidator evicts resolved permission maps after a counter moves.
type Invalidator interface {
	InvalidatePair(ctx context.Context, userID, orgID int64)
	InvalidateUser(ctx context.Context, userID int64)
}

// Service handles usage counter business logic.
type Service struct {
	repo        RepositoryPort
	invalidator Invalidator
	audit       *shared.AuditLogger
	logger      *slog.Logger
}

// NewService builds a Service instance.
func NewService(repo RepositoryPort, invalidator Invalidator, audit *shared.AuditLogger, logger *slog.Logger) *Service {
	return &Service{repo: repo, invalidator: invalidator, audit: audit, logger: logger}
}

// UsageForUser returns the user's counters in engine shape.
func (s *Service) UsageForUser(ctx context.Context, userID int64) ([]entitlement.UsageCount, error) {
	counters, err := s.repo.CountersForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make([]entitlement.UsageCount, len(counters))
	for i, c := range counters {
		out[i] = entitlement.UsageCount{Slug: c.FeatureSlug, Used: c.Used}
	}
	return out, nil
}

// ListCounters returns the user's counter rows for admin reads.
func (s *Service) ListCounters(ctx context.Context, userID int64) ([]Counter, error) {
	return s.repo.CountersForUser(ctx, userID)
}

// Record increments the counter by delta and evicts the (user, org) resolved
// entry so limit checks see the new total on the next resolution.
func (s *Service) Record(ctx context.Context, userID, orgID int64, slug string, delta int64) (Counter, error) {
	slug = strings.TrimSpace(slug)
	if slug == "" {
		return Counter{}, fmt.Errorf("usage: feature slug required: %w", httpx.ErrValidation)
	}
	if delta <= 0 {
		return Counter{}, fmt.Errorf("usage: delta must be positive: %w", httpx.ErrValidation)
	}
	c, err := s.repo.Increment(ctx, userID, slug, delta)
	if err != nil {
		return Counter{}, err
	}
	if s.invalidator != nil {
		s.invalidator.InvalidatePair(ctx, userID, orgID)
	}
	return c, nil
}

// Reset zeroes one user's counter for one feature.
func (s *Service) Reset(ctx context.Context, actorID, userID int64, slug string) error {
	slug = strings.TrimSpace(slug)
	if slug == "" {
		return fmt.Errorf("usage: feature slug required: %w", httpx.ErrValidation)
	}
	if err := s.repo.Reset(ctx, userID, slug); err != nil {
		return err
	}
	s.record(ctx, actorID, "usage.reset", fmt.Sprintf("%d:%s", userID, slug))
	if s.invalidator != nil {
		s.invalidator.InvalidateUser(ctx, userID)
	}
	return nil
}

// ResetAll zeroes every counter and evicts the resolved entries of every
// affected user. Driven by the monthly reset job.
func (s *Service) ResetAll(ctx context.Context) (int, error) {
	userIDs, err := s.repo.ResetAll(ctx)
	if err != nil {
		return 0, err
	}
	for _, userID := range userIDs {
		if s.invalidator != nil {
			s.invalidator.InvalidateUser(ctx, userID)
		}
	}
	return len(userIDs), nil
}

func (s *Service) record(ctx context.Context, actorID int64, action, entityID string) {
	if s.audit == nil {
		return
	}
	log := shared.AuditLog{ActorID: actorID, Action: action, Entity: "usage_counter", EntityID: entityID}
	if err := s.audit.Record(ctx, log); err != nil && s.logger != nil {
		s.logger.Warn("audit record", slog.String("action", action), slog.Any("error", err))
	}
}
