package entitlement

import (
	"context"
	"log/slog"
	"time"

	"github.com/featurekit/featurekit/internal/observability"
)

const (
	// DefaultTTL bounds how stale a resolved map can get when an
	// invalidation is missed.
	DefaultTTL = 5 * time.Minute
	// DefaultProviderTimeout caps every provider fan-in so one slow query
	// cannot stall a resolution indefinitely.
	DefaultProviderTimeout = 3 * time.Second
)

// Service is the permission query API. It is safe for concurrent use; two
// racing resolutions of the same pair may both recompute and both write,
// which is harmless because resolution is a pure function of provider state.
type Service struct {
	providers       Providers
	cache           *Store
	logger          *slog.Logger
	metrics         *observability.Metrics
	providerTimeout time.Duration
	now             func() time.Time
}

// NewService constructs the resolution engine.
func NewService(providers Providers, cache *Store, logger *slog.Logger, metrics *observability.Metrics) *Service {
	return &Service{
		providers:       providers,
		cache:           cache,
		logger:          logger,
		metrics:         metrics,
		providerTimeout: DefaultProviderTimeout,
		now:             time.Now,
	}
}

// WithNow overrides the service clock for testing.
func (s *Service) WithNow(fn func() time.Time) {
	if fn != nil {
		s.now = fn
	}
}

// WithProviderTimeout overrides the provider fan-in deadline.
func (s *Service) WithProviderTimeout(d time.Duration) {
	if d > 0 {
		s.providerTimeout = d
	}
}

// Resolve returns the permission map for one (user, org) pair, serving from
// the cache when possible. Cache failures are soft: resolution falls through
// to the providers. Provider failures abort; a partial map is never cached
// or returned.
func (s *Service) Resolve(ctx context.Context, userID, orgID int64, planID *int64) (*PermissionMap, error) {
	if err := validatePair(userID, orgID); err != nil {
		return nil, err
	}
	if planID != nil && *planID <= 0 {
		return nil, &ValidationError{Field: "plan_id", Reason: "must be positive"}
	}

	cached, err := s.cache.Get(ctx, userID, orgID)
	if err != nil {
		s.softFail("resolution cache read", err)
	}
	if cached != nil {
		cached.Cached = true
		s.metrics.ResolutionCacheHit()
		return cached, nil
	}
	s.metrics.ResolutionCacheMiss()

	start := s.now()
	pc, err := s.buildContext(ctx, userID, orgID, planID)
	if err != nil {
		return nil, err
	}

	pm := &PermissionMap{
		UserID:     userID,
		OrgID:      orgID,
		Features:   MergeFeatures(pc),
		Limits:     ComputeLimits(pc),
		ResolvedAt: s.now().UTC(),
	}
	s.metrics.ObserveResolution(s.now().Sub(start))

	if err := s.cache.Set(ctx, pm); err != nil {
		s.softFail("resolution cache write", err)
	}
	return pm, nil
}

// Check reports whether one feature is usable: it must be enabled and, when
// limited, not exceeded. An absent limit means unlimited.
func (s *Service) Check(ctx context.Context, userID, orgID int64, featureSlug string, planID *int64) (CheckResult, error) {
	if featureSlug == "" {
		return CheckResult{}, &ValidationError{Field: "feature_slug", Reason: "must not be empty"}
	}
	pm, err := s.Resolve(ctx, userID, orgID, planID)
	if err != nil {
		return CheckResult{}, err
	}
	return checkAgainst(pm, featureSlug), nil
}

// CheckMany evaluates several slugs against a single resolution.
func (s *Service) CheckMany(ctx context.Context, userID, orgID int64, featureSlugs []string, planID *int64) ([]CheckResult, error) {
	if len(featureSlugs) == 0 {
		return nil, &ValidationError{Field: "feature_slugs", Reason: "must not be empty"}
	}
	for _, slug := range featureSlugs {
		if slug == "" {
			return nil, &ValidationError{Field: "feature_slugs", Reason: "must not contain empty slugs"}
		}
	}
	pm, err := s.Resolve(ctx, userID, orgID, planID)
	if err != nil {
		return nil, err
	}
	results := make([]CheckResult, len(featureSlugs))
	for i, slug := range featureSlugs {
		results[i] = checkAgainst(pm, slug)
	}
	return results, nil
}

// Invalidate evicts the cached map for one pair.
func (s *Service) Invalidate(ctx context.Context, userID, orgID int64) error {
	if err := validatePair(userID, orgID); err != nil {
		return err
	}
	return s.cache.Delete(ctx, userID, orgID)
}

// InvalidateAll evicts every organization's cached map for one user.
func (s *Service) InvalidateAll(ctx context.Context, userID int64) error {
	if userID <= 0 {
		return &ValidationError{Field: "user_id", Reason: "must be positive"}
	}
	return s.cache.DeleteAllForUser(ctx, userID)
}

func checkAgainst(pm *PermissionMap, slug string) CheckResult {
	result := CheckResult{FeatureSlug: slug, Reason: ReasonFeatureDisabled}
	if !pm.Features[slug] {
		return result
	}
	if limit, ok := pm.Limits[slug]; ok {
		result.Limit = &limit
		if limit.Exceeded {
			result.Reason = ReasonLimitExceeded
			return result
		}
	}
	result.Allowed = true
	result.Reason = ReasonGranted
	return result
}

func validatePair(userID, orgID int64) error {
	if userID <= 0 {
		return &ValidationError{Field: "user_id", Reason: "must be positive"}
	}
	if orgID <= 0 {
		return &ValidationError{Field: "org_id", Reason: "must be positive"}
	}
	return nil
}

func (s *Service) softFail(op string, err error) {
	if s.logger == nil {
		return
	}
	s.logger.Warn(op, slog.Any("error", err))
}
