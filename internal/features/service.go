package features

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/featurekit/featurekit/internal/platform/cache"
	"github.com/featurekit/featurekit/internal/platform/httpx"
	"github.com/featurekit/featurekit/internal/shared"
)

// CatalogKey is the cache key for the full feature catalog. The catalog
// changes rarely, so it sits in the longest TTL class.
const CatalogKey = "features:catalog"

var slugPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]*$`)

// Service handles feature catalog business logic.
type Service struct {
	repo    RepositoryPort
	catalog *cache.JSONCache
	audit   *shared.AuditLogger
	logger  *slog.Logger
}

// NewService builds a Service instance.
func NewService(repo RepositoryPort, catalog *cache.JSONCache, audit *shared.AuditLogger, logger *slog.Logger) *Service {
	return &Service{repo: repo, catalog: catalog, audit: audit, logger: logger}
}

// ListFeatures returns the catalog, served from cache when possible.
func (s *Service) ListFeatures(ctx context.Context) ([]Feature, error) {
	var features []Feature
	err := s.catalog.Fetch(ctx, CatalogKey, &features, func(ctx context.Context) (interface{}, error) {
		return s.repo.ListFeatures(ctx)
	})
	if err != nil {
		return nil, err
	}
	return features, nil
}

// GetFeature fetches one feature by slug.
func (s *Service) GetFeature(ctx context.Context, slug string) (Feature, error) {
	return s.repo.GetFeature(ctx, strings.TrimSpace(slug))
}

// CreateFeature adds a catalog entry. The slug is validated once here and
// immutable afterwards.
func (s *Service) CreateFeature(ctx context.Context, actorID int64, slug, name, description string) (Feature, error) {
	slug = strings.TrimSpace(slug)
	name = strings.TrimSpace(name)
	if !slugPattern.MatchString(slug) {
		return Feature{}, fmt.Errorf("features: slug must match %s: %w", slugPattern.String(), httpx.ErrValidation)
	}
	if name == "" {
		return Feature{}, fmt.Errorf("features: name required: %w", httpx.ErrValidation)
	}
	feature, err := s.repo.CreateFeature(ctx, slug, name, strings.TrimSpace(description))
	if err != nil {
		return Feature{}, err
	}
	s.forgetCatalog(ctx)
	s.record(ctx, actorID, "feature.create", slug, nil)
	return feature, nil
}

// UpdateFeature updates the display name and description of a feature.
func (s *Service) UpdateFeature(ctx context.Context, actorID int64, slug, name, description string) (Feature, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Feature{}, fmt.Errorf("features: name required: %w", httpx.ErrValidation)
	}
	feature, err := s.repo.UpdateFeature(ctx, strings.TrimSpace(slug), name, strings.TrimSpace(description))
	if err != nil {
		return Feature{}, err
	}
	s.forgetCatalog(ctx)
	s.record(ctx, actorID, "feature.update", slug, nil)
	return feature, nil
}

// DeleteFeature removes a feature that is no longer referenced anywhere.
func (s *Service) DeleteFeature(ctx context.Context, actorID int64, slug string) error {
	if err := s.repo.DeleteFeature(ctx, strings.TrimSpace(slug)); err != nil {
		return err
	}
	s.forgetCatalog(ctx)
	s.record(ctx, actorID, "feature.delete", slug, nil)
	return nil
}

func (s *Service) forgetCatalog(ctx context.Context) {
	s.catalog.Forget(ctx, CatalogKey)
}

func (s *Service) record(ctx context.Context, actorID int64, action, slug string, meta map[string]any) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, shared.AuditLog{ActorID: actorID, Action: action, Entity: "feature", EntityID: slug, Meta: meta}); err != nil && s.logger != nil {
		s.logger.Warn("audit record", slog.String("action", action), slog.Any("error", err))
	}
}
