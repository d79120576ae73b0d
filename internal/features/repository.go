package features

import "context"

// RepositoryPort defines data access methods for the feature catalog.
type RepositoryPort interface {
	ListFeatures(ctx context.Context) ([]Feature, error)
	GetFeature(ctx context.Context, slug string) (Feature, error)
	CreateFeature(ctx context.Context, slug, name, description string) (Feature, error)
	UpdateFeature(ctx context.Context, slug, name, description string) (Feature, error)
	DeleteFeature(ctx context.Context, slug string) error
}
