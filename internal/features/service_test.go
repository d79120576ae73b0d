package features

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/featurekit/featurekit/internal/platform/cache"
)

type mockRepo struct {
	features  []Feature
	listCalls int
	created   []string
	deleted   []string
}

func (m *mockRepo) ListFeatures(ctx context.Context) ([]Feature, error) {
	m.listCalls++
	return m.features, nil
}

func (m *mockRepo) GetFeature(ctx context.Context, slug string) (Feature, error) {
	return Feature{Slug: slug}, nil
}

func (m *mockRepo) CreateFeature(ctx context.Context, slug, name, description string) (Feature, error) {
	m.created = append(m.created, slug)
	return Feature{ID: int64(len(m.created)), Slug: slug, Name: name, Description: description}, nil
}

func (m *mockRepo) UpdateFeature(ctx context.Context, slug, name, description string) (Feature, error) {
	return Feature{Slug: slug, Name: name, Description: description}, nil
}

func (m *mockRepo) DeleteFeature(ctx context.Context, slug string) error {
	m.deleted = append(m.deleted, slug)
	return nil
}

func newTestService(t *testing.T, repo *mockRepo) (*Service, *miniredis.Miniredis, func()) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	svc := NewService(repo, cache.NewJSONCache(client, time.Minute, nil), nil, nil)
	return svc, mr, func() {
		_ = client.Close()
		mr.Close()
	}
}

func TestListFeaturesCaches(t *testing.T) {
	repo := &mockRepo{features: []Feature{{ID: 1, Slug: "export", Name: "Export"}}}
	svc, _, cleanup := newTestService(t, repo)
	defer cleanup()
	ctx := context.Background()

	features, err := svc.ListFeatures(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(features) != 1 || features[0].Slug != "export" {
		t.Fatalf("unexpected catalog: %+v", features)
	}
	if repo.listCalls != 1 {
		t.Fatalf("expected 1 repo call, got %d", repo.listCalls)
	}

	if _, err := svc.ListFeatures(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if repo.listCalls != 1 {
		t.Fatalf("second read must hit the cache, calls %d", repo.listCalls)
	}
}

func TestCreateFeatureEvictsCatalog(t *testing.T) {
	repo := &mockRepo{}
	svc, mr, cleanup := newTestService(t, repo)
	defer cleanup()
	ctx := context.Background()

	if _, err := svc.ListFeatures(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !mr.Exists(CatalogKey) {
		t.Fatalf("catalog cache entry expected")
	}

	if _, err := svc.CreateFeature(ctx, 0, "pdf-export", "PDF Export", ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if mr.Exists(CatalogKey) {
		t.Fatalf("mutation must evict the catalog entry")
	}
}

func TestCreateFeatureSlugValidation(t *testing.T) {
	svc, _, cleanup := newTestService(t, &mockRepo{})
	defer cleanup()
	ctx := context.Background()

	for _, slug := range []string{"", "Bad Slug", "UPPER", "-leading", "emoji✨"} {
		if _, err := svc.CreateFeature(ctx, 0, slug, "Name", ""); err == nil {
			t.Fatalf("slug %q must be rejected", slug)
		}
	}
	for _, slug := range []string{"export", "pdf-export", "api_v2", "a1"} {
		if _, err := svc.CreateFeature(ctx, 0, slug, "Name", ""); err != nil {
			t.Fatalf("slug %q must be accepted: %v", slug, err)
		}
	}
}

func TestUpdateFeatureRequiresName(t *testing.T) {
	svc, _, cleanup := newTestService(t, &mockRepo{})
	defer cleanup()
	if _, err := svc.UpdateFeature(context.Background(), 0, "export", "  ", ""); err == nil {
		t.Fatalf("blank name must fail")
	}
}
