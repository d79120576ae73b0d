package plans

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/featurekit/featurekit/internal/entitlement"
	"github.com/featurekit/featurekit/internal/platform/cache"
)

type mockRepo struct {
	features      []PlanFeature
	featureCalls  int
	limits        []PlanLimit
	limitCalls    int
	assigned      []Assignment
	assignedCalls int
}

func (m *mockRepo) ListPlans(ctx context.Context) ([]Plan, error)       { return nil, nil }
func (m *mockRepo) GetPlan(ctx context.Context, id int64) (Plan, error) { return Plan{ID: id}, nil }
func (m *mockRepo) CreatePlan(ctx context.Context, name, description string) (Plan, error) {
	return Plan{ID: 1, Name: name}, nil
}

func (m *mockRepo) PlanFeatures(ctx context.Context, planID int64) ([]PlanFeature, error) {
	m.featureCalls++
	return m.features, nil
}

func (m *mockRepo) PlanLimits(ctx context.Context, planID int64) ([]PlanLimit, error) {
	m.limitCalls++
	return m.limits, nil
}

func (m *mockRepo) SetPlanFeature(ctx context.Context, planID int64, slug string, enabled bool) error {
	return nil
}
func (m *mockRepo) RemovePlanFeature(ctx context.Context, planID int64, slug string) error {
	return nil
}
func (m *mockRepo) SetPlanLimit(ctx context.Context, planID int64, slug string, maxLimit int64) error {
	return nil
}
func (m *mockRepo) RemovePlanLimit(ctx context.Context, planID int64, slug string) error { return nil }
func (m *mockRepo) AssignPlan(ctx context.Context, userID, orgID, planID int64) error    { return nil }
func (m *mockRepo) UnassignPlan(ctx context.Context, userID, orgID int64) error          { return nil }

func (m *mockRepo) AssignedPairs(ctx context.Context, planID int64) ([]Assignment, error) {
	m.assignedCalls++
	return m.assigned, nil
}

type recordingInvalidator struct {
	pairs []entitlement.Pair
}

func (r *recordingInvalidator) InvalidatePair(ctx context.Context, userID, orgID int64) {
	r.pairs = append(r.pairs, entitlement.Pair{UserID: userID, OrgID: orgID})
}

func newTestService(t *testing.T, repo *mockRepo) (*Service, *recordingInvalidator, *miniredis.Miniredis, func()) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	inv := &recordingInvalidator{}
	svc := NewService(repo, cache.NewJSONCache(client, time.Minute, nil), inv, nil, nil)
	return svc, inv, mr, func() {
		_ = client.Close()
		mr.Close()
	}
}

func TestPlanFeaturesCaches(t *testing.T) {
	repo := &mockRepo{features: []PlanFeature{{PlanID: 3, FeatureSlug: "export", Enabled: true}}}
	svc, _, _, cleanup := newTestService(t, repo)
	defer cleanup()
	ctx := context.Background()

	features, err := svc.PlanFeatures(ctx, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(features) != 1 || features[0].Slug != "export" || !features[0].Enabled {
		t.Fatalf("unexpected features: %+v", features)
	}
	if repo.featureCalls != 1 {
		t.Fatalf("expected 1 repo call, got %d", repo.featureCalls)
	}

	if _, err := svc.PlanFeatures(ctx, 3); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if repo.featureCalls != 1 {
		t.Fatalf("second read must hit the cache, calls %d", repo.featureCalls)
	}
}

func TestSetPlanFeatureFansOut(t *testing.T) {
	repo := &mockRepo{
		assigned: []Assignment{
			{UserID: 1, OrgID: 2, PlanID: 3},
			{UserID: 4, OrgID: 2, PlanID: 3},
		},
	}
	svc, inv, mr, cleanup := newTestService(t, repo)
	defer cleanup()
	ctx := context.Background()

	// Prime the provider cache so the mutation has something to evict.
	if _, err := svc.PlanFeatures(ctx, 3); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !mr.Exists(FeaturesKey(3)) {
		t.Fatalf("provider cache entry expected")
	}

	if err := svc.SetPlanFeature(ctx, 0, 3, "export", true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if mr.Exists(FeaturesKey(3)) {
		t.Fatalf("provider cache entry must be evicted")
	}
	if len(inv.pairs) != 2 {
		t.Fatalf("expected 2 pair invalidations, got %d", len(inv.pairs))
	}
	if inv.pairs[0] != (entitlement.Pair{UserID: 1, OrgID: 2}) {
		t.Fatalf("unexpected first pair: %+v", inv.pairs[0])
	}
}

func TestSetPlanLimitValidation(t *testing.T) {
	svc, _, _, cleanup := newTestService(t, &mockRepo{})
	defer cleanup()

	if err := svc.SetPlanLimit(context.Background(), 0, 3, "export", -1); err == nil {
		t.Fatalf("negative ceiling must fail")
	}
	if err := svc.SetPlanLimit(context.Background(), 0, 3, " ", 10); err == nil {
		t.Fatalf("blank slug must fail")
	}
}

func TestAssignPlanInvalidatesSinglePair(t *testing.T) {
	repo := &mockRepo{}
	svc, inv, _, cleanup := newTestService(t, repo)
	defer cleanup()

	if err := svc.AssignPlan(context.Background(), 0, 1, 2, 3); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(inv.pairs) != 1 || inv.pairs[0] != (entitlement.Pair{UserID: 1, OrgID: 2}) {
		t.Fatalf("unexpected invalidations: %+v", inv.pairs)
	}
	if repo.assignedCalls != 0 {
		t.Fatalf("assignment must not query the whole plan")
	}
}

func TestPlanLimitsCacheServesStaleUntilEvicted(t *testing.T) {
	repo := &mockRepo{limits: []PlanLimit{{PlanID: 3, FeatureSlug: "export", MaxLimit: 100}}}
	svc, _, _, cleanup := newTestService(t, repo)
	defer cleanup()
	ctx := context.Background()

	if _, err := svc.PlanLimits(ctx, 3); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	repo.limits = []PlanLimit{{PlanID: 3, FeatureSlug: "export", MaxLimit: 200}}

	limits, err := svc.PlanLimits(ctx, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if limits[0].Max != 100 {
		t.Fatalf("cached read expected, got %+v", limits)
	}

	if err := svc.SetPlanLimit(ctx, 0, 3, "export", 200); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	limits, err = svc.PlanLimits(ctx, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if limits[0].Max != 200 {
		t.Fatalf("post-mutation read must see fresh limits, got %+v", limits)
	}
}
