package usage

import (
	"context"
	"testing"
	"time"
)

type mockRepo struct {
	counters   []Counter
	increments []int64
	lastSlug   string
	resets     []string
	resetAll   []int64
}

func (m *mockRepo) CountersForUser(ctx context.Context, userID int64) ([]Counter, error) {
	return m.counters, nil
}

func (m *mockRepo) Increment(ctx context.Context, userID int64, slug string, delta int64) (Counter, error) {
	m.increments = append(m.increments, delta)
	m.lastSlug = slug
	return Counter{UserID: userID, FeatureSlug: slug, Used: delta, UpdatedAt: time.Now()}, nil
}

func (m *mockRepo) Reset(ctx context.Context, userID int64, slug string) error {
	m.resets = append(m.resets, slug)
	return nil
}

func (m *mockRepo) ResetAll(ctx context.Context) ([]int64, error) {
	return m.resetAll, nil
}

type recordingInvalidator struct {
	pairs [][2]int64
	users []int64
}

func (r *recordingInvalidator) InvalidatePair(ctx context.Context, userID, orgID int64) {
	r.pairs = append(r.pairs, [2]int64{userID, orgID})
}

func (r *recordingInvalidator) InvalidateUser(ctx context.Context, userID int64) {
	r.users = append(r.users, userID)
}

func newTestService(repo *mockRepo) (*Service, *recordingInvalidator) {
	inv := &recordingInvalidator{}
	return NewService(repo, inv, nil, nil), inv
}

func TestRecordIncrementsAndInvalidates(t *testing.T) {
	repo := &mockRepo{}
	svc, inv := newTestService(repo)

	c, err := svc.Record(context.Background(), 1, 2, "export", 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Used != 5 || repo.lastSlug != "export" {
		t.Fatalf("unexpected counter: %+v", c)
	}
	if len(inv.pairs) != 1 || inv.pairs[0] != [2]int64{1, 2} {
		t.Fatalf("unexpected invalidations: %+v", inv.pairs)
	}
}

func TestRecordValidation(t *testing.T) {
	svc, _ := newTestService(&mockRepo{})
	ctx := context.Background()

	if _, err := svc.Record(ctx, 1, 2, " ", 5); err == nil {
		t.Fatalf("blank slug must fail")
	}
	if _, err := svc.Record(ctx, 1, 2, "export", 0); err == nil {
		t.Fatalf("zero delta must fail")
	}
	if _, err := svc.Record(ctx, 1, 2, "export", -3); err == nil {
		t.Fatalf("negative delta must fail: counters never move backwards")
	}
}

func TestResetInvalidatesUser(t *testing.T) {
	repo := &mockRepo{}
	svc, inv := newTestService(repo)

	if err := svc.Reset(context.Background(), 0, 1, "export"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(repo.resets) != 1 || repo.resets[0] != "export" {
		t.Fatalf("reset expected: %v", repo.resets)
	}
	if len(inv.users) != 1 || inv.users[0] != 1 {
		t.Fatalf("user eviction expected: %v", inv.users)
	}
}

func TestResetAllEvictsAffectedUsers(t *testing.T) {
	repo := &mockRepo{resetAll: []int64{1, 4, 9}}
	svc, inv := newTestService(repo)

	affected, err := svc.ResetAll(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if affected != 3 {
		t.Fatalf("expected 3 affected users, got %d", affected)
	}
	if len(inv.users) != 3 {
		t.Fatalf("every affected user must be evicted: %v", inv.users)
	}
}

func TestUsageForUserEngineShape(t *testing.T) {
	repo := &mockRepo{counters: []Counter{{UserID: 1, FeatureSlug: "export", Used: 42}}}
	svc, _ := newTestService(repo)

	usage, err := svc.UsageForUser(context.Background(), 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(usage) != 1 || usage[0].Slug != "export" || usage[0].Used != 42 {
		t.Fatalf("unexpected usage: %+v", usage)
	}
}
