package roles

import (
	"context"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/featurekit/featurekit/internal/platform/cache"
)

type mockRepo struct {
	permissions     []string
	permissionCalls int
	holders         []Holder
	holdersErr      error
	holdersCalls    int
	deleted         []int64
}

func (m *mockRepo) ListRoles(ctx context.Context, orgID int64) ([]Role, error) { return nil, nil }
func (m *mockRepo) GetRole(ctx context.Context, id int64) (Role, error)        { return Role{ID: id}, nil }
func (m *mockRepo) CreateRole(ctx context.Context, orgID int64, name, description string) (Role, error) {
	return Role{ID: 1, OrgID: orgID, Name: name}, nil
}

func (m *mockRepo) DeleteRole(ctx context.Context, id int64) error {
	m.deleted = append(m.deleted, id)
	return nil
}

func (m *mockRepo) RoleGrants(ctx context.Context, roleID int64) ([]Grant, error) { return nil, nil }
func (m *mockRepo) Grant(ctx context.Context, roleID int64, slug string) error    { return nil }
func (m *mockRepo) Revoke(ctx context.Context, roleID int64, slug string) error   { return nil }

func (m *mockRepo) AssignRole(ctx context.Context, userID, roleID, orgID int64) error { return nil }
func (m *mockRepo) RemoveRole(ctx context.Context, userID, roleID, orgID int64) error { return nil }

func (m *mockRepo) UserRolePermissions(ctx context.Context, userID, orgID int64) ([]string, error) {
	m.permissionCalls++
	return m.permissions, nil
}

func (m *mockRepo) Holders(ctx context.Context, roleID int64) ([]Holder, error) {
	m.holdersCalls++
	return m.holders, m.holdersErr
}

type recordingInvalidator struct {
	pairs []Holder
}

func (r *recordingInvalidator) InvalidatePair(ctx context.Context, userID, orgID int64) {
	r.pairs = append(r.pairs, Holder{UserID: userID, OrgID: orgID})
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

func TestUserRolePermissionsCaches(t *testing.T) {
	repo := &mockRepo{permissions: []string{"export", "reports"}}
	svc, _, _, cleanup := newTestService(t, repo)
	defer cleanup()
	ctx := context.Background()

	slugs, err := svc.UserRolePermissions(ctx, 1, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(slugs) != 2 {
		t.Fatalf("unexpected slugs: %v", slugs)
	}
	if repo.permissionCalls != 1 {
		t.Fatalf("expected 1 repo call, got %d", repo.permissionCalls)
	}

	if _, err := svc.UserRolePermissions(ctx, 1, 2); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if repo.permissionCalls != 1 {
		t.Fatalf("second read must hit the cache, calls %d", repo.permissionCalls)
	}
}

func TestGrantFansOutToHolders(t *testing.T) {
	repo := &mockRepo{
		holders: []Holder{
			{UserID: 1, OrgID: 2},
			{UserID: 4, OrgID: 2},
		},
	}
	svc, inv, mr, cleanup := newTestService(t, repo)
	defer cleanup()
	ctx := context.Background()

	// Prime the aggregated-permission cache for one holder.
	if _, err := svc.UserRolePermissions(ctx, 1, 2); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !mr.Exists(PermissionsKey(2, 1)) {
		t.Fatalf("permission cache entry expected")
	}

	if err := svc.Grant(ctx, 0, 7, "export"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if mr.Exists(PermissionsKey(2, 1)) {
		t.Fatalf("holder's permission cache entry must be evicted")
	}
	if len(inv.pairs) != 2 {
		t.Fatalf("expected 2 pair invalidations, got %d", len(inv.pairs))
	}
}

func TestGrantRequiresSlug(t *testing.T) {
	svc, _, _, cleanup := newTestService(t, &mockRepo{})
	defer cleanup()
	if err := svc.Grant(context.Background(), 0, 7, "  "); err == nil {
		t.Fatalf("blank slug must fail")
	}
}

func TestDeleteRoleInvalidatesHoldersQueriedBeforeDelete(t *testing.T) {
	repo := &mockRepo{holders: []Holder{{UserID: 1, OrgID: 2}}}
	svc, inv, _, cleanup := newTestService(t, repo)
	defer cleanup()

	if err := svc.DeleteRole(context.Background(), 0, 7); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(repo.deleted) != 1 || repo.deleted[0] != 7 {
		t.Fatalf("delete expected: %v", repo.deleted)
	}
	if repo.holdersCalls != 1 {
		t.Fatalf("holders must be captured, calls %d", repo.holdersCalls)
	}
	if len(inv.pairs) != 1 || inv.pairs[0] != (Holder{UserID: 1, OrgID: 2}) {
		t.Fatalf("unexpected invalidations: %+v", inv.pairs)
	}
}

func TestGrantFanOutFailureDoesNotFailMutation(t *testing.T) {
	repo := &mockRepo{holdersErr: errors.New("db down")}
	svc, inv, _, cleanup := newTestService(t, repo)
	defer cleanup()

	if err := svc.Grant(context.Background(), 0, 7, "export"); err != nil {
		t.Fatalf("fan-out failure must not fail the grant: %v", err)
	}
	if len(inv.pairs) != 0 {
		t.Fatalf("no invalidations expected on holder query failure")
	}
}

func TestAssignRoleInvalidatesSinglePair(t *testing.T) {
	svc, inv, mr, cleanup := newTestService(t, &mockRepo{permissions: []string{"export"}})
	defer cleanup()
	ctx := context.Background()

	if _, err := svc.UserRolePermissions(ctx, 1, 2); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := svc.AssignRole(ctx, 0, 1, 7, 2); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if mr.Exists(PermissionsKey(2, 1)) {
		t.Fatalf("assignment must evict the aggregated-permission entry")
	}
	if len(inv.pairs) != 1 || inv.pairs[0] != (Holder{UserID: 1, OrgID: 2}) {
		t.Fatalf("unexpected invalidations: %+v", inv.pairs)
	}
}
