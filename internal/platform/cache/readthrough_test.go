package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestCache(t *testing.T) (*JSONCache, *miniredis.Miniredis, func()) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewJSONCache(client, time.Minute, nil), mr, func() {
		_ = client.Close()
		mr.Close()
	}
}

func TestFetchLoadsOnceThenServesCached(t *testing.T) {
	c, _, cleanup := newTestCache(t)
	defer cleanup()
	ctx := context.Background()

	calls := 0
	loader := func(ctx context.Context) (interface{}, error) {
		calls++
		return []string{"a", "b"}, nil
	}

	var out []string
	if err := c.Fetch(ctx, "k", &out, loader); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 2 || calls != 1 {
		t.Fatalf("unexpected first fetch: out=%v calls=%d", out, calls)
	}

	out = nil
	if err := c.Fetch(ctx, "k", &out, loader); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 2 || calls != 1 {
		t.Fatalf("second fetch must not reload: out=%v calls=%d", out, calls)
	}
}

func TestFetchCorruptEntryRebuilds(t *testing.T) {
	c, mr, cleanup := newTestCache(t)
	defer cleanup()
	ctx := context.Background()

	if err := mr.Set("k", "{broken"); err != nil {
		t.Fatalf("seed: %v", err)
	}

	var out []string
	err := c.Fetch(ctx, "k", &out, func(ctx context.Context) (interface{}, error) {
		return []string{"fresh"}, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 1 || out[0] != "fresh" {
		t.Fatalf("rebuild expected: %v", out)
	}
}

func TestFetchRedisDownFallsThroughToLoader(t *testing.T) {
	c, mr, cleanup := newTestCache(t)
	defer cleanup()
	mr.Close()

	var out []string
	err := c.Fetch(context.Background(), "k", &out, func(ctx context.Context) (interface{}, error) {
		return []string{"direct"}, nil
	})
	if err != nil {
		t.Fatalf("redis outage must not fail the read: %v", err)
	}
	if len(out) != 1 || out[0] != "direct" {
		t.Fatalf("loader result expected: %v", out)
	}
}

func TestFetchLoaderErrorPropagates(t *testing.T) {
	c, _, cleanup := newTestCache(t)
	defer cleanup()

	wantErr := errors.New("db down")
	var out []string
	err := c.Fetch(context.Background(), "k", &out, func(ctx context.Context) (interface{}, error) {
		return nil, wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected loader error, got %v", err)
	}
}

func TestForget(t *testing.T) {
	c, mr, cleanup := newTestCache(t)
	defer cleanup()
	ctx := context.Background()

	var out []string
	if err := c.Fetch(ctx, "k", &out, func(ctx context.Context) (interface{}, error) {
		return []string{"a"}, nil
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !mr.Exists("k") {
		t.Fatalf("entry expected before forget")
	}
	c.Forget(ctx, "k")
	if mr.Exists("k") {
		t.Fatalf("entry must be gone after forget")
	}
}

func TestNilCacheIsPassThrough(t *testing.T) {
	var c *JSONCache
	var out []string
	err := c.Fetch(context.Background(), "k", &out, func(ctx context.Context) (interface{}, error) {
		return []string{"a"}, nil
	})
	if err != nil || len(out) != 1 {
		t.Fatalf("nil cache must pass through: out=%v err=%v", out, err)
	}
	c.Forget(context.Background(), "k")
}
