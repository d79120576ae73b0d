package entitlement

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ResolvedKey returns the resolution cache key for one (user, org) pair.
func ResolvedKey(userID, orgID int64) string {
	return fmt.Sprintf("resolved:%d:%d", userID, orgID)
}

func userResolvedPattern(userID int64) string {
	return fmt.Sprintf("resolved:%d:*", userID)
}

// Store caches resolved permission maps in Redis with a fixed TTL. A nil
// client disables caching entirely: every read misses and every write is a
// no-op, so the engine degrades to provider reads.
type Store struct {
	client *redis.Client
	ttl    time.Duration
}

// NewStore constructs a resolution cache store.
func NewStore(client *redis.Client, ttl time.Duration) *Store {
	return &Store{client: client, ttl: ttl}
}

// Get returns the cached map for the pair, or nil when absent.
func (s *Store) Get(ctx context.Context, userID, orgID int64) (*PermissionMap, error) {
	if s == nil || s.client == nil {
		return nil, nil
	}
	key := ResolvedKey(userID, orgID)
	payload, err := s.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, &CacheError{Op: "get", Key: key, Err: err}
	}
	var pm PermissionMap
	if err := json.Unmarshal(payload, &pm); err != nil {
		// Treat a corrupt entry as a miss and evict it.
		_ = s.client.Del(ctx, key).Err()
		return nil, nil
	}
	return &pm, nil
}

// Set stores the resolved map under its pair key.
func (s *Store) Set(ctx context.Context, pm *PermissionMap) error {
	if s == nil || s.client == nil || pm == nil {
		return nil
	}
	key := ResolvedKey(pm.UserID, pm.OrgID)
	payload, err := json.Marshal(pm)
	if err != nil {
		return &CacheError{Op: "marshal", Key: key, Err: err}
	}
	if err := s.client.Set(ctx, key, payload, s.ttl).Err(); err != nil {
		return &CacheError{Op: "set", Key: key, Err: err}
	}
	return nil
}

// Delete evicts the entry for one pair.
func (s *Store) Delete(ctx context.Context, userID, orgID int64) error {
	if s == nil || s.client == nil {
		return nil
	}
	key := ResolvedKey(userID, orgID)
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return &CacheError{Op: "del", Key: key, Err: err}
	}
	return nil
}

// DeleteAllForUser evicts every organization's entry for one user.
func (s *Store) DeleteAllForUser(ctx context.Context, userID int64) error {
	if s == nil || s.client == nil {
		return nil
	}
	pattern := userResolvedPattern(userID)
	iter := s.client.Scan(ctx, 0, pattern, 0).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return &CacheError{Op: "scan", Key: pattern, Err: err}
	}
	if len(keys) == 0 {
		return nil
	}
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return &CacheError{Op: "del", Key: pattern, Err: err}
	}
	return nil
}
