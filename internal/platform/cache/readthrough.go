package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// JSONCache is a read-through helper storing JSON-encoded values with a fixed TTL.
// It is failure-open: when Redis is unreachable the loader result is returned
// directly and the cache write is skipped.
type JSONCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewJSONCache instantiates the cache helper.
func NewJSONCache(client *redis.Client, ttl time.Duration, logger *slog.Logger) *JSONCache {
	return &JSONCache{client: client, ttl: ttl, logger: logger}
}

// Fetch loads a cached value into dest or populates it using the loader.
func (c *JSONCache) Fetch(ctx context.Context, key string, dest interface{}, loader func(context.Context) (interface{}, error)) error {
	if loader == nil {
		return errors.New("cache: loader required")
	}
	if c == nil || c.client == nil {
		return c.loadInto(ctx, dest, loader, "")
	}
	payload, err := c.client.Get(ctx, key).Bytes()
	if err == nil {
		if unmarshalErr := json.Unmarshal(payload, dest); unmarshalErr == nil {
			return nil
		}
		// Corrupt entry: drop it and rebuild from the loader.
		_ = c.client.Del(ctx, key).Err()
	} else if err != redis.Nil {
		c.warn("cache get", key, err)
	}
	return c.loadInto(ctx, dest, loader, key)
}

// Forget removes cached entries. Errors are logged, never returned.
func (c *JSONCache) Forget(ctx context.Context, keys ...string) {
	if c == nil || c.client == nil || len(keys) == 0 {
		return
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		c.warn("cache del", keys[0], err)
	}
}

func (c *JSONCache) loadInto(ctx context.Context, dest interface{}, loader func(context.Context) (interface{}, error), key string) error {
	value, err := loader(ctx)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	if key != "" && c != nil && c.client != nil {
		if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
			c.warn("cache set", key, err)
		}
	}
	return json.Unmarshal(raw, dest)
}

func (c *JSONCache) warn(op, key string, err error) {
	if c == nil || c.logger == nil {
		return
	}
	c.logger.Warn(op, slog.String("key", key), slog.Any("error", err))
}
