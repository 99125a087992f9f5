package data

import (
	"context"
	"errors"
	"fmt"
	"time"

	"AvailGate/internal/conf"

	"github.com/go-kratos/kratos/v2/log"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/redis/go-redis/v9"
)

// cacheKeyHandle is the prefix for handle existence caches: avail:handle:{handle}
const cacheKeyHandle = "avail:handle"

// ErrCacheNotFound is returned when a cache key does not exist.
var ErrCacheNotFound = errors.New("cache: key not found")

// LookupCache caches handle existence answers for the cached lookup
// path. It layers an in-process LRU in front of Redis: the LRU absorbs
// repeated hot-key checks, Redis shares answers across instances. A nil
// or unreachable Redis client degrades to LRU-only operation.
type LookupCache struct {
	client *redis.Client
	local  *lru.Cache[string, bool]
	ttl    time.Duration
	logger *log.Helper
}

// NewLookupCache creates the handle lookup cache.
func NewLookupCache(c *conf.Data, rdb *redis.Client, logger log.Logger) (*LookupCache, error) {
	size := 4096
	ttl := 5 * time.Minute
	if c != nil && c.Redis != nil {
		if c.Redis.LocalSize > 0 {
			size = c.Redis.LocalSize
		}
		if c.Redis.CacheTTL > 0 {
			ttl = c.Redis.CacheTTL
		}
	}

	local, err := lru.New[string, bool](size)
	if err != nil {
		return nil, fmt.Errorf("cache: failed to create local LRU: %w", err)
	}

	return &LookupCache{
		client: rdb,
		local:  local,
		ttl:    ttl,
		logger: log.NewHelper(logger),
	}, nil
}

// GetExists returns the cached existence answer for a handle. The
// second return value reports whether the cache had an answer at all.
func (c *LookupCache) GetExists(ctx context.Context, handle string) (exists bool, found bool, err error) {
	key := buildCacheKey(cacheKeyHandle, handle)

	if v, ok := c.local.Get(key); ok {
		return v, true, nil
	}

	if c.client == nil {
		return false, false, nil
	}

	val, err := c.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, false, nil
		}
		return false, false, fmt.Errorf("cache: failed to get key %s: %w", key, err)
	}

	exists = val == "1"
	c.local.Add(key, exists)
	return exists, true, nil
}

// SetExists stores an existence answer with the configured TTL.
func (c *LookupCache) SetExists(ctx context.Context, handle string, exists bool) error {
	key := buildCacheKey(cacheKeyHandle, handle)

	c.local.Add(key, exists)

	if c.client == nil {
		return nil
	}

	val := "0"
	if exists {
		val = "1"
	}
	if err := c.client.Set(ctx, key, val, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache: failed to set key %s: %w", key, err)
	}
	return nil
}

// Invalidate drops the cached answer for a handle, called after a
// successful registration so the cached path stops claiming the handle
// is free.
func (c *LookupCache) Invalidate(ctx context.Context, handle string) error {
	key := buildCacheKey(cacheKeyHandle, handle)

	c.local.Remove(key)

	if c.client == nil {
		return nil
	}

	if err := c.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("cache: failed to delete key %s: %w", key, err)
	}
	return nil
}

// buildCacheKey builds a namespaced cache key: {prefix}:{id}
func buildCacheKey(prefix, id string) string {
	return fmt.Sprintf("%s:%s", prefix, id)
}
