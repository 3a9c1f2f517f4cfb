package estimator

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	// DefaultCacheTTL is how long an estimate stays cached
	DefaultCacheTTL = 24 * time.Hour
	// DefaultCacheSize is the in-memory cache capacity
	DefaultCacheSize = 1024

	cacheKeyPrefix = "estimate:"
)

// Cache stores known estimates keyed by normalized description
type Cache interface {
	Get(ctx context.Context, key string) (minutes int, found bool, err error)
	Set(ctx context.Context, key string, minutes int) error
}

// CacheKey normalizes a description (case and whitespace) and hashes it
func CacheKey(description string) string {
	normalized := strings.Join(strings.Fields(strings.ToLower(description)), " ")
	sum := sha256.Sum256([]byte(normalized))
	return cacheKeyPrefix + hex.EncodeToString(sum[:])
}

// MemoryCache is a size-bounded LRU with per-entry expiry
type MemoryCache struct {
	lru *expirable.LRU[string, int]
}

// NewMemoryCache creates an in-process cache
func NewMemoryCache(size int, ttl time.Duration) *MemoryCache {
	if size <= 0 {
		size = DefaultCacheSize
	}
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &MemoryCache{lru: expirable.NewLRU[string, int](size, nil, ttl)}
}

// Get implements Cache
func (c *MemoryCache) Get(_ context.Context, key string) (int, bool, error) {
	minutes, ok := c.lru.Get(key)
	return minutes, ok, nil
}

// Set implements Cache
func (c *MemoryCache) Set(_ context.Context, key string, minutes int) error {
	c.lru.Add(key, minutes)
	return nil
}

// Len returns the number of cached estimates
func (c *MemoryCache) Len() int {
	return c.lru.Len()
}

// RedisCache shares estimates between server and worker processes
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCache creates a cache on an existing redis client
func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &RedisCache{client: client, ttl: ttl}
}

// Get implements Cache
func (c *RedisCache) Get(ctx context.Context, key string) (int, bool, error) {
	val, err := c.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to read cached estimate: %w", err)
	}
	minutes, err := strconv.Atoi(val)
	if err != nil {
		return 0, false, fmt.Errorf("failed to decode cached estimate: %w", err)
	}
	return minutes, true, nil
}

// Set implements Cache
func (c *RedisCache) Set(ctx context.Context, key string, minutes int) error {
	if err := c.client.Set(ctx, key, strconv.Itoa(minutes), c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache estimate: %w", err)
	}
	return nil
}

// CachedEstimator memoizes known estimates of another estimator.
// Unknown results are never cached so a later provider may still answer.
// Cache failures are logged and never fail the estimate.
type CachedEstimator struct {
	next   Estimator
	cache  Cache
	logger *zap.Logger
}

// NewCachedEstimator wraps next with cache
func NewCachedEstimator(next Estimator, cache Cache, logger *zap.Logger) *CachedEstimator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachedEstimator{next: next, cache: cache, logger: logger}
}

// EstimateMinutes implements Estimator
func (c *CachedEstimator) EstimateMinutes(ctx context.Context, description string) (int, bool, error) {
	key := CacheKey(description)

	minutes, found, err := c.cache.Get(ctx, key)
	if err != nil {
		c.logger.Warn("estimate_cache_read_failed", zap.Error(err))
	} else if found {
		return minutes, true, nil
	}

	minutes, ok, err := c.next.EstimateMinutes(ctx, description)
	if err != nil || !ok {
		return minutes, ok, err
	}

	if err := c.cache.Set(ctx, key, minutes); err != nil {
		c.logger.Warn("estimate_cache_write_failed", zap.Error(err))
	}
	return minutes, true, nil
}
