package cache

import (
	"context"
	"sync"
	"time"

	"github.com/jellydator/ttlcache/v3"
)

const defaultMemoryCapacity = 50_000

// MemoryCache implements Cache in process. It serves single-instance
// deployments, tests, and the L1 layer of TieredCache.
type MemoryCache struct {
	items     *ttlcache.Cache[string, []byte]
	closeOnce sync.Once
}

// MemoryCacheOption configures a MemoryCache
type MemoryCacheOption func(*memoryCacheConfig)

type memoryCacheConfig struct {
	capacity uint64
}

// WithCapacity bounds the number of entries; the least recently used are evicted
func WithCapacity(n uint64) MemoryCacheOption {
	return func(c *memoryCacheConfig) {
		c.capacity = n
	}
}

// NewMemoryCache creates a MemoryCache and starts its expiry loop.
// Call Close to stop it.
func NewMemoryCache(opts ...MemoryCacheOption) *MemoryCache {
	cfg := memoryCacheConfig{capacity: defaultMemoryCapacity}
	for _, opt := range opts {
		opt(&cfg)
	}
	items := ttlcache.New(
		ttlcache.WithDisableTouchOnHit[string, []byte](),
		ttlcache.WithCapacity[string, []byte](cfg.capacity),
	)
	go items.Start()
	return &MemoryCache{items: items}
}

// Get implements Cache
func (c *MemoryCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	item := c.items.Get(key)
	if item == nil || item.IsExpired() {
		return nil, false, nil
	}
	return item.Value(), true, nil
}

// Set implements Cache. A non-positive ttl stores the key without expiry.
func (c *MemoryCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = ttlcache.NoTTL
	}
	c.items.Set(key, value, ttl)
	return nil
}

// Del implements Cache
func (c *MemoryCache) Del(_ context.Context, keys ...string) error {
	for _, k := range keys {
		c.items.Delete(k)
	}
	return nil
}

// Keys implements Cache
func (c *MemoryCache) Keys(_ context.Context, pattern string) ([]string, error) {
	var out []string
	for _, k := range c.items.Keys() {
		if MatchPattern(pattern, k) {
			out = append(out, k)
		}
	}
	return out, nil
}

// Len returns the number of live entries
func (c *MemoryCache) Len() int {
	return c.items.Len()
}

// Close stops the expiry loop
func (c *MemoryCache) Close() error {
	c.closeOnce.Do(c.items.Stop)
	return nil
}

var _ Cache = (*MemoryCache)(nil)
