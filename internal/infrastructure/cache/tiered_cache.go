package cache

import (
	"context"
	"time"

	"go.uber.org/zap"
)

const defaultL1TTL = 30 * time.Second

// TieredCache puts an in-process L1 in front of a shared L2.
// L1 entries live at most l1TTL; deletes are broadcast so peers drop
// their own L1 copies.
type TieredCache struct {
	l1          *MemoryCache
	l2          Cache
	l1TTL       time.Duration
	broadcaster *RedisBroadcaster
	logger      *zap.Logger
}

// TieredCacheOption configures a TieredCache
type TieredCacheOption func(*TieredCache)

// WithL1TTL caps how long L1 may serve an entry
func WithL1TTL(ttl time.Duration) TieredCacheOption {
	return func(c *TieredCache) {
		if ttl > 0 {
			c.l1TTL = ttl
		}
	}
}

// WithBroadcaster enables cross-instance L1 eviction
func WithBroadcaster(b *RedisBroadcaster) TieredCacheOption {
	return func(c *TieredCache) {
		c.broadcaster = b
	}
}

// WithTieredLogger sets the logger
func WithTieredLogger(logger *zap.Logger) TieredCacheOption {
	return func(c *TieredCache) {
		c.logger = logger
	}
}

// NewTieredCache creates a TieredCache
func NewTieredCache(l1 *MemoryCache, l2 Cache, opts ...TieredCacheOption) *TieredCache {
	c := &TieredCache{
		l1:     l1,
		l2:     l2,
		l1TTL:  defaultL1TTL,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get implements Cache
func (c *TieredCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if v, ok, _ := c.l1.Get(ctx, key); ok {
		return v, true, nil
	}
	v, ok, err := c.l2.Get(ctx, key)
	if err != nil || !ok {
		return nil, false, err
	}
	_ = c.l1.Set(ctx, key, v, c.l1TTL)
	return v, true, nil
}

// Set implements Cache
func (c *TieredCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := c.l2.Set(ctx, key, value, ttl); err != nil {
		return err
	}
	l1TTL := c.l1TTL
	if ttl > 0 && ttl < l1TTL {
		l1TTL = ttl
	}
	return c.l1.Set(ctx, key, value, l1TTL)
}

// Del implements Cache
func (c *TieredCache) Del(ctx context.Context, keys ...string) error {
	_ = c.l1.Del(ctx, keys...)
	if err := c.l2.Del(ctx, keys...); err != nil {
		return err
	}
	if c.broadcaster != nil {
		if err := c.broadcaster.Publish(ctx, keys); err != nil {
			c.logger.Warn("Failed to broadcast cache eviction", zap.Int("keys", len(keys)), zap.Error(err))
		}
	}
	return nil
}

// Keys implements Cache, merging both layers
func (c *TieredCache) Keys(ctx context.Context, pattern string) ([]string, error) {
	remote, err := c.l2.Keys(ctx, pattern)
	if err != nil {
		return nil, err
	}
	local, _ := c.l1.Keys(ctx, pattern)
	seen := make(map[string]struct{}, len(remote))
	for _, k := range remote {
		seen[k] = struct{}{}
	}
	for _, k := range local {
		if _, ok := seen[k]; !ok {
			remote = append(remote, k)
		}
	}
	return remote, nil
}

// Ping checks L2 when it supports it
func (c *TieredCache) Ping(ctx context.Context) error {
	if p, ok := c.l2.(Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}

// SyncEvictions applies peers' evictions to L1 until ctx is done.
// It blocks and is meant to run in its own goroutine.
func (c *TieredCache) SyncEvictions(ctx context.Context) error {
	if c.broadcaster == nil {
		return nil
	}
	return c.broadcaster.Subscribe(ctx, func(m EvictionMessage) {
		_ = c.l1.Del(ctx, m.Keys...)
	})
}

var (
	_ Cache  = (*TieredCache)(nil)
	_ Pinger = (*TieredCache)(nil)
)
