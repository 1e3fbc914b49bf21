package cache

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// ReadThrough loads values through a Cache. Concurrent misses on the same
// key share one loader call. Cache failures are logged and never returned.
type ReadThrough struct {
	cache  Cache
	group  singleflight.Group
	logger *zap.Logger
}

// NewReadThrough creates a ReadThrough over c
func NewReadThrough(c Cache, logger *zap.Logger) *ReadThrough {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReadThrough{cache: c, logger: logger.Named("cache")}
}

// Cache returns the underlying cache
func (r *ReadThrough) Cache() Cache {
	return r.cache
}

// Lookup reads and decodes key. Corrupted entries are deleted and reported as a miss.
func Lookup[T any](ctx context.Context, r *ReadThrough, key string) (T, bool) {
	var zero T
	data, ok, err := r.cache.Get(ctx, key)
	if err != nil {
		r.logger.Warn("Cache read failed", zap.String("key", key), zap.Error(err))
		return zero, false
	}
	if !ok {
		return zero, false
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		r.logger.Warn("Dropping corrupted cache entry", zap.String("key", key), zap.Error(err))
		_ = r.cache.Del(ctx, key)
		return zero, false
	}
	return v, true
}

// Store encodes and writes v under key, logging failures
func Store[T any](ctx context.Context, r *ReadThrough, key string, v T, ttl time.Duration) {
	data, err := json.Marshal(v)
	if err != nil {
		r.logger.Warn("Cache encode failed", zap.String("key", key), zap.Error(err))
		return
	}
	if err := r.cache.Set(ctx, key, data, ttl); err != nil {
		r.logger.Warn("Cache write failed", zap.String("key", key), zap.Error(err))
	}
}

// Remember returns the cached value for key, or calls load, caches its
// result for ttl and returns it. Loader errors are returned and not cached.
func Remember[T any](ctx context.Context, r *ReadThrough, key string, ttl time.Duration, load func(context.Context) (T, error)) (T, error) {
	if v, ok := Lookup[T](ctx, r, key); ok {
		return v, nil
	}

	res, err, _ := r.group.Do(key, func() (any, error) {
		v, err := load(ctx)
		if err != nil {
			return v, err
		}
		Store(ctx, r, key, v, ttl)
		return v, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return res.(T), nil
}
