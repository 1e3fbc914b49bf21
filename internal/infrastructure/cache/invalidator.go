package cache

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Invalidator deletes every cache entry of an organization's resource
type Invalidator struct {
	cache  Cache
	logger *zap.Logger
}

// NewInvalidator creates an Invalidator
func NewInvalidator(c Cache, logger *zap.Logger) *Invalidator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Invalidator{cache: c, logger: logger.Named("cache.invalidator")}
}

// Invalidate deletes all keys matching {resource}:{orgID}:*, or *:{orgID}:*
// when resource is empty. Every matched key is collected first and then
// deleted before returning, so readers never see a partially cleared set
// left behind by this call. It returns the number of keys deleted.
func (i *Invalidator) Invalidate(ctx context.Context, orgID uuid.UUID, resource Resource) (int, error) {
	pattern := Pattern(orgID, resource)
	keys, err := i.cache.Keys(ctx, pattern)
	if err != nil {
		return 0, fmt.Errorf("collect keys for %q: %w", pattern, err)
	}
	if len(keys) == 0 {
		return 0, nil
	}
	if err := i.cache.Del(ctx, keys...); err != nil {
		return 0, fmt.Errorf("delete %d keys for %q: %w", len(keys), pattern, err)
	}
	i.logger.Debug("Cache invalidated",
		zap.String("pattern", pattern),
		zap.Int("deleted", len(keys)))
	return len(keys), nil
}

// InvalidateBestEffort invalidates each resource and only logs failures.
// It never fails the write it runs on behalf of.
func (i *Invalidator) InvalidateBestEffort(ctx context.Context, orgID uuid.UUID, resources ...Resource) {
	if len(resources) == 0 {
		resources = []Resource{""}
	}
	for _, r := range resources {
		if _, err := i.Invalidate(ctx, orgID, r); err != nil {
			i.logger.Warn("Cache invalidation failed",
				zap.String("organization_id", orgID.String()),
				zap.String("resource", string(r)),
				zap.Error(err))
		}
	}
}
