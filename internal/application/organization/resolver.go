package organization

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jellydator/ttlcache/v3"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/erp/backoffice/internal/domain/organization"
	"github.com/erp/backoffice/internal/domain/shared"
)

// Slug cache defaults
const (
	DefaultSlugCacheCapacity = 10000
	DefaultSlugCacheTTL      = 3 * time.Hour
)

// NewSlugCache creates a bounded slug-to-id cache. Hits do not extend an
// entry's lifetime, so a renamed slug is picked up within ttl.
func NewSlugCache(capacity uint64, ttl time.Duration) *ttlcache.Cache[string, uuid.UUID] {
	if capacity == 0 {
		capacity = DefaultSlugCacheCapacity
	}
	if ttl <= 0 {
		ttl = DefaultSlugCacheTTL
	}
	return ttlcache.New(
		ttlcache.WithCapacity[string, uuid.UUID](capacity),
		ttlcache.WithTTL[string, uuid.UUID](ttl),
		ttlcache.WithDisableTouchOnHit[string, uuid.UUID](),
	)
}

// Resolver maps the organization named by a request to its id. Only
// active organizations resolve.
type Resolver struct {
	repo   organization.Repository
	cache  *ttlcache.Cache[string, uuid.UUID]
	group  singleflight.Group
	logger *zap.Logger
}

// NewResolver creates a Resolver. A nil cache gets a default-sized one.
func NewResolver(repo organization.Repository, cache *ttlcache.Cache[string, uuid.UUID], logger *zap.Logger) *Resolver {
	if cache == nil {
		cache = NewSlugCache(0, 0)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{repo: repo, cache: cache, logger: logger.Named("organization.resolver")}
}

// ResolveSlug returns the id of the active organization with slug
func (r *Resolver) ResolveSlug(ctx context.Context, slug string) (uuid.UUID, error) {
	slug = organization.NormalizeSlug(slug)
	if err := organization.ValidateSlug(slug); err != nil {
		return uuid.Nil, err
	}
	if item := r.cache.Get(slug); item != nil {
		return item.Value(), nil
	}

	v, err, _ := r.group.Do(slug, func() (any, error) {
		org, err := r.repo.FindBySlug(ctx, slug)
		if err != nil {
			return uuid.Nil, err
		}
		if !org.IsActive() {
			return uuid.Nil, shared.NewNotFoundError("organization")
		}
		r.cache.Set(slug, org.ID, ttlcache.DefaultTTL)
		return org.ID, nil
	})
	if err != nil {
		return uuid.Nil, err
	}
	return v.(uuid.UUID), nil
}

// ResolveID checks that id names an active organization. Known ids are
// remembered alongside the slugs.
func (r *Resolver) ResolveID(ctx context.Context, id uuid.UUID) (uuid.UUID, error) {
	if id == uuid.Nil {
		return uuid.Nil, shared.NewValidationError("organization id is required")
	}
	key := "id:" + id.String()
	if r.cache.Has(key) {
		return id, nil
	}

	org, err := r.repo.FindByID(ctx, id)
	if err != nil {
		return uuid.Nil, err
	}
	if !org.IsActive() {
		return uuid.Nil, shared.NewNotFoundError("organization")
	}
	r.cache.Set(key, id, ttlcache.DefaultTTL)
	return id, nil
}

// Forget drops a cached slug, used after an organization is renamed or deactivated
func (r *Resolver) Forget(slug string, id uuid.UUID) {
	r.cache.Delete(organization.NormalizeSlug(slug))
	r.cache.Delete("id:" + id.String())
	r.logger.Debug("Organization evicted from resolver cache", zap.String("slug", slug))
}

// Len returns the number of cached entries
func (r *Resolver) Len() int {
	return r.cache.Len()
}
