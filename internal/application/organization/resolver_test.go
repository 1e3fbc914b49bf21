package organization

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erp/backoffice/internal/domain/organization"
	"github.com/erp/backoffice/internal/domain/shared"
)

type fakeRepository struct {
	mu    sync.Mutex
	orgs  []*organization.Organization
	calls int
}

func (r *fakeRepository) add(t *testing.T, slug string, status organization.Status) *organization.Organization {
	t.Helper()
	org, err := organization.NewOrganization(slug, slug)
	require.NoError(t, err)
	org.Status = status
	r.orgs = append(r.orgs, org)
	return org
}

func (r *fakeRepository) find(match func(*organization.Organization) bool) (*organization.Organization, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	for _, o := range r.orgs {
		if match(o) {
			return o, nil
		}
	}
	return nil, shared.NewNotFoundError("organization")
}

func (r *fakeRepository) FindByID(_ context.Context, id uuid.UUID) (*organization.Organization, error) {
	return r.find(func(o *organization.Organization) bool { return o.ID == id })
}

func (r *fakeRepository) FindBySlug(_ context.Context, slug string) (*organization.Organization, error) {
	return r.find(func(o *organization.Organization) bool { return o.Slug == slug })
}

func (r *fakeRepository) Create(_ context.Context, org *organization.Organization) error {
	r.orgs = append(r.orgs, org)
	return nil
}

func TestResolver_ResolveSlug(t *testing.T) {
	ctx := context.Background()

	t.Run("caches resolved slugs", func(t *testing.T) {
		repo := &fakeRepository{}
		org := repo.add(t, "nairobi-mart", organization.StatusActive)
		r := NewResolver(repo, NewSlugCache(10, time.Hour), nil)

		for _, s := range []string{"nairobi-mart", " Nairobi-Mart "} {
			id, err := r.ResolveSlug(ctx, s)
			require.NoError(t, err)
			assert.Equal(t, org.ID, id)
		}
		assert.Equal(t, 1, repo.calls)
	})

	t.Run("inactive and unknown organizations do not resolve", func(t *testing.T) {
		repo := &fakeRepository{}
		repo.add(t, "closed", organization.StatusInactive)
		r := NewResolver(repo, nil, nil)

		_, err := r.ResolveSlug(ctx, "closed")
		assert.True(t, errors.Is(err, shared.ErrNotFound))
		_, err = r.ResolveSlug(ctx, "missing")
		assert.True(t, errors.Is(err, shared.ErrNotFound))
		assert.Zero(t, r.Len())
	})

	t.Run("malformed slugs never reach the store", func(t *testing.T) {
		repo := &fakeRepository{}
		r := NewResolver(repo, nil, nil)
		_, err := r.ResolveSlug(ctx, "not a slug")
		assert.True(t, errors.Is(err, shared.ErrValidation))
		assert.Zero(t, repo.calls)
	})

	t.Run("cache is bounded", func(t *testing.T) {
		repo := &fakeRepository{}
		for _, s := range []string{"a1", "b2", "c3"} {
			repo.add(t, s, organization.StatusActive)
		}
		r := NewResolver(repo, NewSlugCache(2, time.Hour), nil)
		for _, s := range []string{"a1", "b2", "c3"} {
			_, err := r.ResolveSlug(ctx, s)
			require.NoError(t, err)
		}
		assert.Equal(t, 2, r.Len())
	})

	t.Run("resolvers do not share state", func(t *testing.T) {
		repo := &fakeRepository{}
		repo.add(t, "shared-org", organization.StatusActive)
		first := NewResolver(repo, NewSlugCache(10, time.Hour), nil)
		second := NewResolver(repo, NewSlugCache(10, time.Hour), nil)

		_, err := first.ResolveSlug(ctx, "shared-org")
		require.NoError(t, err)
		assert.Equal(t, 1, first.Len())
		assert.Zero(t, second.Len())
	})
}

func TestResolver_ResolveID(t *testing.T) {
	ctx := context.Background()
	repo := &fakeRepository{}
	active := repo.add(t, "active-org", organization.StatusActive)
	inactive := repo.add(t, "gone", organization.StatusInactive)
	r := NewResolver(repo, NewSlugCache(10, time.Hour), nil)

	for i := 0; i < 2; i++ {
		id, err := r.ResolveID(ctx, active.ID)
		require.NoError(t, err)
		assert.Equal(t, active.ID, id)
	}
	assert.Equal(t, 1, repo.calls)

	_, err := r.ResolveID(ctx, inactive.ID)
	assert.True(t, errors.Is(err, shared.ErrNotFound))
	_, err = r.ResolveID(ctx, uuid.Nil)
	assert.True(t, errors.Is(err, shared.ErrValidation))

	r.Forget(active.Slug, active.ID)
	_, err = r.ResolveID(ctx, active.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, repo.calls)
}
