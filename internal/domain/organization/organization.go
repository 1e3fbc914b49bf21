package organization

import (
	"context"
	"regexp"
	"strings"

	"github.com/erp/backoffice/internal/domain/shared"
	"github.com/google/uuid"
)

// Status of an organization
type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
)

var slugPattern = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

// Organization is the tenant that owns customers, ledgers and cache keys
type Organization struct {
	shared.BaseAggregateRoot
	Slug   string
	Name   string
	Status Status
}

// NewOrganization creates an active organization
func NewOrganization(slug, name string) (*Organization, error) {
	slug = NormalizeSlug(slug)
	if err := ValidateSlug(slug); err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, shared.NewValidationError("organization name is required")
	}
	return &Organization{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		Slug:              slug,
		Name:              name,
		Status:            StatusActive,
	}, nil
}

// IsActive reports whether the organization accepts requests
func (o *Organization) IsActive() bool {
	return o.Status == StatusActive
}

// NormalizeSlug lowercases and trims a slug
func NormalizeSlug(slug string) string {
	return strings.ToLower(strings.TrimSpace(slug))
}

// ValidateSlug checks a normalized slug
func ValidateSlug(slug string) error {
	if slug == "" {
		return shared.NewValidationError("organization slug is required")
	}
	if len(slug) > 63 || !slugPattern.MatchString(slug) {
		return shared.NewValidationError("invalid organization slug %q", slug)
	}
	return nil
}

// Repository loads organizations
type Repository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Organization, error)
	FindBySlug(ctx context.Context, slug string) (*Organization, error)
	Create(ctx context.Context, org *Organization) error
}
