package persistence

import (
	"context"
	"errors"

	"github.com/erp/backoffice/internal/domain/organization"
	"github.com/erp/backoffice/internal/domain/shared"
	"github.com/erp/backoffice/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormOrganizationRepository implements organization.Repository using GORM
type GormOrganizationRepository struct {
	db *gorm.DB
}

// NewGormOrganizationRepository creates a new GormOrganizationRepository
func NewGormOrganizationRepository(db *gorm.DB) *GormOrganizationRepository {
	return &GormOrganizationRepository{db: db}
}

// FindByID finds an organization by ID
func (r *GormOrganizationRepository) FindByID(ctx context.Context, id uuid.UUID) (*organization.Organization, error) {
	return r.findOne(ctx, "id = ?", id)
}

// FindBySlug finds an organization by its slug
func (r *GormOrganizationRepository) FindBySlug(ctx context.Context, slug string) (*organization.Organization, error) {
	return r.findOne(ctx, "slug = ?", organization.NormalizeSlug(slug))
}

// Create inserts a new organization
func (r *GormOrganizationRepository) Create(ctx context.Context, org *organization.Organization) error {
	if err := r.db.WithContext(ctx).Create(models.OrganizationModelFromDomain(org)).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return shared.ErrAlreadyExists.WithMessage("organization slug already taken")
		}
		return shared.NewPersistenceError("create organization", err)
	}
	return nil
}

func (r *GormOrganizationRepository) findOne(ctx context.Context, cond string, arg any) (*organization.Organization, error) {
	var model models.OrganizationModel
	if err := r.db.WithContext(ctx).Where(cond, arg).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.NewNotFoundError("organization")
		}
		return nil, shared.NewPersistenceError("load organization", err)
	}
	return model.ToDomain(), nil
}

var _ organization.Repository = (*GormOrganizationRepository)(nil)
