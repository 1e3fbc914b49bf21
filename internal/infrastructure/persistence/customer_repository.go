package persistence

import (
	"context"
	"errors"
	"strings"

	"github.com/erp/backoffice/internal/domain/loyalty"
	"github.com/erp/backoffice/internal/domain/shared"
	"github.com/erp/backoffice/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormCustomerRepository implements loyalty.CustomerRepository using GORM
type GormCustomerRepository struct {
	db *gorm.DB
}

// NewGormCustomerRepository creates a new GormCustomerRepository
func NewGormCustomerRepository(db *gorm.DB) *GormCustomerRepository {
	return &GormCustomerRepository{db: db}
}

// FindByID finds a customer by ID within an organization
func (r *GormCustomerRepository) FindByID(ctx context.Context, orgID, id uuid.UUID) (*loyalty.Customer, error) {
	var model models.CustomerModel
	if err := r.db.WithContext(ctx).
		Scopes(ForOrganization(orgID)).
		Where("id = ?", id).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.NewNotFoundError("customer")
		}
		return nil, shared.NewPersistenceError("load customer", err)
	}
	return model.ToDomain(), nil
}

// FindByPhone returns the customer stored under any of the given phone forms
func (r *GormCustomerRepository) FindByPhone(ctx context.Context, orgID uuid.UUID, phones ...string) (*loyalty.Customer, error) {
	phones = nonEmpty(phones)
	if len(phones) == 0 {
		return nil, shared.NewValidationError("phone cannot be empty")
	}
	var model models.CustomerModel
	if err := r.db.WithContext(ctx).
		Scopes(ForOrganization(orgID)).
		Where("phone IN ?", phones).
		Order("created_at ASC").
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.NewNotFoundError("customer")
		}
		return nil, shared.NewPersistenceError("load customer", err)
	}
	return model.ToDomain(), nil
}

// ExistsByPhone checks if a customer with any of the phone forms exists
func (r *GormCustomerRepository) ExistsByPhone(ctx context.Context, orgID uuid.UUID, phones ...string) (bool, error) {
	phones = nonEmpty(phones)
	if len(phones) == 0 {
		return false, nil
	}
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.CustomerModel{}).
		Scopes(ForOrganization(orgID)).
		Where("phone IN ?", phones).
		Count(&count).Error; err != nil {
		return false, shared.NewPersistenceError("check customer phone", err)
	}
	return count > 0, nil
}

// Create inserts a new customer. A phone already registered in the
// organization yields ALREADY_EXISTS.
func (r *GormCustomerRepository) Create(ctx context.Context, customer *loyalty.Customer) error {
	model := models.CustomerModelFromDomain(customer)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return shared.ErrAlreadyExists.WithMessage("customer with this phone already exists")
		}
		return shared.NewPersistenceError("create customer", err)
	}
	return nil
}

// Search lists customers of an organization matching the query
func (r *GormCustomerRepository) Search(ctx context.Context, orgID uuid.UUID, query loyalty.CustomerQuery) ([]loyalty.Customer, int64, error) {
	db := r.applyQuery(r.db.WithContext(ctx).Model(&models.CustomerModel{}).Scopes(ForOrganization(orgID)), query)

	var total int64
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, shared.NewPersistenceError("count customers", err)
	}

	page := query.Page.Normalize()
	sortField := ValidateSortField(string(query.SortBy), CustomerSortFields, "created_at")
	sortDir := ValidateSortOrder(string(query.SortDir))

	var rows []models.CustomerModel
	if err := db.
		Order(sortField + " " + sortDir).
		Offset(page.Offset()).
		Limit(page.Size).
		Find(&rows).Error; err != nil {
		return nil, 0, shared.NewPersistenceError("search customers", err)
	}
	return toDomainCustomers(rows), total, nil
}

// FindInBatches walks every customer of the organization in id order
func (r *GormCustomerRepository) FindInBatches(ctx context.Context, orgID uuid.UUID, batchSize int, fn func([]loyalty.Customer) error) error {
	if batchSize <= 0 {
		batchSize = shared.MaxPageSize
	}
	var rows []models.CustomerModel
	result := r.db.WithContext(ctx).
		Scopes(ForOrganization(orgID)).
		FindInBatches(&rows, batchSize, func(_ *gorm.DB, _ int) error {
			return fn(toDomainCustomers(rows))
		})
	if result.Error != nil {
		var de *shared.DomainError
		if errors.As(result.Error, &de) {
			return de
		}
		return shared.NewPersistenceError("walk customers", result.Error)
	}
	return nil
}

func (r *GormCustomerRepository) applyQuery(db *gorm.DB, query loyalty.CustomerQuery) *gorm.DB {
	if s := strings.ToLower(strings.TrimSpace(query.Search)); s != "" {
		like := "%" + s + "%"
		db = db.Where("LOWER(name) LIKE ? OR phone LIKE ? OR LOWER(email) LIKE ?", like, like, like)
	}
	if query.Tier != "" {
		db = db.Where("tier = ?", query.Tier)
	}
	return db
}

func toDomainCustomers(rows []models.CustomerModel) []loyalty.Customer {
	customers := make([]loyalty.Customer, len(rows))
	for i := range rows {
		customers[i] = *rows[i].ToDomain()
	}
	return customers
}

func nonEmpty(values []string) []string {
	out := values[:0:0]
	for _, v := range values {
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}

var _ loyalty.CustomerRepository = (*GormCustomerRepository)(nil)
