package persistence

import (
	"context"
	"testing"

	"github.com/erp/backoffice/internal/domain/loyalty"
	"github.com/erp/backoffice/internal/domain/organization"
	"github.com/erp/backoffice/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// setupTestDB opens an in-memory SQLite database with the loyalty schema.
// A single connection keeps every session on the same in-memory database.
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), newGormConfig(gormlogger.Default.LogMode(gormlogger.Silent)))
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(
		&models.OrganizationModel{},
		&models.CustomerModel{},
		&models.PointsTransactionModel{},
	))
	return db
}

func seedOrganization(t *testing.T, db *gorm.DB, slug string) *organization.Organization {
	t.Helper()
	org, err := organization.NewOrganization(slug, "Org "+slug)
	require.NoError(t, err)
	require.NoError(t, NewGormOrganizationRepository(db).Create(context.Background(), org))
	return org
}

func seedCustomer(t *testing.T, db *gorm.DB, orgID uuid.UUID, name, phone string) *loyalty.Customer {
	t.Helper()
	c, err := loyalty.NewCustomer(orgID, name, phone, "")
	require.NoError(t, err)
	require.NoError(t, NewGormCustomerRepository(db).Create(context.Background(), c))
	return c
}
