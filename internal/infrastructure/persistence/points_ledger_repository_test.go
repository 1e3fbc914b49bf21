package persistence

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/erp/backoffice/internal/domain/loyalty"
	"github.com/erp/backoffice/internal/domain/shared"
	"github.com/erp/backoffice/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func accrual(t *testing.T, c *loyalty.Customer, points int64) loyalty.LedgerEntry {
	t.Helper()
	e, err := loyalty.NewAccrual(c.OrganizationID, c.ID, points, loyalty.TransactionEarned, "order", "ORD-1")
	require.NoError(t, err)
	return e
}

func redemption(t *testing.T, c *loyalty.Customer, points int64) loyalty.LedgerEntry {
	t.Helper()
	e, err := loyalty.NewRedemption(c.OrganizationID, c.ID, points, "checkout discount", "POS")
	require.NoError(t, err)
	return e
}

func TestGormPointsLedgerRepository_ApplyEntry(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGormPointsLedgerRepository(db)
	ctx := context.Background()
	org := seedOrganization(t, db, "acme")
	c := seedCustomer(t, db, org.ID, "Jane", "0712345678")

	t.Run("accrual credits balance and promotes tier", func(t *testing.T) {
		res, err := repo.ApplyEntry(ctx, accrual(t, c, 600))
		require.NoError(t, err)

		assert.Equal(t, int64(600), res.Customer.Points.Balance)
		assert.Equal(t, int64(600), res.Customer.Points.Earned)
		assert.Equal(t, loyalty.TierSilver, res.Customer.Tier)
		assert.Equal(t, loyalty.TierBronze, res.PreviousTier)
		assert.True(t, res.TierChanged())
		assert.Equal(t, int64(0), res.Transaction.BalanceBefore)
		assert.Equal(t, int64(600), res.Transaction.BalanceAfter)
		assert.NotNil(t, res.Customer.LastVisit)
		assert.Equal(t, 2, res.Customer.Version)
	})

	t.Run("redemption debits balance and keeps tier", func(t *testing.T) {
		res, err := repo.ApplyEntry(ctx, redemption(t, c, 500))
		require.NoError(t, err)

		assert.Equal(t, int64(100), res.Customer.Points.Balance)
		assert.Equal(t, int64(500), res.Customer.Points.Redeemed)
		assert.Equal(t, loyalty.TierSilver, res.Customer.Tier)
		assert.False(t, res.TierChanged())
		assert.True(t, res.Customer.Points.Consistent())
	})

	t.Run("overdraw is rejected and nothing is recorded", func(t *testing.T) {
		_, err := repo.ApplyEntry(ctx, redemption(t, c, 101))
		assert.True(t, errors.Is(err, shared.ErrInsufficientBalance))

		var model models.CustomerModel
		require.NoError(t, db.First(&model, "id = ?", c.ID).Error)
		assert.Equal(t, int64(100), model.PointsBalance)

		_, total, err := repo.ListTransactions(ctx, org.ID, c.ID, loyalty.TransactionQuery{})
		require.NoError(t, err)
		assert.Equal(t, int64(2), total)
	})

	t.Run("unknown customer", func(t *testing.T) {
		stranger := &loyalty.Customer{}
		stranger.ID = uuid.New()
		stranger.OrganizationID = org.ID
		_, err := repo.ApplyEntry(ctx, accrual(t, stranger, 10))
		assert.True(t, errors.Is(err, shared.ErrNotFound))
	})

	t.Run("customer of another organization", func(t *testing.T) {
		other := seedOrganization(t, db, "globex")
		e := accrual(t, c, 10)
		e.OrganizationID = other.ID
		_, err := repo.ApplyEntry(ctx, e)
		assert.True(t, errors.Is(err, shared.ErrNotFound))
	})

	t.Run("invalid entry never reaches the database", func(t *testing.T) {
		_, err := repo.ApplyEntry(ctx, loyalty.LedgerEntry{})
		assert.True(t, errors.Is(err, shared.ErrValidation))
	})
}

func TestGormPointsLedgerRepository_ConcurrentRedemptions(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGormPointsLedgerRepository(db)
	ctx := context.Background()
	org := seedOrganization(t, db, "acme")
	c := seedCustomer(t, db, org.ID, "Jane", "0712345678")
	_, err := repo.ApplyEntry(ctx, accrual(t, c, 100))
	require.NoError(t, err)

	const workers = 10
	entry := redemption(t, c, 30)
	var (
		wg           sync.WaitGroup
		mu           sync.Mutex
		succeeded    int
		insufficient int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repo.ApplyEntry(ctx, entry)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, shared.ErrInsufficientBalance):
				insufficient++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 3, succeeded)
	assert.Equal(t, workers-3, insufficient)

	var model models.CustomerModel
	require.NoError(t, db.First(&model, "id = ?", c.ID).Error)
	assert.Equal(t, int64(10), model.PointsBalance)
	assert.Equal(t, int64(90), model.PointsRedeemed)
}

func TestGormPointsLedgerRepository_ListTransactions(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGormPointsLedgerRepository(db)
	ctx := context.Background()
	org := seedOrganization(t, db, "acme")
	c := seedCustomer(t, db, org.ID, "Jane", "0712345678")

	for _, pts := range []int64{100, 200, 300} {
		_, err := repo.ApplyEntry(ctx, accrual(t, c, pts))
		require.NoError(t, err)
	}
	_, err := repo.ApplyEntry(ctx, redemption(t, c, 50))
	require.NoError(t, err)

	txns, total, err := repo.ListTransactions(ctx, org.ID, c.ID, loyalty.TransactionQuery{})
	require.NoError(t, err)
	assert.Equal(t, int64(4), total)
	require.Len(t, txns, 4)
	assert.Equal(t, loyalty.TransactionRedeemed, txns[0].Type)
	assert.Equal(t, int64(600), txns[0].BalanceBefore)
	assert.Equal(t, int64(550), txns[0].BalanceAfter)

	earned, total, err := repo.ListTransactions(ctx, org.ID, c.ID, loyalty.TransactionQuery{
		Type: loyalty.TransactionEarned,
		Page: shared.Page{Number: 1, Size: 2},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Len(t, earned, 2)

	none, total, err := repo.ListTransactions(ctx, uuid.New(), c.ID, loyalty.TransactionQuery{})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, none)
}

func TestGormPointsLedgerRepository_RedemptionGuardInWhereClause(t *testing.T) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer mockDB.Close()

	gormDB, err := gorm.Open(postgres.New(postgres.Config{Conn: mockDB, DriverName: "postgres"}),
		&gorm.Config{SkipDefaultTransaction: true})
	require.NoError(t, err)
	repo := NewGormPointsLedgerRepository(gormDB)

	orgID, customerID := uuid.New(), uuid.New()
	entry, err := loyalty.NewRedemption(orgID, customerID, 40, "discount", "POS")
	require.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "customers" SET .*points_balance \+ .* WHERE .*organization_id = .*points_balance >= `).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT .* FROM "customers"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "points_balance"}).AddRow(customerID, 10))
	mock.ExpectRollback()

	_, err = repo.ApplyEntry(context.Background(), entry)
	assert.True(t, errors.Is(err, shared.ErrInsufficientBalance))
	assert.NoError(t, mock.ExpectationsWereMet())
}
