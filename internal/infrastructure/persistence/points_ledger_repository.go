package persistence

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/erp/backoffice/internal/domain/loyalty"
	"github.com/erp/backoffice/internal/domain/shared"
	"github.com/erp/backoffice/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormPointsLedgerRepository implements loyalty.PointsLedgerRepository.
//
// Each entry is one database transaction holding a single conditional
// UPDATE on the customer row followed by the ledger INSERT. The balance
// check lives in the UPDATE's WHERE clause, so concurrent redemptions can
// never overdraw: the row lock serializes writers and a loser matches zero
// rows instead of reading a stale balance.
type GormPointsLedgerRepository struct {
	db *gorm.DB
}

// NewGormPointsLedgerRepository creates a new GormPointsLedgerRepository
func NewGormPointsLedgerRepository(db *gorm.DB) *GormPointsLedgerRepository {
	return &GormPointsLedgerRepository{db: db}
}

// ApplyEntry commits a ledger entry and returns the post-commit customer
func (r *GormPointsLedgerRepository) ApplyEntry(ctx context.Context, entry loyalty.LedgerEntry) (*loyalty.LedgerResult, error) {
	if err := entry.Validate(); err != nil {
		return nil, err
	}

	var result *loyalty.LedgerResult
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now()
		updates := map[string]any{
			"points_balance": gorm.Expr("points_balance + ?", entry.Delta()),
			"version":        gorm.Expr("version + 1"),
			"updated_at":     now,
		}

		stmt := tx.Model(&models.CustomerModel{}).
			Where("id = ? AND organization_id = ?", entry.CustomerID, entry.OrganizationID)
		if entry.Type.IsCredit() {
			updates["points_earned"] = gorm.Expr("points_earned + ?", entry.Points)
			updates["tier"] = tierExpr(entry.Points)
			if entry.Type == loyalty.TransactionEarned {
				updates["last_visit"] = now
			}
		} else {
			updates["points_redeemed"] = gorm.Expr("points_redeemed + ?", entry.Points)
			stmt = stmt.Where("points_balance >= ?", entry.Points)
		}

		res := stmt.Updates(updates)
		if res.Error != nil {
			return shared.NewPersistenceError("update points balance", res.Error)
		}
		if res.RowsAffected == 0 {
			return r.explainMiss(tx, entry)
		}

		var after models.CustomerModel
		if err := tx.Where("id = ?", entry.CustomerID).First(&after).Error; err != nil {
			return shared.NewPersistenceError("reload customer", err)
		}

		txn := loyalty.NewPointsTransaction(entry, after.PointsBalance-entry.Delta())
		txn.CreatedAt = now
		if err := tx.Create(models.PointsTransactionModelFromDomain(txn)).Error; err != nil {
			return shared.NewPersistenceError("record points transaction", err)
		}

		customer := after.ToDomain()
		previous := customer.Tier
		if entry.Type.IsCredit() {
			previous = loyalty.TierForPoints(after.PointsEarned - entry.Points)
		}
		result = &loyalty.LedgerResult{
			Customer:     customer,
			Transaction:  txn,
			PreviousTier: previous,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// explainMiss tells a missing customer apart from an insufficient balance
// after the conditional update matched no row.
func (r *GormPointsLedgerRepository) explainMiss(tx *gorm.DB, entry loyalty.LedgerEntry) error {
	var model models.CustomerModel
	err := tx.Select("id", "points_balance").
		Where("id = ? AND organization_id = ?", entry.CustomerID, entry.OrganizationID).
		First(&model).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return shared.NewNotFoundError("customer")
	case err != nil:
		return shared.NewPersistenceError("load customer", err)
	case !entry.Type.IsCredit():
		return shared.ErrInsufficientBalance
	default:
		return shared.ErrConcurrencyConflict
	}
}

// ListTransactions returns a customer's ledger newest first
func (r *GormPointsLedgerRepository) ListTransactions(ctx context.Context, orgID, customerID uuid.UUID, query loyalty.TransactionQuery) ([]loyalty.PointsTransaction, int64, error) {
	db := r.db.WithContext(ctx).
		Model(&models.PointsTransactionModel{}).
		Scopes(ForOrganization(orgID)).
		Where("customer_id = ?", customerID)
	if query.Type != "" {
		db = db.Where("type = ?", query.Type)
	}

	var total int64
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, shared.NewPersistenceError("count points transactions", err)
	}

	page := query.Page.Normalize()
	var rows []models.PointsTransactionModel
	if err := db.
		Order("created_at DESC").
		Offset(page.Offset()).
		Limit(page.Size).
		Find(&rows).Error; err != nil {
		return nil, 0, shared.NewPersistenceError("list points transactions", err)
	}

	txns := make([]loyalty.PointsTransaction, len(rows))
	for i := range rows {
		txns[i] = *rows[i].ToDomain()
	}
	return txns, total, nil
}

// tierExpr recomputes the tier from the post-update earned total
func tierExpr(points int64) any {
	var sql strings.Builder
	args := make([]any, 0, 12)
	sql.WriteString("CASE")
	for _, t := range loyalty.TierThresholds() {
		if t.MinPoints == 0 {
			continue
		}
		sql.WriteString(" WHEN points_earned + ? >= ? THEN ?")
		args = append(args, points, t.MinPoints, string(t.Tier))
	}
	sql.WriteString(" ELSE ? END")
	args = append(args, string(loyalty.TierBronze))
	return gorm.Expr(sql.String(), args...)
}

var _ loyalty.PointsLedgerRepository = (*GormPointsLedgerRepository)(nil)
