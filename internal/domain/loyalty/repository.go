package loyalty

import (
	"context"

	"github.com/erp/backoffice/internal/domain/shared"
	"github.com/google/uuid"
)

// CustomerSortField is a sortable customer column
type CustomerSortField string

const (
	SortByName      CustomerSortField = "name"
	SortByCreatedAt CustomerSortField = "created_at"
	SortByBalance   CustomerSortField = "points_balance"
	SortByLastVisit CustomerSortField = "last_visit"
)

// CustomerQuery filters customers of one organization
type CustomerQuery struct {
	Search  string // matches name, phone or email
	Tier    Tier   // empty matches all tiers
	SortBy  CustomerSortField
	SortDir shared.SortDirection
	Page    shared.Page
}

// TransactionQuery filters a customer's points history
type TransactionQuery struct {
	Type TransactionType // empty matches all types
	Page shared.Page
}

// LedgerResult is the outcome of a committed ledger entry
type LedgerResult struct {
	Customer     *Customer
	Transaction  *PointsTransaction
	PreviousTier Tier
}

// TierChanged reports whether the entry moved the customer to another tier
func (r *LedgerResult) TierChanged() bool {
	return r.PreviousTier != r.Customer.Tier
}

// CustomerRepository is the system of record for loyalty customers
type CustomerRepository interface {
	FindByID(ctx context.Context, orgID, id uuid.UUID) (*Customer, error)
	// FindByPhone returns the first customer stored under any of the given phone forms
	FindByPhone(ctx context.Context, orgID uuid.UUID, phones ...string) (*Customer, error)
	ExistsByPhone(ctx context.Context, orgID uuid.UUID, phones ...string) (bool, error)
	Create(ctx context.Context, customer *Customer) error
	Search(ctx context.Context, orgID uuid.UUID, query CustomerQuery) ([]Customer, int64, error)
	// FindInBatches walks every customer of the organization in id order
	FindInBatches(ctx context.Context, orgID uuid.UUID, batchSize int, fn func(batch []Customer) error) error
}

// PointsLedgerRepository applies ledger entries atomically.
// ApplyEntry updates the balance with a single conditional statement and
// appends the transaction in the same database transaction.
type PointsLedgerRepository interface {
	ApplyEntry(ctx context.Context, entry LedgerEntry) (*LedgerResult, error)
	ListTransactions(ctx context.Context, orgID, customerID uuid.UUID, query TransactionQuery) ([]PointsTransaction, int64, error)
}
