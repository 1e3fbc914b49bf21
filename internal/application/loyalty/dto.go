package loyalty

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/erp/backoffice/internal/domain/loyalty"
)

// AccrueCommand credits points. Type defaults to EARNED.
type AccrueCommand struct {
	OrganizationID uuid.UUID
	CustomerID     uuid.UUID
	Points         int64
	Type           string
	Description    string
	OrderID        string
}

// RedeemCommand debits points
type RedeemCommand struct {
	OrganizationID uuid.UUID
	CustomerID     uuid.UUID
	Points         int64
	Description    string
	RedeemedFrom   string
}

// CreateCustomerCommand registers a loyalty customer
type CreateCustomerCommand struct {
	OrganizationID uuid.UUID
	Name           string
	Phone          string
	Email          string
}

// HistoryQuery pages through a customer's transactions
type HistoryQuery struct {
	OrganizationID uuid.UUID
	CustomerID     uuid.UUID
	Type           string // empty for all types
	Page           int
	PageSize       int
}

// DiscountCommand asks for the points cost of a customer's tier discount.
// PointsPerKES <= 0 uses the configured rate.
type DiscountCommand struct {
	OrganizationID uuid.UUID
	CustomerID     uuid.UUID
	OrderTotal     float64
	PointsPerKES   float64
}

// CustomerResponse is the API view of a loyalty customer
type CustomerResponse struct {
	ID              uuid.UUID             `json:"id"`
	OrganizationID  uuid.UUID             `json:"organization_id"`
	Name            string                `json:"name"`
	Phone           string                `json:"phone"`
	Email           string                `json:"email,omitempty"`
	Tier            loyalty.Tier          `json:"tier"`
	DiscountPercent decimal.Decimal       `json:"discount_percent"`
	Points          loyalty.LoyaltyPoints `json:"loyalty_points"`
	LastVisit       *time.Time            `json:"last_visit,omitempty"`
	TotalSpent      decimal.Decimal       `json:"total_spent"`
	JoinDate        time.Time             `json:"join_date"`
	Transactions    []TransactionResponse `json:"transactions,omitempty"`
}

// TransactionResponse is the API view of a points transaction
type TransactionResponse struct {
	ID            uuid.UUID               `json:"id"`
	CustomerID    uuid.UUID               `json:"customer_id"`
	Type          loyalty.TransactionType `json:"type"`
	Amount        int64                   `json:"amount"`
	Description   string                  `json:"description"`
	SourceOrderID string                  `json:"source_order_id,omitempty"`
	RedeemedFrom  string                  `json:"redeemed_from,omitempty"`
	BalanceBefore int64                   `json:"balance_before"`
	BalanceAfter  int64                   `json:"balance_after"`
	CreatedAt     time.Time               `json:"created_at"`
}

// LedgerResponse is the outcome of an accrual or redemption
type LedgerResponse struct {
	Customer     CustomerResponse    `json:"customer"`
	Transaction  TransactionResponse `json:"transaction"`
	PreviousTier loyalty.Tier        `json:"previous_tier"`
	TierChanged  bool                `json:"tier_changed"`
}

// SearchResult wraps search hits. Customers is never nil.
type SearchResult struct {
	Customers []CustomerResponse `json:"customers"`
}

// DiscountResponse is the points cost of a tier discount
type DiscountResponse struct {
	CustomerID      uuid.UUID       `json:"customer_id"`
	Tier            loyalty.Tier    `json:"tier"`
	DiscountPercent decimal.Decimal `json:"discount_percent"`
	DiscountAmount  decimal.Decimal `json:"discount_amount"`
	PointsRequired  int64           `json:"points_required"`
	PointsUncapped  int64           `json:"points_uncapped"`
	Balance         int64           `json:"balance"`
}

// ReindexResult reports a full organization reindex
type ReindexResult struct {
	OrganizationID uuid.UUID `json:"organization_id"`
	Indexed        int       `json:"indexed"`
	Batches        int       `json:"batches"`
}

// ToCustomerResponse maps a customer to its API view
func ToCustomerResponse(c *loyalty.Customer) CustomerResponse {
	return CustomerResponse{
		ID:              c.ID,
		OrganizationID:  c.OrganizationID,
		Name:            c.Name,
		Phone:           c.Phone,
		Email:           c.Email,
		Tier:            c.Tier,
		DiscountPercent: c.DiscountPercent(),
		Points:          c.Points,
		LastVisit:       c.LastVisit,
		TotalSpent:      c.TotalSpent,
		JoinDate:        c.JoinDate,
	}
}

// ToCustomerResponses maps a slice of customers
func ToCustomerResponses(customers []loyalty.Customer) []CustomerResponse {
	out := make([]CustomerResponse, len(customers))
	for i := range customers {
		out[i] = ToCustomerResponse(&customers[i])
	}
	return out
}

// ToTransactionResponse maps a points transaction
func ToTransactionResponse(t *loyalty.PointsTransaction) TransactionResponse {
	return TransactionResponse{
		ID:            t.ID,
		CustomerID:    t.CustomerID,
		Type:          t.Type,
		Amount:        t.Amount,
		Description:   t.Description,
		SourceOrderID: t.SourceOrderID,
		RedeemedFrom:  t.RedeemedFrom,
		BalanceBefore: t.BalanceBefore,
		BalanceAfter:  t.BalanceAfter,
		CreatedAt:     t.CreatedAt,
	}
}

// ToTransactionResponses maps a slice of transactions
func ToTransactionResponses(txs []loyalty.PointsTransaction) []TransactionResponse {
	out := make([]TransactionResponse, len(txs))
	for i := range txs {
		out[i] = ToTransactionResponse(&txs[i])
	}
	return out
}

// documentsToResponses maps index documents, skipping malformed ones
func documentsToResponses(docs []loyalty.CustomerDocument) []CustomerResponse {
	out := make([]CustomerResponse, 0, len(docs))
	for _, d := range docs {
		if c := d.ToCustomer(); c != nil {
			out = append(out, ToCustomerResponse(c))
		}
	}
	return out
}
