package loyalty

import (
	"time"

	"github.com/google/uuid"
)

// PointsTransaction is an immutable record of one ledger entry.
// It is never updated after creation.
type PointsTransaction struct {
	ID             uuid.UUID       `json:"id"`
	OrganizationID uuid.UUID       `json:"organization_id"`
	CustomerID     uuid.UUID       `json:"customer_id"`
	Type           TransactionType `json:"type"`
	Amount         int64           `json:"amount"`
	Description    string          `json:"description"`
	SourceOrderID  string          `json:"source_order_id,omitempty"`
	RedeemedFrom   string          `json:"redeemed_from,omitempty"`
	BalanceBefore  int64           `json:"balance_before"`
	BalanceAfter   int64           `json:"balance_after"`
	CreatedAt      time.Time       `json:"created_at"`
}

// NewPointsTransaction records entry against the balance it moved
func NewPointsTransaction(entry LedgerEntry, balanceBefore int64) *PointsTransaction {
	return &PointsTransaction{
		ID:             uuid.New(),
		OrganizationID: entry.OrganizationID,
		CustomerID:     entry.CustomerID,
		Type:           entry.Type,
		Amount:         entry.Points,
		Description:    entry.Description,
		SourceOrderID:  entry.SourceOrderID,
		RedeemedFrom:   entry.RedeemedFrom,
		BalanceBefore:  balanceBefore,
		BalanceAfter:   balanceBefore + entry.Delta(),
		CreatedAt:      time.Now(),
	}
}

// IsCredit reports whether the transaction added points
func (t *PointsTransaction) IsCredit() bool {
	return t.Type.IsCredit()
}
