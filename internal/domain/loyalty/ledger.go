package loyalty

import (
	"strings"

	"github.com/erp/backoffice/internal/domain/shared"
	"github.com/google/uuid"
)

// TransactionType is the kind of a points ledger entry
type TransactionType string

const (
	TransactionEarned   TransactionType = "EARNED"
	TransactionRedeemed TransactionType = "REDEEMED"
	TransactionBonus    TransactionType = "BONUS"
)

// IsValid reports whether t is a known transaction type
func (t TransactionType) IsValid() bool {
	switch t {
	case TransactionEarned, TransactionRedeemed, TransactionBonus:
		return true
	}
	return false
}

// IsCredit reports whether entries of this type add to the balance
func (t TransactionType) IsCredit() bool {
	return t == TransactionEarned || t == TransactionBonus
}

// ParseTransactionType accepts any casing of a transaction type
func ParseTransactionType(s string) (TransactionType, error) {
	t := TransactionType(strings.ToUpper(strings.TrimSpace(s)))
	if !t.IsValid() {
		return "", shared.NewValidationError("unknown transaction type %q", s)
	}
	return t, nil
}

const maxDescriptionLength = 500

// LedgerEntry is a single balance mutation. Points is always positive;
// the entry type decides whether it credits or debits the balance.
type LedgerEntry struct {
	OrganizationID uuid.UUID
	CustomerID     uuid.UUID
	Type           TransactionType
	Points         int64
	Description    string
	SourceOrderID  string // EARNED/BONUS only
	RedeemedFrom   string // REDEEMED only
}

// NewAccrual builds an EARNED or BONUS entry
func NewAccrual(orgID, customerID uuid.UUID, points int64, t TransactionType, description, orderID string) (LedgerEntry, error) {
	if !t.IsCredit() {
		return LedgerEntry{}, shared.NewValidationError("accrual type must be EARNED or BONUS, got %q", t)
	}
	e := LedgerEntry{
		OrganizationID: orgID,
		CustomerID:     customerID,
		Type:           t,
		Points:         points,
		Description:    strings.TrimSpace(description),
		SourceOrderID:  strings.TrimSpace(orderID),
	}
	return e, e.Validate()
}

// NewRedemption builds a REDEEMED entry
func NewRedemption(orgID, customerID uuid.UUID, points int64, description, redeemedFrom string) (LedgerEntry, error) {
	e := LedgerEntry{
		OrganizationID: orgID,
		CustomerID:     customerID,
		Type:           TransactionRedeemed,
		Points:         points,
		Description:    strings.TrimSpace(description),
		RedeemedFrom:   strings.TrimSpace(redeemedFrom),
	}
	return e, e.Validate()
}

// Validate checks the entry's required fields
func (e LedgerEntry) Validate() error {
	if e.OrganizationID == uuid.Nil {
		return shared.NewValidationError("organization id is required")
	}
	if e.CustomerID == uuid.Nil {
		return shared.NewValidationError("customer id is required")
	}
	if !e.Type.IsValid() {
		return shared.NewValidationError("unknown transaction type %q", e.Type)
	}
	if e.Points <= 0 {
		return shared.NewValidationError("points must be a positive number, got %d", e.Points)
	}
	if strings.TrimSpace(e.Description) == "" {
		return shared.NewValidationError("description is required")
	}
	if len(e.Description) > maxDescriptionLength {
		return shared.NewValidationError("description cannot exceed %d characters", maxDescriptionLength)
	}
	if e.Type == TransactionRedeemed && e.SourceOrderID != "" {
		return shared.NewValidationError("redemptions cannot reference a source order")
	}
	if e.Type.IsCredit() && e.RedeemedFrom != "" {
		return shared.NewValidationError("accruals cannot reference a redemption source")
	}
	return nil
}

// Delta is the signed balance change of the entry
func (e LedgerEntry) Delta() int64 {
	if e.Type.IsCredit() {
		return e.Points
	}
	return -e.Points
}
