package loyalty

import (
	"github.com/erp/backoffice/internal/domain/shared"
	"github.com/google/uuid"
)

// Event types
const (
	EventTypeCustomerCreated = "CustomerCreated"
	EventTypePointsAccrued   = "PointsAccrued"
	EventTypePointsRedeemed  = "PointsRedeemed"
	EventTypeTierChanged     = "TierChanged"
)

// CustomerCreatedEvent is raised when a loyalty customer is registered
type CustomerCreatedEvent struct {
	shared.BaseDomainEvent
	Phone string `json:"phone"`
}

// PointsAccruedEvent is raised after an EARNED or BONUS entry
type PointsAccruedEvent struct {
	shared.BaseDomainEvent
	TransactionID uuid.UUID       `json:"transaction_id"`
	Type          TransactionType `json:"type"`
	Points        int64           `json:"points"`
	BalanceAfter  int64           `json:"balance_after"`
}

// PointsRedeemedEvent is raised after a REDEEMED entry
type PointsRedeemedEvent struct {
	shared.BaseDomainEvent
	TransactionID uuid.UUID `json:"transaction_id"`
	Points        int64     `json:"points"`
	BalanceAfter  int64     `json:"balance_after"`
}

// TierChangedEvent is raised when cumulative earned points cross a threshold
type TierChangedEvent struct {
	shared.BaseDomainEvent
	From Tier `json:"from"`
	To   Tier `json:"to"`
}

// NewLedgerEvent returns the event matching the transaction type
func NewLedgerEvent(tx *PointsTransaction) shared.DomainEvent {
	if tx.IsCredit() {
		return &PointsAccruedEvent{
			BaseDomainEvent: shared.NewBaseDomainEvent(EventTypePointsAccrued, tx.CustomerID, tx.OrganizationID),
			TransactionID:   tx.ID,
			Type:            tx.Type,
			Points:          tx.Amount,
			BalanceAfter:    tx.BalanceAfter,
		}
	}
	return &PointsRedeemedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypePointsRedeemed, tx.CustomerID, tx.OrganizationID),
		TransactionID:   tx.ID,
		Points:          tx.Amount,
		BalanceAfter:    tx.BalanceAfter,
	}
}

// NewTierChangedEvent creates a TierChangedEvent
func NewTierChangedEvent(customerID, orgID uuid.UUID, from, to Tier) *TierChangedEvent {
	return &TierChangedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeTierChanged, customerID, orgID),
		From:            from,
		To:              to,
	}
}
