package loyalty

import (
	"net/mail"
	"strings"
	"time"

	"github.com/erp/backoffice/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LoyaltyPoints is the running points aggregate of a customer.
// Balance always equals Earned - Redeemed and is never negative.
type LoyaltyPoints struct {
	Earned   int64 `json:"points_earned"`
	Redeemed int64 `json:"points_redeemed"`
	Balance  int64 `json:"balance"`
}

// Consistent reports whether the aggregate satisfies its invariant
func (p LoyaltyPoints) Consistent() bool {
	return p.Balance == p.Earned-p.Redeemed && p.Balance >= 0
}

// Customer is the loyalty aggregate root
type Customer struct {
	shared.OrganizationAggregateRoot
	Name       string
	Phone      string
	Email      string
	Tier       Tier
	Points     LoyaltyPoints
	LastVisit  *time.Time
	TotalSpent decimal.Decimal
	JoinDate   time.Time
	History    []PointsTransaction // loaded on demand
}

// NewCustomer registers a Bronze customer with an empty balance.
// The phone is normalized before validation.
func NewCustomer(orgID uuid.UUID, name, phone, email string) (*Customer, error) {
	if orgID == uuid.Nil {
		return nil, shared.NewValidationError("organization id is required")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, shared.NewValidationError("name is required")
	}
	if len(name) > 200 {
		return nil, shared.NewValidationError("name cannot exceed 200 characters")
	}
	phone = NormalizePhone(phone)
	if err := ValidatePhone(phone); err != nil {
		return nil, err
	}
	email = strings.TrimSpace(email)
	if email != "" {
		if _, err := mail.ParseAddress(email); err != nil {
			return nil, shared.NewValidationError("invalid email %q", email)
		}
	}

	c := &Customer{
		OrganizationAggregateRoot: shared.NewOrganizationAggregateRoot(orgID),
		Name:                      name,
		Phone:                     phone,
		Email:                     email,
		Tier:                      TierBronze,
		TotalSpent:                decimal.Zero,
	}
	c.JoinDate = c.CreatedAt
	c.AddDomainEvent(&CustomerCreatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeCustomerCreated, c.ID, orgID),
		Phone:           phone,
	})
	return c, nil
}

// Apply mutates the balance with a ledger entry and returns the recorded
// transaction. Redemptions above the balance fail with INSUFFICIENT_BALANCE
// and leave the customer untouched. The tier follows cumulative earned points.
func (c *Customer) Apply(entry LedgerEntry) (*PointsTransaction, error) {
	if err := entry.Validate(); err != nil {
		return nil, err
	}
	if entry.CustomerID != c.ID || entry.OrganizationID != c.OrganizationID {
		return nil, shared.NewNotFoundError("customer")
	}
	if !entry.Type.IsCredit() && entry.Points > c.Points.Balance {
		return nil, shared.ErrInsufficientBalance
	}

	tx := NewPointsTransaction(entry, c.Points.Balance)
	if entry.Type.IsCredit() {
		c.Points.Earned += entry.Points
	} else {
		c.Points.Redeemed += entry.Points
	}
	c.Points.Balance = tx.BalanceAfter

	previous := c.Tier
	c.Tier = TierForPoints(c.Points.Earned)
	c.Touch()
	c.IncrementVersion()

	c.AddDomainEvent(NewLedgerEvent(tx))
	if previous != c.Tier {
		c.AddDomainEvent(NewTierChangedEvent(c.ID, c.OrganizationID, previous, c.Tier))
	}
	return tx, nil
}

// RecordVisit stamps the last visit and adds to the lifetime spend
func (c *Customer) RecordVisit(at time.Time, spent decimal.Decimal) {
	c.LastVisit = &at
	if spent.IsPositive() {
		c.TotalSpent = c.TotalSpent.Add(spent)
	}
	c.Touch()
}

// DiscountPercent returns the discount percentage of the customer's tier
func (c *Customer) DiscountPercent() decimal.Decimal {
	return c.Tier.DiscountPercent()
}
