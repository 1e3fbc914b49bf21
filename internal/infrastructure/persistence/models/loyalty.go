package models

import (
	"time"

	"github.com/erp/backoffice/internal/domain/loyalty"
	"github.com/erp/backoffice/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CustomerModel is the persistence model for the loyalty Customer aggregate.
// The balance checks mirror the ledger invariant so a faulty writer cannot
// commit a negative or inconsistent balance.
type CustomerModel struct {
	AggregateModel
	OrganizationID uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_customers_org_phone,priority:1"`
	Name           string          `gorm:"type:varchar(200);not null"`
	Phone          string          `gorm:"type:varchar(20);not null;uniqueIndex:idx_customers_org_phone,priority:2"`
	Email          string          `gorm:"type:varchar(200)"`
	Tier           loyalty.Tier    `gorm:"type:varchar(20);not null;default:'Bronze';index"`
	PointsBalance  int64           `gorm:"not null;default:0;check:chk_customers_balance_non_negative,points_balance >= 0"`
	PointsEarned   int64           `gorm:"not null;default:0"`
	PointsRedeemed int64           `gorm:"not null;default:0;check:chk_customers_balance_consistent,points_balance = points_earned - points_redeemed"`
	TotalSpent     decimal.Decimal `gorm:"type:decimal(18,2);not null;default:0"`
	LastVisit      *time.Time
	JoinDate       time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (CustomerModel) TableName() string {
	return "customers"
}

// ToDomain converts the persistence model to a domain Customer
func (m *CustomerModel) ToDomain() *loyalty.Customer {
	return &loyalty.Customer{
		OrganizationAggregateRoot: shared.OrganizationAggregateRoot{
			BaseAggregateRoot: m.ToDomainAggregateRoot(),
			OrganizationID:    m.OrganizationID,
		},
		Name:                      m.Name,
		Phone:                     m.Phone,
		Email:                     m.Email,
		Tier:                      m.Tier,
		Points: loyalty.LoyaltyPoints{
			Earned:   m.PointsEarned,
			Redeemed: m.PointsRedeemed,
			Balance:  m.PointsBalance,
		},
		LastVisit:  m.LastVisit,
		TotalSpent: m.TotalSpent,
		JoinDate:   m.JoinDate,
	}
}

// FromDomain populates the persistence model from a domain Customer
func (m *CustomerModel) FromDomain(c *loyalty.Customer) {
	m.FromDomainAggregateRoot(c.BaseAggregateRoot)
	m.OrganizationID = c.OrganizationID
	m.Name = c.Name
	m.Phone = c.Phone
	m.Email = c.Email
	m.Tier = c.Tier
	m.PointsBalance = c.Points.Balance
	m.PointsEarned = c.Points.Earned
	m.PointsRedeemed = c.Points.Redeemed
	m.TotalSpent = c.TotalSpent
	m.LastVisit = c.LastVisit
	m.JoinDate = c.JoinDate
}

// CustomerModelFromDomain creates a new persistence model from a domain Customer
func CustomerModelFromDomain(c *loyalty.Customer) *CustomerModel {
	m := &CustomerModel{}
	m.FromDomain(c)
	return m
}

// PointsTransactionModel is the append-only ledger row. Rows are never updated.
type PointsTransactionModel struct {
	ID             uuid.UUID               `gorm:"type:uuid;primary_key"`
	OrganizationID uuid.UUID               `gorm:"type:uuid;not null;index:idx_points_tx_org_customer,priority:1"`
	CustomerID     uuid.UUID               `gorm:"type:uuid;not null;index:idx_points_tx_org_customer,priority:2"`
	Type           loyalty.TransactionType `gorm:"type:varchar(20);not null"`
	Amount         int64                   `gorm:"not null;check:chk_points_tx_amount_positive,amount > 0"`
	Description    string                  `gorm:"type:varchar(500)"`
	SourceOrderID  string                  `gorm:"type:varchar(100)"`
	RedeemedFrom   string                  `gorm:"type:varchar(100)"`
	BalanceBefore  int64                   `gorm:"not null"`
	BalanceAfter   int64                   `gorm:"not null"`
	CreatedAt      time.Time               `gorm:"not null;index"`
}

// TableName returns the table name for GORM
func (PointsTransactionModel) TableName() string {
	return "points_transactions"
}

// ToDomain converts the persistence model to a domain PointsTransaction
func (m *PointsTransactionModel) ToDomain() *loyalty.PointsTransaction {
	return &loyalty.PointsTransaction{
		ID:             m.ID,
		OrganizationID: m.OrganizationID,
		CustomerID:     m.CustomerID,
		Type:           m.Type,
		Amount:         m.Amount,
		Description:    m.Description,
		SourceOrderID:  m.SourceOrderID,
		RedeemedFrom:   m.RedeemedFrom,
		BalanceBefore:  m.BalanceBefore,
		BalanceAfter:   m.BalanceAfter,
		CreatedAt:      m.CreatedAt,
	}
}

// PointsTransactionModelFromDomain creates a new persistence model from a domain PointsTransaction
func PointsTransactionModelFromDomain(t *loyalty.PointsTransaction) *PointsTransactionModel {
	return &PointsTransactionModel{
		ID:             t.ID,
		OrganizationID: t.OrganizationID,
		CustomerID:     t.CustomerID,
		Type:           t.Type,
		Amount:         t.Amount,
		Description:    t.Description,
		SourceOrderID:  t.SourceOrderID,
		RedeemedFrom:   t.RedeemedFrom,
		BalanceBefore:  t.BalanceBefore,
		BalanceAfter:   t.BalanceAfter,
		CreatedAt:      t.CreatedAt,
	}
}
