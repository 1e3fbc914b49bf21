package loyalty

import (
	"errors"
	"testing"
	"time"

	"github.com/erp/backoffice/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCustomer(t *testing.T) *Customer {
	t.Helper()
	c, err := NewCustomer(uuid.New(), "Amina Otieno", "0712345678", "amina@example.com")
	require.NoError(t, err)
	return c
}

func TestNewCustomer(t *testing.T) {
	c := newTestCustomer(t)

	assert.Equal(t, "+0712345678", c.Phone)
	assert.Equal(t, TierBronze, c.Tier)
	assert.Equal(t, LoyaltyPoints{}, c.Points)
	assert.Equal(t, 1, c.Version)
	assert.False(t, c.JoinDate.IsZero())
	require.Len(t, c.GetDomainEvents(), 1)
	assert.Equal(t, EventTypeCustomerCreated, c.GetDomainEvents()[0].EventType())

	t.Run("rejects missing fields", func(t *testing.T) {
		_, err := NewCustomer(uuid.Nil, "x", "0712345678", "")
		assert.True(t, errors.Is(err, shared.ErrValidation))
		_, err = NewCustomer(uuid.New(), " ", "0712345678", "")
		assert.True(t, errors.Is(err, shared.ErrValidation))
		_, err = NewCustomer(uuid.New(), "x", "", "")
		assert.True(t, errors.Is(err, shared.ErrValidation))
		_, err = NewCustomer(uuid.New(), "x", "0712345678", "not-an-email")
		assert.True(t, errors.Is(err, shared.ErrValidation))
	})
}

func TestCustomer_Apply(t *testing.T) {
	c := newTestCustomer(t)
	prior := c.Points.Balance

	earn, err := NewAccrual(c.OrganizationID, c.ID, 100, TransactionEarned, "order #42", "42")
	require.NoError(t, err)
	tx1, err := c.Apply(earn)
	require.NoError(t, err)

	redeem, err := NewRedemption(c.OrganizationID, c.ID, 40, "discount", "")
	require.NoError(t, err)
	tx2, err := c.Apply(redeem)
	require.NoError(t, err)

	assert.Equal(t, prior+60, c.Points.Balance)
	assert.True(t, c.Points.Consistent())
	assert.Equal(t, int64(100), tx1.BalanceAfter)
	assert.Equal(t, int64(100), tx2.BalanceBefore)
	assert.Equal(t, int64(60), tx2.BalanceAfter)
	assert.Equal(t, TransactionRedeemed, tx2.Type)
	assert.Equal(t, 3, c.Version)
}

func TestCustomer_Apply_InsufficientBalance(t *testing.T) {
	c := newTestCustomer(t)
	earn, _ := NewAccrual(c.OrganizationID, c.ID, 30, TransactionBonus, "welcome", "")
	_, err := c.Apply(earn)
	require.NoError(t, err)
	before := c.Points
	version := c.Version

	redeem, err := NewRedemption(c.OrganizationID, c.ID, 31, "too much", "")
	require.NoError(t, err)
	_, err = c.Apply(redeem)

	assert.True(t, errors.Is(err, shared.ErrInsufficientBalance))
	assert.Equal(t, before, c.Points)
	assert.Equal(t, version, c.Version)
}

func TestCustomer_Apply_TierFollowsEarnedPoints(t *testing.T) {
	c := newTestCustomer(t)
	c.ClearDomainEvents()

	earn, _ := NewAccrual(c.OrganizationID, c.ID, 1200, TransactionEarned, "big order", "")
	_, err := c.Apply(earn)
	require.NoError(t, err)
	assert.Equal(t, TierGold, c.Tier)

	events := c.GetDomainEvents()
	require.Len(t, events, 2)
	tierEvent, ok := events[1].(*TierChangedEvent)
	require.True(t, ok)
	assert.Equal(t, TierBronze, tierEvent.From)
	assert.Equal(t, TierGold, tierEvent.To)

	redeem, _ := NewRedemption(c.OrganizationID, c.ID, 1100, "voucher", "")
	_, err = c.Apply(redeem)
	require.NoError(t, err)
	assert.Equal(t, TierGold, c.Tier, "redemption does not downgrade")
}

func TestCustomer_Apply_BalanceInvariantHolds(t *testing.T) {
	c := newTestCustomer(t)
	ops := []struct {
		typ    TransactionType
		points int64
	}{
		{TransactionEarned, 50}, {TransactionRedeemed, 20}, {TransactionBonus, 5},
		{TransactionRedeemed, 100}, {TransactionRedeemed, 35}, {TransactionEarned, 1},
	}
	for _, op := range ops {
		entry := LedgerEntry{OrganizationID: c.OrganizationID, CustomerID: c.ID, Type: op.typ, Points: op.points, Description: "op"}
		_, _ = c.Apply(entry)
		assert.True(t, c.Points.Consistent(), "after %s %d: %+v", op.typ, op.points, c.Points)
	}
	assert.Equal(t, int64(1), c.Points.Balance)
}

func TestCustomer_Apply_WrongCustomer(t *testing.T) {
	c := newTestCustomer(t)
	entry, _ := NewAccrual(c.OrganizationID, uuid.New(), 10, TransactionEarned, "x", "")

	_, err := c.Apply(entry)
	assert.True(t, errors.Is(err, shared.ErrNotFound))
}

func TestCustomer_RecordVisit(t *testing.T) {
	c := newTestCustomer(t)
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	c.RecordVisit(at, decimal.NewFromInt(1500))
	c.RecordVisit(at, decimal.NewFromInt(-3))

	require.NotNil(t, c.LastVisit)
	assert.Equal(t, at, *c.LastVisit)
	assert.True(t, c.TotalSpent.Equal(decimal.NewFromInt(1500)))
}

func TestLedgerEntry_Validate(t *testing.T) {
	org, cust := uuid.New(), uuid.New()

	_, err := NewAccrual(org, cust, 10, TransactionRedeemed, "x", "")
	assert.True(t, errors.Is(err, shared.ErrValidation), "accrual cannot redeem")

	_, err = NewAccrual(org, cust, 0, TransactionEarned, "x", "")
	assert.True(t, errors.Is(err, shared.ErrValidation))

	_, err = NewRedemption(org, cust, -4, "x", "")
	assert.True(t, errors.Is(err, shared.ErrValidation))

	_, err = NewRedemption(org, cust, 4, "   ", "")
	assert.True(t, errors.Is(err, shared.ErrValidation))

	e, err := NewRedemption(org, cust, 4, "voucher", "POS-7")
	require.NoError(t, err)
	assert.Equal(t, int64(-4), e.Delta())
}

func TestCustomerDocument_RoundTrip(t *testing.T) {
	c := newTestCustomer(t)
	c.Points = LoyaltyPoints{Earned: 700, Redeemed: 100, Balance: 600}
	c.Tier = TierSilver

	back := DocumentFromCustomer(c).ToCustomer()
	require.NotNil(t, back)
	assert.Equal(t, c.ID, back.ID)
	assert.Equal(t, c.OrganizationID, back.OrganizationID)
	assert.Equal(t, c.Points, back.Points)
	assert.Equal(t, TierSilver, back.Tier)

	assert.Nil(t, CustomerDocument{ID: "bad"}.ToCustomer())
}
