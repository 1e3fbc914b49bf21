package loyalty

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/erp/backoffice/internal/domain/loyalty"
	"github.com/erp/backoffice/internal/domain/shared"
)

func TestIndexSyncHandler(t *testing.T) {
	ctx := context.Background()
	orgID := uuid.New()

	t.Run("subscribes to ledger events", func(t *testing.T) {
		h := NewIndexSyncHandler(nil, nil)
		assert.ElementsMatch(t,
			[]string{loyalty.EventTypePointsAccrued, loyalty.EventTypePointsRedeemed},
			h.EventTypes())
	})

	t.Run("indexes the committed state", func(t *testing.T) {
		customers := new(MockCustomerRepository)
		index := new(MockSearchIndex)
		c := newTestCustomer(t, orgID, "Dalia", "+254700000003")
		c.Points = loyalty.LoyaltyPoints{Earned: 700, Balance: 700}
		c.Tier = loyalty.TierSilver
		customers.On("FindByID", mock.Anything, orgID, c.ID).Return(c, nil).Once()
		index.On("Upsert", mock.Anything, []loyalty.CustomerDocument{loyalty.DocumentFromCustomer(c)}).Return(nil).Once()

		event := loyalty.NewLedgerEvent(&loyalty.PointsTransaction{
			ID: uuid.New(), OrganizationID: orgID, CustomerID: c.ID,
			Type: loyalty.TransactionEarned, Amount: 700, BalanceAfter: 700,
		})
		require.NoError(t, NewIndexSyncHandler(customers, index).Handle(ctx, event))
		index.AssertExpectations(t)
	})

	t.Run("missing customer is an error", func(t *testing.T) {
		customers := new(MockCustomerRepository)
		index := new(MockSearchIndex)
		id := uuid.New()
		customers.On("FindByID", mock.Anything, orgID, id).Return(nil, shared.NewNotFoundError("customer")).Once()

		event := loyalty.NewLedgerEvent(&loyalty.PointsTransaction{
			ID: uuid.New(), OrganizationID: orgID, CustomerID: id,
			Type: loyalty.TransactionRedeemed, Amount: 10,
		})
		err := NewIndexSyncHandler(customers, index).Handle(ctx, event)
		assert.True(t, errors.Is(err, shared.ErrNotFound))
		index.AssertNotCalled(t, "Upsert", mock.Anything, mock.Anything)
	})
}
