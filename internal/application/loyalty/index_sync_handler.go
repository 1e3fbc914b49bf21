package loyalty

import (
	"context"
	"fmt"

	"github.com/erp/backoffice/internal/domain/loyalty"
	"github.com/erp/backoffice/internal/domain/shared"
)

// IndexSyncHandler re-indexes a customer after every committed ledger
// entry so index lookups see the new balance and tier.
type IndexSyncHandler struct {
	customers loyalty.CustomerRepository
	index     loyalty.SearchIndex
}

// NewIndexSyncHandler creates an IndexSyncHandler
func NewIndexSyncHandler(customers loyalty.CustomerRepository, index loyalty.SearchIndex) *IndexSyncHandler {
	return &IndexSyncHandler{customers: customers, index: index}
}

// EventTypes implements shared.EventHandler
func (h *IndexSyncHandler) EventTypes() []string {
	return []string{loyalty.EventTypePointsAccrued, loyalty.EventTypePointsRedeemed}
}

// Handle implements shared.EventHandler
func (h *IndexSyncHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	c, err := h.customers.FindByID(ctx, event.OrganizationID(), event.AggregateID())
	if err != nil {
		return fmt.Errorf("load customer %s for indexing: %w", event.AggregateID(), err)
	}
	return h.index.Upsert(ctx, loyalty.DocumentFromCustomer(c))
}

var _ shared.EventHandler = (*IndexSyncHandler)(nil)
