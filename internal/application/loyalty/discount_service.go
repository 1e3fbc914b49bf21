package loyalty

import (
	"context"

	"github.com/google/uuid"

	"github.com/erp/backoffice/internal/domain/loyalty"
	"github.com/erp/backoffice/internal/domain/shared"
	"github.com/erp/backoffice/internal/infrastructure/telemetry"
)

// DiscountService prices a customer's tier discount in points
type DiscountService struct {
	lookup       *CustomerLookupService
	pointsPerKES float64
}

// NewDiscountService creates a DiscountService. A non-positive rate uses
// loyalty.DefaultPointsPerKES.
func NewDiscountService(lookup *CustomerLookupService, pointsPerKES float64) *DiscountService {
	if pointsPerKES <= 0 {
		pointsPerKES = loyalty.DefaultPointsPerKES
	}
	return &DiscountService{lookup: lookup, pointsPerKES: pointsPerKES}
}

// Calculate returns the points needed for the customer's tier discount on
// the order, capped at the balance. The customer is read from the snapshot cache.
func (s *DiscountService) Calculate(ctx context.Context, cmd DiscountCommand) (*DiscountResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "discount", "calculate")
	defer span.End()

	if cmd.OrganizationID == uuid.Nil || cmd.CustomerID == uuid.Nil {
		return nil, shared.NewValidationError("organization id and customer id are required")
	}

	c, err := s.lookup.GetCustomerByID(ctx, cmd.OrganizationID, cmd.CustomerID, false)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	rate := cmd.PointsPerKES
	if rate <= 0 {
		rate = s.pointsPerKES
	}
	q := loyalty.QuoteDiscount(loyalty.DiscountInput{
		Tier:         c.Tier,
		Balance:      c.Points.Balance,
		OrderTotal:   cmd.OrderTotal,
		PointsPerKES: rate,
	})
	telemetry.SetAttributes(span,
		telemetry.SpanAttrTier, string(q.Tier),
		telemetry.SpanAttrPoints, q.Points,
	)

	return &DiscountResponse{
		CustomerID:      c.ID,
		Tier:            q.Tier,
		DiscountPercent: q.DiscountPercent,
		DiscountAmount:  q.DiscountAmount,
		PointsRequired:  q.Points,
		PointsUncapped:  q.PointsRequired,
		Balance:         c.Points.Balance,
	}, nil
}
