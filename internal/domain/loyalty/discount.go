package loyalty

import (
	"math"

	"github.com/shopspring/decimal"
)

// DefaultPointsPerKES is the points-per-currency-unit rate used when the
// caller does not supply one.
const DefaultPointsPerKES = 200

var hundred = decimal.NewFromInt(100)

// DiscountInput is the input of the discount calculator.
// PointsPerKES <= 0 selects DefaultPointsPerKES.
type DiscountInput struct {
	Tier         Tier
	Balance      int64
	OrderTotal   float64
	PointsPerKES float64
}

// DiscountInputFor builds the calculator input from a customer
func DiscountInputFor(c *Customer, orderTotal, pointsPerKES float64) DiscountInput {
	if c == nil {
		return DiscountInput{OrderTotal: orderTotal, PointsPerKES: pointsPerKES}
	}
	return DiscountInput{
		Tier:         c.Tier,
		Balance:      c.Points.Balance,
		OrderTotal:   orderTotal,
		PointsPerKES: pointsPerKES,
	}
}

// DiscountQuote is the full breakdown behind a points cost
type DiscountQuote struct {
	Tier            Tier            `json:"tier"`
	DiscountPercent decimal.Decimal `json:"discount_percent"`
	DiscountAmount  decimal.Decimal `json:"discount_amount"`
	PointsRequired  int64           `json:"points_required"` // before capping at the balance
	Points          int64           `json:"points"`          // min(points_required, balance)
}

// CalculateDiscountPoints returns the points needed to apply the tier's
// percentage discount to the order, capped at the available balance.
func CalculateDiscountPoints(in DiscountInput) int64 {
	return QuoteDiscount(in).Points
}

// QuoteDiscount computes the discount breakdown. The points cost always
// rounds up. Non-finite or non-positive totals and empty balances yield zero.
func QuoteDiscount(in DiscountInput) DiscountQuote {
	q := DiscountQuote{
		Tier:            in.Tier,
		DiscountPercent: in.Tier.DiscountPercent(),
		DiscountAmount:  decimal.Zero,
	}
	if math.IsNaN(in.OrderTotal) || math.IsInf(in.OrderTotal, 0) || in.OrderTotal <= 0 {
		return q
	}

	rate := in.PointsPerKES
	if math.IsNaN(rate) || math.IsInf(rate, 0) || rate <= 0 {
		rate = DefaultPointsPerKES
	}

	q.DiscountAmount = decimal.NewFromFloat(in.OrderTotal).Mul(q.DiscountPercent).Div(hundred)
	required := q.DiscountAmount.Mul(decimal.NewFromFloat(rate)).Ceil()

	balance := decimal.NewFromInt(max(in.Balance, 0))
	if required.GreaterThan(balance) {
		q.PointsRequired = clampInt64(required)
		q.Points = balance.IntPart()
		return q
	}
	q.PointsRequired = required.IntPart()
	q.Points = q.PointsRequired
	return q
}

var maxInt64 = decimal.NewFromInt(math.MaxInt64)

func clampInt64(d decimal.Decimal) int64 {
	if d.GreaterThan(maxInt64) {
		return math.MaxInt64
	}
	return d.IntPart()
}
