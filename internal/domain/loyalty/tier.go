package loyalty

import (
	"strings"

	"github.com/erp/backoffice/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// Tier is a discrete loyalty level derived from cumulative earned points
type Tier string

const (
	TierBronze   Tier = "Bronze"
	TierSilver   Tier = "Silver"
	TierGold     Tier = "Gold"
	TierPlatinum Tier = "Platinum"
)

// TierThreshold is the minimum cumulative earned points for a tier
type TierThreshold struct {
	Tier      Tier
	MinPoints int64
	Discount  decimal.Decimal // percent
}

// tierTable is ordered from highest to lowest threshold
var tierTable = []TierThreshold{
	{Tier: TierPlatinum, MinPoints: 2000, Discount: decimal.NewFromInt(10)},
	{Tier: TierGold, MinPoints: 1000, Discount: decimal.NewFromInt(8)},
	{Tier: TierSilver, MinPoints: 500, Discount: decimal.NewFromInt(5)},
	{Tier: TierBronze, MinPoints: 0, Discount: decimal.NewFromInt(2)},
}

// TierThresholds returns the tier table ordered from highest to lowest threshold
func TierThresholds() []TierThreshold {
	out := make([]TierThreshold, len(tierTable))
	copy(out, tierTable)
	return out
}

// TierForPoints maps cumulative earned points to a tier
func TierForPoints(earned int64) Tier {
	for _, t := range tierTable {
		if earned >= t.MinPoints {
			return t.Tier
		}
	}
	return TierBronze
}

// DiscountPercent returns the tier's discount percentage. Unknown tiers get none.
func (t Tier) DiscountPercent() decimal.Decimal {
	for _, row := range tierTable {
		if row.Tier == t {
			return row.Discount
		}
	}
	return decimal.Zero
}

// IsValid reports whether t is one of the known tiers
func (t Tier) IsValid() bool {
	switch t {
	case TierBronze, TierSilver, TierGold, TierPlatinum:
		return true
	}
	return false
}

// Rank orders tiers from Bronze (0) to Platinum (3)
func (t Tier) Rank() int {
	for i, row := range tierTable {
		if row.Tier == t {
			return len(tierTable) - 1 - i
		}
	}
	return -1
}

// ParseTier accepts any casing of a tier name
func ParseTier(s string) (Tier, error) {
	for _, row := range tierTable {
		if strings.EqualFold(string(row.Tier), strings.TrimSpace(s)) {
			return row.Tier, nil
		}
	}
	return "", shared.NewValidationError("unknown loyalty tier %q", s)
}
