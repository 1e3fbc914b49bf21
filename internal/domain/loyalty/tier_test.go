package loyalty

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTierForPoints(t *testing.T) {
	tests := []struct {
		earned int64
		want   Tier
	}{
		{0, TierBronze},
		{499, TierBronze},
		{500, TierSilver},
		{999, TierSilver},
		{1000, TierGold},
		{1999, TierGold},
		{2000, TierPlatinum},
		{1_000_000, TierPlatinum},
		{-5, TierBronze},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, TierForPoints(tt.earned), "earned=%d", tt.earned)
	}
}

func TestTier_Rank(t *testing.T) {
	assert.Equal(t, 0, TierBronze.Rank())
	assert.Equal(t, 3, TierPlatinum.Rank())
	assert.Equal(t, -1, Tier("Diamond").Rank())
	assert.True(t, TierGold.DiscountPercent().IsPositive())
	assert.True(t, Tier("Diamond").DiscountPercent().IsZero())
}

func TestParseTier(t *testing.T) {
	tier, err := ParseTier(" gold ")
	require.NoError(t, err)
	assert.Equal(t, TierGold, tier)

	_, err = ParseTier("diamond")
	assert.Error(t, err)
}
