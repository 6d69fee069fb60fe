package businessflow

import (
	"math"
	"testing"

	"github.com/amirphl/Orochi-Mail/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeCost(t *testing.T) {
	tiers := testTiers()

	tests := []struct {
		name      string
		n         int64
		table     models.PricingTable
		wantRate  uint64
		wantTotal uint64
		wantTier  string
	}{
		{name: "mid tier", n: 25000, table: tiers, wantRate: 80, wantTotal: 2_000_000, wantTier: "bulk"},
		{name: "base tier", n: 5000, table: tiers, wantRate: 100, wantTotal: 500_000, wantTier: "base"},
		{name: "exact boundary picks that tier", n: 10000, table: tiers, wantRate: 80, wantTotal: 800_000, wantTier: "bulk"},
		{name: "one below boundary", n: 9999, table: tiers, wantRate: 100, wantTotal: 999_900, wantTier: "base"},
		{name: "top tier", n: 50000, table: tiers, wantRate: 60, wantTotal: 3_000_000, wantTier: "enterprise"},
		{
			name:      "below every tier uses the smallest",
			n:         10,
			table:     models.PricingTable{{Level: "big", MinimumVolume: 1000, RatePerRecipient: 70}, {Level: "small", MinimumVolume: 500, RatePerRecipient: 90}},
			wantRate:  90,
			wantTotal: 900,
			wantTier:  "small",
		},
		{
			name:      "unordered table",
			n:         60000,
			table:     models.PricingTable{tiers[2], tiers[0], tiers[1]},
			wantRate:  60,
			wantTotal: 3_600_000,
			wantTier:  "enterprise",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			quote, err := ComputeCost(tt.n, tt.table)
			require.NoError(t, err)
			assert.Equal(t, tt.n, quote.RecipientCount)
			assert.Equal(t, tt.wantRate, quote.UnitRate)
			assert.Equal(t, tt.wantTotal, quote.TotalCost)
			assert.Equal(t, tt.wantTier, quote.TierLabel)
			assert.Equal(t, uint64(tt.n)*quote.UnitRate, quote.TotalCost)
		})
	}
}

func TestComputeCostZero(t *testing.T) {
	for _, tt := range []struct {
		n     int64
		table models.PricingTable
	}{
		{0, testTiers()},
		{-5, testTiers()},
		{1000, nil},
	} {
		quote, err := ComputeCost(tt.n, tt.table)
		require.NoError(t, err)
		assert.Equal(t, CostQuote{}, quote)
	}
}

func TestComputeCostOverflow(t *testing.T) {
	table := models.PricingTable{{Level: "base", MinimumVolume: 0, RatePerRecipient: 100}}

	_, err := ComputeCost(math.MaxInt64, table)
	require.ErrorIs(t, err, ErrCostOverflow)
	assert.True(t, IsValidationError(err))

	table[0].RatePerRecipient = 2
	quote, err := ComputeCost(math.MaxInt64, table)
	require.NoError(t, err)
	assert.Equal(t, uint64(math.MaxUint64-1), quote.TotalCost)
}
