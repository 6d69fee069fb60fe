package businessflow

import (
	"math/bits"

	"github.com/amirphl/Orochi-Mail/models"
)

// CostQuote is the price of sending to a given number of recipients
type CostQuote struct {
	RecipientCount int64  `json:"recipient_count"`
	UnitRate       uint64 `json:"unit_rate"`
	TotalCost      uint64 `json:"total_cost"`
	TierLabel      string `json:"tier_label"`
}

// ComputeCost prices recipientCount against table. It picks the tier with the
// largest minimum volume not above the count, falling back to the smallest tier.
// Every view that shows a price must go through this function. Rates and
// totals are whole currency units; a total that does not fit in uint64 is
// ErrCostOverflow.
func ComputeCost(recipientCount int64, table models.PricingTable) (CostQuote, error) {
	if recipientCount <= 0 || len(table) == 0 {
		return CostQuote{}, nil
	}

	var selected, fallback *models.PricingTier
	for i := range table {
		tier := &table[i]
		if fallback == nil || tier.MinimumVolume < fallback.MinimumVolume {
			fallback = tier
		}
		if recipientCount >= tier.MinimumVolume &&
			(selected == nil || tier.MinimumVolume > selected.MinimumVolume) {
			selected = tier
		}
	}
	if selected == nil {
		selected = fallback
	}

	hi, total := bits.Mul64(uint64(recipientCount), selected.RatePerRecipient)
	if hi != 0 {
		return CostQuote{}, ErrCostOverflow
	}

	return CostQuote{
		RecipientCount: recipientCount,
		UnitRate:       selected.RatePerRecipient,
		TotalCost:      total,
		TierLabel:      selected.Level,
	}, nil
}
