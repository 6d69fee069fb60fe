package models

import "time"

// PricingTier is a volume threshold and the per-recipient rate applied from it.
// Rates are in minor currency units.
// Table: pricing_tiers
type PricingTier struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	Level            string    `gorm:"size:100;not null;uniqueIndex:uk_pricing_tiers_level" json:"level"`
	MinimumVolume    int64     `gorm:"not null;uniqueIndex:uk_pricing_tiers_minimum_volume" json:"minimum_volume"`
	RatePerRecipient uint64    `gorm:"not null" json:"rate_per_recipient"`
	CreatedAt        time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
	UpdatedAt        time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"updated_at"`
}

func (PricingTier) TableName() string {
	return "pricing_tiers"
}

// PricingTable is a set of tiers ordered by MinimumVolume ascending
type PricingTable []PricingTier

type PricingTierFilter struct {
	Level *string `json:"level,omitempty"`
}
