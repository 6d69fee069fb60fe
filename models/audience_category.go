package models

import (
	"database/sql/driver"
	"fmt"
	"time"
)

// HealthTier grades the deliverability of an audience category
type HealthTier string

const (
	HealthTierExcellent HealthTier = "Excellent"
	HealthTierGood      HealthTier = "Good"
	HealthTierPoor      HealthTier = "Poor"
)

// Score returns the numeric health used for averaging
func (h HealthTier) Score() float64 {
	switch h {
	case HealthTierExcellent:
		return 95
	case HealthTierGood:
		return 75
	case HealthTierPoor:
		return 25
	default:
		return 0
	}
}

// Valid checks if the tier is known
func (h HealthTier) Valid() bool {
	return h == HealthTierExcellent || h == HealthTierGood || h == HealthTierPoor
}

// Scan implements the sql.Scanner interface for HealthTier
func (h *HealthTier) Scan(value any) error {
	if value == nil {
		*h = ""
		return nil
	}

	switch v := value.(type) {
	case string:
		*h = HealthTier(v)
	case []byte:
		*h = HealthTier(string(v))
	default:
		return fmt.Errorf("cannot scan %T into HealthTier", value)
	}

	return nil
}

// Value implements the driver.Valuer interface for HealthTier
func (h HealthTier) Value() (driver.Value, error) {
	if !h.Valid() {
		return nil, fmt.Errorf("invalid HealthTier: %s", h)
	}
	return string(h), nil
}

// AudienceCategory is a reusable targeting segment. Rows are owned by the
// directory import and read-only for the lifecycle.
type AudienceCategory struct {
	ID             string     `gorm:"primaryKey;size:100" json:"id"`
	Name           string     `gorm:"size:255;not null" json:"name"`
	RecipientCount int64      `gorm:"not null;default:0" json:"recipient_count"`
	HealthTier     HealthTier `gorm:"type:varchar(20);not null" json:"health_tier"`
	IsActive       bool       `gorm:"not null;default:true;index:idx_audience_categories_active" json:"is_active"`
	CreatedAt      time.Time  `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
	UpdatedAt      time.Time  `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"updated_at"`
}

func (AudienceCategory) TableName() string {
	return "audience_categories"
}

type AudienceCategoryFilter struct {
	IDs      []string `json:"ids,omitempty"`
	IsActive *bool    `json:"is_active,omitempty"`
}
