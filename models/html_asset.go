package models

import (
	"time"

	"github.com/amirphl/Orochi-Mail/utils"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// HTMLAsset represents an uploaded HTML message body stored on disk.
type HTMLAsset struct {
	ID               uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	UUID             uuid.UUID `gorm:"type:uuid;uniqueIndex;not null" json:"uuid"`
	CustomerID       uint      `gorm:"not null;index" json:"customer_id"`
	OriginalFilename string    `gorm:"type:varchar(255);not null" json:"original_filename"`
	StoredPath       string    `gorm:"type:text;not null" json:"stored_path"`
	SizeBytes        int64     `gorm:"type:bigint;not null" json:"size_bytes"`
	MimeType         string    `gorm:"type:varchar(100);not null" json:"mime_type"`
	CreatedAt        time.Time `gorm:"not null;default:CURRENT_TIMESTAMP;index" json:"created_at"`
}

func (HTMLAsset) TableName() string { return "html_assets" }

// BeforeCreate ensures UUID and timestamps are set.
func (m *HTMLAsset) BeforeCreate(tx *gorm.DB) error {
	if m.UUID == uuid.Nil {
		m.UUID = uuid.New()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = utils.UTCNow()
	}
	return nil
}

type HTMLAssetFilter struct {
	UUID       *uuid.UUID `json:"uuid,omitempty"`
	CustomerID *uint      `json:"customer_id,omitempty"`
}
