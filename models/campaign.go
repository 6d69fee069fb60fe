// Package models contains domain entities persisted by the campaign lifecycle service
package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/amirphl/Orochi-Mail/utils"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

// CampaignStatus represents the lifecycle status of an email campaign
type CampaignStatus string

const (
	CampaignStatusTargeting  CampaignStatus = "targeting"
	CampaignStatusEditing    CampaignStatus = "editing"
	CampaignStatusScheduled  CampaignStatus = "scheduled"
	CampaignStatusPayment    CampaignStatus = "payment"
	CampaignStatusProcessing CampaignStatus = "processing"
	CampaignStatusSending    CampaignStatus = "sending"
	CampaignStatusCompleted  CampaignStatus = "completed"
)

// campaignStatusOrder lists statuses in transition order
var campaignStatusOrder = []CampaignStatus{
	CampaignStatusTargeting,
	CampaignStatusEditing,
	CampaignStatusScheduled,
	CampaignStatusPayment,
	CampaignStatusProcessing,
	CampaignStatusSending,
	CampaignStatusCompleted,
}

// String returns the string representation of the status
func (s CampaignStatus) String() string {
	return string(s)
}

// Valid checks if the status is valid
func (s CampaignStatus) Valid() bool {
	return s.Rank() >= 0
}

// Rank returns the position of the status in the lifecycle, or -1 if unknown
func (s CampaignStatus) Rank() int {
	for i, st := range campaignStatusOrder {
		if st == s {
			return i
		}
	}
	return -1
}

// IsLocked reports whether the status can only be changed by external events
func (s CampaignStatus) IsLocked() bool {
	return s.Rank() >= CampaignStatusProcessing.Rank()
}

// Next returns the status that follows s, or false for the terminal status
func (s CampaignStatus) Next() (CampaignStatus, bool) {
	r := s.Rank()
	if r < 0 || r == len(campaignStatusOrder)-1 {
		return "", false
	}
	return campaignStatusOrder[r+1], true
}

// Previous returns the back-transition target for s, if one exists
func (s CampaignStatus) Previous() (CampaignStatus, bool) {
	switch s {
	case CampaignStatusEditing:
		return CampaignStatusTargeting, true
	case CampaignStatusScheduled:
		return CampaignStatusEditing, true
	case CampaignStatusPayment:
		return CampaignStatusScheduled, true
	default:
		return "", false
	}
}

// Scan implements the sql.Scanner interface for CampaignStatus
func (s *CampaignStatus) Scan(value any) error {
	if value == nil {
		*s = ""
		return nil
	}

	switch v := value.(type) {
	case string:
		*s = CampaignStatus(v)
	case []byte:
		*s = CampaignStatus(string(v))
	default:
		return fmt.Errorf("cannot scan %T into CampaignStatus", value)
	}

	return nil
}

// Value implements the driver.Valuer interface for CampaignStatus
func (s CampaignStatus) Value() (driver.Value, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid CampaignStatus: %s", s)
	}
	return string(s), nil
}

// ContentSource tells where the message body comes from
type ContentSource string

const (
	ContentSourceInlineEditor ContentSource = "inline-editor"
	ContentSourceUploadedHTML ContentSource = "uploaded-html"
)

// Valid checks if the content source is known
func (c ContentSource) Valid() bool {
	return c == ContentSourceInlineEditor || c == ContentSourceUploadedHTML
}

// ABTestConfig holds the subject line split test parameters
type ABTestConfig struct {
	Enabled          bool   `json:"enabled"`
	SubjectVariantB  string `json:"subject_variant_b,omitempty"`
	TestGroupPercent int    `json:"test_group_percent,omitempty"`
}

// CampaignMessage is the persisted message section
type CampaignMessage struct {
	Subject       string        `json:"subject"`
	Body          string        `json:"body,omitempty"`
	ContentSource ContentSource `json:"content_source"`
	HTMLFileID    *string       `json:"html_file_id,omitempty"`
	ABTest        ABTestConfig  `json:"ab_test"`
}

// CampaignSchedule is the persisted schedule section
type CampaignSchedule struct {
	SendDate      string `json:"send_date"` // YYYY-MM-DD
	SendTime      string `json:"send_time"` // HH:MM
	TimezoneAware bool   `json:"timezone_aware"`
}

const (
	ScheduleDateLayout = "2006-01-02"
	ScheduleTimeLayout = "15:04"
)

// SendAt combines date and time in UTC
func (s CampaignSchedule) SendAt() (time.Time, error) {
	return time.ParseInLocation(ScheduleDateLayout+" "+ScheduleTimeLayout, s.SendDate+" "+s.SendTime, time.UTC)
}

// CampaignSpec is the JSON document holding the message and schedule sections
type CampaignSpec struct {
	Message  *CampaignMessage  `json:"message,omitempty"`
	Schedule *CampaignSchedule `json:"schedule,omitempty"`
}

// Value implements the driver.Valuer interface for CampaignSpec
func (s CampaignSpec) Value() (driver.Value, error) {
	return json.Marshal(s)
}

// Scan implements the sql.Scanner interface for CampaignSpec
func (s *CampaignSpec) Scan(value any) error {
	if value == nil {
		*s = CampaignSpec{}
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into CampaignSpec", value)
	}

	return json.Unmarshal(bytes, s)
}

// Campaign is the durable campaign record
type Campaign struct {
	ID                  uint           `gorm:"primaryKey" json:"id"`
	UUID                uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex:uk_campaigns_uuid" json:"uuid"`
	CustomerID          uint           `gorm:"not null;index:idx_campaigns_customer_id" json:"customer_id"`
	Status              CampaignStatus `gorm:"type:varchar(20);not null;default:'targeting';index:idx_campaigns_status" json:"status"`
	AudienceCategoryIDs pq.StringArray `gorm:"type:text[];not null;default:'{}'" json:"audience_category_ids"`
	Spec                CampaignSpec   `gorm:"type:jsonb;not null" json:"spec"`
	LinkedOrderID       *string        `gorm:"size:64;index:idx_campaigns_linked_order_id" json:"linked_order_id,omitempty"`
	CreatedAt           time.Time      `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');index:idx_campaigns_created_at" json:"created_at"`
	UpdatedAt           *time.Time     `gorm:"index:idx_campaigns_updated_at" json:"updated_at,omitempty"`

	// Server-side resolved audience, refreshed whenever audience links change
	RecipientCount int64          `gorm:"not null;default:0" json:"recipient_count"`
	HealthScore    float64        `gorm:"type:numeric(6,2);not null;default:0" json:"health_score"`
	AudienceNames  pq.StringArray `gorm:"type:text[];not null;default:'{}'" json:"audience_names"`
}

// TableName returns the table name for the model
func (Campaign) TableName() string {
	return "campaigns"
}

// BeforeCreate is called before creating a new record
func (c *Campaign) BeforeCreate(tx *gorm.DB) error {
	if c.UUID == uuid.Nil {
		c.UUID = uuid.New()
	}
	if c.Status == "" {
		c.Status = CampaignStatusTargeting
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = utils.UTCNow()
	}
	return nil
}

// BeforeUpdate is called before updating a record
func (c *Campaign) BeforeUpdate(tx *gorm.DB) error {
	now := utils.UTCNow()
	c.UpdatedAt = &now
	return nil
}

// CanTransitionTo checks whether newStatus is the immediate successor of the current status
func (c *Campaign) CanTransitionTo(newStatus CampaignStatus) bool {
	next, ok := c.Status.Next()
	return ok && next == newStatus
}

// CampaignUpdate carries a partial update; nil fields are left untouched
type CampaignUpdate struct {
	Status              *CampaignStatus
	AudienceCategoryIDs []string
	Message             *CampaignMessage
	Schedule            *CampaignSchedule
	LinkedOrderID       *string
}

// IsEmpty reports whether the update changes nothing
func (u CampaignUpdate) IsEmpty() bool {
	return u.Status == nil && u.AudienceCategoryIDs == nil && u.Message == nil &&
		u.Schedule == nil && u.LinkedOrderID == nil
}

// CampaignFilter represents filter criteria for campaigns
type CampaignFilter struct {
	ID            *uint           `json:"id,omitempty"`
	UUID          *uuid.UUID      `json:"uuid,omitempty"`
	CustomerID    *uint           `json:"customer_id,omitempty"`
	Status        *CampaignStatus `json:"status,omitempty"`
	LinkedOrderID *string         `json:"linked_order_id,omitempty"`
	CreatedAfter  *time.Time      `json:"created_after,omitempty"`
	CreatedBefore *time.Time      `json:"created_before,omitempty"`
}
