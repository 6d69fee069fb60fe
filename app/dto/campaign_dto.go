package dto

import (
	"time"

	businessflow "github.com/amirphl/Orochi-Mail/business_flow"
)

// AudienceRequest selects the audience categories of a campaign
type AudienceRequest struct {
	CategoryIDs []string `json:"category_ids" validate:"required,min=1,max=100,dive,required,max=100"`
}

// ABTestRequest configures the subject line split test
type ABTestRequest struct {
	Enabled          bool   `json:"enabled"`
	SubjectVariantB  string `json:"subject_variant_b,omitempty" validate:"max=255"`
	TestGroupPercent int    `json:"test_group_percent,omitempty"`
}

// MessageRequest sets the message section. HTMLDocument carries an
// uploaded-html body as base64 and replaces any previous attachment.
type MessageRequest struct {
	Subject       string         `json:"subject" validate:"max=255"`
	Body          string         `json:"body,omitempty"`
	ContentSource string         `json:"content_source,omitempty" validate:"omitempty,oneof=inline-editor uploaded-html"`
	HTMLFileID    *string        `json:"html_file_id,omitempty" validate:"omitempty,max=64"`
	HTMLDocument  string         `json:"html_document,omitempty" validate:"omitempty,base64"`
	HTMLFilename  string         `json:"html_filename,omitempty" validate:"max=255"`
	ABTest        *ABTestRequest `json:"ab_test,omitempty"`
}

// ScheduleRequest sets the send date and time
type ScheduleRequest struct {
	SendDate      string `json:"send_date" validate:"required,datetime=2006-01-02"`
	SendTime      string `json:"send_time" validate:"required,datetime=15:04"`
	TimezoneAware bool   `json:"timezone_aware"`
}

// CreateCampaignRequest walks a new campaign from targeting to scheduled in one call
type CreateCampaignRequest struct {
	Audience AudienceRequest `json:"audience"`
	Message  MessageRequest  `json:"message"`
	Schedule ScheduleRequest `json:"schedule"`
}

// MessageResponse is the stored message section
type MessageResponse struct {
	Subject       string        `json:"subject"`
	Body          string        `json:"body,omitempty"`
	ContentSource string        `json:"content_source"`
	HTMLFileID    *string       `json:"html_file_id,omitempty"`
	ABTest        ABTestRequest `json:"ab_test"`
}

// ScheduleResponse is the stored schedule section
type ScheduleResponse struct {
	SendDate      string `json:"send_date"`
	SendTime      string `json:"send_time"`
	TimezoneAware bool   `json:"timezone_aware"`
}

// CampaignResponse represents a stored campaign in responses
type CampaignResponse struct {
	ID                  uint                         `json:"id"`
	UUID                string                       `json:"uuid"`
	Status              string                       `json:"status"`
	AudienceCategoryIDs []string                     `json:"audience_category_ids"`
	Audience            businessflow.AudienceSummary `json:"audience"`
	Message             *MessageResponse             `json:"message,omitempty"`
	Schedule            *ScheduleResponse            `json:"schedule,omitempty"`
	LinkedOrderID       *string                      `json:"linked_order_id,omitempty"`
	CreatedAt           time.Time                    `json:"created_at"`
	UpdatedAt           *time.Time                   `json:"updated_at,omitempty"`
}

// OrderResponse represents an order in responses
type OrderResponse struct {
	ID             string    `json:"id"`
	CampaignID     uint      `json:"campaign_id"`
	RecipientCount int64     `json:"recipient_count"`
	UnitRate       uint64    `json:"unit_rate"`
	TierLabel      string    `json:"tier_label"`
	TotalAmount    uint64    `json:"total_amount"`
	Currency       string    `json:"currency"`
	Status         string    `json:"status"`
	CreatedAt      time.Time `json:"created_at"`
}

// EnterPaymentResponse is returned when a campaign enters the payment step
type EnterPaymentResponse struct {
	Campaign CampaignResponse       `json:"campaign"`
	Quote    businessflow.CostQuote `json:"quote"`
	Order    OrderResponse          `json:"order"`
}
