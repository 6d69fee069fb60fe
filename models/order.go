package models

import (
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/amirphl/Orochi-Mail/utils"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

// OrderStatus represents the settlement status of an order
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "Pending"
	OrderStatusProcessing OrderStatus = "Processing"
	OrderStatusCompleted  OrderStatus = "Completed"
	OrderStatusFailed     OrderStatus = "Failed"
	OrderStatusCanceled   OrderStatus = "Canceled"
)

// String returns the string representation of the status
func (s OrderStatus) String() string {
	return string(s)
}

// Valid checks if the status is valid
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusProcessing, OrderStatusCompleted,
		OrderStatusFailed, OrderStatusCanceled:
		return true
	default:
		return false
	}
}

// IsFinal reports whether the order can no longer be settled
func (s OrderStatus) IsFinal() bool {
	return s == OrderStatusCompleted || s == OrderStatusFailed || s == OrderStatusCanceled
}

// Scan implements the sql.Scanner interface for OrderStatus
func (s *OrderStatus) Scan(value any) error {
	if value == nil {
		*s = ""
		return nil
	}

	switch v := value.(type) {
	case string:
		*s = OrderStatus(v)
	case []byte:
		*s = OrderStatus(string(v))
	default:
		return fmt.Errorf("cannot scan %T into OrderStatus", value)
	}

	return nil
}

// Value implements the driver.Valuer interface for OrderStatus
func (s OrderStatus) Value() (driver.Value, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid OrderStatus: %s", s)
	}
	return string(s), nil
}

// Order is created when a campaign enters the payment step
type Order struct {
	ID             string         `gorm:"primaryKey;size:64" json:"id"`
	CustomerID     uint           `gorm:"not null;index:idx_orders_customer_id" json:"customer_id"`
	CustomerEmail  string         `gorm:"size:255" json:"customer_email,omitempty"`
	CampaignID     uint           `gorm:"not null;index:idx_orders_campaign_id" json:"campaign_id"`
	RecipientCount int64          `gorm:"not null" json:"recipient_count"`
	UnitRate       uint64         `gorm:"not null" json:"unit_rate"`
	TierLabel      string         `gorm:"size:100" json:"tier_label"`
	TotalAmount    uint64         `gorm:"not null" json:"total_amount"`
	Currency       string         `gorm:"type:varchar(3);not null;default:'TMN'" json:"currency"`
	Status         OrderStatus    `gorm:"type:varchar(20);not null;default:'Pending';index:idx_orders_status" json:"status"`
	TransactionIDs pq.StringArray `gorm:"type:text[];not null;default:'{}'" json:"transaction_ids"`
	GatewayToken   *string        `gorm:"size:255" json:"gateway_token,omitempty"`
	CreatedAt      time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP;index:idx_orders_created_at" json:"created_at"`
	UpdatedAt      time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName returns the table name for the model
func (Order) TableName() string {
	return "orders"
}

// BeforeCreate assigns an id and defaults
func (o *Order) BeforeCreate(tx *gorm.DB) error {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	if o.Status == "" {
		o.Status = OrderStatusPending
	}
	if o.Currency == "" {
		o.Currency = utils.TomanCurrency
	}
	now := utils.UTCNow()
	if o.CreatedAt.IsZero() {
		o.CreatedAt = now
	}
	o.UpdatedAt = now
	return nil
}

// OrderUpdate carries a partial update; nil fields are left untouched
type OrderUpdate struct {
	Status       *OrderStatus
	TotalAmount  *uint64
	AppendTxID   *string
	GatewayToken *string
}

// OrderFilter represents filter criteria for orders
type OrderFilter struct {
	ID         *string      `json:"id,omitempty"`
	CustomerID *uint        `json:"customer_id,omitempty"`
	CampaignID *uint        `json:"campaign_id,omitempty"`
	Status     *OrderStatus `json:"status,omitempty"`
}
