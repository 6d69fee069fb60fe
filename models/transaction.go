package models

import (
	"time"

	"github.com/amirphl/Orochi-Mail/utils"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// TransactionResult describes how a settlement attempt ended
type TransactionResult string

const (
	TransactionResultSettled  TransactionResult = "settled"
	TransactionResultRejected TransactionResult = "rejected"
	TransactionResultDeclined TransactionResult = "declined"
	TransactionResultUnknown  TransactionResult = "inconclusive"
)

// Transaction is one attempt to settle an order through the payment gateway
type Transaction struct {
	ID              string            `gorm:"primaryKey;size:64" json:"id"`
	OrderID         string            `gorm:"size:64;not null;index:idx_transactions_order_id" json:"order_id"`
	TrackingID      *string           `gorm:"size:255;uniqueIndex:uk_transactions_tracking_id" json:"tracking_id,omitempty"`
	ReferenceNumber string            `gorm:"size:255" json:"reference_number"`
	ResultCode      int               `gorm:"not null;default:0" json:"result_code"`
	ResultStatus    TransactionResult `gorm:"type:varchar(20);not null" json:"result_status"`
	Message         string            `gorm:"type:text" json:"message"`
	Timestamp       time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP;index:idx_transactions_timestamp" json:"timestamp"`
}

// TableName returns the table name for the model
func (Transaction) TableName() string {
	return "transactions"
}

// BeforeCreate assigns an id and timestamp
func (t *Transaction) BeforeCreate(tx *gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.Timestamp.IsZero() {
		t.Timestamp = utils.UTCNow()
	}
	return nil
}

// IsSettled reports whether the attempt confirmed settlement
func (t *Transaction) IsSettled() bool {
	return t.ResultStatus == TransactionResultSettled
}

// TransactionFilter represents filter criteria for transactions
type TransactionFilter struct {
	ID         *string `json:"id,omitempty"`
	OrderID    *string `json:"order_id,omitempty"`
	TrackingID *string `json:"tracking_id,omitempty"`
}
