package models

import (
	"encoding/json"
	"time"
)

type AuditLog struct {
	ID           uint            `gorm:"primaryKey" json:"id"`
	CustomerID   *uint           `gorm:"index:idx_audit_customer_id" json:"customer_id,omitempty"`
	CampaignID   *uint           `gorm:"index:idx_audit_campaign_id" json:"campaign_id,omitempty"`
	Action       string          `gorm:"type:varchar(64);not null;index:idx_audit_action" json:"action"`
	Description  *string         `gorm:"type:text" json:"description,omitempty"`
	RequestID    *string         `gorm:"size:255;index:idx_audit_request_id" json:"request_id,omitempty"`
	Metadata     json.RawMessage `gorm:"type:jsonb" json:"metadata,omitempty"`
	Success      *bool           `gorm:"default:true;index:idx_audit_success" json:"success"`
	ErrorMessage *string         `gorm:"type:text" json:"error_message,omitempty"`
	CreatedAt    time.Time       `gorm:"default:CURRENT_TIMESTAMP;index:idx_audit_created_at" json:"created_at"`
}

func (AuditLog) TableName() string {
	return "audit_log"
}

// Audit action constants
const (
	AuditActionCampaignCreated       = "campaign_created"
	AuditActionCampaignStatusChanged = "campaign_status_changed"
	AuditActionOrderStatusChanged    = "order_status_changed"
)

// AuditLogFilter represents filter criteria for audit log queries
type AuditLogFilter struct {
	CustomerID *uint
	CampaignID *uint
	Action     *string
}
