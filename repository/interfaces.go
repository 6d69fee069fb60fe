// Package repository provides data access layer implementations and interfaces for database operations
package repository

import (
	"context"

	"github.com/amirphl/Orochi-Mail/models"
	"github.com/google/uuid"
)

// RepositoryContext key for transaction in context
type contextKey string

const TxContextKey contextKey = "tx"

type Repository[T any, F any] interface {
	ByID(ctx context.Context, id uint) (*T, error)
	ByFilter(ctx context.Context, filter F, orderBy string, limit, offset int) ([]*T, error)
	Save(ctx context.Context, entity *T) error
	SaveBatch(ctx context.Context, entities []*T) error
	Count(ctx context.Context, filter F) (int64, error)
	Exists(ctx context.Context, filter F) (bool, error)
}

// CampaignRepository defines operations for campaign records
type CampaignRepository interface {
	Repository[models.Campaign, models.CampaignFilter]
	ByLinkedOrderID(ctx context.Context, orderID string) (*models.Campaign, error)
	UpdateFields(ctx context.Context, id uint, fields map[string]any) error
}

// OrderRepository defines operations for orders; ids are opaque strings
type OrderRepository interface {
	ByID(ctx context.Context, id string) (*models.Order, error)
	ByFilter(ctx context.Context, filter models.OrderFilter, orderBy string, limit, offset int) ([]*models.Order, error)
	Save(ctx context.Context, order *models.Order) error
	UpdateFields(ctx context.Context, id string, fields map[string]any) error
	AppendTransactionID(ctx context.Context, id, transactionID string) error
}

// TransactionRepository defines operations for gateway settlement attempts
type TransactionRepository interface {
	ByTrackingID(ctx context.Context, trackingID string) (*models.Transaction, error)
	ByOrderID(ctx context.Context, orderID string) ([]*models.Transaction, error)
	Save(ctx context.Context, tx *models.Transaction) error
}

// AudienceCategoryRepository defines operations for audience categories
type AudienceCategoryRepository interface {
	ByFilter(ctx context.Context, filter models.AudienceCategoryFilter, orderBy string, limit, offset int) ([]*models.AudienceCategory, error)
	ListActive(ctx context.Context) ([]models.AudienceCategory, error)
	Upsert(ctx context.Context, categories []models.AudienceCategory) error
}

// PricingTierRepository defines operations for pricing tiers
type PricingTierRepository interface {
	Repository[models.PricingTier, models.PricingTierFilter]
	ListOrdered(ctx context.Context) (models.PricingTable, error)
}

// HTMLAssetRepository defines operations for uploaded HTML bodies
type HTMLAssetRepository interface {
	Save(ctx context.Context, asset *models.HTMLAsset) error
	ByUUID(ctx context.Context, id uuid.UUID) (*models.HTMLAsset, error)
}

// AuditLogRepository defines operations for audit entries
type AuditLogRepository interface {
	Save(ctx context.Context, entry *models.AuditLog) error
	ByFilter(ctx context.Context, filter models.AuditLogFilter, orderBy string, limit, offset int) ([]*models.AuditLog, error)
}
