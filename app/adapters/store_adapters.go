// Package adapters bridges the business flow collaborator interfaces to the gorm repositories
package adapters

import (
	"context"
	"fmt"

	businessflow "github.com/amirphl/Orochi-Mail/business_flow"
	"github.com/amirphl/Orochi-Mail/models"
	"github.com/amirphl/Orochi-Mail/repository"
	"github.com/amirphl/Orochi-Mail/utils"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

// GormUnitOfWork runs a function inside one database transaction. Nested
// calls join the transaction already carried by the context.
type GormUnitOfWork struct {
	db *gorm.DB
}

func NewGormUnitOfWork(db *gorm.DB) *GormUnitOfWork {
	return &GormUnitOfWork{db: db}
}

func (u *GormUnitOfWork) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	if repository.InTransaction(ctx) {
		return fn(ctx)
	}
	return repository.WithTransaction(ctx, u.db, fn)
}

// CampaignRecordStore implements businessflow.RecordStore. Audience links are
// resolved to recipient count, health score and names on every write, and
// each create or status change leaves an audit row in the same transaction.
type CampaignRecordStore struct {
	uow        *GormUnitOfWork
	campaigns  repository.CampaignRepository
	categories repository.AudienceCategoryRepository
	auditRepo  repository.AuditLogRepository
}

func NewCampaignRecordStore(
	db *gorm.DB,
	campaigns repository.CampaignRepository,
	categories repository.AudienceCategoryRepository,
	auditRepo repository.AuditLogRepository,
) *CampaignRecordStore {
	return &CampaignRecordStore{
		uow:        NewGormUnitOfWork(db),
		campaigns:  campaigns,
		categories: categories,
		auditRepo:  auditRepo,
	}
}

func (s *CampaignRecordStore) Create(ctx context.Context, campaign models.Campaign) (*models.Campaign, error) {
	err := s.uow.Do(ctx, func(txCtx context.Context) error {
		summary, err := s.resolveAudience(txCtx, campaign.AudienceCategoryIDs)
		if err != nil {
			return err
		}
		campaign.RecipientCount = summary.RecipientCount
		campaign.HealthScore = summary.HealthScore
		campaign.AudienceNames = summary.Names

		if err := s.campaigns.Save(txCtx, &campaign); err != nil {
			return err
		}

		desc := fmt.Sprintf("Campaign %s created in %s status", campaign.UUID, campaign.Status)
		return writeAudit(txCtx, s.auditRepo, campaign.CustomerID, &campaign.ID, models.AuditActionCampaignCreated, desc)
	})
	if err != nil {
		return nil, err
	}

	return s.campaigns.ByID(ctx, campaign.ID)
}

func (s *CampaignRecordStore) Update(ctx context.Context, id uint, update models.CampaignUpdate) error {
	if update.IsEmpty() {
		return nil
	}

	return s.uow.Do(ctx, func(txCtx context.Context) error {
		current, err := s.campaigns.ByID(txCtx, id)
		if err != nil {
			return err
		}
		if current == nil {
			return businessflow.ErrCampaignNotFound
		}

		fields := make(map[string]any)
		if update.Status != nil {
			fields["status"] = *update.Status
		}
		if update.AudienceCategoryIDs != nil {
			summary, err := s.resolveAudience(txCtx, update.AudienceCategoryIDs)
			if err != nil {
				return err
			}
			fields["audience_category_ids"] = pq.StringArray(update.AudienceCategoryIDs)
			fields["recipient_count"] = summary.RecipientCount
			fields["health_score"] = summary.HealthScore
			fields["audience_names"] = pq.StringArray(summary.Names)
		}
		if update.Message != nil || update.Schedule != nil {
			// merge into the stored document so the other section survives
			spec := current.Spec
			if update.Message != nil {
				spec.Message = update.Message
			}
			if update.Schedule != nil {
				spec.Schedule = update.Schedule
			}
			fields["spec"] = spec
		}
		if update.LinkedOrderID != nil {
			fields["linked_order_id"] = *update.LinkedOrderID
		}

		if err := s.campaigns.UpdateFields(txCtx, id, fields); err != nil {
			return err
		}

		if update.Status != nil && *update.Status != current.Status {
			desc := fmt.Sprintf("Campaign status changed from %s to %s", current.Status, *update.Status)
			return writeAudit(txCtx, s.auditRepo, current.CustomerID, &current.ID, models.AuditActionCampaignStatusChanged, desc)
		}
		return nil
	})
}

func (s *CampaignRecordStore) Fetch(ctx context.Context, id uint) (*models.Campaign, error) {
	return s.campaigns.ByID(ctx, id)
}

func (s *CampaignRecordStore) FetchByOrderID(ctx context.Context, orderID string) (*models.Campaign, error) {
	return s.campaigns.ByLinkedOrderID(ctx, orderID)
}

func (s *CampaignRecordStore) resolveAudience(ctx context.Context, ids []string) (businessflow.AudienceSummary, error) {
	if len(ids) == 0 {
		return businessflow.Aggregate(nil, nil), nil
	}
	rows, err := s.categories.ByFilter(ctx, models.AudienceCategoryFilter{IDs: ids}, "", 0, 0)
	if err != nil {
		return businessflow.AudienceSummary{}, fmt.Errorf("failed to resolve audience categories: %w", err)
	}
	categories := make([]models.AudienceCategory, 0, len(rows))
	for _, row := range rows {
		categories = append(categories, *row)
	}
	return businessflow.Aggregate(ids, categories), nil
}

// GormOrderStore implements businessflow.OrderStore
type GormOrderStore struct {
	uow       *GormUnitOfWork
	orders    repository.OrderRepository
	auditRepo repository.AuditLogRepository
}

func NewGormOrderStore(db *gorm.DB, orders repository.OrderRepository, auditRepo repository.AuditLogRepository) *GormOrderStore {
	return &GormOrderStore{uow: NewGormUnitOfWork(db), orders: orders, auditRepo: auditRepo}
}

func (s *GormOrderStore) Create(ctx context.Context, order models.Order) (*models.Order, error) {
	if err := s.orders.Save(ctx, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

func (s *GormOrderStore) Update(ctx context.Context, id string, update models.OrderUpdate) error {
	return s.uow.Do(ctx, func(txCtx context.Context) error {
		current, err := s.orders.ByID(txCtx, id)
		if err != nil {
			return err
		}
		if current == nil {
			return businessflow.ErrOrderNotFound
		}

		fields := make(map[string]any)
		if update.Status != nil {
			fields["status"] = *update.Status
		}
		if update.TotalAmount != nil {
			fields["total_amount"] = *update.TotalAmount
		}
		if update.GatewayToken != nil {
			fields["gateway_token"] = *update.GatewayToken
		}
		if err := s.orders.UpdateFields(txCtx, id, fields); err != nil {
			return err
		}
		if update.AppendTxID != nil {
			if err := s.orders.AppendTransactionID(txCtx, id, *update.AppendTxID); err != nil {
				return err
			}
		}

		if update.Status != nil && *update.Status != current.Status {
			desc := fmt.Sprintf("Order %s status changed from %s to %s", id, current.Status, *update.Status)
			return writeAudit(txCtx, s.auditRepo, current.CustomerID, &current.CampaignID, models.AuditActionOrderStatusChanged, desc)
		}
		return nil
	})
}

func (s *GormOrderStore) Fetch(ctx context.Context, id string) (*models.Order, error) {
	return s.orders.ByID(ctx, id)
}

func (s *GormOrderStore) ListByCustomer(ctx context.Context, customerID uint) ([]*models.Order, error) {
	return s.orders.ByFilter(ctx, models.OrderFilter{CustomerID: &customerID}, "created_at DESC", 0, 0)
}

// GormTransactionStore implements businessflow.TransactionStore
type GormTransactionStore struct {
	transactions repository.TransactionRepository
}

func NewGormTransactionStore(transactions repository.TransactionRepository) *GormTransactionStore {
	return &GormTransactionStore{transactions: transactions}
}

func (s *GormTransactionStore) ByTrackingID(ctx context.Context, trackingID string) (*models.Transaction, error) {
	return s.transactions.ByTrackingID(ctx, trackingID)
}

func (s *GormTransactionStore) Create(ctx context.Context, tx *models.Transaction) error {
	return s.transactions.Save(ctx, tx)
}

func writeAudit(ctx context.Context, repo repository.AuditLogRepository, customerID uint, campaignID *uint, action, description string) error {
	entry := &models.AuditLog{
		CustomerID:  &customerID,
		CampaignID:  campaignID,
		Action:      action,
		Description: &description,
		Success:     utils.ToPtr(true),
	}
	if requestID := utils.RequestIDFrom(ctx); requestID != "" {
		entry.RequestID = &requestID
	}
	return repo.Save(ctx, entry)
}

var (
	_ businessflow.UnitOfWork       = (*GormUnitOfWork)(nil)
	_ businessflow.RecordStore      = (*CampaignRecordStore)(nil)
	_ businessflow.OrderStore       = (*GormOrderStore)(nil)
	_ businessflow.TransactionStore = (*GormTransactionStore)(nil)
)
