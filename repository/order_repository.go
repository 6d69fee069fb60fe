package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/amirphl/Orochi-Mail/models"
	"github.com/amirphl/Orochi-Mail/utils"
	"gorm.io/gorm"
)

// OrderRepositoryImpl implements the OrderRepository interface
type OrderRepositoryImpl struct {
	*BaseRepository[models.Order, models.OrderFilter]
}

// NewOrderRepository creates a new order repository
func NewOrderRepository(db *gorm.DB) OrderRepository {
	return &OrderRepositoryImpl{
		BaseRepository: NewBaseRepository[models.Order, models.OrderFilter](db),
	}
}

// ByID retrieves an order by its opaque id
func (r *OrderRepositoryImpl) ByID(ctx context.Context, id string) (*models.Order, error) {
	db := r.getDB(ctx)

	var order models.Order
	err := db.Where("id = ?", id).First(&order).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find order %s: %w", id, err)
	}

	return &order, nil
}

// ByFilter retrieves orders based on filter criteria
func (r *OrderRepositoryImpl) ByFilter(ctx context.Context, filter models.OrderFilter, orderBy string, limit, offset int) ([]*models.Order, error) {
	query := r.getDB(ctx)

	if filter.ID != nil {
		query = query.Where("id = ?", *filter.ID)
	}
	if filter.CustomerID != nil {
		query = query.Where("customer_id = ?", *filter.CustomerID)
	}
	if filter.CampaignID != nil {
		query = query.Where("campaign_id = ?", *filter.CampaignID)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}

	if orderBy != "" {
		query = query.Order(orderBy)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	var orders []*models.Order
	if err := query.Find(&orders).Error; err != nil {
		return nil, err
	}

	return orders, nil
}

// UpdateFields applies a partial column update to one order
func (r *OrderRepositoryImpl) UpdateFields(ctx context.Context, id string, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	fields["updated_at"] = utils.UTCNow()

	return r.write(ctx, func(db *gorm.DB) error {
		res := db.Model(&models.Order{}).Where("id = ?", id).Updates(fields)
		if res.Error != nil {
			return fmt.Errorf("failed to update order %s: %w", id, res.Error)
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}

// AppendTransactionID adds a transaction id to the order's transaction list
func (r *OrderRepositoryImpl) AppendTransactionID(ctx context.Context, id, transactionID string) error {
	return r.write(ctx, func(db *gorm.DB) error {
		return db.Model(&models.Order{}).
			Where("id = ?", id).
			Updates(map[string]any{
				"transaction_ids": gorm.Expr("array_append(transaction_ids, ?)", transactionID),
				"updated_at":      utils.UTCNow(),
			}).Error
	})
}
