package repository

import (
	"context"
	"errors"

	"github.com/amirphl/Orochi-Mail/models"
	"gorm.io/gorm"
)

// TransactionRepositoryImpl implements the TransactionRepository interface
type TransactionRepositoryImpl struct {
	*BaseRepository[models.Transaction, models.TransactionFilter]
}

// NewTransactionRepository creates a new transaction repository
func NewTransactionRepository(db *gorm.DB) TransactionRepository {
	return &TransactionRepositoryImpl{
		BaseRepository: NewBaseRepository[models.Transaction, models.TransactionFilter](db),
	}
}

// ByTrackingID finds the settlement attempt recorded for a gateway tracking id
func (r *TransactionRepositoryImpl) ByTrackingID(ctx context.Context, trackingID string) (*models.Transaction, error) {
	db := r.getDB(ctx)

	var tx models.Transaction
	err := db.Where("tracking_id = ?", trackingID).First(&tx).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return &tx, nil
}

// ByOrderID lists attempts for an order, oldest first
func (r *TransactionRepositoryImpl) ByOrderID(ctx context.Context, orderID string) ([]*models.Transaction, error) {
	db := r.getDB(ctx)

	var txs []*models.Transaction
	if err := db.Where("order_id = ?", orderID).Order("timestamp ASC").Find(&txs).Error; err != nil {
		return nil, err
	}

	return txs, nil
}
