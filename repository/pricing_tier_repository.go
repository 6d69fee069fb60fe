package repository

import (
	"context"

	"github.com/amirphl/Orochi-Mail/models"
	"gorm.io/gorm"
)

type PricingTierRepositoryImpl struct {
	*BaseRepository[models.PricingTier, models.PricingTierFilter]
}

func NewPricingTierRepository(db *gorm.DB) PricingTierRepository {
	return &PricingTierRepositoryImpl{
		BaseRepository: NewBaseRepository[models.PricingTier, models.PricingTierFilter](db),
	}
}

func (r *PricingTierRepositoryImpl) ByFilter(ctx context.Context, filter models.PricingTierFilter, orderBy string, limit, offset int) ([]*models.PricingTier, error) {
	query := r.getDB(ctx)
	if filter.Level != nil {
		query = query.Where("level = ?", *filter.Level)
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

	var rows []*models.PricingTier
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *PricingTierRepositoryImpl) Count(ctx context.Context, filter models.PricingTierFilter) (int64, error) {
	query := r.getDB(ctx).Model(&models.PricingTier{})
	if filter.Level != nil {
		query = query.Where("level = ?", *filter.Level)
	}

	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *PricingTierRepositoryImpl) Exists(ctx context.Context, filter models.PricingTierFilter) (bool, error) {
	count, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// ListOrdered returns the full pricing table ordered by minimum volume
func (r *PricingTierRepositoryImpl) ListOrdered(ctx context.Context) (models.PricingTable, error) {
	var rows []models.PricingTier
	if err := r.getDB(ctx).Order("minimum_volume ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return models.PricingTable(rows), nil
}
