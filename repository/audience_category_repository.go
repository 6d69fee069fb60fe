package repository

import (
	"context"

	"github.com/amirphl/Orochi-Mail/models"
	"github.com/amirphl/Orochi-Mail/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type AudienceCategoryRepositoryImpl struct {
	*BaseRepository[models.AudienceCategory, models.AudienceCategoryFilter]
}

func NewAudienceCategoryRepository(db *gorm.DB) AudienceCategoryRepository {
	return &AudienceCategoryRepositoryImpl{
		BaseRepository: NewBaseRepository[models.AudienceCategory, models.AudienceCategoryFilter](db),
	}
}

func (r *AudienceCategoryRepositoryImpl) ByFilter(ctx context.Context, filter models.AudienceCategoryFilter, orderBy string, limit, offset int) ([]*models.AudienceCategory, error) {
	query := r.getDB(ctx)

	if len(filter.IDs) > 0 {
		query = query.Where("id IN ?", filter.IDs)
	}
	if filter.IsActive != nil {
		query = query.Where("is_active = ?", *filter.IsActive)
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

	var rows []*models.AudienceCategory
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// ListActive returns every active category ordered by name
func (r *AudienceCategoryRepositoryImpl) ListActive(ctx context.Context) ([]models.AudienceCategory, error) {
	rows, err := r.ByFilter(ctx, models.AudienceCategoryFilter{IsActive: utils.ToPtr(true)}, "name ASC", 0, 0)
	if err != nil {
		return nil, err
	}

	out := make([]models.AudienceCategory, 0, len(rows))
	for _, row := range rows {
		out = append(out, *row)
	}
	return out, nil
}

// Upsert inserts categories or refreshes counts and tiers of existing ones
func (r *AudienceCategoryRepositoryImpl) Upsert(ctx context.Context, categories []models.AudienceCategory) error {
	if len(categories) == 0 {
		return nil
	}

	return r.write(ctx, func(db *gorm.DB) error {
		return db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"name", "recipient_count", "health_tier", "is_active", "updated_at"}),
		}).Create(&categories).Error
	})
}
