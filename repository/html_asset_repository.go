package repository

import (
	"context"
	"errors"

	"github.com/amirphl/Orochi-Mail/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type HTMLAssetRepositoryImpl struct {
	*BaseRepository[models.HTMLAsset, models.HTMLAssetFilter]
}

func NewHTMLAssetRepository(db *gorm.DB) HTMLAssetRepository {
	return &HTMLAssetRepositoryImpl{
		BaseRepository: NewBaseRepository[models.HTMLAsset, models.HTMLAssetFilter](db),
	}
}

func (r *HTMLAssetRepositoryImpl) ByUUID(ctx context.Context, id uuid.UUID) (*models.HTMLAsset, error) {
	var asset models.HTMLAsset
	err := r.getDB(ctx).Where("uuid = ?", id).First(&asset).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &asset, nil
}
