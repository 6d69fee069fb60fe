package services

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	businessflow "github.com/amirphl/Orochi-Mail/business_flow"
	"github.com/amirphl/Orochi-Mail/models"
	"github.com/amirphl/Orochi-Mail/repository"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	categoriesCacheKey = "catalog:audience_categories"
	tiersCacheKey      = "catalog:pricing_tiers"
)

// CatalogService serves audience categories and pricing tiers from the
// database, read-through cached in redis when a client is configured
type CatalogService struct {
	categories repository.AudienceCategoryRepository
	tiers      repository.PricingTierRepository
	rc         *redis.Client
	prefix     string
	ttl        time.Duration
	logger     *zap.Logger
}

func NewCatalogService(
	categories repository.AudienceCategoryRepository,
	tiers repository.PricingTierRepository,
	rc *redis.Client,
	prefix string,
	ttl time.Duration,
	logger *zap.Logger,
) *CatalogService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CatalogService{
		categories: categories,
		tiers:      tiers,
		rc:         rc,
		prefix:     prefix,
		ttl:        ttl,
		logger:     logger,
	}
}

// List returns the active audience categories
func (s *CatalogService) List(ctx context.Context) ([]models.AudienceCategory, error) {
	var cached []models.AudienceCategory
	if s.get(ctx, categoriesCacheKey, &cached) {
		return cached, nil
	}

	categories, err := s.categories.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	s.set(ctx, categoriesCacheKey, categories)
	return categories, nil
}

// FetchTiers returns the pricing table ordered by minimum volume
func (s *CatalogService) FetchTiers(ctx context.Context) (models.PricingTable, error) {
	var cached models.PricingTable
	if s.get(ctx, tiersCacheKey, &cached) {
		return cached, nil
	}

	table, err := s.tiers.ListOrdered(ctx)
	if err != nil {
		return nil, err
	}
	if len(table) > 0 {
		s.set(ctx, tiersCacheKey, table)
	}
	return table, nil
}

// Invalidate drops both cached lists
func (s *CatalogService) Invalidate(ctx context.Context) error {
	if s.rc == nil {
		return nil
	}
	return s.rc.Del(ctx, s.key(categoriesCacheKey), s.key(tiersCacheKey)).Err()
}

func (s *CatalogService) key(name string) string {
	return s.prefix + name
}

// get reports whether a cached value was found and decoded into out
func (s *CatalogService) get(ctx context.Context, name string, out any) bool {
	if s.rc == nil {
		return false
	}

	bs, err := s.rc.Get(ctx, s.key(name)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.logger.Warn("catalog cache read failed", zap.String("key", name), zap.Error(err))
		}
		return false
	}
	if err := json.Unmarshal(bs, out); err != nil {
		s.logger.Warn("catalog cache entry is corrupt", zap.String("key", name), zap.Error(err))
		return false
	}
	return true
}

func (s *CatalogService) set(ctx context.Context, name string, value any) {
	if s.rc == nil {
		return
	}

	bs, err := json.Marshal(value)
	if err != nil {
		return
	}
	if err := s.rc.Set(ctx, s.key(name), bs, s.ttl).Err(); err != nil {
		s.logger.Warn("catalog cache write failed", zap.String("key", name), zap.Error(err))
	}
}

var (
	_ businessflow.CategoryDirectory = (*CatalogService)(nil)
	_ businessflow.PricingSource     = (*CatalogService)(nil)
)
