package services

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/amirphl/Orochi-Mail/models"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeCategoryRepo struct {
	items []models.AudienceCategory
	calls int
	err   error
}

func (r *fakeCategoryRepo) ByFilter(context.Context, models.AudienceCategoryFilter, string, int, int) ([]*models.AudienceCategory, error) {
	return nil, nil
}

func (r *fakeCategoryRepo) ListActive(context.Context) ([]models.AudienceCategory, error) {
	r.calls++
	return r.items, r.err
}

func (r *fakeCategoryRepo) Upsert(context.Context, []models.AudienceCategory) error { return nil }

type fakeTierRepo struct {
	table models.PricingTable
	calls int
}

func (r *fakeTierRepo) ByID(context.Context, uint) (*models.PricingTier, error) { return nil, nil }

func (r *fakeTierRepo) ByFilter(context.Context, models.PricingTierFilter, string, int, int) ([]*models.PricingTier, error) {
	return nil, nil
}

func (r *fakeTierRepo) Save(context.Context, *models.PricingTier) error { return nil }

func (r *fakeTierRepo) SaveBatch(context.Context, []*models.PricingTier) error { return nil }

func (r *fakeTierRepo) Count(context.Context, models.PricingTierFilter) (int64, error) { return 0, nil }

func (r *fakeTierRepo) Exists(context.Context, models.PricingTierFilter) (bool, error) {
	return false, nil
}

func (r *fakeTierRepo) ListOrdered(context.Context) (models.PricingTable, error) {
	r.calls++
	return r.table, nil
}

func catalogFixtures() (*fakeCategoryRepo, *fakeTierRepo) {
	categories := &fakeCategoryRepo{items: []models.AudienceCategory{
		{ID: "A", Name: "Shoppers", RecipientCount: 15000, HealthTier: models.HealthTierExcellent, IsActive: true},
	}}
	tiers := &fakeTierRepo{table: models.PricingTable{
		{Level: "base", MinimumVolume: 0, RatePerRecipient: 100},
		{Level: "bulk", MinimumVolume: 10000, RatePerRecipient: 80},
	}}
	return categories, tiers
}

func TestCatalogService_WithoutRedisReadsThrough(t *testing.T) {
	categories, tiers := catalogFixtures()
	svc := NewCatalogService(categories, tiers, nil, "", time.Minute, zap.NewNop())
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		got, err := svc.List(ctx)
		require.NoError(t, err)
		assert.Len(t, got, 1)

		table, err := svc.FetchTiers(ctx)
		require.NoError(t, err)
		assert.Len(t, table, 2)
	}

	assert.Equal(t, 2, categories.calls)
	assert.Equal(t, 2, tiers.calls)
	assert.NoError(t, svc.Invalidate(ctx))
}

func TestCatalogService_PropagatesRepositoryError(t *testing.T) {
	categories, tiers := catalogFixtures()
	categories.err = assert.AnError
	svc := NewCatalogService(categories, tiers, nil, "", time.Minute, nil)

	_, err := svc.List(context.Background())
	assert.ErrorIs(t, err, assert.AnError)
}

func TestCatalogService_RedisCache(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}

	rc := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = rc.Close() })
	ctx := context.Background()
	if err := rc.Ping(ctx).Err(); err != nil {
		t.Skipf("redis unreachable: %v", err)
	}

	categories, tiers := catalogFixtures()
	prefix := "test:" + uuid.NewString() + ":"
	svc := NewCatalogService(categories, tiers, rc, prefix, time.Minute, zap.NewNop())
	t.Cleanup(func() { _ = svc.Invalidate(context.Background()) })

	for i := 0; i < 3; i++ {
		got, err := svc.List(ctx)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "Shoppers", got[0].Name)

		table, err := svc.FetchTiers(ctx)
		require.NoError(t, err)
		require.Len(t, table, 2)
		assert.Equal(t, uint64(80), table[1].RatePerRecipient)
	}
	assert.Equal(t, 1, categories.calls)
	assert.Equal(t, 1, tiers.calls)

	require.NoError(t, svc.Invalidate(ctx))
	_, err := svc.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, categories.calls)
}
