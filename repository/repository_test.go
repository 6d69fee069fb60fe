package repository_test

import (
	"testing"

	"github.com/amirphl/Orochi-Mail/models"
	"github.com/amirphl/Orochi-Mail/repository"
	testingutil "github.com/amirphl/Orochi-Mail/testing"
	"github.com/amirphl/Orochi-Mail/utils"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requireDatabase(t *testing.T) {
	t.Helper()
	if !testingutil.DatabaseAvailable() {
		t.Skip("TEST_DB_HOST is not set or PostgreSQL is unreachable")
	}
}

func TestCatalogRepositories(t *testing.T) {
	requireDatabase(t)

	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		fixtures := testingutil.NewTestFixtures(testDB)
		ctx := testingutil.CreateTestContext()

		_, err := fixtures.CreateTestCategories()
		require.NoError(t, err)
		_, err = fixtures.CreateTestPricingTiers()
		require.NoError(t, err)

		categories := repository.NewAudienceCategoryRepository(testDB.DB)
		tiers := repository.NewPricingTierRepository(testDB.DB)

		t.Run("ListActive", func(t *testing.T) {
			active, err := categories.ListActive(ctx)
			require.NoError(t, err)
			require.Len(t, active, 2)
			assert.Equal(t, "Newsletter", active[0].Name)
			assert.Equal(t, "Shoppers", active[1].Name)
		})

		t.Run("ByFilterIDs", func(t *testing.T) {
			rows, err := categories.ByFilter(ctx, models.AudienceCategoryFilter{IDs: []string{"shoppers", "missing"}}, "", 0, 0)
			require.NoError(t, err)
			require.Len(t, rows, 1)
			assert.Equal(t, int64(1200), rows[0].RecipientCount)
		})

		t.Run("Upsert", func(t *testing.T) {
			err := categories.Upsert(ctx, []models.AudienceCategory{
				{ID: "shoppers", Name: "Shoppers", RecipientCount: 1500, HealthTier: models.HealthTierGood, IsActive: true, UpdatedAt: utils.UTCNow()},
				{ID: "vip", Name: "VIP", RecipientCount: 20, HealthTier: models.HealthTierExcellent, IsActive: true, UpdatedAt: utils.UTCNow()},
			})
			require.NoError(t, err)

			rows, err := categories.ByFilter(ctx, models.AudienceCategoryFilter{IDs: []string{"shoppers", "vip"}}, "id ASC", 0, 0)
			require.NoError(t, err)
			require.Len(t, rows, 2)
			assert.Equal(t, int64(1500), rows[0].RecipientCount)
			assert.Equal(t, models.HealthTierGood, rows[0].HealthTier)
			assert.Equal(t, "VIP", rows[1].Name)
		})

		t.Run("ListOrdered", func(t *testing.T) {
			table, err := tiers.ListOrdered(ctx)
			require.NoError(t, err)
			require.Len(t, table, 3)
			assert.Equal(t, []string{"base", "bulk", "enterprise"}, []string{table[0].Level, table[1].Level, table[2].Level})
		})

		t.Run("TierExists", func(t *testing.T) {
			exists, err := tiers.Exists(ctx, models.PricingTierFilter{Level: utils.ToPtr("bulk")})
			require.NoError(t, err)
			assert.True(t, exists)

			exists, err = tiers.Exists(ctx, models.PricingTierFilter{Level: utils.ToPtr("gold")})
			require.NoError(t, err)
			assert.False(t, exists)
		})

		return nil
	})
	require.NoError(t, err)
}

func TestCampaignRepository(t *testing.T) {
	requireDatabase(t)

	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		fixtures := testingutil.NewTestFixtures(testDB)
		ctx := testingutil.CreateTestContext()
		repo := repository.NewCampaignRepository(testDB.DB)

		campaign, err := fixtures.CreateTestCampaign(7, "shoppers")
		require.NoError(t, err)

		t.Run("ByIDRoundTripsSpec", func(t *testing.T) {
			got, err := repo.ByID(ctx, campaign.ID)
			require.NoError(t, err)
			require.NotNil(t, got)
			assert.Equal(t, models.CampaignStatusScheduled, got.Status)
			assert.Equal(t, []string{"shoppers"}, []string(got.AudienceCategoryIDs))
			require.NotNil(t, got.Spec.Message)
			assert.Equal(t, "Spring sale", got.Spec.Message.Subject)
			require.NotNil(t, got.Spec.Schedule)
			assert.Equal(t, "09:30", got.Spec.Schedule.SendTime)
		})

		t.Run("ByIDNotFound", func(t *testing.T) {
			got, err := repo.ByID(ctx, 999)
			assert.NoError(t, err)
			assert.Nil(t, got)
		})

		t.Run("ByFilterUUID", func(t *testing.T) {
			got, err := repo.ByFilter(ctx, models.CampaignFilter{UUID: &campaign.UUID}, "", 1, 0)
			require.NoError(t, err)
			require.Len(t, got, 1)
			assert.Equal(t, campaign.ID, got[0].ID)
		})

		t.Run("UpdateStatusAndLinkedOrder", func(t *testing.T) {
			require.NoError(t, repo.UpdateFields(ctx, campaign.ID, map[string]any{
				"status":          models.CampaignStatusPayment,
				"linked_order_id": "ord-1",
			}))

			got, err := repo.ByLinkedOrderID(ctx, "ord-1")
			require.NoError(t, err)
			require.NotNil(t, got)
			assert.Equal(t, models.CampaignStatusPayment, got.Status)
			assert.NotNil(t, got.UpdatedAt)

			none, err := repo.ByLinkedOrderID(ctx, "ord-2")
			require.NoError(t, err)
			assert.Nil(t, none)
		})

		t.Run("UpdateMissing", func(t *testing.T) {
			err := repo.UpdateFields(ctx, 999, map[string]any{"status": models.CampaignStatusEditing})
			assert.Error(t, err)
		})

		t.Run("ByFilterCustomer", func(t *testing.T) {
			_, err := fixtures.CreateTestCampaign(8, "newsletter")
			require.NoError(t, err)

			customerID := uint(7)
			mine, err := repo.ByFilter(ctx, models.CampaignFilter{CustomerID: &customerID}, "created_at DESC", 10, 0)
			require.NoError(t, err)
			require.Len(t, mine, 1)
			assert.Equal(t, campaign.ID, mine[0].ID)

			count, err := repo.Count(ctx, models.CampaignFilter{})
			require.NoError(t, err)
			assert.Equal(t, int64(2), count)
		})

		return nil
	})
	require.NoError(t, err)
}

func TestOrderAndTransactionRepositories(t *testing.T) {
	requireDatabase(t)

	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		fixtures := testingutil.NewTestFixtures(testDB)
		ctx := testingutil.CreateTestContext()
		orders := repository.NewOrderRepository(testDB.DB)
		transactions := repository.NewTransactionRepository(testDB.DB)

		campaign, err := fixtures.CreateTestCampaign(7, "shoppers")
		require.NoError(t, err)
		order, err := fixtures.CreateTestOrder(campaign, 80000)
		require.NoError(t, err)

		t.Run("OrderDefaults", func(t *testing.T) {
			got, err := orders.ByID(ctx, order.ID)
			require.NoError(t, err)
			require.NotNil(t, got)
			assert.NotEmpty(t, got.ID)
			assert.Equal(t, models.OrderStatusPending, got.Status)
			assert.Equal(t, utils.TomanCurrency, got.Currency)
		})

		t.Run("AppendTransactionID", func(t *testing.T) {
			require.NoError(t, orders.AppendTransactionID(ctx, order.ID, "tx-1"))
			require.NoError(t, orders.AppendTransactionID(ctx, order.ID, "tx-2"))

			got, err := orders.ByID(ctx, order.ID)
			require.NoError(t, err)
			assert.Equal(t, []string{"tx-1", "tx-2"}, []string(got.TransactionIDs))
		})

		t.Run("ByFilterStatus", func(t *testing.T) {
			require.NoError(t, orders.UpdateFields(ctx, order.ID, map[string]any{"status": models.OrderStatusCompleted}))

			completed := models.OrderStatusCompleted
			rows, err := orders.ByFilter(ctx, models.OrderFilter{Status: &completed}, "", 0, 0)
			require.NoError(t, err)
			require.Len(t, rows, 1)
			assert.Equal(t, order.ID, rows[0].ID)
		})

		t.Run("TrackingIDIsUnique", func(t *testing.T) {
			tracking := "TRK-" + uuid.NewString()
			first := &models.Transaction{OrderID: order.ID, TrackingID: &tracking, ResultStatus: models.TransactionResultSettled}
			require.NoError(t, transactions.Save(ctx, first))

			dup := &models.Transaction{OrderID: order.ID, TrackingID: &tracking, ResultStatus: models.TransactionResultRejected}
			assert.Error(t, transactions.Save(ctx, dup))

			got, err := transactions.ByTrackingID(ctx, tracking)
			require.NoError(t, err)
			require.NotNil(t, got)
			assert.True(t, got.IsSettled())

			missing, err := transactions.ByTrackingID(ctx, "TRK-missing")
			require.NoError(t, err)
			assert.Nil(t, missing)

			all, err := transactions.ByOrderID(ctx, order.ID)
			require.NoError(t, err)
			assert.Len(t, all, 1)
		})

		return nil
	})
	require.NoError(t, err)
}
