package testing

import (
	"fmt"

	"github.com/amirphl/Orochi-Mail/models"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

// TestFixtures provides helper methods for creating test data
type TestFixtures struct {
	DB *TestDB
}

// NewTestFixtures creates a new test fixtures instance
func NewTestFixtures(db *TestDB) *TestFixtures {
	return &TestFixtures{DB: db}
}

// CreateTestCategories inserts two active categories and one inactive one
func (tf *TestFixtures) CreateTestCategories() ([]models.AudienceCategory, error) {
	categories := []models.AudienceCategory{
		{ID: "shoppers", Name: "Shoppers", RecipientCount: 1200, HealthTier: models.HealthTierExcellent, IsActive: true},
		{ID: "newsletter", Name: "Newsletter", RecipientCount: 800, HealthTier: models.HealthTierPoor, IsActive: true},
		{ID: "archived", Name: "Archived", RecipientCount: 50, HealthTier: models.HealthTierGood, IsActive: true},
	}
	if err := tf.DB.DB.Create(&categories).Error; err != nil {
		return nil, fmt.Errorf("failed to insert categories: %w", err)
	}
	// gorm skips zero-valued booleans on insert, so deactivate explicitly
	if err := tf.DB.DB.Model(&models.AudienceCategory{}).Where("id = ?", "archived").Update("is_active", false).Error; err != nil {
		return nil, fmt.Errorf("failed to deactivate category: %w", err)
	}
	categories[2].IsActive = false
	return categories, nil
}

// CreateTestPricingTiers inserts a three tier table
func (tf *TestFixtures) CreateTestPricingTiers() (models.PricingTable, error) {
	tiers := []models.PricingTier{
		{Level: "bulk", MinimumVolume: 1000, RatePerRecipient: 80},
		{Level: "base", MinimumVolume: 1, RatePerRecipient: 100},
		{Level: "enterprise", MinimumVolume: 10000, RatePerRecipient: 50},
	}
	if err := tf.DB.DB.Create(&tiers).Error; err != nil {
		return nil, fmt.Errorf("failed to insert pricing tiers: %w", err)
	}
	return models.PricingTable(tiers), nil
}

// CreateTestCampaign inserts a scheduled campaign for customerID targeting categoryIDs
func (tf *TestFixtures) CreateTestCampaign(customerID uint, categoryIDs ...string) (*models.Campaign, error) {
	campaign := &models.Campaign{
		UUID:                uuid.New(),
		CustomerID:          customerID,
		Status:              models.CampaignStatusScheduled,
		AudienceCategoryIDs: pq.StringArray(categoryIDs),
		AudienceNames:       pq.StringArray{},
		Spec: models.CampaignSpec{
			Message:  &models.CampaignMessage{Subject: "Spring sale", Body: "Hello", ContentSource: models.ContentSourceInlineEditor},
			Schedule: &models.CampaignSchedule{SendDate: "2026-11-01", SendTime: "09:30"},
		},
	}
	if err := tf.DB.DB.Create(campaign).Error; err != nil {
		return nil, fmt.Errorf("failed to insert campaign: %w", err)
	}
	return campaign, nil
}

// CreateTestOrder inserts a pending order for campaign
func (tf *TestFixtures) CreateTestOrder(campaign *models.Campaign, total uint64) (*models.Order, error) {
	order := &models.Order{
		CustomerID:     campaign.CustomerID,
		CustomerEmail:  "owner@example.com",
		CampaignID:     campaign.ID,
		RecipientCount: 1000,
		UnitRate:       total / 1000,
		TierLabel:      "bulk",
		TotalAmount:    total,
		TransactionIDs: pq.StringArray{},
	}
	if err := tf.DB.DB.Create(order).Error; err != nil {
		return nil, fmt.Errorf("failed to insert order: %w", err)
	}
	return order, nil
}
