package businessflow

import (
	"context"

	"github.com/amirphl/Orochi-Mail/models"
	"golang.org/x/sync/errgroup"
)

// AudienceQuote pairs an audience summary with its price
type AudienceQuote struct {
	Audience AudienceSummary `json:"audience"`
	Quote    CostQuote       `json:"quote"`
}

// AudienceFlow serves the targeting step: catalog listing and live quotes
type AudienceFlow interface {
	ListCategories(ctx context.Context) ([]models.AudienceCategory, error)
	ListTiers(ctx context.Context) (models.PricingTable, error)
	Summarize(ctx context.Context, categoryIDs []string) (*AudienceQuote, error)
}

// AudienceFlowImpl implements the audience flow
type AudienceFlowImpl struct {
	directory CategoryDirectory
	pricing   PricingSource
}

// NewAudienceFlow creates a new audience flow instance
func NewAudienceFlow(directory CategoryDirectory, pricing PricingSource) AudienceFlow {
	return &AudienceFlowImpl{directory: directory, pricing: pricing}
}

func (f *AudienceFlowImpl) ListCategories(ctx context.Context) ([]models.AudienceCategory, error) {
	categories, err := f.directory.List(ctx)
	if err != nil {
		return nil, NewBusinessError("CATEGORY_LIST_FAILED", "Failed to list audience categories", err)
	}
	return categories, nil
}

func (f *AudienceFlowImpl) ListTiers(ctx context.Context) (models.PricingTable, error) {
	table, err := f.pricing.FetchTiers(ctx)
	if err != nil {
		return nil, NewBusinessError("PRICING_LIST_FAILED", "Failed to list pricing tiers", err)
	}
	return table, nil
}

// Summarize aggregates the selection and prices it with the current table
func (f *AudienceFlowImpl) Summarize(ctx context.Context, categoryIDs []string) (*AudienceQuote, error) {
	var (
		categories []models.AudienceCategory
		table      models.PricingTable
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		categories, err = f.directory.List(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		table, err = f.pricing.FetchTiers(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, NewBusinessError("AUDIENCE_SUMMARY_FAILED", "Failed to load audience or pricing data", err)
	}

	summary := Aggregate(categoryIDs, categories)
	quote, err := ComputeCost(summary.RecipientCount, table)
	if err != nil {
		return nil, NewBusinessError("AUDIENCE_SUMMARY_FAILED", "Selected audience cannot be priced", err)
	}
	return &AudienceQuote{Audience: summary, Quote: quote}, nil
}
