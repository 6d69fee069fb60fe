package handlers

import (
	"github.com/amirphl/Orochi-Mail/app/dto"
	businessflow "github.com/amirphl/Orochi-Mail/business_flow"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"go.uber.org/zap"
)

// AudienceHandler serves the targeting catalog and audience quotes
type AudienceHandler struct {
	audienceFlow businessflow.AudienceFlow
	validator    *validator.Validate
	logger       *zap.Logger
}

func NewAudienceHandler(audienceFlow businessflow.AudienceFlow, logger *zap.Logger) *AudienceHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AudienceHandler{
		audienceFlow: audienceFlow,
		validator:    validator.New(),
		logger:       logger,
	}
}

// ListCategories handles listing audience categories
// @Summary List Audience Categories
// @Tags Audience
// @Produce json
// @Success 200 {object} dto.APIResponse{data=[]models.AudienceCategory}
// @Router /api/v1/audience/categories [get]
func (h *AudienceHandler) ListCategories(c fiber.Ctx) error {
	ctx, cancel := requestContext(c, "/api/v1/audience/categories")
	defer cancel()

	categories, err := h.audienceFlow.ListCategories(ctx)
	if err != nil {
		return businessErrorResponse(c, h.logger, err, "Failed to list audience categories")
	}
	return SuccessResponse(c, fiber.StatusOK, "Audience categories retrieved successfully", categories)
}

// ListTiers handles listing pricing tiers
// @Summary List Pricing Tiers
// @Tags Audience
// @Produce json
// @Success 200 {object} dto.APIResponse{data=[]models.PricingTier}
// @Router /api/v1/pricing/tiers [get]
func (h *AudienceHandler) ListTiers(c fiber.Ctx) error {
	ctx, cancel := requestContext(c, "/api/v1/pricing/tiers")
	defer cancel()

	tiers, err := h.audienceFlow.ListTiers(ctx)
	if err != nil {
		return businessErrorResponse(c, h.logger, err, "Failed to list pricing tiers")
	}
	return SuccessResponse(c, fiber.StatusOK, "Pricing tiers retrieved successfully", tiers)
}

// Summarize handles the audience summary and cost quote
// @Summary Summarize Audience
// @Tags Audience
// @Accept json
// @Produce json
// @Param request body dto.AudienceSummaryRequest true "Selected categories"
// @Success 200 {object} dto.APIResponse{data=businessflow.AudienceQuote}
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Router /api/v1/audience/summary [post]
func (h *AudienceHandler) Summarize(c fiber.Ctx) error {
	var req dto.AudienceSummaryRequest
	if err := c.Bind().JSON(&req); err != nil {
		return ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	if err := h.validator.Struct(&req); err != nil {
		return validationFailed(c, err)
	}

	ctx, cancel := requestContext(c, "/api/v1/audience/summary")
	defer cancel()

	quote, err := h.audienceFlow.Summarize(ctx, req.CategoryIDs)
	if err != nil {
		return businessErrorResponse(c, h.logger, err, "Failed to summarize audience")
	}
	return SuccessResponse(c, fiber.StatusOK, "Audience summarized successfully", quote)
}
