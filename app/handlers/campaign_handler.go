package handlers

import (
	"context"
	"encoding/base64"
	"strconv"

	"github.com/amirphl/Orochi-Mail/app/dto"
	businessflow "github.com/amirphl/Orochi-Mail/business_flow"
	"github.com/amirphl/Orochi-Mail/models"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"go.uber.org/zap"
)

// HTMLFileReader reads back uploaded HTML message bodies
type HTMLFileReader interface {
	Open(ctx context.Context, customerID uint, fileID string) ([]byte, error)
}

// CampaignHandlerInterface defines the contract for campaign handlers
type CampaignHandlerInterface interface {
	CreateCampaign(c fiber.Ctx) error
	GetCampaign(c fiber.Ctx) error
	UpdateAudience(c fiber.Ctx) error
	UpdateMessage(c fiber.Ctx) error
	UpdateSchedule(c fiber.Ctx) error
	EnterPayment(c fiber.Ctx) error
	PreviewHTML(c fiber.Ctx) error
}

// CampaignHandler handles campaign-related HTTP requests
type CampaignHandler struct {
	campaignFlow businessflow.CampaignFlow
	audienceFlow businessflow.AudienceFlow
	files        HTMLFileReader
	validator    *validator.Validate
	logger       *zap.Logger
}

// NewCampaignHandler creates a new campaign handler
func NewCampaignHandler(
	campaignFlow businessflow.CampaignFlow,
	audienceFlow businessflow.AudienceFlow,
	files HTMLFileReader,
	logger *zap.Logger,
) *CampaignHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CampaignHandler{
		campaignFlow: campaignFlow,
		audienceFlow: audienceFlow,
		files:        files,
		validator:    validator.New(),
		logger:       logger,
	}
}

// CreateCampaign walks a new draft through targeting, editing and scheduling
// and stores it with a single create
// @Summary Create Campaign
// @Tags Campaigns
// @Accept json
// @Produce json
// @Param request body dto.CreateCampaignRequest true "Campaign sections"
// @Success 201 {object} dto.APIResponse{data=dto.CampaignResponse} "Campaign created successfully"
// @Failure 400 {object} dto.APIResponse "Validation error or invalid request"
// @Failure 409 {object} dto.APIResponse "Transition not allowed"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/campaigns [post]
func (h *CampaignHandler) CreateCampaign(c fiber.Ctx) error {
	var req dto.CreateCampaignRequest
	if err := c.Bind().JSON(&req); err != nil {
		return ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	if err := h.validator.Struct(&req); err != nil {
		return validationFailed(c, err)
	}

	identity, ok := identityFrom(c)
	if !ok {
		return missingIdentity(c)
	}

	message, attachment, err := toCampaignMessage(req.Message)
	if err != nil {
		return ErrorResponse(c, fiber.StatusBadRequest, "html_document is not valid base64", "INVALID_HTML_DOCUMENT", nil)
	}

	ctx, cancel := requestContext(c, "/api/v1/campaigns")
	defer cancel()

	summary, err := h.audienceFlow.Summarize(ctx, req.Audience.CategoryIDs)
	if err != nil {
		return businessErrorResponse(c, h.logger, err, "Campaign creation failed")
	}

	session := h.campaignFlow.Start(identity)
	session.Draft.SetAudience(businessflow.AudienceSelection{CategoryIDs: req.Audience.CategoryIDs, Summary: summary.Audience})
	if err := h.campaignFlow.Advance(ctx, identity, session); err != nil {
		return businessErrorResponse(c, h.logger, err, "Campaign creation failed")
	}

	session.Draft.SetMessage(message, attachment)
	if err := h.campaignFlow.Advance(ctx, identity, session); err != nil {
		return businessErrorResponse(c, h.logger, err, "Campaign creation failed")
	}

	session.Draft.SetSchedule(toCampaignSchedule(req.Schedule))
	if err := h.campaignFlow.Save(ctx, identity, session); err != nil {
		return businessErrorResponse(c, h.logger, err, "Campaign creation failed")
	}

	return SuccessResponse(c, fiber.StatusCreated, "Campaign created successfully", toCampaignResponse(session.Record))
}

// GetCampaign returns a stored campaign of the caller
// @Summary Get Campaign
// @Tags Campaigns
// @Produce json
// @Param id path int true "Campaign ID"
// @Success 200 {object} dto.APIResponse{data=dto.CampaignResponse}
// @Failure 403 {object} dto.APIResponse "Campaign belongs to another customer"
// @Failure 404 {object} dto.APIResponse "Campaign not found"
// @Router /api/v1/campaigns/{id} [get]
func (h *CampaignHandler) GetCampaign(c fiber.Ctx) error {
	identity, id, ok, resp := h.campaignTarget(c)
	if !ok {
		return resp
	}

	ctx, cancel := requestContext(c, "/api/v1/campaigns/:id")
	defer cancel()

	session, err := h.campaignFlow.Load(ctx, identity, id)
	if err != nil {
		return businessErrorResponse(c, h.logger, err, "Failed to load campaign")
	}

	return SuccessResponse(c, fiber.StatusOK, "Campaign retrieved successfully", toCampaignResponse(session.Record))
}

// UpdateAudience replaces the audience and advances the campaign to editing
// @Summary Update Campaign Audience
// @Tags Campaigns
// @Accept json
// @Produce json
// @Param id path int true "Campaign ID"
// @Param request body dto.AudienceRequest true "Audience categories"
// @Success 200 {object} dto.APIResponse{data=dto.CampaignResponse}
// @Failure 409 {object} dto.APIResponse "Campaign is locked or busy"
// @Router /api/v1/campaigns/{id}/audience [put]
func (h *CampaignHandler) UpdateAudience(c fiber.Ctx) error {
	var req dto.AudienceRequest
	if err := c.Bind().JSON(&req); err != nil {
		return ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	if err := h.validator.Struct(&req); err != nil {
		return validationFailed(c, err)
	}

	return h.editSection(c, "/api/v1/campaigns/:id/audience", models.CampaignStatusTargeting, func(session *businessflow.CampaignSession) {
		session.Draft.SetAudience(businessflow.AudienceSelection{CategoryIDs: req.CategoryIDs})
	}, h.campaignFlow.Advance)
}

// UpdateMessage replaces the message and advances the campaign to scheduled
// @Summary Update Campaign Message
// @Tags Campaigns
// @Accept json
// @Produce json
// @Param id path int true "Campaign ID"
// @Param request body dto.MessageRequest true "Message section"
// @Success 200 {object} dto.APIResponse{data=dto.CampaignResponse}
// @Failure 400 {object} dto.APIResponse "Message validation failed"
// @Router /api/v1/campaigns/{id}/message [put]
func (h *CampaignHandler) UpdateMessage(c fiber.Ctx) error {
	var req dto.MessageRequest
	if err := c.Bind().JSON(&req); err != nil {
		return ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	if err := h.validator.Struct(&req); err != nil {
		return validationFailed(c, err)
	}

	message, attachment, err := toCampaignMessage(req)
	if err != nil {
		return ErrorResponse(c, fiber.StatusBadRequest, "html_document is not valid base64", "INVALID_HTML_DOCUMENT", nil)
	}

	return h.editSection(c, "/api/v1/campaigns/:id/message", models.CampaignStatusEditing, func(session *businessflow.CampaignSession) {
		session.Draft.SetMessage(message, attachment)
	}, h.campaignFlow.Advance)
}

// UpdateSchedule stores a new send date and time
// @Summary Update Campaign Schedule
// @Tags Campaigns
// @Accept json
// @Produce json
// @Param id path int true "Campaign ID"
// @Param request body dto.ScheduleRequest true "Schedule section"
// @Success 200 {object} dto.APIResponse{data=dto.CampaignResponse}
// @Router /api/v1/campaigns/{id}/schedule [put]
func (h *CampaignHandler) UpdateSchedule(c fiber.Ctx) error {
	var req dto.ScheduleRequest
	if err := c.Bind().JSON(&req); err != nil {
		return ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	if err := h.validator.Struct(&req); err != nil {
		return validationFailed(c, err)
	}

	return h.editSection(c, "/api/v1/campaigns/:id/schedule", models.CampaignStatusScheduled, func(session *businessflow.CampaignSession) {
		session.Draft.SetSchedule(toCampaignSchedule(req))
	}, h.campaignFlow.Save)
}

// EnterPayment prices the campaign and links the order to pay
// @Summary Enter Campaign Payment
// @Tags Campaigns
// @Produce json
// @Param id path int true "Campaign ID"
// @Success 200 {object} dto.APIResponse{data=dto.EnterPaymentResponse}
// @Failure 400 {object} dto.APIResponse "Audience has no recipients"
// @Failure 409 {object} dto.APIResponse "Campaign is locked or busy"
// @Router /api/v1/campaigns/{id}/payment [post]
func (h *CampaignHandler) EnterPayment(c fiber.Ctx) error {
	identity, id, ok, resp := h.campaignTarget(c)
	if !ok {
		return resp
	}

	ctx, cancel := requestContext(c, "/api/v1/campaigns/:id/payment")
	defer cancel()

	session, err := h.campaignFlow.Load(ctx, identity, id)
	if err != nil {
		return businessErrorResponse(c, h.logger, err, "Failed to load campaign")
	}
	if err := h.campaignFlow.RewindTo(session, models.CampaignStatusScheduled); err != nil {
		return businessErrorResponse(c, h.logger, err, "Failed to enter payment")
	}
	if err := h.campaignFlow.Advance(ctx, identity, session); err != nil {
		return businessErrorResponse(c, h.logger, err, "Failed to enter payment")
	}

	return SuccessResponse(c, fiber.StatusOK, "Campaign is waiting for payment", dto.EnterPaymentResponse{
		Campaign: toCampaignResponse(session.Record),
		Quote:    *session.Quote,
		Order:    toOrderResponse(session.Order),
	})
}

// PreviewHTML serves the uploaded HTML body of a campaign
// @Summary Preview Campaign HTML
// @Tags Campaigns
// @Produce html
// @Param id path int true "Campaign ID"
// @Success 200 {string} string "HTML document"
// @Failure 404 {object} dto.APIResponse "Campaign or file not found"
// @Router /api/v1/campaigns/{id}/html [get]
func (h *CampaignHandler) PreviewHTML(c fiber.Ctx) error {
	identity, id, ok, resp := h.campaignTarget(c)
	if !ok {
		return resp
	}

	ctx, cancel := requestContext(c, "/api/v1/campaigns/:id/html")
	defer cancel()

	session, err := h.campaignFlow.Load(ctx, identity, id)
	if err != nil {
		return businessErrorResponse(c, h.logger, err, "Failed to load campaign")
	}

	msg := session.Record.Spec.Message
	if msg == nil || msg.HTMLFileID == nil {
		return ErrorResponse(c, fiber.StatusNotFound, "Campaign has no uploaded html", "HTML_FILE_NOT_FOUND", nil)
	}

	data, err := h.files.Open(ctx, identity.CustomerID, *msg.HTMLFileID)
	if err != nil {
		return businessErrorResponse(c, h.logger, err, "Failed to read html file")
	}

	c.Set(fiber.HeaderContentType, "text/html; charset=utf-8")
	c.Set(fiber.HeaderContentDisposition, "inline; filename="+*msg.HTMLFileID+".html")
	return c.Send(data)
}

// editSection loads a campaign, rewinds it to the status owning the section,
// applies edit and commits it with step
func (h *CampaignHandler) editSection(
	c fiber.Ctx,
	endpoint string,
	status models.CampaignStatus,
	edit func(session *businessflow.CampaignSession),
	step func(ctx context.Context, identity businessflow.Identity, session *businessflow.CampaignSession) error,
) error {
	identity, id, ok, resp := h.campaignTarget(c)
	if !ok {
		return resp
	}

	ctx, cancel := requestContext(c, endpoint)
	defer cancel()

	session, err := h.campaignFlow.Load(ctx, identity, id)
	if err != nil {
		return businessErrorResponse(c, h.logger, err, "Failed to load campaign")
	}
	if err := h.campaignFlow.RewindTo(session, status); err != nil {
		return businessErrorResponse(c, h.logger, err, "Campaign update failed")
	}

	edit(session)
	if err := step(ctx, identity, session); err != nil {
		return businessErrorResponse(c, h.logger, err, "Campaign update failed")
	}

	return SuccessResponse(c, fiber.StatusOK, "Campaign updated successfully", toCampaignResponse(session.Record))
}

// campaignTarget resolves the caller and the :id route parameter. When ok is
// false the error response has been written and resp is its result.
func (h *CampaignHandler) campaignTarget(c fiber.Ctx) (identity businessflow.Identity, id uint, ok bool, resp error) {
	identity, ok = identityFrom(c)
	if !ok {
		return identity, 0, false, missingIdentity(c)
	}

	parsed, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil || parsed == 0 {
		return identity, 0, false, ErrorResponse(c, fiber.StatusBadRequest, "Campaign ID must be a positive integer", "INVALID_CAMPAIGN_ID", nil)
	}
	return identity, uint(parsed), true, nil
}

func toCampaignMessage(req dto.MessageRequest) (models.CampaignMessage, *businessflow.FileAttachment, error) {
	msg := models.CampaignMessage{
		Subject:       req.Subject,
		Body:          req.Body,
		ContentSource: models.ContentSource(req.ContentSource),
		HTMLFileID:    req.HTMLFileID,
	}
	if req.ABTest != nil {
		msg.ABTest = models.ABTestConfig{
			Enabled:          req.ABTest.Enabled,
			SubjectVariantB:  req.ABTest.SubjectVariantB,
			TestGroupPercent: req.ABTest.TestGroupPercent,
		}
	}

	if req.HTMLDocument == "" {
		return msg, nil, nil
	}

	content, err := base64.StdEncoding.DecodeString(req.HTMLDocument)
	if err != nil {
		return msg, nil, err
	}
	if msg.ContentSource == "" {
		msg.ContentSource = models.ContentSourceUploadedHTML
	}
	filename := req.HTMLFilename
	if filename == "" {
		filename = "message.html"
	}
	return msg, &businessflow.FileAttachment{Filename: filename, Content: content}, nil
}

func toCampaignSchedule(req dto.ScheduleRequest) models.CampaignSchedule {
	return models.CampaignSchedule{
		SendDate:      req.SendDate,
		SendTime:      req.SendTime,
		TimezoneAware: req.TimezoneAware,
	}
}

func toCampaignResponse(c *models.Campaign) dto.CampaignResponse {
	resp := dto.CampaignResponse{
		ID:                  c.ID,
		UUID:                c.UUID.String(),
		Status:              c.Status.String(),
		AudienceCategoryIDs: append([]string{}, c.AudienceCategoryIDs...),
		Audience: businessflow.AudienceSummary{
			RecipientCount: c.RecipientCount,
			HealthScore:    c.HealthScore,
			Names:          append([]string{}, c.AudienceNames...),
		},
		LinkedOrderID: c.LinkedOrderID,
		CreatedAt:     c.CreatedAt,
		UpdatedAt:     c.UpdatedAt,
	}
	if m := c.Spec.Message; m != nil {
		resp.Message = &dto.MessageResponse{
			Subject:       m.Subject,
			Body:          m.Body,
			ContentSource: string(m.ContentSource),
			HTMLFileID:    m.HTMLFileID,
			ABTest: dto.ABTestRequest{
				Enabled:          m.ABTest.Enabled,
				SubjectVariantB:  m.ABTest.SubjectVariantB,
				TestGroupPercent: m.ABTest.TestGroupPercent,
			},
		}
	}
	if s := c.Spec.Schedule; s != nil {
		resp.Schedule = &dto.ScheduleResponse{
			SendDate:      s.SendDate,
			SendTime:      s.SendTime,
			TimezoneAware: s.TimezoneAware,
		}
	}
	return resp
}

func toOrderResponse(o *models.Order) dto.OrderResponse {
	return dto.OrderResponse{
		ID:             o.ID,
		CampaignID:     o.CampaignID,
		RecipientCount: o.RecipientCount,
		UnitRate:       o.UnitRate,
		TierLabel:      o.TierLabel,
		TotalAmount:    o.TotalAmount,
		Currency:       o.Currency,
		Status:         o.Status.String(),
		CreatedAt:      o.CreatedAt,
	}
}
