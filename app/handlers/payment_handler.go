package handlers

import (
	"strconv"
	"strings"

	"github.com/amirphl/Orochi-Mail/app/dto"
	businessflow "github.com/amirphl/Orochi-Mail/business_flow"
	"github.com/gofiber/fiber/v3"
	"go.uber.org/zap"
)

// PaymentHandler handles payment start and gateway callbacks
type PaymentHandler struct {
	paymentFlow businessflow.PaymentFlow
	logger      *zap.Logger
}

func NewPaymentHandler(paymentFlow businessflow.PaymentFlow, logger *zap.Logger) *PaymentHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PaymentHandler{
		paymentFlow: paymentFlow,
		logger:      logger,
	}
}

// StartPayment requests a gateway token for a pending order
// @Summary Start Payment
// @Tags Payments
// @Produce json
// @Param orderId path string true "Order ID"
// @Success 200 {object} dto.APIResponse{data=businessflow.PaymentStart}
// @Failure 404 {object} dto.APIResponse "Order not found"
// @Failure 409 {object} dto.APIResponse "Order is not pending"
// @Router /api/v1/payments/{orderId}/start [post]
func (h *PaymentHandler) StartPayment(c fiber.Ctx) error {
	identity, ok := identityFrom(c)
	if !ok {
		return missingIdentity(c)
	}

	ctx, cancel := requestContext(c, "/api/v1/payments/:orderId/start")
	defer cancel()

	start, err := h.paymentFlow.StartPayment(ctx, identity, c.Params("orderId"))
	if err != nil {
		return businessErrorResponse(c, h.logger, err, "Failed to start payment")
	}
	return SuccessResponse(c, fiber.StatusOK, "Payment started successfully", start)
}

// PaymentCallback reconciles the gateway result for an order
// @Summary Payment Callback
// @Tags Payments
// @Accept json,x-www-form-urlencoded
// @Produce json
// @Param trackingId query string false "Gateway tracking id"
// @Param orderId query string true "Order ID"
// @Param success query string true "Whether the customer completed the payment"
// @Success 200 {object} dto.APIResponse{data=businessflow.ReconcileResult}
// @Failure 400 {object} dto.APIResponse "Callback validation failed"
// @Failure 409 {object} dto.APIResponse "Order already finalized or callback in progress"
// @Failure 502 {object} dto.APIResponse "Verification inconclusive, retry the callback"
// @Router /api/v1/payments/callback [post]
func (h *PaymentHandler) PaymentCallback(c fiber.Ctx) error {
	var req dto.PaymentCallbackRequest
	var err error
	if c.Method() == fiber.MethodGet {
		err = c.Bind().Query(&req)
	} else {
		err = c.Bind().Body(&req)
	}
	if err != nil {
		return ErrorResponse(c, fiber.StatusBadRequest, "Failed to parse callback data", "CALLBACK_DATA_PARSE_ERROR", err.Error())
	}

	ctx, cancel := requestContext(c, "/api/v1/payments/callback")
	defer cancel()

	result, err := h.paymentFlow.Reconcile(ctx, businessflow.PaymentCallback{
		TrackingID: req.TrackingID,
		OrderID:    req.OrderID,
		Success:    parseSuccessFlag(req.Success),
	})
	if err != nil {
		return businessErrorResponse(c, h.logger, err, "Payment reconciliation failed")
	}
	return SuccessResponse(c, fiber.StatusOK, result.Message, result)
}

// parseSuccessFlag accepts boolean spellings and the gateway's OK state
func parseSuccessFlag(v string) bool {
	v = strings.TrimSpace(v)
	if strings.EqualFold(v, "ok") {
		return true
	}
	ok, err := strconv.ParseBool(v)
	return err == nil && ok
}
