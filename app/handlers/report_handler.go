package handlers

import (
	businessflow "github.com/amirphl/Orochi-Mail/business_flow"
	"github.com/gofiber/fiber/v3"
	"go.uber.org/zap"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// ReportHandler serves spreadsheet exports
type ReportHandler struct {
	reportFlow businessflow.OrderReportFlow
	logger     *zap.Logger
}

func NewReportHandler(reportFlow businessflow.OrderReportFlow, logger *zap.Logger) *ReportHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReportHandler{reportFlow: reportFlow, logger: logger}
}

// ExportOrders handles the caller's order export
// @Summary Export Orders
// @Tags Orders
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Success 200 {file} file "Orders workbook"
// @Router /api/v1/orders/export [get]
func (h *ReportHandler) ExportOrders(c fiber.Ctx) error {
	identity, ok := identityFrom(c)
	if !ok {
		return missingIdentity(c)
	}

	ctx, cancel := requestContext(c, "/api/v1/orders/export")
	defer cancel()

	filename, data, err := h.reportFlow.ExportOrders(ctx, identity)
	if err != nil {
		return businessErrorResponse(c, h.logger, err, "Failed to export orders")
	}

	c.Set(fiber.HeaderContentType, xlsxContentType)
	c.Set(fiber.HeaderContentDisposition, "attachment; filename="+filename)
	return c.Send(data)
}
