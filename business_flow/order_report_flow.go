package businessflow

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

const ordersSheetName = "orders"

// OrderReportFlow exports a customer's orders
type OrderReportFlow interface {
	ExportOrders(ctx context.Context, identity Identity) (string, []byte, error)
}

// OrderReportFlowImpl implements the order report flow
type OrderReportFlowImpl struct {
	orders  OrderStore
	records RecordStore
	logger  *zap.Logger
}

// NewOrderReportFlow creates a new order report flow instance
func NewOrderReportFlow(orders OrderStore, records RecordStore, logger *zap.Logger) OrderReportFlow {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OrderReportFlowImpl{orders: orders, records: records, logger: logger}
}

// ExportOrders builds an xlsx workbook with one row per order of the caller
func (f *OrderReportFlowImpl) ExportOrders(ctx context.Context, identity Identity) (string, []byte, error) {
	orders, err := f.orders.ListByCustomer(ctx, identity.CustomerID)
	if err != nil {
		return "", nil, NewBusinessError("FETCH_ORDERS_FAILED", "Failed to fetch orders", err)
	}

	xl := excelize.NewFile()
	defer func() { _ = xl.Close() }()
	xl.SetSheetName(xl.GetSheetName(0), ordersSheetName)

	header := []string{"order_id", "campaign_id", "campaign_status", "recipients", "unit_rate", "tier", "total_amount", "currency", "status", "transactions", "created_at"}
	_ = xl.SetSheetRow(ordersSheetName, "A1", &header)

	// campaign status per id, fetched once
	statuses := make(map[uint]string)
	for i, o := range orders {
		status, seen := statuses[o.CampaignID]
		if !seen {
			campaign, err := f.records.Fetch(ctx, o.CampaignID)
			if err != nil {
				f.logger.Warn("failed to load campaign for order export", zap.Uint("campaign_id", o.CampaignID), zap.Error(err))
			} else if campaign != nil {
				status = campaign.Status.String()
			}
			statuses[o.CampaignID] = status
		}

		record := []any{
			o.ID,
			o.CampaignID,
			status,
			o.RecipientCount,
			o.UnitRate,
			o.TierLabel,
			o.TotalAmount,
			o.Currency,
			string(o.Status),
			strconv.Itoa(len(o.TransactionIDs)),
			o.CreatedAt.UTC().Format(time.RFC3339),
		}
		cellRef, _ := excelize.CoordinatesToCellName(1, i+2)
		_ = xl.SetSheetRow(ordersSheetName, cellRef, &record)
	}

	buf, err := xl.WriteToBuffer()
	if err != nil {
		return "", nil, NewBusinessError("EXCEL_WRITE_ERROR", "Failed to write Excel file", err)
	}
	filename := fmt.Sprintf("orders_%d_%s.xlsx", identity.CustomerID, time.Now().UTC().Format("20060102"))
	return filename, buf.Bytes(), nil
}
