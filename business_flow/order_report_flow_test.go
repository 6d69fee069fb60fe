package businessflow

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/amirphl/Orochi-Mail/models"
	"github.com/amirphl/Orochi-Mail/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

func TestExportOrders(t *testing.T) {
	campaign := storedCampaign(40, models.CampaignStatusPayment)
	campaign.LinkedOrderID = utils.ToPtr("ord-9")
	records := newFakeRecordStore(campaign)
	orders := newFakeOrderStore(
		&models.Order{ID: "ord-9", CustomerID: owner.CustomerID, CampaignID: 40, RecipientCount: 5000, UnitRate: 100, TierLabel: "base", TotalAmount: 500_000, Currency: "TMN", Status: models.OrderStatusPending},
		&models.Order{ID: "ord-x", CustomerID: 77, CampaignID: 41, Status: models.OrderStatusPending},
	)

	flow := NewOrderReportFlow(orders, records, zap.NewNop())
	filename, data, err := flow.ExportOrders(context.Background(), owner)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(filename, ".xlsx"))

	xl, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer func() { _ = xl.Close() }()

	rows, err := xl.GetRows(ordersSheetName)
	require.NoError(t, err)
	require.Len(t, rows, 2, "header plus the caller's single order")
	assert.Equal(t, "order_id", rows[0][0])
	assert.Equal(t, "ord-9", rows[1][0])
	assert.Equal(t, "40", rows[1][1])
	assert.Equal(t, "payment", rows[1][2])
	assert.Equal(t, "500000", rows[1][6])
}
