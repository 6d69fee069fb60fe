package businessflow

import (
	"context"
	"errors"
	"testing"

	"github.com/amirphl/Orochi-Mail/models"
	"github.com/amirphl/Orochi-Mail/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type paymentHarness struct {
	records      *fakeRecordStore
	orders       *fakeOrderStore
	transactions *fakeTransactionStore
	gateway      *fakeGateway
	notifier     *fakeNotifier
	guard        *TransitionGuard
	flow         *PaymentFlowImpl
}

func newPaymentHarness(policy PaymentPolicy, campaignStatus models.CampaignStatus, orderStatus models.OrderStatus) *paymentHarness {
	campaign := storedCampaign(30, campaignStatus)
	campaign.LinkedOrderID = utils.ToPtr("ord-1")

	h := &paymentHarness{
		records: newFakeRecordStore(campaign),
		orders: newFakeOrderStore(&models.Order{
			ID:             "ord-1",
			CustomerID:     owner.CustomerID,
			CustomerEmail:  owner.Email,
			CampaignID:     30,
			RecipientCount: 25000,
			UnitRate:       80,
			TotalAmount:    2_000_000,
			Currency:       utils.TomanCurrency,
			Status:         orderStatus,
		}),
		transactions: &fakeTransactionStore{},
		gateway: &fakeGateway{
			verify: func(string) (*VerificationResult, error) {
				return &VerificationResult{ResultCode: utils.GatewaySettledCode, Message: "settled", ReferenceNumber: "ref-1"}, nil
			},
			redirect: &PaymentRedirect{Token: "tok-1", RedirectURL: "https://gateway.example/v1/pay/tok-1"},
		},
		notifier: &fakeNotifier{},
		guard:    NewTransitionGuard(),
	}
	h.flow = NewPaymentFlow(h.orders, h.transactions, h.records, h.gateway, nil, h.guard, h.notifier, policy, zap.NewNop()).(*PaymentFlowImpl)
	return h
}

// campaignFlow builds a lifecycle flow over the same stores and guard
func (h *paymentHarness) campaignFlow() *CampaignFlowImpl {
	return NewCampaignFlow(h.records, &fakeFileStore{}, h.orders, &fakeDirectory{categories: testCategories()},
		&fakePricing{table: testTiers()}, nil, h.guard, zap.NewNop()).(*CampaignFlowImpl)
}

func settleCallback() PaymentCallback {
	return PaymentCallback{TrackingID: "trk-1", OrderID: "ord-1", Success: true}
}

func TestReconcileSettled(t *testing.T) {
	h := newPaymentHarness(PaymentPolicy{}, models.CampaignStatusPayment, models.OrderStatusProcessing)

	result, err := h.flow.Reconcile(context.Background(), settleCallback())
	require.NoError(t, err)

	assert.Equal(t, models.OrderStatusCompleted, result.OrderOutcome)
	assert.Equal(t, models.CampaignStatusProcessing, result.NextCampaignStatus)
	assert.False(t, result.AlreadyReconciled)

	order := h.orders.get("ord-1")
	assert.Equal(t, models.OrderStatusCompleted, order.Status)
	require.Len(t, order.TransactionIDs, 1)

	require.Equal(t, 1, h.transactions.count())
	tx := h.transactions.created[0]
	assert.Equal(t, order.TransactionIDs[0], tx.ID)
	assert.Equal(t, models.TransactionResultSettled, tx.ResultStatus)
	assert.Equal(t, "trk-1", *tx.TrackingID)
	assert.Equal(t, "ref-1", tx.ReferenceNumber)

	assert.Equal(t, models.CampaignStatusProcessing, h.records.get(30).Status)
	assert.Equal(t, []string{owner.Email}, h.notifier.sent)
}

func TestReconcileRejected(t *testing.T) {
	h := newPaymentHarness(PaymentPolicy{}, models.CampaignStatusPayment, models.OrderStatusProcessing)
	h.gateway.verify = func(string) (*VerificationResult, error) {
		return &VerificationResult{ResultCode: 51, Message: "insufficient funds"}, nil
	}

	result, err := h.flow.Reconcile(context.Background(), settleCallback())
	require.NoError(t, err)

	assert.Equal(t, models.OrderStatusFailed, result.OrderOutcome)
	assert.Equal(t, models.CampaignStatusPayment, result.NextCampaignStatus)
	assert.Equal(t, "insufficient funds", result.Message)
	assert.Equal(t, models.OrderStatusFailed, h.orders.get("ord-1").Status)
	assert.Equal(t, models.CampaignStatusPayment, h.records.get(30).Status)
	assert.Equal(t, models.TransactionResultRejected, h.transactions.created[0].ResultStatus)
	assert.Empty(t, h.notifier.sent)
}

func TestReconcileIsIdempotent(t *testing.T) {
	h := newPaymentHarness(PaymentPolicy{}, models.CampaignStatusPayment, models.OrderStatusProcessing)
	ctx := context.Background()

	first, err := h.flow.Reconcile(ctx, settleCallback())
	require.NoError(t, err)
	writes := h.orders.writes()
	recordWrites := h.records.calls()

	second, err := h.flow.Reconcile(ctx, settleCallback())
	require.NoError(t, err)

	assert.True(t, second.AlreadyReconciled)
	assert.Equal(t, first.OrderOutcome, second.OrderOutcome)
	assert.Equal(t, first.NextCampaignStatus, second.NextCampaignStatus)
	assert.Equal(t, 1, h.gateway.verifyCalls)
	assert.Equal(t, 1, h.transactions.count())
	assert.Equal(t, writes, h.orders.writes())
	assert.Equal(t, recordWrites, h.records.calls())
	assert.Len(t, h.notifier.sent, 1)
}

func TestReconcileDeclined(t *testing.T) {
	h := newPaymentHarness(PaymentPolicy{}, models.CampaignStatusPayment, models.OrderStatusPending)
	ctx := context.Background()
	callback := PaymentCallback{OrderID: "ord-1", Success: false}

	result, err := h.flow.Reconcile(ctx, callback)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusFailed, result.OrderOutcome)
	assert.Equal(t, models.CampaignStatusPayment, result.NextCampaignStatus)
	assert.Zero(t, h.gateway.verifyCalls)
	require.Equal(t, 1, h.transactions.count())
	assert.Equal(t, models.TransactionResultDeclined, h.transactions.created[0].ResultStatus)
	assert.Nil(t, h.transactions.created[0].TrackingID)

	again, err := h.flow.Reconcile(ctx, callback)
	require.NoError(t, err)
	assert.True(t, again.AlreadyReconciled)
	assert.Equal(t, 1, h.transactions.count())
}

func TestReconcileInconclusiveFailsClosed(t *testing.T) {
	h := newPaymentHarness(PaymentPolicy{}, models.CampaignStatusPayment, models.OrderStatusProcessing)
	h.gateway.verify = func(string) (*VerificationResult, error) {
		return nil, errors.New("gateway timeout")
	}
	ctx := context.Background()

	result, err := h.flow.Reconcile(ctx, settleCallback())
	require.Error(t, err)
	assert.Nil(t, result)
	assert.True(t, IsVerificationInconclusive(err))

	assert.Zero(t, h.orders.writes())
	assert.Zero(t, h.records.calls())
	assert.Zero(t, h.transactions.count())
	assert.Equal(t, models.OrderStatusProcessing, h.orders.get("ord-1").Status)

	// the same callback can be replayed once the gateway answers
	h.gateway.verify = func(string) (*VerificationResult, error) {
		return &VerificationResult{ResultCode: utils.GatewaySettledCode}, nil
	}
	result, err = h.flow.Reconcile(ctx, settleCallback())
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusCompleted, result.OrderOutcome)
}

func TestReconcileInconclusiveFailOnPolicy(t *testing.T) {
	h := newPaymentHarness(PaymentPolicy{FailOnInconclusive: true}, models.CampaignStatusPayment, models.OrderStatusProcessing)
	h.gateway.verify = func(string) (*VerificationResult, error) {
		return nil, errors.New("connection reset")
	}

	_, err := h.flow.Reconcile(context.Background(), settleCallback())
	require.Error(t, err)
	assert.True(t, IsVerificationInconclusive(err))

	assert.Equal(t, models.OrderStatusFailed, h.orders.get("ord-1").Status)
	require.Equal(t, 1, h.transactions.count())
	assert.Equal(t, models.TransactionResultUnknown, h.transactions.created[0].ResultStatus)
	assert.Equal(t, models.CampaignStatusPayment, h.records.get(30).Status)
}

func TestReconcileRejectsFinalizedOrder(t *testing.T) {
	h := newPaymentHarness(PaymentPolicy{}, models.CampaignStatusProcessing, models.OrderStatusCompleted)

	_, err := h.flow.Reconcile(context.Background(), PaymentCallback{TrackingID: "trk-new", OrderID: "ord-1", Success: true})
	require.ErrorIs(t, err, ErrOrderAlreadyFinalized)
	assert.Zero(t, h.gateway.verifyCalls)
	assert.Zero(t, h.orders.writes())
}

func TestReconcileValidation(t *testing.T) {
	tests := []struct {
		name     string
		callback PaymentCallback
		wantErr  error
	}{
		{name: "order id required", callback: PaymentCallback{TrackingID: "trk-1", Success: true}, wantErr: ErrOrderIDRequired},
		{name: "tracking id required on success", callback: PaymentCallback{OrderID: "ord-1", Success: true}, wantErr: ErrTrackingIDRequired},
		{name: "unknown order", callback: PaymentCallback{TrackingID: "trk-1", OrderID: "nope", Success: true}, wantErr: ErrOrderNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newPaymentHarness(PaymentPolicy{}, models.CampaignStatusPayment, models.OrderStatusPending)
			_, err := h.flow.Reconcile(context.Background(), tt.callback)
			require.ErrorIs(t, err, tt.wantErr)
			assert.Zero(t, h.gateway.verifyCalls)
		})
	}
}

func TestReconcileTrackingIDOfAnotherOrder(t *testing.T) {
	h := newPaymentHarness(PaymentPolicy{}, models.CampaignStatusPayment, models.OrderStatusPending)
	require.NoError(t, h.transactions.Create(context.Background(), &models.Transaction{
		ID:         "tx-other",
		OrderID:    "ord-other",
		TrackingID: utils.ToPtr("trk-1"),
	}))

	_, err := h.flow.Reconcile(context.Background(), settleCallback())
	require.ErrorIs(t, err, ErrTrackingIDMismatch)
	assert.Zero(t, h.orders.writes())
}

func TestReconcileSettledCampaignNotWaiting(t *testing.T) {
	h := newPaymentHarness(PaymentPolicy{}, models.CampaignStatusScheduled, models.OrderStatusProcessing)

	result, err := h.flow.Reconcile(context.Background(), settleCallback())
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusCompleted, result.OrderOutcome)
	assert.Equal(t, models.CampaignStatusScheduled, result.NextCampaignStatus)
	assert.Equal(t, models.CampaignStatusScheduled, h.records.get(30).Status)
}

func TestReconcileRejectsConcurrentCallback(t *testing.T) {
	h := newPaymentHarness(PaymentPolicy{}, models.CampaignStatusPayment, models.OrderStatusProcessing)
	gate := make(chan struct{})
	h.gateway.verify = func(string) (*VerificationResult, error) {
		<-gate
		return &VerificationResult{ResultCode: utils.GatewaySettledCode}, nil
	}
	ctx := context.Background()

	done := make(chan error, 1)
	go func() {
		_, err := h.flow.Reconcile(ctx, settleCallback())
		done <- err
	}()

	require.Eventually(t, func() bool { return h.flow.guard.held("payment:trk-1") }, testWait, testTick)

	_, err := h.flow.Reconcile(ctx, settleCallback())
	require.ErrorIs(t, err, ErrTransitionInProgress)

	close(gate)
	require.NoError(t, <-done)
	assert.Equal(t, 1, h.transactions.count())
}

func TestStartPayment(t *testing.T) {
	ctx := context.Background()

	t.Run("marks order processing", func(t *testing.T) {
		h := newPaymentHarness(PaymentPolicy{}, models.CampaignStatusPayment, models.OrderStatusPending)

		start, err := h.flow.StartPayment(ctx, owner, "ord-1")
		require.NoError(t, err)
		assert.Equal(t, "tok-1", start.Token)
		assert.Equal(t, uint64(2_000_000), start.Amount)
		assert.Equal(t, "https://gateway.example/v1/pay/tok-1", start.RedirectURL)

		order := h.orders.get("ord-1")
		assert.Equal(t, models.OrderStatusProcessing, order.Status)
		require.NotNil(t, order.GatewayToken)
		assert.Equal(t, "tok-1", *order.GatewayToken)
	})

	t.Run("foreign order", func(t *testing.T) {
		h := newPaymentHarness(PaymentPolicy{}, models.CampaignStatusPayment, models.OrderStatusPending)
		_, err := h.flow.StartPayment(ctx, Identity{CustomerID: 2}, "ord-1")
		assert.True(t, IsOrderAccessDenied(err))
	})

	t.Run("finalized order", func(t *testing.T) {
		h := newPaymentHarness(PaymentPolicy{}, models.CampaignStatusProcessing, models.OrderStatusCompleted)
		_, err := h.flow.StartPayment(ctx, owner, "ord-1")
		assert.True(t, IsOrderNotPayable(err))
	})

	t.Run("empty token", func(t *testing.T) {
		h := newPaymentHarness(PaymentPolicy{}, models.CampaignStatusPayment, models.OrderStatusPending)
		h.gateway.redirect = &PaymentRedirect{}
		_, err := h.flow.StartPayment(ctx, owner, "ord-1")
		require.ErrorIs(t, err, ErrGatewayTokenEmpty)
		assert.Equal(t, models.OrderStatusPending, h.orders.get("ord-1").Status)
	})
}

func TestRepricingWhilePaymentAtGateway(t *testing.T) {
	h := newPaymentHarness(PaymentPolicy{}, models.CampaignStatusPayment, models.OrderStatusProcessing)
	campaigns := h.campaignFlow()
	ctx := context.Background()

	s, err := campaigns.Load(ctx, owner, 30)
	require.NoError(t, err)
	require.NoError(t, campaigns.RewindTo(s, models.CampaignStatusTargeting))
	s.Draft.SelectAudience([]string{"A"}, testCategories())

	err = campaigns.Advance(ctx, owner, s)
	require.ErrorIs(t, err, ErrPaymentInFlight)
	assert.Equal(t, models.OrderStatusProcessing, h.orders.get("ord-1").Status)
	assert.Zero(t, h.records.calls())

	t.Run("schedule change is refused too", func(t *testing.T) {
		again, err := campaigns.Load(ctx, owner, 30)
		require.NoError(t, err)
		require.NoError(t, campaigns.Back(again))
		again.Draft.SetSchedule(models.CampaignSchedule{SendDate: "2026-12-01", SendTime: "10:00"})
		require.ErrorIs(t, campaigns.Save(ctx, owner, again), ErrPaymentInFlight)
		assert.Equal(t, models.CampaignStatusPayment, h.records.get(30).Status)
	})

	t.Run("the pending payment still settles", func(t *testing.T) {
		result, err := h.flow.Reconcile(ctx, settleCallback())
		require.NoError(t, err)
		assert.Equal(t, models.OrderStatusCompleted, result.OrderOutcome)
		assert.Equal(t, models.CampaignStatusProcessing, h.records.get(30).Status)
		assert.Equal(t, 1, h.gateway.verifyCalls)
	})
}

func TestReconcileSettlesCanceledOrder(t *testing.T) {
	h := newPaymentHarness(PaymentPolicy{}, models.CampaignStatusPayment, models.OrderStatusCanceled)
	h.records.records[30].LinkedOrderID = utils.ToPtr("ord-2")

	result, err := h.flow.Reconcile(context.Background(), settleCallback())
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusCompleted, result.OrderOutcome)
	assert.Equal(t, 1, h.gateway.verifyCalls)

	require.Equal(t, 1, h.transactions.count())
	assert.Equal(t, models.TransactionResultSettled, h.transactions.created[0].ResultStatus)
	assert.Equal(t, models.OrderStatusCompleted, h.orders.get("ord-1").Status)
	assert.Equal(t, models.CampaignStatusPayment, h.records.get(30).Status, "campaign now waits on its new order")
}

func TestReconcileRejectedCanceledOrderStaysCanceled(t *testing.T) {
	h := newPaymentHarness(PaymentPolicy{}, models.CampaignStatusPayment, models.OrderStatusCanceled)
	h.gateway.verify = func(string) (*VerificationResult, error) {
		return &VerificationResult{ResultCode: 51, Message: "insufficient funds"}, nil
	}

	result, err := h.flow.Reconcile(context.Background(), settleCallback())
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusCanceled, result.OrderOutcome)
	require.Equal(t, 1, h.transactions.count())
	assert.Equal(t, models.TransactionResultRejected, h.transactions.created[0].ResultStatus)
	assert.Equal(t, models.OrderStatusCanceled, h.orders.get("ord-1").Status)
}

func TestReconcileWaitsForCampaignTransition(t *testing.T) {
	h := newPaymentHarness(PaymentPolicy{}, models.CampaignStatusPayment, models.OrderStatusProcessing)
	campaigns := h.campaignFlow()
	ctx := context.Background()

	s, err := campaigns.Load(ctx, owner, 30)
	require.NoError(t, err)
	require.NoError(t, campaigns.RewindTo(s, models.CampaignStatusScheduled))

	h.records.updateGate = make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- campaigns.Advance(ctx, owner, s)
	}()
	require.Eventually(t, func() bool { return h.guard.held("campaign:30") }, testWait, testTick)

	_, err = h.flow.Reconcile(ctx, settleCallback())
	require.ErrorIs(t, err, ErrTransitionInProgress)
	assert.Zero(t, h.gateway.verifyCalls)
	assert.Zero(t, h.transactions.count())

	_, err = h.flow.StartPayment(ctx, owner, "ord-1")
	require.ErrorIs(t, err, ErrTransitionInProgress)

	close(h.records.updateGate)
	require.NoError(t, <-done)
	assert.Equal(t, models.CampaignStatusPayment, s.Status)
	assert.Equal(t, "ord-1", s.Order.ID, "same quote reuses the order at the gateway")

	result, err := h.flow.Reconcile(ctx, settleCallback())
	require.NoError(t, err)
	assert.Equal(t, models.CampaignStatusProcessing, result.NextCampaignStatus)
	assert.Equal(t, models.CampaignStatusProcessing, h.records.get(30).Status)
}
