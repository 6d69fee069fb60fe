package businessflow

import (
	"context"
	"fmt"
	"strings"

	"github.com/amirphl/Orochi-Mail/models"
	"github.com/amirphl/Orochi-Mail/utils"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// PaymentCallback is what the gateway reports after the customer returns
type PaymentCallback struct {
	TrackingID string
	OrderID    string
	Success    bool
}

// ReconcileResult is the state after a callback has been applied
type ReconcileResult struct {
	OrderOutcome       models.OrderStatus    `json:"order_outcome"`
	NextCampaignStatus models.CampaignStatus `json:"next_campaign_status,omitempty"`
	Message            string                `json:"message"`
	AlreadyReconciled  bool                  `json:"already_reconciled"`
}

// PaymentStart is returned when the customer is sent to the gateway
type PaymentStart struct {
	OrderID     string `json:"order_id"`
	Amount      uint64 `json:"amount"`
	Currency    string `json:"currency"`
	Token       string `json:"token"`
	RedirectURL string `json:"redirect_url"`
}

// PaymentPolicy tunes reconciliation behavior
type PaymentPolicy struct {
	// FailOnInconclusive marks the order failed when verification cannot be completed
	FailOnInconclusive bool
}

// PaymentFlow handles payment start and settlement
type PaymentFlow interface {
	StartPayment(ctx context.Context, identity Identity, orderID string) (*PaymentStart, error)
	Reconcile(ctx context.Context, callback PaymentCallback) (*ReconcileResult, error)
}

// PaymentFlowImpl implements the payment flow
type PaymentFlowImpl struct {
	orders       OrderStore
	transactions TransactionStore
	records      RecordStore
	gateway      PaymentGateway
	uow          UnitOfWork
	notifier     Notifier
	policy       PaymentPolicy
	guard        *TransitionGuard
	logger       *zap.Logger
}

// NewPaymentFlow creates a new payment flow instance
func NewPaymentFlow(
	orders OrderStore,
	transactions TransactionStore,
	records RecordStore,
	gateway PaymentGateway,
	uow UnitOfWork,
	guard *TransitionGuard,
	notifier Notifier,
	policy PaymentPolicy,
	logger *zap.Logger,
) PaymentFlow {
	if uow == nil {
		uow = noopUnitOfWork{}
	}
	if guard == nil {
		guard = NewTransitionGuard()
	}
	if notifier == nil {
		notifier = noopNotifier{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PaymentFlowImpl{
		orders:       orders,
		transactions: transactions,
		records:      records,
		gateway:      gateway,
		uow:          uow,
		notifier:     notifier,
		policy:       policy,
		guard:        guard,
		logger:       logger,
	}
}

// StartPayment requests a gateway token for an open order and marks it processing
func (p *PaymentFlowImpl) StartPayment(ctx context.Context, identity Identity, orderID string) (*PaymentStart, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return nil, NewBusinessError("ORDER_VALIDATION_FAILED", "Order validation failed", ErrOrderIDRequired)
	}

	order, err := p.orders.Fetch(ctx, orderID)
	if err != nil {
		return nil, NewBusinessError("ORDER_LOOKUP_FAILED", "Failed to load order", err)
	}
	if order == nil {
		return nil, NewBusinessError("ORDER_NOT_FOUND", "Order not found", ErrOrderNotFound)
	}
	if order.CustomerID != identity.CustomerID {
		return nil, NewBusinessError("ORDER_ACCESS_DENIED", "Order belongs to another customer", ErrOrderAccessDenied)
	}

	release, ok := p.lockCampaign(order)
	if !ok {
		return nil, NewBusinessError("TRANSITION_IN_PROGRESS", "Campaign transition already in progress", ErrTransitionInProgress)
	}
	defer release()

	// The campaign may have re-priced the order before the key was taken
	order, err = p.orders.Fetch(ctx, orderID)
	if err != nil {
		return nil, NewBusinessError("ORDER_LOOKUP_FAILED", "Failed to load order", err)
	}
	if order == nil {
		return nil, NewBusinessError("ORDER_NOT_FOUND", "Order not found", ErrOrderNotFound)
	}
	if order.Status.IsFinal() {
		return nil, NewBusinessErrorf("ORDER_NOT_PAYABLE", "Order is %s", ErrOrderNotPayable, order.Status)
	}

	redirect, err := p.gateway.RequestPayment(ctx, *order)
	if err != nil {
		return nil, NewBusinessError("PAYMENT_REQUEST_FAILED", "Failed to request payment token", err)
	}
	if redirect == nil || redirect.Token == "" {
		return nil, NewBusinessError("PAYMENT_REQUEST_FAILED", "Failed to request payment token", ErrGatewayTokenEmpty)
	}

	processing := models.OrderStatusProcessing
	update := models.OrderUpdate{Status: &processing, GatewayToken: &redirect.Token}
	if err := p.orders.Update(ctx, order.ID, update); err != nil {
		return nil, NewBusinessError("ORDER_UPDATE_FAILED", "Failed to mark order processing", err)
	}

	p.logger.Info("payment started",
		zap.String("order_id", order.ID),
		zap.Uint64("amount", order.TotalAmount),
	)

	return &PaymentStart{
		OrderID:     order.ID,
		Amount:      order.TotalAmount,
		Currency:    order.Currency,
		Token:       redirect.Token,
		RedirectURL: redirect.RedirectURL,
	}, nil
}

// Reconcile applies a gateway callback to the order and its campaign. A
// tracking id that was already recorded returns the current state without
// writing anything.
func (p *PaymentFlowImpl) Reconcile(ctx context.Context, callback PaymentCallback) (result *ReconcileResult, err error) {
	callback.OrderID = strings.TrimSpace(callback.OrderID)
	callback.TrackingID = strings.TrimSpace(callback.TrackingID)

	if callback.OrderID == "" {
		return nil, NewBusinessError("CALLBACK_VALIDATION_FAILED", "Payment callback validation failed", ErrOrderIDRequired)
	}
	if callback.Success && callback.TrackingID == "" {
		return nil, NewBusinessError("CALLBACK_VALIDATION_FAILED", "Payment callback validation failed", ErrTrackingIDRequired)
	}

	key := "payment:" + callback.TrackingID
	if callback.TrackingID == "" {
		key = "order:" + callback.OrderID
	}
	release, ok := p.guard.tryAcquire(key)
	if !ok {
		observeReconciliation("busy")
		return nil, NewBusinessError("RECONCILIATION_IN_PROGRESS", "Payment callback already being processed", ErrTransitionInProgress)
	}
	defer release()

	defer func() {
		observeReconciliation(reconcileOutcome(result, err))
	}()

	order, err := p.orders.Fetch(ctx, callback.OrderID)
	if err != nil {
		return nil, NewBusinessError("ORDER_LOOKUP_FAILED", "Failed to load order", err)
	}
	if order == nil {
		return nil, NewBusinessError("ORDER_NOT_FOUND", "Order not found", ErrOrderNotFound)
	}

	if callback.TrackingID != "" {
		existing, err := p.transactions.ByTrackingID(ctx, callback.TrackingID)
		if err != nil {
			return nil, NewBusinessError("TRANSACTION_LOOKUP_FAILED", "Failed to look up transaction", err)
		}
		if existing != nil {
			if existing.OrderID != order.ID {
				return nil, NewBusinessError("TRACKING_ID_MISMATCH", "Tracking id does not belong to this order", ErrTrackingIDMismatch)
			}
			return p.currentState(ctx, order, existing.Message)
		}
	}

	releaseCampaign, ok := p.lockCampaign(order)
	if !ok {
		return nil, NewBusinessError("RECONCILIATION_IN_PROGRESS", "Campaign transition already in progress", ErrTransitionInProgress)
	}
	defer releaseCampaign()

	if order.Status.IsFinal() {
		// The gateway may still have collected a payment on a superseded order
		if order.Status == models.OrderStatusCanceled && callback.Success {
			return p.verifyAndSettle(ctx, order, callback.TrackingID, models.OrderStatusCanceled)
		}
		// A repeated decline without tracking id carries nothing new
		if !callback.Success && callback.TrackingID == "" && order.Status == models.OrderStatusFailed {
			return p.currentState(ctx, order, "payment was not completed")
		}
		return nil, NewBusinessErrorf("ORDER_ALREADY_FINALIZED", "Order is already %s", ErrOrderAlreadyFinalized, order.Status)
	}

	if !callback.Success {
		return p.settle(ctx, order, attempt{
			trackingID:  callback.TrackingID,
			result:      models.TransactionResultDeclined,
			message:     "payment was not completed",
			orderStatus: models.OrderStatusFailed,
		})
	}

	return p.verifyAndSettle(ctx, order, callback.TrackingID, models.OrderStatusFailed)
}

// verifyAndSettle asks the gateway about trackingID. A settled payment
// completes the order; anything else leaves it at unsettled.
func (p *PaymentFlowImpl) verifyAndSettle(ctx context.Context, order *models.Order, trackingID string, unsettled models.OrderStatus) (*ReconcileResult, error) {
	verification, err := p.gateway.Verify(ctx, trackingID)
	if err != nil {
		p.logger.Warn("payment verification inconclusive",
			zap.String("order_id", order.ID),
			zap.String("tracking_id", trackingID),
			zap.Error(err),
		)
		if p.policy.FailOnInconclusive {
			if _, ferr := p.settle(ctx, order, attempt{
				trackingID:  trackingID,
				result:      models.TransactionResultUnknown,
				message:     "payment verification could not be completed",
				orderStatus: unsettled,
			}); ferr != nil {
				p.logger.Error("failed to record inconclusive verification", zap.String("order_id", order.ID), zap.Error(ferr))
			}
		}
		return nil, NewBusinessError("PAYMENT_VERIFICATION_INCONCLUSIVE", "Payment verification could not be completed",
			fmt.Errorf("%w: %v", ErrVerificationInconclusive, err))
	}

	if verification.ResultCode != utils.GatewaySettledCode {
		return p.settle(ctx, order, attempt{
			trackingID:      trackingID,
			result:          models.TransactionResultRejected,
			resultCode:      verification.ResultCode,
			referenceNumber: verification.ReferenceNumber,
			message:         verification.Message,
			orderStatus:     unsettled,
		})
	}

	if order.Status == models.OrderStatusCanceled {
		p.logger.Warn("payment settled on a canceled order",
			zap.String("order_id", order.ID),
			zap.String("tracking_id", trackingID),
			zap.Uint64("amount", order.TotalAmount),
		)
	}

	result, err := p.settle(ctx, order, attempt{
		trackingID:      trackingID,
		result:          models.TransactionResultSettled,
		resultCode:      verification.ResultCode,
		referenceNumber: verification.ReferenceNumber,
		message:         verification.Message,
		orderStatus:     models.OrderStatusCompleted,
		advance:         true,
	})
	if err != nil {
		return nil, err
	}

	if order.CustomerEmail != "" {
		settled := *order
		settled.Status = models.OrderStatusCompleted
		if nerr := p.notifier.PaymentReceipt(ctx, order.CustomerEmail, settled); nerr != nil {
			p.logger.Warn("failed to send payment receipt", zap.String("order_id", order.ID), zap.Error(nerr))
		}
	}
	return result, nil
}

// lockCampaign claims the campaign key of order, the same key campaign transitions use
func (p *PaymentFlowImpl) lockCampaign(order *models.Order) (func(), bool) {
	if order.CampaignID == 0 {
		return func() {}, true
	}
	return p.guard.tryAcquire(PersistedRef{ID: order.CampaignID}.guardKey())
}

type attempt struct {
	trackingID      string
	result          models.TransactionResult
	resultCode      int
	referenceNumber string
	message         string
	orderStatus     models.OrderStatus
	advance         bool
}

// settle records the attempt, finalizes the order and, for a settled
// payment, moves a campaign waiting at payment to processing. All writes
// share one unit of work.
func (p *PaymentFlowImpl) settle(ctx context.Context, order *models.Order, a attempt) (*ReconcileResult, error) {
	var campaign *models.Campaign

	err := p.uow.Do(ctx, func(txCtx context.Context) error {
		tx := &models.Transaction{
			ID:              uuid.NewString(),
			OrderID:         order.ID,
			ReferenceNumber: a.referenceNumber,
			ResultCode:      a.resultCode,
			ResultStatus:    a.result,
			Message:         a.message,
			Timestamp:       utils.UTCNow(),
		}
		if a.trackingID != "" {
			tx.TrackingID = utils.ToPtr(a.trackingID)
		}
		if err := p.transactions.Create(txCtx, tx); err != nil {
			return err
		}

		update := models.OrderUpdate{Status: &a.orderStatus, AppendTxID: &tx.ID}
		if err := p.orders.Update(txCtx, order.ID, update); err != nil {
			return err
		}

		var err error
		campaign, err = p.records.FetchByOrderID(txCtx, order.ID)
		if err != nil {
			return err
		}
		if !a.advance || campaign == nil {
			return nil
		}
		if campaign.Status != models.CampaignStatusPayment {
			p.logger.Warn("settled order's campaign is not waiting for payment",
				zap.String("order_id", order.ID),
				zap.Uint("campaign_id", campaign.ID),
				zap.String("campaign_status", campaign.Status.String()),
			)
			return nil
		}

		next := models.CampaignStatusProcessing
		if err := p.records.Update(txCtx, campaign.ID, models.CampaignUpdate{Status: &next}); err != nil {
			return err
		}
		campaign.Status = next
		return nil
	})
	if err != nil {
		return nil, NewBusinessError("RECONCILIATION_FAILED", "Failed to apply payment result", err)
	}

	p.logger.Info("payment reconciled",
		zap.String("order_id", order.ID),
		zap.String("tracking_id", a.trackingID),
		zap.String("result", string(a.result)),
		zap.String("order_status", string(a.orderStatus)),
	)

	result := &ReconcileResult{
		OrderOutcome: a.orderStatus,
		Message:      a.message,
	}
	if campaign != nil {
		result.NextCampaignStatus = campaign.Status
	}
	return result, nil
}

func (p *PaymentFlowImpl) currentState(ctx context.Context, order *models.Order, message string) (*ReconcileResult, error) {
	campaign, err := p.records.FetchByOrderID(ctx, order.ID)
	if err != nil {
		return nil, NewBusinessError("CAMPAIGN_LOOKUP_FAILED", "Failed to load campaign for order", err)
	}
	result := &ReconcileResult{
		OrderOutcome:      order.Status,
		Message:           message,
		AlreadyReconciled: true,
	}
	if campaign != nil {
		result.NextCampaignStatus = campaign.Status
	}
	return result, nil
}

func reconcileOutcome(result *ReconcileResult, err error) string {
	switch {
	case err != nil && IsVerificationInconclusive(err):
		return "inconclusive"
	case err != nil && IsTransitionInProgress(err):
		return "busy"
	case err != nil && IsValidationError(err):
		return "invalid"
	case err != nil:
		return "error"
	case result.AlreadyReconciled:
		return "duplicate"
	case result.OrderOutcome == models.OrderStatusCompleted:
		return "settled"
	default:
		return "failed"
	}
}
