package businessflow

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/amirphl/Orochi-Mail/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// CampaignRef identifies the campaign a session works on. It is either a
// DraftRef for a campaign that exists only in memory or a PersistedRef for
// one that has a durable record.
type CampaignRef interface {
	guardKey() string
}

// DraftRef refers to an unsaved campaign
type DraftRef struct {
	Key uuid.UUID
}

func (r DraftRef) guardKey() string { return "draft:" + r.Key.String() }

// PersistedRef refers to a stored campaign record
type PersistedRef struct {
	ID uint
}

func (r PersistedRef) guardKey() string { return fmt.Sprintf("campaign:%d", r.ID) }

// CampaignSession is the working state of one campaign being built by a customer
type CampaignSession struct {
	Ref    CampaignRef
	Status models.CampaignStatus
	Draft  *CampaignDraft
	Record *models.Campaign

	// Set when the session enters payment
	Quote *CostQuote
	Order *models.Order
}

// IsDraft reports whether the session has no durable record yet
func (s *CampaignSession) IsDraft() bool {
	_, ok := s.Ref.(DraftRef)
	return ok
}

// CampaignFlow drives the campaign lifecycle state machine
type CampaignFlow interface {
	Start(identity Identity) *CampaignSession
	Load(ctx context.Context, identity Identity, id uint) (*CampaignSession, error)
	Advance(ctx context.Context, identity Identity, session *CampaignSession) error
	Save(ctx context.Context, identity Identity, session *CampaignSession) error
	Back(session *CampaignSession) error
	RewindTo(session *CampaignSession, target models.CampaignStatus) error
}

// CampaignFlowImpl implements the campaign lifecycle flow
type CampaignFlowImpl struct {
	records   RecordStore
	files     FileStore
	orders    OrderStore
	directory CategoryDirectory
	pricing   PricingSource
	uow       UnitOfWork
	guard     *TransitionGuard
	logger    *zap.Logger
}

// NewCampaignFlow creates a new campaign lifecycle flow instance
func NewCampaignFlow(
	records RecordStore,
	files FileStore,
	orders OrderStore,
	directory CategoryDirectory,
	pricing PricingSource,
	uow UnitOfWork,
	guard *TransitionGuard,
	logger *zap.Logger,
) CampaignFlow {
	if uow == nil {
		uow = noopUnitOfWork{}
	}
	if guard == nil {
		guard = NewTransitionGuard()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CampaignFlowImpl{
		records:   records,
		files:     files,
		orders:    orders,
		directory: directory,
		pricing:   pricing,
		uow:       uow,
		guard:     guard,
		logger:    logger,
	}
}

// Start opens a session on a fresh draft at targeting
func (s *CampaignFlowImpl) Start(identity Identity) *CampaignSession {
	return &CampaignSession{
		Ref:    DraftRef{Key: uuid.New()},
		Status: models.CampaignStatusTargeting,
		Draft:  NewCampaignDraft(),
	}
}

// Load opens a session on a stored campaign owned by identity
func (s *CampaignFlowImpl) Load(ctx context.Context, identity Identity, id uint) (*CampaignSession, error) {
	record, err := s.fetchOwned(ctx, identity, id)
	if err != nil {
		return nil, err
	}
	session := &CampaignSession{}
	s.adopt(session, record)
	return session, nil
}

// Advance moves the session one status forward, persisting the step for stored campaigns
func (s *CampaignFlowImpl) Advance(ctx context.Context, identity Identity, session *CampaignSession) (err error) {
	if session == nil || session.Draft == nil || session.Ref == nil {
		return NewBusinessError("INVALID_SESSION", "Campaign session is not initialized", ErrInvalidTransition)
	}

	from := session.Status
	defer func() {
		observeTransition(from.String(), session.Status.String(), err)
	}()

	switch {
	case from.IsLocked():
		return NewBusinessErrorf("CAMPAIGN_LOCKED", "Campaign in %s status cannot be advanced", ErrCampaignLocked, from)
	case from == models.CampaignStatusPayment:
		return NewBusinessError("PAYMENT_CONFIRMATION_REQUIRED", "Campaign waits for payment confirmation", ErrPaymentConfirmationRequired)
	case !from.Valid():
		return NewBusinessErrorf("INVALID_TRANSITION", "Unknown campaign status %q", ErrInvalidTransition, from)
	}

	release, ok := s.guard.tryAcquire(session.Ref.guardKey())
	if !ok {
		return NewBusinessError("TRANSITION_IN_PROGRESS", "Campaign transition already in progress", ErrTransitionInProgress)
	}
	defer release()

	switch from {
	case models.CampaignStatusTargeting:
		return s.advanceFromTargeting(ctx, identity, session)
	case models.CampaignStatusEditing:
		return s.advanceFromEditing(ctx, identity, session)
	default:
		return s.enterPayment(ctx, identity, session)
	}
}

// Save persists the schedule step. A draft is created as a record in one call.
func (s *CampaignFlowImpl) Save(ctx context.Context, identity Identity, session *CampaignSession) (err error) {
	if session == nil || session.Draft == nil || session.Ref == nil {
		return NewBusinessError("INVALID_SESSION", "Campaign session is not initialized", ErrInvalidTransition)
	}
	if session.Status != models.CampaignStatusScheduled {
		return NewBusinessErrorf("INVALID_TRANSITION", "Campaign can only be saved at %s, current status is %s",
			ErrInvalidTransition, models.CampaignStatusScheduled, session.Status)
	}

	release, ok := s.guard.tryAcquire(session.Ref.guardKey())
	if !ok {
		return NewBusinessError("TRANSITION_IN_PROGRESS", "Campaign transition already in progress", ErrTransitionInProgress)
	}
	defer release()

	schedule, err := validateSchedule(session.Draft.Schedule())
	if err != nil {
		return NewBusinessError("SCHEDULE_VALIDATION_FAILED", "Schedule validation failed", err)
	}

	switch ref := session.Ref.(type) {
	case DraftRef:
		return s.createFromDraft(ctx, identity, session, schedule)
	case PersistedRef:
		if err := s.ensureOwner(identity, session); err != nil {
			return err
		}
		if err := s.ensureEditable(ctx, ref.ID); err != nil {
			return err
		}
		status := models.CampaignStatusScheduled
		update := models.CampaignUpdate{Status: &status, Schedule: &schedule}
		if err := s.records.Update(ctx, ref.ID, update); err != nil {
			return NewBusinessError("CAMPAIGN_UPDATE_FAILED", "Failed to save campaign schedule", err)
		}
		return s.reload(ctx, session, ref.ID)
	default:
		return NewBusinessError("INVALID_SESSION", "Campaign reference is unknown", ErrInvalidTransition)
	}
}

// Back steps the session one status backward. It never touches a store.
func (s *CampaignFlowImpl) Back(session *CampaignSession) error {
	if session.Status.IsLocked() {
		return NewBusinessErrorf("CAMPAIGN_LOCKED", "Campaign in %s status cannot go back", ErrCampaignLocked, session.Status)
	}
	prev, ok := session.Status.Previous()
	if !ok {
		return NewBusinessErrorf("INVALID_TRANSITION", "Campaign in %s status has no previous step", ErrInvalidTransition, session.Status)
	}
	session.Status = prev
	return nil
}

// RewindTo steps back until the session reaches target
func (s *CampaignFlowImpl) RewindTo(session *CampaignSession, target models.CampaignStatus) error {
	if !target.Valid() || target.Rank() > session.Status.Rank() {
		return NewBusinessErrorf("INVALID_TRANSITION", "Cannot rewind from %s to %s", ErrInvalidTransition, session.Status, target)
	}
	for session.Status != target {
		if err := s.Back(session); err != nil {
			return err
		}
	}
	return nil
}

func (s *CampaignFlowImpl) advanceFromTargeting(ctx context.Context, identity Identity, session *CampaignSession) error {
	ids := session.Draft.Audience().CategoryIDs
	if len(ids) == 0 {
		return NewBusinessError("AUDIENCE_VALIDATION_FAILED", "Audience validation failed", ErrAudienceRequired)
	}

	switch ref := session.Ref.(type) {
	case DraftRef:
		session.Status = models.CampaignStatusEditing
		return nil
	case PersistedRef:
		if err := s.ensureOwner(identity, session); err != nil {
			return err
		}
		if err := s.ensureEditable(ctx, ref.ID); err != nil {
			return err
		}
		status := models.CampaignStatusEditing
		update := models.CampaignUpdate{Status: &status, AudienceCategoryIDs: ids}
		if err := s.records.Update(ctx, ref.ID, update); err != nil {
			return NewBusinessError("CAMPAIGN_UPDATE_FAILED", "Failed to save campaign audience", err)
		}
		return s.reload(ctx, session, ref.ID)
	default:
		return NewBusinessError("INVALID_SESSION", "Campaign reference is unknown", ErrInvalidTransition)
	}
}

func (s *CampaignFlowImpl) advanceFromEditing(ctx context.Context, identity Identity, session *CampaignSession) error {
	message, err := validateMessage(session.Draft)
	if err != nil {
		return NewBusinessError("MESSAGE_VALIDATION_FAILED", "Message validation failed", err)
	}

	switch ref := session.Ref.(type) {
	case DraftRef:
		session.Draft.SetMessage(message, session.Draft.Attachment())
		session.Status = models.CampaignStatusScheduled
		return nil
	case PersistedRef:
		if err := s.ensureOwner(identity, session); err != nil {
			return err
		}
		if err := s.ensureEditable(ctx, ref.ID); err != nil {
			return err
		}
		message, err = s.uploadPending(ctx, identity, session.Draft, message)
		if err != nil {
			return err
		}
		// Uploaded file is now referenced by id
		session.Draft.SetMessage(message, nil)

		status := models.CampaignStatusScheduled
		update := models.CampaignUpdate{Status: &status, Message: &message}
		if err := s.records.Update(ctx, ref.ID, update); err != nil {
			return NewBusinessError("CAMPAIGN_UPDATE_FAILED", "Failed to save campaign message", err)
		}
		return s.reload(ctx, session, ref.ID)
	default:
		return NewBusinessError("INVALID_SESSION", "Campaign reference is unknown", ErrInvalidTransition)
	}
}

func (s *CampaignFlowImpl) createFromDraft(ctx context.Context, identity Identity, session *CampaignSession, schedule models.CampaignSchedule) error {
	ids := session.Draft.Audience().CategoryIDs
	if len(ids) == 0 {
		return NewBusinessError("AUDIENCE_VALIDATION_FAILED", "Audience validation failed", ErrAudienceRequired)
	}
	message, err := validateMessage(session.Draft)
	if err != nil {
		return NewBusinessError("MESSAGE_VALIDATION_FAILED", "Message validation failed", err)
	}
	message, err = s.uploadPending(ctx, identity, session.Draft, message)
	if err != nil {
		return err
	}
	session.Draft.SetMessage(message, nil)

	campaign := models.Campaign{
		CustomerID:          identity.CustomerID,
		Status:              models.CampaignStatusScheduled,
		AudienceCategoryIDs: append([]string{}, ids...),
		Spec: models.CampaignSpec{
			Message:  &message,
			Schedule: &schedule,
		},
	}

	created, err := s.records.Create(ctx, campaign)
	if err != nil {
		return NewBusinessError("CAMPAIGN_CREATION_FAILED", "Campaign creation failed", err)
	}
	if created == nil {
		return NewBusinessError("CAMPAIGN_CREATION_FAILED", "Campaign creation returned no record", ErrCampaignNotFound)
	}

	s.logger.Info("campaign created from draft",
		zap.Uint("campaign_id", created.ID),
		zap.Uint("customer_id", identity.CustomerID),
	)
	s.adopt(session, created)
	return nil
}

func (s *CampaignFlowImpl) enterPayment(ctx context.Context, identity Identity, session *CampaignSession) error {
	ref, ok := session.Ref.(PersistedRef)
	if !ok {
		return NewBusinessError("DRAFT_NOT_SAVED", "Campaign must be saved before payment", ErrDraftNotSaved)
	}
	if err := s.ensureOwner(identity, session); err != nil {
		return err
	}
	record, linked, err := s.loadCurrent(ctx, ref.ID)
	if err != nil {
		return err
	}

	ids := session.Draft.Audience().CategoryIDs
	if len(ids) == 0 {
		return NewBusinessError("AUDIENCE_VALIDATION_FAILED", "Audience validation failed", ErrAudienceRequired)
	}
	schedule, err := validateSchedule(session.Draft.Schedule())
	if err != nil {
		return NewBusinessError("SCHEDULE_VALIDATION_FAILED", "Schedule validation failed", err)
	}

	var (
		categories []models.AudienceCategory
		table      models.PricingTable
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		categories, err = s.directory.List(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		table, err = s.pricing.FetchTiers(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return NewBusinessError("COST_COMPUTATION_FAILED", "Failed to load audience or pricing data", err)
	}
	if len(table) == 0 {
		return NewBusinessError("COST_COMPUTATION_FAILED", "No pricing tiers configured", ErrPricingTableEmpty)
	}

	summary := Aggregate(ids, categories)
	if summary.RecipientCount == 0 {
		return NewBusinessError("AUDIENCE_VALIDATION_FAILED", "Selected audience has no recipients", ErrNoRecipients)
	}
	quote, err := ComputeCost(summary.RecipientCount, table)
	if err != nil {
		return NewBusinessError("COST_COMPUTATION_FAILED", "Campaign cost cannot be computed", err)
	}
	if linked != nil && linked.Status == models.OrderStatusProcessing && !quotedBy(linked, quote) {
		return NewBusinessError("PAYMENT_IN_FLIGHT", "Campaign cost changed while its payment is in progress", ErrPaymentInFlight)
	}

	var order *models.Order
	err = s.uow.Do(ctx, func(txCtx context.Context) error {
		var err error
		order, err = s.resolveOrder(txCtx, identity, record, linked, quote)
		if err != nil {
			return err
		}

		status := models.CampaignStatusPayment
		update := models.CampaignUpdate{
			Status:        &status,
			Schedule:      &schedule,
			LinkedOrderID: &order.ID,
		}
		return s.records.Update(txCtx, ref.ID, update)
	})
	if err != nil {
		return NewBusinessError("PAYMENT_ENTRY_FAILED", "Failed to prepare campaign payment", err)
	}

	if err := s.reload(ctx, session, ref.ID); err != nil {
		return err
	}
	session.Quote = &quote
	session.Order = order

	s.logger.Info("campaign entered payment",
		zap.Uint("campaign_id", ref.ID),
		zap.String("order_id", order.ID),
		zap.Int64("recipients", quote.RecipientCount),
		zap.Uint64("total_cost", quote.TotalCost),
	)
	return nil
}

// resolveOrder reuses an open order quoted at the same cost. A pending order
// with a different cost is canceled and replaced. An order already sent to
// the gateway is never canceled here.
func (s *CampaignFlowImpl) resolveOrder(ctx context.Context, identity Identity, record *models.Campaign, linked *models.Order, quote CostQuote) (*models.Order, error) {
	if linked != nil && !linked.Status.IsFinal() {
		if quotedBy(linked, quote) {
			return linked, nil
		}
		if linked.Status != models.OrderStatusPending {
			return nil, NewBusinessError("PAYMENT_IN_FLIGHT", "Campaign cost changed while its payment is in progress", ErrPaymentInFlight)
		}
		canceled := models.OrderStatusCanceled
		if err := s.orders.Update(ctx, linked.ID, models.OrderUpdate{Status: &canceled}); err != nil {
			return nil, err
		}
		s.logger.Info("stale order canceled",
			zap.String("order_id", linked.ID),
			zap.Uint64("old_amount", linked.TotalAmount),
			zap.Uint64("new_amount", quote.TotalCost),
		)
	}

	return s.orders.Create(ctx, models.Order{
		CustomerID:     identity.CustomerID,
		CustomerEmail:  identity.Email,
		CampaignID:     record.ID,
		RecipientCount: quote.RecipientCount,
		UnitRate:       quote.UnitRate,
		TierLabel:      quote.TierLabel,
		TotalAmount:    quote.TotalCost,
		Status:         models.OrderStatusPending,
	})
}

func quotedBy(order *models.Order, quote CostQuote) bool {
	return order.TotalAmount == quote.TotalCost && order.RecipientCount == quote.RecipientCount
}

// loadCurrent refetches the stored campaign and its linked order. A campaign
// past payment or one whose order has settled cannot change anymore.
func (s *CampaignFlowImpl) loadCurrent(ctx context.Context, id uint) (*models.Campaign, *models.Order, error) {
	record, err := s.records.Fetch(ctx, id)
	if err != nil {
		return nil, nil, NewBusinessError("CAMPAIGN_LOOKUP_FAILED", "Failed to load campaign", err)
	}
	if record == nil {
		return nil, nil, NewBusinessError("CAMPAIGN_NOT_FOUND", "Campaign not found", ErrCampaignNotFound)
	}
	if record.Status.IsLocked() {
		return nil, nil, NewBusinessErrorf("CAMPAIGN_LOCKED", "Campaign in %s status cannot be changed", ErrCampaignLocked, record.Status)
	}
	if record.LinkedOrderID == nil || *record.LinkedOrderID == "" {
		return record, nil, nil
	}

	order, err := s.orders.Fetch(ctx, *record.LinkedOrderID)
	if err != nil {
		return nil, nil, NewBusinessError("ORDER_LOOKUP_FAILED", "Failed to load linked order", err)
	}
	if order != nil && order.Status == models.OrderStatusCompleted {
		return nil, nil, NewBusinessError("CAMPAIGN_ALREADY_PAID", "Campaign already has a settled order", ErrCampaignAlreadyPaid)
	}
	return record, order, nil
}

// ensureEditable refuses section changes while the linked order is at the gateway
func (s *CampaignFlowImpl) ensureEditable(ctx context.Context, id uint) error {
	_, order, err := s.loadCurrent(ctx, id)
	if err != nil {
		return err
	}
	if order != nil && order.Status == models.OrderStatusProcessing {
		return NewBusinessError("PAYMENT_IN_FLIGHT", "Campaign cannot change while its payment is in progress", ErrPaymentInFlight)
	}
	return nil
}

func (s *CampaignFlowImpl) uploadPending(ctx context.Context, identity Identity, draft *CampaignDraft, message models.CampaignMessage) (models.CampaignMessage, error) {
	attachment := draft.Attachment()
	if message.ContentSource != models.ContentSourceUploadedHTML || attachment == nil {
		return message, nil
	}
	fileID, err := s.files.Upload(ctx, identity.CustomerID, *attachment)
	if err != nil {
		return message, NewBusinessError("HTML_UPLOAD_FAILED", "Failed to upload html document", err)
	}
	message.HTMLFileID = &fileID
	return message, nil
}

func (s *CampaignFlowImpl) fetchOwned(ctx context.Context, identity Identity, id uint) (*models.Campaign, error) {
	record, err := s.records.Fetch(ctx, id)
	if err != nil {
		return nil, NewBusinessError("CAMPAIGN_LOOKUP_FAILED", "Failed to load campaign", err)
	}
	if record == nil {
		return nil, NewBusinessError("CAMPAIGN_NOT_FOUND", "Campaign not found", ErrCampaignNotFound)
	}
	if record.CustomerID != identity.CustomerID {
		return nil, NewBusinessError("CAMPAIGN_ACCESS_DENIED", "Campaign belongs to another customer", ErrCampaignAccessDenied)
	}
	return record, nil
}

func (s *CampaignFlowImpl) ensureOwner(identity Identity, session *CampaignSession) error {
	if session.Record == nil {
		return NewBusinessError("CAMPAIGN_NOT_FOUND", "Campaign record is not loaded", ErrCampaignNotFound)
	}
	if session.Record.CustomerID != identity.CustomerID {
		return NewBusinessError("CAMPAIGN_ACCESS_DENIED", "Campaign belongs to another customer", ErrCampaignAccessDenied)
	}
	return nil
}

// reload replaces the session state with the stored record
func (s *CampaignFlowImpl) reload(ctx context.Context, session *CampaignSession, id uint) error {
	record, err := s.records.Fetch(ctx, id)
	if err != nil {
		return NewBusinessError("CAMPAIGN_RELOAD_FAILED", "Failed to reload campaign", err)
	}
	if record == nil {
		return NewBusinessError("CAMPAIGN_NOT_FOUND", "Campaign not found", ErrCampaignNotFound)
	}
	s.adopt(session, record)
	return nil
}

func (s *CampaignFlowImpl) adopt(session *CampaignSession, record *models.Campaign) {
	session.Ref = PersistedRef{ID: record.ID}
	session.Status = record.Status
	session.Record = record
	session.Draft = DraftFromRecord(record)
}

func validateMessage(draft *CampaignDraft) (models.CampaignMessage, error) {
	msg := draft.Message()
	if msg == nil {
		return models.CampaignMessage{}, ErrMessageRequired
	}
	out := *cloneMessage(*msg)
	out.Subject = strings.TrimSpace(out.Subject)
	if out.Subject == "" {
		return out, ErrSubjectRequired
	}
	if out.ContentSource == "" {
		out.ContentSource = models.ContentSourceInlineEditor
	}

	switch out.ContentSource {
	case models.ContentSourceInlineEditor:
		if strings.TrimSpace(out.Body) == "" {
			return out, ErrBodyRequired
		}
		out.HTMLFileID = nil
	case models.ContentSourceUploadedHTML:
		hasFile := out.HTMLFileID != nil && *out.HTMLFileID != ""
		if draft.Attachment() == nil && !hasFile {
			return out, ErrHTMLFileRequired
		}
		out.Body = ""
	default:
		return out, ErrContentSourceInvalid
	}

	ab, err := NormalizeABTest(out.ABTest)
	if err != nil {
		return out, err
	}
	out.ABTest = ab
	return out, nil
}

func validateSchedule(schedule *models.CampaignSchedule) (models.CampaignSchedule, error) {
	if schedule == nil {
		return models.CampaignSchedule{}, ErrScheduleRequired
	}
	out := *schedule
	out.SendDate = strings.TrimSpace(out.SendDate)
	out.SendTime = strings.TrimSpace(out.SendTime)
	if out.SendDate == "" || out.SendTime == "" {
		return out, ErrScheduleRequired
	}
	if _, err := time.Parse(models.ScheduleDateLayout, out.SendDate); err != nil {
		return out, ErrScheduleInvalid
	}
	if _, err := time.Parse(models.ScheduleTimeLayout, out.SendTime); err != nil {
		return out, ErrScheduleInvalid
	}
	return out, nil
}
