package businessflow

import (
	"context"

	"github.com/amirphl/Orochi-Mail/models"
)

// CategoryDirectory lists the audience categories available for targeting
type CategoryDirectory interface {
	List(ctx context.Context) ([]models.AudienceCategory, error)
}

// PricingSource supplies the current pricing table
type PricingSource interface {
	FetchTiers(ctx context.Context) (models.PricingTable, error)
}

// RecordStore owns durable campaign records
type RecordStore interface {
	Create(ctx context.Context, campaign models.Campaign) (*models.Campaign, error)
	Update(ctx context.Context, id uint, update models.CampaignUpdate) error
	Fetch(ctx context.Context, id uint) (*models.Campaign, error)
	FetchByOrderID(ctx context.Context, orderID string) (*models.Campaign, error)
}

// FileStore stores uploaded HTML message bodies
type FileStore interface {
	Upload(ctx context.Context, customerID uint, file FileAttachment) (string, error)
}

// OrderStore owns orders created at the payment step
type OrderStore interface {
	Create(ctx context.Context, order models.Order) (*models.Order, error)
	Update(ctx context.Context, id string, update models.OrderUpdate) error
	Fetch(ctx context.Context, id string) (*models.Order, error)
	ListByCustomer(ctx context.Context, customerID uint) ([]*models.Order, error)
}

// TransactionStore records settlement attempts keyed by gateway tracking id
type TransactionStore interface {
	ByTrackingID(ctx context.Context, trackingID string) (*models.Transaction, error)
	Create(ctx context.Context, tx *models.Transaction) error
}

// VerificationResult is the gateway's answer for a tracking id
type VerificationResult struct {
	ResultCode      int
	Message         string
	ReferenceNumber string
}

// PaymentRedirect tells the caller where to send the customer to pay
type PaymentRedirect struct {
	Token       string
	RedirectURL string
}

// PaymentGateway settles orders with the external payment provider
type PaymentGateway interface {
	Verify(ctx context.Context, trackingID string) (*VerificationResult, error)
	RequestPayment(ctx context.Context, order models.Order) (*PaymentRedirect, error)
}

// UnitOfWork runs fn so that all store writes inside it commit or roll back together
type UnitOfWork interface {
	Do(ctx context.Context, fn func(ctx context.Context) error) error
}

// Notifier delivers customer-facing notifications
type Notifier interface {
	PaymentReceipt(ctx context.Context, email string, order models.Order) error
}

// FileAttachment is an HTML document waiting to be uploaded
type FileAttachment struct {
	Filename string
	Content  []byte
}

type noopUnitOfWork struct{}

func (noopUnitOfWork) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type noopNotifier struct{}

func (noopNotifier) PaymentReceipt(context.Context, string, models.Order) error { return nil }
