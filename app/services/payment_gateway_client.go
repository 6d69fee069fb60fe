package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	businessflow "github.com/amirphl/Orochi-Mail/business_flow"
	"github.com/amirphl/Orochi-Mail/models"
)

// PaymentGatewayClient talks to the card payment gateway over JSON HTTP
type PaymentGatewayClient struct {
	BaseURL     string
	APIKey      string
	Terminal    string
	CallbackURL string
	HTTPClient  *http.Client
}

func NewPaymentGatewayClient(baseURL, apiKey, terminal, callbackURL string, timeout time.Duration) *PaymentGatewayClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &PaymentGatewayClient{
		BaseURL:     strings.TrimRight(baseURL, "/"),
		APIKey:      apiKey,
		Terminal:    terminal,
		CallbackURL: callbackURL,
		HTTPClient:  &http.Client{Timeout: timeout},
	}
}

type verifyPaymentReq struct {
	TrackingID string `json:"trackingId"`
	APIKey     string `json:"apiKey"`
}

type verifyPaymentResp struct {
	ResultCode      int    `json:"resultCode"`
	Message         string `json:"message"`
	ReferenceNumber string `json:"referenceNumber"`
}

// Verify asks the gateway whether trackingID settled. Any transport or decode
// failure is returned as an error and means the outcome is unknown.
func (c *PaymentGatewayClient) Verify(ctx context.Context, trackingID string) (*businessflow.VerificationResult, error) {
	var out verifyPaymentResp
	if err := c.post(ctx, "/v1/verify-payment", verifyPaymentReq{TrackingID: trackingID, APIKey: c.APIKey}, &out); err != nil {
		return nil, err
	}
	return &businessflow.VerificationResult{
		ResultCode:      out.ResultCode,
		Message:         out.Message,
		ReferenceNumber: out.ReferenceNumber,
	}, nil
}

type requestPaymentReq struct {
	APIKey      string `json:"apiKey"`
	Terminal    string `json:"terminal"`
	Amount      uint64 `json:"amount"`
	OrderID     string `json:"orderId"`
	CallbackURL string `json:"callbackUrl"`
}

type requestPaymentResp struct {
	Status           string `json:"status"`
	Token            string `json:"token"`
	ErrorCode        string `json:"errorCode"`
	ErrorDescription string `json:"errorDescription"`
}

// RequestPayment obtains a payment token for order
func (c *PaymentGatewayClient) RequestPayment(ctx context.Context, order models.Order) (*businessflow.PaymentRedirect, error) {
	payload := requestPaymentReq{
		APIKey:      c.APIKey,
		Terminal:    c.Terminal,
		Amount:      order.TotalAmount,
		OrderID:     order.ID,
		CallbackURL: c.CallbackURL,
	}

	var out requestPaymentResp
	if err := c.post(ctx, "/v1/request-payment", payload, &out); err != nil {
		return nil, err
	}
	if out.Status != "1" {
		msg := "payment request rejected"
		if out.ErrorDescription != "" {
			msg = fmt.Sprintf("%s: %s", msg, out.ErrorDescription)
		}
		if out.ErrorCode != "" {
			msg = fmt.Sprintf("%s (code: %s)", msg, out.ErrorCode)
		}
		return nil, fmt.Errorf("gateway error: %s", msg)
	}
	if out.Token == "" {
		return nil, businessflow.ErrGatewayTokenEmpty
	}

	return &businessflow.PaymentRedirect{
		Token:       out.Token,
		RedirectURL: c.BaseURL + "/v1/pay/" + out.Token,
	}, nil
}

func (c *PaymentGatewayClient) post(ctx context.Context, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal gateway payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("gateway request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("gateway returned non-OK status: %s", strconv.Itoa(resp.StatusCode))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode gateway response: %w", err)
	}
	return nil
}

var _ businessflow.PaymentGateway = (*PaymentGatewayClient)(nil)
