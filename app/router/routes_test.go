package router

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/amirphl/Orochi-Mail/app/handlers"
	"github.com/amirphl/Orochi-Mail/app/middleware"
	"github.com/amirphl/Orochi-Mail/app/services"
	businessflow "github.com/amirphl/Orochi-Mail/business_flow"
	"github.com/amirphl/Orochi-Mail/config"
	"github.com/amirphl/Orochi-Mail/models"
	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type echoCampaignHandler struct{}

func (echoCampaignHandler) CreateCampaign(c fiber.Ctx) error { return c.SendString("create") }
func (echoCampaignHandler) GetCampaign(c fiber.Ctx) error {
	customerID, _ := middleware.GetCustomerIDFromContext(c)
	return c.JSON(fiber.Map{"id": c.Params("id"), "customer_id": customerID})
}
func (echoCampaignHandler) UpdateAudience(c fiber.Ctx) error { return c.SendString("audience") }
func (echoCampaignHandler) UpdateMessage(c fiber.Ctx) error  { return c.SendString("message") }
func (echoCampaignHandler) UpdateSchedule(c fiber.Ctx) error { return c.SendString("schedule") }
func (echoCampaignHandler) EnterPayment(c fiber.Ctx) error   { return c.SendString("payment") }
func (echoCampaignHandler) PreviewHTML(c fiber.Ctx) error    { return c.SendString("html") }

type settledPayments struct{}

func (settledPayments) StartPayment(context.Context, businessflow.Identity, string) (*businessflow.PaymentStart, error) {
	return &businessflow.PaymentStart{}, nil
}

func (settledPayments) Reconcile(context.Context, businessflow.PaymentCallback) (*businessflow.ReconcileResult, error) {
	return &businessflow.ReconcileResult{OrderOutcome: models.OrderStatusCompleted, Message: "Payment settled"}, nil
}

func testConfig() *config.ProductionConfig {
	cfg := &config.ProductionConfig{}
	cfg.Server.BodyLimit = 1 << 20
	cfg.Server.ReadTimeout = 5 * time.Second
	cfg.Server.WriteTimeout = 5 * time.Second
	cfg.Server.IdleTimeout = 5 * time.Second
	cfg.Security.GlobalRateLimit = 100
	cfg.Security.CallbackRateLimit = 2
	cfg.Security.RateLimitWindow = time.Minute
	cfg.Security.AllowedOrigins = []string{"http://localhost:3000"}
	cfg.Security.AllowedMethods = []string{"GET", "POST", "PUT"}
	cfg.Security.AllowedHeaders = []string{"Authorization", "Content-Type"}
	cfg.Deployment.Environment = "test"
	return cfg
}

func newTestRouter(t *testing.T) (*fiber.App, services.TokenService) {
	t.Helper()
	tokens, err := services.NewTokenService(time.Hour, "orochi-mail", "orochi-mail-api", false, "", "", strings.Repeat("s", 32))
	require.NoError(t, err)

	r := NewFiberRouter(testConfig(), Handlers{
		Campaign: echoCampaignHandler{},
		Audience: handlers.NewAudienceHandler(nil, nil),
		Payment:  handlers.NewPaymentHandler(settledPayments{}, nil),
		Report:   handlers.NewReportHandler(nil, nil),
	}, middleware.NewAuthMiddleware(tokens), nil)
	r.SetupRoutes()
	return r.GetApp(), tokens
}

func decode(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	out := map[string]any{}
	require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	return out
}

func errorCode(body map[string]any) string {
	e, _ := body["error"].(map[string]any)
	code, _ := e["code"].(string)
	return code
}

func TestHealthCheck(t *testing.T) {
	app, _ := newTestRouter(t)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get(fiber.HeaderXRequestID))
	assert.Equal(t, true, decode(t, resp)["success"])
}

func TestNotFound(t *testing.T) {
	app, _ := newTestRouter(t)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/nope", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "NOT_FOUND", errorCode(decode(t, resp)))
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	app, _ := newTestRouter(t)

	routes := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/api/v1/audience/categories"},
		{http.MethodGet, "/api/v1/pricing/tiers"},
		{http.MethodPost, "/api/v1/campaigns"},
		{http.MethodGet, "/api/v1/campaigns/12"},
		{http.MethodPut, "/api/v1/campaigns/12/message"},
		{http.MethodPost, "/api/v1/campaigns/12/payment"},
		{http.MethodPost, "/api/v1/payments/ord-1/start"},
		{http.MethodGet, "/api/v1/orders/export"},
	}

	for _, rt := range routes {
		t.Run(rt.method+" "+rt.path, func(t *testing.T) {
			resp, err := app.Test(httptest.NewRequest(rt.method, rt.path, nil))
			require.NoError(t, err)
			assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
			assert.Equal(t, "MISSING_AUTHORIZATION_HEADER", errorCode(decode(t, resp)))
		})
	}
}

func TestAuthenticatedRequestCarriesIdentity(t *testing.T) {
	app, tokens := newTestRouter(t)
	token, err := tokens.GenerateAccessToken(42, "owner@example.com")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/campaigns/12", nil)
	req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decode(t, resp)
	assert.Equal(t, "12", body["id"])
	assert.Equal(t, float64(42), body["customer_id"])

	req = httptest.NewRequest(http.MethodGet, "/api/v1/campaigns/12", nil)
	req.Header.Set(fiber.HeaderAuthorization, "Bearer not-a-token")
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "TOKEN_INVALID", errorCode(decode(t, resp)))
}

func TestPaymentCallbackIsPublicAndRateLimited(t *testing.T) {
	app, _ := newTestRouter(t)
	target := "/api/v1/payments/callback?trackingId=T-1&orderId=ord-1&success=true"

	for i := 0; i < 2; i++ {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, target, nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		_ = resp.Body.Close()
	}

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, target, nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, "RATE_LIMIT_EXCEEDED", errorCode(decode(t, resp)))
}
