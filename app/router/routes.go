// Package router provides HTTP routing, middleware configuration, and server setup for the web application
package router

import (
	"errors"
	"time"

	"github.com/amirphl/Orochi-Mail/app/dto"
	"github.com/amirphl/Orochi-Mail/app/handlers"
	"github.com/amirphl/Orochi-Mail/app/middleware"
	"github.com/amirphl/Orochi-Mail/config"
	"github.com/amirphl/Orochi-Mail/utils"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/compress"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/helmet"
	"github.com/gofiber/fiber/v3/middleware/limiter"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/gofiber/fiber/v3/middleware/requestid"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const healthPath = "/api/v1/health"

// Router interface for HTTP routing
type Router interface {
	SetupRoutes()
	Start(address string) error
	GetApp() *fiber.App
}

// Handlers groups the HTTP handlers mounted by the router
type Handlers struct {
	Campaign handlers.CampaignHandlerInterface
	Audience *handlers.AudienceHandler
	Payment  *handlers.PaymentHandler
	Report   *handlers.ReportHandler
}

// FiberRouter implements Router using Fiber v3
type FiberRouter struct {
	app      *fiber.App
	cfg      *config.ProductionConfig
	handlers Handlers
	auth     *middleware.AuthMiddleware
	logger   *zap.Logger
}

// NewFiberRouter creates a new Fiber router
func NewFiberRouter(cfg *config.ProductionConfig, h Handlers, auth *middleware.AuthMiddleware, logger *zap.Logger) *FiberRouter {
	if logger == nil {
		logger = zap.NewNop()
	}

	r := &FiberRouter{
		cfg:      cfg,
		handlers: h,
		auth:     auth,
		logger:   logger,
	}

	r.app = fiber.New(fiber.Config{
		AppName:      "Orochi Mail API",
		ServerHeader: "Orochi-Mail",
		ErrorHandler: r.errorHandler,
		BodyLimit:    cfg.Server.BodyLimit,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
		ProxyHeader:  cfg.Server.ProxyHeader,
		TrustProxy:   len(cfg.Server.TrustedProxies) > 0,
		TrustProxyConfig: fiber.TrustProxyConfig{
			Proxies: cfg.Server.TrustedProxies,
		},
	})

	return r
}

// SetupRoutes configures all application routes
func (r *FiberRouter) SetupRoutes() {
	r.setupMiddleware()

	api := r.app.Group("/api/v1")
	api.Get("/health", r.healthCheck)

	api.Use(r.rateLimiter(r.cfg.Security.GlobalRateLimit, func(c fiber.Ctx) bool {
		return c.Path() == healthPath
	}))

	// Gateway callbacks are unauthenticated and carry their own, tighter limit
	callbackLimit := r.rateLimiter(r.cfg.Security.CallbackRateLimit, nil)
	api.Get("/payments/callback", callbackLimit, r.handlers.Payment.PaymentCallback)
	api.Post("/payments/callback", callbackLimit, r.handlers.Payment.PaymentCallback)

	authenticated := r.auth.Authenticate()

	audience := api.Group("/audience", authenticated)
	audience.Get("/categories", r.handlers.Audience.ListCategories)
	audience.Post("/summary", r.handlers.Audience.Summarize)

	api.Get("/pricing/tiers", authenticated, r.handlers.Audience.ListTiers)

	campaigns := api.Group("/campaigns", authenticated)
	campaigns.Post("/", r.handlers.Campaign.CreateCampaign)
	campaigns.Get("/:id", r.handlers.Campaign.GetCampaign)
	campaigns.Put("/:id/audience", r.handlers.Campaign.UpdateAudience)
	campaigns.Put("/:id/message", r.handlers.Campaign.UpdateMessage)
	campaigns.Put("/:id/schedule", r.handlers.Campaign.UpdateSchedule)
	campaigns.Get("/:id/html", r.handlers.Campaign.PreviewHTML)
	campaigns.Post("/:id/payment", r.handlers.Campaign.EnterPayment)

	api.Post("/payments/:orderId/start", authenticated, r.handlers.Payment.StartPayment)
	api.Get("/orders/export", authenticated, r.handlers.Report.ExportOrders)

	r.app.Use(r.notFoundHandler)

	r.logger.Info("Routes configured successfully")
}

func (r *FiberRouter) setupMiddleware() {
	// Request ID middleware - must be first
	r.app.Use(requestid.New(requestid.Config{
		Header: fiber.HeaderXRequestID,
		Generator: func() string {
			return uuid.NewString()
		},
	}))

	r.app.Use(recover.New(recover.Config{
		EnableStackTrace: true,
		StackTraceHandler: func(c fiber.Ctx, e any) {
			r.logger.Error("Panic recovered",
				zap.Any("panic", e),
				zap.String("request_id", requestid.FromContext(c)),
				zap.String("method", c.Method()),
				zap.String("path", c.Path()),
				zap.String("ip", c.IP()),
				zap.Stack("stack"),
			)
		},
	}))

	sec := r.cfg.Security
	hstsMaxAge := sec.HSTSMaxAge
	if r.cfg.Deployment.IsDevelopment() {
		hstsMaxAge = 0
	}
	r.app.Use(helmet.New(helmet.Config{
		XSSProtection:             sec.XSSProtection,
		ContentTypeNosniff:        sec.XContentTypeOptions,
		XFrameOptions:             sec.XFrameOptions,
		HSTSMaxAge:                hstsMaxAge,
		HSTSExcludeSubdomains:     !sec.HSTSIncludeSubDoms,
		HSTSPreloadEnabled:        sec.HSTSPreload,
		ContentSecurityPolicy:     sec.CSPPolicy,
		ReferrerPolicy:            sec.ReferrerPolicy,
		CrossOriginEmbedderPolicy: "require-corp",
		CrossOriginOpenerPolicy:   "same-origin",
		CrossOriginResourcePolicy: "cross-origin",
		OriginAgentCluster:        "?1",
		XDNSPrefetchControl:       "off",
		XDownloadOptions:          "noopen",
		XPermittedCrossDomain:     "none",
	}))

	r.app.Use(cors.New(cors.Config{
		AllowOrigins:     sec.AllowedOrigins,
		AllowMethods:     sec.AllowedMethods,
		AllowHeaders:     sec.AllowedHeaders,
		ExposeHeaders:    []string{fiber.HeaderXRequestID, fiber.HeaderContentDisposition},
		AllowCredentials: sec.AllowCredentials,
		MaxAge:           sec.CORSMaxAge,
	}))

	if r.cfg.Server.EnableCompression {
		r.app.Use(compress.New(compress.Config{
			Level: compress.Level(r.cfg.Server.CompressionLevel),
		}))
	}

	if r.cfg.Logging.EnableAccessLog {
		r.app.Use(r.accessLog)
	}

	if r.cfg.Metrics.Enabled {
		r.app.Use(middleware.Metrics())
	}
}

func (r *FiberRouter) rateLimiter(limit int, next func(c fiber.Ctx) bool) fiber.Handler {
	return limiter.New(limiter.Config{
		Max:        limit,
		Expiration: r.cfg.Security.RateLimitWindow,
		KeyGenerator: func(c fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c fiber.Ctx) error {
			return handlers.ErrorResponse(c, fiber.StatusTooManyRequests, "Too many requests. Please try again later.", "RATE_LIMIT_EXCEEDED", nil)
		},
		Next: next,
	})
}

// accessLog writes one structured line per request
func (r *FiberRouter) accessLog(c fiber.Ctx) error {
	if c.Path() == healthPath {
		return c.Next()
	}

	start := time.Now()
	err := c.Next()

	status := c.Response().StatusCode()
	var fe *fiber.Error
	if errors.As(err, &fe) {
		status = fe.Code
	}

	r.logger.Info("http request",
		zap.String("request_id", requestid.FromContext(c)),
		zap.String("method", c.Method()),
		zap.String("path", c.Path()),
		zap.Int("status", status),
		zap.Duration("latency", time.Since(start)),
		zap.String("ip", c.IP()),
		zap.String("user_agent", c.Get(fiber.HeaderUserAgent)),
		zap.Int("bytes_out", len(c.Response().Body())),
	)
	return err
}

// Start starts the HTTP server
func (r *FiberRouter) Start(address string) error {
	r.logger.Info("Starting server", zap.String("address", address))
	return r.app.Listen(address, fiber.ListenConfig{DisableStartupMessage: true})
}

// GetApp returns the Fiber app instance
func (r *FiberRouter) GetApp() *fiber.App {
	return r.app
}

func (r *FiberRouter) healthCheck(c fiber.Ctx) error {
	return c.JSON(dto.APIResponse{
		Success: true,
		Message: "Service is healthy",
		Data: fiber.Map{
			"status":    "ok",
			"timestamp": utils.UTCNow().Unix(),
			"service":   "orochi-mail-api",
		},
	})
}

func (r *FiberRouter) notFoundHandler(c fiber.Ctx) error {
	return c.Status(fiber.StatusNotFound).JSON(dto.APIResponse{
		Success: false,
		Message: "The requested resource was not found",
		Error: dto.ErrorDetail{
			Code: "NOT_FOUND",
			Details: fiber.Map{
				"path":       c.Path(),
				"method":     c.Method(),
				"request_id": requestid.FromContext(c),
			},
		},
	})
}

// errorHandler renders errors that escaped the handlers
func (r *FiberRouter) errorHandler(c fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "An internal server error occurred"
	errorCode := "INTERNAL_ERROR"

	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
		if code < fiber.StatusInternalServerError {
			message = fe.Message
			errorCode = "REQUEST_ERROR"
		}
	}

	if code >= fiber.StatusInternalServerError {
		r.logger.Error("Unhandled request error",
			zap.Int("status", code),
			zap.String("request_id", requestid.FromContext(c)),
			zap.String("path", c.Path()),
			zap.Error(err),
		)
	}

	return c.Status(code).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code: errorCode,
			Details: fiber.Map{
				"timestamp":  utils.UTCNow().Unix(),
				"request_id": requestid.FromContext(c),
			},
		},
	})
}
