package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/amirphl/Orochi-Mail/app/adapters"
	"github.com/amirphl/Orochi-Mail/app/handlers"
	"github.com/amirphl/Orochi-Mail/app/middleware"
	"github.com/amirphl/Orochi-Mail/app/router"
	"github.com/amirphl/Orochi-Mail/app/services"
	businessflow "github.com/amirphl/Orochi-Mail/business_flow"
	"github.com/amirphl/Orochi-Mail/config"
	"github.com/amirphl/Orochi-Mail/repository"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE:  runServe,
}

// Application represents the main application structure
type Application struct {
	router        *router.FiberRouter
	metricsServer *http.Server
	stopFuncs     []func()
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, logger, err := bootstrap()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting Orochi Mail", zap.String("version", version))

	app, err := initializeApplication(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return app.router.Start(fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port))
	})

	if app.metricsServer != nil {
		g.Go(func() error {
			logger.Info("Metrics server starting", zap.String("address", app.metricsServer.Addr))
			if err := app.metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down gracefully...")

		for _, fn := range app.stopFuncs {
			fn()
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := app.router.GetApp().ShutdownWithContext(shutdownCtx); err != nil {
			logger.Error("Error during shutdown", zap.Error(err))
		}
		if app.metricsServer != nil {
			if err := app.metricsServer.Shutdown(shutdownCtx); err != nil {
				logger.Error("Error during metrics server shutdown", zap.Error(err))
			}
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("Server stopped")
	return nil
}

// initializeDatabase initializes the database connection with connection pooling
func initializeDatabase(cfg config.DatabaseConfig, logger *zap.Logger) (*gorm.DB, error) {
	gormCfg := &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	}
	if cfg.SlowQueryLog {
		gormCfg.Logger = gormlogger.New(zap.NewStdLog(logger.Named("gorm")), gormlogger.Config{
			SlowThreshold:             cfg.SlowQueryTime,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
		})
	}

	db, err := gorm.Open(postgres.Open(cfg.DSN()), gormCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info("Database connection established",
		zap.Int("max_open_conns", cfg.MaxOpenConns),
		zap.Int("max_idle_conns", cfg.MaxIdleConns),
	)
	return db, nil
}

// initializeCache connects to redis when the catalog cache is enabled
func initializeCache(cfg config.CacheConfig, logger *zap.Logger) (*redis.Client, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	opt.DB = cfg.RedisDB

	rc := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rc.Ping(ctx).Err(); err != nil {
		_ = rc.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.Info("Redis connection established", zap.String("addr", opt.Addr), zap.Int("db", cfg.RedisDB))
	return rc, nil
}

// startCacheHealthMonitor pings redis periodically until the returned function is called
func startCacheHealthMonitor(client *redis.Client, interval time.Duration, logger *zap.Logger) func() {
	monitorCtx, cancel := context.WithCancel(context.Background())
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-monitorCtx.Done():
				return
			case <-ticker.C:
				ctx, c := context.WithTimeout(monitorCtx, 3*time.Second)
				if err := client.Ping(ctx).Err(); err != nil {
					logger.Warn("Redis healthcheck failed", zap.Error(err))
				}
				c()
			}
		}
	}()
	return cancel
}

func newTokenService(cfg *config.ProductionConfig) (services.TokenService, error) {
	tokens, err := services.NewTokenService(
		cfg.JWT.AccessTokenTTL,
		cfg.JWT.Issuer,
		cfg.JWT.Audience,
		cfg.JWT.UseRSAKeys,
		cfg.JWT.PrivateKey,
		cfg.JWT.PublicKey,
		cfg.JWT.SecretKey,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize token service: %w", err)
	}
	return tokens, nil
}

func initializeApplication(cfg *config.ProductionConfig, logger *zap.Logger) (*Application, error) {
	db, err := initializeDatabase(cfg.Database, logger)
	if err != nil {
		return nil, err
	}

	rc, err := initializeCache(cfg.Cache, logger)
	if err != nil {
		return nil, err
	}

	app := &Application{}
	if rc != nil {
		app.stopFuncs = append(app.stopFuncs,
			startCacheHealthMonitor(rc, 30*time.Second, logger),
			func() { _ = rc.Close() },
		)
	}
	if sqlDB, err := db.DB(); err == nil {
		app.stopFuncs = append(app.stopFuncs, func() { _ = sqlDB.Close() })
	}

	// Repositories
	campaignRepo := repository.NewCampaignRepository(db)
	categoryRepo := repository.NewAudienceCategoryRepository(db)
	tierRepo := repository.NewPricingTierRepository(db)
	orderRepo := repository.NewOrderRepository(db)
	transactionRepo := repository.NewTransactionRepository(db)
	htmlAssetRepo := repository.NewHTMLAssetRepository(db)
	auditRepo := repository.NewAuditLogRepository(db)

	// Stores
	uow := adapters.NewGormUnitOfWork(db)
	records := adapters.NewCampaignRecordStore(db, campaignRepo, categoryRepo, auditRepo)
	orders := adapters.NewGormOrderStore(db, orderRepo, auditRepo)
	transactions := adapters.NewGormTransactionStore(transactionRepo)

	// Services
	catalog := services.NewCatalogService(categoryRepo, tierRepo, rc, cfg.Cache.RedisPrefix, cfg.Cache.CatalogTTL, logger.Named("catalog"))
	files := services.NewHTMLFileStore(cfg.Storage.HTMLUploadDir, cfg.Storage.MaxHTMLBytes, htmlAssetRepo)
	gateway := services.NewPaymentGatewayClient(cfg.Payment.BaseURL, cfg.Payment.APIKey, cfg.Payment.Terminal, cfg.Payment.CallbackURL, cfg.Payment.Timeout)

	var notifier businessflow.Notifier
	if cfg.Email.Host != "" {
		notifier = services.NewEmailNotifier(cfg.Email, logger.Named("email"))
	} else {
		logger.Warn("EMAIL_HOST is not set, payment receipts are disabled")
	}

	tokens, err := newTokenService(cfg)
	if err != nil {
		return nil, err
	}

	// Business flows, sharing one guard keyed by campaign
	guard := businessflow.NewTransitionGuard()
	campaignFlow := businessflow.NewCampaignFlow(records, files, orders, catalog, catalog, uow, guard, logger.Named("campaign"))
	audienceFlow := businessflow.NewAudienceFlow(catalog, catalog)
	paymentFlow := businessflow.NewPaymentFlow(
		orders,
		transactions,
		records,
		gateway,
		uow,
		guard,
		notifier,
		businessflow.PaymentPolicy{FailOnInconclusive: cfg.Payment.FailOnInconclusive},
		logger.Named("payment"),
	)
	reportFlow := businessflow.NewOrderReportFlow(orders, records, logger.Named("report"))

	// Handlers and routes
	app.router = router.NewFiberRouter(cfg, router.Handlers{
		Campaign: handlers.NewCampaignHandler(campaignFlow, audienceFlow, files, logger.Named("http")),
		Audience: handlers.NewAudienceHandler(audienceFlow, logger.Named("http")),
		Payment:  handlers.NewPaymentHandler(paymentFlow, logger.Named("http")),
		Report:   handlers.NewReportHandler(reportFlow, logger.Named("http")),
	}, middleware.NewAuthMiddleware(tokens), logger.Named("http"))
	app.router.SetupRoutes()

	if cfg.Metrics.Enabled {
		mux := http.NewServeMux()
		mux.Handle(cfg.Metrics.Path, promhttp.Handler())
		app.metricsServer = &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Metrics.Port),
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
	}

	return app, nil
}
