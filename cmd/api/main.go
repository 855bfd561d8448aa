package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"

	"github.com/wolfman30/echannel-booking/cmd/mainconfig"
	"github.com/wolfman30/echannel-booking/internal/api/router"
	"github.com/wolfman30/echannel-booking/internal/app/bootstrap"
	"github.com/wolfman30/echannel-booking/internal/appointments"
	"github.com/wolfman30/echannel-booking/internal/audit"
	"github.com/wolfman30/echannel-booking/internal/catalog"
	appconfig "github.com/wolfman30/echannel-booking/internal/config"
	"github.com/wolfman30/echannel-booking/internal/database"
	"github.com/wolfman30/echannel-booking/internal/events"
	"github.com/wolfman30/echannel-booking/internal/http/handlers"
	httpmiddleware "github.com/wolfman30/echannel-booking/internal/http/middleware"
	"github.com/wolfman30/echannel-booking/internal/ledger"
	"github.com/wolfman30/echannel-booking/internal/notify"
	"github.com/wolfman30/echannel-booking/internal/payments"
	"github.com/wolfman30/echannel-booking/pkg/logging"
)

func main() {
	_ = godotenv.Load()

	// Load configuration
	cfg := appconfig.Load()

	// Initialize logger
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting echannel booking API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool := connectPostgresPool(ctx, cfg, logger)
	if pool == nil {
		os.Exit(1)
	}
	defer pool.Close()
	sqlDB := stdlib.OpenDBFromPool(pool)
	defer func() { _ = sqlDB.Close() }()

	awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
	if err != nil {
		logger.Error("failed to load AWS config", "error", err)
		os.Exit(1)
	}

	metricsHandler, bookingMetrics, registry := setupMetrics()
	redisClient := bootstrap.BuildRedisClient(ctx, cfg, logger, true)

	// Repositories and collaborators
	doctors := catalog.NewCachedRepository(catalog.NewPostgresRepository(pool), redisClient, cfg.DoctorCacheTTL, logger)
	trail := audit.NewTrail(sqlDB)
	velocity := appointments.NewVelocityGuard(redisClient, appointments.VelocityConfig{
		MaxBookingsPerPhone: cfg.BookingVelocityMax,
		Window:              cfg.BookingVelocityWindow,
		Enabled:             cfg.BookingVelocityMax > 0,
	}, logger)

	queue, err := bootstrap.BuildNotificationQueue(cfg, awsCfg, logger)
	if err != nil {
		logger.Error("failed to build notification queue", "error", err)
		os.Exit(1)
	}
	outbox := events.NewOutboxStore(pool)
	deliverer := events.NewDeliverer(outbox, notify.NewQueuePublisher(queue), logger)

	service := appointments.NewService(
		database.NewDB(pool),
		appointments.NewPostgresStore(),
		ledger.New(logger, bookingMetrics),
		payments.NewRepository(),
		doctors,
		logger,
		appointments.WithNotifier(notify.NewOutboxNotifier(outbox)),
		appointments.WithAudit(trail),
		appointments.WithBookingGuard(velocity),
		appointments.WithMetrics(bookingMetrics),
		appointments.WithTxTimeout(cfg.BookingTimeout),
		appointments.WithSideEffectTimeout(cfg.NotifyTimeout),
	)

	go deliverer.Start(ctx)
	inlineWorker := setupInlineWorker(ctx, cfg, awsCfg, queue, pool, bookingMetrics, logger)

	limiter := httpmiddleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	defer limiter.Stop()

	// Setup router
	r := router.New(&router.Config{
		Logger:             logger,
		Appointments:       handlers.NewAppointmentHandler(service, logger),
		Catalog:            handlers.NewCatalogHandler(doctors, logger),
		Admin:              handlers.NewAdminHandler(registry, trail, velocity, logger).WithDoctorCache(doctors),
		Health:             database.HealthHandler(pool),
		MetricsHandler:     metricsHandler,
		AgentJWTSecret:     cfg.AgentJWTSecret,
		CORSAllowedOrigins: cfg.CORSOrigins,
		RateLimiter:        limiter,
	})

	// Create HTTP server
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}
	waitForInlineWorker(inlineWorker, logger)
	if redisClient != nil {
		_ = redisClient.Close()
	}

	logger.Info("server stopped")
}
