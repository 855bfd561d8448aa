package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wolfman30/echannel-booking/cmd/mainconfig"
	"github.com/wolfman30/echannel-booking/internal/app/bootstrap"
	"github.com/wolfman30/echannel-booking/internal/config"
	"github.com/wolfman30/echannel-booking/internal/database"
	"github.com/wolfman30/echannel-booking/internal/events"
	"github.com/wolfman30/echannel-booking/internal/notify"
	"github.com/wolfman30/echannel-booking/internal/observability/metrics"
	"github.com/wolfman30/echannel-booking/pkg/logging"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	logger := logging.New(cfg.LogLevel)

	if cfg.DatabaseURL == "" || cfg.NotificationURL == "" {
		logger.Error("notification worker requires DATABASE_URL and NOTIFICATION_QUEUE_URL")
		os.Exit(1)
	}
	if cfg.UseMemoryQueue {
		logger.Error("USE_MEMORY_QUEUE is set; the API runs the worker in-process")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	pool, err := database.NewPool(ctx, cfg.DatabaseURL, int32(cfg.DBMaxConns), int32(cfg.DBMinConns))
	if err != nil {
		logger.Error("failed to connect postgres", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
	if err != nil {
		logger.Error("failed to load AWS config", "error", err)
		os.Exit(1)
	}
	queue, err := bootstrap.BuildNotificationQueue(cfg, awsCfg, logger)
	if err != nil {
		logger.Error("failed to build notification queue", "error", err)
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	workerMetrics := metrics.NewBookingMetrics(registry)

	worker := notify.NewWorker(queue, bootstrap.BuildEmailSender(cfg, awsCfg, logger), logger,
		notify.WithWorkerCount(cfg.WorkerCount),
		notify.WithProcessedEventsStore(events.NewProcessedStore(pool)),
		notify.WithArchive(bootstrap.BuildArchive(cfg, awsCfg, logger)),
		notify.WithWorkerMetrics(workerMetrics),
	)
	worker.Start(ctx)
	logger.Info("notification worker started", "workers", cfg.WorkerCount, "queue_url", cfg.NotificationURL)

	r := chi.NewRouter()
	r.Get("/health", database.HealthHandler(pool))
	r.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: ":" + cfg.Port, Handler: r, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("health server error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("notification worker shutting down")

	shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
	defer stop()
	_ = srv.Shutdown(shutdownCtx)
	worker.Wait()
}
