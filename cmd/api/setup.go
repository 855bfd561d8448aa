package main

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wolfman30/echannel-booking/internal/app/bootstrap"
	appconfig "github.com/wolfman30/echannel-booking/internal/config"
	"github.com/wolfman30/echannel-booking/internal/database"
	"github.com/wolfman30/echannel-booking/internal/events"
	"github.com/wolfman30/echannel-booking/internal/notify"
	"github.com/wolfman30/echannel-booking/internal/observability/metrics"
	"github.com/wolfman30/echannel-booking/pkg/logging"
)

// setupMetrics registers the booking collectors on a private registry and
// returns the /metrics handler serving it.
func setupMetrics() (http.Handler, *metrics.BookingMetrics, *prometheus.Registry) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	bookingMetrics := metrics.NewBookingMetrics(registry)
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{}), bookingMetrics, registry
}

func connectPostgresPool(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) *pgxpool.Pool {
	if cfg == nil || strings.TrimSpace(cfg.DatabaseURL) == "" {
		logger.Error("DATABASE_URL is required")
		return nil
	}
	pool, err := database.NewPool(ctx, cfg.DatabaseURL, int32(cfg.DBMaxConns), int32(cfg.DBMinConns))
	if err != nil {
		logger.Error("failed to connect to postgres", "error", err)
		return nil
	}
	return pool
}

// setupInlineWorker runs the notification worker inside the API process when
// the in-memory queue is used, since nothing else can read that queue.
func setupInlineWorker(ctx context.Context, cfg *appconfig.Config, awsCfg aws.Config, queue notify.QueueClient, pool *pgxpool.Pool, m *metrics.BookingMetrics, logger *logging.Logger) *notify.Worker {
	if cfg == nil || !cfg.UseMemoryQueue || queue == nil {
		return nil
	}
	opts := []notify.WorkerOption{
		notify.WithWorkerCount(cfg.WorkerCount),
		notify.WithReceiveWaitSeconds(1),
		notify.WithArchive(bootstrap.BuildArchive(cfg, awsCfg, logger)),
	}
	if pool != nil {
		opts = append(opts, notify.WithProcessedEventsStore(events.NewProcessedStore(pool)))
	}
	if m != nil {
		opts = append(opts, notify.WithWorkerMetrics(m))
	}
	worker := notify.NewWorker(queue, bootstrap.BuildEmailSender(cfg, awsCfg, logger), logger, opts...)
	worker.Start(ctx)
	logger.Info("inline notification worker started", "workers", cfg.WorkerCount)
	return worker
}

func waitForInlineWorker(worker *notify.Worker, logger *logging.Logger) {
	if worker == nil {
		return
	}
	done := make(chan struct{})
	go func() {
		worker.Wait()
		close(done)
	}()
	select {
	case <-done:
		logger.Info("inline notification worker stopped")
	case <-time.After(10 * time.Second):
		logger.Warn("timed out waiting for inline notification worker")
	}
}
