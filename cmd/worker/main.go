package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/telarian/switchboard/internal/bootstrap"
	"github.com/telarian/switchboard/internal/config"
	"github.com/telarian/switchboard/internal/core/domain"
	"github.com/telarian/switchboard/internal/observability/logging"
	"github.com/telarian/switchboard/internal/observability/metrics"
)

const serviceName = "worker"

func main() {
	cfg := config.Load()
	logger := logging.NewJSONLogger(serviceName, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}
	defer app.Close()

	workerMetrics := metrics.NewWorkerMetrics(serviceName)
	metricsServer := &http.Server{
		Addr:    ":" + cfg.WorkerMetricsPort,
		Handler: workerMetrics.Handler(),
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("worker_metrics_server_error", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	logger.Info("worker_subscribed", "subject", cfg.NATSSubject, "degraded", app.Degraded)
	err = app.Queue.SubscribeAttributions(ctx, func(handlerCtx context.Context, req domain.AttributionRequest) error {
		if !req.Timestamp.IsZero() {
			workerMetrics.ObserveQueueLag(serviceName, time.Since(req.Timestamp))
		}

		workerMetrics.StartAttribution()
		start := time.Now()

		attributeCtx, cancel := context.WithTimeout(handlerCtx, 30*time.Second)
		defer cancel()
		_, err := app.AttributionUC.Attribute(attributeCtx, req)

		workerMetrics.FinishAttribution(serviceName, time.Since(start), err)
		return err
	})
	if err != nil {
		log.Fatalf("worker subscribe error: %v", err)
	}
}
