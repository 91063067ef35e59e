package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kirillkom/docrepo-assistant/internal/bootstrap"
	"github.com/kirillkom/docrepo-assistant/internal/config"
	"github.com/kirillkom/docrepo-assistant/internal/core/domain"
	"github.com/kirillkom/docrepo-assistant/internal/core/ports"
	"github.com/kirillkom/docrepo-assistant/internal/observability/logging"
	"github.com/kirillkom/docrepo-assistant/internal/observability/metrics"
)

const service = "worker"

func main() {
	cfg := config.Load()
	logger := logging.NewJSONLogger(service, cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	workerMetrics := metrics.NewWorkerMetrics(service)
	workflowMetrics := metrics.NewWorkflowMetrics(service, workerMetrics.Registry())

	app, err := bootstrap.New(ctx, cfg, bootstrap.Options{
		Name:     "docrepo-worker",
		Queue:    bootstrap.QueueRequired,
		Observer: workflowMetrics,
	})
	if err != nil {
		slog.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	metricsServer := startMetricsServer(cfg.WorkerMetricsPort, workerMetrics.Handler())
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	slog.Info("worker_subscribed", "subject", cfg.NATSClassifySubject)
	err = app.Queue.SubscribeClassificationRequested(ctx, func(handlerCtx context.Context, documentID string) error {
		return handleRequest(handlerCtx, app.Workflow, app.Queue, workerMetrics, documentID)
	})
	if err != nil {
		slog.Error("worker_subscribe_failed", "error", err)
		os.Exit(1)
	}
}

// handleRequest runs one classification and publishes its outcome. A busy
// document is dropped; the run already in flight publishes its own outcome.
func handleRequest(
	ctx context.Context,
	workflow ports.ClassificationRunner,
	queue ports.ClassificationQueue,
	workerMetrics *metrics.WorkerMetrics,
	documentID string,
) error {
	start := time.Now()
	workerMetrics.StartRequest()

	outcome, err := workflow.Classify(ctx, documentID)
	switch {
	case domain.IsKind(err, domain.ErrBusy):
		workerMetrics.FinishRequest(service, "busy", time.Since(start))
		slog.Info("classification_request_dropped", "document_id", documentID, "reason", "busy")
		return nil
	case outcome == nil:
		workerMetrics.FinishRequest(service, "failed", time.Since(start))
		return err
	}
	workerMetrics.FinishRequest(service, string(outcome.State), time.Since(start))

	if pubErr := queue.PublishClassificationFinished(ctx, *outcome); pubErr != nil {
		return errors.Join(err, pubErr)
	}
	return err
}

func startMetricsServer(port string, handler http.Handler) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", handler)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	server := &http.Server{
		Addr:              ":" + port,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("worker_metrics_server_failed", "error", err)
		}
	}()
	return server
}
