package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/net/netutil"

	httpadapter "github.com/kirillkom/docrepo-assistant/internal/adapters/http"
	"github.com/kirillkom/docrepo-assistant/internal/bootstrap"
	"github.com/kirillkom/docrepo-assistant/internal/config"
	"github.com/kirillkom/docrepo-assistant/internal/observability/logging"
	"github.com/kirillkom/docrepo-assistant/internal/observability/metrics"
)

func main() {
	cfg := config.Load()
	logger := logging.NewJSONLogger("api", cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	httpMetrics := metrics.NewHTTPServerMetrics("api")
	workflowMetrics := metrics.NewWorkflowMetrics("api", httpMetrics.Registry())

	app, err := bootstrap.New(ctx, cfg, bootstrap.Options{
		Name:     "docrepo-api",
		Queue:    bootstrap.QueueOptional,
		Observer: workflowMetrics,
	})
	if err != nil {
		slog.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	router := httpadapter.NewRouter(cfg, httpadapter.Services{
		Catalog:  app.Catalog,
		Editor:   app.Editor,
		Ledger:   app.Ledger,
		Workflow: app.Workflow,
		Queue:    app.Queue,
		Breakers: app.Executor,
	}, httpMetrics)

	server := &http.Server{
		Handler:      router.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	listener, err := net.Listen("tcp", ":"+cfg.APIPort)
	if err != nil {
		slog.Error("api_listen_failed", "port", cfg.APIPort, "error", err)
		os.Exit(1)
	}
	if cfg.APIMaxConns > 0 {
		listener = netutil.LimitListener(listener, cfg.APIMaxConns)
	}

	go func() {
		slog.Info("api_listening", "port", cfg.APIPort, "max_conns", cfg.APIMaxConns)
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("api_server_failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("api_shutdown_failed", "error", err)
	}
}
