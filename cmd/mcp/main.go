package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/mark3labs/mcp-go/server"

	mcpadapter "github.com/kirillkom/docrepo-assistant/internal/adapters/mcp"
	"github.com/kirillkom/docrepo-assistant/internal/bootstrap"
	"github.com/kirillkom/docrepo-assistant/internal/config"
	"github.com/kirillkom/docrepo-assistant/internal/observability/logging"
)

var version = "dev"

func main() {
	cfg := config.Load()
	// stdout carries the MCP protocol.
	slog.SetDefault(logging.NewJSONLoggerTo(os.Stderr, "mcp", cfg.LogLevel))

	app, err := bootstrap.New(context.Background(), cfg, bootstrap.Options{
		Name:  "docrepo-mcp",
		Queue: bootstrap.QueueDisabled,
	})
	if err != nil {
		slog.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	mcpServer := mcpadapter.NewServer(version, mcpadapter.Services{
		Catalog:  app.Catalog,
		Ledger:   app.Ledger,
		Workflow: app.Workflow,
	})

	if err := server.ServeStdio(mcpServer); err != nil {
		slog.Error("mcp_server_failed", "error", err)
		os.Exit(1)
	}
}
