package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	mcpadapter "github.com/kirillkom/wheel-rag/internal/adapters/mcp"
	"github.com/kirillkom/wheel-rag/internal/bootstrap"
	"github.com/kirillkom/wheel-rag/internal/config"
	"github.com/kirillkom/wheel-rag/internal/observability/logging"
)

// Stdout carries the JSON-RPC stream, so logs go to stderr.
func main() {
	cfg := config.Load()
	logger := logging.NewJSONLoggerTo(os.Stderr, "mcp", cfg.LogLevel)
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("config_invalid", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	workersCtx, stopWorkers := context.WithCancel(ctx)
	defer stopWorkers()
	app.StartWorkers(workersCtx, nil)

	logger.Info("mcp_serving_stdio", "mode", app.Wheel.CurrentMode().Mode)
	if err := mcpadapter.NewServer(app.Wheel, logger).ServeStdio(); err != nil {
		logger.Error("mcp_server_failed", "error", err)
	}
}
