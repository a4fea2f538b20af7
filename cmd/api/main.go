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

	httpadapter "github.com/kirillkom/wheel-rag/internal/adapters/http"
	"github.com/kirillkom/wheel-rag/internal/bootstrap"
	"github.com/kirillkom/wheel-rag/internal/config"
	"github.com/kirillkom/wheel-rag/internal/observability/logging"
	"github.com/kirillkom/wheel-rag/internal/observability/metrics"
)

func main() {
	cfg := config.Load()
	logger := logging.NewJSONLogger("api", cfg.LogLevel)
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

	var (
		httpMetrics   *metrics.HTTPServerMetrics
		workerMetrics *metrics.WorkerMetrics
	)
	if cfg.EnableMonitoring {
		httpMetrics = metrics.NewHTTPServerMetrics("api")
		workerMetrics = metrics.NewWorkerMetricsOn(httpMetrics.Registry(), "api")
	}

	workersCtx, stopWorkers := context.WithCancel(context.Background())
	defer stopWorkers()
	app.StartWorkers(workersCtx, workerMetrics)

	router, err := httpadapter.NewRouter(cfg, app.Wheel, app.Tasks, app.Experiments, httpMetrics)
	if err != nil {
		logger.Error("router_init_failed", "error", err)
		os.Exit(1)
	}
	server := &http.Server{
		Addr:              ":" + cfg.APIPort,
		Handler:           router.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      120 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	listener, err := net.Listen("tcp", server.Addr)
	if err != nil {
		logger.Error("api_listen_failed", "addr", server.Addr, "error", err)
		os.Exit(1)
	}
	if cfg.MaxConnections > 0 {
		listener = netutil.LimitListener(listener, cfg.MaxConnections)
	}

	go func() {
		logger.Info("api_listening",
			"addr", server.Addr,
			"mode", app.Wheel.CurrentMode().Mode,
			"max_connections", cfg.MaxConnections,
		)
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("api_server_failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("api_shutdown_failed", "error", err)
	}
	stopWorkers()
	if app.Pool != nil {
		app.Pool.Wait()
	}
	logger.Info("api_stopped")
}
