// Command climated serves the package query API and runs the pipeline on a
// cron schedule.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	httpadapter "github.com/couchcryptid/climate-data-monitor/internal/adapter/http"
	"github.com/couchcryptid/climate-data-monitor/internal/app"
	"github.com/couchcryptid/climate-data-monitor/internal/config"
	"github.com/couchcryptid/climate-data-monitor/internal/observability"
	"github.com/couchcryptid/climate-data-monitor/internal/scheduler"
)

func main() {
	configPath := flag.String("config", "", "YAML configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.Logging.Level, cfg.Logging.Format)
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger, metrics)
	if err != nil {
		logger.Error("failed to start", "error", err)
		os.Exit(1)
	}

	opts := []httpadapter.Option{
		httpadapter.WithQuery(a.Analyzer),
		httpadapter.WithRunner(a.Pipeline),
	}
	if a.History != nil {
		opts = append(opts, httpadapter.WithHistory(a.History))
	}
	srv := httpadapter.NewServer(cfg.HTTP.Addr, a.Pipeline, logger, opts...)

	var sched *scheduler.Scheduler
	if cfg.Schedule.Cron != "" {
		sched, err = scheduler.New(cfg.Schedule.Cron, a.Pipeline, logger)
		if err != nil {
			logger.Error("invalid schedule", "error", err)
			os.Exit(1)
		}
	} else {
		logger.Info("no schedule configured, runs are triggered via POST /runs")
	}

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	if sched != nil {
		sched.Start(ctx)
	}

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if sched != nil {
		select {
		case <-sched.Stop().Done():
		case <-shutdownCtx.Done():
			logger.Warn("scheduled run still in progress at shutdown")
		}
	}
	if err := a.Close(); err != nil {
		logger.Error("close connections error", "error", err)
	}

	logger.Info("shutdown complete")
}
