package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/spf13/cobra"

	"github.com/couchcryptid/climate-data-monitor/internal/app"
	"github.com/couchcryptid/climate-data-monitor/internal/config"
	"github.com/couchcryptid/climate-data-monitor/internal/observability"
)

// errRunFailed is returned after a pipeline run that reported errors. The
// status report has already been printed.
var errRunFailed = errors.New("pipeline run failed")

var (
	metricsOnce sync.Once
	metrics     *observability.Metrics
)

// processMetrics registers the Prometheus collectors once per process.
func processMetrics() *observability.Metrics {
	metricsOnce.Do(func() { metrics = observability.NewMetrics() })
	return metrics
}

type rootOptions struct {
	configPath string
	stderr     io.Writer
}

func newRootCmd(stderr io.Writer) *cobra.Command {
	opts := &rootOptions{stderr: stderr}

	cmd := &cobra.Command{
		Use:   "monitor",
		Short: "Climate data quality monitoring and versioning",
		Long: `Validate climate observations, score their quality, publish them as
versioned packages and query the published packages.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "YAML configuration file")

	cmd.AddCommand(newRunCmd(opts))
	cmd.AddCommand(newAnalyzeCmd(opts))
	cmd.AddCommand(newQueryCmd(opts))
	cmd.AddCommand(newFetchCmd(opts))
	return cmd
}

// load reads the configuration and builds the logger. Logs go to stderr.
func (o *rootOptions) load() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, nil, err
	}
	return cfg, observability.NewLoggerTo(o.stderr, cfg.Logging.Level, cfg.Logging.Format), nil
}

// open loads the configuration and wires the application.
func (o *rootOptions) open(ctx context.Context, adjust func(*config.Config) error) (*app.App, *slog.Logger, error) {
	cfg, logger, err := o.load()
	if err != nil {
		return nil, nil, err
	}
	if adjust != nil {
		if err := adjust(cfg); err != nil {
			return nil, nil, err
		}
	}
	a, err := app.New(ctx, cfg, logger, processMetrics())
	if err != nil {
		return nil, nil, err
	}
	return a, logger, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	return nil
}
