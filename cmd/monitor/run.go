package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/couchcryptid/climate-data-monitor/internal/config"
	"github.com/couchcryptid/climate-data-monitor/internal/pipeline"
)

type runOptions struct {
	dataFile string
	push     bool
	output   string
}

func newRunCmd(root *rootOptions) *cobra.Command {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the complete pipeline once",
		Example: `  # Assess and package the configured source
  monitor run --config config/demo.yaml

  # Assess a local file and push to the configured registry
  monitor run --config config/production.yaml --data-file data/ghcn.csv --push`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, logger, err := root.open(cmd.Context(), func(cfg *config.Config) error {
				if opts.push {
					cfg.Registry.PushEnabled = true
				}
				return nil
			})
			if err != nil {
				return err
			}
			defer a.Close()

			if opts.push {
				logger.Info("registry push enabled by flag")
			}
			res := a.Pipeline.Run(cmd.Context(), opts.dataFile)
			fmt.Fprintln(cmd.OutOrStdout(), pipeline.StatusReport(res))

			if opts.output != "" {
				data, err := json.MarshalIndent(res, "", "  ")
				if err != nil {
					return fmt.Errorf("encode results: %w", err)
				}
				if err := os.MkdirAll(filepath.Dir(opts.output), 0o755); err != nil {
					return fmt.Errorf("create %s: %w", filepath.Dir(opts.output), err)
				}
				if err := os.WriteFile(opts.output, data, 0o644); err != nil {
					return fmt.Errorf("write results: %w", err)
				}
				logger.Info("detailed results saved", "path", opts.output)
			}

			if !res.Success {
				return errRunFailed
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.dataFile, "data-file", "", "input CSV, overrides climate.source_url")
	cmd.Flags().BoolVar(&opts.push, "push", false, "push the package to the registry, overrides registry.push_enabled")
	cmd.Flags().StringVar(&opts.output, "output", "", "write the detailed run result as JSON to this file")
	return cmd
}
