package main

import (
	"github.com/spf13/cobra"

	"github.com/couchcryptid/climate-data-monitor/internal/config"
	"github.com/couchcryptid/climate-data-monitor/internal/registry"
)

type analyzeOptions struct {
	registryURL    string
	exportMetadata string
	exportData     string
}

func newAnalyzeCmd(root *rootOptions) *cobra.Command {
	opts := &analyzeOptions{}

	cmd := &cobra.Command{
		Use:   "analyze <package>",
		Short: "Print a summary of a published package",
		Example: `  monitor analyze climate/daily
  monitor analyze climate/daily@3f2a --registry s3://climate-bucket --export-data out/daily.csv`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, _, err := root.open(ctx, func(cfg *config.Config) error {
				if opts.registryURL == "" {
					return nil
				}
				loc, err := registry.ParseRegistryURL(opts.registryURL)
				if err != nil {
					return err
				}
				cfg.Registry.URL, cfg.Location = opts.registryURL, loc
				return nil
			})
			if err != nil {
				return err
			}
			defer a.Close()

			pkg := args[0]
			if err := a.Analyzer.WriteSummary(ctx, cmd.OutOrStdout(), pkg); err != nil {
				return err
			}
			if opts.exportMetadata != "" {
				if err := a.Analyzer.ExportMetadata(ctx, pkg, opts.exportMetadata); err != nil {
					return err
				}
			}
			if opts.exportData != "" {
				if err := a.Analyzer.ExportData(ctx, pkg, opts.exportData); err != nil {
					return err
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.registryURL, "registry", "", "registry url (s3://bucket[/prefix] or a directory), overrides registry.url")
	cmd.Flags().StringVar(&opts.exportMetadata, "export-metadata", "", "write the package metadata as JSON to this file")
	cmd.Flags().StringVar(&opts.exportData, "export-data", "", "write the package data CSV to this file")
	return cmd
}
