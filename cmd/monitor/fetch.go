package main

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/couchcryptid/climate-data-monitor/internal/adapter/openmeteo"
	"github.com/couchcryptid/climate-data-monitor/internal/domain"
	"github.com/couchcryptid/climate-data-monitor/internal/source"
	"github.com/couchcryptid/climate-data-monitor/internal/validation"
)

type fetchOptions struct {
	lat, lon   float64
	start, end string
	out        string
}

func newFetchCmd(root *rootOptions) *cobra.Command {
	opts := &fetchOptions{}

	cmd := &cobra.Command{
		Use:     "fetch",
		Short:   "Download daily TMAX, TMIN and PRCP from Open-Meteo as a GHCN-style CSV",
		Example: `  monitor fetch --lat 40.71 --lon -74.01 --start 2024-01-01 --end 2024-01-31`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := root.load()
			if err != nil {
				return err
			}
			start, err := time.Parse(domain.DateLayout, opts.start)
			if err != nil {
				return fmt.Errorf("--start: %w", err)
			}
			end, err := time.Parse(domain.DateLayout, opts.end)
			if err != nil {
				return fmt.Errorf("--end: %w", err)
			}

			client := openmeteo.NewClient(cfg.Climate.OpenMeteoURL, cfg.Climate.OpenMeteoTimeout, processMetrics(), logger)
			table, err := client.FetchDaily(cmd.Context(), openmeteo.Request{
				Latitude: opts.lat, Longitude: opts.lon, Start: start, End: end,
			})
			if err != nil {
				return err
			}
			set, err := validation.Parse(table)
			if err != nil {
				return err
			}

			out := opts.out
			if out == "" {
				name := fmt.Sprintf("openmeteo_%s_%s_%s.csv", openmeteo.StationID(opts.lat, opts.lon),
					start.Format("20060102"), end.Format("20060102"))
				out = filepath.Join(cfg.Climate.DownloadDir, name)
			}
			if err := source.WriteCSV(out, set); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %d records to %s\n", set.Len(), out)
			return nil
		},
	}

	cmd.Flags().Float64Var(&opts.lat, "lat", 0, "latitude")
	cmd.Flags().Float64Var(&opts.lon, "lon", 0, "longitude")
	cmd.Flags().StringVar(&opts.start, "start", "", "first day, YYYY-MM-DD")
	cmd.Flags().StringVar(&opts.end, "end", "", "last day, YYYY-MM-DD")
	cmd.Flags().StringVar(&opts.out, "out", "", "output CSV (default <download_dir>/openmeteo_<station>_<start>_<end>.csv)")
	_ = cmd.MarkFlagRequired("lat")
	_ = cmd.MarkFlagRequired("lon")
	_ = cmd.MarkFlagRequired("start")
	_ = cmd.MarkFlagRequired("end")
	return cmd
}
