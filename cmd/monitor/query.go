package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/couchcryptid/climate-data-monitor/internal/app"
	"github.com/couchcryptid/climate-data-monitor/internal/domain"
)

var queryTypes = []string{"search", "metrics", "compare", "sample", "temperature", "completeness", "report", "versions"}

type queryOptions struct {
	pkg              string
	qualityThreshold float64
	elements         []string
	compareWith      string
	limit            int
}

func newQueryCmd(root *rootOptions) *cobra.Command {
	opts := &queryOptions{}

	cmd := &cobra.Command{
		Use:       "query <" + strings.Join(queryTypes, "|") + ">",
		Short:     "Query published packages and print JSON",
		ValidArgs: queryTypes,
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		Example: `  monitor query search --quality-threshold 80 --elements TMAX,PRCP
  monitor query compare --package climate/daily@3f2a --compare-with climate/daily
  monitor query report --package climate/daily`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, _, err := root.open(cmd.Context(), nil)
			if err != nil {
				return err
			}
			defer a.Close()
			return runQuery(cmd, a, args[0], opts)
		},
	}

	cmd.Flags().StringVar(&opts.pkg, "package", "", "package to query, optionally name@ref (default registry.package)")
	cmd.Flags().Float64Var(&opts.qualityThreshold, "quality-threshold", 0, "search: minimum quality score (0-100)")
	cmd.Flags().StringSliceVar(&opts.elements, "elements", nil, "search: elements to match, any of (TMAX,TMIN,PRCP...)")
	cmd.Flags().StringVar(&opts.compareWith, "compare-with", "", "compare: second package or name@ref")
	cmd.Flags().IntVar(&opts.limit, "limit", 10, "sample: number of rows")
	return cmd
}

func runQuery(cmd *cobra.Command, a *app.App, kind string, opts *queryOptions) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()
	pkg := opts.pkg
	if pkg == "" {
		pkg = a.DefaultPackage
	}

	var (
		result any
		err    error
	)
	switch kind {
	case "search":
		elements := make([]domain.Element, 0, len(opts.elements))
		for _, e := range opts.elements {
			elements = append(elements, domain.Element(strings.ToUpper(strings.TrimSpace(e))))
		}
		result, err = a.Analyzer.SearchPackages(ctx, opts.qualityThreshold, elements)
	case "metrics":
		result, err = a.Analyzer.PackageMetrics(ctx, pkg)
	case "compare":
		if opts.compareWith == "" {
			return errors.New("--compare-with is required for compare")
		}
		result, err = a.Analyzer.ComparePackages(ctx, pkg, opts.compareWith)
	case "sample":
		result, err = a.Analyzer.DataSample(ctx, pkg, opts.limit)
	case "temperature":
		result, err = a.Analyzer.TemperatureTrends(ctx, pkg)
	case "completeness":
		result, err = a.Analyzer.Completeness(ctx, pkg)
	case "versions":
		name, _, _ := strings.Cut(pkg, "@")
		result, err = a.Registry.History(ctx, name)
	case "report":
		text, err := a.Analyzer.SummaryReport(ctx, pkg)
		if err != nil {
			return err
		}
		_, err = fmt.Fprint(out, text)
		return err
	default:
		return fmt.Errorf("unknown query type %q", kind)
	}
	if err != nil {
		return err
	}
	return printJSON(out, result)
}
