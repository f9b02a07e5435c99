package pipeline

import (
	"fmt"
	"strings"
	"time"

	"github.com/couchcryptid/climate-data-monitor/internal/domain"
)

// StatusReport renders a human-readable summary of a run.
func StatusReport(r domain.RunResult) string {
	rule := strings.Repeat("=", 60)
	status := "SUCCESS"
	if !r.Success {
		status = "FAILED"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "\n%s\nClimate Data Monitor - Pipeline Execution Report\n%s\n", rule, rule)
	fmt.Fprintf(&b, "Status: %s\n", status)
	fmt.Fprintf(&b, "Run ID: %s\n", r.RunID)
	fmt.Fprintf(&b, "Timestamp: %s\n", r.Timestamp.Format(time.RFC3339))
	fmt.Fprintf(&b, "Package: %s\n", r.PackageName)
	if r.TopHash != "" {
		fmt.Fprintf(&b, "Top Hash: %s\n", r.TopHash)
	}
	if r.DataFile != "" {
		fmt.Fprintf(&b, "Data File: %s\n", r.DataFile)
	}

	if q := r.QualityReport; q != nil {
		b.WriteString("\nQuality Metrics:\n")
		fmt.Fprintf(&b, "  Quality Score: %.1f/100\n", q.QualityScore)
		fmt.Fprintf(&b, "  Rows: %d\n", q.RowCount)
		fmt.Fprintf(&b, "  Null %%: %.2f%%\n", q.NullPercentageAvg)
		fmt.Fprintf(&b, "  Stations: %d\n", q.StationCount)
	}

	if len(r.Errors) > 0 {
		b.WriteString("\nErrors:\n")
		for _, e := range r.Errors {
			fmt.Fprintf(&b, "  - %s\n", e)
		}
	}
	b.WriteString(rule + "\n")
	return b.String()
}
