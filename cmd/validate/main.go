// Command validate runs every validation phase over a climate CSV and then
// scores it, reporting PASS or FAIL per phase. Unlike the pipeline it does
// not stop at the first failing phase.
//
// Usage:
//
//	go run ./cmd/validate -data-file data/raw/ghcn.csv [-config config/demo.yaml]
package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/couchcryptid/climate-data-monitor/internal/config"
	"github.com/couchcryptid/climate-data-monitor/internal/domain"
	"github.com/couchcryptid/climate-data-monitor/internal/source"
	"github.com/couchcryptid/climate-data-monitor/internal/validation"
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	dataFile := flag.String("data-file", "", "climate CSV to validate")
	configPath := flag.String("config", "", "optional YAML configuration for quality thresholds")
	flag.Parse()

	if *dataFile == "" {
		flag.Usage()
		os.Exit(1)
	}

	thresholds := domain.DefaultThresholds()
	if *configPath != "" {
		cfg, err := config.Load(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "FATAL: load config: %v\n", err)
			os.Exit(1)
		}
		thresholds = cfg.Thresholds
	}

	if code := run(os.Stdout, *dataFile, thresholds); code != 0 {
		os.Exit(code)
	}
}

func run(w io.Writer, dataFile string, thresholds domain.Thresholds) int {
	fmt.Fprintln(w, "=== Climate Data Validation ===")
	fmt.Fprintln(w)

	table, err := source.LoadCSV(dataFile)
	if err != nil {
		fmt.Fprintf(w, "FATAL: %v\n", err)
		return 1
	}

	phases := checkPhases(table)
	var report *domain.Report
	if allPassed(phases) {
		p, r := qualityPhase(table, thresholds)
		phases = append(phases, p)
		report = r
	}

	fmt.Fprintln(w)
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
		}
		fmt.Fprintf(w, "  %-42s %s\n", p.name, status)
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Records: %d\n", len(table.Rows))
	if report != nil {
		fmt.Fprintf(w, "Quality score: %.1f/100 (minimum %.1f)\n", report.QualityScore, thresholds.MinQualityScore)
	}

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Fprintf(w, "\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Fprintf(w, "  [%d] %s\n", i+1, e)
		}
	}

	if allPassed(phases) {
		fmt.Fprintln(w, "\nAll validations passed.")
		return 0
	}
	fmt.Fprintln(w, "\nValidation FAILED.")
	return 1
}

// checkPhases runs every structural check. Row checks are meaningless
// without the required columns, so a column failure ends the list.
func checkPhases(t domain.RawTable) []*phase {
	var phases []*phase
	for _, c := range validation.Checks {
		p := &phase{name: c.Name}
		if err := c.Run(t); err != nil {
			p.errorf("%v", err)
		}
		phases = append(phases, p)
		if c.Name == "columns" && !p.passed() {
			break
		}
	}
	return phases
}

func qualityPhase(t domain.RawTable, thresholds domain.Thresholds) (*phase, *domain.Report) {
	p := &phase{name: "quality"}
	set, err := validation.Parse(t)
	if err != nil {
		p.errorf("parse: %v", err)
		return p, nil
	}
	engine, err := domain.NewEngine(thresholds)
	if err != nil {
		p.errorf("thresholds: %v", err)
		return p, nil
	}
	report, err := engine.Assess(set)
	if err != nil {
		p.errorf("assess: %v", err)
		return p, nil
	}
	if !engine.Passes(report) {
		p.errorf("quality score %.2f below minimum %.2f", report.QualityScore, thresholds.MinQualityScore)
	}
	return p, &report
}

func allPassed(phases []*phase) bool {
	for _, p := range phases {
		if !p.passed() {
			return false
		}
	}
	return true
}
