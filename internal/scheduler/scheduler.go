// Package scheduler triggers pipeline runs on a cron schedule.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"

	"github.com/couchcryptid/climate-data-monitor/internal/domain"
)

// Runner executes one pipeline run.
type Runner interface {
	Run(ctx context.Context, dataFile string) domain.RunResult
}

// Scheduler runs the pipeline against its configured source on every tick
// of a six-field (seconds first) cron spec. A tick is skipped while the
// previous run is still going.
type Scheduler struct {
	cron   *cron.Cron
	runner Runner
	logger *slog.Logger
	ctx    context.Context
}

// New parses spec and registers the run job. Call Start to begin ticking.
func New(spec string, runner Runner, logger *slog.Logger) (*Scheduler, error) {
	s := &Scheduler{runner: runner, logger: logger, ctx: context.Background()}
	cl := cronLogger{logger}
	s.cron = cron.New(
		cron.WithSeconds(),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
	if _, err := s.cron.AddFunc(spec, s.tick); err != nil {
		return nil, fmt.Errorf("parse schedule %q: %w", spec, err)
	}
	return s, nil
}

// Start begins ticking in the background. Runs use ctx.
func (s *Scheduler) Start(ctx context.Context) {
	s.ctx = ctx
	s.cron.Start()
	s.logger.Info("scheduler started", "next_run", s.cron.Entries()[0].Next)
}

// Stop halts ticking and returns a context that is done once an in-flight
// run finishes.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

func (s *Scheduler) tick() {
	res := s.runner.Run(s.ctx, "")
	if !res.Success {
		s.logger.Error("scheduled run failed", "run_id", res.RunID, "errors", res.Errors)
		return
	}
	s.logger.Info("scheduled run complete", "run_id", res.RunID, "top_hash", res.TopHash)
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error("cron: "+msg, append([]any{"error", err}, keysAndValues...)...)
}
