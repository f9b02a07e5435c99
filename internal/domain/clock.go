package domain

import (
	"io"
	"log/slog"

	"github.com/jonboulle/clockwork"
)

// Option configures an Engine.
type Option func(*Engine)

// WithClock sets the time source used for report timestamps. Pass nil to
// keep the real clock.
func WithClock(c clockwork.Clock) Option {
	return func(e *Engine) {
		if c != nil {
			e.clock = c
		}
	}
}

// WithLogger sets the logger used for per-run diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

func defaultLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
