package scheduler

import (
	"context"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/climate-data-monitor/internal/domain"
)

type countingRunner struct {
	runs    atomic.Int32
	success bool
}

func (r *countingRunner) Run(_ context.Context, dataFile string) domain.RunResult {
	r.runs.Add(1)
	return domain.RunResult{RunID: "r", Success: r.success, DataFile: dataFile}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNew_InvalidSpec(t *testing.T) {
	_, err := New("every tuesday", &countingRunner{}, discardLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "every tuesday")
}

func TestNew_RequiresSecondsField(t *testing.T) {
	_, err := New("0 6 * * *", &countingRunner{}, discardLogger())
	require.Error(t, err, "five-field specs are rejected")
}

func TestScheduler_RunsOnTick(t *testing.T) {
	r := &countingRunner{success: true}
	s, err := New("* * * * * *", r, discardLogger())
	require.NoError(t, err)

	s.Start(context.Background())
	require.Eventually(t, func() bool { return r.runs.Load() >= 1 }, 3*time.Second, 20*time.Millisecond)

	<-s.Stop().Done()
	after := r.runs.Load()
	time.Sleep(1100 * time.Millisecond)
	assert.Equal(t, after, r.runs.Load(), "no runs after Stop")
}

func TestScheduler_FailedRunKeepsTicking(t *testing.T) {
	r := &countingRunner{success: false}
	s, err := New("* * * * * *", r, discardLogger())
	require.NoError(t, err)

	s.Start(context.Background())
	defer s.Stop()
	require.Eventually(t, func() bool { return r.runs.Load() >= 2 }, 4*time.Second, 20*time.Millisecond)
}
