package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/mj1618/vbs-autopilot/internal/clock"
	"github.com/mj1618/vbs-autopilot/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

var start = time.Date(2026, 10, 15, 1, 0, 0, 0, time.UTC)

func succeed(ctx context.Context) model.WorkflowResult {
	return model.WorkflowResult{RunID: "r", Success: true}
}

func TestSlot_RejectsOverlappingRun(t *testing.T) {
	slot := NewSlot(0, clock.NewFake(start))
	entered := make(chan struct{})
	release := make(chan struct{})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, err := slot.Run(context.Background(), "cli", func(context.Context) model.WorkflowResult {
			close(entered)
			<-release
			return model.WorkflowResult{Success: true}
		})
		assert.NoError(t, err)
	}()
	<-entered

	holder, since := slot.Holder()
	assert.Equal(t, "cli", holder)
	assert.Equal(t, start, since)

	_, err := slot.Run(context.Background(), "mcp", succeed)
	assert.ErrorIs(t, err, ErrBusy)
	assert.ErrorContains(t, err, "started by cli")

	close(release)
	wg.Wait()

	holder, _ = slot.Holder()
	assert.Empty(t, holder)
	res, err := slot.Run(context.Background(), "mcp", succeed)
	require.NoError(t, err)
	assert.True(t, res.Success)
}

func TestSlot_MinimumInterval(t *testing.T) {
	clk := clock.NewFake(start)
	slot := NewSlot(time.Minute, clk)
	calls := 0
	fn := func(context.Context) model.WorkflowResult {
		calls++
		return model.WorkflowResult{}
	}

	_, err := slot.Run(context.Background(), "cli", fn)
	require.NoError(t, err)

	clk.Sleep(30 * time.Second)
	_, err = slot.Run(context.Background(), "cli", fn)
	assert.ErrorIs(t, err, ErrTooSoon)

	clk.Sleep(30 * time.Second)
	_, err = slot.Run(context.Background(), "cli", fn)
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestNew_RejectsBadInput(t *testing.T) {
	slot := NewSlot(0, clock.NewFake(start))

	_, err := New("every morning", "", slot, succeed, nil)
	assert.ErrorContains(t, err, "schedule spec")

	_, err = New("0 2 * * *", "Mars/Olympus_Mons", slot, succeed, nil)
	assert.ErrorContains(t, err, "timezone")
}

func TestNext_UsesTimezone(t *testing.T) {
	s, err := New("0 2 * * *", "Asia/Kolkata", NewSlot(0, clock.NewFake(start)), succeed, nil)
	require.NoError(t, err)

	// 01:00 UTC is 06:30 IST, so the next 02:00 IST is the following day.
	next := s.Next(start)
	assert.True(t, next.Equal(time.Date(2026, 10, 15, 20, 30, 0, 0, time.UTC)), next.String())

	s, err = New("@hourly", "UTC", NewSlot(0, clock.NewFake(start)), succeed, nil)
	require.NoError(t, err)
	assert.True(t, s.Next(start).Equal(start.Add(time.Hour)))
}

func TestFire_LogsOutcomeAndSkips(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	clk := clock.NewFake(start)
	slot := NewSlot(time.Hour, clk)
	results := []model.WorkflowResult{
		{RunID: "a", Success: true},
		{RunID: "b", FailedPhase: model.PhaseImport},
	}
	run := func(context.Context) model.WorkflowResult {
		r := results[0]
		results = results[1:]
		return r
	}
	s, err := New("@daily", "UTC", slot, run, zap.New(core))
	require.NoError(t, err)

	s.Fire()
	s.Fire()
	clk.Sleep(time.Hour)
	s.Fire()

	assert.Equal(t, 1, logs.FilterMessage("scheduled run succeeded").Len())
	assert.Equal(t, 1, logs.FilterMessage("scheduled run skipped").Len())
	failed := logs.FilterMessage("scheduled run failed").All()
	require.Len(t, failed, 1)
	assert.Equal(t, "import", failed[0].ContextMap()["failed_phase"])
}

func TestRun_StopsWithContext(t *testing.T) {
	s, err := New("@yearly", "UTC", NewSlot(0, clock.NewFake(start)), succeed, nil)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("scheduler did not stop")
	}
}

func TestCronLogger(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := cronLogger{zap.New(core).Sugar()}

	l.Info("wake", "now", 1)
	l.Error(errors.New("boom"), "panic", "job", "x")

	all := logs.All()
	require.Len(t, all, 2)
	assert.Equal(t, zapcore.DebugLevel, all[0].Level)
	assert.Equal(t, "boom", all[1].ContextMap()["error"])
}
