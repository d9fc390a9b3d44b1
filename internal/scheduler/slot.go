// Package scheduler triggers workflow runs from cron and guards the single
// active run slot shared by every trigger.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/mj1618/vbs-autopilot/internal/clock"
	"github.com/mj1618/vbs-autopilot/internal/model"
	"golang.org/x/time/rate"
)

var (
	// ErrBusy is returned when another run holds the slot.
	ErrBusy = errors.New("a workflow run is already in progress")
	// ErrTooSoon is returned when a run starts within the minimum interval
	// of the previous one.
	ErrTooSoon = errors.New("workflow triggered again too soon")
)

// RunFunc performs one workflow run.
type RunFunc func(ctx context.Context) model.WorkflowResult

// Slot admits one run at a time across the CLI, cron and MCP triggers of a
// process, and with a HostLock across processes.
type Slot struct {
	mu      sync.Mutex
	limiter *rate.Limiter
	clk     clock.Clock
	host    *HostLock

	stateMu sync.Mutex
	holder  string
	since   time.Time
}

// NewSlot spaces run starts at least minInterval apart. Zero disables the
// spacing.
func NewSlot(minInterval time.Duration, clk clock.Clock) *Slot {
	limit := rate.Inf
	if minInterval > 0 {
		limit = rate.Every(minInterval)
	}
	return &Slot{limiter: rate.NewLimiter(limit, 1), clk: clk}
}

// WithHostLock makes the slot also take l for each run, so runs in other
// processes on the same machine are excluded too.
func (s *Slot) WithHostLock(l *HostLock) *Slot {
	s.host = l
	return s
}

// Run executes fn if the slot is free. trigger names the caller in
// ErrBusy messages.
func (s *Slot) Run(ctx context.Context, trigger string, fn RunFunc) (model.WorkflowResult, error) {
	if !s.mu.TryLock() {
		holder, since := s.Holder()
		return model.WorkflowResult{}, fmt.Errorf("%w (started by %s at %s)", ErrBusy, holder, since.Format(time.TimeOnly))
	}
	defer s.mu.Unlock()

	if s.host != nil {
		if err := s.host.Acquire(); err != nil {
			return model.WorkflowResult{}, err
		}
		defer s.host.Release()
	}

	now := s.clk.Now()
	if !s.limiter.AllowN(now, 1) {
		return model.WorkflowResult{}, ErrTooSoon
	}

	s.stateMu.Lock()
	s.holder, s.since = trigger, now
	s.stateMu.Unlock()
	defer func() {
		s.stateMu.Lock()
		s.holder, s.since = "", time.Time{}
		s.stateMu.Unlock()
	}()

	return fn(ctx), nil
}

// Holder reports the trigger holding the slot and when it took it. The
// trigger is empty when the slot is free.
func (s *Slot) Holder() (string, time.Time) {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	return s.holder, s.since
}
