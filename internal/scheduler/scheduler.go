package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"
	_ "time/tzdata"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Scheduler fires the workflow on a cron spec.
type Scheduler struct {
	cron     *cron.Cron
	schedule cron.Schedule
	loc      *time.Location
	slot     *Slot
	run      RunFunc
	log      *zap.Logger

	ctx context.Context
}

// New parses spec (five fields or a descriptor such as @daily) in the
// named timezone; an empty timezone means local time.
func New(spec, timezone string, slot *Slot, run RunFunc, log *zap.Logger) (*Scheduler, error) {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("scheduler")
	loc := time.Local
	if timezone != "" {
		var err error
		if loc, err = time.LoadLocation(timezone); err != nil {
			return nil, fmt.Errorf("schedule timezone: %w", err)
		}
	}
	schedule, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, fmt.Errorf("schedule spec %q: %w", spec, err)
	}

	s := &Scheduler{
		schedule: schedule,
		loc:      loc,
		slot:     slot,
		run:      run,
		log:      log,
		ctx:      context.Background(),
	}
	logger := cronLogger{log.Sugar()}
	s.cron = cron.New(
		cron.WithLocation(loc),
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger)),
	)
	s.cron.Schedule(schedule, cron.FuncJob(s.Fire))
	return s, nil
}

// Next returns the first activation after t.
func (s *Scheduler) Next(t time.Time) time.Time {
	return s.schedule.Next(t.In(s.loc))
}

// Fire runs the workflow now through the slot. Overlapping triggers are
// skipped and logged.
func (s *Scheduler) Fire() {
	res, err := s.slot.Run(s.ctx, "schedule", s.run)
	switch {
	case errors.Is(err, ErrBusy), errors.Is(err, ErrTooSoon):
		s.log.Warn("scheduled run skipped", zap.Error(err))
	case err != nil:
		s.log.Error("scheduled run failed to start", zap.Error(err))
	case res.Success:
		s.log.Info("scheduled run succeeded", zap.String("run_id", res.RunID), zap.Duration("duration", res.Duration))
	default:
		s.log.Error("scheduled run failed",
			zap.String("run_id", res.RunID),
			zap.String("failed_phase", string(res.FailedPhase)),
			zap.Int("errors", len(res.Errors)),
		)
	}
}

// Run starts the cron loop and blocks until ctx is done, then waits for a
// run in progress to finish.
func (s *Scheduler) Run(ctx context.Context) {
	s.ctx = ctx
	s.cron.Start()
	s.log.Info("scheduler started", zap.Time("next", s.Next(time.Now())))
	<-ctx.Done()
	s.log.Info("scheduler stopping")
	<-s.cron.Stop().Done()
}

// cronLogger routes cron's logging into zap.
type cronLogger struct {
	s *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.s.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.s.Errorw(msg, append(keysAndValues, "error", err)...)
}
