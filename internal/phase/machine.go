package phase

import (
	"fmt"
	"runtime/debug"

	"github.com/mj1618/vbs-autopilot/internal/input"
	"github.com/mj1618/vbs-autopilot/internal/model"
	"go.uber.org/zap"
)

// env is the mutable state of one phase run.
type env struct {
	wc       model.WorkflowContext
	incoming *model.WindowHandle
	target   *input.Target
	drv      *input.Driver
	deps     Deps
	settings Settings
	log      *zap.Logger
	result   *model.PhaseResult

	// scratch carries values between steps of the same run.
	scratch map[string]any
}

func (e *env) artifact(key, value string) {
	e.result.Artifacts[key] = value
}

// machine is the state machine shared by all phases.
type machine struct {
	name     model.Phase
	deps     Deps
	settings Settings

	locate  func(e *env) error
	prepare func(e *env) error
	steps   func(e *env) ([]step, error)
	verify  func(e *env) error
}

func (m *machine) run(wc model.WorkflowContext, h *model.WindowHandle) (res model.PhaseResult) {
	log := m.deps.Log.Named("phase").With(zap.String("phase", string(m.name)))
	start := m.deps.Clock.Now()
	res = model.PhaseResult{Phase: m.name, Artifacts: map[string]string{}}

	enter := func(s State) {
		res.States = append(res.States, string(s))
		log.Debug("phase state", zap.String("state", string(s)))
	}
	fail := func(err error) {
		res.Success = false
		res.Errors = append(res.Errors, model.NewPhaseError(m.name, err))
		enter(StateFailed)
		log.Warn("phase failed", zap.Error(err), zap.String("kind", string(model.KindOf(err))))
	}

	defer func() {
		if r := recover(); r != nil {
			log.Error("phase panicked", zap.Any("panic", r), zap.ByteString("stack", debug.Stack()))
			fail(fmt.Errorf("unexpected failure: %v", r))
		}
		res.Duration = m.deps.Clock.Now().Sub(start)
	}()

	e := &env{
		wc:       wc,
		incoming: h,
		target:   &input.Target{Criteria: m.settings.Criteria},
		drv:      m.deps.Driver.WithMode(m.settings.Mode),
		deps:     m.deps,
		settings: m.settings,
		log:      log,
		result:   &res,
		scratch:  map[string]any{},
	}

	enter(StateIdle)
	log.Info("phase started")

	enter(StateLocating)
	if err := m.locate(e); err != nil {
		fail(err)
		return res
	}

	enter(StatePreparing)
	prepare := m.prepare
	if prepare == nil {
		prepare = prepareWindow
	}
	if err := prepare(e); err != nil {
		fail(err)
		return res
	}

	enter(StateExecuting)
	steps, err := m.steps(e)
	if err != nil {
		fail(err)
		return res
	}
	for _, s := range steps {
		if err := m.execute(e, s); err != nil {
			fail(err)
			return res
		}
	}

	enter(StateVerifying)
	if err := m.verify(e); err != nil {
		if model.KindOf(err) == model.KindUnknown {
			err = model.WrapError(model.KindPhaseVerificationFailure, "verify", err)
		}
		fail(err)
		return res
	}

	handle := e.target.Handle
	res.Handle = &handle
	res.Success = true
	enter(StateSucceeded)
	log.Info("phase succeeded", zap.Stringer("handle", handle), zap.Duration("elapsed", m.deps.Clock.Now().Sub(start)))
	return res
}

// execute runs one step, retrying it up to its attempt budget. Configuration
// errors are not retried.
func (m *machine) execute(e *env, s step) error {
	attempts := s.attempts
	if attempts <= 0 {
		attempts = m.settings.StepAttempts
	}
	log := e.log.With(zap.String("step", s.name))

	var err error
	for i := 1; i <= attempts; i++ {
		err = s.run(e)
		if err == nil && s.verify != nil {
			if verr := s.verify(e); verr != nil {
				err = verr
				if model.KindOf(err) == model.KindUnknown {
					err = model.WrapError(model.KindStepVerificationFailure, s.name, err)
				}
			}
		}
		if err == nil {
			log.Debug("step done", zap.Int("attempt", i))
			return nil
		}
		if model.KindOf(err) == model.KindConfigurationError {
			break
		}
		log.Warn("step failed", zap.Int("attempt", i), zap.Int("of", attempts), zap.Error(err))
		if i < attempts {
			m.deps.Clock.Sleep(m.settings.StepRetryDelay)
		}
	}
	return fmt.Errorf("step %q: %w", s.name, err)
}

// prepareWindow makes sure the target is usable: restored, relocated if
// stale, free of stray dialogs and, for foreground input, in front.
func prepareWindow(e *env) error {
	h, err := e.deps.Locator.Revalidate(e.target.Handle, e.target.Criteria)
	if err != nil {
		return err
	}
	e.target.Handle = h

	for _, spec := range e.settings.StrayPopups {
		if _, err := e.deps.Guard.WithDriver(e.drv).Sweep(spec); err != nil {
			return err
		}
	}

	if e.drv.Mode() == input.Foreground {
		if err := e.deps.Windows.SetForeground(h.HWND); err != nil {
			return model.WrapError(model.KindInputInjectionFailure, "bring window to foreground", err)
		}
	}
	return nil
}

// reuseHandle adopts the handle passed in by the previous phase.
func reuseHandle(e *env) error {
	if e.incoming == nil || e.incoming.IsZero() {
		return model.NewError(model.KindConfigurationError, "locate", "no window handle supplied by the previous phase")
	}
	h, err := e.deps.Locator.Revalidate(*e.incoming, e.target.Criteria)
	if err != nil {
		return err
	}
	e.target.Handle = h
	return nil
}
