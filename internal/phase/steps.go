package phase

import (
	"strings"
	"time"

	"github.com/mj1618/vbs-autopilot/internal/model"
	"github.com/mj1618/vbs-autopilot/internal/platform"
	"github.com/mj1618/vbs-autopilot/internal/popup"
	"go.uber.org/zap"
)

// step is one unit of work inside the executing state.
type step struct {
	name string
	run  func(e *env) error
	// verify, when set, must pass for the step to count as done.
	verify func(e *env) error
	// attempts overrides Settings.StepAttempts when positive.
	attempts int
}

func clickStep(name, target string) step {
	return step{name: name, run: func(e *env) error {
		return e.drv.ClickTarget(e.target, target, false)
	}}
}

func fillStep(name, target string, text func(e *env) string) step {
	return step{name: name, run: func(e *env) error {
		return e.drv.Fill(e.target, target, text(e))
	}}
}

func keyStep(name string, combo platform.KeyCombo) step {
	return step{name: name, run: func(e *env) error {
		return e.drv.Key(e.target, combo)
	}}
}

// awaitPopupStep waits for an application-produced dialog without sending
// any input to the main window, then dismisses it. The dialog must show
// up: the next step's input would otherwise reach a busy application. It
// is never retried, since the dialog only appears once per triggering
// action.
func awaitPopupStep(name string, spec popup.Spec, onDismissed func(e *env)) step {
	spec.Required = true
	return step{name: name, attempts: 1, run: func(e *env) error {
		dismissed, err := e.deps.Guard.WithDriver(e.drv).AwaitAndDismiss(spec)
		if err != nil {
			return err
		}
		if !dismissed {
			return model.NewError(model.KindPopupTimeout, spec.Name, "popup did not appear within %s", spec.Timeout)
		}
		if onDismissed != nil {
			onDismissed(e)
		}
		return nil
	}}
}

// titleContains reports whether the target's title contains any hint.
func titleContains(e *env, hints []string) (bool, string) {
	w, err := e.deps.Windows.Describe(e.target.Handle.HWND)
	if err != nil {
		return false, ""
	}
	title := strings.ToLower(w.Title)
	for _, h := range hints {
		if h != "" && strings.Contains(title, strings.ToLower(h)) {
			return true, w.Title
		}
	}
	return false, w.Title
}

// waitFor polls cond every PollInterval until it holds or timeout passes.
func waitFor(e *env, timeout time.Duration, cond func() bool) bool {
	deadline := e.deps.Clock.Now().Add(timeout)
	for {
		if cond() {
			return true
		}
		if !e.deps.Clock.Now().Before(deadline) {
			return false
		}
		e.deps.Clock.Sleep(e.settings.PollInterval)
	}
}

// waitForScreen waits until the target window title shows one of hints.
// The handle is re-resolved with a preference for the new screen, since
// some screens are separate top-level windows.
func waitForScreen(e *env, hints []string, timeout time.Duration) error {
	var last string
	ok := waitFor(e, timeout, func() bool {
		if h, err := e.deps.Locator.Find(e.target.Criteria.WithPrefer(hints...)); err == nil {
			e.target.Handle = h
		}
		var found bool
		found, last = titleContains(e, hints)
		return found
	})
	if !ok {
		return model.NewError(model.KindStepVerificationFailure, "screen", "window title %q does not show %v after %s", last, hints, timeout)
	}
	e.log.Debug("screen reached", zap.String("title", last))
	return nil
}
