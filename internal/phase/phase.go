// Package phase drives the application through the four workflow stages.
// Every stage runs the same state machine
//
//	idle -> locating -> preparing -> executing -> verifying -> succeeded | failed
//
// and differs only in how it finds the window, which steps it executes and
// how it proves it reached its goal.
package phase

import (
	"time"

	"github.com/mj1618/vbs-autopilot/internal/clock"
	"github.com/mj1618/vbs-autopilot/internal/input"
	"github.com/mj1618/vbs-autopilot/internal/locator"
	"github.com/mj1618/vbs-autopilot/internal/model"
	"github.com/mj1618/vbs-autopilot/internal/platform"
	"github.com/mj1618/vbs-autopilot/internal/popup"
	"go.uber.org/zap"
)

// Phase is one stage of the workflow. Run never panics; every failure is
// reported in the result.
type Phase interface {
	Name() model.Phase
	// Requirements lists the profile targets the phase clicks.
	Requirements() []string
	Run(wc model.WorkflowContext, h *model.WindowHandle) model.PhaseResult
}

// State is a node of the phase state machine.
type State string

const (
	StateIdle      State = "idle"
	StateLocating  State = "locating"
	StatePreparing State = "preparing"
	StateExecuting State = "executing"
	StateVerifying State = "verifying"
	StateSucceeded State = "succeeded"
	StateFailed    State = "failed"
)

// Deps are the collaborators shared by all phases.
type Deps struct {
	Windows  platform.WindowSystem
	Launcher platform.Launcher
	Locator  *locator.Locator
	Driver   *input.Driver
	Guard    *popup.Guard
	Clock    clock.Clock
	Log      *zap.Logger
}

// Settings are the knobs every phase has.
type Settings struct {
	// Criteria identify the application's main window.
	Criteria locator.Criteria
	Mode     input.Mode

	// StepAttempts is how often a failing step is tried before the phase fails.
	StepAttempts   int
	StepRetryDelay time.Duration

	// ScreenWait bounds polling for a screen change after navigation input.
	ScreenWait time.Duration
	// VerifyTimeout bounds the final verification poll.
	VerifyTimeout time.Duration
	PollInterval  time.Duration

	// StrayPopups are optional dialogs cleared before executing.
	StrayPopups []popup.Spec
}

func (s Settings) withDefaults() Settings {
	if s.Mode == "" {
		s.Mode = input.Foreground
	}
	if s.StepAttempts <= 0 {
		s.StepAttempts = 3
	}
	if s.StepRetryDelay <= 0 {
		s.StepRetryDelay = 2 * time.Second
	}
	if s.ScreenWait <= 0 {
		s.ScreenWait = 10 * time.Second
	}
	if s.VerifyTimeout <= 0 {
		s.VerifyTimeout = 15 * time.Second
	}
	if s.PollInterval <= 0 {
		s.PollInterval = 500 * time.Millisecond
	}
	return s
}
