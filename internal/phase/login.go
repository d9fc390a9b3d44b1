package phase

import (
	"strings"
	"time"

	"github.com/mj1618/vbs-autopilot/internal/model"
	"github.com/mj1618/vbs-autopilot/internal/popup"
	"go.uber.org/zap"
)

// Profile targets clicked by Login.
const (
	TargetCompanyCode   = "company_code_field"
	TargetFinancialYear = "financial_year_field"
	TargetLoginOK       = "login_ok_button"
)

// LoginConfig configures the Login phase.
type LoginConfig struct {
	Settings

	Executable string
	Args       []string

	// LoginHints identify the login screen by title.
	LoginHints []string

	// SecurityPopup is the publisher warning shown on a cold start.
	SecurityPopup popup.Spec
	// LaunchTimeout bounds the wait for the first window after launch.
	LaunchTimeout time.Duration
}

// Login brings the application to a logged-in main window, launching it if
// no instance is running.
type Login struct {
	cfg LoginConfig
	m   machine
}

func NewLogin(deps Deps, cfg LoginConfig) *Login {
	cfg.Settings = cfg.Settings.withDefaults()
	if cfg.LaunchTimeout <= 0 {
		cfg.LaunchTimeout = 60 * time.Second
	}
	if len(cfg.LoginHints) == 0 {
		cfg.LoginHints = []string{"login"}
	}
	l := &Login{cfg: cfg}
	l.m = machine{
		name:     model.PhaseLogin,
		deps:     deps,
		settings: cfg.Settings,
		locate:   l.locate,
		steps:    l.steps,
		verify:   l.verify,
	}
	return l
}

func (l *Login) Name() model.Phase { return model.PhaseLogin }

func (l *Login) Requirements() []string {
	return []string{TargetCompanyCode, TargetFinancialYear, TargetLoginOK}
}

func (l *Login) Run(wc model.WorkflowContext, h *model.WindowHandle) model.PhaseResult {
	return l.m.run(wc, h)
}

// locate reuses a live window (warm start) or launches the application,
// clears the publisher warning and waits for its window (cold start).
func (l *Login) locate(e *env) error {
	if e.incoming != nil && e.deps.Locator.IsAlive(*e.incoming) {
		e.target.Handle = *e.incoming
		e.artifact(model.ArtifactLaunch, "warm")
		return nil
	}
	criteria := e.target.Criteria.WithPrefer(l.cfg.LoginHints...)
	if h, err := e.deps.Locator.Find(criteria); err == nil {
		e.log.Info("reusing running application", zap.Stringer("handle", h))
		e.target.Handle = h
		e.artifact(model.ArtifactLaunch, "warm")
		return nil
	} else if model.KindOf(err) == model.KindConfigurationError {
		return err
	}

	if l.cfg.Executable == "" {
		return model.NewError(model.KindConfigurationError, "launch", "application is not running and no executable is configured")
	}
	e.log.Info("launching application", zap.String("executable", l.cfg.Executable))
	pid, err := e.deps.Launcher.Launch(l.cfg.Executable, l.cfg.Args...)
	if err != nil {
		return model.WrapError(model.KindWindowNotFound, "launch", err)
	}
	e.log.Debug("process started", zap.Int("pid", pid))

	if len(l.cfg.SecurityPopup.Patterns) > 0 {
		if _, err := e.deps.Guard.WithDriver(e.drv).AwaitAndDismiss(l.cfg.SecurityPopup); err != nil {
			return err
		}
	}

	h, err := e.deps.Locator.Wait(criteria, l.cfg.LaunchTimeout)
	if err != nil {
		return err
	}
	e.target.Handle = h
	e.artifact(model.ArtifactLaunch, "cold")
	return nil
}

func (l *Login) onLoginScreen(e *env) bool {
	found, _ := titleContains(e, l.cfg.LoginHints)
	return found
}

func (l *Login) steps(e *env) ([]step, error) {
	if !l.onLoginScreen(e) {
		e.log.Info("session already logged in")
		return nil, nil
	}
	return []step{
		fillStep("enter company code", TargetCompanyCode, func(e *env) string { return e.wc.Credentials.CompanyCode }),
		fillStep("enter financial year", TargetFinancialYear, func(e *env) string { return e.wc.Credentials.FinancialYear }),
		clickStep("submit login", TargetLoginOK),
	}, nil
}

// verify waits for a window of the application that is not the login
// screen and adopts it as the phase's handle.
func (l *Login) verify(e *env) error {
	var title string
	ok := waitFor(e, l.cfg.VerifyTimeout, func() bool {
		cands, err := e.deps.Locator.Candidates(e.target.Criteria)
		if err != nil {
			return false
		}
		for _, c := range cands {
			title = c.Title
			if containsFold(c.Title, l.cfg.LoginHints) {
				continue
			}
			if e.deps.Locator.IsAlive(c.Handle()) {
				e.target.Handle = c.Handle()
				return true
			}
		}
		return false
	})
	if !ok {
		return model.NewError(model.KindPhaseVerificationFailure, "login", "no logged-in window after %s (last title %q)", l.cfg.VerifyTimeout, title)
	}
	return nil
}

func containsFold(s string, hints []string) bool {
	s = strings.ToLower(s)
	for _, h := range hints {
		if h != "" && strings.Contains(s, strings.ToLower(h)) {
			return true
		}
	}
	return false
}
