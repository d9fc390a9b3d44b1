package config

import (
	"time"

	"github.com/mj1618/vbs-autopilot/internal/clock"
	"github.com/mj1618/vbs-autopilot/internal/input"
	"github.com/mj1618/vbs-autopilot/internal/locator"
	"github.com/mj1618/vbs-autopilot/internal/model"
	"github.com/mj1618/vbs-autopilot/internal/phase"
	"github.com/mj1618/vbs-autopilot/internal/platform"
	"github.com/mj1618/vbs-autopilot/internal/popup"
	"github.com/mj1618/vbs-autopilot/internal/scheduler"
	"github.com/mj1618/vbs-autopilot/internal/workflow"
	"go.uber.org/zap"
)

// Criteria returns the matching contract for the main window.
func (c *Config) Criteria() locator.Criteria {
	return locator.Criteria{
		TitleHints:   nonBlank(c.Target.TitleHints),
		ExcludeHints: nonBlank(c.Target.ExcludeHints),
		ProcessHints: nonBlank(c.Target.ProcessHints),
	}
}

// Context builds the run context for date.
func (c *Config) Context(date time.Time) model.WorkflowContext {
	creds := model.Credentials{
		CompanyCode:   c.Credentials.CompanyCode,
		FinancialYear: c.Credentials.FinancialYear,
	}
	return workflow.NewContext(c.Paths, creds, date)
}

// Deps builds the locator, input driver and popup guard the phases share.
func (c *Config) Deps(p *platform.Provider, profile *model.CoordinateProfile, clk clock.Clock, log *zap.Logger) phase.Deps {
	loc := locator.New(p.Windows, clk, log)
	loc.PollInterval = c.Timeouts.LocatorPoll
	loc.RestoreSettle = c.Timeouts.RestoreSettle

	drv := input.New(p, loc, profile, clk, log)
	drv.ClickSettle = c.Steps.ClickSettle
	drv.CharDelay = c.Steps.CharDelay

	guard := popup.NewGuard(p.Windows, drv, clk, log)
	guard.PollInterval = c.Timeouts.PopupPoll

	return phase.Deps{
		Windows:  p.Windows,
		Launcher: p.Launcher,
		Locator:  loc,
		Driver:   drv,
		Guard:    guard,
		Clock:    clk,
		Log:      log,
	}
}

func (c *Config) settings(mode string) (phase.Settings, error) {
	m, err := input.ParseMode(mode)
	if err != nil {
		return phase.Settings{}, configError("%v", err)
	}
	var stray []popup.Spec
	for _, p := range c.Popups.Stray {
		s, err := p.spec()
		if err != nil {
			return phase.Settings{}, configError("popups.%s: %v", p.Name, err)
		}
		stray = append(stray, s)
	}
	return phase.Settings{
		Criteria:       c.Criteria(),
		Mode:           m,
		StepAttempts:   c.Steps.Attempts,
		StepRetryDelay: c.Steps.RetryDelay,
		ScreenWait:     c.Timeouts.Screen,
		VerifyTimeout:  c.Timeouts.Verify,
		PollInterval:   c.Steps.PollInterval,
		StrayPopups:    stray,
	}, nil
}

// Phases builds Login, Navigate, Import and Report in workflow order.
func (c *Config) Phases(deps phase.Deps) ([]phase.Phase, error) {
	login, err := c.settings(c.Input.Login)
	if err != nil {
		return nil, err
	}
	navigate, err := c.settings(c.Input.Navigate)
	if err != nil {
		return nil, err
	}
	imp, err := c.settings(c.Input.Import)
	if err != nil {
		return nil, err
	}
	report, err := c.settings(c.Input.Report)
	if err != nil {
		return nil, err
	}
	importKeys, err := parseKeys(c.Target.ImportKeys)
	if err != nil {
		return nil, configError("target.import_keys: %v", err)
	}
	reportKeys, err := parseKeys(c.Target.ReportKeys)
	if err != nil {
		return nil, configError("target.report_keys: %v", err)
	}

	specs := make(map[string]popup.Spec, 4)
	for key, p := range map[string]PopupConfig{
		"security":    c.Popups.Security,
		"file_dialog": c.Popups.FileDialog,
		"import":      c.Popups.Import,
		"update":      c.Popups.Update,
	} {
		s, err := p.spec()
		if err != nil {
			return nil, configError("popups.%s: %v", key, err)
		}
		specs[key] = s
	}

	return []phase.Phase{
		phase.NewLogin(deps, phase.LoginConfig{
			Settings:      login,
			Executable:    c.Target.Executable,
			Args:          c.Target.Args,
			LoginHints:    nonBlank(c.Target.LoginHints),
			SecurityPopup: specs["security"],
			LaunchTimeout: c.Timeouts.Launch,
		}),
		phase.NewNavigate(deps, phase.NavigateConfig{
			Settings:    navigate,
			ScreenHints: nonBlank(c.Target.ImportHints),
			Accelerator: importKeys,
		}),
		phase.NewImport(deps, phase.ImportConfig{
			Settings:      imp,
			FileDialog:    specs["file_dialog"].Patterns,
			DialogTimeout: c.Timeouts.FileDialog,
			ImportPopup:   specs["import"],
			UpdatePopup:   specs["update"],
		}),
		phase.NewReport(deps, phase.ReportConfig{
			Settings:        report,
			ScreenHints:     nonBlank(c.Target.ReportHints),
			Accelerator:     reportKeys,
			DateLayout:      c.Report.DateLayout,
			DownloadsDir:    c.Paths.DownloadsDir,
			GenerateWait:    c.Timeouts.Generate,
			DownloadTimeout: c.Timeouts.Download,
		}),
	}, nil
}

// WorkflowOptions returns the orchestrator options the file sets.
func (c *Config) WorkflowOptions() workflow.Options {
	return workflow.Options{
		Retry:          c.Retry,
		PhaseDelay:     c.Workflow.PhaseDelay,
		CloseOnFailure: c.Workflow.CloseOnFailure,
	}
}

// Slot builds the run slot every trigger of this process shares, holding
// the machine-wide lock unless it is turned off.
func (c *Config) Slot(clk clock.Clock) *scheduler.Slot {
	slot := scheduler.NewSlot(c.Schedule.MinInterval, clk)
	if c.Schedule.LockAddr != LockOff {
		slot.WithHostLock(scheduler.NewHostLock(c.Schedule.LockAddr))
	}
	return slot
}
