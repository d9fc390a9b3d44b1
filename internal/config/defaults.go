package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/mj1618/vbs-autopilot/internal/input"
	"github.com/mj1618/vbs-autopilot/internal/logging"
	"github.com/mj1618/vbs-autopilot/internal/phase"
	"github.com/mj1618/vbs-autopilot/internal/scheduler"
	"github.com/mj1618/vbs-autopilot/internal/workflow"
)

func setDefault[T comparable](v *T, def T) {
	var zero T
	if *v == zero {
		*v = def
	}
}

func setDefaultSlice(v *[]string, def ...string) {
	if len(*v) == 0 {
		*v = def
	}
}

// applyDefaults sets default values for missing configuration fields.
func applyDefaults(cfg *Config) {
	t := &cfg.Target
	setDefaultSlice(&t.TitleHints, "VBS")
	setDefaultSlice(&t.ExcludeHints, "security warning")
	setDefaultSlice(&t.ProcessHints, "vbs")
	setDefaultSlice(&t.LoginHints, "login")
	setDefaultSlice(&t.ImportHints, "data import")
	setDefaultSlice(&t.ReportHints, "report")
	setDefaultSlice(&t.ImportKeys, "alt+u", "i")
	setDefaultSlice(&t.ReportKeys, "alt+r", "l")

	p := &cfg.Paths
	setDefault(&p.ExcelName, "{date}.xlsx")
	setDefault(&p.PDFName, "ledger-{date}.pdf")
	setDefault(&p.DateFolderLayout, workflow.DefaultDateFolderLayout)
	if p.DownloadsDir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			p.DownloadsDir = filepath.Join(home, "Downloads")
		}
	}

	cfg.Retry = cfg.Retry.ApplyDefaults()

	s := &cfg.Steps
	setDefault(&s.Attempts, 3)
	setDefault(&s.RetryDelay, 2*time.Second)
	setDefault(&s.ClickSettle, 300*time.Millisecond)
	setDefault(&s.CharDelay, 50*time.Millisecond)
	setDefault(&s.PollInterval, 500*time.Millisecond)

	to := &cfg.Timeouts
	setDefault(&to.Launch, 60*time.Second)
	setDefault(&to.Screen, 10*time.Second)
	setDefault(&to.Verify, 15*time.Second)
	setDefault(&to.FileDialog, 10*time.Second)
	setDefault(&to.Generate, 5*time.Second)
	setDefault(&to.Download, 60*time.Second)
	setDefault(&to.LocatorPoll, time.Second)
	setDefault(&to.PopupPoll, time.Second)
	setDefault(&to.RestoreSettle, 500*time.Millisecond)

	in := &cfg.Input
	setDefault(&in.Login, string(input.Foreground))
	setDefault(&in.Navigate, string(input.Foreground))
	setDefault(&in.Import, string(input.Message))
	setDefault(&in.Report, string(input.Message))

	pop := &cfg.Popups
	popupDefaults(&pop.Security, "security warning", 15*time.Second, true, "alt+r", "security warning")
	popupDefaults(&pop.FileDialog, "file dialog", cfg.Timeouts.FileDialog, false, "", "^open$")
	popupDefaults(&pop.Import, "import confirmation", 2*time.Minute, true, "", `import.*(success|complete)`)
	popupDefaults(&pop.Update, "update confirmation", 2*time.Minute, true, "", `update.*(success|complete)`)
	for i := range pop.Stray {
		popupDefaults(&pop.Stray[i], "stray popup", time.Second, false, "")
	}

	setDefault(&cfg.Report.DateLayout, phase.DefaultDateLayout)
	setDefault(&cfg.Workflow.PhaseDelay, 2*time.Second)

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = logging.DefaultConfig().Level
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = logging.DefaultConfig().Format
	}

	setDefault(&cfg.Diagnostics.Dir, "diagnostics")
	setDefault(&cfg.Notify.SubjectPrefix, "[VBS]")
	setDefault(&cfg.Schedule.MinInterval, time.Minute)
	setDefault(&cfg.Schedule.LockAddr, scheduler.DefaultLockAddr)
}

func popupDefaults(p *PopupConfig, name string, timeout time.Duration, required bool, shortcut string, patterns ...string) {
	setDefault(&p.Name, name)
	setDefault(&p.Timeout, timeout)
	setDefault(&p.Shortcut, shortcut)
	if len(p.Patterns) == 0 {
		p.Patterns = patterns
		// Required only defaults along with the patterns it belongs to.
		p.Required = required
	}
}
