package config

import (
	"net"
	"strings"

	"github.com/mj1618/vbs-autopilot/internal/input"
	"github.com/mj1618/vbs-autopilot/internal/model"
	"github.com/mj1618/vbs-autopilot/internal/platform"
	"github.com/mj1618/vbs-autopilot/internal/popup"
)

// Validate checks everything a run needs before any window is touched.
func (c *Config) Validate() error {
	switch {
	case len(nonBlank(c.Target.TitleHints)) == 0:
		return configError("target.title_hints must not be empty")
	case c.Profile.Path == "":
		return configError("profile.path is required")
	case c.Paths.InputRoot == "":
		return configError("paths.input_root is required")
	case c.Paths.OutputRoot == "":
		return configError("paths.output_root is required")
	case c.Paths.DownloadsDir == "":
		return configError("paths.downloads_dir is required")
	case c.Credentials.CompanyCode == "":
		return configError("credentials.company_code is required")
	case c.Credentials.FinancialYear == "":
		return configError("credentials.financial_year is required")
	case c.Steps.Attempts < 1:
		return configError("steps.attempts must be at least 1, got %d", c.Steps.Attempts)
	case c.Retry.MaxAttempts < 1:
		return configError("retry.attempts must be at least 1, got %d", c.Retry.MaxAttempts)
	}

	for phase, mode := range map[string]string{
		"login":    c.Input.Login,
		"navigate": c.Input.Navigate,
		"import":   c.Input.Import,
		"report":   c.Input.Report,
	} {
		if _, err := input.ParseMode(mode); err != nil {
			return configError("input.%s: %v", phase, err)
		}
	}

	for name, keys := range map[string][]string{"import_keys": c.Target.ImportKeys, "report_keys": c.Target.ReportKeys} {
		if _, err := parseKeys(keys); err != nil {
			return configError("target.%s: %v", name, err)
		}
	}

	popups := append([]PopupConfig{c.Popups.Security, c.Popups.FileDialog, c.Popups.Import, c.Popups.Update}, c.Popups.Stray...)
	for _, p := range popups {
		if _, err := p.spec(); err != nil {
			return configError("popups.%s: %v", p.Name, err)
		}
	}

	if c.Schedule.LockAddr != LockOff {
		if _, _, err := net.SplitHostPort(c.Schedule.LockAddr); err != nil {
			return configError("schedule.lock_addr: %v", err)
		}
	}

	if err := c.Logging.Validate(); err != nil {
		return configError("%v", err)
	}
	return nil
}

func parseKeys(keys []string) ([]platform.KeyCombo, error) {
	out := make([]platform.KeyCombo, 0, len(keys))
	for _, k := range keys {
		combo, err := platform.ParseKeyCombo(k)
		if err != nil {
			return nil, err
		}
		out = append(out, combo)
	}
	return out, nil
}

func (p PopupConfig) spec() (popup.Spec, error) {
	if len(nonBlank(p.Patterns)) == 0 {
		return popup.Spec{}, configError("no patterns")
	}
	patterns, err := popup.CompilePatterns(nonBlank(p.Patterns)...)
	if err != nil {
		return popup.Spec{}, err
	}
	s := popup.Spec{
		Name:     p.Name,
		Patterns: patterns,
		Timeout:  p.Timeout,
		Required: p.Required,
	}
	if p.Shortcut != "" {
		combo, err := platform.ParseKeyCombo(p.Shortcut)
		if err != nil {
			return popup.Spec{}, err
		}
		s.Shortcut = &combo
	}
	if p.OKOffset != nil {
		s.OKOffset = &model.Point{X: p.OKOffset.X, Y: p.OKOffset.Y}
	}
	if p.Mode != "" {
		mode, err := input.ParseMode(p.Mode)
		if err != nil {
			return popup.Spec{}, err
		}
		s.Mode = mode
	}
	return s, nil
}

func nonBlank(in []string) []string {
	var out []string
	for _, s := range in {
		if strings.TrimSpace(s) != "" {
			out = append(out, s)
		}
	}
	return out
}
