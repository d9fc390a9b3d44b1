// Package phasetest wires the workflow phases to the simulated application
// in internal/platform/fake, for tests that drive whole phases.
package phasetest

import (
	"os"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/mj1618/vbs-autopilot/internal/clock"
	"github.com/mj1618/vbs-autopilot/internal/input"
	"github.com/mj1618/vbs-autopilot/internal/locator"
	"github.com/mj1618/vbs-autopilot/internal/model"
	"github.com/mj1618/vbs-autopilot/internal/phase"
	"github.com/mj1618/vbs-autopilot/internal/platform"
	"github.com/mj1618/vbs-autopilot/internal/platform/fake"
	"github.com/mj1618/vbs-autopilot/internal/popup"
	"go.uber.org/zap"
)

// Date is the virtual "today" of every rig.
var Date = time.Date(2026, 10, 15, 1, 0, 0, 0, time.UTC)

// Targets is a profile covering every phase requirement, laid out for the
// simulated application's 1024x768 window.
var Targets = map[string]model.Point{
	phase.TargetCompanyCode:    {X: 200, Y: 120},
	phase.TargetFinancialYear:  {X: 200, Y: 160},
	phase.TargetLoginOK:        {X: 300, Y: 220},
	phase.TargetUtilitiesMenu:  {X: 60, Y: 10},
	phase.TargetDataImportItem: {X: 80, Y: 40},
	phase.TargetReportsMenu:    {X: 140, Y: 10},
	phase.TargetReportItem:     {X: 160, Y: 40},
	phase.TargetBrowseButton:   {X: 500, Y: 100},
	phase.TargetImportCheckbox: {X: 100, Y: 300},
	phase.TargetImportButton:   {X: 200, Y: 400},
	phase.TargetUpdateButton:   {X: 300, Y: 400},
	phase.TargetFromDate:       {X: 220, Y: 200},
	phase.TargetToDate:         {X: 220, Y: 240},
	phase.TargetGenerate:       {X: 400, Y: 500},
	phase.TargetExportPDF:      {X: 500, Y: 500},
}

// Criteria match the simulated main window.
var Criteria = locator.Criteria{
	TitleHints:   []string{"VBS Accounting"},
	ExcludeHints: []string{"security warning"},
	ProcessHints: []string{"vbs"},
}

// Rig is a simulated desktop with the application installed, plus the
// collaborators phases need.
type Rig struct {
	Clock     *clock.Fake
	Desktop   *fake.Desktop
	VBS       *fake.VBS
	Profile   *model.CoordinateProfile
	Deps      phase.Deps
	Context   model.WorkflowContext
	Root      string
	Downloads string
}

// New builds a rig under t.TempDir with the Excel source in place. The
// application is not running.
func New(t testing.TB, opts fake.VBSOptions) *Rig {
	t.Helper()
	clk := clock.NewFake(Date)
	d := fake.NewDesktop(clk)
	profile, err := model.NewCoordinateProfile("test", model.OriginClient, Targets)
	if err != nil {
		t.Fatalf("profile: %v", err)
	}

	root := t.TempDir()
	date := Date.Format("2006-01-02")
	wc := model.WorkflowContext{
		RunID:       "test-run",
		DateFolder:  date,
		Credentials: model.Credentials{CompanyCode: "ACME", FinancialYear: "2026-27"},
		ExcelPath:   filepath.Join(root, "input", date, "sales.xlsx"),
		PDFPath:     filepath.Join(root, "output", date, "ledger.pdf"),
	}
	downloads := filepath.Join(root, "Downloads")
	for _, dir := range []string{downloads, wc.ExcelDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
	}
	if err := os.WriteFile(wc.ExcelPath, []byte("sheet"), 0o644); err != nil {
		t.Fatalf("write excel: %v", err)
	}

	opts.Profile = profile
	if opts.DownloadsDir == "" {
		opts.DownloadsDir = downloads
	}
	vbs := fake.NewVBS(d, opts)

	log := zap.NewNop()
	loc := locator.New(d, clk, log)
	drv := input.New(d.Provider(), loc, profile, clk, log)
	return &Rig{
		Clock:   clk,
		Desktop: d,
		VBS:     vbs,
		Profile: profile,
		Deps: phase.Deps{
			Windows:  d,
			Launcher: d,
			Locator:  loc,
			Driver:   drv,
			Guard:    popup.NewGuard(d, drv, clk, log),
			Clock:    clk,
			Log:      log,
		},
		Context:   wc,
		Root:      root,
		Downloads: downloads,
	}
}

// WithLogger routes every collaborator's logs to log.
func (r *Rig) WithLogger(log *zap.Logger) *Rig {
	r.Deps.Log = log
	r.Deps.Locator = locator.New(r.Desktop, r.Clock, log)
	r.Deps.Driver = input.New(r.Desktop.Provider(), r.Deps.Locator, r.Profile, r.Clock, log)
	r.Deps.Guard = popup.NewGuard(r.Desktop, r.Deps.Driver, r.Clock, log)
	return r
}

func mustPatterns(patterns ...string) []*regexp.Regexp {
	res, err := popup.CompilePatterns(patterns...)
	if err != nil {
		panic(err)
	}
	return res
}

func settings(mode input.Mode) phase.Settings {
	return phase.Settings{Criteria: Criteria, Mode: mode}
}

func (r *Rig) LoginConfig() phase.LoginConfig {
	return phase.LoginConfig{
		Settings:   settings(input.Foreground),
		Executable: `C:\VBS\VBS.exe`,
		LoginHints: []string{"login"},
		SecurityPopup: popup.Spec{
			Name:     "security warning",
			Patterns: mustPatterns("security warning"),
			Timeout:  10 * time.Second,
		},
		LaunchTimeout: 30 * time.Second,
	}
}

func (r *Rig) NavigateConfig() phase.NavigateConfig {
	return phase.NavigateConfig{
		Settings:    settings(input.Foreground),
		ScreenHints: []string{"data import"},
		Accelerator: []platform.KeyCombo{platform.MustKey("alt+u"), platform.MustKey("i")},
	}
}

func (r *Rig) ImportConfig() phase.ImportConfig {
	return phase.ImportConfig{
		Settings:   settings(input.Message),
		FileDialog: mustPatterns("^open$"),
		ImportPopup: popup.Spec{
			Name:     "import confirmation",
			Patterns: mustPatterns("import successful"),
			Timeout:  30 * time.Second,
			Required: true,
		},
		UpdatePopup: popup.Spec{
			Name:     "update confirmation",
			Patterns: mustPatterns("update successful"),
			Timeout:  30 * time.Second,
			Required: true,
		},
	}
}

func (r *Rig) ReportConfig() phase.ReportConfig {
	return phase.ReportConfig{
		Settings:        settings(input.Message),
		ScreenHints:     []string{"report"},
		Accelerator:     []platform.KeyCombo{platform.MustKey("alt+r"), platform.MustKey("l")},
		DownloadsDir:    r.Downloads,
		DownloadTimeout: 20 * time.Second,
	}
}

func (r *Rig) Login() *phase.Login       { return phase.NewLogin(r.Deps, r.LoginConfig()) }
func (r *Rig) Navigate() *phase.Navigate { return phase.NewNavigate(r.Deps, r.NavigateConfig()) }
func (r *Rig) Import() *phase.Import     { return phase.NewImport(r.Deps, r.ImportConfig()) }
func (r *Rig) Report() *phase.Report     { return phase.NewReport(r.Deps, r.ReportConfig()) }

// Phases returns the four phases in workflow order.
func (r *Rig) Phases() []phase.Phase {
	return []phase.Phase{r.Login(), r.Navigate(), r.Import(), r.Report()}
}

// Handle returns the simulated main window's handle.
func (r *Rig) Handle() *model.WindowHandle {
	w, ok := r.Desktop.Window(r.VBS.Main())
	if !ok {
		return nil
	}
	h := w.Handle()
	return &h
}
