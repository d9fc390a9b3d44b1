package phase_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/mj1618/vbs-autopilot/internal/model"
	"github.com/mj1618/vbs-autopilot/internal/phase"
	"github.com/mj1618/vbs-autopilot/internal/phase/phasetest"
	"github.com/mj1618/vbs-autopilot/internal/platform/fake"
	"github.com/mj1618/vbs-autopilot/internal/retry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

var fullRun = []string{"idle", "locating", "preparing", "executing", "verifying", "succeeded"}

func requireSuccess(t *testing.T, res model.PhaseResult) {
	t.Helper()
	require.Truef(t, res.Success, "phase %s failed: %+v", res.Phase, res.Errors)
	require.NotNil(t, res.Handle)
	assert.Equal(t, fullRun, res.States)
}

func requireFailure(t *testing.T, res model.PhaseResult, kind model.ErrorKind) model.PhaseError {
	t.Helper()
	require.False(t, res.Success)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, kind, res.Errors[0].Kind, res.Errors[0].Message)
	assert.Equal(t, "failed", res.States[len(res.States)-1])
	assert.Nil(t, res.Handle)
	return res.Errors[0]
}

// loggedIn starts the rig's application logged in and on the main screen.
func loggedIn(t *testing.T, opts fake.VBSOptions) (*phasetest.Rig, *model.WindowHandle) {
	t.Helper()
	rig := phasetest.New(t, opts)
	rig.VBS.StartLoggedIn("ACME")
	return rig, rig.Handle()
}

func TestLogin_ColdStartLaunchesAndLogsIn(t *testing.T) {
	rig := phasetest.New(t, fake.VBSOptions{})

	res := rig.Login().Run(rig.Context, nil)

	requireSuccess(t, res)
	assert.Equal(t, "cold", res.Artifacts[model.ArtifactLaunch])
	assert.Equal(t, 1, rig.VBS.Launches())
	assert.Equal(t, "main", rig.VBS.State())
	assert.Equal(t, "ACME", rig.VBS.Field(phase.TargetCompanyCode))
	assert.Equal(t, "2026-27", rig.VBS.Field(phase.TargetFinancialYear))
	assert.Equal(t, rig.VBS.Main(), res.Handle.HWND)

	w, ok := rig.Desktop.Window(res.Handle.HWND)
	require.True(t, ok)
	assert.Equal(t, "VBS Accounting - [ACME]", w.Title)
}

func TestLogin_WarmStartSkipsLaunch(t *testing.T) {
	rig, h := loggedIn(t, fake.VBSOptions{})

	res := rig.Login().Run(rig.Context, h)

	requireSuccess(t, res)
	assert.Equal(t, "warm", res.Artifacts[model.ArtifactLaunch])
	assert.Zero(t, rig.VBS.Launches())
	assert.Equal(t, *h, *res.Handle)
	assert.Empty(t, rig.Desktop.EventsFor(h.HWND), "logged-in session needs no input")
}

func TestLogin_FindsRunningLoginWindow(t *testing.T) {
	rig := phasetest.New(t, fake.VBSOptions{})
	rig.VBS.StartAtLogin(false)

	res := rig.Login().Run(rig.Context, nil)

	requireSuccess(t, res)
	assert.Equal(t, "warm", res.Artifacts[model.ArtifactLaunch])
	assert.Zero(t, rig.VBS.Launches())
	assert.Equal(t, "main", rig.VBS.State())
}

func TestLogin_RestoresMinimizedWindow(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	rig := phasetest.New(t, fake.VBSOptions{}).WithLogger(zap.New(core))
	hwnd := rig.VBS.StartAtLogin(true)

	res := rig.Login().Run(rig.Context, nil)

	requireSuccess(t, res)
	w, _ := rig.Desktop.Window(hwnd)
	assert.False(t, w.Minimized)
	assert.Equal(t, 1, logs.FilterMessage("restoring minimized window").Len())
}

func TestLogin_NoWindowAfterLaunch(t *testing.T) {
	rig := phasetest.New(t, fake.VBSOptions{NoSecurityPopup: true})

	res := rig.Login().Run(rig.Context, nil)

	requireFailure(t, res, model.KindWindowNotFound)
	assert.Equal(t, 1, rig.VBS.Launches())
}

func TestLogin_LockedSessionFailsForegroundInput(t *testing.T) {
	rig := phasetest.New(t, fake.VBSOptions{})
	rig.VBS.StartAtLogin(false)
	rig.Desktop.SetLocked(true)

	res := rig.Login().Run(rig.Context, nil)

	requireFailure(t, res, model.KindInputInjectionFailure)
	assert.Equal(t, "login", rig.VBS.State())
}

func TestLogin_MissingExecutableIsConfigurationError(t *testing.T) {
	rig := phasetest.New(t, fake.VBSOptions{})
	cfg := rig.LoginConfig()
	cfg.Executable = ""

	res := phase.NewLogin(rig.Deps, cfg).Run(rig.Context, nil)

	requireFailure(t, res, model.KindConfigurationError)
	assert.Empty(t, rig.Desktop.Launches())
}

func TestNavigate_UsesAccelerator(t *testing.T) {
	rig, h := loggedIn(t, fake.VBSOptions{})

	res := rig.Navigate().Run(rig.Context, h)

	requireSuccess(t, res)
	assert.Equal(t, "import", rig.VBS.State())
	for _, ev := range rig.Desktop.EventsFor(h.HWND) {
		assert.NotEqual(t, fake.EventClick, ev.Kind, "accelerator path should not click")
	}
}

func TestNavigate_FallsBackToMenuClicks(t *testing.T) {
	rig, h := loggedIn(t, fake.VBSOptions{NoAccelerators: true})

	res := rig.Navigate().Run(rig.Context, h)

	requireSuccess(t, res)
	assert.Equal(t, "import", rig.VBS.State())
	var clicks int
	for _, ev := range rig.Desktop.EventsFor(h.HWND) {
		if ev.Kind == fake.EventClick {
			clicks++
		}
	}
	assert.Equal(t, 2, clicks)
}

func TestNavigate_AlreadyOnScreenSendsNoInput(t *testing.T) {
	rig, h := loggedIn(t, fake.VBSOptions{})
	requireSuccess(t, rig.Navigate().Run(rig.Context, h))
	before := len(rig.Desktop.EventsFor(h.HWND))

	res := rig.Navigate().Run(rig.Context, h)

	requireSuccess(t, res)
	assert.Len(t, rig.Desktop.EventsFor(h.HWND), before)
}

func TestNavigate_WithoutHandleIsConfigurationError(t *testing.T) {
	rig, _ := loggedIn(t, fake.VBSOptions{})

	res := rig.Navigate().Run(rig.Context, nil)

	requireFailure(t, res, model.KindConfigurationError)
	assert.Equal(t, []string{"idle", "locating", "failed"}, res.States)
}

func TestNavigate_ScreenNeverOpens(t *testing.T) {
	rig, h := loggedIn(t, fake.VBSOptions{NoAccelerators: true})
	cfg := rig.NavigateConfig()
	cfg.StepAttempts = 2
	// The import screen opens but never matches these hints.
	cfg.ScreenHints = []string{"payroll"}

	res := phase.NewNavigate(rig.Deps, cfg).Run(rig.Context, h)

	perr := requireFailure(t, res, model.KindStepVerificationFailure)
	assert.Contains(t, perr.Message, "open data import screen")
}

func onImportScreen(t *testing.T, opts fake.VBSOptions) (*phasetest.Rig, *model.WindowHandle) {
	t.Helper()
	rig, h := loggedIn(t, opts)
	res := rig.Navigate().Run(rig.Context, h)
	requireSuccess(t, res)
	return rig, res.Handle
}

func TestImport_SelectsFileImportsAndUpdates(t *testing.T) {
	rig, h := onImportScreen(t, fake.VBSOptions{})
	before := len(rig.Desktop.EventsFor(h.HWND))

	res := rig.Import().Run(rig.Context, h)

	requireSuccess(t, res)
	file, imported, updated := rig.VBS.Imported()
	assert.Equal(t, rig.Context.ExcelPath, file)
	assert.True(t, imported)
	assert.True(t, updated)
	assert.Equal(t, rig.Context.ExcelPath, res.Artifacts[model.ArtifactExcelFile])
	assert.Empty(t, rig.VBS.Violations(), "no input while the application is busy")
	for _, ev := range rig.Desktop.EventsFor(h.HWND)[before:] {
		assert.Equal(t, fake.ViaMessage, ev.Via)
	}
}

func TestImport_MissingFileFailsBeforeDialog(t *testing.T) {
	rig, h := onImportScreen(t, fake.VBSOptions{})
	require.NoError(t, os.Remove(rig.Context.ExcelPath))

	res := rig.Import().Run(rig.Context, h)

	perr := requireFailure(t, res, model.KindStepVerificationFailure)
	assert.Contains(t, perr.Message, "file not found: "+rig.Context.ExcelPath)
	wins, err := rig.Desktop.Windows()
	require.NoError(t, err)
	for _, w := range wins {
		assert.NotEqual(t, fake.FileDialogTitle, w.Title)
	}
	_, imported, _ := rig.VBS.Imported()
	assert.False(t, imported)
}

func TestImport_MissingConfirmationIsPopupTimeout(t *testing.T) {
	rig, h := onImportScreen(t, fake.VBSOptions{ImportDelay: time.Minute})
	cfg := rig.ImportConfig()
	cfg.ImportPopup.Timeout = 10 * time.Second

	res := phase.NewImport(rig.Deps, cfg).Run(rig.Context, h)

	requireFailure(t, res, model.KindPopupTimeout)
}

func TestImport_RetryWaitsForEarlierConfirmation(t *testing.T) {
	rig, h := onImportScreen(t, fake.VBSOptions{ImportDelay: 45 * time.Second})
	core, logs := observer.New(zap.InfoLevel)
	rig.WithLogger(zap.New(core))
	im := rig.Import()

	res := retry.WithRetry(func() model.PhaseResult { return im.Run(rig.Context, h) },
		retry.Policy{MaxAttempts: 3, Delay: 10 * time.Second}, rig.Clock, nil)

	require.False(t, res.Success)
	require.Len(t, res.Errors, 3)
	for i, perr := range res.Errors {
		assert.Equal(t, model.KindPopupTimeout, perr.Kind, perr.Message)
		assert.Contains(t, perr.Message, "await import confirmation", "attempt %d", i+1)
	}
	assert.Empty(t, rig.VBS.Violations(), "no input while the application is busy")
	assert.Equal(t, 2, logs.FilterMessage("waiting for confirmation from an earlier attempt").Len())
	assert.Equal(t, 2, logs.FilterMessage("discarded stale confirmation").Len())
	_, _, updated := rig.VBS.Imported()
	assert.False(t, updated, "update is never started without its own import confirmation")
}

func TestImport_ConfirmationsAreAlwaysRequired(t *testing.T) {
	rig, h := onImportScreen(t, fake.VBSOptions{ImportDelay: 90 * time.Second})
	cfg := rig.ImportConfig()
	cfg.ImportPopup.Required = false
	cfg.UpdatePopup.Required = false

	res := phase.NewImport(rig.Deps, cfg).Run(rig.Context, h)

	perr := requireFailure(t, res, model.KindPopupTimeout)
	assert.Contains(t, perr.Message, "await import confirmation")
	assert.Empty(t, rig.VBS.Violations())
	_, _, updated := rig.VBS.Imported()
	assert.False(t, updated)
}

func TestImport_StuckFileDialogIsReopened(t *testing.T) {
	rig, h := onImportScreen(t, fake.VBSOptions{StuckDialogs: 1})

	res := rig.Import().Run(rig.Context, h)

	requireSuccess(t, res)
	assert.Equal(t, 2, rig.VBS.Dialogs())
	file, imported, updated := rig.VBS.Imported()
	assert.Equal(t, rig.Context.ExcelPath, file)
	assert.True(t, imported)
	assert.True(t, updated)
}

func onReportReady(t *testing.T, opts fake.VBSOptions) (*phasetest.Rig, *model.WindowHandle) {
	t.Helper()
	rig, h := onImportScreen(t, opts)
	res := rig.Import().Run(rig.Context, h)
	requireSuccess(t, res)
	return rig, res.Handle
}

func TestReport_ExportsAndMovesPDF(t *testing.T) {
	rig, h := onReportReady(t, fake.VBSOptions{})

	res := rig.Report().Run(rig.Context, h)

	requireSuccess(t, res)
	assert.Equal(t, "report", rig.VBS.State())
	assert.Equal(t, "01/10/2026", rig.VBS.Field(phase.TargetFromDate))
	assert.Equal(t, "15/10/2026", rig.VBS.Field(phase.TargetToDate))
	assert.Equal(t, "01/10/2026 - 15/10/2026", res.Artifacts[model.ArtifactDateRange])
	assert.Equal(t, rig.Context.PDFPath, res.Artifacts[model.ArtifactPDFFile])
	assert.FileExists(t, rig.Context.PDFPath)
	assert.NoFileExists(t, filepath.Join(rig.Downloads, fake.ReportFileName))
	assert.Empty(t, rig.VBS.Violations())
}

func TestReport_IgnoresExistingDownloads(t *testing.T) {
	rig, h := onReportReady(t, fake.VBSOptions{SkipPDF: true})
	old := filepath.Join(rig.Downloads, "old.pdf")
	require.NoError(t, os.WriteFile(old, []byte("%PDF"), 0o644))

	res := rig.Report().Run(rig.Context, h)

	perr := requireFailure(t, res, model.KindStepVerificationFailure)
	assert.True(t, strings.Contains(perr.Message, "no new PDF"), perr.Message)
	assert.FileExists(t, old)
	assert.NoFileExists(t, rig.Context.PDFPath)
	assert.Empty(t, res.Artifacts[model.ArtifactPDFFile])
}

func TestReport_MissingDownloadsDirIsConfigurationError(t *testing.T) {
	rig, h := onReportReady(t, fake.VBSOptions{})
	cfg := rig.ReportConfig()
	cfg.DownloadsDir = ""

	res := phase.NewReport(rig.Deps, cfg).Run(rig.Context, h)

	requireFailure(t, res, model.KindConfigurationError)
}

func TestPhases_RecoverFromPanics(t *testing.T) {
	rig := phasetest.New(t, fake.VBSOptions{})
	deps := rig.Deps
	deps.Locator = nil

	res := phase.NewLogin(deps, rig.LoginConfig()).Run(rig.Context, nil)

	require.False(t, res.Success)
	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0].Message, "unexpected failure")
	assert.Equal(t, "failed", res.States[len(res.States)-1])
}

func TestRequirements_CoverProfile(t *testing.T) {
	rig := phasetest.New(t, fake.VBSOptions{})
	var all []string
	for _, p := range rig.Phases() {
		require.NotEmpty(t, p.Requirements(), p.Name())
		all = append(all, p.Requirements()...)
	}
	require.NoError(t, rig.Profile.Require(all...))
	assert.Len(t, all, len(phasetest.Targets))
}

func TestDateRange(t *testing.T) {
	tests := []struct {
		name     string
		now      time.Time
		layout   string
		wantFrom string
		wantTo   string
	}{
		{"mid month", time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC), "", "01/10/2026", "15/10/2026"},
		{"first of month", time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), "", "01/03/2026", "01/03/2026"},
		{"iso layout", time.Date(2026, 12, 31, 23, 0, 0, 0, time.UTC), "2006-01-02", "2026-12-01", "2026-12-31"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			from, to := phase.DateRange(tt.now, tt.layout)
			if from != tt.wantFrom || to != tt.wantTo {
				t.Errorf("DateRange() = %s..%s, want %s..%s", from, to, tt.wantFrom, tt.wantTo)
			}
		})
	}
}
