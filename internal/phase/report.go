package phase

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mj1618/vbs-autopilot/internal/model"
	"github.com/mj1618/vbs-autopilot/internal/platform"
	"github.com/mj1618/vbs-autopilot/internal/strategy"
	"go.uber.org/zap"
)

// Profile targets clicked by Report.
const (
	TargetReportsMenu = "reports_menu"
	TargetReportItem  = "report_item"
	TargetFromDate    = "from_date_field"
	TargetToDate      = "to_date_field"
	TargetGenerate    = "generate_button"
	TargetExportPDF   = "export_pdf_button"
)

// DefaultDateLayout is the date format the report form accepts.
const DefaultDateLayout = "02/01/2006"

// ReportConfig configures the Report phase.
type ReportConfig struct {
	Settings

	// ScreenHints identify the report screen by title.
	ScreenHints []string
	Accelerator []platform.KeyCombo

	DateLayout string
	// DownloadsDir is where the application saves exported files.
	DownloadsDir string

	// GenerateWait is how long the application is left alone after
	// generating the report.
	GenerateWait time.Duration
	// DownloadTimeout bounds the wait for the exported PDF.
	DownloadTimeout time.Duration
}

// Report generates the month-to-date report, exports it as PDF and moves
// the file to the run's destination.
type Report struct {
	cfg ReportConfig
	m   machine
}

func NewReport(deps Deps, cfg ReportConfig) *Report {
	cfg.Settings = cfg.Settings.withDefaults()
	if len(cfg.ScreenHints) == 0 {
		cfg.ScreenHints = []string{"report"}
	}
	if cfg.DateLayout == "" {
		cfg.DateLayout = DefaultDateLayout
	}
	if cfg.GenerateWait <= 0 {
		cfg.GenerateWait = 5 * time.Second
	}
	if cfg.DownloadTimeout <= 0 {
		cfg.DownloadTimeout = 30 * time.Second
	}
	r := &Report{cfg: cfg}
	r.m = machine{
		name:     model.PhaseReport,
		deps:     deps,
		settings: cfg.Settings,
		locate:   reuseHandle,
		steps:    r.steps,
		verify:   r.verify,
	}
	return r
}

func (r *Report) Name() model.Phase { return model.PhaseReport }

func (r *Report) Requirements() []string {
	return []string{TargetReportsMenu, TargetReportItem, TargetFromDate, TargetToDate, TargetGenerate, TargetExportPDF}
}

func (r *Report) Run(wc model.WorkflowContext, h *model.WindowHandle) model.PhaseResult {
	return r.m.run(wc, h)
}

// DateRange returns the first day of now's month and now, formatted.
func DateRange(now time.Time, layout string) (from, to string) {
	if layout == "" {
		layout = DefaultDateLayout
	}
	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	return first.Format(layout), now.Format(layout)
}

const (
	scratchFrom     = "report.from"
	scratchTo       = "report.to"
	scratchBaseline = "report.baseline"
	scratchPDF      = "report.pdf"
	scratchOpenErr  = "report.err"
)

func (r *Report) steps(e *env) ([]step, error) {
	if r.cfg.DownloadsDir == "" {
		return nil, model.NewError(model.KindConfigurationError, "report", "downloads directory is not configured")
	}
	from, to := DateRange(e.deps.Clock.Now(), r.cfg.DateLayout)
	e.scratch[scratchFrom], e.scratch[scratchTo] = from, to
	e.artifact(model.ArtifactDateRange, from+" - "+to)

	return []step{
		{name: "open report screen", run: r.open},
		fillStep("enter from date", TargetFromDate, func(e *env) string { return from }),
		fillStep("enter to date", TargetToDate, func(e *env) string { return to }),
		{name: "generate report", run: r.generate},
		{name: "export pdf", attempts: 1, run: r.export, verify: r.awaitDownload},
		{name: "move pdf", run: r.move},
	}, nil
}

func (r *Report) open(e *env) error {
	delete(e.scratch, scratchOpenErr)
	if found, _ := titleContains(e, r.cfg.ScreenHints); found {
		return nil
	}

	var strategies []strategy.Strategy[*env]
	if len(r.cfg.Accelerator) > 0 {
		strategies = append(strategies, strategy.New("menu accelerator", func(e *env) bool {
			for _, k := range r.cfg.Accelerator {
				if err := e.drv.Key(e.target, k); err != nil {
					return false
				}
			}
			return waitForScreen(e, r.cfg.ScreenHints, r.cfg.ScreenWait) == nil
		}))
	}
	strategies = append(strategies, strategy.New("menu click", func(e *env) bool {
		for _, t := range []string{TargetReportsMenu, TargetReportItem} {
			if err := e.drv.ClickTarget(e.target, t, false); err != nil {
				e.scratch[scratchOpenErr] = err
				return false
			}
		}
		return waitForScreen(e, r.cfg.ScreenHints, r.cfg.ScreenWait) == nil
	}))

	how, ok := strategy.FirstOf(e, strategies...)
	if !ok {
		if err, _ := e.scratch[scratchOpenErr].(error); err != nil {
			return err
		}
		return model.NewError(model.KindStepVerificationFailure, "report", "report screen did not open")
	}
	e.log.Info("report screen opened", zap.String("strategy", how))
	return nil
}

func (r *Report) generate(e *env) error {
	if err := e.drv.ClickTarget(e.target, TargetGenerate, false); err != nil {
		return err
	}
	e.deps.Clock.Sleep(r.cfg.GenerateWait)
	return nil
}

func (r *Report) export(e *env) error {
	baseline, err := snapshotPDFs(r.cfg.DownloadsDir)
	if err != nil {
		return model.WrapError(model.KindConfigurationError, "read downloads", err)
	}
	e.scratch[scratchBaseline] = baseline
	return e.drv.ClickTarget(e.target, TargetExportPDF, false)
}

// awaitDownload waits for a PDF that was not in the baseline snapshot, or
// one whose modification time changed.
func (r *Report) awaitDownload(e *env) error {
	baseline, _ := e.scratch[scratchBaseline].(map[string]time.Time)
	var found string
	ok := waitFor(e, r.cfg.DownloadTimeout, func() bool {
		now, err := snapshotPDFs(r.cfg.DownloadsDir)
		if err != nil {
			return false
		}
		found = newestChanged(baseline, now)
		return found != ""
	})
	if !ok {
		return model.NewError(model.KindStepVerificationFailure, "report", "no new PDF in %s after %s", r.cfg.DownloadsDir, r.cfg.DownloadTimeout)
	}
	e.scratch[scratchPDF] = found
	e.log.Info("report downloaded", zap.String("file", found))
	return nil
}

func (r *Report) move(e *env) error {
	src, _ := e.scratch[scratchPDF].(string)
	if src == "" {
		return model.NewError(model.KindStepVerificationFailure, "report", "no downloaded PDF to move")
	}
	if err := moveFile(src, e.wc.PDFPath); err != nil {
		return model.WrapError(model.KindStepVerificationFailure, "move pdf", err)
	}
	return nil
}

func (r *Report) verify(e *env) error {
	info, err := os.Stat(e.wc.PDFPath)
	if err != nil {
		return fmt.Errorf("report not at destination: %w", err)
	}
	if info.Size() == 0 {
		return fmt.Errorf("report at %s is empty", e.wc.PDFPath)
	}
	e.artifact(model.ArtifactPDFFile, e.wc.PDFPath)
	return nil
}

func snapshotPDFs(dir string) (map[string]time.Time, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	out := make(map[string]time.Time)
	for _, ent := range entries {
		if ent.IsDir() || !strings.EqualFold(filepath.Ext(ent.Name()), ".pdf") {
			continue
		}
		info, err := ent.Info()
		if err != nil {
			continue
		}
		out[filepath.Join(dir, ent.Name())] = info.ModTime()
	}
	return out, nil
}

func newestChanged(before, after map[string]time.Time) string {
	var best string
	var bestTime time.Time
	for path, mod := range after {
		if prev, ok := before[path]; ok && !mod.After(prev) {
			continue
		}
		if best == "" || mod.After(bestTime) {
			best, bestTime = path, mod
		}
	}
	return best
}
