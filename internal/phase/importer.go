package phase

import (
	"fmt"
	"os"
	"regexp"
	"sync"
	"time"

	"github.com/mj1618/vbs-autopilot/internal/input"
	"github.com/mj1618/vbs-autopilot/internal/model"
	"github.com/mj1618/vbs-autopilot/internal/platform"
	"github.com/mj1618/vbs-autopilot/internal/popup"
	"go.uber.org/zap"
)

// Profile targets clicked by Import.
const (
	TargetBrowseButton   = "browse_button"
	TargetImportCheckbox = "import_checkbox"
	TargetImportButton   = "import_button"
	TargetUpdateButton   = "update_button"
)

// ImportConfig configures the Import phase.
type ImportConfig struct {
	Settings

	// FileDialog matches the file-selection dialog by title or class.
	FileDialog    []*regexp.Regexp
	DialogTimeout time.Duration

	// ImportPopup and UpdatePopup are the confirmations the application
	// shows when each operation finishes. Both are always required.
	ImportPopup popup.Spec
	UpdatePopup popup.Spec
}

// Import loads the day's Excel file and runs the update.
type Import struct {
	cfg ImportConfig
	m   machine

	// pending is the confirmation of an import or update that was started
	// but never confirmed. The application stays busy until it shows up,
	// so later attempts wait for it before sending any input.
	mu      sync.Mutex
	pending *pendingConfirmation
}

type pendingConfirmation struct {
	spec   popup.Spec
	handle model.WindowHandle
}

var (
	keyEnter     = platform.MustKey("enter")
	keyEscape    = platform.MustKey("escape")
	keySelectAll = platform.MustKey("ctrl+a")
)

func NewImport(deps Deps, cfg ImportConfig) *Import {
	cfg.Settings = cfg.Settings.withDefaults()
	if cfg.DialogTimeout <= 0 {
		cfg.DialogTimeout = 10 * time.Second
	}
	if len(cfg.FileDialog) == 0 {
		cfg.FileDialog = []*regexp.Regexp{regexp.MustCompile(`(?i)^open$`)}
	}
	cfg.ImportPopup.Required = true
	cfg.UpdatePopup.Required = true
	im := &Import{cfg: cfg}
	im.m = machine{
		name:     model.PhaseImport,
		deps:     deps,
		settings: cfg.Settings,
		locate:   reuseHandle,
		prepare:  im.prepare,
		steps:    im.steps,
		verify:   im.verify,
	}
	return im
}

func (im *Import) Name() model.Phase { return model.PhaseImport }

func (im *Import) Requirements() []string {
	return []string{TargetBrowseButton, TargetImportCheckbox, TargetImportButton, TargetUpdateButton}
}

func (im *Import) Run(wc model.WorkflowContext, h *model.WindowHandle) model.PhaseResult {
	return im.m.run(wc, h)
}

const (
	scratchDialog   = "import.dialog"
	scratchImported = "import.imported"
	scratchUpdated  = "import.updated"
)

func (im *Import) steps(e *env) ([]step, error) {
	return []step{
		{name: "check source file", attempts: 1, run: checkSourceFile},
		{name: "choose source file", run: im.chooseFile, verify: im.dialogClosed},
		clickStep("enable import option", TargetImportCheckbox),
		im.triggerStep("start import", TargetImportButton, im.cfg.ImportPopup),
		im.confirmStep("await import confirmation", im.cfg.ImportPopup, scratchImported),
		im.triggerStep("start update", TargetUpdateButton, im.cfg.UpdatePopup),
		im.confirmStep("await update confirmation", im.cfg.UpdatePopup, scratchUpdated),
	}, nil
}

// prepare waits out a confirmation left over from an earlier attempt and
// clears any confirmation already on screen, so the one awaited later is
// produced by this attempt's own click.
func (im *Import) prepare(e *env) error {
	if err := im.drainPending(e); err != nil {
		return err
	}
	guard := e.deps.Guard.WithDriver(e.drv)
	for _, spec := range []popup.Spec{im.cfg.ImportPopup, im.cfg.UpdatePopup} {
		if dismissed, err := guard.Sweep(spec); err != nil {
			return err
		} else if dismissed {
			e.log.Info("discarded stale confirmation", zap.String("popup", spec.Name))
		}
	}
	return prepareWindow(e)
}

func (im *Import) drainPending(e *env) error {
	im.mu.Lock()
	p := im.pending
	im.mu.Unlock()
	if p == nil {
		return nil
	}
	if p.handle != e.target.Handle {
		e.log.Info("application window changed, dropping pending confirmation",
			zap.String("popup", p.spec.Name), zap.Stringer("was", p.handle))
		im.setPending(nil)
		return nil
	}
	e.log.Info("waiting for confirmation from an earlier attempt", zap.String("popup", p.spec.Name))
	if _, err := e.deps.Guard.WithDriver(e.drv).AwaitAndDismiss(p.spec); err != nil {
		return fmt.Errorf("application still busy from an earlier attempt: %w", err)
	}
	im.setPending(nil)
	e.log.Info("discarded stale confirmation", zap.String("popup", p.spec.Name))
	return nil
}

func (im *Import) setPending(p *pendingConfirmation) {
	im.mu.Lock()
	defer im.mu.Unlock()
	im.pending = p
}

// triggerStep clicks a button that makes the application busy until spec
// shows up. It is never retried, since a second click would queue a
// second operation.
func (im *Import) triggerStep(name, target string, spec popup.Spec) step {
	return step{name: name, attempts: 1, run: func(e *env) error {
		if err := e.drv.ClickTarget(e.target, target, false); err != nil {
			return err
		}
		im.setPending(&pendingConfirmation{spec: spec, handle: e.target.Handle})
		return nil
	}}
}

// confirmStep waits for the confirmation of the preceding trigger.
func (im *Import) confirmStep(name string, spec popup.Spec, key string) step {
	return awaitPopupStep(name, spec, func(e *env) {
		im.setPending(nil)
		e.scratch[key] = true
	})
}

func checkSourceFile(e *env) error {
	info, err := os.Stat(e.wc.ExcelPath)
	switch {
	case os.IsNotExist(err):
		return model.NewError(model.KindStepVerificationFailure, "import", "file not found: %s", e.wc.ExcelPath)
	case err != nil:
		return model.WrapError(model.KindStepVerificationFailure, "import", err)
	case info.IsDir():
		return model.NewError(model.KindStepVerificationFailure, "import", "file not found: %s is a directory", e.wc.ExcelPath)
	}
	return nil
}

func (im *Import) findDialog(e *env) (model.Window, bool) {
	spec := popup.Spec{Patterns: im.cfg.FileDialog}
	wins, err := e.deps.Windows.Windows()
	if err != nil {
		return model.Window{}, false
	}
	for _, w := range wins {
		if w.PID == e.target.Handle.PID && spec.Matches(w) {
			return w, true
		}
	}
	return model.Window{}, false
}

// chooseFile opens the file dialog and picks the source file. Retries
// start over from a fresh dialog.
func (im *Import) chooseFile(e *env) error {
	if err := im.openDialog(e); err != nil {
		return err
	}
	return im.selectFile(e)
}

// openDialog clicks Browse unless a file dialog is already up, and waits
// for the dialog.
func (im *Import) openDialog(e *env) error {
	if _, ok := im.findDialog(e); !ok {
		if err := e.drv.ClickTarget(e.target, TargetBrowseButton, false); err != nil {
			return err
		}
	}
	var dlg model.Window
	if !waitFor(e, im.cfg.DialogTimeout, func() bool {
		var ok bool
		dlg, ok = im.findDialog(e)
		return ok
	}) {
		return model.NewError(model.KindStepVerificationFailure, "import", "file dialog did not open within %s", im.cfg.DialogTimeout)
	}
	e.scratch[scratchDialog] = &input.Target{Handle: dlg.Handle()}
	e.log.Debug("file dialog open", zap.String("title", dlg.Title))
	return nil
}

// selectFile navigates the dialog to the date folder and picks the file.
func (im *Import) selectFile(e *env) error {
	dlg, _ := e.scratch[scratchDialog].(*input.Target)
	if dlg == nil {
		return model.NewError(model.KindStaleHandle, "import", "file dialog handle missing")
	}
	for _, text := range []string{e.wc.ExcelDir(), e.wc.ExcelName()} {
		if err := e.drv.Key(dlg, keySelectAll); err != nil {
			return err
		}
		if err := e.drv.Type(dlg, text); err != nil {
			return err
		}
		if err := e.drv.Key(dlg, keyEnter); err != nil {
			return err
		}
		e.deps.Clock.Sleep(e.settings.PollInterval)
	}
	return nil
}

func (im *Import) dialogClosed(e *env) error {
	if waitFor(e, im.cfg.DialogTimeout, func() bool { _, open := im.findDialog(e); return !open }) {
		return nil
	}
	// Leave the screen usable for the retry, which opens a new dialog.
	if dlg, _ := e.scratch[scratchDialog].(*input.Target); dlg != nil {
		_ = e.drv.Key(dlg, keyEscape)
	}
	delete(e.scratch, scratchDialog)
	return model.NewError(model.KindStepVerificationFailure, "import", "file dialog still open after selecting %s", e.wc.ExcelPath)
}

func (im *Import) verify(e *env) error {
	imported, _ := e.scratch[scratchImported].(bool)
	updated, _ := e.scratch[scratchUpdated].(bool)
	switch {
	case !imported:
		return model.NewError(model.KindPhaseVerificationFailure, "import", "import was not confirmed by the application")
	case !updated:
		return model.NewError(model.KindPhaseVerificationFailure, "import", "update was not confirmed by the application")
	}
	e.artifact(model.ArtifactExcelFile, e.wc.ExcelPath)
	return nil
}
