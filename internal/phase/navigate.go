package phase

import (
	"github.com/mj1618/vbs-autopilot/internal/model"
	"github.com/mj1618/vbs-autopilot/internal/platform"
	"github.com/mj1618/vbs-autopilot/internal/strategy"
	"go.uber.org/zap"
)

// Profile targets clicked by Navigate.
const (
	TargetUtilitiesMenu  = "utilities_menu"
	TargetDataImportItem = "data_import_item"
)

// NavigateConfig configures the Navigate phase.
type NavigateConfig struct {
	Settings

	// ScreenHints identify the data import screen by title.
	ScreenHints []string
	// Accelerator is the keyboard path to the screen, e.g. alt+u, i.
	Accelerator []platform.KeyCombo
}

// Navigate opens the data import screen from the main window.
type Navigate struct {
	cfg NavigateConfig
	m   machine
}

func NewNavigate(deps Deps, cfg NavigateConfig) *Navigate {
	cfg.Settings = cfg.Settings.withDefaults()
	if len(cfg.ScreenHints) == 0 {
		cfg.ScreenHints = []string{"data import"}
	}
	n := &Navigate{cfg: cfg}
	n.m = machine{
		name:     model.PhaseNavigate,
		deps:     deps,
		settings: cfg.Settings,
		locate:   reuseHandle,
		steps:    n.steps,
		verify:   n.verify,
	}
	return n
}

func (n *Navigate) Name() model.Phase { return model.PhaseNavigate }

func (n *Navigate) Requirements() []string {
	return []string{TargetUtilitiesMenu, TargetDataImportItem}
}

func (n *Navigate) Run(wc model.WorkflowContext, h *model.WindowHandle) model.PhaseResult {
	return n.m.run(wc, h)
}

func (n *Navigate) steps(e *env) ([]step, error) {
	return []step{{name: "open data import screen", run: n.open}}, nil
}

// open reaches the import screen through the menu accelerator, falling
// back to clicking the menu.
func (n *Navigate) open(e *env) error {
	delete(e.scratch, "navigate.err")
	if found, _ := titleContains(e, n.cfg.ScreenHints); found {
		e.log.Info("already on data import screen")
		return nil
	}

	var strategies []strategy.Strategy[*env]
	if len(n.cfg.Accelerator) > 0 {
		strategies = append(strategies, strategy.New("menu accelerator", func(e *env) bool {
			for _, k := range n.cfg.Accelerator {
				if err := e.drv.Key(e.target, k); err != nil {
					e.log.Debug("accelerator input failed", zap.Error(err))
					return false
				}
			}
			return waitForScreen(e, n.cfg.ScreenHints, n.cfg.ScreenWait) == nil
		}))
	}
	strategies = append(strategies, strategy.New("menu click", func(e *env) bool {
		if err := e.drv.ClickTarget(e.target, TargetUtilitiesMenu, false); err != nil {
			e.scratch["navigate.err"] = err
			return false
		}
		if err := e.drv.ClickTarget(e.target, TargetDataImportItem, false); err != nil {
			e.scratch["navigate.err"] = err
			return false
		}
		return waitForScreen(e, n.cfg.ScreenHints, n.cfg.ScreenWait) == nil
	}))

	how, ok := strategy.FirstOf(e, strategies...)
	if !ok {
		if err, _ := e.scratch["navigate.err"].(error); err != nil {
			return err
		}
		return model.NewError(model.KindStepVerificationFailure, "navigate", "data import screen did not open")
	}
	e.log.Info("data import screen opened", zap.String("strategy", how))
	return nil
}

func (n *Navigate) verify(e *env) error {
	if found, title := titleContains(e, n.cfg.ScreenHints); !found {
		return model.NewError(model.KindPhaseVerificationFailure, "navigate", "expected data import screen, window title is %q", title)
	}
	return nil
}
