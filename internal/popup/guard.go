// Package popup waits for transient modal dialogs and dismisses them.
package popup

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/mj1618/vbs-autopilot/internal/clock"
	"github.com/mj1618/vbs-autopilot/internal/input"
	"github.com/mj1618/vbs-autopilot/internal/model"
	"github.com/mj1618/vbs-autopilot/internal/platform"
	"github.com/mj1618/vbs-autopilot/internal/strategy"
	"go.uber.org/zap"
)

// Spec describes one kind of popup.
type Spec struct {
	Name string

	// Patterns are matched against the window title and class.
	Patterns []*regexp.Regexp

	Timeout  time.Duration
	Required bool

	// Shortcut is the dialog's accelerator for its default button, e.g. alt+r.
	Shortcut *platform.KeyCombo
	// OKOffset is the client position of the OK button.
	OKOffset *model.Point

	// Mode overrides the guard's input mode when set.
	Mode input.Mode
}

// CompilePatterns compiles case-insensitive popup patterns.
func CompilePatterns(patterns ...string) ([]*regexp.Regexp, error) {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		if !strings.HasPrefix(p, "(?i)") {
			p = "(?i)" + p
		}
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, model.WrapError(model.KindConfigurationError, "popup pattern", err)
		}
		out = append(out, re)
	}
	return out, nil
}

// Matches reports whether w looks like this popup.
func (s Spec) Matches(w model.Window) bool {
	if !w.Visible {
		return false
	}
	for _, re := range s.Patterns {
		if re.MatchString(w.Title) || (w.Class != "" && re.MatchString(w.Class)) {
			return true
		}
	}
	return false
}

// Guard polls the window list for popups.
type Guard struct {
	ws  platform.WindowSystem
	drv *input.Driver
	clk clock.Clock
	log *zap.Logger

	PollInterval  time.Duration
	DismissSettle time.Duration
}

func NewGuard(ws platform.WindowSystem, drv *input.Driver, clk clock.Clock, log *zap.Logger) *Guard {
	if log == nil {
		log = zap.NewNop()
	}
	return &Guard{
		ws:            ws,
		drv:           drv,
		clk:           clk,
		log:           log.Named("popup"),
		PollInterval:  time.Second,
		DismissSettle: 500 * time.Millisecond,
	}
}

// WithDriver returns a copy of g sending input through drv.
func (g *Guard) WithDriver(drv *input.Driver) *Guard {
	cp := *g
	cp.drv = drv
	return &cp
}

var keyEnter = platform.MustKey("enter")

// AwaitAndDismiss polls once per PollInterval until a matching popup shows
// up and is dismissed, or spec.Timeout elapses. It returns true if a popup
// was dismissed. A required popup that never appears, or any popup that
// appears but cannot be dismissed, is a PopupTimeout error. An optional
// popup that never appears is not an error.
func (g *Guard) AwaitAndDismiss(spec Spec) (bool, error) {
	log := g.log.With(zap.String("popup", spec.Name))
	deadline := g.clk.Now().Add(spec.Timeout)
	seen := false
	for {
		w, found, err := g.find(spec)
		if err != nil {
			return false, err
		}
		if found {
			seen = true
			if how, ok := g.dismiss(spec, w); ok {
				log.Info("popup dismissed", zap.String("title", w.Title), zap.String("strategy", how))
				return true, nil
			}
			log.Warn("popup did not close", zap.String("title", w.Title))
		}
		if !g.clk.Now().Before(deadline) {
			break
		}
		g.clk.Sleep(g.PollInterval)
	}

	switch {
	case seen:
		return false, model.NewError(model.KindPopupTimeout, spec.Name, "popup appeared but could not be dismissed within %s", spec.Timeout)
	case spec.Required:
		return false, model.NewError(model.KindPopupTimeout, spec.Name, "required popup did not appear within %s", spec.Timeout)
	default:
		log.Debug("optional popup absent")
		return false, nil
	}
}

// Sweep dismisses the popup if it is showing right now, without waiting.
func (g *Guard) Sweep(spec Spec) (bool, error) {
	w, found, err := g.find(spec)
	if err != nil || !found {
		return false, err
	}
	how, ok := g.dismiss(spec, w)
	if !ok {
		return false, model.NewError(model.KindPopupTimeout, spec.Name, "popup %q could not be dismissed", w.Title)
	}
	g.log.Info("stray popup dismissed", zap.String("popup", spec.Name), zap.String("title", w.Title), zap.String("strategy", how))
	return true, nil
}

// Present reports whether a matching popup is showing. It sends no input.
func (g *Guard) Present(spec Spec) (bool, error) {
	_, found, err := g.find(spec)
	return found, err
}

func (g *Guard) find(spec Spec) (model.Window, bool, error) {
	wins, err := g.ws.Windows()
	if err != nil {
		return model.Window{}, false, model.WrapError(model.KindWindowNotFound, "enumerate windows", err)
	}
	for _, w := range wins {
		if spec.Matches(w) {
			return w, true, nil
		}
	}
	return model.Window{}, false, nil
}

type attempt struct {
	target *input.Target
	drv    *input.Driver
	window model.Window
}

// dismiss tries the accelerator, then Enter, then the OK button.
func (g *Guard) dismiss(spec Spec, w model.Window) (string, bool) {
	drv := g.drv
	if spec.Mode != "" {
		drv = drv.WithMode(spec.Mode)
	}
	a := attempt{
		target: &input.Target{Handle: w.Handle()},
		drv:    drv,
		window: w,
	}

	var strategies []strategy.Strategy[attempt]
	if spec.Shortcut != nil {
		combo := *spec.Shortcut
		strategies = append(strategies, strategy.New(fmt.Sprintf("shortcut %s", combo), func(a attempt) bool {
			return g.try(a, func() error { return a.drv.Key(a.target, combo) })
		}))
	}
	strategies = append(strategies, strategy.New("enter", func(a attempt) bool {
		return g.try(a, func() error { return a.drv.Key(a.target, keyEnter) })
	}))
	if spec.OKOffset != nil {
		pt := *spec.OKOffset
		strategies = append(strategies, strategy.New(fmt.Sprintf("click %s", pt), func(a attempt) bool {
			return g.try(a, func() error { return a.drv.Click(a.target, pt, false) })
		}))
	}
	return strategy.FirstOf(a, strategies...)
}

// try sends input and reports whether the popup went away afterwards.
func (g *Guard) try(a attempt, send func() error) bool {
	if err := send(); err != nil {
		if g.gone(a.window) {
			return true
		}
		g.log.Debug("dismissal input failed", zap.Error(err))
		return false
	}
	g.clk.Sleep(g.DismissSettle)
	return g.gone(a.window)
}

func (g *Guard) gone(w model.Window) bool {
	cur, err := g.ws.Describe(w.HWND)
	if err != nil {
		return true
	}
	return cur.PID != w.PID || !cur.Visible
}
