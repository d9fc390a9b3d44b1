// Package input delivers clicks and keystrokes to a specific window, either
// as foreground OS input or as messages posted to the window's queue.
package input

import (
	"fmt"
	"strings"
	"time"

	"github.com/mj1618/vbs-autopilot/internal/clock"
	"github.com/mj1618/vbs-autopilot/internal/locator"
	"github.com/mj1618/vbs-autopilot/internal/model"
	"github.com/mj1618/vbs-autopilot/internal/platform"
	"go.uber.org/zap"
)

// Mode selects how input reaches the window.
type Mode string

const (
	// Foreground moves the real cursor and brings the window to the front.
	Foreground Mode = "foreground"
	// Message posts button, char and key messages to the window handle.
	Message Mode = "message"
)

// ParseMode converts a config value to a Mode.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case Foreground:
		return Foreground, nil
	case Message, "direct", "postmessage":
		return Message, nil
	default:
		return "", fmt.Errorf("unknown input mode %q (expected foreground or message)", s)
	}
}

// Target is the live handle a phase drives, plus the criteria used to
// re-resolve it. Empty criteria means the window cannot be relocated.
type Target struct {
	Handle   model.WindowHandle
	Criteria locator.Criteria
}

// Driver sends input to Targets.
type Driver struct {
	ws      platform.WindowSystem
	in      platform.Inputter
	msg     platform.Messenger
	loc     *locator.Locator
	profile *model.CoordinateProfile
	clk     clock.Clock
	log     *zap.Logger
	mode    Mode

	// CharDelay separates typed characters.
	CharDelay time.Duration
	// ClickSettle is waited after every click.
	ClickSettle time.Duration
}

func New(p *platform.Provider, loc *locator.Locator, profile *model.CoordinateProfile, clk clock.Clock, log *zap.Logger) *Driver {
	if log == nil {
		log = zap.NewNop()
	}
	return &Driver{
		ws:          p.Windows,
		in:          p.Inputter,
		msg:         p.Messenger,
		loc:         loc,
		profile:     profile,
		clk:         clk,
		log:         log.Named("input"),
		mode:        Foreground,
		CharDelay:   50 * time.Millisecond,
		ClickSettle: 300 * time.Millisecond,
	}
}

// WithMode returns a copy of d using mode.
func (d *Driver) WithMode(mode Mode) *Driver {
	cp := *d
	cp.mode = mode
	cp.log = d.log.With(zap.String("mode", string(mode)))
	return &cp
}

func (d *Driver) Mode() Mode { return d.mode }

// Profile returns the coordinate profile targets are resolved against.
func (d *Driver) Profile() *model.CoordinateProfile { return d.profile }

// ClickTarget clicks the named profile target.
func (d *Driver) ClickTarget(t *Target, name string, double bool) error {
	pt, err := d.clientPoint(t, name)
	if err != nil {
		return err
	}
	d.log.Debug("click target", zap.String("target", name), zap.Stringer("at", pt))
	return d.Click(t, pt, double)
}

// Click clicks pt, given in client coordinates of the target window.
func (d *Driver) Click(t *Target, pt model.Point, double bool) error {
	if err := d.ensure(t); err != nil {
		return err
	}
	count := 1
	if double {
		count = 2
	}
	hwnd := t.Handle.HWND

	switch d.mode {
	case Message:
		if err := d.msg.PostClick(hwnd, pt.X, pt.Y, platform.MouseLeft, count); err != nil {
			return model.WrapError(model.KindInputInjectionFailure, "post click", err)
		}
	default:
		ox, oy, err := d.ws.ClientOrigin(hwnd)
		if err != nil {
			return model.WrapError(model.KindStaleHandle, "client origin", err)
		}
		if err := d.focus(hwnd); err != nil {
			return err
		}
		if err := d.in.Click(ox+pt.X, oy+pt.Y, platform.MouseLeft, count); err != nil {
			return model.WrapError(model.KindInputInjectionFailure, "click", err)
		}
	}
	d.clk.Sleep(d.ClickSettle)
	return nil
}

// Type sends text one character at a time.
func (d *Driver) Type(t *Target, text string) error {
	if err := d.ensure(t); err != nil {
		return err
	}
	hwnd := t.Handle.HWND
	if d.mode != Message {
		if err := d.focus(hwnd); err != nil {
			return err
		}
	}
	for i, r := range []rune(text) {
		if i > 0 {
			d.clk.Sleep(d.CharDelay)
		}
		var err error
		if d.mode == Message {
			err = d.msg.PostChar(hwnd, r)
		} else {
			err = d.in.TypeRune(r)
		}
		if err != nil {
			return model.WrapError(model.KindInputInjectionFailure, fmt.Sprintf("type character %d", i), err)
		}
	}
	return nil
}

// Key sends a single key combination.
func (d *Driver) Key(t *Target, combo platform.KeyCombo) error {
	if err := d.ensure(t); err != nil {
		return err
	}
	hwnd := t.Handle.HWND
	var err error
	if d.mode == Message {
		err = d.msg.PostKey(hwnd, combo)
	} else {
		if err := d.focus(hwnd); err != nil {
			return err
		}
		err = d.in.KeyCombo(combo)
	}
	if err != nil {
		return model.WrapError(model.KindInputInjectionFailure, "key "+combo.String(), err)
	}
	return nil
}

var (
	keySelectAll = platform.MustKey("ctrl+a")
	keyBackspace = platform.MustKey("backspace")
)

// Fill clicks a field, clears it and types text.
func (d *Driver) Fill(t *Target, name, text string) error {
	if err := d.ClickTarget(t, name, false); err != nil {
		return err
	}
	if err := d.Key(t, keySelectAll); err != nil {
		return err
	}
	if err := d.Key(t, keyBackspace); err != nil {
		return err
	}
	return d.Type(t, text)
}

// ensure revalidates the target handle, relocating it once if needed.
func (d *Driver) ensure(t *Target) error {
	if len(t.Criteria.TitleHints) == 0 {
		if !d.loc.IsAlive(t.Handle) {
			return model.NewError(model.KindStaleHandle, "revalidate", "window %s is gone", t.Handle)
		}
		return nil
	}
	h, err := d.loc.Revalidate(t.Handle, t.Criteria)
	if err != nil {
		return err
	}
	t.Handle = h
	return nil
}

func (d *Driver) focus(hwnd uintptr) error {
	if err := d.ws.SetForeground(hwnd); err != nil {
		return model.WrapError(model.KindInputInjectionFailure, "bring window to foreground", err)
	}
	return nil
}

// clientPoint resolves a profile target to client coordinates of t.
func (d *Driver) clientPoint(t *Target, name string) (model.Point, error) {
	pt, err := d.profile.Lookup(name)
	if err != nil {
		return model.Point{}, err
	}
	if d.profile.Origin() != model.OriginScreen {
		return pt, nil
	}
	if err := d.ensure(t); err != nil {
		return model.Point{}, err
	}
	ox, oy, err := d.ws.ClientOrigin(t.Handle.HWND)
	if err != nil {
		return model.Point{}, model.WrapError(model.KindStaleHandle, "client origin", err)
	}
	return model.Point{X: pt.X - ox, Y: pt.Y - oy}, nil
}
