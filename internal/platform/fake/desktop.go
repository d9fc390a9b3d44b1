// Package fake is an in-memory desktop implementing the platform
// interfaces. Input is recorded as events and handed to registered
// handlers, which script how the simulated applications react.
package fake

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/mj1618/vbs-autopilot/internal/clock"
	"github.com/mj1618/vbs-autopilot/internal/model"
	"github.com/mj1618/vbs-autopilot/internal/platform"
)

// Client area offset from the window's top-left corner (frame + caption).
const (
	FrameX = 8
	FrameY = 31
)

// ErrLocked is returned by foreground input while the session is locked.
var ErrLocked = errors.New("session is locked")

type EventKind string

const (
	EventClick EventKind = "click"
	EventChar  EventKind = "char"
	EventKey   EventKind = "key"
	EventClose EventKind = "close"
)

// Via records which input path produced an event.
const (
	ViaForeground = "foreground"
	ViaMessage    = "message"
)

// Event is one input delivered to a window. X and Y are client coordinates.
type Event struct {
	Kind   EventKind
	HWND   uintptr
	X, Y   int
	Count  int
	Button platform.MouseButton
	Rune   rune
	Key    platform.KeyCombo
	Via    string
}

// Desktop is a fake window system, foreground inputter, messenger and
// launcher. It is safe for concurrent use; handlers run without the lock
// held so they may call back into the Desktop.
type Desktop struct {
	mu       sync.Mutex
	clk      *clock.Fake
	order    []uintptr
	wins     map[uintptr]*model.Window
	normal   map[uintptr][2]int
	fg       uintptr
	next     uintptr
	locked   bool
	events   []Event
	handlers []func(Event)
	launches []string
	launchFn func(path string) (int, error)
	cursor   [2]int
}

var (
	_ platform.WindowSystem = (*Desktop)(nil)
	_ platform.Inputter     = (*Desktop)(nil)
	_ platform.Messenger    = (*Desktop)(nil)
	_ platform.Launcher     = (*Desktop)(nil)
)

func NewDesktop(clk *clock.Fake) *Desktop {
	return &Desktop{
		clk:    clk,
		wins:   make(map[uintptr]*model.Window),
		normal: make(map[uintptr][2]int),
		next:   0x1000,
	}
}

// Provider returns a platform.Provider backed by d.
func (d *Desktop) Provider() *platform.Provider {
	return &platform.Provider{Windows: d, Inputter: d, Messenger: d, Launcher: d}
}

// Clock returns the clock timers are scheduled on.
func (d *Desktop) Clock() *clock.Fake { return d.clk }

// After runs fn once delay of virtual time has passed.
func (d *Desktop) After(delay time.Duration, fn func()) {
	d.clk.AfterFunc(delay, fn)
}

// Open adds w on top of the z-order and gives it the foreground. A zero
// HWND is assigned; a zero client size is derived from the bounds.
func (d *Desktop) Open(w model.Window) uintptr {
	d.mu.Lock()
	defer d.mu.Unlock()
	if w.HWND == 0 {
		d.next += 0x10
		w.HWND = d.next
	}
	if w.ClientW == 0 && w.ClientH == 0 && !w.Minimized {
		w.ClientW = w.Bounds[2] - 2*FrameX
		w.ClientH = w.Bounds[3] - FrameY - FrameX
	}
	d.normal[w.HWND] = [2]int{w.Bounds[2] - 2*FrameX, w.Bounds[3] - FrameY - FrameX}
	cp := w
	d.wins[w.HWND] = &cp
	d.order = append([]uintptr{w.HWND}, d.order...)
	if w.Visible && !w.Minimized {
		d.fg = w.HWND
	}
	return w.HWND
}

// Update mutates a window in place. It reports false if hwnd is gone.
func (d *Desktop) Update(hwnd uintptr, fn func(w *model.Window)) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	w, ok := d.wins[hwnd]
	if !ok {
		return false
	}
	fn(w)
	return true
}

// Destroy removes hwnd without generating an event.
func (d *Desktop) Destroy(hwnd uintptr) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.remove(hwnd)
}

func (d *Desktop) remove(hwnd uintptr) {
	delete(d.wins, hwnd)
	delete(d.normal, hwnd)
	for i, h := range d.order {
		if h == hwnd {
			d.order = append(d.order[:i], d.order[i+1:]...)
			break
		}
	}
	if d.fg == hwnd {
		d.fg = 0
		for _, h := range d.order {
			if w := d.wins[h]; w.Visible && !w.Minimized {
				d.fg = h
				break
			}
		}
	}
}

// Window returns a snapshot of hwnd.
func (d *Desktop) Window(hwnd uintptr) (model.Window, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	w, ok := d.wins[hwnd]
	if !ok {
		return model.Window{}, false
	}
	return *w, true
}

// SetLocked simulates a locked workstation: foreground input fails,
// posted messages still arrive.
func (d *Desktop) SetLocked(locked bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.locked = locked
}

// OnEvent registers a handler called after every recorded event.
func (d *Desktop) OnEvent(fn func(Event)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers = append(d.handlers, fn)
}

// OnLaunch sets the behaviour of Launch.
func (d *Desktop) OnLaunch(fn func(path string) (int, error)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.launchFn = fn
}

// Events returns every recorded event.
func (d *Desktop) Events() []Event {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Event(nil), d.events...)
}

// EventsFor returns the events delivered to hwnd.
func (d *Desktop) EventsFor(hwnd uintptr) []Event {
	var out []Event
	for _, ev := range d.Events() {
		if ev.HWND == hwnd {
			out = append(out, ev)
		}
	}
	return out
}

// Launches returns the paths passed to Launch.
func (d *Desktop) Launches() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.launches...)
}

// Cursor returns the last cursor position set by foreground input.
func (d *Desktop) Cursor() (int, int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cursor[0], d.cursor[1]
}

func (d *Desktop) emit(ev Event) {
	d.mu.Lock()
	d.events = append(d.events, ev)
	handlers := append([]func(Event){}, d.handlers...)
	d.mu.Unlock()
	for _, h := range handlers {
		h(ev)
	}
}

// WindowSystem

func (d *Desktop) Windows() ([]model.Window, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]model.Window, 0, len(d.order))
	for _, h := range d.order {
		w := *d.wins[h]
		w.Focused = h == d.fg
		out = append(out, w)
	}
	return out, nil
}

func (d *Desktop) Describe(hwnd uintptr) (model.Window, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	w, ok := d.wins[hwnd]
	if !ok {
		return model.Window{}, platform.ErrNoWindow
	}
	cp := *w
	cp.Focused = hwnd == d.fg
	return cp, nil
}

func (d *Desktop) Restore(hwnd uintptr) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	w, ok := d.wins[hwnd]
	if !ok {
		return platform.ErrNoWindow
	}
	if w.Minimized {
		w.Minimized = false
		size := d.normal[hwnd]
		w.ClientW, w.ClientH = size[0], size[1]
	}
	w.Visible = true
	return nil
}

func (d *Desktop) SetForeground(hwnd uintptr) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.wins[hwnd]; !ok {
		return platform.ErrNoWindow
	}
	if d.locked {
		return ErrLocked
	}
	for i, h := range d.order {
		if h == hwnd {
			d.order = append([]uintptr{hwnd}, append(d.order[:i:i], d.order[i+1:]...)...)
			break
		}
	}
	d.fg = hwnd
	return nil
}

func (d *Desktop) Foreground() (uintptr, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.fg, nil
}

func (d *Desktop) ClientOrigin(hwnd uintptr) (int, int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	w, ok := d.wins[hwnd]
	if !ok {
		return 0, 0, platform.ErrNoWindow
	}
	return w.Bounds[0] + FrameX, w.Bounds[1] + FrameY, nil
}

func (d *Desktop) Close(hwnd uintptr) error {
	d.mu.Lock()
	if _, ok := d.wins[hwnd]; !ok {
		d.mu.Unlock()
		return platform.ErrNoWindow
	}
	d.remove(hwnd)
	d.mu.Unlock()
	d.emit(Event{Kind: EventClose, HWND: hwnd})
	return nil
}

// Inputter

func (d *Desktop) MoveMouse(x, y int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.locked {
		return ErrLocked
	}
	d.cursor = [2]int{x, y}
	return nil
}

func (d *Desktop) Click(x, y int, button platform.MouseButton, count int) error {
	d.mu.Lock()
	if d.locked {
		d.mu.Unlock()
		return ErrLocked
	}
	d.cursor = [2]int{x, y}
	hwnd, cx, cy := d.hitTest(x, y)
	d.mu.Unlock()
	d.emit(Event{Kind: EventClick, HWND: hwnd, X: cx, Y: cy, Count: count, Button: button, Via: ViaForeground})
	return nil
}

func (d *Desktop) TypeRune(r rune) error {
	fg, err := d.foregroundInput()
	if err != nil {
		return err
	}
	d.emit(Event{Kind: EventChar, HWND: fg, Rune: r, Via: ViaForeground})
	return nil
}

func (d *Desktop) KeyCombo(combo platform.KeyCombo) error {
	fg, err := d.foregroundInput()
	if err != nil {
		return err
	}
	d.emit(Event{Kind: EventKey, HWND: fg, Key: combo, Via: ViaForeground})
	return nil
}

func (d *Desktop) foregroundInput() (uintptr, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.locked {
		return 0, ErrLocked
	}
	return d.fg, nil
}

// hitTest finds the topmost visible window under a screen point.
func (d *Desktop) hitTest(x, y int) (uintptr, int, int) {
	for _, h := range d.order {
		w := d.wins[h]
		if !w.Visible || w.Minimized {
			continue
		}
		b := w.Bounds
		if x >= b[0] && x < b[0]+b[2] && y >= b[1] && y < b[1]+b[3] {
			return h, x - b[0] - FrameX, y - b[1] - FrameY
		}
	}
	return 0, x, y
}

// Messenger

func (d *Desktop) PostClick(hwnd uintptr, x, y int, button platform.MouseButton, count int) error {
	if err := d.exists(hwnd); err != nil {
		return err
	}
	d.emit(Event{Kind: EventClick, HWND: hwnd, X: x, Y: y, Count: count, Button: button, Via: ViaMessage})
	return nil
}

func (d *Desktop) PostChar(hwnd uintptr, r rune) error {
	if err := d.exists(hwnd); err != nil {
		return err
	}
	d.emit(Event{Kind: EventChar, HWND: hwnd, Rune: r, Via: ViaMessage})
	return nil
}

func (d *Desktop) PostKey(hwnd uintptr, combo platform.KeyCombo) error {
	if err := d.exists(hwnd); err != nil {
		return err
	}
	d.emit(Event{Kind: EventKey, HWND: hwnd, Key: combo, Via: ViaMessage})
	return nil
}

func (d *Desktop) exists(hwnd uintptr) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.wins[hwnd]; !ok {
		return fmt.Errorf("post to 0x%X: %w", hwnd, platform.ErrNoWindow)
	}
	return nil
}

// Launcher

func (d *Desktop) Launch(path string, args ...string) (int, error) {
	d.mu.Lock()
	d.launches = append(d.launches, path)
	fn := d.launchFn
	d.mu.Unlock()
	if fn == nil {
		return 0, fmt.Errorf("launch %s: no application installed", path)
	}
	return fn(path)
}
