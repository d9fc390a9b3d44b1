// Package locator finds the target application's top-level window and keeps
// window handles honest: every handle is revalidated before use and a stale
// one is re-resolved at most once.
package locator

import (
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/mj1618/vbs-autopilot/internal/clock"
	"github.com/mj1618/vbs-autopilot/internal/model"
	"github.com/mj1618/vbs-autopilot/internal/platform"
	"go.uber.org/zap"
)

// Criteria selects a window. All matching is case-insensitive substring
// matching.
type Criteria struct {
	// TitleHints: the title must contain at least one.
	TitleHints []string `yaml:"title_hints" json:"title_hints"`

	// ExcludeHints: the title must contain none.
	ExcludeHints []string `yaml:"exclude_hints" json:"exclude_hints"`

	// ProcessHints: when set, the process image name must contain one.
	ProcessHints []string `yaml:"process_hints" json:"process_hints"`

	// Prefer ranks matches; a title containing an earlier entry wins.
	Prefer []string `yaml:"prefer,omitempty" json:"prefer,omitempty"`
}

// WithPrefer returns a copy of c with a different preference order.
func (c Criteria) WithPrefer(prefer ...string) Criteria {
	c.Prefer = prefer
	return c
}

// Validate rejects criteria that would match arbitrary windows.
func (c Criteria) Validate() error {
	if len(nonEmpty(c.TitleHints)) == 0 {
		return model.NewError(model.KindConfigurationError, "locator", "no title hints configured")
	}
	return nil
}

// Matches reports whether w satisfies c, ignoring preference.
func (c Criteria) Matches(w model.Window) bool {
	if !w.Visible {
		return false
	}
	title := strings.ToLower(w.Title)
	if !containsAny(title, c.TitleHints) {
		return false
	}
	if containsAny(title, c.ExcludeHints) {
		return false
	}
	if len(nonEmpty(c.ProcessHints)) > 0 && !containsAny(strings.ToLower(w.Process), c.ProcessHints) {
		return false
	}
	return true
}

// rank is the index of the first preferred hint in the title, or
// len(Prefer) when none match.
func (c Criteria) rank(w model.Window) int {
	title := strings.ToLower(w.Title)
	for i, p := range c.Prefer {
		if p != "" && strings.Contains(title, strings.ToLower(p)) {
			return i
		}
	}
	return len(c.Prefer)
}

// Candidate is a matching window with its preference rank (lower is better).
type Candidate struct {
	model.Window `yaml:",inline"`

	Rank int `yaml:"rank" json:"rank"`
}

// Locator resolves windows through a platform.WindowSystem.
type Locator struct {
	ws  platform.WindowSystem
	clk clock.Clock
	log *zap.Logger

	// PollInterval is the spacing of Wait polls.
	PollInterval time.Duration
	// RestoreSettle is how long a restored window gets to repaint.
	RestoreSettle time.Duration
}

func New(ws platform.WindowSystem, clk clock.Clock, log *zap.Logger) *Locator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Locator{
		ws:            ws,
		clk:           clk,
		log:           log.Named("locator"),
		PollInterval:  time.Second,
		RestoreSettle: 500 * time.Millisecond,
	}
}

// Candidates returns every matching window, best first: by preference
// rank, then the foreground window, then z-order.
func (l *Locator) Candidates(c Criteria) ([]Candidate, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	wins, err := l.ws.Windows()
	if err != nil {
		return nil, model.WrapError(model.KindWindowNotFound, "enumerate windows", err)
	}
	var out []Candidate
	for _, w := range wins {
		if c.Matches(w) {
			out = append(out, Candidate{Window: w, Rank: c.rank(w)})
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Rank != out[j].Rank {
			return out[i].Rank < out[j].Rank
		}
		return out[i].Focused && !out[j].Focused
	})
	return out, nil
}

// Find returns the best matching window or a WindowNotFound error.
func (l *Locator) Find(c Criteria) (model.WindowHandle, error) {
	cands, err := l.Candidates(c)
	if err != nil {
		return model.WindowHandle{}, err
	}
	if len(cands) == 0 {
		return model.WindowHandle{}, model.NewError(model.KindWindowNotFound, "find",
			"no visible window with title containing %v (excluding %v) owned by %v",
			c.TitleHints, c.ExcludeHints, c.ProcessHints)
	}
	best := cands[0]
	l.log.Debug("window found",
		zap.String("title", best.Title),
		zap.Uintptr("hwnd", best.HWND),
		zap.Int("pid", best.PID),
		zap.Int("candidates", len(cands)))
	return best.Handle(), nil
}

// Wait polls Find until it succeeds or timeout elapses.
func (l *Locator) Wait(c Criteria, timeout time.Duration) (model.WindowHandle, error) {
	deadline := l.clk.Now().Add(timeout)
	for {
		h, err := l.Find(c)
		if err == nil {
			return h, nil
		}
		if model.KindOf(err) == model.KindConfigurationError {
			return model.WindowHandle{}, err
		}
		if !l.clk.Now().Before(deadline) {
			return model.WindowHandle{}, model.NewError(model.KindWindowNotFound, "wait",
				"no window matching %v appeared within %s", c.TitleHints, timeout)
		}
		l.clk.Sleep(l.PollInterval)
	}
}

// IsAlive reports whether h still refers to the same visible window with a
// usable client area. A minimized window is restored and checked again.
func (l *Locator) IsAlive(h model.WindowHandle) bool {
	if h.IsZero() {
		return false
	}
	w, err := l.ws.Describe(h.HWND)
	if err != nil {
		return false
	}
	if h.PID != 0 && w.PID != h.PID {
		// The handle value was recycled by another process.
		return false
	}
	if !w.Visible {
		return false
	}
	if !w.Minimized && w.HasClientArea() {
		return true
	}

	l.log.Info("restoring minimized window", zap.Uintptr("hwnd", h.HWND), zap.String("title", w.Title))
	if err := l.ws.Restore(h.HWND); err != nil {
		return false
	}
	l.clk.Sleep(l.RestoreSettle)
	w, err = l.ws.Describe(h.HWND)
	if err != nil {
		return false
	}
	return w.Visible && !w.Minimized && w.HasClientArea()
}

// Revalidate returns h if it is alive, otherwise makes one attempt to
// locate a replacement with c. Failure is a StaleHandle error.
func (l *Locator) Revalidate(h model.WindowHandle, c Criteria) (model.WindowHandle, error) {
	if l.IsAlive(h) {
		return h, nil
	}
	nh, err := l.Find(c)
	if err != nil {
		if errors.Is(err, model.ErrConfiguration) {
			return model.WindowHandle{}, err
		}
		return model.WindowHandle{}, model.WrapError(model.KindStaleHandle, "revalidate "+h.String(), err)
	}
	if !l.IsAlive(nh) {
		return model.WindowHandle{}, model.NewError(model.KindStaleHandle, "revalidate "+h.String(),
			"replacement window %s is not usable", nh)
	}
	l.log.Info("window handle relocated", zap.Stringer("old", h), zap.Stringer("new", nh))
	return nh, nil
}

func containsAny(s string, hints []string) bool {
	for _, h := range hints {
		if h != "" && strings.Contains(s, strings.ToLower(h)) {
			return true
		}
	}
	return false
}

func nonEmpty(in []string) []string {
	var out []string
	for _, s := range in {
		if strings.TrimSpace(s) != "" {
			out = append(out, s)
		}
	}
	return out
}
