// Package diag captures and annotates the application window for
// post-mortem inspection and profile calibration.
package diag

import (
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"

	"github.com/kbinani/screenshot"
	"github.com/mj1618/vbs-autopilot/internal/model"
	"github.com/mj1618/vbs-autopilot/internal/platform"
	"go.uber.org/zap"
)

// CaptureFunc grabs a rectangle of the virtual screen.
type CaptureFunc func(r image.Rectangle) (*image.RGBA, error)

// Snapshotter writes annotated PNG captures of a window. It satisfies
// workflow.Snapshotter.
type Snapshotter struct {
	ws      platform.WindowSystem
	profile *model.CoordinateProfile
	dir     string
	log     *zap.Logger

	// Capture defaults to screenshot.CaptureRect.
	Capture CaptureFunc
}

// NewSnapshotter writes captures below dir.
func NewSnapshotter(ws platform.WindowSystem, profile *model.CoordinateProfile, dir string, log *zap.Logger) *Snapshotter {
	if log == nil {
		log = zap.NewNop()
	}
	return &Snapshotter{
		ws:      ws,
		profile: profile,
		dir:     dir,
		log:     log.Named("diag"),
		Capture: screenshot.CaptureRect,
	}
}

// Snapshot captures h and writes <dir>/<runID>/<phase>.png.
func (s *Snapshotter) Snapshot(runID string, failed model.Phase, h model.WindowHandle) (string, error) {
	img, err := s.CaptureWindow(h.HWND)
	if err != nil {
		return "", err
	}
	name := string(failed)
	if name == "" {
		name = "window"
	}
	path := filepath.Join(s.dir, runID, name+".png")
	if err := WritePNG(path, img); err != nil {
		return "", err
	}
	s.log.Info("failure screenshot saved", zap.String("path", path))
	return path, nil
}

// CaptureWindow grabs the window's bounds and draws the profile targets
// on top.
func (s *Snapshotter) CaptureWindow(hwnd uintptr) (*image.RGBA, error) {
	w, err := s.ws.Describe(hwnd)
	if err != nil {
		return nil, fmt.Errorf("describe window: %w", err)
	}
	if w.Minimized {
		return nil, fmt.Errorf("window %#x is minimized", hwnd)
	}
	rect := image.Rect(w.Bounds[0], w.Bounds[1], w.Bounds[0]+w.Bounds[2], w.Bounds[1]+w.Bounds[3])
	if rect.Empty() {
		return nil, fmt.Errorf("window %#x has empty bounds", hwnd)
	}
	cx, cy, err := s.ws.ClientOrigin(hwnd)
	if err != nil {
		return nil, fmt.Errorf("client origin: %w", err)
	}
	img, err := s.Capture(rect)
	if err != nil {
		return nil, fmt.Errorf("capture: %w", err)
	}
	return Annotate(img, rect.Min, image.Pt(cx, cy), s.profile), nil
}

// WritePNG encodes img to path, creating parent directories.
func WritePNG(path string, img image.Image) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return fmt.Errorf("encode png: %w", err)
	}
	return f.Close()
}
