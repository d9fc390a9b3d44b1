package diag

import (
	"errors"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mj1618/vbs-autopilot/internal/clock"
	"github.com/mj1618/vbs-autopilot/internal/model"
	"github.com/mj1618/vbs-autopilot/internal/platform/fake"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func profile(t *testing.T, origin model.Origin) *model.CoordinateProfile {
	t.Helper()
	p, err := model.NewCoordinateProfile("test", origin, map[string]model.Point{
		"ok_button": {X: 40, Y: 30},
	})
	require.NoError(t, err)
	return p
}

func TestAnnotate_MarksClientTarget(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 200, 100))

	// Window at (100,50) on screen, client area at (108,81).
	out := Annotate(img, image.Pt(100, 50), image.Pt(108, 81), profile(t, model.OriginClient))

	// Target centre is (148,111) on screen, (48,61) in the image.
	assert.Equal(t, markColor, out.RGBAAt(48, 61))
	assert.Equal(t, markColor, out.RGBAAt(48-markRadius, 61))
	assert.NotEqual(t, markColor, out.RGBAAt(10, 10))
}

func TestAnnotate_ScreenOriginIgnoresClientArea(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 200, 100))

	out := Annotate(img, image.Pt(0, 0), image.Pt(500, 500), profile(t, model.OriginScreen))

	assert.Equal(t, markColor, out.RGBAAt(40, 30))
}

func TestAnnotate_ClipsTargetsOutsideImage(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 20, 20))

	assert.NotPanics(t, func() {
		Annotate(img, image.Pt(1000, 1000), image.Pt(0, 0), profile(t, model.OriginScreen))
	})
}

func TestAnnotate_NilProfile(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 4, 4))
	out := Annotate(img, image.Point{}, image.Point{}, nil)
	assert.Equal(t, img.Bounds(), out.Bounds())
}

func newDesktop(t *testing.T) (*fake.Desktop, uintptr) {
	t.Helper()
	d := fake.NewDesktop(clock.NewFake(time.Date(2026, 10, 15, 1, 0, 0, 0, time.UTC)))
	hwnd := d.Open(model.Window{PID: 7, Title: "VBS Accounting", Bounds: [4]int{100, 50, 300, 200}, Visible: true})
	return d, hwnd
}

func TestSnapshot_WritesAnnotatedPNG(t *testing.T) {
	d, hwnd := newDesktop(t)
	dir := t.TempDir()
	s := NewSnapshotter(d, profile(t, model.OriginClient), dir, nil)
	var captured image.Rectangle
	s.Capture = func(r image.Rectangle) (*image.RGBA, error) {
		captured = r
		return image.NewRGBA(image.Rect(0, 0, r.Dx(), r.Dy())), nil
	}

	path, err := s.Snapshot("run-1", model.PhaseImport, model.WindowHandle{HWND: hwnd, PID: 7})
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "run-1", "import.png"), path)
	assert.Equal(t, image.Rect(100, 50, 400, 250), captured)
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	img, err := png.Decode(f)
	require.NoError(t, err)
	assert.Equal(t, 300, img.Bounds().Dx())
	// Client origin is (108,81); target (40,30) lands at (48,61).
	r, _, _, _ := img.At(48, 61).RGBA()
	assert.Equal(t, uint32(0xffff), r)
}

func TestSnapshot_Errors(t *testing.T) {
	d, hwnd := newDesktop(t)
	s := NewSnapshotter(d, nil, t.TempDir(), nil)
	s.Capture = func(image.Rectangle) (*image.RGBA, error) { return nil, errors.New("no display") }

	_, err := s.Snapshot("run", model.PhaseLogin, model.WindowHandle{HWND: hwnd})
	assert.ErrorContains(t, err, "no display")

	_, err = s.Snapshot("run", model.PhaseLogin, model.WindowHandle{HWND: 0xdead})
	assert.ErrorContains(t, err, "describe window")

	d.Update(hwnd, func(w *model.Window) { w.Minimized = true })
	_, err = s.Snapshot("run", model.PhaseLogin, model.WindowHandle{HWND: hwnd})
	assert.ErrorContains(t, err, "minimized")
}
