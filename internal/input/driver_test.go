package input

import (
	"testing"
	"time"

	"github.com/mj1618/vbs-autopilot/internal/clock"
	"github.com/mj1618/vbs-autopilot/internal/locator"
	"github.com/mj1618/vbs-autopilot/internal/model"
	"github.com/mj1618/vbs-autopilot/internal/platform"
	"github.com/mj1618/vbs-autopilot/internal/platform/fake"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var criteria = locator.Criteria{TitleHints: []string{"VBS"}, ProcessHints: []string{"vbs"}}

type fixture struct {
	clk    *clock.Fake
	d      *fake.Desktop
	driver *Driver
	target *Target
}

func newFixture(t *testing.T, origin model.Origin) *fixture {
	t.Helper()
	clk := clock.NewFake(time.Unix(0, 0))
	d := fake.NewDesktop(clk)
	profile, err := model.NewCoordinateProfile("test", origin, map[string]model.Point{
		"ok_button": {X: 40, Y: 30},
		"field":     {X: 120, Y: 60},
	})
	require.NoError(t, err)
	loc := locator.New(d, clk, zap.NewNop())
	hwnd := d.Open(model.Window{
		PID: 7, Title: "VBS Accounting", Process: "VBS.exe",
		Bounds: [4]int{200, 100, 640, 480}, Visible: true,
	})
	return &fixture{
		clk:    clk,
		d:      d,
		driver: New(d.Provider(), loc, profile, clk, zap.NewNop()),
		target: &Target{Handle: model.WindowHandle{HWND: hwnd, PID: 7}, Criteria: criteria},
	}
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		in      string
		want    Mode
		wantErr bool
	}{
		{"foreground", Foreground, false},
		{"Message", Message, false},
		{"direct", Message, false},
		{"robot", "", true},
	}
	for _, tt := range tests {
		got, err := ParseMode(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseMode(%q) = (%q, %v), want (%q, err=%v)", tt.in, got, err, tt.want, tt.wantErr)
		}
	}
}

func TestClickTarget_ForegroundUsesScreenCoordinates(t *testing.T) {
	f := newFixture(t, model.OriginClient)
	other := f.d.Open(model.Window{Title: "Editor", Bounds: [4]int{0, 0, 50, 50}, Visible: true})
	require.NoError(t, f.d.SetForeground(other))

	require.NoError(t, f.driver.ClickTarget(f.target, "ok_button", false))

	x, y := f.d.Cursor()
	assert.Equal(t, 200+fake.FrameX+40, x)
	assert.Equal(t, 100+fake.FrameY+30, y)
	fg, _ := f.d.Foreground()
	assert.Equal(t, f.target.Handle.HWND, fg)

	evs := f.d.EventsFor(f.target.Handle.HWND)
	require.Len(t, evs, 1)
	assert.Equal(t, fake.EventClick, evs[0].Kind)
	assert.Equal(t, 40, evs[0].X)
	assert.Equal(t, 30, evs[0].Y)
}

func TestClickTarget_MessageLeavesForegroundAlone(t *testing.T) {
	f := newFixture(t, model.OriginClient)
	other := f.d.Open(model.Window{Title: "Editor", Bounds: [4]int{0, 0, 50, 50}, Visible: true})
	drv := f.driver.WithMode(Message)

	require.NoError(t, drv.ClickTarget(f.target, "ok_button", true))

	fg, _ := f.d.Foreground()
	assert.Equal(t, other, fg, "message input must not steal the foreground")
	evs := f.d.EventsFor(f.target.Handle.HWND)
	require.Len(t, evs, 1)
	assert.Equal(t, fake.ViaMessage, evs[0].Via)
	assert.Equal(t, 2, evs[0].Count)
	assert.Equal(t, 40, evs[0].X)
}

func TestClickTarget_ScreenOriginProfile(t *testing.T) {
	f := newFixture(t, model.OriginScreen)
	drv := f.driver.WithMode(Message)

	// "field" is at screen (120, 60); client origin is (208, 131).
	require.NoError(t, drv.ClickTarget(f.target, "field", false))

	evs := f.d.EventsFor(f.target.Handle.HWND)
	require.Len(t, evs, 1)
	assert.Equal(t, 120-200-fake.FrameX, evs[0].X)
	assert.Equal(t, 60-100-fake.FrameY, evs[0].Y)
}

func TestClickTarget_UnknownTargetIsConfigurationError(t *testing.T) {
	f := newFixture(t, model.OriginClient)
	err := f.driver.ClickTarget(f.target, "nope", false)
	assert.ErrorIs(t, err, model.ErrConfiguration)
	assert.Empty(t, f.d.Events())
}

func TestType_PerCharacterWithDelay(t *testing.T) {
	f := newFixture(t, model.OriginClient)
	drv := f.driver.WithMode(Message)
	drv.CharDelay = 80 * time.Millisecond
	start := f.clk.Now()

	require.NoError(t, drv.Type(f.target, "ACME"))

	evs := f.d.EventsFor(f.target.Handle.HWND)
	require.Len(t, evs, 4)
	var typed string
	for _, ev := range evs {
		typed += string(ev.Rune)
	}
	assert.Equal(t, "ACME", typed)
	assert.Equal(t, 3*80*time.Millisecond, f.clk.Now().Sub(start))
}

func TestType_LockedSessionForegroundFails(t *testing.T) {
	f := newFixture(t, model.OriginClient)
	f.d.SetLocked(true)

	err := f.driver.Type(f.target, "x")
	assert.ErrorIs(t, err, model.ErrInputInjectionFailure)

	require.NoError(t, f.driver.WithMode(Message).Type(f.target, "x"), "message mode works on a locked session")
}

func TestKey_RelocatesStaleHandleOnce(t *testing.T) {
	f := newFixture(t, model.OriginClient)
	f.d.Destroy(f.target.Handle.HWND)
	replacement := f.d.Open(model.Window{
		PID: 7, Title: "VBS Accounting - [ACME]", Process: "VBS.exe",
		Bounds: [4]int{200, 100, 640, 480}, Visible: true,
	})

	require.NoError(t, f.driver.WithMode(Message).Key(f.target, platform.MustKey("enter")))

	assert.Equal(t, replacement, f.target.Handle.HWND)
	assert.Len(t, f.d.EventsFor(replacement), 1)
}

func TestKey_StaleHandleWithoutReplacement(t *testing.T) {
	f := newFixture(t, model.OriginClient)
	f.d.Destroy(f.target.Handle.HWND)

	err := f.driver.Key(f.target, platform.MustKey("enter"))
	assert.ErrorIs(t, err, model.ErrStaleHandle)
}

func TestKey_TargetWithoutCriteriaIsNotRelocated(t *testing.T) {
	f := newFixture(t, model.OriginClient)
	popup := &Target{Handle: model.WindowHandle{HWND: 0xDEAD}}

	err := f.driver.Key(popup, platform.MustKey("enter"))
	assert.ErrorIs(t, err, model.ErrStaleHandle)
}

func TestFill_ClearsThenTypes(t *testing.T) {
	f := newFixture(t, model.OriginClient)
	drv := f.driver.WithMode(Message)

	require.NoError(t, drv.Fill(f.target, "field", "2026"))

	evs := f.d.EventsFor(f.target.Handle.HWND)
	require.Len(t, evs, 7)
	assert.Equal(t, fake.EventClick, evs[0].Kind)
	assert.Equal(t, "ctrl+a", evs[1].Key.String())
	assert.Equal(t, "backspace", evs[2].Key.String())
	assert.Equal(t, '2', evs[3].Rune)
}
