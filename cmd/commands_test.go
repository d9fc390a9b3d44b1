package cmd

import (
	"testing"
	"time"

	"github.com/mj1618/vbs-autopilot/internal/clock"
	"github.com/mj1618/vbs-autopilot/internal/model"
	"github.com/mj1618/vbs-autopilot/internal/platform/fake"
)

func TestParseDate(t *testing.T) {
	now := time.Date(2026, 10, 15, 1, 0, 0, 0, time.UTC)

	got, err := parseDate("", now)
	if err != nil || !got.Equal(now) {
		t.Errorf("parseDate(\"\") = %v, %v; want now", got, err)
	}

	got, err = parseDate("2026-09-30", now)
	if err != nil {
		t.Fatal(err)
	}
	if got.Format(time.DateOnly) != "2026-09-30" {
		t.Errorf("parseDate = %v", got)
	}

	if _, err := parseDate("30/09/2026", now); err == nil {
		t.Error("expected error for non-ISO date")
	}
}

func TestFocusWindow(t *testing.T) {
	d := fake.NewDesktop(clock.NewFake(time.Date(2026, 10, 15, 1, 0, 0, 0, time.UTC)))
	vbs := d.Open(model.Window{PID: 42, Title: "VBS Accounting", Bounds: [4]int{0, 0, 800, 600}, Visible: true})
	d.Open(model.Window{PID: 7, Title: "Notepad", Bounds: [4]int{0, 0, 400, 300}, Visible: true})
	d.Update(vbs, func(w *model.Window) { w.Minimized = true })

	res, err := focusWindow(d, vbs)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Restored || res.PID != 42 || res.Title != "VBS Accounting" {
		t.Errorf("unexpected result: %+v", res)
	}
	if fg, _ := d.Foreground(); fg != vbs {
		t.Errorf("foreground = %#x, want %#x", fg, vbs)
	}

	if _, err := focusWindow(d, 0xdead); err == nil {
		t.Error("expected error for unknown window")
	}
}

func TestCheckProfile(t *testing.T) {
	p, err := model.NewCoordinateProfile("office", model.OriginClient, map[string]model.Point{
		"company_code_field": {X: 1, Y: 2},
		"legacy_button":      {X: 3, Y: 4},
	})
	if err != nil {
		t.Fatal(err)
	}

	r := checkProfile(p, []string{"company_code_field", "login_ok_button"})

	if r.OK {
		t.Error("report should not be OK with a missing target")
	}
	if len(r.Missing) != 1 || r.Missing[0] != "login_ok_button" {
		t.Errorf("missing = %v", r.Missing)
	}
	if len(r.Unused) != 1 || r.Unused[0] != "legacy_button" {
		t.Errorf("unused = %v", r.Unused)
	}

	if r := checkProfile(p, []string{"company_code_field"}); !r.OK {
		t.Errorf("report should be OK: %+v", r)
	}
}
