package cmd

import (
	"testing"

	"github.com/mj1618/vbs-autopilot/internal/model"
)

func TestListCommand_Flags(t *testing.T) {
	flags := listCmd.Flags()

	tests := []struct {
		name     string
		flagType string
	}{
		{"all", "bool"},
		{"pid", "int"},
		{"title", "string"},
		{"process", "string"},
	}

	for _, tt := range tests {
		f := flags.Lookup(tt.name)
		if f == nil {
			t.Errorf("expected flag %q not found", tt.name)
			continue
		}
		if f.Value.Type() != tt.flagType {
			t.Errorf("flag %q: expected type %q, got %q", tt.name, tt.flagType, f.Value.Type())
		}
	}
}

func TestListFilter(t *testing.T) {
	windows := []model.Window{
		{HWND: 1, PID: 10, Process: "VBS.exe", Title: "VBS Accounting", Visible: true},
		{HWND: 2, PID: 10, Process: "VBS.exe", Title: "VBS tray helper"},
		{HWND: 3, PID: 20, Process: "notepad.exe", Title: "notes.txt - Notepad", Visible: true},
	}

	tests := []struct {
		name   string
		filter listFilter
		want   []uintptr
	}{
		{"visible by default", listFilter{}, []uintptr{1, 3}},
		{"all", listFilter{all: true}, []uintptr{1, 2, 3}},
		{"pid", listFilter{all: true, pid: 10}, []uintptr{1, 2}},
		{"title case-insensitive", listFilter{title: "accounting"}, []uintptr{1}},
		{"process", listFilter{process: "notepad"}, []uintptr{3}},
		{"nothing", listFilter{title: "excel"}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.filter.apply(windows)
			if got == nil {
				t.Fatal("apply should never return nil")
			}
			if len(got) != len(tt.want) {
				t.Fatalf("got %d windows, want %d", len(got), len(tt.want))
			}
			for i, w := range got {
				if w.HWND != tt.want[i] {
					t.Errorf("window %d: got hwnd %d, want %d", i, w.HWND, tt.want[i])
				}
			}
		})
	}
}
