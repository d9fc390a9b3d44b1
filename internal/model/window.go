package model

import "fmt"

// WindowHandle is a short-lived reference to a top-level window and the
// process that owns it. It is only meaningful while the window exists and
// must be revalidated before every use.
type WindowHandle struct {
	HWND uintptr `yaml:"hwnd" json:"hwnd"`
	PID  int     `yaml:"pid"  json:"pid"`
}

// IsZero reports whether h refers to no window.
func (h WindowHandle) IsZero() bool {
	return h.HWND == 0
}

func (h WindowHandle) String() string {
	return fmt.Sprintf("0x%X/pid:%d", h.HWND, h.PID)
}

// Window describes a top-level window as reported by the OS.
type Window struct {
	HWND      uintptr `yaml:"hwnd"                json:"hwnd"`
	PID       int     `yaml:"pid"                 json:"pid"`
	Process   string  `yaml:"process"             json:"process"`
	Title     string  `yaml:"title"               json:"title"`
	Class     string  `yaml:"class,omitempty"     json:"class,omitempty"`
	Bounds    [4]int  `yaml:"bounds"              json:"bounds"`
	ClientW   int     `yaml:"client_w"            json:"client_w"`
	ClientH   int     `yaml:"client_h"            json:"client_h"`
	Visible   bool    `yaml:"visible"             json:"visible"`
	Minimized bool    `yaml:"minimized,omitempty" json:"minimized,omitempty"`
	Focused   bool    `yaml:"focused,omitempty"   json:"focused,omitempty"`
}

// Handle returns the capability for w.
func (w Window) Handle() WindowHandle {
	return WindowHandle{HWND: w.HWND, PID: w.PID}
}

// HasClientArea reports whether the window has a non-empty client rectangle.
func (w Window) HasClientArea() bool {
	return w.ClientW > 0 && w.ClientH > 0
}
