package platform

import (
	"errors"

	"github.com/mj1618/vbs-autopilot/internal/model"
)

// ErrNoWindow is returned when a window handle no longer refers to a window.
var ErrNoWindow = errors.New("window does not exist")

// WindowSystem enumerates and manipulates top-level windows.
type WindowSystem interface {
	// Windows returns every top-level window, visible or not, in z-order.
	Windows() ([]model.Window, error)

	// Describe returns the current state of hwnd, or ErrNoWindow.
	Describe(hwnd uintptr) (model.Window, error)

	Restore(hwnd uintptr) error
	SetForeground(hwnd uintptr) error
	Foreground() (uintptr, error)

	// ClientOrigin returns the screen position of the client area's top-left corner.
	ClientOrigin(hwnd uintptr) (x, y int, err error)

	// Close asks the window to close. It does not wait.
	Close(hwnd uintptr) error
}

// Inputter injects OS-level input into whatever window has the foreground.
// Coordinates are screen coordinates.
type Inputter interface {
	MoveMouse(x, y int) error
	Click(x, y int, button MouseButton, count int) error
	TypeRune(r rune) error
	KeyCombo(combo KeyCombo) error
}

// Messenger posts input messages straight to a window's queue. It never
// moves the cursor or changes the foreground window, so it keeps working
// behind other applications and on a locked session. Coordinates are client
// coordinates of hwnd.
type Messenger interface {
	PostClick(hwnd uintptr, x, y int, button MouseButton, count int) error
	PostChar(hwnd uintptr, r rune) error
	PostKey(hwnd uintptr, combo KeyCombo) error
}

// Launcher starts the target application.
type Launcher interface {
	Launch(path string, args ...string) (pid int, err error)
}
