//go:build windows

package windows

import (
	"fmt"
	"path/filepath"
	"sync"
	"unsafe"

	"github.com/lxn/win"
	"github.com/mj1618/vbs-autopilot/internal/model"
	"github.com/mj1618/vbs-autopilot/internal/platform"
	"golang.org/x/sys/windows"
)

var (
	user32                   = windows.NewLazySystemDLL("user32.dll")
	procGetWindowTextW       = user32.NewProc("GetWindowTextW")
	procGetWindowTextLengthW = user32.NewProc("GetWindowTextLengthW")
	procAttachThreadInput    = user32.NewProc("AttachThreadInput")
	procBringWindowToTop     = user32.NewProc("BringWindowToTop")
)

// enumMu serialises EnumWindows; the callback is shared because
// windows.NewCallback slots are never released.
var (
	enumMu   sync.Mutex
	enumList []windows.HWND
	enumProc = windows.NewCallback(func(h windows.HWND, _ uintptr) uintptr {
		enumList = append(enumList, h)
		return 1
	})
)

// WindowSystem implements platform.WindowSystem with user32.
type WindowSystem struct{}

func NewWindowSystem() *WindowSystem { return &WindowSystem{} }

func (s *WindowSystem) Windows() ([]model.Window, error) {
	enumMu.Lock()
	enumList = enumList[:0]
	err := windows.EnumWindows(enumProc, nil)
	hwnds := append([]windows.HWND(nil), enumList...)
	enumMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("EnumWindows: %w", err)
	}

	fg := windows.GetForegroundWindow()
	out := make([]model.Window, 0, len(hwnds))
	for _, h := range hwnds {
		w, err := describe(h)
		if err != nil {
			// Destroyed between enumeration and inspection.
			continue
		}
		w.Focused = h == fg
		out = append(out, w)
	}
	return out, nil
}

func (s *WindowSystem) Describe(hwnd uintptr) (model.Window, error) {
	w, err := describe(windows.HWND(hwnd))
	if err != nil {
		return model.Window{}, err
	}
	w.Focused = windows.GetForegroundWindow() == windows.HWND(hwnd)
	return w, nil
}

func (s *WindowSystem) Restore(hwnd uintptr) error {
	if !windows.IsWindow(windows.HWND(hwnd)) {
		return platform.ErrNoWindow
	}
	win.ShowWindow(win.HWND(hwnd), win.SW_RESTORE)
	return nil
}

// SetForeground works around the foreground lock by attaching to the
// input queue of the current foreground thread for the duration of the call.
func (s *WindowSystem) SetForeground(hwnd uintptr) error {
	h := windows.HWND(hwnd)
	if !windows.IsWindow(h) {
		return platform.ErrNoWindow
	}
	fg := windows.GetForegroundWindow()
	if fg == h {
		return nil
	}
	self := windows.GetCurrentThreadId()
	other, _ := windows.GetWindowThreadProcessId(fg, nil)
	if other != 0 && other != self {
		procAttachThreadInput.Call(uintptr(self), uintptr(other), 1)
		defer procAttachThreadInput.Call(uintptr(self), uintptr(other), 0)
	}
	procBringWindowToTop.Call(hwnd)
	win.SetForegroundWindow(win.HWND(hwnd))

	if windows.GetForegroundWindow() != h {
		return fmt.Errorf("window 0x%X did not take the foreground", hwnd)
	}
	return nil
}

func (s *WindowSystem) Foreground() (uintptr, error) {
	return uintptr(windows.GetForegroundWindow()), nil
}

func (s *WindowSystem) ClientOrigin(hwnd uintptr) (int, int, error) {
	var pt win.POINT
	if !win.ClientToScreen(win.HWND(hwnd), &pt) {
		return 0, 0, platform.ErrNoWindow
	}
	return int(pt.X), int(pt.Y), nil
}

func (s *WindowSystem) Close(hwnd uintptr) error {
	if !windows.IsWindow(windows.HWND(hwnd)) {
		return platform.ErrNoWindow
	}
	win.PostMessage(win.HWND(hwnd), win.WM_CLOSE, 0, 0)
	return nil
}

func describe(h windows.HWND) (model.Window, error) {
	if !windows.IsWindow(h) {
		return model.Window{}, platform.ErrNoWindow
	}
	var pid uint32
	if _, err := windows.GetWindowThreadProcessId(h, &pid); err != nil {
		return model.Window{}, platform.ErrNoWindow
	}

	w := model.Window{
		HWND:      uintptr(h),
		PID:       int(pid),
		Title:     windowText(h),
		Class:     className(h),
		Process:   processImage(pid),
		Visible:   windows.IsWindowVisible(h),
		Minimized: win.IsIconic(win.HWND(h)),
	}

	var r win.RECT
	if win.GetWindowRect(win.HWND(h), &r) {
		w.Bounds = [4]int{int(r.Left), int(r.Top), int(r.Right - r.Left), int(r.Bottom - r.Top)}
	}
	var c win.RECT
	if win.GetClientRect(win.HWND(h), &c) {
		w.ClientW = int(c.Right - c.Left)
		w.ClientH = int(c.Bottom - c.Top)
	}
	return w, nil
}

func windowText(h windows.HWND) string {
	n, _, _ := procGetWindowTextLengthW.Call(uintptr(h))
	if n == 0 {
		return ""
	}
	buf := make([]uint16, n+1)
	procGetWindowTextW.Call(uintptr(h), uintptr(unsafe.Pointer(&buf[0])), uintptr(len(buf)))
	return windows.UTF16ToString(buf)
}

func className(h windows.HWND) string {
	buf := make([]uint16, 256)
	n, err := windows.GetClassName(h, &buf[0], int32(len(buf)))
	if err != nil || n == 0 {
		return ""
	}
	return windows.UTF16ToString(buf[:n])
}

func processImage(pid uint32) string {
	ph, err := windows.OpenProcess(windows.PROCESS_QUERY_LIMITED_INFORMATION, false, pid)
	if err != nil {
		return ""
	}
	defer windows.CloseHandle(ph)

	buf := make([]uint16, windows.MAX_PATH)
	size := uint32(len(buf))
	if err := windows.QueryFullProcessImageName(ph, 0, &buf[0], &size); err != nil {
		return ""
	}
	return filepath.Base(windows.UTF16ToString(buf[:size]))
}
