//go:build windows

package windows

import (
	"fmt"

	"github.com/lxn/win"
	"github.com/mj1618/vbs-autopilot/internal/platform"
)

var procMapVirtualKeyW = user32.NewProc("MapVirtualKeyW")

const mapvkVKToVSC = 0

// Messenger implements platform.Messenger with PostMessage.
type Messenger struct{}

func NewMessenger() *Messenger { return &Messenger{} }

func (m *Messenger) PostClick(hwnd uintptr, x, y int, button platform.MouseButton, count int) error {
	h := win.HWND(hwnd)
	lp := platform.MakeLParam(x, y)
	down, up, dbl, mk := buttonMessages(button)

	if err := post(h, win.WM_MOUSEMOVE, 0, lp); err != nil {
		return err
	}
	if count < 1 {
		count = 1
	}
	for i := 0; i < count; i++ {
		msg := down
		if i == 1 {
			msg = dbl
		}
		if err := post(h, msg, mk, lp); err != nil {
			return err
		}
		if err := post(h, up, 0, lp); err != nil {
			return err
		}
	}
	return nil
}

func (m *Messenger) PostChar(hwnd uintptr, r rune) error {
	return post(win.HWND(hwnd), win.WM_CHAR, uintptr(r), 1)
}

// PostKey posts key down/up for combo. Alt combos go through the
// WM_SYSKEY* messages with the context bit set so dialogs treat them as
// accelerators. Posted modifiers do not change the global keyboard state.
func (m *Messenger) PostKey(hwnd uintptr, combo platform.KeyCombo) error {
	h := win.HWND(hwnd)
	downMsg, upMsg := uint32(win.WM_KEYDOWN), uint32(win.WM_KEYUP)
	var context uintptr
	if combo.Alt {
		downMsg, upMsg = win.WM_SYSKEYDOWN, win.WM_SYSKEYUP
		context = 1 << 29
	}

	mods := combo.Modifiers()
	for _, vk := range mods {
		if vk == platform.VKMenu {
			continue
		}
		if err := post(h, win.WM_KEYDOWN, uintptr(vk), keyLParam(vk, false, 0)); err != nil {
			return err
		}
	}
	if err := post(h, downMsg, uintptr(combo.VK), keyLParam(combo.VK, false, context)); err != nil {
		return err
	}
	if err := post(h, upMsg, uintptr(combo.VK), keyLParam(combo.VK, true, context)); err != nil {
		return err
	}
	for i := len(mods) - 1; i >= 0; i-- {
		if mods[i] == platform.VKMenu {
			continue
		}
		if err := post(h, win.WM_KEYUP, uintptr(mods[i]), keyLParam(mods[i], true, 0)); err != nil {
			return err
		}
	}
	return nil
}

func buttonMessages(b platform.MouseButton) (down, up, dbl uint32, mk uintptr) {
	switch b {
	case platform.MouseRight:
		return win.WM_RBUTTONDOWN, win.WM_RBUTTONUP, win.WM_RBUTTONDBLCLK, win.MK_RBUTTON
	case platform.MouseMiddle:
		return win.WM_MBUTTONDOWN, win.WM_MBUTTONUP, win.WM_MBUTTONDBLCLK, win.MK_MBUTTON
	default:
		return win.WM_LBUTTONDOWN, win.WM_LBUTTONUP, win.WM_LBUTTONDBLCLK, win.MK_LBUTTON
	}
}

// keyLParam builds the keystroke lParam: repeat count 1, scan code in
// bits 16-23, previous-state and transition bits for key-up.
func keyLParam(vk uint16, up bool, extra uintptr) uintptr {
	scan, _, _ := procMapVirtualKeyW.Call(uintptr(vk), mapvkVKToVSC)
	lp := uintptr(1) | (scan&0xFF)<<16 | extra
	if up {
		lp |= 1<<30 | 1<<31
	}
	return lp
}

func post(h win.HWND, msg uint32, wParam, lParam uintptr) error {
	if win.PostMessage(h, msg, wParam, lParam) == 0 {
		return fmt.Errorf("PostMessage 0x%X to 0x%X failed (window gone or queue full)", msg, uintptr(h))
	}
	return nil
}
