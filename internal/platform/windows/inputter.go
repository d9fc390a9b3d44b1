//go:build windows

package windows

import (
	"fmt"
	"time"
	"unicode/utf16"
	"unsafe"

	"github.com/lxn/win"
	"github.com/mj1618/vbs-autopilot/internal/platform"
)

// Inputter implements platform.Inputter with SendInput.
type Inputter struct {
	// ClickInterval separates the presses of a multi-click.
	ClickInterval time.Duration
}

func NewInputter() *Inputter {
	return &Inputter{ClickInterval: 50 * time.Millisecond}
}

func (in *Inputter) MoveMouse(x, y int) error {
	if !win.SetCursorPos(int32(x), int32(y)) {
		return fmt.Errorf("SetCursorPos(%d, %d) failed", x, y)
	}
	return nil
}

func (in *Inputter) Click(x, y int, button platform.MouseButton, count int) error {
	if err := in.MoveMouse(x, y); err != nil {
		return err
	}
	down, up := mouseFlags(button)
	if count < 1 {
		count = 1
	}
	for i := 0; i < count; i++ {
		if i > 0 {
			time.Sleep(in.ClickInterval)
		}
		if err := sendMouse(down); err != nil {
			return err
		}
		if err := sendMouse(up); err != nil {
			return err
		}
	}
	return nil
}

// TypeRune sends r as a unicode keystroke, independent of keyboard layout.
func (in *Inputter) TypeRune(r rune) error {
	units := []uint16{uint16(r)}
	if r > 0xFFFF {
		hi, lo := utf16.EncodeRune(r)
		units = []uint16{uint16(hi), uint16(lo)}
	}
	for _, u := range units {
		if err := sendKey(0, u, win.KEYEVENTF_UNICODE); err != nil {
			return err
		}
		if err := sendKey(0, u, win.KEYEVENTF_UNICODE|win.KEYEVENTF_KEYUP); err != nil {
			return err
		}
	}
	return nil
}

func (in *Inputter) KeyCombo(combo platform.KeyCombo) error {
	mods := combo.Modifiers()
	for _, m := range mods {
		if err := sendKey(m, 0, 0); err != nil {
			return err
		}
	}
	err := sendKey(combo.VK, 0, 0)
	if err == nil {
		err = sendKey(combo.VK, 0, win.KEYEVENTF_KEYUP)
	}
	// Release modifiers even if the key itself failed.
	for i := len(mods) - 1; i >= 0; i-- {
		if uerr := sendKey(mods[i], 0, win.KEYEVENTF_KEYUP); err == nil {
			err = uerr
		}
	}
	return err
}

func mouseFlags(b platform.MouseButton) (down, up uint32) {
	switch b {
	case platform.MouseRight:
		return win.MOUSEEVENTF_RIGHTDOWN, win.MOUSEEVENTF_RIGHTUP
	case platform.MouseMiddle:
		return win.MOUSEEVENTF_MIDDLEDOWN, win.MOUSEEVENTF_MIDDLEUP
	default:
		return win.MOUSEEVENTF_LEFTDOWN, win.MOUSEEVENTF_LEFTUP
	}
}

func sendMouse(flags uint32) error {
	in := win.MOUSE_INPUT{
		Type: win.INPUT_MOUSE,
		Mi:   win.MOUSEINPUT{DwFlags: flags},
	}
	if win.SendInput(1, unsafe.Pointer(&in), int32(unsafe.Sizeof(in))) != 1 {
		return fmt.Errorf("SendInput mouse 0x%X rejected (session locked or blocked by UIPI)", flags)
	}
	return nil
}

func sendKey(vk, scan uint16, flags uint32) error {
	in := win.KEYBD_INPUT{
		Type: win.INPUT_KEYBOARD,
		Ki:   win.KEYBDINPUT{WVk: vk, WScan: scan, DwFlags: flags},
	}
	if win.SendInput(1, unsafe.Pointer(&in), int32(unsafe.Sizeof(in))) != 1 {
		return fmt.Errorf("SendInput key vk=0x%X scan=0x%X rejected (session locked or blocked by UIPI)", vk, scan)
	}
	return nil
}
