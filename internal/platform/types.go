package platform

import (
	"fmt"
	"strings"
)

// MouseButton represents a mouse button.
type MouseButton int

const (
	MouseLeft MouseButton = iota
	MouseRight
	MouseMiddle
)

// ParseMouseButton converts a string flag value to MouseButton.
func ParseMouseButton(s string) (MouseButton, error) {
	switch strings.ToLower(s) {
	case "left":
		return MouseLeft, nil
	case "right":
		return MouseRight, nil
	case "middle":
		return MouseMiddle, nil
	default:
		return MouseLeft, fmt.Errorf("unknown mouse button: %q (expected left, right, or middle)", s)
	}
}

func (b MouseButton) String() string {
	switch b {
	case MouseRight:
		return "right"
	case MouseMiddle:
		return "middle"
	default:
		return "left"
	}
}

// Virtual-key codes for modifiers.
const (
	VKShift   uint16 = 0x10
	VKControl uint16 = 0x11
	VKMenu    uint16 = 0x12
)

// keyCodeMap maps key names to Windows virtual-key codes.
var keyCodeMap = map[string]uint16{
	"return": 0x0D, "enter": 0x0D, "tab": 0x09, "space": 0x20,
	"backspace": 0x08, "delete": 0x2E, "del": 0x2E, "escape": 0x1B, "esc": 0x1B,
	"up": 0x26, "down": 0x28, "left": 0x25, "right": 0x27,
	"home": 0x24, "end": 0x23, "pageup": 0x21, "pagedown": 0x22, "insert": 0x2D,
	"f1": 0x70, "f2": 0x71, "f3": 0x72, "f4": 0x73, "f5": 0x74, "f6": 0x75,
	"f7": 0x76, "f8": 0x77, "f9": 0x78, "f10": 0x79, "f11": 0x7A, "f12": 0x7B,
}

func init() {
	for c := 'a'; c <= 'z'; c++ {
		keyCodeMap[string(c)] = uint16(c - 'a' + 0x41)
	}
	for c := '0'; c <= '9'; c++ {
		keyCodeMap[string(c)] = uint16(c - '0' + 0x30)
	}
}

// KeyCombo is a single key with optional modifiers, e.g. "alt+r".
type KeyCombo struct {
	Name  string
	VK    uint16
	Ctrl  bool
	Alt   bool
	Shift bool
}

// ParseKeyCombo parses "ctrl+a", "alt+r", "enter", "shift+tab".
func ParseKeyCombo(s string) (KeyCombo, error) {
	var combo KeyCombo
	found := false
	for _, part := range strings.Split(s, "+") {
		k := strings.ToLower(strings.TrimSpace(part))
		switch k {
		case "ctrl", "control":
			combo.Ctrl = true
		case "alt":
			combo.Alt = true
		case "shift":
			combo.Shift = true
		default:
			code, ok := keyCodeMap[k]
			if !ok {
				return KeyCombo{}, fmt.Errorf("unknown key: %q", k)
			}
			if found {
				return KeyCombo{}, fmt.Errorf("key combo %q names more than one key", s)
			}
			combo.Name = k
			combo.VK = code
			found = true
		}
	}
	if !found {
		return KeyCombo{}, fmt.Errorf("no key specified in combo %q, only modifiers", s)
	}
	return combo, nil
}

// MustKey parses a combo known at compile time.
func MustKey(s string) KeyCombo {
	k, err := ParseKeyCombo(s)
	if err != nil {
		panic(err)
	}
	return k
}

// Modifiers returns the virtual-key codes of the held modifiers in press order.
func (k KeyCombo) Modifiers() []uint16 {
	var mods []uint16
	if k.Ctrl {
		mods = append(mods, VKControl)
	}
	if k.Alt {
		mods = append(mods, VKMenu)
	}
	if k.Shift {
		mods = append(mods, VKShift)
	}
	return mods
}

func (k KeyCombo) String() string {
	var parts []string
	if k.Ctrl {
		parts = append(parts, "ctrl")
	}
	if k.Alt {
		parts = append(parts, "alt")
	}
	if k.Shift {
		parts = append(parts, "shift")
	}
	return strings.Join(append(parts, k.Name), "+")
}

// MakeLParam packs client coordinates into a mouse message lParam:
// x in the low word, y in the high word.
func MakeLParam(x, y int) uintptr {
	return uintptr(uint32(uint16(int16(y)))<<16 | uint32(uint16(int16(x))))
}

// SplitLParam is the inverse of MakeLParam.
func SplitLParam(lp uintptr) (x, y int) {
	return int(int16(uint16(lp & 0xFFFF))), int(int16(uint16((lp >> 16) & 0xFFFF)))
}
