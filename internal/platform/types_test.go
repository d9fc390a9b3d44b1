package platform

import "testing"

func TestParseMouseButton_Valid(t *testing.T) {
	tests := []struct {
		input string
		want  MouseButton
	}{
		{"left", MouseLeft},
		{"Left", MouseLeft},
		{"LEFT", MouseLeft},
		{"right", MouseRight},
		{"middle", MouseMiddle},
	}
	for _, tt := range tests {
		got, err := ParseMouseButton(tt.input)
		if err != nil {
			t.Errorf("ParseMouseButton(%q): %v", tt.input, err)
		}
		if got != tt.want {
			t.Errorf("ParseMouseButton(%q) = %d, want %d", tt.input, got, tt.want)
		}
	}
}

func TestParseMouseButton_Invalid(t *testing.T) {
	if _, err := ParseMouseButton("fourth"); err == nil {
		t.Error("ParseMouseButton(fourth) should fail")
	}
}

func TestParseKeyCombo(t *testing.T) {
	tests := []struct {
		input string
		want  KeyCombo
	}{
		{"enter", KeyCombo{Name: "enter", VK: 0x0D}},
		{"Return", KeyCombo{Name: "return", VK: 0x0D}},
		{"alt+r", KeyCombo{Name: "r", VK: 0x52, Alt: true}},
		{"ctrl+a", KeyCombo{Name: "a", VK: 0x41, Ctrl: true}},
		{"ctrl + shift + tab", KeyCombo{Name: "tab", VK: 0x09, Ctrl: true, Shift: true}},
		{"f5", KeyCombo{Name: "f5", VK: 0x74}},
		{"7", KeyCombo{Name: "7", VK: 0x37}},
	}
	for _, tt := range tests {
		got, err := ParseKeyCombo(tt.input)
		if err != nil {
			t.Errorf("ParseKeyCombo(%q): %v", tt.input, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseKeyCombo(%q) = %+v, want %+v", tt.input, got, tt.want)
		}
	}
}

func TestParseKeyCombo_Invalid(t *testing.T) {
	for _, s := range []string{"", "ctrl", "ctrl+alt", "hyper+x", "a+b"} {
		if _, err := ParseKeyCombo(s); err == nil {
			t.Errorf("ParseKeyCombo(%q) should fail", s)
		}
	}
}

func TestKeyCombo_String(t *testing.T) {
	if got := MustKey("shift+alt+f4").String(); got != "alt+shift+f4" {
		t.Errorf("String() = %q, want %q", got, "alt+shift+f4")
	}
}

func TestKeyCombo_ModifiersOrder(t *testing.T) {
	mods := MustKey("shift+ctrl+alt+x").Modifiers()
	want := []uint16{VKControl, VKMenu, VKShift}
	if len(mods) != len(want) {
		t.Fatalf("Modifiers() = %v, want %v", mods, want)
	}
	for i := range want {
		if mods[i] != want[i] {
			t.Errorf("Modifiers()[%d] = %#x, want %#x", i, mods[i], want[i])
		}
	}
}

func TestMakeLParam(t *testing.T) {
	tests := []struct {
		x, y int
		want uintptr
	}{
		{0, 0, 0},
		{10, 20, 20<<16 | 10},
		{0xFFFF, 1, 1<<16 | 0xFFFF},
		{-1, 5, 5<<16 | 0xFFFF},
	}
	for _, tt := range tests {
		if got := MakeLParam(tt.x, tt.y); got != tt.want {
			t.Errorf("MakeLParam(%d, %d) = %#x, want %#x", tt.x, tt.y, got, tt.want)
		}
	}
}

func TestSplitLParam_RoundTrip(t *testing.T) {
	for _, p := range [][2]int{{0, 0}, {412, 288}, {-3, 7}, {1919, 1079}} {
		x, y := SplitLParam(MakeLParam(p[0], p[1]))
		if x != p[0] || y != p[1] {
			t.Errorf("SplitLParam(MakeLParam(%d,%d)) = (%d,%d)", p[0], p[1], x, y)
		}
	}
}
