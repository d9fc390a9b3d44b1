package strategy

import "testing"

func TestFirstOf_StopsAtFirstSuccess(t *testing.T) {
	var tried []string
	mk := func(name string, ok bool) Strategy[int] {
		return New(name, func(int) bool {
			tried = append(tried, name)
			return ok
		})
	}

	name, ok := FirstOf(0, mk("shortcut", false), mk("enter", true), mk("click", true))

	if !ok || name != "enter" {
		t.Errorf("FirstOf() = (%q, %v), want (enter, true)", name, ok)
	}
	if len(tried) != 2 {
		t.Errorf("tried %v, want [shortcut enter]", tried)
	}
}

func TestFirstOf_AllFail(t *testing.T) {
	name, ok := FirstOf("ctx", New("a", func(string) bool { return false }), Strategy[string]{Name: "nil"})
	if ok || name != "" {
		t.Errorf("FirstOf() = (%q, %v), want (\"\", false)", name, ok)
	}
}

func TestFirstOf_PassesContext(t *testing.T) {
	var got string
	FirstOf("payload", New("a", func(s string) bool { got = s; return true }))
	if got != "payload" {
		t.Errorf("context = %q, want payload", got)
	}
}
