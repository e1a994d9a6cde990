//go:build linux

package hotkey

import "testing"

func TestKeyCode(t *testing.T) {
	for key, want := range map[string]uint16{
		"space": 57,
		"f1":    59,
		"f10":   68,
		"f11":   87,
		"f12":   88,
		"q":     16,
		"p":     25,
		"a":     30,
		"l":     38,
		"z":     44,
		"m":     50,
		"enter": 0,
	} {
		if got := keyCode(key); got != want {
			t.Errorf("keyCode(%q) = %d, want %d", key, got, want)
		}
	}
}
