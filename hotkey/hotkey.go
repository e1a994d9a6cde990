// Package hotkey reports presses of the global push-to-talk combination.
package hotkey

import (
	"fmt"
	"strings"
)

type Hotkey interface {
	Register() error
	Unregister()
	Keydown() <-chan struct{}
	Keyup() <-chan struct{}
}

// Binding is a key plus the modifiers that must be held with it.
type Binding struct {
	Ctrl  bool
	Shift bool
	Key   string // "space", "a".."z" or "f1".."f12"
}

var DefaultBinding = Binding{Ctrl: true, Shift: true, Key: "space"}

// ParseBinding reads combinations like "ctrl+shift+space" or "shift+f9".
func ParseBinding(s string) (Binding, error) {
	var b Binding
	parts := strings.Split(strings.ToLower(strings.TrimSpace(s)), "+")
	for i, p := range parts {
		p = strings.TrimSpace(p)
		if i < len(parts)-1 {
			switch p {
			case "ctrl", "control":
				b.Ctrl = true
			case "shift":
				b.Shift = true
			default:
				return Binding{}, fmt.Errorf("hotkey %q: unsupported modifier %q", s, p)
			}
			continue
		}
		if !validKey(p) {
			return Binding{}, fmt.Errorf("hotkey %q: unsupported key %q", s, p)
		}
		b.Key = p
	}
	return b, nil
}

func (b Binding) String() string {
	var parts []string
	if b.Ctrl {
		parts = append(parts, "Ctrl")
	}
	if b.Shift {
		parts = append(parts, "Shift")
	}
	return strings.Join(append(parts, strings.ToUpper(b.Key[:1])+b.Key[1:]), "+")
}

func validKey(k string) bool {
	if k == "space" {
		return true
	}
	if len(k) == 1 && k[0] >= 'a' && k[0] <= 'z' {
		return true
	}
	return functionKey(k) > 0
}

// functionKey returns n for "fN", or 0.
func functionKey(k string) int {
	var n int
	if _, err := fmt.Sscanf(k, "f%d", &n); err != nil || fmt.Sprintf("f%d", n) != k {
		return 0
	}
	if n < 1 || n > 12 {
		return 0
	}
	return n
}
