//go:build !linux

package hotkey

import (
	"fmt"

	"golang.design/x/hotkey"
)

type xHotkey struct {
	binding Binding
	hk      *hotkey.Hotkey
	keydown chan struct{}
	keyup   chan struct{}
}

var letterKeys = []hotkey.Key{
	hotkey.KeyA, hotkey.KeyB, hotkey.KeyC, hotkey.KeyD, hotkey.KeyE, hotkey.KeyF,
	hotkey.KeyG, hotkey.KeyH, hotkey.KeyI, hotkey.KeyJ, hotkey.KeyK, hotkey.KeyL,
	hotkey.KeyM, hotkey.KeyN, hotkey.KeyO, hotkey.KeyP, hotkey.KeyQ, hotkey.KeyR,
	hotkey.KeyS, hotkey.KeyT, hotkey.KeyU, hotkey.KeyV, hotkey.KeyW, hotkey.KeyX,
	hotkey.KeyY, hotkey.KeyZ,
}

var functionKeys = []hotkey.Key{
	hotkey.KeyF1, hotkey.KeyF2, hotkey.KeyF3, hotkey.KeyF4, hotkey.KeyF5, hotkey.KeyF6,
	hotkey.KeyF7, hotkey.KeyF8, hotkey.KeyF9, hotkey.KeyF10, hotkey.KeyF11, hotkey.KeyF12,
}

func keyFor(key string) (hotkey.Key, bool) {
	switch {
	case key == "space":
		return hotkey.KeySpace, true
	case functionKey(key) > 0:
		return functionKeys[functionKey(key)-1], true
	case len(key) == 1 && key[0] >= 'a' && key[0] <= 'z':
		return letterKeys[key[0]-'a'], true
	}
	return 0, false
}

func New(b Binding) Hotkey {
	var mods []hotkey.Modifier
	if b.Ctrl {
		mods = append(mods, hotkey.ModCtrl)
	}
	if b.Shift {
		mods = append(mods, hotkey.ModShift)
	}
	key, _ := keyFor(b.Key)
	return &xHotkey{
		binding: b,
		hk:      hotkey.New(mods, key),
		keydown: make(chan struct{}, 1),
		keyup:   make(chan struct{}, 1),
	}
}

func (h *xHotkey) Register() error {
	if _, ok := keyFor(h.binding.Key); !ok {
		return fmt.Errorf("hotkey %s: unsupported key %q", h.binding, h.binding.Key)
	}
	if err := h.hk.Register(); err != nil {
		return err
	}
	go func() {
		for {
			<-h.hk.Keydown()
			select {
			case h.keydown <- struct{}{}:
			default:
			}
		}
	}()
	go func() {
		for {
			<-h.hk.Keyup()
			select {
			case h.keyup <- struct{}{}:
			default:
			}
		}
	}()
	return nil
}

func (h *xHotkey) Unregister() {
	h.hk.Unregister()
}

func (h *xHotkey) Keydown() <-chan struct{} {
	return h.keydown
}

func (h *xHotkey) Keyup() <-chan struct{} {
	return h.keyup
}

func Diagnose(b Binding) (string, error) {
	if _, ok := keyFor(b.Key); !ok {
		return "", fmt.Errorf("unsupported key %q", b.Key)
	}
	return fmt.Sprintf("hotkey support available (%s)", b), nil
}
