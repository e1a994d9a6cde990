package hotkey

import (
	"sync/atomic"
	"time"
)

type Mode string

const (
	ModePTT    Mode = "ptt"
	ModeToggle Mode = "toggle"
)

// Hybrid turns one key into both hold-to-talk and tap-to-toggle. Every press
// from idle starts a recording right away; how long the key was held decides
// whether its release stops it (hold) or the next press does (tap).
type Hybrid struct {
	startCh chan struct{}
	stopCh  chan struct{}
	quit    chan struct{}
	toggle  atomic.Bool
}

func NewHybrid(hk Hotkey, longPress time.Duration) *Hybrid {
	h := &Hybrid{
		startCh: make(chan struct{}, 1),
		stopCh:  make(chan struct{}, 1),
		quit:    make(chan struct{}),
	}
	go h.run(hk, longPress)
	return h
}

func (h *Hybrid) Start() <-chan struct{} { return h.startCh }

func (h *Hybrid) StopChan() <-chan struct{} { return h.stopCh }

// IsToggle reports whether the current recording was latched by a short tap.
func (h *Hybrid) IsToggle() bool { return h.toggle.Load() }

func (h *Hybrid) Mode() Mode {
	if h.IsToggle() {
		return ModeToggle
	}
	return ModePTT
}

// Close ends the state machine goroutine.
func (h *Hybrid) Close() { close(h.quit) }

func (h *Hybrid) signal(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}

func (h *Hybrid) run(hk Hotkey, longPress time.Duration) {
	for {
		select {
		case <-hk.Keydown():
		case <-h.quit:
			return
		}
		h.toggle.Store(false)
		h.signal(h.startCh)

		timer := time.NewTimer(longPress)
		select {
		case <-timer.C:
			// held: release stops
			select {
			case <-hk.Keyup():
			case <-h.quit:
				return
			}
			h.signal(h.stopCh)
			continue
		case <-hk.Keyup():
			timer.Stop()
		case <-h.quit:
			timer.Stop()
			return
		}

		// tapped: latched until the next press is released
		h.toggle.Store(true)
		for _, ch := range []<-chan struct{}{hk.Keydown(), hk.Keyup()} {
			select {
			case <-ch:
			case <-h.quit:
				return
			}
		}
		h.toggle.Store(false)
		h.signal(h.stopCh)
	}
}
