package session

import "time"

const (
	levelInterval    = 100 * time.Millisecond
	speechMinRatio   = 0.10
	speechClearRatio = 0.25 // higher threshold to clear warning (hysteresis)
)

type SilenceEvent int

const (
	SilenceNone      SilenceEvent = iota
	SilenceWarn                   // nothing said for WarnAfter
	SilenceWarnClear              // speech resumed after warning
	SilenceRepeat                 // still silent, remind again
	SilenceAutoClose              // silent for CloseAfter in toggle mode
)

func (e SilenceEvent) String() string {
	switch e {
	case SilenceWarn:
		return "warn"
	case SilenceWarnClear:
		return "clear"
	case SilenceRepeat:
		return "repeat"
	case SilenceAutoClose:
		return "auto-close"
	}
	return "none"
}

type SilenceConfig struct {
	Enabled    bool
	WarnAfter  time.Duration // default 8s
	CloseAfter time.Duration // default 30s
	// Toggle reports whether the key is latched. Push-to-talk sessions are
	// never auto-closed since the user is holding the key.
	Toggle func() bool
}

// silenceMonitor keeps a sliding window of per-tick speech flags.
type silenceMonitor struct {
	warnAt   int
	windowSz int
	isToggle func() bool

	ticks       int
	window      []bool
	speechCount int
	warned      bool
	lastBeep    int
}

func newSilenceMonitor(cfg SilenceConfig) *silenceMonitor {
	if cfg.WarnAfter <= 0 {
		cfg.WarnAfter = 8 * time.Second
	}
	if cfg.CloseAfter <= 0 {
		cfg.CloseAfter = 30 * time.Second
	}
	toggle := cfg.Toggle
	if toggle == nil {
		toggle = func() bool { return false }
	}
	windowSz := max(int(cfg.CloseAfter/levelInterval), 1)
	return &silenceMonitor{
		warnAt:   max(int(cfg.WarnAfter/levelInterval), 1),
		windowSz: windowSz,
		isToggle: toggle,
		window:   make([]bool, windowSz),
	}
}

func (m *silenceMonitor) ratio(n int) float64 {
	n = min(n, m.ticks, m.windowSz)
	if n == 0 {
		return 1.0
	}
	count := 0
	for i := 0; i < n; i++ {
		if m.window[(m.ticks-1-i+m.windowSz)%m.windowSz] {
			count++
		}
	}
	return float64(count) / float64(n)
}

func (m *silenceMonitor) Tick(hasSpeech bool) SilenceEvent {
	idx := m.ticks % m.windowSz
	if m.ticks >= m.windowSz && m.window[idx] {
		m.speechCount--
	}
	m.window[idx] = hasSpeech
	if hasSpeech {
		m.speechCount++
	}
	m.ticks++

	r := m.ratio(m.warnAt)

	if m.ticks >= m.warnAt && r < speechMinRatio && !m.warned {
		m.warned = true
		m.lastBeep = m.ticks
		return SilenceWarn
	}
	if m.warned && r >= speechClearRatio {
		m.warned = false
		return SilenceWarnClear
	}

	if !m.isToggle() {
		return SilenceNone
	}

	// auto-close wins over a repeat on the same tick
	if m.ticks >= m.windowSz && float64(m.speechCount)/float64(m.windowSz) < speechMinRatio {
		return SilenceAutoClose
	}

	if m.warned && m.ticks-m.lastBeep >= m.warnAt {
		m.lastBeep = m.ticks
		return SilenceRepeat
	}

	return SilenceNone
}
