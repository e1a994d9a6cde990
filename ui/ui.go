package ui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"voicecue/interpret"
	"voicecue/session"
)

// UI forwards session and interpreter notifications to a running program.
// Every method only queues a message, so it is safe from any goroutine.
type UI struct {
	send func(tea.Msg)
}

func New(p *tea.Program) *UI { return &UI{send: p.Send} }

// NewWithSender is used by tests and headless runs.
func NewWithSender(send func(tea.Msg)) *UI { return &UI{send: send} }

var (
	_ session.Events     = (*UI)(nil)
	_ interpret.Animator = (*UI)(nil)
)

func (u *UI) RecordingStarted(id string) { u.send(RecordingStartedMsg{ID: id}) }

func (u *UI) RecordingStopped(id string, audio time.Duration, err error) {
	u.send(RecordingStoppedMsg{ID: id, Audio: audio, Err: err})
}

func (u *UI) ChunkSent(audio time.Duration, bytes int) {
	u.send(ChunkSentMsg{Audio: audio, Bytes: bytes})
}

func (u *UI) Level(level float64)             { u.send(LevelMsg{Level: level}) }
func (u *UI) Silence(ev session.SilenceEvent) { u.send(SilenceMsg{Event: ev}) }
func (u *UI) PermissionDenied(err error)      { u.send(PermissionDeniedMsg{Err: err}) }
func (u *UI) Device(name string)              { u.send(DeviceMsg{Name: name}) }

func (u *UI) Connection(endpoint string, online bool) {
	u.send(ConnectionMsg{Endpoint: endpoint, Online: online})
}

func (u *UI) Animate(id interpret.ResultID, a interpret.Animation) {
	u.send(AnimateMsg{ID: id, Animation: a})
}

// Outcome matches interpret.Options.OnOutcome.
func (u *UI) Outcome(out interpret.Outcome, st interpret.PresentationState) {
	u.send(OutcomeMsg{Outcome: out, State: st})
}
