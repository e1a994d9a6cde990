package session

import "time"

// Events receives notifications for the presentation layer. Implementations
// must not block; they are called from session goroutines.
type Events interface {
	RecordingStarted(id string)
	RecordingStopped(id string, audio time.Duration, err error)
	ChunkSent(audio time.Duration, bytes int)
	Level(level float64)
	Silence(ev SilenceEvent)
	PermissionDenied(err error)
}

type NopEvents struct{}

func (NopEvents) RecordingStarted(string)                       {}
func (NopEvents) RecordingStopped(string, time.Duration, error) {}
func (NopEvents) ChunkSent(time.Duration, int)                  {}
func (NopEvents) Level(float64)                                 {}
func (NopEvents) Silence(SilenceEvent)                          {}
func (NopEvents) PermissionDenied(error)                        {}

// MultiEvents fans every notification out to each sink in order.
type MultiEvents []Events

func (m MultiEvents) RecordingStarted(id string) {
	for _, e := range m {
		e.RecordingStarted(id)
	}
}

func (m MultiEvents) RecordingStopped(id string, audio time.Duration, err error) {
	for _, e := range m {
		e.RecordingStopped(id, audio, err)
	}
}

func (m MultiEvents) ChunkSent(audio time.Duration, bytes int) {
	for _, e := range m {
		e.ChunkSent(audio, bytes)
	}
}

func (m MultiEvents) Level(level float64) {
	for _, e := range m {
		e.Level(level)
	}
}

func (m MultiEvents) Silence(ev SilenceEvent) {
	for _, e := range m {
		e.Silence(ev)
	}
}

func (m MultiEvents) PermissionDenied(err error) {
	for _, e := range m {
		e.PermissionDenied(err)
	}
}
