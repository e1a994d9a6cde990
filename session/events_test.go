package session

import (
	"errors"
	"testing"
	"time"
)

type countingEvents struct {
	NopEvents
	started, stopped, denied int
}

func (c *countingEvents) RecordingStarted(string)                       { c.started++ }
func (c *countingEvents) RecordingStopped(string, time.Duration, error) { c.stopped++ }
func (c *countingEvents) PermissionDenied(error)                        { c.denied++ }

func TestMultiEventsFansOut(t *testing.T) {
	a, b := &countingEvents{}, &countingEvents{}
	m := MultiEvents{a, b}

	m.RecordingStarted("x")
	m.ChunkSent(time.Second, 1)
	m.Level(0.3)
	m.Silence(SilenceWarn)
	m.RecordingStopped("x", time.Second, nil)
	m.PermissionDenied(errors.New("no"))

	for i, c := range []*countingEvents{a, b} {
		if c.started != 1 || c.stopped != 1 || c.denied != 1 {
			t.Errorf("sink %d: started=%d stopped=%d denied=%d", i, c.started, c.stopped, c.denied)
		}
	}
}
