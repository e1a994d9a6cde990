package audio

import (
	"fmt"
	"sync"
	"time"
)

type Status struct {
	Recording bool
	Duration  time.Duration
	Bytes     int
}

// stopNotifier is implemented by devices that can stop on their own,
// e.g. when the input is unplugged.
type stopNotifier interface {
	Stopped() <-chan struct{}
}

// Recorder owns one capture device for the length of a session and keeps
// every PCM byte it delivers.
type Recorder struct {
	dev        CaptureDevice
	sampleRate int

	mu        sync.Mutex
	pcm       []byte
	recording bool
	finalized bool
	onData    func(pcm []byte)
	done      chan struct{}
}

func NewRecorder(dev CaptureDevice, sampleRate int) *Recorder {
	return &Recorder{dev: dev, sampleRate: sampleRate, done: make(chan struct{})}
}

// OnData registers a hook that sees every block as it arrives. Set it before Start.
func (r *Recorder) OnData(fn func(pcm []byte)) {
	r.mu.Lock()
	r.onData = fn
	r.mu.Unlock()
}

func (r *Recorder) Start() error {
	r.dev.SetCallback(r.write)

	r.mu.Lock()
	r.recording = true
	r.mu.Unlock()

	if err := r.dev.Start(); err != nil {
		r.mu.Lock()
		r.recording = false
		r.finalized = true
		r.mu.Unlock()
		r.dev.ClearCallback()
		r.dev.Close()
		close(r.done)
		return fmt.Errorf("capture start: %w", err)
	}

	if n, ok := r.dev.(stopNotifier); ok {
		go func() {
			select {
			case <-n.Stopped():
				r.Halt()
			case <-r.done:
			}
		}()
	}
	return nil
}

func (r *Recorder) write(data []byte, _ uint32) {
	r.mu.Lock()
	if !r.recording {
		r.mu.Unlock()
		return
	}
	r.pcm = append(r.pcm, data...)
	fn := r.onData
	r.mu.Unlock()
	if fn != nil {
		fn(data)
	}
}

// Halt marks the recording as no longer live without releasing the device.
func (r *Recorder) Halt() {
	r.mu.Lock()
	r.recording = false
	r.mu.Unlock()
}

func (r *Recorder) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Status{
		Recording: r.recording,
		Duration:  r.durationLocked(),
		Bytes:     len(r.pcm),
	}
}

func (r *Recorder) durationLocked() time.Duration {
	if r.sampleRate <= 0 {
		return 0
	}
	return time.Duration(len(r.pcm)/2) * time.Second / time.Duration(r.sampleRate)
}

// Snapshot returns a copy of everything captured so far.
func (r *Recorder) Snapshot() []byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]byte, len(r.pcm))
	copy(out, r.pcm)
	return out
}

func (r *Recorder) SampleRate() int { return r.sampleRate }

// Stop finalizes the capture and releases the device. Only the first call
// touches the device.
func (r *Recorder) Stop() (err error) {
	r.mu.Lock()
	if r.finalized {
		r.mu.Unlock()
		return nil
	}
	r.finalized = true
	r.recording = false
	r.mu.Unlock()

	defer close(r.done)
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("capture finalize: %v", p)
		}
	}()

	r.dev.ClearCallback()
	r.dev.Stop()
	r.dev.Close()
	return nil
}
