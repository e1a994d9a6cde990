package audio

import (
	"fmt"
	"os"
	"sync"
	"time"

	"voicecue/encoder"
)

const (
	fakeFrameSize     = 1024
	fakeBytesPerFrame = 2 // 16-bit mono
)

// FakeContext replays a WAV file instead of talking to an audio server.
type FakeContext struct {
	pcm      []byte
	realtime bool
}

func NewFakeContext(wavPath string, realtime bool) (*FakeContext, error) {
	data, err := os.ReadFile(wavPath)
	if err != nil {
		return nil, err
	}
	pcm, _, ok := encoder.ParseWAV(data)
	if !ok {
		return nil, fmt.Errorf("%s: not a 16-bit wav file", wavPath)
	}
	return &FakeContext{pcm: pcm, realtime: realtime}, nil
}

func (f *FakeContext) Devices() ([]DeviceInfo, error) {
	return []DeviceInfo{{ID: "fake", Name: "fake"}}, nil
}

func (f *FakeContext) Close() {}

func (f *FakeContext) NewCapture(_ *DeviceInfo, _ CaptureConfig) (CaptureDevice, error) {
	return NewFakeCapture(f.pcm, f.realtime), nil
}

// FakeCapture delivers pcm to its callback. Non-realtime captures deliver
// everything synchronously inside Start; realtime ones pace it at the
// encoder sample rate. Push feeds extra data by hand.
type FakeCapture struct {
	pcm      []byte
	realtime bool

	// StartErr, when set, is returned by Start.
	StartErr error

	mu       sync.Mutex
	cb       DataCallback
	starts   int
	stops    int
	closed   bool
	stopCh   chan struct{}
	feedDone chan struct{}
	stopped  chan struct{}
	haltOnce sync.Once
}

func NewFakeCapture(pcm []byte, realtime bool) *FakeCapture {
	return &FakeCapture{pcm: pcm, realtime: realtime, stopped: make(chan struct{})}
}

func (f *FakeCapture) SetCallback(cb DataCallback) {
	f.mu.Lock()
	f.cb = cb
	f.mu.Unlock()
}

func (f *FakeCapture) ClearCallback() {
	f.mu.Lock()
	f.cb = nil
	f.mu.Unlock()
}

func (f *FakeCapture) DeviceName() string { return "fake" }

// Push hands data to the current callback as if the device had produced it.
func (f *FakeCapture) Push(data []byte) {
	f.mu.Lock()
	cb := f.cb
	f.mu.Unlock()
	if cb != nil {
		chunk := append([]byte(nil), data...)
		cb(chunk, uint32(len(chunk)/fakeBytesPerFrame))
	}
}

// Halt simulates the device going away underneath the recorder.
func (f *FakeCapture) Halt() {
	f.haltOnce.Do(func() { close(f.stopped) })
}

func (f *FakeCapture) Stopped() <-chan struct{} { return f.stopped }

func (f *FakeCapture) Start() error {
	if f.StartErr != nil {
		return f.StartErr
	}

	f.mu.Lock()
	f.starts++
	f.stopCh = make(chan struct{})
	f.feedDone = make(chan struct{})
	stopCh, feedDone := f.stopCh, f.feedDone
	f.mu.Unlock()

	chunkBytes := fakeFrameSize * fakeBytesPerFrame

	if !f.realtime {
		for pos := 0; pos < len(f.pcm); pos += chunkBytes {
			f.Push(f.pcm[pos:min(pos+chunkBytes, len(f.pcm))])
		}
		close(feedDone)
		return nil
	}

	interval := time.Duration(fakeFrameSize) * time.Second / time.Duration(encoder.SampleRate)
	go func() {
		defer close(feedDone)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for pos := 0; pos < len(f.pcm); pos += chunkBytes {
			f.Push(f.pcm[pos:min(pos+chunkBytes, len(f.pcm))])
			select {
			case <-stopCh:
				return
			case <-ticker.C:
			}
		}
	}()
	return nil
}

func (f *FakeCapture) Stop() {
	f.mu.Lock()
	stopCh, feedDone := f.stopCh, f.feedDone
	if stopCh != nil {
		f.stops++
	}
	f.mu.Unlock()
	if stopCh == nil {
		return
	}
	select {
	case <-stopCh:
	default:
		close(stopCh)
	}
	<-feedDone
}

func (f *FakeCapture) Close() {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
}

// Counts reports how often Start and Stop ran and whether Close was called.
func (f *FakeCapture) Counts() (starts, stops int, closed bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.starts, f.stops, f.closed
}
