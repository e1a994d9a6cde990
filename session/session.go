// Package session runs one microphone recording at a time and streams
// snapshots of it to the assistant while the key is held.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"

	"voicecue/audio"
	"voicecue/encoder"
	"voicecue/log"
	"voicecue/metrics"
	"voicecue/transport"
)

var ErrCapture = errors.New("capture error")

type State int

const (
	StateIdle State = iota
	StateRecording
	StateStopping
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateRecording:
		return "recording"
	case StateStopping:
		return "stopping"
	case StateStopped:
		return "stopped"
	}
	return "idle"
}

// Status is a consistent view of the session and the handles it owns.
type Status struct {
	State       State
	ID          string
	TimerArmed  bool
	CaptureHeld bool
	StartedAt   time.Time
	Chunks      int
	Dropped     int
}

type Config struct {
	ChunkInterval time.Duration // default 1s
	MaxDuration   time.Duration // 0 records until Stop
	SampleRate    int
	Silence       SilenceConfig
}

// Uploader sends the finished recording over plain HTTP.
type Uploader interface {
	Upload(ctx context.Context, wav []byte) (*transport.UploadResult, error)
}

type Deps struct {
	Open       audio.Opener
	Permission audio.Permission
	Emitter    transport.Emitter
	Encoder    *encoder.ChunkEncoder
	Clock      clock.Clock
	Uploader   Uploader
	Events     Events
	Metrics    *metrics.Metrics
}

type Session struct {
	cfg  Config
	deps Deps

	startMu sync.Mutex

	mu        sync.Mutex
	state     State
	id        string
	startedAt time.Time
	rec       *audio.Recorder
	ticker    *clock.Ticker
	deadline  *clock.Timer
	stopTick  chan struct{}
	done      chan struct{}
	chunks    int
	dropped   int
	sentBytes int

	uploads sync.WaitGroup
}

func New(cfg Config, deps Deps) *Session {
	if cfg.ChunkInterval <= 0 {
		cfg.ChunkInterval = time.Second
	}
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = encoder.SampleRate
	}
	if deps.Clock == nil {
		deps.Clock = clock.New()
	}
	if deps.Events == nil {
		deps.Events = NopEvents{}
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.Default
	}
	if deps.Emitter == nil {
		deps.Emitter = transport.Offline{}
	}
	if deps.Encoder == nil {
		deps.Encoder = encoder.NewChunkEncoder(encoder.ChunkConfig{SampleRate: cfg.SampleRate})
	}
	if deps.Permission == nil {
		deps.Permission = audio.PermissionFunc(func(context.Context) error { return nil })
	}
	done := make(chan struct{})
	close(done)
	return &Session{cfg: cfg, deps: deps, done: done}
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Status{
		State:       s.state,
		ID:          s.id,
		TimerArmed:  s.ticker != nil,
		CaptureHeld: s.rec != nil,
		StartedAt:   s.startedAt,
		Chunks:      s.chunks,
		Dropped:     s.dropped,
	}
}

// Done is closed when the current (or most recent) recording has fully stopped.
func (s *Session) Done() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done
}

// Start begins a recording. It is a no-op while one is already running.
// A refused permission returns an error wrapping audio.ErrPermissionDenied;
// device failures return ErrCapture. In both cases nothing is left running.
func (s *Session) Start(ctx context.Context) error {
	s.startMu.Lock()
	defer s.startMu.Unlock()

	if st := s.State(); st == StateRecording || st == StateStopping {
		return nil
	}

	if err := s.deps.Permission.Request(ctx); err != nil {
		if !errors.Is(err, audio.ErrPermissionDenied) && ctx.Err() == nil {
			err = fmt.Errorf("%w: %v", audio.ErrPermissionDenied, err)
		}
		log.Warnf("session: start refused: %v", err)
		s.deps.Metrics.SessionsDenied.Inc()
		s.deps.Events.PermissionDenied(err)
		return err
	}

	if s.deps.Open == nil {
		return fmt.Errorf("%w: no capture device configured", ErrCapture)
	}
	dev, err := s.deps.Open()
	if err != nil {
		log.Errorf("session: open capture: %v", err)
		return fmt.Errorf("%w: %v", ErrCapture, err)
	}

	rec := audio.NewRecorder(dev, s.cfg.SampleRate)
	var speech *speechDetector
	if s.cfg.Silence.Enabled {
		speech = newSpeechDetector(s.cfg.SampleRate)
		rec.OnData(speech.Process)
	}
	if err := rec.Start(); err != nil {
		log.Errorf("session: %v", err)
		return fmt.Errorf("%w: %v", ErrCapture, err)
	}

	s.deps.Encoder.Reset()
	id := uuid.NewString()
	ticker := s.deps.Clock.Ticker(s.cfg.ChunkInterval)
	stopTick := make(chan struct{})

	s.mu.Lock()
	s.state = StateRecording
	s.id = id
	s.startedAt = s.deps.Clock.Now()
	s.rec = rec
	s.ticker = ticker
	s.stopTick = stopTick
	s.done = make(chan struct{})
	s.chunks, s.dropped, s.sentBytes = 0, 0, 0
	if s.cfg.MaxDuration > 0 {
		s.deadline = s.deps.Clock.AfterFunc(s.cfg.MaxDuration, func() {
			log.Infof("session %s: reached max duration %v", id, s.cfg.MaxDuration)
			s.stopIfCurrent(rec)
		})
	}
	s.mu.Unlock()

	go s.tickLoop(ticker, stopTick, rec)
	if speech != nil {
		go s.silenceLoop(stopTick, rec, speech)
	}

	if err := s.deps.Emitter.Emit(transport.EventAudioStart, nil); err != nil {
		log.Warnf("session %s: audioStart not sent: %v", id, err)
	}

	cc := s.deps.Encoder.Config()
	log.SessionStart(id, string(cc.Framing), string(cc.Format), s.cfg.ChunkInterval)
	s.deps.Metrics.RecordSessionStart()
	s.deps.Events.RecordingStarted(id)
	return nil
}

func (s *Session) tickLoop(ticker *clock.Ticker, stop <-chan struct{}, rec *audio.Recorder) {
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			// ticks may overlap when encoding is slower than the interval
			go s.tick(rec)
		}
	}
}

func (s *Session) tick(rec *audio.Recorder) {
	s.mu.Lock()
	if s.state != StateRecording || s.rec != rec {
		s.mu.Unlock()
		return
	}
	id := s.id
	s.mu.Unlock()

	st := rec.Status()
	if !st.Recording {
		log.Warnf("session %s: capture stopped underneath the session", id)
		s.stopIfCurrent(rec)
		return
	}

	chunk, err := s.deps.Encoder.Encode(rec)
	if err != nil {
		reason := "encode"
		if errors.Is(err, encoder.ErrNoAudio) {
			reason = "empty"
		}
		s.drop(id, reason, err)
		return
	}

	payload := transport.ChunkPayload{
		Data: chunk.Payload,
		Metadata: &transport.ChunkMetadata{
			SampleRate: chunk.SampleRate,
			Format:     string(chunk.Format),
		},
	}
	if err := s.deps.Emitter.Emit(transport.EventAudioChunk, payload); err != nil {
		s.drop(id, "emit", err)
		return
	}

	s.mu.Lock()
	if s.id == id {
		s.chunks++
		s.sentBytes += chunk.Bytes
	}
	s.mu.Unlock()
	log.ChunkEmitted(id, chunk.Bytes, chunk.Duration())
	s.deps.Metrics.RecordChunk(chunk.Bytes)
	s.deps.Events.ChunkSent(st.Duration, chunk.Bytes)
}

func (s *Session) drop(id, reason string, err error) {
	s.mu.Lock()
	if s.id == id {
		s.dropped++
	}
	s.mu.Unlock()
	s.deps.Metrics.ChunksDropped.WithLabelValues(reason).Inc()
	log.ChunkDropped(id, err)
}

func (s *Session) silenceLoop(stop <-chan struct{}, rec *audio.Recorder, speech *speechDetector) {
	ticker := s.deps.Clock.Ticker(levelInterval)
	defer ticker.Stop()
	mon := newSilenceMonitor(s.cfg.Silence)

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}
		s.deps.Events.Level(speech.Level())
		ev := mon.Tick(speech.HasSpeechTick())
		if ev == SilenceNone {
			continue
		}
		s.deps.Events.Silence(ev)
		if ev == SilenceAutoClose {
			log.Info("session: closing after sustained silence")
			go s.stopIfCurrent(rec)
			return
		}
	}
}

// stopIfCurrent stops the session only if rec still belongs to it, so a late
// timer from an earlier recording cannot end a newer one.
func (s *Session) stopIfCurrent(rec *audio.Recorder) {
	s.mu.Lock()
	current := s.rec == rec && s.state == StateRecording
	s.mu.Unlock()
	if current {
		s.Stop()
	}
}

// Stop ends the recording: the chunk timer is cancelled, the capture device is
// finalized and released, audioEnd is sent and the handle is dropped. Every
// step runs even when an earlier one fails. A failed audioEnd is only logged.
// Calling Stop without an active recording does nothing.
func (s *Session) Stop() error {
	s.mu.Lock()
	if s.rec == nil || s.state != StateRecording {
		s.mu.Unlock()
		return nil
	}
	s.state = StateStopping
	rec, id := s.rec, s.id
	ticker, stopTick, deadline := s.ticker, s.stopTick, s.deadline
	s.ticker, s.stopTick, s.deadline = nil, nil, nil
	done := s.done
	s.mu.Unlock()

	var errs []error

	func() {
		defer func() {
			if p := recover(); p != nil {
				errs = append(errs, fmt.Errorf("cancel timer: %v", p))
			}
		}()
		ticker.Stop()
		close(stopTick)
		if deadline != nil {
			deadline.Stop()
		}
	}()

	if err := rec.Stop(); err != nil {
		errs = append(errs, fmt.Errorf("%w: %v", ErrCapture, err))
	}

	// a lost connection is logged, never returned
	if err := s.deps.Emitter.Emit(transport.EventAudioEnd, nil); err != nil {
		log.Warnf("session %s: audioEnd not sent: %v", id, err)
		if errors.Is(err, transport.ErrNotConnected) {
			// a live Conn counts its own failures
			s.deps.Metrics.EmitErrors.WithLabelValues(transport.EventAudioEnd).Inc()
		}
	}

	status := rec.Status()
	s.mu.Lock()
	s.rec = nil
	s.state = StateStopped
	chunks, dropped, sent := s.chunks, s.dropped, s.sentBytes
	s.mu.Unlock()

	err := errors.Join(errs...)
	if err != nil {
		log.Errorf("session %s: stop: %v", id, err)
	}
	log.SessionEnd(log.SessionEndData{
		ID:       id,
		AudioS:   status.Duration.Seconds(),
		Chunks:   chunks,
		Dropped:  dropped,
		SentKB:   float64(sent) / 1024,
		StopErrs: len(errs),
	})
	s.deps.Metrics.RecordSessionEnd(status.Duration)

	if s.deps.Uploader != nil && status.Bytes > 0 {
		s.upload(id, encoder.WAV(rec.Snapshot(), rec.SampleRate()))
	}

	close(done)
	s.deps.Events.RecordingStopped(id, status.Duration, err)
	return err
}

func (s *Session) upload(id string, wav []byte) {
	s.uploads.Add(1)
	go func() {
		defer s.uploads.Done()
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		res, err := s.deps.Uploader.Upload(ctx, wav)
		s.deps.Metrics.RecordUpload(err)
		if err != nil {
			log.Errorf("session %s: upload: %v", id, err)
			return
		}
		log.Infof("session %s: uploaded %d bytes to %s", id, len(wav), res.FilePath)
	}()
}

// Close stops any running recording and waits for pending uploads.
func (s *Session) Close() error {
	err := s.Stop()
	s.uploads.Wait()
	return err
}
