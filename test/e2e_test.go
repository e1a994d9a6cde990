package test_test

import (
	"context"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"voicecue/audio"
	"voicecue/devserver"
	"voicecue/encoder"
	"voicecue/interpret"
	"voicecue/metrics"
	"voicecue/session"
	"voicecue/transport"
)

type outputs struct {
	mu       sync.Mutex
	sounds   []string
	anims    []interpret.ResultID
	outcomes []interpret.Outcome
}

func (o *outputs) Play(s interpret.Sound) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.sounds = append(o.sounds, s.Name)
}

func (o *outputs) Animate(id interpret.ResultID, _ interpret.Animation) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.anims = append(o.anims, id)
}

func (o *outputs) outcome(out interpret.Outcome, _ interpret.PresentationState) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.outcomes = append(o.outcomes, out)
}

func (o *outputs) count() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.outcomes)
}

func (o *outputs) last() interpret.Outcome {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.outcomes[len(o.outcomes)-1]
}

type env struct {
	clock   *clock.Mock
	sess    *session.Session
	out     *outputs
	uploads string
}

// newEnv wires a session and an interpreter to an in-process dev server the
// same way main does, with a replayed second of silence as the microphone.
func newEnv(t *testing.T) *env {
	t.Helper()
	uploads := t.TempDir()
	srv := devserver.New(devserver.Config{UploadDir: uploads}, zerolog.Nop())
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	reg := metrics.New(prometheus.NewRegistry())
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, err := transport.Dial(ctx, "ws"+strings.TrimPrefix(ts.URL, "http")+"/ws", transport.Options{Metrics: reg})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { conn.Close() })

	e := &env{clock: clock.NewMock(), out: &outputs{}, uploads: uploads}
	in := interpret.New(interpret.Options{
		Player:    e.out,
		Animator:  e.out,
		Metrics:   reg,
		OnOutcome: e.out.outcome,
	})
	conn.Subscribe(transport.EventServerResponse, in.HandleRaw)

	pcm := make([]byte, 2*encoder.SampleRate)
	e.sess = session.New(session.Config{ChunkInterval: time.Second}, session.Deps{
		Open: func() (audio.CaptureDevice, error) {
			return audio.NewFakeCapture(pcm, false), nil
		},
		Emitter:  conn,
		Clock:    e.clock,
		Uploader: transport.NewUploader(ts.URL),
		Metrics:  reg,
	})
	t.Cleanup(func() { e.sess.Close() })
	return e
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestRecordingGetsFinalAnswer(t *testing.T) {
	e := newEnv(t)

	if err := e.sess.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	e.clock.Add(time.Second)
	waitFor(t, "first chunk", func() bool { return e.sess.Status().Chunks == 1 })
	if err := e.sess.Stop(); err != nil {
		t.Fatal(err)
	}

	waitFor(t, "server response", func() bool { return e.out.count() == 1 })
	got := e.out.last()
	if got.Kind != interpret.KindFinal || got.ResultID != "0" {
		t.Fatalf("outcome = %+v, want final #0", got)
	}
	e.out.mu.Lock()
	sounds, anims := e.out.sounds, e.out.anims
	e.out.mu.Unlock()
	if len(sounds) != 1 || sounds[0] != "door" || len(anims) != 1 || anims[0] != "0" {
		t.Errorf("sounds=%v animations=%v", sounds, anims)
	}

	e.sess.Close()
	files, err := os.ReadDir(e.uploads)
	if err != nil || len(files) != 1 {
		t.Fatalf("uploads = %v, %v", files, err)
	}
}

func TestEmptyRecordingAsksForMoreInfo(t *testing.T) {
	e := newEnv(t)

	if err := e.sess.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := e.sess.Stop(); err != nil {
		t.Fatal(err)
	}

	waitFor(t, "server response", func() bool { return e.out.count() == 1 })
	got := e.out.last()
	if got.Kind != interpret.KindClarification || got.Text == "" {
		t.Fatalf("outcome = %+v, want a clarification", got)
	}
	e.out.mu.Lock()
	defer e.out.mu.Unlock()
	if len(e.out.sounds) != 0 || len(e.out.anims) != 0 {
		t.Error("a clarification must not play or animate anything")
	}
}

func TestConsecutiveRecordingsRotateResults(t *testing.T) {
	e := newEnv(t)

	for i, want := range []interpret.ResultID{"0", "1"} {
		if err := e.sess.Start(context.Background()); err != nil {
			t.Fatal(err)
		}
		e.clock.Add(time.Second)
		waitFor(t, "chunk", func() bool { return e.sess.Status().Chunks == 1 })
		e.sess.Stop()

		waitFor(t, "response", func() bool { return e.out.count() == i+1 })
		if got := e.out.last(); got.ResultID != want {
			t.Errorf("recording %d: result %q, want %q", i, got.ResultID, want)
		}
	}
}
