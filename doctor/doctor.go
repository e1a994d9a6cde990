// Package doctor walks the user through the checks that have to pass before
// push-to-talk can work on this machine.
package doctor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"sync"
	"time"

	"voicecue/audio"
	"voicecue/clipboard"
	"voicecue/encoder"
	"voicecue/hotkey"
	"voicecue/interpret"
	"voicecue/shutdown"
	"voicecue/sound"
	"voicecue/transport"
)

type Options struct {
	Binding   hotkey.Binding
	ServerURL string
	Resources *interpret.Resources
	Out       io.Writer
}

// Run executes the diagnostic checks and returns an exit code (0=all pass, 1=any fail).
func Run(opts Options) int {
	resetTerminal()
	setupInterruptHandler()

	out := opts.Out
	if out == nil {
		out = os.Stdout
	}

	fmt.Fprintln(out, "voicecue doctor - system diagnostics")
	fmt.Fprintln(out, "====================================")

	checks := []struct {
		title string
		run   func() bool
	}{
		{"Hotkey detection", func() bool { return checkHotkey(out, opts.Binding) }},
		{"Microphone", func() bool { return checkMicrophone(out) }},
		{"Assistant service", func() bool { return checkServer(out, opts.ServerURL, 5*time.Second) }},
		{"Result sounds and pictures", func() bool { return checkResources(out, opts.Resources) }},
		{"Clipboard", func() bool { return checkClipboard(out) }},
	}

	allPass := true
	for i, c := range checks {
		fmt.Fprintf(out, "\n[%d/%d] %s\n", i+1, len(checks), c.title)
		if !c.run() {
			allPass = false
		}
	}

	fmt.Fprintln(out)
	if allPass {
		fmt.Fprintln(out, "All checks passed!")
		return 0
	}
	fmt.Fprintln(out, "Some checks failed. See details above.")
	return 1
}

func checkHotkey(out io.Writer, b hotkey.Binding) bool {
	fmt.Fprintf(out, "Press %s...\n", b)

	hk := hotkey.New(b)
	if err := hk.Register(); err != nil {
		fmt.Fprintf(out, "  FAIL: could not register hotkey: %v\n", err)
		if msg, derr := hotkey.Diagnose(b); derr == nil && msg != "" {
			fmt.Fprintf(out, "  %s\n", msg)
		}
		return false
	}
	defer hk.Unregister()

	select {
	case <-hk.Keydown():
		fmt.Fprintln(out, "  PASS: hotkey detected")
		select {
		case <-hk.Keyup():
		case <-time.After(5 * time.Second):
		}
		resetTerminal()
		return true
	case <-time.After(10 * time.Second):
		fmt.Fprintln(out, "  FAIL: timeout waiting for hotkey")
		return false
	}
}

func checkMicrophone(out io.Writer) bool {
	ctx, err := audio.NewContext()
	if err != nil {
		fmt.Fprintf(out, "  FAIL: cannot connect to audio: %v\n", err)
		return false
	}
	defer ctx.Close()

	if err := (audio.DevicePermission{Ctx: ctx}).Request(context.Background()); err != nil {
		fmt.Fprintf(out, "  FAIL: %v\n", err)
		return false
	}

	fmt.Fprintln(out, "Speak for 2 seconds...")
	stop := make(chan struct{})
	time.AfterFunc(2*time.Second, func() { close(stop) })

	pcm, err := recordAudio(out, ctx, nil, stop)
	if err != nil {
		fmt.Fprintf(out, "  FAIL: recording error: %v\n", err)
		return false
	}
	if len(pcm) == 0 {
		fmt.Fprintln(out, "  FAIL: no audio captured")
		return false
	}

	peak := peakLevel(pcm)
	fmt.Fprintf(out, "  Recorded %.1f KB, peak level %.0f%%\n", float64(len(pcm))/1024, peak*100)
	if peak < 0.01 {
		fmt.Fprintln(out, "  FAIL: the microphone only delivered silence (muted?)")
		return false
	}
	fmt.Fprintln(out, "  PASS: microphone delivers audio")
	return true
}

func recordAudio(out io.Writer, ctx audio.Context, device *audio.DeviceInfo, stop <-chan struct{}) ([]byte, error) {
	var pcmBuf []byte
	var bufMu sync.Mutex
	done := make(chan struct{})

	captureDevice, err := ctx.NewCapture(device, audio.CaptureConfig{
		SampleRate: encoder.SampleRate,
		Channels:   encoder.Channels,
	})
	if err != nil {
		return nil, err
	}
	defer captureDevice.Close()

	captureDevice.SetCallback(func(data []byte, _ uint32) {
		bufMu.Lock()
		pcmBuf = append(pcmBuf, data...)
		bufMu.Unlock()
	})
	if err := captureDevice.Start(); err != nil {
		return nil, err
	}

	fmt.Fprint(out, "  Recording")
	ticker := time.NewTicker(500 * time.Millisecond)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				fmt.Fprint(out, ".")
			}
		}
	}()

	<-stop
	close(done)
	captureDevice.Stop()
	captureDevice.ClearCallback()
	fmt.Fprintln(out, " done")

	bufMu.Lock()
	defer bufMu.Unlock()
	return pcmBuf, nil
}

// peakLevel is the loudest sample as a fraction of full scale.
func peakLevel(pcm []byte) float64 {
	var peak float64
	for _, s := range encoder.Samples(pcm) {
		peak = math.Max(peak, math.Abs(float64(s)))
	}
	return peak / math.MaxInt16
}

// checkServer streams half a second of silence through a full
// audioStart/audioChunk/audioEnd exchange and waits for the reply.
func checkServer(out io.Writer, endpoint string, wait time.Duration) bool {
	ctx, cancel := context.WithTimeout(context.Background(), wait)
	defer cancel()

	conn, err := transport.Dial(ctx, endpoint, transport.Options{})
	if err != nil {
		fmt.Fprintf(out, "  FAIL: %v\n", err)
		return false
	}
	defer conn.Close()
	fmt.Fprintf(out, "  Connected to %s\n", endpoint)

	replies := make(chan json.RawMessage, 1)
	conn.Subscribe(transport.EventServerResponse, func(data json.RawMessage) {
		select {
		case replies <- data:
		default:
		}
	})

	pcm := make([]byte, encoder.SampleRate) // 0.5s of 16-bit silence
	chunk, err := encoder.NewChunkEncoder(encoder.ChunkConfig{}).Encode(staticPCM(pcm))
	if err != nil {
		fmt.Fprintf(out, "  FAIL: %v\n", err)
		return false
	}
	err = errors.Join(
		conn.Emit(transport.EventAudioStart, nil),
		conn.Emit(transport.EventAudioChunk, transport.ChunkPayload{
			Data:     chunk.Payload,
			Metadata: &transport.ChunkMetadata{SampleRate: chunk.SampleRate, Format: string(chunk.Format)},
		}),
		conn.Emit(transport.EventAudioEnd, nil),
	)
	if err != nil {
		fmt.Fprintf(out, "  FAIL: %v\n", err)
		return false
	}

	select {
	case data := <-replies:
		msg, err := interpret.ParseMessage(data)
		if err != nil {
			fmt.Fprintf(out, "  FAIL: unreadable reply: %v\n", err)
			return false
		}
		kind := "final answer"
		if msg.IsClarification() {
			kind = "clarification"
		}
		fmt.Fprintf(out, "  PASS: assistant replied (%s)\n", kind)
		return true
	case <-ctx.Done():
		fmt.Fprintln(out, "  FAIL: no serverResponse after audioEnd")
		return false
	}
}

func setupInterruptHandler() {
	sigChan := make(chan os.Signal, 1)
	shutdown.Notify(sigChan)
	go func() {
		<-sigChan
		fmt.Fprintln(os.Stderr, "\nInterrupted")
		os.Exit(1)
	}()
}

type staticPCM []byte

func (p staticPCM) Snapshot() []byte { return append([]byte(nil), p...) }

// checkResources makes sure every configured sound decodes and every picture
// exists.
func checkResources(out io.Writer, res *interpret.Resources) bool {
	ids := res.IDs()
	if len(ids) == 0 {
		fmt.Fprintln(out, "  FAIL: no result ids configured")
		return false
	}

	ok := true
	for _, id := range ids {
		if s, found := res.Sound(id); found {
			if err := checkSound(s.Path); err != nil {
				fmt.Fprintf(out, "  FAIL: sound #%s: %v\n", id, err)
				ok = false
			}
		} else {
			fmt.Fprintf(out, "  note: #%s has no sound\n", id)
		}
		if a, found := res.Animation(id); found {
			if _, err := os.Stat(a.Image); err != nil {
				fmt.Fprintf(out, "  FAIL: picture #%s: %v\n", id, err)
				ok = false
			}
		} else {
			fmt.Fprintf(out, "  note: #%s has no picture\n", id)
		}
	}
	if ok {
		fmt.Fprintf(out, "  PASS: %d result ids ready\n", len(ids))
	}
	return ok
}

func checkSound(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	_, err = sound.DecodeWAV(data)
	return err
}

func checkClipboard(out io.Writer) bool {
	prev, err := clipboard.Read()
	if err != nil {
		fmt.Fprintf(out, "  FAIL: %v\n", err)
		return false
	}
	defer clipboard.Copy(prev)

	const probe = "voicecue-doctor-test"
	if err := clipboard.Copy(probe); err != nil {
		fmt.Fprintf(out, "  FAIL: clipboard copy failed: %v\n", err)
		return false
	}
	got, err := clipboard.Read()
	if err != nil {
		fmt.Fprintf(out, "  FAIL: could not read clipboard back: %v\n", err)
		return false
	}
	if got != probe {
		fmt.Fprintf(out, "  FAIL: clipboard returned %q, want %q\n", got, probe)
		return false
	}
	fmt.Fprintln(out, "  PASS: clarifications can be copied")
	return true
}
