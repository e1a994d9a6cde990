package doctor

import (
	"bytes"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"voicecue/devserver"
	"voicecue/encoder"
	"voicecue/interpret"
)

func TestCheckServer(t *testing.T) {
	srv := devserver.New(devserver.Config{UploadDir: t.TempDir()}, zerolog.Nop())
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	var out bytes.Buffer
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	if !checkServer(&out, url, 5*time.Second) {
		t.Fatalf("check failed:\n%s", out.String())
	}
	if !strings.Contains(out.String(), "final answer") {
		t.Errorf("output = %q", out.String())
	}
}

func TestCheckServerUnreachable(t *testing.T) {
	ts := httptest.NewServer(nil)
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	ts.Close()

	var out bytes.Buffer
	if checkServer(&out, url, time.Second) {
		t.Fatal("closed server should fail the check")
	}
	if !strings.Contains(out.String(), "FAIL") {
		t.Errorf("output = %q", out.String())
	}
}

func TestCheckResources(t *testing.T) {
	dir := t.TempDir()
	wav := filepath.Join(dir, "door.wav")
	png := filepath.Join(dir, "door.png")
	if err := os.WriteFile(wav, encoder.WAV(make([]byte, 320), 16000), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(png, []byte("png"), 0644); err != nil {
		t.Fatal(err)
	}

	good := interpret.NewResources(
		map[interpret.ResultID]interpret.Sound{"0": {Path: wav}},
		map[interpret.ResultID]interpret.Animation{"0": {Image: png}},
	)
	var out bytes.Buffer
	if !checkResources(&out, good) {
		t.Fatalf("valid resources failed:\n%s", out.String())
	}

	bad := interpret.NewResources(
		map[interpret.ResultID]interpret.Sound{"0": {Path: png}, "1": {Path: filepath.Join(dir, "missing.wav")}},
		nil,
	)
	out.Reset()
	if checkResources(&out, bad) {
		t.Fatal("broken resources passed")
	}
	if got := strings.Count(out.String(), "FAIL"); got != 2 {
		t.Errorf("want 2 failures, got %d:\n%s", got, out.String())
	}

	out.Reset()
	if checkResources(&out, interpret.NewResources(nil, nil)) {
		t.Error("empty resources passed")
	}
}

func TestPeakLevel(t *testing.T) {
	if got := peakLevel(make([]byte, 100)); got != 0 {
		t.Errorf("silence peak = %v", got)
	}
	loud := []byte{0xff, 0x7f, 0x00, 0x80} // 32767, -32768
	if got := peakLevel(loud); got < 1 {
		t.Errorf("full-scale peak = %v", got)
	}
}
