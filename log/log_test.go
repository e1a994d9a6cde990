package log

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func setupLogDir(t *testing.T) string {
	t.Helper()
	tmp := t.TempDir()
	SetDir(tmp)
	t.Cleanup(func() { Close(); SetDir("") })
	return tmp
}

func TestResolveDir(t *testing.T) {
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		flag string
		env  string
		want string
	}{
		{"flag absolute", "/tmp/mylog", "", "/tmp/mylog"},
		{"flag relative", "logs", "", filepath.Join(wd, "logs")},
		{"flag beats env", "/tmp/flag", "/tmp/env", "/tmp/flag"},
		{"env absolute", "", "/tmp/voicecue-env-log", "/tmp/voicecue-env-log"},
		{"env relative", "", "envlogs", filepath.Join(wd, "envlogs")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("VOICECUE_LOG_PATH", tt.env)
			got, err := ResolveDir(tt.flag)
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestResolveDirDefault(t *testing.T) {
	t.Setenv("VOICECUE_LOG_PATH", "")
	got, err := ResolveDir("")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(got, appName) {
		t.Errorf("default dir %q does not mention %s", got, appName)
	}
}

func TestInitCreatesFiles(t *testing.T) {
	tmp := setupLogDir(t)

	if err := Init(); err != nil {
		t.Fatal(err)
	}

	for _, name := range []string{"diagnostics_log.txt", "responses_log.txt"} {
		path := filepath.Join(tmp, name)
		if _, err := os.Stat(path); err != nil {
			t.Errorf("%s not created: %v", name, err)
		}
	}
}

func TestResponseAppendsLine(t *testing.T) {
	tmp := setupLogDir(t)

	if err := Init(); err != nil {
		t.Fatal(err)
	}

	Response("final", "1", []byte(`{"resultId":"1"}`))

	data, err := os.ReadFile(filepath.Join(tmp, "responses_log.txt"))
	if err != nil {
		t.Fatal(err)
	}
	line := string(data)
	if !strings.Contains(line, `{"resultId":"1"}`) {
		t.Errorf("responses_log.txt missing payload, got: %q", line)
	}
	// format: "2006-01-02 15:04:05\t[pid]\tkind\tpayload\n"
	if strings.Count(line, "\t") != 3 {
		t.Errorf("expected tab-separated format, got: %q", line)
	}
}

func TestDiagnosticsFields(t *testing.T) {
	tmp := setupLogDir(t)

	if err := Init(); err != nil {
		t.Fatal(err)
	}

	MissingResource("sound", "42")
	ChunkDropped("abc", errors.New("boom"))
	Close()

	data, err := os.ReadFile(filepath.Join(tmp, "diagnostics_log.txt"))
	if err != nil {
		t.Fatal(err)
	}
	out := string(data)
	for _, want := range []string{"no_resource_for_id", "result_id=42", "chunk_dropped", "session=abc"} {
		if !strings.Contains(out, want) {
			t.Errorf("diagnostics missing %q:\n%s", want, out)
		}
	}
}

func TestChunkEmittedOnlyAtDebug(t *testing.T) {
	for _, tt := range []struct {
		level zerolog.Level
		want  bool
	}{
		{zerolog.InfoLevel, false},
		{zerolog.DebugLevel, true},
	} {
		tmp := setupLogDir(t)
		SetLevel(tt.level)
		if err := Init(); err != nil {
			t.Fatal(err)
		}
		ChunkEmitted("abc", 1024, time.Second)
		Close()

		data, err := os.ReadFile(filepath.Join(tmp, "diagnostics_log.txt"))
		if err != nil {
			t.Fatal(err)
		}
		if got := strings.Contains(string(data), "chunk_emitted"); got != tt.want {
			t.Errorf("level %v: chunk_emitted logged = %v", tt.level, got)
		}
	}
	SetLevel(zerolog.InfoLevel)
}

func TestHelpersBeforeInit(t *testing.T) {
	Close()
	// must not panic without an open log
	Info("x")
	Warnf("%d", 1)
	Response("final", "0", nil)
	MissingResource("animation", "0")
}

func TestCloseIdempotent(t *testing.T) {
	setupLogDir(t)

	if err := Init(); err != nil {
		t.Fatal(err)
	}
	Close()
	Close() // should not panic
}
