package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"voicecue/encoder"
	"voicecue/interpret"
)

func lookupFrom(env map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}
}

func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestFromEnv(t *testing.T) {
	c, err := FromEnv(lookupFrom(map[string]string{
		EnvServerURL:     "wss://assistant.example/ws",
		EnvUploadURL:     "https://assistant.example",
		EnvChunkInterval: "500ms",
		EnvMaxDuration:   "2m",
		EnvFraming:       "incremental",
		EnvFormat:        "flac",
		EnvFallbackID:    "0",
		EnvHotkey:        "shift+f9",
	}))
	if err != nil {
		t.Fatal(err)
	}
	if c.ServerURL != "wss://assistant.example/ws" || c.UploadURL != "https://assistant.example" {
		t.Errorf("urls = %q %q", c.ServerURL, c.UploadURL)
	}
	if c.ChunkInterval != 500*time.Millisecond || c.MaxDuration != 2*time.Minute {
		t.Errorf("durations = %v %v", c.ChunkInterval, c.MaxDuration)
	}
	if c.Framing != encoder.FramingIncremental || c.Format != encoder.FormatFLAC {
		t.Errorf("framing=%s format=%s", c.Framing, c.Format)
	}
	if c.FallbackID != "0" || c.Hotkey != "shift+f9" {
		t.Errorf("fallback=%q hotkey=%q", c.FallbackID, c.Hotkey)
	}
}

func TestFromEnvErrors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"bad duration", map[string]string{EnvChunkInterval: "soon"}, EnvChunkInterval},
		{"bad framing", map[string]string{EnvFraming: "sliding"}, EnvFraming},
		{"bad format", map[string]string{EnvFormat: "mp3"}, EnvFormat},
		{"http server url", map[string]string{EnvServerURL: "http://localhost:5000"}, "scheme"},
		{"ws upload url", map[string]string{EnvUploadURL: "ws://localhost:5000"}, "upload url"},
		{"tiny interval", map[string]string{EnvChunkInterval: "10ms"}, "chunk interval"},
		{"negative max", map[string]string{EnvMaxDuration: "-1s"}, "max duration"},
		{"bad hotkey", map[string]string{EnvHotkey: "alt+x"}, "modifier"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FromEnv(lookupFrom(tt.env))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("err = %v, want mention of %q", err, tt.want)
			}
		})
	}
}

func TestLoadReadsDotEnv(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("VOICECUE_CHUNK_INTERVAL=250ms\n"), 0644); err != nil {
		t.Fatal(err)
	}
	t.Chdir(dir)
	t.Setenv(EnvMaxDuration, "5s")
	// godotenv sets the variable for the process; register it so it is restored.
	t.Setenv(EnvChunkInterval, "")
	os.Unsetenv(EnvChunkInterval)

	c, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if c.ChunkInterval != 250*time.Millisecond {
		t.Errorf("ChunkInterval = %v, want value from .env", c.ChunkInterval)
	}
	if c.MaxDuration != 5*time.Second {
		t.Errorf("MaxDuration = %v", c.MaxDuration)
	}
}

func TestLoadWithoutDotEnv(t *testing.T) {
	t.Chdir(t.TempDir())
	if _, err := Load(); err != nil {
		t.Fatalf("missing .env should be ignored: %v", err)
	}
}

func writeManifest(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "manifest.yaml")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadManifest(t *testing.T) {
	path := writeManifest(t, `
sounds:
  "0": sounds/door.wav
  "7": /usr/share/sounds/bell.wav
animations:
  "0":
    name: door
    image: img/door.png
    fade_out: 400ms
    fade_in: 600ms
  "7":
    image: img/bell.png
`)
	res, err := LoadManifest(path)
	if err != nil {
		t.Fatal(err)
	}
	base := filepath.Dir(path)

	s, ok := res.Sound("0")
	if !ok || s.Path != filepath.Join(base, "sounds/door.wav") || s.Name != "door" {
		t.Errorf("sound 0 = %+v, %v", s, ok)
	}
	if s, _ := res.Sound("7"); s.Path != "/usr/share/sounds/bell.wav" {
		t.Errorf("absolute path rewritten: %q", s.Path)
	}

	a, ok := res.Animation("0")
	if !ok || a.Image != filepath.Join(base, "img/door.png") {
		t.Errorf("animation 0 = %+v, %v", a, ok)
	}
	if a.FadeOut != 400*time.Millisecond || a.FadeIn != 600*time.Millisecond {
		t.Errorf("fades = %v %v", a.FadeOut, a.FadeIn)
	}
	if a, _ := res.Animation("7"); a.Name != "bell" {
		t.Errorf("unnamed animation should take the image stem, got %q", a.Name)
	}
	if _, ok := res.Sound("1"); ok {
		t.Error("ids absent from the manifest must not resolve")
	}
}

func TestLoadManifestErrors(t *testing.T) {
	tests := []struct {
		name, body, want string
	}{
		{"empty", "{}", "no sounds"},
		{"empty sound path", "sounds:\n  \"0\": \"\"\n", "path cannot be empty"},
		{"missing image", "animations:\n  \"0\": {name: door}\n", "image cannot be empty"},
		{"bad yaml", "sounds: [", "failed to parse"},
		{"bad fade", "animations:\n  \"0\": {image: a.png, fade_in: soon}\n", "failed to parse"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadManifest(writeManifest(t, tt.body))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("err = %v, want %q", err, tt.want)
			}
		})
	}
}

func TestLoadManifestMissingFile(t *testing.T) {
	if _, err := LoadManifest(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error")
	}
}

func TestShippedManifest(t *testing.T) {
	res, err := LoadManifest(filepath.Join("..", "assets", "manifest.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	for _, id := range []string{"0", "1"} {
		s, ok := res.Sound(interpret.ResultID(id))
		if !ok {
			t.Fatalf("no sound for %s", id)
		}
		if _, err := os.Stat(s.Path); err != nil {
			t.Errorf("sound %s: %v", id, err)
		}
		a, ok := res.Animation(interpret.ResultID(id))
		if !ok {
			t.Fatalf("no animation for %s", id)
		}
		if _, err := os.Stat(a.Image); err != nil {
			t.Errorf("animation %s: %v", id, err)
		}
	}
}
