// Package config gathers client settings from the environment (and an
// optional .env file) and loads the result-id resource manifest.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"time"

	"github.com/joho/godotenv"

	"voicecue/encoder"
	"voicecue/hotkey"
)

const (
	EnvServerURL     = "VOICECUE_SERVER_URL"
	EnvUploadURL     = "VOICECUE_UPLOAD_URL"
	EnvChunkInterval = "VOICECUE_CHUNK_INTERVAL"
	EnvMaxDuration   = "VOICECUE_MAX_DURATION"
	EnvFraming       = "VOICECUE_FRAMING"
	EnvFormat        = "VOICECUE_FORMAT"
	EnvManifest      = "VOICECUE_MANIFEST"
	EnvFallbackID    = "VOICECUE_FALLBACK_RESULT_ID"
	EnvHotkey        = "VOICECUE_HOTKEY"
	EnvMetricsAddr   = "VOICECUE_METRICS_ADDR"
)

type Config struct {
	ServerURL     string
	UploadURL     string // empty disables the post-recording upload
	ChunkInterval time.Duration
	MaxDuration   time.Duration
	Framing       encoder.Framing
	Format        encoder.Format
	Manifest      string // empty uses the built-in door/gun tables
	FallbackID    string
	Hotkey        string
	MetricsAddr   string
}

func Default() Config {
	return Config{
		ServerURL:     "ws://localhost:5000/ws",
		ChunkInterval: time.Second,
		MaxDuration:   60 * time.Second,
		Framing:       encoder.FramingCumulative,
		Format:        encoder.FormatWAV,
		Hotkey:        "ctrl+shift+space",
	}
}

// Load reads .env from the working directory, if there is one, and then the
// environment. Variables already set in the environment win over .env.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("reading .env: %w", err)
	}
	return FromEnv(os.LookupEnv)
}

// FromEnv overlays the variables found by lookup on Default.
func FromEnv(lookup func(string) (string, bool)) (Config, error) {
	c := Default()
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	dur := func(key string, dst *time.Duration) error {
		v, ok := lookup(key)
		if !ok || v == "" {
			return nil
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = d
		return nil
	}

	str(EnvServerURL, &c.ServerURL)
	str(EnvUploadURL, &c.UploadURL)
	str(EnvManifest, &c.Manifest)
	str(EnvFallbackID, &c.FallbackID)
	str(EnvHotkey, &c.Hotkey)
	str(EnvMetricsAddr, &c.MetricsAddr)

	if err := dur(EnvChunkInterval, &c.ChunkInterval); err != nil {
		return Config{}, err
	}
	if err := dur(EnvMaxDuration, &c.MaxDuration); err != nil {
		return Config{}, err
	}

	if v, ok := lookup(EnvFraming); ok {
		f, err := encoder.ParseFraming(v)
		if err != nil {
			return Config{}, fmt.Errorf("%s: %w", EnvFraming, err)
		}
		c.Framing = f
	}
	if v, ok := lookup(EnvFormat); ok {
		f, err := encoder.ParseFormat(v)
		if err != nil {
			return Config{}, fmt.Errorf("%s: %w", EnvFormat, err)
		}
		c.Format = f
	}

	return c, c.Validate()
}

func (c Config) Validate() error {
	u, err := url.Parse(c.ServerURL)
	if err != nil {
		return fmt.Errorf("server url: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("server url %q: scheme must be ws or wss", c.ServerURL)
	}
	if c.UploadURL != "" {
		u, err := url.Parse(c.UploadURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			return fmt.Errorf("upload url %q: must be an http(s) url", c.UploadURL)
		}
	}
	if c.ChunkInterval < 100*time.Millisecond {
		return fmt.Errorf("chunk interval must be at least 100ms, got %v", c.ChunkInterval)
	}
	if c.MaxDuration < 0 {
		return fmt.Errorf("max duration cannot be negative, got %v", c.MaxDuration)
	}
	if _, err := hotkey.ParseBinding(c.Hotkey); err != nil {
		return err
	}
	return nil
}
