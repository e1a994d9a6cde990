package log

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

var (
	diagLog      zerolog.Logger
	diagFile     *os.File
	responseFile *os.File
	logMu        sync.Mutex
	logReady     atomic.Bool
	pid          int
	dir          string
	level        = zerolog.InfoLevel
)

// SetLevel must be called before Init. Per-chunk events are logged at debug.
func SetLevel(l zerolog.Level) {
	level = l
}

func ResolveDir(flagPath string) (string, error) {
	// Priority 1: -logpath flag
	if flagPath != "" {
		return absPath(flagPath)
	}

	// Priority 2: VOICECUE_LOG_PATH environment variable
	if envPath := os.Getenv("VOICECUE_LOG_PATH"); envPath != "" {
		return absPath(envPath)
	}

	// Priority 3: Default OS-specific location
	return getDefaultDir()
}

func absPath(p string) (string, error) {
	if filepath.IsAbs(p) {
		return p, nil
	}
	wd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	return filepath.Join(wd, p), nil
}

func SetDir(d string) {
	dir = d
}

func Dir() string {
	return dir
}

func EnsureDir() error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}
	return nil
}

func Init() error {
	logMu.Lock()
	defer logMu.Unlock()

	if err := EnsureDir(); err != nil {
		return err
	}

	pid = os.Getpid()

	var err error

	diagPath := filepath.Join(dir, "diagnostics_log.txt")
	diagFile, err = os.OpenFile(diagPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}

	responsePath := filepath.Join(dir, "responses_log.txt")
	responseFile, err = os.OpenFile(responsePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		diagFile.Close()
		return err
	}

	consoleWriter := zerolog.ConsoleWriter{
		Out:        diagFile,
		TimeFormat: "2006-01-02 15:04:05",
		NoColor:    true,
	}
	diagLog = zerolog.New(consoleWriter).Level(level).With().Timestamp().Int("pid", pid).Logger()

	logReady.Store(true)
	return nil
}

func Close() {
	logMu.Lock()
	defer logMu.Unlock()
	logReady.Store(false)
	if diagFile != nil {
		diagFile.Close()
		diagFile = nil
	}
	if responseFile != nil {
		responseFile.Close()
		responseFile = nil
	}
}

func Info(msg string) {
	if logReady.Load() {
		diagLog.Info().Msg(msg)
	}
}

func Infof(format string, args ...any) {
	if logReady.Load() {
		diagLog.Info().Msg(fmt.Sprintf(format, args...))
	}
}

func Error(msg string) {
	if logReady.Load() {
		diagLog.Error().Msg(msg)
	}
}

func Errorf(format string, args ...any) {
	if logReady.Load() {
		diagLog.Error().Msg(fmt.Sprintf(format, args...))
	}
}

func Warn(msg string) {
	if logReady.Load() {
		diagLog.Warn().Msg(msg)
	}
}

func Warnf(format string, args ...any) {
	if logReady.Load() {
		diagLog.Warn().Msg(fmt.Sprintf(format, args...))
	}
}

func SessionStart(id, framing, format string, interval time.Duration) {
	if !logReady.Load() {
		return
	}
	diagLog.Info().
		Str("session", id).
		Str("framing", framing).
		Str("format", format).
		Dur("interval", interval).
		Msg("session_start")
}

type SessionEndData struct {
	ID       string
	AudioS   float64
	Chunks   int
	Dropped  int
	SentKB   float64
	StopErrs int
}

func SessionEnd(d SessionEndData) {
	if !logReady.Load() {
		return
	}
	diagLog.Info().
		Str("session", d.ID).
		Float64("audio_s", d.AudioS).
		Int("chunks", d.Chunks).
		Int("dropped", d.Dropped).
		Float64("sent_kb", d.SentKB).
		Int("stop_errors", d.StopErrs).
		Msg("session_end")
}

func ChunkEmitted(session string, bytes int, audio time.Duration) {
	if !logReady.Load() {
		return
	}
	diagLog.Debug().
		Str("session", session).
		Int("bytes", bytes).
		Dur("audio", audio).
		Msg("chunk_emitted")
}

func ChunkDropped(session string, err error) {
	if !logReady.Load() {
		return
	}
	diagLog.Warn().
		Str("session", session).
		Err(err).
		Msg("chunk_dropped")
}

func Connection(endpoint string, connected bool, err error) {
	if !logReady.Load() {
		return
	}
	ev := diagLog.Info()
	if err != nil {
		ev = diagLog.Warn().Err(err)
	}
	ev.Str("endpoint", endpoint).
		Bool("connected", connected).
		Msg("connection")
}

func Response(kind, resultID string, raw []byte) {
	if !logReady.Load() {
		return
	}
	diagLog.Info().
		Str("kind", kind).
		Str("result_id", resultID).
		Int("bytes", len(raw)).
		Msg("server_response")

	logMu.Lock()
	defer logMu.Unlock()
	if responseFile == nil {
		return
	}
	line := fmt.Sprintf("%s\t[%d]\t%s\t%s\n", time.Now().Format("2006-01-02 15:04:05"), pid, kind, raw)
	responseFile.WriteString(line)
}

func MissingResource(table, resultID string) {
	if !logReady.Load() {
		return
	}
	diagLog.Warn().
		Str("table", table).
		Str("result_id", resultID).
		Msg("no_resource_for_id")
}
