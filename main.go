package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"

	"voicecue/audio"
	"voicecue/clipboard"
	"voicecue/config"
	"voicecue/doctor"
	"voicecue/encoder"
	"voicecue/hotkey"
	"voicecue/interpret"
	"voicecue/log"
	"voicecue/metrics"
	"voicecue/session"
	"voicecue/shutdown"
	"voicecue/sound"
	"voicecue/transport"
	"voicecue/ui"
)

var version = "dev"

const dialTimeout = 5 * time.Second

func fatalf(format string, args ...any) {
	log.Errorf(format, args...)
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	log.Close()
	os.Exit(1)
}

// initCrashLog sends runtime crash output to crash_log.txt in the log directory.
func initCrashLog() {
	crashPath := filepath.Join(log.Dir(), "crash_log.txt")
	f, err := os.OpenFile(crashPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return
	}
	fmt.Fprintf(f, "\n=== Session %s [pid=%d] ===\n", time.Now().Format("2006-01-02 15:04:05"), os.Getpid())
	debug.SetCrashOutput(f, debug.CrashOptions{})
}

func run() {
	serverFlag := flag.String("server", "", "assistant websocket endpoint (overrides VOICECUE_SERVER_URL)")
	uploadFlag := flag.String("upload", "", "base URL for the post-recording WAV upload")
	intervalFlag := flag.Duration("interval", 0, "chunk interval (e.g. 1s)")
	maxFlag := flag.Duration("max", 0, "stop recordings automatically after this long")
	framingFlag := flag.String("framing", "", "chunk framing: cumulative or incremental")
	formatFlag := flag.String("format", "", "chunk container: wav or flac")
	manifestFlag := flag.String("manifest", "", "YAML file mapping result ids to sounds and animations")
	fallbackFlag := flag.String("fallback", "", "result id used when a final response carries none")
	hotkeyFlag := flag.String("hotkey", "", "push-to-talk combination (e.g. ctrl+shift+space)")
	longPressFlag := flag.Duration("longpress", 350*time.Millisecond, "hold longer than this for push-to-talk, shorter to latch")
	metricsFlag := flag.String("metrics", "", "serve Prometheus metrics on this address (e.g. :9090)")
	setupFlag := flag.Bool("setup", false, "choose the microphone interactively")
	deviceFlag := flag.String("device", "", "use the named microphone")
	fakeFlag := flag.String("fake", "", "replay this WAV file instead of the microphone")
	silenceFlag := flag.Bool("silence", true, "warn about and close silent latched recordings")
	mutedFlag := flag.Bool("mute", false, "disable start/stop cues and result sounds")
	tuiFlag := flag.Bool("tui", true, "run with the terminal UI")
	debugFlag := flag.Bool("debug", false, "log every chunk")
	logPathFlag := flag.String("logpath", "", "log directory path (default: OS-specific location, use ./ for current dir)")
	doctorFlag := flag.Bool("doctor", false, "run system diagnostics and exit")
	versionFlag := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *versionFlag {
		fmt.Printf("voicecue %s\n", version)
		os.Exit(0)
	}

	logPath, err := log.ResolveDir(*logPathFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to resolve log directory: %v\n", err)
		os.Exit(1)
	}
	log.SetDir(logPath)
	if *debugFlag {
		log.SetLevel(zerolog.DebugLevel)
	}
	if err := log.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not init logging: %v\n", err)
	}
	defer log.Close()
	initCrashLog()

	cfg, err := config.Load()
	if err != nil {
		fatalf("%v", err)
	}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "server":
			cfg.ServerURL = *serverFlag
		case "upload":
			cfg.UploadURL = *uploadFlag
		case "interval":
			cfg.ChunkInterval = *intervalFlag
		case "max":
			cfg.MaxDuration = *maxFlag
		case "manifest":
			cfg.Manifest = *manifestFlag
		case "fallback":
			cfg.FallbackID = *fallbackFlag
		case "hotkey":
			cfg.Hotkey = *hotkeyFlag
		case "metrics":
			cfg.MetricsAddr = *metricsFlag
		case "framing":
			if cfg.Framing, err = encoder.ParseFraming(*framingFlag); err != nil {
				fatalf("%v", err)
			}
		case "format":
			if cfg.Format, err = encoder.ParseFormat(*formatFlag); err != nil {
				fatalf("%v", err)
			}
		}
	})
	if err := cfg.Validate(); err != nil {
		fatalf("%v", err)
	}
	binding, _ := hotkey.ParseBinding(cfg.Hotkey)

	resources := interpret.DefaultResources()
	if cfg.Manifest != "" {
		if resources, err = config.LoadManifest(cfg.Manifest); err != nil {
			fatalf("%v", err)
		}
	}

	if *doctorFlag {
		os.Exit(doctor.Run(doctor.Options{
			Binding:   binding,
			ServerURL: cfg.ServerURL,
			Resources: resources,
		}))
	}

	if cfg.MetricsAddr != "" {
		srv := metrics.Serve(cfg.MetricsAddr)
		defer srv.Close()
		log.Infof("metrics on %s/metrics", cfg.MetricsAddr)
	}

	// Audio input
	var actx audio.Context
	if *fakeFlag != "" {
		actx, err = audio.NewFakeContext(*fakeFlag, true)
	} else {
		actx, err = audio.NewContext()
	}
	if err != nil {
		fatalf("initializing audio: %v", err)
	}
	defer actx.Close()

	device, err := pickDevice(actx, *deviceFlag, *setupFlag)
	if err != nil {
		log.Warnf("device selection failed: %v", err)
		fmt.Printf("Warning: device selection failed: %v\nFalling back to default device\n", err)
	}
	deviceName := "system default"
	if device != nil {
		deviceName = device.Name
	}
	log.Info("recording_device: " + deviceName)

	// Service connection
	ctx, cancel := shutdown.Context(context.Background())
	defer cancel()

	var emitter transport.Emitter = transport.Offline{Endpoint: cfg.ServerURL}
	dialCtx, dialCancel := context.WithTimeout(ctx, dialTimeout)
	conn, err := transport.Dial(dialCtx, cfg.ServerURL, transport.Options{})
	dialCancel()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v (recording offline)\n", err)
	} else {
		emitter = conn
		defer conn.Close()
	}

	// Presentation
	var (
		sess *session.Session
		in   *interpret.Interpreter
		hy   *hotkey.Hybrid
	)
	toggle := func() {
		if sess.State() == session.StateRecording {
			sess.Stop()
			return
		}
		startRecording(ctx, sess)
	}

	var front *ui.UI
	var program *tea.Program
	if *tuiFlag {
		model := ui.NewModel(ui.Options{
			Binding: binding.String(),
			Version: version,
			Copy:    clipboard.Copy,
			Dismiss: func() { in.ClearClarification() },
			Toggle:  toggle,
		})
		program = tea.NewProgram(model, tea.WithAltScreen())
		front = ui.New(program)
	} else {
		front = ui.NewWithSender(func(tea.Msg) {})
	}

	if *mutedFlag {
		sound.Disable()
	}
	player := sound.NewPlayer(nil)

	in = interpret.New(interpret.Options{
		Resources: resources,
		Resolver:  interpret.FieldResolver{Fallback: interpret.ResultID(cfg.FallbackID)},
		Player:    player,
		Animator:  front,
		OnOutcome: front.Outcome,
	})

	if conn != nil {
		conn.Subscribe(transport.EventServerResponse, in.HandleRaw)
		go func() {
			<-conn.Done()
			front.Connection(cfg.ServerURL, false)
		}()
	}

	// Recording session
	deps := session.Deps{
		Open: audio.ContextOpener(actx, device, audio.CaptureConfig{
			SampleRate: encoder.SampleRate,
			Channels:   encoder.Channels,
		}),
		Permission: audio.DevicePermission{Ctx: actx},
		Emitter:    emitter,
		Encoder: encoder.NewChunkEncoder(encoder.ChunkConfig{
			Format:     cfg.Format,
			Framing:    cfg.Framing,
			SampleRate: encoder.SampleRate,
		}),
		Events: session.MultiEvents{front, cueEvents{player: player}},
	}
	if cfg.UploadURL != "" {
		deps.Uploader = transport.NewUploader(cfg.UploadURL)
	}
	sess = session.New(session.Config{
		ChunkInterval: cfg.ChunkInterval,
		MaxDuration:   cfg.MaxDuration,
		Silence: session.SilenceConfig{
			Enabled: *silenceFlag,
			Toggle: func() bool {
				// without a global key every recording is latched from the keyboard
				return hy == nil || hy.IsToggle()
			},
		},
	}, deps)

	// Global push-to-talk key
	hk := hotkey.New(binding)
	if err := hk.Register(); err != nil {
		log.Errorf("hotkey register error: %v", err)
		fmt.Fprintln(os.Stderr, hotkeyWarning(binding, err, program != nil))
	} else {
		defer hk.Unregister()
		hy = hotkey.NewHybrid(hk, *longPressFlag)
		defer hy.Close()
		go listen(ctx, hy, sess)
	}

	if program == nil {
		fmt.Printf("voicecue %s: hold %s to talk, Ctrl+C to quit\n", version, binding)
		<-ctx.Done()
	} else {
		go func() {
			<-ctx.Done()
			program.Quit()
		}()
		go func() {
			// Send blocks until the program is running.
			front.Device(deviceName)
			front.Connection(cfg.ServerURL, conn != nil)
		}()
		if _, err := program.Run(); err != nil {
			log.Errorf("TUI error: %v", err)
		}
	}

	cancel()
	if err := sess.Close(); err != nil {
		log.Warnf("shutdown: %v", err)
	}
	player.Wait()
}

// hotkeyWarning explains a failed registration. Enter only toggles recording
// when the terminal UI is reading the keyboard.
func hotkeyWarning(b hotkey.Binding, err error, tui bool) string {
	msg := fmt.Sprintf("Warning: hotkey %s unavailable (%v)", b, err)
	if tui {
		return msg + "; press Enter in the terminal instead"
	}
	return msg + "; recording is unavailable without the terminal UI"
}

// recorder is the part of session.Session the key handlers drive.
type recorder interface {
	Start(ctx context.Context) error
	Stop() error
}

// listen turns hotkey starts and stops into recording starts and stops until
// ctx is done.
func listen(ctx context.Context, hy *hotkey.Hybrid, rec recorder) {
	for {
		select {
		case <-hy.Start():
			log.Info("hotkey_start")
			startRecording(ctx, rec)
		case <-hy.StopChan():
			log.Info("hotkey_stop_" + string(hy.Mode()))
			rec.Stop()
		case <-ctx.Done():
			return
		}
	}
}

func startRecording(ctx context.Context, rec recorder) {
	err := rec.Start(ctx)
	switch {
	case err == nil:
	case errors.Is(err, audio.ErrPermissionDenied):
		// reported through Events.PermissionDenied
	default:
		log.Errorf("recording error: %v", err)
	}
}

func pickDevice(ctx audio.Context, name string, setup bool) (*audio.DeviceInfo, error) {
	if name != "" {
		devices, err := ctx.Devices()
		if err != nil {
			return nil, err
		}
		for i := range devices {
			if devices[i].Name == name {
				return &devices[i], nil
			}
		}
		return nil, fmt.Errorf("device %q not found", name)
	}
	if setup {
		return audio.SelectDevice(ctx)
	}
	return nil, nil
}

// cueEvents plays the start and stop cues around each recording.
type cueEvents struct {
	session.NopEvents
	player *sound.Player
}

func (c cueEvents) RecordingStarted(string) { c.player.Cue(sound.CueStart) }

func (c cueEvents) RecordingStopped(_ string, _ time.Duration, err error) {
	if err != nil {
		c.player.Cue(sound.CueError)
		return
	}
	c.player.Cue(sound.CueEnd)
}
