// Command devserver runs a local assistant stand-in for voicecue.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"voicecue/devserver"
	"voicecue/shutdown"
)

func main() {
	_ = godotenv.Load()

	addr := flag.String("addr", envOr("VOICECUE_DEVSERVER_ADDR", ":5000"), "listen address")
	uploads := flag.String("uploads", envOr("VOICECUE_UPLOAD_DIR", "uploads"), "directory for /upload files")
	ids := flag.String("results", "0,1", "comma-separated result ids handed out in rotation")
	level := flag.String("level", "info", "log level (debug, info, warn, error)")
	flag.Parse()

	lvl, err := zerolog.ParseLevel(*level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
		Level(lvl).With().Timestamp().Logger()

	srv := devserver.New(devserver.Config{
		UploadDir: *uploads,
		ResultIDs: strings.Split(*ids, ","),
	}, logger)

	go func() {
		if err := srv.Start(*addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server stopped")
		}
	}()

	quit := make(chan os.Signal, 1)
	shutdown.Notify(quit)
	<-quit

	logger.Info().Msg("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("forced shutdown")
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
