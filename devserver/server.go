// Package devserver is a local stand-in for the assistant service. It speaks
// the same websocket events and upload endpoint as the real backend and
// answers with canned serverResponse messages.
package devserver

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
)

var upgrader = websocket.Upgrader{
	CheckOrigin:     func(r *http.Request) bool { return true },
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
}

type Config struct {
	// UploadDir receives files posted to /upload.
	UploadDir string
	// ResultIDs are handed out in rotation, one per finished recording.
	ResultIDs []string
	// Responder overrides the canned replies when set.
	Responder Responder
}

type Server struct {
	cfg    Config
	echo   *echo.Echo
	logger zerolog.Logger

	mu      sync.Mutex
	clients map[string]*client
	nextID  atomic.Int64
	rotate  atomic.Int64
}

func New(cfg Config, logger zerolog.Logger) *Server {
	if cfg.UploadDir == "" {
		cfg.UploadDir = "uploads"
	}
	if len(cfg.ResultIDs) == 0 {
		cfg.ResultIDs = []string{"0", "1"}
	}
	s := &Server{
		cfg:     cfg,
		logger:  logger.With().Str("component", "devserver").Logger(),
		clients: make(map[string]*client),
	}
	if s.cfg.Responder == nil {
		s.cfg.Responder = s.cannedReply
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.GET("/healthz", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})
	e.GET("/ws", s.handleWebSocket)
	e.POST("/upload", s.handleUpload)
	s.echo = e
	return s
}

// Handler exposes the routes, e.g. for httptest.
func (s *Server) Handler() http.Handler { return s.echo }

func (s *Server) Start(addr string) error {
	s.logger.Info().Str("addr", addr).Msg("listening")
	return s.echo.Start(addr)
}

func (s *Server) Echo() *echo.Echo { return s.echo }

// Clients returns how many sockets are currently attached.
func (s *Server) Clients() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

func (s *Server) handleWebSocket(c echo.Context) error {
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		s.logger.Error().Err(err).Msg("websocket upgrade failed")
		return err
	}

	id := fmt.Sprintf("client-%d", s.nextID.Add(1))
	cl := newClient(s, conn, id)

	s.mu.Lock()
	s.clients[id] = cl
	s.mu.Unlock()
	s.logger.Info().Str("client", id).Msg("client connected")

	go cl.writePump()
	go cl.readPump()
	return nil
}

func (s *Server) unregister(cl *client) {
	s.mu.Lock()
	if _, ok := s.clients[cl.id]; ok {
		delete(s.clients, cl.id)
		close(cl.send)
	}
	s.mu.Unlock()
	s.logger.Info().Str("client", cl.id).Msg("client disconnected")
}

func (s *Server) nextResultID() string {
	n := s.rotate.Add(1) - 1
	return s.cfg.ResultIDs[int(n)%len(s.cfg.ResultIDs)]
}

func (s *Server) handleUpload(c echo.Context) error {
	fh, err := c.FormFile("audio")
	if err != nil {
		// the first backend revision used "file"
		fh, err = c.FormFile("file")
	}
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "No file part"})
	}
	name := filepath.Base(fh.Filename)
	if name == "" || name == "." || name == string(filepath.Separator) {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "No selected file"})
	}
	if !strings.HasSuffix(strings.ToLower(name), ".wav") {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid file format. Only WAV files are allowed."})
	}

	src, err := fh.Open()
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}
	defer src.Close()

	if err := os.MkdirAll(s.cfg.UploadDir, 0755); err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	dst := filepath.Join(s.cfg.UploadDir, name)
	if err := saveFile(src, dst); err != nil {
		s.logger.Error().Err(err).Str("path", dst).Msg("upload save failed")
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}

	s.logger.Info().Str("path", dst).Int64("bytes", fh.Size).Msg("upload stored")
	return c.JSON(http.StatusOK, map[string]string{
		"message":   "File uploaded successfully",
		"file_path": dst,
	})
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}
