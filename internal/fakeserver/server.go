// Package fakeserver is a local stand-in for the analysis backend. It serves
// POST /api/analyze and a Socket.IO progress channel so the client can be
// exercised without the real service.
package fakeserver

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/sirupsen/logrus"
	"github.com/zishang520/engine.io/v2/types"
	"github.com/zishang520/socket.io/v2/socket"

	"github.com/talentvibe/tui/internal/backend"
)

// Mode selects how POST /api/analyze answers.
type Mode string

const (
	// ModeQueued accepts the job and streams progress events ending in complete.
	ModeQueued Mode = "queued"
	// ModeSync processes every accepted file inline.
	ModeSync Mode = "sync"
	// ModeNoFiles skips every file.
	ModeNoFiles Mode = "nofiles"
	// ModeError fails with a JSON error body.
	ModeError Mode = "error"
)

// DefaultMaxUpload mirrors the gateway limit in front of the real backend.
const DefaultMaxUpload int64 = 100 << 20

// Config tunes the fake backend.
type Config struct {
	Mode Mode
	// MaxUpload is the body size above which a gateway-style HTML 413 is returned.
	MaxUpload int64
	// StepDelay separates consecutive progress events of a queued job.
	StepDelay time.Duration
	// PingInterval is the Engine.IO heartbeat period; zero keeps the engine default.
	PingInterval time.Duration
	// Untagged omits job_id from progress payloads.
	Untagged bool
	// Extensions accepted as résumés; others are reported as skipped.
	Extensions []string
}

// Server is the fake backend. It implements http.Handler.
type Server struct {
	e      *echo.Echo
	io     *socket.Server
	cfg    Config
	logger *logrus.Logger

	mu   sync.RWMutex
	mode Mode
	jobs sync.WaitGroup
}

// New builds the fake backend with its echo routes and middleware.
func New(cfg Config, logger *logrus.Logger) *Server {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if cfg.Mode == "" {
		cfg.Mode = ModeQueued
	}
	if cfg.MaxUpload <= 0 {
		cfg.MaxUpload = DefaultMaxUpload
	}
	if len(cfg.Extensions) == 0 {
		cfg.Extensions = backend.DefaultExtensions
	}

	s := &Server{
		e:      echo.New(),
		io:     socket.NewServer(nil, socketOptions(cfg)),
		cfg:    cfg,
		logger: logger,
		mode:   cfg.Mode,
	}
	_ = s.io.On("connection", s.onConnection)

	s.e.HideBanner = true
	s.e.HidePort = true
	s.e.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{
		StackSize:         4 << 10,
		DisableStackAll:   true,
		DisablePrintStack: false,
	}))
	s.e.Use(s.requestLogger)

	api := s.e.Group("/api")
	api.GET("/health", s.handleHealth)
	api.POST("/analyze", s.handleAnalyze, s.gatewayLimit)
	s.e.Any("/socket.io/*", echo.WrapHandler(s.io.ServeHandler(nil)))
	return s
}

// socketOptions serves Engine.IO over websocket only, so polling handshakes
// are refused with a 400.
func socketOptions(cfg Config) *socket.ServerOptions {
	opts := socket.DefaultServerOptions()
	opts.SetServeClient(false)
	opts.SetTransports(types.NewSet("websocket"))
	opts.SetAllowUpgrades(false)
	if cfg.PingInterval > 0 {
		opts.SetPingInterval(cfg.PingInterval)
	}
	return opts
}

// Close disconnects every progress subscriber.
func (s *Server) Close() {
	s.io.Close(nil)
}

// ServeHTTP dispatches to the echo router.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.e.ServeHTTP(w, r)
}

// SetMode switches the answer mode for subsequent requests.
func (s *Server) SetMode(m Mode) {
	s.mu.Lock()
	s.mode = m
	s.mu.Unlock()
}

func (s *Server) currentMode() Mode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.mode
}

// Clients returns the number of connected progress subscribers.
func (s *Server) Clients() int {
	return s.io.Sockets().Sockets().Len()
}

// Wait blocks until every queued job has finished emitting progress.
func (s *Server) Wait() { s.jobs.Wait() }

// Broadcast sends one progress_update event to every connected client.
func (s *Server) Broadcast(jobID string, category backend.Category, message string) {
	payload := map[string]any{
		"type":      string(category),
		"message":   message,
		"timestamp": float64(time.Now().UnixNano()) / 1e9,
	}
	if jobID != "" && !s.cfg.Untagged {
		payload["job_id"] = jobID
	}
	s.io.Emit(backend.ProgressEventName, payload)
}

func (s *Server) onConnection(args ...any) {
	if len(args) == 0 {
		return
	}
	client, ok := args[0].(*socket.Socket)
	if !ok {
		return
	}
	log := s.logger.WithField("sid", string(client.Id()))
	log.Info("socket.connected")
	_ = client.On("disconnect", func(reason ...any) {
		log.WithField("reason", fmt.Sprint(reason...)).Info("socket.disconnected")
	})
}

func (s *Server) requestLogger(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		err := next(c)
		s.logger.WithFields(logrus.Fields{
			"method":     c.Request().Method,
			"uri":        c.Request().RequestURI,
			"status":     c.Response().Status,
			"elapsed_ms": time.Since(start).Milliseconds(),
		}).Info("request")
		return err
	}
}

// gatewayLimit answers oversized uploads the way a reverse proxy does: an
// HTML page, not JSON.
func (s *Server) gatewayLimit(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		req := c.Request()
		if req.ContentLength > s.cfg.MaxUpload {
			_, _ = io.Copy(io.Discard, io.LimitReader(req.Body, s.cfg.MaxUpload+1))
			return tooLarge(c)
		}
		req.Body = http.MaxBytesReader(c.Response(), req.Body, s.cfg.MaxUpload)
		return next(c)
	}
}

func tooLarge(c echo.Context) error {
	return c.HTML(http.StatusRequestEntityTooLarge,
		"<html><head><title>413 Request Entity Too Large</title></head>"+
			"<body><center><h1>413 Request Entity Too Large</h1></center></body></html>")
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{"status": "ok", "clients": s.Clients()})
}

type processedFile struct {
	Filename string `json:"filename"`
	Score    int    `json:"score"`
}

func (s *Server) handleAnalyze(c echo.Context) error {
	form, err := c.MultipartForm()
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return tooLarge(c)
		}
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid form data: " + err.Error()})
	}
	description := strings.TrimSpace(c.FormValue("job_description"))
	headers := form.File["resumes"]
	if len(headers) == 0 {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "No résumé files were uploaded"})
	}

	var accepted []string
	var skipped []backend.SkippedFile
	for _, fh := range headers {
		if backend.HasAllowedExt(fh.Filename, s.cfg.Extensions) {
			accepted = append(accepted, fh.Filename)
			continue
		}
		skipped = append(skipped, backend.SkippedFile{
			Filename: fh.Filename,
			Reason:   fmt.Sprintf("Unsupported file format %s", filepath.Ext(fh.Filename)),
		})
	}

	jobID := uuid.NewString()
	log := s.logger.WithFields(logrus.Fields{
		"job_id":   jobID,
		"files":    len(headers),
		"accepted": len(accepted),
		"desc_len": len(description),
	})

	mode := s.currentMode()
	if mode == ModeNoFiles {
		for _, name := range accepted {
			skipped = append(skipped, backend.SkippedFile{Filename: name, Reason: "Could not extract text"})
		}
		accepted = nil
	}

	switch mode {
	case ModeError:
		log.Warn("analyze.error")
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Analysis service is unavailable"})

	case ModeQueued:
		if len(accepted) == 0 {
			break
		}
		log.Info("analyze.queued")
		s.jobs.Add(1)
		go s.runJob(jobID, accepted)
		return c.JSON(http.StatusAccepted, map[string]any{
			"job_id":        jobID,
			"status":        "queued",
			"total_files":   len(accepted),
			"skipped_files": skipped,
		})
	}

	processed := make([]processedFile, 0, len(accepted))
	for i, name := range accepted {
		processed = append(processed, processedFile{Filename: name, Score: 60 + (i*7)%40})
	}
	log.WithField("processed", len(processed)).Info("analyze.completed")
	return c.JSON(http.StatusOK, map[string]any{
		"job_id":          jobID,
		"status":          "completed",
		"processed_files": processed,
		"skipped_files":   skipped,
	})
}

// runJob plays a background analysis as a sequence of progress events.
func (s *Server) runJob(jobID string, files []string) {
	defer s.jobs.Done()
	step := func(category backend.Category, msg string) {
		time.Sleep(s.cfg.StepDelay)
		s.Broadcast(jobID, category, msg)
	}

	step(backend.CategoryInfo, fmt.Sprintf("Job %s started with %d résumé(s)", jobID, len(files)))
	for i, name := range files {
		step(backend.CategoryProcessing, fmt.Sprintf("Processing %s (%d/%d)", name, i+1, len(files)))
		step(backend.CategorySuccess, fmt.Sprintf("Scored %s", name))
	}
	step(backend.CategoryComplete, fmt.Sprintf("Analysis complete for %d résumé(s)", len(files)))
	s.logger.WithField("job_id", jobID).Info("job.complete")
}
