// Package web serves a dashboard for the live voice session: status and
// transcript over REST and websockets, session controls and /metrics.
package web

import (
	"context"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/go-livevoice/pkg/hub"
	"github.com/teslashibe/go-livevoice/pkg/i18n"
	"github.com/teslashibe/go-livevoice/pkg/live"
	"github.com/teslashibe/go-livevoice/pkg/transcript"
)

// Controller drives the session from the dashboard.
type Controller interface {
	Start(ctx context.Context) error
	Stop() error
	SetMuted(muted bool) error
	ToggleMute() (bool, error)
}

// Config configures the dashboard.
type Config struct {
	// Addr is the listen address, e.g. ":8080".
	Addr string

	Lang i18n.Lang

	// StaticDir is served at / when set.
	StaticDir string

	// Metrics is mounted at /metrics when set.
	Metrics http.Handler
}

// StatusView is the status payload: the session snapshot plus its
// localized label.
type StatusView struct {
	live.Snapshot
	Label string    `json:"label"`
	Lang  i18n.Lang `json:"lang"`
	RTL   bool      `json:"rtl"`
}

// TranscriptView is the transcript payload.
type TranscriptView struct {
	Turns []transcript.Turn `json:"turns"`
}

// Server is the dashboard. It implements live.Observer.
type Server struct {
	app    *fiber.App
	cfg    Config
	ctrl   Controller
	logger *slog.Logger

	mu    sync.RWMutex
	snap  live.Snapshot
	turns []transcript.Turn

	statusHub     *hub.Hub
	transcriptHub *hub.Hub

	cancel context.CancelFunc
}

// NewServer builds the dashboard app. ctrl may be nil for a read-only view.
func NewServer(cfg Config, ctrl Controller, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Lang == "" {
		cfg.Lang = i18n.Default
	}

	s := &Server{
		cfg:           cfg,
		ctrl:          ctrl,
		logger:        logger.With("component", "web"),
		snap:          live.Snapshot{Status: live.StatusIdle},
		statusHub:     hub.New("status", logger),
		transcriptHub: hub.New("transcript", logger),
	}

	app := fiber.New(fiber.Config{
		AppName:               "Live Voice Dashboard",
		DisableStartupMessage: true,
	})
	app.Use(cors.New())

	if cfg.StaticDir != "" {
		app.Static("/", cfg.StaticDir)
	}
	if cfg.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(cfg.Metrics))
	}

	api := app.Group("/api")
	api.Get("/status", s.handleStatus)
	api.Get("/transcript", s.handleTranscript)
	api.Post("/session/start", s.handleStart)
	api.Post("/session/stop", s.handleStop)
	api.Post("/session/mute", s.handleMute)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/status", websocket.New(s.handleWS(s.statusHub)))
	app.Get("/ws/transcript", websocket.New(s.handleWS(s.transcriptHub)))

	s.app = app
	return s
}

// App exposes the fiber app, mainly for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// Start runs the hubs and blocks serving HTTP.
func (s *Server) Start(ctx context.Context) error {
	ctx, s.cancel = context.WithCancel(ctx)
	go s.statusHub.Run(ctx)
	go s.transcriptHub.Run(ctx)

	s.logger.Info("dashboard listening", "addr", s.cfg.Addr)
	return s.app.Listen(s.cfg.Addr)
}

// StartAsync runs Start in a goroutine and logs its error.
func (s *Server) StartAsync(ctx context.Context) {
	go func() {
		if err := s.Start(ctx); err != nil {
			s.logger.Error("dashboard stopped", "error", err)
		}
	}()
}

// Shutdown stops the server and its hubs.
func (s *Server) Shutdown() error {
	if s.cancel != nil {
		s.cancel()
	}
	return s.app.Shutdown()
}

// Status returns the current status payload.
func (s *Server) Status() StatusView {
	s.mu.RLock()
	snap := s.snap
	s.mu.RUnlock()

	return StatusView{
		Snapshot: snap,
		Label:    i18n.StatusLabel(s.cfg.Lang, snap),
		Lang:     s.cfg.Lang,
		RTL:      i18n.RTL(s.cfg.Lang),
	}
}

// StatusChanged implements live.Observer.
func (s *Server) StatusChanged(snap live.Snapshot) {
	s.mu.Lock()
	s.snap = snap
	s.mu.Unlock()

	if err := s.statusHub.BroadcastJSON(s.Status()); err != nil {
		s.logger.Warn("encoding status", "error", err)
	}
}

// Error implements live.Observer. The error also reaches clients through
// the next status snapshot.
func (s *Server) Error(e *live.Error) {
	s.logger.Warn("session error", "kind", e.Kind, "error", e.Err)
}

// Transcript implements live.Observer.
func (s *Server) Transcript(turns []transcript.Turn) {
	s.mu.Lock()
	s.turns = turns
	s.mu.Unlock()

	if err := s.transcriptHub.BroadcastJSON(TranscriptView{Turns: turns}); err != nil {
		s.logger.Warn("encoding transcript", "error", err)
	}
}

var _ live.Observer = (*Server)(nil)
