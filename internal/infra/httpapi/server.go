package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	fiberlogger "github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/gofiber/fiber/v3/middleware/recover"

	"device-layout/internal/application"
)

// envelope mirrors the preset backend's response shape so a front end can
// treat both services alike.
type envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
}

type Config struct {
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	// Metrics is served on /metrics when set.
	Metrics http.Handler
	Limiter *RateLimiter
}

// Server exposes editing sessions over HTTP.
type Server struct {
	sessions *application.SessionManager
	logger   *slog.Logger
	app      *fiber.App
}

func NewServer(sessions *application.SessionManager, cfg Config, logger *slog.Logger) *Server {
	s := &Server{
		sessions: sessions,
		logger:   logger,
	}

	s.app = fiber.New(fiber.Config{
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		AppName:      "Device Layout",
	})

	s.app.Use(recover.New())
	s.app.Use(fiberlogger.New(fiberlogger.Config{
		Format:     "[${time}] ${status} - ${latency} ${method} ${path}\n",
		TimeFormat: "15:04:05",
	}))

	s.app.Get("/health", s.health)
	if cfg.Metrics != nil {
		s.app.Get("/metrics", adaptor.HTTPHandler(cfg.Metrics))
	}

	api := s.app.Group("/sessions")
	if cfg.Limiter != nil {
		api.Use(cfg.Limiter.Middleware())
	}

	api.Post("/", s.createSession)
	api.Get("/:sid", s.withSession(s.getSession))
	api.Delete("/:sid", s.closeSession)

	api.Post("/:sid/drop", s.withSession(s.drop))
	api.Post("/:sid/pointer/down", s.withSession(s.pointerDown))
	api.Post("/:sid/pointer/move", s.withSession(s.pointerMove))
	api.Post("/:sid/pointer/up", s.withSession(s.pointerUp))

	api.Patch("/:sid/devices/:id", s.withSession(s.updateDevice))
	api.Delete("/:sid/devices/:id", s.withSession(s.removeDevice))
	api.Delete("/:sid/devices", s.withSession(s.clearDevices))
	api.Put("/:sid/selection", s.withSession(s.selectDevice))

	api.Get("/:sid/presets", s.withSession(s.listPresets))
	api.Post("/:sid/presets", s.withSession(s.savePreset))
	api.Delete("/:sid/presets/:pid", s.withSession(s.deletePreset))
	api.Post("/:sid/presets/:pid/load", s.withSession(s.loadPreset))

	return s
}

func (s *Server) App() *fiber.App {
	return s.app
}

func (s *Server) Listen(addr string) error {
	s.logger.Info("http api listening", "addr", addr)
	return s.app.Listen(addr, fiber.ListenConfig{DisableStartupMessage: true})
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

func (s *Server) health(c fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":   "ok",
		"sessions": s.sessions.Len(),
	})
}
