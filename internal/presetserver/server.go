package presetserver

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/recover"

	"device-layout/internal/domain"
)

type response struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
}

type createRequest struct {
	Name     string                `json:"name"`
	Settings []domain.PlacedDevice `json:"settings"`
}

// Server serves the preset REST contract the dashboard talks to.
type Server struct {
	repo    *Repository
	catalog []domain.AvailableDevice
	logger  *slog.Logger
	app     *fiber.App
}

func NewServer(repo *Repository, logger *slog.Logger) *Server {
	s := &Server{
		repo:    repo,
		catalog: domain.DefaultCatalog(),
		logger:  logger,
	}

	s.app = fiber.New(fiber.Config{
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		AppName:      "Preset Service",
	})
	s.app.Use(recover.New())

	api := s.app.Group("/api")
	api.Get("/presets", s.listPresets)
	api.Post("/presets", s.createPreset)
	api.Get("/presets/:id", s.getPreset)
	api.Delete("/presets/:id", s.deletePreset)
	api.Get("/devices", s.listDevices)

	s.app.Get("/health", func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	return s
}

func (s *Server) App() *fiber.App {
	return s.app
}

func (s *Server) Listen(addr string) error {
	s.logger.Info("preset service listening", "addr", addr)
	return s.app.Listen(addr, fiber.ListenConfig{DisableStartupMessage: true})
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

func (s *Server) listPresets(c fiber.Ctx) error {
	presets, err := s.repo.List(c.Context())
	if err != nil {
		return s.internal(c, "listing presets", err)
	}
	return c.JSON(response{Success: true, Data: presets})
}

func (s *Server) getPreset(c fiber.Ctx) error {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil {
		return fail(c, http.StatusBadRequest, "Invalid preset id")
	}

	preset, err := s.repo.Get(c.Context(), id)
	if errors.Is(err, ErrNotFound) {
		return fail(c, http.StatusNotFound, "Preset not found")
	}
	if err != nil {
		return s.internal(c, "getting preset", err)
	}
	return c.JSON(response{Success: true, Data: preset})
}

func (s *Server) createPreset(c fiber.Ctx) error {
	var req createRequest
	if err := json.Unmarshal(c.Body(), &req); err != nil {
		return fail(c, http.StatusBadRequest, "Invalid JSON body")
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return fail(c, http.StatusUnprocessableEntity, "Preset name is required")
	}
	if req.Settings == nil {
		req.Settings = []domain.PlacedDevice{}
	}

	candidate := domain.Preset{Name: req.Name, Settings: req.Settings}
	if err := candidate.Validate(); err != nil {
		return fail(c, http.StatusUnprocessableEntity, domain.UserMessage(err))
	}

	preset, err := s.repo.Create(c.Context(), req.Name, req.Settings)
	if err != nil {
		return s.internal(c, "creating preset", err)
	}

	s.logger.Info("preset created", "id", preset.ID, "name", preset.Name, "devices", len(preset.Settings))
	return c.Status(http.StatusCreated).JSON(response{
		Success: true,
		Data:    preset,
		Message: "Preset created",
	})
}

func (s *Server) deletePreset(c fiber.Ctx) error {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil {
		return fail(c, http.StatusBadRequest, "Invalid preset id")
	}

	err = s.repo.Delete(c.Context(), id)
	if errors.Is(err, ErrNotFound) {
		return fail(c, http.StatusNotFound, "Preset not found")
	}
	if err != nil {
		return s.internal(c, "deleting preset", err)
	}

	s.logger.Info("preset deleted", "id", id)
	return c.JSON(response{Success: true, Message: "Preset deleted"})
}

func (s *Server) listDevices(c fiber.Ctx) error {
	return c.JSON(response{Success: true, Data: s.catalog})
}

func (s *Server) internal(c fiber.Ctx, op string, err error) error {
	s.logger.Error(op, "error", err)
	return fail(c, http.StatusInternalServerError, "Internal server error")
}

func fail(c fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(response{Success: false, Message: message})
}
