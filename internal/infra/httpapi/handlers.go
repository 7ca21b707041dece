package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gofiber/fiber/v3"

	"device-layout/internal/application"
	"device-layout/internal/domain"
)

type sessionHandler func(c fiber.Ctx, sess *application.Session) error

func (s *Server) withSession(h sessionHandler) fiber.Handler {
	return func(c fiber.Ctx) error {
		sess, found := s.sessions.Get(c.Params("sid"))
		if !found {
			return fail(c, http.StatusNotFound, "session not found")
		}
		return h(c, sess)
	}
}

type sessionResponse struct {
	ID string `json:"id"`
	application.Snapshot
}

func (s *Server) createSession(c fiber.Ctx) error {
	sess := s.sessions.Create(c.Context())
	return c.Status(http.StatusCreated).JSON(envelope{
		Success: true,
		Data:    sessionResponse{ID: sess.ID, Snapshot: sess.Store.Snapshot()},
		Message: toastMessage(sess),
	})
}

func (s *Server) getSession(c fiber.Ctx, sess *application.Session) error {
	return c.JSON(envelope{
		Success: true,
		Data:    sessionResponse{ID: sess.ID, Snapshot: sess.Store.Snapshot()},
		Message: toastMessage(sess),
	})
}

func (s *Server) closeSession(c fiber.Ctx) error {
	if !s.sessions.Close(c.Params("sid")) {
		return fail(c, http.StatusNotFound, "session not found")
	}
	return c.SendStatus(http.StatusNoContent)
}

func (s *Server) drop(c fiber.Ctx, sess *application.Session) error {
	var ev application.DropEvent
	if err := decodeBody(c, &ev); err != nil {
		return fail(c, http.StatusBadRequest, "invalid json")
	}

	res, err := sess.Placement.Drop(ev)
	msg := toastMessage(sess)
	if err != nil {
		msg = domain.UserMessage(err)
	}
	return c.JSON(envelope{Success: true, Data: res, Message: msg})
}

type pointerRequest struct {
	PointerID int               `json:"pointer_id"`
	DeviceID  string            `json:"device_id,omitempty"`
	Pointer   application.Point `json:"pointer"`
	Container application.Rect  `json:"container"`
}

func (s *Server) pointerDown(c fiber.Ctx, sess *application.Session) error {
	var req pointerRequest
	if err := decodeBody(c, &req); err != nil {
		return fail(c, http.StatusBadRequest, "invalid json")
	}
	if err := sess.Placement.PointerDown(req.PointerID, req.DeviceID, req.Pointer, req.Container); err != nil {
		return failErr(c, err)
	}
	return ok(c, fiber.Map{"dragging": req.DeviceID})
}

func (s *Server) pointerMove(c fiber.Ctx, sess *application.Session) error {
	var req pointerRequest
	if err := decodeBody(c, &req); err != nil {
		return fail(c, http.StatusBadRequest, "invalid json")
	}
	moved := sess.Placement.PointerMove(req.PointerID, req.Pointer, req.Container)

	data := fiber.Map{"moved": moved}
	if id, dragging := sess.Placement.Dragging(); dragging && moved {
		if d, found := sess.Store.Device(id); found {
			data["device"] = d
		}
	}
	return ok(c, data)
}

func (s *Server) pointerUp(c fiber.Ctx, sess *application.Session) error {
	var req pointerRequest
	if err := decodeBody(c, &req); err != nil {
		return fail(c, http.StatusBadRequest, "invalid json")
	}
	sess.Placement.PointerUp(req.PointerID)
	return ok(c, nil)
}

func (s *Server) updateDevice(c fiber.Ctx, sess *application.Session) error {
	var patch domain.DevicePatch
	if err := decodeBody(c, &patch); err != nil {
		return fail(c, http.StatusBadRequest, "invalid json")
	}

	id := c.Params("id")
	if !sess.Store.UpdateDevice(id, patch) {
		return fail(c, http.StatusNotFound, "device not found")
	}
	d, _ := sess.Store.Device(id)
	return ok(c, d)
}

func (s *Server) removeDevice(c fiber.Ctx, sess *application.Session) error {
	if !sess.Store.RemoveDevice(c.Params("id")) {
		return fail(c, http.StatusNotFound, "device not found")
	}
	return ok(c, nil)
}

func (s *Server) clearDevices(c fiber.Ctx, sess *application.Session) error {
	sess.Store.ClearDevices()
	return ok(c, nil)
}

type selectionRequest struct {
	ID string `json:"id"`
}

func (s *Server) selectDevice(c fiber.Ctx, sess *application.Session) error {
	var req selectionRequest
	if err := decodeBody(c, &req); err != nil {
		return fail(c, http.StatusBadRequest, "invalid json")
	}
	if req.ID != "" {
		if _, found := sess.Store.Device(req.ID); !found {
			return fail(c, http.StatusNotFound, "device not found")
		}
	}
	sess.Store.SelectDevice(req.ID)
	return ok(c, fiber.Map{"selected_id": req.ID})
}

// listPresets returns the session's presets; ?refresh=true reloads them from
// the backend first.
func (s *Server) listPresets(c fiber.Ctx, sess *application.Session) error {
	if refresh, _ := strconv.ParseBool(c.Query("refresh")); refresh {
		if err := sess.Store.LoadPresetCatalog(c.Context()); err != nil {
			return failErr(c, err)
		}
	}
	return c.JSON(envelope{Success: true, Data: sess.Store.Presets(), Message: toastMessage(sess)})
}

type saveRequest struct {
	Name string `json:"name"`
}

type presetResponse struct {
	Preset     domain.Preset          `json:"preset"`
	Durability application.Durability `json:"durability"`
}

func (s *Server) savePreset(c fiber.Ctx, sess *application.Session) error {
	var req saveRequest
	if err := decodeBody(c, &req); err != nil {
		return fail(c, http.StatusBadRequest, "invalid json")
	}

	res, err := sess.Store.SavePreset(c.Context(), req.Name)
	if err != nil {
		return failErr(c, err)
	}
	return c.Status(http.StatusCreated).JSON(envelope{
		Success: true,
		Data:    presetResponse{Preset: res.Preset, Durability: res.Durability},
		Message: toastMessage(sess),
	})
}

func (s *Server) deletePreset(c fiber.Ctx, sess *application.Session) error {
	id, err := strconv.ParseInt(c.Params("pid"), 10, 64)
	if err != nil {
		return fail(c, http.StatusBadRequest, "invalid preset id")
	}

	res, err := sess.Store.DeletePreset(c.Context(), id)
	if err != nil {
		s.logger.Warn("deleting preset", "session", sess.ID, "id", id, "error", err)
		return failErr(c, err)
	}
	return c.JSON(envelope{
		Success: true,
		Data:    fiber.Map{"id": res.ID, "durability": res.Durability},
		Message: toastMessage(sess),
	})
}

func (s *Server) loadPreset(c fiber.Ctx, sess *application.Session) error {
	id, err := strconv.ParseInt(c.Params("pid"), 10, 64)
	if err != nil {
		return fail(c, http.StatusBadRequest, "invalid preset id")
	}
	if err := sess.Store.LoadPresetByID(id); err != nil {
		return failErr(c, err)
	}
	return c.JSON(envelope{Success: true, Data: sess.Store.Devices(), Message: toastMessage(sess)})
}

// decodeBody treats an empty body as an empty object.
func decodeBody(c fiber.Ctx, v any) error {
	body := c.Body()
	if len(body) == 0 {
		return nil
	}
	return json.Unmarshal(body, v)
}

func ok(c fiber.Ctx, data any) error {
	return c.JSON(envelope{Success: true, Data: data})
}

func fail(c fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(envelope{Message: message})
}

func failErr(c fiber.Ctx, err error) error {
	return fail(c, statusFor(err), domain.UserMessage(err))
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, application.ErrBusy):
		return http.StatusConflict
	case errors.Is(err, domain.ErrValidation):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrTransport), errors.Is(err, domain.ErrApplication):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func toastMessage(sess *application.Session) string {
	if t := sess.Store.Toast(); t != nil {
		return t.Message
	}
	return ""
}
