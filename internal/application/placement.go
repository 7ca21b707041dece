package application

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"device-layout/internal/domain"
)

// Drag payload keys.
const (
	PayloadDevice = "application/device"
	PayloadPreset = "application/preset"
)

const DefaultIconSize = 80

type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Rect is the canvas container's client-space origin.
type Rect struct {
	Left float64 `json:"left"`
	Top  float64 `json:"top"`
}

type IconSize struct {
	Width  float64
	Height float64
}

type DropEvent struct {
	Client    Point             `json:"client"`
	Container Rect              `json:"container"`
	Data      map[string]string `json:"data"`
}

type DropOutcome string

const (
	DropIgnored      DropOutcome = "ignored"
	DropDeviceAdded  DropOutcome = "device_added"
	DropPresetLoaded DropOutcome = "preset_loaded"
)

type DropResult struct {
	Outcome DropOutcome          `json:"outcome"`
	Device  *domain.PlacedDevice `json:"device,omitempty"`
}

// NewDeviceID returns "<unix-millis>-<uuid>".
func NewDeviceID() string {
	return strconv.FormatInt(time.Now().UnixMilli(), 10) + "-" + uuid.NewString()
}

type drag struct {
	pointerID int
	deviceID  string
	offset    Point
}

// Placement turns drop and pointer gestures into store mutations. It tracks
// at most one captured pointer at a time.
type Placement struct {
	store  *Store
	icon   IconSize
	newID  func() string
	logger *slog.Logger

	mu     sync.Mutex
	active *drag
}

func NewPlacement(store *Store, icon IconSize, logger *slog.Logger) *Placement {
	if icon.Width <= 0 {
		icon.Width = DefaultIconSize
	}
	if icon.Height <= 0 {
		icon.Height = DefaultIconSize
	}
	return &Placement{
		store:  store,
		icon:   icon,
		newID:  NewDeviceID,
		logger: logger,
	}
}

// Drop handles a payload released over the canvas. A preset payload wins over
// a device payload. Malformed payloads leave the store untouched and return a
// validation error that callers may ignore.
func (p *Placement) Drop(ev DropEvent) (DropResult, error) {
	if raw, ok := ev.Data[PayloadPreset]; ok && raw != "" {
		preset, err := ParsePresetPayload(raw)
		if err == nil {
			if err := p.store.LoadPreset(preset); err != nil {
				return DropResult{Outcome: DropIgnored}, err
			}
			return DropResult{Outcome: DropPresetLoaded}, nil
		}
		p.logger.Debug("ignoring preset payload", "error", err)
	}

	raw, ok := ev.Data[PayloadDevice]
	if !ok || raw == "" {
		return DropResult{Outcome: DropIgnored}, nil
	}

	deviceType, err := ParseDevicePayload(raw)
	if err != nil {
		p.logger.Debug("ignoring device payload", "error", err)
		return DropResult{Outcome: DropIgnored}, err
	}

	x := ev.Client.X - ev.Container.Left - p.icon.Width/2
	y := ev.Client.Y - ev.Container.Top - p.icon.Height/2
	device := domain.NewPlacedDevice(p.newID(), deviceType, x, y)

	if err := p.store.AddDevice(device); err != nil {
		return DropResult{Outcome: DropIgnored}, err
	}

	return DropResult{Outcome: DropDeviceAdded, Device: &device}, nil
}

// PointerDown selects the device and captures the pointer, remembering where
// inside the device it was grabbed.
func (p *Placement) PointerDown(pointerID int, deviceID string, pointer Point, container Rect) error {
	device, ok := p.store.Device(deviceID)
	if !ok {
		return domain.NewValidationError("pointer down", fmt.Sprintf("device %s is not on the canvas", deviceID))
	}

	p.store.SelectDevice(deviceID)

	p.mu.Lock()
	defer p.mu.Unlock()

	p.active = &drag{
		pointerID: pointerID,
		deviceID:  deviceID,
		offset: Point{
			X: pointer.X - container.Left - device.X,
			Y: pointer.Y - container.Top - device.Y,
		},
	}
	return nil
}

// PointerMove repositions the captured device. Moves from any pointer other
// than the captured one are ignored; the return value reports whether the
// device moved.
func (p *Placement) PointerMove(pointerID int, pointer Point, container Rect) bool {
	p.mu.Lock()
	active := p.active
	p.mu.Unlock()

	if active == nil || active.pointerID != pointerID {
		return false
	}

	x := pointer.X - container.Left - active.offset.X
	y := pointer.Y - container.Top - active.offset.Y
	return p.store.UpdateDevice(active.deviceID, domain.MovePatch(x, y))
}

func (p *Placement) PointerUp(pointerID int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.active != nil && p.active.pointerID == pointerID {
		p.active = nil
	}
}

// Dragging returns the id of the device under the captured pointer.
func (p *Placement) Dragging() (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.active == nil {
		return "", false
	}
	return p.active.deviceID, true
}

type devicePayload struct {
	Type domain.DeviceType `json:"type"`
}

func ParseDevicePayload(raw string) (domain.DeviceType, error) {
	var payload devicePayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return "", &domain.Error{Kind: domain.KindValidation, Op: "parse device payload", Message: "malformed JSON", Err: err}
	}
	if !payload.Type.Valid() {
		return "", domain.NewValidationError("parse device payload", fmt.Sprintf("unknown device type %q", payload.Type))
	}
	return payload.Type, nil
}

type presetPayload struct {
	ID       int64           `json:"id"`
	Name     string          `json:"name"`
	Settings json.RawMessage `json:"settings"`
}

// ParsePresetPayload decodes a dragged preset, requiring the settings field to
// be a JSON array of valid devices.
func ParsePresetPayload(raw string) (domain.Preset, error) {
	const op = "parse preset payload"

	var payload presetPayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return domain.Preset{}, &domain.Error{Kind: domain.KindValidation, Op: op, Message: "malformed JSON", Err: err}
	}

	settings := bytes.TrimSpace(payload.Settings)
	if len(settings) == 0 || settings[0] != '[' {
		return domain.Preset{}, domain.NewValidationError(op, "settings is not a list")
	}

	var devices []domain.PlacedDevice
	if err := json.Unmarshal(settings, &devices); err != nil {
		return domain.Preset{}, &domain.Error{Kind: domain.KindValidation, Op: op, Message: "malformed settings", Err: err}
	}

	preset := domain.Preset{
		ID:       payload.ID,
		Name:     payload.Name,
		Settings: devices,
	}
	if err := preset.Validate(); err != nil {
		return domain.Preset{}, err
	}
	return preset, nil
}
