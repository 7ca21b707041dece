package domain

import (
	"fmt"
	"time"
)

// Preset is a named snapshot of the canvas. Settings is owned by the preset
// and never aliases the live canvas.
type Preset struct {
	ID        int64          `json:"id"`
	Name      string         `json:"name"`
	Settings  []PlacedDevice `json:"settings"`
	CreatedAt *time.Time     `json:"created_at,omitempty"`
	UpdatedAt *time.Time     `json:"updated_at,omitempty"`
}

func (p Preset) Clone() Preset {
	c := p
	c.Settings = CloneDevices(p.Settings)
	if p.CreatedAt != nil {
		t := *p.CreatedAt
		c.CreatedAt = &t
	}
	if p.UpdatedAt != nil {
		t := *p.UpdatedAt
		c.UpdatedAt = &t
	}
	return c
}

func ClonePresets(presets []Preset) []Preset {
	out := make([]Preset, len(presets))
	for i, p := range presets {
		out[i] = p.Clone()
	}
	return out
}

// Validate checks that the preset can replace the canvas: the device list
// must be present and every device must have a known type and a unique id.
func (p Preset) Validate() error {
	if p.Settings == nil {
		return NewValidationError("validate preset", "preset has no device list")
	}

	seen := make(map[string]struct{}, len(p.Settings))
	for i, d := range p.Settings {
		if d.ID == "" {
			return NewValidationError("validate preset", fmt.Sprintf("device %d has no id", i))
		}
		if !d.Type.Valid() {
			return NewValidationError("validate preset", fmt.Sprintf("device %s has unknown type %q", d.ID, d.Type))
		}
		if _, dup := seen[d.ID]; dup {
			return NewValidationError("validate preset", fmt.Sprintf("duplicate device id %s", d.ID))
		}
		seen[d.ID] = struct{}{}
	}

	return nil
}
