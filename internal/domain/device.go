package domain

type DeviceType string

const (
	DeviceTypeLight DeviceType = "light"
	DeviceTypeFan   DeviceType = "fan"
)

const (
	DefaultBrightness = 70
	DefaultColor      = "#ffdca6"
	DefaultSpeed      = 60
)

func (t DeviceType) Valid() bool {
	return t == DeviceTypeLight || t == DeviceTypeFan
}

// Label is the palette name used when the catalog does not provide one.
func (t DeviceType) Label() string {
	switch t {
	case DeviceTypeLight:
		return "Light"
	case DeviceTypeFan:
		return "Fan"
	default:
		return string(t)
	}
}

// PlacedDevice is a device instance positioned on the canvas. X and Y are
// pixel offsets from the canvas top-left corner.
type PlacedDevice struct {
	ID    string     `json:"id"`
	Type  DeviceType `json:"type"`
	X     float64    `json:"x"`
	Y     float64    `json:"y"`
	Power bool       `json:"power"`

	// Light only
	Brightness *int    `json:"brightness,omitempty"`
	Color      *string `json:"color,omitempty"`

	// Fan only
	Speed *int `json:"speed,omitempty"`
}

func NewPlacedDevice(id string, deviceType DeviceType, x, y float64) PlacedDevice {
	d := PlacedDevice{
		ID:    id,
		Type:  deviceType,
		X:     clampPosition(x),
		Y:     clampPosition(y),
		Power: true,
	}

	switch deviceType {
	case DeviceTypeLight:
		brightness := DefaultBrightness
		color := DefaultColor
		d.Brightness = &brightness
		d.Color = &color
	case DeviceTypeFan:
		speed := DefaultSpeed
		d.Speed = &speed
	}

	return d
}

// DevicePatch holds the attributes to merge into a PlacedDevice. Nil fields
// are left untouched.
type DevicePatch struct {
	X          *float64 `json:"x,omitempty"`
	Y          *float64 `json:"y,omitempty"`
	Power      *bool    `json:"power,omitempty"`
	Brightness *int     `json:"brightness,omitempty"`
	Color      *string  `json:"color,omitempty"`
	Speed      *int     `json:"speed,omitempty"`
}

func MovePatch(x, y float64) DevicePatch {
	return DevicePatch{X: &x, Y: &y}
}

func (d *PlacedDevice) Apply(p DevicePatch) {
	if p.X != nil {
		d.X = clampPosition(*p.X)
	}
	if p.Y != nil {
		d.Y = clampPosition(*p.Y)
	}
	if p.Power != nil {
		d.Power = *p.Power
	}
	if p.Brightness != nil {
		v := clampPercent(*p.Brightness)
		d.Brightness = &v
	}
	if p.Color != nil {
		v := *p.Color
		d.Color = &v
	}
	if p.Speed != nil {
		v := clampPercent(*p.Speed)
		d.Speed = &v
	}
}

// Normalize clamps the position to the canvas and the percentage settings to
// 0-100.
func (d *PlacedDevice) Normalize() {
	d.Apply(DevicePatch{X: &d.X, Y: &d.Y, Brightness: d.Brightness, Speed: d.Speed})
}

// Clone returns a deep copy that shares no pointers with d.
func (d PlacedDevice) Clone() PlacedDevice {
	c := d
	if d.Brightness != nil {
		v := *d.Brightness
		c.Brightness = &v
	}
	if d.Color != nil {
		v := *d.Color
		c.Color = &v
	}
	if d.Speed != nil {
		v := *d.Speed
		c.Speed = &v
	}
	return c
}

func CloneDevices(devices []PlacedDevice) []PlacedDevice {
	if devices == nil {
		return nil
	}
	out := make([]PlacedDevice, len(devices))
	for i, d := range devices {
		out[i] = d.Clone()
	}
	return out
}

// AvailableDevice is a catalog entry for a draggable device type.
type AvailableDevice struct {
	Type  DeviceType `json:"type"`
	Label string     `json:"label"`
}

func DefaultCatalog() []AvailableDevice {
	return []AvailableDevice{
		{Type: DeviceTypeLight, Label: DeviceTypeLight.Label()},
		{Type: DeviceTypeFan, Label: DeviceTypeFan.Label()},
	}
}

func clampPosition(v float64) float64 {
	if v < 0 {
		return 0
	}
	return v
}

func clampPercent(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
