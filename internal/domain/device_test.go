package domain_test

import (
	"errors"
	"testing"

	"device-layout/internal/domain"
)

func TestNewPlacedDevice_Defaults(t *testing.T) {
	light := domain.NewPlacedDevice("l1", domain.DeviceTypeLight, 10, 20)
	if !light.Power {
		t.Error("light power: got false, want true")
	}
	if light.Brightness == nil || *light.Brightness != 70 {
		t.Errorf("light brightness: got %v, want 70", light.Brightness)
	}
	if light.Color == nil || *light.Color != "#ffdca6" {
		t.Errorf("light color: got %v, want #ffdca6", light.Color)
	}
	if light.Speed != nil {
		t.Errorf("light speed: got %v, want nil", *light.Speed)
	}

	fan := domain.NewPlacedDevice("f1", domain.DeviceTypeFan, -5, -1)
	if fan.Speed == nil || *fan.Speed != 60 {
		t.Errorf("fan speed: got %v, want 60", fan.Speed)
	}
	if fan.Brightness != nil || fan.Color != nil {
		t.Error("fan has light attributes")
	}
	if fan.X != 0 || fan.Y != 0 {
		t.Errorf("fan position: got (%v,%v), want (0,0)", fan.X, fan.Y)
	}
}

func TestPlacedDevice_Apply(t *testing.T) {
	d := domain.NewPlacedDevice("l1", domain.DeviceTypeLight, 10, 20)

	off := false
	bright := 150
	color := "#aee7ff"
	d.Apply(domain.DevicePatch{Power: &off, Brightness: &bright, Color: &color})

	if d.Power {
		t.Error("power: got true, want false")
	}
	if *d.Brightness != 100 {
		t.Errorf("brightness: got %d, want 100", *d.Brightness)
	}
	if *d.Color != "#aee7ff" {
		t.Errorf("color: got %s, want #aee7ff", *d.Color)
	}

	d.Apply(domain.MovePatch(-30, 45))
	if d.X != 0 || d.Y != 45 {
		t.Errorf("position: got (%v,%v), want (0,45)", d.X, d.Y)
	}
}

func TestPlacedDevice_Normalize(t *testing.T) {
	bright := 250
	speed := -5
	d := domain.PlacedDevice{ID: "l1", Type: domain.DeviceTypeLight, X: -50, Y: -20, Brightness: &bright}
	f := domain.PlacedDevice{ID: "f1", Type: domain.DeviceTypeFan, X: 12, Y: 30, Speed: &speed}

	d.Normalize()
	f.Normalize()

	if d.X != 0 || d.Y != 0 {
		t.Errorf("light position: got (%v,%v), want (0,0)", d.X, d.Y)
	}
	if *d.Brightness != 100 {
		t.Errorf("brightness: got %d, want 100", *d.Brightness)
	}
	if d.Speed != nil || d.Color != nil {
		t.Error("normalize added attributes the device did not have")
	}
	if f.X != 12 || f.Y != 30 {
		t.Errorf("fan position: got (%v,%v), want (12,30)", f.X, f.Y)
	}
	if *f.Speed != 0 {
		t.Errorf("speed: got %d, want 0", *f.Speed)
	}
	if bright != 250 || speed != -5 {
		t.Error("normalize wrote through the original attribute pointers")
	}
}

func TestPlacedDevice_CloneIsDeep(t *testing.T) {
	d := domain.NewPlacedDevice("l1", domain.DeviceTypeLight, 0, 0)
	c := d.Clone()

	*c.Brightness = 5
	*c.Color = "#000000"

	if *d.Brightness != 70 || *d.Color != "#ffdca6" {
		t.Error("clone shares attribute pointers with original")
	}
}

func TestPreset_Validate(t *testing.T) {
	valid := domain.NewPlacedDevice("a", domain.DeviceTypeFan, 0, 0)

	tests := []struct {
		name    string
		preset  domain.Preset
		wantErr bool
	}{
		{"empty list", domain.Preset{Name: "p", Settings: []domain.PlacedDevice{}}, false},
		{"one device", domain.Preset{Name: "p", Settings: []domain.PlacedDevice{valid}}, false},
		{"nil list", domain.Preset{Name: "p"}, true},
		{"unknown type", domain.Preset{Settings: []domain.PlacedDevice{{ID: "x", Type: "heater"}}}, true},
		{"missing id", domain.Preset{Settings: []domain.PlacedDevice{{Type: domain.DeviceTypeFan}}}, true},
		{"duplicate id", domain.Preset{Settings: []domain.PlacedDevice{valid, valid}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.preset.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, domain.ErrValidation) {
				t.Errorf("error kind: got %v, want validation", err)
			}
		})
	}
}

func TestError_Kinds(t *testing.T) {
	cause := errors.New("connection refused")
	err := domain.NewTransportError("list presets", cause)

	if !errors.Is(err, domain.ErrTransport) {
		t.Error("transport error does not match ErrTransport")
	}
	if errors.Is(err, domain.ErrApplication) {
		t.Error("transport error matches ErrApplication")
	}
	if !errors.Is(err, cause) {
		t.Error("transport error does not unwrap to its cause")
	}

	appErr := domain.NewApplicationError("create preset", "name taken")
	if got := domain.UserMessage(appErr); got != "name taken" {
		t.Errorf("UserMessage: got %q, want %q", got, "name taken")
	}
}
