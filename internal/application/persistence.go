package application

import (
	"context"

	"device-layout/internal/domain"
)

// PresetRepository is the remote home of presets.
type PresetRepository interface {
	ListPresets(ctx context.Context) ([]domain.Preset, error)
	CreatePreset(ctx context.Context, name string, devices []domain.PlacedDevice) (*domain.Preset, error)
	DeletePreset(ctx context.Context, id int64) error
}

type CatalogSource interface {
	ListDeviceTypes(ctx context.Context) ([]domain.AvailableDevice, error)
}

// PresetCache mirrors the preset list durably. Load returns
// domain.ErrCacheMiss when nothing has been stored yet.
type PresetCache interface {
	Load(ctx context.Context) ([]domain.Preset, error)
	Store(ctx context.Context, presets []domain.Preset) error
}

// Recorder receives store outcomes for metrics. DevicesPlaced gets the change
// in canvas size so that several stores can share one gauge.
type Recorder interface {
	PresetOperation(op, outcome string)
	DevicesPlaced(delta int)
}

// CacheName returns the backend name a cache reports about itself, or
// "custom" when it has none.
func CacheName(c PresetCache) string {
	if named, ok := c.(interface{ Name() string }); ok {
		return named.Name()
	}
	return "custom"
}

type NoopCache struct{}

func (NoopCache) Name() string {
	return "none"
}

func (NoopCache) Load(_ context.Context) ([]domain.Preset, error) {
	return nil, domain.ErrCacheMiss
}

func (NoopCache) Store(_ context.Context, _ []domain.Preset) error {
	return nil
}

type NoopRecorder struct{}

func (NoopRecorder) PresetOperation(_, _ string) {}
func (NoopRecorder) DevicesPlaced(_ int)         {}
