package application_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"device-layout/internal/application"
	"device-layout/internal/domain"
)

var errBackendDown = domain.NewTransportError("fake", errors.New("connection refused"))

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeRepo struct {
	mu sync.Mutex

	presets   []domain.Preset
	listErr   error
	createErr error
	deleteErr error
	nextID    int64

	// block, when set, holds CreatePreset until it is closed.
	block chan struct{}
	// deleteBlock, when set, holds DeletePreset until it is closed.
	deleteBlock chan struct{}

	// listEntered is closed on the first ListPresets call. listWait, when
	// set, holds ListPresets until it is closed or a second passes.
	listEntered chan struct{}
	listWait    chan struct{}
	enterOnce   sync.Once

	listCalls   int
	createCalls int
	deleteCalls int
	created     [][]domain.PlacedDevice
}

func (f *fakeRepo) ListPresets(_ context.Context) ([]domain.Preset, error) {
	if f.listEntered != nil {
		f.enterOnce.Do(func() { close(f.listEntered) })
	}
	if f.listWait != nil {
		if err := waitFor(f.listWait); err != nil {
			return nil, err
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	if f.listErr != nil {
		return nil, f.listErr
	}
	return domain.ClonePresets(f.presets), nil
}

func (f *fakeRepo) CreatePreset(_ context.Context, name string, devices []domain.PlacedDevice) (*domain.Preset, error) {
	if f.block != nil {
		<-f.block
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.createCalls++
	f.created = append(f.created, devices)
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.nextID++
	p := domain.Preset{ID: f.nextID, Name: name, Settings: domain.CloneDevices(devices)}
	f.presets = append(f.presets, p)
	return &p, nil
}

func (f *fakeRepo) DeletePreset(_ context.Context, id int64) error {
	if f.deleteBlock != nil {
		<-f.deleteBlock
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleteCalls++
	return f.deleteErr
}

func (f *fakeRepo) calls() (list, create, del int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.listCalls, f.createCalls, f.deleteCalls
}

type fakeCatalog struct {
	entries []domain.AvailableDevice
	err     error
	delay   time.Duration

	// entered and wait mirror fakeRepo's listEntered and listWait.
	entered   chan struct{}
	wait      chan struct{}
	enterOnce sync.Once
}

func (f *fakeCatalog) ListDeviceTypes(ctx context.Context) ([]domain.AvailableDevice, error) {
	if f.entered != nil {
		f.enterOnce.Do(func() { close(f.entered) })
	}
	if f.wait != nil {
		if err := waitFor(f.wait); err != nil {
			return nil, err
		}
	}
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.entries, nil
}

var errWaitTimeout = domain.NewTransportError("fake", errors.New("timed out waiting for concurrent call"))

func waitFor(ch <-chan struct{}) error {
	select {
	case <-ch:
		return nil
	case <-time.After(time.Second):
		return errWaitTimeout
	}
}

type memCache struct {
	mu       sync.Mutex
	presets  []domain.Preset
	stored   bool
	storeErr error
	loadErr  error
	writes   int
}

func (m *memCache) Load(_ context.Context) ([]domain.Preset, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	if !m.stored {
		return nil, domain.ErrCacheMiss
	}
	return domain.ClonePresets(m.presets), nil
}

func (m *memCache) Store(_ context.Context, presets []domain.Preset) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.storeErr != nil {
		return m.storeErr
	}
	m.presets = domain.ClonePresets(presets)
	m.stored = true
	m.writes++
	return nil
}

func (m *memCache) snapshot() []domain.Preset {
	m.mu.Lock()
	defer m.mu.Unlock()
	return domain.ClonePresets(m.presets)
}

type countingRecorder struct {
	mu       sync.Mutex
	ops      map[string]int
	onCanvas int
}

func newCountingRecorder() *countingRecorder {
	return &countingRecorder{ops: make(map[string]int)}
}

func (c *countingRecorder) PresetOperation(op, outcome string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ops[op+"/"+outcome]++
}

func (c *countingRecorder) DevicesPlaced(delta int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onCanvas += delta
}

func (c *countingRecorder) count(key string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ops[key]
}

func (c *countingRecorder) canvas() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.onCanvas
}

func newStore(repo *fakeRepo, cache *memCache, opts ...application.StoreOption) *application.Store {
	all := append([]application.StoreOption{application.WithCache(cache)}, opts...)
	return application.NewStore(repo, &fakeCatalog{}, discardLogger(), all...)
}

func light(id string, x, y float64) domain.PlacedDevice {
	return domain.NewPlacedDevice(id, domain.DeviceTypeLight, x, y)
}

func fan(id string, x, y float64) domain.PlacedDevice {
	return domain.NewPlacedDevice(id, domain.DeviceTypeFan, x, y)
}
