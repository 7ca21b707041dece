package application_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"device-layout/internal/application"
	"device-layout/internal/domain"
)

type gaugeSpy struct {
	mu   sync.Mutex
	last int
}

func (g *gaugeSpy) SessionsOpen(n int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.last = n
}

func (g *gaugeSpy) value() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.last
}

func newManager(repo *fakeRepo, gauge *gaugeSpy) *application.SessionManager {
	return application.NewSessionManager(
		repo,
		&fakeCatalog{entries: []domain.AvailableDevice{{Type: domain.DeviceTypeLight, Label: "Lamp"}}},
		&memCache{},
		nil,
		gauge,
		application.SessionConfig{Icon: application.IconSize{Width: 80, Height: 80}},
		discardLogger(),
	)
}

func TestSessionManager_CreateRunsInitialLoad(t *testing.T) {
	repo := &fakeRepo{presets: []domain.Preset{{ID: 1, Name: "Morning", Settings: []domain.PlacedDevice{}}}}
	gauge := &gaugeSpy{}
	m := newManager(repo, gauge)

	sess := m.Create(context.Background())
	defer m.CloseAll()

	assert.NotEmpty(t, sess.ID)
	snap := sess.Store.Snapshot()
	require.Len(t, snap.Presets, 1)
	assert.Equal(t, "Morning", snap.Presets[0].Name)
	assert.Equal(t, "Lamp", snap.AvailableDevices[0].Label)
	assert.Equal(t, 1, gauge.value())

	got, ok := m.Get(sess.ID)
	require.True(t, ok)
	assert.Same(t, sess, got)
}

func TestSessionManager_SessionsAreIsolated(t *testing.T) {
	m := newManager(&fakeRepo{}, &gaugeSpy{})
	defer m.CloseAll()

	a := m.Create(context.Background())
	b := m.Create(context.Background())
	require.NotEqual(t, a.ID, b.ID)

	_, err := a.Placement.Drop(deviceDrop("fan", 100, 100))
	require.NoError(t, err)

	assert.Len(t, a.Store.Devices(), 1)
	assert.Empty(t, b.Store.Devices())
}

func TestSessionManager_Close(t *testing.T) {
	gauge := &gaugeSpy{}
	m := newManager(&fakeRepo{}, gauge)

	sess := m.Create(context.Background())

	assert.True(t, m.Close(sess.ID))
	assert.False(t, m.Close(sess.ID))
	_, ok := m.Get(sess.ID)
	assert.False(t, ok)
	assert.Equal(t, 0, gauge.value())
}

func TestSessionManager_Sweep(t *testing.T) {
	m := newManager(&fakeRepo{}, &gaugeSpy{})
	m.Create(context.Background())
	m.Create(context.Background())

	assert.Zero(t, m.Sweep(time.Hour))
	assert.Equal(t, 2, m.Len())

	assert.Equal(t, 2, m.Sweep(-time.Hour))
	assert.Zero(t, m.Len())
}

func TestCacheName(t *testing.T) {
	assert.Equal(t, "none", application.CacheName(application.NoopCache{}))
	assert.Equal(t, "custom", application.CacheName(&memCache{}))
}
