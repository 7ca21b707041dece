package cache_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"device-layout/internal/domain"
	"device-layout/internal/infra/cache"
)

type presetCache interface {
	Load(ctx context.Context) ([]domain.Preset, error)
	Store(ctx context.Context, presets []domain.Preset) error
}

func samplePresets() []domain.Preset {
	brightness := 40
	return []domain.Preset{
		{ID: 1, Name: "Evening", Settings: []domain.PlacedDevice{
			{ID: "l1", Type: domain.DeviceTypeLight, X: 10, Y: 20, Power: true, Brightness: &brightness},
		}},
		{ID: 1700000000000, Name: "Empty", Settings: []domain.PlacedDevice{}},
	}
}

func exerciseCache(t *testing.T, c presetCache) {
	t.Helper()
	ctx := context.Background()

	_, err := c.Load(ctx)
	require.ErrorIs(t, err, domain.ErrCacheMiss)

	require.NoError(t, c.Store(ctx, samplePresets()))

	got, err := c.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, samplePresets(), got)

	require.NoError(t, c.Store(ctx, samplePresets()[:1]))
	got, err = c.Load(ctx)
	require.NoError(t, err)
	assert.Len(t, got, 1)

	require.NoError(t, c.Store(ctx, nil))
	got, err = c.Load(ctx)
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestFileCache(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "presets.json")
	c := cache.NewFileCache(path)
	assert.Equal(t, "file", c.Name())
	exerciseCache(t, c)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not be left behind")
}

func TestFileCache_CorruptDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "presets.json")
	require.NoError(t, os.WriteFile(path, []byte("{oops"), 0644))

	_, err := cache.NewFileCache(path).Load(context.Background())

	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrCacheMiss)
}

func TestFileCache_NullDocumentIsMiss(t *testing.T) {
	path := filepath.Join(t.TempDir(), "presets.json")
	require.NoError(t, os.WriteFile(path, []byte("null"), 0644))

	_, err := cache.NewFileCache(path).Load(context.Background())

	assert.ErrorIs(t, err, domain.ErrCacheMiss)
}

func TestSQLiteCache(t *testing.T) {
	db, err := cache.OpenSQLite(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	c, err := cache.NewSQLiteCache(context.Background(), db, "layout.presets")
	require.NoError(t, err)
	assert.Equal(t, "sqlite", c.Name())

	exerciseCache(t, c)
}

func TestSQLiteCache_KeysAreIndependent(t *testing.T) {
	ctx := context.Background()
	db, err := cache.OpenSQLite(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	a, err := cache.NewSQLiteCache(ctx, db, "a")
	require.NoError(t, err)
	b, err := cache.NewSQLiteCache(ctx, db, "b")
	require.NoError(t, err)

	require.NoError(t, a.Store(ctx, samplePresets()))

	_, err = b.Load(ctx)
	assert.ErrorIs(t, err, domain.ErrCacheMiss)
}

func TestRedisCache(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}

	ctx := context.Background()
	client, err := cache.NewRedisConnection(ctx, addr, "", 0)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	key := "device-layout-test:" + t.Name()
	client.Del(ctx, key)
	t.Cleanup(func() { client.Del(context.Background(), key) })

	c := cache.NewRedisCache(client, key)
	assert.Equal(t, "redis", c.Name())
	exerciseCache(t, c)
}
