package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"device-layout/internal/domain"
)

// FileCache keeps the preset list as a JSON document on disk.
type FileCache struct {
	path string
	mu   sync.Mutex
}

func NewFileCache(path string) *FileCache {
	return &FileCache{path: path}
}

func (f *FileCache) Name() string {
	return "file"
}

func (f *FileCache) Load(_ context.Context) ([]domain.Preset, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, domain.ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("reading preset cache: %w", err)
	}

	return decode(data)
}

// Store writes to a temporary file and renames it over the cache so readers
// never observe a partial document.
func (f *FileCache) Store(_ context.Context, presets []domain.Preset) error {
	data, err := encode(presets)
	if err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating cache dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(f.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing preset cache: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing preset cache: %w", err)
	}

	if err := os.Rename(tmp.Name(), f.path); err != nil {
		return fmt.Errorf("replacing preset cache: %w", err)
	}

	return nil
}

func encode(presets []domain.Preset) ([]byte, error) {
	if presets == nil {
		presets = []domain.Preset{}
	}
	data, err := json.Marshal(presets)
	if err != nil {
		return nil, fmt.Errorf("encoding presets: %w", err)
	}
	return data, nil
}

func decode(data []byte) ([]domain.Preset, error) {
	var presets []domain.Preset
	if err := json.Unmarshal(data, &presets); err != nil {
		return nil, fmt.Errorf("decoding cached presets: %w", err)
	}
	if presets == nil {
		return nil, domain.ErrCacheMiss
	}
	for i := range presets {
		if presets[i].Settings == nil {
			presets[i].Settings = []domain.PlacedDevice{}
		}
	}
	return presets, nil
}
