package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"device-layout/internal/domain"
)

type ToastKind string

const (
	ToastSuccess ToastKind = "success"
	ToastError   ToastKind = "error"
	ToastInfo    ToastKind = "info"
)

type Toast struct {
	Message string    `json:"message"`
	Kind    ToastKind `json:"kind"`
}

// Durability tells whether a preset mutation reached the backend or only
// the local state and cache.
type Durability string

const (
	DurabilityPersisted Durability = "persisted"
	DurabilityLocalOnly Durability = "local_only"
)

// Outcome labels passed to the Recorder.
const (
	OutcomePersisted = "persisted"
	OutcomeLocalOnly = "local_only"
	OutcomeFailed    = "failed"
	OutcomeRejected  = "rejected"
)

type SaveResult struct {
	Preset     domain.Preset
	Durability Durability
}

type DeleteResult struct {
	ID         int64
	Durability Durability
}

var ErrBusy = errors.New("operation already in progress")

const DefaultToastDuration = 3 * time.Second

// Snapshot is a deep copy of the store state at one instant.
type Snapshot struct {
	Devices          []domain.PlacedDevice    `json:"devices"`
	SelectedID       string                   `json:"selected_id,omitempty"`
	Presets          []domain.Preset          `json:"presets"`
	AvailableDevices []domain.AvailableDevice `json:"available_devices"`
	Loading          bool                     `json:"loading"`
	Toast            *Toast                   `json:"toast,omitempty"`
}

type StoreOption func(*Store)

func WithCache(cache PresetCache) StoreOption {
	return func(s *Store) { s.cache = cache }
}

func WithRecorder(r Recorder) StoreOption {
	return func(s *Store) { s.recorder = r }
}

func WithToastDuration(d time.Duration) StoreOption {
	return func(s *Store) { s.toastTTL = d }
}

func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) { s.now = now }
}

// Store holds one session's canvas, presets and UI feedback. All methods are
// safe for concurrent use; network calls are made without holding the lock.
type Store struct {
	repo     PresetRepository
	catalog  CatalogSource
	cache    PresetCache
	recorder Recorder
	logger   *slog.Logger
	toastTTL time.Duration
	now      func() time.Time

	mu         sync.Mutex
	devices    []domain.PlacedDevice
	selectedID string
	presets    []domain.Preset
	available  []domain.AvailableDevice
	pending    int
	saving     bool
	deleting   bool
	toast      *Toast
	toastSeq   uint64
	toastTimer *time.Timer
	closed     bool
}

func NewStore(repo PresetRepository, catalog CatalogSource, logger *slog.Logger, opts ...StoreOption) *Store {
	s := &Store{
		repo:      repo,
		catalog:   catalog,
		cache:     NoopCache{},
		recorder:  NoopRecorder{},
		logger:    logger,
		toastTTL:  DefaultToastDuration,
		now:       time.Now,
		devices:   []domain.PlacedDevice{},
		presets:   []domain.Preset{},
		available: domain.DefaultCatalog(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Init fetches presets and the device catalog concurrently. Each fetch
// degrades on its own; a failure in one never affects the other.
func (s *Store) Init(ctx context.Context) {
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		_ = s.LoadPresetCatalog(ctx)
	}()

	go func() {
		defer wg.Done()
		_ = s.LoadDeviceCatalog(ctx)
	}()

	wg.Wait()
}

// Close stops the pending toast timer and releases the store's share of the
// canvas gauge.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true
	if s.toastTimer != nil {
		s.toastTimer.Stop()
	}
	s.recorder.DevicesPlaced(-len(s.devices))
}

func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		Devices:          domain.CloneDevices(s.devices),
		SelectedID:       s.selectedID,
		Presets:          domain.ClonePresets(s.presets),
		AvailableDevices: append([]domain.AvailableDevice(nil), s.available...),
		Loading:          s.pending > 0,
	}
	if s.toast != nil {
		t := *s.toast
		snap.Toast = &t
	}
	return snap
}

func (s *Store) Devices() []domain.PlacedDevice {
	s.mu.Lock()
	defer s.mu.Unlock()
	return domain.CloneDevices(s.devices)
}

func (s *Store) Device(id string) (domain.PlacedDevice, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if i := s.indexOfDevice(id); i >= 0 {
		return s.devices[i].Clone(), true
	}
	return domain.PlacedDevice{}, false
}

func (s *Store) SelectedID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selectedID
}

func (s *Store) Presets() []domain.Preset {
	s.mu.Lock()
	defer s.mu.Unlock()
	return domain.ClonePresets(s.presets)
}

func (s *Store) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending > 0
}

func (s *Store) Toast() *Toast {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.toast == nil {
		return nil
	}
	t := *s.toast
	return &t
}

// AddDevice appends d and selects it. Ids must be unique on the canvas.
func (s *Store) AddDevice(d domain.PlacedDevice) error {
	if !d.Type.Valid() {
		return domain.NewValidationError("add device", fmt.Sprintf("unknown device type %q", d.Type))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if d.ID == "" || s.indexOfDevice(d.ID) >= 0 {
		return domain.NewValidationError("add device", fmt.Sprintf("device id %q is empty or already placed", d.ID))
	}

	s.devices = append(s.devices, d.Clone())
	s.selectedID = d.ID
	s.recorder.DevicesPlaced(1)
	return nil
}

// UpdateDevice merges patch into the device with the given id. Unknown ids
// are ignored; the return value reports whether a device was updated.
func (s *Store) UpdateDevice(id string, patch domain.DevicePatch) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOfDevice(id)
	if i < 0 {
		return false
	}
	s.devices[i].Apply(patch)
	return true
}

func (s *Store) RemoveDevice(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOfDevice(id)
	if i < 0 {
		return false
	}

	s.devices = append(s.devices[:i:i], s.devices[i+1:]...)
	if s.selectedID == id {
		s.selectedID = ""
	}
	s.recorder.DevicesPlaced(-1)
	return true
}

func (s *Store) ClearDevices() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.recorder.DevicesPlaced(-len(s.devices))
	s.devices = []domain.PlacedDevice{}
	s.selectedID = ""
}

// SelectDevice sets the selection cursor. An empty id clears it; ids are not
// checked against the canvas.
func (s *Store) SelectDevice(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selectedID = id
}

// ShowToast replaces the current toast. Only the latest toast is cleared by
// its own timer, so an older timer never hides a newer message.
func (s *Store) ShowToast(message string, kind ToastKind) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.toastSeq++
	seq := s.toastSeq
	s.toast = &Toast{Message: message, Kind: kind}

	s.logger.Debug("toast", "kind", kind, "message", message)

	if s.toastTimer != nil {
		s.toastTimer.Stop()
	}
	if s.closed {
		return
	}

	s.toastTimer = time.AfterFunc(s.toastTTL, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.toastSeq == seq {
			s.toast = nil
		}
	})
}

// LoadPresetCatalog replaces the preset list from the backend, falling back
// to the durable cache when the backend is unavailable.
func (s *Store) LoadPresetCatalog(ctx context.Context) error {
	s.beginLoading()
	defer s.endLoading()

	presets, err := s.repo.ListPresets(ctx)
	if err == nil {
		s.mu.Lock()
		s.presets = domain.ClonePresets(presets)
		s.mu.Unlock()

		s.mirror(ctx, presets)
		s.recorder.PresetOperation("list", OutcomePersisted)
		return nil
	}

	s.logger.Warn("loading presets from api", "error", err)

	cached, cacheErr := s.cache.Load(ctx)
	if cacheErr == nil {
		s.mu.Lock()
		s.presets = domain.ClonePresets(cached)
		s.mu.Unlock()

		s.recorder.PresetOperation("list", OutcomeLocalOnly)
		s.ShowToast("Using local presets (API unavailable)", ToastInfo)
		return nil
	}

	if !errors.Is(cacheErr, domain.ErrCacheMiss) {
		s.logger.Error("loading presets from cache", "error", cacheErr)
	}

	s.recorder.PresetOperation("list", OutcomeFailed)
	s.ShowToast("Failed to load presets: "+domain.UserMessage(err), ToastError)
	return fmt.Errorf("loading presets: %w", err)
}

// LoadDeviceCatalog replaces the palette from the backend. An empty or failed
// fetch keeps the current catalog, which starts as the built-in default.
func (s *Store) LoadDeviceCatalog(ctx context.Context) error {
	s.beginLoading()
	defer s.endLoading()

	catalog, err := s.catalog.ListDeviceTypes(ctx)
	if err != nil {
		s.logger.Warn("loading device catalog, keeping defaults", "error", err)
		return fmt.Errorf("loading device catalog: %w", err)
	}

	if len(catalog) == 0 {
		s.logger.Info("device catalog is empty, keeping defaults")
		return nil
	}

	s.mu.Lock()
	s.available = append([]domain.AvailableDevice(nil), catalog...)
	s.mu.Unlock()

	return nil
}

// SavePreset stores the current canvas under name. When the backend is
// unavailable the preset is kept locally with a client-assigned id, so the
// layout is never lost.
func (s *Store) SavePreset(ctx context.Context, name string) (SaveResult, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		s.recorder.PresetOperation("save", OutcomeRejected)
		s.ShowToast("Please enter a preset name", ToastError)
		return SaveResult{}, domain.NewValidationError("save preset", "preset name is empty")
	}

	s.mu.Lock()
	if len(s.devices) == 0 {
		s.mu.Unlock()
		s.recorder.PresetOperation("save", OutcomeRejected)
		s.ShowToast("No devices to save", ToastError)
		return SaveResult{}, domain.NewValidationError("save preset", "canvas is empty")
	}
	if s.saving {
		s.mu.Unlock()
		s.ShowToast("A save is already in progress", ToastInfo)
		return SaveResult{}, ErrBusy
	}
	s.saving = true
	s.pending++
	snapshot := domain.CloneDevices(s.devices)
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.saving = false
		s.pending--
		s.mu.Unlock()
	}()

	created, err := s.repo.CreatePreset(ctx, name, snapshot)
	if err == nil {
		preset := created.Clone()

		s.mu.Lock()
		s.presets = append(s.presets, preset.Clone())
		list := domain.ClonePresets(s.presets)
		s.mu.Unlock()

		s.mirror(ctx, list)
		s.recorder.PresetOperation("save", OutcomePersisted)
		s.ShowToast(fmt.Sprintf("Preset %q saved successfully!", name), ToastSuccess)
		return SaveResult{Preset: preset, Durability: DurabilityPersisted}, nil
	}

	s.logger.Warn("saving preset to api, keeping it locally", "name", name, "error", err)

	now := s.now().UTC()

	s.mu.Lock()
	preset := domain.Preset{
		ID:        s.nextLocalID(now),
		Name:      name,
		Settings:  snapshot,
		CreatedAt: &now,
	}
	s.presets = append(s.presets, preset.Clone())
	list := domain.ClonePresets(s.presets)
	s.mu.Unlock()

	s.mirror(ctx, list)
	s.recorder.PresetOperation("save", OutcomeLocalOnly)
	s.ShowToast("Preset saved locally (API unavailable)", ToastInfo)
	return SaveResult{Preset: preset, Durability: DurabilityLocalOnly}, nil
}

// DeletePreset removes the preset locally right away, then asks the backend.
// A backend failure keeps the local removal as long as the cache mirror
// succeeds; if both fail the preset is put back.
func (s *Store) DeletePreset(ctx context.Context, id int64) (DeleteResult, error) {
	s.mu.Lock()
	if s.deleting {
		s.mu.Unlock()
		s.ShowToast("A delete is already in progress", ToastInfo)
		return DeleteResult{}, ErrBusy
	}
	s.deleting = true
	s.pending++

	idx := s.indexOfPreset(id)
	var removed domain.Preset
	if idx >= 0 {
		removed = s.presets[idx]
		s.presets = append(s.presets[:idx:idx], s.presets[idx+1:]...)
	}
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.deleting = false
		s.pending--
		s.mu.Unlock()
	}()

	err := s.repo.DeletePreset(ctx, id)
	if err == nil {
		s.mirror(ctx, s.Presets())
		s.recorder.PresetOperation("delete", OutcomePersisted)
		s.ShowToast("Preset deleted successfully", ToastSuccess)
		return DeleteResult{ID: id, Durability: DurabilityPersisted}, nil
	}

	s.logger.Warn("deleting preset from api", "id", id, "error", err)

	if idx < 0 {
		s.recorder.PresetOperation("delete", OutcomeRejected)
		s.ShowToast("Preset not found", ToastError)
		return DeleteResult{}, domain.NewValidationError("delete preset", fmt.Sprintf("preset %d not found", id))
	}

	cacheErr := s.cache.Store(ctx, s.Presets())
	if cacheErr == nil {
		s.recorder.PresetOperation("delete", OutcomeLocalOnly)
		s.ShowToast("Preset deleted locally", ToastInfo)
		return DeleteResult{ID: id, Durability: DurabilityLocalOnly}, nil
	}

	s.logger.Error("mirroring preset deletion to cache, restoring preset", "id", id, "error", cacheErr)

	s.mu.Lock()
	at := min(idx, len(s.presets))
	s.presets = append(s.presets[:at:at], append([]domain.Preset{removed}, s.presets[at:]...)...)
	s.mu.Unlock()

	s.recorder.PresetOperation("delete", OutcomeFailed)
	s.ShowToast("Failed to delete preset: "+domain.UserMessage(err), ToastError)
	return DeleteResult{}, fmt.Errorf("deleting preset %d: %w", id, errors.Join(err, cacheErr))
}

// LoadPreset replaces the canvas with a deep copy of the preset's devices and
// clears the selection. Positions and settings are clamped the same way as
// for devices placed by hand.
func (s *Store) LoadPreset(p domain.Preset) error {
	if err := p.Validate(); err != nil {
		s.ShowToast("Cannot load preset: "+domain.UserMessage(err), ToastError)
		return err
	}

	s.mu.Lock()
	s.recorder.DevicesPlaced(len(p.Settings) - len(s.devices))
	s.devices = domain.CloneDevices(p.Settings)
	for i := range s.devices {
		s.devices[i].Normalize()
	}
	s.selectedID = ""
	s.mu.Unlock()

	s.ShowToast(fmt.Sprintf("Preset %q loaded", p.Name), ToastSuccess)
	return nil
}

func (s *Store) LoadPresetByID(id int64) error {
	s.mu.Lock()
	idx := s.indexOfPreset(id)
	var p domain.Preset
	if idx >= 0 {
		p = s.presets[idx].Clone()
	}
	s.mu.Unlock()

	if idx < 0 {
		s.ShowToast("Preset not found", ToastError)
		return domain.NewValidationError("load preset", fmt.Sprintf("preset %d not found", id))
	}
	return s.LoadPreset(p)
}

func (s *Store) mirror(ctx context.Context, presets []domain.Preset) {
	if err := s.cache.Store(ctx, presets); err != nil {
		s.logger.Warn("mirroring presets to cache", "error", err)
	}
}

func (s *Store) beginLoading() {
	s.mu.Lock()
	s.pending++
	s.mu.Unlock()
}

func (s *Store) endLoading() {
	s.mu.Lock()
	s.pending--
	s.mu.Unlock()
}

// nextLocalID derives an id from the clock, bumped past any id already in
// use. Callers hold s.mu.
func (s *Store) nextLocalID(now time.Time) int64 {
	id := now.UnixMilli()
	for s.indexOfPreset(id) >= 0 {
		id++
	}
	return id
}

func (s *Store) indexOfDevice(id string) int {
	for i := range s.devices {
		if s.devices[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) indexOfPreset(id int64) int {
	for i := range s.presets {
		if s.presets[i].ID == id {
			return i
		}
	}
	return -1
}
