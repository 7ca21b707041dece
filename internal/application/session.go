package application

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Session is one canvas with its store and gesture tracker.
type Session struct {
	ID        string
	Store     *Store
	Placement *Placement

	mu       sync.Mutex
	lastSeen time.Time
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
}

func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

// SessionGauge tracks the number of open sessions.
type SessionGauge interface {
	SessionsOpen(n int)
}

type SessionConfig struct {
	Icon          IconSize
	ToastDuration time.Duration
}

type SessionManager struct {
	repo     PresetRepository
	catalog  CatalogSource
	cache    PresetCache
	recorder Recorder
	gauge    SessionGauge
	cfg      SessionConfig
	logger   *slog.Logger
	now      func() time.Time

	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewSessionManager(
	repo PresetRepository,
	catalog CatalogSource,
	cache PresetCache,
	recorder Recorder,
	gauge SessionGauge,
	cfg SessionConfig,
	logger *slog.Logger,
) *SessionManager {
	if cache == nil {
		cache = NoopCache{}
	}
	if recorder == nil {
		recorder = NoopRecorder{}
	}
	if cfg.ToastDuration <= 0 {
		cfg.ToastDuration = DefaultToastDuration
	}
	return &SessionManager{
		repo:     repo,
		catalog:  catalog,
		cache:    cache,
		recorder: recorder,
		gauge:    gauge,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
		sessions: make(map[string]*Session),
	}
}

// Create builds a fresh session and runs its initial load before returning.
func (m *SessionManager) Create(ctx context.Context) *Session {
	id := uuid.NewString()
	logger := m.logger.With("session", id)

	store := NewStore(m.repo, m.catalog, logger,
		WithCache(m.cache),
		WithRecorder(m.recorder),
		WithToastDuration(m.cfg.ToastDuration),
	)
	sess := &Session{
		ID:        id,
		Store:     store,
		Placement: NewPlacement(store, m.cfg.Icon, logger),
		lastSeen:  m.now(),
	}

	store.Init(ctx)

	m.mu.Lock()
	m.sessions[id] = sess
	n := len(m.sessions)
	m.mu.Unlock()

	m.reportOpen(n)
	logger.Info("session opened")
	return sess
}

// Get returns the session and marks it as active.
func (m *SessionManager) Get(id string) (*Session, bool) {
	m.mu.RLock()
	sess, ok := m.sessions[id]
	m.mu.RUnlock()

	if ok {
		sess.touch(m.now())
	}
	return sess, ok
}

func (m *SessionManager) Close(id string) bool {
	m.mu.Lock()
	sess, ok := m.sessions[id]
	if ok {
		delete(m.sessions, id)
	}
	n := len(m.sessions)
	m.mu.Unlock()

	if !ok {
		return false
	}

	sess.Store.Close()
	m.reportOpen(n)
	m.logger.Info("session closed", "session", id)
	return true
}

func (m *SessionManager) CloseAll() {
	m.mu.RLock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	m.mu.RUnlock()

	for _, id := range ids {
		m.Close(id)
	}
}

func (m *SessionManager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Sweep closes sessions idle for longer than ttl and returns how many.
func (m *SessionManager) Sweep(ttl time.Duration) int {
	cutoff := m.now().Add(-ttl)

	m.mu.RLock()
	var stale []string
	for id, sess := range m.sessions {
		if sess.idleSince().Before(cutoff) {
			stale = append(stale, id)
		}
	}
	m.mu.RUnlock()

	closed := 0
	for _, id := range stale {
		if m.Close(id) {
			closed++
		}
	}
	return closed
}

func (m *SessionManager) StartJanitor(ctx context.Context, interval, ttl time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := m.Sweep(ttl); n > 0 {
					m.logger.Info("closed idle sessions", "count", n)
				}
			}
		}
	}()
}

func (m *SessionManager) reportOpen(n int) {
	if m.gauge != nil {
		m.gauge.SessionsOpen(n)
	}
}
