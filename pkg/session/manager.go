package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"log/slog"

	"github.com/aretw0/arbor/internal/logging"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/ports"
)

// DefaultLockTTL is how long a distributed lock is held before it expires.
const DefaultLockTTL = 30 * time.Second

// lockEntry holds the mutex and the reference count.
type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// Manager orchestrates access to reading progress, ensuring safe concurrent operations.
// It uses Reference Counting to garbage collect unused locks.
type Manager struct {
	store ports.ProgressStore

	mu    sync.Mutex            // Global lock for the map
	locks map[string]*lockEntry // Map of active locks

	locker  ports.DistributedLocker // Optional distributed locker
	lockTTL time.Duration
	logger  *slog.Logger // Logger for internal events (like deferred errors)
}

// Option configures the Manager.
type Option func(*Manager)

// WithLocker enables distributed locking.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(m *Manager) {
		m.locker = locker
	}
}

// WithLockTTL sets the distributed lock expiry.
func WithLockTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		if ttl > 0 {
			m.lockTTL = ttl
		}
	}
}

// WithLogger configures a logger for the Manager.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// NewManager creates a new Manager with the given persistence store.
func NewManager(store ports.ProgressStore, opts ...Option) *Manager {
	m := &Manager{
		store:   store,
		locks:   make(map[string]*lockEntry),
		lockTTL: DefaultLockTTL,
		logger:  logging.NewNop(), // Default to no-op
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// acquire gets or creates a lock entry and increments its reference count.
// The caller MUST Lock the entry.mu, and then call release(sessionID) after unlocking.
func (m *Manager) acquire(sessionID string) *lockEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[sessionID]
	if !exists {
		entry = &lockEntry{}
		m.locks[sessionID] = entry
	}
	entry.refs++
	return entry
}

// release decrements the reference count and deletes the entry if it reaches zero.
func (m *Manager) release(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[sessionID]
	if !exists {
		return // Should not happen if paired correctly
	}

	entry.refs--
	if entry.refs <= 0 {
		delete(m.locks, sessionID)
	}
}

// Load retrieves persisted progress.
func (m *Manager) Load(ctx context.Context, sessionID string) (*domain.Progress, error) {
	var p *domain.Progress
	err := m.WithLock(ctx, sessionID, func(ctx context.Context) error {
		var err error
		p, err = m.store.Load(ctx, sessionID)
		return err
	})
	return p, err
}

// LoadOrStart loads progress, or persists the result of seed if none exists.
func (m *Manager) LoadOrStart(ctx context.Context, sessionID string, seed func() *domain.Progress) (*domain.Progress, error) {
	var p *domain.Progress
	err := m.WithLock(ctx, sessionID, func(ctx context.Context) error {
		var err error
		p, err = m.store.Load(ctx, sessionID)
		if err == nil {
			return nil
		}
		if !errors.Is(err, domain.ErrProgressNotFound) {
			return fmt.Errorf("failed to check session existence: %w", err)
		}

		p = seed()
		p.SessionID = sessionID
		// Persist immediately to reserve the ID
		if err := m.store.Save(ctx, sessionID, p); err != nil {
			return fmt.Errorf("failed to initialize session: %w", err)
		}
		return nil
	})
	return p, err
}

// Save persists progress.
func (m *Manager) Save(ctx context.Context, sessionID string, p *domain.Progress) error {
	return m.WithLock(ctx, sessionID, func(ctx context.Context) error {
		return m.store.Save(ctx, sessionID, p)
	})
}

// Update applies fn to the stored progress and saves the result atomically.
func (m *Manager) Update(ctx context.Context, sessionID string, fn func(*domain.Progress) error) error {
	return m.WithLock(ctx, sessionID, func(ctx context.Context) error {
		p, err := m.store.Load(ctx, sessionID)
		if err != nil {
			return err
		}
		if err := fn(p); err != nil {
			return err
		}
		return m.store.Save(ctx, sessionID, p)
	})
}

// Delete removes the progress from the store.
func (m *Manager) Delete(ctx context.Context, sessionID string) error {
	return m.WithLock(ctx, sessionID, func(ctx context.Context) error {
		return m.store.Delete(ctx, sessionID)
	})
}

// List delegates to the store.
func (m *Manager) List(ctx context.Context) ([]string, error) {
	return m.store.List(ctx)
}

// Store returns the underlying progress store.
func (m *Manager) Store() ports.ProgressStore {
	return m.store
}

// Hooks returns playback hooks that persist every progress snapshot
// a session reports. Failures are logged; playback is never interrupted.
func (m *Manager) Hooks() domain.PlaybackHooks {
	return domain.PlaybackHooks{
		OnProgress: func(ctx context.Context, e *domain.ProgressEvent) {
			if e.Progress == nil || e.Progress.SessionID == "" {
				return
			}
			if err := m.Save(ctx, e.Progress.SessionID, e.Progress); err != nil {
				m.logger.Warn("Failed to persist progress",
					"session_id", e.Progress.SessionID,
					"err", err,
				)
			}
		},
	}
}

// WithLock executes a function while holding the lock for the session.
func (m *Manager) WithLock(ctx context.Context, sessionID string, fn func(context.Context) error) error {
	entry := m.acquire(sessionID)
	entry.mu.Lock()
	defer func() {
		entry.mu.Unlock()
		m.release(sessionID)
	}()

	// Distributed Locking
	if m.locker != nil {
		unlock, err := m.locker.Lock(ctx, sessionID, m.lockTTL)
		if err != nil {
			return fmt.Errorf("failed to acquire distributed lock: %w", err)
		}
		defer func() {
			if err := unlock(ctx); err != nil {
				m.logger.Warn("Failed to release distributed lock (will expire via TTL)",
					"session_id", sessionID,
					"err", err,
				)
			}
		}()
	}

	return fn(ctx)
}
