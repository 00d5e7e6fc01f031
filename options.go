package arbor

import (
	"log/slog"
	"time"

	"github.com/aretw0/arbor/pkg/clock"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/ports"
	"github.com/aretw0/arbor/pkg/session"
)

// Option defines a functional option for configuring the Engine.
type Option func(*Engine)

// WithRepository injects a content repository, bypassing the default Loam initialization.
func WithRepository(repo ports.ContentRepository) Option {
	return func(e *Engine) {
		e.repo = repo
	}
}

// WithProgressStore sets where reader progress is persisted (default: in memory).
func WithProgressStore(store ports.ProgressStore) Option {
	return func(e *Engine) {
		e.store = store
	}
}

// WithLocker adds a distributed lock around progress updates.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(e *Engine) {
		e.locker = locker
	}
}

// WithSessionManager replaces the progress manager entirely.
func WithSessionManager(m *session.Manager) Option {
	return func(e *Engine) {
		e.sessions = m
	}
}

// WithEntitlements sets the resolver consulted before each episode opens.
func WithEntitlements(r ports.EntitlementResolver) Option {
	return func(e *Engine) {
		e.entitlements = r
	}
}

// WithPlaybackHooks registers hooks on every session the engine opens.
func WithPlaybackHooks(hooks domain.PlaybackHooks) Option {
	return func(e *Engine) {
		e.hooks = e.hooks.Merge(hooks)
	}
}

// WithPacing sets the default presentation timing of new sessions.
func WithPacing(p Pacing) Option {
	return func(e *Engine) {
		e.pacing = p
	}
}

// WithLogger sets a custom structured logger for the engine.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithClock sets the clock driving pacing and autosave timers.
func WithClock(c clock.Clock) Option {
	return func(e *Engine) {
		e.clock = c
	}
}

// WithHistoryCap bounds the reading history kept per session.
func WithHistoryCap(n int) Option {
	return func(e *Engine) {
		e.historyCap = n
	}
}

// WithQuietPeriod sets the autosave debounce of authoring sessions.
func WithQuietPeriod(d time.Duration) Option {
	return func(e *Engine) {
		e.quietPeriod = d
	}
}

type readConfig struct {
	sessionID string
	unitID    string
	variables domain.VariableStore
	pacing    Pacing
	hooks     domain.PlaybackHooks
}

// ReadOption configures a single reading session.
type ReadOption func(*readConfig)

// WithSessionID fixes the session id instead of generating one.
func WithSessionID(id string) ReadOption {
	return func(r *readConfig) {
		r.sessionID = id
	}
}

// WithUnit opens the story at a given unit, or plays the unit alone when no story is given.
func WithUnit(unitID string) ReadOption {
	return func(r *readConfig) {
		r.unitID = unitID
	}
}

// WithVariables seeds the variable store instead of the graph's initial values.
func WithVariables(vars domain.VariableStore) ReadOption {
	return func(r *readConfig) {
		r.variables = vars
	}
}

// WithReadPacing overrides the engine pacing for one session.
func WithReadPacing(p Pacing) ReadOption {
	return func(r *readConfig) {
		r.pacing = p
	}
}

// WithReadHooks registers presentation hooks on one session.
func WithReadHooks(hooks domain.PlaybackHooks) ReadOption {
	return func(r *readConfig) {
		r.hooks = r.hooks.Merge(hooks)
	}
}
