package runtime

import (
	"log/slog"
	"time"

	"github.com/aretw0/arbor/internal/logging"
	"github.com/aretw0/arbor/pkg/clock"
	"github.com/aretw0/arbor/pkg/condition"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/ports"
)

const (
	// DefaultHistoryCap bounds the reading history kept per session.
	DefaultHistoryCap = 200
	// DefaultTrailCap bounds the visited node trail kept per session.
	DefaultTrailCap = 1000
	// DefaultMaxHops bounds silent node resolutions between two pauses,
	// catching start/branch/modifier cycles.
	DefaultMaxHops = 1000
	// DefaultPrefetchConcurrency bounds parallel scene loads per unit.
	DefaultPrefetchConcurrency = 8
)

// Pacing controls presentation timing. It is passed per session so readers
// with different preferences never interfere.
type Pacing struct {
	// TextSpeed is the delay per revealed rune. Zero reveals instantly.
	TextSpeed time.Duration `json:"textSpeed" yaml:"textSpeed"`
	// AutoplayDelay is the wait after a completed reveal before advancing.
	AutoplayDelay time.Duration `json:"autoplayDelay" yaml:"autoplayDelay"`
	// Autoplay enables automatic advancing.
	Autoplay bool `json:"autoplay" yaml:"autoplay"`
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) {
		s.logger = logger
	}
}

// WithHooks registers presentation callbacks.
func WithHooks(hooks domain.PlaybackHooks) Option {
	return func(s *Session) {
		s.hooks = s.hooks.Merge(hooks)
	}
}

// WithClock sets the clock driving reveal and autoplay timers.
func WithClock(c clock.Clock) Option {
	return func(s *Session) {
		s.clock = c
	}
}

// WithEvaluator sets the condition evaluator.
func WithEvaluator(e *condition.Evaluator) Option {
	return func(s *Session) {
		s.evaluator = e
	}
}

// WithEntitlements sets the resolver consulted at episode boundaries.
func WithEntitlements(r ports.EntitlementResolver) Option {
	return func(s *Session) {
		s.entitlements = r
	}
}

// WithPacing sets presentation timing.
func WithPacing(p Pacing) Option {
	return func(s *Session) {
		s.pacing = p
	}
}

// WithHistoryCap bounds the reading history. Zero or less keeps the default.
func WithHistoryCap(n int) Option {
	return func(s *Session) {
		if n > 0 {
			s.historyCap = n
		}
	}
}

// WithTrailCap bounds the visited node trail.
func WithTrailCap(n int) Option {
	return func(s *Session) {
		if n > 0 {
			s.trailCap = n
		}
	}
}

// WithMaxHops bounds silent resolutions between two pauses.
func WithMaxHops(n int) Option {
	return func(s *Session) {
		if n > 0 {
			s.maxHops = n
		}
	}
}

// WithPrefetchConcurrency bounds parallel scene loads.
func WithPrefetchConcurrency(n int) Option {
	return func(s *Session) {
		if n > 0 {
			s.prefetchLimit = n
		}
	}
}

func (s *Session) applyDefaults() {
	if s.logger == nil {
		s.logger = logging.NewNop()
	}
	if s.clock == nil {
		s.clock = clock.Real()
	}
	if s.evaluator == nil {
		s.evaluator = condition.New()
	}
	if s.entitlements == nil {
		s.entitlements = ports.AllowAll
	}
	if s.historyCap == 0 {
		s.historyCap = DefaultHistoryCap
	}
	if s.trailCap == 0 {
		s.trailCap = DefaultTrailCap
	}
	if s.maxHops == 0 {
		s.maxHops = DefaultMaxHops
	}
	if s.prefetchLimit == 0 {
		s.prefetchLimit = DefaultPrefetchConcurrency
	}
}
