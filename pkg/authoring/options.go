package authoring

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/aretw0/arbor/internal/logging"
	"github.com/aretw0/arbor/pkg/clock"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/ports"
)

// DefaultQuietPeriod is how long the editor waits after the last edit before persisting.
const DefaultQuietPeriod = 1500 * time.Millisecond

// IDGenerator returns a fresh identifier for a node of the given type, or for
// an edge when kind is "edge".
type IDGenerator func(kind string) string

// Option configures an Editor.
type Option func(*Editor)

// WithPersister sets where the graph is written. Without one, edits stay in memory.
func WithPersister(p ports.GraphPersister) Option {
	return func(e *Editor) {
		e.persister = p
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Editor) {
		e.logger = logger
	}
}

// WithClock sets the clock driving the autosave debounce.
func WithClock(c clock.Clock) Option {
	return func(e *Editor) {
		e.clock = c
	}
}

// WithQuietPeriod sets the autosave debounce window.
func WithQuietPeriod(d time.Duration) Option {
	return func(e *Editor) {
		e.quiet = d
	}
}

// WithIDGenerator replaces the uuid based id generator.
func WithIDGenerator(gen IDGenerator) Option {
	return func(e *Editor) {
		e.newID = gen
	}
}

// WithPlacementMargin sets the gap guided placement leaves between nodes.
func WithPlacementMargin(m float64) Option {
	return func(e *Editor) {
		e.margin = m
	}
}

func defaultIDGenerator(kind string) string {
	return fmt.Sprintf("%s-%s", kind, uuid.NewString()[:8])
}

func (e *Editor) applyDefaults() {
	if e.logger == nil {
		e.logger = logging.NewNop()
	}
	if e.clock == nil {
		e.clock = clock.Real()
	}
	if e.quiet <= 0 {
		e.quiet = DefaultQuietPeriod
	}
	if e.newID == nil {
		e.newID = defaultIDGenerator
	}
	if e.margin <= 0 {
		e.margin = DefaultPlacementMargin
	}
	if e.graph == nil {
		e.graph = domain.NewStoryGraph(e.unitID)
	}
}
