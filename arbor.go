package arbor

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/aretw0/loam"
	"github.com/google/uuid"

	"github.com/aretw0/arbor/internal/logging"
	"github.com/aretw0/arbor/internal/runtime"
	"github.com/aretw0/arbor/internal/validator"
	loamAdapter "github.com/aretw0/arbor/pkg/adapters/loam"
	"github.com/aretw0/arbor/pkg/adapters/memory"
	"github.com/aretw0/arbor/pkg/authoring"
	"github.com/aretw0/arbor/pkg/clock"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/ports"
	"github.com/aretw0/arbor/pkg/session"
)

type (
	// Session is one reader's playback of a story.
	Session = runtime.Session
	// View is the presentation snapshot of a Session.
	View = runtime.View
	// Pacing controls typewriter reveal and autoplay timing.
	Pacing = runtime.Pacing
	// Transcript is the outcome of a simulated read-through.
	Transcript = runtime.Transcript
	// Report is a structural validation report.
	Report = validator.Report
)

// Engine is the high-level entry point for the Arbor library.
// It binds a content repository and a progress store together and opens
// reading and authoring sessions on top of them.
type Engine struct {
	repo         ports.ContentRepository
	store        ports.ProgressStore
	locker       ports.DistributedLocker
	sessions     *session.Manager
	entitlements ports.EntitlementResolver
	hooks        domain.PlaybackHooks
	pacing       Pacing
	clock        clock.Clock
	logger       *slog.Logger
	historyCap   int
	quietPeriod  time.Duration
	Name         string
}

// New initializes an Engine.
// By default, it uses a Loam repository at the given path.
// If WithRepository is provided, repoPath is only used as a label.
func New(repoPath string, opts ...Option) (*Engine, error) {
	eng := &Engine{}
	for _, opt := range opts {
		opt(eng)
	}

	if eng.repo == nil {
		if repoPath == "" {
			return nil, fmt.Errorf("repoPath is required when no custom repository is provided")
		}
		absPath, err := filepath.Abs(repoPath)
		if err != nil {
			return nil, fmt.Errorf("invalid path: %w", err)
		}
		repo, err := loamAdapter.Open(absPath, loam.WithVersioning(false))
		if err != nil {
			return nil, err
		}
		eng.repo = repo
		eng.Name = filepath.Base(absPath)
	} else if repoPath != "" {
		eng.Name = filepath.Base(repoPath)
	}

	if eng.logger == nil {
		eng.logger = logging.NewNop()
	}
	if eng.Name != "" {
		eng.logger = eng.logger.With("library", eng.Name)
	}
	if eng.clock == nil {
		eng.clock = clock.Real()
	}
	if eng.entitlements == nil {
		eng.entitlements = ports.AllowAll
	}
	if eng.store == nil {
		eng.store = memory.NewStore()
	}
	if eng.sessions == nil {
		sessOpts := []session.Option{session.WithLogger(eng.logger)}
		if eng.locker != nil {
			sessOpts = append(sessOpts, session.WithLocker(eng.locker))
		}
		eng.sessions = session.NewManager(eng.store, sessOpts...)
	}
	return eng, nil
}

// Repository returns the content repository the engine reads from.
func (e *Engine) Repository() ports.ContentRepository { return e.repo }

// Sessions returns the manager persisting reader progress.
func (e *Engine) Sessions() *session.Manager { return e.sessions }

// Logger returns the engine logger.
func (e *Engine) Logger() *slog.Logger { return e.logger }

// Read opens a new reading session for a story and starts it.
// An empty storyID requires WithUnit and plays that unit on its own.
func (e *Engine) Read(ctx context.Context, readerID, storyID string, opts ...ReadOption) (*Session, error) {
	r := e.readConfig(opts)
	cfg := runtime.Config{
		SessionID: r.sessionID,
		ReaderID:  readerID,
		StoryID:   storyID,
		UnitID:    r.unitID,
		Variables: r.variables,
	}
	if cfg.SessionID == "" {
		cfg.SessionID = uuid.NewString()
	}

	s, err := runtime.New(ctx, e.repo, cfg, e.sessionOptions(r)...)
	if err != nil {
		return nil, err
	}
	if err := s.Start(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}
	e.logger.Info("Reading session started",
		"session_id", s.ID(),
		"reader_id", readerID,
		"story_id", storyID,
		"unit_id", s.View().UnitID,
	)
	return s, nil
}

// Resume restores a reading session from its persisted progress.
func (e *Engine) Resume(ctx context.Context, sessionID string, opts ...ReadOption) (*Session, error) {
	p, err := e.sessions.Load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	r := e.readConfig(opts)
	s, err := runtime.Resume(ctx, e.repo, p, e.sessionOptions(r)...)
	if err != nil {
		return nil, err
	}
	e.logger.Info("Reading session resumed",
		"session_id", sessionID,
		"unit_id", p.UnitID,
		"node_id", p.NodeID,
		"status", p.Status,
	)
	return s, nil
}

// Forget deletes the persisted progress of a session.
func (e *Engine) Forget(ctx context.Context, sessionID string) error {
	return e.sessions.Delete(ctx, sessionID)
}

// Edit opens an authoring session on a unit. A unit that does not exist
// yet starts empty and is created by the first autosave.
func (e *Engine) Edit(ctx context.Context, unitID string, opts ...authoring.Option) (*authoring.Editor, error) {
	base := []authoring.Option{
		authoring.WithLogger(e.logger),
		authoring.WithClock(e.clock),
	}
	if e.quietPeriod > 0 {
		base = append(base, authoring.WithQuietPeriod(e.quietPeriod))
	}
	return authoring.Open(ctx, unitID, e.repo, append(base, opts...)...)
}

// Inspect returns the graph of a unit.
func (e *Engine) Inspect(ctx context.Context, unitID string) (*domain.StoryGraph, error) {
	return e.repo.LoadGraph(ctx, unitID)
}

// Units lists every stored unit id.
func (e *Engine) Units(ctx context.Context) ([]string, error) {
	return e.repo.ListGraphs(ctx)
}

// Validate loads a unit and reports its structural issues.
func (e *Engine) Validate(ctx context.Context, unitID string) (Report, error) {
	g, err := e.repo.LoadGraph(ctx, unitID)
	if err != nil {
		return Report{}, err
	}
	report := validator.Validate(g)
	if !report.Valid() {
		e.logger.Warn("Unit failed validation", "unit_id", unitID, "errors", len(report.Errors()))
	}
	return report, nil
}

// Simulate reads a story headlessly, taking the given option indexes in
// order. Nothing is persisted.
func (e *Engine) Simulate(ctx context.Context, storyID, unitID string, choices []int, opts ...ReadOption) (*Transcript, error) {
	r := e.readConfig(opts)
	cfg := runtime.Config{
		SessionID: r.sessionID,
		StoryID:   storyID,
		UnitID:    unitID,
		Variables: r.variables,
	}
	if cfg.SessionID == "" {
		cfg.SessionID = "simulation"
	}
	return runtime.Simulate(ctx, e.repo, cfg, choices,
		runtime.WithLogger(e.logger),
		runtime.WithEntitlements(e.entitlements),
		runtime.WithHooks(r.hooks),
	)
}

func (e *Engine) readConfig(opts []ReadOption) readConfig {
	r := readConfig{pacing: e.pacing}
	for _, opt := range opts {
		opt(&r)
	}
	return r
}

func (e *Engine) sessionOptions(r readConfig) []runtime.Option {
	return []runtime.Option{
		runtime.WithLogger(e.logger),
		runtime.WithClock(e.clock),
		runtime.WithEntitlements(e.entitlements),
		runtime.WithPacing(r.pacing),
		runtime.WithHistoryCap(e.historyCap),
		runtime.WithHooks(e.sessions.Hooks()),
		runtime.WithHooks(e.hooks),
		runtime.WithHooks(r.hooks),
	}
}
