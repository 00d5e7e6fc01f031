package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/aretw0/arbor/pkg/clock"
	"github.com/aretw0/arbor/pkg/condition"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/ports"
)

// Config identifies what a session plays and for whom.
type Config struct {
	SessionID string
	ReaderID  string
	// StoryID selects the catalog entry. Empty plays UnitID on its own,
	// surfacing its endings.
	StoryID string
	// UnitID selects the opening unit. Empty starts at the story's first unit.
	UnitID string
	// Variables seeds the store. Nil uses the graph's initial values.
	Variables domain.VariableStore
}

// Session is one reader's traversal of a story.
// It is safe for concurrent use; transitions are serialised.
type Session struct {
	id       string
	readerID string
	library  ports.Library
	story    *domain.Story

	logger        *slog.Logger
	hooks         domain.PlaybackHooks
	clock         clock.Clock
	evaluator     *condition.Evaluator
	entitlements  ports.EntitlementResolver
	pacing        Pacing
	historyCap    int
	trailCap      int
	maxHops       int
	prefetchLimit int

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	status   domain.PlaybackStatus
	unitID   string
	bundle   *domain.Bundle
	vars     domain.VariableStore
	history  *history
	trail    []string
	ending   *domain.EndingPayload
	unlocked bool
	stall    *domain.StallError
	closed   bool
	epoch    uint64
	boundary bool

	node       *domain.GraphNode
	scene      *domain.Scene
	sceneIndex int
	current    *presented
	choice     *pendingChoice

	revealTimer   clock.Timer
	autoplayTimer clock.Timer
	prefetch      *prefetch

	outbox      []func(context.Context)
	dispatching bool
}

type presented struct {
	index    int
	text     domain.TextContent
	runes    int
	revealed int
}

func (p *presented) complete() bool { return p.revealed >= p.runes }

type pendingChoice struct {
	node    *domain.GraphNode
	payload *domain.ChoicePayload
	offered []domain.OfferedOption
}

// View is a point-in-time description of the session for presentation layers.
type View struct {
	SessionID  string                 `json:"sessionId"`
	Status     domain.PlaybackStatus  `json:"status"`
	UnitID     string                 `json:"unitId"`
	NodeID     string                 `json:"nodeId,omitempty"`
	SceneIndex int                    `json:"sceneIndex"`
	Scene      *domain.Stage          `json:"scene,omitempty"`
	Text       *domain.TextContent    `json:"text,omitempty"`
	Revealed   int                    `json:"revealed"`
	Prompt     string                 `json:"prompt,omitempty"`
	Options    []domain.OfferedOption `json:"options,omitempty"`
	Ending     *domain.EndingPayload  `json:"ending,omitempty"`
	Unlocked   bool                   `json:"unlocked,omitempty"`
	Stall      string                 `json:"stall,omitempty"`
}

// New creates a session. The story (if any) is resolved immediately; the
// opening unit is loaded by Start.
func New(ctx context.Context, library ports.Library, cfg Config, opts ...Option) (*Session, error) {
	if library == nil {
		return nil, fmt.Errorf("runtime: library is required")
	}
	s := &Session{
		id:       cfg.SessionID,
		readerID: cfg.ReaderID,
		library:  library,
		unitID:   cfg.UnitID,
		status:   domain.StatusLoading,
	}
	if cfg.Variables != nil {
		s.vars = cfg.Variables.Clone()
	}
	for _, opt := range opts {
		opt(s)
	}
	s.applyDefaults()
	s.history = newHistory(s.historyCap)

	if cfg.StoryID != "" {
		story, err := library.LoadStory(ctx, cfg.StoryID)
		if err != nil {
			return nil, fmt.Errorf("load story %s: %w", cfg.StoryID, err)
		}
		s.story = story
		if s.unitID == "" {
			first, ok := story.FirstUnit()
			if !ok {
				return nil, fmt.Errorf("story %s: %w", cfg.StoryID, domain.ErrUnitNotFound)
			}
			s.unitID = first.ID
		} else if story.UnitIndex(s.unitID) < 0 {
			return nil, fmt.Errorf("story %s unit %s: %w", cfg.StoryID, s.unitID, domain.ErrUnitNotFound)
		}
	}
	if s.unitID == "" {
		return nil, fmt.Errorf("runtime: unit id is required")
	}

	s.ctx, s.cancel = context.WithCancel(context.WithoutCancel(ctx))
	return s, nil
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// Start loads the opening unit and enters its start node.
func (s *Session) Start(ctx context.Context) error {
	bundle, err := loadBundle(ctx, s.library, s.unitID, s.prefetchLimit)
	if err != nil {
		return fmt.Errorf("load unit %s: %w", s.unitID, err)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return domain.ErrSessionClosed
	}
	s.bundle = bundle
	if s.vars == nil {
		s.vars = bundle.Graph.InitialStore()
	}
	s.logger.Debug("session started", "session_id", s.id, "unit_id", s.unitID, "start", bundle.Graph.StartNodeID)
	s.startPrefetchLocked()
	s.enterLocked(bundle.Graph.StartNodeID)
	s.settleLocked()
	s.mu.Unlock()

	s.flush(ctx)
	s.crossBoundaries(ctx)
	return nil
}

// Resume restores a session from persisted progress. The graph and scenes
// are reloaded from the library; only the pointer and store come from p.
func Resume(ctx context.Context, library ports.Library, p *domain.Progress, opts ...Option) (*Session, error) {
	if p == nil {
		return nil, domain.ErrProgressNotFound
	}
	s, err := New(ctx, library, Config{
		SessionID: p.SessionID,
		ReaderID:  p.ReaderID,
		StoryID:   p.StoryID,
		UnitID:    p.UnitID,
		Variables: p.Variables,
	}, opts...)
	if err != nil {
		return nil, err
	}
	bundle, err := loadBundle(ctx, library, s.unitID, s.prefetchLimit)
	if err != nil {
		return nil, fmt.Errorf("load unit %s: %w", s.unitID, err)
	}

	s.mu.Lock()
	s.bundle = bundle
	if s.vars == nil {
		s.vars = bundle.Graph.InitialStore()
	}
	for _, h := range p.History {
		s.history.add(h)
	}
	s.trail = append(s.trail, p.Trail...)
	s.startPrefetchLocked()
	s.restoreLocked(p)
	s.settleLocked()
	s.mu.Unlock()

	s.flush(ctx)
	s.crossBoundaries(ctx)
	return s, nil
}

func (s *Session) restoreLocked(p *domain.Progress) {
	switch p.Status {
	case domain.StatusEnded:
		s.status = domain.StatusEnded
		if p.Ending != nil {
			e := *p.Ending
			s.ending = &e
		}
		s.unlocked = s.unlockedLocked(p.NodeID, s.ending)
		return
	case domain.StatusAccessDenied:
		s.status = domain.StatusAccessDenied
		return
	}

	node, ok := s.bundle.Graph.Node(p.NodeID)
	if !ok {
		s.stallLocked(p.NodeID, "resume pointer is not in the graph", domain.ErrDanglingReference)
		return
	}
	switch node.Type {
	case domain.NodeTypeScene:
		if !s.presentSceneLocked(node) {
			return
		}
		if p.Status == domain.StatusAwaitingChoice && node.Scene.Choice != nil {
			s.offerLocked(node, node.Scene.Choice)
			return
		}
		s.sceneIndex = min(max(p.SceneIndex, 0), len(s.scene.Texts))
		if s.sceneIndex > 0 {
			s.showLocked(s.sceneIndex-1, false)
			s.current.revealed = s.current.runes
		}
	case domain.NodeTypeChoice:
		s.offerLocked(node, node.Choice)
	default:
		s.enterLocked(node.ID)
	}
}

// RequestAdvance is the single entry point for advancing presentation.
// While a text unit is still being revealed it completes the reveal;
// otherwise it presents the next unit or resolves the scene's exit.
// It is a no-op while a choice is pending, while loading, and in terminal states.
func (s *Session) RequestAdvance(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return domain.ErrSessionClosed
	}
	s.bumpLocked()
	s.advanceLocked()
	s.settleLocked()
	s.mu.Unlock()

	s.flush(ctx)
	s.crossBoundaries(ctx)
	return nil
}

// Choose selects the option with the given authored index.
func (s *Session) Choose(ctx context.Context, index int) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return domain.ErrSessionClosed
	}
	if s.status != domain.StatusAwaitingChoice || s.choice == nil {
		s.mu.Unlock()
		return domain.ErrNoChoicePending
	}
	var picked *domain.ChoiceOption
	for i := range s.choice.offered {
		if s.choice.offered[i].Index == index {
			picked = &s.choice.offered[i].Option
			break
		}
	}
	if picked == nil {
		s.mu.Unlock()
		return fmt.Errorf("%w: option %d", domain.ErrInvalidChoice, index)
	}
	s.bumpLocked()
	s.chooseLocked(index, *picked)
	s.settleLocked()
	s.mu.Unlock()

	s.flush(ctx)
	s.crossBoundaries(ctx)
	return nil
}

// Close stops timers and background loads. It is idempotent.
func (s *Session) Close() error {
	s.cancel()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.epoch++
	s.stopTimersLocked()
	s.status = domain.StatusClosed
	s.outbox = nil
	s.logger.Debug("session closed", "session_id", s.id)
	return nil
}

// Status returns the current state.
func (s *Session) Status() domain.PlaybackStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Err returns the stall reason, if the session is stalled.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stall == nil {
		return nil
	}
	return s.stall
}

// Variables returns a copy of the variable store.
func (s *Session) Variables() domain.VariableStore {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.vars.Clone()
}

// History returns the revealed dialogue and narration, oldest first.
func (s *Session) History() []domain.HistoryEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.history.entries()
}

// Trail returns the ids of visited nodes in order, for graph overlays.
func (s *Session) Trail() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.trail...)
}

// Graph returns the graph of the current unit.
func (s *Session) Graph() *domain.StoryGraph {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.bundle == nil {
		return nil
	}
	return s.bundle.Graph
}

// View describes what the reader should currently see.
func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := View{
		SessionID:  s.id,
		Status:     s.status,
		UnitID:     s.unitID,
		SceneIndex: s.sceneIndex,
		Scene:      s.scene.Stage(),
		Ending:     s.ending,
		Unlocked:   s.unlocked,
	}
	if s.node != nil {
		v.NodeID = s.node.ID
	}
	if s.current != nil {
		text := s.current.text
		v.Text = &text
		v.Revealed = s.current.revealed
	}
	if s.choice != nil {
		v.Prompt = s.choice.payload.PromptText
		v.Options = append([]domain.OfferedOption(nil), s.choice.offered...)
	}
	if s.stall != nil {
		v.Stall = s.stall.Error()
	}
	return v
}

// Snapshot returns the persistable reading pointer.
func (s *Session) Snapshot() *domain.Progress {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() *domain.Progress {
	p := &domain.Progress{
		SessionID:  s.id,
		ReaderID:   s.readerID,
		UnitID:     s.unitID,
		SceneIndex: s.sceneIndex,
		Status:     s.status,
		Variables:  s.vars.Clone(),
		History:    s.history.entries(),
		Trail:      append([]string(nil), s.trail...),
		UpdatedAt:  s.clock.Now(),
	}
	if s.story != nil {
		p.StoryID = s.story.ID
	}
	if s.node != nil {
		p.NodeID = s.node.ID
	}
	if s.ending != nil {
		e := *s.ending
		p.Ending = &e
	}
	return p
}

func (s *Session) base(t domain.EventType) domain.EventBase {
	return domain.EventBase{
		Timestamp: s.clock.Now(),
		Type:      t,
		SessionID: s.id,
		UnitID:    s.unitID,
	}
}

// emit queues fn for delivery once the lock is released.
func (s *Session) emit(fn func(context.Context)) {
	s.outbox = append(s.outbox, fn)
}

// flush delivers queued events in order. Events queued by hooks that call
// back into the session are delivered by the outermost flush.
func (s *Session) flush(ctx context.Context) {
	s.mu.Lock()
	if s.dispatching {
		s.mu.Unlock()
		return
	}
	s.dispatching = true
	for len(s.outbox) > 0 {
		fn := s.outbox[0]
		s.outbox = s.outbox[1:]
		s.mu.Unlock()
		fn(ctx)
		s.mu.Lock()
	}
	s.dispatching = false
	s.mu.Unlock()
}

// settleLocked reports progress after a transition and arms autoplay.
func (s *Session) settleLocked() {
	if s.closed {
		return
	}
	if s.hooks.OnProgress != nil {
		ev := &domain.ProgressEvent{EventBase: s.base(domain.EventProgress), Progress: s.snapshotLocked()}
		hook := s.hooks.OnProgress
		s.emit(func(ctx context.Context) { hook(ctx, ev) })
	}
	s.armAutoplayLocked()
}
