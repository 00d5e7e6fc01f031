package runtime

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/ports"
)

// loadBundle fetches a unit graph and every scene it references.
// Scenes that do not exist are left out so that traversal stalls at the node
// that needs them; any other failure fails the whole load.
func loadBundle(ctx context.Context, lib ports.Library, unitID string, limit int) (*domain.Bundle, error) {
	graph, err := lib.LoadGraph(ctx, unitID)
	if err != nil {
		return nil, err
	}

	var mu sync.Mutex
	scenes := make(map[string]*domain.Scene)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for _, ref := range graph.SceneRefs() {
		g.Go(func() error {
			scene, err := lib.LoadScene(gctx, ref)
			if errors.Is(err, domain.ErrSceneNotFound) {
				return nil
			}
			if err != nil {
				return fmt.Errorf("scene %s: %w", ref, err)
			}
			mu.Lock()
			scenes[ref] = scene
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &domain.Bundle{Graph: graph, Scenes: scenes}, nil
}

// prefetch is a background load of the unit after the current one.
type prefetch struct {
	unitID string
	done   chan struct{}
	bundle *domain.Bundle
	err    error
}

func (p *prefetch) ready() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

// startPrefetchLocked begins loading the next unit of a continuous story.
func (s *Session) startPrefetchLocked() {
	if s.story == nil || !s.story.SingleEnding() {
		return
	}
	next, ok := s.story.NextUnit(s.unitID)
	if !ok {
		return
	}
	if s.prefetch != nil && s.prefetch.unitID == next.ID {
		return
	}
	p := &prefetch{unitID: next.ID, done: make(chan struct{})}
	s.prefetch = p
	ctx, lib, limit, logger := s.ctx, s.library, s.prefetchLimit, s.logger
	go func() {
		defer close(p.done)
		p.bundle, p.err = loadBundle(ctx, lib, p.unitID, limit)
		if p.err != nil {
			logger.Warn("prefetch failed", "unit_id", p.unitID, "err", p.err)
		}
	}()
}

// crossBoundaries moves a continuous story into its next unit each time the
// current one finishes. The entitlement is checked first; presentation is
// blocked with a loading state only if the prefetch has not completed.
func (s *Session) crossBoundaries(ctx context.Context) {
	for {
		s.mu.Lock()
		if s.closed || !s.boundary {
			s.mu.Unlock()
			return
		}
		s.boundary = false
		from := s.unitID
		next, ok := s.story.NextUnit(from)
		if !ok {
			s.stallLocked("", fmt.Sprintf("unit %s has no successor", from), domain.ErrUnitNotFound)
			s.mu.Unlock()
			s.flush(ctx)
			return
		}
		readerID := s.readerID
		s.mu.Unlock()

		allowed, err := s.entitlements.ResolveEntitlement(ctx, readerID, next.ID)
		if err != nil {
			s.logger.Warn("entitlement check failed", "session_id", s.id, "unit_id", next.ID, "err", err)
		}
		if err != nil || !allowed {
			s.deny(ctx, next.ID)
			return
		}

		bundle, err := s.awaitUnit(ctx, from, next.ID)
		s.mu.Lock()
		if s.closed || errors.Is(err, domain.ErrSessionClosed) {
			s.mu.Unlock()
			return
		}
		if err != nil {
			s.stallLocked("", fmt.Sprintf("load unit %s", next.ID), err)
			s.mu.Unlock()
			s.flush(ctx)
			return
		}
		s.unitID = next.ID
		s.bundle = bundle
		s.prefetch = nil
		s.logger.Debug("unit changed", "session_id", s.id, "from", from, "unit_id", next.ID)
		if hook := s.hooks.OnUnitChanged; hook != nil {
			ev := &domain.UnitEvent{EventBase: s.base(domain.EventUnitChanged), FromUnitID: from}
			s.emit(func(ctx context.Context) { hook(ctx, ev) })
		}
		s.startPrefetchLocked()
		s.enterLocked(bundle.Graph.StartNodeID)
		s.settleLocked()
		s.mu.Unlock()
		s.flush(ctx)
	}
}

func (s *Session) deny(ctx context.Context, unitID string) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.status = domain.StatusAccessDenied
	s.logger.Info("access denied", "session_id", s.id, "reader_id", s.readerID, "unit_id", unitID)
	if hook := s.hooks.OnAccessDenied; hook != nil {
		ev := &domain.UnitEvent{EventBase: s.base(domain.EventAccessDenied), FromUnitID: s.unitID}
		ev.UnitID = unitID
		s.emit(func(ctx context.Context) { hook(ctx, ev) })
	}
	s.settleLocked()
	s.mu.Unlock()
	s.flush(ctx)
}

// awaitUnit returns the prefetched next unit, loading it now if no prefetch
// was started for it.
func (s *Session) awaitUnit(ctx context.Context, from, unitID string) (*domain.Bundle, error) {
	s.mu.Lock()
	p := s.prefetch
	if p == nil || p.unitID != unitID {
		p = nil
	}
	blocked := p == nil || !p.ready()
	if blocked {
		s.status = domain.StatusLoading
		if hook := s.hooks.OnLoading; hook != nil {
			ev := &domain.UnitEvent{EventBase: s.base(domain.EventLoading), FromUnitID: from}
			ev.UnitID = unitID
			s.emit(func(ctx context.Context) { hook(ctx, ev) })
		}
	}
	s.mu.Unlock()
	s.flush(ctx)

	if p == nil {
		return loadBundle(ctx, s.library, unitID, s.prefetchLimit)
	}
	select {
	case <-p.done:
		return p.bundle, p.err
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-s.ctx.Done():
		return nil, domain.ErrSessionClosed
	}
}
