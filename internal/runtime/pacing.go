package runtime

import (
	"github.com/aretw0/arbor/pkg/domain"
)

// Timers capture the epoch they were armed in. Any transition bumps the
// epoch, so a callback from a superseded state is discarded.

func (s *Session) scheduleRevealLocked() {
	epoch := s.epoch
	s.revealTimer = s.clock.AfterFunc(s.pacing.TextSpeed, func() { s.revealTick(epoch) })
}

func (s *Session) revealTick(epoch uint64) {
	s.mu.Lock()
	if s.closed || epoch != s.epoch || s.current == nil || s.current.complete() {
		s.mu.Unlock()
		return
	}
	s.revealTimer = nil
	s.current.revealed++
	if s.current.complete() {
		s.completeRevealLocked()
		s.armAutoplayLocked()
	} else {
		s.emitRevealProgressLocked()
		s.scheduleRevealLocked()
	}
	s.mu.Unlock()

	s.flush(s.ctx)
}

// armAutoplayLocked schedules an advance once the current unit is fully
// shown. Pending choices and terminal states are never auto-advanced.
func (s *Session) armAutoplayLocked() {
	if !s.pacing.Autoplay || s.autoplayTimer != nil {
		return
	}
	if s.status != domain.StatusPresentingContent || s.scene == nil {
		return
	}
	if s.current != nil && !s.current.complete() {
		return
	}
	epoch := s.epoch
	s.autoplayTimer = s.clock.AfterFunc(s.pacing.AutoplayDelay, func() { s.autoplayFire(epoch) })
}

func (s *Session) autoplayFire(epoch uint64) {
	s.mu.Lock()
	if s.closed || epoch != s.epoch {
		s.mu.Unlock()
		return
	}
	s.autoplayTimer = nil
	s.bumpLocked()
	s.advanceLocked()
	s.settleLocked()
	s.mu.Unlock()

	s.flush(s.ctx)
	s.crossBoundaries(s.ctx)
}

// bumpLocked invalidates armed autoplay before an explicit transition.
func (s *Session) bumpLocked() {
	s.epoch++
	if s.autoplayTimer != nil {
		s.autoplayTimer.Stop()
		s.autoplayTimer = nil
	}
}

func (s *Session) stopRevealLocked() {
	if s.revealTimer != nil {
		s.revealTimer.Stop()
		s.revealTimer = nil
	}
}

func (s *Session) stopTimersLocked() {
	s.stopRevealLocked()
	if s.autoplayTimer != nil {
		s.autoplayTimer.Stop()
		s.autoplayTimer = nil
	}
}
