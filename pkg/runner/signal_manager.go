package runner

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"
)

const defaultRaceWindow = 100 * time.Millisecond

// SignalManager turns SIGINT/SIGTERM into cancellation of a context derived
// from the reader loop's own context.
type SignalManager struct {
	parent     context.Context
	ctx        context.Context
	cancel     context.CancelFunc
	raceWindow time.Duration
}

// NewSignalManager starts listening for signals on top of parent.
func NewSignalManager(parent context.Context) *SignalManager {
	if parent == nil {
		parent = context.Background()
	}
	sm := &SignalManager{parent: parent, raceWindow: defaultRaceWindow}
	sm.Reset()
	return sm
}

// Context returns the current signal context.
func (sm *SignalManager) Context() context.Context {
	return sm.ctx
}

// Reset re-arms the listener after a handled signal.
func (sm *SignalManager) Reset() {
	if sm.cancel != nil {
		sm.cancel()
	}
	sm.ctx, sm.cancel = signal.NotifyContext(sm.parent, os.Interrupt, syscall.SIGTERM)
}

// Stop permanently stops the signal listener.
func (sm *SignalManager) Stop() {
	if sm.cancel != nil {
		sm.cancel()
	}
}

// CheckRace waits up to the race window for a signal after an input error.
// On some terminals Ctrl+C closes stdin just before the signal is delivered.
// It reports whether the listener was cancelled.
func (sm *SignalManager) CheckRace() bool {
	if sm.ctx.Err() != nil {
		return true
	}
	t := time.NewTimer(sm.raceWindow)
	defer t.Stop()
	select {
	case <-sm.ctx.Done():
		return true
	case <-t.C:
		return false
	}
}
