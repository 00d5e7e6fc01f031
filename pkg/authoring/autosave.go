package authoring

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/arbor/pkg/clock"
)

// autosaver coalesces rapid edits into a single write after a quiet period.
// A failed write leaves the saver dirty; it is reported, not retried.
type autosaver struct {
	clock  clock.Clock
	quiet  time.Duration
	save   func(ctx context.Context) error
	logger *slog.Logger

	mu      sync.Mutex
	timer   clock.Timer
	gen     uint64 // bumped on every schedule
	saved   uint64 // generation covered by the last successful write
	lastErr error
	writes  int

	saveMu sync.Mutex // serializes writes
}

func newAutosaver(c clock.Clock, quiet time.Duration, save func(context.Context) error, logger *slog.Logger) *autosaver {
	return &autosaver{clock: c, quiet: quiet, save: save, logger: logger}
}

// schedule marks the state dirty and (re)starts the quiet period.
func (a *autosaver) schedule() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.gen++
	if a.timer != nil {
		a.timer.Stop()
	}
	gen := a.gen
	a.timer = a.clock.AfterFunc(a.quiet, func() {
		a.mu.Lock()
		stale := gen != a.gen
		a.mu.Unlock()
		if stale {
			return
		}
		if err := a.flush(context.Background()); err != nil {
			a.logger.Error("autosave failed", "err", err)
		}
	})
}

// flush writes immediately if anything is pending and waits for the result.
func (a *autosaver) flush(ctx context.Context) error {
	a.saveMu.Lock()
	defer a.saveMu.Unlock()

	a.mu.Lock()
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
	gen := a.gen
	if gen == a.saved {
		a.mu.Unlock()
		return nil
	}
	a.mu.Unlock()

	err := a.save(ctx)

	a.mu.Lock()
	defer a.mu.Unlock()
	a.lastErr = err
	if err != nil {
		return err
	}
	a.writes++
	if gen > a.saved {
		a.saved = gen
	}
	return nil
}

func (a *autosaver) dirty() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.gen != a.saved
}

func (a *autosaver) stop() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
}

func (a *autosaver) stats() (writes int, lastErr error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.writes, a.lastErr
}
