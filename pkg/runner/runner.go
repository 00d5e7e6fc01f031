package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/aretw0/arbor/internal/logging"
	"github.com/aretw0/arbor/internal/runtime"
	"github.com/aretw0/arbor/pkg/domain"
)

// Reader is the slice of a playback session the loop drives.
type Reader interface {
	RequestAdvance(ctx context.Context) error
	Choose(ctx context.Context, index int) error
	View() runtime.View
	History() []domain.HistoryEntry
}

// Runner handles the execution loop of a reading session using provided IO.
type Runner struct {
	Handler         IOHandler
	Logger          *slog.Logger
	InterruptSource <-chan struct{}
	Signals         bool
}

var errQuit = errors.New("reader quit")

// NewRunner creates a new Runner. Without a handler it reads stdin and writes stdout.
func NewRunner(opts ...Option) *Runner {
	r := &Runner{}
	for _, opt := range opts {
		opt(r)
	}
	if r.Logger == nil {
		r.Logger = logging.NewNop()
	}
	if r.Handler == nil {
		r.Handler = NewTextHandler(nil, nil)
	}
	return r
}

// Hooks returns playback hooks that forward every event to the handler.
func (r *Runner) Hooks() domain.PlaybackHooks {
	return domain.PlaybackHooks{
		OnSceneChanged: func(ctx context.Context, e *domain.SceneEvent) {
			r.present(ctx, Frame{Type: e.Type, UnitID: e.UnitID, NodeID: e.NodeID, Scene: e.Scene})
		},
		OnContentRevealed: func(ctx context.Context, e *domain.ContentEvent) {
			text := e.Text
			r.present(ctx, Frame{Type: e.Type, UnitID: e.UnitID, NodeID: e.NodeID, Text: &text})
		},
		OnChoicesAvailable: func(ctx context.Context, e *domain.ChoiceEvent) {
			r.present(ctx, Frame{Type: e.Type, UnitID: e.UnitID, NodeID: e.NodeID, Prompt: e.Prompt, Options: e.Options})
		},
		OnEnded: func(ctx context.Context, e *domain.EndedEvent) {
			r.present(ctx, Frame{Type: e.Type, UnitID: e.UnitID, NodeID: e.NodeID, Ending: e.Ending, Unlocked: e.Unlocked, Reason: e.Reason})
		},
		OnStalled: func(ctx context.Context, e *domain.StalledEvent) {
			r.present(ctx, Frame{Type: e.Type, UnitID: e.UnitID, NodeID: e.NodeID, Reason: e.Reason})
		},
		OnAccessDenied: func(ctx context.Context, e *domain.UnitEvent) {
			r.present(ctx, Frame{Type: e.Type, UnitID: e.UnitID})
		},
		OnLoading: func(ctx context.Context, e *domain.UnitEvent) {
			r.present(ctx, Frame{Type: e.Type, UnitID: e.UnitID})
		},
		OnUnitChanged: func(ctx context.Context, e *domain.UnitEvent) {
			r.present(ctx, Frame{Type: e.Type, UnitID: e.UnitID})
		},
	}
}

func (r *Runner) present(ctx context.Context, f Frame) {
	if err := r.Handler.Present(ctx, f); err != nil {
		r.Logger.Warn("present failed", "type", f.Type, "error", err)
	}
}

// Run reads input and drives the session until it is terminal, the input
// is exhausted or the reader quits.
func (r *Runner) Run(ctx context.Context, s Reader) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var sm *SignalManager
	if r.Signals {
		sm = NewSignalManager(runCtx)
		defer sm.Stop()
		go func() {
			select {
			case <-sm.Context().Done():
				cancel()
			case <-runCtx.Done():
			}
		}()
	}
	if r.InterruptSource != nil {
		go func() {
			select {
			case <-r.InterruptSource:
				cancel()
			case <-runCtx.Done():
			}
		}()
	}

	for {
		v := s.View()
		if v.Status.Terminal() {
			r.Logger.Debug("session finished", "status", v.Status)
			return nil
		}

		input, err := r.Handler.Input(runCtx)
		if err != nil {
			if sm != nil {
				sm.CheckRace()
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if runCtx.Err() != nil {
				_ = r.Handler.SystemOutput(ctx, "Interrupted.")
				return nil
			}
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("read input: %w", err)
		}

		if err := r.dispatch(runCtx, s, v, input); err != nil {
			if errors.Is(err, errQuit) {
				return nil
			}
			return err
		}
	}
}

func (r *Runner) dispatch(ctx context.Context, s Reader, v runtime.View, input string) error {
	cmd := strings.ToLower(strings.TrimSpace(input))
	switch cmd {
	case "q", "quit", "exit":
		return errQuit
	case "h", "history":
		return r.Handler.SystemOutput(ctx, formatHistory(s.History()))
	case "", "n", "next":
		if v.Status == domain.StatusAwaitingChoice {
			return r.Handler.SystemOutput(ctx, "Pick an option by number.")
		}
		return s.RequestAdvance(ctx)
	}

	n, err := strconv.Atoi(cmd)
	if err != nil {
		return r.Handler.SystemOutput(ctx, fmt.Sprintf("Unknown command %q. Press enter to continue, a number to choose, h for history or q to quit.", input))
	}
	if v.Status != domain.StatusAwaitingChoice {
		return r.Handler.SystemOutput(ctx, "No choice pending.")
	}
	if n < 1 || n > len(v.Options) {
		return r.Handler.SystemOutput(ctx, fmt.Sprintf("Choose between 1 and %d.", len(v.Options)))
	}
	err = s.Choose(ctx, v.Options[n-1].Index)
	if errors.Is(err, domain.ErrInvalidChoice) || errors.Is(err, domain.ErrNoChoicePending) {
		r.Logger.Warn("choice rejected", "input", n, "error", err)
		return r.Handler.SystemOutput(ctx, "That choice is no longer available.")
	}
	return err
}

func formatHistory(entries []domain.HistoryEntry) string {
	if len(entries) == 0 {
		return "Nothing read yet."
	}
	var b strings.Builder
	b.WriteString("History:")
	for _, e := range entries {
		b.WriteString("\n  ")
		if e.Text.SpeakerRef != "" {
			b.WriteString(e.Text.SpeakerRef)
			b.WriteString(": ")
		}
		b.WriteString(e.Text.Content)
	}
	return b.String()
}
