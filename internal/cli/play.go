package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/aretw0/arbor"
	"github.com/aretw0/arbor/internal/presentation/tui"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/runner"
)

// PlayOptions contains all the configuration for the play command.
type PlayOptions struct {
	StoryID   string
	UnitID    string
	SessionID string
	ReaderID  string
	// Variables is a JSON object replacing the initial variable values.
	Variables string
	Fresh     bool
	JSON      bool
	// Headless prints plain text without banner or markdown styling.
	Headless bool
	Version  string
}

func (o PlayOptions) quiet() bool { return o.JSON || o.Headless }

// Play reads a story from in, writing frames to out, until the session
// ends or the reader quits. A known session id is resumed.
func Play(ctx context.Context, eng *arbor.Engine, opts PlayOptions, in io.Reader, out io.Writer) error {
	if opts.StoryID == "" && opts.UnitID == "" {
		return errors.New("a story or a unit is required")
	}
	vars, err := parseVariables(opts.Variables)
	if err != nil {
		return err
	}

	handler := newHandler(opts, in, out)
	r := runner.NewRunner(
		runner.WithLogger(eng.Logger()),
		runner.WithInputHandler(handler),
	)
	if !opts.quiet() {
		tui.PrintBanner(out, opts.Version)
	}

	if opts.Fresh && opts.SessionID != "" {
		if err := eng.Forget(ctx, opts.SessionID); err != nil && !errors.Is(err, domain.ErrProgressNotFound) {
			return fmt.Errorf("reset session: %w", err)
		}
	}

	s, resumed, err := openSession(ctx, eng, opts, vars, r.Hooks())
	if err != nil {
		return fmt.Errorf("failed to open session: %w", err)
	}
	defer s.Close()

	if resumed {
		if !opts.quiet() {
			printSystemMessage(out, "Resuming at '%s' node...", s.View().NodeID)
		}
		replayView(ctx, handler, s.View())
	} else if opts.SessionID != "" && !opts.quiet() {
		printSystemMessage(out, "Session '%s' active.", s.ID())
	}

	runErr := r.Run(ctx, s)
	if ctx.Err() != nil && runErr == nil {
		runErr = ctx.Err()
	}

	var sig os.Signal
	if sc, ok := ctx.(*SignalContext); ok {
		sig = sc.Signal()
	}
	logCompletion(out, s.View().NodeID, runErr, opts.quiet() || s.Status().Terminal(), sig)
	return handleExecutionError(runErr)
}

func openSession(ctx context.Context, eng *arbor.Engine, opts PlayOptions, vars domain.VariableStore, hooks domain.PlaybackHooks) (*arbor.Session, bool, error) {
	if opts.SessionID != "" {
		s, err := eng.Resume(ctx, opts.SessionID, arbor.WithReadHooks(hooks))
		if err == nil {
			return s, true, nil
		}
		if !errors.Is(err, domain.ErrProgressNotFound) {
			return nil, false, err
		}
	}

	readOpts := []arbor.ReadOption{arbor.WithReadHooks(hooks)}
	if opts.SessionID != "" {
		readOpts = append(readOpts, arbor.WithSessionID(opts.SessionID))
	}
	if opts.UnitID != "" {
		readOpts = append(readOpts, arbor.WithUnit(opts.UnitID))
	}
	if vars != nil {
		readOpts = append(readOpts, arbor.WithVariables(vars))
	}
	s, err := eng.Read(ctx, opts.ReaderID, opts.StoryID, readOpts...)
	return s, false, err
}

func newHandler(opts PlayOptions, in io.Reader, out io.Writer) runner.IOHandler {
	switch {
	case opts.JSON:
		return runner.NewJSONHandler(in, out)
	case opts.Headless:
		return runner.NewTextHandler(in, out)
	}
	return runner.NewTextHandler(in, out, runner.WithTextHandlerRenderer(tui.NewRenderer()))
}

// replayView shows the line and pending choice a resumed session stopped on.
func replayView(ctx context.Context, h runner.IOHandler, v arbor.View) {
	if v.Text != nil {
		text := *v.Text
		_ = h.Present(ctx, runner.Frame{Type: domain.EventContentRevealed, UnitID: v.UnitID, NodeID: v.NodeID, Text: &text})
	}
	if v.Status == domain.StatusAwaitingChoice {
		_ = h.Present(ctx, runner.Frame{Type: domain.EventChoicesAvailable, UnitID: v.UnitID, NodeID: v.NodeID, Prompt: v.Prompt, Options: v.Options})
	}
}

func parseVariables(raw string) (domain.VariableStore, error) {
	if raw == "" {
		return nil, nil
	}
	var vars domain.VariableStore
	if err := json.Unmarshal([]byte(raw), &vars); err != nil {
		return nil, fmt.Errorf("error parsing --vars JSON: %w", err)
	}
	return vars, nil
}
