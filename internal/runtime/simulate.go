package runtime

import (
	"context"
	"fmt"

	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/ports"
)

// DefaultMaxSteps bounds a simulated read-through.
const DefaultMaxSteps = 10000

// StepKind classifies a transcript entry.
type StepKind string

const (
	StepScene  StepKind = "scene"
	StepText   StepKind = "text"
	StepChoice StepKind = "choice"
	StepChosen StepKind = "chosen"
	StepUnit   StepKind = "unit"
	StepEnded  StepKind = "ended"
	StepStall  StepKind = "stalled"
	StepDenied StepKind = "access_denied"
)

// Step is one observable event of a simulated read-through.
type Step struct {
	Kind    StepKind               `json:"kind"`
	UnitID  string                 `json:"unitId"`
	NodeID  string                 `json:"nodeId,omitempty"`
	Text    *domain.TextContent    `json:"text,omitempty"`
	Options []domain.OfferedOption `json:"options,omitempty"`
	Chosen  int                    `json:"chosen,omitempty"`
	Ending  *domain.EndingPayload  `json:"ending,omitempty"`
	Reason  string                 `json:"reason,omitempty"`
}

// Transcript is the outcome of Simulate.
type Transcript struct {
	Steps    []Step           `json:"steps"`
	Progress *domain.Progress `json:"progress"`
}

// Status returns the status the simulation finished in.
func (t *Transcript) Status() domain.PlaybackStatus {
	if t.Progress == nil {
		return ""
	}
	return t.Progress.Status
}

// Simulate reads a story from start to finish without pacing, picking the
// given option indexes in order at each choice. Once the list is exhausted
// the first visible option is taken.
func Simulate(ctx context.Context, lib ports.Library, cfg Config, choices []int, opts ...Option) (*Transcript, error) {
	tr := &Transcript{}
	record := domain.PlaybackHooks{
		OnSceneChanged: func(_ context.Context, e *domain.SceneEvent) {
			tr.Steps = append(tr.Steps, Step{Kind: StepScene, UnitID: e.UnitID, NodeID: e.NodeID})
		},
		OnContentRevealed: func(_ context.Context, e *domain.ContentEvent) {
			text := e.Text
			tr.Steps = append(tr.Steps, Step{Kind: StepText, UnitID: e.UnitID, NodeID: e.NodeID, Text: &text})
		},
		OnChoicesAvailable: func(_ context.Context, e *domain.ChoiceEvent) {
			tr.Steps = append(tr.Steps, Step{Kind: StepChoice, UnitID: e.UnitID, NodeID: e.NodeID, Options: e.Options})
		},
		OnUnitChanged: func(_ context.Context, e *domain.UnitEvent) {
			tr.Steps = append(tr.Steps, Step{Kind: StepUnit, UnitID: e.UnitID, Reason: "from " + e.FromUnitID})
		},
		OnEnded: func(_ context.Context, e *domain.EndedEvent) {
			tr.Steps = append(tr.Steps, Step{Kind: StepEnded, UnitID: e.UnitID, NodeID: e.NodeID, Ending: e.Ending, Reason: e.Reason})
		},
		OnStalled: func(_ context.Context, e *domain.StalledEvent) {
			tr.Steps = append(tr.Steps, Step{Kind: StepStall, UnitID: e.UnitID, NodeID: e.NodeID, Reason: e.Reason})
		},
		OnAccessDenied: func(_ context.Context, e *domain.UnitEvent) {
			tr.Steps = append(tr.Steps, Step{Kind: StepDenied, UnitID: e.UnitID})
		},
	}
	opts = append(opts, WithHooks(record), WithPacing(Pacing{}))

	s, err := New(ctx, lib, cfg, opts...)
	if err != nil {
		return nil, err
	}
	defer s.Close()
	if err := s.Start(ctx); err != nil {
		return nil, err
	}

	for step := 0; ; step++ {
		if step >= DefaultMaxSteps {
			return tr, fmt.Errorf("simulation did not finish after %d steps", step)
		}
		if err := ctx.Err(); err != nil {
			return tr, err
		}
		v := s.View()
		switch v.Status {
		case domain.StatusPresentingContent:
			if err := s.RequestAdvance(ctx); err != nil {
				return tr, err
			}
		case domain.StatusAwaitingChoice:
			pick := v.Options[0].Index
			if len(choices) > 0 {
				pick, choices = choices[0], choices[1:]
			}
			tr.Steps = append(tr.Steps, Step{Kind: StepChosen, UnitID: v.UnitID, NodeID: v.NodeID, Chosen: pick})
			if err := s.Choose(ctx, pick); err != nil {
				return tr, err
			}
		default:
			tr.Progress = s.Snapshot()
			return tr, nil
		}
	}
}
