package runner

import (
	"context"

	"github.com/aretw0/arbor/pkg/domain"
)

// Frame is one presentation update derived from a session event.
type Frame struct {
	Type     domain.EventType       `json:"type"`
	UnitID   string                 `json:"unitId,omitempty"`
	NodeID   string                 `json:"nodeId,omitempty"`
	Scene    *domain.Stage          `json:"scene,omitempty"`
	Text     *domain.TextContent    `json:"text,omitempty"`
	Prompt   string                 `json:"prompt,omitempty"`
	Options  []domain.OfferedOption `json:"options,omitempty"`
	Ending   *domain.EndingPayload  `json:"ending,omitempty"`
	Unlocked bool                   `json:"unlocked,omitempty"`
	Reason   string                 `json:"reason,omitempty"`
}

// IOHandler defines the strategy for interacting with the reader.
// This allows switching between Text (CLI/TUI) and JSON (Structured) modes.
type IOHandler interface {
	// Present shows a frame. It may be called from timer goroutines
	// while autoplay is on, so implementations must be safe for concurrent use.
	Present(ctx context.Context, f Frame) error

	// Input reads a response from the reader.
	Input(ctx context.Context) (string, error)

	// SystemOutput presents a meta-message (status, usage hints).
	// This is distinct from story content.
	SystemOutput(ctx context.Context, msg string) error
}
