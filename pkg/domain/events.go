package domain

import (
	"context"
	"time"
)

// EventType defines the category of a playback event.
type EventType string

const (
	EventSceneChanged     EventType = "scene_changed"
	EventContentRevealed  EventType = "content_revealed"
	EventRevealProgress   EventType = "reveal_progress"
	EventChoicesAvailable EventType = "choices_available"
	EventEnded            EventType = "ended"
	EventStalled          EventType = "stalled"
	EventAccessDenied     EventType = "access_denied"
	EventLoading          EventType = "loading"
	EventUnitChanged      EventType = "unit_changed"
	EventProgress         EventType = "progress"
)

// EventBase contains common fields for all events.
type EventBase struct {
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
	SessionID string    `json:"session_id"`
	UnitID    string    `json:"unit_id,omitempty"`
}

// SceneEvent is emitted when a scene node is entered.
type SceneEvent struct {
	EventBase
	NodeID string `json:"node_id"`
	Scene  *Stage `json:"scene"`
}

// ContentEvent is emitted when a text unit becomes current.
// Complete is false while the unit is still being typed out.
type ContentEvent struct {
	EventBase
	NodeID   string      `json:"node_id"`
	Index    int         `json:"index"`
	Text     TextContent `json:"text"`
	Revealed int         `json:"revealed"`
	Complete bool        `json:"complete"`
}

// OfferedOption is a visible choice option with its stable index.
type OfferedOption struct {
	Index  int          `json:"index"`
	Option ChoiceOption `json:"option"`
}

// ChoiceEvent is emitted when the session starts waiting for a choice.
type ChoiceEvent struct {
	EventBase
	NodeID  string          `json:"node_id"`
	Prompt  string          `json:"prompt,omitempty"`
	Layout  ChoiceLayout    `json:"layout,omitempty"`
	Options []OfferedOption `json:"options"`
}

// EndedEvent carries the ending descriptor, nil for an ambiguous termination.
// Unlocked is true when the ending's unlock condition held for the final
// variable store.
type EndedEvent struct {
	EventBase
	NodeID   string         `json:"node_id"`
	Ending   *EndingPayload `json:"ending"`
	Unlocked bool           `json:"unlocked"`
	Reason   string         `json:"reason,omitempty"`
}

// StalledEvent reports that traversal found no viable path.
type StalledEvent struct {
	EventBase
	NodeID string `json:"node_id"`
	Reason string `json:"reason"`
	Err    error  `json:"-"`
}

// UnitEvent covers loading, access denial and unit changes at episode boundaries.
type UnitEvent struct {
	EventBase
	FromUnitID string `json:"from_unit_id,omitempty"`
}

// ProgressEvent carries a snapshot taken at a pause point.
type ProgressEvent struct {
	EventBase
	Progress *Progress `json:"progress"`
}

// PlaybackHooks defines the presentation callbacks of a reading session.
// Hooks run outside the session lock and may call back into the session.
type PlaybackHooks struct {
	OnSceneChanged     func(context.Context, *SceneEvent)
	OnContentRevealed  func(context.Context, *ContentEvent)
	OnRevealProgress   func(context.Context, *ContentEvent)
	OnChoicesAvailable func(context.Context, *ChoiceEvent)
	OnEnded            func(context.Context, *EndedEvent)
	OnStalled          func(context.Context, *StalledEvent)
	OnAccessDenied     func(context.Context, *UnitEvent)
	OnLoading          func(context.Context, *UnitEvent)
	OnUnitChanged      func(context.Context, *UnitEvent)
	OnProgress         func(context.Context, *ProgressEvent)
}

// Merge returns hooks that call h first and then other.
func (h PlaybackHooks) Merge(other PlaybackHooks) PlaybackHooks {
	return PlaybackHooks{
		OnSceneChanged:     chain(h.OnSceneChanged, other.OnSceneChanged),
		OnContentRevealed:  chain(h.OnContentRevealed, other.OnContentRevealed),
		OnRevealProgress:   chain(h.OnRevealProgress, other.OnRevealProgress),
		OnChoicesAvailable: chain(h.OnChoicesAvailable, other.OnChoicesAvailable),
		OnEnded:            chain(h.OnEnded, other.OnEnded),
		OnStalled:          chain(h.OnStalled, other.OnStalled),
		OnAccessDenied:     chain(h.OnAccessDenied, other.OnAccessDenied),
		OnLoading:          chain(h.OnLoading, other.OnLoading),
		OnUnitChanged:      chain(h.OnUnitChanged, other.OnUnitChanged),
		OnProgress:         chain(h.OnProgress, other.OnProgress),
	}
}

func chain[E any](a, b func(context.Context, E)) func(context.Context, E) {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	}
	return func(ctx context.Context, e E) {
		a(ctx, e)
		b(ctx, e)
	}
}
