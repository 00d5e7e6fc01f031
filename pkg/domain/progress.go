package domain

import "time"

// PlaybackStatus is the state of a reading session's state machine.
type PlaybackStatus string

const (
	StatusPresentingContent PlaybackStatus = "presenting_content"
	StatusAwaitingChoice    PlaybackStatus = "awaiting_choice"
	StatusLoading           PlaybackStatus = "loading"
	StatusEnded             PlaybackStatus = "ended"
	StatusStalled           PlaybackStatus = "stalled"
	StatusAccessDenied      PlaybackStatus = "access_denied"
	StatusClosed            PlaybackStatus = "closed"
)

// Terminal reports whether traversal stops in this status.
func (s PlaybackStatus) Terminal() bool {
	switch s {
	case StatusEnded, StatusStalled, StatusAccessDenied, StatusClosed:
		return true
	default:
		return false
	}
}

// HistoryEntry is a revealed dialogue or narration unit.
type HistoryEntry struct {
	UnitID string      `json:"unitId"`
	NodeID string      `json:"nodeId"`
	Index  int         `json:"index"`
	Text   TextContent `json:"text"`
}

// Progress is the persisted reading pointer of a session.
// It never carries graph structure.
type Progress struct {
	SessionID  string         `json:"sessionId"`
	ReaderID   string         `json:"readerId"`
	StoryID    string         `json:"storyId"`
	UnitID     string         `json:"unitId"`
	NodeID     string         `json:"nodeId"`
	SceneIndex int            `json:"sceneIndex"`
	Status     PlaybackStatus `json:"status"`
	Variables  VariableStore  `json:"variables"`
	History    []HistoryEntry `json:"history,omitempty"`
	Trail      []string       `json:"trail,omitempty"`
	Ending     *EndingPayload `json:"ending,omitempty"`
	UpdatedAt  time.Time      `json:"updatedAt"`
}

// Clone returns a deep copy of the progress.
func (p *Progress) Clone() *Progress {
	if p == nil {
		return nil
	}
	c := *p
	c.Variables = p.Variables.Clone()
	c.History = append([]HistoryEntry(nil), p.History...)
	c.Trail = append([]string(nil), p.Trail...)
	c.Ending = p.Ending.clone()
	return &c
}
