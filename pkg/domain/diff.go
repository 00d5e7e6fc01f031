package domain

import (
	"reflect"
)

// ProgressDiff represents the changes between two progress snapshots.
// It is serialized to JSON for partial updates on live clients.
type ProgressDiff struct {
	// SessionID is always present to identify the target.
	SessionID string `json:"session_id"`

	UnitID *string         `json:"unit_id,omitempty"`
	NodeID *string         `json:"node_id,omitempty"`
	Status *PlaybackStatus `json:"status,omitempty"`

	// Variables contains only changed, added or deleted names.
	// For deletions, the name is present with a nil value.
	Variables map[string]any `json:"variables,omitempty"`

	// History contains entries appended since the previous snapshot.
	History []HistoryEntry `json:"history,omitempty"`
}

// Diff calculates the difference between two progress snapshots.
// If old is nil, it returns a diff representing the entire new snapshot.
func Diff(old, new *Progress) *ProgressDiff {
	if new == nil {
		return nil
	}

	diff := &ProgressDiff{SessionID: new.SessionID}

	if old == nil || old.UnitID != new.UnitID {
		diff.UnitID = &new.UnitID
	}
	if old == nil || old.NodeID != new.NodeID {
		diff.NodeID = &new.NodeID
	}
	if old == nil || old.Status != new.Status {
		diff.Status = &new.Status
	}

	var oldVars VariableStore
	if old != nil {
		oldVars = old.Variables
	}
	diff.Variables = DiffVariables(oldVars, new.Variables)
	diff.History = diffHistory(old, new)

	if diff.IsEmpty() {
		return nil
	}
	return diff
}

// DiffVariables returns the names whose values differ between two stores.
// Deleted names map to nil. An empty delta is returned as nil.
func DiffVariables(old, new VariableStore) map[string]any {
	delta := make(map[string]any)

	for k, newVal := range new {
		oldVal, exists := old[k]
		if !exists || !reflect.DeepEqual(oldVal, newVal) {
			delta[k] = newVal
		}
	}

	for k := range old {
		if _, exists := new[k]; !exists {
			delta[k] = nil
		}
	}

	if len(delta) == 0 {
		return nil
	}
	return delta
}

// diffHistory assumes the history is append-only between snapshots of the
// same unit. A capped history that was trimmed is resent whole.
func diffHistory(old, new *Progress) []HistoryEntry {
	if len(new.History) == 0 {
		return nil
	}
	if old == nil || len(old.History) == 0 {
		return new.History
	}

	last := old.History[len(old.History)-1]
	for i := len(new.History) - 1; i >= 0; i-- {
		if new.History[i] == last {
			if i == len(new.History)-1 {
				return nil
			}
			return new.History[i+1:]
		}
	}
	return new.History
}

// IsEmpty checks if the diff contains any actionable changes.
func (d *ProgressDiff) IsEmpty() bool {
	return d.UnitID == nil &&
		d.NodeID == nil &&
		d.Status == nil &&
		len(d.Variables) == 0 &&
		len(d.History) == 0
}
