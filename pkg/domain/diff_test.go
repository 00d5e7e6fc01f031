package domain

import (
	"encoding/json"
	"reflect"
	"strings"
	"testing"
)

func TestDiff(t *testing.T) {
	presenting := StatusPresentingContent
	ended := StatusEnded
	line := func(i int) HistoryEntry {
		return HistoryEntry{UnitID: "ep1", NodeID: "s1", Index: i, Text: TextContent{Type: TextNarration, Content: "line"}}
	}

	tests := []struct {
		name     string
		old      *Progress
		new      *Progress
		wantDiff *ProgressDiff // nil means no diff
	}{
		{
			name: "Initial Load (Old is Nil)",
			old:  nil,
			new: &Progress{
				SessionID: "sess-1",
				UnitID:    "ep1",
				NodeID:    "start",
				Status:    StatusPresentingContent,
				Variables: VariableStore{"a": 1.0},
				History:   []HistoryEntry{line(0)},
			},
			wantDiff: &ProgressDiff{
				SessionID: "sess-1",
				UnitID:    &[]string{"ep1"}[0],
				NodeID:    &[]string{"start"}[0],
				Status:    &presenting,
				Variables: map[string]any{"a": 1.0},
				History:   []HistoryEntry{line(0)},
			},
		},
		{
			name: "No Changes",
			old: &Progress{
				SessionID: "sess-1",
				UnitID:    "ep1",
				NodeID:    "s1",
				Status:    StatusPresentingContent,
				Variables: VariableStore{"a": 1.0},
				History:   []HistoryEntry{line(0)},
			},
			new: &Progress{
				SessionID: "sess-1",
				UnitID:    "ep1",
				NodeID:    "s1",
				Status:    StatusPresentingContent,
				Variables: VariableStore{"a": 1.0},
				History:   []HistoryEntry{line(0)},
			},
			wantDiff: nil,
		},
		{
			name: "Status Change",
			old:  &Progress{SessionID: "sess-1", NodeID: "end", Status: StatusPresentingContent},
			new:  &Progress{SessionID: "sess-1", NodeID: "end", Status: StatusEnded},
			wantDiff: &ProgressDiff{
				SessionID: "sess-1",
				Status:    &ended,
			},
		},
		{
			name: "Variables Added & Modified",
			old:  &Progress{SessionID: "sess-1", Variables: VariableStore{"a": 1.0, "b": "old"}},
			new:  &Progress{SessionID: "sess-1", Variables: VariableStore{"a": 1.0, "b": "new", "c": true}},
			wantDiff: &ProgressDiff{
				SessionID: "sess-1",
				Variables: map[string]any{"b": "new", "c": true},
			},
		},
		{
			name: "History Append",
			old:  &Progress{SessionID: "sess-1", History: []HistoryEntry{line(0)}},
			new:  &Progress{SessionID: "sess-1", History: []HistoryEntry{line(0), line(1)}},
			wantDiff: &ProgressDiff{
				SessionID: "sess-1",
				History:   []HistoryEntry{line(1)},
			},
		},
		{
			name: "History Trimmed By Cap",
			old:  &Progress{SessionID: "sess-1", History: []HistoryEntry{line(0), line(1)}},
			new:  &Progress{SessionID: "sess-1", History: []HistoryEntry{line(1), line(2)}},
			wantDiff: &ProgressDiff{
				SessionID: "sess-1",
				History:   []HistoryEntry{line(2)},
			},
		},
		{
			name: "Variable Deletion",
			old:  &Progress{Variables: VariableStore{"a": 1.0, "b": 2.0}},
			new:  &Progress{Variables: VariableStore{"a": 1.0}},
			wantDiff: &ProgressDiff{
				Variables: map[string]any{"b": nil},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Diff(tt.old, tt.new)
			if tt.wantDiff == nil {
				if got != nil {
					t.Errorf("Diff() = %v, want nil", got)
				}
				return
			}

			if got == nil {
				t.Fatalf("Diff() = nil, want %v", tt.wantDiff)
			}

			if got.SessionID != tt.wantDiff.SessionID {
				t.Errorf("Diff().SessionID = %v, want %v", got.SessionID, tt.wantDiff.SessionID)
			}
			if !reflect.DeepEqual(got.Variables, tt.wantDiff.Variables) {
				t.Errorf("Diff().Variables = %v, want %v", got.Variables, tt.wantDiff.Variables)
			}
			if !reflect.DeepEqual(got.History, tt.wantDiff.History) {
				t.Errorf("Diff().History = %v, want %v", got.History, tt.wantDiff.History)
			}
			if !equalPtr(got.NodeID, tt.wantDiff.NodeID) {
				t.Errorf("Diff().NodeID = %v, want %v", got.NodeID, tt.wantDiff.NodeID)
			}
			if !equalPtr(got.Status, tt.wantDiff.Status) {
				t.Errorf("Diff().Status = %v, want %v", got.Status, tt.wantDiff.Status)
			}
		})
	}
}

func TestDiffJSONSerialization(t *testing.T) {
	t.Run("Empty Variables Omitted", func(t *testing.T) {
		p1 := &Progress{NodeID: "a", Variables: VariableStore{"a": 1.0}}
		p2 := &Progress{NodeID: "b", Variables: VariableStore{"a": 1.0}}
		diff := Diff(p1, p2)

		if diff == nil {
			t.Fatal("Expected diff, got nil")
		}
		bytes, _ := json.Marshal(diff)
		if strings.Contains(string(bytes), `"variables"`) {
			t.Errorf("JSON should not contain 'variables' when empty, got: %s", string(bytes))
		}
	})

	t.Run("Deletions as Null", func(t *testing.T) {
		p1 := &Progress{Variables: VariableStore{"a": 1.0, "b": 2.0}}
		p2 := &Progress{Variables: VariableStore{"a": 1.0}}
		diff := Diff(p1, p2)

		if diff == nil {
			t.Fatal("Expected diff, got nil")
		}
		bytes, _ := json.Marshal(diff)
		if !strings.Contains(string(bytes), `"b":null`) {
			t.Errorf("JSON should contain 'b':null for deletion, got: %s", string(bytes))
		}
	})
}

func equalPtr[T comparable](a, b *T) bool {
	if a == nil && b == nil {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	return *a == *b
}
