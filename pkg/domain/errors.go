package domain

import (
	"errors"
	"fmt"
)

// Authoring-time conflicts.
var (
	ErrNotFound          = errors.New("not found")
	ErrDuplicateStart    = errors.New("graph already has a start node")
	ErrSlotOccupied      = errors.New("slot already occupied")
	ErrDanglingReference = errors.New("dangling reference")
	ErrInvalidConnection = errors.New("invalid connection")
	ErrStartRemoval      = errors.New("start node cannot be removed")
	ErrDuplicateVariable = errors.New("variable name already defined")
	ErrInvalidNode       = errors.New("invalid node")
	ErrInvalidPlacement  = errors.New("no placement available")
	ErrEditorClosed      = errors.New("editor is closed")
)

// Runtime conditions.
var (
	ErrNoViablePath         = errors.New("no viable path")
	ErrAmbiguousTermination = errors.New("scene exhausted with no successor and no ending")
	ErrAccessDenied         = errors.New("access denied")
	ErrConditionEvaluation  = errors.New("condition evaluation failed")
	ErrNoChoicePending      = errors.New("no choice pending")
	ErrInvalidChoice        = errors.New("invalid choice")
	ErrSessionClosed        = errors.New("session closed")
	ErrSessionNotFound      = errors.New("session not found")
	ErrProgressNotFound     = errors.New("progress not found")
	ErrUnitNotFound         = errors.New("unit not found")
	ErrSceneNotFound        = errors.New("scene not found")
	ErrStoryNotFound        = errors.New("story not found")
)

// NodeError attaches a node id to an error.
type NodeError struct {
	NodeID string
	Err    error
}

func (e *NodeError) Error() string {
	return fmt.Sprintf("node %s: %v", e.NodeID, e.Err)
}

func (e *NodeError) Unwrap() error { return e.Err }

// EdgeError attaches an edge, or a source slot when no edge exists yet.
type EdgeError struct {
	EdgeID   string
	SourceID string
	Slot     string
	Err      error
}

func (e *EdgeError) Error() string {
	if e.EdgeID != "" {
		return fmt.Sprintf("edge %s: %v", e.EdgeID, e.Err)
	}
	return fmt.Sprintf("edge from %s[%s]: %v", e.SourceID, e.Slot, e.Err)
}

func (e *EdgeError) Unwrap() error { return e.Err }

// ConditionEvaluationError names the expression and node that failed.
type ConditionEvaluationError struct {
	NodeID     string
	Expression string
	Err        error
}

func (e *ConditionEvaluationError) Error() string {
	if e.NodeID == "" {
		return fmt.Sprintf("evaluate %q: %v", e.Expression, e.Err)
	}
	return fmt.Sprintf("node %s: evaluate %q: %v", e.NodeID, e.Expression, e.Err)
}

func (e *ConditionEvaluationError) Unwrap() []error {
	return []error{ErrConditionEvaluation, e.Err}
}

// StallError is the reason a session entered the stalled state.
// Err is ErrDanglingReference or ErrNoViablePath.
type StallError struct {
	UnitID string
	NodeID string
	Reason string
	Err    error
}

func (e *StallError) Error() string {
	return fmt.Sprintf("unit %s node %s: %s: %v", e.UnitID, e.NodeID, e.Reason, e.Err)
}

func (e *StallError) Unwrap() error { return e.Err }
