package validator

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/aretw0/arbor/pkg/domain"
)

func validGraph() *domain.StoryGraph {
	g := domain.NewStoryGraph("ep1")
	g.StartNodeID = "start"
	g.Nodes["start"] = &domain.GraphNode{ID: "start", Type: domain.NodeTypeStart}
	g.Nodes["intro"] = &domain.GraphNode{ID: "intro", Type: domain.NodeTypeScene, Scene: &domain.ScenePayload{SceneRef: "sc-intro"}}
	g.Nodes["gate"] = &domain.GraphNode{ID: "gate", Type: domain.NodeTypeBranch, Branch: &domain.BranchPayload{
		Conditions:         []domain.BranchCondition{{ID: "brave", Expression: "courage > 2", Priority: 1}},
		DefaultEdgePresent: true,
	}}
	g.Nodes["win"] = &domain.GraphNode{ID: "win", Type: domain.NodeTypeEnding, Ending: &domain.EndingPayload{EndingType: domain.EndingGood}}
	g.Nodes["lose"] = &domain.GraphNode{ID: "lose", Type: domain.NodeTypeEnding, Ending: &domain.EndingPayload{EndingType: domain.EndingBad}}
	g.Edges = []domain.GraphEdge{
		{ID: "e1", SourceID: "start", TargetID: "intro"},
		{ID: "e2", SourceID: "intro", TargetID: "gate"},
		{ID: "e3", SourceID: "gate", SourceSlot: "brave", TargetID: "win"},
		{ID: "e4", SourceID: "gate", TargetID: "lose"},
	}
	g.Variables = []domain.StoryVariable{{ID: "v1", Name: "courage", DataType: domain.DataTypeNumber, InitialValue: 0.0}}
	return g
}

func TestValidate_ValidGraph(t *testing.T) {
	r := Validate(validGraph())
	assert.True(t, r.Valid(), r.Err())
	assert.Empty(t, r.Issues)
	assert.NoError(t, r.Err())
}

func TestValidate_Findings(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(g *domain.StoryGraph)
		code     Code
		severity Severity
	}{
		{
			name:     "empty graph",
			mutate:   func(g *domain.StoryGraph) { g.Nodes = map[string]*domain.GraphNode{} },
			code:     CodeEmptyGraph,
			severity: SeverityError,
		},
		{
			name: "two starts",
			mutate: func(g *domain.StoryGraph) {
				g.Nodes["start2"] = &domain.GraphNode{ID: "start2", Type: domain.NodeTypeStart}
			},
			code:     CodeStartCount,
			severity: SeverityError,
		},
		{
			name:     "start pointer mismatch",
			mutate:   func(g *domain.StoryGraph) { g.StartNodeID = "intro" },
			code:     CodeStartPointer,
			severity: SeverityError,
		},
		{
			name: "dangling edge",
			mutate: func(g *domain.StoryGraph) {
				g.Edges = append(g.Edges, domain.GraphEdge{ID: "bad", SourceID: "intro", SourceSlot: "x", TargetID: "ghost"})
			},
			code:     CodeDanglingEdge,
			severity: SeverityError,
		},
		{
			name: "slot collision",
			mutate: func(g *domain.StoryGraph) {
				g.Edges = append(g.Edges, domain.GraphEdge{ID: "dup", SourceID: "gate", SourceSlot: "brave", TargetID: "lose"})
			},
			code:     CodeSlotCollision,
			severity: SeverityError,
		},
		{
			name: "invalid slot",
			mutate: func(g *domain.StoryGraph) {
				g.Edges = append(g.Edges, domain.GraphEdge{ID: "odd", SourceID: "gate", SourceSlot: "coward", TargetID: "lose"})
			},
			code:     CodeInvalidSlot,
			severity: SeverityError,
		},
		{
			name: "ending with outgoing edge",
			mutate: func(g *domain.StoryGraph) {
				g.Edges = append(g.Edges, domain.GraphEdge{ID: "loop", SourceID: "win", TargetID: "intro"})
			},
			code:     CodeEndingOutgoing,
			severity: SeverityWarning,
		},
		{
			name: "unreachable node",
			mutate: func(g *domain.StoryGraph) {
				g.Nodes["orphan"] = &domain.GraphNode{ID: "orphan", Type: domain.NodeTypeScene, Scene: &domain.ScenePayload{SceneRef: "sc-x"}}
			},
			code:     CodeUnreachable,
			severity: SeverityWarning,
		},
		{
			name: "comment edge",
			mutate: func(g *domain.StoryGraph) {
				g.Nodes["note"] = &domain.GraphNode{ID: "note", Type: domain.NodeTypeComment, Comment: &domain.CommentPayload{Text: "todo"}}
				g.Edges = append(g.Edges, domain.GraphEdge{ID: "c1", SourceID: "note", TargetID: "intro"})
			},
			code:     CodeCommentEdge,
			severity: SeverityError,
		},
		{
			name:     "missing scene ref",
			mutate:   func(g *domain.StoryGraph) { g.Nodes["intro"].Scene.SceneRef = "" },
			code:     CodeMissingSceneRef,
			severity: SeverityError,
		},
		{
			name:     "condition syntax",
			mutate:   func(g *domain.StoryGraph) { g.Nodes["gate"].Branch.Conditions[0].Expression = "courage >" },
			code:     CodeConditionSyntax,
			severity: SeverityError,
		},
		{
			name:     "undefined variable",
			mutate:   func(g *domain.StoryGraph) { g.Nodes["gate"].Branch.Conditions[0].Expression = "wisdom > 2" },
			code:     CodeUndefinedVariable,
			severity: SeverityWarning,
		},
		{
			name: "duplicate variable",
			mutate: func(g *domain.StoryGraph) {
				g.Variables = append(g.Variables, domain.StoryVariable{ID: "v2", Name: "courage", DataType: domain.DataTypeNumber})
			},
			code:     CodeDuplicateVariable,
			severity: SeverityError,
		},
		{
			name: "wrong initial value type",
			mutate: func(g *domain.StoryGraph) {
				g.Variables[0].InitialValue = "lots"
			},
			code:     CodeInvalidVariable,
			severity: SeverityError,
		},
		{
			name: "modifier without successor",
			mutate: func(g *domain.StoryGraph) {
				g.Nodes["mod"] = &domain.GraphNode{ID: "mod", Type: domain.NodeTypeVariableModifier, Modifier: &domain.ModifierPayload{
					Operations: []domain.VariableOperation{{Variable: "courage", Operation: domain.OpIncrement}},
				}}
			},
			code:     CodeMissingSuccessor,
			severity: SeverityWarning,
		},
		{
			name:     "default flag mismatch",
			mutate:   func(g *domain.StoryGraph) { g.Nodes["gate"].Branch.DefaultEdgePresent = false },
			code:     CodeDefaultFlagMismatch,
			severity: SeverityWarning,
		},
		{
			name:     "payload mismatch",
			mutate:   func(g *domain.StoryGraph) { g.Nodes["win"].Ending = nil },
			code:     CodeInvalidPayload,
			severity: SeverityError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := validGraph()
			tt.mutate(g)
			r := Validate(g)

			var found *Issue
			for i := range r.Issues {
				if r.Issues[i].Code == tt.code {
					found = &r.Issues[i]
					break
				}
			}
			if assert.NotNil(t, found, "expected %s in %v", tt.code, r.Issues) {
				assert.Equal(t, tt.severity, found.Severity)
			}
			if tt.severity == SeverityWarning {
				assert.True(t, r.Valid(), "warnings must not invalidate the graph: %v", r.Err())
			}
		})
	}
}

func TestReport_ErrListsIssues(t *testing.T) {
	g := validGraph()
	g.Edges = append(g.Edges, domain.GraphEdge{ID: "bad", SourceID: "intro", TargetID: "ghost"})
	g.StartNodeID = "nowhere"

	err := Validate(g).Err()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if !strings.Contains(err.Error(), "found 2 errors") {
		t.Errorf("unexpected message: %v", err)
	}
	if !strings.Contains(err.Error(), "edge bad") {
		t.Errorf("expected the edge id in %v", err)
	}
}

func TestValidate_ErrorsBeforeWarnings(t *testing.T) {
	g := validGraph()
	g.Nodes["orphan"] = &domain.GraphNode{ID: "orphan", Type: domain.NodeTypeScene, Scene: &domain.ScenePayload{}}
	r := Validate(g)

	seenWarning := false
	for _, i := range r.Issues {
		if i.Severity == SeverityWarning {
			seenWarning = true
		} else if seenWarning {
			t.Fatalf("error %v listed after a warning", i)
		}
	}
}
