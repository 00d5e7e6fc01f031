package tests

import (
	"context"
	"errors"
	"slices"
	"testing"

	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/ports"
)

// SampleGraph returns a small branching graph used by the repository contract.
func SampleGraph(unitID string) *domain.StoryGraph {
	g := domain.NewStoryGraph(unitID)
	g.StartNodeID = "start"
	g.Nodes["start"] = &domain.GraphNode{ID: "start", Type: domain.NodeTypeStart, Position: domain.Position{X: 0, Y: 0}}
	g.Nodes["intro"] = &domain.GraphNode{
		ID: "intro", Type: domain.NodeTypeScene, Title: "Intro",
		Position:   domain.Position{X: 0, Y: 200},
		Dimensions: &domain.Dimensions{Width: 300, Height: 140},
		Scene:      &domain.ScenePayload{SceneRef: unitID + "-intro"},
	}
	g.Nodes["gate"] = &domain.GraphNode{
		ID: "gate", Type: domain.NodeTypeBranch,
		Branch: &domain.BranchPayload{
			Conditions:         []domain.BranchCondition{{ID: "brave", Expression: "courage > 2", Priority: 1}},
			DefaultEdgePresent: true,
		},
	}
	g.Nodes["win"] = &domain.GraphNode{ID: "win", Type: domain.NodeTypeEnding, Ending: &domain.EndingPayload{EndingType: domain.EndingGood, Title: "Win"}}
	g.Nodes["lose"] = &domain.GraphNode{ID: "lose", Type: domain.NodeTypeEnding, Ending: &domain.EndingPayload{EndingType: domain.EndingBad, Title: "Lose"}}
	g.Edges = []domain.GraphEdge{
		{ID: "e1", SourceID: "start", TargetID: "intro"},
		{ID: "e2", SourceID: "intro", TargetID: "gate"},
		{ID: "e3", SourceID: "gate", SourceSlot: "brave", TargetID: "win", Label: "brave"},
		{ID: "e4", SourceID: "gate", TargetID: "lose"},
	}
	g.Variables = []domain.StoryVariable{{ID: "v1", Name: "courage", DataType: domain.DataTypeNumber, InitialValue: 1.0}}
	return g
}

// ContentRepositoryContractTest is a reusable test suite that verifies if an
// adapter complies with ports.ContentRepository.
func ContentRepositoryContractTest(t *testing.T, repo ports.ContentRepository) {
	t.Helper()
	ctx := context.Background()

	t.Run("PersistGraph_LoadGraph", func(t *testing.T) {
		want := SampleGraph("contract-ep1")
		if err := repo.PersistGraph(ctx, want.UnitID, want); err != nil {
			t.Fatalf("persist graph: %v", err)
		}
		got, err := repo.LoadGraph(ctx, want.UnitID)
		if err != nil {
			t.Fatalf("load graph: %v", err)
		}
		if got.StartNodeID != "start" {
			t.Errorf("start node = %q, want start", got.StartNodeID)
		}
		if len(got.Nodes) != len(want.Nodes) {
			t.Errorf("got %d nodes, want %d", len(got.Nodes), len(want.Nodes))
		}
		if len(got.Edges) != len(want.Edges) {
			t.Errorf("got %d edges, want %d", len(got.Edges), len(want.Edges))
		}
		gate, ok := got.Nodes["gate"]
		if !ok || gate.Branch == nil || len(gate.Branch.Conditions) != 1 || gate.Branch.Conditions[0].Priority != 1 {
			t.Errorf("branch payload not preserved: %+v", gate)
		}
		intro := got.Nodes["intro"]
		if intro == nil || intro.Size().Width != 300 {
			t.Errorf("dimensions not preserved: %+v", intro)
		}
		if v, ok := got.Variable("courage"); !ok || v.InitialValue != 1.0 {
			t.Errorf("variable not preserved: %+v", v)
		}
	})

	t.Run("PersistGraph_Replaces", func(t *testing.T) {
		g := SampleGraph("contract-ep1")
		delete(g.Nodes, "lose")
		g.Edges = g.Edges[:3]
		if err := repo.PersistGraph(ctx, g.UnitID, g); err != nil {
			t.Fatalf("persist graph: %v", err)
		}
		got, err := repo.LoadGraph(ctx, g.UnitID)
		if err != nil {
			t.Fatalf("load graph: %v", err)
		}
		if _, ok := got.Nodes["lose"]; ok {
			t.Error("removed node survived a persist")
		}
	})

	t.Run("LoadGraph_NotFound", func(t *testing.T) {
		_, err := repo.LoadGraph(ctx, "non-existent-unit")
		if !errors.Is(err, domain.ErrUnitNotFound) {
			t.Errorf("expected ErrUnitNotFound, got %v", err)
		}
	})

	t.Run("ListGraphs", func(t *testing.T) {
		second := SampleGraph("contract-ep2")
		if err := repo.PersistGraph(ctx, second.UnitID, second); err != nil {
			t.Fatalf("persist graph: %v", err)
		}
		ids, err := repo.ListGraphs(ctx)
		if err != nil {
			t.Fatalf("list graphs: %v", err)
		}
		for _, id := range []string{"contract-ep1", "contract-ep2"} {
			if !slices.Contains(ids, id) {
				t.Errorf("unit %s missing from list %v", id, ids)
			}
		}
		if !slices.IsSorted(ids) {
			t.Errorf("list is not sorted: %v", ids)
		}
	})

	t.Run("Scenes", func(t *testing.T) {
		scene := &domain.Scene{
			ID: "contract-ep1-intro",
			Texts: []domain.TextContent{
				{Type: domain.TextNarration, Content: "The gate looms."},
				{Type: domain.TextDialogue, SpeakerRef: "guard", Content: "Halt."},
			},
			Background: domain.Background{AssetRef: "bg/gate.png"},
			Characters: []domain.CharacterPlacement{{InstanceID: "g1", CharacterRef: "guard", Visible: true}},
		}
		if err := repo.SaveScene(ctx, scene); err != nil {
			t.Fatalf("save scene: %v", err)
		}
		got, err := repo.LoadScene(ctx, scene.ID)
		if err != nil {
			t.Fatalf("load scene: %v", err)
		}
		if len(got.Texts) != 2 || got.Texts[1].SpeakerRef != "guard" {
			t.Errorf("texts not preserved: %+v", got.Texts)
		}
		if _, err := repo.LoadScene(ctx, "non-existent-scene"); !errors.Is(err, domain.ErrSceneNotFound) {
			t.Errorf("expected ErrSceneNotFound, got %v", err)
		}
	})

	t.Run("Stories", func(t *testing.T) {
		story := &domain.Story{
			ID: "contract-story", Title: "Contract", EndingMode: domain.EndingModeSingle,
			Units: []domain.UnitRef{{ID: "contract-ep1"}, {ID: "contract-ep2"}},
		}
		if err := repo.SaveStory(ctx, story); err != nil {
			t.Fatalf("save story: %v", err)
		}
		got, err := repo.LoadStory(ctx, story.ID)
		if err != nil {
			t.Fatalf("load story: %v", err)
		}
		if !got.SingleEnding() || len(got.Units) != 2 || got.Units[1].ID != "contract-ep2" {
			t.Errorf("story not preserved: %+v", got)
		}
		if _, err := repo.LoadStory(ctx, "non-existent-story"); !errors.Is(err, domain.ErrStoryNotFound) {
			t.Errorf("expected ErrStoryNotFound, got %v", err)
		}
	})
}
