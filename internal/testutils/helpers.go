package testutils

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/aretw0/loam"
	"github.com/stretchr/testify/require"

	arborloam "github.com/aretw0/arbor/pkg/adapters/loam"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/dsl"
	"github.com/aretw0/arbor/pkg/ports"
)

// SetupLoamLibrary creates a temporary directory and opens an unversioned
// Loam library in it. It fails the test immediately on error.
func SetupLoamLibrary(t *testing.T, opts ...loam.Option) (string, *arborloam.Repository) {
	t.Helper()

	absPath, err := filepath.Abs(t.TempDir())
	require.NoError(t, err, "Failed to get absolute path for temp dir")

	repo, err := arborloam.Open(absPath, append([]loam.Option{loam.WithVersioning(false)}, opts...)...)
	require.NoError(t, err, "Failed to open loam library")
	return absPath, repo
}

// HallStory builds unit ep1: a guard in a hall, a choice between fighting
// (courage+1, good ending "Hero") and fleeing (bad ending "Run away").
func HallStory() *dsl.Builder {
	b := dsl.New("ep1")
	b.Variable("courage", domain.DataTypeNumber, 0)
	b.Add("start").Start().Go("hall")
	b.Add("hall").Scene("hall").
		Narrate("A long hall.").
		Say("guard", "Halt!").
		Choice("What now?").
		Option("Fight", "brave").
		Option("Flee", "coward")
	b.Add("brave").Apply(domain.OpAdd, "courage", 1).Go("win")
	b.Add("win").Ending(domain.EndingGood, "Hero")
	b.Add("coward").Ending(domain.EndingBad, "Run away")
	return b
}

// SeedLibrary persists HallStory into repo together with story "tale"
// made of that single unit.
func SeedLibrary(t *testing.T, repo ports.ContentRepository) {
	t.Helper()
	ctx := context.Background()

	bundle, err := HallStory().Build()
	require.NoError(t, err)
	require.NoError(t, repo.PersistGraph(ctx, "ep1", bundle.Graph))
	for _, sc := range bundle.Scenes {
		require.NoError(t, repo.SaveScene(ctx, sc))
	}
	require.NoError(t, repo.SaveStory(ctx, &domain.Story{
		ID:         "tale",
		Title:      "A Tale",
		EndingMode: domain.EndingModeSingle,
		Units:      []domain.UnitRef{{ID: "ep1"}},
	}))
}
