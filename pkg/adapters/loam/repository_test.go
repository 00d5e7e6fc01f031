package loam_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/arbor/internal/testutils"
	arborloam "github.com/aretw0/arbor/pkg/adapters/loam"
	"github.com/aretw0/arbor/pkg/domain"
	contract "github.com/aretw0/arbor/pkg/ports/tests"
)

func openRepo(t *testing.T) (string, *arborloam.Repository) {
	t.Helper()
	return testutils.SetupLoamLibrary(t)
}

func TestRepository_Contract(t *testing.T) {
	_, repo := openRepo(t)
	contract.ContentRepositoryContractTest(t, repo)
}

func TestRepository_HandWrittenScene(t *testing.T) {
	dir, repo := openRepo(t)
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "scenes"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "scenes", "rain.md"), []byte(`---
kind: scene
background:
  assetRef: bg/street.png
---
The rain would not stop.

@ann: Are you coming?

[Chapter one]
`), 0o644))

	scene, err := repo.LoadScene(context.Background(), "rain")
	require.NoError(t, err)
	assert.Equal(t, "rain", scene.ID)
	assert.Equal(t, "bg/street.png", scene.Background.AssetRef)
	assert.Equal(t, []domain.TextContent{
		{Type: domain.TextNarration, Content: "The rain would not stop."},
		{Type: domain.TextDialogue, SpeakerRef: "ann", Content: "Are you coming?"},
		{Type: domain.TextSystemMessage, Content: "Chapter one"},
	}, scene.Texts)
}

func TestRepository_GraphRoundTrip(t *testing.T) {
	_, repo := openRepo(t)
	ctx := context.Background()
	want := contract.SampleGraph("ep1")
	want.Nodes["intro"].Notes = "Keep this short."

	require.NoError(t, repo.PersistGraph(ctx, "ep1", want))
	got, err := repo.LoadGraph(ctx, "ep1")
	require.NoError(t, err)

	assert.Equal(t, want.Edges, got.Edges, "edge order is kept")
	assert.Equal(t, "Keep this short.", got.Nodes["intro"].Notes)
	assert.Equal(t, domain.Position{X: 0, Y: 200}, got.Nodes["intro"].Position)
	assert.Equal(t, "ep1-intro", got.Nodes["intro"].Scene.SceneRef)
	assert.Equal(t, domain.EndingGood, got.Nodes["win"].Ending.EndingType)
}

func TestRepository_MissingDocuments(t *testing.T) {
	_, repo := openRepo(t)
	ctx := context.Background()

	_, err := repo.LoadGraph(ctx, "nope")
	assert.ErrorIs(t, err, domain.ErrUnitNotFound)
	_, err = repo.LoadScene(ctx, "nope")
	assert.ErrorIs(t, err, domain.ErrSceneNotFound)
	_, err = repo.LoadStory(ctx, "nope")
	assert.ErrorIs(t, err, domain.ErrStoryNotFound)
}
