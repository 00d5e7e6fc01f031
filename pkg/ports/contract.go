package ports

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/arbor/pkg/domain"
)

// RunProgressStoreContract runs a suite of tests to verify that a ProgressStore
// implementation adheres to the defined interface contract.
func RunProgressStoreContract(t *testing.T, store ProgressStore) {
	ctx := context.Background()
	sessionID := "contract-test-session-" + time.Now().Format("20060102150405")

	newProgress := func(id string) *domain.Progress {
		return &domain.Progress{
			SessionID: id,
			ReaderID:  "reader-1",
			StoryID:   "story-1",
			UnitID:    "ep1",
			NodeID:    "start",
			Status:    domain.StatusPresentingContent,
			Variables: domain.VariableStore{},
			UpdatedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		}
	}

	t.Run("Save and Load", func(t *testing.T) {
		progress := newProgress(sessionID)
		progress.NodeID = "scene-2"
		progress.SceneIndex = 3
		progress.Variables["route"] = "north"
		progress.Variables["affection"] = 42.0
		progress.Variables["inventory"] = []any{"key"}
		progress.History = []domain.HistoryEntry{
			{UnitID: "ep1", NodeID: "scene-2", Index: 0, Text: domain.TextContent{Type: domain.TextDialogue, SpeakerRef: "ann", Content: "Hi"}},
		}

		err := store.Save(ctx, sessionID, progress)
		require.NoError(t, err, "Save should not return error")

		loaded, err := store.Load(ctx, sessionID)
		require.NoError(t, err, "Load should not return error")
		assert.Equal(t, "scene-2", loaded.NodeID)
		assert.Equal(t, 3, loaded.SceneIndex)
		assert.Equal(t, domain.StatusPresentingContent, loaded.Status)
		assert.Equal(t, "north", loaded.Variables["route"])
		assert.Equal(t, 42.0, loaded.Variables["affection"])
		assert.Equal(t, []any{"key"}, loaded.Variables["inventory"])
		assert.Equal(t, progress.History, loaded.History)
		assert.True(t, progress.UpdatedAt.Equal(loaded.UpdatedAt))
	})

	t.Run("Load Is Isolated From Saved Value", func(t *testing.T) {
		progress := newProgress(sessionID)
		require.NoError(t, store.Save(ctx, sessionID, progress))
		progress.NodeID = "mutated-after-save"

		loaded, err := store.Load(ctx, sessionID)
		require.NoError(t, err)
		assert.Equal(t, "start", loaded.NodeID)
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.Load(ctx, "non-existent-"+sessionID)
		assert.ErrorIs(t, err, domain.ErrProgressNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		err := store.Save(ctx, sessionID, newProgress(sessionID))
		require.NoError(t, err)

		err = store.Delete(ctx, sessionID)
		require.NoError(t, err, "Delete should not return error")

		_, err = store.Load(ctx, sessionID)
		assert.ErrorIs(t, err, domain.ErrProgressNotFound, "Load after Delete should return ErrProgressNotFound")
	})

	t.Run("List", func(t *testing.T) {
		id1 := sessionID + "-1"
		id2 := sessionID + "-2"
		_ = store.Save(ctx, id1, newProgress(id1))
		_ = store.Save(ctx, id2, newProgress(id2))

		defer func() {
			_ = store.Delete(ctx, id1)
			_ = store.Delete(ctx, id2)
		}()

		sessions, err := store.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, sessions, id1)
		assert.Contains(t, sessions, id2)
	})
}
