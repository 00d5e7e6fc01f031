package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/arbor/pkg/adapters/sqlite"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/ports"
	contract "github.com/aretw0/arbor/pkg/ports/tests"
)

func openDB(t *testing.T, path string) *sqlite.DB {
	t.Helper()
	db, err := sqlite.Open(context.Background(), path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestRepository_Contract(t *testing.T) {
	db := openDB(t, filepath.Join(t.TempDir(), "arbor.db"))
	contract.ContentRepositoryContractTest(t, db.Repository())
}

func TestStore_Contract(t *testing.T) {
	db := openDB(t, filepath.Join(t.TempDir(), "arbor.db"))
	ports.RunProgressStoreContract(t, db.ProgressStore())
}

func TestOpen_ReapplyIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "arbor.db")
	ctx := context.Background()

	first, err := sqlite.Open(ctx, path)
	require.NoError(t, err)
	require.NoError(t, first.Repository().PersistGraph(ctx, "ep1", contract.SampleGraph("ep1")))
	require.NoError(t, first.Close())

	second := openDB(t, path)
	ids, err := second.Repository().ListGraphs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"ep1"}, ids)
}

func TestOpen_RequiresPath(t *testing.T) {
	_, err := sqlite.Open(context.Background(), "  ")
	assert.Error(t, err)
}

func TestStore_ListByReader(t *testing.T) {
	db := openDB(t, filepath.Join(t.TempDir(), "arbor.db"))
	store := db.ProgressStore()
	ctx := context.Background()
	base := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, store.Save(ctx, "a1", &domain.Progress{SessionID: "a1", ReaderID: "ann", UpdatedAt: base}))
	require.NoError(t, store.Save(ctx, "b1", &domain.Progress{SessionID: "b1", ReaderID: "bob", UpdatedAt: base}))
	require.NoError(t, store.Save(ctx, "a2", &domain.Progress{SessionID: "a2", ReaderID: "ann", UpdatedAt: base.Add(time.Hour)}))

	ids, err := store.ListByReader(ctx, "ann")
	require.NoError(t, err)
	assert.Equal(t, []string{"a2", "a1"}, ids)
}

func TestStore_CancelledContext(t *testing.T) {
	db := openDB(t, filepath.Join(t.TempDir(), "arbor.db"))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := db.ProgressStore().Save(ctx, "s", &domain.Progress{})
	assert.ErrorIs(t, err, context.Canceled)
}
