package runtime_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/arbor/internal/runtime"
	"github.com/aretw0/arbor/pkg/adapters/memory"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/dsl"
	"github.com/aretw0/arbor/pkg/ports"
)

func serialStory(t *testing.T, mode domain.EndingMode) *memory.Repository {
	t.Helper()
	one := dsl.New("ep1")
	one.Variable("met", domain.DataTypeBoolean, false)
	one.Add("start").Start().Go("mark")
	one.Add("mark").Set("met", true).Go("s1")
	one.Add("s1").Scene("ep1-s1").Narrate("episode one")

	two := dsl.New("ep2")
	two.Add("start").Start().Go("s2")
	two.Add("s2").Scene("ep2-s2").Narrate("episode two")

	repo := repoOf(t, one, two)
	require.NoError(t, repo.SaveStory(context.Background(), &domain.Story{
		ID:         "serial",
		EndingMode: mode,
		Units:      []domain.UnitRef{{ID: "ep1"}, {ID: "ep2"}},
	}))
	return repo
}

func TestSession_SingleEndingChainsUnits(t *testing.T) {
	rec := &recorder{}
	s := start(t, serialStory(t, domain.EndingModeSingle), runtime.Config{StoryID: "serial"}, runtime.WithHooks(rec.hooks()))
	assert.Equal(t, "ep1", s.View().UnitID)

	advance(t, s, 2)
	assert.Empty(t, rec.ended, "intermediate units never surface an ending")
	require.Len(t, rec.units, 1)
	assert.Equal(t, "ep1", rec.units[0].FromUnitID)
	assert.Equal(t, "ep2", rec.units[0].UnitID)

	v := s.View()
	assert.Equal(t, "ep2", v.UnitID)
	assert.Equal(t, "s2", v.NodeID)
	assert.Equal(t, domain.StatusPresentingContent, v.Status)
	assert.Equal(t, true, s.Variables()["met"], "the store carries across units")

	advance(t, s, 2)
	assert.Equal(t, []string{"episode one", "episode two"}, rec.texts)
	require.Len(t, rec.ended, 1)
	require.NotNil(t, rec.ended[0].Ending)
	assert.Equal(t, domain.EndingNormal, rec.ended[0].Ending.EndingType)
	assert.Equal(t, "ep2", rec.ended[0].UnitID)
}

func TestSession_MultipleEndingsSurfacePerUnit(t *testing.T) {
	rec := &recorder{}
	s := start(t, serialStory(t, domain.EndingModeMultiple), runtime.Config{StoryID: "serial"}, runtime.WithHooks(rec.hooks()))

	advance(t, s, 2)
	assert.Equal(t, domain.StatusEnded, s.Status())
	assert.Empty(t, rec.units)
	require.Len(t, rec.ended, 1)
	assert.Nil(t, rec.ended[0].Ending)
}

func TestSession_AccessDenied(t *testing.T) {
	var asked []string
	deny := ports.EntitlementFunc(func(_ context.Context, readerID, unitID string) (bool, error) {
		asked = append(asked, readerID+"/"+unitID)
		return unitID != "ep2", nil
	})
	rec := &recorder{}
	s := start(t, serialStory(t, domain.EndingModeSingle),
		runtime.Config{StoryID: "serial", ReaderID: "ann"},
		runtime.WithHooks(rec.hooks()), runtime.WithEntitlements(deny))

	advance(t, s, 2)
	assert.Equal(t, domain.StatusAccessDenied, s.Status())
	assert.Equal(t, []string{"ann/ep2"}, asked)
	require.Len(t, rec.denied, 1)
	assert.Equal(t, "ep2", rec.denied[0].UnitID)
	assert.Empty(t, rec.units)
	assert.Empty(t, rec.ended)
	assert.Equal(t, "ep1", s.View().UnitID)

	advance(t, s, 1)
	assert.Equal(t, domain.StatusAccessDenied, s.Status())
}

// gatedLibrary holds back one unit's graph until the gate is closed.
type gatedLibrary struct {
	ports.Library
	unit string
	gate chan struct{}
}

func (g *gatedLibrary) LoadGraph(ctx context.Context, unitID string) (*domain.StoryGraph, error) {
	if unitID == g.unit {
		select {
		case <-g.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return g.Library.LoadGraph(ctx, unitID)
}

func TestSession_BlocksOnPendingPrefetch(t *testing.T) {
	ctx := context.Background()
	lib := &gatedLibrary{Library: serialStory(t, domain.EndingModeSingle), unit: "ep2", gate: make(chan struct{})}
	loading := make(chan struct{})
	hooks := domain.PlaybackHooks{
		OnLoading: func(context.Context, *domain.UnitEvent) { close(loading) },
	}
	s := start(t, lib, runtime.Config{StoryID: "serial"}, runtime.WithHooks(hooks))
	advance(t, s, 1)

	done := make(chan error, 1)
	go func() { done <- s.RequestAdvance(ctx) }()

	select {
	case <-loading:
	case <-time.After(5 * time.Second):
		t.Fatal("loading state was never reported")
	}
	assert.Equal(t, domain.StatusLoading, s.Status())
	require.NoError(t, s.RequestAdvance(ctx), "advancing while loading is a no-op")
	assert.Equal(t, domain.StatusLoading, s.Status())

	close(lib.gate)
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("boundary never completed")
	}
	v := s.View()
	assert.Equal(t, "ep2", v.UnitID)
	assert.Equal(t, domain.StatusPresentingContent, v.Status)
}

func TestSession_CloseCancelsPendingPrefetch(t *testing.T) {
	lib := &gatedLibrary{Library: serialStory(t, domain.EndingModeSingle), unit: "ep2", gate: make(chan struct{})}
	loading := make(chan struct{})
	hooks := domain.PlaybackHooks{
		OnLoading: func(context.Context, *domain.UnitEvent) { close(loading) },
	}
	s := start(t, lib, runtime.Config{StoryID: "serial"}, runtime.WithHooks(hooks))
	advance(t, s, 1)

	done := make(chan error, 1)
	go func() { done <- s.RequestAdvance(context.Background()) }()
	<-loading
	require.NoError(t, s.Close())

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("close did not release the waiting advance")
	}
	assert.Equal(t, domain.StatusClosed, s.Status())
}

func TestNew_Errors(t *testing.T) {
	ctx := context.Background()
	repo := serialStory(t, domain.EndingModeSingle)

	_, err := runtime.New(ctx, repo, runtime.Config{StoryID: "missing"})
	assert.ErrorIs(t, err, domain.ErrStoryNotFound)

	_, err = runtime.New(ctx, repo, runtime.Config{StoryID: "serial", UnitID: "ep9"})
	assert.ErrorIs(t, err, domain.ErrUnitNotFound)

	s, err := runtime.New(ctx, repo, runtime.Config{UnitID: "ep9"})
	require.NoError(t, err)
	assert.ErrorIs(t, s.Start(ctx), domain.ErrUnitNotFound)
}
