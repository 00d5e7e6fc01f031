package runtime_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/arbor/internal/runtime"
	"github.com/aretw0/arbor/pkg/adapters/memory"
	"github.com/aretw0/arbor/pkg/clock"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/dsl"
	"github.com/aretw0/arbor/pkg/ports"
)

var epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

type recorder struct {
	mu       sync.Mutex
	scenes   []string
	texts    []string
	reveals  []int
	choices  []*domain.ChoiceEvent
	ended    []*domain.EndedEvent
	stalled  []*domain.StalledEvent
	units    []*domain.UnitEvent
	denied   []*domain.UnitEvent
	loading  []*domain.UnitEvent
	progress int
}

func (r *recorder) hooks() domain.PlaybackHooks {
	return domain.PlaybackHooks{
		OnSceneChanged: func(_ context.Context, e *domain.SceneEvent) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.scenes = append(r.scenes, e.NodeID)
		},
		OnContentRevealed: func(_ context.Context, e *domain.ContentEvent) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.texts = append(r.texts, e.Text.Content)
		},
		OnRevealProgress: func(_ context.Context, e *domain.ContentEvent) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.reveals = append(r.reveals, e.Revealed)
		},
		OnChoicesAvailable: func(_ context.Context, e *domain.ChoiceEvent) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.choices = append(r.choices, e)
		},
		OnEnded: func(_ context.Context, e *domain.EndedEvent) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.ended = append(r.ended, e)
		},
		OnStalled: func(_ context.Context, e *domain.StalledEvent) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.stalled = append(r.stalled, e)
		},
		OnUnitChanged: func(_ context.Context, e *domain.UnitEvent) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.units = append(r.units, e)
		},
		OnAccessDenied: func(_ context.Context, e *domain.UnitEvent) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.denied = append(r.denied, e)
		},
		OnLoading: func(_ context.Context, e *domain.UnitEvent) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.loading = append(r.loading, e)
		},
		OnProgress: func(_ context.Context, _ *domain.ProgressEvent) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.progress++
		},
	}
}

func (r *recorder) textCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.texts)
}

func start(t *testing.T, lib ports.Library, cfg runtime.Config, opts ...runtime.Option) *runtime.Session {
	t.Helper()
	ctx := context.Background()
	if cfg.SessionID == "" {
		cfg.SessionID = "s1"
	}
	s, err := runtime.New(ctx, lib, cfg, opts...)
	require.NoError(t, err)
	require.NoError(t, s.Start(ctx))
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func advance(t *testing.T, s *runtime.Session, n int) {
	t.Helper()
	for range n {
		require.NoError(t, s.RequestAdvance(context.Background()))
	}
}

func repoOf(t *testing.T, builders ...*dsl.Builder) *memory.Repository {
	t.Helper()
	repo, err := dsl.BuildRepository(builders...)
	require.NoError(t, err)
	return repo
}

func TestSession_SceneSequencing(t *testing.T) {
	b := dsl.New("ep1")
	b.Add("start").Start().Go("s1")
	b.Add("s1").Scene("one").
		Narrate("first").
		Say("ann", "second").
		System("third")

	rec := &recorder{}
	s := start(t, repoOf(t, b), runtime.Config{UnitID: "ep1"}, runtime.WithHooks(rec.hooks()))
	assert.Equal(t, []string{"s1"}, rec.scenes)
	assert.Equal(t, domain.StatusPresentingContent, s.Status())
	assert.Empty(t, rec.texts)

	advance(t, s, 3)
	assert.Equal(t, []string{"first", "second", "third"}, rec.texts)
	assert.Equal(t, 3, s.View().SceneIndex)

	// The scene is exhausted; a standalone unit ends without an ending.
	advance(t, s, 1)
	assert.Len(t, rec.texts, 3)
	assert.Equal(t, domain.StatusEnded, s.Status())
	require.Len(t, rec.ended, 1)
	assert.Nil(t, rec.ended[0].Ending)
	assert.NotEmpty(t, rec.ended[0].Reason)

	advance(t, s, 2)
	assert.Len(t, rec.texts, 3)
	assert.Len(t, rec.ended, 1)
}

func TestSession_SceneEventCarriesStageOnly(t *testing.T) {
	b := dsl.New("ep1")
	b.Add("start").Start().Go("s1")
	b.Add("s1").Scene("one").
		Background("hall.png").
		Narrate("first").
		Narrate("second")

	var stages []*domain.Stage
	hooks := domain.PlaybackHooks{
		OnSceneChanged: func(_ context.Context, e *domain.SceneEvent) { stages = append(stages, e.Scene) },
	}
	s := start(t, repoOf(t, b), runtime.Config{UnitID: "ep1"}, runtime.WithHooks(hooks))

	require.Len(t, stages, 1)
	assert.Equal(t, "one", stages[0].ID)
	assert.Equal(t, "hall.png", stages[0].Background.AssetRef)
	assert.Equal(t, 2, stages[0].TextCount)

	v := s.View()
	require.NotNil(t, v.Scene)
	assert.Equal(t, 2, v.Scene.TextCount)
	assert.Nil(t, v.Text, "nothing is revealed before the first advance")
}

func TestSession_HistoryRecordsDialogueAndNarration(t *testing.T) {
	b := dsl.New("ep1")
	b.Add("start").Start().Go("s1")
	b.Add("s1").Scene("one").
		Narrate("a").
		System("saved").
		Say("ann", "b").
		Narrate("c")

	s := start(t, repoOf(t, b), runtime.Config{UnitID: "ep1"}, runtime.WithHistoryCap(2))
	advance(t, s, 4)

	h := s.History()
	require.Len(t, h, 2)
	assert.Equal(t, "b", h[0].Text.Content)
	assert.Equal(t, "c", h[1].Text.Content)
	assert.Equal(t, 3, h[1].Index)
	assert.Equal(t, "s1", h[1].NodeID)
}

func branchStory() *dsl.Builder {
	b := dsl.New("ep1")
	b.Variable("x", domain.DataTypeNumber, 0)
	b.Add("start").Start().Go("gate")
	b.Add("gate").
		When("p2", "x < 10", 2, "end2").
		When("p1", "x > 0", 1, "end1")
	b.Add("end1").Ending(domain.EndingGood, "one")
	b.Add("end2").Ending(domain.EndingBad, "two")
	return b
}

func TestSession_BranchPriority(t *testing.T) {
	tests := []struct {
		name string
		x    float64
		want string
	}{
		{"both hold, lowest priority wins", 5, "one"},
		{"only second holds", -1, "two"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &recorder{}
			s := start(t, repoOf(t, branchStory()),
				runtime.Config{UnitID: "ep1", Variables: domain.VariableStore{"x": tt.x}},
				runtime.WithHooks(rec.hooks()))

			assert.Equal(t, domain.StatusEnded, s.Status())
			require.Len(t, rec.ended, 1)
			assert.Equal(t, tt.want, rec.ended[0].Ending.Title)
		})
	}
}

func TestSession_BranchEvaluationErrorCountsAsFalse(t *testing.T) {
	b := dsl.New("ep1")
	b.Add("start").Start().Go("gate")
	b.Add("gate").
		When("broken", "missing > 1", 1, "bad").
		Go("fallback")
	b.Add("bad").Ending(domain.EndingBad, "bad")
	b.Add("fallback").Ending(domain.EndingNormal, "fallback")

	s := start(t, repoOf(t, b), runtime.Config{UnitID: "ep1"})
	assert.Equal(t, "fallback", s.View().Ending.Title)
}

func TestSession_StallsWithoutViablePath(t *testing.T) {
	b := dsl.New("ep1")
	b.Add("start").Start().Go("gate")
	b.Add("gate").Branch()

	rec := &recorder{}
	s := start(t, repoOf(t, b), runtime.Config{UnitID: "ep1"}, runtime.WithHooks(rec.hooks()))

	assert.Equal(t, domain.StatusStalled, s.Status())
	assert.ErrorIs(t, s.Err(), domain.ErrNoViablePath)
	require.Len(t, rec.stalled, 1)
	assert.Equal(t, "gate", rec.stalled[0].NodeID)

	var stall *domain.StallError
	require.True(t, errors.As(s.Err(), &stall))
	assert.Equal(t, "ep1", stall.UnitID)

	advance(t, s, 1)
	assert.Len(t, rec.stalled, 1)
}

func TestSession_StallsOnCommentNode(t *testing.T) {
	b := dsl.New("ep1")
	b.Add("start").Start().Go("note")
	b.Add("note").Comment("authors only")

	rec := &recorder{}
	s := start(t, repoOf(t, b), runtime.Config{UnitID: "ep1"}, runtime.WithHooks(rec.hooks()))

	assert.Equal(t, domain.StatusStalled, s.Status())
	assert.ErrorIs(t, s.Err(), domain.ErrNoViablePath)
	assert.NotErrorIs(t, s.Err(), domain.ErrDanglingReference)
	require.Len(t, rec.stalled, 1)
	assert.Equal(t, "note", rec.stalled[0].NodeID)
}

func TestSession_StallsOnMissingScene(t *testing.T) {
	b := dsl.New("ep1")
	b.Add("start").Start().Go("s1")
	b.Add("s1").Scene("gone")
	bundle, err := b.Build()
	require.NoError(t, err)
	delete(bundle.Scenes, "gone")
	repo, err := memory.NewFromBundles(bundle)
	require.NoError(t, err)

	s := start(t, repo, runtime.Config{UnitID: "ep1"})
	assert.Equal(t, domain.StatusStalled, s.Status())
	assert.ErrorIs(t, s.Err(), domain.ErrDanglingReference)
}

func TestSession_StallsOnSilentCycle(t *testing.T) {
	b := dsl.New("ep1")
	b.Variable("n", domain.DataTypeNumber, 0)
	b.Add("start").Start().Go("m1")
	b.Add("m1").Apply(domain.OpIncrement, "n", nil).Go("m2")
	b.Add("m2").Apply(domain.OpIncrement, "n", nil).Go("m1")

	s := start(t, repoOf(t, b), runtime.Config{UnitID: "ep1"}, runtime.WithMaxHops(50))
	assert.Equal(t, domain.StatusStalled, s.Status())
	assert.ErrorIs(t, s.Err(), domain.ErrNoViablePath)
}

func choiceStory() *dsl.Builder {
	b := dsl.New("ep1")
	b.Variable("gold", domain.DataTypeNumber, 0)
	b.Add("start").Start().Go("ask")
	b.Add("ask").Choice("What now?").
		Option("Fight", "fight").
		OptionIf("Bribe", "gold > 0", "bribe").
		Option("Talk", "talk").
		OptionEnd("Flee", domain.EndingPayload{EndingType: domain.EndingJoke, Title: "Coward"})
	b.Add("fight").Ending(domain.EndingBad, "fight")
	b.Add("bribe").Ending(domain.EndingGood, "bribe")
	b.Add("talk").Apply(domain.OpAdd, "gold", 5).Go("ask")
	return b
}

func TestSession_Choices(t *testing.T) {
	ctx := context.Background()
	rec := &recorder{}
	s := start(t, repoOf(t, choiceStory()), runtime.Config{UnitID: "ep1"}, runtime.WithHooks(rec.hooks()))

	require.Equal(t, domain.StatusAwaitingChoice, s.Status())
	require.Len(t, rec.choices, 1)
	var indexes []int
	for _, o := range rec.choices[0].Options {
		indexes = append(indexes, o.Index)
	}
	assert.Equal(t, []int{0, 2, 3}, indexes, "hidden options keep authored indexes")
	assert.Equal(t, "What now?", rec.choices[0].Prompt)

	assert.ErrorIs(t, s.Choose(ctx, 1), domain.ErrInvalidChoice)
	assert.ErrorIs(t, s.Choose(ctx, 9), domain.ErrInvalidChoice)

	// Advancing never answers a choice.
	advance(t, s, 3)
	assert.Equal(t, domain.StatusAwaitingChoice, s.Status())

	require.NoError(t, s.Choose(ctx, 2))
	require.Len(t, rec.choices, 2)
	assert.Len(t, rec.choices[1].Options, 4)
	assert.Equal(t, 5.0, s.Variables()["gold"])

	require.NoError(t, s.Choose(ctx, 1))
	assert.Equal(t, domain.StatusEnded, s.Status())
	assert.Equal(t, "bribe", s.View().Ending.Title)
	assert.ErrorIs(t, s.Choose(ctx, 0), domain.ErrNoChoicePending)

	assert.Equal(t, []string{"start", "ask", "talk", "ask", "bribe"}, s.Trail())
}

func treasureStory() *dsl.Builder {
	b := dsl.New("ep1")
	b.Variable("score", domain.DataTypeNumber, 0)
	b.Add("start").Start().Go("ask")
	b.Add("ask").Choice("Dig?").
		Option("Dig", "dig").
		Option("Walk on", "treasure")
	b.Add("dig").Apply(domain.OpAdd, "score", 5).Go("treasure")
	b.Add("treasure").Ending(domain.EndingSecret, "Treasure").UnlockIf("score >= 5")
	return b
}

func TestSession_EndingUnlockCondition(t *testing.T) {
	for _, tc := range []struct {
		name     string
		option   int
		unlocked bool
	}{
		{"condition holds", 0, true},
		{"condition fails", 1, false},
	} {
		t.Run(tc.name, func(t *testing.T) {
			ctx := context.Background()
			repo := repoOf(t, treasureStory())
			rec := &recorder{}
			s := start(t, repo, runtime.Config{UnitID: "ep1"}, runtime.WithHooks(rec.hooks()))
			require.NoError(t, s.Choose(ctx, tc.option))

			require.Len(t, rec.ended, 1)
			assert.Equal(t, "Treasure", rec.ended[0].Ending.Title)
			assert.Equal(t, tc.unlocked, rec.ended[0].Unlocked)
			assert.Equal(t, tc.unlocked, s.View().Unlocked)

			resumed, err := runtime.Resume(ctx, repo, s.Snapshot())
			require.NoError(t, err)
			defer resumed.Close()
			assert.Equal(t, domain.StatusEnded, resumed.Status())
			assert.Equal(t, tc.unlocked, resumed.View().Unlocked)
		})
	}
}

func TestSession_BrokenUnlockConditionStaysLocked(t *testing.T) {
	b := dsl.New("ep1")
	b.Add("start").Start().Go("end")
	b.Add("end").Ending(domain.EndingGood, "Bye").UnlockIf("missing > 1")

	rec := &recorder{}
	s := start(t, repoOf(t, b), runtime.Config{UnitID: "ep1"}, runtime.WithHooks(rec.hooks()))
	assert.Equal(t, domain.StatusEnded, s.Status())
	require.Len(t, rec.ended, 1)
	assert.False(t, rec.ended[0].Unlocked)
}

func TestSession_EndBranchOption(t *testing.T) {
	s := start(t, repoOf(t, choiceStory()), runtime.Config{UnitID: "ep1"})
	require.NoError(t, s.Choose(context.Background(), 3))

	assert.Equal(t, domain.StatusEnded, s.Status())
	ending := s.View().Ending
	require.NotNil(t, ending)
	assert.Equal(t, domain.EndingJoke, ending.EndingType)
	assert.Equal(t, "Coward", ending.Title)
}

func TestSession_ChoiceWithoutEdgeStalls(t *testing.T) {
	b := dsl.New("ep1")
	b.Add("start").Start().Go("ask")
	b.Add("ask").Choice("?").Option("Nowhere", "")

	s := start(t, repoOf(t, b), runtime.Config{UnitID: "ep1"})
	require.NoError(t, s.Choose(context.Background(), 0))
	assert.Equal(t, domain.StatusStalled, s.Status())
	assert.ErrorIs(t, s.Err(), domain.ErrDanglingReference)
}

func TestSession_SceneExitOrder(t *testing.T) {
	t.Run("default successor beats inline choice", func(t *testing.T) {
		b := dsl.New("ep1")
		b.Add("start").Start().Go("s1")
		b.Add("s1").Scene("one").Narrate("a").Choice("?").Option("x", "")
		b.Add("s1").Go("done")
		b.Add("done").Ending(domain.EndingGood, "done")

		s := start(t, repoOf(t, b), runtime.Config{UnitID: "ep1"})
		advance(t, s, 2)
		assert.Equal(t, "done", s.View().Ending.Title)
	})

	t.Run("inline choice", func(t *testing.T) {
		b := dsl.New("ep1")
		b.Add("start").Start().Go("s1")
		b.Add("s1").Scene("one").Narrate("a").Choice("Go?").Option("Yes", "done")
		b.Add("done").Ending(domain.EndingGood, "done")

		s := start(t, repoOf(t, b), runtime.Config{UnitID: "ep1"})
		advance(t, s, 2)
		require.Equal(t, domain.StatusAwaitingChoice, s.Status())
		assert.Equal(t, "Go?", s.View().Prompt)
		require.NoError(t, s.Choose(context.Background(), 0))
		assert.Equal(t, "done", s.View().Ending.Title)
	})

	t.Run("inline ending", func(t *testing.T) {
		b := dsl.New("ep1")
		b.Add("start").Start().Go("s1")
		b.Add("s1").Scene("one").Narrate("a").Ending(domain.EndingSecret, "hidden")

		s := start(t, repoOf(t, b), runtime.Config{UnitID: "ep1"})
		advance(t, s, 2)
		assert.Equal(t, domain.EndingSecret, s.View().Ending.EndingType)
	})
}

func TestSession_Determinism(t *testing.T) {
	ctx := context.Background()
	repo := repoOf(t, choiceStory())
	run := func() *runtime.Transcript {
		tr, err := runtime.Simulate(ctx, repo, runtime.Config{SessionID: "sim", UnitID: "ep1"}, []int{2, 1},
			runtime.WithClock(clock.NewFake(epoch)))
		require.NoError(t, err)
		return tr
	}
	first, second := run(), run()
	assert.Equal(t, first, second)
	assert.Equal(t, domain.StatusEnded, first.Status())
	assert.Equal(t, "bribe", first.Progress.Ending.Title)
}

func TestSession_ReentrantHooks(t *testing.T) {
	var s *runtime.Session
	var seen []string
	hooks := domain.PlaybackHooks{
		OnChoicesAvailable: func(ctx context.Context, e *domain.ChoiceEvent) {
			seen = append(seen, "choice:"+e.NodeID)
			if e.NodeID == "ask" && len(e.Options) == 3 {
				require.NoError(t, s.Choose(ctx, 2))
			}
		},
		OnProgress: func(_ context.Context, e *domain.ProgressEvent) {
			seen = append(seen, "progress:"+e.Progress.NodeID)
		},
	}
	ctx := context.Background()
	var err error
	s, err = runtime.New(ctx, repoOf(t, choiceStory()), runtime.Config{SessionID: "s1", UnitID: "ep1"}, runtime.WithHooks(hooks))
	require.NoError(t, err)
	defer s.Close()
	require.NoError(t, s.Start(ctx))

	assert.Equal(t, []string{"choice:ask", "progress:ask", "choice:ask", "progress:ask"}, seen)
	assert.Equal(t, 5.0, s.Variables()["gold"])
}

func TestSession_Close(t *testing.T) {
	s := start(t, repoOf(t, choiceStory()), runtime.Config{UnitID: "ep1"})
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	assert.Equal(t, domain.StatusClosed, s.Status())
	assert.ErrorIs(t, s.RequestAdvance(context.Background()), domain.ErrSessionClosed)
	assert.ErrorIs(t, s.Choose(context.Background(), 0), domain.ErrSessionClosed)
}

func TestSession_SnapshotAndResume(t *testing.T) {
	ctx := context.Background()
	b := dsl.New("ep1")
	b.Variable("seen", domain.DataTypeBoolean, false)
	b.Add("start").Start().Go("mark")
	b.Add("mark").Set("seen", true).Go("s1")
	b.Add("s1").Scene("one").Narrate("a").Narrate("b").Narrate("c").Go("done")
	b.Add("done").Ending(domain.EndingNormal, "done")
	repo := repoOf(t, b)

	s := start(t, repo, runtime.Config{SessionID: "r1", ReaderID: "reader", UnitID: "ep1"})
	advance(t, s, 2)
	p := s.Snapshot()
	assert.Equal(t, "s1", p.NodeID)
	assert.Equal(t, 2, p.SceneIndex)
	assert.Equal(t, domain.StatusPresentingContent, p.Status)
	assert.Equal(t, true, p.Variables["seen"])
	require.NoError(t, s.Close())

	rec := &recorder{}
	resumed, err := runtime.Resume(ctx, repo, p, runtime.WithHooks(rec.hooks()))
	require.NoError(t, err)
	defer resumed.Close()

	v := resumed.View()
	assert.Equal(t, "s1", v.NodeID)
	require.NotNil(t, v.Text)
	assert.Equal(t, "b", v.Text.Content)
	assert.Len(t, resumed.History(), 2)

	advance(t, resumed, 1)
	assert.Equal(t, []string{"c"}, rec.texts)
	advance(t, resumed, 1)
	assert.Equal(t, domain.StatusEnded, resumed.Status())
	assert.Equal(t, "reader", resumed.Snapshot().ReaderID)
}
