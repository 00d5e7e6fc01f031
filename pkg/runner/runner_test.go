package runner_test

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/arbor/internal/runtime"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/dsl"
	"github.com/aretw0/arbor/pkg/runner"
)

func walkStory() *dsl.Builder {
	b := dsl.New("walk")
	b.Add("start").Start().Go("s1")
	b.Add("s1").Scene("intro").
		Narrate("Once upon a time").
		Say("guide", "Which way?").
		Go("ask")
	b.Add("ask").Choice("Where to?").
		Option("Left", "left").
		Option("Right", "right")
	b.Add("left").Ending(domain.EndingGood, "Sunny meadow")
	b.Add("right").Ending(domain.EndingBad, "Dark cave")
	return b
}

func startSession(t *testing.T, r *runner.Runner) *runtime.Session {
	t.Helper()
	ctx := context.Background()
	repo, err := dsl.BuildRepository(walkStory())
	require.NoError(t, err)
	s, err := runtime.New(ctx, repo, runtime.Config{SessionID: "run", UnitID: "walk"}, runtime.WithHooks(r.Hooks()))
	require.NoError(t, err)
	require.NoError(t, s.Start(ctx))
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func textRunner(input io.Reader) (*runner.Runner, *bytes.Buffer) {
	out := &bytes.Buffer{}
	return runner.NewRunner(runner.WithInputHandler(runner.NewTextHandler(input, out))), out
}

func TestRunner_ReadsToEnding(t *testing.T) {
	r, out := textRunner(strings.NewReader("\n\n\n2\n"))
	s := startSession(t, r)

	require.NoError(t, r.Run(context.Background(), s))

	assert.Equal(t, domain.StatusEnded, s.Status())
	text := out.String()
	assert.Contains(t, text, "Once upon a time")
	assert.Contains(t, text, "guide: Which way?")
	assert.Contains(t, text, "Where to?")
	assert.Contains(t, text, "  2) Right")
	assert.Contains(t, text, "-- Dark cave (BAD) --")
	assert.Less(t, strings.Index(text, "Once upon a time"), strings.Index(text, "guide: Which way?"))
}

func TestRunner_RejectsOutOfRangeChoice(t *testing.T) {
	r, out := textRunner(strings.NewReader("\n\n\n7\nfoo\n1\n"))
	s := startSession(t, r)

	require.NoError(t, r.Run(context.Background(), s))

	assert.Contains(t, out.String(), "Choose between 1 and 2.")
	assert.Contains(t, out.String(), `Unknown command "foo"`)
	assert.Contains(t, out.String(), "-- Sunny meadow (GOOD) --")
}

func TestRunner_AdvanceWhileChoosing(t *testing.T) {
	r, out := textRunner(strings.NewReader("2\n\n\n\n\n1\n"))
	s := startSession(t, r)

	require.NoError(t, r.Run(context.Background(), s))

	assert.Contains(t, out.String(), "No choice pending.")
	assert.Contains(t, out.String(), "Pick an option by number.")
	assert.Equal(t, domain.StatusEnded, s.Status())
}

func TestRunner_History(t *testing.T) {
	r, out := textRunner(strings.NewReader("h\n\n\nh\nq\n"))
	s := startSession(t, r)

	require.NoError(t, r.Run(context.Background(), s))

	assert.Contains(t, out.String(), "Nothing read yet.")
	assert.Contains(t, out.String(), "History:\n  Once upon a time\n  guide: Which way?")
	assert.Equal(t, domain.StatusPresentingContent, s.Status())
}

func TestRunner_StopsOnEOF(t *testing.T) {
	r, _ := textRunner(strings.NewReader("\n"))
	s := startSession(t, r)

	require.NoError(t, r.Run(context.Background(), s))
	assert.Equal(t, "Once upon a time", s.View().Text.Content)
}

func TestRunner_InterruptSource(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()

	interrupt := make(chan struct{})
	close(interrupt)
	out := &bytes.Buffer{}
	r := runner.NewRunner(
		runner.WithInputHandler(runner.NewTextHandler(pr, out)),
		runner.WithInterruptSource(interrupt),
	)
	s := startSession(t, r)

	require.NoError(t, r.Run(context.Background(), s))
	assert.Contains(t, out.String(), "Interrupted.")
}

func TestRunner_ParentCancellation(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()

	r, _ := textRunner(pr)
	s := startSession(t, r)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, r.Run(ctx, s), context.Canceled)
}

func TestRunner_JSONFrames(t *testing.T) {
	out := &bytes.Buffer{}
	r := runner.NewRunner(runner.WithInputHandler(runner.NewJSONHandler(strings.NewReader("\"n\"\nn\nn\n1\n"), out)))
	s := startSession(t, r)

	require.NoError(t, r.Run(context.Background(), s))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.NotEmpty(t, lines)
	assert.Contains(t, lines[0], `"type":"scene_changed"`)
	assert.Contains(t, lines[len(lines)-1], `"type":"ended"`)
	assert.Contains(t, lines[len(lines)-1], `"endingType":"GOOD"`)
}

func TestRunner_SceneFrameWithholdsScript(t *testing.T) {
	out := &bytes.Buffer{}
	r := runner.NewRunner(runner.WithInputHandler(runner.NewJSONHandler(strings.NewReader(""), out)))
	s := startSession(t, r)

	require.NoError(t, r.Run(context.Background(), s))

	line := strings.TrimSpace(out.String())
	assert.Contains(t, line, `"type":"scene_changed"`)
	assert.Contains(t, line, `"id":"intro"`)
	assert.Contains(t, line, `"textCount":2`)
	assert.NotContains(t, line, "Once upon a time")
	assert.NotContains(t, line, "Which way?")
	assert.NotContains(t, line, `"texts"`)
}
