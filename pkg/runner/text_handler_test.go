package runner

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/arbor/pkg/domain"
)

func TestTextHandler_Present(t *testing.T) {
	out := &bytes.Buffer{}
	h := NewTextHandler(strings.NewReader(""), out, WithTextHandlerRenderer(func(s string) (string, error) {
		return "Rendered: " + s, nil
	}))

	err := h.Present(context.Background(), Frame{
		Type: domain.EventContentRevealed,
		Text: &domain.TextContent{Type: domain.TextNarration, Content: "Hello World"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Rendered: Hello World\n", out.String())
}

func TestTextHandler_PresentChoices(t *testing.T) {
	out := &bytes.Buffer{}
	h := NewTextHandler(strings.NewReader(""), out)

	require.NoError(t, h.Present(context.Background(), Frame{
		Type:   domain.EventChoicesAvailable,
		Prompt: "Pick",
		Options: []domain.OfferedOption{
			{Index: 0, Option: domain.ChoiceOption{Text: "A"}},
			{Index: 2, Option: domain.ChoiceOption{Text: "C"}},
		},
	}))
	assert.Equal(t, "Pick\n  1) A\n  2) C\n", out.String())
}

func TestTextHandler_PresentIgnoresProgress(t *testing.T) {
	out := &bytes.Buffer{}
	h := NewTextHandler(strings.NewReader(""), out)

	require.NoError(t, h.Present(context.Background(), Frame{Type: domain.EventProgress}))
	assert.Empty(t, out.String())
}

func TestTextHandler_Input(t *testing.T) {
	out := &bytes.Buffer{}
	h := NewTextHandler(strings.NewReader("  my reader input \n"), out)

	val, err := h.Input(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "my reader input", val)
	assert.Equal(t, "> ", out.String())

	_, err = h.Input(context.Background())
	assert.ErrorIs(t, err, io.EOF)
}

func TestTextHandler_InputRetriesOnInvalid(t *testing.T) {
	t.Setenv(EnvMaxInputSize, "4")
	out := &bytes.Buffer{}
	h := NewTextHandler(strings.NewReader("too long\nok\n"), out)

	val, err := h.Input(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ok", val)
	assert.Contains(t, out.String(), "Please try again.")
}

func TestTextHandler_InputCancelled(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()
	h := NewTextHandler(pr, &bytes.Buffer{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := h.Input(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestJSONHandler_Input(t *testing.T) {
	h := NewJSONHandler(strings.NewReader("\"quoted\"\nraw text\n"), &bytes.Buffer{})

	val, err := h.Input(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "quoted", val)

	val, err = h.Input(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "raw text", val)

	_, err = h.Input(context.Background())
	assert.ErrorIs(t, err, io.EOF)
}

func TestJSONHandler_SystemOutput(t *testing.T) {
	out := &bytes.Buffer{}
	h := NewJSONHandler(strings.NewReader(""), out)

	require.NoError(t, h.SystemOutput(context.Background(), "hi"))
	assert.JSONEq(t, `{"type":"system","message":"hi"}`, out.String())
}
