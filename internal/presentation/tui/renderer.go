package tui

import (
	"github.com/charmbracelet/glamour"

	"github.com/aretw0/arbor/pkg/runner"
)

// DefaultWordWrap is the column at which rendered text wraps.
const DefaultWordWrap = 80

// NewRenderer returns a markdown renderer for terminal output.
// The style follows the terminal background. If glamour cannot be
// initialised the text is passed through unchanged.
func NewRenderer() runner.ContentRenderer {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(DefaultWordWrap),
	)
	if err != nil {
		return func(s string) (string, error) { return s, nil }
	}
	return r.Render
}

// NewPlainRenderer renders markdown without colours, for logs and pipes.
func NewPlainRenderer() (runner.ContentRenderer, error) {
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle("notty"),
		glamour.WithWordWrap(DefaultWordWrap),
	)
	if err != nil {
		return nil, err
	}
	return r.Render, nil
}
