package runner

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/aretw0/arbor/pkg/domain"
)

// ContentRenderer is a function that transforms text before it is printed
// (e.g. Markdown through glamour).
type ContentRenderer func(string) (string, error)

// TextHandler implements the standard text-based interface.
type TextHandler struct {
	Reader   *bufio.Reader
	Writer   io.Writer
	Renderer ContentRenderer

	mu        sync.Mutex
	inputChan chan inputResult
	startOnce sync.Once
}

type inputResult struct {
	text string
	err  error
}

// TextHandlerOption defines configuration for TextHandler.
type TextHandlerOption func(*TextHandler)

// WithTextHandlerRenderer configures the content renderer.
func WithTextHandlerRenderer(renderer ContentRenderer) TextHandlerOption {
	return func(h *TextHandler) {
		h.Renderer = renderer
	}
}

// NewTextHandler creates a handler for standard text IO.
func NewTextHandler(r io.Reader, w io.Writer, opts ...TextHandlerOption) *TextHandler {
	if r == nil {
		r = os.Stdin
	}
	if w == nil {
		w = os.Stdout
	}
	h := &TextHandler{
		Reader: bufio.NewReader(r),
		Writer: w,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *TextHandler) initPump() {
	h.startOnce.Do(func() {
		h.inputChan = make(chan inputResult)
		go h.pump()
	})
}

// pump reads lines in the background so Input can honour cancellation.
func (h *TextHandler) pump() {
	for {
		text, err := h.Reader.ReadString('\n')
		if text != "" {
			h.inputChan <- inputResult{text: text}
		}
		if err != nil {
			if err != io.EOF {
				h.inputChan <- inputResult{err: err}
			}
			close(h.inputChan)
			return
		}
	}
}

// Present prints a frame.
func (h *TextHandler) Present(ctx context.Context, f Frame) error {
	lines := formatFrame(f)
	if len(lines) == 0 {
		return nil
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, line := range lines {
		if h.Renderer != nil {
			if rendered, err := h.Renderer(line); err == nil {
				line = strings.TrimSpace(rendered)
			}
		}
		if _, err := fmt.Fprintln(h.Writer, line); err != nil {
			return err
		}
	}
	return nil
}

func formatFrame(f Frame) []string {
	switch f.Type {
	case domain.EventSceneChanged:
		if f.Scene != nil && f.Scene.Background.AssetRef != "" {
			return []string{"", fmt.Sprintf("~ %s ~", f.Scene.Background.AssetRef)}
		}
		return []string{""}
	case domain.EventContentRevealed:
		if f.Text == nil {
			return nil
		}
		switch {
		case f.Text.SpeakerRef != "":
			return []string{fmt.Sprintf("%s: %s", f.Text.SpeakerRef, f.Text.Content)}
		case f.Text.Type == domain.TextSystemMessage:
			return []string{fmt.Sprintf("[%s]", f.Text.Content)}
		}
		return []string{f.Text.Content}
	case domain.EventChoicesAvailable:
		var lines []string
		if f.Prompt != "" {
			lines = append(lines, f.Prompt)
		}
		for i, o := range f.Options {
			lines = append(lines, fmt.Sprintf("  %d) %s", i+1, o.Option.Text))
		}
		return lines
	case domain.EventEnded:
		if f.Ending == nil {
			return []string{"", "-- The End --"}
		}
		if f.Ending.Title != "" {
			return []string{"", fmt.Sprintf("-- %s (%s) --", f.Ending.Title, f.Ending.EndingType)}
		}
		return []string{"", fmt.Sprintf("-- %s ending --", f.Ending.EndingType)}
	case domain.EventStalled:
		return []string{"", fmt.Sprintf("The story cannot continue: %s", f.Reason)}
	case domain.EventAccessDenied:
		return []string{"", fmt.Sprintf("Episode %q is locked.", f.UnitID)}
	case domain.EventLoading:
		return []string{"Loading..."}
	case domain.EventUnitChanged:
		return []string{"", fmt.Sprintf("== %s ==", f.UnitID)}
	}
	return nil
}

// Input reads one sanitized line. It returns io.EOF when the source is exhausted.
func (h *TextHandler) Input(ctx context.Context) (string, error) {
	h.initPump()

	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		default:
			h.mu.Lock()
			fmt.Fprint(h.Writer, "> ")
			h.mu.Unlock()
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case res, ok := <-h.inputChan:
			if !ok {
				return "", io.EOF
			}
			if res.err != nil {
				return "", res.err
			}
			clean, err := SanitizeInput(strings.TrimSpace(res.text))
			if err != nil {
				h.mu.Lock()
				fmt.Fprintf(h.Writer, "Error: %v. Please try again.\n", err)
				h.mu.Unlock()
				continue
			}
			return clean, nil
		}
	}
}

// SystemOutput prints a meta-message with a prefix.
func (h *TextHandler) SystemOutput(ctx context.Context, msg string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := fmt.Fprintf(h.Writer, "\n[System] %s\n", msg)
	return err
}
