package loam

import (
	"strings"

	"github.com/aretw0/arbor/pkg/domain"
)

// A scene script is a sequence of paragraphs separated by blank lines:
//
//	The rain would not stop.
//
//	@ann: Are you coming?
//
//	[Chapter one]
//
// "@speaker:" marks dialogue, brackets mark system messages and anything else
// is narration. A leading backslash escapes the markers.

func formatScript(texts []domain.TextContent) string {
	parts := make([]string, 0, len(texts))
	for _, t := range texts {
		switch t.Type {
		case domain.TextDialogue:
			parts = append(parts, "@"+t.SpeakerRef+": "+t.Content)
		case domain.TextSystemMessage:
			parts = append(parts, "["+t.Content+"]")
		default:
			c := t.Content
			if strings.HasPrefix(c, "@") || strings.HasPrefix(c, "[") || strings.HasPrefix(c, `\`) {
				c = `\` + c
			}
			parts = append(parts, c)
		}
	}
	return strings.Join(parts, "\n\n")
}

func parseScript(body string) []domain.TextContent {
	body = strings.ReplaceAll(body, "\r\n", "\n")
	var texts []domain.TextContent
	for _, p := range strings.Split(body, "\n\n") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		texts = append(texts, parseParagraph(p))
	}
	return texts
}

func parseParagraph(p string) domain.TextContent {
	switch {
	case strings.HasPrefix(p, `\`):
		return domain.TextContent{Type: domain.TextNarration, Content: p[1:]}
	case strings.HasPrefix(p, "@"):
		if speaker, content, ok := strings.Cut(p[1:], ":"); ok && !strings.ContainsAny(speaker, " \n") {
			return domain.TextContent{Type: domain.TextDialogue, SpeakerRef: speaker, Content: strings.TrimSpace(content)}
		}
	case strings.HasPrefix(p, "[") && strings.HasSuffix(p, "]"):
		return domain.TextContent{Type: domain.TextSystemMessage, Content: p[1 : len(p)-1]}
	}
	return domain.TextContent{Type: domain.TextNarration, Content: p}
}
