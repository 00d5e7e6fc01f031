package graph

import (
	"fmt"
	"strings"

	"github.com/aretw0/arbor/pkg/domain"
)

// Overlay contains reading state to visualize on the graph.
type Overlay struct {
	// Visited are node ids in visiting order, typically a session trail.
	Visited []string
	// Current is the node the reader is on.
	Current string
}

// GenerateMermaid produces a Mermaid flowchart of a story graph.
// Shapes follow the node type:
// - Start: ((Circle))
// - Scene: [Rectangle]
// - Choice: {Rhombus}
// - Branch: {{Hexagon}}
// - Variable modifier: [/Parallelogram/]
// - Ending: ([Stadium])
// - Comment: >Flag]
// Overlay styles (visited/current) are applied when an overlay is given.
func GenerateMermaid(g *domain.StoryGraph, overlay *Overlay) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")

	for _, id := range g.NodeIDs() {
		n := g.Nodes[id]
		opener, closer := shape(n.Type)
		fmt.Fprintf(&sb, "    %s%s\"%s\"%s\n", sanitizeMermaidID(id), opener, quote(label(n)), closer)
	}

	for _, e := range g.Edges {
		from, to := sanitizeMermaidID(e.SourceID), sanitizeMermaidID(e.TargetID)
		if text := edgeLabel(g, e); text != "" {
			fmt.Fprintf(&sb, "    %s -- \"%s\" --> %s\n", from, quote(text), to)
			continue
		}
		fmt.Fprintf(&sb, "    %s --> %s\n", from, to)
	}

	if g.StartNodeID != "" {
		sb.WriteString("    classDef start stroke-width:3px;\n")
		fmt.Fprintf(&sb, "    class %s start;\n", sanitizeMermaidID(g.StartNodeID))
	}

	if overlay != nil {
		sb.WriteString("\n    %% Overlay Styles\n")
		// Black text keeps contrast on light fills in both themes.
		sb.WriteString("    classDef visited fill:#e1f5fe,stroke:#01579b,stroke-width:2px,color:#000;\n")
		sb.WriteString("    classDef current fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000;\n")

		seen := make(map[string]bool)
		for _, id := range overlay.Visited {
			if _, ok := g.Nodes[id]; !ok || seen[id] {
				continue
			}
			seen[id] = true
			fmt.Fprintf(&sb, "    class %s visited;\n", sanitizeMermaidID(id))
		}
		if _, ok := g.Nodes[overlay.Current]; ok {
			fmt.Fprintf(&sb, "    class %s current;\n", sanitizeMermaidID(overlay.Current))
		}
	}

	return sb.String()
}

func shape(t domain.NodeType) (string, string) {
	switch t {
	case domain.NodeTypeStart:
		return "((", "))"
	case domain.NodeTypeChoice:
		return "{", "}"
	case domain.NodeTypeBranch:
		return "{{", "}}"
	case domain.NodeTypeVariableModifier:
		return "[/", "/]"
	case domain.NodeTypeEnding:
		return "([", "])"
	case domain.NodeTypeComment:
		return ">", "]"
	default:
		return "[", "]"
	}
}

func label(n *domain.GraphNode) string {
	text := n.Title
	if text == "" {
		text = n.ID
	}
	switch {
	case n.Scene != nil && n.Scene.SceneRef != "":
		text += " <br/> " + n.Scene.SceneRef
	case n.Ending != nil:
		text += " <br/> " + string(n.Ending.EndingType)
	case n.Comment != nil && n.Title == "":
		text = n.Comment.Text
	}
	return text
}

func edgeLabel(g *domain.StoryGraph, e domain.GraphEdge) string {
	if e.Label != "" {
		return e.Label
	}
	src, ok := g.Nodes[e.SourceID]
	if !ok {
		return ""
	}
	if src.Type == domain.NodeTypeBranch && src.Branch != nil {
		if e.SourceSlot == domain.DefaultSlot {
			return "else"
		}
		for _, c := range src.Branch.Conditions {
			if c.ID == e.SourceSlot {
				return c.Expression
			}
		}
		return e.SourceSlot
	}
	var choice *domain.ChoicePayload
	switch {
	case src.Choice != nil:
		choice = src.Choice
	case src.Scene != nil:
		choice = src.Scene.Choice
	}
	if i, ok := domain.SlotOption(e.SourceSlot); ok && choice != nil && i < len(choice.Options) {
		return choice.Options[i].Text
	}
	return ""
}

func quote(s string) string {
	return strings.ReplaceAll(s, "\"", "'")
}

func sanitizeMermaidID(id string) string {
	s := strings.ReplaceAll(id, ".", "_")
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, "\\", "_")
	s = strings.ReplaceAll(s, " ", "_")
	return s
}
