package loam

// Document kinds.
const (
	KindUnit  = "unit"
	KindNode  = "node"
	KindScene = "scene"
	KindStory = "story"
)

// Metadata is the frontmatter shared by every arbor document.
// Nested structures stay loosely typed and go through domain.Decode.
type Metadata struct {
	Kind  string `json:"kind" mapstructure:"kind"`
	Title string `json:"title,omitempty" mapstructure:"title"`

	// Unit manifest: node order, start pointer, variables and edges.
	Start     string   `json:"start,omitempty" mapstructure:"start"`
	Nodes     []string `json:"nodes,omitempty" mapstructure:"nodes"`
	Variables []any    `json:"variables,omitempty" mapstructure:"variables"`
	Edges     []any    `json:"edges,omitempty" mapstructure:"edges"`

	// Graph node. The document body holds the author notes.
	Type   string         `json:"type,omitempty" mapstructure:"type"`
	X      float64        `json:"x,omitempty" mapstructure:"x"`
	Y      float64        `json:"y,omitempty" mapstructure:"y"`
	Width  float64        `json:"width,omitempty" mapstructure:"width"`
	Height float64        `json:"height,omitempty" mapstructure:"height"`
	Data   map[string]any `json:"data,omitempty" mapstructure:"data"`

	// Scene. The document body holds the script.
	Background map[string]any `json:"background,omitempty" mapstructure:"background"`
	Characters []any          `json:"characters,omitempty" mapstructure:"characters"`
	Audio      []any          `json:"audio,omitempty" mapstructure:"audio"`

	// Story.
	EndingMode string `json:"endingMode,omitempty" mapstructure:"endingMode"`
	Units      []any  `json:"units,omitempty" mapstructure:"units"`
}

type edgeDoc struct {
	ID     string `mapstructure:"id"`
	Source string `mapstructure:"source"`
	Slot   string `mapstructure:"slot"`
	Target string `mapstructure:"target"`
	Label  string `mapstructure:"label"`
}
