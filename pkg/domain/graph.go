package domain

import "sort"

// StoryGraph is the control-flow graph of one story unit.
// Nodes live in an id-keyed arena; edges refer to nodes by id only.
type StoryGraph struct {
	UnitID      string                `json:"unitId,omitempty" yaml:"unitId,omitempty"`
	StartNodeID string                `json:"startNodeId" yaml:"startNodeId"`
	Nodes       map[string]*GraphNode `json:"nodes" yaml:"nodes"`
	Edges       []GraphEdge           `json:"edges" yaml:"edges"`
	Variables   []StoryVariable       `json:"variables" yaml:"variables"`
}

// NewStoryGraph returns an empty graph for the given unit.
func NewStoryGraph(unitID string) *StoryGraph {
	return &StoryGraph{
		UnitID: unitID,
		Nodes:  make(map[string]*GraphNode),
	}
}

// Node returns the node with the given id.
func (g *StoryGraph) Node(id string) (*GraphNode, bool) {
	n, ok := g.Nodes[id]
	return n, ok
}

// NodeIDs returns all node ids in sorted order.
func (g *StoryGraph) NodeIDs() []string {
	ids := make([]string, 0, len(g.Nodes))
	for id := range g.Nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// StartNodes returns the ids of every node typed start, sorted.
func (g *StoryGraph) StartNodes() []string {
	var ids []string
	for id, n := range g.Nodes {
		if n.Type == NodeTypeStart {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// Edge returns the edge with the given id.
func (g *StoryGraph) Edge(id string) (GraphEdge, bool) {
	for _, e := range g.Edges {
		if e.ID == id {
			return e, true
		}
	}
	return GraphEdge{}, false
}

// EdgeFrom returns the edge leaving nodeID through slot.
// When a corrupted graph holds several, the first authored one wins.
func (g *StoryGraph) EdgeFrom(nodeID, slot string) (GraphEdge, bool) {
	for _, e := range g.Edges {
		if e.SourceID == nodeID && e.SourceSlot == slot {
			return e, true
		}
	}
	return GraphEdge{}, false
}

// Outgoing returns every edge leaving nodeID in authored order.
func (g *StoryGraph) Outgoing(nodeID string) []GraphEdge {
	var out []GraphEdge
	for _, e := range g.Edges {
		if e.SourceID == nodeID {
			out = append(out, e)
		}
	}
	return out
}

// Incoming returns every edge entering nodeID in authored order.
func (g *StoryGraph) Incoming(nodeID string) []GraphEdge {
	var in []GraphEdge
	for _, e := range g.Edges {
		if e.TargetID == nodeID {
			in = append(in, e)
		}
	}
	return in
}

// Variable returns the variable definition with the given name.
func (g *StoryGraph) Variable(name string) (StoryVariable, bool) {
	for _, v := range g.Variables {
		if v.Name == name {
			return v, true
		}
	}
	return StoryVariable{}, false
}

// InitialStore instantiates a fresh VariableStore from the variable definitions.
func (g *StoryGraph) InitialStore() VariableStore {
	store := make(VariableStore, len(g.Variables))
	for _, v := range g.Variables {
		store[v.Name] = CloneValue(v.InitialValue)
	}
	return store
}

// Clone returns a deep copy of the graph.
func (g *StoryGraph) Clone() *StoryGraph {
	if g == nil {
		return nil
	}
	c := &StoryGraph{
		UnitID:      g.UnitID,
		StartNodeID: g.StartNodeID,
		Nodes:       make(map[string]*GraphNode, len(g.Nodes)),
		Edges:       append([]GraphEdge(nil), g.Edges...),
		Variables:   make([]StoryVariable, len(g.Variables)),
	}
	for id, n := range g.Nodes {
		c.Nodes[id] = n.Clone()
	}
	for i, v := range g.Variables {
		c.Variables[i] = v
		c.Variables[i].InitialValue = CloneValue(v.InitialValue)
	}
	return c
}

// SceneRefs returns the distinct scene references of the graph, sorted.
func (g *StoryGraph) SceneRefs() []string {
	seen := make(map[string]bool)
	var refs []string
	for _, n := range g.Nodes {
		if n.Type != NodeTypeScene || n.Scene == nil || n.Scene.SceneRef == "" {
			continue
		}
		if !seen[n.Scene.SceneRef] {
			seen[n.Scene.SceneRef] = true
			refs = append(refs, n.Scene.SceneRef)
		}
	}
	sort.Strings(refs)
	return refs
}

// Normalize maps decoded values back onto the store value space
// (float64 numbers, []any lists). Adapters call it after decoding formats
// that do not preserve number types.
func (g *StoryGraph) Normalize() {
	if g.Nodes == nil {
		g.Nodes = make(map[string]*GraphNode)
	}
	for i := range g.Variables {
		g.Variables[i].InitialValue = CloneValue(g.Variables[i].InitialValue)
	}
	for id, n := range g.Nodes {
		if n.ID == "" {
			n.ID = id
		}
		if n.Modifier != nil {
			for i := range n.Modifier.Operations {
				n.Modifier.Operations[i].Value = CloneValue(n.Modifier.Operations[i].Value)
			}
		}
	}
}
