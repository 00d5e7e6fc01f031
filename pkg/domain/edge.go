package domain

import "strconv"

// DefaultSlot is the single unnamed output of a node. Branch nodes use it
// for their default edge.
const DefaultSlot = ""

// GraphEdge is a directed connection from a node output slot to another node.
type GraphEdge struct {
	ID         string `json:"id" yaml:"id"`
	SourceID   string `json:"sourceNodeId" yaml:"sourceNodeId"`
	SourceSlot string `json:"sourceSlot,omitempty" yaml:"sourceSlot,omitempty"`
	TargetID   string `json:"targetNodeId" yaml:"targetNodeId"`
	Label      string `json:"label,omitempty" yaml:"label,omitempty"`
}

// OptionSlot returns the slot bound to the i-th option of a choice.
func OptionSlot(i int) string {
	return strconv.Itoa(i)
}

// SlotOption parses an option slot back into its index.
func SlotOption(slot string) (int, bool) {
	if slot == DefaultSlot {
		return 0, false
	}
	i, err := strconv.Atoi(slot)
	if err != nil || i < 0 {
		return 0, false
	}
	return i, true
}

// ValidSlot reports whether slot names an output that node actually has.
func ValidSlot(node *GraphNode, slot string) bool {
	switch node.Type {
	case NodeTypeChoice:
		i, ok := SlotOption(slot)
		return ok && node.Choice != nil && i < len(node.Choice.Options)
	case NodeTypeBranch:
		if slot == DefaultSlot {
			return true
		}
		if node.Branch == nil {
			return false
		}
		for _, c := range node.Branch.Conditions {
			if c.ID == slot {
				return true
			}
		}
		return false
	case NodeTypeScene:
		if slot == DefaultSlot {
			return true
		}
		// Inline choice outputs.
		i, ok := SlotOption(slot)
		return ok && node.Scene != nil && node.Scene.Choice != nil && i < len(node.Scene.Choice.Options)
	case NodeTypeEnding, NodeTypeComment:
		return false
	default:
		return slot == DefaultSlot
	}
}

// Options returns the option list a node offers, if any.
func (n *GraphNode) Options() []ChoiceOption {
	switch n.Type {
	case NodeTypeChoice:
		if n.Choice != nil {
			return n.Choice.Options
		}
	case NodeTypeScene:
		if n.Scene != nil && n.Scene.Choice != nil {
			return n.Scene.Choice.Options
		}
	}
	return nil
}

// NextFreeOptionSlot returns the first option slot of node without an edge.
func (g *StoryGraph) NextFreeOptionSlot(nodeID string) (string, bool) {
	node, ok := g.Nodes[nodeID]
	if !ok {
		return "", false
	}
	for i := range node.Options() {
		slot := OptionSlot(i)
		if _, taken := g.EdgeFrom(nodeID, slot); !taken {
			return slot, true
		}
	}
	return "", false
}
