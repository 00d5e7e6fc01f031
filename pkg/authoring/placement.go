package authoring

import (
	"fmt"

	"github.com/aretw0/arbor/pkg/domain"
)

// DefaultPlacementMargin is the gap between a source node and a placed node.
const DefaultPlacementMargin = 80

// maxCascade bounds the downward search when every anchor is occupied.
const maxCascade = 64

// Anchor names a side of the source node's bounding box.
type Anchor string

const (
	AnchorBottom  Anchor = "bottom"
	AnchorRight   Anchor = "right"
	AnchorLeft    Anchor = "left"
	AnchorTop     Anchor = "top"
	AnchorCascade Anchor = "cascade"
)

// anchorOrder is the preference order of guided placement.
var anchorOrder = []Anchor{AnchorBottom, AnchorRight, AnchorLeft, AnchorTop}

// Proposal is a suggested position for a new node wired from a source node.
type Proposal struct {
	SourceID string          `json:"sourceId"`
	NodeType domain.NodeType `json:"nodeType"`
	Position domain.Position `json:"position"`
	Anchor   Anchor          `json:"anchor"`
}

// PlacementResult names what a confirmed placement created.
type PlacementResult struct {
	NodeID string `json:"nodeId"`
	EdgeID string `json:"edgeId"`
}

type rect struct{ x, y, w, h float64 }

func (r rect) overlaps(o rect) bool {
	return r.x < o.x+o.w && o.x < r.x+r.w && r.y < o.y+o.h && o.y < r.y+r.h
}

func nodeRect(n *domain.GraphNode) rect {
	d := n.Size()
	return rect{n.Position.X, n.Position.Y, d.Width, d.Height}
}

// GuidedPlacement proposes a free position next to the source node for a new
// node of type t. Anchors are tried bottom, right, left, top; when all are
// occupied the bottom anchor cascades downward until a free slot is found.
// The graph is not modified.
func (e *Editor) GuidedPlacement(sourceID string, t domain.NodeType) (Proposal, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.propose(e.graph, sourceID, t)
}

func (e *Editor) propose(g *domain.StoryGraph, sourceID string, t domain.NodeType) (Proposal, error) {
	src, ok := g.Nodes[sourceID]
	if !ok {
		return Proposal{}, &domain.NodeError{NodeID: sourceID, Err: domain.ErrNotFound}
	}
	switch {
	case !t.Valid():
		return Proposal{}, fmt.Errorf("%w: unknown node type %q", domain.ErrInvalidNode, t)
	case src.Type == domain.NodeTypeEnding || src.Type == domain.NodeTypeComment:
		return Proposal{}, &domain.NodeError{NodeID: sourceID, Err: fmt.Errorf("%w: %s nodes have no outputs", domain.ErrInvalidConnection, src.Type)}
	case t == domain.NodeTypeStart || t == domain.NodeTypeComment:
		return Proposal{}, fmt.Errorf("%w: %s nodes cannot be wired from a source", domain.ErrInvalidConnection, t)
	}

	s := nodeRect(src)
	size := domain.DefaultDimensions
	m := e.margin
	candidates := map[Anchor]rect{
		AnchorBottom: {s.x + (s.w-size.Width)/2, s.y + s.h + m, size.Width, size.Height},
		AnchorRight:  {s.x + s.w + m, s.y + (s.h-size.Height)/2, size.Width, size.Height},
		AnchorLeft:   {s.x - m - size.Width, s.y + (s.h-size.Height)/2, size.Width, size.Height},
		AnchorTop:    {s.x + (s.w-size.Width)/2, s.y - m - size.Height, size.Width, size.Height},
	}

	occupied := func(r rect) bool {
		for _, n := range g.Nodes {
			if r.overlaps(nodeRect(n)) {
				return true
			}
		}
		return false
	}

	for _, a := range anchorOrder {
		if r := candidates[a]; !occupied(r) {
			return Proposal{SourceID: sourceID, NodeType: t, Position: domain.Position{X: r.x, Y: r.y}, Anchor: a}, nil
		}
	}
	r := candidates[AnchorBottom]
	for i := 0; i < maxCascade; i++ {
		r.y += size.Height + m
		if !occupied(r) {
			return Proposal{SourceID: sourceID, NodeType: t, Position: domain.Position{X: r.x, Y: r.y}, Anchor: AnchorCascade}, nil
		}
	}
	return Proposal{}, &domain.NodeError{NodeID: sourceID, Err: domain.ErrInvalidPlacement}
}

// ConfirmPlacement creates the proposed node and connects the source to it
// as one transaction: if either step fails, neither is kept.
func (e *Editor) ConfirmPlacement(p Proposal, data map[string]any) (PlacementResult, error) {
	var res PlacementResult
	err := e.mutate("confirm_placement", func(g *domain.StoryGraph) error {
		nodeID, err := e.createNode(g, p.NodeType, p.Position, data)
		if err != nil {
			return err
		}
		edgeID, err := e.connect(g, p.SourceID, domain.DefaultSlot, nodeID)
		if err != nil {
			return err
		}
		res = PlacementResult{NodeID: nodeID, EdgeID: edgeID}
		return nil
	})
	return res, err
}

// Place proposes and confirms a placement in one step.
func (e *Editor) Place(sourceID string, t domain.NodeType, data map[string]any) (PlacementResult, error) {
	var res PlacementResult
	err := e.mutate("place", func(g *domain.StoryGraph) error {
		p, err := e.propose(g, sourceID, t)
		if err != nil {
			return err
		}
		nodeID, err := e.createNode(g, t, p.Position, data)
		if err != nil {
			return err
		}
		edgeID, err := e.connect(g, sourceID, domain.DefaultSlot, nodeID)
		if err != nil {
			return err
		}
		res = PlacementResult{NodeID: nodeID, EdgeID: edgeID}
		return nil
	})
	return res, err
}
