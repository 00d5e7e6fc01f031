package authoring

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/arbor/internal/validator"
	"github.com/aretw0/arbor/pkg/clock"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/ports"
)

// Editor is the single authoring session of one story unit.
// Its methods are safe for concurrent use but the graph is not shared:
// readers get deep copies.
type Editor struct {
	unitID    string
	persister ports.GraphPersister
	logger    *slog.Logger
	clock     clock.Clock
	quiet     time.Duration
	newID     IDGenerator
	margin    float64

	mu     sync.Mutex
	graph  *domain.StoryGraph
	closed bool

	saver *autosaver
}

// New creates an editor over graph, which the editor takes ownership of.
// A nil graph starts an empty unit.
func New(unitID string, graph *domain.StoryGraph, opts ...Option) *Editor {
	e := &Editor{unitID: unitID, graph: graph}
	for _, opt := range opts {
		opt(e)
	}
	e.applyDefaults()
	e.graph.UnitID = unitID
	if e.persister != nil {
		e.saver = newAutosaver(e.clock, e.quiet, e.persist, e.logger)
	}
	return e
}

// Open loads the unit from repo, or starts an empty graph if it does not exist yet.
// The repository is also used as the persister.
func Open(ctx context.Context, unitID string, repo ports.GraphRepository, opts ...Option) (*Editor, error) {
	g, err := repo.LoadGraph(ctx, unitID)
	if errors.Is(err, domain.ErrUnitNotFound) {
		g, err = nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open unit %s: %w", unitID, err)
	}
	return New(unitID, g, append([]Option{WithPersister(repo)}, opts...)...), nil
}

// UnitID returns the unit being edited.
func (e *Editor) UnitID() string { return e.unitID }

// Graph returns a deep copy of the current graph.
func (e *Editor) Graph() *domain.StoryGraph {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.graph.Clone()
}

// Validate runs the structural validator on the current graph.
func (e *Editor) Validate() validator.Report {
	return validator.Validate(e.Graph())
}

// Dirty reports whether edits are waiting to be persisted.
func (e *Editor) Dirty() bool {
	return e.saver != nil && e.saver.dirty()
}

// Flush persists pending edits immediately and waits for the write.
func (e *Editor) Flush(ctx context.Context) error {
	if e.saver == nil {
		return nil
	}
	if err := e.saver.flush(ctx); err != nil {
		return fmt.Errorf("flush unit %s: %w", e.unitID, err)
	}
	return nil
}

// Close flushes pending edits and stops the autosave timer.
// Further mutations return domain.ErrEditorClosed.
func (e *Editor) Close(ctx context.Context) error {
	e.mu.Lock()
	e.closed = true
	e.mu.Unlock()
	err := e.Flush(ctx)
	if e.saver != nil {
		e.saver.stop()
	}
	return err
}

func (e *Editor) persist(ctx context.Context) error {
	g := e.Graph()
	if err := e.persister.PersistGraph(ctx, e.unitID, g); err != nil {
		return err
	}
	e.logger.Debug("graph persisted", "unit_id", e.unitID, "nodes", len(g.Nodes), "edges", len(g.Edges))
	return nil
}

// mutate runs fn against the graph under the lock. The graph is restored if
// fn fails, and an autosave is scheduled if it succeeds.
func (e *Editor) mutate(op string, fn func(g *domain.StoryGraph) error) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return domain.ErrEditorClosed
	}
	snapshot := e.graph.Clone()
	err := fn(e.graph)
	if err != nil {
		e.graph = snapshot
		e.mu.Unlock()
		e.logger.Debug("edit refused", "op", op, "unit_id", e.unitID, "err", err)
		return err
	}
	syncBranchDefaults(e.graph)
	e.mu.Unlock()

	if e.saver != nil {
		e.saver.schedule()
	}
	return nil
}

// CreateNode adds a node and returns its id. Creating a second start node
// fails with domain.ErrDuplicateStart. The first start node becomes the
// graph's entry point.
func (e *Editor) CreateNode(t domain.NodeType, pos domain.Position, data map[string]any) (string, error) {
	var id string
	err := e.mutate("create_node", func(g *domain.StoryGraph) error {
		var err error
		id, err = e.createNode(g, t, pos, data)
		return err
	})
	return id, err
}

func (e *Editor) createNode(g *domain.StoryGraph, t domain.NodeType, pos domain.Position, data map[string]any) (string, error) {
	if !t.Valid() {
		return "", fmt.Errorf("%w: unknown node type %q", domain.ErrInvalidNode, t)
	}
	if t == domain.NodeTypeStart && len(g.StartNodes()) > 0 {
		return "", domain.ErrDuplicateStart
	}

	n := &domain.GraphNode{Position: pos}
	payload := splitCommon(n, t, data)
	if err := domain.DecodePayload(n, t, payload); err != nil {
		return "", err
	}
	n.ID = e.uniqueID(g, string(t))
	g.Nodes[n.ID] = n
	if t == domain.NodeTypeStart {
		g.StartNodeID = n.ID
	}
	return n.ID, nil
}

// splitCommon moves the title and notes keys of initial data onto the node
// and returns the remaining type-specific payload. Endings keep their title
// in the payload too, as the ending screen shows it.
func splitCommon(n *domain.GraphNode, t domain.NodeType, data map[string]any) map[string]any {
	if len(data) == 0 {
		return nil
	}
	payload := make(map[string]any, len(data))
	for k, v := range data {
		switch k {
		case "title":
			n.Title, _ = v.(string)
			if t == domain.NodeTypeEnding {
				payload[k] = v
			}
		case "notes":
			n.Notes, _ = v.(string)
		default:
			payload[k] = v
		}
	}
	return payload
}

func (e *Editor) uniqueID(g *domain.StoryGraph, kind string) string {
	for {
		id := e.newID(kind)
		if _, taken := g.Nodes[id]; taken {
			continue
		}
		if _, taken := g.Edge(id); taken {
			continue
		}
		return id
	}
}

// MoveNode repositions a node on the canvas.
func (e *Editor) MoveNode(nodeID string, pos domain.Position) error {
	return e.mutate("move_node", func(g *domain.StoryGraph) error {
		n, ok := g.Nodes[nodeID]
		if !ok {
			return &domain.NodeError{NodeID: nodeID, Err: domain.ErrNotFound}
		}
		n.Position = pos
		return nil
	})
}

// ResizeNode records the rendered size of a node, used by guided placement.
func (e *Editor) ResizeNode(nodeID string, dim domain.Dimensions) error {
	return e.mutate("resize_node", func(g *domain.StoryGraph) error {
		n, ok := g.Nodes[nodeID]
		if !ok {
			return &domain.NodeError{NodeID: nodeID, Err: domain.ErrNotFound}
		}
		n.Dimensions = &dim
		return nil
	})
}

// NodeUpdate carries the fields UpdateNode changes. Nil fields are kept.
type NodeUpdate struct {
	Title *string
	Notes *string
	// Data replaces the type-specific payload when non-nil.
	Data map[string]any
}

// UpdateNode edits a node in place. A payload change that removes choice
// options or branch conditions also removes the edges bound to them.
func (e *Editor) UpdateNode(nodeID string, upd NodeUpdate) error {
	return e.mutate("update_node", func(g *domain.StoryGraph) error {
		n, ok := g.Nodes[nodeID]
		if !ok {
			return &domain.NodeError{NodeID: nodeID, Err: domain.ErrNotFound}
		}
		if upd.Title != nil {
			n.Title = *upd.Title
		}
		if upd.Notes != nil {
			n.Notes = *upd.Notes
		}
		if upd.Data != nil {
			if err := domain.DecodePayload(n, n.Type, upd.Data); err != nil {
				return &domain.NodeError{NodeID: nodeID, Err: err}
			}
			e.pruneInvalidSlots(g, n)
		}
		return nil
	})
}

func (e *Editor) pruneInvalidSlots(g *domain.StoryGraph, n *domain.GraphNode) {
	kept := g.Edges[:0]
	for _, edge := range g.Edges {
		if edge.SourceID == n.ID && !domain.ValidSlot(n, edge.SourceSlot) {
			e.logger.Info("edge removed with its slot", "unit_id", e.unitID, "node_id", n.ID, "edge_id", edge.ID, "slot", edge.SourceSlot)
			continue
		}
		kept = append(kept, edge)
	}
	g.Edges = kept
}

// Connect adds an edge from a source slot to a target node and returns its id.
// An empty slot on a choice node binds the first option without an edge.
func (e *Editor) Connect(sourceID, slot, targetID string) (string, error) {
	var id string
	err := e.mutate("connect", func(g *domain.StoryGraph) error {
		var err error
		id, err = e.connect(g, sourceID, slot, targetID)
		return err
	})
	return id, err
}

func (e *Editor) connect(g *domain.StoryGraph, sourceID, slot, targetID string) (string, error) {
	src, ok := g.Nodes[sourceID]
	if !ok {
		return "", &domain.NodeError{NodeID: sourceID, Err: domain.ErrDanglingReference}
	}
	tgt, ok := g.Nodes[targetID]
	if !ok {
		return "", &domain.NodeError{NodeID: targetID, Err: domain.ErrDanglingReference}
	}
	switch {
	case src.Type == domain.NodeTypeEnding:
		return "", &domain.NodeError{NodeID: sourceID, Err: fmt.Errorf("%w: ending nodes have no outputs", domain.ErrInvalidConnection)}
	case src.Type == domain.NodeTypeComment || tgt.Type == domain.NodeTypeComment:
		return "", &domain.EdgeError{SourceID: sourceID, Slot: slot, Err: fmt.Errorf("%w: comment nodes cannot be connected", domain.ErrInvalidConnection)}
	case tgt.Type == domain.NodeTypeStart:
		return "", &domain.NodeError{NodeID: targetID, Err: fmt.Errorf("%w: start node cannot be a target", domain.ErrInvalidConnection)}
	}

	if slot == domain.DefaultSlot && src.Type == domain.NodeTypeChoice {
		free, ok := g.NextFreeOptionSlot(sourceID)
		if !ok {
			return "", &domain.EdgeError{SourceID: sourceID, Slot: slot, Err: domain.ErrSlotOccupied}
		}
		slot = free
	}
	if !domain.ValidSlot(src, slot) {
		return "", &domain.EdgeError{SourceID: sourceID, Slot: slot, Err: fmt.Errorf("%w: %s node has no slot %q", domain.ErrInvalidConnection, src.Type, slot)}
	}
	if existing, taken := g.EdgeFrom(sourceID, slot); taken {
		return "", &domain.EdgeError{EdgeID: existing.ID, SourceID: sourceID, Slot: slot, Err: domain.ErrSlotOccupied}
	}

	edge := domain.GraphEdge{ID: e.uniqueID(g, "edge"), SourceID: sourceID, SourceSlot: slot, TargetID: targetID}
	if i, ok := domain.SlotOption(slot); ok {
		if opts := src.Options(); i < len(opts) {
			edge.Label = opts[i].Text
		}
	}
	g.Edges = append(g.Edges, edge)
	return edge.ID, nil
}

// Disconnect removes an edge.
func (e *Editor) Disconnect(edgeID string) error {
	return e.mutate("disconnect", func(g *domain.StoryGraph) error {
		for i, edge := range g.Edges {
			if edge.ID == edgeID {
				g.Edges = append(g.Edges[:i], g.Edges[i+1:]...)
				return nil
			}
		}
		return &domain.EdgeError{EdgeID: edgeID, Err: domain.ErrNotFound}
	})
}

// RemoveNode deletes a node and every edge touching it.
// The start node cannot be removed; reassign the start first.
func (e *Editor) RemoveNode(nodeID string) error {
	return e.mutate("remove_node", func(g *domain.StoryGraph) error {
		n, ok := g.Nodes[nodeID]
		if !ok {
			return &domain.NodeError{NodeID: nodeID, Err: domain.ErrNotFound}
		}
		if n.Type == domain.NodeTypeStart {
			return &domain.NodeError{NodeID: nodeID, Err: domain.ErrStartRemoval}
		}
		delete(g.Nodes, nodeID)
		removeEdgesTouching(g, nodeID)
		return nil
	})
}

// startLead is the vertical gap between a reassigned start and its target.
const startLead = 120

// ReassignStart moves the entry point of the graph onto target and returns
// the id of the start node now in effect. A start target simply becomes the
// entry point. Any other target keeps its type and payload: the previous
// start is demoted to a comment and disconnected, and a fresh start node
// wired to the target takes its place. Comment targets are refused.
func (e *Editor) ReassignStart(targetID string) (string, error) {
	var startID string
	err := e.mutate("reassign_start", func(g *domain.StoryGraph) error {
		tgt, ok := g.Nodes[targetID]
		if !ok {
			return &domain.NodeError{NodeID: targetID, Err: domain.ErrNotFound}
		}
		switch tgt.Type {
		case domain.NodeTypeStart:
			startID = targetID
			g.StartNodeID = targetID
			return nil
		case domain.NodeTypeComment:
			return &domain.NodeError{NodeID: targetID, Err: fmt.Errorf("%w: comment cannot become the start", domain.ErrInvalidConnection)}
		}

		for _, oldID := range g.StartNodes() {
			old := g.Nodes[oldID]
			title := old.Title
			if err := domain.DecodePayload(old, domain.NodeTypeComment, map[string]any{"text": "former start"}); err != nil {
				return err
			}
			old.Title = title
			removeEdgesTouching(g, oldID)
		}

		pos := domain.Position{X: tgt.Position.X, Y: tgt.Position.Y - startLead}
		id, err := e.createNode(g, domain.NodeTypeStart, pos, nil)
		if err != nil {
			return err
		}
		if _, err := e.connect(g, id, domain.DefaultSlot, targetID); err != nil {
			return err
		}
		startID = id
		return nil
	})
	return startID, err
}

func removeEdgesTouching(g *domain.StoryGraph, nodeID string) {
	kept := g.Edges[:0]
	for _, edge := range g.Edges {
		if edge.SourceID != nodeID && edge.TargetID != nodeID {
			kept = append(kept, edge)
		}
	}
	g.Edges = kept
}

// syncBranchDefaults keeps DefaultEdgePresent in step with the default edge.
func syncBranchDefaults(g *domain.StoryGraph) {
	for id, n := range g.Nodes {
		if n.Type != domain.NodeTypeBranch || n.Branch == nil {
			continue
		}
		_, ok := g.EdgeFrom(id, domain.DefaultSlot)
		n.Branch.DefaultEdgePresent = ok
	}
}
