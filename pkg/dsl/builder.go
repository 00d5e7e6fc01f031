package dsl

import (
	"errors"
	"fmt"

	"github.com/aretw0/arbor/internal/validator"
	"github.com/aretw0/arbor/pkg/adapters/memory"
	"github.com/aretw0/arbor/pkg/domain"
)

// Builder manages the construction of one unit.
type Builder struct {
	unitID string
	graph  *domain.StoryGraph
	nodes  map[string]*NodeBuilder
	order  []string
	scenes map[string]*domain.Scene
	errs   []error
}

// New creates a new builder for the given unit.
func New(unitID string) *Builder {
	return &Builder{
		unitID: unitID,
		graph:  domain.NewStoryGraph(unitID),
		nodes:  make(map[string]*NodeBuilder),
		scenes: make(map[string]*domain.Scene),
	}
}

// Add creates a new node in the graph.
// If the node already exists, it returns the existing builder.
func (b *Builder) Add(id string) *NodeBuilder {
	if nb, ok := b.nodes[id]; ok {
		return nb
	}
	nb := &NodeBuilder{
		node:    &domain.GraphNode{ID: id, Position: domain.Position{Y: float64(len(b.order)) * 200}},
		builder: b,
	}
	b.nodes[id] = nb
	b.order = append(b.order, id)
	return nb
}

// Variable declares a story variable.
func (b *Builder) Variable(name string, dataType domain.DataType, initial any) *Builder {
	b.graph.Variables = append(b.graph.Variables, domain.StoryVariable{
		ID:           fmt.Sprintf("var-%d", len(b.graph.Variables)+1),
		Name:         name,
		DataType:     dataType,
		InitialValue: domain.CloneValue(initial),
	})
	return b
}

// SceneContent returns the scene with the given reference, creating it.
// Scenes may be shared between nodes.
func (b *Builder) SceneContent(ref string) *domain.Scene {
	if s, ok := b.scenes[ref]; ok {
		return s
	}
	s := &domain.Scene{ID: ref}
	b.scenes[ref] = s
	return s
}

func (b *Builder) connect(source, slot, target, label string) {
	b.graph.Edges = append(b.graph.Edges, domain.GraphEdge{
		ID:         fmt.Sprintf("e%d", len(b.graph.Edges)+1),
		SourceID:   source,
		SourceSlot: slot,
		TargetID:   target,
		Label:      label,
	})
}

func (b *Builder) fail(format string, args ...any) {
	b.errs = append(b.errs, fmt.Errorf(format, args...))
}

// Build compiles the unit into a bundle of graph and scenes.
// It reports builder misuse only; use Validate for structural checks.
func (b *Builder) Build() (*domain.Bundle, error) {
	if len(b.errs) > 0 {
		return nil, fmt.Errorf("failed to build unit %s: %w", b.unitID, errors.Join(b.errs...))
	}
	g := b.graph.Clone()
	for _, id := range b.order {
		n := b.nodes[id].node.Clone()
		if n.Branch != nil {
			_, n.Branch.DefaultEdgePresent = g.EdgeFrom(id, domain.DefaultSlot)
		}
		g.Nodes[id] = n
	}
	scenes := make(map[string]*domain.Scene, len(b.scenes))
	for ref, s := range b.scenes {
		c := *s
		c.Texts = append([]domain.TextContent(nil), s.Texts...)
		scenes[ref] = &c
	}
	return &domain.Bundle{Graph: g, Scenes: scenes}, nil
}

// Validate builds the unit and runs the structural validator on it.
func (b *Builder) Validate() (validator.Report, error) {
	bundle, err := b.Build()
	if err != nil {
		return validator.Report{}, err
	}
	return validator.Validate(bundle.Graph), nil
}

// BuildRepository compiles one or more builders into an in-memory repository.
func BuildRepository(builders ...*Builder) (*memory.Repository, error) {
	bundles := make([]*domain.Bundle, 0, len(builders))
	for _, b := range builders {
		bundle, err := b.Build()
		if err != nil {
			return nil, err
		}
		bundles = append(bundles, bundle)
	}
	repo, err := memory.NewFromBundles(bundles...)
	if err != nil {
		return nil, fmt.Errorf("failed to build memory repository: %w", err)
	}
	return repo, nil
}
