package ports

import (
	"context"

	"github.com/aretw0/arbor/pkg/domain"
)

// GraphLoader retrieves the graph of a story unit.
type GraphLoader interface {
	// LoadGraph returns domain.ErrUnitNotFound if the unit does not exist.
	LoadGraph(ctx context.Context, unitID string) (*domain.StoryGraph, error)
}

// GraphPersister stores the graph of a story unit, replacing any previous one.
type GraphPersister interface {
	PersistGraph(ctx context.Context, unitID string, graph *domain.StoryGraph) error
}

// GraphRepository is the read-write graph collaborator used by the editor.
type GraphRepository interface {
	GraphLoader
	GraphPersister

	// ListGraphs returns the ids of every stored unit, sorted.
	ListGraphs(ctx context.Context) ([]string, error)
}

// SceneSource resolves scene references to content units.
type SceneSource interface {
	// LoadScene returns domain.ErrSceneNotFound if the scene does not exist.
	LoadScene(ctx context.Context, sceneRef string) (*domain.Scene, error)
}

// StoryCatalog resolves stories to their units.
type StoryCatalog interface {
	// LoadStory returns domain.ErrStoryNotFound if the story does not exist.
	LoadStory(ctx context.Context, storyID string) (*domain.Story, error)
}

// Library is everything a reading session needs to play a story.
type Library interface {
	GraphLoader
	SceneSource
	StoryCatalog
}

// ContentRepository is a Library that can also be written to.
// Every storage adapter implements it.
type ContentRepository interface {
	Library
	GraphRepository

	SaveScene(ctx context.Context, scene *domain.Scene) error
	SaveStory(ctx context.Context, story *domain.Story) error
}

// EntitlementResolver is consulted before a unit is opened at an episode boundary.
type EntitlementResolver interface {
	ResolveEntitlement(ctx context.Context, readerID, unitID string) (bool, error)
}

// EntitlementFunc adapts a function to EntitlementResolver.
type EntitlementFunc func(ctx context.Context, readerID, unitID string) (bool, error)

// ResolveEntitlement calls f.
func (f EntitlementFunc) ResolveEntitlement(ctx context.Context, readerID, unitID string) (bool, error) {
	return f(ctx, readerID, unitID)
}

// AllowAll grants every reader access to every unit.
var AllowAll EntitlementResolver = EntitlementFunc(func(context.Context, string, string) (bool, error) {
	return true, nil
})
