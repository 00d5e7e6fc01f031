package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/aretw0/arbor/pkg/domain"
)

// Repository implements ports.ContentRepository using in-memory maps.
// Values are stored serialized, so callers never share pointers with it.
// Safe for concurrent use.
type Repository struct {
	mu      sync.RWMutex
	graphs  map[string][]byte
	scenes  map[string][]byte
	stories map[string][]byte
}

// NewRepository creates an empty repository.
func NewRepository() *Repository {
	return &Repository{
		graphs:  make(map[string][]byte),
		scenes:  make(map[string][]byte),
		stories: make(map[string][]byte),
	}
}

// NewFromBundles creates a repository holding the given unit graphs and
// their scenes. This handles serialization automatically, improving DX for tests.
func NewFromBundles(bundles ...*domain.Bundle) (*Repository, error) {
	r := NewRepository()
	ctx := context.Background()
	for _, b := range bundles {
		if b.Graph == nil || b.Graph.UnitID == "" {
			return nil, fmt.Errorf("bundle missing unit id")
		}
		if err := r.PersistGraph(ctx, b.Graph.UnitID, b.Graph); err != nil {
			return nil, err
		}
		for ref, scene := range b.Scenes {
			if scene.ID == "" {
				scene.ID = ref
			}
			if err := r.SaveScene(ctx, scene); err != nil {
				return nil, err
			}
		}
	}
	return r, nil
}

// LoadGraph retrieves the graph of a unit.
func (r *Repository) LoadGraph(_ context.Context, unitID string) (*domain.StoryGraph, error) {
	var g domain.StoryGraph
	if err := r.get(r.graphs, unitID, &g); err != nil {
		return nil, fmt.Errorf("unit %s: %w", unitID, domain.ErrUnitNotFound)
	}
	g.Normalize()
	return &g, nil
}

// PersistGraph stores the graph of a unit, replacing any previous one.
func (r *Repository) PersistGraph(_ context.Context, unitID string, graph *domain.StoryGraph) error {
	return r.put(r.graphs, unitID, graph)
}

// ListGraphs returns all stored unit ids, sorted.
func (r *Repository) ListGraphs(_ context.Context) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := make([]string, 0, len(r.graphs))
	for k := range r.graphs {
		keys = append(keys, k)
	}
	sort.Strings(keys) // Deterministic order
	return keys, nil
}

// LoadScene resolves a scene reference.
func (r *Repository) LoadScene(_ context.Context, sceneRef string) (*domain.Scene, error) {
	var s domain.Scene
	if err := r.get(r.scenes, sceneRef, &s); err != nil {
		return nil, fmt.Errorf("scene %s: %w", sceneRef, domain.ErrSceneNotFound)
	}
	return &s, nil
}

// SaveScene stores a scene under its id.
func (r *Repository) SaveScene(_ context.Context, scene *domain.Scene) error {
	return r.put(r.scenes, scene.ID, scene)
}

// LoadStory resolves a story catalog entry.
func (r *Repository) LoadStory(_ context.Context, storyID string) (*domain.Story, error) {
	var s domain.Story
	if err := r.get(r.stories, storyID, &s); err != nil {
		return nil, fmt.Errorf("story %s: %w", storyID, domain.ErrStoryNotFound)
	}
	return &s, nil
}

// SaveStory stores a story under its id.
func (r *Repository) SaveStory(_ context.Context, story *domain.Story) error {
	return r.put(r.stories, story.ID, story)
}

func (r *Repository) put(m map[string][]byte, id string, v any) error {
	if id == "" {
		return fmt.Errorf("missing id")
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", id, err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	m[id] = data
	return nil
}

func (r *Repository) get(m map[string][]byte, id string, v any) error {
	r.mu.RLock()
	data, ok := m[id]
	r.mu.RUnlock()
	if !ok {
		return fmt.Errorf("not found: %s", id)
	}
	return json.Unmarshal(data, v)
}
