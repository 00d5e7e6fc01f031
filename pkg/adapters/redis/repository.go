package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	backend "github.com/redis/go-redis/v9"

	"github.com/aretw0/arbor/pkg/domain"
)

// Repository implements ports.ContentRepository using Redis.
// Graphs, scenes and stories are JSON strings; a set tracks unit ids.
type Repository struct {
	client *backend.Client
	prefix string
}

// NewRepository creates a content repository from an existing client.
func NewRepository(client *backend.Client, opts ...Option) *Repository {
	c := newConfig(opts)
	return &Repository{client: client, prefix: c.prefix}
}

func (r *Repository) unitsKey() string { return r.prefix + "units" }

// LoadGraph retrieves the graph of a unit.
func (r *Repository) LoadGraph(ctx context.Context, unitID string) (*domain.StoryGraph, error) {
	var g domain.StoryGraph
	if err := r.get(ctx, "unit:"+unitID, &g); err != nil {
		if errors.Is(err, backend.Nil) {
			return nil, fmt.Errorf("unit %s: %w", unitID, domain.ErrUnitNotFound)
		}
		return nil, err
	}
	g.Normalize()
	return &g, nil
}

// PersistGraph stores the graph of a unit, replacing any previous one.
func (r *Repository) PersistGraph(ctx context.Context, unitID string, graph *domain.StoryGraph) error {
	data, err := json.Marshal(graph)
	if err != nil {
		return fmt.Errorf("failed to marshal graph %s: %w", unitID, err)
	}
	pipe := r.client.TxPipeline()
	pipe.Set(ctx, r.prefix+"unit:"+unitID, data, 0)
	pipe.SAdd(ctx, r.unitsKey(), unitID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to persist graph %s: %w", unitID, err)
	}
	return nil
}

// ListGraphs returns all stored unit ids, sorted.
func (r *Repository) ListGraphs(ctx context.Context) ([]string, error) {
	ids, err := r.client.SMembers(ctx, r.unitsKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list units: %w", err)
	}
	sort.Strings(ids)
	return ids, nil
}

// LoadScene resolves a scene reference.
func (r *Repository) LoadScene(ctx context.Context, sceneRef string) (*domain.Scene, error) {
	var s domain.Scene
	if err := r.get(ctx, "scene:"+sceneRef, &s); err != nil {
		if errors.Is(err, backend.Nil) {
			return nil, fmt.Errorf("scene %s: %w", sceneRef, domain.ErrSceneNotFound)
		}
		return nil, err
	}
	return &s, nil
}

// SaveScene stores a scene under its id.
func (r *Repository) SaveScene(ctx context.Context, scene *domain.Scene) error {
	return r.set(ctx, "scene:"+scene.ID, scene)
}

// LoadStory resolves a story catalog entry.
func (r *Repository) LoadStory(ctx context.Context, storyID string) (*domain.Story, error) {
	var s domain.Story
	if err := r.get(ctx, "story:"+storyID, &s); err != nil {
		if errors.Is(err, backend.Nil) {
			return nil, fmt.Errorf("story %s: %w", storyID, domain.ErrStoryNotFound)
		}
		return nil, err
	}
	return &s, nil
}

// SaveStory stores a story under its id.
func (r *Repository) SaveStory(ctx context.Context, story *domain.Story) error {
	return r.set(ctx, "story:"+story.ID, story)
}

func (r *Repository) get(ctx context.Context, key string, v any) error {
	data, err := r.client.Get(ctx, r.prefix+key).Bytes()
	if err != nil {
		if errors.Is(err, backend.Nil) {
			return err
		}
		return fmt.Errorf("failed to get %s: %w", key, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to unmarshal %s: %w", key, err)
	}
	return nil
}

func (r *Repository) set(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", key, err)
	}
	if err := r.client.Set(ctx, r.prefix+key, data, 0).Err(); err != nil {
		return fmt.Errorf("failed to set %s: %w", key, err)
	}
	return nil
}
