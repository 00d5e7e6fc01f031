// Package file provides filesystem adapters: a YAML story directory and a
// JSON progress store.
//
// A story directory looks like:
//
//	stories/<story>.yaml   catalog entries (units in reading order)
//	units/<unit>.yaml      one graph per unit
//	scenes/<ref>.yaml      scene content
package file

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/aretw0/arbor/pkg/domain"
)

const ext = ".yaml"

// Repository implements ports.ContentRepository over a story directory.
type Repository struct {
	Root string
}

// NewRepository creates a repository rooted at dir.
func NewRepository(dir string) *Repository {
	return &Repository{Root: dir}
}

func (r *Repository) dir(kind string) string {
	return filepath.Join(r.Root, kind)
}

// LoadGraph reads units/<unitID>.yaml.
func (r *Repository) LoadGraph(ctx context.Context, unitID string) (*domain.StoryGraph, error) {
	var g domain.StoryGraph
	if err := r.read(ctx, "units", unitID, &g); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("unit %s: %w", unitID, domain.ErrUnitNotFound)
		}
		return nil, err
	}
	if g.UnitID == "" {
		g.UnitID = unitID
	}
	g.Normalize()
	return &g, nil
}

// PersistGraph writes units/<unitID>.yaml.
func (r *Repository) PersistGraph(ctx context.Context, unitID string, graph *domain.StoryGraph) error {
	return r.write(ctx, "units", unitID, graph)
}

// ListGraphs returns the unit ids present in the directory, sorted.
func (r *Repository) ListGraphs(ctx context.Context) ([]string, error) {
	ids, err := listIDs(r.dir("units"), ext)
	if err != nil {
		return nil, err
	}
	sort.Strings(ids)
	return ids, nil
}

// LoadScene reads scenes/<sceneRef>.yaml.
func (r *Repository) LoadScene(ctx context.Context, sceneRef string) (*domain.Scene, error) {
	var s domain.Scene
	if err := r.read(ctx, "scenes", sceneRef, &s); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("scene %s: %w", sceneRef, domain.ErrSceneNotFound)
		}
		return nil, err
	}
	if s.ID == "" {
		s.ID = sceneRef
	}
	return &s, nil
}

// SaveScene writes scenes/<scene.ID>.yaml.
func (r *Repository) SaveScene(ctx context.Context, scene *domain.Scene) error {
	return r.write(ctx, "scenes", scene.ID, scene)
}

// LoadStory reads stories/<storyID>.yaml.
func (r *Repository) LoadStory(ctx context.Context, storyID string) (*domain.Story, error) {
	var s domain.Story
	if err := r.read(ctx, "stories", storyID, &s); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("story %s: %w", storyID, domain.ErrStoryNotFound)
		}
		return nil, err
	}
	if s.ID == "" {
		s.ID = storyID
	}
	if s.EndingMode == "" {
		s.EndingMode = domain.EndingModeMultiple
	}
	return &s, nil
}

// SaveStory writes stories/<story.ID>.yaml.
func (r *Repository) SaveStory(ctx context.Context, story *domain.Story) error {
	return r.write(ctx, "stories", story.ID, story)
}

func (r *Repository) read(ctx context.Context, kind, id string, v any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !validID(id) {
		return fmt.Errorf("invalid id %q: %w", id, os.ErrNotExist)
	}
	data, err := os.ReadFile(filepath.Join(r.dir(kind), id+ext))
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to parse %s/%s: %w", kind, id, err)
	}
	return nil
}

func (r *Repository) write(ctx context.Context, kind, id string, v any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !validID(id) {
		return fmt.Errorf("invalid id %q", id)
	}
	data, err := yaml.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal %s/%s: %w", kind, id, err)
	}
	return writeAtomic(r.dir(kind), id+ext, data)
}

// validID rejects ids that would escape the directory.
func validID(id string) bool {
	return id != "" && id != "." && id != ".." && filepath.Base(id) == id
}
