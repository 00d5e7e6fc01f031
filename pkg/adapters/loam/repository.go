// Package loam stores arbor content as Markdown documents in a Loam repository,
// so authors can edit units, nodes and scene scripts with any text editor.
//
// Layout:
//
//	units/<unit>.md          unit manifest (start, node order, variables, edges)
//	units/<unit>/<node>.md   one document per node, body = notes
//	scenes/<ref>.md          scene frontmatter, body = script
//	stories/<story>.md       story catalog entry
package loam

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/aretw0/loam"
	"github.com/aretw0/loam/pkg/core"

	"github.com/aretw0/arbor/pkg/domain"
)

var errMissing = errors.New("document not found")

// Repository implements ports.ContentRepository over a Loam repository.
type Repository struct {
	repo  core.Repository
	typed *loam.TypedRepository[Metadata]
}

// New wraps an initialized Loam repository.
func New(repo core.Repository) *Repository {
	return &Repository{
		repo:  repo,
		typed: loam.NewTypedRepository[Metadata](repo),
	}
}

// Open initializes a Loam repository at dir.
func Open(dir string, opts ...loam.Option) (*Repository, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("invalid path: %w", err)
	}
	repo, err := loam.Init(abs, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize loam: %w", err)
	}
	return New(repo), nil
}

func unitDoc(unitID string) string { return "units/" + unitID }
func nodeDoc(unitID, nodeID string) string { return "units/" + unitID + "/" + nodeID }
func sceneDoc(ref string) string { return "scenes/" + ref }
func storyDoc(storyID string) string { return "stories/" + storyID }

// LoadGraph assembles a unit from its manifest and node documents.
func (r *Repository) LoadGraph(ctx context.Context, unitID string) (*domain.StoryGraph, error) {
	meta, _, err := r.read(ctx, unitDoc(unitID))
	if errors.Is(err, errMissing) || (err == nil && meta.Kind != KindUnit) {
		return nil, fmt.Errorf("unit %s: %w", unitID, domain.ErrUnitNotFound)
	}
	if err != nil {
		return nil, err
	}

	g := domain.NewStoryGraph(unitID)
	g.StartNodeID = meta.Start
	if err := domain.Decode(meta.Variables, &g.Variables); err != nil {
		return nil, fmt.Errorf("unit %s variables: %w", unitID, err)
	}
	var edges []edgeDoc
	if err := domain.Decode(meta.Edges, &edges); err != nil {
		return nil, fmt.Errorf("unit %s edges: %w", unitID, err)
	}
	for _, e := range edges {
		g.Edges = append(g.Edges, domain.GraphEdge{ID: e.ID, SourceID: e.Source, SourceSlot: e.Slot, TargetID: e.Target, Label: e.Label})
	}

	for _, id := range meta.Nodes {
		nm, notes, err := r.read(ctx, nodeDoc(unitID, id))
		if err != nil {
			return nil, fmt.Errorf("unit %s node %s: %w", unitID, id, err)
		}
		node, err := decodeNode(id, nm, notes)
		if err != nil {
			return nil, fmt.Errorf("unit %s: %w", unitID, err)
		}
		g.Nodes[id] = node
	}
	g.Normalize()
	return g, nil
}

func decodeNode(id string, m Metadata, notes string) (*domain.GraphNode, error) {
	node := &domain.GraphNode{
		ID:       id,
		Title:    m.Title,
		Notes:    strings.TrimSpace(notes),
		Position: domain.Position{X: m.X, Y: m.Y},
	}
	if m.Width > 0 && m.Height > 0 {
		node.Dimensions = &domain.Dimensions{Width: m.Width, Height: m.Height}
	}
	if err := domain.DecodePayload(node, domain.NodeType(m.Type), m.Data); err != nil {
		return nil, fmt.Errorf("node %s: %w", id, err)
	}
	return node, nil
}

// PersistGraph writes every node document and then the manifest.
// Node documents the manifest no longer lists are ignored on load.
func (r *Repository) PersistGraph(ctx context.Context, unitID string, graph *domain.StoryGraph) error {
	ids := graph.NodeIDs()
	for _, id := range ids {
		n := graph.Nodes[id]
		meta := core.Metadata{
			"kind":  KindNode,
			"type":  string(n.Type),
			"title": n.Title,
			"x":     n.Position.X,
			"y":     n.Position.Y,
		}
		if n.Dimensions != nil {
			meta["width"] = n.Dimensions.Width
			meta["height"] = n.Dimensions.Height
		}
		if payload := payloadOf(n); payload != nil {
			data, err := plain(payload)
			if err != nil {
				return fmt.Errorf("node %s payload: %w", id, err)
			}
			meta["data"] = data
		}
		if err := r.save(ctx, nodeDoc(unitID, id), n.Notes, meta); err != nil {
			return err
		}
	}

	edges := make([]any, 0, len(graph.Edges))
	for _, e := range graph.Edges {
		edges = append(edges, map[string]any{"id": e.ID, "source": e.SourceID, "slot": e.SourceSlot, "target": e.TargetID, "label": e.Label})
	}
	variables, err := plain(graph.Variables)
	if err != nil {
		return fmt.Errorf("unit %s variables: %w", unitID, err)
	}
	nodes := make([]any, len(ids))
	for i, id := range ids {
		nodes[i] = id
	}
	return r.save(ctx, unitDoc(unitID), "", core.Metadata{
		"kind":      KindUnit,
		"start":     graph.StartNodeID,
		"nodes":     nodes,
		"variables": variables,
		"edges":     edges,
	})
}

func payloadOf(n *domain.GraphNode) any {
	switch {
	case n.Scene != nil:
		return n.Scene
	case n.Choice != nil:
		return n.Choice
	case n.Branch != nil:
		return n.Branch
	case n.Ending != nil:
		return n.Ending
	case n.Modifier != nil:
		return n.Modifier
	case n.Comment != nil:
		return n.Comment
	}
	return nil
}

// ListGraphs returns the ids of every unit manifest, sorted.
func (r *Repository) ListGraphs(ctx context.Context) ([]string, error) {
	docs, err := r.typed.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("loam list failed: %w", err)
	}
	ids := []string{}
	for _, doc := range docs {
		if doc.Data.Kind != KindUnit {
			continue
		}
		ids = append(ids, strings.TrimPrefix(trimExtension(doc.ID), "units/"))
	}
	sort.Strings(ids)
	return ids, nil
}

// LoadScene reads a scene document.
func (r *Repository) LoadScene(ctx context.Context, sceneRef string) (*domain.Scene, error) {
	meta, body, err := r.read(ctx, sceneDoc(sceneRef))
	if errors.Is(err, errMissing) || (err == nil && meta.Kind != KindScene) {
		return nil, fmt.Errorf("scene %s: %w", sceneRef, domain.ErrSceneNotFound)
	}
	if err != nil {
		return nil, err
	}
	s := &domain.Scene{ID: sceneRef, Texts: parseScript(body)}
	if err := domain.Decode(meta.Background, &s.Background); err != nil {
		return nil, fmt.Errorf("scene %s background: %w", sceneRef, err)
	}
	if err := domain.Decode(meta.Characters, &s.Characters); err != nil {
		return nil, fmt.Errorf("scene %s characters: %w", sceneRef, err)
	}
	if err := domain.Decode(meta.Audio, &s.Audio); err != nil {
		return nil, fmt.Errorf("scene %s audio: %w", sceneRef, err)
	}
	return s, nil
}

// SaveScene writes a scene document.
func (r *Repository) SaveScene(ctx context.Context, scene *domain.Scene) error {
	meta := core.Metadata{"kind": KindScene}
	background, err := plain(scene.Background)
	if err != nil {
		return err
	}
	meta["background"] = background
	if len(scene.Characters) > 0 {
		if meta["characters"], err = plain(scene.Characters); err != nil {
			return err
		}
	}
	if len(scene.Audio) > 0 {
		if meta["audio"], err = plain(scene.Audio); err != nil {
			return err
		}
	}
	return r.save(ctx, sceneDoc(scene.ID), formatScript(scene.Texts), meta)
}

// LoadStory reads a story document.
func (r *Repository) LoadStory(ctx context.Context, storyID string) (*domain.Story, error) {
	meta, _, err := r.read(ctx, storyDoc(storyID))
	if errors.Is(err, errMissing) || (err == nil && meta.Kind != KindStory) {
		return nil, fmt.Errorf("story %s: %w", storyID, domain.ErrStoryNotFound)
	}
	if err != nil {
		return nil, err
	}
	s, err := domain.DecodeStory(map[string]any{
		"id":         storyID,
		"title":      meta.Title,
		"endingMode": meta.EndingMode,
		"units":      meta.Units,
	})
	if err != nil {
		return nil, fmt.Errorf("story %s: %w", storyID, err)
	}
	return s, nil
}

// SaveStory writes a story document.
func (r *Repository) SaveStory(ctx context.Context, story *domain.Story) error {
	units, err := plain(story.Units)
	if err != nil {
		return err
	}
	return r.save(ctx, storyDoc(story.ID), "", core.Metadata{
		"kind":       KindStory,
		"title":      story.Title,
		"endingMode": string(story.EndingMode),
		"units":      units,
	})
}

func (r *Repository) read(ctx context.Context, id string) (Metadata, string, error) {
	doc, err := r.typed.Get(ctx, id)
	if err != nil {
		if ok, lerr := r.exists(ctx, id); lerr == nil && !ok {
			return Metadata{}, "", errMissing
		}
		return Metadata{}, "", fmt.Errorf("loam get failed for %s: %w", id, err)
	}
	return doc.Data, doc.Content, nil
}

func (r *Repository) exists(ctx context.Context, id string) (bool, error) {
	docs, err := r.typed.List(ctx)
	if err != nil {
		return false, err
	}
	for _, doc := range docs {
		if trimExtension(doc.ID) == id {
			return true, nil
		}
	}
	return false, nil
}

func (r *Repository) save(ctx context.Context, id, body string, meta core.Metadata) error {
	if id == "" || strings.Contains(id, "..") {
		return fmt.Errorf("invalid document id %q", id)
	}
	if err := r.repo.Save(ctx, core.Document{ID: id + ".md", Content: body, Metadata: meta}); err != nil {
		return fmt.Errorf("loam save failed for %s: %w", id, err)
	}
	return nil
}

// plain converts v to maps, slices and scalars through its JSON form.
func plain(v any) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func trimExtension(id string) string {
	id = filepath.ToSlash(id)
	return strings.TrimSuffix(id, filepath.Ext(id))
}
