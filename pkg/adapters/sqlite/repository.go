package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aretw0/arbor/pkg/domain"
)

// Repository implements ports.ContentRepository on SQLite.
type Repository struct {
	sqlDB *sql.DB
}

// LoadGraph retrieves the graph of a unit.
func (r *Repository) LoadGraph(ctx context.Context, unitID string) (*domain.StoryGraph, error) {
	var g domain.StoryGraph
	err := r.get(ctx, `SELECT graph FROM units WHERE id = ?`, unitID, &g)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("unit %s: %w", unitID, domain.ErrUnitNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load unit %s: %w", unitID, err)
	}
	g.Normalize()
	return &g, nil
}

// PersistGraph stores the graph of a unit, replacing any previous one.
func (r *Repository) PersistGraph(ctx context.Context, unitID string, graph *domain.StoryGraph) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	body, err := json.Marshal(graph)
	if err != nil {
		return fmt.Errorf("marshal unit %s: %w", unitID, err)
	}
	_, err = r.sqlDB.ExecContext(ctx,
		`INSERT INTO units (id, graph, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET graph = excluded.graph, updated_at = excluded.updated_at`,
		unitID, string(body), time.Now().UTC().UnixMilli())
	if err != nil {
		return fmt.Errorf("persist unit %s: %w", unitID, err)
	}
	return nil
}

// ListGraphs returns all stored unit ids, sorted.
func (r *Repository) ListGraphs(ctx context.Context) ([]string, error) {
	rows, err := r.sqlDB.QueryContext(ctx, `SELECT id FROM units ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list units: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan unit id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// LoadScene resolves a scene reference.
func (r *Repository) LoadScene(ctx context.Context, sceneRef string) (*domain.Scene, error) {
	var s domain.Scene
	err := r.get(ctx, `SELECT body FROM scenes WHERE id = ?`, sceneRef, &s)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("scene %s: %w", sceneRef, domain.ErrSceneNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load scene %s: %w", sceneRef, err)
	}
	return &s, nil
}

// SaveScene stores a scene under its id.
func (r *Repository) SaveScene(ctx context.Context, scene *domain.Scene) error {
	return r.put(ctx, `INSERT INTO scenes (id, body) VALUES (?, ?)
		 ON CONFLICT(id) DO UPDATE SET body = excluded.body`, scene.ID, scene)
}

// LoadStory resolves a story catalog entry.
func (r *Repository) LoadStory(ctx context.Context, storyID string) (*domain.Story, error) {
	var s domain.Story
	err := r.get(ctx, `SELECT body FROM stories WHERE id = ?`, storyID, &s)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("story %s: %w", storyID, domain.ErrStoryNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load story %s: %w", storyID, err)
	}
	return &s, nil
}

// SaveStory stores a story under its id.
func (r *Repository) SaveStory(ctx context.Context, story *domain.Story) error {
	return r.put(ctx, `INSERT INTO stories (id, body) VALUES (?, ?)
		 ON CONFLICT(id) DO UPDATE SET body = excluded.body`, story.ID, story)
}

func (r *Repository) get(ctx context.Context, query, id string, v any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	var body string
	if err := r.sqlDB.QueryRowContext(ctx, query, id).Scan(&body); err != nil {
		return err
	}
	return json.Unmarshal([]byte(body), v)
}

func (r *Repository) put(ctx context.Context, query, id string, v any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if id == "" {
		return fmt.Errorf("id is required")
	}
	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", id, err)
	}
	if _, err := r.sqlDB.ExecContext(ctx, query, id, string(body)); err != nil {
		return fmt.Errorf("save %s: %w", id, err)
	}
	return nil
}
