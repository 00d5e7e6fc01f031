package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aretw0/arbor/pkg/domain"
)

// Store implements ports.ProgressStore on SQLite.
type Store struct {
	sqlDB *sql.DB
}

// Save persists the progress of a session.
func (s *Store) Save(ctx context.Context, sessionID string, progress *domain.Progress) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if sessionID == "" {
		return fmt.Errorf("session id is required")
	}
	body, err := json.Marshal(progress)
	if err != nil {
		return fmt.Errorf("marshal progress: %w", err)
	}
	_, err = s.sqlDB.ExecContext(ctx,
		`INSERT INTO progress (session_id, reader_id, story_id, body, updated_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(session_id) DO UPDATE SET
		   reader_id = excluded.reader_id,
		   story_id = excluded.story_id,
		   body = excluded.body,
		   updated_at = excluded.updated_at`,
		sessionID, progress.ReaderID, progress.StoryID, string(body), progress.UpdatedAt.UTC().UnixMilli())
	if err != nil {
		return fmt.Errorf("save progress %s: %w", sessionID, err)
	}
	return nil
}

// Load retrieves the progress of a session.
func (s *Store) Load(ctx context.Context, sessionID string) (*domain.Progress, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var body string
	err := s.sqlDB.QueryRowContext(ctx, `SELECT body FROM progress WHERE session_id = ?`, sessionID).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("session %s: %w", sessionID, domain.ErrProgressNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load progress %s: %w", sessionID, err)
	}
	var p domain.Progress
	if err := json.Unmarshal([]byte(body), &p); err != nil {
		return nil, fmt.Errorf("unmarshal progress %s: %w", sessionID, err)
	}
	return &p, nil
}

// Delete removes the progress of a session.
func (s *Store) Delete(ctx context.Context, sessionID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := s.sqlDB.ExecContext(ctx, `DELETE FROM progress WHERE session_id = ?`, sessionID); err != nil {
		return fmt.Errorf("delete progress %s: %w", sessionID, err)
	}
	return nil
}

// List returns all stored session ids, most recently updated first.
func (s *Store) List(ctx context.Context) ([]string, error) {
	return s.query(ctx, `SELECT session_id FROM progress ORDER BY updated_at DESC, session_id`)
}

// ListByReader returns the sessions of one reader, most recently updated first.
func (s *Store) ListByReader(ctx context.Context, readerID string) ([]string, error) {
	return s.query(ctx, `SELECT session_id FROM progress WHERE reader_id = ? ORDER BY updated_at DESC, session_id`, readerID)
}

func (s *Store) query(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := s.sqlDB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list progress: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan session id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
