package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/maulik225/NotumAi/internal/annotation"
)

// --- Projects ---

// CreateProject inserts a project together with its empty state row.
func (s *Store) CreateProject(ctx context.Context, name, path string) (Project, error) {
	now := time.Now().UTC().Truncate(time.Second)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Project{}, fmt.Errorf("beginning create transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO projects (name, folder_path, created_at) VALUES (?, ?, ?)`,
		name, path, now.Format(time.RFC3339),
	)
	if err != nil {
		return Project{}, fmt.Errorf("inserting project: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return Project{}, fmt.Errorf("reading project id: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO project_state (project_id, last_index, categories, image_paths) VALUES (?, 0, '[]', '{}')`, id,
	); err != nil {
		return Project{}, fmt.Errorf("inserting project state: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return Project{}, fmt.Errorf("committing project: %w", err)
	}
	return Project{ID: id, Name: name, Path: path, CreatedAt: now}, nil
}

func (s *Store) GetProject(ctx context.Context, id int64) (Project, error) {
	var p Project
	var createdAt string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, folder_path, created_at FROM projects WHERE id = ?`, id,
	).Scan(&p.ID, &p.Name, &p.Path, &createdAt)
	if err == sql.ErrNoRows {
		return Project{}, ErrNotFound
	}
	if err != nil {
		return Project{}, err
	}
	if p.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return Project{}, fmt.Errorf("parsing created_at: %w", err)
	}
	return p, nil
}

// ListProjects returns all projects, newest first.
func (s *Store) ListProjects(ctx context.Context) ([]Project, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, folder_path, created_at FROM projects ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []Project
	for rows.Next() {
		var p Project
		var createdAt string
		if err := rows.Scan(&p.ID, &p.Name, &p.Path, &createdAt); err != nil {
			return nil, err
		}
		t, err := time.Parse(time.RFC3339, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		p.CreatedAt = t
		results = append(results, p)
	}
	return results, rows.Err()
}

// DeleteProject removes the project, its state and all of its annotations.
// Orphaned state or annotation rows are removed even when the project row
// itself is already gone, in which case ErrNotFound is still reported.
func (s *Store) DeleteProject(ctx context.Context, id int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning delete transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `DELETE FROM projects WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting project: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM project_state WHERE project_id = ?`, id); err != nil {
		return fmt.Errorf("deleting project state: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM annotations_v2 WHERE project_id = ?`, id); err != nil {
		return fmt.Errorf("deleting annotations: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing delete: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// --- Project state ---

// GetProjectState returns ErrNotFound when the project has no state row.
func (s *Store) GetProjectState(ctx context.Context, id int64) (ProjectState, error) {
	var st ProjectState
	var cats, paths sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT last_index, categories, image_paths FROM project_state WHERE project_id = ?`, id,
	).Scan(&st.LastIndex, &cats, &paths)
	if err == sql.ErrNoRows {
		return ProjectState{}, ErrNotFound
	}
	if err != nil {
		return ProjectState{}, err
	}
	if st.Categories, err = decodeCategories(cats.String); err != nil {
		return ProjectState{}, err
	}
	if st.ImagePaths, err = decodeImagePaths(paths.String); err != nil {
		return ProjectState{}, err
	}
	return st, nil
}

// SaveProjectState writes only the fields set in u. The project must exist.
func (s *Store) SaveProjectState(ctx context.Context, id int64, u StateUpdate) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning state transaction: %w", err)
	}
	defer tx.Rollback()

	var exists int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM projects WHERE id = ?`, id).Scan(&exists); err != nil {
		return fmt.Errorf("checking project %d: %w", id, err)
	}
	if exists == 0 {
		return ErrNotFound
	}

	if u.LastIndex != nil {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO project_state (project_id, last_index) VALUES (?, ?)
			ON CONFLICT(project_id) DO UPDATE SET last_index = excluded.last_index`,
			id, *u.LastIndex,
		); err != nil {
			return fmt.Errorf("saving last index: %w", err)
		}
	}
	if u.Categories != nil {
		cats := *u.Categories
		if cats == nil {
			cats = []annotation.Category{}
		}
		b, err := json.Marshal(cats)
		if err != nil {
			return fmt.Errorf("marshalling categories: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO project_state (project_id, categories) VALUES (?, ?)
			ON CONFLICT(project_id) DO UPDATE SET categories = excluded.categories`,
			id, string(b),
		); err != nil {
			return fmt.Errorf("saving categories: %w", err)
		}
	}
	if u.ImagePaths != nil {
		paths := *u.ImagePaths
		if paths == nil {
			paths = map[string]string{}
		}
		b, err := json.Marshal(paths)
		if err != nil {
			return fmt.Errorf("marshalling image paths: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO project_state (project_id, image_paths) VALUES (?, ?)
			ON CONFLICT(project_id) DO UPDATE SET image_paths = excluded.image_paths`,
			id, string(b),
		); err != nil {
			return fmt.Errorf("saving image paths: %w", err)
		}
	}

	return tx.Commit()
}

// Categories returns the ordered category list, empty when the project has no state.
func (s *Store) Categories(ctx context.Context, id int64) ([]annotation.Category, error) {
	var raw sql.NullString
	err := s.db.QueryRowContext(ctx, `SELECT categories FROM project_state WHERE project_id = ?`, id).Scan(&raw)
	if err == sql.ErrNoRows {
		return []annotation.Category{}, nil
	}
	if err != nil {
		return nil, err
	}
	return decodeCategories(raw.String)
}

// ImagePaths returns the image name to filesystem path map, empty when the
// project has no state.
func (s *Store) ImagePaths(ctx context.Context, id int64) (map[string]string, error) {
	var raw sql.NullString
	err := s.db.QueryRowContext(ctx, `SELECT image_paths FROM project_state WHERE project_id = ?`, id).Scan(&raw)
	if err == sql.ErrNoRows {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, err
	}
	return decodeImagePaths(raw.String)
}

func decodeCategories(raw string) ([]annotation.Category, error) {
	cats := []annotation.Category{}
	if raw == "" {
		return cats, nil
	}
	if err := json.Unmarshal([]byte(raw), &cats); err != nil {
		return nil, fmt.Errorf("parsing categories: %w", err)
	}
	if cats == nil {
		cats = []annotation.Category{}
	}
	return cats, nil
}

func decodeImagePaths(raw string) (map[string]string, error) {
	paths := map[string]string{}
	if raw == "" {
		return paths, nil
	}
	if err := json.Unmarshal([]byte(raw), &paths); err != nil {
		return nil, fmt.Errorf("parsing image paths: %w", err)
	}
	if paths == nil {
		paths = map[string]string{}
	}
	return paths, nil
}
