package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/maulik225/NotumAi/internal/annotation"
)

// --- Annotations ---

// SaveAnnotations replaces the annotation list stored for one image.
func (s *Store) SaveAnnotations(ctx context.Context, projectID int64, imageName string, anns []annotation.Annotation) error {
	if anns == nil {
		anns = []annotation.Annotation{}
	}
	b, err := json.Marshal(anns)
	if err != nil {
		return fmt.Errorf("marshalling annotations: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO annotations_v2 (project_id, image_name, data, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(project_id, image_name) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		projectID, imageName, string(b), time.Now().UTC().Format(time.RFC3339),
	)
	return err
}

// LoadAnnotations returns the stored list for one image, or an empty list.
func (s *Store) LoadAnnotations(ctx context.Context, projectID int64, imageName string) ([]annotation.Annotation, error) {
	var raw string
	err := s.db.QueryRowContext(ctx,
		`SELECT data FROM annotations_v2 WHERE project_id = ? AND image_name = ?`, projectID, imageName,
	).Scan(&raw)
	if err == sql.ErrNoRows {
		return []annotation.Annotation{}, nil
	}
	if err != nil {
		return nil, err
	}
	return decodeAnnotations(raw)
}

// AnnotationRecords returns every stored record of a project ordered by image name.
func (s *Store) AnnotationRecords(ctx context.Context, projectID int64) ([]annotation.Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT image_name, data FROM annotations_v2 WHERE project_id = ? ORDER BY image_name ASC`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []annotation.Record
	for rows.Next() {
		var name, raw string
		if err := rows.Scan(&name, &raw); err != nil {
			return nil, err
		}
		anns, err := decodeAnnotations(raw)
		if err != nil {
			return nil, fmt.Errorf("record %q: %w", name, err)
		}
		records = append(records, annotation.Record{ImageName: name, Annotations: anns})
	}
	return records, rows.Err()
}

// Stats scans all annotation records of a project. Annotations without a
// class name are counted as "Unknown".
func (s *Store) Stats(ctx context.Context, projectID int64) (ProjectStats, error) {
	paths, err := s.ImagePaths(ctx, projectID)
	if err != nil {
		return ProjectStats{}, err
	}
	records, err := s.AnnotationRecords(ctx, projectID)
	if err != nil {
		return ProjectStats{}, err
	}

	stats := ProjectStats{
		TotalImages:       len(paths),
		AnnotatedCount:    len(records),
		ClassDistribution: make(map[string]int),
	}
	for _, r := range records {
		for _, a := range r.Annotations {
			name := a.ClassName
			if name == "" {
				name = "Unknown"
			}
			stats.ClassDistribution[name]++
		}
	}
	return stats, nil
}

func decodeAnnotations(raw string) ([]annotation.Annotation, error) {
	anns := []annotation.Annotation{}
	if raw == "" || raw == "null" {
		return anns, nil
	}
	if err := json.Unmarshal([]byte(raw), &anns); err != nil {
		return nil, fmt.Errorf("parsing annotations: %w", err)
	}
	if anns == nil {
		anns = []annotation.Annotation{}
	}
	return anns, nil
}
