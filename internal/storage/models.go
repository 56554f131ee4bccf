package storage

import (
	"errors"
	"time"

	"github.com/maulik225/NotumAi/internal/annotation"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

type Project struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Path      string    `json:"path"`
	CreatedAt time.Time `json:"created_at"`
}

type ProjectState struct {
	LastIndex  int                   `json:"lastIndex"`
	Categories []annotation.Category `json:"categories"`
	ImagePaths map[string]string     `json:"imagePaths"`
}

// StateUpdate is a partial ProjectState write. Nil fields are left untouched.
type StateUpdate struct {
	LastIndex  *int                   `json:"lastIndex,omitempty"`
	Categories *[]annotation.Category `json:"categories,omitempty"`
	ImagePaths *map[string]string     `json:"imagePaths,omitempty"`
}

// Empty reports whether the update writes nothing.
func (u StateUpdate) Empty() bool {
	return u.LastIndex == nil && u.Categories == nil && u.ImagePaths == nil
}

type ProjectStats struct {
	TotalImages       int            `json:"total_images"`
	AnnotatedCount    int            `json:"annotated_count"`
	ClassDistribution map[string]int `json:"class_distribution"`
}
