package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maulik225/NotumAi/internal/annotation"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	require.NoError(t, err, "Open(:memory:)")
	t.Cleanup(func() { s.Close() })
	return s
}

// TestMigrationsIdempotent runs Open twice on the same database and verifies
// the schema_version count stays correct (migration not re-applied).
func TestMigrationsIdempotent(t *testing.T) {
	dir := t.TempDir()

	s1, err := Open(dir)
	require.NoError(t, err)
	v1, err := s1.AppliedMigrations()
	require.NoError(t, err)
	s1.Close()

	s2, err := Open(dir)
	require.NoError(t, err)
	defer s2.Close()
	v2, err := s2.AppliedMigrations()
	require.NoError(t, err)

	assert.Equal(t, v1, v2)
}

func TestMigrationsOrdered(t *testing.T) {
	s := openTestStore(t)

	versions, err := s.AppliedMigrations()
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, versions)
}

func TestIndexesExist(t *testing.T) {
	s := openTestStore(t)

	var name string
	err := s.db.QueryRow(
		`SELECT name FROM sqlite_master WHERE type = 'index' AND name = 'idx_projects_created'`,
	).Scan(&name)
	require.NoError(t, err)
	assert.Equal(t, "idx_projects_created", name)
}

func TestCreateAndListProjects(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	first, err := s.CreateProject(ctx, "birds", "/data/birds")
	require.NoError(t, err)
	second, err := s.CreateProject(ctx, "cars", "/data/cars")
	require.NoError(t, err)
	assert.Greater(t, second.ID, first.ID)

	projects, err := s.ListProjects(ctx)
	require.NoError(t, err)
	require.Len(t, projects, 2)
	// Same-second creations fall back to id order, newest first.
	assert.Equal(t, "cars", projects[0].Name)
	assert.Equal(t, "birds", projects[1].Name)
	assert.Equal(t, "/data/birds", projects[1].Path)
	assert.False(t, projects[1].CreatedAt.IsZero())

	got, err := s.GetProject(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, got.ID)
	assert.Equal(t, first.Name, got.Name)
	assert.True(t, first.CreatedAt.Equal(got.CreatedAt))
}

func TestGetProjectNotFound(t *testing.T) {
	s := openTestStore(t)
	_, err := s.GetProject(context.Background(), 42)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestNewProjectHasEmptyState(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	p, err := s.CreateProject(ctx, "p", "/tmp/p")
	require.NoError(t, err)

	st, err := s.GetProjectState(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, st.LastIndex)
	assert.Empty(t, st.Categories)
	assert.NotNil(t, st.Categories)
	assert.Empty(t, st.ImagePaths)
}

func TestSaveProjectStatePartial(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	p, err := s.CreateProject(ctx, "p", "/tmp/p")
	require.NoError(t, err)

	cats := []annotation.Category{{Name: "cat", Color: "#ff0000"}, {Name: "dog"}}
	paths := map[string]string{"a.jpg": "/tmp/p/a.jpg"}
	require.NoError(t, s.SaveProjectState(ctx, p.ID, StateUpdate{Categories: &cats, ImagePaths: &paths}))

	idx := 7
	require.NoError(t, s.SaveProjectState(ctx, p.ID, StateUpdate{LastIndex: &idx}))

	st, err := s.GetProjectState(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 7, st.LastIndex)
	assert.Equal(t, cats, st.Categories)
	assert.Equal(t, paths, st.ImagePaths)

	gotCats, err := s.Categories(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, cats, gotCats)
}

func TestSaveProjectStateUnknownProject(t *testing.T) {
	s := openTestStore(t)
	idx := 1
	err := s.SaveProjectState(context.Background(), 99, StateUpdate{LastIndex: &idx})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAnnotationsRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	anns := []annotation.Annotation{
		{ClassName: "cat", Points: []annotation.Point{{X: 1, Y: 2}, {X: 10, Y: 2}, {X: 10, Y: 20}}},
		{ClassName: "dog", Points: []annotation.Point{{X: 5, Y: 5}}, Color: "#00ff00"},
	}
	require.NoError(t, s.SaveAnnotations(ctx, 1, "a.jpg", anns))

	got, err := s.LoadAnnotations(ctx, 1, "a.jpg")
	require.NoError(t, err)
	assert.Equal(t, anns, got)

	// Saving again replaces rather than appends.
	require.NoError(t, s.SaveAnnotations(ctx, 1, "a.jpg", anns[:1]))
	got, err = s.LoadAnnotations(ctx, 1, "a.jpg")
	require.NoError(t, err)
	assert.Equal(t, anns[:1], got)
}

func TestLoadAnnotationsMissing(t *testing.T) {
	s := openTestStore(t)

	got, err := s.LoadAnnotations(context.Background(), 1, "nope.jpg")
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestAnnotationRecordsOrdered(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for _, name := range []string{"c.jpg", "a.jpg", "b.jpg"} {
		require.NoError(t, s.SaveAnnotations(ctx, 3, name, nil))
	}
	require.NoError(t, s.SaveAnnotations(ctx, 4, "other.jpg", nil))

	records, err := s.AnnotationRecords(ctx, 3)
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "a.jpg", records[0].ImageName)
	assert.Equal(t, "b.jpg", records[1].ImageName)
	assert.Equal(t, "c.jpg", records[2].ImageName)
	assert.NotNil(t, records[0].Annotations)
}

func TestStats(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	p, err := s.CreateProject(ctx, "p", "/tmp/p")
	require.NoError(t, err)
	paths := map[string]string{"a.jpg": "/a", "b.jpg": "/b", "c.jpg": "/c"}
	require.NoError(t, s.SaveProjectState(ctx, p.ID, StateUpdate{ImagePaths: &paths}))

	require.NoError(t, s.SaveAnnotations(ctx, p.ID, "a.jpg", []annotation.Annotation{
		{ClassName: "cat"}, {ClassName: "cat"}, {ClassName: ""},
	}))
	require.NoError(t, s.SaveAnnotations(ctx, p.ID, "b.jpg", []annotation.Annotation{{ClassName: "dog"}}))

	stats, err := s.Stats(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.TotalImages)
	assert.Equal(t, 2, stats.AnnotatedCount)
	assert.Equal(t, map[string]int{"cat": 2, "dog": 1, "Unknown": 1}, stats.ClassDistribution)
}

func TestDeleteProjectCascades(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	p, err := s.CreateProject(ctx, "p", "/tmp/p")
	require.NoError(t, err)
	keep, err := s.CreateProject(ctx, "keep", "/tmp/keep")
	require.NoError(t, err)
	require.NoError(t, s.SaveAnnotations(ctx, p.ID, "a.jpg", []annotation.Annotation{{ClassName: "cat"}}))
	require.NoError(t, s.SaveAnnotations(ctx, keep.ID, "a.jpg", []annotation.Annotation{{ClassName: "dog"}}))

	require.NoError(t, s.DeleteProject(ctx, p.ID))

	_, err = s.GetProject(ctx, p.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.GetProjectState(ctx, p.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	records, err := s.AnnotationRecords(ctx, p.ID)
	require.NoError(t, err)
	assert.Empty(t, records)

	records, err = s.AnnotationRecords(ctx, keep.ID)
	require.NoError(t, err)
	assert.Len(t, records, 1)

	assert.ErrorIs(t, s.DeleteProject(ctx, p.ID), ErrNotFound)
}

func TestWipe(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	p, err := s.CreateProject(ctx, "p", "/tmp/p")
	require.NoError(t, err)
	require.NoError(t, s.SaveAnnotations(ctx, p.ID, "a.jpg", nil))

	require.NoError(t, s.Wipe())

	projects, err := s.ListProjects(ctx)
	require.NoError(t, err)
	assert.Empty(t, projects)

	again, err := s.CreateProject(ctx, "again", "/tmp/again")
	require.NoError(t, err)
	assert.Equal(t, int64(1), again.ID)
}
