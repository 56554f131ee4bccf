package annotation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewCategoryIndex_OneBasedInListOrder(t *testing.T) {
	idx := NewCategoryIndex([]Category{{Name: "cat"}, {Name: "dog"}, {Name: "bird"}})

	assert.Equal(t, 1, idx.Lookup("cat"))
	assert.Equal(t, 2, idx.Lookup("dog"))
	assert.Equal(t, 3, idx.Lookup("bird"))
}

func TestCategoryIndex_UnknownIsZero(t *testing.T) {
	idx := NewCategoryIndex([]Category{{Name: "cat"}})

	assert.Equal(t, Unknown, idx.Lookup("horse"))
	assert.Equal(t, Unknown, idx.Lookup(""))
}

func TestNewCategoryIndex_DuplicateNameLastWins(t *testing.T) {
	idx := NewCategoryIndex([]Category{{Name: "cat"}, {Name: "dog"}, {Name: "cat"}})

	assert.Equal(t, 3, idx.Lookup("cat"))
}

func TestAnnotation_IsPolygon(t *testing.T) {
	line := Annotation{ClassName: "cat", Points: []Point{{0, 0}, {5, 5}}}
	tri := Annotation{ClassName: "cat", Points: []Point{{0, 0}, {5, 5}, {5, 0}}}

	assert.False(t, line.IsPolygon())
	assert.True(t, tri.IsPolygon())
}
