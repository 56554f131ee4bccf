package vision

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maulik225/NotumAi/internal/annotation"
)

func rectValues(w, h int, rects ...[4]int) []float32 {
	values := make([]float32, w*h)
	for i := range values {
		values[i] = -3
	}
	for _, r := range rects {
		for y := r[1]; y <= r[3]; y++ {
			for x := r[0]; x <= r[2]; x++ {
				values[y*w+x] = 3
			}
		}
	}
	return values
}

func TestTracePolygon_Rectangle(t *testing.T) {
	poly, err := TracePolygon(rectValues(20, 12, [4]int{5, 5, 14, 9}), 20, 12, 0)
	require.NoError(t, err)

	assert.ElementsMatch(t, []annotation.Point{{X: 5, Y: 5}, {X: 14, Y: 5}, {X: 14, Y: 9}, {X: 5, Y: 9}}, poly)
}

func TestTracePolygon_KeepsLargestComponent(t *testing.T) {
	values := rectValues(40, 40, [4]int{1, 1, 3, 3}, [4]int{10, 10, 30, 25})

	poly, err := TracePolygon(values, 40, 40, 0)
	require.NoError(t, err)

	assert.ElementsMatch(t, []annotation.Point{{X: 10, Y: 10}, {X: 30, Y: 10}, {X: 30, Y: 25}, {X: 10, Y: 25}}, poly)
}

func TestTracePolygon_EmptyMask(t *testing.T) {
	poly, err := TracePolygon(rectValues(8, 8), 8, 8, 0)
	require.NoError(t, err)
	assert.Empty(t, poly)
}

func TestTracePolygon_SizeMismatch(t *testing.T) {
	_, err := TracePolygon(make([]float32, 10), 8, 8, 0)
	assert.Error(t, err)
}

func TestRasterizer_FillInclusiveAndOrdered(t *testing.T) {
	r := NewRasterizer()
	square := func(x0, y0, x1, y1 int) []annotation.Point {
		return []annotation.Point{{X: x0, Y: y0}, {X: x1, Y: y0}, {X: x1, Y: y1}, {X: x0, Y: y1}}
	}

	img, err := r.Fill(60, 60, [][]annotation.Point{square(10, 10, 50, 50), square(40, 40, 55, 55)}, []uint8{1, 2})
	require.NoError(t, err)

	assert.Equal(t, uint8(1), img.GrayAt(10, 10).Y)
	assert.Equal(t, uint8(1), img.GrayAt(30, 30).Y)
	assert.Equal(t, uint8(2), img.GrayAt(45, 45).Y)
	assert.Equal(t, uint8(2), img.GrayAt(55, 55).Y)
	assert.Equal(t, uint8(0), img.GrayAt(9, 30).Y)
	assert.Equal(t, uint8(0), img.GrayAt(56, 56).Y)

	ones := 0
	for _, v := range img.Pix {
		if v == 1 {
			ones++
		}
	}
	assert.Equal(t, 41*41-11*11, ones)
}

func TestRasterizer_ClipsOutsideImage(t *testing.T) {
	poly := []annotation.Point{{X: -5, Y: -5}, {X: 20, Y: -5}, {X: 20, Y: 20}, {X: -5, Y: 20}}

	img, err := NewRasterizer().Fill(10, 10, [][]annotation.Point{poly}, []uint8{7})
	require.NoError(t, err)
	for _, v := range img.Pix {
		assert.Equal(t, uint8(7), v)
	}
}

func TestRasterizer_InvalidSize(t *testing.T) {
	_, err := NewRasterizer().Fill(0, 10, nil, nil)
	assert.Error(t, err)
}
