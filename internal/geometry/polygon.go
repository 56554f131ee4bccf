// Package geometry implements the integer polygon routines used by the
// exporters and the label assistant: bounding boxes, shoelace area and
// flattening.
package geometry

import (
	"errors"
	"math"

	"github.com/maulik225/NotumAi/internal/annotation"
)

// ErrDegenerate is returned when a polygon has fewer than three vertices.
var ErrDegenerate = errors.New("polygon needs at least 3 points")

// Box is an axis-aligned bounding box in min/max form (inclusive pixel coordinates).
type Box struct {
	MinX, MinY int
	MaxX, MaxY int
}

// Width is MaxX-MinX.
func (b Box) Width() int { return b.MaxX - b.MinX }

// Height is MaxY-MinY.
func (b Box) Height() int { return b.MaxY - b.MinY }

// Area is Width*Height.
func (b Box) Area() int { return b.Width() * b.Height() }

// Clamp restricts the box to [0,w]x[0,h].
func (b Box) Clamp(w, h int) Box {
	return Box{
		MinX: clampInt(b.MinX, 0, w),
		MinY: clampInt(b.MinY, 0, h),
		MaxX: clampInt(b.MaxX, 0, w),
		MaxY: clampInt(b.MaxY, 0, h),
	}
}

// Bounds returns the bounding box of pts. The zero Box is returned for an empty slice.
func Bounds(pts []annotation.Point) Box {
	if len(pts) == 0 {
		return Box{}
	}
	b := Box{MinX: pts[0].X, MinY: pts[0].Y, MaxX: pts[0].X, MaxY: pts[0].Y}
	for _, p := range pts[1:] {
		b.MinX = min(b.MinX, p.X)
		b.MinY = min(b.MinY, p.Y)
		b.MaxX = max(b.MaxX, p.X)
		b.MaxY = max(b.MaxY, p.Y)
	}
	return b
}

// Area returns the absolute enclosed area of the closed polygon pts using the
// shoelace formula.
func Area(pts []annotation.Point) (float64, error) {
	if len(pts) < annotation.MinPolygonPoints {
		return 0, ErrDegenerate
	}
	var sum int64
	n := len(pts)
	for i := range n {
		p, q := pts[i], pts[(i+1)%n]
		sum += int64(p.X)*int64(q.Y) - int64(q.X)*int64(p.Y)
	}
	return math.Abs(float64(sum)) / 2, nil
}

// Flatten returns [x0, y0, x1, y1, ...].
func Flatten(pts []annotation.Point) []int {
	out := make([]int, 0, 2*len(pts))
	for _, p := range pts {
		out = append(out, p.X, p.Y)
	}
	return out
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
