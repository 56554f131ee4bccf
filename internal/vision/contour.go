// Package vision holds the OpenCV-backed mask routines: turning a model's
// mask into a polygon and rasterising polygons into label images.
package vision

import (
	"errors"
	"fmt"
	"image"
	"runtime"

	"gocv.io/x/gocv"

	"github.com/maulik225/NotumAi/internal/annotation"
)

// SimplifyRatio scales a contour's perimeter into the ApproxPolyDP epsilon.
const SimplifyRatio = 0.002

// TracePolygon binarises values (row-major, w*h) at threshold, keeps the
// external contour with the largest area and simplifies it. A mask with no
// foreground gives a nil polygon.
func TracePolygon(values []float32, w, h int, threshold float32) ([]annotation.Point, error) {
	if w <= 0 || h <= 0 || len(values) < w*h {
		return nil, errors.New("mask size does not match its values")
	}
	buf := make([]byte, w*h)
	for i, v := range values[:w*h] {
		if v > threshold {
			buf[i] = 255
		}
	}
	mask, err := gocv.NewMatFromBytes(h, w, gocv.MatTypeCV8U, buf)
	if err != nil {
		return nil, fmt.Errorf("building mask: %w", err)
	}
	defer mask.Close()
	defer runtime.KeepAlive(buf)

	contours := gocv.FindContours(mask, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()
	if contours.Size() == 0 {
		return nil, nil
	}

	best, maxArea := 0, -1.0
	for i := 0; i < contours.Size(); i++ {
		if area := gocv.ContourArea(contours.At(i)); area > maxArea {
			best, maxArea = i, area
		}
	}

	contour := contours.At(best)
	approx := gocv.ApproxPolyDP(contour, SimplifyRatio*gocv.ArcLength(contour, true), true)
	defer approx.Close()
	return fromImage(approx.ToPoints()), nil
}

func fromImage(pts []image.Point) []annotation.Point {
	out := make([]annotation.Point, len(pts))
	for i, p := range pts {
		out[i] = annotation.Point{X: p.X, Y: p.Y}
	}
	return out
}

func toImage(pts []annotation.Point) []image.Point {
	out := make([]image.Point, len(pts))
	for i, p := range pts {
		out[i] = image.Pt(p.X, p.Y)
	}
	return out
}
