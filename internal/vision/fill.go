package vision

import (
	"fmt"
	"image"
	"image/color"

	"gocv.io/x/gocv"

	"github.com/maulik225/NotumAi/internal/annotation"
)

// Rasterizer fills polygons into single-channel label images with
// OpenCV's fillPoly. Boundary pixels belong to the polygon and later
// polygons overwrite earlier ones.
type Rasterizer struct{}

// NewRasterizer returns a Rasterizer.
func NewRasterizer() *Rasterizer {
	return &Rasterizer{}
}

// Fill returns a w x h image, 0 everywhere except where a polygon in
// polygons was painted with the matching entry of values.
func (r *Rasterizer) Fill(w, h int, polygons [][]annotation.Point, values []uint8) (*image.Gray, error) {
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("invalid canvas size %dx%d", w, h)
	}
	canvas := gocv.Zeros(h, w, gocv.MatTypeCV8U)
	defer canvas.Close()

	for i, pts := range polygons {
		if len(pts) == 0 || i >= len(values) {
			continue
		}
		pv := gocv.NewPointsVectorFromPoints([][]image.Point{toImage(pts)})
		v := values[i]
		gocv.FillPoly(&canvas, pv, color.RGBA{R: v, G: v, B: v, A: v})
		pv.Close()
	}

	img := image.NewGray(image.Rect(0, 0, w, h))
	copy(img.Pix, canvas.ToBytes())
	return img, nil
}
