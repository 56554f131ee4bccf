// Package annotation holds the polygon annotation model shared by the store,
// the exporters and the segmentation service.
package annotation

// Point is a pixel coordinate in the source image.
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Annotation is one labelled polygon. Color is carried for the front-end and
// ignored by every exporter.
type Annotation struct {
	ClassName string  `json:"className"`
	Points    []Point `json:"points"`
	Color     string  `json:"color,omitempty"`
}

// MinPolygonPoints is the smallest vertex count that encloses an area.
const MinPolygonPoints = 3

// IsPolygon reports whether the annotation has enough points to be used for
// geometry-dependent output (boxes, segmentation, mask fill).
func (a Annotation) IsPolygon() bool {
	return len(a.Points) >= MinPolygonPoints
}

// Category is a project class. The position in the project's category list
// determines its index.
type Category struct {
	Name  string `json:"name"`
	Color string `json:"color,omitempty"`
}

// Record is the stored annotation list for one image of a project.
type Record struct {
	ImageName   string
	Annotations []Annotation
}
