// Package segment turns point prompts into polygon proposals using a
// promptable segmentation model. Image embeddings are cached by content
// hash so revisiting an image skips the expensive encoder.
package segment

import (
	"context"
	"image"

	"github.com/maulik225/NotumAi/internal/annotation"
)

// Embedding is the encoder output for one image. Its layout is private to
// the Model that produced it.
type Embedding struct {
	Data  []float32
	Shape []int
}

// Coord is a prompt location in the encoded image frame.
type Coord struct {
	X, Y float64
}

// Prediction is the outline of a single predicted mask in the encoded image
// frame. An empty mask gives an empty Polygon.
type Prediction struct {
	Polygon []annotation.Point
	Score   float64
}

// Model is a promptable segmentation model split into an image encoder and
// a prompt decoder.
type Model interface {
	// Name describes the runtime, e.g. "tflite cpu x4".
	Name() string
	Encode(ctx context.Context, img *image.NRGBA) (Embedding, error)
	// Predict asks for a single mask for the given foreground points and
	// returns the simplified outline of its largest region. encW and encH
	// are the dimensions of the image passed to Encode.
	Predict(ctx context.Context, emb Embedding, encW, encH int, points []Coord) (Prediction, error)
}
