// Package sam holds the image and prompt transforms shared by
// Segment-Anything style encoder/decoder pairs: the image is scaled so its
// long edge fills a square input, normalised and zero padded bottom-right.
package sam

import (
	"image"
	"math"

	"github.com/disintegration/imaging"

	"github.com/maulik225/NotumAi/internal/segment"
)

// Normalisation constants of the reference image encoder, RGB order.
var (
	PixelMean = [3]float32{123.675, 116.28, 103.53}
	PixelStd  = [3]float32{58.395, 57.12, 57.375}
)

// Frame maps the encoded image onto the model's square input.
type Frame struct {
	Size  int     // side of the square model input
	Scale float64 // encoded image -> model input
	W, H  int     // scaled image size inside the square
}

// NewFrame fits an encW x encH image into a size x size input.
func NewFrame(encW, encH, size int) Frame {
	long := max(encW, encH, 1)
	scale := float64(size) / float64(long)
	return Frame{
		Size:  size,
		Scale: scale,
		W:     max(1, int(math.Round(float64(encW)*scale))),
		H:     max(1, int(math.Round(float64(encH)*scale))),
	}
}

// Pixels returns the normalised model input for img. With chw the layout is
// [3][Size][Size], otherwise [Size][Size][3]. Padding is 0 after
// normalisation.
func (f Frame) Pixels(img *image.NRGBA, chw bool) []float32 {
	if b := img.Bounds(); b.Dx() != f.W || b.Dy() != f.H {
		img = imaging.Resize(img, f.W, f.H, imaging.Linear)
	}
	plane := f.Size * f.Size
	out := make([]float32, plane*3)
	for y := 0; y < f.H && y < f.Size; y++ {
		row := img.Pix[y*img.Stride:]
		for x := 0; x < f.W && x < f.Size; x++ {
			for c := 0; c < 3; c++ {
				v := (float32(row[x*4+c]) - PixelMean[c]) / PixelStd[c]
				if chw {
					out[c*plane+y*f.Size+x] = v
				} else {
					out[(y*f.Size+x)*3+c] = v
				}
			}
		}
	}
	return out
}

// Prompt converts foreground points in the encoded frame into decoder
// inputs. A padding point labelled -1 is appended, as decoders exported
// without a box prompt expect.
func (f Frame) Prompt(points []segment.Coord) (coords, labels []float32) {
	coords = make([]float32, 0, 2*(len(points)+1))
	labels = make([]float32, 0, len(points)+1)
	for _, p := range points {
		coords = append(coords, float32(p.X*f.Scale), float32(p.Y*f.Scale))
		labels = append(labels, 1)
	}
	coords = append(coords, 0, 0)
	labels = append(labels, -1)
	return coords, labels
}

// Upsample resamples a mask covering the whole square input (lowW x lowH,
// row-major) back to the encoded image, encW x encH, with bilinear
// interpolation.
func (f Frame) Upsample(mask []float32, lowW, lowH, encW, encH int) []float32 {
	out := make([]float32, encW*encH)
	if lowW <= 0 || lowH <= 0 || len(mask) < lowW*lowH {
		return out
	}
	// encoded pixel -> model input -> mask cell
	kx := f.Scale * float64(lowW) / float64(f.Size)
	ky := f.Scale * float64(lowH) / float64(f.Size)
	for y := 0; y < encH; y++ {
		sy := (float64(y)+0.5)*ky - 0.5
		y0, wy := split(sy, lowH)
		y1 := min(y0+1, lowH-1)
		for x := 0; x < encW; x++ {
			sx := (float64(x)+0.5)*kx - 0.5
			x0, wx := split(sx, lowW)
			x1 := min(x0+1, lowW-1)

			top := mask[y0*lowW+x0]*(1-wx) + mask[y0*lowW+x1]*wx
			bottom := mask[y1*lowW+x0]*(1-wx) + mask[y1*lowW+x1]*wx
			out[y*encW+x] = top*(1-wy) + bottom*wy
		}
	}
	return out
}

// split returns the clamped integer cell and fractional weight for s.
// SingleMask returns the first lowW x lowH mask of a decoder's [1,K,h,w]
// output and its predicted IoU. Mask 0 is the single-mask prediction; the
// other K-1 candidates are ignored whatever their scores.
func SingleMask(masks, scores []float32, lowW, lowH int) ([]float32, float64) {
	n := lowW * lowH
	if n <= 0 || len(masks) < n {
		return nil, 0
	}
	score := 0.0
	if len(scores) > 0 {
		score = float64(scores[0])
	}
	return masks[:n], score
}

func split(s float64, n int) (int, float32) {
	if s <= 0 {
		return 0, 0
	}
	i := int(s)
	if i >= n-1 {
		return n - 1, 0
	}
	return i, float32(s - float64(i))
}
