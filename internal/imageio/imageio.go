// Package imageio decodes source images and prepares them for the
// segmentation model and the exporters.
package imageio

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Decode decodes raw image bytes in any registered raster format, applying
// the EXIF orientation tag when present.
func Decode(data []byte) (image.Image, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decoding image: %w", err)
	}
	return img, nil
}

// Open reads and decodes the image at path.
func Open(path string) (image.Image, error) {
	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("opening image %s: %w", path, err)
	}
	return img, nil
}

// ToRGB returns an 8-bit non-premultiplied RGBA copy of img with its origin at (0,0).
// The alpha channel is left as decoded; consumers read only R, G and B.
func ToRGB(img image.Image) *image.NRGBA {
	return imaging.Clone(img)
}

// FitLongEdge downscales img so its longer edge is at most maxSize, keeping
// the aspect ratio. It returns the (possibly unchanged) image and the scale
// factor applied. Images that already fit are never upscaled.
func FitLongEdge(img *image.NRGBA, maxSize int) (*image.NRGBA, float64) {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	long := max(w, h)
	if maxSize <= 0 || long <= maxSize {
		return img, 1
	}
	nw := max(1, w*maxSize/long)
	nh := max(1, h*maxSize/long)
	return imaging.Resize(img, nw, nh, imaging.Linear), float64(maxSize) / float64(long)
}

// SaveGray writes a single-channel image; the format follows the file extension.
func SaveGray(img *image.Gray, path string) error {
	if err := imaging.Save(img, path); err != nil {
		return fmt.Errorf("saving %s: %w", path, err)
	}
	return nil
}
