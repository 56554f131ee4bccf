// Package export turns stored annotations into dataset formats: COCO, VOC,
// YOLO and raw label masks.
package export

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/maulik225/NotumAi/internal/annotation"
	"github.com/maulik225/NotumAi/internal/imageio"
)

// Format names an export format.
type Format string

const (
	FormatCOCO  Format = "coco"
	FormatVOC   Format = "voc"
	FormatYOLO  Format = "yolo"
	FormatMasks Format = "masks"
)

// Formats lists every supported format.
var Formats = []Format{FormatCOCO, FormatVOC, FormatYOLO, FormatMasks}

// ErrUnsupportedFormat is returned for format names outside Formats.
var ErrUnsupportedFormat = errors.New("unsupported format")

// ParseFormat validates s against the supported formats.
func ParseFormat(s string) (Format, error) {
	for _, f := range Formats {
		if string(f) == s {
			return f, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, s)
}

// Input is everything a converter reads. It is loaded once per export.
type Input struct {
	Categories []annotation.Category
	Index      annotation.CategoryIndex
	Records    []annotation.Record
	ImagePaths map[string]string
	// Sizes[i] is the pixel size of Records[i]; missing entries fall back to
	// the default dimensions.
	Sizes []image.Point
}

func (in *Input) size(i int) (w, h int) {
	if i < len(in.Sizes) {
		return in.Sizes[i].X, in.Sizes[i].Y
	}
	return imageio.DefaultWidth, imageio.DefaultHeight
}

// Summary counts what a converter produced.
type Summary struct {
	Files   int
	Skipped int
}

// Converter writes one export format into dir.
type Converter interface {
	Convert(ctx context.Context, dir string, in *Input) (Summary, error)
}

// ErrMasksUnavailable is returned for the masks format when no Rasterizer
// was configured.
var ErrMasksUnavailable = errors.New("mask export unavailable")

// Rasterizer fills polygons into a w x h single-channel image. polygons[i]
// is painted with values[i]; later polygons cover earlier ones and boundary
// pixels belong to the polygon.
type Rasterizer interface {
	Fill(w, h int, polygons [][]annotation.Point, values []uint8) (*image.Gray, error)
}

// NewConverter returns the converter registered for f. raster is only
// needed by the masks format.
func NewConverter(f Format, logger *slog.Logger, raster Rasterizer) (Converter, error) {
	if logger == nil {
		logger = slog.Default()
	}
	switch f {
	case FormatCOCO:
		return &cocoConverter{logger: logger}, nil
	case FormatVOC:
		return &vocConverter{logger: logger}, nil
	case FormatYOLO:
		return &yoloConverter{logger: logger}, nil
	case FormatMasks:
		if raster == nil {
			return nil, ErrMasksUnavailable
		}
		return &maskConverter{raster: raster, logger: logger}, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, f)
}

// artifactNames hands out output file names for one export run. Images
// whose names map to the same artifact, such as a/x.jpg and b/x.jpg or
// x.jpg and x.png, get a numeric suffix instead of overwriting each other.
type artifactNames struct {
	used   map[string]bool
	logger *slog.Logger
}

func newArtifactNames(logger *slog.Logger) *artifactNames {
	return &artifactNames{used: make(map[string]bool), logger: logger}
}

func (a *artifactNames) next(imageName, ext string) string {
	name := outputName(imageName, ext)
	if !a.used[name] {
		a.used[name] = true
		return name
	}
	stem := strings.TrimSuffix(name, ext)
	for n := 1; ; n++ {
		alt := fmt.Sprintf("%s_%d%s", stem, n, ext)
		if !a.used[alt] {
			a.used[alt] = true
			a.logger.Warn("output name already used, renaming", "image", imageName, "name", name, "renamed", alt)
			return alt
		}
	}
}

// outputName replaces the extension of the image's file name with ext.
// Directory components are dropped so every artifact lands inside the
// export directory.
func outputName(imageName, ext string) string {
	base := filepath.Base(imageName)
	if stem := strings.TrimSuffix(base, filepath.Ext(base)); stem != "" {
		base = stem
	}
	return base + ext
}
