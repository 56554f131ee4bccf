package export

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/maulik225/NotumAi/internal/annotation"
	"github.com/maulik225/NotumAi/internal/geometry"
)

// yoloConverter writes one darknet label file per image with at least one
// valid box: "<class> <xc> <yc> <w> <h>" normalised to the image size.
type yoloConverter struct {
	logger *slog.Logger
}

func (c *yoloConverter) Convert(ctx context.Context, dir string, in *Input) (Summary, error) {
	var sum Summary
	names := newArtifactNames(c.logger)
	for i, rec := range in.Records {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		if len(rec.Annotations) == 0 {
			continue
		}
		w, h := in.size(i)
		if w <= 0 || h <= 0 {
			c.logger.Warn("skipping image with zero size", "image", rec.ImageName)
			sum.Skipped += len(rec.Annotations)
			continue
		}

		var lines []string
		for _, ann := range rec.Annotations {
			catID := in.Index.Lookup(ann.ClassName)
			if catID == annotation.Unknown {
				c.logger.Warn("skipping annotation with unknown class", "class", ann.ClassName, "image", rec.ImageName)
				sum.Skipped++
				continue
			}
			if !ann.IsPolygon() {
				sum.Skipped++
				continue
			}
			box := geometry.Bounds(ann.Points).Clamp(w, h)
			if box.Width() == 0 || box.Height() == 0 {
				c.logger.Warn("skipping box with no area inside the image", "class", ann.ClassName, "image", rec.ImageName)
				sum.Skipped++
				continue
			}
			lines = append(lines, yoloLine(catID-1, box, w, h))
		}
		if len(lines) == 0 {
			continue
		}

		name := names.next(rec.ImageName, ".txt")
		if err := os.WriteFile(filepath.Join(dir, name), []byte(strings.Join(lines, "\n")), 0o644); err != nil {
			return sum, fmt.Errorf("writing %s: %w", name, err)
		}
		sum.Files++
	}
	return sum, nil
}

func yoloLine(class int, b geometry.Box, w, h int) string {
	dw := 1 / float64(w)
	dh := 1 / float64(h)
	xc := float64(b.MinX+b.MaxX) / 2 * dw
	yc := float64(b.MinY+b.MaxY) / 2 * dh
	return fmt.Sprintf("%d %.6f %.6f %.6f %.6f", class, xc, yc, float64(b.Width())*dw, float64(b.Height())*dh)
}
