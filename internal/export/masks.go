package export

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/maulik225/NotumAi/internal/annotation"
	"github.com/maulik225/NotumAi/internal/imageio"
)

// maskConverter writes one 8-bit PNG per record whose pixel values are
// 1-based category indices, 0 for background. Polygons are filled in record
// order so later annotations cover earlier ones.
//
// Unknown classes are filled with 0 as well, which erases whatever an
// earlier polygon drew there and is indistinguishable from background.
type maskConverter struct {
	raster Rasterizer
	logger *slog.Logger
}

func (c *maskConverter) Convert(ctx context.Context, dir string, in *Input) (Summary, error) {
	var sum Summary
	names := newArtifactNames(c.logger)
	for i, rec := range in.Records {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		w, h := in.size(i)
		if w <= 0 || h <= 0 {
			c.logger.Warn("skipping image with zero size", "image", rec.ImageName)
			sum.Skipped += len(rec.Annotations)
			continue
		}

		polygons := make([][]annotation.Point, 0, len(rec.Annotations))
		values := make([]uint8, 0, len(rec.Annotations))
		for _, ann := range rec.Annotations {
			if !ann.IsPolygon() {
				sum.Skipped++
				continue
			}
			catID := in.Index.Lookup(ann.ClassName)
			if catID == annotation.Unknown {
				c.logger.Warn("unknown class filled as background", "class", ann.ClassName, "image", rec.ImageName)
				sum.Skipped++
			}
			if catID > 255 {
				return sum, fmt.Errorf("category %q has index %d, masks hold at most 255 classes", ann.ClassName, catID)
			}
			polygons = append(polygons, ann.Points)
			values = append(values, uint8(catID))
		}

		mask, err := c.raster.Fill(w, h, polygons, values)
		if err != nil {
			return sum, fmt.Errorf("filling mask for %s: %w", rec.ImageName, err)
		}
		name := names.next(rec.ImageName, ".png")
		if err := imageio.SaveGray(mask, filepath.Join(dir, name)); err != nil {
			return sum, err
		}
		sum.Files++
	}
	return sum, nil
}
