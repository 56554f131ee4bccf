package export

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/maulik225/NotumAi/internal/annotation"
	"github.com/maulik225/NotumAi/internal/geometry"
)

const cocoFileName = "annotations.json"

type cocoFile struct {
	Info        cocoInfo         `json:"info"`
	Images      []cocoImage      `json:"images"`
	Annotations []cocoAnnotation `json:"annotations"`
	Categories  []cocoCategory   `json:"categories"`
}

type cocoInfo struct {
	Description string `json:"description"`
	DateCreated string `json:"date_created"`
}

type cocoImage struct {
	ID       int    `json:"id"`
	FileName string `json:"file_name"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
}

type cocoAnnotation struct {
	ID           int     `json:"id"`
	ImageID      int     `json:"image_id"`
	CategoryID   int     `json:"category_id"`
	Segmentation [][]int `json:"segmentation"`
	BBox         [4]int  `json:"bbox"`
	Area         float64 `json:"area"`
	IsCrowd      int     `json:"iscrowd"`
}

type cocoCategory struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// cocoConverter writes a single annotations.json for the whole project.
type cocoConverter struct {
	logger *slog.Logger
}

func (c *cocoConverter) Convert(ctx context.Context, dir string, in *Input) (Summary, error) {
	out := cocoFile{
		Info: cocoInfo{
			Description: "Exported from Notum",
			DateCreated: time.Now().Format(time.ANSIC),
		},
		Images:      make([]cocoImage, 0, len(in.Records)),
		Annotations: []cocoAnnotation{},
		Categories:  make([]cocoCategory, 0, len(in.Categories)),
	}
	for i, cat := range in.Categories {
		out.Categories = append(out.Categories, cocoCategory{ID: i + 1, Name: cat.Name})
	}

	var sum Summary
	annID := 1
	for i, rec := range in.Records {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		imageID := i + 1
		w, h := in.size(i)
		out.Images = append(out.Images, cocoImage{ID: imageID, FileName: rec.ImageName, Width: w, Height: h})

		for _, ann := range rec.Annotations {
			if len(ann.Points) == 0 {
				sum.Skipped++
				continue
			}
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

			box := geometry.Bounds(ann.Points)
			area, err := geometry.Area(ann.Points)
			if err != nil {
				area = float64(box.Area())
			}
			out.Annotations = append(out.Annotations, cocoAnnotation{
				ID:           annID,
				ImageID:      imageID,
				CategoryID:   catID,
				Segmentation: [][]int{geometry.Flatten(ann.Points)},
				BBox:         [4]int{box.MinX, box.MinY, box.Width(), box.Height()},
				Area:         area,
			})
			annID++
		}
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return sum, fmt.Errorf("encoding coco: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, cocoFileName), data, 0o644); err != nil {
		return sum, fmt.Errorf("writing %s: %w", cocoFileName, err)
	}
	sum.Files = 1
	return sum, nil
}
