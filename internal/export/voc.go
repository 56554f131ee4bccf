package export

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/maulik225/NotumAi/internal/geometry"
)

const vocHeader = `<?xml version="1.0" ?>` + "\n"

type vocAnnotation struct {
	XMLName  xml.Name    `xml:"annotation"`
	Folder   string      `xml:"folder"`
	Filename string      `xml:"filename"`
	Size     vocSize     `xml:"size"`
	Objects  []vocObject `xml:"object"`
}

type vocSize struct {
	Width  int `xml:"width"`
	Height int `xml:"height"`
	Depth  int `xml:"depth"`
}

type vocObject struct {
	Name      string  `xml:"name"`
	Pose      string  `xml:"pose"`
	Truncated int     `xml:"truncated"`
	Difficult int     `xml:"difficult"`
	BndBox    *vocBox `xml:"bndbox,omitempty"`
}

type vocBox struct {
	XMin int `xml:"xmin"`
	YMin int `xml:"ymin"`
	XMax int `xml:"xmax"`
	YMax int `xml:"ymax"`
}

// vocConverter writes one Pascal VOC XML file per annotated image. Class
// names are written as stored, so categories need not be declared.
type vocConverter struct {
	logger *slog.Logger
}

func (c *vocConverter) Convert(ctx context.Context, dir string, in *Input) (Summary, error) {
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
		doc := vocAnnotation{
			Folder:   "images",
			Filename: rec.ImageName,
			Size:     vocSize{Width: w, Height: h, Depth: 3},
			Objects:  make([]vocObject, 0, len(rec.Annotations)),
		}
		for _, ann := range rec.Annotations {
			obj := vocObject{Name: ann.ClassName, Pose: "Unspecified"}
			if obj.Name == "" {
				obj.Name = "unknown"
			}
			if ann.IsPolygon() {
				b := geometry.Bounds(ann.Points)
				obj.BndBox = &vocBox{XMin: b.MinX, YMin: b.MinY, XMax: b.MaxX, YMax: b.MaxY}
			} else {
				sum.Skipped++
			}
			doc.Objects = append(doc.Objects, obj)
		}

		body, err := xml.MarshalIndent(doc, "", "  ")
		if err != nil {
			return sum, fmt.Errorf("encoding voc for %s: %w", rec.ImageName, err)
		}
		var buf bytes.Buffer
		buf.WriteString(vocHeader)
		buf.Write(body)
		buf.WriteByte('\n')

		name := names.next(rec.ImageName, ".xml")
		if err := os.WriteFile(filepath.Join(dir, name), buf.Bytes(), 0o644); err != nil {
			return sum, fmt.Errorf("writing %s: %w", name, err)
		}
		sum.Files++
	}
	c.logger.Debug("voc export written", "files", sum.Files, "dir", dir)
	return sum, nil
}
