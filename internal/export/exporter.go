package export

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/maulik225/NotumAi/internal/annotation"
	"github.com/maulik225/NotumAi/internal/imageio"
	"github.com/maulik225/NotumAi/internal/metrics"
)

// Source is the read side of the annotation store used by exports.
type Source interface {
	Categories(ctx context.Context, projectID int64) ([]annotation.Category, error)
	AnnotationRecords(ctx context.Context, projectID int64) ([]annotation.Record, error)
	ImagePaths(ctx context.Context, projectID int64) (map[string]string, error)
}

// SizeResolver reports the pixel size of an image file, falling back to the
// default dimensions when it cannot be read.
type SizeResolver interface {
	Size(path string) (w, h int, ok bool)
}

// Request describes one export run.
type Request struct {
	ProjectID int64  `json:"project_id"`
	Format    string `json:"format"`
	// OutputDir, when set, replaces the configured export root.
	OutputDir string `json:"output_dir,omitempty"`
}

// Result is returned for a successful export.
type Result struct {
	Status  string `json:"status"`
	Path    string `json:"path"`
	Files   int    `json:"files"`
	Skipped int    `json:"skipped"`
}

// Exporter loads a project's data once and hands it to the converter for
// the requested format. Every run writes into a fresh directory.
type Exporter struct {
	source  Source
	root    string
	sizer   SizeResolver
	raster  Rasterizer
	metrics *metrics.ExportMetrics
	logger  *slog.Logger
	now     func() time.Time
}

// NewExporter creates an Exporter writing under root. sizer may be nil.
// Without a raster the masks format is reported as unavailable.
func NewExporter(source Source, root string, sizer SizeResolver, raster Rasterizer, m *metrics.ExportMetrics) *Exporter {
	if sizer == nil {
		sizer = imageio.NewSizer(0)
	}
	return &Exporter{
		source:  source,
		root:    root,
		sizer:   sizer,
		raster:  raster,
		metrics: m,
		logger:  slog.Default(),
		now:     time.Now,
	}
}

// Export runs req. An unknown format fails before anything touches the
// filesystem. Converter errors and panics come back as errors.
func (e *Exporter) Export(ctx context.Context, req Request) (res Result, err error) {
	format, err := ParseFormat(req.Format)
	if err != nil {
		return Result{}, err
	}
	conv, err := NewConverter(format, e.logger, e.raster)
	if err != nil {
		return Result{}, err
	}

	start := e.now()
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("export panicked", "project_id", req.ProjectID, "format", format, "panic", r)
			res, err = Result{}, fmt.Errorf("export %s panicked: %v", format, r)
		}
		status := "success"
		if err != nil {
			status = "error"
		}
		e.metrics.RecordExport(string(format), status, time.Since(start))
	}()

	in, err := e.load(ctx, req.ProjectID)
	if err != nil {
		return Result{}, err
	}

	dir, err := e.allocateDir(req, format, start)
	if err != nil {
		return Result{}, err
	}

	sum, err := conv.Convert(ctx, dir, in)
	if err != nil {
		return Result{}, fmt.Errorf("exporting %s: %w", format, err)
	}
	e.metrics.RecordOutput(string(format), sum.Files, sum.Skipped)
	e.logger.Info("project exported",
		"project_id", req.ProjectID, "format", format, "path", dir,
		"files", sum.Files, "skipped", sum.Skipped)

	return Result{Status: "success", Path: dir, Files: sum.Files, Skipped: sum.Skipped}, nil
}

func (e *Exporter) load(ctx context.Context, projectID int64) (*Input, error) {
	cats, err := e.source.Categories(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("loading categories: %w", err)
	}
	records, err := e.source.AnnotationRecords(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("loading annotations: %w", err)
	}
	paths, err := e.source.ImagePaths(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("loading image paths: %w", err)
	}

	sizes, err := e.resolveSizes(ctx, records, paths)
	if err != nil {
		return nil, err
	}
	return &Input{
		Categories: cats,
		Index:      annotation.NewCategoryIndex(cats),
		Records:    records,
		ImagePaths: paths,
		Sizes:      sizes,
	}, nil
}

// resolveSizes reads every record's image dimensions concurrently. Results
// are stored by index so the order matches records. A lookup that panics
// falls back to the default dimensions.
func (e *Exporter) resolveSizes(ctx context.Context, records []annotation.Record, paths map[string]string) ([]image.Point, error) {
	sizes := make([]image.Point, len(records))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(4)

	for i, rec := range records {
		g.Go(func() error {
			if err := gCtx.Err(); err != nil {
				return err
			}
			sizes[i] = e.imageSize(paths[rec.ImageName])
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("resolving image sizes: %w", err)
	}
	return sizes, nil
}

func (e *Exporter) imageSize(path string) (size image.Point) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("reading image size panicked, using default dimensions", "path", path, "panic", r)
			size = image.Point{X: imageio.DefaultWidth, Y: imageio.DefaultHeight}
		}
	}()
	w, h, _ := e.sizer.Size(path)
	return image.Point{X: w, Y: h}
}

// allocateDir creates project_<id>_<format>_<ts>_<suffix> under the export
// root. The directory must not exist yet.
func (e *Exporter) allocateDir(req Request, format Format, at time.Time) (string, error) {
	root := e.root
	if req.OutputDir != "" {
		root = req.OutputDir
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return "", fmt.Errorf("creating export root: %w", err)
	}

	name := fmt.Sprintf("project_%d_%s_%d_%s", req.ProjectID, format, at.Unix(), uuid.NewString()[:8])
	dir := filepath.Join(root, name)
	if err := os.Mkdir(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating export directory: %w", err)
	}
	return dir, nil
}
