package segment

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"sync"
	"time"

	"github.com/maulik225/NotumAi/internal/annotation"
	"github.com/maulik225/NotumAi/internal/imageio"
	"github.com/maulik225/NotumAi/internal/metrics"
)

var (
	ErrImageNotFound = errors.New("image not found")
	ErrImageDecode   = errors.New("cannot decode image")
	ErrNoPoints      = errors.New("no points provided")
	ErrNoImage       = errors.New("image not set in predictor")
)

const (
	DefaultMaxImageSize = 1024
	DefaultCacheSize    = 10
)

// ImageInfo describes an image after it has been made current.
type ImageInfo struct {
	Message string `json:"message"`
	Width   int    `json:"width"`
	Height  int    `json:"height"`
	Cached  bool   `json:"cached"`
}

// Result is a polygon proposal in original image coordinates.
type Result struct {
	Polygon []annotation.Point `json:"polygon"`
	Score   float64            `json:"score"`
}

// Options configures a Service. Zero values select the defaults.
type Options struct {
	MaxImageSize int
	CacheSize    int
	Metrics      *metrics.SegmentMetrics
}

// Service owns a model, its embedding cache and the current image. All
// methods are serialised, so a Service can be shared between handlers.
type Service struct {
	mu      sync.Mutex
	model   Model
	cache   *embeddingCache
	current *entry
	maxSize int
	metrics *metrics.SegmentMetrics
	logger  *slog.Logger
}

// NewService creates a Service around model. A nil model yields a Service
// that still reports image dimensions but never produces polygons.
func NewService(model Model, opts Options) *Service {
	if opts.MaxImageSize <= 0 {
		opts.MaxImageSize = DefaultMaxImageSize
	}
	if opts.CacheSize <= 0 {
		opts.CacheSize = DefaultCacheSize
	}
	return &Service{
		model:   model,
		cache:   newEmbeddingCache(opts.CacheSize),
		maxSize: opts.MaxImageSize,
		metrics: opts.Metrics,
		logger:  slog.Default(),
	}
}

// Status reports model readiness in the form the front-end expects.
func (s *Service) Status() string {
	if s.model == nil {
		return "AI_UNAVAILABLE"
	}
	return fmt.Sprintf("AI_READY (%s)", s.model.Name())
}

// LoadImagePath reads the file at path and encodes it.
func (s *Service) LoadImagePath(ctx context.Context, path string) (ImageInfo, error) {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		s.metrics.RecordError("load_image", "not_found")
		return ImageInfo{}, fmt.Errorf("%w at %s", ErrImageNotFound, path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return ImageInfo{}, fmt.Errorf("reading %s: %w", path, err)
	}
	return s.Encode(ctx, data)
}

// Encode makes the image in data current. Embeddings are cached under the
// MD5 of the raw bytes; a hit skips the encoder and sets Cached.
func (s *Service) Encode(ctx context.Context, data []byte) (ImageInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	img, err := imageio.Decode(data)
	if err != nil {
		s.metrics.RecordError("load_image", "decode")
		return ImageInfo{}, fmt.Errorf("%w: %v", ErrImageDecode, err)
	}
	b := img.Bounds()
	info := ImageInfo{Message: "Image encoded", Width: b.Dx(), Height: b.Dy()}

	if s.model == nil {
		s.logger.Warn("no segmentation model loaded, image not encoded")
		return info, nil
	}

	sum := md5.Sum(data)
	key := hex.EncodeToString(sum[:])
	if e, ok := s.cache.get(key); ok {
		s.metrics.RecordCacheLookup(true)
		s.current = e
		info.Cached = true
		return info, nil
	}
	s.metrics.RecordCacheLookup(false)

	rgb, _ := imageio.FitLongEdge(imageio.ToRGB(img), s.maxSize)
	start := time.Now()
	emb, err := s.model.Encode(ctx, rgb)
	if err != nil {
		s.metrics.RecordError("load_image", "encode")
		return ImageInfo{}, fmt.Errorf("encoding image: %w", err)
	}
	s.metrics.ObserveEncode(time.Since(start))

	e := &entry{
		embedding: emb,
		origW:     info.Width,
		origH:     info.Height,
		encW:      rgb.Bounds().Dx(),
		encH:      rgb.Bounds().Dy(),
	}
	evicted, didEvict := s.cache.put(key, e)
	if didEvict {
		s.logger.Debug("embedding evicted", "hash", evicted)
	}
	s.metrics.RecordCacheState(s.cache.len(), didEvict)
	s.current = e

	s.logger.Debug("image encoded",
		"hash", key, "width", info.Width, "height", info.Height,
		"encoded_width", e.encW, "encoded_height", e.encH, "took", time.Since(start))
	return info, nil
}

// Segment predicts a polygon for the current image from foreground points
// given in original image coordinates. An empty mask gives an empty polygon.
func (s *Service) Segment(ctx context.Context, points []annotation.Point) (Result, error) {
	if len(points) == 0 {
		s.metrics.RecordError("segment", "no_points")
		return Result{Polygon: []annotation.Point{}}, ErrNoPoints
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cur := s.current
	if s.model == nil || cur == nil {
		s.metrics.RecordError("segment", "no_image")
		return Result{Polygon: []annotation.Point{}}, ErrNoImage
	}

	sx := float64(cur.encW) / float64(cur.origW)
	sy := float64(cur.encH) / float64(cur.origH)
	prompts := make([]Coord, len(points))
	for i, p := range points {
		prompts[i] = Coord{X: float64(p.X) * sx, Y: float64(p.Y) * sy}
	}

	start := time.Now()
	pred, err := s.model.Predict(ctx, cur.embedding, cur.encW, cur.encH, prompts)
	if err != nil {
		s.metrics.RecordError("segment", "predict")
		return Result{Polygon: []annotation.Point{}}, fmt.Errorf("predicting mask: %w", err)
	}

	res := Result{Polygon: make([]annotation.Point, 0, len(pred.Polygon)), Score: pred.Score}
	for _, p := range pred.Polygon {
		res.Polygon = append(res.Polygon, annotation.Point{
			X: scaleBack(p.X, sx, cur.origW),
			Y: scaleBack(p.Y, sy, cur.origH),
		})
	}
	s.metrics.ObservePredict(time.Since(start))
	return res, nil
}

// CacheKeys returns the cached image hashes, oldest first.
func (s *Service) CacheKeys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cache.keys()
}

func scaleBack(v int, scale float64, limit int) int {
	out := int(math.Round(float64(v) / scale))
	return min(max(out, 0), max(limit-1, 0))
}
