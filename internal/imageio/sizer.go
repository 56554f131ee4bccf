package imageio

import (
	"fmt"
	"image"
	"log/slog"
	"os"
	"time"

	"github.com/patrickmn/go-cache"
)

// DefaultWidth and DefaultHeight are used when an image cannot be read.
const (
	DefaultWidth  = 800
	DefaultHeight = 600
)

// Sizer resolves pixel dimensions of images on disk. Results are cached by
// path, modification time and size, so repeated exports of an unchanged
// project decode each image once.
type Sizer struct {
	cache  *cache.Cache
	logger *slog.Logger
}

// NewSizer creates a Sizer whose entries expire after ttl.
// If ttl is <= 0, it defaults to 10 minutes.
func NewSizer(ttl time.Duration) *Sizer {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &Sizer{
		cache:  cache.New(ttl, 2*ttl),
		logger: slog.Default(),
	}
}

// Size returns the width and height of the image at path. When path is
// empty, missing, unreadable or undecodable it returns the 800x600 default
// and ok=false.
func (s *Sizer) Size(path string) (w, h int, ok bool) {
	if path == "" {
		return DefaultWidth, DefaultHeight, false
	}
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return DefaultWidth, DefaultHeight, false
	}

	key := fmt.Sprintf("%s|%d|%d", path, info.ModTime().UnixNano(), info.Size())
	if v, found := s.cache.Get(key); found {
		p := v.(image.Point)
		return p.X, p.Y, true
	}

	img, err := Open(path)
	if err != nil {
		s.logger.Warn("image unreadable, using default dimensions",
			"path", path, "width", DefaultWidth, "height", DefaultHeight, "error", err)
		return DefaultWidth, DefaultHeight, false
	}
	b := img.Bounds()
	s.cache.Set(key, image.Point{X: b.Dx(), Y: b.Dy()}, cache.DefaultExpiration)
	return b.Dx(), b.Dy(), true
}

// Len reports the number of cached entries.
func (s *Sizer) Len() int {
	return s.cache.ItemCount()
}
