// Package loader decodes image files and archive entries for the playback
// controller.
package loader

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"runtime"
	"sync"
	"time"

	"github.com/disintegration/imaging"
	"github.com/rs/zerolog"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
	"golang.org/x/sync/semaphore"

	"slideview/internal/playback"
)

// DefaultMaxDimension caps the longer side of a decoded image. Larger images
// are downscaled right after decoding.
const DefaultMaxDimension = 8192

// Image is the bitmap handed out when no Convert function is configured.
type Image struct {
	mu     sync.RWMutex
	img    image.Image
	bounds image.Rectangle
}

func NewImage(img image.Image) *Image {
	return &Image{img: img, bounds: img.Bounds()}
}

func (i *Image) Bounds() image.Rectangle {
	return i.bounds
}

// Image returns the pixels, or nil after Dispose.
func (i *Image) Image() image.Image {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.img
}

func (i *Image) Dispose() {
	i.mu.Lock()
	i.img = nil
	i.mu.Unlock()
}

// Config controls a Loader. Zero values pick the defaults.
type Config struct {
	// Workers is the number of decodes allowed to run at once.
	Workers int
	// MaxDimension caps the longer side of a decoded image.
	MaxDimension int
	// Convert turns decoded pixels into the bitmap type the renderer
	// draws, e.g. a GPU texture.
	Convert func(image.Image) playback.Bitmap
}

// Loader implements playback.Decoder.
type Loader struct {
	cfg Config
	sem *semaphore.Weighted
	log zerolog.Logger
}

func New(cfg Config, log zerolog.Logger) *Loader {
	if cfg.Workers <= 0 {
		cfg.Workers = max(runtime.NumCPU()/2, 1)
	}
	if cfg.MaxDimension <= 0 {
		cfg.MaxDimension = DefaultMaxDimension
	}
	if cfg.Convert == nil {
		cfg.Convert = func(img image.Image) playback.Bitmap { return NewImage(img) }
	}
	return &Loader{
		cfg: cfg,
		sem: semaphore.NewWeighted(int64(cfg.Workers)),
		log: log.With().Str("component", "loader").Logger(),
	}
}

// Decode reads and decodes path, which may be an archive:entry path.
func (l *Loader) Decode(ctx context.Context, path string) (playback.Bitmap, error) {
	img, err := l.DecodeImage(ctx, path)
	if err != nil {
		return nil, err
	}
	return l.cfg.Convert(img), nil
}

// DecodeImage is Decode without the conversion step.
func (l *Loader) DecodeImage(ctx context.Context, path string) (image.Image, error) {
	if err := l.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer l.sem.Release(1)

	start := time.Now()
	data, err := ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	b := img.Bounds()
	if b.Dx() > l.cfg.MaxDimension || b.Dy() > l.cfg.MaxDimension {
		img = imaging.Fit(img, l.cfg.MaxDimension, l.cfg.MaxDimension, imaging.Lanczos)
		l.log.Debug().Str("path", path).
			Int("width", b.Dx()).Int("height", b.Dy()).
			Int("max", l.cfg.MaxDimension).Msg("downscaled oversize image")
	}

	l.log.Debug().Str("path", path).Str("format", format).
		Dur("elapsed", time.Since(start)).Msg("decoded")
	return img, nil
}
