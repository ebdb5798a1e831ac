package main

import (
	"image/color"
	"slices"

	"github.com/hajimehoshi/ebiten/v2"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog"

	"slideview/internal/playback"
)

const (
	stripHeight    = 96
	thumbCell      = 96
	thumbPadding   = 4
	thumbCacheSize = 256
)

var (
	colorStripCurrent = color.RGBA{90, 140, 220, 255}
	colorPlaceholder  = color.RGBA{60, 60, 60, 255}
)

// ThumbnailStrip draws a row of thumbnails along the bottom of the window
// and tells the controller which records it shows so they get decoded.
// Thumbnails outlive the full-size bitmaps they were made from, so scrolling
// back does not need a decode. It is used from the ebiten goroutine only.
type ThumbnailStrip struct {
	report func([]*playback.Record)
	cache  *lru.Cache[*playback.Record, *ebiten.Image]
	log    zerolog.Logger

	items      []*playback.Record
	generation uint64
	order      uint64
	first      int
	last       int
	top        int
	visible    bool
	reported   bool
	errorThumb *ebiten.Image
}

// NewThumbnailStrip creates a strip that hands its visible records to report.
func NewThumbnailStrip(report func([]*playback.Record), log zerolog.Logger) (*ThumbnailStrip, error) {
	cache, err := lru.NewWithEvict(thumbCacheSize, func(_ *playback.Record, img *ebiten.Image) {
		img.Deallocate()
	})
	if err != nil {
		return nil, err
	}
	return &ThumbnailStrip{report: report, cache: cache, log: log}, nil
}

// visibleRange returns the half-open index range of thumbnails that fit in
// viewWidth, keeping current as close to the middle as the ends allow.
func visibleRange(count, current, viewWidth, cell int) (int, int) {
	if count <= 0 || cell <= 0 {
		return 0, 0
	}
	n := max(viewWidth/cell, 1)
	if n >= count {
		return 0, count
	}
	first := max(0, min(current-n/2, count-n))
	return first, first + n
}

// Update follows the queue and reports the visible records whenever they change.
func (s *ThumbnailStrip) Update(view ViewState, screenW, screenH int, visible bool) {
	s.visible = visible
	s.top = screenH - stripHeight

	if view.Generation != s.generation {
		s.cache.Purge()
		s.generation = view.Generation
		s.reported = false
	}
	if view.Order != s.order {
		s.items = view.Items
		s.order = view.Order
		s.reported = false
	}
	if !visible {
		return
	}

	first, last := visibleRange(len(s.items), view.Index, screenW, thumbCell)
	if s.reported && first == s.first && last == s.last {
		return
	}
	s.first, s.last, s.reported = first, last, true
	if last > first {
		s.log.Debug().Int("first", first).Int("last", last).Msg("strip range changed")
		s.report(slices.Clone(s.items[first:last]))
	}
}

// RecordAt returns the record whose thumbnail is at x, y, or nil.
func (s *ThumbnailStrip) RecordAt(x, y int) *playback.Record {
	if !s.visible || y < s.top || x < 0 {
		return nil
	}
	i := s.first + x/thumbCell
	if i >= s.last || i >= len(s.items) {
		return nil
	}
	return s.items[i]
}

// Draw paints the strip. current is highlighted.
func (s *ThumbnailStrip) Draw(screen *ebiten.Image, current *playback.Record) {
	if !s.visible {
		return
	}
	top := float64(s.top)
	DrawFilledRect(screen, 0, top, float64(screen.Bounds().Dx()), stripHeight, bgColorDark)

	size := float64(thumbCell - 2*thumbPadding)
	for i := s.first; i < s.last && i < len(s.items); i++ {
		rec := s.items[i]
		x := float64((i - s.first) * thumbCell)
		if rec == current {
			DrawFilledRect(screen, x, top, thumbCell, stripHeight, colorStripCurrent)
		}

		thumb := s.thumbnail(rec, int(size))
		if thumb == nil {
			if rec.Err() != nil {
				thumb = s.errorThumbnail(int(size))
			} else {
				DrawFilledRect(screen, x+thumbPadding, top+thumbPadding, size, size, colorPlaceholder)
				continue
			}
		}

		b := thumb.Bounds()
		op := &ebiten.DrawImageOptions{}
		op.GeoM.Translate(x+thumbPadding+(size-float64(b.Dx()))/2, top+thumbPadding+(size-float64(b.Dy()))/2)
		screen.DrawImage(thumb, op)
	}
}

// thumbnail returns the cached thumbnail of rec, making one from its bitmap
// if it is decoded right now.
func (s *ThumbnailStrip) thumbnail(rec *playback.Record, size int) *ebiten.Image {
	if thumb, ok := s.cache.Get(rec); ok {
		return thumb
	}
	bmp := rec.Bitmap()
	src := textureOf(bmp)
	if src == nil {
		return nil
	}

	b := src.Bounds()
	scale := fitScale(float64(b.Dx()), float64(b.Dy()), float64(size), float64(size))
	w, h := max(int(float64(b.Dx())*scale), 1), max(int(float64(b.Dy())*scale), 1)
	thumb := ebiten.NewImage(w, h)
	op := &ebiten.DrawImageOptions{}
	op.GeoM.Scale(scale, scale)
	op.Filter = ebiten.FilterLinear
	thumb.DrawImage(src, op)

	// Evicted while we were drawing; the copy may be blank.
	if rec.Bitmap() != bmp {
		thumb.Deallocate()
		return nil
	}
	s.cache.Add(rec, thumb)
	return thumb
}

func (s *ThumbnailStrip) errorThumbnail(size int) *ebiten.Image {
	if s.errorThumb == nil {
		s.errorThumb = CreateErrorImage(size, size, "", "")
	}
	return s.errorThumb
}
