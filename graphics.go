package main

import (
	"bytes"
	"image"
	"image/color"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/text/v2"
	"github.com/hajimehoshi/ebiten/v2/vector"
	"golang.org/x/image/font/gofont/goregular"

	"slideview/internal/playback"
)

// Global font source shared by the renderer and placeholder images
var globalFontSource *text.GoTextFaceSource

// InitGraphics initializes the global font source for text rendering
func InitGraphics() error {
	s, err := text.NewGoTextFaceSource(bytes.NewReader(goregular.TTF))
	if err != nil {
		return err
	}
	globalFontSource = s
	return nil
}

// DrawText draws text with specified position and color
func DrawText(screen *ebiten.Image, textString string, font *text.GoTextFace, x, y float64, textColor color.RGBA) {
	op := &text.DrawOptions{}
	op.GeoM.Translate(x, y)
	op.ColorScale.ScaleWithColor(textColor)
	text.Draw(screen, textString, font, op)
}

// DrawFilledRect draws filled rectangles with float64 coordinates
func DrawFilledRect(screen *ebiten.Image, x, y, w, h float64, bgColor color.RGBA) {
	vector.DrawFilledRect(screen, float32(x), float32(y), float32(w), float32(h), bgColor, false)
}

func drawBorder(img *ebiten.Image, width, height int, c color.RGBA) {
	w, h := float64(width), float64(height)
	DrawFilledRect(img, 0, 0, w, 3, c)
	DrawFilledRect(img, 0, h-3, w, 3, c)
	DrawFilledRect(img, 0, 0, 3, h, c)
	DrawFilledRect(img, w-3, 0, 3, h, c)
}

// CreateErrorImage creates a placeholder for an image that failed to decode
func CreateErrorImage(width, height int, filename, errorMsg string) *ebiten.Image {
	if width <= 0 || height <= 0 {
		width, height = 400, 300
	}

	errorImg := ebiten.NewImage(width, height)
	errorImg.Fill(color.RGBA{120, 30, 30, 255})
	drawBorder(errorImg, width, height, colorWhite)

	// Thumbnails are too small for text
	if globalFontSource == nil || width < 200 {
		return errorImg
	}

	errorFont := &text.GoTextFace{
		Source: globalFontSource,
		Size:   20.0,
	}
	fileText := "File: " + displayName(filename)
	reasonText := "Reason: " + errorMsg

	maxChars := (width - 20) / 10
	fileText = truncate(fileText, maxChars)
	reasonText = truncate(reasonText, maxChars)

	DrawText(errorImg, "ERROR", errorFont, 10, 30, colorWhite)
	DrawText(errorImg, fileText, errorFont, 10, 60, colorWhite)
	DrawText(errorImg, reasonText, errorFont, 10, 90, colorWhite)
	return errorImg
}

func truncate(s string, maxChars int) string {
	r := []rune(s)
	if maxChars < 4 || len(r) <= maxChars {
		return s
	}
	return string(r[:maxChars-3]) + "..."
}

// texture is the playback.Bitmap the loader hands out in the viewer: decoded
// pixels uploaded to the GPU. Dispose frees the GPU memory right away.
type texture struct {
	img *ebiten.Image
}

func newTexture(img image.Image) playback.Bitmap {
	return &texture{img: ebiten.NewImageFromImage(img)}
}

func (t *texture) Bounds() image.Rectangle {
	return t.img.Bounds()
}

func (t *texture) Dispose() {
	t.img.Deallocate()
}

// textureOf returns the GPU image behind a record's bitmap, or nil.
func textureOf(b playback.Bitmap) *ebiten.Image {
	if t, ok := b.(*texture); ok {
		return t.img
	}
	return nil
}
