package main

import (
	"fmt"
	"image/color"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/text/v2"

	"slideview/internal/config"
	"slideview/internal/loader"
	"slideview/internal/playback"
)

// Common colors used in rendering
var (
	colorWhite     = color.RGBA{255, 255, 255, 255}
	colorGray      = color.RGBA{180, 180, 180, 255}
	colorYellow    = color.RGBA{255, 255, 100, 255}
	colorCyan      = color.RGBA{100, 255, 255, 255}
	colorLightBlue = color.RGBA{200, 200, 255, 255}
	colorGreen     = color.RGBA{100, 255, 100, 255}
	colorOrange    = color.RGBA{255, 200, 100, 255}
	colorLightRed  = color.RGBA{255, 150, 150, 255}

	// Background colors for semi-transparent overlays
	bgColorLight  = color.RGBA{0, 0, 0, 128} // Light semi-transparent
	bgColorMedium = color.RGBA{0, 0, 0, 160} // Medium semi-transparent
	bgColorDark   = color.RGBA{0, 0, 0, 200} // Dark semi-transparent
)

const transitionDuration = 300 * time.Millisecond

// Renderer handles all drawing operations
type Renderer struct {
	renderState RenderState
	strip       *ThumbnailStrip
}

// NewRenderer creates a new Renderer. InitGraphics must have been called.
func NewRenderer(renderState RenderState, strip *ThumbnailStrip) *Renderer {
	return &Renderer{
		renderState: renderState,
		strip:       strip,
	}
}

// frame is how the outgoing and incoming images are drawn at one point of a transition
type frame struct {
	outAlpha float64
	inAlpha  float64
	outX     float64
	inX      float64
}

// transitionFrame computes a transition at progress p in [0, 1]. Slides move
// right to left, or left to right when reversed.
func transitionFrame(kind playback.Transition, p float64, reversed bool, width float64) frame {
	p = min(max(p, 0), 1)
	if p >= 1 {
		return frame{inAlpha: 1}
	}

	switch kind {
	case playback.TransitionFade:
		// Out to black, then in
		if p < 0.5 {
			return frame{outAlpha: 1 - 2*p}
		}
		return frame{inAlpha: 2*p - 1}
	case playback.TransitionCrossFade:
		return frame{outAlpha: 1 - p, inAlpha: p}
	case playback.TransitionSlide:
		dir := 1.0
		if reversed {
			dir = -1
		}
		return frame{outAlpha: 1, inAlpha: 1, outX: -dir * p * width, inX: dir * (1 - p) * width}
	}
	return frame{inAlpha: 1}
}

// fitScale returns the scale that fits iw x ih into maxW x maxH. Images are
// never enlarged.
func fitScale(iw, ih, maxW, maxH float64) float64 {
	if iw <= 0 || ih <= 0 || maxW <= 0 || maxH <= 0 {
		return 1
	}
	return min(maxW/iw, maxH/ih, 1)
}

// displayName is the file name of a path, keeping the archive name for archive entries
func displayName(p string) string {
	if archive, entry, ok := loader.SplitEntryPath(p); ok {
		return filepath.Base(archive) + ":" + path.Base(entry)
	}
	return filepath.Base(p)
}

// infoText builds the info line: position, name and the active modes
func infoText(view ViewState) string {
	var b strings.Builder
	if view.Current == nil {
		fmt.Fprintf(&b, "- / %d", len(view.Items))
	} else {
		fmt.Fprintf(&b, "%d / %d  %s", view.Index+1, len(view.Items), displayName(view.Current.Path()))
		if w, h := view.Current.Size(); w > 0 {
			fmt.Fprintf(&b, "  %dx%d", int(w), int(h))
		}
	}

	var modes []string
	if view.Autoplay {
		modes = append(modes, fmt.Sprintf("autoplay %.1fs", view.Interval.Seconds()))
	}
	if view.Shuffle {
		modes = append(modes, "shuffle")
	}
	if view.Repeat {
		modes = append(modes, "repeat")
	}
	if view.DpiOverride {
		modes = append(modes, "dpi")
	}
	if view.Failed > 0 {
		modes = append(modes, fmt.Sprintf("%d failed", view.Failed))
	}
	if len(modes) > 0 {
		b.WriteString("  [" + strings.Join(modes, "] [") + "]")
	}
	return b.String()
}

// Draw renders the entire screen
func (r *Renderer) Draw(screen *ebiten.Image) {
	view := r.renderState.GetView()

	areaW := float64(screen.Bounds().Dx())
	areaH := float64(screen.Bounds().Dy())
	if r.renderState.IsStripVisible() {
		areaH -= stripHeight
	}

	if view.Current == nil {
		r.drawCenteredMessage(screen, r.emptyMessage(view), areaW, areaH)
	} else {
		p := float64(time.Since(view.ChangedAt)) / float64(transitionDuration)
		f := transitionFrame(view.Transition, p, view.Reversed, areaW)
		if view.Previous != nil && view.Previous != view.Current && f.outAlpha > 0 {
			r.drawRecord(screen, view.Previous, areaW, areaH, f.outAlpha, f.outX)
		}
		if f.inAlpha > 0 {
			r.drawRecord(screen, view.Current, areaW, areaH, f.inAlpha, f.inX)
		}
	}

	if r.renderState.IsStripVisible() {
		r.strip.Draw(screen, view.Current)
	}

	if r.renderState.IsShowingInfo() {
		r.drawInfoDisplay(screen, view, areaH)
	}

	if r.renderState.IsShowingHelp() {
		r.drawHelpOverlay(screen)
	}

	if r.renderState.GetOverlayMessage() != "" && time.Since(r.renderState.GetOverlayMessageTime()) < overlayMessageDuration {
		r.drawOverlayMessage(screen)
	}
}

func (r *Renderer) emptyMessage(view ViewState) string {
	if len(view.Items) == 0 {
		return "No images. Pass files, folders or archives on the command line."
	}
	return "Loading..."
}

// drawRecord draws rec centered in the image area at its display size
func (r *Renderer) drawRecord(screen *ebiten.Image, rec *playback.Record, areaW, areaH, alpha, offsetX float64) {
	tex := textureOf(rec.Bitmap())
	if tex == nil {
		return
	}
	b := tex.Bounds()
	dw, dh := rec.Size()
	if dw <= 0 || dh <= 0 {
		dw, dh = float64(b.Dx()), float64(b.Dy())
	}

	// Size is the DPI-adjusted size; the texture has the decoded pixels
	scale := fitScale(dw, dh, areaW, areaH) * dw / float64(b.Dx())
	w, h := float64(b.Dx())*scale, float64(b.Dy())*scale

	op := &ebiten.DrawImageOptions{}
	op.GeoM.Scale(scale, scale)
	op.GeoM.Translate((areaW-w)/2+offsetX, (areaH-h)/2)
	op.ColorScale.ScaleAlpha(float32(alpha))
	op.Filter = ebiten.FilterLinear
	screen.DrawImage(tex, op)
}

func (r *Renderer) newFace(size float64) *text.GoTextFace {
	return &text.GoTextFace{
		Source: globalFontSource,
		Size:   size,
	}
}

func (r *Renderer) drawCenteredMessage(screen *ebiten.Image, message string, areaW, areaH float64) {
	face := r.newFace(r.renderState.GetFontSize())
	w, h := text.Measure(message, face, 0)
	DrawText(screen, message, face, (areaW-w)/2, (areaH-h)/2, colorGray)
}

// getActionsList returns the actions that have bindings, in input order
func (r *Renderer) getActionsList() []string {
	keybindings := r.renderState.GetKeybindings()
	mousebindings := r.renderState.GetMousebindings()

	var actions []string
	for _, def := range actionDefinitions {
		if len(keybindings[def.Name]) > 0 || len(mousebindings[def.Name]) > 0 {
			actions = append(actions, def.Name)
		}
	}
	return actions
}

// helpLine is one action row of the help overlay
type helpLine struct {
	action      string
	keys        string
	mouse       string
	description string
}

func (r *Renderer) helpLines() []helpLine {
	keybindings := r.renderState.GetKeybindings()
	mousebindings := r.renderState.GetMousebindings()
	descriptions := GetActionDescriptions()

	var lines []helpLine
	for _, action := range r.getActionsList() {
		description := descriptions[action]
		if description == "" {
			description = "No description available"
		}
		lines = append(lines, helpLine{
			action:      action,
			keys:        strings.Join(keybindings[action], ", "),
			mouse:       strings.Join(mousebindings[action], ", "),
			description: description,
		})
	}
	return lines
}

func (l helpLine) input() string {
	switch {
	case l.keys != "" && l.mouse != "":
		return l.keys + " | " + l.mouse
	case l.keys != "":
		return l.keys
	}
	return l.mouse
}

func shortWarnings(warnings []string) []string {
	var out []string
	for i, warning := range warnings {
		// Limit to first 2 warnings to avoid clutter
		if i >= 2 {
			break
		}
		if len(warning) > 50 {
			warning = warning[:47] + "..."
		}
		out = append(out, "• "+warning)
	}
	return out
}

func (r *Renderer) drawHelpOverlay(screen *ebiten.Image) {
	w, h := float64(screen.Bounds().Dx()), float64(screen.Bounds().Dy())

	padding := 40.0
	lines := r.helpLines()
	configStatus := r.renderState.GetConfigStatus()

	optimalFontSize, canFit := r.calculateOptimalFontSize(lines, configStatus, w-padding*2, h-padding*2)

	// If cannot fit even with minimum font size, show Fermat's joke
	if !canFit {
		r.drawMarginTooSmallMessage(screen)
		return
	}

	DrawFilledRect(screen, 0, 0, w, h, bgColorLight)
	DrawFilledRect(screen, padding, padding, w-padding*2, h-padding*2, bgColorMedium)

	helpFont := r.newFace(optimalFontSize)
	lineHeight := optimalFontSize * 1.5

	titleY := padding + 30
	DrawText(screen, "HELP:", helpFont, padding+20, titleY, colorWhite)
	currentY := titleY + optimalFontSize*2

	DrawText(screen, "Controls (Keyboard | Mouse):", helpFont, padding+20, currentY, colorWhite)
	currentY += lineHeight * 1.5

	maxActionWidth, maxInputWidth := 0.0, 0.0
	for _, line := range lines {
		actionWidth, _ := text.Measure(line.action, helpFont, 0)
		maxActionWidth = max(maxActionWidth, actionWidth)
		inputWidth, _ := text.Measure(line.input(), helpFont, 0)
		maxInputWidth = max(maxInputWidth, inputWidth)
	}

	actionColumnX := padding + 40
	arrowColumnX := actionColumnX + maxActionWidth + 20
	inputColumnX := arrowColumnX + 30
	descColumnX := inputColumnX + maxInputWidth + 20

	for _, line := range lines {
		DrawText(screen, line.action, helpFont, actionColumnX, currentY, colorLightBlue)
		DrawText(screen, "→", helpFont, arrowColumnX, currentY, colorWhite)

		// Keyboard in yellow, mouse in cyan
		currentInputX := inputColumnX
		if line.keys != "" {
			DrawText(screen, line.keys, helpFont, currentInputX, currentY, colorYellow)
			keysWidth, _ := text.Measure(line.keys, helpFont, 0)
			currentInputX += keysWidth
		}
		if line.keys != "" && line.mouse != "" {
			DrawText(screen, " | ", helpFont, currentInputX, currentY, colorWhite)
			sepWidth, _ := text.Measure(" | ", helpFont, 0)
			currentInputX += sepWidth
		}
		if line.mouse != "" {
			DrawText(screen, line.mouse, helpFont, currentInputX, currentY, colorCyan)
		}

		DrawText(screen, line.description, helpFont, descColumnX, currentY, colorGray)
		currentY += lineHeight
	}

	currentY += lineHeight
	DrawText(screen, "System:", helpFont, padding+20, currentY, colorWhite)
	currentY += lineHeight

	statusColor := colorGreen
	if configStatus.Status == config.StatusWarning || configStatus.Status == config.StatusError {
		statusColor = colorOrange
	}
	DrawText(screen, "Config Status: "+configStatus.Status, helpFont, padding+40, currentY, statusColor)
	currentY += lineHeight

	for _, warning := range shortWarnings(configStatus.Warnings) {
		DrawText(screen, warning, helpFont, padding+40, currentY, colorLightRed)
		currentY += lineHeight
	}
}

// calculateRequiredDimensions calculates the size the help content needs at a given font size
func (r *Renderer) calculateRequiredDimensions(lines []helpLine, configStatus config.LoadResult, fontSize float64) (float64, float64) {
	tempFont := r.newFace(fontSize)
	padding := 40.0
	lineHeight := fontSize * 1.5
	warnings := shortWarnings(configStatus.Warnings)

	height := padding * 2
	height += fontSize * 2
	height += lineHeight * 1.5
	height += float64(len(lines)) * lineHeight
	height += lineHeight * 3 // spacing, "System:", status
	height += float64(len(warnings)) * lineHeight

	maxWidth := 0.0
	indented := []string{"HELP:", "Controls (Keyboard | Mouse):", "System:"}
	for _, s := range indented {
		width, _ := text.Measure(s, tempFont, 0)
		maxWidth = max(maxWidth, width+padding*2+40)
	}
	for _, s := range append(warnings, "Config Status: "+configStatus.Status) {
		width, _ := text.Measure(s, tempFont, 0)
		maxWidth = max(maxWidth, width+padding*2+80)
	}

	maxActionWidth, maxInputWidth, maxDescWidth := 0.0, 0.0, 0.0
	for _, line := range lines {
		actionWidth, _ := text.Measure(line.action, tempFont, 0)
		maxActionWidth = max(maxActionWidth, actionWidth)
		inputWidth, _ := text.Measure(line.input(), tempFont, 0)
		maxInputWidth = max(maxInputWidth, inputWidth)
		descWidth, _ := text.Measure(line.description, tempFont, 0)
		maxDescWidth = max(maxDescWidth, descWidth)
	}
	actionLineWidth := 40 + maxActionWidth + 20 + 30 + 20 + maxInputWidth + 20 + maxDescWidth + padding
	maxWidth = max(maxWidth, actionLineWidth)

	return maxWidth, height
}

// calculateOptimalFontSize finds the largest font size that fits within the given dimensions
func (r *Renderer) calculateOptimalFontSize(lines []helpLine, configStatus config.LoadResult, availableWidth, availableHeight float64) (float64, bool) {
	maxFontSize := r.renderState.GetFontSize()
	minFontSize := 12.0

	fits := func(size float64) bool {
		w, h := r.calculateRequiredDimensions(lines, configStatus, size)
		return w <= availableWidth && h <= availableHeight
	}

	if !fits(minFontSize) {
		return minFontSize, false
	}
	if fits(maxFontSize) {
		return maxFontSize, true
	}

	// Binary search for optimal font size
	low, high := minFontSize, maxFontSize
	bestSize := minFontSize
	for high-low > 0.5 {
		mid := (low + high) / 2.0
		if fits(mid) {
			bestSize = mid
			low = mid
		} else {
			high = mid
		}
	}

	return bestSize, true
}

// drawMarginTooSmallMessage displays Fermat's margin joke when help cannot fit
func (r *Renderer) drawMarginTooSmallMessage(screen *ebiten.Image) {
	w, h := float64(screen.Bounds().Dx()), float64(screen.Bounds().Dy())
	DrawFilledRect(screen, 0, 0, w, h, bgColorLight)

	jokeFont := r.newFace(16.0)
	message := "Hanc marginis exiguitas non caperet."
	subtitle := "(This margin is too small to contain it.)"

	messageWidth, messageHeight := text.Measure(message, jokeFont, 0)
	subtitleWidth, _ := text.Measure(subtitle, jokeFont, 0)

	messageX := w/2 - messageWidth/2
	messageY := h/2 - messageHeight/2
	DrawText(screen, message, jokeFont, messageX, messageY, colorWhite)
	DrawText(screen, subtitle, jokeFont, w/2-subtitleWidth/2, messageY+messageHeight+10, colorGray)
}

func (r *Renderer) drawInfoDisplay(screen *ebiten.Image, view ViewState, areaH float64) {
	infoFont := r.newFace(r.renderState.GetFontSize())
	info := infoText(view)

	textWidth, textHeight := text.Measure(info, infoFont, 0)

	// Bottom right corner of the image area
	padding := 10.0
	textX := float64(screen.Bounds().Dx()) - textWidth - padding
	textY := areaH - textHeight - padding

	bgPadding := 5.0
	DrawFilledRect(screen, textX-bgPadding, textY-bgPadding, textWidth+bgPadding*2, textHeight+bgPadding*2, bgColorLight)
	DrawText(screen, info, infoFont, textX, textY, colorWhite)
}

func (r *Renderer) drawOverlayMessage(screen *ebiten.Image) {
	messageFont := r.newFace(r.renderState.GetFontSize())
	message := r.renderState.GetOverlayMessage()

	textWidth, textHeight := text.Measure(message, messageFont, 0)

	padding := 20.0
	boxWidth := textWidth + padding*2
	boxHeight := textHeight + padding*2
	boxX := (float64(screen.Bounds().Dx()) - boxWidth) / 2
	boxY := (float64(screen.Bounds().Dy()) - boxHeight) / 2

	DrawFilledRect(screen, boxX, boxY, boxWidth, boxHeight, bgColorDark)
	DrawText(screen, message, messageFont, boxX+padding, boxY+padding, colorWhite)
}
