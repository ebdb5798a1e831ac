package main

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/rs/zerolog"

	"slideview/internal/config"
	"slideview/internal/discovery"
	"slideview/internal/playback"
)

const defaultFontSize = 20.0

// Game is the ebiten window. It owns the display toggles and settings, drives
// the playback controller from input and mirrors what the controller reports
// for drawing.
//
// Listener callbacks arrive on the controller goroutine and take mu, so mu
// must never be held while calling into the controller.
type Game struct {
	ctrl *playback.Controller
	log  zerolog.Logger

	configPath   string
	configStatus config.LoadResult
	// sessionOnly names options set on the command line; their saved
	// values are kept at exit.
	sessionOnly map[string]bool

	keybindingManager   *KeybindingManager
	mousebindingManager *MousebindingManager
	inputHandler        *InputHandler
	renderer            *Renderer
	strip               *ThumbnailStrip

	mu                 sync.Mutex
	cfg                config.Config
	view               ViewState
	showHelp           bool
	showInfo           bool
	stripVisible       bool
	fullscreen         bool
	overlayMessage     string
	overlayMessageTime time.Time
	exiting            bool

	// Ebiten goroutine only
	pending  *discovery.Result
	screenW  int
	screenH  int
	windowW  int
	windowH  int
	windowX  int
	windowY  int
	fontSize float64
}

// NewGame wires the shell around a controller that decodes with decoder.
// found is loaded on the first frame.
func NewGame(loaded config.LoadResult, configPath string, decoder playback.Decoder, opts playback.Options, found discovery.Result, sessionOnly map[string]bool, log zerolog.Logger) (*Game, error) {
	cfg := loaded.Config
	g := &Game{
		log:          log,
		configPath:   configPath,
		configStatus: loaded,
		sessionOnly:  sessionOnly,
		cfg:          cfg,
		showInfo:     true,
		stripVisible: cfg.StripVisible,
		pending:      &found,
		windowW:      cfg.WindowWidth,
		windowH:      cfg.WindowHeight,
		windowX:      cfg.WindowLeft,
		windowY:      cfg.WindowTop,
		fontSize:     defaultFontSize,
		view: ViewState{
			Shuffle:     opts.Shuffle,
			Repeat:      opts.Repeat,
			Autoplay:    opts.Autoplay,
			DpiOverride: opts.DpiOverride,
			Interval:    opts.AutoplayInterval,
			Transition:  opts.Transition,
		},
	}

	g.ctrl = playback.NewController(decoder, g, opts, log)

	strip, err := NewThumbnailStrip(g.reportVisible, log)
	if err != nil {
		return nil, fmt.Errorf("creating thumbnail strip: %w", err)
	}
	g.strip = strip
	g.keybindingManager = NewKeybindingManager(cfg.Keybindings)
	g.mousebindingManager = NewMousebindingManager(GetDefaultMousebindings(), GetDefaultMouseSettings())
	g.inputHandler = NewInputHandler(g, g.keybindingManager, g.mousebindingManager, g.strip)
	g.renderer = NewRenderer(g, g.strip)
	return g, nil
}

func (g *Game) reportVisible(recs []*playback.Record) {
	if err := g.ctrl.ReportVisible(recs); err != nil {
		g.log.Debug().Err(err).Msg("report visible")
	}
}

// Update implements ebiten.Game
func (g *Game) Update() error {
	g.mu.Lock()
	exiting := g.exiting
	g.mu.Unlock()
	if exiting {
		return ebiten.Termination
	}

	if g.pending != nil {
		found := g.pending
		g.pending = nil
		if err := g.ctrl.Load(found.Paths, found.Selected); err != nil {
			return fmt.Errorf("loading queue: %w", err)
		}
	}

	g.trackWindow()
	g.inputHandler.HandleInput()
	g.strip.Update(g.GetView(), g.screenW, g.screenH, g.IsStripVisible())
	return nil
}

// Draw implements ebiten.Game
func (g *Game) Draw(screen *ebiten.Image) {
	g.renderer.Draw(screen)
}

// Layout implements ebiten.Game
func (g *Game) Layout(outsideWidth, outsideHeight int) (int, int) {
	g.screenW, g.screenH = outsideWidth, outsideHeight
	return outsideWidth, outsideHeight
}

// trackWindow remembers the normal window geometry for saving at exit
func (g *Game) trackWindow() {
	if g.IsFullscreen() || ebiten.IsWindowMaximized() || ebiten.IsWindowMinimized() {
		return
	}
	g.windowW, g.windowH = ebiten.WindowSize()
	g.windowX, g.windowY = ebiten.WindowPosition()
}

// Shutdown stops the controller and saves the settings. Call it after
// ebiten.RunGame returns.
func (g *Game) Shutdown() {
	opts := g.ctrl.Options()
	g.ctrl.Close()

	g.mu.Lock()
	saved := g.cfg
	fullscreen := g.fullscreen
	stripVisible := g.stripVisible
	g.mu.Unlock()

	cfg := saved
	cfg.ApplyPlayback(opts)
	if g.sessionOnly["shuffle"] {
		cfg.Shuffle = saved.Shuffle
	}
	if g.sessionOnly["repeat"] {
		cfg.Repeat = saved.Repeat
	}
	if g.sessionOnly["interval"] {
		cfg.SlideshowInterval = saved.SlideshowInterval
	}
	cfg.StripVisible = stripVisible

	cfg.WindowWidth, cfg.WindowHeight = g.windowW, g.windowH
	cfg.WindowLeft, cfg.WindowTop = g.windowX, g.windowY
	switch {
	case fullscreen:
		cfg.WindowState = config.StateFullscreen
	case ebiten.IsWindowMaximized():
		cfg.WindowState = config.StateMaximized
	default:
		cfg.WindowState = config.StateNormal
	}

	if err := config.Save(cfg, g.configPath); err != nil {
		if errors.Is(err, config.ErrWindowTooSmall) {
			g.log.Info().Err(err).Msg("settings not saved")
			return
		}
		g.log.Warn().Err(err).Str("path", g.configPath).Msg("failed to save settings")
		return
	}
	g.log.Debug().Str("path", g.configPath).Msg("settings saved")
}

// playback.Listener

func (g *Game) CurrentImageChanged(rec *playback.Record, index int, reversed bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.view.Previous = g.view.Current
	g.view.Current = rec
	g.view.Index = index
	g.view.Reversed = reversed
	g.view.ChangedAt = time.Now()
}

func (g *Game) AutoplayStateChanged(on bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.view.Autoplay = on
	if on {
		g.setOverlayLocked(fmt.Sprintf("Slideshow: %.1fs", g.view.Interval.Seconds()))
	} else {
		g.setOverlayLocked("Slideshow stopped")
	}
}

func (g *Game) QueueReplaced(items []*playback.Record) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.view.Generation++
	g.view.Order++
	g.view.Items = items
	g.view.Current = nil
	g.view.Previous = nil
	g.view.Index = 0
	g.view.Failed = 0
}

func (g *Game) QueueReordered(items []*playback.Record) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.view.Order++
	g.view.Items = items
}

func (g *Game) DecodeFailed(rec *playback.Record, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.view.Failed++
}

// InputActions

func (g *Game) Exit() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.exiting = true
}

func (g *Game) ToggleHelp() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.showHelp = !g.showHelp
}

func (g *Game) ToggleInfo() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.showInfo = !g.showInfo
}

func (g *Game) ToggleStrip() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.stripVisible = !g.stripVisible
}

func (g *Game) ToggleFullscreen() {
	g.mu.Lock()
	g.fullscreen = !g.fullscreen
	fullscreen := g.fullscreen
	g.mu.Unlock()

	ebiten.SetFullscreen(fullscreen)
	if !fullscreen && g.windowW > 0 && g.windowH > 0 {
		ebiten.SetWindowSize(g.windowW, g.windowH)
	}
}

func (g *Game) NavigateNext() {
	g.command("next", g.ctrl.Next())
}

func (g *Game) NavigatePrevious() {
	g.command("previous", g.ctrl.Prev())
}

// JumpToPage shows the page-th image, counting from 1
func (g *Game) JumpToPage(page int) {
	g.command("jump", g.ctrl.JumpToIndex(page-1))
}

func (g *Game) JumpToRecord(rec *playback.Record) {
	g.command("jump", g.ctrl.JumpTo(rec))
}

func (g *Game) ToggleAutoplay() {
	g.command("autoplay", g.ctrl.ToggleAutoplay())
}

func (g *Game) ToggleShuffle() {
	g.mu.Lock()
	g.view.Shuffle = !g.view.Shuffle
	g.setOverlayLocked("Shuffle: " + onOff(g.view.Shuffle))
	g.mu.Unlock()
	g.command("shuffle", g.ctrl.ToggleShuffle())
}

func (g *Game) ToggleRepeat() {
	g.mu.Lock()
	g.view.Repeat = !g.view.Repeat
	g.setOverlayLocked("Repeat: " + onOff(g.view.Repeat))
	g.mu.Unlock()
	g.command("repeat", g.ctrl.ToggleRepeat())
}

func (g *Game) ToggleDpiOverride() {
	g.mu.Lock()
	g.view.DpiOverride = !g.view.DpiOverride
	enabled := g.view.DpiOverride
	factor := g.cfg.DpiScaleFactor
	g.mu.Unlock()

	// Without a configured factor, undo the monitor's scaling
	if factor <= 1 {
		factor = ebiten.Monitor().DeviceScaleFactor()
	}
	g.ShowOverlayMessage(fmt.Sprintf("DPI override: %s (x%.2f)", onOff(enabled), factor))
	g.command("dpi override", g.ctrl.SetDpiOverride(enabled, factor))
}

func (g *Game) AdjustInterval(deltaSeconds float64) {
	g.mu.Lock()
	seconds := max(g.view.Interval.Seconds()+deltaSeconds, 0.5)
	g.view.Interval = time.Duration(seconds * float64(time.Second))
	g.setOverlayLocked(fmt.Sprintf("Interval: %.1fs", seconds))
	g.mu.Unlock()
	g.command("interval", g.ctrl.SetAutoplayInterval(seconds))
}

func (g *Game) command(name string, err error) {
	if err == nil {
		return
	}
	if errors.Is(err, playback.ErrClosed) {
		g.log.Debug().Str("command", name).Msg("controller closed")
		return
	}
	g.log.Debug().Err(err).Str("command", name).Msg("command failed")
}

func (g *Game) ShowOverlayMessage(message string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.setOverlayLocked(message)
}

func (g *Game) setOverlayLocked(message string) {
	g.overlayMessage = message
	g.overlayMessageTime = time.Now()
}

func (g *Game) GetTotalPagesCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.view.Items)
}

// RenderState

func (g *Game) IsFullscreen() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.fullscreen
}

func (g *Game) IsShowingHelp() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.showHelp
}

func (g *Game) IsShowingInfo() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.showInfo
}

func (g *Game) IsStripVisible() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.stripVisible
}

func (g *Game) GetView() ViewState {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.view
}

func (g *Game) GetOverlayMessage() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.overlayMessage
}

func (g *Game) GetOverlayMessageTime() time.Time {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.overlayMessageTime
}

func (g *Game) GetFontSize() float64 {
	return g.fontSize
}

func (g *Game) GetConfigStatus() config.LoadResult {
	return g.configStatus
}

func (g *Game) GetKeybindings() map[string][]string {
	return g.keybindingManager.GetKeybindings()
}

func (g *Game) GetMousebindings() map[string][]string {
	return g.mousebindingManager.GetMousebindings()
}

func onOff(on bool) string {
	if on {
		return "on"
	}
	return "off"
}
