package main

import (
	"time"

	"slideview/internal/config"
	"slideview/internal/playback"
)

const (
	// Overlay message display duration
	overlayMessageDuration = 2 * time.Second
)

// ViewState is a copy of what the controller last reported, taken under the
// game lock so the renderer can use it without further locking.
type ViewState struct {
	// Generation changes when a new queue is loaded, Order whenever the
	// play order changes (including loads).
	Generation uint64
	Order      uint64

	Items     []*playback.Record
	Current   *playback.Record
	Previous  *playback.Record
	Index     int
	Reversed  bool
	ChangedAt time.Time

	Shuffle     bool
	Repeat      bool
	Autoplay    bool
	DpiOverride bool
	Interval    time.Duration
	Transition  playback.Transition

	Failed int
}

// RenderState provides read-only access to game state for the renderer
type RenderState interface {
	IsFullscreen() bool
	IsShowingHelp() bool
	IsShowingInfo() bool
	IsStripVisible() bool

	GetView() ViewState
	GetOverlayMessage() string
	GetOverlayMessageTime() time.Time

	GetFontSize() float64
	GetConfigStatus() config.LoadResult
	GetKeybindings() map[string][]string
	GetMousebindings() map[string][]string
}

// InputActions provides action methods for the input handlers
type InputActions interface {
	// Application control
	Exit()

	// Display toggles
	ToggleHelp()
	ToggleInfo()
	ToggleFullscreen()
	ToggleStrip()

	// Navigation
	NavigateNext()
	NavigatePrevious()
	JumpToPage(page int)
	JumpToRecord(rec *playback.Record)

	// Playback settings
	ToggleAutoplay()
	ToggleShuffle()
	ToggleRepeat()
	ToggleDpiOverride()
	AdjustInterval(deltaSeconds float64)

	// Messages
	ShowOverlayMessage(message string)

	// Common data access
	GetTotalPagesCount() int
}
