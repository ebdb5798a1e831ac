package playback

import (
	"strings"
	"time"
)

// Transition is the visual effect used between images. The controller only
// uses it to size the neighbour preload; the effect itself is drawn elsewhere.
type Transition int

const (
	TransitionNone Transition = iota
	TransitionFade
	TransitionCrossFade
	TransitionSlide
)

func (t Transition) String() string {
	switch t {
	case TransitionFade:
		return "fade"
	case TransitionCrossFade:
		return "crossfade"
	case TransitionSlide:
		return "slide"
	default:
		return "none"
	}
}

// ParseTransition maps a name to a Transition. Unknown names give
// TransitionNone and false.
func ParseTransition(s string) (Transition, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "none", "":
		return TransitionNone, true
	case "fade":
		return TransitionFade, true
	case "crossfade", "cross-fade":
		return TransitionCrossFade, true
	case "slide":
		return TransitionSlide, true
	}
	return TransitionNone, false
}

// extraPreload is how many more neighbours a transition needs decoded ahead
// of time. Cross-fade and slide draw the outgoing and incoming image together.
func (t Transition) extraPreload() int {
	switch t {
	case TransitionCrossFade, TransitionSlide:
		return 1
	default:
		return 0
	}
}

const (
	// Eviction window around the cursor.
	evictThreshold = 20
	evictDistance  = 15

	// maxNeighbourPreload keeps the neighbour preload inside the eviction
	// window so the two never fight over the same record.
	maxNeighbourPreload = evictDistance - 1

	defaultAutoplayInterval = 4 * time.Second
	minAutoplayInterval     = 500 * time.Millisecond
	defaultFirstShowDelay   = 20 * time.Millisecond
	defaultPrefetchThrottle = 10 * time.Millisecond
	defaultDecodeTimeout    = 30 * time.Second
)

// Options are the playback settings. They come from the settings file at
// startup and are handed back for persistence at shutdown.
type Options struct {
	Shuffle          bool
	Repeat           bool
	Autoplay         bool
	AutoplayInterval time.Duration
	DpiOverride      bool
	DpiScaleFactor   float64
	Transition       Transition

	// PreloadCount is the number of neighbours decoded ahead of the
	// cursor in the navigation direction after every show.
	PreloadCount int

	// FirstShowDelay postpones the first image after a load so the
	// thumbnail strip can populate first.
	FirstShowDelay time.Duration

	// PrefetchThrottle is the pause between decodes of a prefetch sweep.
	PrefetchThrottle time.Duration

	// DecodeTimeout bounds a single decode. Zero means the default.
	DecodeTimeout time.Duration
}

// DefaultOptions returns the settings used when nothing is persisted.
func DefaultOptions() Options {
	return Options{
		AutoplayInterval: defaultAutoplayInterval,
		DpiScaleFactor:   1,
		Transition:       TransitionFade,
		PreloadCount:     2,
		FirstShowDelay:   defaultFirstShowDelay,
		PrefetchThrottle: defaultPrefetchThrottle,
		DecodeTimeout:    defaultDecodeTimeout,
	}
}

func (o Options) normalized() Options {
	if o.AutoplayInterval < minAutoplayInterval {
		o.AutoplayInterval = minAutoplayInterval
	}
	if o.DpiScaleFactor < 1 {
		o.DpiScaleFactor = 1
	}
	if o.PreloadCount < 0 {
		o.PreloadCount = 0
	}
	if o.FirstShowDelay < 0 {
		o.FirstShowDelay = 0
	}
	if o.PrefetchThrottle < 0 {
		o.PrefetchThrottle = 0
	}
	if o.DecodeTimeout <= 0 {
		o.DecodeTimeout = defaultDecodeTimeout
	}
	return o
}

// dpiDivisor is what natural pixel sizes are divided by.
func (o Options) dpiDivisor() float64 {
	if o.DpiOverride && o.DpiScaleFactor > 1 {
		return o.DpiScaleFactor
	}
	return 1
}

func (o Options) neighbourPreload() int {
	return min(o.PreloadCount+o.Transition.extraPreload(), maxNeighbourPreload)
}
