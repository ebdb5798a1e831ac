// Package config reads and writes the settings file, an attribute-based XML
// document in the user's home directory.
package config

import (
	"encoding/xml"
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"slideview/internal/discovery"
	"slideview/internal/playback"
)

const (
	DefaultWidth  = 1024
	DefaultHeight = 768
	MinWidth      = 400
	MinHeight     = 300

	defaultInterval     = 4.0
	minInterval         = 0.5
	defaultPreloadCount = 2
	maxPreloadCount     = 14
)

// Window states.
const (
	StateNormal     = "normal"
	StateMaximized  = "maximized"
	StateFullscreen = "fullscreen"
)

var ErrWindowTooSmall = errors.New("config: window size below minimum")

// Load statuses.
const (
	StatusOK      = "OK"
	StatusDefault = "Default"
	StatusWarning = "Warning"
	StatusError   = "Error"
)

type Config struct {
	WindowTop    int
	WindowLeft   int
	WindowWidth  int
	WindowHeight int
	WindowState  string

	LastOpenedDirectory string
	Shuffle             bool
	Repeat              bool
	SlideshowInterval   float64 // seconds
	DpiOverride         bool
	DpiScaleFactor      float64
	Transition          playback.Transition
	SortMethod          discovery.SortMethod
	PreloadCount        int
	StripVisible        bool

	Keybindings map[string][]string
}

// LoadResult is a loaded Config plus what went wrong on the way.
type LoadResult struct {
	Config   Config
	HasError bool
	Warnings []string
	Status   string
}

type document struct {
	XMLName     xml.Name         `xml:"App"`
	MainWindow  windowElement    `xml:"MainWindow"`
	Options     optionsElement   `xml:"Options"`
	Keybindings []bindingElement `xml:"Keybindings>Binding"`
}

type windowElement struct {
	Top    int    `xml:"top,attr"`
	Left   int    `xml:"left,attr"`
	Width  int    `xml:"width,attr"`
	Height int    `xml:"height,attr"`
	State  string `xml:"state,attr,omitempty"`
}

type optionsElement struct {
	LastOpenedDirectory string  `xml:"lastOpenedDirectory,attr,omitempty"`
	IsShuffleOn         bool    `xml:"isShuffleOn,attr"`
	IsRepeatOn          bool    `xml:"isRepeatOn,attr"`
	SlideshowInterval   float64 `xml:"slideshowInterval,attr"`
	IsOverrideDpiOn     bool    `xml:"isOverrideDpiOn,attr"`
	DpiScaleFactor      float64 `xml:"dpiScaleFactor,attr"`
	Transition          string  `xml:"transition,attr,omitempty"`
	SortMethod          string  `xml:"sortMethod,attr,omitempty"`
	PreloadCount        *int    `xml:"preloadCount,attr"`
	IsStripVisible      *bool   `xml:"isStripVisible,attr"`
}

type bindingElement struct {
	Action string `xml:"action,attr"`
	Keys   string `xml:"keys,attr"`
}

// Default returns the settings used when no file exists.
func Default() Config {
	return Config{
		WindowWidth:       DefaultWidth,
		WindowHeight:      DefaultHeight,
		WindowState:       StateNormal,
		SlideshowInterval: defaultInterval,
		DpiScaleFactor:    1,
		Transition:        playback.TransitionFade,
		SortMethod:        discovery.SortNatural,
		PreloadCount:      defaultPreloadCount,
		StripVisible:      true,
		Keybindings:       DefaultKeybindings(),
	}
}

// DefaultPath is ~/.slideview.xml, or slideview.xml in the working directory
// when there is no home directory.
func DefaultPath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "slideview.xml"
	}
	return filepath.Join(homeDir, ".slideview.xml")
}

// Load reads path. A missing file yields the defaults with StatusDefault; a
// malformed one yields the defaults with StatusError. Out-of-range values are
// reset individually and never fail the load.
func Load(path string, log zerolog.Logger) LoadResult {
	result := LoadResult{
		Config:   Default(),
		Warnings: []string{},
		Status:   StatusOK,
	}

	data, err := os.ReadFile(path)
	if err != nil {
		result.Status = StatusDefault
		return result
	}

	var doc document
	if err := xml.Unmarshal(data, &doc); err != nil {
		log.Warn().Err(err).Str("path", path).Msg("invalid config file, using defaults")
		result.HasError = true
		result.Status = StatusError
		result.Warnings = append(result.Warnings, fmt.Sprintf("Invalid config file: %v", err))
		return result
	}

	cfg := fromDocument(doc, &result)
	for _, w := range result.Warnings {
		log.Warn().Str("path", path).Msg(w)
	}
	result.Config = cfg
	return result
}

func fromDocument(doc document, result *LoadResult) Config {
	cfg := Default()
	warn := func(format string, args ...any) {
		result.Warnings = append(result.Warnings, fmt.Sprintf(format, args...))
	}

	w := doc.MainWindow
	cfg.WindowTop, cfg.WindowLeft = w.Top, w.Left
	if w.Width >= MinWidth {
		cfg.WindowWidth = w.Width
	}
	if w.Height >= MinHeight {
		cfg.WindowHeight = w.Height
	}
	switch w.State {
	case StateNormal, StateMaximized, StateFullscreen:
		cfg.WindowState = w.State
	case "":
	default:
		warn("Unknown window state %q", w.State)
	}

	o := doc.Options
	cfg.LastOpenedDirectory = o.LastOpenedDirectory
	cfg.Shuffle = o.IsShuffleOn
	cfg.Repeat = o.IsRepeatOn
	cfg.DpiOverride = o.IsOverrideDpiOn
	if o.SlideshowInterval >= minInterval {
		cfg.SlideshowInterval = o.SlideshowInterval
	}
	if o.DpiScaleFactor >= 1 {
		cfg.DpiScaleFactor = o.DpiScaleFactor
	}
	if o.Transition != "" {
		if t, ok := playback.ParseTransition(o.Transition); ok {
			cfg.Transition = t
		} else {
			warn("Unknown transition %q", o.Transition)
		}
	}
	if o.SortMethod != "" {
		if m, ok := discovery.ParseSortMethod(o.SortMethod); ok {
			cfg.SortMethod = m
		} else {
			warn("Unknown sort method %q", o.SortMethod)
		}
	}
	if o.PreloadCount != nil {
		cfg.PreloadCount = min(max(*o.PreloadCount, 0), maxPreloadCount)
	}
	if o.IsStripVisible != nil {
		cfg.StripVisible = *o.IsStripVisible
	}

	if len(doc.Keybindings) > 0 {
		bindings := make(map[string][]string, len(doc.Keybindings))
		for _, b := range doc.Keybindings {
			bindings[b.Action] = splitKeys(b.Keys)
		}
		for action, keys := range DefaultKeybindings() {
			if _, exists := bindings[action]; !exists {
				bindings[action] = keys
			}
		}
		if err := ValidateKeybindings(bindings); err != nil {
			result.Status = StatusWarning
			warn("Keybinding errors: %v", err)
		} else {
			cfg.Keybindings = bindings
		}
	}
	return cfg
}

func splitKeys(s string) []string {
	var keys []string
	for _, k := range strings.Split(s, ",") {
		if k = strings.TrimSpace(k); k != "" {
			keys = append(keys, k)
		}
	}
	return keys
}

// Save writes cfg to path. Window sizes below the minimum are refused so a
// minimized window never gets persisted.
func Save(cfg Config, path string) error {
	if cfg.WindowWidth < MinWidth || cfg.WindowHeight < MinHeight {
		return fmt.Errorf("%w: %dx%d", ErrWindowTooSmall, cfg.WindowWidth, cfg.WindowHeight)
	}

	preload := cfg.PreloadCount
	strip := cfg.StripVisible
	doc := document{
		MainWindow: windowElement{
			Top:    cfg.WindowTop,
			Left:   cfg.WindowLeft,
			Width:  cfg.WindowWidth,
			Height: cfg.WindowHeight,
			State:  cfg.WindowState,
		},
		Options: optionsElement{
			LastOpenedDirectory: cfg.LastOpenedDirectory,
			IsShuffleOn:         cfg.Shuffle,
			IsRepeatOn:          cfg.Repeat,
			SlideshowInterval:   cfg.SlideshowInterval,
			IsOverrideDpiOn:     cfg.DpiOverride,
			DpiScaleFactor:      cfg.DpiScaleFactor,
			Transition:          cfg.Transition.String(),
			SortMethod:          cfg.SortMethod.String(),
			PreloadCount:        &preload,
			IsStripVisible:      &strip,
		},
	}
	for _, action := range slices.Sorted(maps.Keys(cfg.Keybindings)) {
		doc.Keybindings = append(doc.Keybindings, bindingElement{
			Action: action,
			Keys:   strings.Join(cfg.Keybindings[action], ","),
		})
	}

	data, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	data = append([]byte(xml.Header), data...)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config %s: %w", path, err)
	}
	return nil
}

// PlaybackOptions converts the persisted options for the controller.
func (c Config) PlaybackOptions() playback.Options {
	o := playback.DefaultOptions()
	o.Shuffle = c.Shuffle
	o.Repeat = c.Repeat
	o.AutoplayInterval = time.Duration(c.SlideshowInterval * float64(time.Second))
	o.DpiOverride = c.DpiOverride
	o.DpiScaleFactor = c.DpiScaleFactor
	o.Transition = c.Transition
	o.PreloadCount = c.PreloadCount
	return o
}

// ApplyPlayback copies the controller's current options back for saving.
// Autoplay is not persisted.
func (c *Config) ApplyPlayback(o playback.Options) {
	c.Shuffle = o.Shuffle
	c.Repeat = o.Repeat
	c.SlideshowInterval = o.AutoplayInterval.Seconds()
	c.DpiOverride = o.DpiOverride
	c.DpiScaleFactor = o.DpiScaleFactor
	c.Transition = o.Transition
	c.PreloadCount = o.PreloadCount
}
