package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"slideview/internal/config"
	"slideview/internal/discovery"
	"slideview/internal/loader"
	"slideview/internal/logging"
	"slideview/internal/playback"
)

var version = "dev"

// flagValues holds the command-line flags
type flagValues struct {
	configPath string
	debug      bool
	shuffle    bool
	repeat     bool
	autoplay   bool
	interval   float64
	fullscreen bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var flags flagValues
	cmd := &cobra.Command{
		Use:   "slideview [paths...]",
		Short: "Image viewer and slideshow",
		Long: `slideview shows images one at a time, as a slideshow or by hand.

Paths may be image files, folders (walked recursively) or .zip, .rar and .7z
archives. A single image file opens its whole folder at that image. Without
paths the folder opened last time is shown again.`,
		Version:      version,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, flags, args)
		},
	}

	bindFlags(cmd, &flags)
	return cmd
}

func bindFlags(cmd *cobra.Command, flags *flagValues) {
	f := cmd.Flags()
	f.StringVarP(&flags.configPath, "config", "c", config.DefaultPath(), "Settings file path")
	f.BoolVar(&flags.debug, "debug", false, "Enable debug logging")
	f.BoolVar(&flags.shuffle, "shuffle", false, "Shuffle the play order for this session")
	f.BoolVar(&flags.repeat, "repeat", false, "Start over after the last image for this session")
	f.BoolVar(&flags.autoplay, "autoplay", false, "Start the slideshow right away")
	f.Float64Var(&flags.interval, "interval", 0, "Slideshow interval in seconds for this session")
	f.BoolVarP(&flags.fullscreen, "fullscreen", "f", false, "Start in fullscreen")
}

func run(cmd *cobra.Command, flags flagValues, args []string) error {
	logging.SetDebug(flags.debug)
	log := logging.New(os.Stderr)

	loaded := config.Load(flags.configPath, logging.NewComponent(os.Stderr, "config"))
	for _, warning := range loaded.Warnings {
		log.Warn().Str("path", flags.configPath).Msg(warning)
	}
	cfg := loaded.Config

	opts, sessionOnly := applyFlags(cmd, flags, cfg.PlaybackOptions())

	if len(args) == 0 && cfg.LastOpenedDirectory != "" {
		log.Info().Str("dir", cfg.LastOpenedDirectory).Msg("reopening last directory")
		args = []string{cfg.LastOpenedDirectory}
	}
	found, err := collect(args, cfg.SortMethod, log)
	if err != nil {
		return err
	}
	if dir := lastDirectory(args); dir != "" && len(found.Paths) > 0 {
		loaded.Config.LastOpenedDirectory = dir
	}

	if err := InitGraphics(); err != nil {
		return fmt.Errorf("loading font: %w", err)
	}
	ld := loader.New(loader.Config{Convert: newTexture}, log)

	game, err := NewGame(loaded, flags.configPath, ld, opts, found, sessionOnly, logging.NewComponent(os.Stderr, "shell"))
	if err != nil {
		return err
	}

	setupWindow(cfg, flags.fullscreen || cfg.WindowState == config.StateFullscreen)
	if flags.fullscreen || cfg.WindowState == config.StateFullscreen {
		game.ToggleFullscreen()
	}

	runErr := ebiten.RunGame(game)
	game.Shutdown()
	return runErr
}

// applyFlags overrides persisted playback options with the flags given on
// the command line and names the ones that must not be saved.
func applyFlags(cmd *cobra.Command, flags flagValues, opts playback.Options) (playback.Options, map[string]bool) {
	sessionOnly := make(map[string]bool)
	changed := cmd.Flags().Changed
	if changed("shuffle") {
		opts.Shuffle = flags.shuffle
		sessionOnly["shuffle"] = true
	}
	if changed("repeat") {
		opts.Repeat = flags.repeat
		sessionOnly["repeat"] = true
	}
	if changed("interval") && flags.interval > 0 {
		opts.AutoplayInterval = time.Duration(flags.interval * float64(time.Second))
		sessionOnly["interval"] = true
	}
	opts.Autoplay = flags.autoplay
	return opts, sessionOnly
}

// collect turns the arguments into the candidate list. Finding nothing is
// not an error; the window opens empty.
func collect(args []string, sort discovery.SortMethod, log zerolog.Logger) (discovery.Result, error) {
	if len(args) == 0 {
		return discovery.Result{}, nil
	}
	found, err := discovery.NewCollector(sort, log).Collect(args)
	switch {
	case errors.Is(err, discovery.ErrNoImages):
		log.Warn().Strs("paths", args).Msg("no images found")
		return discovery.Result{}, nil
	case err != nil:
		return discovery.Result{}, fmt.Errorf("collecting images: %w", err)
	}
	return found, nil
}

// lastDirectory is the folder remembered for the next start: the first
// argument if it is a folder, otherwise the folder containing it.
func lastDirectory(args []string) string {
	if len(args) == 0 {
		return ""
	}
	p, err := filepath.Abs(args[0])
	if err != nil {
		return ""
	}
	if info, err := os.Stat(p); err == nil && info.IsDir() {
		return p
	}
	return filepath.Dir(p)
}

func setupWindow(cfg config.Config, fullscreen bool) {
	title := "slideview"
	if logging.IsDebug() {
		title += " [debug]"
	}
	ebiten.SetWindowTitle(title)
	ebiten.SetWindowSize(cfg.WindowWidth, cfg.WindowHeight)
	ebiten.SetWindowSizeLimits(config.MinWidth, config.MinHeight, -1, -1)
	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)
	if cfg.WindowLeft != 0 || cfg.WindowTop != 0 {
		ebiten.SetWindowPosition(cfg.WindowLeft, cfg.WindowTop)
	}
	if !fullscreen && cfg.WindowState == config.StateMaximized {
		ebiten.MaximizeWindow()
	}
}
