// Package discovery turns dropped or command-line paths into the ordered
// candidate list the playback controller loads.
package discovery

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"slideview/internal/loader"
	"slideview/internal/playback"
)

var ErrNoImages = errors.New("discovery: no images found")

// Result is what Collect found. Selected is set when a single image file was
// given; it is that file, and Paths holds its whole directory.
type Result struct {
	Paths    []string
	Selected string
}

// Collector walks paths. The zero value sorts naturally and logs nothing.
type Collector struct {
	Sort SortMethod
	Log  zerolog.Logger
}

func NewCollector(sort SortMethod, log zerolog.Logger) *Collector {
	return &Collector{Sort: sort, Log: log.With().Str("component", "discovery").Logger()}
}

// Collect expands args in order. Directories are walked recursively with
// files before subdirectories, archives expand to their image entries, and a
// lone image file expands to the images next to it.
func (c *Collector) Collect(args []string) (Result, error) {
	if len(args) == 1 {
		p := filepath.Clean(args[0])
		info, err := os.Stat(p)
		if err != nil {
			return Result{}, err
		}
		if !info.IsDir() && playback.IsImagePath(p) {
			paths, err := c.siblings(p)
			if err != nil {
				return Result{}, err
			}
			return Result{Paths: paths, Selected: p}, nil
		}
	}

	var paths []string
	for _, arg := range args {
		p := filepath.Clean(arg)
		info, err := os.Stat(p)
		if err != nil {
			return Result{}, err
		}
		if info.IsDir() {
			found, err := c.walk(p)
			if err != nil {
				return Result{}, err
			}
			paths = append(paths, found...)
			continue
		}
		paths = append(paths, c.expandFile(p)...)
	}

	if len(paths) == 0 {
		return Result{}, ErrNoImages
	}
	c.Log.Info().Int("images", len(paths)).Int("args", len(args)).Msg("collected images")
	return Result{Paths: paths}, nil
}

// siblings lists the image files in the directory of file. Archives and
// subdirectories are not included.
func (c *Collector) siblings(file string) ([]string, error) {
	dir := filepath.Dir(file)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading directory %s: %w", dir, err)
	}
	var images []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		p := filepath.Join(dir, e.Name())
		if playback.IsImagePath(p) && !playback.IsHiddenPath(p) {
			images = append(images, p)
		}
	}
	c.Log.Debug().Str("dir", dir).Int("images", len(images)).Msg("expanded siblings")
	return GetSortStrategy(c.Sort).Sort(images), nil
}

func (c *Collector) walk(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading directory %s: %w", dir, err)
	}

	var files, dirs []string
	for _, e := range entries {
		p := filepath.Join(dir, e.Name())
		if playback.IsHiddenPath(p) {
			continue
		}
		if e.IsDir() {
			dirs = append(dirs, p)
			continue
		}
		if playback.IsImagePath(p) || loader.IsArchivePath(p) {
			files = append(files, p)
		}
	}

	strategy := GetSortStrategy(c.Sort)
	var paths []string
	for _, f := range strategy.Sort(files) {
		paths = append(paths, c.expandFile(f)...)
	}
	for _, d := range strategy.Sort(dirs) {
		sub, err := c.walk(d)
		if err != nil {
			return nil, err
		}
		paths = append(paths, sub...)
	}
	return paths, nil
}

// expandFile returns the file itself, the image entries of an archive, or
// nothing.
func (c *Collector) expandFile(p string) []string {
	if playback.IsImagePath(p) {
		if playback.IsHiddenPath(p) {
			return nil
		}
		return []string{p}
	}
	if !loader.IsArchivePath(p) {
		return nil
	}

	entries, err := loader.ListEntries(p)
	if err != nil {
		c.Log.Warn().Err(err).Str("archive", p).Msg("skipping problematic archive")
		return nil
	}
	var images []string
	for _, e := range entries {
		if playback.IsImagePath(e) && !playback.IsHiddenPath(e) {
			images = append(images, e)
		}
	}
	c.Log.Debug().Str("archive", p).Int("images", len(images)).Msg("expanded archive")
	return GetSortStrategy(c.Sort).Sort(images)
}
