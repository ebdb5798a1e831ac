package loader

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/bodgit/sevenzip"
	"github.com/nwaples/rardecode"
)

var (
	ErrUnsupportedArchive = errors.New("loader: unsupported archive format")
	ErrEntryNotFound      = errors.New("loader: archive entry not found")
)

// ArchiveExtensions are the container formats whose entries can be viewed.
var ArchiveExtensions = []string{".zip", ".rar", ".7z"}

// IsArchivePath reports whether path names a supported archive.
func IsArchivePath(path string) bool {
	return slices.Contains(ArchiveExtensions, strings.ToLower(filepath.Ext(path)))
}

// EntryPath joins an archive path and an entry name into the single
// "archive:entry" string used as an image path.
func EntryPath(archive, entry string) string {
	return archive + ":" + entry
}

// SplitEntryPath is the inverse of EntryPath. ok is false for plain file
// paths, including Windows paths with a drive letter.
func SplitEntryPath(path string) (archive, entry string, ok bool) {
	lower := strings.ToLower(path)
	for _, ext := range ArchiveExtensions {
		if i := strings.Index(lower, ext+":"); i >= 0 {
			end := i + len(ext)
			return path[:end], path[end+1:], true
		}
	}
	return "", "", false
}

// ListEntries returns the archive:entry paths of every file stored in
// archive, in stored order. Directories are left out; filtering by image
// extension is up to the caller.
func ListEntries(archive string) ([]string, error) {
	var names []string
	var err error
	switch strings.ToLower(filepath.Ext(archive)) {
	case ".zip":
		names, err = listZip(archive)
	case ".rar":
		names, err = listRar(archive)
	case ".7z":
		names, err = list7z(archive)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedArchive, archive)
	}
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", archive, err)
	}
	paths := make([]string, len(names))
	for i, n := range names {
		paths[i] = EntryPath(archive, n)
	}
	return paths, nil
}

func listZip(archive string) ([]string, error) {
	r, err := zip.OpenReader(archive)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	var names []string
	for _, f := range r.File {
		if !f.FileInfo().IsDir() {
			names = append(names, f.Name)
		}
	}
	return names, nil
}

func listRar(archive string) ([]string, error) {
	f, err := os.Open(archive)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r, err := rardecode.NewReader(f, "")
	if err != nil {
		return nil, err
	}
	var names []string
	for {
		header, err := r.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if !header.IsDir {
			names = append(names, header.Name)
		}
	}
	return names, nil
}

func list7z(archive string) ([]string, error) {
	r, err := sevenzip.OpenReader(archive)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	var names []string
	for _, f := range r.File {
		if !f.FileInfo().IsDir() {
			names = append(names, f.Name)
		}
	}
	return names, nil
}

// ReadFile returns the bytes of a plain file or of an archive:entry path.
func ReadFile(path string) ([]byte, error) {
	archive, entry, ok := SplitEntryPath(path)
	if !ok {
		return os.ReadFile(path)
	}
	switch strings.ToLower(filepath.Ext(archive)) {
	case ".zip":
		return readZipEntry(archive, entry)
	case ".rar":
		return readRarEntry(archive, entry)
	case ".7z":
		return read7zEntry(archive, entry)
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedArchive, archive)
}

func readZipEntry(archive, entry string) ([]byte, error) {
	r, err := zip.OpenReader(archive)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	for _, f := range r.File {
		if f.Name != entry {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, err
		}
		defer rc.Close()
		return io.ReadAll(rc)
	}
	return nil, fmt.Errorf("%w: %s in %s", ErrEntryNotFound, entry, archive)
}

func readRarEntry(archive, entry string) ([]byte, error) {
	f, err := os.Open(archive)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r, err := rardecode.NewReader(f, "")
	if err != nil {
		return nil, err
	}
	for {
		header, err := r.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if header.Name == entry {
			return io.ReadAll(r)
		}
	}
	return nil, fmt.Errorf("%w: %s in %s", ErrEntryNotFound, entry, archive)
}

func read7zEntry(archive, entry string) ([]byte, error) {
	r, err := sevenzip.OpenReader(archive)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	for _, f := range r.File {
		if f.Name != entry {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, err
		}
		defer rc.Close()
		return io.ReadAll(rc)
	}
	return nil, fmt.Errorf("%w: %s in %s", ErrEntryNotFound, entry, archive)
}
