package playback

import (
	"path/filepath"
	"slices"
	"strings"
)

// ImageExtensions is the set of recognized image extensions, lower case.
var ImageExtensions = []string{".jpg", ".jpeg", ".gif", ".png", ".webp", ".bmp"}

// IsImagePath reports whether path has a recognized image extension,
// ignoring case.
func IsImagePath(path string) bool {
	return slices.Contains(ImageExtensions, strings.ToLower(filepath.Ext(path)))
}

// IsHiddenPath reports whether the file name starts with a dot. This covers
// dot files and the "._" metadata files macOS leaves on shared volumes.
func IsHiddenPath(path string) bool {
	return strings.HasPrefix(baseName(path), ".")
}

// baseName returns the last element of a file path or an archive:entry path.
func baseName(path string) string {
	if i := strings.LastIndexAny(path, `/\:`); i >= 0 {
		return path[i+1:]
	}
	return path
}

// Queue is the ordered list of records being played plus the cursor. The
// cursor is the index of the next record to show, so after a show it sits
// one past the displayed record and may equal Len().
//
// A Queue is not safe for concurrent use; the Controller owns it.
type Queue struct {
	items    []*Record
	original []*Record
	cursor   int
}

// NewQueue builds a queue from candidate paths. Paths without an image
// extension, hidden files and duplicates are dropped; first-seen order is
// kept. When selected is present the cursor starts at its position.
func NewQueue(paths []string, selected string) *Queue {
	seen := make(map[string]struct{}, len(paths))
	items := make([]*Record, 0, len(paths))
	cursor := 0
	for _, p := range paths {
		if !IsImagePath(p) || IsHiddenPath(p) {
			continue
		}
		if _, dup := seen[p]; dup {
			continue
		}
		seen[p] = struct{}{}
		if selected != "" && p == selected {
			cursor = len(items)
		}
		items = append(items, newRecord(p))
	}
	return &Queue{
		items:    items,
		original: slices.Clone(items),
		cursor:   cursor,
	}
}

// Len returns the number of records.
func (q *Queue) Len() int {
	return len(q.items)
}

// Cursor returns the index of the next record to show.
func (q *Queue) Cursor() int {
	return q.cursor
}

// Items returns a copy of the current play order.
func (q *Queue) Items() []*Record {
	return slices.Clone(q.items)
}

// Original returns a copy of the load order.
func (q *Queue) Original() []*Record {
	return slices.Clone(q.original)
}

// At returns the record at index i or nil when out of range.
func (q *Queue) At(i int) *Record {
	if i < 0 || i >= len(q.items) {
		return nil
	}
	return q.items[i]
}

// IndexOf returns the position of rec in the play order, or -1.
func (q *Queue) IndexOf(rec *Record) int {
	return slices.Index(q.items, rec)
}

func (q *Queue) indexOfPath(path string) int {
	if path == "" {
		return -1
	}
	return slices.IndexFunc(q.items, func(r *Record) bool { return r.path == path })
}

// shuffle reorders items to a random permutation of the load order.
func (q *Queue) shuffle(swap func(n int, swap func(i, j int))) {
	q.items = slices.Clone(q.original)
	swap(len(q.items), func(i, j int) {
		q.items[i], q.items[j] = q.items[j], q.items[i]
	})
}

// restore puts items back in load order.
func (q *Queue) restore() {
	q.items = slices.Clone(q.original)
}
