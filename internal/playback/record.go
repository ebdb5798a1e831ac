package playback

import (
	"image"
	"sync"
)

// Bitmap is a decoded image owned by exactly one Record. Dispose frees the
// decoded pixels; the bitmap must not be used afterwards.
type Bitmap interface {
	Bounds() image.Rectangle
	Dispose()
}

// Record is one queued image and its decode state. Only the Controller
// mutates a Record; everything else reads it through the accessors, which are
// safe to call from any goroutine.
type Record struct {
	path string

	mu      sync.RWMutex
	bitmap  Bitmap
	width   float64
	height  float64
	loading bool
	lastErr error

	// token is bumped whenever the record is evicted so that a decode
	// started before the eviction cannot install its result afterwards.
	token uint64
}

func newRecord(path string) *Record {
	return &Record{path: path}
}

// Path returns the file path (or archive:entry path) of the image.
func (r *Record) Path() string {
	return r.path
}

// Bitmap returns the decoded image, or nil when the record is not acquired.
func (r *Record) Bitmap() Bitmap {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.bitmap
}

// Size returns the display dimensions. They are only meaningful while the
// record is acquired.
func (r *Record) Size() (float64, float64) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.width, r.height
}

// IsLoading reports whether a decode is in flight for this record.
func (r *Record) IsLoading() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.loading
}

// IsAcquired reports whether the record holds a decoded bitmap.
func (r *Record) IsAcquired() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.bitmap != nil
}

// Err returns the error of the most recent failed decode, cleared by a
// successful one.
func (r *Record) Err() error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lastErr
}

// beginLoad marks the record as loading and returns the token the decode
// result must present to be applied.
func (r *Record) beginLoad() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.loading = true
	return r.token
}

// finishLoad installs bmp if token is still current. It reports false when the
// result is stale; the caller then owns bmp and must dispose it.
func (r *Record) finishLoad(token uint64, bmp Bitmap, divisor float64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if token != r.token {
		return false
	}
	r.loading = false
	r.lastErr = nil
	r.bitmap = bmp
	b := bmp.Bounds()
	if divisor < 1 {
		divisor = 1
	}
	r.width = float64(b.Dx()) / divisor
	r.height = float64(b.Dy()) / divisor
	return true
}

// failLoad records a failed decode. It reports false when the token is stale.
func (r *Record) failLoad(token uint64, err error) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if token != r.token {
		return false
	}
	r.loading = false
	r.lastErr = err
	return true
}

// evict frees the bitmap and invalidates any in-flight decode.
func (r *Record) evict() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	had := r.bitmap != nil || r.loading
	if r.bitmap != nil {
		r.bitmap.Dispose()
	}
	r.bitmap = nil
	r.width, r.height = 0, 0
	r.loading = false
	r.token++
	return had
}
