package playback

import (
	"context"
	"errors"
	"image"
	"slices"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

const waitTimeout = 2 * time.Second

type fakeBitmap struct {
	w, h     int
	disposed atomic.Bool
}

func (b *fakeBitmap) Bounds() image.Rectangle { return image.Rect(0, 0, b.w, b.h) }
func (b *fakeBitmap) Dispose()                { b.disposed.Store(true) }

type fakeDecoder struct {
	mu      sync.Mutex
	fail    map[string]error
	gates   map[string]chan struct{}
	calls   map[string]int
	decoded []*fakeBitmap
}

func newFakeDecoder() *fakeDecoder {
	return &fakeDecoder{
		fail:  map[string]error{},
		gates: map[string]chan struct{}{},
		calls: map[string]int{},
	}
}

func (d *fakeDecoder) Decode(ctx context.Context, path string) (Bitmap, error) {
	d.mu.Lock()
	d.calls[path]++
	gate := d.gates[path]
	err := d.fail[path]
	d.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	bmp := &fakeBitmap{w: 200, h: 100}
	d.mu.Lock()
	d.decoded = append(d.decoded, bmp)
	d.mu.Unlock()
	return bmp, nil
}

func (d *fakeDecoder) callCount(path string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls[path]
}

func (d *fakeDecoder) bitmaps() []*fakeBitmap {
	d.mu.Lock()
	defer d.mu.Unlock()
	return slices.Clone(d.decoded)
}

type shownEvent struct {
	path     string
	index    int
	reversed bool
}

type recorder struct {
	shown     chan shownEvent
	autoplay  chan bool
	replaced  chan []*Record
	reordered chan []*Record
	failed    chan string
}

func newRecorder() *recorder {
	return &recorder{
		shown:     make(chan shownEvent, 256),
		autoplay:  make(chan bool, 16),
		replaced:  make(chan []*Record, 16),
		reordered: make(chan []*Record, 16),
		failed:    make(chan string, 16),
	}
}

func (r *recorder) CurrentImageChanged(rec *Record, index int, reversed bool) {
	r.shown <- shownEvent{rec.Path(), index, reversed}
}
func (r *recorder) AutoplayStateChanged(on bool)        { r.autoplay <- on }
func (r *recorder) QueueReplaced(items []*Record)       { r.replaced <- items }
func (r *recorder) QueueReordered(items []*Record)      { r.reordered <- items }
func (r *recorder) DecodeFailed(rec *Record, err error) { r.failed <- rec.Path() }

func testOptions() Options {
	o := DefaultOptions()
	o.Transition = TransitionNone
	o.PreloadCount = 0
	o.FirstShowDelay = 0
	o.PrefetchThrottle = 0
	o.AutoplayInterval = time.Hour
	return o
}

func newTestController(t *testing.T, dec Decoder, opts Options) (*Controller, *recorder) {
	t.Helper()
	rec := newRecorder()
	c := NewController(dec, rec, opts, zerolog.Nop())
	t.Cleanup(c.Close)
	return c, rec
}

func expectShown(t *testing.T, r *recorder) shownEvent {
	t.Helper()
	select {
	case ev := <-r.shown:
		return ev
	case <-time.After(waitTimeout):
		t.Fatal("timed out waiting for CurrentImageChanged")
	}
	return shownEvent{}
}

func expectNoShown(t *testing.T, r *recorder) {
	t.Helper()
	select {
	case ev := <-r.shown:
		t.Fatalf("unexpected CurrentImageChanged(%s, %d)", ev.path, ev.index)
	case <-time.After(50 * time.Millisecond):
	}
}

func expectAutoplay(t *testing.T, r *recorder, want bool) {
	t.Helper()
	select {
	case on := <-r.autoplay:
		if on != want {
			t.Fatalf("AutoplayStateChanged(%v), want %v", on, want)
		}
	case <-time.After(waitTimeout):
		t.Fatalf("timed out waiting for AutoplayStateChanged(%v)", want)
	}
}

func seqPaths(n int) []string {
	paths := make([]string, n)
	for i := range paths {
		paths[i] = "/img/" + string(rune('a'+i%26)) + string(rune('a'+i/26)) + ".png"
	}
	return paths
}

func TestNewQueue(t *testing.T) {
	tests := []struct {
		name       string
		paths      []string
		selected   string
		wantPaths  []string
		wantCursor int
	}{
		{
			name:       "Filters and dedupes",
			paths:      []string{"/a.png", "/b.txt", "/a.png", "/c.JPG", "/.hidden.png", "/d/._e.jpg", "/f.webp"},
			wantPaths:  []string{"/a.png", "/c.JPG", "/f.webp"},
			wantCursor: 0,
		},
		{
			name:       "Selected sets cursor",
			paths:      []string{"/a.png", "/b.png", "/c.png", "/d.png", "/e.png"},
			selected:   "/c.png",
			wantPaths:  []string{"/a.png", "/b.png", "/c.png", "/d.png", "/e.png"},
			wantCursor: 2,
		},
		{
			name:       "Unknown selected",
			paths:      []string{"/a.png", "/b.png"},
			selected:   "/z.png",
			wantPaths:  []string{"/a.png", "/b.png"},
			wantCursor: 0,
		},
		{
			name:       "Archive entries",
			paths:      []string{"/x.zip:01.png", "/x.zip:02.gif", "/x.zip:readme.txt"},
			wantPaths:  []string{"/x.zip:01.png", "/x.zip:02.gif"},
			wantCursor: 0,
		},
		{
			name:       "Empty",
			paths:      nil,
			wantPaths:  []string{},
			wantCursor: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := NewQueue(tt.paths, tt.selected)
			got := make([]string, 0, q.Len())
			for _, r := range q.Items() {
				got = append(got, r.Path())
			}
			if !slices.Equal(got, tt.wantPaths) {
				t.Errorf("paths = %v, want %v", got, tt.wantPaths)
			}
			if q.Cursor() != tt.wantCursor {
				t.Errorf("cursor = %d, want %d", q.Cursor(), tt.wantCursor)
			}
			if len(q.Original()) != q.Len() {
				t.Errorf("original has %d records, want %d", len(q.Original()), q.Len())
			}
		})
	}
}

func TestControllerLoadShowsSelected(t *testing.T) {
	c, r := newTestController(t, newFakeDecoder(), testOptions())
	paths := []string{"/a.png", "/b.png", "/c.png", "/d.png", "/e.png"}
	if err := c.Load(paths, "/c.png"); err != nil {
		t.Fatal(err)
	}

	ev := expectShown(t, r)
	if ev.path != "/c.png" || ev.index != 2 {
		t.Fatalf("shown %s at %d, want /c.png at 2", ev.path, ev.index)
	}
	s := c.Snapshot()
	if s.Cursor != 3 {
		t.Errorf("cursor = %d, want 3", s.Cursor)
	}
	if s.Current == nil || !s.Current.IsAcquired() || s.Current.IsLoading() {
		t.Errorf("current record not acquired")
	}
	if w, h := s.Current.Size(); w != 200 || h != 100 {
		t.Errorf("size = %vx%v, want 200x100", w, h)
	}
}

func TestControllerNavigation(t *testing.T) {
	c, r := newTestController(t, newFakeDecoder(), testOptions())
	if err := c.Load([]string{"/a.png", "/b.png", "/c.png"}, ""); err != nil {
		t.Fatal(err)
	}
	expectShown(t, r)

	steps := []struct {
		name     string
		op       func() error
		want     string
		index    int
		reversed bool
	}{
		{"Next", c.Next, "/b.png", 1, false},
		{"Next again", c.Next, "/c.png", 2, false},
		{"Prev", c.Prev, "/b.png", 1, true},
		{"Prev to first", c.Prev, "/a.png", 0, true},
		{"Next after prev", c.Next, "/b.png", 1, false},
	}
	for _, st := range steps {
		if err := st.op(); err != nil {
			t.Fatalf("%s: %v", st.name, err)
		}
		ev := expectShown(t, r)
		if ev.path != st.want || ev.index != st.index || ev.reversed != st.reversed {
			t.Errorf("%s: got %+v, want %s at %d reversed=%v", st.name, ev, st.want, st.index, st.reversed)
		}
	}
}

func TestControllerPrevAtStart(t *testing.T) {
	c, r := newTestController(t, newFakeDecoder(), testOptions())
	if err := c.Load([]string{"/a.png", "/b.png"}, ""); err != nil {
		t.Fatal(err)
	}
	expectShown(t, r)
	if err := c.Prev(); err != nil {
		t.Fatal(err)
	}
	expectNoShown(t, r)
	if s := c.Snapshot(); s.Cursor != 1 {
		t.Errorf("cursor = %d, want 1", s.Cursor)
	}
}

func TestControllerEndOfQueue(t *testing.T) {
	tests := []struct {
		name   string
		repeat bool
	}{
		{"Without repeat", false},
		{"With repeat", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := testOptions()
			opts.Repeat = tt.repeat
			c, r := newTestController(t, newFakeDecoder(), opts)
			paths := []string{"/a.png", "/b.png", "/c.png", "/d.png", "/e.png"}
			if err := c.Load(paths, ""); err != nil {
				t.Fatal(err)
			}
			expectShown(t, r)
			for i := 1; i < len(paths); i++ {
				if err := c.Next(); err != nil {
					t.Fatal(err)
				}
				expectShown(t, r)
			}
			if s := c.Snapshot(); s.Cursor != len(paths) {
				t.Fatalf("cursor = %d, want %d", s.Cursor, len(paths))
			}

			if err := c.Next(); err != nil {
				t.Fatal(err)
			}
			if !tt.repeat {
				expectNoShown(t, r)
				if s := c.Snapshot(); s.Cursor != len(paths) {
					t.Errorf("cursor = %d, want %d", s.Cursor, len(paths))
				}
				return
			}
			ev := expectShown(t, r)
			if ev.path != "/a.png" || ev.index != 0 {
				t.Errorf("wrapped to %s at %d, want /a.png at 0", ev.path, ev.index)
			}
		})
	}
}

func TestControllerManualNextPastEndKeepsAutoplay(t *testing.T) {
	c, r := newTestController(t, newFakeDecoder(), testOptions())
	if err := c.Load([]string{"/a.png", "/b.png"}, "/b.png"); err != nil {
		t.Fatal(err)
	}
	expectShown(t, r)
	// Cursor is exhausted; toggling rewinds it so autoplay has work to do.
	if err := c.ToggleAutoplay(); err != nil {
		t.Fatal(err)
	}
	expectAutoplay(t, r, true)
	if err := c.Tick(); err != nil {
		t.Fatal(err)
	}
	expectShown(t, r)
	if err := c.Next(); err != nil {
		t.Fatal(err)
	}
	expectShown(t, r)

	for i := 0; i < 5; i++ {
		if err := c.Next(); err != nil {
			t.Fatal(err)
		}
	}
	expectNoShown(t, r)
	if !c.Snapshot().Autoplay {
		t.Error("manual Next past the end switched autoplay off")
	}
}

func TestControllerAutoplayStopsWhenExhausted(t *testing.T) {
	c, r := newTestController(t, newFakeDecoder(), testOptions())
	if err := c.Load([]string{"/a.png", "/b.png", "/c.png"}, ""); err != nil {
		t.Fatal(err)
	}
	expectShown(t, r)
	for i := 0; i < 2; i++ {
		if err := c.Next(); err != nil {
			t.Fatal(err)
		}
		expectShown(t, r)
	}

	if err := c.ToggleAutoplay(); err != nil {
		t.Fatal(err)
	}
	expectAutoplay(t, r, true)
	if s := c.Snapshot(); s.Cursor != 0 {
		t.Fatalf("cursor after enabling autoplay = %d, want 0", s.Cursor)
	}

	for i := 0; i < 3; i++ {
		if err := c.Tick(); err != nil {
			t.Fatal(err)
		}
		if ev := expectShown(t, r); ev.index != i {
			t.Fatalf("tick %d showed index %d", i+1, ev.index)
		}
	}

	if err := c.Tick(); err != nil {
		t.Fatal(err)
	}
	expectAutoplay(t, r, false)
	expectNoShown(t, r)
	if c.Snapshot().Autoplay {
		t.Error("autoplay still on after exhaustion")
	}
}

func TestControllerAutoplayTimer(t *testing.T) {
	opts := testOptions()
	c, r := newTestController(t, newFakeDecoder(), opts)
	if err := c.Load([]string{"/a.png", "/b.png"}, ""); err != nil {
		t.Fatal(err)
	}
	expectShown(t, r)
	if err := c.SetAutoplayInterval(0.01); err != nil {
		t.Fatal(err)
	}
	if got := c.Options().AutoplayInterval; got != minAutoplayInterval {
		t.Errorf("interval = %v, want %v", got, minAutoplayInterval)
	}
	if err := c.ToggleAutoplay(); err != nil {
		t.Fatal(err)
	}
	expectAutoplay(t, r, true)
	if ev := expectShown(t, r); ev.path != "/b.png" {
		t.Errorf("timer showed %s, want /b.png", ev.path)
	}
	expectAutoplay(t, r, false)
}

func TestControllerShuffle(t *testing.T) {
	c, r := newTestController(t, newFakeDecoder(), testOptions())
	c.shuffle = func(n int, swap func(i, j int)) {
		for i := 0; i < n/2; i++ {
			swap(i, n-1-i)
		}
	}
	paths := []string{"/a.png", "/b.png", "/c.png", "/d.png", "/e.png"}
	if err := c.Load(paths, ""); err != nil {
		t.Fatal(err)
	}
	<-r.replaced
	expectShown(t, r)

	if err := c.ToggleShuffle(); err != nil {
		t.Fatal(err)
	}
	items := <-r.reordered
	got := State{Items: items}.Paths()
	want := []string{"/e.png", "/d.png", "/c.png", "/b.png", "/a.png"}
	if !slices.Equal(got, want) {
		t.Fatalf("shuffled order = %v, want %v", got, want)
	}
	sorted := slices.Clone(got)
	slices.Sort(sorted)
	if !slices.Equal(sorted, paths) {
		t.Errorf("shuffle changed the set of paths: %v", got)
	}
	s := c.Snapshot()
	if !s.Shuffle || s.Cursor != 4 {
		t.Errorf("shuffle=%v cursor=%d, want true 4", s.Shuffle, s.Cursor)
	}

	if err := c.ToggleShuffle(); err != nil {
		t.Fatal(err)
	}
	if got := (State{Items: <-r.reordered}).Paths(); !slices.Equal(got, paths) {
		t.Fatalf("restored order = %v, want %v", got, paths)
	}
	// The cursor sits on the displayed record, which is skipped.
	if err := c.Next(); err != nil {
		t.Fatal(err)
	}
	if ev := expectShown(t, r); ev.path != "/b.png" || ev.index != 1 {
		t.Errorf("after restore showed %s at %d, want /b.png at 1", ev.path, ev.index)
	}
}

func TestControllerShuffleOnLoadKeepsSelected(t *testing.T) {
	opts := testOptions()
	opts.Shuffle = true
	c, r := newTestController(t, newFakeDecoder(), opts)
	c.shuffle = func(n int, swap func(i, j int)) { swap(0, n-1) }
	if err := c.Load([]string{"/a.png", "/b.png", "/c.png"}, "/a.png"); err != nil {
		t.Fatal(err)
	}
	ev := expectShown(t, r)
	if ev.path != "/a.png" || ev.index != 2 {
		t.Errorf("shown %s at %d, want /a.png at 2", ev.path, ev.index)
	}
}

func TestControllerCursorBounds(t *testing.T) {
	c, r := newTestController(t, newFakeDecoder(), testOptions())
	if err := c.Load([]string{"/a.png", "/b.png", "/c.png", "/d.png"}, ""); err != nil {
		t.Fatal(err)
	}
	expectShown(t, r)

	ops := []func() error{c.Next, c.Prev, c.Prev, c.ToggleShuffle, c.Next, c.Next, c.Next, c.Next, c.Next, c.ToggleShuffle, c.Prev, c.Next}
	for i, op := range ops {
		if err := op(); err != nil {
			t.Fatal(err)
		}
		// Drain whatever the op showed before checking.
		time.Sleep(10 * time.Millisecond)
		s := c.Snapshot()
		if s.Cursor < 0 || s.Cursor > s.Len() {
			t.Fatalf("op %d: cursor %d outside [0, %d]", i, s.Cursor, s.Len())
		}
	}
}

func TestControllerEvictionWindow(t *testing.T) {
	dec := newFakeDecoder()
	c, r := newTestController(t, dec, testOptions())
	paths := seqPaths(60)
	if err := c.Load(paths, ""); err != nil {
		t.Fatal(err)
	}
	expectShown(t, r)

	for k := 1; k <= 35; k++ {
		if err := c.Next(); err != nil {
			t.Fatal(err)
		}
		if ev := expectShown(t, r); ev.index != k {
			t.Fatalf("showed index %d, want %d", ev.index, k)
		}
		s := c.Snapshot()
		if !s.Items[k].IsAcquired() {
			t.Fatalf("displayed record %d was evicted", k)
		}
		if k > 20 {
			if s.Items[k-15].IsAcquired() {
				t.Errorf("record %d still acquired after showing %d", k-15, k)
			}
			if s.Items[k+15].IsAcquired() {
				t.Errorf("record %d acquired after showing %d", k+15, k)
			}
		}
	}

	resident := 0
	for _, rec := range c.Snapshot().Items {
		if rec.IsAcquired() {
			resident++
		}
	}
	if resident > 30 {
		t.Errorf("%d records resident, want at most 30", resident)
	}
}

func TestControllerEvictionAfterJump(t *testing.T) {
	dec := newFakeDecoder()
	c, r := newTestController(t, dec, testOptions())
	if err := c.Load(seqPaths(60), ""); err != nil {
		t.Fatal(err)
	}
	expectShown(t, r)
	items := c.Snapshot().Items

	if err := c.ReportVisible(items); err != nil {
		t.Fatal(err)
	}
	deadline := time.Now().Add(waitTimeout)
	for !items[59].IsAcquired() {
		if time.Now().After(deadline) {
			t.Fatal("records were not all decoded")
		}
		time.Sleep(5 * time.Millisecond)
	}

	if err := c.JumpTo(items[30]); err != nil {
		t.Fatal(err)
	}
	if ev := expectShown(t, r); ev.index != 30 {
		t.Fatalf("showed index %d, want 30", ev.index)
	}

	// The window is measured from the advanced cursor (31), not from the
	// shown index.
	want := map[int]bool{14: true, 15: true, 16: false, 17: true, 45: true, 46: false, 47: true}
	for i, resident := range want {
		if got := items[i].IsAcquired(); got != resident {
			t.Errorf("record %d acquired = %v, want %v", i, got, resident)
		}
	}
}

func TestControllerJumpTo(t *testing.T) {
	c, r := newTestController(t, newFakeDecoder(), testOptions())
	if err := c.Load([]string{"/a.png", "/b.png", "/c.png"}, ""); err != nil {
		t.Fatal(err)
	}
	expectShown(t, r)
	items := c.Snapshot().Items

	if err := c.JumpTo(items[2]); err != nil {
		t.Fatal(err)
	}
	if ev := expectShown(t, r); ev.path != "/c.png" || ev.index != 2 {
		t.Errorf("jumped to %s at %d", ev.path, ev.index)
	}

	foreign := NewQueue([]string{"/a.png"}, "").At(0)
	if err := c.JumpTo(foreign); !errors.Is(err, ErrNotFound) {
		t.Errorf("JumpTo(foreign) = %v, want ErrNotFound", err)
	}
	if err := c.JumpToIndex(7); !errors.Is(err, ErrNotFound) {
		t.Errorf("JumpToIndex(7) = %v, want ErrNotFound", err)
	}
	if err := c.JumpToIndex(0); err != nil {
		t.Fatal(err)
	}
	if ev := expectShown(t, r); ev.path != "/a.png" {
		t.Errorf("JumpToIndex(0) showed %s", ev.path)
	}
}

func TestControllerDecodeFailureIsSkipped(t *testing.T) {
	dec := newFakeDecoder()
	dec.fail["/b.png"] = errors.New("corrupt")
	c, r := newTestController(t, dec, testOptions())
	if err := c.Load([]string{"/a.png", "/b.png", "/c.png"}, ""); err != nil {
		t.Fatal(err)
	}
	expectShown(t, r)

	if err := c.Next(); err != nil {
		t.Fatal(err)
	}
	select {
	case p := <-r.failed:
		if p != "/b.png" {
			t.Errorf("DecodeFailed(%s), want /b.png", p)
		}
	case <-time.After(waitTimeout):
		t.Fatal("timed out waiting for DecodeFailed")
	}
	expectNoShown(t, r)

	s := c.Snapshot()
	if s.Cursor != 2 || s.Current.Path() != "/a.png" {
		t.Errorf("cursor=%d current=%s, want 2 /a.png", s.Cursor, s.Current.Path())
	}
	if b := s.Items[1]; b.IsAcquired() || b.IsLoading() || b.Err() == nil {
		t.Errorf("failed record state: acquired=%v loading=%v err=%v", b.IsAcquired(), b.IsLoading(), b.Err())
	}

	if err := c.Next(); err != nil {
		t.Fatal(err)
	}
	if ev := expectShown(t, r); ev.path != "/c.png" {
		t.Errorf("after failure showed %s, want /c.png", ev.path)
	}
}

func TestControllerDpiOverride(t *testing.T) {
	opts := testOptions()
	opts.DpiOverride = true
	opts.DpiScaleFactor = 2
	c, r := newTestController(t, newFakeDecoder(), opts)
	if err := c.Load([]string{"/a.png", "/b.png"}, ""); err != nil {
		t.Fatal(err)
	}
	expectShown(t, r)
	if w, h := c.Snapshot().Current.Size(); w != 100 || h != 50 {
		t.Errorf("size = %vx%v, want 100x50", w, h)
	}

	if err := c.SetDpiOverride(false, 2); err != nil {
		t.Fatal(err)
	}
	ev := expectShown(t, r)
	if ev.path != "/a.png" || ev.index != 0 {
		t.Errorf("reload showed %s at %d, want /a.png at 0", ev.path, ev.index)
	}
	if w, h := c.Snapshot().Current.Size(); w != 200 || h != 100 {
		t.Errorf("size = %vx%v, want 200x100", w, h)
	}
}

func TestControllerQueuesCommandsWhileBusy(t *testing.T) {
	dec := newFakeDecoder()
	gate := make(chan struct{})
	dec.gates["/a.png"] = gate
	c, r := newTestController(t, dec, testOptions())
	if err := c.Load([]string{"/a.png", "/b.png"}, ""); err != nil {
		t.Fatal(err)
	}
	if err := c.Next(); err != nil {
		t.Fatal(err)
	}
	s := c.Snapshot()
	if !s.Busy || s.Pending != 1 {
		t.Fatalf("busy=%v pending=%d, want true 1", s.Busy, s.Pending)
	}
	close(gate)

	for _, want := range []string{"/a.png", "/b.png"} {
		if ev := expectShown(t, r); ev.path != want {
			t.Errorf("showed %s, want %s", ev.path, want)
		}
	}
}

func TestControllerDecodeTimeoutReleasesQueue(t *testing.T) {
	dec := newFakeDecoder()
	gate := make(chan struct{})
	t.Cleanup(func() { close(gate) })
	dec.gates["/b.png"] = gate
	opts := testOptions()
	opts.DecodeTimeout = 200 * time.Millisecond
	c, r := newTestController(t, dec, opts)
	if err := c.Load([]string{"/a.png", "/b.png", "/c.png", "/d.png"}, ""); err != nil {
		t.Fatal(err)
	}
	expectShown(t, r)
	items := c.Snapshot().Items

	for _, op := range []func() error{c.Next, c.Next, c.Next} {
		if err := op(); err != nil {
			t.Fatal(err)
		}
	}
	if err := c.JumpTo(items[0]); err != nil {
		t.Fatal(err)
	}
	if s := c.Snapshot(); !s.Busy || s.Pending != 3 {
		t.Fatalf("busy=%v pending=%d, want true 3", s.Busy, s.Pending)
	}

	select {
	case p := <-r.failed:
		if p != "/b.png" {
			t.Errorf("DecodeFailed(%s), want /b.png", p)
		}
	case <-time.After(waitTimeout):
		t.Fatal("stalled decode was never abandoned")
	}
	if err := items[1].Err(); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("record error = %v, want deadline exceeded", err)
	}

	for _, want := range []string{"/c.png", "/d.png", "/a.png"} {
		if ev := expectShown(t, r); ev.path != want {
			t.Errorf("showed %s, want %s", ev.path, want)
		}
	}
	if s := c.Snapshot(); s.Busy || s.Pending != 0 {
		t.Errorf("busy=%v pending=%d after timeout, want false 0", s.Busy, s.Pending)
	}
}

// stuckDecoder ignores its context and returns only when release is closed.
type stuckDecoder struct {
	release chan struct{}
	bmp     *fakeBitmap
}

func (d *stuckDecoder) Decode(context.Context, string) (Bitmap, error) {
	<-d.release
	return d.bmp, nil
}

func TestDecodeWithinAbandonsStuckDecoder(t *testing.T) {
	dec := &stuckDecoder{release: make(chan struct{}), bmp: &fakeBitmap{w: 1, h: 1}}

	start := time.Now()
	bmp, err := decodeWithin(context.Background(), dec, "/stuck.png", 20*time.Millisecond)
	if !errors.Is(err, context.DeadlineExceeded) || bmp != nil {
		t.Fatalf("decodeWithin = %v, %v, want nil, deadline exceeded", bmp, err)
	}
	if d := time.Since(start); d > waitTimeout {
		t.Fatalf("decodeWithin took %v", d)
	}

	close(dec.release)
	deadline := time.Now().Add(waitTimeout)
	for !dec.bmp.disposed.Load() {
		if time.Now().After(deadline) {
			t.Fatal("late bitmap was not disposed")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestControllerTickDroppedWhileBusy(t *testing.T) {
	dec := newFakeDecoder()
	gate := make(chan struct{})
	dec.gates["/b.png"] = gate
	opts := testOptions()
	opts.Autoplay = true
	c, r := newTestController(t, dec, opts)
	if err := c.Load([]string{"/a.png", "/b.png", "/c.png"}, ""); err != nil {
		t.Fatal(err)
	}
	expectShown(t, r)

	if err := c.Next(); err != nil {
		t.Fatal(err)
	}
	if err := c.Tick(); err != nil {
		t.Fatal(err)
	}
	if s := c.Snapshot(); !s.Busy || s.Pending != 0 {
		t.Fatalf("busy=%v pending=%d, want true 0", s.Busy, s.Pending)
	}
	close(gate)

	if ev := expectShown(t, r); ev.path != "/b.png" || ev.index != 1 {
		t.Errorf("showed %s at %d, want /b.png at 1", ev.path, ev.index)
	}
	expectNoShown(t, r)
	if got := c.Snapshot().Cursor; got != 2 {
		t.Errorf("cursor = %d, want 2", got)
	}
}

func TestControllerJumpToRecordBeingPrefetched(t *testing.T) {
	dec := newFakeDecoder()
	gate := make(chan struct{})
	dec.gates["/c.png"] = gate
	c, r := newTestController(t, dec, testOptions())
	if err := c.Load([]string{"/a.png", "/b.png", "/c.png", "/d.png"}, ""); err != nil {
		t.Fatal(err)
	}
	expectShown(t, r)
	items := c.Snapshot().Items

	if err := c.ReportVisible([]*Record{items[2]}); err != nil {
		t.Fatal(err)
	}
	deadline := time.Now().Add(waitTimeout)
	for !items[2].IsLoading() {
		if time.Now().After(deadline) {
			t.Fatal("prefetch never started")
		}
		time.Sleep(5 * time.Millisecond)
	}

	if err := c.JumpTo(items[2]); err != nil {
		t.Fatal(err)
	}
	// Shown without waiting for the decode already in flight.
	if ev := expectShown(t, r); ev.path != "/c.png" || ev.index != 2 {
		t.Fatalf("showed %s at %d, want /c.png at 2", ev.path, ev.index)
	}
	if !items[2].IsLoading() {
		t.Error("record finished loading before its gate opened")
	}
	close(gate)

	deadline = time.Now().Add(waitTimeout)
	for !items[2].IsAcquired() {
		if time.Now().After(deadline) {
			t.Fatal("prefetch decode never landed")
		}
		time.Sleep(5 * time.Millisecond)
	}
	if n := dec.callCount("/c.png"); n != 1 {
		t.Errorf("decoded /c.png %d times, want 1", n)
	}
}

func TestControllerLoadInvalidatesInFlightDecode(t *testing.T) {
	dec := newFakeDecoder()
	gate := make(chan struct{})
	dec.gates["/old.png"] = gate
	c, r := newTestController(t, dec, testOptions())
	if err := c.Load([]string{"/old.png"}, ""); err != nil {
		t.Fatal(err)
	}
	if err := c.Load([]string{"/new.png"}, ""); err != nil {
		t.Fatal(err)
	}
	if ev := expectShown(t, r); ev.path != "/new.png" {
		t.Errorf("showed %s, want /new.png", ev.path)
	}
	expectNoShown(t, r)
	if got := c.Snapshot().Generation; got != 2 {
		t.Errorf("generation = %d, want 2", got)
	}
}

func TestControllerReportVisible(t *testing.T) {
	dec := newFakeDecoder()
	c, r := newTestController(t, dec, testOptions())
	paths := seqPaths(10)
	if err := c.Load(paths, ""); err != nil {
		t.Fatal(err)
	}
	expectShown(t, r)
	items := c.Snapshot().Items

	foreign := NewQueue([]string{"/elsewhere.png"}, "").At(0)
	if err := c.ReportVisible([]*Record{items[5], items[6], foreign}); err != nil {
		t.Fatal(err)
	}
	deadline := time.Now().Add(waitTimeout)
	for !(items[5].IsAcquired() && items[6].IsAcquired()) {
		if time.Now().After(deadline) {
			t.Fatal("visible records were not prefetched")
		}
		time.Sleep(5 * time.Millisecond)
	}
	if dec.callCount("/elsewhere.png") != 0 {
		t.Error("record outside the queue was decoded")
	}
	if items[7].IsAcquired() {
		t.Error("record that was not visible was decoded")
	}

	// Already resident records are not decoded again.
	if err := c.ReportVisible([]*Record{items[5]}); err != nil {
		t.Fatal(err)
	}
	time.Sleep(20 * time.Millisecond)
	if n := dec.callCount(paths[5]); n != 1 {
		t.Errorf("decoded %s %d times, want 1", paths[5], n)
	}
}

func TestPreloadIndices(t *testing.T) {
	tests := []struct {
		name     string
		cursor   int
		count    int
		length   int
		reversed bool
		want     []int
	}{
		{"Forward", 3, 2, 10, false, []int{3, 4}},
		{"Forward clipped", 9, 3, 10, false, []int{9}},
		{"Reversed", 5, 2, 10, true, []int{3, 2}},
		{"Reversed clipped", 3, 3, 10, true, []int{1, 0}},
		{"Exhausted", 10, 2, 10, false, nil},
		{"None", 3, 0, 10, false, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := preloadIndices(tt.cursor, tt.count, tt.length, tt.reversed)
			if !slices.Equal(got, tt.want) {
				t.Errorf("preloadIndices(%d, %d, %d, %v) = %v, want %v",
					tt.cursor, tt.count, tt.length, tt.reversed, got, tt.want)
			}
		})
	}
}

func TestControllerNeighbourPreload(t *testing.T) {
	dec := newFakeDecoder()
	opts := testOptions()
	opts.PreloadCount = 1
	opts.Transition = TransitionSlide
	c, r := newTestController(t, dec, opts)
	if err := c.Load(seqPaths(6), ""); err != nil {
		t.Fatal(err)
	}
	expectShown(t, r)
	items := c.Snapshot().Items

	deadline := time.Now().Add(waitTimeout)
	for !(items[1].IsAcquired() && items[2].IsAcquired()) {
		if time.Now().After(deadline) {
			t.Fatal("neighbours were not preloaded")
		}
		time.Sleep(5 * time.Millisecond)
	}
	time.Sleep(20 * time.Millisecond)
	if items[3].IsAcquired() {
		t.Error("preloaded further than PreloadCount plus the transition extra")
	}
}

func TestControllerClose(t *testing.T) {
	dec := newFakeDecoder()
	c := NewController(dec, nil, testOptions(), zerolog.Nop())
	if err := c.Load([]string{"/a.png", "/b.png"}, ""); err != nil {
		t.Fatal(err)
	}
	deadline := time.Now().Add(waitTimeout)
	for len(dec.bitmaps()) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("nothing decoded")
		}
		time.Sleep(5 * time.Millisecond)
	}
	time.Sleep(10 * time.Millisecond)
	c.Close()
	c.Close()

	if err := c.Next(); !errors.Is(err, ErrClosed) {
		t.Errorf("Next after Close = %v, want ErrClosed", err)
	}
	for _, b := range dec.bitmaps() {
		if !b.disposed.Load() {
			t.Error("bitmap not disposed on Close")
		}
	}
}

func TestControllerDropsResultsQueuedAtClose(t *testing.T) {
	c := NewController(newFakeDecoder(), nil, testOptions(), zerolog.Nop())
	block := make(chan struct{})
	if !c.post(func() { <-block }) {
		t.Fatal("post refused before Close")
	}

	var ran, dropped atomic.Bool
	if !c.postOwned(func() { ran.Store(true) }, func() { dropped.Store(true) }) {
		t.Fatal("postOwned refused before Close")
	}

	closed := make(chan struct{})
	go func() {
		c.Close()
		close(closed)
	}()
	select {
	case <-c.quit:
	case <-time.After(waitTimeout):
		t.Fatal("Close did not signal quit")
	}
	close(block)
	select {
	case <-closed:
	case <-time.After(waitTimeout):
		t.Fatal("Close did not return")
	}

	if ran.Load() || !dropped.Load() {
		t.Errorf("ran=%v dropped=%v, want false true", ran.Load(), dropped.Load())
	}
	if c.post(func() { ran.Store(true) }) {
		t.Error("post accepted after Close")
	}
	if ran.Load() {
		t.Error("work ran after Close")
	}
}

func TestControllerEmptyQueue(t *testing.T) {
	c, r := newTestController(t, newFakeDecoder(), testOptions())
	if err := c.Load([]string{"/notes.txt"}, ""); err != nil {
		t.Fatal(err)
	}
	for _, op := range []func() error{c.Next, c.Prev, c.ToggleShuffle, c.Tick} {
		if err := op(); err != nil {
			t.Fatal(err)
		}
	}
	expectNoShown(t, r)
	if err := c.ToggleAutoplay(); err != nil {
		t.Fatal(err)
	}
	expectAutoplay(t, r, true)
	if err := c.Tick(); err != nil {
		t.Fatal(err)
	}
	expectAutoplay(t, r, false)
}
