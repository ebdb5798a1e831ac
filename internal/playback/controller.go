// Package playback owns the viewing queue: which image is current, the play
// order, the autoplay timer and which decoded images stay resident.
package playback

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	// ErrNotFound is returned by JumpTo for a record that is not queued.
	ErrNotFound = errors.New("playback: record not in queue")
	// ErrClosed is returned by every command after Close.
	ErrClosed = errors.New("playback: controller closed")

	errEvicted = errors.New("playback: record evicted during decode")
)

// Decoder is the image-loading capability the controller delegates to.
// Decode may be called from several goroutines at once.
type Decoder interface {
	Decode(ctx context.Context, path string) (Bitmap, error)
}

// State is a point-in-time copy of the controller state.
type State struct {
	Generation  uint64
	Cursor      int
	Items       []*Record
	Current     *Record
	Shuffle     bool
	Repeat      bool
	Autoplay    bool
	DpiOverride bool
	Busy        bool
	Pending     int
}

// Len returns the queue length at snapshot time.
func (s State) Len() int {
	return len(s.Items)
}

// Paths returns the play order as paths.
func (s State) Paths() []string {
	paths := make([]string, len(s.Items))
	for i, r := range s.Items {
		paths[i] = r.Path()
	}
	return paths
}

// Controller is the playback state machine. All state lives on a single
// goroutine; exported methods hand work to it and return once the work has
// been accepted. Decodes run elsewhere and their results are applied back on
// the controller goroutine.
type Controller struct {
	log      zerolog.Logger
	decoder  Decoder
	listener Listener
	shuffle  func(n int, swap func(i, j int))

	inbox     chan message
	quit      chan struct{}
	done      chan struct{}
	closeOnce sync.Once

	// sendMu orders senders against the final inbox drain: once closed is
	// set nothing more is queued.
	sendMu sync.RWMutex
	closed bool

	// Everything below is owned by the loop goroutine.
	opts      Options
	queue     *Queue
	gen       uint64
	ctx       context.Context
	cancel    context.CancelFunc
	lastShown string
	current   *Record
	reversed  bool

	// busy is set while a show waits for its decode or for the first-show
	// delay. Manual commands queue in pending meanwhile; ticks are dropped.
	busy    bool
	pending []func()

	timer    *time.Timer
	timerSeq uint64

	visibleCancel   context.CancelFunc
	neighbourCancel context.CancelFunc
}

// NewController starts a controller. A nil listener is replaced by
// NopListener. Call Close to stop it.
func NewController(decoder Decoder, listener Listener, opts Options, log zerolog.Logger) *Controller {
	if listener == nil {
		listener = NopListener{}
	}
	ctx, cancel := context.WithCancel(context.Background())
	c := &Controller{
		log:      log.With().Str("component", "playback").Logger(),
		decoder:  decoder,
		listener: listener,
		shuffle:  rand.Shuffle,
		inbox:    make(chan message, 64),
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
		opts:     opts.normalized(),
		ctx:      ctx,
		cancel:   cancel,
	}
	go c.loop()
	return c
}

// message is a unit of work for the controller goroutine. drop, when set,
// releases whatever run would have taken ownership of if the controller
// stops before running it.
type message struct {
	run  func()
	drop func()
}

func (c *Controller) loop() {
	defer close(c.done)
	for {
		select {
		case m := <-c.inbox:
			select {
			case <-c.quit:
				if m.drop != nil {
					m.drop()
				}
				continue
			default:
			}
			m.run()
		case <-c.quit:
			c.shutdown()
			c.drain()
			return
		}
	}
}

// send queues m. It reports false once the controller is closing.
func (c *Controller) send(m message) bool {
	c.sendMu.RLock()
	defer c.sendMu.RUnlock()
	if c.closed {
		return false
	}
	select {
	case <-c.quit:
		return false
	default:
	}
	select {
	case c.inbox <- m:
		return true
	case <-c.quit:
		return false
	}
}

// drain drops everything still queued after shutdown. Senders blocked on a
// full inbox give up once quit is closed, so taking the write lock cannot
// stall.
func (c *Controller) drain() {
	c.sendMu.Lock()
	c.closed = true
	c.sendMu.Unlock()
	for {
		select {
		case m := <-c.inbox:
			if m.drop != nil {
				m.drop()
			}
		default:
			return
		}
	}
}

// do runs fn on the controller goroutine and waits until it has run.
func (c *Controller) do(fn func()) error {
	ran := make(chan struct{})
	if !c.send(message{run: func() { fn(); close(ran) }}) {
		return ErrClosed
	}
	select {
	case <-ran:
		return nil
	case <-c.done:
		return ErrClosed
	}
}

// post queues fn without waiting. It reports false once the controller is
// closed. It must not be called from the controller goroutine.
func (c *Controller) post(fn func()) bool {
	return c.send(message{run: fn})
}

// postOwned is post for results that carry a resource. drop runs instead of
// fn when the controller stops first; on a false return the caller still
// owns the resource.
func (c *Controller) postOwned(fn, drop func()) bool {
	return c.send(message{run: fn, drop: drop})
}

// Close cancels all in-flight decodes and sweeps, frees every decoded
// bitmap and stops the controller goroutine.
func (c *Controller) Close() {
	c.closeOnce.Do(func() { close(c.quit) })
	<-c.done
}

func (c *Controller) shutdown() {
	c.stopTimer()
	c.cancelWork()
	c.cancel()
	if c.queue != nil {
		for _, r := range c.queue.original {
			r.evict()
		}
	}
	c.log.Debug().Msg("controller stopped")
}

// Load replaces the queue with the image paths among candidates and shows
// the first image, or selected when it is one of them.
func (c *Controller) Load(candidates []string, selected string) error {
	return c.do(func() { c.load(NewQueue(candidates, selected)) })
}

// Next shows the next image. At the end of the queue it wraps when repeat is
// on and does nothing otherwise.
func (c *Controller) Next() error {
	return c.do(func() { c.whenIdle(c.next) })
}

// Prev shows the image before the current one.
func (c *Controller) Prev() error {
	return c.do(func() { c.whenIdle(c.prev) })
}

// JumpTo shows rec. It returns ErrNotFound when rec is not queued.
func (c *Controller) JumpTo(rec *Record) error {
	var err error
	if doErr := c.do(func() {
		if c.queue == nil || c.queue.IndexOf(rec) < 0 {
			err = ErrNotFound
			return
		}
		c.whenIdle(func() { c.jumpTo(rec) })
	}); doErr != nil {
		return doErr
	}
	if err != nil {
		c.log.Debug().Str("path", rec.Path()).Msg("jump target not queued")
	}
	return err
}

// JumpToIndex shows the record at index i of the play order.
func (c *Controller) JumpToIndex(i int) error {
	var err error
	if doErr := c.do(func() {
		rec := c.queueAt(i)
		if rec == nil {
			err = ErrNotFound
			return
		}
		c.whenIdle(func() { c.jumpTo(rec) })
	}); doErr != nil {
		return doErr
	}
	return err
}

// ToggleShuffle switches between a random play order and the load order.
func (c *Controller) ToggleShuffle() error {
	return c.do(func() { c.whenIdle(c.toggleShuffle) })
}

// ToggleRepeat switches wraparound at the end of the queue.
func (c *Controller) ToggleRepeat() error {
	return c.do(func() {
		c.opts.Repeat = !c.opts.Repeat
		c.log.Debug().Bool("repeat", c.opts.Repeat).Msg("repeat toggled")
	})
}

// ToggleAutoplay starts or stops the slideshow timer.
func (c *Controller) ToggleAutoplay() error {
	return c.do(c.toggleAutoplay)
}

// SetAutoplayInterval changes the slideshow interval. Values below half a
// second are raised to half a second.
func (c *Controller) SetAutoplayInterval(seconds float64) error {
	return c.do(func() {
		d := time.Duration(seconds * float64(time.Second))
		if d < minAutoplayInterval {
			d = minAutoplayInterval
		}
		c.opts.AutoplayInterval = d
		if c.timer != nil {
			c.armTimer()
		}
	})
}

// Tick advances like the autoplay timer does: when the queue is exhausted
// and repeat is off, autoplay is switched off.
func (c *Controller) Tick() error {
	return c.do(c.tick)
}

// ReportVisible feeds the lookahead prefetch with the records currently
// scrolled into view. It supersedes the previous report.
func (c *Controller) ReportVisible(recs []*Record) error {
	recs = append([]*Record(nil), recs...)
	return c.do(func() { c.reportVisible(recs) })
}

// SetDpiOverride changes the DPI divisor and reloads every decoded image.
func (c *Controller) SetDpiOverride(enabled bool, factor float64) error {
	return c.do(func() {
		c.whenIdle(func() { c.setDpiOverride(enabled, factor) })
	})
}

// Options returns the current settings for persistence.
func (c *Controller) Options() Options {
	var o Options
	if err := c.do(func() { o = c.opts }); err != nil {
		return Options{}
	}
	return o
}

// Snapshot returns a copy of the controller state.
func (c *Controller) Snapshot() State {
	var s State
	_ = c.do(func() {
		s = State{
			Generation:  c.gen,
			Current:     c.current,
			Shuffle:     c.opts.Shuffle,
			Repeat:      c.opts.Repeat,
			Autoplay:    c.opts.Autoplay,
			DpiOverride: c.opts.DpiOverride,
			Busy:        c.busy,
			Pending:     len(c.pending),
		}
		if c.queue != nil {
			s.Cursor = c.queue.cursor
			s.Items = c.queue.Items()
		}
	})
	return s
}

// whenIdle runs fn now, or after the show in flight has finished.
func (c *Controller) whenIdle(fn func()) {
	if c.busy {
		c.pending = append(c.pending, fn)
		return
	}
	fn()
}

func (c *Controller) runPending() {
	for len(c.pending) > 0 && !c.busy {
		fn := c.pending[0]
		c.pending = c.pending[1:]
		fn()
	}
}

func (c *Controller) queueAt(i int) *Record {
	if c.queue == nil {
		return nil
	}
	return c.queue.At(i)
}

func (c *Controller) empty() bool {
	return c.queue == nil || c.queue.Len() == 0
}

func (c *Controller) load(q *Queue) {
	c.stopTimer()
	c.cancelWork()
	c.cancel()
	if c.queue != nil {
		for _, r := range c.queue.original {
			r.evict()
		}
	}

	c.gen++
	c.ctx, c.cancel = context.WithCancel(context.Background())
	if c.opts.Shuffle && q.Len() > 0 {
		selected := q.At(q.cursor)
		q.shuffle(c.shuffle)
		q.cursor = max(q.IndexOf(selected), 0)
	}
	c.queue = q
	c.lastShown = ""
	c.current = nil
	c.reversed = false
	c.busy = false
	c.pending = nil

	c.log.Info().Int("images", q.Len()).Int("cursor", q.cursor).Uint64("generation", c.gen).Msg("queue loaded")
	c.listener.QueueReplaced(q.Items())
	if q.Len() == 0 {
		return
	}

	if c.opts.FirstShowDelay <= 0 {
		c.showCurrent()
		return
	}
	c.busy = true
	gen := c.gen
	time.AfterFunc(c.opts.FirstShowDelay, func() {
		c.post(func() {
			if gen != c.gen {
				return
			}
			c.busy = false
			c.showCurrent()
			c.runPending()
		})
	})
}

// showCurrent displays the record at the cursor and moves the cursor past it.
func (c *Controller) showCurrent() {
	if c.empty() {
		return
	}
	q := c.queue
	skipped := false
	for {
		if q.cursor < 0 || q.cursor >= q.Len() {
			if !c.opts.Repeat {
				if c.opts.Autoplay {
					c.setAutoplay(false)
				}
				return
			}
			q.cursor = 0
		}
		rec := q.items[q.cursor]
		// Showing the same path twice in a row would flash the image
		// again; this happens right after the cursor is realigned to the
		// displayed record.
		if rec.path == c.lastShown && !skipped {
			skipped = true
			q.cursor++
			continue
		}
		break
	}

	idx := q.cursor
	rec := q.items[idx]
	gen := c.gen
	c.busy = true
	c.acquire(rec, func(_ bool, err error) {
		if gen != c.gen {
			return
		}
		c.busy = false
		c.finishShow(rec, idx, err)
	})
}

func (c *Controller) finishShow(rec *Record, idx int, err error) {
	q := c.queue
	if err != nil {
		// The record stays un-acquired and is stepped over; the next
		// navigation or tick moves on.
		q.cursor = idx + 1
		if c.opts.Autoplay {
			c.armTimer()
		}
		c.runPending()
		return
	}

	c.lastShown = rec.path
	c.current = rec
	q.cursor = idx + 1
	c.evictAround()
	c.preloadNeighbours()
	if c.opts.Autoplay {
		c.armTimer()
	}
	c.log.Debug().Str("path", rec.path).Int("index", idx).Bool("reversed", c.reversed).Msg("showing")
	c.listener.CurrentImageChanged(rec, idx, c.reversed)
	c.runPending()
}

func (c *Controller) next() {
	if c.empty() {
		return
	}
	if c.queue.cursor >= c.queue.Len() {
		if !c.opts.Repeat {
			return
		}
		c.queue.cursor = 0
	}
	c.reversed = false
	c.showCurrent()
}

func (c *Controller) prev() {
	if c.empty() || c.queue.cursor <= 1 {
		return
	}
	c.queue.cursor -= 2
	c.reversed = true
	c.showCurrent()
}

func (c *Controller) jumpTo(rec *Record) {
	if c.empty() {
		return
	}
	idx := c.queue.IndexOf(rec)
	if idx < 0 {
		return
	}
	c.queue.cursor = idx
	c.reversed = false
	c.showCurrent()
}

func (c *Controller) tick() {
	if !c.opts.Autoplay {
		return
	}
	if c.busy {
		c.log.Debug().Msg("tick dropped, show in flight")
		return
	}
	if c.empty() {
		c.setAutoplay(false)
		return
	}
	if c.queue.cursor >= c.queue.Len() {
		if !c.opts.Repeat {
			c.setAutoplay(false)
			return
		}
		c.queue.cursor = 0
	}
	c.reversed = false
	c.showCurrent()
}

func (c *Controller) toggleShuffle() {
	wasPlaying := c.opts.Autoplay
	c.stopTimer()

	c.opts.Shuffle = !c.opts.Shuffle
	if q := c.queue; q != nil {
		if c.opts.Shuffle {
			q.shuffle(c.shuffle)
		} else {
			q.restore()
		}
		q.cursor = max(q.indexOfPath(c.lastShown), 0)
		c.listener.QueueReordered(q.Items())
	}
	c.log.Debug().Bool("shuffle", c.opts.Shuffle).Msg("shuffle toggled")

	if wasPlaying && !c.empty() {
		c.armTimer()
	}
}

func (c *Controller) toggleAutoplay() {
	if !c.opts.Autoplay && c.queue != nil && c.queue.cursor >= c.queue.Len() {
		c.queue.cursor = 0
	}
	c.setAutoplay(!c.opts.Autoplay)
}

func (c *Controller) setAutoplay(on bool) {
	if c.opts.Autoplay == on {
		return
	}
	c.opts.Autoplay = on
	if on && !c.empty() {
		c.armTimer()
	} else {
		c.stopTimer()
	}
	c.log.Debug().Bool("autoplay", on).Msg("autoplay changed")
	c.listener.AutoplayStateChanged(on)
}

func (c *Controller) armTimer() {
	c.stopTimer()
	c.timerSeq++
	seq := c.timerSeq
	c.timer = time.AfterFunc(c.opts.AutoplayInterval, func() {
		c.post(func() {
			if seq != c.timerSeq {
				return
			}
			c.timer = nil
			c.tick()
		})
	})
}

func (c *Controller) stopTimer() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.timerSeq++
}

func (c *Controller) setDpiOverride(enabled bool, factor float64) {
	if factor < 1 {
		factor = 1
	}
	c.opts.DpiOverride = enabled
	c.opts.DpiScaleFactor = factor
	if c.queue == nil {
		return
	}

	c.cancelWork()
	for _, r := range c.queue.original {
		r.evict()
	}
	c.log.Info().Bool("enabled", enabled).Float64("factor", factor).Msg("dpi override changed, reloading")

	cur := c.current
	if cur == nil {
		return
	}
	idx := c.queue.IndexOf(cur)
	if idx < 0 {
		return
	}
	c.queue.cursor = idx
	c.lastShown = ""
	c.current = nil
	c.showCurrent()
}
