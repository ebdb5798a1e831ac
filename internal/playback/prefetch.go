package playback

import (
	"context"
	"time"
)

// acquire makes sure rec has a decoded bitmap. done runs on the controller
// goroutine: immediately when rec is already acquired or already loading,
// otherwise once the decode result has been applied. decoded reports whether
// this call started a decode.
//
// A record that is loading is not waited for; at most one decode per record
// is ever in flight. A decode that outlives DecodeTimeout fails the record
// with context.DeadlineExceeded.
func (c *Controller) acquire(rec *Record, done func(decoded bool, err error)) {
	if rec.IsAcquired() || rec.IsLoading() {
		done(false, nil)
		return
	}
	ctx, gen := c.ctx, c.gen
	if err := ctx.Err(); err != nil {
		done(false, err)
		return
	}

	token := rec.beginLoad()
	divisor := c.opts.dpiDivisor()
	timeout := c.opts.DecodeTimeout
	go func() {
		bmp, err := decodeWithin(ctx, c.decoder, rec.path, timeout)
		dispose := func() {
			if bmp != nil {
				bmp.Dispose()
			}
		}
		applied := c.postOwned(func() {
			if gen != c.gen || ctx.Err() != nil {
				dispose()
				rec.failLoad(token, context.Canceled)
				return
			}
			if err != nil {
				if !rec.failLoad(token, err) {
					done(true, errEvicted)
					return
				}
				c.log.Warn().Err(err).Str("path", rec.path).Msg("failed to decode image")
				c.listener.DecodeFailed(rec, err)
				done(true, err)
				return
			}
			if !rec.finishLoad(token, bmp, divisor) {
				bmp.Dispose()
				done(true, errEvicted)
				return
			}
			c.log.Debug().Str("path", rec.path).Msg("decoded")
			done(true, nil)
		}, dispose)
		if !applied {
			dispose()
		}
	}()
}

// decodeWithin gives up on dec after timeout even when dec does not honour
// its context. A bitmap that arrives after that is disposed.
func decodeWithin(ctx context.Context, dec Decoder, path string, timeout time.Duration) (Bitmap, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type result struct {
		bmp Bitmap
		err error
	}
	ch := make(chan result, 1)
	go func() {
		bmp, err := dec.Decode(ctx, path)
		ch <- result{bmp, err}
	}()

	select {
	case r := <-ch:
		return r.bmp, r.err
	case <-ctx.Done():
		go func() {
			if r := <-ch; r.bmp != nil {
				r.bmp.Dispose()
			}
		}()
		return nil, ctx.Err()
	}
}

// evictAround frees the bitmaps 15 places behind and ahead of the cursor
// once the cursor is more than 20 away from either end, bounding resident
// images to a window of about 30.
func (c *Controller) evictAround() {
	q := c.queue
	if q.cursor > evictThreshold {
		c.evict(q.items[q.cursor-evictDistance])
	}
	if q.cursor+evictThreshold < q.Len() {
		c.evict(q.items[q.cursor+evictDistance])
	}
}

func (c *Controller) evict(rec *Record) {
	if rec == c.current {
		return
	}
	if rec.evict() {
		c.log.Debug().Str("path", rec.path).Msg("evicted")
	}
}

// preloadIndices returns the queue indices to decode ahead of the next show
// in the navigation direction.
func preloadIndices(cursor, count, length int, reversed bool) []int {
	var indices []int
	for i := 0; i < count; i++ {
		idx := cursor + i
		if reversed {
			// The next Prev shows cursor-2.
			idx = cursor - 2 - i
		}
		if idx < 0 || idx >= length {
			break
		}
		indices = append(indices, idx)
	}
	return indices
}

func (c *Controller) preloadNeighbours() {
	if c.neighbourCancel != nil {
		c.neighbourCancel()
		c.neighbourCancel = nil
	}
	indices := preloadIndices(c.queue.cursor, c.opts.neighbourPreload(), c.queue.Len(), c.reversed)
	if len(indices) == 0 {
		return
	}
	recs := make([]*Record, len(indices))
	for i, idx := range indices {
		recs[i] = c.queue.items[idx]
	}
	ctx, cancel := context.WithCancel(c.ctx)
	c.neighbourCancel = cancel
	go c.sweep(ctx, recs, c.opts.PrefetchThrottle)
}

func (c *Controller) reportVisible(recs []*Record) {
	if c.visibleCancel != nil {
		c.visibleCancel()
		c.visibleCancel = nil
	}
	if c.empty() || len(recs) == 0 {
		return
	}
	queued := make(map[*Record]struct{}, c.queue.Len())
	for _, r := range c.queue.items {
		queued[r] = struct{}{}
	}
	wanted := make([]*Record, 0, len(recs))
	for _, r := range recs {
		if _, ok := queued[r]; ok {
			wanted = append(wanted, r)
		}
	}
	if len(wanted) == 0 {
		return
	}
	ctx, cancel := context.WithCancel(c.ctx)
	c.visibleCancel = cancel
	go c.sweep(ctx, wanted, c.opts.PrefetchThrottle)
}

// sweep acquires recs one at a time, pausing between decodes so interactive
// work is not starved. It runs off the controller goroutine and stops as soon
// as ctx is cancelled.
func (c *Controller) sweep(ctx context.Context, recs []*Record, throttle time.Duration) {
	for _, rec := range recs {
		if ctx.Err() != nil {
			return
		}
		decoded := make(chan bool, 1)
		if !c.post(func() {
			if ctx.Err() != nil {
				decoded <- false
				return
			}
			c.acquire(rec, func(d bool, _ error) { decoded <- d })
		}) {
			return
		}

		var d bool
		select {
		case d = <-decoded:
		case <-ctx.Done():
			return
		}
		if !d || throttle <= 0 {
			continue
		}
		t := time.NewTimer(throttle)
		select {
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
			return
		}
	}
}

func (c *Controller) cancelWork() {
	if c.visibleCancel != nil {
		c.visibleCancel()
		c.visibleCancel = nil
	}
	if c.neighbourCancel != nil {
		c.neighbourCancel()
		c.neighbourCancel = nil
	}
}
