package mclens

import (
	"sync"
	"time"
)

const (
	DefaultDebounce = 200 * time.Millisecond
	DefaultMaxDelay = 1000 * time.Millisecond
)

// Change is new content for a path, or its deletion.
type Change struct {
	Text    string
	Deleted bool
}

func (c Change) same(o Change) bool {
	return c.Deleted == o.Deleted && (c.Deleted || c.Text == o.Text)
}

// batcher coalesces rapid changes. A flush happens once debounce has passed
// since the last Record, or at the latest maxDelay after the first unflushed
// change.
type batcher struct {
	clock    Clock
	debounce time.Duration
	maxDelay time.Duration
	flush    func(map[string]Change)

	// handoff is held from taking a pending set until flush returns, so
	// FlushNow never returns while another flush is still being handed on.
	handoff sync.Mutex

	mu      sync.Mutex
	pending map[string]Change
	first   time.Time
	timer   Timer
	// gen invalidates timers that fire after being replaced or stopped.
	gen uint64
}

func newBatcher(clock Clock, debounce, maxDelay time.Duration, flush func(map[string]Change)) *batcher {
	return &batcher{
		clock:    clock,
		debounce: debounce,
		maxDelay: maxDelay,
		flush:    flush,
		pending:  make(map[string]Change),
	}
}

// Record adds a change and rearms the timer.
func (b *batcher) Record(path string, c Change) {
	b.mu.Lock()
	now := b.clock.Now()
	if len(b.pending) == 0 {
		b.first = now
	}
	b.pending[path] = c
	elapsed := now.Sub(b.first)
	if elapsed >= b.maxDelay {
		b.stopLocked()
		b.mu.Unlock()
		b.emit(0, false)
		return
	}
	delay := min(b.debounce, b.maxDelay-elapsed)
	b.stopLocked()
	gen := b.gen
	b.timer = b.clock.AfterFunc(delay, func() { b.fire(gen) })
	b.mu.Unlock()
}

// Cancel drops the pending change for path, if any.
func (b *batcher) Cancel(path string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.pending[path]; !ok {
		return
	}
	delete(b.pending, path)
	if len(b.pending) == 0 {
		b.stopLocked()
	}
}

// Pending returns the pending change for path.
func (b *batcher) Pending(path string) (Change, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	c, ok := b.pending[path]
	return c, ok
}

// FlushNow stops the timer and hands the pending set to flush before
// returning it. The set may be empty, in which case flush is not called.
// Once FlushNow returns, every change recorded before the call has been
// passed to flush.
func (b *batcher) FlushNow() map[string]Change {
	return b.emit(0, false)
}

// Stop discards pending changes.
func (b *batcher) Stop() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.takeLocked()
}

func (b *batcher) fire(gen uint64) {
	b.emit(gen, true)
}

// emit takes the pending set and passes it to flush. A timed emit is
// dropped when its timer was replaced or stopped.
func (b *batcher) emit(gen uint64, timed bool) map[string]Change {
	b.handoff.Lock()
	defer b.handoff.Unlock()
	b.mu.Lock()
	if (timed && gen != b.gen) || len(b.pending) == 0 {
		b.mu.Unlock()
		return nil
	}
	set := b.takeLocked()
	b.mu.Unlock()
	b.flush(set)
	return set
}

func (b *batcher) takeLocked() map[string]Change {
	b.stopLocked()
	set := b.pending
	b.pending = make(map[string]Change)
	return set
}

func (b *batcher) stopLocked() {
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
	b.gen++
}
