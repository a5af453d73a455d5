package mclens

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type flushRecorder struct {
	mu      sync.Mutex
	flushes []map[string]Change
}

func (r *flushRecorder) flush(set map[string]Change) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.flushes = append(r.flushes, set)
}

func (r *flushRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.flushes)
}

func newTestBatcher(t *testing.T) (*batcher, *fakeClock, *flushRecorder) {
	t.Helper()
	clock := newFakeClock()
	rec := &flushRecorder{}
	b := newBatcher(clock, DefaultDebounce, DefaultMaxDelay, rec.flush)
	t.Cleanup(b.Stop)
	return b, clock, rec
}

func TestBatcher_RapidEditsFlushOnce(t *testing.T) {
	t.Parallel()
	b, clock, rec := newTestBatcher(t)

	for i, text := range []string{"a", "ab", "abc", "abcd", "abcde"} {
		if i > 0 {
			clock.Advance(50 * time.Millisecond)
		}
		b.Record("/p/a.mc", Change{Text: text})
	}
	clock.Advance(199 * time.Millisecond)
	assert.Equal(t, 0, rec.count(), "still inside the debounce window")

	clock.Advance(1 * time.Millisecond)
	require.Equal(t, 1, rec.count())
	assert.Equal(t, map[string]Change{"/p/a.mc": {Text: "abcde"}}, rec.flushes[0])

	clock.Advance(time.Second)
	assert.Equal(t, 1, rec.count())
}

func TestBatcher_HardCapForcesIntermediateFlush(t *testing.T) {
	t.Parallel()
	b, clock, rec := newTestBatcher(t)

	// An edit every 150ms never leaves 200ms of quiet.
	for i := 0; i < 12; i++ {
		b.Record("/p/a.mc", Change{Text: string(rune('a' + i))})
		clock.Advance(150 * time.Millisecond)
	}
	assert.GreaterOrEqual(t, rec.count(), 1)

	clock.Advance(time.Second)
	assert.GreaterOrEqual(t, rec.count(), 2)
	last := rec.flushes[rec.count()-1]
	assert.Equal(t, Change{Text: "l"}, last["/p/a.mc"])
}

func TestBatcher_HardCapMeasuredFromFirstChange(t *testing.T) {
	t.Parallel()
	b, clock, rec := newTestBatcher(t)

	b.Record("/p/a.mc", Change{Text: "1"})
	for i := 0; i < 5; i++ {
		clock.Advance(190 * time.Millisecond)
		b.Record("/p/b.mc", Change{Text: "2"})
	}
	// 950ms after the first change the timer is capped at the remaining 50ms.
	assert.Equal(t, 0, rec.count())
	clock.Advance(50 * time.Millisecond)
	require.Equal(t, 1, rec.count())
	assert.Len(t, rec.flushes[0], 2)
}

func TestBatcher_CancelDropsPending(t *testing.T) {
	t.Parallel()
	b, clock, rec := newTestBatcher(t)

	b.Record("/p/a.mc", Change{Text: "x"})
	b.Cancel("/p/a.mc")
	_, ok := b.Pending("/p/a.mc")
	assert.False(t, ok)

	clock.Advance(time.Second)
	assert.Equal(t, 0, rec.count())
}

func TestBatcher_FlushNowStopsTimer(t *testing.T) {
	t.Parallel()
	b, clock, rec := newTestBatcher(t)

	b.Record("/p/a.mc", Change{Text: "x"})
	b.Record("/p/b.mc", Change{Deleted: true})
	set := b.FlushNow()
	want := map[string]Change{
		"/p/a.mc": {Text: "x"},
		"/p/b.mc": {Deleted: true},
	}
	assert.Equal(t, want, set)
	require.Equal(t, 1, rec.count())
	assert.Equal(t, want, rec.flushes[0])

	clock.Advance(time.Second)
	assert.Equal(t, 1, rec.count(), "a forced flush must not be followed by a timer flush")
	assert.Empty(t, b.FlushNow())
	assert.Equal(t, 1, rec.count())
}

func TestBatcher_FlushNowWaitsForTimerHandoff(t *testing.T) {
	t.Parallel()
	clock := newFakeClock()
	entered := make(chan struct{})
	release := make(chan struct{})
	var handed atomic.Bool
	b := newBatcher(clock, DefaultDebounce, DefaultMaxDelay, func(map[string]Change) {
		close(entered)
		<-release
		handed.Store(true)
	})
	t.Cleanup(b.Stop)

	b.Record("/p/a.mc", Change{Text: "x"})
	go clock.Advance(DefaultDebounce)
	<-entered

	done := make(chan struct{})
	go func() {
		b.FlushNow()
		close(done)
	}()
	select {
	case <-done:
		t.Fatal("FlushNow returned before the timer flush was handed on")
	case <-time.After(20 * time.Millisecond):
	}
	close(release)
	<-done
	assert.True(t, handed.Load())
}

func TestChange_Same(t *testing.T) {
	t.Parallel()
	assert.True(t, Change{Text: "a"}.same(Change{Text: "a"}))
	assert.False(t, Change{Text: "a"}.same(Change{Text: "b"}))
	assert.True(t, Change{Deleted: true, Text: "x"}.same(Change{Deleted: true}))
	assert.False(t, Change{Deleted: true}.same(Change{}))
}
