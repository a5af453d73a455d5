package mclens

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
	"go.lsp.dev/protocol"
)

const testRoot = "/proj"

const testManifest = `<?xml version="1.0"?>
<iq:manifest xmlns:iq="http://www.garmin.com/xml/connectiq" version="3">
    <iq:application id="abc" entry="DemoApp" type="watchapp">
        <iq:products>
            <iq:product id="fenix6"/>
        </iq:products>
    </iq:application>
</iq:manifest>
`

// fakeClock is a manual Clock. Timers fire from Advance, on the calling
// goroutine.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

type fakeTimer struct {
	c       *fakeClock
	at      time.Time
	f       func()
	stopped bool
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{c: c, at: c.now.Add(d), f: f}
	c.timers = append(c.timers, t)
	return t
}

func (t *fakeTimer) Stop() bool {
	t.c.mu.Lock()
	defer t.c.mu.Unlock()
	was := !t.stopped
	t.stopped = true
	return was
}

// Advance moves the clock forward and runs the timers that came due.
func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	var due []*fakeTimer
	rest := c.timers[:0]
	for _, t := range c.timers {
		switch {
		case t.stopped:
		case !t.at.After(c.now):
			t.stopped = true
			due = append(due, t)
		default:
			rest = append(rest, t)
		}
	}
	c.timers = rest
	c.mu.Unlock()
	sort.SliceStable(due, func(i, j int) bool { return due[i].at.Before(due[j].at) })
	for _, t := range due {
		t.f()
	}
}

func withAnalyzer(f analyzeFunc) Option {
	return func(p *Project) { p.analyze = f }
}

func newTestFs(t *testing.T, files map[string]string) afero.Fs {
	t.Helper()
	fsys := afero.NewMemMapFs()
	for path, content := range files {
		require.NoError(t, afero.WriteFile(fsys, path, []byte(content), 0o644))
	}
	return fsys
}

// projectFiles returns a minimal project layout plus the given sources,
// keyed by path relative to the root.
func projectFiles(srcs map[string]string) map[string]string {
	files := map[string]string{
		testRoot + "/monkey.jungle": "project.manifest = manifest.xml\n",
		testRoot + "/manifest.xml":  testManifest,
	}
	for rel, text := range srcs {
		files[testRoot+"/"+rel] = text
	}
	return files
}

type testProject struct {
	*Project
	fs    afero.Fs
	clock *fakeClock

	mu    sync.Mutex
	snaps []*Snapshot
}

func newTestProject(t *testing.T, srcs map[string]string, opts ...Option) *testProject {
	t.Helper()
	tp := &testProject{fs: newTestFs(t, projectFiles(srcs)), clock: newFakeClock()}
	all := append([]Option{
		WithFs(tp.fs),
		WithClock(tp.clock),
		WithCheckInvalidSymbols("WARNING"),
		WithOnSnapshot(func(s *Snapshot) {
			tp.mu.Lock()
			tp.snaps = append(tp.snaps, s)
			tp.mu.Unlock()
		}),
	}, opts...)
	p, err := New(testRoot, all...)
	require.NoError(t, err)
	t.Cleanup(func() { p.Close() })
	tp.Project = p
	return tp
}

// published returns the number of snapshots published so far.
func (tp *testProject) published() int {
	tp.mu.Lock()
	defer tp.mu.Unlock()
	return len(tp.snaps)
}

func (tp *testProject) snapshot(t *testing.T) *Snapshot {
	t.Helper()
	snap, err := tp.Snapshot(context.Background())
	require.NoError(t, err)
	require.NotNil(t, snap)
	return snap
}

func srcPath(rel string) string { return testRoot + "/" + rel }

// posOf returns the protocol position of the nth (0-based) occurrence of
// needle in text, shifted right by offset runes.
func posOf(t *testing.T, text, needle string, nth, offset int) protocol.Position {
	t.Helper()
	idx := -1
	from := 0
	for i := 0; i <= nth; i++ {
		j := strings.Index(text[from:], needle)
		require.GreaterOrEqual(t, j, 0, "occurrence %d of %q", i, needle)
		idx = from + j
		from = idx + len(needle)
	}
	before := text[:idx]
	line := strings.Count(before, "\n")
	col := len([]rune(before[strings.LastIndex(before, "\n")+1:]))
	return protocol.Position{Line: uint32(line), Character: uint32(col + offset)}
}

// locs renders locations as "file:line:col" with 1-based numbers and
// root-relative paths.
func locs(ls []protocol.Location) []string {
	out := make([]string, 0, len(ls))
	for _, l := range ls {
		rel := strings.TrimPrefix(URIPath(l.URI), testRoot+"/")
		out = append(out, fmt.Sprintf("%s:%d:%d", rel, l.Range.Start.Line+1, l.Range.Start.Character+1))
	}
	return out
}
