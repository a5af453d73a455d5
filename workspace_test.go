package mclens

import (
	"context"
	"sync"
	"testing"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestWorkspace(t *testing.T, fsys afero.Fs) *Workspace {
	t.Helper()
	w := NewWorkspace(WithFs(fsys), WithClock(newFakeClock()))
	t.Cleanup(func() { w.Close() })
	return w
}

func TestWorkspace_OpenSharesProject(t *testing.T) {
	t.Parallel()
	w := newTestWorkspace(t, newTestFs(t, projectFiles(map[string]string{"source/App.mc": appSrc})))
	ctx := context.Background()

	var wg sync.WaitGroup
	got := make([]*Project, 4)
	for i := range got {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p, err := w.Open(ctx, testRoot)
			assert.NoError(t, err)
			got[i] = p
		}(i)
	}
	wg.Wait()

	require.NotNil(t, got[0])
	for _, p := range got[1:] {
		assert.Same(t, got[0], p)
	}
	assert.NotNil(t, got[0].Current())
	assert.Len(t, w.Projects(), 1)
}

func TestWorkspace_ProjectForDeepestRoot(t *testing.T) {
	t.Parallel()
	files := projectFiles(map[string]string{
		"source/App.mc":             appSrc,
		"watch/monkey.jungle":       "project.manifest = manifest.xml\n",
		"watch/manifest.xml":        testManifest,
		"watch/source/WatchFace.mc": "class WatchFace {}\n",
	})
	w := newTestWorkspace(t, newTestFs(t, files))
	ctx := context.Background()

	outer, err := w.Open(ctx, testRoot)
	require.NoError(t, err)
	inner, err := w.Open(ctx, srcPath("watch"))
	require.NoError(t, err)

	assert.Same(t, outer, w.ProjectFor(srcPath("source/App.mc")))
	assert.Same(t, inner, w.ProjectFor(srcPath("watch/source/WatchFace.mc")))
	assert.Nil(t, w.ProjectFor("/elsewhere/x.mc"))
	assert.Equal(t, []*Project{outer, inner}, w.Projects())
}

func newTestWatcher(t *testing.T, p *Project) *Watcher {
	t.Helper()
	wt, err := NewWatcher(func(path string) *Project {
		if underRoot(p.root, path) {
			return p
		}
		return nil
	}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { wt.Close() })
	return wt
}

func TestWatcher_WriteAndRemove(t *testing.T) {
	t.Parallel()
	tp := newAppProject(t)
	wt := newTestWatcher(t, tp.Project)
	tp.snapshot(t)

	edited := appSrc + "\nfunction extra() {\n}\n"
	require.NoError(t, afero.WriteFile(tp.fs, srcPath("source/App.mc"), []byte(edited), 0o644))
	wt.handle(fsnotify.Event{Name: srcPath("source/App.mc"), Op: fsnotify.Write})
	snap := tp.snapshot(t)
	assert.Equal(t, edited, snap.Files[srcPath("source/App.mc")].Text)

	require.NoError(t, tp.fs.Remove(srcPath("source/views/View.mc")))
	wt.handle(fsnotify.Event{Name: srcPath("source/views/View.mc"), Op: fsnotify.Remove})
	snap = tp.snapshot(t)
	assert.Equal(t, []string{srcPath("source/App.mc")}, snap.FilePaths())
}

func TestWatcher_CreatedDirectory(t *testing.T) {
	t.Parallel()
	tp := newAppProject(t)
	wt := newTestWatcher(t, tp.Project)
	tp.snapshot(t)

	require.NoError(t, afero.WriteFile(tp.fs, srcPath("source/extra/Extra.mc"), []byte("function extra() {}\n"), 0o644))
	require.NoError(t, afero.WriteFile(tp.fs, srcPath("source/extra/.cache/Skip.mc"), []byte("function skip() {}\n"), 0o644))
	wt.handle(fsnotify.Event{Name: srcPath("source/extra"), Op: fsnotify.Create})

	snap := tp.snapshot(t)
	assert.Contains(t, snap.FilePaths(), srcPath("source/extra/Extra.mc"))
	assert.NotContains(t, snap.FilePaths(), srcPath("source/extra/.cache/Skip.mc"))
}

func TestWatcher_IgnoresForeignPaths(t *testing.T) {
	t.Parallel()
	tp := newAppProject(t)
	wt := newTestWatcher(t, tp.Project)
	before := tp.snapshot(t)

	wt.handle(fsnotify.Event{Name: "/elsewhere/Other.mc", Op: fsnotify.Write})
	assert.Same(t, before, tp.snapshot(t))
}

func TestIgnoredDir(t *testing.T) {
	t.Parallel()
	assert.True(t, ignoredDir("/proj/.git"))
	assert.True(t, ignoredDir("/proj/bin"))
	assert.False(t, ignoredDir("/proj/source"))
}
