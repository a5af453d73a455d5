package mclens

import (
	"context"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/afero"
)

// Watcher feeds filesystem events into the projects that own the changed
// paths.
type Watcher struct {
	fsw    *fsnotify.Watcher
	route  func(path string) *Project
	logger *slog.Logger

	done     chan struct{}
	stopOnce sync.Once
}

// NewWatcher creates a watcher routing each event through route. Events
// for which route returns nil are dropped.
func NewWatcher(route func(path string) *Project, logger *slog.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{fsw: fsw, route: route, logger: logger, done: make(chan struct{})}, nil
}

// Add watches root and every directory below it.
func (w *Watcher) Add(fsys afero.Fs, root string) error {
	return afero.Walk(fsys, root, func(path string, info fs.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if !info.IsDir() {
			return nil
		}
		if path != root && ignoredDir(path) {
			return filepath.SkipDir
		}
		return w.fsw.Add(path)
	})
}

// Run processes events until ctx is done or Close is called.
func (w *Watcher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.done:
			return nil
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			w.handle(ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error", "error", err)
		}
	}
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	var err error
	w.stopOnce.Do(func() {
		close(w.done)
		err = w.fsw.Close()
	})
	return err
}

func (w *Watcher) handle(ev fsnotify.Event) {
	path := filepath.Clean(ev.Name)
	p := w.route(path)
	if p == nil {
		return
	}
	switch {
	case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
		p.Delete(path)
	case ev.Has(fsnotify.Create), ev.Has(fsnotify.Write):
		info, err := p.fs.Stat(path)
		if err != nil {
			p.Delete(path)
			return
		}
		if info.IsDir() {
			if ignoredDir(path) {
				return
			}
			if err := w.Add(p.fs, path); err != nil {
				w.logger.Warn("watch directory", "path", path, "error", err)
			}
			w.readTree(p, path)
			return
		}
		w.read(p, path)
	}
}

// readTree records every file below a newly created directory.
func (w *Watcher) readTree(p *Project, dir string) {
	_ = afero.Walk(p.fs, dir, func(path string, info fs.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if info.IsDir() {
			if path != dir && ignoredDir(path) {
				return filepath.SkipDir
			}
			return nil
		}
		w.read(p, path)
		return nil
	})
}

func (w *Watcher) read(p *Project, path string) {
	data, err := afero.ReadFile(p.fs, path)
	if err != nil {
		w.logger.Debug("read changed file", "path", path, "error", err)
		return
	}
	p.UpdateText(path, string(data))
}

// ignoredDir skips hidden directories and build output.
func ignoredDir(path string) bool {
	base := filepath.Base(path)
	return strings.HasPrefix(base, ".") || base == "bin"
}
