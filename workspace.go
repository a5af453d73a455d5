package mclens

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Workspace is a registry of projects keyed by root. Projects share
// nothing; the workspace only routes events to them.
type Workspace struct {
	opts   []Option
	logger *slog.Logger

	group    singleflight.Group
	mu       sync.Mutex
	projects map[string]*Project
}

// NewWorkspace returns an empty workspace. opts apply to every project it
// opens.
func NewWorkspace(opts ...Option) *Workspace {
	probe := defaultProject("")
	for _, opt := range opts {
		opt(probe)
	}
	return &Workspace{opts: opts, logger: probe.logger, projects: map[string]*Project{}}
}

// Open returns the project rooted at root, creating it and waiting for its
// first snapshot if needed. Concurrent opens of one root share the work.
func (w *Workspace) Open(ctx context.Context, root string) (*Project, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("mclens: open %s: %w", root, err)
	}
	v, err, _ := w.group.Do(abs, func() (any, error) {
		w.mu.Lock()
		p := w.projects[abs]
		w.mu.Unlock()
		if p != nil {
			return p, nil
		}
		p, err := New(abs, w.opts...)
		if err != nil {
			return nil, err
		}
		if _, err := p.Snapshot(ctx); err != nil {
			p.Close()
			return nil, err
		}
		w.mu.Lock()
		w.projects[abs] = p
		w.mu.Unlock()
		w.logger.Info("project opened", "project", abs)
		return p, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Project), nil
}

// ProjectFor returns the project with the deepest root containing path, or
// nil.
func (w *Workspace) ProjectFor(path string) *Project {
	w.mu.Lock()
	defer w.mu.Unlock()
	var best *Project
	for root, p := range w.projects {
		if underRoot(root, path) && (best == nil || len(root) > len(best.root)) {
			best = p
		}
	}
	return best
}

// Projects returns the open projects ordered by root.
func (w *Workspace) Projects() []*Project {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]*Project, 0, len(w.projects))
	for _, p := range w.projects {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].root < out[j].root })
	return out
}

// Watch watches the roots of the open projects until ctx is done.
func (w *Workspace) Watch(ctx context.Context) error {
	wt, err := NewWatcher(w.ProjectFor, w.logger)
	if err != nil {
		return fmt.Errorf("mclens: watch: %w", err)
	}
	defer wt.Close()
	for _, p := range w.Projects() {
		if err := wt.Add(p.fs, p.root); err != nil {
			return fmt.Errorf("mclens: watch %s: %w", p.root, err)
		}
	}
	return wt.Run(ctx)
}

// Close closes every project.
func (w *Workspace) Close() error {
	w.mu.Lock()
	projects := w.projects
	w.projects = map[string]*Project{}
	w.mu.Unlock()
	for _, p := range projects {
		p.Close()
	}
	return nil
}
