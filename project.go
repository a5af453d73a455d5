package mclens

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/afero"
	"go.lsp.dev/protocol"
	"golang.org/x/sync/errgroup"

	"github.com/jward/mclens/internal/analysis"
	"github.com/jward/mclens/internal/ast"
	"github.com/jward/mclens/internal/jungle"
	"github.com/jward/mclens/internal/rez"
	"github.com/jward/mclens/internal/store"
)

const (
	modeRestart     = "restart"
	modeIncremental = "incremental"
)

type analyzeFunc func(context.Context, analysis.Input, *analysis.Program, analysis.Options) (*analysis.Result, error)

// Project keeps a live model of one Monkey C project. Changes are
// classified, batched and applied by at most one background job at a time.
type Project struct {
	root            string
	fs              afero.Fs
	clock           Clock
	logger          *slog.Logger
	jungle          jungle.Options
	debounce        time.Duration
	maxDelay        time.Duration
	checkInvalid    string
	disableAnalysis bool
	index           *store.Store
	parallelism     int
	onSnapshot      func(*Snapshot)
	diagSink        func(string, []protocol.Diagnostic)
	analyze         analyzeFunc

	batcher *batcher

	// overlay holds the latest content seen for each changed path. Only the
	// job goroutine touches it.
	overlay map[string]Change

	mu       sync.Mutex
	current  *Snapshot
	lastGood *Snapshot
	running  *job
	queued   *job
	version  uint64
	closed   bool
	jobs     sync.WaitGroup
}

// job is one analysis pass. Every caller waiting on a job receives the same
// snapshot.
type job struct {
	changes map[string]Change
	restart bool
	done    chan struct{}
	snap    *Snapshot
}

func newJob(restart bool) *job {
	return &job{changes: make(map[string]Change), restart: restart, done: make(chan struct{})}
}

// New opens the project rooted at root and starts loading it. Snapshot
// waits for the load to finish.
func New(root string, opts ...Option) (*Project, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("mclens: resolve root: %w", err)
	}
	p := defaultProject(abs)
	for _, opt := range opts {
		opt(p)
	}
	if p.parallelism < 1 {
		p.parallelism = runtime.GOMAXPROCS(0)
	}
	if p.analyze == nil {
		p.analyze = analysis.Analyze
	}
	p.logger = p.logger.With("project", p.root)
	p.batcher = newBatcher(p.clock, p.debounce, p.maxDelay, p.flushed)
	p.enqueue(nil, true)
	return p, nil
}

// Root returns the absolute project root.
func (p *Project) Root() string { return p.root }

// Close stops batching and waits for running jobs. Pending changes are
// discarded.
func (p *Project) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()
	p.batcher.Stop()
	p.jobs.Wait()
	return nil
}

// Update records new content for path, or its deletion. Foreign paths and
// changes that cannot alter the project are ignored.
func (p *Project) Update(path string, c Change) {
	path = p.abs(path)
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	cur := p.current
	expected, inFlight := p.inFlightLocked(path)
	p.mu.Unlock()

	cls := Classify(cur, p.root, path, c)
	if cls.Bucket == BucketForeign {
		return
	}
	noop := cls.NoOp
	if inFlight {
		noop = expected.same(c)
	}
	if noop {
		p.batcher.Cancel(path)
		p.logger.Debug("no-op change", "path", path, "bucket", cls.Bucket.String())
		return
	}
	p.batcher.Record(path, c)
}

// UpdateText records new content for path.
func (p *Project) UpdateText(path, text string) {
	p.Update(path, Change{Text: text})
}

// Delete records the deletion of a file, or of every tracked file below a
// directory.
func (p *Project) Delete(path string) {
	path = p.abs(path)
	p.mu.Lock()
	cur := p.current
	p.mu.Unlock()
	if cur.tracked(path) || isSourcePath(path) || rez.IsResourceFile(path) {
		p.Update(path, Change{Deleted: true})
		return
	}
	for _, sub := range ExpandDirectoryDelete(cur, path) {
		p.Update(sub, Change{Deleted: true})
	}
}

// Current returns the latest published snapshot without waiting. It is nil
// until the first load completes.
func (p *Project) Current() *Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current
}

// Snapshot flushes pending changes and waits for the most recently
// requested job.
func (p *Project) Snapshot(ctx context.Context) (*Snapshot, error) {
	p.batcher.FlushNow()
	p.mu.Lock()
	if p.closed && p.running == nil {
		cur := p.current
		p.mu.Unlock()
		if cur == nil {
			return nil, ErrClosed
		}
		return cur, nil
	}
	j := p.queued
	if j == nil {
		j = p.running
	}
	cur := p.current
	p.mu.Unlock()
	if j == nil {
		return cur, nil
	}
	select {
	case <-j.done:
		return j.snap, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Analysis returns a snapshot carrying a semantic analysis. When the
// current snapshot is a PreAnalysis and allowStale is set, the last
// snapshot that had one is returned with stale true.
func (p *Project) Analysis(ctx context.Context, allowStale bool) (snap *Snapshot, stale bool, err error) {
	snap, err = p.Snapshot(ctx)
	if err != nil {
		return nil, false, err
	}
	if snap.Analysis != nil {
		return snap, false, nil
	}
	p.mu.Lock()
	good := p.lastGood
	p.mu.Unlock()
	switch {
	case good == nil:
		return nil, false, ErrNoAnalysis
	case !allowStale:
		return nil, false, ErrStaleAnalysis
	}
	return good, true, nil
}

// Diagnostics returns the diagnostics of the latest snapshot by file.
func (p *Project) Diagnostics(ctx context.Context) (map[string][]protocol.Diagnostic, error) {
	snap, err := p.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return maps.Clone(snap.Diagnostics), nil
}

func (p *Project) abs(path string) string {
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	return filepath.Join(p.root, path)
}

// inFlightLocked returns the change a queued or running job will apply to
// path.
func (p *Project) inFlightLocked(path string) (Change, bool) {
	for _, j := range []*job{p.queued, p.running} {
		if j == nil {
			continue
		}
		if c, ok := j.changes[path]; ok {
			return c, true
		}
	}
	return Change{}, false
}

func (p *Project) flushed(set map[string]Change) {
	if len(set) > 0 {
		p.enqueue(set, false)
	}
}

// enqueue starts a job, or merges the changes into the single queued job.
func (p *Project) enqueue(changes map[string]Change, restart bool) *job {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	if p.running == nil {
		j := newJob(restart)
		maps.Copy(j.changes, changes)
		p.running = j
		p.jobs.Add(1)
		go p.loop(j)
		return j
	}
	if p.queued == nil {
		p.queued = newJob(false)
	}
	maps.Copy(p.queued.changes, changes)
	p.queued.restart = p.queued.restart || restart
	return p.queued
}

func (p *Project) loop(j *job) {
	defer p.jobs.Done()
	for j != nil {
		next := p.run(j)

		p.mu.Lock()
		prev := p.current
		p.version++
		next.Version = p.version
		p.current = next
		if next.Analysis != nil {
			p.lastGood = next
		}
		p.mu.Unlock()

		p.published(prev, next)

		p.mu.Lock()
		j.snap = next
		close(j.done)
		j = p.queued
		p.queued = nil
		p.running = j
		p.mu.Unlock()
	}
}

// run applies a job's changes and builds the next snapshot.
func (p *Project) run(j *job) *Snapshot {
	start := time.Now()
	runID := uuid.NewString()

	p.mu.Lock()
	prev := p.current
	var base *analysis.Program
	if p.lastGood != nil {
		base = p.lastGood.Analysis
	}
	p.mu.Unlock()

	maps.Copy(p.overlay, j.changes)
	mode := p.mode(prev, j)
	ctx, span := startJobSpan(context.Background(), runID, mode, len(j.changes))
	defer span.End()
	log := p.logger.With("run_id", runID, "mode", mode)

	var next *Snapshot
	if mode == modeRestart {
		next = p.reload(ctx, log, prev, base)
	} else {
		next = p.patch(ctx, log, prev, base, j.changes)
	}
	next.RunID = runID
	next.Mode = mode

	outcome := "analysis"
	if next.Analysis == nil {
		outcome = "pre_analysis"
	}
	d := time.Since(start)
	recordAnalysis(ctx, mode, outcome, d, len(j.changes))
	log.Info("snapshot built",
		"outcome", outcome,
		"files", len(next.Files),
		"changes", len(j.changes),
		"duration", d,
	)
	return next
}

// mode picks a full reload when the file set or build configuration may
// have changed, and an incremental pass when only tracked sources did.
func (p *Project) mode(prev *Snapshot, j *job) string {
	if j.restart || prev == nil || prev.Config == nil {
		return modeRestart
	}
	for path, c := range j.changes {
		cls := Classify(prev, p.root, path, c)
		if cls.NoOp {
			continue
		}
		switch cls.Bucket {
		case BucketResource, BucketBuildDependency:
			return modeRestart
		case BucketSource:
			if _, tracked := prev.Files[path]; c.Deleted || !tracked {
				return modeRestart
			}
		}
	}
	return modeIncremental
}

// files is the project filesystem with unsaved buffers laid over it.
func (p *Project) files() afero.Fs {
	return newOverlayFs(p.fs, p.overlay)
}

func (p *Project) read(path string) (string, error) {
	data, err := afero.ReadFile(p.files(), path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// reload resolves the build configuration and loads every file it
// selects.
func (p *Project) reload(ctx context.Context, log *slog.Logger, prev *Snapshot, base *analysis.Program) *Snapshot {
	cfg, err := jungle.Resolve(p.files(), p.root, p.jungle)
	if err != nil {
		var ce *jungle.ConfigError
		if !errors.As(err, &ce) {
			deps := jungle.DefaultDependencies(p.root, p.jungle)
			ce = &jungle.ConfigError{Dependencies: deps, File: deps[0], Msg: err.Error(), Err: err}
		}
		log.Warn("build configuration failed", "path", ce.File, "error", ce)
		return p.configFailed(prev, ce)
	}

	sources := p.sourceSet(cfg)
	var resources []string
	for _, path := range cfg.ResourceFiles {
		if c, ok := p.overlay[path]; !ok || !c.Deleted {
			resources = append(resources, path)
		}
	}

	var prevFiles map[string]*FileEntry
	var prevRes map[string]*ResourceEntry
	if prev != nil {
		prevFiles, prevRes = prev.Files, prev.Resources
	}
	snap := &Snapshot{
		Root:      p.root,
		Files:     make(map[string]*FileEntry, len(sources)),
		Resources: make(map[string]*ResourceEntry, len(resources)),
		BuildDeps: p.hashDeps(cfg.Dependencies),
		Config:    cfg,
	}
	if err := p.loadFiles(ctx, sources, prevFiles, snap.Files); err != nil {
		return p.internalFailure(log, snap, err)
	}
	p.loadResources(ctx, resources, prevRes, snap.Resources)
	return p.analyzeSnapshot(ctx, log, snap, base)
}

// sourceSet is the configured sources plus unsaved buffers below a source
// path, minus deleted ones.
func (p *Project) sourceSet(cfg *jungle.Config) []string {
	seen := make(map[string]bool, len(cfg.SourceFiles))
	var out []string
	for _, path := range cfg.SourceFiles {
		seen[path] = true
		if c, ok := p.overlay[path]; ok && c.Deleted {
			continue
		}
		out = append(out, path)
	}
	for path, c := range p.overlay {
		if !c.Deleted && !seen[path] && isSourcePath(path) && underAny(cfg.SourcePaths, path) {
			out = append(out, path)
		}
	}
	sort.Strings(out)
	return out
}

func (p *Project) configFailed(prev *Snapshot, ce *jungle.ConfigError) *Snapshot {
	snap := &Snapshot{
		Root:        p.root,
		Files:       map[string]*FileEntry{},
		Resources:   map[string]*ResourceEntry{},
		BuildDeps:   p.hashDeps(ce.Dependencies),
		Diagnostics: map[string][]protocol.Diagnostic{},
		Err:         ce,
	}
	if prev != nil {
		snap.Files, snap.Resources = prev.Files, prev.Resources
	}
	file := ce.File
	if file == "" && len(ce.Dependencies) > 0 {
		file = ce.Dependencies[len(ce.Dependencies)-1]
	}
	snap.Diagnostics[file] = []protocol.Diagnostic{configDiagnostic(ce)}
	return snap
}

// patch replaces the entries of changed sources and shares the rest with
// prev.
func (p *Project) patch(ctx context.Context, log *slog.Logger, prev *Snapshot, base *analysis.Program, changes map[string]Change) *Snapshot {
	snap := &Snapshot{
		Root:      p.root,
		Files:     maps.Clone(prev.Files),
		Resources: prev.Resources,
		BuildDeps: prev.BuildDeps,
		Config:    prev.Config,
	}
	var changed []string
	for path, c := range changes {
		if e, ok := prev.Files[path]; ok && !c.Deleted && e.Text != c.Text {
			changed = append(changed, path)
		}
	}
	sort.Strings(changed)
	if err := p.loadFiles(ctx, changed, nil, snap.Files); err != nil {
		return p.internalFailure(log, snap, err)
	}
	return p.analyzeSnapshot(ctx, log, snap, base)
}

// loadFiles reads and parses paths in parallel into out. Entries of prev
// whose text is unchanged are shared.
func (p *Project) loadFiles(ctx context.Context, paths []string, prev, out map[string]*FileEntry) error {
	entries := make([]*FileEntry, len(paths))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(p.parallelism)
	for i, path := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			text, err := p.read(path)
			if err != nil {
				if os.IsNotExist(err) {
					return nil
				}
				entries[i] = &FileEntry{ParseErr: err}
				return nil
			}
			if e := prev[path]; e != nil && e.Text == text {
				entries[i] = e
				return nil
			}
			f, err := ast.Parse(path, text)
			entries[i] = &FileEntry{Text: text, AST: f, ParseErr: err}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	for i, path := range paths {
		if entries[i] != nil {
			out[path] = entries[i]
		}
	}
	return nil
}

func (p *Project) loadResources(ctx context.Context, paths []string, prev, out map[string]*ResourceEntry) {
	for _, path := range paths {
		text, err := p.read(path)
		if err != nil {
			if !os.IsNotExist(err) {
				out[path] = &ResourceEntry{Err: err}
			}
			continue
		}
		hash := store.ContentHash(text)
		if e := prev[path]; e != nil && e.Hash == hash {
			out[path] = e
			continue
		}
		doc, err := rez.Parse(ctx, path, []byte(text))
		out[path] = &ResourceEntry{Hash: hash, Doc: doc, Err: err}
	}
}

func (p *Project) hashDeps(paths []string) map[string]string {
	out := make(map[string]string, len(paths))
	for _, path := range paths {
		text, err := p.read(path)
		if err != nil {
			out[path] = ""
			continue
		}
		out[path] = store.ContentHash(text)
	}
	return out
}

// analyzeSnapshot collects per-file diagnostics and, when every file
// parsed, runs the analyzer. base is reused for unchanged files.
func (p *Project) analyzeSnapshot(ctx context.Context, log *slog.Logger, snap *Snapshot, base *analysis.Program) *Snapshot {
	diags := diagSet{}
	snap.Diagnostics = diags
	parsed := true
	for path, e := range snap.Files {
		if e.ParseErr != nil {
			parsed = false
			diags.add(path, errorDiagnostic(e.ParseErr))
		}
	}
	var docs []*rez.Doc
	for _, path := range sortedKeys(snap.Resources) {
		e := snap.Resources[path]
		if e.Err != nil {
			diags.add(path, errorDiagnostic(e.Err))
			continue
		}
		docs = append(docs, e.Doc)
	}
	defer sortDiagnostics(diags)
	if !parsed {
		log.Info("skipping analysis", "reason", "parse errors")
		return snap
	}
	if p.disableAnalysis {
		return snap
	}

	in := analysis.Input{Files: make(map[string]*ast.File, len(snap.Files)), Resources: docs}
	for path, e := range snap.Files {
		in.Files[path] = e.AST
	}
	res, err := p.runAnalyzer(ctx, in, base)
	if err != nil {
		return p.internalFailure(log, snap, err)
	}
	for _, d := range res.Diagnostics {
		diags.add(d.File, newDiagnostic(d.Range, severityOf(d.Severity), d.Message))
	}
	snap.Analysis = res.Program
	return snap
}

func (p *Project) runAnalyzer(ctx context.Context, in analysis.Input, base *analysis.Program) (res *analysis.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("analyzer panic: %v", r)
		}
	}()
	return p.analyze(ctx, in, base, analysis.Options{CheckInvalidSymbols: p.checkInvalid})
}

// internalFailure turns an analyzer failure into a PreAnalysis carrying a
// diagnostic. The last good analysis is kept for stale-tolerant queries.
func (p *Project) internalFailure(log *slog.Logger, snap *Snapshot, err error) *Snapshot {
	ie := &AnalysisInternalError{Err: err}
	var ae *analysis.InternalError
	if errors.As(err, &ae) && ae.File != analysis.APIFile {
		ie.File = ae.File
	}
	file := ie.File
	if file == "" {
		file = unknownFile
	}
	if snap.Diagnostics == nil {
		snap.Diagnostics = map[string][]protocol.Diagnostic{}
	}
	snap.Diagnostics[file] = append(snap.Diagnostics[file], internalDiagnostic(ie))
	snap.Analysis = nil
	snap.Err = ie
	log.Error("analysis failed", "path", file, "error", err)
	return snap
}

// published runs the index sync and notifications for a new snapshot.
func (p *Project) published(prev, next *Snapshot) {
	if p.index != nil {
		if err := syncIndex(p.index, prev, next); err != nil {
			p.logger.Warn("symbol index sync failed", "error", err)
		}
	}
	if p.diagSink != nil {
		paths := map[string]bool{}
		if prev != nil {
			for path := range prev.Diagnostics {
				paths[path] = true
			}
		}
		for path := range next.Diagnostics {
			paths[path] = true
		}
		for _, path := range sortedKeys(paths) {
			ds := next.Diagnostics[path]
			if ds == nil {
				ds = []protocol.Diagnostic{}
			}
			p.diagSink(path, ds)
		}
	}
	if p.onSnapshot != nil {
		p.onSnapshot(next)
	}
}

func sortedKeys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
