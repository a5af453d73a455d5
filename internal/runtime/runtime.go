package runtime

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/risor-io/risor"
	"github.com/risor-io/risor/importer"
	"github.com/risor-io/risor/object"

	"github.com/jward/mclens/internal/store"
)

// Runtime embeds a Risor VM and exposes a project model, its symbol index
// and tree-sitter host functions to user scripts.
type Runtime struct {
	model      Model
	store      *store.Store
	scriptsDir string
	fsys       fs.FS
	logger     *slog.Logger
	sources    *treeSources
}

// RuntimeOption configures a Runtime.
type RuntimeOption func(*Runtime)

// WithRuntimeFS configures the Runtime to load scripts from an fs.FS
// instead of from disk. Also configures the Risor importer to use
// FSImporter for import statement resolution.
func WithRuntimeFS(fsys fs.FS) RuntimeOption {
	return func(r *Runtime) {
		r.fsys = fsys
	}
}

// WithRuntimeStore exposes the symbol index to scripts as db_query,
// symbols_by_name and symbols_by_file.
func WithRuntimeStore(s *store.Store) RuntimeOption {
	return func(r *Runtime) {
		r.store = s
	}
}

// WithRuntimeLogger sets the logger behind the scripts' log global.
func WithRuntimeLogger(l *slog.Logger) RuntimeOption {
	return func(r *Runtime) {
		r.logger = l
	}
}

// NewRuntime creates a Runtime over m, which may be nil, loading scripts
// from scriptsDir.
func NewRuntime(m Model, scriptsDir string, opts ...RuntimeOption) *Runtime {
	r := &Runtime{
		model:      m,
		scriptsDir: scriptsDir,
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		sources:    newTreeSources(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RunScript loads and executes a Risor script with all standard globals
// plus any extra globals provided by the caller.
func (r *Runtime) RunScript(ctx context.Context, scriptPath string, extraGlobals map[string]any) error {
	src, err := r.LoadScript(scriptPath)
	if err != nil {
		return err
	}
	return r.eval(ctx, src, scriptPath, extraGlobals)
}

// RunSource executes Risor source code directly with all standard globals
// plus any extra globals.
func (r *Runtime) RunSource(ctx context.Context, source string, extraGlobals map[string]any) error {
	return r.eval(ctx, source, "<inline>", extraGlobals)
}

// EvalSource executes source and returns the value of its last expression
// as a Go value.
func (r *Runtime) EvalSource(ctx context.Context, source string, extraGlobals map[string]any) (any, error) {
	obj, err := risor.Eval(ctx, source, r.options(extraGlobals)...)
	if err != nil {
		return nil, fmt.Errorf("runtime: script <inline>: %w", err)
	}
	return obj.Interface(), nil
}

func (r *Runtime) eval(ctx context.Context, source, label string, extraGlobals map[string]any) error {
	r.logger.Debug("run script", "script", label)
	if _, err := risor.Eval(ctx, source, r.options(extraGlobals)...); err != nil {
		return fmt.Errorf("runtime: script %s: %w", label, err)
	}
	return nil
}

func (r *Runtime) options(extraGlobals map[string]any) []risor.Option {
	globals := r.buildGlobals(extraGlobals)
	opts := make([]risor.Option, 0, len(globals)+1)
	for name, val := range globals {
		opts = append(opts, risor.WithGlobal(name, val))
	}
	// Imported modules see the host globals too.
	if imp := r.buildImporter(globals); imp != nil {
		opts = append(opts, risor.WithImporter(imp))
	}
	return opts
}

// buildImporter returns a Risor importer configured for the Runtime's script source.
// Returns nil if neither fs.FS nor scriptsDir is configured.
func (r *Runtime) buildImporter(globals map[string]any) importer.Importer {
	globalNames := make([]string, 0, len(globals))
	for name := range globals {
		globalNames = append(globalNames, name)
	}

	if r.fsys != nil {
		return importer.NewFSImporter(importer.FSImporterOptions{
			GlobalNames: globalNames,
			SourceFS:    r.fsys,
			Extensions:  []string{".risor"},
		})
	}
	if r.scriptsDir != "" {
		return importer.NewLocalImporter(importer.LocalImporterOptions{
			GlobalNames: globalNames,
			SourceDir:   r.scriptsDir,
			Extensions:  []string{".risor"},
		})
	}
	return nil
}

// LoadScript reads a .risor file and returns its source code. The
// extension may be omitted.
func (r *Runtime) LoadScript(path string) (string, error) {
	path = ScriptPath(path)
	if r.fsys != nil {
		fsPath := strings.TrimPrefix(filepath.ToSlash(path), "/")
		data, err := fs.ReadFile(r.fsys, fsPath)
		if err != nil {
			return "", fmt.Errorf("runtime: loading script %s from fs: %w", fsPath, err)
		}
		return string(data), nil
	}

	fullPath := path
	if !filepath.IsAbs(path) {
		fullPath = filepath.Join(r.scriptsDir, path)
	}

	data, err := os.ReadFile(fullPath)
	if err != nil {
		return "", fmt.Errorf("runtime: loading script %s: %w", fullPath, err)
	}
	return string(data), nil
}

// ScriptPath adds the .risor extension to name when it has none.
func ScriptPath(name string) string {
	if filepath.Ext(name) == "" {
		return name + ".risor"
	}
	return name
}

// buildGlobals constructs the full set of globals exposed to Risor scripts.
func (r *Runtime) buildGlobals(extra map[string]any) map[string]any {
	var root string
	if r.model != nil {
		root = r.model.Root()
	}
	globals := map[string]any{
		"parse":      makeParseFn(r.sources, root),
		"parse_src":  makeParseSrcFn(r.sources),
		"node_text":  makeNodeTextFn(r.sources),
		"node_range": makeNodeRangeFn(),
		"node_child": makeNodeChildFn(),
		"query":      makeQueryFn(r.sources),
		"log":        mustProxy(&scriptLog{logger: r.logger.With("source", "script")}),
	}

	if r.model != nil {
		globals["root"] = root
		globals["definition"] = makeDefinitionFn(r.model)
		globals["references"] = makeReferencesFn(r.model)
		globals["document_symbols"] = makeDocumentSymbolsFn(r.model)
		globals["workspace_symbols"] = makeWorkspaceSymbolsFn(r.model)
		globals["diagnostics"] = makeDiagnosticsFn(r.model)
	}

	// Read-only access to the symbol index.
	if r.store != nil {
		globals["symbols_by_name"] = makeSymbolsByNameFn(r.store)
		globals["symbols_by_file"] = makeSymbolsByFileFn(r.store)
		globals["symbol_children"] = makeSymbolChildrenFn(r.store)
		globals["db_query"] = makeDBQueryFn(r.store)
	}

	for k, v := range extra {
		globals[k] = v
	}
	return globals
}

func mustProxy(v any) object.Object {
	p, err := object.NewProxy(v)
	if err != nil {
		panic(fmt.Sprintf("runtime: proxy error: %v", err))
	}
	return p
}
