package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jward/mclens"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := newApp(os.Stdout, os.Stderr)
	if err := app.root.ExecuteContext(ctx); err != nil {
		if !app.errorHandled {
			fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		}
		os.Exit(1)
	}
}

// app holds the command tree and the state shared by its commands.
type app struct {
	root *cobra.Command

	stdout io.Writer
	stderr io.Writer

	flagFormat  string
	flagRoot    string
	flagConfig  string
	flagVerbose bool

	cfg    *Config
	logger *slog.Logger

	// errorHandled is set by outputError so main doesn't double-print.
	errorHandled bool
}

func newApp(stdout, stderr io.Writer) *app {
	a := &app{stdout: stdout, stderr: stderr}
	a.root = &cobra.Command{
		Use:           "mclens",
		Short:         "Incremental semantic analysis for Monkey C projects",
		Long:          "mclens loads a Monkey C project from its jungle files and answers definition, reference, rename and symbol queries. All line and column numbers are 0-based.",
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return validateFormat(a.flagFormat)
		},
	}
	a.root.SetOut(stdout)
	a.root.SetErr(stderr)

	pf := a.root.PersistentFlags()
	pf.StringVar(&a.flagFormat, "format", "json", "output format: json|text")
	pf.StringVar(&a.flagRoot, "root", "", "project root (default: nearest ancestor holding monkey.jungle or "+configName+")")
	pf.StringVar(&a.flagConfig, "config", "", "config file (default: "+configName+" in the project root)")
	pf.BoolVarP(&a.flagVerbose, "verbose", "v", false, "log analysis runs to stderr")
	pf.StringSlice("jungle", nil, "jungle files relative to the root")
	pf.String("product", "", "device product whose qualifiers are applied")
	pf.String("db", "", "symbol index database path")
	pf.String("check-invalid-symbols", "", "severity of unresolved names: ERROR|WARNING|INFO|OFF")

	a.root.AddCommand(
		a.definitionCmd(),
		a.referencesCmd(),
		a.renameCmd(),
		a.typeHierarchyCmd(),
		a.symbolsCmd(),
		a.workspaceSymbolsCmd(),
		a.diagnosticsCmd(),
		a.watchCmd(),
		a.scriptCmd(),
		a.initCmd(),
	)
	return a
}

// setup resolves the project root and loads its configuration.
func (a *app) setup(cmd *cobra.Command, start string) (string, error) {
	root, err := a.projectRoot(start)
	if err != nil {
		return "", err
	}
	cfg, err := loadConfig(cmd, root, a.flagConfig)
	if err != nil {
		return "", err
	}
	a.cfg = cfg

	level := slog.LevelWarn
	if a.flagVerbose {
		level = slog.LevelDebug
	}
	a.logger = slog.New(slog.NewTextHandler(a.stderr, &slog.HandlerOptions{Level: level}))
	return root, nil
}

// openProject loads the project at root and waits for its first snapshot.
// The returned close function releases the project and its index.
func (a *app) openProject(ctx context.Context, root string) (*mclens.Project, *mclens.Store, func(), error) {
	opts := append(a.cfg.projectOptions(), mclens.WithLogger(a.logger))
	var s *mclens.Store
	if db := a.cfg.dbPath(root); db != "" {
		if err := os.MkdirAll(filepath.Dir(db), 0o755); err != nil {
			return nil, nil, nil, fmt.Errorf("creating %s: %w", filepath.Dir(db), err)
		}
		var err error
		if s, err = mclens.NewStore(db); err != nil {
			return nil, nil, nil, err
		}
		opts = append(opts, mclens.WithStore(s))
	}
	p, err := mclens.New(root, opts...)
	if err != nil {
		if s != nil {
			s.Close()
		}
		return nil, nil, nil, err
	}
	closeAll := func() {
		p.Close()
		if s != nil {
			s.Close()
		}
	}
	if _, err := p.Snapshot(ctx); err != nil {
		closeAll()
		return nil, nil, nil, err
	}
	return p, s, closeAll, nil
}

// projectRoot returns --root, or the project holding start.
func (a *app) projectRoot(start string) (string, error) {
	if a.flagRoot != "" {
		return filepath.Abs(a.flagRoot)
	}
	if start == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("getting cwd: %w", err)
		}
		start = cwd
	}
	abs, err := filepath.Abs(start)
	if err != nil {
		return "", fmt.Errorf("resolving path %q: %w", start, err)
	}
	if info, err := os.Stat(abs); err == nil && !info.IsDir() {
		abs = filepath.Dir(abs)
	}
	return findProjectRoot(abs), nil
}

// findProjectRoot walks up from startDir looking for monkey.jungle or
// mclens.yaml. Returns startDir if neither is found.
func findProjectRoot(startDir string) string {
	dir := startDir
	for {
		for _, marker := range []string{"monkey.jungle", configName} {
			if info, err := os.Stat(filepath.Join(dir, marker)); err == nil && !info.IsDir() {
				return dir
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return startDir
		}
		dir = parent
	}
}

// resolveFilePath converts a file argument to an absolute path relative to
// the current working directory.
func resolveFilePath(file string) (string, error) {
	if filepath.IsAbs(file) {
		return file, nil
	}
	abs, err := filepath.Abs(file)
	if err != nil {
		return "", fmt.Errorf("resolving file path %q: %w", file, err)
	}
	return abs, nil
}
