package mclens

import (
	"io"
	"log/slog"
	"runtime"
	"time"

	"github.com/spf13/afero"
	"go.lsp.dev/protocol"
)

// Option configures a Project.
type Option func(*Project)

// WithFs sets the filesystem the project is read from. Defaults to the OS
// filesystem.
func WithFs(fsys afero.Fs) Option {
	return func(p *Project) {
		p.fs = fsys
	}
}

// WithClock replaces the clock driving the update batcher.
func WithClock(c Clock) Option {
	return func(p *Project) {
		p.clock = c
	}
}

// WithLogger sets the structured logger. Defaults to discarding output.
func WithLogger(l *slog.Logger) Option {
	return func(p *Project) {
		p.logger = l
	}
}

// WithJungleFiles selects the jungle files, relative to the root.
func WithJungleFiles(files ...string) Option {
	return func(p *Project) {
		p.jungle.JungleFiles = files
	}
}

// WithProduct selects the product whose paths are used.
func WithProduct(product string) Option {
	return func(p *Project) {
		p.jungle.Product = product
	}
}

// WithDebounce sets the debounce window and the hard cap on batching delay.
func WithDebounce(debounce, maxDelay time.Duration) Option {
	return func(p *Project) {
		p.debounce = debounce
		p.maxDelay = maxDelay
	}
}

// WithCheckInvalidSymbols sets the severity of unresolved-name diagnostics:
// ERROR, WARNING, INFO or OFF.
func WithCheckInvalidSymbols(level string) Option {
	return func(p *Project) {
		p.checkInvalid = level
	}
}

// WithAnalysis controls semantic analysis. When disabled every snapshot is
// a PreAnalysis.
func WithAnalysis(enabled bool) Option {
	return func(p *Project) {
		p.disableAnalysis = !enabled
	}
}

// WithStore mirrors each published snapshot's symbols into s, which then
// backs WorkspaceSymbols. The project does not close s.
func WithStore(s *Store) Option {
	return func(p *Project) {
		p.index = s
	}
}

// WithParallelism bounds the number of files parsed concurrently. Values
// below 1 mean GOMAXPROCS.
func WithParallelism(n int) Option {
	return func(p *Project) {
		p.parallelism = n
	}
}

// WithOnSnapshot registers a callback run after each published snapshot.
func WithOnSnapshot(f func(*Snapshot)) Option {
	return func(p *Project) {
		p.onSnapshot = f
	}
}

// WithDiagnosticsSink registers a callback receiving per-file diagnostics.
// Files whose diagnostics were cleared receive an empty slice.
func WithDiagnosticsSink(f func(path string, diags []protocol.Diagnostic)) Option {
	return func(p *Project) {
		p.diagSink = f
	}
}

func defaultProject(root string) *Project {
	return &Project{
		root:        root,
		fs:          afero.NewOsFs(),
		clock:       systemClock{},
		logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		debounce:    DefaultDebounce,
		maxDelay:    DefaultMaxDelay,
		parallelism: runtime.GOMAXPROCS(0),
		overlay:     make(map[string]Change),
	}
}
