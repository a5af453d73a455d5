package mclens

import (
	"sort"
	"sync"

	"go.lsp.dev/protocol"

	"github.com/jward/mclens/internal/analysis"
	"github.com/jward/mclens/internal/ast"
	"github.com/jward/mclens/internal/jungle"
	"github.com/jward/mclens/internal/rez"
)

// FileEntry is one source file of a snapshot. AST is nil when the file
// failed to parse.
type FileEntry struct {
	Text     string
	AST      *ast.File
	ParseErr error
}

// ResourceEntry is one resource document of a snapshot.
type ResourceEntry struct {
	Hash string
	Doc  *rez.Doc
	Err  error
}

// Snapshot is an immutable view of a project. It is a PreAnalysis when
// Analysis is nil. Unchanged entries are shared with earlier snapshots.
type Snapshot struct {
	Version uint64
	RunID   string
	Root    string

	// Mode is "restart" or "incremental".
	Mode string

	Files     map[string]*FileEntry
	Resources map[string]*ResourceEntry
	// BuildDeps maps build configuration files to their content hash, or
	// to "" when the file could not be read.
	BuildDeps map[string]string
	Config    *jungle.Config
	Analysis  *analysis.Program

	Diagnostics map[string][]protocol.Diagnostic
	// Err is the build configuration or analyzer failure that made this
	// snapshot a PreAnalysis, if any.
	Err error

	latticeOnce sync.Once
	lattice     *ClassLattice
}

// PreAnalysis reports whether the snapshot lacks a semantic analysis.
func (s *Snapshot) PreAnalysis() bool { return s.Analysis == nil }

// Lattice returns the class lattice of the analysis, building it on first
// use. It is nil for a PreAnalysis.
func (s *Snapshot) Lattice() *ClassLattice {
	if s.Analysis == nil {
		return nil
	}
	s.latticeOnce.Do(func() {
		s.lattice = NewClassLattice(s.Analysis)
	})
	return s.lattice
}

// FilePaths returns the source paths in sorted order.
func (s *Snapshot) FilePaths() []string {
	out := make([]string, 0, len(s.Files))
	for p := range s.Files {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// tracked reports whether path is a file known to the snapshot.
func (s *Snapshot) tracked(path string) bool {
	if s == nil {
		return false
	}
	if _, ok := s.Files[path]; ok {
		return true
	}
	if _, ok := s.Resources[path]; ok {
		return true
	}
	_, ok := s.BuildDeps[path]
	return ok
}
