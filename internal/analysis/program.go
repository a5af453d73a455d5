// Package analysis builds the semantic graph of a Monkey C project: a
// symbol table rooted at the global module `$`, the using/import tables,
// class inheritance and a lazily computed type map.
package analysis

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/jward/mclens/internal/ast"
	"github.com/jward/mclens/internal/rez"
)

// Input is the parsed project handed to Analyze.
type Input struct {
	Files     map[string]*ast.File
	Resources []*rez.Doc
}

// Options control optional diagnostics.
type Options struct {
	// CheckInvalidSymbols is the severity used for unresolved names:
	// ERROR, WARNING, INFO or OFF. Empty means OFF.
	CheckInvalidSymbols string
}

// Result is the outcome of Analyze. Program is nil when the project is
// structurally invalid; Diagnostics then say why.
type Result struct {
	Program     *Program
	Diagnostics []Diagnostic
}

// Using is one `using` or `import` clause.
type Using struct {
	Node    *ast.UsingDecl
	File    string
	Scope   *Decl
	Name    string
	Import  bool
	Targets []*Decl
}

type usingKey struct {
	scope *Decl
	file  string
}

type fileInfo struct {
	ast     *ast.File
	symbols []string
}

// Program is an immutable analyzed project. All methods are safe for
// concurrent use.
type Program struct {
	Root *Decl

	files       map[string]*fileInfo
	paths       []string
	byID        map[*ast.Ident]*Decl
	scopes      map[ast.Node]*Decl
	usings      map[usingKey][]*Using
	usingByNode map[*ast.UsingDecl]*Using
	byName      map[string][]*Decl
	classes     []*Decl
	supers      map[*Decl][]*Decl
	exposed     map[string]bool
	resources   []*rez.Doc
	lang        *Decl
	object      *Decl
	frozen      bool

	mu       sync.Mutex
	typeMemo map[*Decl][]Value
}

func newProgram() *Program {
	return &Program{
		Root:        newDecl(KindProgram, "$", nil),
		files:       make(map[string]*fileInfo),
		byID:        make(map[*ast.Ident]*Decl),
		scopes:      make(map[ast.Node]*Decl),
		usings:      make(map[usingKey][]*Using),
		usingByNode: make(map[*ast.UsingDecl]*Using),
		byName:      make(map[string][]*Decl),
		supers:      make(map[*Decl][]*Decl),
		exposed:     make(map[string]bool),
		typeMemo:    make(map[*Decl][]Value),
	}
}

// Analyze builds a Program from parsed files and resource documents. prev,
// when non-nil, is a previous program whose per-file facts are reused for
// files whose tree is unchanged.
func Analyze(ctx context.Context, in Input, prev *Program, opts Options) (*Result, error) {
	api, err := apiFile()
	if err != nil {
		return nil, &InternalError{File: APIFile, Err: err}
	}

	b := &builder{p: newProgram(), prev: prev}
	b.collectFile(APIFile, api)

	paths := make([]string, 0, len(in.Files))
	for path := range in.Files {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		f := in.Files[path]
		if f == nil {
			return nil, &InternalError{File: path, Err: fmt.Errorf("file has no syntax tree")}
		}
		b.collectFile(path, f)
		info := &fileInfo{ast: f, symbols: b.fileSymbols(path, f)}
		b.p.files[path] = info
		for _, s := range info.symbols {
			b.p.exposed[s] = true
		}
	}
	b.p.paths = paths
	b.collectResources(in.Resources)

	b.p.lang = b.p.qualified("Toybox", "Lang")
	if b.p.lang != nil {
		for _, d := range b.p.lang.Members("Object") {
			if d.Kind == KindClass {
				b.p.object = d
			}
		}
	}

	sev, check := ParseSeverity(opts.CheckInvalidSymbols)
	b.resolveUsings(sev, check)
	for _, c := range b.p.classes {
		b.p.Supers(c)
	}
	b.p.frozen = true

	if cycles := b.inheritanceCycles(); len(cycles) > 0 {
		return &Result{Diagnostics: cycles}, nil
	}
	if check {
		for _, path := range paths {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			b.checkFile(path, in.Files[path], sev)
		}
	}
	return &Result{Program: b.p, Diagnostics: b.diags}, nil
}

// Files returns the analyzed source paths, sorted.
func (p *Program) Files() []string { return p.paths }

// File returns the syntax tree analyzed for path.
func (p *Program) File(path string) *ast.File {
	if fi := p.files[path]; fi != nil {
		return fi.ast
	}
	if path == APIFile {
		f, _ := apiFile()
		return f
	}
	return nil
}

// Resources returns the resource documents the Rez module was built from.
func (p *Program) Resources() []*rez.Doc { return p.resources }

// DeclForID returns the declaration whose site identifier is id.
func (p *Program) DeclForID(id *ast.Ident) *Decl { return p.byID[id] }

// ScopeFor returns the scope declaration opened by node n, if any.
func (p *Program) ScopeFor(n ast.Node) *Decl { return p.scopes[n] }

// UsingFor returns the resolved using clause for n.
func (p *Program) UsingFor(n *ast.UsingDecl) *Using { return p.usingByNode[n] }

// Classes returns every class declaration, API classes first.
func (p *Program) Classes() []*Decl { return p.classes }

// DeclsNamed returns every non-local declaration called name.
func (p *Program) DeclsNamed(name string) []*Decl { return p.byName[name] }

// Exposed reports whether name is used as a `:symbol` anywhere in the
// project. Such names may be looked up reflectively.
func (p *Program) Exposed(name string) bool { return p.exposed[name] }

// Lang returns the Toybox.Lang module.
func (p *Program) Lang() *Decl { return p.lang }

func (p *Program) qualified(names ...string) *Decl {
	cur := p.Root
	for _, n := range names {
		var next *Decl
		for _, d := range cur.Members(n) {
			if d.IsScope() {
				next = d
				break
			}
		}
		if next == nil {
			return nil
		}
		cur = next
	}
	return cur
}

// Walk calls f for every declaration reachable from the root, parents
// before members.
func (p *Program) Walk(f func(*Decl) bool) {
	var walk func(d *Decl)
	walk = func(d *Decl) {
		if !f(d) {
			return
		}
		for _, m := range d.order {
			walk(m)
		}
	}
	walk(p.Root)
}

// Supers returns the direct superclasses of cls. Classes without an
// extends clause derive from Toybox.Lang.Object.
func (p *Program) Supers(cls *Decl) []*Decl {
	if s, ok := p.supers[cls]; ok || p.frozen {
		return s
	}
	p.supers[cls] = nil
	if cls.Super == nil {
		if p.object != nil && cls != p.object {
			p.supers[cls] = []*Decl{p.object}
		}
		return p.supers[cls]
	}
	var out []*Decl
	for _, d := range p.ResolveName(cls.Super, cls.Parent, cls.File(), LookupType) {
		if d.Kind == KindClass && d != cls {
			out = append(out, d)
		}
	}
	p.supers[cls] = out
	return out
}
