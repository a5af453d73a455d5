package mclens

import (
	"sort"

	"go.lsp.dev/protocol"

	"github.com/jward/mclens/internal/analysis"
	"github.com/jward/mclens/internal/ast"
)

// SearchScope selects which files a reference search walks.
type SearchScope int

const (
	// ScopeLocal walks only the files declaring the targets.
	ScopeLocal SearchScope = iota
	// ScopeProject walks every source file, and resource documents when a
	// target is a resource.
	ScopeProject
)

func (s SearchScope) String() string {
	if s == ScopeLocal {
		return "local"
	}
	return "project"
}

// SearchScopeFor returns ScopeLocal when every target is declared inside a
// function or block.
func SearchScopeFor(targets *DeclSet) SearchScope {
	if targets.Len() == 0 {
		return ScopeProject
	}
	for _, d := range targets.Decls() {
		if d.Parent == nil {
			return ScopeProject
		}
		switch d.Parent.Kind {
		case analysis.KindFunction, analysis.KindBlock:
		default:
			return ScopeProject
		}
	}
	return ScopeLocal
}

// ReferenceOptions tunes FindReferences.
type ReferenceOptions struct {
	// IncludeDeclaration adds the declaring identifiers of the targets.
	IncludeDeclaration bool
}

// FindReferences returns the occurrences whose own expanded declaration set
// intersects targets. Every candidate is resolved again, so shadowed names
// and calls bound to a single override are told apart.
func FindReferences(snap *Snapshot, targets *DeclSet, scope SearchScope, opts ReferenceOptions) ([]protocol.Location, error) {
	refs, err := collectReferences(snap, targets, scope, opts)
	if err != nil {
		return nil, err
	}
	out := make([]protocol.Location, 0, len(refs))
	for _, r := range refs {
		out = append(out, location(r.Path, r.ID.Rng))
	}
	return out, nil
}

// refSite is one identifier found by a reference search.
type refSite struct {
	Path string
	ID   *ast.Ident
}

func collectReferences(snap *Snapshot, targets *DeclSet, scope SearchScope, opts ReferenceOptions) ([]refSite, error) {
	prog := snap.Analysis
	if prog == nil {
		return nil, ErrNoAnalysis
	}
	type key struct {
		path string
		rng  ast.Range
	}
	var out []refSite
	seen := map[key]bool{}
	add := func(path string, id *ast.Ident) {
		k := key{path, id.Rng}
		if !seen[k] {
			seen[k] = true
			out = append(out, refSite{Path: path, ID: id})
		}
	}

	for _, path := range searchFiles(snap, targets, scope) {
		f := prog.File(path)
		if f == nil {
			continue
		}
		names := candidateNames(prog, f, targets)
		walkIdents(f, func(nodes []ast.Node) {
			id := nodes[len(nodes)-1].(*ast.Ident)
			if !names[id.Name] || prog.DeclForID(id) != nil {
				return
			}
			if Expand(snap, resolveIdent(prog, path, nodes)).Intersects(targets) {
				add(path, id)
			}
		})
	}

	if scope == ScopeProject && hasResource(targets) {
		for _, path := range sortedKeys(snap.Resources) {
			doc := snap.Resources[path].Doc
			if doc == nil {
				continue
			}
			for _, r := range doc.Refs {
				if NewDeclSet(rezDecls(prog, r.Section, r.ID.Name)...).Intersects(targets) {
					add(path, r.ID)
				}
			}
		}
	}

	if opts.IncludeDeclaration {
		for _, d := range targets.Decls() {
			for _, s := range d.Sites {
				if s.ID != nil && s.File != analysis.APIFile {
					add(s.File, s.ID)
				}
			}
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Path != b.Path {
			return a.Path < b.Path
		}
		return a.ID.Rng.Start.Before(b.ID.Rng.Start)
	})
	return out, nil
}

// searchFiles lists the source files to walk in sorted order.
func searchFiles(snap *Snapshot, targets *DeclSet, scope SearchScope) []string {
	if scope == ScopeProject {
		return snap.FilePaths()
	}
	files := map[string]bool{}
	for _, d := range targets.Decls() {
		for _, s := range d.Sites {
			files[s.File] = true
		}
	}
	return sortedKeys(files)
}

// candidateNames is the set of identifier names that can refer to a
// target: the targets' own names plus using aliases bound to them.
func candidateNames(prog *analysis.Program, f *ast.File, targets *DeclSet) map[string]bool {
	names := map[string]bool{}
	for _, d := range targets.Decls() {
		names[d.Name] = true
	}
	ast.Inspect(f, func(n ast.Node) bool {
		u, ok := n.(*ast.UsingDecl)
		if !ok {
			return true
		}
		if info := prog.UsingFor(u); info != nil && u.Alias != nil {
			if NewDeclSet(info.Targets...).Intersects(targets) {
				names[u.Alias.Name] = true
			}
		}
		return false
	})
	return names
}

// walkIdents calls f with the path from root to every identifier below it.
func walkIdents(root ast.Node, f func(nodes []ast.Node)) {
	var stack []ast.Node
	var walk func(n ast.Node)
	walk = func(n ast.Node) {
		stack = append(stack, n)
		if _, ok := n.(*ast.Ident); ok {
			f(stack)
		}
		for _, c := range n.Children() {
			walk(c)
		}
		stack = stack[:len(stack)-1]
	}
	walk(root)
}

func hasResource(targets *DeclSet) bool {
	for _, d := range targets.Decls() {
		if d.Resource {
			return true
		}
	}
	return false
}
