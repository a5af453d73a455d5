package mclens

import (
	"go.lsp.dev/protocol"

	"github.com/jward/mclens/internal/analysis"
	"github.com/jward/mclens/internal/ast"
	"github.com/jward/mclens/internal/rez"
)

// LookupResult is one declaration a name occurrence may refer to.
type LookupResult struct {
	Decl *analysis.Decl
	// Scope is the scope the name was looked up from.
	Scope *analysis.Decl
	// Exact is set when the occurrence cannot dispatch to an override: it
	// names its own declaration, or it is a member of a class or module
	// used as a type.
	Exact bool
	Node  ast.Node
}

// Resolve returns the declarations the name at pos in path may refer to.
// It fails with ErrNotFound when there is no resolvable name there and
// with ErrNoAnalysis for a PreAnalysis.
func Resolve(snap *Snapshot, path string, pos protocol.Position) ([]LookupResult, error) {
	prog := snap.Analysis
	if prog == nil {
		return nil, ErrNoAnalysis
	}
	at := fromPosition(pos)
	if e, ok := snap.Resources[path]; ok {
		if e.Doc == nil {
			return nil, ErrNotFound
		}
		return orNotFound(resolveResource(prog, e.Doc, at))
	}
	f := prog.File(path)
	if f == nil {
		return nil, ErrNotFound
	}
	nodes := ast.PathAt(f, at)
	if len(nodes) == 0 {
		return nil, ErrNotFound
	}
	if _, ok := nodes[len(nodes)-1].(*ast.Ident); !ok {
		return nil, ErrNotFound
	}
	return orNotFound(resolveIdent(prog, path, nodes))
}

func orNotFound(rs []LookupResult) ([]LookupResult, error) {
	if len(rs) == 0 {
		return nil, ErrNotFound
	}
	return rs, nil
}

// resolveIdent resolves the identifier ending nodes, the chain of nodes
// from the file root down to it.
func resolveIdent(prog *analysis.Program, file string, nodes []ast.Node) []LookupResult {
	id := nodes[len(nodes)-1].(*ast.Ident)
	ancestors := nodes[:len(nodes)-1]
	scope := scopeOf(prog, ancestors)

	if d := prog.DeclForID(id); d != nil {
		return []LookupResult{{Decl: d, Scope: d.Parent, Exact: true, Node: id}}
	}
	if id.Name == "$" {
		return []LookupResult{{Decl: prog.Root, Scope: scope, Exact: true, Node: id}}
	}
	if rs, ok := resolveUsing(prog, id, ancestors); ok {
		return rs
	}

	var parent ast.Node
	if len(ancestors) > 0 {
		parent = ancestors[len(ancestors)-1]
	}
	results := func(ds []*analysis.Decl, exact bool) []LookupResult {
		out := make([]LookupResult, 0, len(ds))
		for _, d := range ds {
			out = append(out, LookupResult{Decl: d, Scope: scope, Exact: exact, Node: id})
		}
		return out
	}

	switch par := parent.(type) {
	case *ast.SymbolLit:
		return results(prog.DeclsNamed(id.Name), false)

	case *ast.MemberExpr:
		if par.Property != id {
			break
		}
		if inTypePosition(ancestors[:len(ancestors)-1], par) {
			return results(prog.ResolveName(par, scope, file, analysis.LookupType), true)
		}
		var out []LookupResult
		objs := prog.TypeOf(par.Object, scope, file)
		exact := len(objs) > 0
		for _, v := range objs {
			exact = exact && !v.Instance
		}
		for _, v := range objs {
			out = append(out, results(prog.MemberDecls(v, id.Name), exact)...)
		}
		return uniqueResults(out)

	case *ast.CallExpr:
		if par.Callee == id {
			return results(prog.LookupName(id.Name, scope, file, id.Rng.Start, analysis.LookupCallee), false)
		}
	}

	if inTypePosition(ancestors, id) {
		return results(prog.LookupName(id.Name, scope, file, id.Rng.Start, analysis.LookupType), false)
	}
	return results(prog.LookupName(id.Name, scope, file, id.Rng.Start, analysis.LookupValue), false)
}

// resolveUsing handles names inside a using or import clause, which are
// qualified from the root.
func resolveUsing(prog *analysis.Program, id *ast.Ident, ancestors []ast.Node) ([]LookupResult, bool) {
	var u *ast.UsingDecl
	for i := len(ancestors) - 1; i >= 0; i-- {
		if n, ok := ancestors[i].(*ast.UsingDecl); ok {
			u = n
			break
		}
	}
	if u == nil {
		return nil, false
	}
	info := prog.UsingFor(u)
	var ds []*analysis.Decl
	switch {
	case u.Alias == id:
		if info != nil {
			ds = info.Targets
		}
	default:
		// The name path up to and including id.
		var x ast.Expr = id
		if len(ancestors) > 0 {
			if m, ok := ancestors[len(ancestors)-1].(*ast.MemberExpr); ok && m.Property == id {
				x = m
			}
		}
		ds = prog.ResolveQualified(x)
	}
	var scope *analysis.Decl
	if info != nil {
		scope = info.Scope
	}
	out := make([]LookupResult, 0, len(ds))
	for _, d := range ds {
		out = append(out, LookupResult{Decl: d, Scope: scope, Exact: true, Node: id})
	}
	return out, true
}

// scopeOf returns the innermost scope among ancestors.
func scopeOf(prog *analysis.Program, ancestors []ast.Node) *analysis.Decl {
	for i := len(ancestors) - 1; i >= 0; i-- {
		if s := prog.ScopeFor(ancestors[i]); s != nil {
			return s
		}
	}
	return prog.Root
}

// inTypePosition reports whether x, the last element of a name path whose
// parents are ancestors, is written where a type is expected.
func inTypePosition(ancestors []ast.Node, x ast.Node) bool {
	child := x
	for i := len(ancestors) - 1; i >= 0; i-- {
		switch n := ancestors[i].(type) {
		case *ast.MemberExpr:
			if n.Object != child && n.Property != child {
				return false
			}
			child = n
			continue
		case *ast.TypeRef, *ast.UnionType:
			return true
		case *ast.ClassDecl:
			return n.Super == child
		case *ast.NewExpr:
			return n.Type == child
		case *ast.CatchClause:
			return n.Type == child
		case *ast.BinaryExpr:
			return n.Op == "instanceof" && n.Y == child
		}
		return false
	}
	return false
}

// resolveResource resolves an entry id or a reference in a resource
// document to the Rez declaration it names.
func resolveResource(prog *analysis.Program, doc *rez.Doc, at ast.Pos) []LookupResult {
	for _, e := range doc.Entries {
		if e.ID.Rng.Contains(at) {
			return rezResults(prog, e.Section, e.ID, true)
		}
	}
	for _, r := range doc.Refs {
		if r.ID.Rng.Contains(at) {
			return rezResults(prog, r.Section, r.ID, false)
		}
	}
	return nil
}

func rezResults(prog *analysis.Program, section string, id *ast.Ident, exact bool) []LookupResult {
	var out []LookupResult
	for _, d := range rezDecls(prog, section, id.Name) {
		out = append(out, LookupResult{Decl: d, Scope: d.Parent, Exact: exact, Node: id})
	}
	return out
}

// rezDecls returns Rez.<section>.<name>.
func rezDecls(prog *analysis.Program, section, name string) []*analysis.Decl {
	var out []*analysis.Decl
	for _, root := range prog.Root.Members("Rez") {
		for _, sec := range root.Members(section) {
			out = append(out, sec.Members(name)...)
		}
	}
	return out
}

func uniqueResults(rs []LookupResult) []LookupResult {
	seen := make(map[analysis.DeclKey]bool, len(rs))
	out := rs[:0]
	for _, r := range rs {
		k := r.Decl.Key()
		if !seen[k] {
			seen[k] = true
			out = append(out, r)
		}
	}
	return out
}
