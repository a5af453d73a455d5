package analysis

import (
	"fmt"

	"github.com/jward/mclens/internal/ast"
	"github.com/jward/mclens/internal/rez"
)

var rezSections = []string{
	rez.SectionStrings,
	rez.SectionDrawables,
	rez.SectionLayouts,
	rez.SectionMenus,
	rez.SectionFonts,
	rez.SectionJsonData,
	rez.SectionStyles,
}

type builder struct {
	p      *Program
	prev   *Program
	usings []*Using
	diags  []Diagnostic
}

func (b *builder) collectFile(path string, f *ast.File) {
	for _, s := range f.Body {
		b.collectDecl(path, s, b.p.Root)
	}
}

func (b *builder) site(d *Decl, file string, id *ast.Ident, n ast.Node) {
	d.Sites = append(d.Sites, Site{File: file, ID: id, Node: n})
	if id != nil {
		b.p.byID[id] = d
	}
}

func (b *builder) declare(scope *Decl, kind Kind, id *ast.Ident, file string, n ast.Node) *Decl {
	d := newDecl(kind, id.Name, scope)
	b.site(d, file, id, n)
	scope.addMember(d)
	if !d.IsLocal() {
		b.p.byName[d.Name] = append(b.p.byName[d.Name], d)
	}
	return d
}

func (b *builder) collectDecl(file string, s ast.Stmt, scope *Decl) {
	switch n := s.(type) {
	case *ast.ModuleDecl:
		var m *Decl
		for _, d := range scope.Members(n.ID.Name) {
			if d.Kind == KindModule {
				m = d
				break
			}
		}
		if m == nil {
			m = b.declare(scope, KindModule, n.ID, file, n)
		} else {
			b.site(m, file, n.ID, n)
		}
		b.p.scopes[n] = m
		for _, c := range n.Body {
			b.collectDecl(file, c, m)
		}

	case *ast.ClassDecl:
		c := b.declare(scope, KindClass, n.ID, file, n)
		c.Attrs = n.Attrs
		c.Super = n.Super
		b.p.scopes[n] = c
		b.p.classes = append(b.p.classes, c)
		for _, m := range n.Body {
			b.collectDecl(file, m, c)
		}

	case *ast.FunctionDecl:
		fn := b.declare(scope, KindFunction, n.ID, file, n)
		fn.Attrs = n.Attrs
		fn.Type = n.Ret
		b.p.scopes[n] = fn
		for _, prm := range n.Params {
			d := b.declare(fn, KindParam, prm.ID, file, prm)
			d.Type = prm.Type
		}
		if n.Body != nil {
			b.collectStmts(file, n.Body.Body, fn)
		}

	case *ast.VarDecl:
		kind := KindVariable
		switch {
		case scope.Kind == KindFunction || scope.Kind == KindBlock:
			kind = KindLocal
		case n.Const:
			kind = KindConst
		}
		for _, spec := range n.Specs {
			d := b.declare(scope, kind, spec.ID, file, spec)
			d.Attrs = n.Attrs
			d.Type = spec.Type
			d.Init = spec.Init
		}

	case *ast.EnumDecl:
		if n.ID != nil {
			e := b.declare(scope, KindEnum, n.ID, file, n)
			e.Attrs = n.Attrs
		}
		for _, m := range n.Members {
			d := b.declare(scope, KindEnumMember, m.ID, file, m)
			d.Attrs = n.Attrs
			d.Init = m.Init
		}

	case *ast.TypedefDecl:
		d := b.declare(scope, KindTypedef, n.ID, file, n)
		d.Type = n.Type

	case *ast.UsingDecl:
		u := &Using{Node: n, File: file, Scope: scope, Import: n.Import, Name: usingName(n)}
		key := usingKey{scope: scope, file: file}
		b.p.usings[key] = append(b.p.usings[key], u)
		b.p.usingByNode[n] = u
		b.usings = append(b.usings, u)
	}
}

func usingName(n *ast.UsingDecl) string {
	if n.Alias != nil {
		return n.Alias.Name
	}
	switch x := n.Path.(type) {
	case *ast.Ident:
		return x.Name
	case *ast.MemberExpr:
		return x.Property.Name
	}
	return ""
}

func (b *builder) collectStmts(file string, stmts []ast.Stmt, scope *Decl) {
	for _, s := range stmts {
		b.collectStmt(file, s, scope)
	}
}

// collectStmt records locals. Blocks, for loops, catch clauses and switch
// statements open a scope of their own.
func (b *builder) collectStmt(file string, s ast.Stmt, scope *Decl) {
	switch n := s.(type) {
	case *ast.VarDecl:
		b.collectDecl(file, n, scope)
	case *ast.Block:
		blk := b.block(file, n, scope)
		b.collectStmts(file, n.Body, blk)
	case *ast.IfStmt:
		b.collectStmt(file, n.Then, scope)
		if n.Else != nil {
			b.collectStmt(file, n.Else, scope)
		}
	case *ast.WhileStmt:
		b.collectStmt(file, n.Body, scope)
	case *ast.DoWhileStmt:
		b.collectStmt(file, n.Body, scope)
	case *ast.ForStmt:
		blk := b.block(file, n, scope)
		if n.Init != nil {
			b.collectStmt(file, n.Init, blk)
		}
		b.collectStmt(file, n.Body, blk)
	case *ast.TryStmt:
		b.collectStmt(file, n.Body, scope)
		for _, c := range n.Catches {
			blk := b.block(file, c, scope)
			if c.Param != nil {
				d := b.declare(blk, KindLocal, c.Param, file, c)
				d.Type = c.Type
			}
			b.collectStmt(file, c.Body, blk)
		}
		if n.Finally != nil {
			b.collectStmt(file, n.Finally, scope)
		}
	case *ast.SwitchStmt:
		blk := b.block(file, n, scope)
		for _, c := range n.Cases {
			b.collectStmts(file, c.Body, blk)
		}
	}
}

func (b *builder) block(file string, n ast.Node, scope *Decl) *Decl {
	start := n.Span().Start
	d := newDecl(KindBlock, fmt.Sprintf("{%d:%d}", start.Line, start.Col), scope)
	d.Sites = []Site{{File: file, Node: n}}
	scope.addMember(d)
	b.p.scopes[n] = d
	return d
}

// fileSymbols returns the names used as `:symbol` in f, reusing the
// previous program's answer when the tree is unchanged.
func (b *builder) fileSymbols(path string, f *ast.File) []string {
	if b.prev != nil {
		if fi := b.prev.files[path]; fi != nil && fi.ast == f {
			return fi.symbols
		}
	}
	var out []string
	ast.Inspect(f, func(n ast.Node) bool {
		if s, ok := n.(*ast.SymbolLit); ok {
			out = append(out, s.Name.Name)
		}
		return true
	})
	return out
}

func (b *builder) synthModule(parent *Decl, name string) *Decl {
	for _, m := range parent.Members(name) {
		if m.Kind == KindModule {
			return m
		}
	}
	m := newDecl(KindModule, name, parent)
	m.Resource = true
	parent.addMember(m)
	return m
}

// collectResources builds the Rez module. Entries of the same section and
// name from different files are one declaration with several sites.
func (b *builder) collectResources(docs []*rez.Doc) {
	root := b.synthModule(b.p.Root, "Rez")
	for _, s := range rezSections {
		b.synthModule(root, s)
	}
	for _, doc := range docs {
		if doc == nil {
			continue
		}
		b.p.resources = append(b.p.resources, doc)
		for _, e := range doc.Entries {
			sec := b.synthModule(root, e.Section)
			var d *Decl
			for _, m := range sec.Members(e.ID.Name) {
				if m.Kind == KindVariable {
					d = m
					break
				}
			}
			if d == nil {
				d = newDecl(KindVariable, e.ID.Name, sec)
				d.Resource = true
				sec.addMember(d)
				b.p.byName[d.Name] = append(b.p.byName[d.Name], d)
			}
			b.site(d, doc.Path, e.ID, e.ID)
		}
	}
}

func (b *builder) resolveUsings(sev Severity, report bool) {
	for _, u := range b.usings {
		u.Targets = b.p.ResolveQualified(u.Node.Path)
		if len(u.Targets) == 0 && report && u.File != APIFile {
			b.diags = append(b.diags, Diagnostic{
				File:     u.File,
				Range:    u.Node.Path.Span(),
				Severity: sev,
				Message:  fmt.Sprintf("Unable to resolve %s", exprString(u.Node.Path)),
			})
		}
	}
}

// inheritanceCycles reports every class that is its own ancestor.
func (b *builder) inheritanceCycles() []Diagnostic {
	var diags []Diagnostic
	for _, c := range b.p.classes {
		seen := map[*Decl]bool{}
		stack := append([]*Decl(nil), b.p.Supers(c)...)
		for len(stack) > 0 {
			s := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if s == c {
				diags = append(diags, Diagnostic{
					File:     c.File(),
					Range:    c.ID().Rng,
					Severity: SeverityError,
					Message:  fmt.Sprintf("Class %s inherits from itself", c.QualifiedName()),
				})
				break
			}
			if seen[s] {
				continue
			}
			seen[s] = true
			stack = append(stack, b.p.Supers(s)...)
		}
	}
	return diags
}

func exprString(x ast.Expr) string {
	switch x := x.(type) {
	case *ast.Ident:
		return x.Name
	case *ast.MemberExpr:
		return exprString(x.Object) + "." + x.Property.Name
	}
	return "?"
}
