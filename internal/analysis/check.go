package analysis

import (
	"fmt"

	"github.com/jward/mclens/internal/ast"
)

// checker reports names that resolve to nothing.
type checker struct {
	p     *Program
	file  string
	sev   Severity
	diags []Diagnostic
}

func (b *builder) checkFile(path string, f *ast.File, sev Severity) {
	c := &checker{p: b.p, file: path, sev: sev}
	c.walk(f, b.p.Root)
	b.diags = append(b.diags, c.diags...)
}

func (c *checker) report(id *ast.Ident, format string, args ...any) {
	c.diags = append(c.diags, Diagnostic{
		File:     c.file,
		Range:    id.Rng,
		Severity: c.sev,
		Message:  fmt.Sprintf(format, args...),
	})
}

func (c *checker) walk(n ast.Node, scope *Decl) {
	if s := c.p.scopes[n]; s != nil {
		scope = s
	}
	switch n := n.(type) {
	case *ast.UsingDecl, *ast.SymbolLit:
		return
	case *ast.Ident:
		c.ident(n, scope, LookupValue)
		return
	case *ast.MemberExpr:
		c.walk(n.Object, scope)
		c.member(n, scope)
		return
	case *ast.CallExpr:
		if id, ok := n.Callee.(*ast.Ident); ok {
			c.ident(id, scope, LookupCallee)
		} else {
			c.walk(n.Callee, scope)
		}
		for _, a := range n.Args {
			c.walk(a, scope)
		}
		return
	case *ast.TypeRef:
		c.typeName(n.Name, scope)
		for _, a := range n.Args {
			c.walk(a, scope)
		}
		return
	case *ast.NewExpr:
		c.typeName(n.Type, scope)
		for _, a := range n.Args {
			c.walk(a, scope)
		}
		return
	case *ast.ClassDecl:
		if n.Super != nil {
			c.typeName(n.Super, scope)
		}
		for _, s := range n.Body {
			c.walk(s, scope)
		}
		return
	case *ast.CatchClause:
		if n.Type != nil {
			c.typeName(n.Type, scope)
		}
		c.walk(n.Body, scope)
		return
	case *ast.BinaryExpr:
		if n.Op == "instanceof" {
			c.walk(n.X, scope)
			c.typeName(n.Y, scope)
			return
		}
	}
	for _, ch := range n.Children() {
		c.walk(ch, scope)
	}
}

func (c *checker) ident(id *ast.Ident, scope *Decl, mode LookupMode) {
	if id.Name == "$" || c.p.byID[id] != nil {
		return
	}
	if len(c.p.LookupName(id.Name, scope, c.file, id.Rng.Start, mode)) == 0 {
		c.report(id, "Undefined symbol %s", id.Name)
	}
}

// member reports a missing member only when the object is a known module
// or class used as a namespace. Instances may be of subclasses.
func (c *checker) member(m *ast.MemberExpr, scope *Decl) {
	objs := c.p.TypeOf(m.Object, scope, c.file)
	if len(objs) == 0 {
		return
	}
	for _, v := range objs {
		if v.Instance || len(c.p.MemberDecls(v, m.Property.Name)) > 0 {
			return
		}
	}
	c.report(m.Property, "Undefined symbol %s.%s", objs[0].Decl.QualifiedName(), m.Property.Name)
}

func (c *checker) typeName(x ast.Expr, scope *Decl) {
	switch x := x.(type) {
	case *ast.Ident:
		c.ident(x, scope, LookupType)
	case *ast.MemberExpr:
		c.typeName(x.Object, scope)
		objs := c.p.ResolveName(x.Object, scope, c.file, LookupType)
		if len(objs) > 0 && len(c.p.ResolveName(x, scope, c.file, LookupType)) == 0 {
			c.report(x.Property, "Undefined type %s", exprString(x))
		}
	}
}
