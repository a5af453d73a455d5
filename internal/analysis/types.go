package analysis

import (
	"math"
	"strings"

	"github.com/jward/mclens/internal/ast"
)

// evaluator carries the recursion guard for one type query. visiting maps
// each declaration being typed to its depth on the stack. low is the
// shallowest depth at which a cycle was cut below the current frame.
type evaluator struct {
	p        *Program
	visiting map[*Decl]int
	low      int
}

func newEvaluator(p *Program) *evaluator {
	return &evaluator{p: p, visiting: make(map[*Decl]int), low: math.MaxInt}
}

// TypeOf returns the possible values of x evaluated in scope. An empty
// result means the type is unknown.
func (p *Program) TypeOf(x ast.Expr, scope *Decl, file string) []Value {
	e := newEvaluator(p)
	return uniqueValues(e.typeOf(x, scope, file))
}

// TypeOfDecl returns the values a variable, parameter or typedef may hold.
func (p *Program) TypeOfDecl(d *Decl) []Value {
	e := newEvaluator(p)
	return e.valuesOf([]*Decl{d})
}

// ResolveType returns the instances described by a type expression.
func (p *Program) ResolveType(t ast.Expr, scope *Decl, file string) []Value {
	e := newEvaluator(p)
	return uniqueValues(e.typeExpr(t, scope, file))
}

func (e *evaluator) typeOf(x ast.Expr, scope *Decl, file string) []Value {
	p := e.p
	switch x := x.(type) {
	case *ast.Ident:
		if x.Name == "$" {
			return []Value{{Decl: p.Root}}
		}
		return e.valuesOf(p.LookupName(x.Name, scope, file, x.Rng.Start, LookupValue))

	case *ast.SelfExpr:
		for s := scope; s != nil; s = s.Parent {
			switch s.Kind {
			case KindClass:
				return []Value{{Decl: s, Instance: true}}
			case KindModule, KindProgram:
				return []Value{{Decl: s}}
			}
		}

	case *ast.ParenExpr:
		return e.typeOf(x.X, scope, file)

	case *ast.MemberExpr:
		var out []Value
		for _, obj := range e.typeOf(x.Object, scope, file) {
			out = append(out, e.valuesOf(p.MemberDecls(obj, x.Property.Name))...)
		}
		return out

	case *ast.CallExpr:
		var fns []*Decl
		switch c := x.Callee.(type) {
		case *ast.Ident:
			fns = p.LookupName(c.Name, scope, file, c.Rng.Start, LookupCallee)
		case *ast.MemberExpr:
			for _, obj := range e.typeOf(c.Object, scope, file) {
				fns = append(fns, p.MemberDecls(obj, c.Property.Name)...)
			}
		}
		var out []Value
		for _, fn := range fns {
			if fn.Kind == KindFunction && fn.Type != nil {
				out = append(out, e.typeExpr(fn.Type, fn.Parent, fn.File())...)
			}
		}
		return out

	case *ast.NewExpr:
		var out []Value
		for _, d := range p.ResolveName(x.Type, scope, file, LookupType) {
			if d.Kind == KindClass {
				out = append(out, Value{Decl: d, Instance: true})
			}
		}
		return out

	case *ast.AsExpr:
		return e.typeExpr(x.Type, scope, file)

	case *ast.CondExpr:
		return append(e.typeOf(x.Then, scope, file), e.typeOf(x.Else, scope, file)...)

	case *ast.Literal:
		switch x.Kind {
		case "number":
			if strings.ContainsAny(x.Value, ".eE") && !strings.HasPrefix(x.Value, "0x") {
				return e.langInstance("Float")
			}
			return e.langInstance("Number")
		case "string":
			return e.langInstance("String")
		case "char":
			return e.langInstance("Char")
		case "true", "false":
			return e.langInstance("Boolean")
		}

	case *ast.SymbolLit:
		return e.langInstance("Symbol")
	case *ast.ArrayLit:
		return e.langInstance("Array")
	case *ast.DictLit:
		return e.langInstance("Dictionary")
	}
	return nil
}

func (e *evaluator) langInstance(name string) []Value {
	if e.p.lang == nil {
		return nil
	}
	for _, d := range e.p.lang.Members(name) {
		if d.Kind == KindClass {
			return []Value{{Decl: d, Instance: true}}
		}
	}
	return nil
}

// valuesOf maps declarations found by a lookup to the values they denote.
func (e *evaluator) valuesOf(ds []*Decl) []Value {
	var out []Value
	for _, d := range ds {
		switch d.Kind {
		case KindProgram, KindModule, KindClass:
			out = append(out, Value{Decl: d})
		case KindTypedef, KindVariable, KindConst, KindParam, KindLocal:
			out = append(out, e.declType(d)...)
		}
	}
	return out
}

// declType is memoized per program. A result that depended on a cycle cut
// at an enclosing frame is incomplete and is not memoized.
func (e *evaluator) declType(d *Decl) []Value {
	p := e.p
	p.mu.Lock()
	v, ok := p.typeMemo[d]
	p.mu.Unlock()
	if ok {
		return v
	}
	if depth, ok := e.visiting[d]; ok {
		e.low = min(e.low, depth)
		return nil
	}
	depth := len(e.visiting)
	e.visiting[d] = depth
	outer := e.low
	e.low = math.MaxInt
	defer delete(e.visiting, d)

	var vals []Value
	switch {
	case d.Type != nil:
		vals = e.typeExpr(d.Type, d.Parent, d.File())
	case d.Init != nil:
		vals = e.typeOf(d.Init, d.Parent, d.File())
	}
	vals = uniqueValues(vals)

	if e.low < depth {
		e.low = min(outer, e.low)
		return vals
	}
	e.low = outer
	p.mu.Lock()
	p.typeMemo[d] = vals
	p.mu.Unlock()
	return vals
}

// typeExpr returns the instances a type expression describes. Bare name
// paths appear in catch clauses.
func (e *evaluator) typeExpr(t ast.Expr, scope *Decl, file string) []Value {
	switch t := t.(type) {
	case *ast.TypeRef:
		return e.namedType(t.Name, scope, file)
	case *ast.Ident, *ast.MemberExpr:
		return e.namedType(t, scope, file)
	case *ast.UnionType:
		var out []Value
		for _, m := range t.Types {
			out = append(out, e.typeExpr(m, scope, file)...)
		}
		return out
	}
	return nil
}

func (e *evaluator) namedType(name ast.Expr, scope *Decl, file string) []Value {
	var out []Value
	for _, d := range e.p.ResolveName(name, scope, file, LookupType) {
		switch d.Kind {
		case KindClass:
			out = append(out, Value{Decl: d, Instance: true})
		case KindTypedef:
			out = append(out, e.declType(d)...)
		}
	}
	return out
}

func uniqueValues(vs []Value) []Value {
	if len(vs) < 2 {
		return vs
	}
	seen := make(map[Value]bool, len(vs))
	out := vs[:0:0]
	for _, v := range vs {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}
