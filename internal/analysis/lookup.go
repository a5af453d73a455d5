package analysis

import "github.com/jward/mclens/internal/ast"

// LookupMode selects which declarations a name may bind to.
type LookupMode int

const (
	// LookupValue is an ordinary identifier in an expression.
	LookupValue LookupMode = iota
	// LookupCallee is the callee of a call. Locals and parameters are not
	// callable and are skipped.
	LookupCallee
	// LookupType is a name in a type position; only modules, classes,
	// typedefs and enums match.
	LookupType
)

// LookupName resolves an unqualified name used at pos in scope. Scopes are
// searched innermost first: locals declared before pos, class members
// including inherited ones, module members, then the file's using and
// import clauses. Toybox.Lang is searched last.
func (p *Program) LookupName(name string, scope *Decl, file string, pos ast.Pos, mode LookupMode) []*Decl {
	for s := scope; s != nil; s = s.Parent {
		var found []*Decl
		switch s.Kind {
		case KindFunction, KindBlock:
			if mode != LookupValue {
				continue
			}
			for _, d := range s.Members(name) {
				if d.Kind == KindParam || (d.Kind == KindLocal && d.ID().Rng.Start.Before(pos)) {
					found = append(found, d)
				}
			}
		case KindClass:
			found = filterMode(p.ClassMember(s, name), mode)
		case KindModule, KindProgram:
			found = filterMode(s.Members(name), mode)
			if len(found) == 0 {
				found = filterMode(p.viaUsings(s, file, name), mode)
			}
		}
		if len(found) > 0 {
			return found
		}
	}
	if p.lang != nil {
		return filterMode(p.lang.Members(name), mode)
	}
	return nil
}

func (p *Program) viaUsings(scope *Decl, file, name string) []*Decl {
	var out []*Decl
	for _, u := range p.usings[usingKey{scope: scope, file: file}] {
		if u.Name == name {
			out = append(out, u.Targets...)
		}
		if u.Import {
			for _, t := range u.Targets {
				out = append(out, t.Members(name)...)
			}
		}
	}
	return out
}

func filterMode(ds []*Decl, mode LookupMode) []*Decl {
	if mode != LookupType {
		return ds
	}
	var out []*Decl
	for _, d := range ds {
		if d.Kind.IsType() {
			out = append(out, d)
		}
	}
	return out
}

// ClassMember returns the members called name visible in cls: its own, or
// those of the nearest ancestor declaring the name.
func (p *Program) ClassMember(cls *Decl, name string) []*Decl {
	seen := map[*Decl]bool{}
	level := []*Decl{cls}
	for len(level) > 0 {
		var found, next []*Decl
		for _, c := range level {
			if seen[c] {
				continue
			}
			seen[c] = true
			found = append(found, c.Members(name)...)
			next = append(next, p.Supers(c)...)
		}
		if len(found) > 0 {
			return found
		}
		level = next
	}
	return nil
}

// MemberDecls returns the members called name of a value: class members
// (inherited included) for classes and their instances, direct members for
// modules.
func (p *Program) MemberDecls(v Value, name string) []*Decl {
	switch v.Decl.Kind {
	case KindClass:
		return p.ClassMember(v.Decl, name)
	case KindModule, KindProgram:
		return v.Decl.Members(name)
	}
	return nil
}

// ResolveName resolves a dotted name path such as `MyModule.Base` in scope.
// Every segment but the last must name a module or class.
func (p *Program) ResolveName(x ast.Expr, scope *Decl, file string, mode LookupMode) []*Decl {
	switch x := x.(type) {
	case *ast.Ident:
		if x.Name == "$" {
			return []*Decl{p.Root}
		}
		return p.LookupName(x.Name, scope, file, x.Rng.Start, mode)
	case *ast.MemberExpr:
		var out []*Decl
		for _, obj := range p.ResolveName(x.Object, scope, file, LookupType) {
			out = append(out, filterMode(p.MemberDecls(Value{Decl: obj}, x.Property.Name), mode)...)
		}
		return uniqueDecls(out)
	}
	return nil
}

// ResolveQualified resolves a name path from the root, as using clauses
// do.
func (p *Program) ResolveQualified(x ast.Expr) []*Decl {
	switch x := x.(type) {
	case *ast.Ident:
		if x.Name == "$" {
			return []*Decl{p.Root}
		}
		return p.Root.Members(x.Name)
	case *ast.MemberExpr:
		var out []*Decl
		for _, obj := range p.ResolveQualified(x.Object) {
			if obj.IsScope() {
				out = append(out, obj.Members(x.Property.Name)...)
			}
		}
		return uniqueDecls(out)
	}
	return nil
}

func uniqueDecls(ds []*Decl) []*Decl {
	if len(ds) < 2 {
		return ds
	}
	seen := make(map[*Decl]bool, len(ds))
	out := ds[:0:0]
	for _, d := range ds {
		if !seen[d] {
			seen[d] = true
			out = append(out, d)
		}
	}
	return out
}
