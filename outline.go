package mclens

import (
	"strings"

	"go.lsp.dev/protocol"

	"github.com/jward/mclens/internal/ast"
	"github.com/jward/mclens/internal/rez"
)

// Symbol kind names stored in the workspace index.
const (
	kindModule     = "module"
	kindClass      = "class"
	kindMethod     = "method"
	kindFunction   = "function"
	kindField      = "field"
	kindVariable   = "variable"
	kindConstant   = "constant"
	kindEnum       = "enum"
	kindEnumMember = "enum_member"
	kindTypedef    = "typedef"
	kindResource   = "resource"
)

var symbolKinds = map[string]protocol.SymbolKind{
	kindModule:     protocol.SymbolKindModule,
	kindClass:      protocol.SymbolKindClass,
	kindMethod:     protocol.SymbolKindMethod,
	kindFunction:   protocol.SymbolKindFunction,
	kindField:      protocol.SymbolKindField,
	kindVariable:   protocol.SymbolKindVariable,
	kindConstant:   protocol.SymbolKindConstant,
	kindEnum:       protocol.SymbolKindEnum,
	kindEnumMember: protocol.SymbolKindEnumMember,
	kindTypedef:    protocol.SymbolKindTypeParameter,
	kindResource:   protocol.SymbolKindConstant,
}

// outlineSymbol is a declaration as shown in a file outline.
type outlineSymbol struct {
	Name     string
	Kind     string
	Detail   string
	Rng      ast.Range
	Sel      ast.Range
	Attrs    ast.Attrs
	Children []*outlineSymbol
}

func (o *outlineSymbol) visibility() string {
	switch {
	case o.Attrs.Private:
		return "private"
	case o.Attrs.Hidden:
		return "hidden"
	}
	return "public"
}

func (o *outlineSymbol) modifiers() []string {
	var mods []string
	if o.Attrs.Static {
		mods = append(mods, "static")
	}
	if o.Attrs.Native {
		mods = append(mods, "native")
	}
	return mods
}

// outlineFile lists the declarations of f. Function bodies are not
// descended into.
func outlineFile(f *ast.File) []*outlineSymbol {
	return outlineStmts(f.Body, false)
}

func outlineStmts(stmts []ast.Stmt, inClass bool) []*outlineSymbol {
	var out []*outlineSymbol
	for _, s := range stmts {
		switch n := s.(type) {
		case *ast.ModuleDecl:
			out = append(out, &outlineSymbol{
				Name: n.ID.Name, Kind: kindModule, Rng: n.Rng, Sel: n.ID.Rng,
				Children: outlineStmts(n.Body, false),
			})
		case *ast.ClassDecl:
			sym := &outlineSymbol{
				Name: n.ID.Name, Kind: kindClass, Rng: n.Rng, Sel: n.ID.Rng, Attrs: n.Attrs,
				Children: outlineStmts(n.Body, true),
			}
			if n.Super != nil {
				sym.Detail = "extends " + exprText(n.Super)
			}
			out = append(out, sym)
		case *ast.FunctionDecl:
			kind := kindFunction
			if inClass {
				kind = kindMethod
			}
			params := make([]string, 0, len(n.Params))
			for _, p := range n.Params {
				params = append(params, p.ID.Name)
			}
			out = append(out, &outlineSymbol{
				Name: n.ID.Name, Kind: kind, Rng: n.Rng, Sel: n.ID.Rng, Attrs: n.Attrs,
				Detail: "(" + strings.Join(params, ", ") + ")",
			})
		case *ast.VarDecl:
			kind := kindVariable
			switch {
			case n.Const:
				kind = kindConstant
			case inClass:
				kind = kindField
			}
			for _, spec := range n.Specs {
				out = append(out, &outlineSymbol{Name: spec.ID.Name, Kind: kind, Rng: spec.Rng, Sel: spec.ID.Rng, Attrs: n.Attrs})
			}
		case *ast.EnumDecl:
			members := make([]*outlineSymbol, 0, len(n.Members))
			for _, m := range n.Members {
				members = append(members, &outlineSymbol{Name: m.ID.Name, Kind: kindEnumMember, Rng: m.Rng, Sel: m.ID.Rng})
			}
			if n.ID == nil {
				out = append(out, members...)
				continue
			}
			out = append(out, &outlineSymbol{Name: n.ID.Name, Kind: kindEnum, Rng: n.Rng, Sel: n.ID.Rng, Children: members})
		case *ast.TypedefDecl:
			out = append(out, &outlineSymbol{Name: n.ID.Name, Kind: kindTypedef, Rng: n.Rng, Sel: n.ID.Rng})
		}
	}
	return out
}

// outlineResource lists the entries of a resource document.
func outlineResource(doc *rez.Doc) []*outlineSymbol {
	out := make([]*outlineSymbol, 0, len(doc.Entries))
	for _, e := range doc.Entries {
		out = append(out, &outlineSymbol{
			Name: e.ID.Name, Kind: kindResource, Detail: "Rez." + e.Section,
			Rng: e.ID.Rng, Sel: e.ID.Rng,
		})
	}
	return out
}

func exprText(x ast.Expr) string {
	switch n := x.(type) {
	case *ast.Ident:
		return n.Name
	case *ast.MemberExpr:
		return exprText(n.Object) + "." + n.Property.Name
	case *ast.TypeRef:
		return exprText(n.Name)
	}
	return "?"
}

func toDocumentSymbols(syms []*outlineSymbol) []protocol.DocumentSymbol {
	out := make([]protocol.DocumentSymbol, 0, len(syms))
	for _, s := range syms {
		out = append(out, protocol.DocumentSymbol{
			Name:           s.Name,
			Detail:         s.Detail,
			Kind:           symbolKinds[s.Kind],
			Range:          toRange(s.Rng),
			SelectionRange: toRange(s.Sel),
			Children:       toDocumentSymbols(s.Children),
		})
	}
	return out
}
