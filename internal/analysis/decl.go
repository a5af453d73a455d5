package analysis

import (
	"fmt"
	"strings"

	"github.com/jward/mclens/internal/ast"
)

// Kind classifies a declaration.
type Kind int

const (
	KindProgram Kind = iota
	KindModule
	KindClass
	KindFunction
	KindVariable
	KindConst
	KindEnum
	KindEnumMember
	KindTypedef
	KindParam
	KindLocal
	KindBlock
)

var kindNames = [...]string{
	KindProgram:    "program",
	KindModule:     "module",
	KindClass:      "class",
	KindFunction:   "function",
	KindVariable:   "variable",
	KindConst:      "const",
	KindEnum:       "enum",
	KindEnumMember: "enum_member",
	KindTypedef:    "typedef",
	KindParam:      "param",
	KindLocal:      "local",
	KindBlock:      "block",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// IsType reports whether declarations of this kind name a type.
func (k Kind) IsType() bool {
	switch k {
	case KindModule, KindClass, KindTypedef, KindEnum:
		return true
	}
	return false
}

// Site is one place in source where a declaration is written.
type Site struct {
	File string
	ID   *ast.Ident
	Node ast.Node
}

// DeclKey is the structural identity of a declaration: owning scope path,
// name and kind.
type DeclKey struct {
	Scope string
	Name  string
	Kind  Kind
}

func (k DeclKey) String() string {
	return fmt.Sprintf("%s.%s(%s)", k.Scope, k.Name, k.Kind)
}

// Decl is a node of the symbol table. Scopes (program, modules, classes,
// functions, blocks) own their members.
type Decl struct {
	Kind   Kind
	Name   string
	Parent *Decl
	Sites  []Site
	Attrs  ast.Attrs

	// Type is the declared type (variables, params), the return type
	// (functions) or the aliased type (typedefs).
	Type ast.Expr
	// Init is the initializer of a variable, constant or enum member.
	Init ast.Expr
	// Super is the `extends` expression of a class.
	Super ast.Expr
	// Resource marks declarations synthesized from resource documents.
	Resource bool

	members map[string][]*Decl
	order   []*Decl
	// path is fixed at construction; Parent never changes.
	path string
}

func newDecl(kind Kind, name string, parent *Decl) *Decl {
	d := &Decl{Kind: kind, Name: name, Parent: parent, path: name}
	if parent != nil {
		d.path = parent.path + "." + name
	}
	return d
}

func (d *Decl) addMember(m *Decl) {
	if d.members == nil {
		d.members = make(map[string][]*Decl)
	}
	d.members[m.Name] = append(d.members[m.Name], m)
	d.order = append(d.order, m)
}

// Members returns the members of d declared with name.
func (d *Decl) Members(name string) []*Decl {
	return d.members[name]
}

// AllMembers returns every member of d in declaration order.
func (d *Decl) AllMembers() []*Decl {
	return d.order
}

// ID returns the identifier of the first site, or nil for synthesized
// declarations.
func (d *Decl) ID() *ast.Ident {
	for _, s := range d.Sites {
		if s.ID != nil {
			return s.ID
		}
	}
	return nil
}

// File returns the file of the first site.
func (d *Decl) File() string {
	if len(d.Sites) == 0 {
		return ""
	}
	return d.Sites[0].File
}

// Node returns the declaring node of the first site.
func (d *Decl) Node() ast.Node {
	if len(d.Sites) == 0 {
		return nil
	}
	return d.Sites[0].Node
}

// ReadOnly reports whether d comes from the bundled API stubs.
func (d *Decl) ReadOnly() bool {
	return d.File() == APIFile
}

// IsScope reports whether d can own members.
func (d *Decl) IsScope() bool {
	switch d.Kind {
	case KindProgram, KindModule, KindClass, KindFunction, KindBlock:
		return true
	}
	return false
}

// IsLocal reports whether d is only visible within its function.
func (d *Decl) IsLocal() bool {
	return d.Kind == KindLocal || d.Kind == KindParam
}

// OwnerClass returns the class declaring d, or nil when d is not a class
// member.
func (d *Decl) OwnerClass() *Decl {
	if d.Parent != nil && d.Parent.Kind == KindClass {
		return d.Parent
	}
	return nil
}

// Path is the dotted path from the program root. Blocks are named after
// their start position so that sibling blocks stay distinct.
func (d *Decl) Path() string { return d.path }

// Key returns the structural identity of d.
func (d *Decl) Key() DeclKey {
	scope := ""
	if d.Parent != nil {
		scope = d.Parent.Path()
	}
	return DeclKey{Scope: scope, Name: d.Name, Kind: d.Kind}
}

// QualifiedName is the path without the root `$` and block segments.
func (d *Decl) QualifiedName() string {
	var parts []string
	for c := d; c != nil && c.Kind != KindProgram; c = c.Parent {
		if c.Kind == KindBlock {
			continue
		}
		parts = append(parts, c.Name)
	}
	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}
	return strings.Join(parts, ".")
}

func (d *Decl) String() string {
	return fmt.Sprintf("%s %s", d.Kind, d.QualifiedName())
}

// Value is an element of an inferred type: either a declaration used as a
// type or namespace (Instance false) or an instance of a class.
type Value struct {
	Decl     *Decl
	Instance bool
}
