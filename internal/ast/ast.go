// Package ast defines the syntax tree for Monkey C sources and a parser that
// produces it. Positions are 1-based; columns count runes. A Range is
// half-open: End points one past the last rune of the node.
package ast

import "fmt"

// Pos is a 1-based line/column position.
type Pos struct {
	Line int
	Col  int
}

// Before reports whether p sorts strictly before q.
func (p Pos) Before(q Pos) bool {
	return p.Line < q.Line || (p.Line == q.Line && p.Col < q.Col)
}

func (p Pos) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Col)
}

// Range is a half-open span [Start, End).
type Range struct {
	Start Pos
	End   Pos
}

// Contains reports whether p lies in [Start, End).
func (r Range) Contains(p Pos) bool {
	return !p.Before(r.Start) && p.Before(r.End)
}

// Encloses reports whether o lies entirely inside r.
func (r Range) Encloses(o Range) bool {
	return !o.Start.Before(r.Start) && !r.End.Before(o.End)
}

// Node is implemented by every syntax tree node.
type Node interface {
	Span() Range
	Children() []Node
}

// Expr is an expression node.
type Expr interface {
	Node
	exprNode()
}

// Stmt is a statement or declaration node.
type Stmt interface {
	Node
	stmtNode()
}

// File is the root of a parsed source file.
type File struct {
	Path string
	Body []Stmt
	Rng  Range
}

func (f *File) Span() Range { return f.Rng }
func (f *File) Children() []Node {
	out := make([]Node, 0, len(f.Body))
	for _, s := range f.Body {
		out = append(out, s)
	}
	return out
}

// Access modifiers and storage flags attached to declarations.
type Attrs struct {
	Static  bool
	Hidden  bool
	Private bool
	Public  bool
	Native  bool
}

// --- Declarations ---

// ModuleDecl is `module Name { ... }`.
type ModuleDecl struct {
	ID   *Ident
	Body []Stmt
	Rng  Range
}

// ClassDecl is `class Name extends Super { ... }`.
type ClassDecl struct {
	ID    *Ident
	Super Expr
	Body  []Stmt
	Attrs Attrs
	Rng   Range
}

// FunctionDecl is `function name(params) as Ret { ... }`. Body is nil for
// declarations without an implementation.
type FunctionDecl struct {
	ID     *Ident
	Params []*Param
	Ret    Expr
	Body   *Block
	Attrs  Attrs
	Rng    Range
}

// Param is one function parameter.
type Param struct {
	ID   *Ident
	Type Expr
	Rng  Range
}

// VarDecl is `var a, b;` or `const A = 1;`.
type VarDecl struct {
	Const bool
	Specs []*VarSpec
	Attrs Attrs
	Rng   Range
}

// VarSpec is one declarator inside a VarDecl.
type VarSpec struct {
	ID   *Ident
	Type Expr
	Init Expr
	Rng  Range
}

// EnumDecl is `enum Name { A, B = 2 }`. ID is nil for anonymous enums.
type EnumDecl struct {
	ID      *Ident
	Members []*EnumMember
	Attrs   Attrs
	Rng     Range
}

// EnumMember is one enumerator.
type EnumMember struct {
	ID   *Ident
	Init Expr
	Rng  Range
}

// TypedefDecl is `typedef Name as Type;`.
type TypedefDecl struct {
	ID   *Ident
	Type Expr
	Rng  Range
}

// UsingDecl is `using A.B as C;` or `import A.B;`.
type UsingDecl struct {
	Import bool
	Path   Expr
	Alias  *Ident
	Rng    Range
}

// --- Statements ---

// Block is `{ ... }`.
type Block struct {
	Body []Stmt
	Rng  Range
}

type ExprStmt struct {
	X   Expr
	Rng Range
}

type IfStmt struct {
	Cond Expr
	Then Stmt
	Else Stmt
	Rng  Range
}

type WhileStmt struct {
	Cond Expr
	Body Stmt
	Rng  Range
}

type DoWhileStmt struct {
	Body Stmt
	Cond Expr
	Rng  Range
}

// ForStmt is `for (init; cond; update) body`. Init may be a VarDecl.
type ForStmt struct {
	Init   Stmt
	Cond   Expr
	Update Expr
	Body   Stmt
	Rng    Range
}

type ReturnStmt struct {
	X   Expr
	Rng Range
}

type ThrowStmt struct {
	X   Expr
	Rng Range
}

// BranchStmt is `break` or `continue`.
type BranchStmt struct {
	Keyword string
	Rng     Range
}

type TryStmt struct {
	Body    *Block
	Catches []*CatchClause
	Finally *Block
	Rng     Range
}

// CatchClause is `catch (e instanceof T) { ... }`.
type CatchClause struct {
	Param *Ident
	Type  Expr
	Body  *Block
	Rng   Range
}

type SwitchStmt struct {
	Disc  Expr
	Cases []*CaseClause
	Rng   Range
}

// CaseClause has a nil Test for `default:`.
type CaseClause struct {
	Test Expr
	Body []Stmt
	Rng  Range
}

// --- Expressions ---

// Ident is a name. The root namespace `$` is an Ident named "$".
type Ident struct {
	Name string
	Rng  Range
}

// MemberExpr is `Object.Property`.
type MemberExpr struct {
	Object   Expr
	Property *Ident
	Rng      Range
}

// IndexExpr is `X[Index]`.
type IndexExpr struct {
	X     Expr
	Index Expr
	Rng   Range
}

type CallExpr struct {
	Callee Expr
	Args   []Expr
	Rng    Range
}

// NewExpr is `new T(args)`.
type NewExpr struct {
	Type Expr
	Args []Expr
	Rng  Range
}

type BinaryExpr struct {
	Op  string
	X   Expr
	Y   Expr
	Rng Range
}

// UnaryExpr covers prefix and postfix operators. Postfix is set for x++/x--.
type UnaryExpr struct {
	Op      string
	X       Expr
	Postfix bool
	Rng     Range
}

type AssignExpr struct {
	Op     string
	Target Expr
	Value  Expr
	Rng    Range
}

type CondExpr struct {
	Cond Expr
	Then Expr
	Else Expr
	Rng  Range
}

// AsExpr is `X as Type`.
type AsExpr struct {
	X    Expr
	Type Expr
	Rng  Range
}

// Literal is a number, string, char, boolean or null literal.
type Literal struct {
	Kind  string
	Value string
	Rng   Range
}

// SymbolLit is `:name`.
type SymbolLit struct {
	Name *Ident
	Rng  Range
}

// SelfExpr is `self` or `me`.
type SelfExpr struct {
	Rng Range
}

type ArrayLit struct {
	Elems []Expr
	Rng   Range
}

type DictLit struct {
	Keys   []Expr
	Values []Expr
	Rng    Range
}

type ParenExpr struct {
	X   Expr
	Rng Range
}

// --- Types ---

// TypeRef is a named type with optional container arguments, e.g.
// `Lang.Array<Number>`.
type TypeRef struct {
	Name Expr
	Args []Expr
	Rng  Range
}

// UnionType is `A or B`.
type UnionType struct {
	Types []Expr
	Rng   Range
}

// OpaqueType stands for structural types (`{ :a as Number }`, method
// signatures) that carry no named references.
type OpaqueType struct {
	Rng Range
}

// --- Span / Children ---

func (n *ModuleDecl) Span() Range   { return n.Rng }
func (n *ClassDecl) Span() Range    { return n.Rng }
func (n *FunctionDecl) Span() Range { return n.Rng }
func (n *Param) Span() Range        { return n.Rng }
func (n *VarDecl) Span() Range      { return n.Rng }
func (n *VarSpec) Span() Range      { return n.Rng }
func (n *EnumDecl) Span() Range     { return n.Rng }
func (n *EnumMember) Span() Range   { return n.Rng }
func (n *TypedefDecl) Span() Range  { return n.Rng }
func (n *UsingDecl) Span() Range    { return n.Rng }
func (n *Block) Span() Range        { return n.Rng }
func (n *ExprStmt) Span() Range     { return n.Rng }
func (n *IfStmt) Span() Range       { return n.Rng }
func (n *WhileStmt) Span() Range    { return n.Rng }
func (n *DoWhileStmt) Span() Range  { return n.Rng }
func (n *ForStmt) Span() Range      { return n.Rng }
func (n *ReturnStmt) Span() Range   { return n.Rng }
func (n *ThrowStmt) Span() Range    { return n.Rng }
func (n *BranchStmt) Span() Range   { return n.Rng }
func (n *TryStmt) Span() Range      { return n.Rng }
func (n *CatchClause) Span() Range  { return n.Rng }
func (n *SwitchStmt) Span() Range   { return n.Rng }
func (n *CaseClause) Span() Range   { return n.Rng }
func (n *Ident) Span() Range        { return n.Rng }
func (n *MemberExpr) Span() Range   { return n.Rng }
func (n *IndexExpr) Span() Range    { return n.Rng }
func (n *CallExpr) Span() Range     { return n.Rng }
func (n *NewExpr) Span() Range      { return n.Rng }
func (n *BinaryExpr) Span() Range   { return n.Rng }
func (n *UnaryExpr) Span() Range    { return n.Rng }
func (n *AssignExpr) Span() Range   { return n.Rng }
func (n *CondExpr) Span() Range     { return n.Rng }
func (n *AsExpr) Span() Range       { return n.Rng }
func (n *Literal) Span() Range      { return n.Rng }
func (n *SymbolLit) Span() Range    { return n.Rng }
func (n *SelfExpr) Span() Range     { return n.Rng }
func (n *ArrayLit) Span() Range     { return n.Rng }
func (n *DictLit) Span() Range      { return n.Rng }
func (n *ParenExpr) Span() Range    { return n.Rng }
func (n *TypeRef) Span() Range      { return n.Rng }
func (n *UnionType) Span() Range    { return n.Rng }
func (n *OpaqueType) Span() Range   { return n.Rng }

func stmts(ss []Stmt) []Node {
	out := make([]Node, 0, len(ss))
	for _, s := range ss {
		out = append(out, s)
	}
	return out
}

func exprs(es []Expr) []Node {
	out := make([]Node, 0, len(es))
	for _, e := range es {
		if e != nil {
			out = append(out, e)
		}
	}
	return out
}

func (n *ModuleDecl) Children() []Node {
	return append([]Node{n.ID}, stmts(n.Body)...)
}

func (n *ClassDecl) Children() []Node {
	out := []Node{n.ID}
	if n.Super != nil {
		out = append(out, n.Super)
	}
	return append(out, stmts(n.Body)...)
}

func (n *FunctionDecl) Children() []Node {
	out := []Node{n.ID}
	for _, p := range n.Params {
		out = append(out, p)
	}
	if n.Ret != nil {
		out = append(out, n.Ret)
	}
	if n.Body != nil {
		out = append(out, n.Body)
	}
	return out
}

func (n *Param) Children() []Node {
	out := []Node{n.ID}
	if n.Type != nil {
		out = append(out, n.Type)
	}
	return out
}

func (n *VarDecl) Children() []Node {
	out := make([]Node, 0, len(n.Specs))
	for _, s := range n.Specs {
		out = append(out, s)
	}
	return out
}

func (n *VarSpec) Children() []Node {
	out := []Node{n.ID}
	if n.Type != nil {
		out = append(out, n.Type)
	}
	if n.Init != nil {
		out = append(out, n.Init)
	}
	return out
}

func (n *EnumDecl) Children() []Node {
	var out []Node
	if n.ID != nil {
		out = append(out, n.ID)
	}
	for _, m := range n.Members {
		out = append(out, m)
	}
	return out
}

func (n *EnumMember) Children() []Node {
	out := []Node{n.ID}
	if n.Init != nil {
		out = append(out, n.Init)
	}
	return out
}

func (n *TypedefDecl) Children() []Node {
	out := []Node{n.ID}
	if n.Type != nil {
		out = append(out, n.Type)
	}
	return out
}

func (n *UsingDecl) Children() []Node {
	out := []Node{n.Path}
	if n.Alias != nil {
		out = append(out, n.Alias)
	}
	return out
}

func (n *Block) Children() []Node    { return stmts(n.Body) }
func (n *ExprStmt) Children() []Node { return []Node{n.X} }

func (n *IfStmt) Children() []Node {
	out := []Node{n.Cond, n.Then}
	if n.Else != nil {
		out = append(out, n.Else)
	}
	return out
}

func (n *WhileStmt) Children() []Node   { return []Node{n.Cond, n.Body} }
func (n *DoWhileStmt) Children() []Node { return []Node{n.Body, n.Cond} }

func (n *ForStmt) Children() []Node {
	var out []Node
	if n.Init != nil {
		out = append(out, n.Init)
	}
	if n.Cond != nil {
		out = append(out, n.Cond)
	}
	if n.Update != nil {
		out = append(out, n.Update)
	}
	return append(out, n.Body)
}

func (n *ReturnStmt) Children() []Node {
	if n.X == nil {
		return nil
	}
	return []Node{n.X}
}

func (n *ThrowStmt) Children() []Node  { return []Node{n.X} }
func (n *BranchStmt) Children() []Node { return nil }

func (n *TryStmt) Children() []Node {
	out := []Node{n.Body}
	for _, c := range n.Catches {
		out = append(out, c)
	}
	if n.Finally != nil {
		out = append(out, n.Finally)
	}
	return out
}

func (n *CatchClause) Children() []Node {
	var out []Node
	if n.Param != nil {
		out = append(out, n.Param)
	}
	if n.Type != nil {
		out = append(out, n.Type)
	}
	return append(out, n.Body)
}

func (n *SwitchStmt) Children() []Node {
	out := []Node{n.Disc}
	for _, c := range n.Cases {
		out = append(out, c)
	}
	return out
}

func (n *CaseClause) Children() []Node {
	var out []Node
	if n.Test != nil {
		out = append(out, n.Test)
	}
	return append(out, stmts(n.Body)...)
}

func (n *Ident) Children() []Node      { return nil }
func (n *MemberExpr) Children() []Node { return []Node{n.Object, n.Property} }
func (n *IndexExpr) Children() []Node  { return []Node{n.X, n.Index} }

func (n *CallExpr) Children() []Node {
	return append([]Node{n.Callee}, exprs(n.Args)...)
}

func (n *NewExpr) Children() []Node {
	return append([]Node{n.Type}, exprs(n.Args)...)
}

func (n *BinaryExpr) Children() []Node { return []Node{n.X, n.Y} }
func (n *UnaryExpr) Children() []Node  { return []Node{n.X} }
func (n *AssignExpr) Children() []Node { return []Node{n.Target, n.Value} }
func (n *CondExpr) Children() []Node   { return []Node{n.Cond, n.Then, n.Else} }
func (n *AsExpr) Children() []Node     { return []Node{n.X, n.Type} }
func (n *Literal) Children() []Node    { return nil }
func (n *SymbolLit) Children() []Node  { return []Node{n.Name} }
func (n *SelfExpr) Children() []Node   { return nil }
func (n *ArrayLit) Children() []Node   { return exprs(n.Elems) }
func (n *ParenExpr) Children() []Node  { return []Node{n.X} }

func (n *DictLit) Children() []Node {
	out := make([]Node, 0, 2*len(n.Keys))
	for i := range n.Keys {
		out = append(out, n.Keys[i], n.Values[i])
	}
	return out
}

func (n *TypeRef) Children() []Node   { return append([]Node{n.Name}, exprs(n.Args)...) }
func (n *UnionType) Children() []Node { return exprs(n.Types) }
func (n *OpaqueType) Children() []Node {
	return nil
}

func (*ModuleDecl) stmtNode()   {}
func (*ClassDecl) stmtNode()    {}
func (*FunctionDecl) stmtNode() {}
func (*VarDecl) stmtNode()      {}
func (*EnumDecl) stmtNode()     {}
func (*TypedefDecl) stmtNode()  {}
func (*UsingDecl) stmtNode()    {}
func (*Block) stmtNode()        {}
func (*ExprStmt) stmtNode()     {}
func (*IfStmt) stmtNode()       {}
func (*WhileStmt) stmtNode()    {}
func (*DoWhileStmt) stmtNode()  {}
func (*ForStmt) stmtNode()      {}
func (*ReturnStmt) stmtNode()   {}
func (*ThrowStmt) stmtNode()    {}
func (*BranchStmt) stmtNode()   {}
func (*TryStmt) stmtNode()      {}
func (*SwitchStmt) stmtNode()   {}

func (*Ident) exprNode()      {}
func (*MemberExpr) exprNode() {}
func (*IndexExpr) exprNode()  {}
func (*CallExpr) exprNode()   {}
func (*NewExpr) exprNode()    {}
func (*BinaryExpr) exprNode() {}
func (*UnaryExpr) exprNode()  {}
func (*AssignExpr) exprNode() {}
func (*CondExpr) exprNode()   {}
func (*AsExpr) exprNode()     {}
func (*Literal) exprNode()    {}
func (*SymbolLit) exprNode()  {}
func (*SelfExpr) exprNode()   {}
func (*ArrayLit) exprNode()   {}
func (*DictLit) exprNode()    {}
func (*ParenExpr) exprNode()  {}
func (*TypeRef) exprNode()    {}
func (*UnionType) exprNode()  {}
func (*OpaqueType) exprNode() {}
