package mclens

import (
	"github.com/jward/mclens/internal/analysis"
)

// ClassLattice is the transitive subclass relation of an analysis.
type ClassLattice struct {
	prog *analysis.Program
	subs map[analysis.DeclKey][]*analysis.Decl
}

// NewClassLattice builds the lattice of prog. Subclasses are listed
// breadth first in declaration order.
func NewClassLattice(prog *analysis.Program) *ClassLattice {
	direct := make(map[*analysis.Decl][]*analysis.Decl)
	for _, c := range prog.Classes() {
		for _, s := range prog.Supers(c) {
			direct[s] = append(direct[s], c)
		}
	}
	l := &ClassLattice{prog: prog, subs: make(map[analysis.DeclKey][]*analysis.Decl)}
	for cls := range direct {
		seen := map[*analysis.Decl]bool{cls: true}
		var out []*analysis.Decl
		queue := direct[cls]
		for len(queue) > 0 {
			c := queue[0]
			queue = queue[1:]
			if seen[c] {
				continue
			}
			seen[c] = true
			out = append(out, c)
			queue = append(queue, direct[c]...)
		}
		l.subs[cls.Key()] = out
	}
	return l
}

// Subclasses returns every class deriving from cls, directly or not.
func (l *ClassLattice) Subclasses(cls *analysis.Decl) []*analysis.Decl {
	return l.subs[cls.Key()]
}

// Overrides returns member together with what each subclass of its owner
// binds the same name to: its own override, or the inherited declaration.
func (l *ClassLattice) Overrides(member *analysis.Decl) []*analysis.Decl {
	out := NewDeclSet(member)
	cls := member.OwnerClass()
	if cls == nil {
		return out.Decls()
	}
	for _, sub := range l.Subclasses(cls) {
		for _, d := range l.prog.ClassMember(sub, member.Name) {
			out.Add(d)
		}
	}
	return out.Decls()
}
