package mclens

import "github.com/jward/mclens/internal/analysis"

// DeclSet is an insertion-ordered set of declarations keyed by their
// structural identity.
type DeclSet struct {
	index map[analysis.DeclKey]int
	decls []*analysis.Decl
}

// NewDeclSet returns a set holding ds.
func NewDeclSet(ds ...*analysis.Decl) *DeclSet {
	s := &DeclSet{index: make(map[analysis.DeclKey]int)}
	for _, d := range ds {
		s.Add(d)
	}
	return s
}

// Add inserts d and reports whether it was new.
func (s *DeclSet) Add(d *analysis.Decl) bool {
	k := d.Key()
	if _, ok := s.index[k]; ok {
		return false
	}
	s.index[k] = len(s.decls)
	s.decls = append(s.decls, d)
	return true
}

// Has reports whether a declaration with d's key is in the set.
func (s *DeclSet) Has(d *analysis.Decl) bool {
	_, ok := s.index[d.Key()]
	return ok
}

// Intersects reports whether s and o share a key.
func (s *DeclSet) Intersects(o *DeclSet) bool {
	a, b := s, o
	if len(b.decls) < len(a.decls) {
		a, b = b, a
	}
	for _, d := range a.decls {
		if b.Has(d) {
			return true
		}
	}
	return false
}

func (s *DeclSet) Len() int { return len(s.decls) }

func (s *DeclSet) Decls() []*analysis.Decl { return s.decls }
