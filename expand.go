package mclens

import "github.com/jward/mclens/internal/analysis"

// Expand returns every declaration the occurrences in results may run or
// read. A non-exact class method or field stands for itself and for what
// each subclass binds its name to. Static members are expanded the same
// way.
func Expand(snap *Snapshot, results []LookupResult) *DeclSet {
	out := NewDeclSet()
	lat := snap.Lattice()
	for _, r := range results {
		if r.Exact || lat == nil || !dispatches(r.Decl) {
			out.Add(r.Decl)
			continue
		}
		for _, d := range lat.Overrides(r.Decl) {
			out.Add(d)
		}
	}
	return out
}

// dispatches reports whether d is a class member that a subclass can
// override.
func dispatches(d *analysis.Decl) bool {
	if d.OwnerClass() == nil {
		return false
	}
	switch d.Kind {
	case analysis.KindFunction, analysis.KindVariable, analysis.KindConst:
		return true
	}
	return false
}
