package mclens

import (
	"context"

	"go.lsp.dev/protocol"

	"github.com/jward/mclens/internal/analysis"
)

// TypeRelation is a class related to the one a hierarchy was built for.
type TypeRelation struct {
	Name string
	// Location is unset for API classes.
	Location *protocol.Location
	// Depth is 1 for direct super- or subclasses.
	Depth int
}

// TypeHierarchy is the class hierarchy around a single class.
type TypeHierarchy struct {
	Class      TypeRelation
	Supers     []TypeRelation // nearest first, ending at Toybox.Lang.Object
	Subclasses []TypeRelation // breadth first
}

// TypeHierarchy returns the hierarchy of the class named at pos. A method
// or field name selects its owning class. It fails with ErrNotFound when
// pos names neither.
func (p *Project) TypeHierarchy(ctx context.Context, path string, pos protocol.Position) (*TypeHierarchy, error) {
	defer p.timeQuery(ctx, "type_hierarchy")()
	snap, _, err := p.Analysis(ctx, true)
	if err != nil {
		return nil, err
	}
	results, err := Resolve(snap, p.abs(path), pos)
	if err != nil {
		return nil, err
	}
	var cls *analysis.Decl
	for _, r := range results {
		switch {
		case r.Decl.Kind == analysis.KindClass:
			cls = r.Decl
		case r.Decl.OwnerClass() != nil:
			cls = r.Decl.OwnerClass()
		}
		if cls != nil {
			break
		}
	}
	if cls == nil {
		return nil, ErrNotFound
	}

	prog := snap.Analysis
	h := &TypeHierarchy{Class: relation(cls, 0)}
	seen := map[*analysis.Decl]bool{cls: true}
	level := prog.Supers(cls)
	for depth := 1; len(level) > 0; depth++ {
		var next []*analysis.Decl
		for _, s := range level {
			if seen[s] {
				continue
			}
			seen[s] = true
			h.Supers = append(h.Supers, relation(s, depth))
			next = append(next, prog.Supers(s)...)
		}
		level = next
	}

	children := make(map[*analysis.Decl][]*analysis.Decl)
	for _, c := range prog.Classes() {
		for _, s := range prog.Supers(c) {
			children[s] = append(children[s], c)
		}
	}
	level = children[cls]
	for depth := 1; len(level) > 0; depth++ {
		var next []*analysis.Decl
		for _, c := range level {
			if seen[c] {
				continue
			}
			seen[c] = true
			h.Subclasses = append(h.Subclasses, relation(c, depth))
			next = append(next, children[c]...)
		}
		level = next
	}
	return h, nil
}

func relation(d *analysis.Decl, depth int) TypeRelation {
	r := TypeRelation{Name: d.QualifiedName(), Depth: depth}
	if id := d.ID(); id != nil && !d.ReadOnly() {
		loc := location(d.File(), id.Rng)
		r.Location = &loc
	}
	return r
}
