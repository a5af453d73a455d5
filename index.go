package mclens

import (
	"fmt"

	"github.com/jward/mclens/internal/store"
)

// syncIndex mirrors the outlines of next into the symbol index. Files whose
// entry is shared with prev, or whose stored hash matches, are skipped.
// Files no longer in next are removed.
func syncIndex(s *store.Store, prev, next *Snapshot) error {
	if prev == nil {
		if err := claimIndex(s, next.Root); err != nil {
			return err
		}
	}

	type doc struct {
		path, hash string
		changed    bool
		syms       func() []*outlineSymbol
	}
	var docs []doc
	for _, path := range next.FilePaths() {
		e := next.Files[path]
		if e.AST == nil {
			continue
		}
		changed := prev == nil || prev.Files[path] != e
		docs = append(docs, doc{path, store.ContentHash(e.Text), changed, func() []*outlineSymbol { return outlineFile(e.AST) }})
	}
	for _, path := range sortedKeys(next.Resources) {
		e := next.Resources[path]
		if e.Doc == nil {
			continue
		}
		changed := prev == nil || prev.Resources[path] != e
		docs = append(docs, doc{path, e.Hash, changed, func() []*outlineSymbol { return outlineResource(e.Doc) }})
	}

	keep := make(map[string]bool, len(docs))
	for _, d := range docs {
		keep[d.path] = true
		if !d.changed {
			continue
		}
		existing, err := s.FileByPath(d.path)
		if err != nil {
			return err
		}
		if existing != nil && existing.Hash == d.hash {
			continue
		}
		batch := store.NewBatchedStore(s, d.path, d.hash)
		if err := indexSymbols(batch, nil, "", d.syms()); err != nil {
			return fmt.Errorf("index %s: %w", d.path, err)
		}
		if err := s.CommitBatch(batch); err != nil {
			return err
		}
	}

	// Files that failed to parse keep their previous rows.
	for path, e := range next.Files {
		if e.AST == nil {
			keep[path] = true
		}
	}
	files, err := s.Files()
	if err != nil {
		return err
	}
	var stale []int64
	for _, f := range files {
		if !keep[f.Path] {
			stale = append(stale, f.ID)
		}
	}
	if err := s.DeleteFiles(stale); err != nil {
		return err
	}
	return s.SetMetadata(metaRunID, next.RunID)
}

const (
	metaRoot  = "root"
	metaRunID = "run_id"
)

// claimIndex empties an index that was built for another project root and
// records root as its owner.
func claimIndex(s *store.Store, root string) error {
	owner, err := s.GetMetadata(metaRoot)
	if err != nil {
		return err
	}
	if owner == root {
		return nil
	}
	if owner != "" {
		files, err := s.Files()
		if err != nil {
			return err
		}
		ids := make([]int64, 0, len(files))
		for _, f := range files {
			ids = append(ids, f.ID)
		}
		if err := s.DeleteFiles(ids); err != nil {
			return err
		}
	}
	return s.SetMetadata(metaRoot, root)
}

func indexSymbols(ds store.DataStore, parent *int64, container string, syms []*outlineSymbol) error {
	for _, o := range syms {
		c := container
		if o.Kind == kindResource {
			c = o.Detail
		}
		sel := toRange(o.Sel)
		sym := &store.Symbol{
			Name:           o.Name,
			Kind:           o.Kind,
			Container:      c,
			Visibility:     o.visibility(),
			Modifiers:      o.modifiers(),
			StartLine:      int(sel.Start.Line),
			StartCol:       int(sel.Start.Character),
			EndLine:        int(sel.End.Line),
			EndCol:         int(sel.End.Character),
			ParentSymbolID: parent,
		}
		id, err := ds.InsertSymbol(sym)
		if err != nil {
			return err
		}
		if err := indexSymbols(ds, &id, qualify(container, o.Name), o.Children); err != nil {
			return err
		}
	}
	return nil
}
