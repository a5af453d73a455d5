package mclens

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/lithammer/fuzzysearch/fuzzy"
	"go.lsp.dev/protocol"

	"github.com/jward/mclens/internal/analysis"
)

// Definition returns the declarations the name at pos may refer to,
// including every override a polymorphic call can reach. A last-known-good
// analysis is used when the current snapshot has none.
func (p *Project) Definition(ctx context.Context, path string, pos protocol.Position) ([]protocol.Location, error) {
	defer p.timeQuery(ctx, "definition")()
	snap, _, err := p.Analysis(ctx, true)
	if err != nil {
		return nil, err
	}
	results, err := Resolve(snap, p.abs(path), pos)
	if err != nil {
		return nil, err
	}
	var out []protocol.Location
	for _, d := range Expand(snap, results).Decls() {
		for _, s := range d.Sites {
			if s.ID != nil && s.File != analysis.APIFile {
				out = append(out, location(s.File, s.ID.Rng))
			}
		}
	}
	return out, nil
}

// References returns the occurrences of the symbol at pos. Stale analyses
// are accepted.
func (p *Project) References(ctx context.Context, path string, pos protocol.Position, includeDecl bool) ([]protocol.Location, error) {
	defer p.timeQuery(ctx, "references")()
	snap, _, err := p.Analysis(ctx, true)
	if err != nil {
		return nil, err
	}
	targets, err := p.targetsAt(snap, path, pos)
	if err != nil {
		return nil, err
	}
	return FindReferences(snap, targets, SearchScopeFor(targets), ReferenceOptions{IncludeDeclaration: includeDecl})
}

// PrepareRename returns the range of the name at pos, or the reason it
// cannot be renamed.
func (p *Project) PrepareRename(ctx context.Context, path string, pos protocol.Position) (protocol.Range, error) {
	defer p.timeQuery(ctx, "prepare_rename")()
	snap, _, err := p.Analysis(ctx, false)
	if err != nil {
		return protocol.Range{}, err
	}
	results, err := Resolve(snap, p.abs(path), pos)
	if err != nil {
		return protocol.Range{}, err
	}
	if err := CheckRename(snap, Expand(snap, results)); err != nil {
		return protocol.Range{}, err
	}
	return toRange(results[0].Node.Span()), nil
}

// Rename computes the edits renaming the symbol at pos to newName. It
// refuses to run on a stale analysis.
func (p *Project) Rename(ctx context.Context, path string, pos protocol.Position, newName string) (*protocol.WorkspaceEdit, error) {
	defer p.timeQuery(ctx, "rename")()
	snap, _, err := p.Analysis(ctx, false)
	if err != nil {
		return nil, err
	}
	targets, err := p.targetsAt(snap, path, pos)
	if err != nil {
		return nil, err
	}
	edit, err := RenameEdits(snap, targets, newName)
	if err != nil {
		return nil, err
	}
	p.logger.Info("rename", "path", path, "new_name", newName, "files", len(edit.Changes))
	return edit, nil
}

// DocumentSymbols returns the outline of a source or resource file. It
// needs only the syntax tree; when the file does not parse, the outline of
// the last snapshot that parsed it is returned.
func (p *Project) DocumentSymbols(ctx context.Context, path string) ([]protocol.DocumentSymbol, error) {
	defer p.timeQuery(ctx, "document_symbols")()
	snap, err := p.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	path = p.abs(path)
	if syms, ok := outlineOf(snap, path); ok {
		return toDocumentSymbols(syms), nil
	}
	p.mu.Lock()
	good := p.lastGood
	p.mu.Unlock()
	if syms, ok := outlineOf(good, path); ok {
		return toDocumentSymbols(syms), nil
	}
	if snap.tracked(path) {
		return []protocol.DocumentSymbol{}, nil
	}
	return nil, ErrNotFound
}

func outlineOf(snap *Snapshot, path string) ([]*outlineSymbol, bool) {
	if snap == nil {
		return nil, false
	}
	if e, ok := snap.Files[path]; ok && e.AST != nil {
		return outlineFile(e.AST), true
	}
	if e, ok := snap.Resources[path]; ok && e.Doc != nil {
		return outlineResource(e.Doc), true
	}
	return nil, false
}

// WorkspaceSymbols returns the declarations whose name fuzzily matches
// query, best match first. It reads the symbol index when one is
// configured and walks the snapshot otherwise.
func (p *Project) WorkspaceSymbols(ctx context.Context, query string) ([]protocol.SymbolInformation, error) {
	defer p.timeQuery(ctx, "workspace_symbols")()
	snap, err := p.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	var cands []protocol.SymbolInformation
	if p.index != nil {
		syms, err := p.index.SearchSymbols(query, 0)
		if err != nil {
			return nil, err
		}
		for _, s := range syms {
			cands = append(cands, protocol.SymbolInformation{
				Name: s.Name,
				Kind: symbolKinds[s.Kind],
				Location: protocol.Location{
					URI: FileURI(s.Path),
					Range: protocol.Range{
						Start: protocol.Position{Line: uint32(s.StartLine), Character: uint32(s.StartCol)},
						End:   protocol.Position{Line: uint32(s.EndLine), Character: uint32(s.EndCol)},
					},
				},
				ContainerName: s.Container,
			})
		}
	} else {
		cands = snapshotSymbols(snap)
	}
	return rankSymbols(query, cands), nil
}

// snapshotSymbols flattens the outlines of every file of snap.
func snapshotSymbols(snap *Snapshot) []protocol.SymbolInformation {
	var out []protocol.SymbolInformation
	var flatten func(path, container string, syms []*outlineSymbol)
	flatten = func(path, container string, syms []*outlineSymbol) {
		for _, s := range syms {
			c := container
			if s.Kind == kindResource {
				c = s.Detail
			}
			out = append(out, protocol.SymbolInformation{
				Name:          s.Name,
				Kind:          symbolKinds[s.Kind],
				Location:      location(path, s.Sel),
				ContainerName: c,
			})
			flatten(path, qualify(container, s.Name), s.Children)
		}
	}
	for _, path := range snap.FilePaths() {
		if syms, ok := outlineOf(snap, path); ok {
			flatten(path, "", syms)
		}
	}
	for _, path := range sortedKeys(snap.Resources) {
		if syms, ok := outlineOf(snap, path); ok {
			flatten(path, "", syms)
		}
	}
	return out
}

func qualify(container, name string) string {
	if container == "" {
		return name
	}
	return container + "." + name
}

// rankSymbols keeps the symbols matching query and orders them by match
// distance, then name.
func rankSymbols(query string, syms []protocol.SymbolInformation) []protocol.SymbolInformation {
	type ranked struct {
		sym  protocol.SymbolInformation
		dist int
	}
	var rs []ranked
	for _, s := range syms {
		if d := fuzzy.RankMatchFold(query, s.Name); d >= 0 {
			rs = append(rs, ranked{s, d})
		}
	}
	sort.SliceStable(rs, func(i, j int) bool {
		if rs[i].dist != rs[j].dist {
			return rs[i].dist < rs[j].dist
		}
		return rs[i].sym.Name < rs[j].sym.Name
	})
	out := make([]protocol.SymbolInformation, 0, len(rs))
	for _, r := range rs {
		out = append(out, r.sym)
	}
	return out
}

// targetsAt resolves and expands the name at pos.
func (p *Project) targetsAt(snap *Snapshot, path string, pos protocol.Position) (*DeclSet, error) {
	results, err := Resolve(snap, p.abs(path), pos)
	if err != nil {
		return nil, err
	}
	return Expand(snap, results), nil
}

func (p *Project) timeQuery(ctx context.Context, name string) func() {
	start := time.Now()
	return func() {
		d := time.Since(start)
		recordQuery(ctx, name, d)
		p.logger.Debug("query", "query", name, "duration", d)
	}
}

// IsRenameRejected reports whether err is a rename refusal.
func IsRenameRejected(err error) bool {
	var re *RenameRejectedError
	return errors.As(err, &re)
}
