package mclens

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/spf13/afero"
	"go.lsp.dev/protocol"

	"github.com/jward/mclens/internal/analysis"
	"github.com/jward/mclens/internal/ast"
)

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// CheckRename reports whether targets may be renamed. It returns a
// *RenameRejectedError naming the first rule that forbids it.
func CheckRename(snap *Snapshot, targets *DeclSet) error {
	prog := snap.Analysis
	if prog == nil {
		return ErrNoAnalysis
	}
	if targets.Len() == 0 {
		return ErrNotFound
	}
	for _, d := range targets.Decls() {
		switch {
		case d.Kind == analysis.KindProgram || d.Name == "$":
			return rejectRename("cannot rename the root namespace")
		case d.ReadOnly():
			return rejectRename("cannot rename %s: it is defined by the device API", d.QualifiedName())
		case len(d.Sites) == 0:
			return rejectRename("cannot rename %s: it has no declaration in the project", d.QualifiedName())
		case d.OwnerClass() != nil && dispatches(d):
			return rejectRename("cannot rename class member %s: dynamic dispatch makes its uses unknowable", d.QualifiedName())
		case exposedModuleMember(prog, d):
			return rejectRename("cannot rename %s: its name is used as a symbol (:%s)", d.QualifiedName(), d.Name)
		}
	}
	return nil
}

// exposedModuleMember reports whether d is a module-level value whose name
// also appears as a `:symbol` literal, which may reach it dynamically.
func exposedModuleMember(prog *analysis.Program, d *analysis.Decl) bool {
	if d.Parent == nil {
		return false
	}
	switch d.Parent.Kind {
	case analysis.KindModule, analysis.KindProgram, analysis.KindEnum:
	default:
		return false
	}
	switch d.Kind {
	case analysis.KindVariable, analysis.KindConst, analysis.KindEnumMember, analysis.KindFunction:
		return prog.Exposed(d.Name)
	}
	return false
}

// CheckName reports whether name is a valid new identifier.
func CheckName(name string) error {
	switch {
	case !identRe.MatchString(name):
		return rejectRename("%q is not a valid identifier", name)
	case ast.IsKeyword(name):
		return rejectRename("%q is a reserved word", name)
	}
	return nil
}

// RenameEdits computes the edits renaming every declaration and reference
// of targets to newName. Occurrences spelled differently, such as using
// aliases, are left alone.
func RenameEdits(snap *Snapshot, targets *DeclSet, newName string) (*protocol.WorkspaceEdit, error) {
	if err := CheckName(newName); err != nil {
		return nil, err
	}
	if err := CheckRename(snap, targets); err != nil {
		return nil, err
	}
	oldName := targets.Decls()[0].Name
	refs, err := collectReferences(snap, targets, SearchScopeFor(targets), ReferenceOptions{IncludeDeclaration: true})
	if err != nil {
		return nil, err
	}
	edit := &protocol.WorkspaceEdit{Changes: map[protocol.DocumentURI][]protocol.TextEdit{}}
	for _, r := range refs {
		if r.ID.Name != oldName {
			continue
		}
		u := FileURI(r.Path)
		edit.Changes[u] = append(edit.Changes[u], protocol.TextEdit{Range: toRange(r.ID.Rng), NewText: newName})
	}
	return edit, nil
}

// ApplyTextEdits applies non-overlapping edits to text. Positions are
// 0-based lines and rune columns.
func ApplyTextEdits(text string, edits []protocol.TextEdit) (string, error) {
	lines := lineStarts(text)
	type span struct {
		start, end int
		text       string
	}
	spans := make([]span, 0, len(edits))
	for _, e := range edits {
		start, err := offsetOf(text, lines, e.Range.Start)
		if err != nil {
			return "", err
		}
		end, err := offsetOf(text, lines, e.Range.End)
		if err != nil {
			return "", err
		}
		if end < start {
			return "", fmt.Errorf("mclens: edit range %v is inverted", e.Range)
		}
		spans = append(spans, span{start, end, e.NewText})
	}
	sort.SliceStable(spans, func(i, j int) bool { return spans[i].start < spans[j].start })
	var b strings.Builder
	last := 0
	for _, s := range spans {
		if s.start < last {
			return "", fmt.Errorf("mclens: overlapping edits at offset %d", s.start)
		}
		b.WriteString(text[last:s.start])
		b.WriteString(s.text)
		last = s.end
	}
	b.WriteString(text[last:])
	return b.String(), nil
}

func lineStarts(text string) []int {
	starts := []int{0}
	for i := 0; i < len(text); i++ {
		if text[i] == '\n' {
			starts = append(starts, i+1)
		}
	}
	return starts
}

func offsetOf(text string, lines []int, p protocol.Position) (int, error) {
	if int(p.Line) >= len(lines) {
		return 0, fmt.Errorf("mclens: line %d out of range", p.Line)
	}
	off := lines[p.Line]
	for n := uint32(0); n < p.Character; n++ {
		if off >= len(text) || text[off] == '\n' {
			return 0, fmt.Errorf("mclens: column %d out of range on line %d", p.Character, p.Line)
		}
		_, size := utf8.DecodeRuneInString(text[off:])
		off += size
	}
	return off, nil
}

// ApplyEdit applies edit to the files of fsys and returns their new
// contents. Every file is edited in memory first, so nothing is written
// when any edit fails.
func ApplyEdit(fsys afero.Fs, edit *protocol.WorkspaceEdit) (map[string]string, error) {
	out := make(map[string]string, len(edit.Changes))
	for u, edits := range edit.Changes {
		path := URIPath(u)
		data, err := afero.ReadFile(fsys, path)
		if err != nil {
			return nil, fmt.Errorf("mclens: apply edit: %w", err)
		}
		text, err := ApplyTextEdits(string(data), edits)
		if err != nil {
			return nil, fmt.Errorf("mclens: apply edit to %s: %w", path, err)
		}
		out[path] = text
	}
	for _, path := range sortedKeys(out) {
		if err := afero.WriteFile(fsys, path, []byte(out[path]), 0o644); err != nil {
			return nil, fmt.Errorf("mclens: apply edit: %w", err)
		}
	}
	return out, nil
}
