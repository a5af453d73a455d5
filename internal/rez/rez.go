// Package rez extracts resource identifiers from Monkey C resource files.
//
// XML resource files declare entries (`<string id="AppName">`) that the
// compiler exposes as `Rez.<Section>.<id>`, and reference other entries as
// `@Strings.AppName` or through `personality` attributes. Personality style
// sheets (.mss) declare class selectors exposed as `Rez.Styles.<name>`.
package rez

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/jward/mclens/internal/ast"
)

// Section names used under the Rez module.
const (
	SectionStrings   = "Strings"
	SectionDrawables = "Drawables"
	SectionLayouts   = "Layouts"
	SectionMenus     = "Menus"
	SectionFonts     = "Fonts"
	SectionJsonData  = "JsonData"
	SectionStyles    = "Styles"
)

// Entry is a declaration of a resource identifier.
type Entry struct {
	Section string
	ID      *ast.Ident
}

// Ref is a use of a resource identifier inside a resource file. ID covers
// only the identifier, not the section prefix.
type Ref struct {
	Section string
	ID      *ast.Ident
}

// Doc is the symbol content of one resource file.
type Doc struct {
	Path    string
	Entries []Entry
	Refs    []Ref
}

// Sections returns the distinct sections declared by d, sorted.
func (d *Doc) Sections() []string {
	seen := map[string]bool{}
	var out []string
	for _, e := range d.Entries {
		if !seen[e.Section] {
			seen[e.Section] = true
			out = append(out, e.Section)
		}
	}
	sort.Strings(out)
	return out
}

// IsResourceFile reports whether path has a resource extension.
func IsResourceFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xml", ".mss":
		return true
	}
	return false
}

// Parse dispatches on the file extension.
func Parse(ctx context.Context, path string, src []byte) (*Doc, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xml":
		return ParseXML(path, src)
	case ".mss":
		return ParseStyles(ctx, path, src)
	}
	return nil, fmt.Errorf("rez: unsupported resource file %s", path)
}

// lineIndex maps byte offsets to 1-based line and rune column positions.
type lineIndex struct {
	src    []byte
	starts []int
}

func newLineIndex(src []byte) *lineIndex {
	idx := &lineIndex{src: src, starts: []int{0}}
	for i, b := range src {
		if b == '\n' {
			idx.starts = append(idx.starts, i+1)
		}
	}
	return idx
}

func (l *lineIndex) pos(off int) ast.Pos {
	if off > len(l.src) {
		off = len(l.src)
	}
	line := sort.Search(len(l.starts), func(i int) bool { return l.starts[i] > off }) - 1
	col := utf8.RuneCount(l.src[l.starts[line]:off]) + 1
	return ast.Pos{Line: line + 1, Col: col}
}

func (l *lineIndex) ident(name string, start, end int) *ast.Ident {
	return &ast.Ident{Name: name, Rng: ast.Range{Start: l.pos(start), End: l.pos(end)}}
}
