package main

import (
	"path/filepath"
	"strings"

	"go.lsp.dev/protocol"

	"github.com/jward/mclens"
)

// CLIResult is the top-level JSON envelope for all commands.
type CLIResult struct {
	Command string `json:"command"`
	Results any    `json:"results"`
	Stale   bool   `json:"stale,omitempty"`
	Error   string `json:"error,omitempty"`
}

// CLILocation is a JSON-friendly source range.
type CLILocation struct {
	File      string `json:"file"`
	StartLine int    `json:"start_line"`
	StartCol  int    `json:"start_col"`
	EndLine   int    `json:"end_line"`
	EndCol    int    `json:"end_col"`
}

// CLISymbol is a JSON-friendly declaration, from an outline or from the
// workspace index.
type CLISymbol struct {
	Name      string      `json:"name"`
	Kind      string      `json:"kind"`
	Detail    string      `json:"detail,omitempty"`
	Container string      `json:"container,omitempty"`
	File      string      `json:"file,omitempty"`
	StartLine int         `json:"start_line"`
	StartCol  int         `json:"start_col"`
	Children  []CLISymbol `json:"children,omitempty"`
}

// CLIDiagnostic is a JSON-friendly diagnostic.
type CLIDiagnostic struct {
	File     string `json:"file"`
	Line     int    `json:"line"`
	Col      int    `json:"col"`
	Severity string `json:"severity"`
	Message  string `json:"message"`
}

// CLIFileEdit summarizes the edits a rename makes to one file.
type CLIFileEdit struct {
	File    string        `json:"file"`
	Edits   []CLILocation `json:"edits"`
	NewText string        `json:"new_text"`
	Applied bool          `json:"applied"`
}

// CLITypeRelation is a class in a type hierarchy.
type CLITypeRelation struct {
	Name     string       `json:"name"`
	Location *CLILocation `json:"location,omitempty"`
	Depth    int          `json:"depth,omitempty"`
}

// CLITypeHierarchy is the hierarchy around one class.
type CLITypeHierarchy struct {
	Class      CLITypeRelation   `json:"class"`
	Supers     []CLITypeRelation `json:"supers"`
	Subclasses []CLITypeRelation `json:"subclasses"`
}

// relPath shortens path to be relative to root when it lies below it.
func relPath(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return path
	}
	return rel
}

func locationToCLI(root string, l protocol.Location) CLILocation {
	return rangeToCLI(relPath(root, mclens.URIPath(l.URI)), l.Range)
}

func rangeToCLI(file string, r protocol.Range) CLILocation {
	return CLILocation{
		File:      file,
		StartLine: int(r.Start.Line),
		StartCol:  int(r.Start.Character),
		EndLine:   int(r.End.Line),
		EndCol:    int(r.End.Character),
	}
}

func locationsToCLI(root string, locs []protocol.Location) []CLILocation {
	out := make([]CLILocation, 0, len(locs))
	for _, l := range locs {
		out = append(out, locationToCLI(root, l))
	}
	return out
}

func documentSymbolsToCLI(syms []protocol.DocumentSymbol) []CLISymbol {
	out := make([]CLISymbol, 0, len(syms))
	for _, s := range syms {
		out = append(out, CLISymbol{
			Name:      s.Name,
			Kind:      strings.ToLower(s.Kind.String()),
			Detail:    s.Detail,
			StartLine: int(s.SelectionRange.Start.Line),
			StartCol:  int(s.SelectionRange.Start.Character),
			Children:  documentSymbolsToCLI(s.Children),
		})
	}
	return out
}

func symbolInfosToCLI(root string, syms []protocol.SymbolInformation) []CLISymbol {
	out := make([]CLISymbol, 0, len(syms))
	for _, s := range syms {
		loc := locationToCLI(root, s.Location)
		out = append(out, CLISymbol{
			Name:      s.Name,
			Kind:      strings.ToLower(s.Kind.String()),
			Container: s.ContainerName,
			File:      loc.File,
			StartLine: loc.StartLine,
			StartCol:  loc.StartCol,
		})
	}
	return out
}

func relationToCLI(root string, r mclens.TypeRelation) CLITypeRelation {
	out := CLITypeRelation{Name: r.Name, Depth: r.Depth}
	if r.Location != nil {
		loc := locationToCLI(root, *r.Location)
		out.Location = &loc
	}
	return out
}

func relationsToCLI(root string, rs []mclens.TypeRelation) []CLITypeRelation {
	out := make([]CLITypeRelation, 0, len(rs))
	for _, r := range rs {
		out = append(out, relationToCLI(root, r))
	}
	return out
}
