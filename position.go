package mclens

import (
	"go.lsp.dev/protocol"
	"go.lsp.dev/uri"

	"github.com/jward/mclens/internal/ast"
)

// Protocol positions are 0-based; syntax tree positions are 1-based. Both
// count columns in runes.

func toPosition(p ast.Pos) protocol.Position {
	return protocol.Position{Line: uint32(max(p.Line-1, 0)), Character: uint32(max(p.Col-1, 0))}
}

func fromPosition(p protocol.Position) ast.Pos {
	return ast.Pos{Line: int(p.Line) + 1, Col: int(p.Character) + 1}
}

func toRange(r ast.Range) protocol.Range {
	return protocol.Range{Start: toPosition(r.Start), End: toPosition(r.End)}
}

// FileURI returns the document URI of an absolute path.
func FileURI(path string) protocol.DocumentURI {
	return protocol.DocumentURI(uri.File(path))
}

// URIPath returns the file path of a document URI.
func URIPath(u protocol.DocumentURI) string {
	return uri.URI(u).Filename()
}

func location(path string, r ast.Range) protocol.Location {
	return protocol.Location{URI: FileURI(path), Range: toRange(r)}
}

func posLess(a, b protocol.Position) bool {
	if a.Line != b.Line {
		return a.Line < b.Line
	}
	return a.Character < b.Character
}
