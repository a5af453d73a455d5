package rez

import (
	"context"
	"fmt"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/css"
)

const classSelectorQuery = `(class_selector (class_name) @name)`

var (
	styleQuery     *sitter.Query
	styleQueryErr  error
	styleQueryOnce sync.Once
)

func compiledStyleQuery() (*sitter.Query, error) {
	styleQueryOnce.Do(func() {
		styleQuery, styleQueryErr = sitter.NewQuery([]byte(classSelectorQuery), css.GetLanguage())
	})
	return styleQuery, styleQueryErr
}

// ParseStyles extracts class selectors from a personality style sheet.
// Every selector occurrence becomes an entry; entries sharing a name are
// one declaration with several sites.
func ParseStyles(ctx context.Context, path string, src []byte) (*Doc, error) {
	q, err := compiledStyleQuery()
	if err != nil {
		return nil, fmt.Errorf("rez: compiling style query: %w", err)
	}

	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(css.GetLanguage())
	tree, err := parser.ParseCtx(ctx, nil, src)
	if err != nil {
		return nil, fmt.Errorf("rez: parsing %s: %w", path, err)
	}
	defer tree.Close()

	cursor := sitter.NewQueryCursor()
	defer cursor.Close()
	cursor.Exec(q, tree.RootNode())

	doc := &Doc{Path: path}
	lines := newLineIndex(src)
	for {
		match, ok := cursor.NextMatch()
		if !ok {
			break
		}
		for _, c := range match.Captures {
			start, end := int(c.Node.StartByte()), int(c.Node.EndByte())
			doc.Entries = append(doc.Entries, Entry{
				Section: SectionStyles,
				ID:      lines.ident(c.Node.Content(src), start, end),
			})
		}
	}
	return doc, nil
}
