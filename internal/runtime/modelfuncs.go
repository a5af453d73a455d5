package runtime

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/risor-io/risor/object"
	"go.lsp.dev/protocol"
	"go.lsp.dev/uri"

	"github.com/jward/mclens/internal/store"
)

// Model host functions take and return 1-based lines and columns, the
// numbering editors display. Relative paths are taken from the project
// root.

// makeDefinitionFn creates "definition".
//
// definition(path, line, col) → [{file, line, col, end_line, end_col}]
func makeDefinitionFn(m Model) *object.Builtin {
	return object.NewBuiltin("definition", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 3 {
			return object.NewArgsError("definition", 3, len(args))
		}
		path, pos, err := positionArgs(m, args)
		if err != nil {
			return object.Errorf("definition: %v", err)
		}
		locs, err := m.Definition(ctx, path, pos)
		if err != nil {
			return object.Errorf("definition: %v", err)
		}
		return locationsToList(locs)
	})
}

// makeReferencesFn creates "references".
//
// references(path, line, col, include_declaration?) → [{file, line, col, end_line, end_col}]
func makeReferencesFn(m Model) *object.Builtin {
	return object.NewBuiltin("references", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) < 3 || len(args) > 4 {
			return object.Errorf("references: expected 3 or 4 arguments, got %d", len(args))
		}
		path, pos, err := positionArgs(m, args[:3])
		if err != nil {
			return object.Errorf("references: %v", err)
		}
		var includeDecl bool
		if len(args) == 4 {
			b, ok := args[3].(*object.Bool)
			if !ok {
				return object.Errorf("references: include_declaration must be a bool, got %s", args[3].Type())
			}
			includeDecl = b.Value()
		}
		locs, err := m.References(ctx, path, pos, includeDecl)
		if err != nil {
			return object.Errorf("references: %v", err)
		}
		return locationsToList(locs)
	})
}

// makeDocumentSymbolsFn creates "document_symbols".
//
// document_symbols(path) → [{name, kind, detail, line, col, children}]
func makeDocumentSymbolsFn(m Model) *object.Builtin {
	return object.NewBuiltin("document_symbols", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("document_symbols", 1, len(args))
		}
		path, err := toString(args[0])
		if err != nil {
			return object.Errorf("document_symbols: %v", err)
		}
		syms, err := m.DocumentSymbols(ctx, absPath(m, path))
		if err != nil {
			return object.Errorf("document_symbols: %v", err)
		}
		return documentSymbolsToList(syms)
	})
}

// makeWorkspaceSymbolsFn creates "workspace_symbols".
//
// workspace_symbols(query) → [{name, kind, container, file, line, col}]
func makeWorkspaceSymbolsFn(m Model) *object.Builtin {
	return object.NewBuiltin("workspace_symbols", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("workspace_symbols", 1, len(args))
		}
		query, err := toString(args[0])
		if err != nil {
			return object.Errorf("workspace_symbols: %v", err)
		}
		syms, err := m.WorkspaceSymbols(ctx, query)
		if err != nil {
			return object.Errorf("workspace_symbols: %v", err)
		}
		results := make([]object.Object, 0, len(syms))
		for _, s := range syms {
			loc := locationToMap(s.Location)
			loc["name"] = object.NewString(s.Name)
			loc["kind"] = object.NewString(strings.ToLower(s.Kind.String()))
			loc["container"] = object.NewString(s.ContainerName)
			results = append(results, object.NewMap(loc))
		}
		return object.NewList(results)
	})
}

// makeDiagnosticsFn creates "diagnostics".
//
// diagnostics() → [{file, line, col, severity, message}]
func makeDiagnosticsFn(m Model) *object.Builtin {
	return object.NewBuiltin("diagnostics", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 0 {
			return object.NewArgsError("diagnostics", 0, len(args))
		}
		byFile, err := m.Diagnostics(ctx)
		if err != nil {
			return object.Errorf("diagnostics: %v", err)
		}
		paths := make([]string, 0, len(byFile))
		for p := range byFile {
			paths = append(paths, p)
		}
		sort.Strings(paths)
		results := []object.Object{}
		for _, p := range paths {
			for _, d := range byFile[p] {
				results = append(results, object.NewMap(map[string]object.Object{
					"file":     object.NewString(p),
					"line":     object.NewInt(int64(d.Range.Start.Line) + 1),
					"col":      object.NewInt(int64(d.Range.Start.Character) + 1),
					"severity": object.NewString(strings.ToLower(d.Severity.String())),
					"message":  object.NewString(d.Message),
				}))
			}
		}
		return object.NewList(results)
	})
}

func positionArgs(m Model, args []object.Object) (string, protocol.Position, error) {
	path, err := toString(args[0])
	if err != nil {
		return "", protocol.Position{}, err
	}
	line, err := toInt64(args[1])
	if err != nil {
		return "", protocol.Position{}, err
	}
	col, err := toInt64(args[2])
	if err != nil {
		return "", protocol.Position{}, err
	}
	if line < 1 || col < 1 {
		return "", protocol.Position{}, fmt.Errorf("position %d:%d is not 1-based", line, col)
	}
	return absPath(m, path), protocol.Position{Line: uint32(line - 1), Character: uint32(col - 1)}, nil
}

func absPath(m Model, path string) string {
	return joinRoot(m.Root(), path)
}

func joinRoot(root, path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(root, path)
}

func locationToMap(l protocol.Location) map[string]object.Object {
	return map[string]object.Object{
		"file":     object.NewString(uri.URI(l.URI).Filename()),
		"line":     object.NewInt(int64(l.Range.Start.Line) + 1),
		"col":      object.NewInt(int64(l.Range.Start.Character) + 1),
		"end_line": object.NewInt(int64(l.Range.End.Line) + 1),
		"end_col":  object.NewInt(int64(l.Range.End.Character) + 1),
	}
}

func locationsToList(locs []protocol.Location) object.Object {
	results := make([]object.Object, 0, len(locs))
	for _, l := range locs {
		results = append(results, object.NewMap(locationToMap(l)))
	}
	return object.NewList(results)
}

func documentSymbolsToList(syms []protocol.DocumentSymbol) object.Object {
	results := make([]object.Object, 0, len(syms))
	for _, s := range syms {
		results = append(results, object.NewMap(map[string]object.Object{
			"name":     object.NewString(s.Name),
			"kind":     object.NewString(strings.ToLower(s.Kind.String())),
			"detail":   object.NewString(s.Detail),
			"line":     object.NewInt(int64(s.SelectionRange.Start.Line) + 1),
			"col":      object.NewInt(int64(s.SelectionRange.Start.Character) + 1),
			"children": documentSymbolsToList(s.Children),
		}))
	}
	return object.NewList(results)
}

// Index host functions.

func makeSymbolsByNameFn(s *store.Store) *object.Builtin {
	return object.NewBuiltin("symbols_by_name", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("symbols_by_name", 1, len(args))
		}
		name, err := toString(args[0])
		if err != nil {
			return object.Errorf("symbols_by_name: %v", err)
		}
		syms, err := s.SymbolsByName(name)
		if err != nil {
			return object.Errorf("symbols_by_name: %v", err)
		}
		return symbolsToList(syms)
	})
}

func makeSymbolsByFileFn(s *store.Store) *object.Builtin {
	return object.NewBuiltin("symbols_by_file", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("symbols_by_file", 1, len(args))
		}
		path, err := toString(args[0])
		if err != nil {
			return object.Errorf("symbols_by_file: %v", err)
		}
		f, err := s.FileByPath(path)
		if err != nil {
			return object.Errorf("symbols_by_file: %v", err)
		}
		if f == nil {
			return object.NewList([]object.Object{})
		}
		syms, err := s.SymbolsByFile(f.ID)
		if err != nil {
			return object.Errorf("symbols_by_file: %v", err)
		}
		return symbolsToList(syms)
	})
}

func makeSymbolChildrenFn(s *store.Store) *object.Builtin {
	return object.NewBuiltin("symbol_children", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("symbol_children", 1, len(args))
		}
		id, err := toInt64(args[0])
		if err != nil {
			return object.Errorf("symbol_children: %v", err)
		}
		syms, err := s.SymbolChildren(id)
		if err != nil {
			return object.Errorf("symbol_children: %v", err)
		}
		return symbolsToList(syms)
	})
}

func makeDBQueryFn(s *store.Store) *object.Builtin {
	return object.NewBuiltin("db_query", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) < 1 {
			return object.Errorf("db_query: expected at least 1 argument (sql), got %d", len(args))
		}
		sqlStr, err := toString(args[0])
		if err != nil {
			return object.Errorf("db_query: %v", err)
		}

		// Only allow SELECT statements.
		trimmed := strings.TrimSpace(strings.ToUpper(sqlStr))
		if !strings.HasPrefix(trimmed, "SELECT") {
			return object.Errorf("db_query: only SELECT queries are allowed")
		}

		var queryArgs []any
		for _, arg := range args[1:] {
			switch v := arg.(type) {
			case *object.Int:
				queryArgs = append(queryArgs, v.Value())
			case *object.Float:
				queryArgs = append(queryArgs, v.Value())
			case *object.String:
				queryArgs = append(queryArgs, v.Value())
			case *object.Bool:
				queryArgs = append(queryArgs, v.Value())
			case *object.NilType:
				queryArgs = append(queryArgs, nil)
			default:
				queryArgs = append(queryArgs, fmt.Sprintf("%v", arg))
			}
		}

		rows, queryErr := s.DB().QueryContext(ctx, sqlStr, queryArgs...)
		if queryErr != nil {
			return object.Errorf("db_query: %v", queryErr)
		}
		defer rows.Close()

		cols, colErr := rows.Columns()
		if colErr != nil {
			return object.Errorf("db_query: columns: %v", colErr)
		}

		results := []object.Object{}
		for rows.Next() {
			values := make([]any, len(cols))
			ptrs := make([]any, len(cols))
			for i := range values {
				ptrs[i] = &values[i]
			}
			if err := rows.Scan(ptrs...); err != nil {
				return object.Errorf("db_query: scan: %v", err)
			}
			row := make(map[string]object.Object, len(cols))
			for i, col := range cols {
				row[col] = sqlValueToObject(values[i])
			}
			results = append(results, object.NewMap(row))
		}
		if err := rows.Err(); err != nil {
			return object.Errorf("db_query: rows: %v", err)
		}
		return object.NewList(results)
	})
}

// sqlValueToObject converts a database value to a Risor object.
func sqlValueToObject(v any) object.Object {
	if v == nil {
		return object.Nil
	}
	switch val := v.(type) {
	case int64:
		return object.NewInt(val)
	case float64:
		return object.NewFloat(val)
	case string:
		return object.NewString(val)
	case bool:
		return object.NewBool(val)
	case []byte:
		return object.NewString(string(val))
	default:
		return object.NewString(fmt.Sprintf("%v", val))
	}
}

// symbolsToList converts index rows to a Risor list of maps. Lines and
// columns are 1-based like the model functions.
func symbolsToList(syms []*store.Symbol) object.Object {
	results := make([]object.Object, 0, len(syms))
	for _, sym := range syms {
		m := map[string]object.Object{
			"id":         object.NewInt(sym.ID),
			"name":       object.NewString(sym.Name),
			"kind":       object.NewString(sym.Kind),
			"container":  object.NewString(sym.Container),
			"visibility": object.NewString(sym.Visibility),
			"file":       object.NewString(sym.Path),
			"line":       object.NewInt(int64(sym.StartLine) + 1),
			"col":        object.NewInt(int64(sym.StartCol) + 1),
		}
		if sym.ParentSymbolID != nil {
			m["parent_symbol_id"] = object.NewInt(*sym.ParentSymbolID)
		}
		results = append(results, object.NewMap(m))
	}
	return object.NewList(results)
}

func toInt64(obj object.Object) (int64, error) {
	if i, ok := obj.(*object.Int); ok {
		return i.Value(), nil
	}
	return 0, fmt.Errorf("expected int, got %s", obj.Type())
}

func toString(obj object.Object) (string, error) {
	if s, ok := obj.(*object.String); ok {
		return s.Value(), nil
	}
	return "", fmt.Errorf("expected string, got %s", obj.Type())
}
