package runtime

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"unsafe"

	"github.com/risor-io/risor/object"
	sitter "github.com/smacker/go-tree-sitter"
)

// parsedTree is what node_text and query need to recover from a node.
type parsedTree struct {
	src  []byte
	lang *sitter.Language
}

// treeSources maps the root node of every tree parsed by a script to its
// source and language. go-tree-sitter has no Node.Tree(), so lookups walk
// up to the root with Parent().
type treeSources struct {
	mu    sync.RWMutex
	trees map[uintptr]parsedTree
}

func newTreeSources() *treeSources {
	return &treeSources{trees: make(map[uintptr]parsedTree)}
}

func (s *treeSources) remember(tree *sitter.Tree, src []byte, lang *sitter.Language) {
	key := uintptr(unsafe.Pointer(tree.RootNode()))
	s.mu.Lock()
	s.trees[key] = parsedTree{src: src, lang: lang}
	s.mu.Unlock()
}

func (s *treeSources) lookup(node *sitter.Node) (parsedTree, bool) {
	for node.Parent() != nil {
		node = node.Parent()
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.trees[uintptr(unsafe.Pointer(node))]
	return t, ok
}

// nodeArg unwraps a proxied *sitter.Node argument of fn.
func nodeArg(fn string, arg object.Object) (*sitter.Node, *object.Error) {
	proxy, ok := arg.(*object.Proxy)
	if !ok {
		return nil, object.Errorf("%s: expected a node, got %s", fn, arg.Type())
	}
	node, ok := proxy.Interface().(*sitter.Node)
	if !ok {
		return nil, object.Errorf("%s: expected a node, got %T", fn, proxy.Interface())
	}
	return node, nil
}

// makeParseFn creates "parse". Relative paths are joined to root. The
// language defaults to the one implied by the file extension.
//
// parse(path, language?) → Tree
func makeParseFn(ts *treeSources, root string) *object.Builtin {
	return object.NewBuiltin("parse", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) < 1 || len(args) > 2 {
			return object.Errorf("parse: expected 1 or 2 arguments, got %d", len(args))
		}
		path, err := toString(args[0])
		if err != nil {
			return object.Errorf("parse: path: %v", err)
		}
		if root != "" {
			path = joinRoot(root, path)
		}

		var lang string
		if len(args) == 2 {
			if lang, err = toString(args[1]); err != nil {
				return object.Errorf("parse: language: %v", err)
			}
		} else {
			var ok bool
			if lang, ok = LanguageForFile(path); !ok {
				return object.Errorf("parse: no grammar for %s", path)
			}
		}

		src, err := os.ReadFile(path)
		if err != nil {
			return object.Errorf("parse: %v", err)
		}
		return parseSource(ctx, ts, src, lang)
	})
}

// makeParseSrcFn creates "parse_src", which parses a source string.
//
// parse_src(source, language) → Tree
func makeParseSrcFn(ts *treeSources) *object.Builtin {
	return object.NewBuiltin("parse_src", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 2 {
			return object.NewArgsError("parse_src", 2, len(args))
		}
		src, err := toString(args[0])
		if err != nil {
			return object.Errorf("parse_src: source: %v", err)
		}
		lang, err := toString(args[1])
		if err != nil {
			return object.Errorf("parse_src: language: %v", err)
		}
		return parseSource(ctx, ts, []byte(src), lang)
	})
}

func parseSource(ctx context.Context, ts *treeSources, src []byte, langName string) object.Object {
	lang, ok := ParserForLanguage(langName)
	if !ok {
		return object.Errorf("parse: unsupported language %q", langName)
	}

	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(lang)

	tree, err := parser.ParseCtx(ctx, nil, src)
	if err != nil {
		return object.Errorf("parse: %v", err)
	}
	ts.remember(tree, src, lang)

	proxy, err := object.NewProxy(tree)
	if err != nil {
		return object.Errorf("parse: %v", err)
	}
	return proxy
}

// makeNodeTextFn creates "node_text". Risor cannot pass a []byte to
// node.Content, so the source is looked up here.
//
// node_text(node) → string
func makeNodeTextFn(ts *treeSources) *object.Builtin {
	return object.NewBuiltin("node_text", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("node_text", 1, len(args))
		}
		node, errObj := nodeArg("node_text", args[0])
		if errObj != nil {
			return errObj
		}
		t, ok := ts.lookup(node)
		if !ok {
			return object.Errorf("node_text: node does not belong to a parsed tree")
		}
		return object.NewString(node.Content(t.src))
	})
}

// makeNodeRangeFn creates "node_range". Lines are 1-based like the model
// functions; columns are 1-based byte offsets.
//
// node_range(node) → {line, col, end_line, end_col}
func makeNodeRangeFn() *object.Builtin {
	return object.NewBuiltin("node_range", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("node_range", 1, len(args))
		}
		node, errObj := nodeArg("node_range", args[0])
		if errObj != nil {
			return errObj
		}
		start, end := node.StartPoint(), node.EndPoint()
		return object.NewMap(map[string]object.Object{
			"line":     object.NewInt(int64(start.Row) + 1),
			"col":      object.NewInt(int64(start.Column) + 1),
			"end_line": object.NewInt(int64(end.Row) + 1),
			"end_col":  object.NewInt(int64(end.Column) + 1),
		})
	})
}

// makeQueryFn creates "query". Each match maps capture names to nodes.
//
// query(pattern, node) → [{capture: Node}]
func makeQueryFn(ts *treeSources) *object.Builtin {
	return object.NewBuiltin("query", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 2 {
			return object.NewArgsError("query", 2, len(args))
		}
		pattern, err := toString(args[0])
		if err != nil {
			return object.Errorf("query: pattern: %v", err)
		}
		node, errObj := nodeArg("query", args[1])
		if errObj != nil {
			return errObj
		}
		t, ok := ts.lookup(node)
		if !ok {
			return object.Errorf("query: node does not belong to a parsed tree")
		}

		q, err := sitter.NewQuery([]byte(pattern), t.lang)
		if err != nil {
			return object.Errorf("query: invalid pattern: %v", err)
		}
		defer q.Close()

		cursor := sitter.NewQueryCursor()
		defer cursor.Close()
		cursor.Exec(q, node)

		results := []object.Object{}
		for {
			match, ok := cursor.NextMatch()
			if !ok {
				break
			}
			match = cursor.FilterPredicates(match, t.src)

			captures := make(map[string]object.Object, len(match.Captures))
			for _, c := range match.Captures {
				name := q.CaptureNameForId(c.Index)
				p, err := object.NewProxy(c.Node)
				if err != nil {
					return object.Errorf("query: capture %q: %v", name, err)
				}
				captures[name] = p
			}
			results = append(results, object.NewMap(captures))
		}
		return object.NewList(results)
	})
}

// makeNodeChildFn creates "node_child". It returns nil, not a proxied nil
// pointer, when the field is absent.
//
// node_child(node, field) → Node or nil
func makeNodeChildFn() *object.Builtin {
	return object.NewBuiltin("node_child", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 2 {
			return object.NewArgsError("node_child", 2, len(args))
		}
		node, errObj := nodeArg("node_child", args[0])
		if errObj != nil {
			return errObj
		}
		field, err := toString(args[1])
		if err != nil {
			return object.Errorf("node_child: field: %v", err)
		}
		child := node.ChildByFieldName(field)
		if child == nil {
			return object.Nil
		}
		p, err := object.NewProxy(child)
		if err != nil {
			return object.Errorf("node_child: %v", err)
		}
		return p
	})
}

// scriptLog is the log global. Messages go to the runtime's logger tagged
// with the script name.
type scriptLog struct {
	logger *slog.Logger
}

func (l *scriptLog) Debug(msg string) { l.logger.Debug(msg) }
func (l *scriptLog) Info(msg string)  { l.logger.Info(msg) }
func (l *scriptLog) Warn(msg string)  { l.logger.Warn(msg) }
func (l *scriptLog) Error(msg string) { l.logger.Error(msg) }
