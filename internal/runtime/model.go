package runtime

import (
	"context"

	"go.lsp.dev/protocol"
)

// Model is the project surface scripts query. *mclens.Project satisfies
// it.
type Model interface {
	Root() string
	Definition(ctx context.Context, path string, pos protocol.Position) ([]protocol.Location, error)
	References(ctx context.Context, path string, pos protocol.Position, includeDecl bool) ([]protocol.Location, error)
	DocumentSymbols(ctx context.Context, path string) ([]protocol.DocumentSymbol, error)
	WorkspaceSymbols(ctx context.Context, query string) ([]protocol.SymbolInformation, error)
	Diagnostics(ctx context.Context) (map[string][]protocol.Diagnostic, error)
}
