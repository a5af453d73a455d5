package store

// DataStore is the write surface used while indexing a file. Both Store
// (direct SQLite) and BatchedStore (in-memory buffering) implement it.
type DataStore interface {
	// InsertSymbol returns the assigned ID.
	InsertSymbol(sym *Symbol) (int64, error)

	SymbolsByName(name string) ([]*Symbol, error)
	SymbolsByFile(fileID int64) ([]*Symbol, error)
}

// Compile-time check: *Store satisfies DataStore.
var _ DataStore = (*Store)(nil)
