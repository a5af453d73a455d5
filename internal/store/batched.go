package store

import "sync"

// BatchedStore buffers the symbols of one file in memory using fake
// (negative) IDs, so that a file can be indexed outside a transaction and
// swapped in atomically by CommitBatch.
//
// Thread safety: the mutex protects fake ID allocation and slice appends.
// Read queries are passed through to the underlying Store.
type BatchedStore struct {
	store *Store // for read passthrough
	mu    sync.Mutex

	// File is the file the buffered symbols belong to.
	File    File
	Symbols []Symbol

	nextFakeID int64 // starts at -1, decrements
}

// Compile-time check: *BatchedStore satisfies DataStore.
var _ DataStore = (*BatchedStore)(nil)

// NewBatchedStore creates a BatchedStore for the file at path with content
// hash hash, backed by s for read queries.
func NewBatchedStore(s *Store, path, hash string) *BatchedStore {
	return &BatchedStore{
		store:      s,
		File:       File{ID: -1, Path: path, Hash: hash},
		nextFakeID: -2,
	}
}

func (b *BatchedStore) allocFakeID() int64 {
	id := b.nextFakeID
	b.nextFakeID--
	return id
}

// InsertSymbol buffers sym. Its FileID is set to the batch's file.
func (b *BatchedStore) InsertSymbol(sym *Symbol) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	fakeID := b.allocFakeID()
	sym.ID = fakeID
	fileID := b.File.ID
	sym.FileID = &fileID
	b.Symbols = append(b.Symbols, *sym)
	return fakeID, nil
}

// SymbolsByName passes through to the underlying Store for cross-file lookups.
func (b *BatchedStore) SymbolsByName(name string) ([]*Symbol, error) {
	return b.store.SymbolsByName(name)
}

// SymbolsByFile returns symbols for a file, merging the buffered symbols
// when fileID is the batch's own file.
func (b *BatchedStore) SymbolsByFile(fileID int64) ([]*Symbol, error) {
	var out []*Symbol
	if fileID >= 0 {
		dbSyms, err := b.store.SymbolsByFile(fileID)
		if err != nil {
			return nil, err
		}
		out = dbSyms
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.Symbols {
		if b.Symbols[i].FileID != nil && *b.Symbols[i].FileID == fileID {
			out = append(out, &b.Symbols[i])
		}
	}
	return out, nil
}
