package mclens

import (
	"fmt"

	"github.com/jward/mclens/internal/store"
)

// Store is the SQLite symbol index backing WorkspaceSymbols.
type Store = store.Store

// NewStore opens (creating if needed) and migrates the symbol index at
// dbPath.
func NewStore(dbPath string) (*Store, error) {
	s, err := store.NewStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("mclens: open store: %w", err)
	}
	if err := s.Migrate(); err != nil {
		s.Close()
		return nil, fmt.Errorf("mclens: migrate store: %w", err)
	}
	return s, nil
}
