package store

import (
	"database/sql"
	"fmt"
	"time"
)

// CommitBatch replaces the batch's file and all of its symbols within a
// single transaction. Fake (negative) IDs are remapped to real IDs and
// parent links within the batch are rewritten using the fakeToReal
// mapping. Symbols must be buffered parents first.
func (s *Store) CommitBatch(batch *BatchedStore) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("commit batch: begin: %w", err)
	}
	defer tx.Rollback()

	var oldID int64
	err = tx.QueryRow("SELECT id FROM files WHERE path = ?", batch.File.Path).Scan(&oldID)
	switch {
	case err == nil:
		if err := deleteFileTx(tx, oldID); err != nil {
			return fmt.Errorf("commit batch: %w", err)
		}
	case err != sql.ErrNoRows:
		return fmt.Errorf("commit batch: lookup file: %w", err)
	}

	f := batch.File
	f.LastIndexed = time.Now().UTC().Truncate(time.Second)
	fileID, err := insertFileTx(tx, &f)
	if err != nil {
		return fmt.Errorf("commit batch: file %q: %w", f.Path, err)
	}

	fakeToReal := map[int64]int64{batch.File.ID: fileID}
	for _, sym := range batch.Symbols {
		sym.FileID = &fileID
		if sym.ParentSymbolID != nil && *sym.ParentSymbolID < 0 {
			realID, ok := fakeToReal[*sym.ParentSymbolID]
			if !ok {
				return fmt.Errorf("commit batch: symbol %q has parent %d not yet committed", sym.Name, *sym.ParentSymbolID)
			}
			sym.ParentSymbolID = &realID
		}
		realID, err := insertSymbolTx(tx, &sym)
		if err != nil {
			return fmt.Errorf("commit batch: symbol %q: %w", sym.Name, err)
		}
		fakeToReal[sym.ID] = realID
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit batch: %w", err)
	}
	batch.File.LastIndexed = f.LastIndexed
	return nil
}

func insertFileTx(tx *sql.Tx, f *File) (int64, error) {
	res, err := tx.Exec(
		"INSERT INTO files (path, hash, last_indexed) VALUES (?, ?, ?)",
		f.Path, f.Hash, f.LastIndexed,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func insertSymbolTx(tx *sql.Tx, sym *Symbol) (int64, error) {
	res, err := tx.Exec(
		`INSERT INTO symbols (file_id, name, kind, container, visibility, modifiers,
			start_line, start_col, end_line, end_col, parent_symbol_id)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sym.FileID, sym.Name, sym.Kind, sym.Container, sym.Visibility, marshalModifiers(sym.Modifiers),
		sym.StartLine, sym.StartCol, sym.EndLine, sym.EndCol, sym.ParentSymbolID,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}
