package store

import (
	"database/sql"
	"fmt"
)

// --- File operations ---

func (s *Store) InsertFile(f *File) (int64, error) {
	res, err := s.db.Exec(
		"INSERT INTO files (path, hash, last_indexed) VALUES (?, ?, ?)",
		f.Path, f.Hash, f.LastIndexed,
	)
	if err != nil {
		return 0, fmt.Errorf("insert file: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	f.ID = id
	return id, nil
}

// FileByPath returns the file indexed at path, or nil when there is none.
func (s *Store) FileByPath(path string) (*File, error) {
	f := &File{}
	err := s.db.QueryRow(
		"SELECT id, path, hash, last_indexed FROM files WHERE path = ?", path,
	).Scan(&f.ID, &f.Path, &f.Hash, &f.LastIndexed)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("file by path: %w", err)
	}
	return f, nil
}

// Files returns every indexed file ordered by path.
func (s *Store) Files() ([]*File, error) {
	rows, err := s.db.Query("SELECT id, path, hash, last_indexed FROM files ORDER BY path")
	if err != nil {
		return nil, fmt.Errorf("files: %w", err)
	}
	defer rows.Close()
	var files []*File
	for rows.Next() {
		f := &File{}
		if err := rows.Scan(&f.ID, &f.Path, &f.Hash, &f.LastIndexed); err != nil {
			return nil, fmt.Errorf("scan file: %w", err)
		}
		files = append(files, f)
	}
	return files, rows.Err()
}

// DeleteFiles removes several files and their symbols in one transaction.
func (s *Store) DeleteFiles(ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()
	in := "(" + placeholderList(len(ids)) + ")"
	args := int64sToArgs(ids)
	for _, q := range []string{
		"UPDATE symbols SET parent_symbol_id = NULL WHERE file_id IN " + in,
		"DELETE FROM symbols WHERE file_id IN " + in,
		"DELETE FROM files WHERE id IN " + in,
	} {
		if _, err := tx.Exec(q, args...); err != nil {
			return fmt.Errorf("delete files: %w", err)
		}
	}
	return tx.Commit()
}

// --- Symbol operations ---

func (s *Store) InsertSymbol(sym *Symbol) (int64, error) {
	mods := marshalModifiers(sym.Modifiers)
	res, err := s.db.Exec(
		`INSERT INTO symbols (file_id, name, kind, container, visibility, modifiers,
			start_line, start_col, end_line, end_col, parent_symbol_id)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sym.FileID, sym.Name, sym.Kind, sym.Container, sym.Visibility, mods,
		sym.StartLine, sym.StartCol, sym.EndLine, sym.EndCol, sym.ParentSymbolID,
	)
	if err != nil {
		return 0, fmt.Errorf("insert symbol: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	sym.ID = id
	return id, nil
}

// symbolCols is the column list for symbol queries. Queries alias the
// symbols table as s and left join files as f.
const symbolCols = `s.id, s.file_id, s.name, s.kind, s.container, s.visibility, s.modifiers,
	s.start_line, s.start_col, s.end_line, s.end_col, s.parent_symbol_id, COALESCE(f.path, '')`

const symbolFrom = ` FROM symbols s LEFT JOIN files f ON f.id = s.file_id`

func scanSymbol(scanner interface{ Scan(...any) error }) (*Symbol, error) {
	sym := &Symbol{}
	var mods, container, visibility sql.NullString
	err := scanner.Scan(
		&sym.ID, &sym.FileID, &sym.Name, &sym.Kind, &container, &visibility, &mods,
		&sym.StartLine, &sym.StartCol, &sym.EndLine, &sym.EndCol,
		&sym.ParentSymbolID, &sym.Path,
	)
	if err != nil {
		return nil, err
	}
	sym.Container = container.String
	sym.Visibility = visibility.String
	sym.Modifiers = unmarshalModifiers(mods.String)
	return sym, nil
}

func (s *Store) querySymbols(where string, args ...any) ([]*Symbol, error) {
	rows, err := s.db.Query("SELECT "+symbolCols+symbolFrom+" "+where, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var symbols []*Symbol
	for rows.Next() {
		sym, err := scanSymbol(rows)
		if err != nil {
			return nil, fmt.Errorf("scan symbol: %w", err)
		}
		symbols = append(symbols, sym)
	}
	return symbols, rows.Err()
}

func (s *Store) SymbolsByFile(fileID int64) ([]*Symbol, error) {
	return s.querySymbols("WHERE s.file_id = ? ORDER BY s.id", fileID)
}

func (s *Store) SymbolsByName(name string) ([]*Symbol, error) {
	return s.querySymbols("WHERE s.name = ? ORDER BY f.path, s.start_line, s.start_col", name)
}

func (s *Store) SymbolChildren(symbolID int64) ([]*Symbol, error) {
	return s.querySymbols("WHERE s.parent_symbol_id = ? ORDER BY s.id", symbolID)
}

// SearchSymbols returns symbols whose name contains the characters of
// query in order, ignoring ASCII case. Shorter names come first. A limit
// of zero or less means no limit.
func (s *Store) SearchSymbols(query string, limit int) ([]*Symbol, error) {
	where := `WHERE s.name LIKE ? ESCAPE '\' ORDER BY length(s.name), s.name, f.path, s.start_line`
	args := []any{likePattern(query)}
	if limit > 0 {
		where += " LIMIT ?"
		args = append(args, limit)
	}
	syms, err := s.querySymbols(where, args...)
	if err != nil {
		return nil, fmt.Errorf("search symbols: %w", err)
	}
	return syms, nil
}
