package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := NewStore(dbPath)
	require.NoError(t, err)
	require.NoError(t, s.Migrate())
	t.Cleanup(func() { s.Close() })
	return s
}

func ptr[T any](v T) *T { return &v }

// insertTestFile is a helper that inserts a file and returns it with ID set.
func insertTestFile(t *testing.T, s *Store, path string) *File {
	t.Helper()
	f := &File{Path: path, Hash: ContentHash(path), LastIndexed: time.Now().UTC().Truncate(time.Second)}
	id, err := s.InsertFile(f)
	require.NoError(t, err)
	require.Positive(t, id)
	return f
}

// insertTestSymbol inserts a symbol with minimal required fields.
func insertTestSymbol(t *testing.T, s *Store, fileID *int64, name, kind string) *Symbol {
	t.Helper()
	sym := &Symbol{
		FileID:     fileID,
		Name:       name,
		Kind:       kind,
		Visibility: "public",
		Modifiers:  []string{"static"},
		StartLine:  0, StartCol: 0, EndLine: 9, EndCol: 0,
	}
	id, err := s.InsertSymbol(sym)
	require.NoError(t, err)
	require.Positive(t, id)
	return sym
}

// =============================================================================
// Schema & Lifecycle
// =============================================================================

func TestMigrate_AllTablesExist(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	for _, table := range []string{"files", "symbols", "metadata"} {
		var name string
		err := s.DB().QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		require.NoError(t, err, "table %s should exist", table)
	}
}

func TestMigrate_Idempotent(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	require.NoError(t, s.Migrate())
}

func TestMigrate_WALMode(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	var mode string
	require.NoError(t, s.DB().QueryRow("PRAGMA journal_mode").Scan(&mode))
	assert.Equal(t, "wal", mode)
}

// =============================================================================
// Files
// =============================================================================

func TestFile_InsertAndRetrieve(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	f := insertTestFile(t, s, "/proj/source/App.mc")

	got, err := s.FileByPath("/proj/source/App.mc")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, f.ID, got.ID)
	assert.Equal(t, f.Hash, got.Hash)
	assert.True(t, f.LastIndexed.Equal(got.LastIndexed))
}

func TestFile_ByPathNotFound(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	got, err := s.FileByPath("/nope.mc")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestFile_ListOrderedByPath(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	insertTestFile(t, s, "/b.mc")
	insertTestFile(t, s, "/a.mc")

	files, err := s.Files()
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, "/a.mc", files[0].Path)
	assert.Equal(t, "/b.mc", files[1].Path)
}

func TestFile_DeleteRemovesSymbols(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	a := insertTestFile(t, s, "/a.mc")
	b := insertTestFile(t, s, "/b.mc")
	insertTestSymbol(t, s, &a.ID, "Foo", "class")
	insertTestSymbol(t, s, &b.ID, "Bar", "class")

	require.NoError(t, s.DeleteFiles([]int64{a.ID}))

	syms, err := s.SymbolsByName("Foo")
	require.NoError(t, err)
	assert.Empty(t, syms)
	got, err := s.FileByPath("/a.mc")
	require.NoError(t, err)
	assert.Nil(t, got)

	syms, err = s.SymbolsByName("Bar")
	require.NoError(t, err)
	assert.Len(t, syms, 1)
}

func TestFile_DeleteFilesUnlinksChildren(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	f := insertTestFile(t, s, "/a.mc")
	parent := insertTestSymbol(t, s, &f.ID, "Foo", "class")
	child := &Symbol{FileID: &f.ID, Name: "bar", Kind: "function", ParentSymbolID: &parent.ID}
	_, err := s.InsertSymbol(child)
	require.NoError(t, err)

	require.NoError(t, s.DeleteFiles([]int64{f.ID}))

	syms, err := s.SymbolsByFile(f.ID)
	require.NoError(t, err)
	assert.Empty(t, syms)
}

// =============================================================================
// Symbols
// =============================================================================

func TestSymbol_InsertAndQueryByFile(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	f := insertTestFile(t, s, "/a.mc")
	insertTestSymbol(t, s, &f.ID, "Foo", "class")
	insertTestSymbol(t, s, &f.ID, "bar", "function")

	syms, err := s.SymbolsByFile(f.ID)
	require.NoError(t, err)
	require.Len(t, syms, 2)
	assert.Equal(t, "Foo", syms[0].Name)
	assert.Equal(t, "/a.mc", syms[0].Path)
	assert.Equal(t, []string{"static"}, syms[0].Modifiers)
	assert.Equal(t, "public", syms[0].Visibility)
}

func TestSymbol_Children(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	f := insertTestFile(t, s, "/a.mc")
	parent := insertTestSymbol(t, s, &f.ID, "Foo", "class")
	child := &Symbol{FileID: &f.ID, Name: "bar", Kind: "function", Container: "Foo", ParentSymbolID: ptr(parent.ID)}
	_, err := s.InsertSymbol(child)
	require.NoError(t, err)

	kids, err := s.SymbolChildren(parent.ID)
	require.NoError(t, err)
	require.Len(t, kids, 1)
	assert.Equal(t, "bar", kids[0].Name)
	assert.Equal(t, "Foo", kids[0].Container)
}

func TestSymbol_NilFileID(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	insertTestSymbol(t, s, nil, "Orphan", "variable")

	syms, err := s.SymbolsByName("Orphan")
	require.NoError(t, err)
	require.Len(t, syms, 1)
	assert.Nil(t, syms[0].FileID)
	assert.Empty(t, syms[0].Path)
	assert.Equal(t, []string{"static"}, syms[0].Modifiers)
}

func TestSymbol_Search(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	f := insertTestFile(t, s, "/a.mc")
	insertTestSymbol(t, s, &f.ID, "onUpdate", "function")
	insertTestSymbol(t, s, &f.ID, "onLayout", "function")
	insertTestSymbol(t, s, &f.ID, "update", "function")
	insertTestSymbol(t, s, &f.ID, "snake_case", "variable")

	syms, err := s.SearchSymbols("upd", 0)
	require.NoError(t, err)
	require.Len(t, syms, 2)
	assert.Equal(t, "update", syms[0].Name)
	assert.Equal(t, "onUpdate", syms[1].Name)

	syms, err = s.SearchSymbols("ol", 1)
	require.NoError(t, err)
	require.Len(t, syms, 1)
	assert.Equal(t, "onLayout", syms[0].Name)

	// '_' is literal, not a wildcard.
	syms, err = s.SearchSymbols("e_c", 0)
	require.NoError(t, err)
	require.Len(t, syms, 1)
	assert.Equal(t, "snake_case", syms[0].Name)
}

// =============================================================================
// Metadata
// =============================================================================

func TestMetadata_GetSet(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	v, err := s.GetMetadata("root")
	require.NoError(t, err)
	assert.Empty(t, v)

	require.NoError(t, s.SetMetadata("root", "/a"))
	require.NoError(t, s.SetMetadata("root", "/b"))
	v, err = s.GetMetadata("root")
	require.NoError(t, err)
	assert.Equal(t, "/b", v)
}

func TestContentHash(t *testing.T) {
	t.Parallel()
	assert.Equal(t, ContentHash("abc"), ContentHash("abc"))
	assert.NotEqual(t, ContentHash("abc"), ContentHash("abd"))
	assert.Len(t, ContentHash(""), 16)
}
