package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBatchedStore_FakeIDs(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	b := NewBatchedStore(s, "/a.mc", "h1")

	id1, err := b.InsertSymbol(&Symbol{Name: "Foo", Kind: "class"})
	require.NoError(t, err)
	id2, err := b.InsertSymbol(&Symbol{Name: "bar", Kind: "function", ParentSymbolID: &id1})
	require.NoError(t, err)

	assert.Negative(t, id1)
	assert.Negative(t, id2)
	assert.NotEqual(t, id1, id2)
	assert.NotEqual(t, b.File.ID, id1)

	syms, err := b.SymbolsByFile(b.File.ID)
	require.NoError(t, err)
	assert.Len(t, syms, 2)
}

func TestCommitBatch_RemapsParents(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	b := NewBatchedStore(s, "/a.mc", "h1")
	cls, err := b.InsertSymbol(&Symbol{Name: "Foo", Kind: "class"})
	require.NoError(t, err)
	_, err = b.InsertSymbol(&Symbol{Name: "bar", Kind: "function", Container: "Foo", ParentSymbolID: ptr(cls)})
	require.NoError(t, err)

	require.NoError(t, s.CommitBatch(b))

	f, err := s.FileByPath("/a.mc")
	require.NoError(t, err)
	require.NotNil(t, f)
	assert.Equal(t, "h1", f.Hash)

	classes, err := s.SymbolsByName("Foo")
	require.NoError(t, err)
	require.Len(t, classes, 1)
	assert.Positive(t, classes[0].ID)

	kids, err := s.SymbolChildren(classes[0].ID)
	require.NoError(t, err)
	require.Len(t, kids, 1)
	assert.Equal(t, "bar", kids[0].Name)
	require.NotNil(t, kids[0].FileID)
	assert.Equal(t, f.ID, *kids[0].FileID)
}

func TestCommitBatch_ReplacesFile(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	b := NewBatchedStore(s, "/a.mc", "h1")
	_, err := b.InsertSymbol(&Symbol{Name: "Old", Kind: "class"})
	require.NoError(t, err)
	require.NoError(t, s.CommitBatch(b))

	b = NewBatchedStore(s, "/a.mc", "h2")
	_, err = b.InsertSymbol(&Symbol{Name: "New", Kind: "class"})
	require.NoError(t, err)
	require.NoError(t, s.CommitBatch(b))

	files, err := s.Files()
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "h2", files[0].Hash)

	old, err := s.SymbolsByName("Old")
	require.NoError(t, err)
	assert.Empty(t, old)
	fresh, err := s.SymbolsByName("New")
	require.NoError(t, err)
	assert.Len(t, fresh, 1)
}

func TestCommitBatch_UnknownParent(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	b := NewBatchedStore(s, "/a.mc", "h1")
	_, err := b.InsertSymbol(&Symbol{Name: "orphan", Kind: "function", ParentSymbolID: ptr(int64(-99))})
	require.NoError(t, err)

	err = s.CommitBatch(b)
	require.Error(t, err)

	// Rolled back: nothing was written.
	f, err := s.FileByPath("/a.mc")
	require.NoError(t, err)
	assert.Nil(t, f)
}

func TestBatchedStore_ReadPassthrough(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	f := insertTestFile(t, s, "/b.mc")
	insertTestSymbol(t, s, &f.ID, "Shared", "class")

	b := NewBatchedStore(s, "/a.mc", "h1")
	syms, err := b.SymbolsByName("Shared")
	require.NoError(t, err)
	require.Len(t, syms, 1)

	syms, err = b.SymbolsByFile(f.ID)
	require.NoError(t, err)
	assert.Len(t, syms, 1)
}
