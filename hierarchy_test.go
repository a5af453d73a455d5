package mclens

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.lsp.dev/protocol"
)

const zooSrc = `class Animal {
    function speak() {}
}

class Dog extends Animal {
    function speak() {}
}

class Puppy extends Dog {
}
`

func relationNames(rs []TypeRelation) []string {
	out := make([]string, 0, len(rs))
	for _, r := range rs {
		out = append(out, r.Name)
	}
	return out
}

func TestTypeHierarchy_Class(t *testing.T) {
	t.Parallel()
	tp := newTestProject(t, map[string]string{"source/Zoo.mc": zooSrc})
	tp.snapshot(t)

	h, err := tp.TypeHierarchy(context.Background(), "source/Zoo.mc", posOf(t, zooSrc, "Dog", 0, 0))
	require.NoError(t, err)
	assert.Equal(t, "Dog", h.Class.Name)
	require.NotNil(t, h.Class.Location)
	assert.Equal(t, []string{"source/Zoo.mc:5:7"}, locs([]protocol.Location{*h.Class.Location}))
	assert.Equal(t, []string{"Animal", "Toybox.Lang.Object"}, relationNames(h.Supers))
	assert.Nil(t, h.Supers[1].Location)
	assert.Equal(t, 2, h.Supers[1].Depth)
	assert.Equal(t, []string{"Puppy"}, relationNames(h.Subclasses))
}

func TestTypeHierarchy_MemberSelectsOwner(t *testing.T) {
	t.Parallel()
	tp := newTestProject(t, map[string]string{"source/Zoo.mc": zooSrc})
	tp.snapshot(t)

	h, err := tp.TypeHierarchy(context.Background(), "source/Zoo.mc", posOf(t, zooSrc, "speak", 0, 1))
	require.NoError(t, err)
	assert.Equal(t, "Animal", h.Class.Name)
	assert.Equal(t, []string{"Dog", "Puppy"}, relationNames(h.Subclasses))
	assert.Equal(t, []int{1, 2}, []int{h.Subclasses[0].Depth, h.Subclasses[1].Depth})
}

func TestTypeHierarchy_NotAClass(t *testing.T) {
	t.Parallel()
	tp := newTestProject(t, map[string]string{"source/Util.mc": utilSrc})
	tp.snapshot(t)

	_, err := tp.TypeHierarchy(context.Background(), "source/Util.mc", posOf(t, utilSrc, "Util", 0, 0))
	assert.ErrorIs(t, err, ErrNotFound)
}
