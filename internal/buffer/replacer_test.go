package buffer

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestReplacerVictimOrder(t *testing.T) {
	t.Parallel()
	r, err := newReplacer(8)
	require.NoError(t, err)

	r.insert(1)
	r.insert(2)
	r.insert(3)
	require.Equal(t, 3, r.size())

	id, ok := r.victim()
	require.True(t, ok)
	require.Equal(t, uint32(1), id, "least recently unpinned frame goes first")

	id, ok = r.victim()
	require.True(t, ok)
	require.Equal(t, uint32(2), id)
}

func TestReplacerErase(t *testing.T) {
	t.Parallel()
	r, err := newReplacer(8)
	require.NoError(t, err)

	r.insert(1)
	r.insert(2)
	r.erase(1)

	id, ok := r.victim()
	require.True(t, ok)
	require.Equal(t, uint32(2), id)

	_, ok = r.victim()
	require.False(t, ok, "erased frame must not become a victim")
}

func TestReplacerReinsertRefreshes(t *testing.T) {
	t.Parallel()
	r, err := newReplacer(8)
	require.NoError(t, err)

	r.insert(1)
	r.insert(2)
	r.insert(1) // unpinned again: moves to the recent end

	id, ok := r.victim()
	require.True(t, ok)
	require.Equal(t, uint32(2), id)
}

func TestReplacerEmpty(t *testing.T) {
	t.Parallel()
	r, err := newReplacer(8)
	require.NoError(t, err)

	_, ok := r.victim()
	require.False(t, ok)
	require.Equal(t, 0, r.size())
}
