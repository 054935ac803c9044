package pinetree

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"pinetree/internal/base"
	"pinetree/internal/buffer"
	"pinetree/internal/storage"
)

// newPagePool backs page-level tests that fetch a parent through the pool
func newPagePool(t *testing.T) *buffer.Pool {
	t.Helper()
	disk, err := storage.Open(filepath.Join(t.TempDir(), "pages.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		disk.Close()
	})
	pool, err := buffer.New(16, disk)
	require.NoError(t, err)
	return pool
}

func newLeaf(id PageID, maxSize int) *leafPage[uint64] {
	p := (*leafPage[uint64])(&base.Page{})
	p.init(id, InvalidPageID, maxSize)
	return p
}

func TestLeafInit(t *testing.T) {
	t.Parallel()
	p := newLeaf(7, 4)

	require.Equal(t, PageID(7), p.id())
	require.Equal(t, InvalidPageID, p.parentID())
	require.Equal(t, 0, p.size())
	require.Equal(t, 4, p.maxSize())
	require.Equal(t, 2, p.minSize())
	require.Equal(t, InvalidPageID, p.nextPageID())
	require.True(t, p.common().isLeaf())
}

func TestLeafDerivedCapacity(t *testing.T) {
	t.Parallel()
	p := newLeaf(1, 0)

	require.Equal(t, leafCapacity[uint64](), p.maxSize())
	require.Greater(t, p.maxSize(), 100)
}

func TestLeafInsertKeepsOrder(t *testing.T) {
	t.Parallel()
	p := newLeaf(1, 8)

	for _, k := range []uint64{30, 10, 40, 20} {
		p.insert(k, rid(k), CompareUint64)
	}
	require.Equal(t, 4, p.size())
	for i, want := range []uint64{10, 20, 30, 40} {
		require.Equal(t, want, p.keyAt(i))
		require.Equal(t, rid(want), p.item(i).Val)
	}
}

func TestLeafInsertPanics(t *testing.T) {
	t.Parallel()
	p := newLeaf(1, 2)
	p.insert(1, rid(1), CompareUint64)

	require.Panics(t, func() {
		p.insert(1, rid(1), CompareUint64)
	}, "duplicate key")

	p.insert(2, rid(2), CompareUint64)
	require.Panics(t, func() {
		p.insert(3, rid(3), CompareUint64)
	}, "full page")
}

func TestLeafLookup(t *testing.T) {
	t.Parallel()
	p := newLeaf(1, 8)
	for _, k := range []uint64{10, 20, 30} {
		p.insert(k, rid(k), CompareUint64)
	}

	v, ok := p.lookup(20, CompareUint64)
	require.True(t, ok)
	require.Equal(t, rid(20), v)

	_, ok = p.lookup(15, CompareUint64)
	require.False(t, ok)
	_, ok = p.lookup(5, CompareUint64)
	require.False(t, ok)
	_, ok = p.lookup(99, CompareUint64)
	require.False(t, ok)
}

func TestLeafKeyIndex(t *testing.T) {
	t.Parallel()
	p := newLeaf(1, 8)
	for _, k := range []uint64{10, 20, 30} {
		p.insert(k, rid(k), CompareUint64)
	}

	require.Equal(t, 0, p.keyIndex(5, CompareUint64))
	require.Equal(t, 0, p.keyIndex(10, CompareUint64))
	require.Equal(t, 1, p.keyIndex(15, CompareUint64))
	require.Equal(t, 2, p.keyIndex(30, CompareUint64))
	require.Equal(t, 3, p.keyIndex(31, CompareUint64))
}

func TestLeafRemove(t *testing.T) {
	t.Parallel()
	p := newLeaf(1, 8)
	for _, k := range []uint64{10, 20, 30} {
		p.insert(k, rid(k), CompareUint64)
	}

	// Absent key leaves the page untouched
	require.Equal(t, 3, p.remove(15, CompareUint64))

	require.Equal(t, 2, p.remove(20, CompareUint64))
	require.Equal(t, uint64(10), p.keyAt(0))
	require.Equal(t, uint64(30), p.keyAt(1))

	require.Equal(t, 1, p.remove(10, CompareUint64))
	require.Equal(t, 0, p.remove(30, CompareUint64))
}

func TestLeafMoveHalfTo(t *testing.T) {
	t.Parallel()
	p := newLeaf(1, 4)
	for _, k := range []uint64{10, 20, 30, 40} {
		p.insert(k, rid(k), CompareUint64)
	}
	p.setNextPageID(9)

	q := newLeaf(2, 4)
	p.moveHalfTo(q)

	require.Equal(t, 2, p.size())
	require.Equal(t, 2, q.size())
	require.Equal(t, uint64(20), p.keyAt(1))
	require.Equal(t, uint64(30), q.keyAt(0))
	require.Equal(t, uint64(40), q.keyAt(1))

	// Chain splices the new page between p and its old successor
	require.Equal(t, PageID(2), p.nextPageID())
	require.Equal(t, PageID(9), q.nextPageID())
}

// leafSiblings builds two pooled leaves under a shared parent whose slot 1
// holds the separator between them. All three frames stay pinned.
func leafSiblings(t *testing.T, pool *buffer.Pool, leftKeys, rightKeys []uint64, separator uint64) (left, right *leafPage[uint64], parent *internalPage[uint64], frames []*buffer.Frame) {
	t.Helper()
	leftF, err := pool.NewPage()
	require.NoError(t, err)
	rightF, err := pool.NewPage()
	require.NoError(t, err)
	parentF, err := pool.NewPage()
	require.NoError(t, err)

	parent = (*internalPage[uint64])(parentF.Page())
	parent.init(parentF.ID(), InvalidPageID, 4)
	parent.populateNewRoot(leftF.ID(), separator, rightF.ID())

	left = (*leafPage[uint64])(leftF.Page())
	left.init(leftF.ID(), parentF.ID(), 4)
	for _, k := range leftKeys {
		left.insert(k, rid(k), CompareUint64)
	}
	right = (*leafPage[uint64])(rightF.Page())
	right.init(rightF.ID(), parentF.ID(), 4)
	for _, k := range rightKeys {
		right.insert(k, rid(k), CompareUint64)
	}
	return left, right, parent, []*buffer.Frame{leftF, rightF, parentF}
}

func releaseFrames(pool *buffer.Pool, frames []*buffer.Frame) {
	for _, f := range frames {
		pool.Unpin(f.ID(), false)
	}
}

func TestLeafMoveFirstToEndOf(t *testing.T) {
	t.Parallel()
	pool := newPagePool(t)
	left, right, parent, frames := leafSiblings(t, pool,
		[]uint64{10, 20}, []uint64{30, 40, 50}, 30)
	defer releaseFrames(pool, frames)

	require.NoError(t, right.moveFirstToEndOf(left, pool))

	// Exactly one slot crossed left
	require.Equal(t, 3, left.size())
	require.Equal(t, 2, right.size())
	require.Equal(t, uint64(30), left.keyAt(2))
	require.Equal(t, rid(30), left.item(2).Val)
	require.Equal(t, uint64(40), right.keyAt(0))

	// Exactly one separator rewritten: the donor's new first key
	require.Equal(t, uint64(40), parent.keyAt(1))
	require.Equal(t, left.id(), parent.valueAt(0))
	require.Equal(t, right.id(), parent.valueAt(1))
}

func TestLeafMoveLastToFrontOf(t *testing.T) {
	t.Parallel()
	pool := newPagePool(t)
	left, right, parent, frames := leafSiblings(t, pool,
		[]uint64{10, 20, 25}, []uint64{30, 40}, 30)
	defer releaseFrames(pool, frames)

	require.NoError(t, left.moveLastToFrontOf(right, 1, pool))

	require.Equal(t, 2, left.size())
	require.Equal(t, 3, right.size())
	require.Equal(t, uint64(25), right.keyAt(0))
	require.Equal(t, rid(25), right.item(0).Val)
	require.Equal(t, uint64(20), left.keyAt(1))

	// Separator follows the moved key
	require.Equal(t, uint64(25), parent.keyAt(1))
}

func TestLeafCopyLastFrom(t *testing.T) {
	t.Parallel()
	p := newLeaf(1, 4)
	p.insert(10, rid(10), CompareUint64)

	p.copyLastFrom(leafSlot[uint64]{Key: 20, Val: rid(20)})
	require.Equal(t, 2, p.size())
	require.Equal(t, uint64(20), p.keyAt(1))
}
