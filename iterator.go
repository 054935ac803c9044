package pinetree

import (
	"pinetree/internal/base"
	"pinetree/internal/buffer"
)

// Iterator walks leaf slots in key order by following the leaf chain. It
// keeps exactly one leaf pinned at a time; Close (or exhaustion) releases
// it. Mutating the tree while an iterator is open is not supported.
type Iterator[K any] struct {
	tree  *BTree[K]
	frame *buffer.Frame // current leaf, nil once exhausted or closed
	index int
}

// Begin returns an iterator positioned on the smallest key.
func (t *BTree[K]) Begin() (*Iterator[K], error) {
	var zero K
	frame, err := t.findLeaf(zero, true)
	if err != nil {
		return nil, err
	}
	it := &Iterator[K]{tree: t, frame: frame}
	return it, it.skipEmpty()
}

// Seek returns an iterator positioned on the first key >= key.
func (t *BTree[K]) Seek(key K) (*Iterator[K], error) {
	frame, err := t.findLeaf(key, false)
	if err != nil {
		return nil, err
	}
	leaf := asLeaf[K](frame)
	it := &Iterator[K]{tree: t, frame: frame, index: leaf.keyIndex(key, t.cmp)}
	return it, it.skipEmpty()
}

// Valid reports whether the iterator is on a live slot.
func (it *Iterator[K]) Valid() bool {
	return it.frame != nil
}

// Key returns the key under the iterator. Only valid while Valid is true.
func (it *Iterator[K]) Key() K {
	if it.frame == nil {
		panic("iterator: Key on exhausted iterator")
	}
	return asLeaf[K](it.frame).keyAt(it.index)
}

// Value returns the record id under the iterator. Only valid while Valid
// is true.
func (it *Iterator[K]) Value() RID {
	if it.frame == nil {
		panic("iterator: Value on exhausted iterator")
	}
	return asLeaf[K](it.frame).item(it.index).Val
}

// Next advances to the following slot, crossing into the next leaf when the
// current one is spent.
func (it *Iterator[K]) Next() error {
	if it.frame == nil {
		panic("iterator: Next on exhausted iterator")
	}
	it.index++
	return it.skipEmpty()
}

// skipEmpty moves past the end of the current leaf, hopping along the chain
// until a live slot is found or the chain ends. Leaves between min-full
// siblings are never empty, so at most one hop runs per call except on an
// empty tree.
func (it *Iterator[K]) skipEmpty() error {
	for {
		leaf := asLeaf[K](it.frame)
		if it.index < leaf.size() {
			return nil
		}
		next := leaf.nextPageID()
		it.tree.pool.Unpin(it.frame.ID(), false)
		it.frame = nil
		if next == base.InvalidPageID {
			return nil
		}
		frame, err := it.tree.pool.Fetch(next)
		if err != nil {
			return err
		}
		it.frame = frame
		it.index = 0
	}
}

// Close releases the iterator's pin. Safe to call more than once.
func (it *Iterator[K]) Close() {
	if it.frame != nil {
		it.tree.pool.Unpin(it.frame.ID(), false)
		it.frame = nil
	}
}
