package pinetree

import (
	"fmt"

	"pinetree/internal/base"
	"pinetree/internal/buffer"
	"pinetree/internal/storage"
)

// BTree is a disk-backed B+Tree index over fixed-width keys of type K.
// Pages are accessed exclusively through the buffer pool: every operation
// fetches the pages it touches, mutates them in place while pinned, and
// releases every pin before returning. The caller is responsible for any
// latching around concurrent use; the tree itself is synchronous.
type BTree[K any] struct {
	pool   *buffer.Pool
	disk   *storage.DiskManager
	cmp    Comparator[K]
	rootID base.PageID

	leafMax     int // 0 = derived from page geometry
	internalMax int
	log         Logger
}

// Open opens (or creates) the index file at path. A fresh index starts as a
// single empty leaf root.
func Open[K any](path string, cmp Comparator[K], opts ...Option) (*BTree[K], error) {
	o := DefaultOptions()
	for _, fn := range opts {
		fn(&o)
	}
	// Overrides above the physical slot capacity would let slot writes run
	// past the 4096-byte page
	if o.leafMaxSize != 0 {
		if o.leafMaxSize < 2 {
			return nil, fmt.Errorf("leaf max size %d: need at least 2 slots", o.leafMaxSize)
		}
		if limit := leafCapacity[K](); o.leafMaxSize > limit {
			return nil, fmt.Errorf("leaf max size %d exceeds page capacity %d", o.leafMaxSize, limit)
		}
	}
	if o.internalMaxSize != 0 {
		if o.internalMaxSize < 3 {
			return nil, fmt.Errorf("internal max size %d: need sentinel plus 2 slots", o.internalMaxSize)
		}
		if limit := internalCapacity[K](); o.internalMaxSize > limit {
			return nil, fmt.Errorf("internal max size %d exceeds page capacity %d", o.internalMaxSize, limit)
		}
	}

	disk, err := storage.Open(path)
	if err != nil {
		return nil, err
	}
	pool, err := buffer.New(o.poolSize, disk)
	if err != nil {
		disk.Close()
		return nil, err
	}

	t := &BTree[K]{
		pool:        pool,
		disk:        disk,
		cmp:         cmp,
		rootID:      disk.RootPageID(),
		leafMax:     o.leafMaxSize,
		internalMax: o.internalMaxSize,
		log:         o.logger,
	}

	if t.rootID == base.InvalidPageID {
		frame, err := pool.NewPage()
		if err != nil {
			disk.Close()
			return nil, err
		}
		leaf := (*leafPage[K])(frame.Page())
		leaf.init(frame.ID(), base.InvalidPageID, t.leafMax)
		t.rootID = frame.ID()
		pool.Unpin(frame.ID(), true)
		if err := disk.SetRootPageID(t.rootID); err != nil {
			disk.Close()
			return nil, err
		}
	}

	t.log.Info("index opened", "path", path, "root", t.rootID)
	return t, nil
}

// Sync flushes every dirty page and forces file contents to stable storage.
func (t *BTree[K]) Sync() error {
	if err := t.pool.FlushAll(); err != nil {
		return err
	}
	return t.disk.Sync()
}

// Close flushes all dirty pages and closes the index file.
func (t *BTree[K]) Close() error {
	if err := t.pool.FlushAll(); err != nil {
		return err
	}
	return t.disk.Close()
}

// IsEmpty reports whether the tree holds no keys.
func (t *BTree[K]) IsEmpty() (bool, error) {
	frame, err := t.pool.Fetch(t.rootID)
	if err != nil {
		return false, err
	}
	page := asTreePage(frame)
	empty := page.isLeaf() && page.size() == 0
	t.pool.Unpin(frame.ID(), false)
	return empty, nil
}

// Get looks up the record id for key. A missing key is a normal negative
// result, not an error.
func (t *BTree[K]) Get(key K) (RID, bool, error) {
	frame, err := t.findLeaf(key, false)
	if err != nil {
		return RID{}, false, err
	}
	leaf := asLeaf[K](frame)
	rid, ok := leaf.lookup(key, t.cmp)
	t.pool.Unpin(frame.ID(), false)
	return rid, ok, nil
}

// findLeaf descends from the root to the leaf covering key (or the leftmost
// leaf). The returned frame is pinned; every interior page visited on the
// way down is released.
func (t *BTree[K]) findLeaf(key K, leftmost bool) (*buffer.Frame, error) {
	frame, err := t.pool.Fetch(t.rootID)
	if err != nil {
		return nil, err
	}
	for {
		if asTreePage(frame).isLeaf() {
			return frame, nil
		}
		node := asInternal[K](frame)

		var next base.PageID
		if leftmost {
			next = node.valueAt(0)
		} else {
			next = node.lookup(key, t.cmp)
		}

		childFrame, err := t.pool.Fetch(next)
		t.pool.Unpin(frame.ID(), false)
		if err != nil {
			return nil, err
		}
		frame = childFrame
	}
}

// Insert adds (key, rid) to the tree. Returns false without error when the
// key is already present; the existing record is left untouched.
func (t *BTree[K]) Insert(key K, rid RID) (bool, error) {
	frame, err := t.findLeaf(key, false)
	if err != nil {
		return false, err
	}
	leaf := asLeaf[K](frame)

	if _, exists := leaf.lookup(key, t.cmp); exists {
		t.pool.Unpin(frame.ID(), false)
		return false, nil
	}

	if leaf.size() < leaf.maxSize() {
		leaf.insert(key, rid, t.cmp)
		t.pool.Unpin(frame.ID(), true)
		return true, nil
	}

	// Leaf is full: split first, then insert into the covering half
	siblingFrame, err := t.pool.NewPage()
	if err != nil {
		t.pool.Unpin(frame.ID(), false)
		return false, err
	}
	sibling := (*leafPage[K])(siblingFrame.Page())
	sibling.init(siblingFrame.ID(), leaf.parentID(), t.leafMax)
	leaf.moveHalfTo(sibling)

	separator := sibling.keyAt(0)
	if t.cmp(key, separator) < 0 {
		leaf.insert(key, rid, t.cmp)
	} else {
		sibling.insert(key, rid, t.cmp)
	}

	return true, t.insertIntoParent(frame, sibling.keyAt(0), siblingFrame)
}

// insertIntoParent links a freshly split-off sibling into the parent level,
// splitting upward as needed. Both frames are released on every path.
func (t *BTree[K]) insertIntoParent(oldFrame *buffer.Frame, key K, newFrame *buffer.Frame) error {
	oldPage := asTreePage(oldFrame)
	newPage := asTreePage(newFrame)

	if oldPage.isRoot() {
		rootFrame, err := t.pool.NewPage()
		if err != nil {
			t.pool.Unpin(oldFrame.ID(), true)
			t.pool.Unpin(newFrame.ID(), true)
			return err
		}
		root := (*internalPage[K])(rootFrame.Page())
		root.init(rootFrame.ID(), base.InvalidPageID, t.internalMax)
		root.populateNewRoot(oldPage.id(), key, newPage.id())

		oldPage.setParentID(root.id())
		newPage.setParentID(root.id())
		t.rootID = root.id()

		t.pool.Unpin(oldFrame.ID(), true)
		t.pool.Unpin(newFrame.ID(), true)
		t.pool.Unpin(rootFrame.ID(), true)

		t.log.Info("root split", "root", t.rootID)
		return t.disk.SetRootPageID(t.rootID)
	}

	parentFrame, err := t.pool.Fetch(oldPage.parentID())
	if err != nil {
		t.pool.Unpin(oldFrame.ID(), true)
		t.pool.Unpin(newFrame.ID(), true)
		return err
	}
	parent := asInternal[K](parentFrame)

	if parent.size() < parent.maxSize() {
		parent.insertNodeAfter(oldPage.id(), key, newPage.id())
		newPage.setParentID(parent.id())

		t.pool.Unpin(oldFrame.ID(), true)
		t.pool.Unpin(newFrame.ID(), true)
		t.pool.Unpin(parentFrame.ID(), true)
		return nil
	}

	// Parent is full as well: split it and recurse one level up
	parent2Frame, err := t.pool.NewPage()
	if err != nil {
		t.pool.Unpin(oldFrame.ID(), true)
		t.pool.Unpin(newFrame.ID(), true)
		t.pool.Unpin(parentFrame.ID(), false)
		return err
	}
	parent2 := (*internalPage[K])(parent2Frame.Page())
	parent2.init(parent2Frame.ID(), parent.parentID(), t.internalMax)

	if err := parent.moveHalfTo(parent2, t.pool); err != nil {
		t.pool.Unpin(oldFrame.ID(), true)
		t.pool.Unpin(newFrame.ID(), true)
		t.pool.Unpin(parentFrame.ID(), true)
		t.pool.Unpin(parent2Frame.ID(), true)
		return err
	}

	// The boundary pair's key rides along in the sibling's slot 0; it is
	// promoted to the next level and acts as the sentinel from here on.
	promoted := parent2.keyAt(0)

	if t.cmp(key, promoted) < 0 {
		parent.insertNodeAfter(oldPage.id(), key, newPage.id())
		newPage.setParentID(parent.id())
	} else {
		parent2.insertNodeAfter(oldPage.id(), key, newPage.id())
		newPage.setParentID(parent2.id())
	}

	t.pool.Unpin(oldFrame.ID(), true)
	t.pool.Unpin(newFrame.ID(), true)

	return t.insertIntoParent(parentFrame, promoted, parent2Frame)
}

// Delete removes key from the tree. Deleting an absent key is a no-op.
func (t *BTree[K]) Delete(key K) error {
	frame, err := t.findLeaf(key, false)
	if err != nil {
		return err
	}
	leaf := asLeaf[K](frame)

	before := leaf.size()
	if leaf.remove(key, t.cmp) == before {
		t.pool.Unpin(frame.ID(), false)
		return nil
	}

	gone, err := t.rebalance(frame)
	if err != nil {
		t.pool.Unpin(frame.ID(), true)
		return err
	}
	if gone {
		id := frame.ID()
		t.pool.Unpin(id, false)
		return t.pool.Delete(id)
	}
	t.pool.Unpin(frame.ID(), true)
	return nil
}

// rebalance restores the occupancy invariant for the page in f after a
// removal, preferring redistribution over merging. Returns true when the
// page was merged away and should be deallocated by the caller (which still
// holds its pin).
func (t *BTree[K]) rebalance(f *buffer.Frame) (bool, error) {
	page := asTreePage(f)

	if page.isRoot() {
		return t.adjustRoot(f)
	}
	if page.size() >= page.minSize() {
		return false, nil
	}

	parentFrame, err := t.pool.Fetch(page.parentID())
	if err != nil {
		return false, err
	}
	parent := asInternal[K](parentFrame)

	idx := parent.valueIndex(page.id())
	if idx < 0 {
		panic(fmt.Sprintf("rebalance: page %d not referenced by parent %d", page.id(), parent.id()))
	}

	var leftFrame, rightFrame *buffer.Frame
	release := func(leftDirty, rightDirty, parentDirty bool) {
		if leftFrame != nil {
			t.pool.Unpin(leftFrame.ID(), leftDirty)
		}
		if rightFrame != nil {
			t.pool.Unpin(rightFrame.ID(), rightDirty)
		}
		t.pool.Unpin(parentFrame.ID(), parentDirty)
	}

	if idx > 0 {
		leftFrame, err = t.pool.Fetch(parent.valueAt(idx - 1))
		if err != nil {
			t.pool.Unpin(parentFrame.ID(), false)
			return false, err
		}
	}
	if idx+1 < parent.size() {
		rightFrame, err = t.pool.Fetch(parent.valueAt(idx + 1))
		if err != nil {
			release(false, false, false)
			return false, err
		}
	}

	// Prefer a donor that stays at or above the minimum; left wins ties
	if leftFrame != nil && asTreePage(leftFrame).size() > asTreePage(leftFrame).minSize() {
		err = t.redistribute(leftFrame, f, idx, true)
		release(true, false, true)
		return false, err
	}
	if rightFrame != nil && asTreePage(rightFrame).size() > asTreePage(rightFrame).minSize() {
		err = t.redistribute(rightFrame, f, idx, false)
		release(false, true, true)
		return false, err
	}

	// No donor: merge. Prefer the left sibling as the recipient.
	if leftFrame != nil {
		if rightFrame != nil {
			t.pool.Unpin(rightFrame.ID(), false)
			rightFrame = nil
		}
		if err := t.merge(f, leftFrame, idx); err != nil {
			release(true, false, true)
			return false, err
		}
		t.pool.Unpin(leftFrame.ID(), true)
		leftFrame = nil

		err = t.finishParent(parentFrame)
		return true, err
	}

	// Leftmost child: merge the right sibling into this page instead
	rightID := rightFrame.ID()
	if err := t.merge(rightFrame, f, idx+1); err != nil {
		release(false, true, true)
		return false, err
	}
	t.pool.Unpin(rightID, false)
	rightFrame = nil
	if err := t.pool.Delete(rightID); err != nil {
		t.pool.Unpin(parentFrame.ID(), true)
		return false, err
	}

	err = t.finishParent(parentFrame)
	return false, err
}

// finishParent recursively rebalances the parent after a merge removed one
// of its separators, then releases (and possibly deallocates) it.
func (t *BTree[K]) finishParent(parentFrame *buffer.Frame) error {
	gone, err := t.rebalance(parentFrame)
	if err != nil {
		t.pool.Unpin(parentFrame.ID(), true)
		return err
	}
	if gone {
		id := parentFrame.ID()
		t.pool.Unpin(id, false)
		return t.pool.Delete(id)
	}
	t.pool.Unpin(parentFrame.ID(), true)
	return nil
}

// merge moves every slot of src into dst (its left sibling) and drops the
// parent separator at sepIndex. Kind dispatch only; the page ops do the
// slot work.
func (t *BTree[K]) merge(src, dst *buffer.Frame, sepIndex int) error {
	if asTreePage(src).isLeaf() {
		return asLeaf[K](src).moveAllTo(asLeaf[K](dst), sepIndex, t.pool)
	}
	return asInternal[K](src).moveAllTo(asInternal[K](dst), sepIndex, t.pool)
}

// redistribute moves one boundary slot from donor into node. nodeIndex is
// node's slot position in their shared parent.
func (t *BTree[K]) redistribute(donor, node *buffer.Frame, nodeIndex int, donorIsLeft bool) error {
	if asTreePage(donor).isLeaf() {
		d, n := asLeaf[K](donor), asLeaf[K](node)
		if donorIsLeft {
			return d.moveLastToFrontOf(n, nodeIndex, t.pool)
		}
		return d.moveFirstToEndOf(n, t.pool)
	}
	d, n := asInternal[K](donor), asInternal[K](node)
	if donorIsLeft {
		return d.moveLastToFrontOf(n, nodeIndex, t.pool)
	}
	return d.moveFirstToEndOf(n, t.pool)
}

// adjustRoot handles underflow at the root: an internal root left with a
// single child collapses one level; an empty leaf root stays as the root of
// the now-empty tree. Returns true when the old root should be deallocated.
func (t *BTree[K]) adjustRoot(f *buffer.Frame) (bool, error) {
	page := asTreePage(f)

	if page.isLeaf() {
		return false, nil
	}
	if page.size() > 1 {
		return false, nil
	}

	root := asInternal[K](f)
	childID := root.removeAndReturnOnlyChild()

	childFrame, err := t.pool.Fetch(childID)
	if err != nil {
		return false, err
	}
	asTreePage(childFrame).setParentID(base.InvalidPageID)
	t.pool.Unpin(childFrame.ID(), true)

	t.rootID = childID
	t.log.Info("root collapsed", "root", childID)
	return true, t.disk.SetRootPageID(childID)
}
