package pinetree

import (
	"unsafe"

	"pinetree/internal/base"
	"pinetree/internal/buffer"
)

// internalPage stores sorted (separator-key, child-page-id) pairs and routes
// searches to the correct child. Slot 0 is the sentinel: its key is never
// compared, only its child pointer is meaningful, so a page with size 1
// holds a single child and no comparable separators.
type internalPage[K any] base.Page

// internalSlot is one (separator-key, child-page-id) entry
type internalSlot[K any] struct {
	Key K
	Val base.PageID
}

func (p *internalPage[K]) common() *treePage {
	return (*treePage)(p)
}

func (p *internalPage[K]) header() *base.PageHeader {
	return (*base.Page)(p).Header()
}

func (p *internalPage[K]) id() base.PageID       { return p.header().PageID }
func (p *internalPage[K]) parentID() base.PageID { return p.header().ParentPageID }
func (p *internalPage[K]) size() int             { return int(p.header().Size) }
func (p *internalPage[K]) maxSize() int          { return int(p.header().MaxSize) }
func (p *internalPage[K]) minSize() int          { return (p.maxSize() + 1) / 2 }

func (p *internalPage[K]) increaseSize(delta int) {
	p.header().Size = uint32(p.size() + delta)
}

func (p *internalPage[K]) slots() []internalSlot[K] {
	ptr := unsafe.Pointer(&p.Data[base.PageHeaderSize])
	return unsafe.Slice((*internalSlot[K])(ptr), p.maxSize())
}

// init formats a freshly allocated page as an internal page holding only the
// sentinel slot. maxSize 0 derives the capacity from the page geometry.
func (p *internalPage[K]) init(id, parent base.PageID, maxSize int) {
	if maxSize == 0 {
		maxSize = internalCapacity[K]()
	}
	h := p.header()
	h.Kind = base.InternalPageKind
	h.Size = 1 // sentinel slot
	h.MaxSize = uint32(maxSize)
	h.PageID = id
	h.ParentPageID = parent
}

func (p *internalPage[K]) keyAt(index int) K {
	assertIndex(index, p.size(), "internal keyAt")
	return p.slots()[index].Key
}

func (p *internalPage[K]) setKeyAt(index int, key K) {
	assertIndex(index, p.size(), "internal setKeyAt")
	p.slots()[index].Key = key
}

func (p *internalPage[K]) valueAt(index int) base.PageID {
	assertIndex(index, p.size(), "internal valueAt")
	return p.slots()[index].Val
}

// valueIndex returns the slot index holding child, or -1 if absent
func (p *internalPage[K]) valueIndex(child base.PageID) int {
	s := p.slots()
	for i := 0; i < p.size(); i++ {
		if s[i].Val == child {
			return i
		}
	}
	return -1
}

// lookup returns the child page that covers key: the child of the largest
// index i >= 1 with slot[i].key <= key, or the sentinel's child when key
// sorts before slot[1]. Binary search over slots 1..size-1.
func (p *internalPage[K]) lookup(key K, cmp Comparator[K]) base.PageID {
	n := p.size()
	if n <= 1 {
		panic("internal lookup: page has no separators")
	}
	s := p.slots()

	if cmp(key, s[1].Key) < 0 {
		return s[0].Val
	}
	if cmp(key, s[n-1].Key) >= 0 {
		return s[n-1].Val
	}

	// invariant: s[lo].Key <= key < s[hi].Key
	lo, hi := 1, n-1
	for lo+1 < hi {
		mid := lo + (hi-lo)/2
		c := cmp(key, s[mid].Key)
		switch {
		case c < 0:
			hi = mid
		case c > 0:
			lo = mid
		default:
			return s[mid].Val
		}
	}
	return s[lo].Val
}

// populateNewRoot seeds a fresh root after a root split: the sentinel points
// at the old root, slot 1 holds the promoted separator and the new sibling.
// Only valid on a page still holding nothing but its sentinel.
func (p *internalPage[K]) populateNewRoot(oldChild base.PageID, key K, newChild base.PageID) {
	if p.size() != 1 {
		panic("populateNewRoot: page is not freshly initialized")
	}
	s := p.slots()
	s[0].Val = oldChild
	s[1] = internalSlot[K]{Key: key, Val: newChild}
	p.increaseSize(1)
}

// insertNodeAfter inserts (key, child) immediately after the slot whose
// child is after, returning the new size. The caller guarantees after is
// present.
func (p *internalPage[K]) insertNodeAfter(after base.PageID, key K, child base.PageID) int {
	n := p.size()
	if n >= p.maxSize() {
		panic("internal insertNodeAfter: page is full")
	}
	idx := p.valueIndex(after)
	if idx < 0 {
		panic("internal insertNodeAfter: anchor child not found")
	}
	s := p.slots()
	copy(s[idx+2:n+1], s[idx+1:n])
	s[idx+1] = internalSlot[K]{Key: key, Val: child}
	p.increaseSize(1)
	return p.size()
}

// remove deletes the slot at index, keeping the array contiguous
func (p *internalPage[K]) remove(index int) {
	n := p.size()
	assertIndex(index, n, "internal remove")
	s := p.slots()
	copy(s[index:n-1], s[index+1:n])
	p.increaseSize(-1)
}

// removeAndReturnOnlyChild collapses a root down to its single remaining
// child. Only valid when the sentinel is the last slot left.
func (p *internalPage[K]) removeAndReturnOnlyChild() base.PageID {
	if p.size() != 1 {
		panic("removeAndReturnOnlyChild: page still has separators")
	}
	child := p.slots()[0].Val
	p.increaseSize(-1)
	return child
}

// moveHalfTo moves the upper half (size/2 slots) to a freshly initialized
// recipient. The whole boundary pair transfers: its key lands in the
// recipient's slot 0 where it is promoted by the caller and then acts as the
// sentinel. Moved children are reparented to the recipient.
func (p *internalPage[K]) moveHalfTo(recipient *internalPage[K], pool *buffer.Pool) error {
	if recipient.size() != 1 {
		panic("internal moveHalfTo: recipient is not freshly initialized")
	}
	n := p.size()
	half := n / 2
	src := p.slots()
	dst := recipient.slots()

	copy(dst[:half], src[n-half:n])
	recipient.header().Size = uint32(half)
	p.increaseSize(-half)

	return recipient.adoptChildren(0, half, pool)
}

// moveAllTo appends every slot to recipient (the left sibling). The parent's
// separator for this page takes over the sentinel's dividing role: it
// becomes the key of the sentinel slot as it moves. The separator entry is
// then removed from the parent, and all moved children are reparented.
func (p *internalPage[K]) moveAllTo(recipient *internalPage[K], indexInParent int, pool *buffer.Pool) error {
	if recipient.size()+p.size() > recipient.maxSize() {
		panic("internal moveAllTo: recipient cannot hold every slot")
	}

	parentFrame, err := pool.Fetch(p.parentID())
	if err != nil {
		return err
	}
	defer pool.Unpin(parentFrame.ID(), true)
	parent := asInternal[K](parentFrame)

	// the sentinel's dividing role is replaced by the parent separator
	p.setKeyAt(0, parent.keyAt(indexInParent))

	n := p.size()
	start := recipient.size()
	copy(recipient.slots()[start:start+n], p.slots()[:n])
	recipient.increaseSize(n)
	p.increaseSize(-n)

	parent.remove(indexInParent)
	return recipient.adoptChildren(start, start+n, pool)
}

// moveFirstToEndOf shifts this page's first child to the tail of recipient
// (the left sibling). The separator the parent held for this page becomes
// the moved pair's key, and the parent separator is rewritten to the key
// that previously divided the first two children here.
func (p *internalPage[K]) moveFirstToEndOf(recipient *internalPage[K], pool *buffer.Pool) error {
	if p.size() <= 1 {
		panic("internal moveFirstToEndOf: nothing beyond the sentinel")
	}

	parentFrame, err := pool.Fetch(p.parentID())
	if err != nil {
		return err
	}
	defer pool.Unpin(parentFrame.ID(), true)
	parent := asInternal[K](parentFrame)

	idx := parent.valueIndex(p.id())
	separator := parent.keyAt(idx)
	movedChild := p.valueAt(0)
	newSeparator := p.keyAt(1)

	p.remove(0)

	recipient.copyLastFrom(internalSlot[K]{Key: separator, Val: movedChild})
	parent.setKeyAt(idx, newSeparator)

	return recipient.adoptChildren(recipient.size()-1, recipient.size(), pool)
}

func (p *internalPage[K]) copyLastFrom(slot internalSlot[K]) {
	if p.size() >= p.maxSize() {
		panic("internal copyLastFrom: page is full")
	}
	p.slots()[p.size()] = slot
	p.increaseSize(1)
}

// moveLastToFrontOf shifts this page's last child to the head of recipient
// (the right sibling). The recipient's old sentinel child keeps its range
// under the separator pulled down from the parent, and the parent separator
// is rewritten to the moved pair's key.
func (p *internalPage[K]) moveLastToFrontOf(recipient *internalPage[K], parentIndex int, pool *buffer.Pool) error {
	if p.size() <= 1 {
		panic("internal moveLastToFrontOf: nothing beyond the sentinel")
	}
	moved := p.slots()[p.size()-1]
	p.increaseSize(-1)
	return recipient.copyFirstFrom(moved, parentIndex, pool)
}

func (p *internalPage[K]) copyFirstFrom(slot internalSlot[K], parentIndex int, pool *buffer.Pool) error {
	if p.size() >= p.maxSize() {
		panic("internal copyFirstFrom: page is full")
	}

	parentFrame, err := pool.Fetch(p.parentID())
	if err != nil {
		return err
	}
	defer pool.Unpin(parentFrame.ID(), true)
	parent := asInternal[K](parentFrame)

	separator := parent.keyAt(parentIndex)
	parent.setKeyAt(parentIndex, slot.Key)

	// old sentinel child becomes slot 1 under the pulled-down separator;
	// the moved child takes the sentinel position
	n := p.size()
	s := p.slots()
	copy(s[1:n+1], s[:n])
	s[1].Key = separator
	s[0] = slot
	p.increaseSize(1)

	return p.adoptChildren(0, 1, pool)
}

// adoptChildren reparents the children referenced by slots [from, to) to
// this page. Each child is fetched transiently and released on every path.
func (p *internalPage[K]) adoptChildren(from, to int, pool *buffer.Pool) error {
	s := p.slots()
	for i := from; i < to; i++ {
		childFrame, err := pool.Fetch(s[i].Val)
		if err != nil {
			return err
		}
		asTreePage(childFrame).setParentID(p.id())
		pool.Unpin(childFrame.ID(), true)
	}
	return nil
}
