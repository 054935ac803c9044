package pinetree

import (
	"unsafe"

	"pinetree/internal/base"
	"pinetree/internal/buffer"
)

// leafPage stores sorted (key, record-id) pairs: the terminal storage unit
// of the index. Leaves are chained through nextPageID for ordered scans.
type leafPage[K any] base.Page

// leafSlot is one (key, record-id) entry in the slot array
type leafSlot[K any] struct {
	Key K
	Val base.RID
}

func (p *leafPage[K]) common() *treePage {
	return (*treePage)(p)
}

func (p *leafPage[K]) header() *base.PageHeader {
	return (*base.Page)(p).Header()
}

func (p *leafPage[K]) id() base.PageID       { return p.header().PageID }
func (p *leafPage[K]) parentID() base.PageID { return p.header().ParentPageID }
func (p *leafPage[K]) size() int             { return int(p.header().Size) }
func (p *leafPage[K]) maxSize() int          { return int(p.header().MaxSize) }
func (p *leafPage[K]) minSize() int          { return (p.maxSize() + 1) / 2 }

func (p *leafPage[K]) increaseSize(delta int) {
	p.header().Size = uint32(p.size() + delta)
}

// slots reinterprets the region after the leaf header as the slot array.
// The slice spans the full capacity; only [0, size) entries are live.
func (p *leafPage[K]) slots() []leafSlot[K] {
	ptr := unsafe.Pointer(&p.Data[base.LeafHeaderSize])
	return unsafe.Slice((*leafSlot[K])(ptr), p.maxSize())
}

// init formats a freshly allocated page as an empty leaf. maxSize 0 derives
// the capacity from the page geometry.
func (p *leafPage[K]) init(id, parent base.PageID, maxSize int) {
	if maxSize == 0 {
		maxSize = leafCapacity[K]()
	}
	h := p.header()
	h.Kind = base.LeafPageKind
	h.Size = 0
	h.MaxSize = uint32(maxSize)
	h.PageID = id
	h.ParentPageID = parent
	p.setNextPageID(base.InvalidPageID)
}

// nextPageID is the right sibling in the leaf chain, stored after the
// common header
func (p *leafPage[K]) nextPageID() base.PageID {
	return *(*base.PageID)(unsafe.Pointer(&p.Data[base.PageHeaderSize]))
}

func (p *leafPage[K]) setNextPageID(id base.PageID) {
	*(*base.PageID)(unsafe.Pointer(&p.Data[base.PageHeaderSize])) = id
}

func (p *leafPage[K]) keyAt(index int) K {
	assertIndex(index, p.size(), "leaf keyAt")
	return p.slots()[index].Key
}

func (p *leafPage[K]) item(index int) leafSlot[K] {
	assertIndex(index, p.size(), "leaf item")
	return p.slots()[index]
}

// keyIndex returns the first index whose key is >= key, or size if all keys
// are smaller. Used to position scans.
func (p *leafPage[K]) keyIndex(key K, cmp Comparator[K]) int {
	s := p.slots()
	lo, hi := 0, p.size()
	for lo < hi {
		mid := lo + (hi-lo)/2
		if cmp(key, s[mid].Key) <= 0 {
			hi = mid
		} else {
			lo = mid + 1
		}
	}
	return lo
}

// lookup finds the record id for key, reporting whether it is present
func (p *leafPage[K]) lookup(key K, cmp Comparator[K]) (base.RID, bool) {
	s := p.slots()
	lo, hi := 0, p.size()-1
	for lo <= hi {
		mid := lo + (hi-lo)/2
		c := cmp(key, s[mid].Key)
		switch {
		case c > 0:
			lo = mid + 1
		case c < 0:
			hi = mid - 1
		default:
			return s[mid].Val, true
		}
	}
	return base.RID{}, false
}

// insert places (key, rid) at its sorted position and returns the new size.
// The caller guarantees the key is absent and the page has room; a duplicate
// here is an invariant break.
func (p *leafPage[K]) insert(key K, rid base.RID, cmp Comparator[K]) int {
	n := p.size()
	if n >= p.maxSize() {
		panic("leaf insert: page is full")
	}
	s := p.slots()

	idx := p.keyIndex(key, cmp)
	if idx < n && cmp(key, s[idx].Key) == 0 {
		panic("leaf insert: duplicate key")
	}

	copy(s[idx+1:n+1], s[idx:n])
	s[idx] = leafSlot[K]{Key: key, Val: rid}
	p.increaseSize(1)
	return p.size()
}

// remove deletes key if present, keeping the slot array contiguous, and
// returns the size afterwards. An absent key is a no-op.
func (p *leafPage[K]) remove(key K, cmp Comparator[K]) int {
	n := p.size()
	s := p.slots()

	idx := p.keyIndex(key, cmp)
	if idx == n || cmp(key, s[idx].Key) != 0 {
		return n
	}
	copy(s[idx:n-1], s[idx+1:n])
	p.increaseSize(-1)
	return p.size()
}

// moveHalfTo moves the upper half (size/2 slots) to a freshly initialized
// recipient and splices it into the sibling chain after this page.
func (p *leafPage[K]) moveHalfTo(recipient *leafPage[K]) {
	if recipient.size() != 0 {
		panic("leaf moveHalfTo: recipient is not empty")
	}
	n := p.size()
	half := n / 2
	src := p.slots()
	dst := recipient.slots()

	copy(dst[:half], src[n-half:n])
	recipient.increaseSize(half)
	p.increaseSize(-half)

	recipient.setNextPageID(p.nextPageID())
	p.setNextPageID(recipient.id())
}

// moveAllTo appends every slot to recipient (the left sibling), unlinks this
// page from the chain, and removes the parent separator that pointed here.
// The parent is fetched transiently and released on every path.
func (p *leafPage[K]) moveAllTo(recipient *leafPage[K], indexInParent int, pool *buffer.Pool) error {
	if recipient.size()+p.size() > recipient.maxSize() {
		panic("leaf moveAllTo: recipient cannot hold every slot")
	}

	parentFrame, err := pool.Fetch(p.parentID())
	if err != nil {
		return err
	}
	defer pool.Unpin(parentFrame.ID(), true)
	parent := asInternal[K](parentFrame)

	n := p.size()
	start := recipient.size()
	copy(recipient.slots()[start:start+n], p.slots()[:n])
	recipient.increaseSize(n)
	p.increaseSize(-n)

	recipient.setNextPageID(p.nextPageID())
	parent.remove(indexInParent)
	return nil
}

// moveFirstToEndOf shifts this page's first slot to the tail of recipient
// (the left sibling) and rewrites the parent separator for this page to its
// new first key.
func (p *leafPage[K]) moveFirstToEndOf(recipient *leafPage[K], pool *buffer.Pool) error {
	moved := p.item(0)
	n := p.size()
	s := p.slots()
	copy(s[:n-1], s[1:n])
	p.increaseSize(-1)

	recipient.copyLastFrom(moved)

	parentFrame, err := pool.Fetch(p.parentID())
	if err != nil {
		return err
	}
	defer pool.Unpin(parentFrame.ID(), true)
	parent := asInternal[K](parentFrame)

	parent.setKeyAt(parent.valueIndex(p.id()), p.keyAt(0))
	return nil
}

func (p *leafPage[K]) copyLastFrom(item leafSlot[K]) {
	if p.size() >= p.maxSize() {
		panic("leaf copyLastFrom: page is full")
	}
	p.slots()[p.size()] = item
	p.increaseSize(1)
}

// moveLastToFrontOf shifts this page's last slot to the head of recipient
// (the right sibling) and rewrites the separator between the two siblings to
// the moved key.
func (p *leafPage[K]) moveLastToFrontOf(recipient *leafPage[K], parentIndex int, pool *buffer.Pool) error {
	moved := p.item(p.size() - 1)
	p.increaseSize(-1)
	return recipient.copyFirstFrom(moved, parentIndex, pool)
}

func (p *leafPage[K]) copyFirstFrom(item leafSlot[K], parentIndex int, pool *buffer.Pool) error {
	if p.size() >= p.maxSize() {
		panic("leaf copyFirstFrom: page is full")
	}
	n := p.size()
	s := p.slots()
	copy(s[1:n+1], s[:n])
	s[0] = item
	p.increaseSize(1)

	parentFrame, err := pool.Fetch(p.parentID())
	if err != nil {
		return err
	}
	defer pool.Unpin(parentFrame.ID(), true)
	parent := asInternal[K](parentFrame)

	parent.setKeyAt(parentIndex, item.Key)
	return nil
}
