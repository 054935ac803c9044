package pinetree

import (
	"fmt"
	"reflect"

	"pinetree/internal/base"
	"pinetree/internal/buffer"
)

// treePage is the header view shared by leaf and internal pages. It carries
// no key type because it only touches the common header fields.
type treePage base.Page

func (p *treePage) header() *base.PageHeader {
	return (*base.Page)(p).Header()
}

func (p *treePage) kind() uint32 {
	return p.header().Kind
}

func (p *treePage) isLeaf() bool {
	return p.header().Kind == base.LeafPageKind
}

// isRoot reports whether this page has no parent
func (p *treePage) isRoot() bool {
	return p.header().ParentPageID == base.InvalidPageID
}

func (p *treePage) id() base.PageID {
	return p.header().PageID
}

func (p *treePage) parentID() base.PageID {
	return p.header().ParentPageID
}

func (p *treePage) setParentID(id base.PageID) {
	p.header().ParentPageID = id
}

func (p *treePage) size() int {
	return int(p.header().Size)
}

func (p *treePage) maxSize() int {
	return int(p.header().MaxSize)
}

// minSize is the occupancy floor for non-root pages: ceil(maxSize/2)
func (p *treePage) minSize() int {
	return (p.maxSize() + 1) / 2
}

// asTreePage converts a pinned frame to the common header view, checking the
// kind tag. An unrecognized tag means the frame does not hold a tree page;
// that is an invariant break, not a recoverable condition.
func asTreePage(f *buffer.Frame) *treePage {
	p := (*treePage)(f.Page())
	if k := p.kind(); k != base.LeafPageKind && k != base.InternalPageKind {
		panic(fmt.Sprintf("page %d: unknown page kind %#x", f.ID(), k))
	}
	return p
}

// asLeaf converts a pinned frame to a leaf handle, checking the kind tag
func asLeaf[K any](f *buffer.Frame) *leafPage[K] {
	p := f.Page()
	if k := p.Header().Kind; k != base.LeafPageKind {
		panic(fmt.Sprintf("page %d: expected leaf page, kind is %#x", f.ID(), k))
	}
	return (*leafPage[K])(p)
}

// asInternal converts a pinned frame to an internal handle, checking the
// kind tag
func asInternal[K any](f *buffer.Frame) *internalPage[K] {
	p := f.Page()
	if k := p.Header().Kind; k != base.InternalPageKind {
		panic(fmt.Sprintf("page %d: expected internal page, kind is %#x", f.ID(), k))
	}
	return (*internalPage[K])(p)
}

// sizeOf reports the in-memory width of an instantiated slot type. Computed
// once per tree at open; slot widths never vary at runtime after that.
func sizeOf[T any]() int {
	var v T
	return int(reflect.TypeOf(v).Size())
}

// leafSlotWidth is the byte width of one (key, record-id) slot
func leafSlotWidth[K any]() int {
	return sizeOf[leafSlot[K]]()
}

// internalSlotWidth is the byte width of one (key, child-page-id) slot
func internalSlotWidth[K any]() int {
	return sizeOf[internalSlot[K]]()
}

// leafCapacity is the slot capacity of a leaf page:
// floor((PageSize - header) / slot width)
func leafCapacity[K any]() int {
	return (base.PageSize - base.LeafHeaderSize) / leafSlotWidth[K]()
}

// internalCapacity is the slot capacity of an internal page
func internalCapacity[K any]() int {
	return (base.PageSize - base.PageHeaderSize) / internalSlotWidth[K]()
}

// assertIndex panics when an index-bounded accessor is called out of range
func assertIndex(index, size int, what string) {
	if index < 0 || index >= size {
		panic(fmt.Sprintf("%s: index %d out of range [0, %d)", what, index, size))
	}
}
