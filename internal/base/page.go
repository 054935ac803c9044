package base

import (
	"unsafe"
)

const (
	PageSize = 4096

	LeafPageKind     uint32 = 0x01
	InternalPageKind uint32 = 0x02

	// PageHeaderSize is the common header shared by every tree page:
	// [Kind: 4][Size: 4][MaxSize: 4][Reserved: 4][PageID: 8][ParentPageID: 8]
	PageHeaderSize = 32

	// LeafHeaderSize extends the common header with the sibling pointer:
	// [NextPageID: 8]
	LeafHeaderSize = PageHeaderSize + 8

	// MagicNumber for file format identification ("pine" in hex)
	MagicNumber uint32 = 0x70696e65

	FormatVersion uint16 = 1
)

// PageID identifies a page in the backing file. Page 0 holds file metadata,
// so 0 doubles as the invalid id.
type PageID uint64

const InvalidPageID PageID = 0

// Page is a raw disk page (4096 bytes). The buffer pool owns page memory
// while it is resident; the tree layer reinterprets it through typed handles
// and never holds a page past its pin.
type Page struct {
	Data [PageSize]byte
}

// PageHeader is the fixed-size header at the start of each tree page.
type PageHeader struct {
	Kind         uint32 // 4 bytes: leaf/internal
	Size         uint32 // 4 bytes: current number of slots
	MaxSize      uint32 // 4 bytes: slot capacity
	Reserved     uint32 // 4 bytes
	PageID       PageID // 8 bytes
	ParentPageID PageID // 8 bytes: InvalidPageID for the root
}

// Header returns the page header decoded from page data
func (p *Page) Header() *PageHeader {
	return (*PageHeader)(unsafe.Pointer(&p.Data[0]))
}

// Reset zeroes the page memory
func (p *Page) Reset() {
	p.Data = [PageSize]byte{}
}

// RID locates a record in an external table heap: the page it lives on plus
// its slot number within that page. Leaf pages store one RID per key.
type RID struct {
	PageID PageID
	Slot   uint32
}
