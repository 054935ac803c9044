package storage

import (
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/cespare/xxhash/v2"

	"pinetree/internal/base"
)

// Meta is the file metadata stored in page 0.
// Layout: [Magic: 4][Version: 2][PageSize: 2][RootPageID: 8][NumPages: 8][Checksum: 8]
// Total: 32 bytes
type Meta struct {
	Magic      uint32      // 4 bytes: 0x70696e65 ("pine")
	Version    uint16      // 2 bytes: format version (1)
	PageSize   uint16      // 2 bytes: page size (4096)
	RootPageID base.PageID // 8 bytes: root of the tree, InvalidPageID if none
	NumPages   uint64      // 8 bytes: total pages allocated (including page 0)
	Checksum   uint64      // 8 bytes: xxhash of the fields above
}

// CalculateChecksum computes the xxhash of all fields except Checksum itself
func (m *Meta) CalculateChecksum() uint64 {
	// Meta is 32 bytes, Checksum is the last 8, so hash the first 24
	data := unsafe.Slice((*byte)(unsafe.Pointer(m)), 24)
	return xxhash.Sum64(data)
}

// Validate checks if the metadata is well-formed
func (m *Meta) Validate() error {
	if m.Magic != base.MagicNumber {
		return base.ErrInvalidMagicNumber
	}
	if m.Version != base.FormatVersion {
		return base.ErrInvalidVersion
	}
	if m.PageSize != base.PageSize {
		return base.ErrInvalidPageSize
	}
	if m.Checksum != m.CalculateChecksum() {
		return base.ErrInvalidChecksum
	}
	return nil
}

// DiskManager performs page-granular I/O against a single index file.
// Page 0 is the meta page; tree pages start at 1. Deallocated page ids are
// kept on an in-memory free list and handed out again before the file grows.
type DiskManager struct {
	mu   sync.Mutex
	file *os.File
	meta Meta
	free []base.PageID

	// Stats counters
	reads  atomic.Uint64
	writes atomic.Uint64
}

// Open opens (or creates) the index file at path and loads its metadata.
func Open(path string) (*DiskManager, error) {
	file, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0600)
	if err != nil {
		return nil, err
	}

	d := &DiskManager{file: file}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, err
	}

	if info.Size() == 0 {
		// Fresh file: page 0 is the meta page
		d.meta = Meta{
			Magic:    base.MagicNumber,
			Version:  base.FormatVersion,
			PageSize: base.PageSize,
			NumPages: 1,
		}
		if err := d.writeMeta(); err != nil {
			file.Close()
			return nil, err
		}
		return d, nil
	}

	if err := d.readMeta(); err != nil {
		file.Close()
		return nil, err
	}
	return d, nil
}

func (d *DiskManager) readMeta() error {
	var page base.Page
	d.reads.Add(1)
	if _, err := d.file.ReadAt(page.Data[:], 0); err != nil {
		return err
	}
	m := (*Meta)(unsafe.Pointer(&page.Data[0]))
	if err := m.Validate(); err != nil {
		return err
	}
	d.meta = *m
	return nil
}

// writeMeta persists the meta page. Caller holds d.mu (or has exclusive use).
func (d *DiskManager) writeMeta() error {
	d.meta.Checksum = d.meta.CalculateChecksum()

	var page base.Page
	*(*Meta)(unsafe.Pointer(&page.Data[0])) = d.meta

	d.writes.Add(1)
	if _, err := d.file.WriteAt(page.Data[:], 0); err != nil {
		return err
	}
	return nil
}

// ReadPage reads page id into a fresh Page. Pages that were allocated but
// never flushed read back as zeroes.
func (d *DiskManager) ReadPage(id base.PageID) (*base.Page, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if id == base.InvalidPageID || uint64(id) >= d.meta.NumPages {
		return nil, fmt.Errorf("read page %d: %w", id, base.ErrPageNotFound)
	}

	page := &base.Page{}
	offset := int64(id) * base.PageSize

	d.reads.Add(1)
	// io.EOF means the page was allocated past the current file end; the
	// unread remainder of the fresh buffer is already zero
	if _, err := d.file.ReadAt(page.Data[:], offset); err != nil && err != io.EOF {
		return nil, err
	}
	return page, nil
}

// WritePage writes page data to the offset for id.
func (d *DiskManager) WritePage(id base.PageID, page *base.Page) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if id == base.InvalidPageID || uint64(id) >= d.meta.NumPages {
		return fmt.Errorf("write page %d: %w", id, base.ErrPageNotFound)
	}

	offset := int64(id) * base.PageSize
	d.writes.Add(1)
	if _, err := d.file.WriteAt(page.Data[:], offset); err != nil {
		return err
	}
	return nil
}

// AllocatePage returns a page id for a new page, reusing a deallocated id
// when one is available.
func (d *DiskManager) AllocatePage() (base.PageID, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if n := len(d.free); n > 0 {
		id := d.free[n-1]
		d.free = d.free[:n-1]
		return id, nil
	}

	id := base.PageID(d.meta.NumPages)
	d.meta.NumPages++
	return id, nil
}

// DeallocatePage returns a page id to the free list for reuse.
func (d *DiskManager) DeallocatePage(id base.PageID) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if id == base.InvalidPageID || uint64(id) >= d.meta.NumPages {
		return
	}
	d.free = append(d.free, id)
}

// RootPageID returns the tree root recorded in the meta page.
func (d *DiskManager) RootPageID() base.PageID {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.meta.RootPageID
}

// SetRootPageID records a new tree root and rewrites the meta page.
func (d *DiskManager) SetRootPageID(id base.PageID) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.meta.RootPageID = id
	return d.writeMeta()
}

// NumPages returns the number of pages allocated so far, including page 0.
func (d *DiskManager) NumPages() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.meta.NumPages
}

// Sync flushes file contents to stable storage.
func (d *DiskManager) Sync() error {
	return d.fdatasync()
}

// Stats returns the read/write counters.
func (d *DiskManager) Stats() (reads, writes uint64) {
	return d.reads.Load(), d.writes.Load()
}

// Close rewrites the meta page, syncs, and closes the file.
func (d *DiskManager) Close() error {
	d.mu.Lock()
	if err := d.writeMeta(); err != nil {
		d.mu.Unlock()
		return err
	}
	d.mu.Unlock()

	if err := d.fdatasync(); err != nil {
		return err
	}
	return d.file.Close()
}
