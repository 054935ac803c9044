package buffer

import (
	"fmt"
	"sync"
	"sync/atomic"

	"pinetree/internal/base"
)

// Frame is one buffer pool slot: a resident page plus its bookkeeping.
// The page memory is only valid while the caller holds a pin.
type Frame struct {
	page     base.Page
	id       base.PageID
	pinCount int
	dirty    bool
}

// Page returns the resident page memory
func (f *Frame) Page() *base.Page {
	return &f.page
}

// ID returns the page id currently held by this frame
func (f *Frame) ID() base.PageID {
	return f.id
}

// Pool is the buffer pool manager: a fixed array of frames, a page table
// mapping resident page ids to frames, and an LRU replacer over unpinned
// frames. Fetch pins, Unpin releases; a page is never evicted while pinned.
type Pool struct {
	mu        sync.Mutex
	disk      Storage
	frames    []Frame
	pageTable map[base.PageID]uint32
	freeList  []uint32
	replacer  *replacer

	// Stats
	hits      atomic.Uint64
	misses    atomic.Uint64
	evictions atomic.Uint64
}

// Storage is the disk collaborator the pool reads and writes through
type Storage interface {
	ReadPage(id base.PageID) (*base.Page, error)
	WritePage(id base.PageID, page *base.Page) error
	AllocatePage() (base.PageID, error)
	DeallocatePage(id base.PageID)
}

const MinPoolSize = 8

// New creates a buffer pool with poolSize frames backed by disk.
func New(poolSize int, disk Storage) (*Pool, error) {
	poolSize = max(poolSize, MinPoolSize)

	rep, err := newReplacer(uint32(poolSize))
	if err != nil {
		return nil, err
	}

	p := &Pool{
		disk:      disk,
		frames:    make([]Frame, poolSize),
		pageTable: make(map[base.PageID]uint32, poolSize),
		freeList:  make([]uint32, 0, poolSize),
		replacer:  rep,
	}
	for i := poolSize - 1; i >= 0; i-- {
		p.freeList = append(p.freeList, uint32(i))
	}
	return p, nil
}

// Fetch pins the page with the given id, reading it from disk if it is not
// resident. Every successful Fetch must be paired with exactly one Unpin.
// Returns ErrNoFreeFrames when every frame is pinned.
func (p *Pool) Fetch(id base.PageID) (*Frame, error) {
	if id == base.InvalidPageID {
		panic("buffer: fetch of invalid page id")
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if idx, ok := p.pageTable[id]; ok {
		f := &p.frames[idx]
		f.pinCount++
		if f.pinCount == 1 {
			p.replacer.erase(idx)
		}
		p.hits.Add(1)
		return f, nil
	}
	p.misses.Add(1)

	idx, err := p.findVictim()
	if err != nil {
		return nil, err
	}
	f := &p.frames[idx]

	page, err := p.disk.ReadPage(id)
	if err != nil {
		// Put the frame back; nothing was loaded into it
		p.freeList = append(p.freeList, idx)
		return nil, err
	}

	f.page = *page
	f.id = id
	f.dirty = false
	f.pinCount = 1
	p.pageTable[id] = idx
	return f, nil
}

// NewPage allocates a page id from disk and pins a zeroed frame for it.
// Returns ErrNoFreeFrames when every frame is pinned.
func (p *Pool) NewPage() (*Frame, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	idx, err := p.findVictim()
	if err != nil {
		return nil, err
	}
	f := &p.frames[idx]

	id, err := p.disk.AllocatePage()
	if err != nil {
		p.freeList = append(p.freeList, idx)
		return nil, err
	}

	f.page.Reset()
	f.id = id
	f.dirty = false
	f.pinCount = 1
	p.pageTable[id] = idx
	return f, nil
}

// findVictim produces a free frame, evicting the LRU unpinned page if the
// free list is empty. The victim's old contents are flushed if dirty.
// Caller holds p.mu.
func (p *Pool) findVictim() (uint32, error) {
	if n := len(p.freeList); n > 0 {
		idx := p.freeList[n-1]
		p.freeList = p.freeList[:n-1]
		return idx, nil
	}

	idx, ok := p.replacer.victim()
	if !ok {
		return 0, base.ErrNoFreeFrames
	}
	f := &p.frames[idx]
	if f.pinCount != 0 {
		panic(fmt.Sprintf("buffer: victim frame %d has pin count %d", idx, f.pinCount))
	}

	if f.dirty {
		if err := p.disk.WritePage(f.id, &f.page); err != nil {
			// Keep the frame evictable; the caller sees the write failure
			p.replacer.insert(idx)
			return 0, err
		}
	}
	p.evictions.Add(1)
	delete(p.pageTable, f.id)
	return idx, nil
}

// Unpin drops one pin on the page. dirty marks the page as modified so the
// pool writes it back before eviction. Returns false if the page is not
// resident or was not pinned.
func (p *Pool) Unpin(id base.PageID, dirty bool) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	idx, ok := p.pageTable[id]
	if !ok {
		return false
	}
	f := &p.frames[idx]
	if f.pinCount <= 0 {
		return false
	}
	f.pinCount--
	if dirty {
		f.dirty = true
	}
	if f.pinCount == 0 {
		p.replacer.insert(idx)
	}
	return true
}

// Flush writes the page back to disk if it is resident, clearing its dirty
// flag. The page stays resident and keeps its pin count.
func (p *Pool) Flush(id base.PageID) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	idx, ok := p.pageTable[id]
	if !ok {
		return base.ErrPageNotFound
	}
	f := &p.frames[idx]
	if err := p.disk.WritePage(f.id, &f.page); err != nil {
		return err
	}
	f.dirty = false
	return nil
}

// FlushAll writes every dirty resident page back to disk.
func (p *Pool) FlushAll() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	for id, idx := range p.pageTable {
		f := &p.frames[idx]
		if !f.dirty {
			continue
		}
		if err := p.disk.WritePage(id, &f.page); err != nil {
			return err
		}
		f.dirty = false
	}
	return nil
}

// Delete evicts the page from the pool and returns its id to the disk
// manager's free list. A pinned page cannot be deleted.
func (p *Pool) Delete(id base.PageID) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if idx, ok := p.pageTable[id]; ok {
		f := &p.frames[idx]
		if f.pinCount > 0 {
			return base.ErrPagePinned
		}
		p.replacer.erase(idx)
		delete(p.pageTable, id)
		f.page.Reset()
		f.id = base.InvalidPageID
		f.dirty = false
		p.freeList = append(p.freeList, idx)
	}
	p.disk.DeallocatePage(id)
	return nil
}

// PinCount reports the pin count of a resident page, or 0 if not resident.
// Used by tests to verify the pin protocol.
func (p *Pool) PinCount(id base.PageID) int {
	p.mu.Lock()
	defer p.mu.Unlock()

	idx, ok := p.pageTable[id]
	if !ok {
		return 0
	}
	return p.frames[idx].pinCount
}

type Stats struct {
	Hits      uint64
	Misses    uint64
	Evictions uint64
}

// Stats returns pool counters
func (p *Pool) Stats() Stats {
	return Stats{
		Hits:      p.hits.Load(),
		Misses:    p.misses.Load(),
		Evictions: p.evictions.Load(),
	}
}
