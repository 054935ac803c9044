package buffer

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"
	"github.com/elastic/go-freelru"
)

// replacer tracks frames whose pin count has dropped to zero, in LRU order.
// A frame enters on its final unpin, leaves when it is repinned, and the
// least recently unpinned frame is handed out as the eviction victim.
type replacer struct {
	lru *freelru.LRU[uint32, struct{}]
}

func hashFrameID(id uint32) uint32 {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], id)
	return uint32(xxhash.Sum64(buf[:]))
}

func newReplacer(capacity uint32) (*replacer, error) {
	lru, err := freelru.New[uint32, struct{}](capacity, hashFrameID)
	if err != nil {
		return nil, err
	}
	return &replacer{lru: lru}, nil
}

// insert marks a frame as evictable
func (r *replacer) insert(frameID uint32) {
	r.lru.Add(frameID, struct{}{})
}

// erase removes a frame from the evictable set (it was repinned)
func (r *replacer) erase(frameID uint32) {
	r.lru.Remove(frameID)
}

// victim pops the least recently unpinned frame, if any
func (r *replacer) victim() (uint32, bool) {
	id, _, ok := r.lru.RemoveOldest()
	return id, ok
}

// size returns the number of evictable frames
func (r *replacer) size() int {
	return r.lru.Len()
}
