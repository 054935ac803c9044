package pinetree

import (
	"bytes"

	"pinetree/internal/base"
)

// PageID identifies a page in the index file
type PageID = base.PageID

// RID is the record id stored alongside each key in leaf pages
type RID = base.RID

// InvalidPageID marks an absent page reference
const InvalidPageID = base.InvalidPageID

// Comparator supplies the total order over keys: negative when a < b, zero
// when equal, positive when a > b. Must be a pure function.
type Comparator[K any] func(a, b K) int

// CompareUint64 orders uint64 keys numerically
func CompareUint64(a, b uint64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// Key16 is a fixed-width 16-byte key, ordered lexicographically
type Key16 [16]byte

// CompareKey16 orders Key16 keys by their byte content
func CompareKey16(a, b Key16) int {
	return bytes.Compare(a[:], b[:])
}

// Key32 is a fixed-width 32-byte key, ordered lexicographically
type Key32 [32]byte

// CompareKey32 orders Key32 keys by their byte content
func CompareKey32(a, b Key32) int {
	return bytes.Compare(a[:], b[:])
}
