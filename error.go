package pinetree

import "pinetree/internal/base"

var (
	// ErrNoFreeFrames is returned when the buffer pool cannot satisfy a
	// fetch or allocation because every frame is pinned. The caller decides
	// whether to retry; the tree never retries internally.
	ErrNoFreeFrames = base.ErrNoFreeFrames

	ErrPageNotFound = base.ErrPageNotFound
	ErrPagePinned   = base.ErrPagePinned

	ErrInvalidMagicNumber = base.ErrInvalidMagicNumber
	ErrInvalidVersion     = base.ErrInvalidVersion
	ErrInvalidPageSize    = base.ErrInvalidPageSize
	ErrInvalidChecksum    = base.ErrInvalidChecksum
)
