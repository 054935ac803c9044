package base

import "errors"

var (
	ErrNoFreeFrames       = errors.New("buffer pool: all frames are pinned")
	ErrPageNotFound       = errors.New("page not found")
	ErrPagePinned         = errors.New("page is pinned")
	ErrInvalidMagicNumber = errors.New("invalid magic number")
	ErrInvalidVersion     = errors.New("invalid format version")
	ErrInvalidPageSize    = errors.New("invalid page size")
	ErrInvalidChecksum    = errors.New("invalid checksum")
)
