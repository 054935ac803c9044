//go:build linux

package storage

import "golang.org/x/sys/unix"

// fdatasync flushes file data without forcing a metadata sync
func (d *DiskManager) fdatasync() error {
	return unix.Fdatasync(int(d.file.Fd()))
}
