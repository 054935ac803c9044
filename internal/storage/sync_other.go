//go:build !linux

package storage

func (d *DiskManager) fdatasync() error {
	return d.file.Sync()
}
