//go:build unix

package dataset

import (
	"os"

	"golang.org/x/sys/unix"
)

// mapStorage maps n bytes of a fresh file in dir. The file is unlinked right
// away, so the storage disappears with the mapping.
func mapStorage(dir string, n int) ([]byte, func() error, error) {
	f, err := os.CreateTemp(dir, "tilefill-*.map")
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()
	defer os.Remove(f.Name())

	if err := f.Truncate(int64(n)); err != nil {
		return nil, nil, err
	}

	buf, err := unix.Mmap(int(f.Fd()), 0, n, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, nil, err
	}
	return buf, func() error { return unix.Munmap(buf) }, nil
}
