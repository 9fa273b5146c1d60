//go:build !windows

package channel

import (
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"
)

// DefaultPath returns the well-known mapping path: a file under
// /dev/shm where available, the temp dir otherwise. Both sides must
// resolve the same path for independent processes to meet.
func DefaultPath() string {
	if info, err := os.Stat("/dev/shm"); err == nil && info.IsDir() {
		return filepath.Join("/dev/shm", DefaultName)
	}
	return filepath.Join(os.TempDir(), DefaultName)
}

// Create creates (or re-creates) the backing file at path, maps it
// shared, zeroes the record, and publishes readiness. Shim side.
func Create(path string) (*Channel, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("create channel backing file: %w", err)
	}
	defer f.Close()
	if err := f.Truncate(Size); err != nil {
		return nil, fmt.Errorf("size channel backing file: %w", err)
	}
	return mapFile(f, true)
}

// Open attaches to an existing mapping at path. Controller side. The
// error distinguishes "no shim has created the channel" from mapping
// failures only by wrapping: callers treat both as channel-open
// failures.
func Open(path string) (*Channel, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("open channel %s: %w", path, err)
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat channel %s: %w", path, err)
	}
	if info.Size() < Size {
		return nil, fmt.Errorf("channel %s truncated: %d bytes", path, info.Size())
	}
	return mapFile(f, false)
}

func mapFile(f *os.File, created bool) (*Channel, error) {
	mem, err := unix.Mmap(int(f.Fd()), 0, Size,
		unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("map channel: %w", err)
	}
	c := &Channel{}
	c.init(mem, created, func() error { return unix.Munmap(mem) })
	return c, nil
}
