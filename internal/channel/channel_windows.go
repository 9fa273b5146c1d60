//go:build windows

package channel

import (
	"fmt"
	"os"
	"path/filepath"
	"unsafe"

	"golang.org/x/sys/windows"
)

// DefaultPath returns the well-known mapping name. On Windows the
// record lives in a named section object, not a file; only the base
// name of the path is significant.
func DefaultPath() string {
	return filepath.Join(os.TempDir(), DefaultName)
}

// mappingName derives the section object name from a channel path so
// both sides land on the same object whatever directory the path
// nominally points into.
func mappingName(path string) string {
	return "Local\\" + filepath.Base(path)
}

// Create creates the named section and maps a view. Shim side.
func Create(path string) (*Channel, error) {
	name, err := windows.UTF16PtrFromString(mappingName(path))
	if err != nil {
		return nil, err
	}
	h, err := windows.CreateFileMapping(windows.InvalidHandle, nil,
		windows.PAGE_READWRITE, 0, Size, name)
	if err != nil {
		return nil, fmt.Errorf("create channel mapping: %w", err)
	}
	return mapView(h, true)
}

// Open attaches to an existing named section. Controller side.
func Open(path string) (*Channel, error) {
	name, err := windows.UTF16PtrFromString(mappingName(path))
	if err != nil {
		return nil, err
	}
	h, err := windows.OpenFileMapping(windows.FILE_MAP_READ|windows.FILE_MAP_WRITE, 0, name)
	if err != nil {
		return nil, fmt.Errorf("open channel %s: %w", mappingName(path), err)
	}
	return mapView(h, false)
}

func mapView(h windows.Handle, created bool) (*Channel, error) {
	addr, err := windows.MapViewOfFile(h,
		windows.FILE_MAP_READ|windows.FILE_MAP_WRITE, 0, 0, Size)
	if err != nil {
		windows.CloseHandle(h)
		return nil, fmt.Errorf("map channel view: %w", err)
	}
	mem := unsafe.Slice((*byte)(unsafe.Pointer(addr)), Size)
	c := &Channel{}
	c.init(mem, created, func() error {
		if err := windows.UnmapViewOfFile(addr); err != nil {
			windows.CloseHandle(h)
			return err
		}
		return windows.CloseHandle(h)
	})
	return c, nil
}
