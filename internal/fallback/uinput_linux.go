//go:build linux

package fallback

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Linux input constants. Defined locally; the uinput ABI is frozen.
const (
	evSyn = 0x00
	evKey = 0x01
	evRel = 0x02

	relX = 0x00
	relY = 0x01

	btnLeft = 0x110

	busUSB = 0x03

	uiSetEvbit   = 0x40045564 // _IOW('U', 100, int)
	uiSetKeybit  = 0x40045565 // _IOW('U', 101, int)
	uiSetRelbit  = 0x40045566 // _IOW('U', 102, int)
	uiDevCreate  = 0x5501     // _IO('U', 1)
	uiDevDestroy = 0x5502     // _IO('U', 2)
)

// uinputUserDev is the legacy setup record written before UI_DEV_CREATE.
type uinputUserDev struct {
	name [80]byte
	id   struct {
		bustype uint16
		vendor  uint16
		product uint16
		version uint16
	}
	ffEffectsMax uint32
	absmax       [64]int32
	absmin       [64]int32
	absfuzz      [64]int32
	absflat      [64]int32
}

type inputEvent struct {
	time  unix.Timeval
	etype uint16
	code  uint16
	value int32
}

type uinputInjector struct {
	f *os.File
}

// Open creates a virtual pointer+keyboard device on the uinput node.
// A missing or unopenable node means direct injection is unavailable on
// this host, not a configuration error.
func Open(device string) (Injector, error) {
	f, err := os.OpenFile(device, os.O_WRONLY|unix.O_NONBLOCK, 0o660)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) || errors.Is(err, fs.ErrPermission) {
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		return nil, fmt.Errorf("open %s: %w", device, err)
	}
	inj := &uinputInjector{f: f}
	if err := inj.setup(); err != nil {
		f.Close()
		return nil, fmt.Errorf("set up uinput device: %w", err)
	}
	return inj, nil
}

func (u *uinputInjector) setup() error {
	fd := int(u.f.Fd())
	for _, bit := range []int{evKey, evRel} {
		if err := unix.IoctlSetInt(fd, uiSetEvbit, bit); err != nil {
			return fmt.Errorf("enable event type %#x: %w", bit, err)
		}
	}
	for _, code := range []int{relX, relY} {
		if err := unix.IoctlSetInt(fd, uiSetRelbit, code); err != nil {
			return fmt.Errorf("enable relative axis %#x: %w", code, err)
		}
	}
	if err := unix.IoctlSetInt(fd, uiSetKeybit, btnLeft); err != nil {
		return fmt.Errorf("enable button: %w", err)
	}
	// The channel protocol carries single-byte key codes.
	for code := 1; code < 256; code++ {
		if err := unix.IoctlSetInt(fd, uiSetKeybit, code); err != nil {
			return fmt.Errorf("enable key %d: %w", code, err)
		}
	}

	var dev uinputUserDev
	copy(dev.name[:], "frameinject-fallback")
	dev.id.bustype = busUSB
	dev.id.vendor = 0x1d6b
	dev.id.product = 0x0104
	if _, err := u.f.Write((*[unsafe.Sizeof(dev)]byte)(unsafe.Pointer(&dev))[:]); err != nil {
		return fmt.Errorf("write device record: %w", err)
	}
	if err := unix.IoctlSetInt(fd, uiDevCreate, 0); err != nil {
		return fmt.Errorf("create device: %w", err)
	}
	// Give the input stack a moment to register the new node before
	// events are written at it.
	time.Sleep(150 * time.Millisecond)
	return nil
}

func (u *uinputInjector) emit(etype, code uint16, value int32) error {
	ev := inputEvent{etype: etype, code: code, value: value}
	_, err := u.f.Write((*[unsafe.Sizeof(ev)]byte)(unsafe.Pointer(&ev))[:])
	return err
}

func (u *uinputInjector) sync() error {
	return u.emit(evSyn, 0, 0)
}

func (u *uinputInjector) MoveRelative(dx, dy int32) error {
	if err := u.emit(evRel, relX, dx); err != nil {
		return err
	}
	if err := u.emit(evRel, relY, dy); err != nil {
		return err
	}
	return u.sync()
}

func (u *uinputInjector) Button(pressed bool) error {
	var v int32
	if pressed {
		v = 1
	}
	if err := u.emit(evKey, btnLeft, v); err != nil {
		return err
	}
	return u.sync()
}

func (u *uinputInjector) Key(code uint16, pressed bool) error {
	var v int32
	if pressed {
		v = 1
	}
	if err := u.emit(evKey, code, v); err != nil {
		return err
	}
	return u.sync()
}

func (u *uinputInjector) Close() error {
	unix.IoctlSetInt(int(u.f.Fd()), uiDevDestroy, 0)
	return u.f.Close()
}
