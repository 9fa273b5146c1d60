// Package devquery defines the device-query surface the target polls once
// per rendered frame, and the provider registry through which the real
// implementation is located by name.
//
// The target creates one device per class (pointer, keyboard) and then
// samples it on every frame, either through the whole-state query or the
// buffered discrete-event query. The shim decorates a real Provider and
// substitutes synthetic results on exactly these two query surfaces;
// everything else belongs to the real implementation.
package devquery

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sort"
	"sync"
)

// DeviceID names a well-known device instance, the equivalent of the
// class GUIDs the target passes at device-creation time.
type DeviceID string

// Well-known device identities.
const (
	SysPointer  DeviceID = "sys-pointer"
	SysKeyboard DeviceID = "sys-keyboard"
)

// Event is one entry of the buffered discrete-event query: a single
// object (axis or button) changed to a new value.
type Event struct {
	// Offset identifies the object within the device state record.
	Offset uint16

	// Value is the new object value.
	Value int32

	// Seq is the device-assigned sequence number.
	Seq uint32
}

// Device is one created device instance. Both queries follow the fixed
// external contract: SampleState writes the class's fixed-layout record
// into the caller's buffer, BufferedEvents drains up to max pending
// discrete events.
type Device interface {
	SampleState(buf []byte) error
	BufferedEvents(max int) ([]Event, error)
}

// Provider is the device-creation entry point of a device-query
// implementation.
type Provider interface {
	CreateDevice(id DeviceID) (Device, error)
}

// State record sizes and encoding constants.
const (
	// PointerStateSize is the wire size of the pointer state record:
	// three int32 axes followed by four button bytes.
	PointerStateSize = 16

	// KeyboardStateSize is the wire size of the keyboard state record:
	// one byte per key code.
	KeyboardStateSize = 256

	// ButtonCount is the number of pointer buttons in the record.
	ButtonCount = 4

	// Pressed is the high bit the record uses for a held button or key.
	Pressed byte = 0x80
)

// Errors shared by implementations.
var (
	ErrShortBuffer   = errors.New("devquery: state buffer too small")
	ErrUnknownDevice = errors.New("devquery: unknown device identity")
)

// PointerState is the decoded pointer state record. Axes are relative
// deltas since the previous sample.
type PointerState struct {
	DX, DY, DZ int32
	Buttons    [ButtonCount]byte
}

// Encode writes the record into buf in the fixed little-endian layout.
func (s *PointerState) Encode(buf []byte) error {
	if len(buf) < PointerStateSize {
		return ErrShortBuffer
	}
	binary.LittleEndian.PutUint32(buf[0:], uint32(s.DX))
	binary.LittleEndian.PutUint32(buf[4:], uint32(s.DY))
	binary.LittleEndian.PutUint32(buf[8:], uint32(s.DZ))
	copy(buf[12:PointerStateSize], s.Buttons[:])
	return nil
}

// Decode reads the record from buf.
func (s *PointerState) Decode(buf []byte) error {
	if len(buf) < PointerStateSize {
		return ErrShortBuffer
	}
	s.DX = int32(binary.LittleEndian.Uint32(buf[0:]))
	s.DY = int32(binary.LittleEndian.Uint32(buf[4:]))
	s.DZ = int32(binary.LittleEndian.Uint32(buf[8:]))
	copy(s.Buttons[:], buf[12:PointerStateSize])
	return nil
}

// Provider registry. The real implementation registers itself under a
// name and the shim resolves it at load time, the dynamic-load-by-name
// step of the fixed external contract.

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Provider)
)

// Register makes a provider available under name. Registering a nil
// provider or the same name twice panics, matching driver-registry
// convention.
func Register(name string, p Provider) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if p == nil {
		panic("devquery: Register provider is nil")
	}
	if _, dup := registry[name]; dup {
		panic("devquery: Register called twice for provider " + name)
	}
	registry[name] = p
}

// Resolve locates a registered provider by name.
func Resolve(name string) (Provider, error) {
	registryMu.RLock()
	p, ok := registry[name]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("devquery: provider %q not found (registered: %v)", name, Providers())
	}
	return p, nil
}

// Providers returns the names of all registered providers, sorted.
func Providers() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
