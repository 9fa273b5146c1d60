// Package fallback provides direct input injection through the host's
// ordinary virtual-input plumbing. It is the stateless collaborator the
// controller reaches for only when the interception shim is not
// available: unlike the shim it cannot pace itself to the target's
// frames, so it spaces its steps with wall-clock sleeps instead.
package fallback

import (
	"errors"
	"time"
)

// ErrUnavailable means the platform offers no direct-injection path.
var ErrUnavailable = errors.New("fallback injection unavailable")

// Injector is a virtual input device.
type Injector interface {
	// MoveRelative moves the pointer by a relative delta.
	MoveRelative(dx, dy int32) error

	// Button presses or releases the primary button.
	Button(pressed bool) error

	// Key presses or releases a key code.
	Key(code uint16, pressed bool) error

	Close() error
}

// settle spaces injection steps far enough apart that a 60 Hz consumer
// cannot miss one.
const settle = 50 * time.Millisecond

// Click sweeps the pointer to the origin, moves to (x, y), and clicks.
// The sweep mirrors the shim's reset phase: without a readable cursor
// position, a large negative delta is the only way to establish a known
// origin.
func Click(inj Injector, x, y int32) error {
	if err := Move(inj, x, y); err != nil {
		return err
	}
	time.Sleep(settle)
	if err := inj.Button(true); err != nil {
		return err
	}
	time.Sleep(settle)
	return inj.Button(false)
}

// Move sweeps the pointer to the origin and then to (x, y).
func Move(inj Injector, x, y int32) error {
	if err := inj.MoveRelative(-10000, -10000); err != nil {
		return err
	}
	time.Sleep(settle)
	return inj.MoveRelative(x, y)
}

// PressKey presses and releases a key code.
func PressKey(inj Injector, code uint16) error {
	if err := inj.Key(code, true); err != nil {
		return err
	}
	time.Sleep(settle)
	return inj.Key(code, false)
}
