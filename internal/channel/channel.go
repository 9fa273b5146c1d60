// Package channel implements the cross-process command channel between
// the controller and the shim: a fixed 64-byte record in a shared
// mapping under a well-known name, updated only through word-sized
// atomic operations.
//
// There is no lock. Safety comes from protocol discipline:
//
//   - The controller never commits a new command while the previous
//     command's done flag is unset.
//   - The controller writes all payload fields before the final store
//     of the command kind; that store is the commit the shim polls for.
//   - Only the shim retires a command, and it sets done last, so a
//     controller that observes done also observes kind already cleared.
//
// The shim side creates the mapping (Create) on first successful
// acquisition of the real device-query interface; the controller side
// attaches to an existing mapping (Open) and reports not-ready if none
// exists.
package channel

import (
	"sync/atomic"
	"unsafe"

	"frameinject/internal/gesture"
)

// Size is the mapped record size. The ten protocol words occupy the
// first 40 bytes; the rest is reserved.
const Size = 64

// DefaultName is the well-known mapping name.
const DefaultName = "frameinject.ipc"

// Field offsets, all 4-byte aligned words.
const (
	offReady     = 0
	offKind      = 4
	offTargetX   = 8
	offTargetY   = 12
	offKeyCode   = 16
	offPhase     = 20
	offDone      = 24
	offPollCount = 28
	offCursorX   = 32
	offCursorY   = 36
)

// Channel is one attachment to the shared record. A Channel is safe for
// concurrent use from both sides of the protocol.
type Channel struct {
	mem     []byte
	created bool
	unmap   func() error
}

func (c *Channel) word(off int) *int32 {
	return (*int32)(unsafe.Pointer(&c.mem[off]))
}

func (c *Channel) load(off int) int32     { return atomic.LoadInt32(c.word(off)) }
func (c *Channel) store(off int, v int32) { atomic.StoreInt32(c.word(off), v) }

// Ready reports whether the shim has finished installing its overrides.
func (c *Channel) Ready() bool { return c.load(offReady) == 1 }

// SetReady publishes readiness. Shim side only.
func (c *Channel) SetReady() { c.store(offReady, 1) }

// Kind returns the in-flight command kind, KindNone when idle.
func (c *Channel) Kind() gesture.Kind { return gesture.Kind(c.load(offKind)) }

// Done reports whether the in-flight command has completed.
func (c *Channel) Done() bool { return c.load(offDone) == 1 }

// Phase returns the current injection phase.
func (c *Channel) Phase() gesture.Phase { return gesture.Phase(c.load(offPhase)) }

// SetPhase advances the phase. Shim side only.
func (c *Channel) SetPhase(p gesture.Phase) { c.store(offPhase, int32(p)) }

// PollCount returns the per-phase poll counter.
func (c *Channel) PollCount() int32 { return c.load(offPollCount) }

// SetPollCount updates the per-phase poll counter. Shim side only
// outside of a commit.
func (c *Channel) SetPollCount(n int32) { c.store(offPollCount, n) }

// Target returns the command's target coordinates.
func (c *Channel) Target() (x, y int32) {
	return c.load(offTargetX), c.load(offTargetY)
}

// KeyCode returns the command's key code.
func (c *Channel) KeyCode() int32 { return c.load(offKeyCode) }

// Cursor returns the shim's estimate of the target's cursor position
// after the last injected movement.
func (c *Channel) Cursor() (x, y int32) {
	return c.load(offCursorX), c.load(offCursorY)
}

// SetCursor records the cursor estimate. Shim side only.
func (c *Channel) SetCursor(x, y int32) {
	c.store(offCursorX, x)
	c.store(offCursorY, y)
}

// Commit writes a command's payload and then publishes it by storing
// the kind, which is the word the shim polls. Controller side only, and
// only once the previous command's done flag has been observed set.
func (c *Channel) Commit(cmd gesture.Command) {
	c.store(offTargetX, cmd.X)
	c.store(offTargetY, cmd.Y)
	c.store(offKeyCode, cmd.Key)
	c.store(offDone, 0)
	c.store(offPhase, int32(gesture.PhaseIdle))
	c.store(offPollCount, 0)
	c.store(offKind, int32(cmd.Kind))
}

// Retire completes the in-flight command: phase back to idle, kind
// cleared, done published last. Shim side only, on the terminal phase.
func (c *Channel) Retire() {
	c.store(offPhase, int32(gesture.PhaseIdle))
	c.store(offPollCount, 0)
	c.store(offKind, int32(gesture.KindNone))
	c.store(offDone, 1)
}

// Created reports whether this attachment created the mapping.
func (c *Channel) Created() bool { return c.created }

// Close detaches from the mapping. The record itself persists for other
// attachments until the last one is gone.
func (c *Channel) Close() error {
	if c.unmap == nil {
		return nil
	}
	unmap := c.unmap
	c.unmap = nil
	c.mem = nil
	return unmap()
}

func (c *Channel) init(mem []byte, created bool, unmap func() error) {
	c.mem = mem
	c.created = created
	c.unmap = unmap
	if created {
		for i := range mem {
			mem[i] = 0
		}
		c.SetReady()
	}
}
