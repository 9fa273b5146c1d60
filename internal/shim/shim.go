// Package shim implements the interception layer that sits between the
// target and the real device-query implementation.
//
// The shim is a decorator: it resolves the real provider by name,
// forwards every call to it, and substitutes synthetic output on
// exactly two query surfaces (the sampled whole-state query and the
// buffered discrete-event query), only while a command of the matching
// device kind is in flight on the command channel.
//
// The shim executes synchronously on the target's own poll path. It
// never spawns goroutines, never blocks, and on any ambiguous state
// fails open by returning the real sample unchanged: a fault here
// faults the host application.
package shim

import (
	"fmt"
	"log/slog"

	"frameinject/internal/channel"
	"frameinject/internal/devquery"
	"frameinject/internal/gesture"
)

// Options configures a Shim.
type Options struct {
	// ChannelPath is the command-channel mapping path. Empty means the
	// well-known default.
	ChannelPath string

	// HoldPolls is the number of extra held polls after the button-down
	// poll of a click. Zero means gesture.DefaultHoldPolls.
	HoldPolls int32

	// Logger receives shim diagnostics. The shim must never write to
	// the target's stdout, so callers pass a file-backed logger; nil
	// discards.
	Logger *slog.Logger
}

// Shim holds all process-wide interception state: the real provider,
// the command channel, and the saved device identities. It is
// constructed once, at first successful acquisition of the real
// interface, and passed explicitly to every override.
type Shim struct {
	log  *slog.Logger
	real devquery.Provider
	ch   *channel.Channel

	holdPolls int32

	// Saved identities: which real device instance is pointer and
	// which is keyboard. Set at device-creation time.
	pointer  devquery.Device
	keyboard devquery.Device
}

// New resolves the real device-query provider and, on success, creates
// the command channel. A provider that cannot be located is fatal: with
// nothing to forward to, no entry point can be served. A channel that
// cannot be created only disables injection; the shim still forwards
// everything so the target stays usable.
func New(providerName string, opts Options) (*Shim, error) {
	real, err := devquery.Resolve(providerName)
	if err != nil {
		return nil, fmt.Errorf("shim: locate real provider: %w", err)
	}

	log := opts.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	holdPolls := opts.HoldPolls
	if holdPolls < 1 {
		holdPolls = gesture.DefaultHoldPolls
	}

	path := opts.ChannelPath
	if path == "" {
		path = channel.DefaultPath()
	}
	ch, err := channel.Create(path)
	if err != nil {
		log.Warn("command channel unavailable, injection disabled", "path", path, "error", err)
		ch = nil
	} else {
		log.Info("command channel ready", "path", path)
	}

	return &Shim{log: log, real: real, ch: ch, holdPolls: holdPolls}, nil
}

// Channel exposes the shim's channel attachment. Nil when channel
// creation failed.
func (s *Shim) Channel() *channel.Channel { return s.ch }

// Close detaches from the command channel.
func (s *Shim) Close() error {
	if s.ch == nil {
		return nil
	}
	return s.ch.Close()
}

// CreateDevice delegates to the real provider first and, only on
// success, installs a per-class override around pointer and keyboard
// devices. All other device identities pass through untouched.
//
// A class created a second time (re-acquisition after a mode change)
// replaces the saved identity and returns a fresh override; the
// previous override keeps forwarding to its own real device, so the
// replacement is harmless.
func (s *Shim) CreateDevice(id devquery.DeviceID) (devquery.Device, error) {
	dev, err := s.real.CreateDevice(id)
	if err != nil || dev == nil {
		return dev, err
	}

	switch id {
	case devquery.SysPointer:
		if s.pointer != nil {
			s.log.Warn("pointer device created again, replacing saved identity")
		}
		s.pointer = dev
		s.log.Info("pointer override installed")
		return &pointerOverride{shim: s, real: dev}, nil
	case devquery.SysKeyboard:
		if s.keyboard != nil {
			s.log.Warn("keyboard device created again, replacing saved identity")
		}
		s.keyboard = dev
		s.log.Info("keyboard override installed")
		return &keyboardOverride{shim: s, real: dev}, nil
	}
	return dev, nil
}

// inFlight reports the channel's in-flight command kind, KindNone when
// the channel is absent, idle, or already done. Invoked before the
// channel exists it simply reports no command.
func (s *Shim) inFlight() gesture.Kind {
	if s.ch == nil {
		return gesture.KindNone
	}
	kind := s.ch.Kind()
	if kind == gesture.KindNone || s.ch.Done() {
		return gesture.KindNone
	}
	return kind
}

// enterPhase maps an idle phase to the entry phase of kind, persisting
// it so the sequence survives across polls.
func (s *Shim) enterPhase(kind gesture.Kind) gesture.Phase {
	phase := s.ch.Phase()
	if phase != gesture.PhaseIdle {
		return phase
	}
	entry, ok := gesture.Entry(kind)
	if !ok {
		return phase
	}
	s.ch.SetPhase(entry)
	s.ch.SetPollCount(0)
	return entry
}
