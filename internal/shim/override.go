package shim

import (
	"frameinject/internal/devquery"
	"frameinject/internal/gesture"
)

// pointerOverride decorates the real pointer device. The whole-state
// query always runs the real implementation first, so the real device's
// internal accumulator keeps draining, and only then overwrites the
// caller's buffer with one synthetic sample per poll while a click or
// move command is in flight.
type pointerOverride struct {
	shim *Shim
	real devquery.Device
}

func (d *pointerOverride) SampleState(buf []byte) error {
	err := d.real.SampleState(buf)

	s := d.shim
	kind := s.inFlight()
	if kind != gesture.KindClick && kind != gesture.KindMove {
		return err
	}
	if len(buf) < devquery.PointerStateSize {
		return err
	}

	tx, ty := s.ch.Target()
	phase := s.enterPhase(kind)
	step, ok := gesture.StepPointer(phase, s.ch.PollCount(), tx, ty, s.holdPolls)
	if !ok {
		// Unrecognized phase: fail open with the real sample.
		return err
	}

	if encErr := step.Sample.Encode(buf); encErr != nil {
		return err
	}
	if step.CursorKnown {
		s.ch.SetCursor(step.CursorX, step.CursorY)
	}
	if step.Done {
		s.log.Info("pointer command complete", "kind", kind.String(), "x", tx, "y", ty)
		s.ch.Retire()
		return nil
	}
	s.ch.SetPhase(step.Next)
	s.ch.SetPollCount(step.NextFrame)
	return nil
}

// BufferedEvents reports zero pending events while a pointer command is
// in flight, forcing the target down to the sampled query where the
// injection happens. Otherwise it forwards.
func (d *pointerOverride) BufferedEvents(max int) ([]devquery.Event, error) {
	kind := d.shim.inFlight()
	if kind == gesture.KindClick || kind == gesture.KindMove {
		return nil, nil
	}
	return d.real.BufferedEvents(max)
}

// keyboardOverride decorates the real keyboard device for keypress
// commands.
type keyboardOverride struct {
	shim *Shim
	real devquery.Device
}

func (d *keyboardOverride) SampleState(buf []byte) error {
	err := d.real.SampleState(buf)

	s := d.shim
	if s.inFlight() != gesture.KindKeypress {
		return err
	}
	if len(buf) < devquery.KeyboardStateSize {
		return err
	}
	key := s.ch.KeyCode()
	if key < 0 || key >= devquery.KeyboardStateSize {
		return err
	}

	phase := s.enterPhase(gesture.KindKeypress)
	step, ok := gesture.StepKeyboard(phase)
	if !ok {
		return err
	}

	if step.Pressed {
		buf[key] = devquery.Pressed
	} else {
		buf[key] = 0
	}
	if step.Done {
		s.log.Info("key press complete", "key", key)
		s.ch.Retire()
		return nil
	}
	s.ch.SetPhase(step.Next)
	return nil
}

func (d *keyboardOverride) BufferedEvents(max int) ([]devquery.Event, error) {
	if d.shim.inFlight() == gesture.KindKeypress {
		return nil, nil
	}
	return d.real.BufferedEvents(max)
}
