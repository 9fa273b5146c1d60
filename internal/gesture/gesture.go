// Package gesture implements the injection state machine that paces a
// command across the target's poll cadence.
//
// The machine is entirely externally driven: the target's own per-frame
// state query advances it by exactly one phase and receives exactly one
// synthetic sample. There is no timer and no goroutine. Collapsing
// phases would desynchronize the sequence from the frames the target
// actually renders, which is the instantaneous-jump problem the
// reset/move/settle split exists to avoid.
//
// Step functions are pure: the caller (the shim) owns all channel reads
// and writes around them.
package gesture

import "frameinject/internal/devquery"

// Kind is the command kind written to the command channel.
type Kind int32

// Command kinds. Values are part of the channel protocol.
const (
	KindNone     Kind = 0
	KindClick    Kind = 1
	KindMove     Kind = 2
	KindKeypress Kind = 3
)

// String returns the CLI spelling of the kind.
func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindClick:
		return "click"
	case KindMove:
		return "move"
	case KindKeypress:
		return "key"
	default:
		return "unknown"
	}
}

// Phase is one discrete step of an in-flight command. Values are part
// of the channel protocol; each kind owns a disjoint range.
type Phase int32

// Phases. PhaseIdle doubles as "no phase entered yet": the first poll
// after a commit maps it to the entry phase of the command kind.
const (
	PhaseIdle Phase = 0

	// Click sequence.
	PhaseReset   Phase = 1 // out-of-range negative delta, clamps cursor to origin
	PhaseMoveTo  Phase = 2 // delta from clamped origin to target
	PhaseSettle  Phase = 3 // zero delta, position processed before any button change
	PhaseBtnDown Phase = 4
	PhaseBtnHold Phase = 5
	PhaseBtnUp   Phase = 6

	// Move-only sequence.
	PhaseMoveReset  Phase = 10
	PhaseMoveMoveTo Phase = 11
	PhaseMoveSettle Phase = 12

	// Key-press sequence.
	PhaseKeyDown  Phase = 20
	PhaseKeyHold1 Phase = 21
	PhaseKeyHold2 Phase = 22
	PhaseKeyUp    Phase = 23
)

// ResetDelta is the per-axis delta of a reset phase: far past any
// screen dimension so the target's internal accumulator clamps to the
// origin regardless of where the cursor was.
const ResetDelta = -10000

// DefaultHoldPolls is the default number of extra held polls after the
// button-down poll. With the down poll itself the press is visible for
// two consecutive frames, the empirical minimum for edge-triggered
// consumers at frame-rate variance.
const DefaultHoldPolls = 1

// Command is the value object a controller submits: one gesture,
// consumed across multiple polls.
type Command struct {
	Kind Kind
	X, Y int32
	Key  int32
}

// Entry maps a command kind to the first phase of its sequence.
// ok is false for kinds that have no sequence.
func Entry(kind Kind) (Phase, bool) {
	switch kind {
	case KindClick:
		return PhaseReset, true
	case KindMove:
		return PhaseMoveReset, true
	case KindKeypress:
		return PhaseKeyDown, true
	default:
		return PhaseIdle, false
	}
}

// PointerStep is the outcome of one pointer-class poll.
type PointerStep struct {
	// Next is the phase the channel should hold for the next poll.
	Next Phase

	// NextFrame is the per-phase frame counter for the next poll.
	NextFrame int32

	// Sample is the synthetic state to write into the caller's buffer.
	Sample devquery.PointerState

	// CursorX, CursorY estimate where the target's accumulator now
	// points. Valid only when CursorKnown is set (reset and move-to
	// phases establish it).
	CursorX, CursorY int32
	CursorKnown      bool

	// Done marks the terminal phase: the command is complete and the
	// caller must retire it.
	Done bool
}

// StepPointer consumes one pointer-class poll. phase is the current
// channel phase, frame the per-phase counter, (targetX, targetY) the
// command payload, holdPolls the configured extra held polls (values
// below 1 are treated as 1). ok is false for a phase this machine does
// not recognize; the caller must fail open and return the real sample.
func StepPointer(phase Phase, frame, targetX, targetY, holdPolls int32) (PointerStep, bool) {
	if holdPolls < 1 {
		holdPolls = DefaultHoldPolls
	}
	var st PointerStep
	switch phase {
	case PhaseReset, PhaseMoveReset:
		st.Sample.DX = ResetDelta
		st.Sample.DY = ResetDelta
		st.CursorX, st.CursorY = 0, 0
		st.CursorKnown = true
		if phase == PhaseReset {
			st.Next = PhaseMoveTo
		} else {
			st.Next = PhaseMoveMoveTo
		}

	case PhaseMoveTo, PhaseMoveMoveTo:
		// Delta from the clamped origin lands exactly on the target.
		st.Sample.DX = targetX
		st.Sample.DY = targetY
		st.CursorX, st.CursorY = targetX, targetY
		st.CursorKnown = true
		if phase == PhaseMoveTo {
			st.Next = PhaseSettle
		} else {
			st.Next = PhaseMoveSettle
		}

	case PhaseSettle:
		st.Next = PhaseBtnDown

	case PhaseMoveSettle:
		st.Next = PhaseIdle
		st.Done = true

	case PhaseBtnDown:
		st.Sample.Buttons[0] = devquery.Pressed
		st.Next = PhaseBtnHold

	case PhaseBtnHold:
		st.Sample.Buttons[0] = devquery.Pressed
		st.NextFrame = frame + 1
		if st.NextFrame >= holdPolls {
			st.Next = PhaseBtnUp
			st.NextFrame = 0
		} else {
			st.Next = PhaseBtnHold
		}

	case PhaseBtnUp:
		st.Next = PhaseIdle
		st.Done = true

	default:
		return PointerStep{}, false
	}
	return st, true
}

// KeyStep is the outcome of one keyboard-class poll.
type KeyStep struct {
	Next    Phase
	Pressed bool
	Done    bool
}

// StepKeyboard consumes one keyboard-class poll. The sequence is fixed
// at down, two held polls, up: the two holds debounce targets that
// sample-and-compare across frames. ok is false for an unrecognized
// phase (fail open).
func StepKeyboard(phase Phase) (KeyStep, bool) {
	switch phase {
	case PhaseKeyDown:
		return KeyStep{Next: PhaseKeyHold1, Pressed: true}, true
	case PhaseKeyHold1:
		return KeyStep{Next: PhaseKeyHold2, Pressed: true}, true
	case PhaseKeyHold2:
		return KeyStep{Next: PhaseKeyUp, Pressed: true}, true
	case PhaseKeyUp:
		return KeyStep{Next: PhaseIdle, Done: true}, true
	default:
		return KeyStep{}, false
	}
}
