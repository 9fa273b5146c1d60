package gesture

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"frameinject/internal/devquery"
)

// runPointer drives the pointer machine the way the shim does: enter
// from idle, then one step per poll until done, recording each phase
// consumed and each sample produced.
func runPointer(t *testing.T, kind Kind, x, y, holdPolls int32) (phases []Phase, samples []devquery.PointerState) {
	t.Helper()
	phase, ok := Entry(kind)
	require.True(t, ok)
	var frame int32
	for polls := 0; ; polls++ {
		require.Less(t, polls, 64, "machine never reached a terminal phase")
		st, ok := StepPointer(phase, frame, x, y, holdPolls)
		require.True(t, ok, "phase %d must be recognized", phase)
		phases = append(phases, phase)
		samples = append(samples, st.Sample)
		if st.Done {
			assert.Equal(t, PhaseIdle, st.Next)
			return phases, samples
		}
		phase, frame = st.Next, st.NextFrame
	}
}

func TestClickSequence_DefaultHold(t *testing.T) {
	phases, samples := runPointer(t, KindClick, 400, 300, DefaultHoldPolls)

	require.Equal(t, []Phase{
		PhaseReset, PhaseMoveTo, PhaseSettle, PhaseBtnDown, PhaseBtnHold, PhaseBtnUp,
	}, phases, "strict phase ordering, one phase per poll")

	// Reset clamps toward the origin with an out-of-range delta.
	assert.EqualValues(t, ResetDelta, samples[0].DX)
	assert.EqualValues(t, ResetDelta, samples[0].DY)
	assert.Zero(t, samples[0].Buttons[0])

	// Second poll lands exactly on the target from the clamped origin.
	assert.EqualValues(t, 400, samples[1].DX)
	assert.EqualValues(t, 300, samples[1].DY)

	// Settle frame: zero delta, no button change yet.
	assert.Zero(t, samples[2].DX)
	assert.Zero(t, samples[2].DY)
	assert.Zero(t, samples[2].Buttons[0])

	// Press bit visible on consecutive polls, released on the last.
	assert.Equal(t, devquery.Pressed, samples[3].Buttons[0])
	assert.Equal(t, devquery.Pressed, samples[4].Buttons[0])
	assert.Zero(t, samples[5].Buttons[0])
}

func TestClickSequence_SixPollsToDone(t *testing.T) {
	phases, _ := runPointer(t, KindClick, 400, 300, DefaultHoldPolls)
	assert.Len(t, phases, 6, "a default click completes in exactly 6 poll cycles")
}

func TestClickSequence_ExtendedHold(t *testing.T) {
	phases, samples := runPointer(t, KindClick, 10, 20, 3)

	require.Equal(t, []Phase{
		PhaseReset, PhaseMoveTo, PhaseSettle,
		PhaseBtnDown, PhaseBtnHold, PhaseBtnHold, PhaseBtnHold, PhaseBtnUp,
	}, phases, "only the hold phase repeats")

	for i := 3; i < 7; i++ {
		assert.Equal(t, devquery.Pressed, samples[i].Buttons[0], "poll %d", i)
	}
	assert.Zero(t, samples[7].Buttons[0])
}

func TestMoveSequence(t *testing.T) {
	phases, samples := runPointer(t, KindMove, 120, 80, DefaultHoldPolls)

	require.Equal(t, []Phase{PhaseMoveReset, PhaseMoveMoveTo, PhaseMoveSettle}, phases)
	for _, s := range samples {
		assert.Zero(t, s.Buttons[0], "a move never touches buttons")
	}
	assert.EqualValues(t, 120, samples[1].DX)
	assert.EqualValues(t, 80, samples[1].DY)
}

func TestKeySequence(t *testing.T) {
	phase, ok := Entry(KindKeypress)
	require.True(t, ok)

	var phases []Phase
	var pressed []bool
	for {
		st, ok := StepKeyboard(phase)
		require.True(t, ok)
		phases = append(phases, phase)
		pressed = append(pressed, st.Pressed)
		if st.Done {
			assert.Equal(t, PhaseIdle, st.Next)
			break
		}
		phase = st.Next
	}

	require.Equal(t, []Phase{PhaseKeyDown, PhaseKeyHold1, PhaseKeyHold2, PhaseKeyUp}, phases,
		"4 poll cycles: down, two debounce holds, up")
	assert.Equal(t, []bool{true, true, true, false}, pressed,
		"bit set during cycles 1-3, cleared at cycle 4")
}

func TestCursorEstimate(t *testing.T) {
	st, ok := StepPointer(PhaseReset, 0, 640, 480, 1)
	require.True(t, ok)
	require.True(t, st.CursorKnown)
	assert.Zero(t, st.CursorX)
	assert.Zero(t, st.CursorY)

	st, ok = StepPointer(PhaseMoveTo, 0, 640, 480, 1)
	require.True(t, ok)
	require.True(t, st.CursorKnown)
	assert.EqualValues(t, 640, st.CursorX)
	assert.EqualValues(t, 480, st.CursorY)

	st, ok = StepPointer(PhaseSettle, 0, 640, 480, 1)
	require.True(t, ok)
	assert.False(t, st.CursorKnown, "settle does not move the cursor")
}

func TestUnrecognizedPhase_FailsOpen(t *testing.T) {
	_, ok := StepPointer(Phase(99), 0, 0, 0, 1)
	assert.False(t, ok)

	_, ok = StepPointer(PhaseKeyDown, 0, 0, 0, 1)
	assert.False(t, ok, "keyboard phases are not pointer phases")

	_, ok = StepKeyboard(Phase(99))
	assert.False(t, ok)

	_, ok = StepKeyboard(PhaseReset)
	assert.False(t, ok, "pointer phases are not keyboard phases")
}

func TestEntry(t *testing.T) {
	tests := []struct {
		kind Kind
		want Phase
		ok   bool
	}{
		{KindClick, PhaseReset, true},
		{KindMove, PhaseMoveReset, true},
		{KindKeypress, PhaseKeyDown, true},
		{KindNone, PhaseIdle, false},
		{Kind(42), PhaseIdle, false},
	}
	for _, tc := range tests {
		got, ok := Entry(tc.kind)
		assert.Equal(t, tc.ok, ok, "kind %d", tc.kind)
		assert.Equal(t, tc.want, got, "kind %d", tc.kind)
	}
}

func TestHoldPolls_FloorsAtOne(t *testing.T) {
	// A zero or negative configuration must not collapse the hold
	// phase out of the sequence.
	phases, _ := runPointer(t, KindClick, 1, 1, 0)
	assert.Contains(t, phases, PhaseBtnHold)
}
