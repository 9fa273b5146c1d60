package channel

import (
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"frameinject/internal/gesture"
)

func testPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), DefaultName)
}

func createPair(t *testing.T) (shimSide, ctlSide *Channel) {
	t.Helper()
	path := testPath(t)
	shimSide, err := Create(path)
	require.NoError(t, err)
	t.Cleanup(func() { shimSide.Close() })
	ctlSide, err = Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { ctlSide.Close() })
	return shimSide, ctlSide
}

func TestCreate_PublishesReadiness(t *testing.T) {
	shimSide, ctlSide := createPair(t)

	assert.True(t, shimSide.Created())
	assert.False(t, ctlSide.Created())
	assert.True(t, ctlSide.Ready(), "readiness set by Create is visible to the other attachment")
	assert.Equal(t, gesture.KindNone, ctlSide.Kind())
	assert.False(t, ctlSide.Done())
}

func TestOpen_MissingChannel(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "nothing-here.ipc"))
	require.Error(t, err)
}

func TestCommit_VisibleAcrossAttachments(t *testing.T) {
	shimSide, ctlSide := createPair(t)

	ctlSide.Commit(gesture.Command{Kind: gesture.KindClick, X: 400, Y: 300})

	assert.Equal(t, gesture.KindClick, shimSide.Kind())
	x, y := shimSide.Target()
	assert.EqualValues(t, 400, x)
	assert.EqualValues(t, 300, y)
	assert.Equal(t, gesture.PhaseIdle, shimSide.Phase())
	assert.False(t, shimSide.Done())
	assert.Zero(t, shimSide.PollCount())
}

func TestCommit_ClearsPreviousCompletion(t *testing.T) {
	shimSide, ctlSide := createPair(t)

	ctlSide.Commit(gesture.Command{Kind: gesture.KindMove, X: 1, Y: 2})
	shimSide.SetPhase(gesture.PhaseMoveSettle)
	shimSide.Retire()
	require.True(t, ctlSide.Done())

	ctlSide.Commit(gesture.Command{Kind: gesture.KindKeypress, Key: 42})
	assert.False(t, shimSide.Done(), "a fresh command starts with done clear")
	assert.EqualValues(t, 42, shimSide.KeyCode())
}

func TestRetire_OrdersDoneLast(t *testing.T) {
	shimSide, ctlSide := createPair(t)

	ctlSide.Commit(gesture.Command{Kind: gesture.KindClick, X: 5, Y: 5})
	shimSide.SetPhase(gesture.PhaseBtnUp)
	shimSide.SetCursor(5, 5)
	shimSide.Retire()

	// A controller that observes done must also observe the command
	// already retired, or it could double-submit over a live sequence.
	require.True(t, ctlSide.Done())
	assert.Equal(t, gesture.KindNone, ctlSide.Kind())
	assert.Equal(t, gesture.PhaseIdle, ctlSide.Phase())
	x, y := ctlSide.Cursor()
	assert.EqualValues(t, 5, x)
	assert.EqualValues(t, 5, y)
}

func TestCommitRetire_ConcurrentReader(t *testing.T) {
	shimSide, ctlSide := createPair(t)

	const rounds = 200
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		// Shim loop: complete every command it observes.
		for done := 0; done < rounds; {
			if shimSide.Kind() == gesture.KindNone {
				continue
			}
			shimSide.SetPhase(gesture.PhaseBtnUp)
			shimSide.Retire()
			done++
		}
	}()

	for i := 0; i < rounds; i++ {
		ctlSide.Commit(gesture.Command{Kind: gesture.KindClick, X: int32(i), Y: int32(i)})
		for !ctlSide.Done() {
		}
		// Exactly-once: once done is observed the channel is idle.
		require.Equal(t, gesture.KindNone, ctlSide.Kind(), "round %d", i)
	}
	wg.Wait()
}

func TestRecreate_ZeroesRecord(t *testing.T) {
	path := testPath(t)
	first, err := Create(path)
	require.NoError(t, err)
	first.Commit(gesture.Command{Kind: gesture.KindClick, X: 9, Y: 9})
	require.NoError(t, first.Close())

	second, err := Create(path)
	require.NoError(t, err)
	defer second.Close()
	assert.Equal(t, gesture.KindNone, second.Kind(), "a restarted shim starts from a clean record")
	assert.True(t, second.Ready())
}
