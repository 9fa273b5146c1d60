package control

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"frameinject/internal/channel"
	"frameinject/internal/devquery"
	"frameinject/internal/gesture"
	"frameinject/internal/shim"
)

func init() {
	devquery.Register("control-test", zeroProvider{})
}

// zeroProvider is a minimal real implementation for hosting the shim.
type zeroProvider struct{}

type zeroDevice struct{}

func (zeroProvider) CreateDevice(id devquery.DeviceID) (devquery.Device, error) {
	return zeroDevice{}, nil
}

func (zeroDevice) SampleState(buf []byte) error {
	for i := range buf {
		buf[i] = 0
	}
	return nil
}

func (zeroDevice) BufferedEvents(max int) ([]devquery.Event, error) { return nil, nil }

// simTarget polls the shim's devices on a fast cadence until stopped,
// playing the target's render loop.
type simTarget struct {
	stop chan struct{}
	done chan struct{}
}

func startSimTarget(t *testing.T, s *shim.Shim) *simTarget {
	t.Helper()
	pointer, err := s.CreateDevice(devquery.SysPointer)
	require.NoError(t, err)
	keyboard, err := s.CreateDevice(devquery.SysKeyboard)
	require.NoError(t, err)

	st := &simTarget{stop: make(chan struct{}), done: make(chan struct{})}
	go func() {
		defer close(st.done)
		pbuf := make([]byte, devquery.PointerStateSize)
		kbuf := make([]byte, devquery.KeyboardStateSize)
		ticker := time.NewTicker(2 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-st.stop:
				return
			case <-ticker.C:
				pointer.SampleState(pbuf)
				keyboard.SampleState(kbuf)
			}
		}
	}()
	t.Cleanup(st.halt)
	return st
}

func (st *simTarget) halt() {
	select {
	case <-st.done:
	default:
		close(st.stop)
		<-st.done
	}
}

func testConfig(path string) Config {
	return Config{
		ChannelPath:    path,
		PollInterval:   2 * time.Millisecond,
		CommandTimeout: 2 * time.Second,
		StaleTimeout:   200 * time.Millisecond,
	}
}

func newFixture(t *testing.T) (*shim.Shim, *Client, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), channel.DefaultName)
	s, err := shim.New("control-test", shim.Options{ChannelPath: path})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NotNil(t, s.Channel())

	client, err := Open(testConfig(path))
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return s, client, path
}

func TestOpen_NoChannel(t *testing.T) {
	_, err := Open(testConfig(filepath.Join(t.TempDir(), "absent.ipc")))
	require.Error(t, err)
}

func TestSubmit_ClickCompletes(t *testing.T) {
	s, client, _ := newFixture(t)
	startSimTarget(t, s)

	res, err := client.Submit(context.Background(),
		gesture.Command{Kind: gesture.KindClick, X: 400, Y: 300})
	require.NoError(t, err)
	assert.EqualValues(t, 400, res.CursorX)
	assert.EqualValues(t, 300, res.CursorY)

	x, y := client.Cursor()
	assert.EqualValues(t, 400, x)
	assert.EqualValues(t, 300, y)
}

func TestSubmit_NotAttachedFailsFast(t *testing.T) {
	// A channel file that exists but was never published by a shim:
	// ready stays unset.
	path := filepath.Join(t.TempDir(), channel.DefaultName)
	require.NoError(t, os.WriteFile(path, make([]byte, channel.Size), 0o644))

	client, err := Open(testConfig(path))
	require.NoError(t, err)
	defer client.Close()

	assert.False(t, client.Attached())

	start := time.Now()
	_, err = client.Submit(context.Background(), gesture.Command{Kind: gesture.KindClick})
	require.ErrorIs(t, err, ErrNotAttached)
	assert.Less(t, time.Since(start), 100*time.Millisecond,
		"no readiness means no waiting out the timeout")
}

func TestSubmit_TimeoutWhenTargetStopsPolling(t *testing.T) {
	_, client, _ := newFixture(t)
	// No sim target: nothing ever advances the sequence.

	cfg := client.cfg
	cfg.CommandTimeout = 50 * time.Millisecond
	client.cfg = cfg

	_, err := client.Submit(context.Background(),
		gesture.Command{Kind: gesture.KindClick, X: 1, Y: 1})
	require.ErrorIs(t, err, ErrTimeout)

	// Timeout never force-resets the channel: the command is still
	// nominally in flight and only the shim may retire it.
	assert.Equal(t, gesture.KindClick, client.ch.Kind())
	assert.False(t, client.ch.Done())
}

func TestSubmit_SerializesAgainstInFlight(t *testing.T) {
	s, client, path := newFixture(t)

	// A previous controller left a command mid-sequence.
	stale, err := channel.Open(path)
	require.NoError(t, err)
	defer stale.Close()
	stale.Commit(gesture.Command{Kind: gesture.KindMove, X: 9, Y: 9})

	// Submit starts waiting the stale command out; the target begins
	// polling shortly after.
	type outcome struct {
		res Result
		err error
	}
	resCh := make(chan outcome, 1)
	go func() {
		res, err := client.Submit(context.Background(),
			gesture.Command{Kind: gesture.KindClick, X: 50, Y: 60})
		resCh <- outcome{res, err}
	}()

	time.Sleep(20 * time.Millisecond)
	startSimTarget(t, s)

	got := <-resCh
	require.NoError(t, got.err, "second submission waits for the first, then runs")
	assert.EqualValues(t, 50, got.res.CursorX)
}

func TestSubmit_StaleTimeout(t *testing.T) {
	_, client, path := newFixture(t)

	stale, err := channel.Open(path)
	require.NoError(t, err)
	defer stale.Close()
	stale.Commit(gesture.Command{Kind: gesture.KindMove, X: 9, Y: 9})

	// No polling target: the stale command can never finish.
	_, err = client.Submit(context.Background(),
		gesture.Command{Kind: gesture.KindClick, X: 1, Y: 1})
	require.ErrorIs(t, err, ErrTimeout)
	assert.Equal(t, gesture.KindMove, client.ch.Kind(),
		"the stale command is left for its shim, not clobbered")
}

func TestAttached_NeverMutates(t *testing.T) {
	_, client, path := newFixture(t)

	probe, err := channel.Open(path)
	require.NoError(t, err)
	defer probe.Close()
	probe.Commit(gesture.Command{Kind: gesture.KindClick, X: 7, Y: 8})

	for i := 0; i < 50; i++ {
		require.True(t, client.Attached())
	}
	assert.Equal(t, gesture.KindClick, probe.Kind())
	x, y := probe.Target()
	assert.EqualValues(t, 7, x)
	assert.EqualValues(t, 8, y)
	assert.False(t, probe.Done())
}

func TestWaitAttach(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, channel.DefaultName)

	go func() {
		time.Sleep(50 * time.Millisecond)
		ch, err := channel.Create(path)
		if err == nil {
			defer ch.Close()
			time.Sleep(500 * time.Millisecond)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	client, err := WaitAttach(ctx, testConfig(path))
	require.NoError(t, err)
	defer client.Close()
	assert.True(t, client.Attached())
}

func TestWaitAttach_Timeout(t *testing.T) {
	path := filepath.Join(t.TempDir(), channel.DefaultName)
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_, err := WaitAttach(ctx, testConfig(path))
	require.ErrorIs(t, err, ErrNotAttached)
}
