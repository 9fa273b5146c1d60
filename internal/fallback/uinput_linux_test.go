//go:build linux

package fallback

import (
	"os"
	"path/filepath"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// captureInjector writes its events into a plain file instead of the
// uinput node, so the emitted records can be decoded back.
func captureInjector(t *testing.T) (*uinputInjector, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "events.bin")
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE, 0o644)
	require.NoError(t, err)
	t.Cleanup(func() { f.Close() })
	return &uinputInjector{f: f}, path
}

func readEvents(t *testing.T, path string) []inputEvent {
	t.Helper()
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	size := int(unsafe.Sizeof(inputEvent{}))
	require.Zero(t, len(raw)%size, "partial event record")
	events := make([]inputEvent, len(raw)/size)
	for i := range events {
		events[i] = *(*inputEvent)(unsafe.Pointer(&raw[i*size]))
	}
	return events
}

func TestMoveRelative_EmitsAxesThenSync(t *testing.T) {
	inj, path := captureInjector(t)
	require.NoError(t, inj.MoveRelative(-10000, 300))

	events := readEvents(t, path)
	require.Len(t, events, 3)
	assert.Equal(t, uint16(evRel), events[0].etype)
	assert.Equal(t, uint16(relX), events[0].code)
	assert.Equal(t, int32(-10000), events[0].value)
	assert.Equal(t, uint16(relY), events[1].code)
	assert.Equal(t, int32(300), events[1].value)
	assert.Equal(t, uint16(evSyn), events[2].etype)
}

func TestButton_EmitsPressAndRelease(t *testing.T) {
	inj, path := captureInjector(t)
	require.NoError(t, inj.Button(true))
	require.NoError(t, inj.Button(false))

	events := readEvents(t, path)
	require.Len(t, events, 4)
	assert.Equal(t, uint16(evKey), events[0].etype)
	assert.Equal(t, uint16(btnLeft), events[0].code)
	assert.Equal(t, int32(1), events[0].value)
	assert.Equal(t, int32(0), events[2].value)
}

func TestKey_EmitsCode(t *testing.T) {
	inj, path := captureInjector(t)
	require.NoError(t, inj.Key(42, true))

	events := readEvents(t, path)
	require.Len(t, events, 2)
	assert.Equal(t, uint16(evKey), events[0].etype)
	assert.Equal(t, uint16(42), events[0].code)
	assert.Equal(t, int32(1), events[0].value)
}
