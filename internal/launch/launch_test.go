//go:build !windows

package launch

import (
	"bufio"
	"context"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"frameinject/internal/config"
)

func testConfig(target string) config.LaunchConfig {
	return config.LaunchConfig{
		TargetPath:      target,
		AssetList:       "UIDATA,3DDATA,MAPS",
		ReadyTimeoutSec: 1,
	}
}

func TestRun_PropagatesExitCode(t *testing.T) {
	dir := t.TempDir()
	l := New(testConfig("/bin/true"), dir, nil)

	code, err := l.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, code)

	_, err = os.Stat(filepath.Join(dir, "launcher.lock"))
	assert.True(t, os.IsNotExist(err), "lock not released")
}

func TestRun_NonZeroExit(t *testing.T) {
	l := New(testConfig("/bin/false"), t.TempDir(), nil)

	code, err := l.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, code)
}

func TestRun_SingletonLock(t *testing.T) {
	dir := t.TempDir()
	lockPath := filepath.Join(dir, "launcher.lock")
	require.NoError(t, os.WriteFile(lockPath, nil, 0o644))

	l := New(testConfig("/bin/true"), dir, nil)
	_, err := l.Run(context.Background())
	assert.ErrorIs(t, err, ErrAlreadyRunning)
}

func TestRun_MissingTargetPath(t *testing.T) {
	l := New(config.LaunchConfig{}, t.TempDir(), nil)
	_, err := l.Run(context.Background())
	require.Error(t, err)
}

func TestRun_ReadyHandshake(t *testing.T) {
	dir := t.TempDir()

	// The stand-in target just stays alive long enough for the test
	// goroutine to play the real target's side of the handshake.
	script := filepath.Join(dir, "target.sh")
	require.NoError(t, os.WriteFile(script, []byte("#!/bin/sh\nsleep 0.5\n"), 0o755))

	cfg := testConfig(script)
	cfg.ReadyTimeoutSec = 5
	handshakePath := filepath.Join(dir, "launcher.sock")

	done := make(chan string, 1)
	go func() {
		deadline := time.Now().Add(3 * time.Second)
		for {
			conn, err := net.Dial("unix", handshakePath)
			if err != nil {
				if time.Now().After(deadline) {
					done <- ""
					return
				}
				time.Sleep(5 * time.Millisecond)
				continue
			}
			defer conn.Close()
			if _, err := conn.Write([]byte{'R'}); err != nil {
				done <- ""
				return
			}
			line, _ := bufio.NewReader(conn).ReadString('\n')
			done <- line
			return
		}
	}()

	l := New(cfg, dir, nil)
	code, err := l.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, code)
	assert.Equal(t, "3\n", <-done)
}
