// Package launch replicates the target's proprietary startup handshake.
// The target refuses to run unless its original launcher performed a
// fixed sequence: a singleton lock, an inheritable payload mapping
// carrying the asset list, a ready signal from the target once its main
// loop is up, and finally the payload handle delivered over the
// handshake path.
//
// The whole sequence is linear and stateless; the only state it leaves
// behind is cleaned up when the target exits.
package launch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"frameinject/internal/config"
)

// ErrAlreadyRunning means another launcher holds the singleton lock.
var ErrAlreadyRunning = errors.New("launcher already running")

// payloadFD is the descriptor number the payload file is inherited at.
// ExtraFiles entry zero lands on descriptor 3.
const payloadFD = 3

// Environment variables the target (or its adapter) reads.
const (
	envPayloadFD = "FRAMEINJECT_PAYLOAD_FD"
	envHandshake = "FRAMEINJECT_HANDSHAKE"
)

// Launcher runs one launch sequence.
type Launcher struct {
	cfg config.LaunchConfig
	log *slog.Logger

	runDir string
}

// New builds a launcher. runDir holds the lock, payload, and handshake
// files; empty means the data directory.
func New(cfg config.LaunchConfig, runDir string, log *slog.Logger) *Launcher {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	if runDir == "" {
		runDir = config.DataDir()
	}
	return &Launcher{cfg: cfg, log: log, runDir: runDir}
}

// Run performs the handshake and waits for the target to exit,
// returning the target's exit code.
func (l *Launcher) Run(ctx context.Context) (int, error) {
	if l.cfg.TargetPath == "" {
		return 0, errors.New("launch.target_path not configured")
	}
	if err := os.MkdirAll(l.runDir, 0o755); err != nil {
		return 0, fmt.Errorf("create run directory: %w", err)
	}

	// Singleton lock: the target checks for a running launcher.
	lockPath := filepath.Join(l.runDir, "launcher.lock")
	lock, err := os.OpenFile(lockPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return 0, ErrAlreadyRunning
		}
		return 0, fmt.Errorf("acquire launcher lock: %w", err)
	}
	lock.Close()
	defer os.Remove(lockPath)

	// Inheritable payload carrying the asset list.
	payloadPath := filepath.Join(l.runDir, "launcher.payload")
	if err := os.WriteFile(payloadPath, []byte(l.cfg.AssetList), 0o644); err != nil {
		return 0, fmt.Errorf("write payload: %w", err)
	}
	payload, err := os.Open(payloadPath)
	if err != nil {
		return 0, fmt.Errorf("open payload: %w", err)
	}
	defer payload.Close()
	defer os.Remove(payloadPath)

	// Handshake listener the target signals readiness on.
	handshakePath := filepath.Join(l.runDir, "launcher.sock")
	os.Remove(handshakePath)
	listener, err := net.Listen("unix", handshakePath)
	if err != nil {
		return 0, fmt.Errorf("listen on handshake socket: %w", err)
	}
	defer listener.Close()
	defer os.Remove(handshakePath)

	cmd := exec.CommandContext(ctx, l.cfg.TargetPath)
	cmd.Dir = l.cfg.WorkDir
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.ExtraFiles = []*os.File{payload}
	cmd.Env = append(os.Environ(),
		fmt.Sprintf("%s=%d", envPayloadFD, payloadFD),
		fmt.Sprintf("%s=%s", envHandshake, handshakePath),
	)
	if err := cmd.Start(); err != nil {
		return 0, fmt.Errorf("start target: %w", err)
	}
	l.log.Info("target started", "path", l.cfg.TargetPath, "pid", cmd.Process.Pid)

	// Wait for the ready signal. A timeout is logged and tolerated,
	// since some target builds never signal.
	l.awaitReady(ctx, listener)

	err = cmd.Wait()
	code := cmd.ProcessState.ExitCode()
	l.log.Info("target exited", "code", code)
	if err != nil && code < 0 {
		return 0, fmt.Errorf("wait for target: %w", err)
	}
	return code, nil
}

// awaitReady accepts one handshake connection, reads the ready byte,
// and answers with the payload descriptor number.
func (l *Launcher) awaitReady(ctx context.Context, listener net.Listener) {
	timeout := l.cfg.ReadyTimeout()
	if timeout <= 0 {
		timeout = 300 * time.Second
	}
	type deadliner interface{ SetDeadline(time.Time) error }
	if d, ok := listener.(deadliner); ok {
		d.SetDeadline(time.Now().Add(timeout))
	}

	conn, err := listener.Accept()
	if err != nil {
		l.log.Warn("target never signaled ready, continuing", "error", err)
		return
	}
	defer conn.Close()

	buf := make([]byte, 1)
	conn.SetReadDeadline(time.Now().Add(timeout))
	if _, err := conn.Read(buf); err != nil {
		l.log.Warn("ready signal unreadable, continuing", "error", err)
		return
	}
	l.log.Info("target signaled ready")

	if _, err := fmt.Fprintf(conn, "%d\n", payloadFD); err != nil {
		l.log.Warn("payload handoff failed", "error", err)
		return
	}
	l.log.Info("payload descriptor delivered", "fd", payloadFD)
}
