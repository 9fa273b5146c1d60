// Package control implements the controller side of the command
// channel: submit one command, then poll for completion at frame
// cadence until the shim marks it done or a deadline passes.
//
// The controller owns the command payload and the commit; the shim owns
// phase, cursor estimate, and completion. A timed-out command is
// reported but never force-reset: the shim may still be mid-sequence,
// and only the shim may safely retire a command.
package control

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"frameinject/internal/channel"
	"frameinject/internal/gesture"
)

// Error classes, distinguished so the CLI can map them to exit codes.
var (
	// ErrNotAttached means the channel exists but no shim has published
	// readiness, or the channel could not be found at all.
	ErrNotAttached = errors.New("shim not attached")

	// ErrTimeout means a command (ours or a stale predecessor) did not
	// complete within its bound. Channel state is left untouched.
	ErrTimeout = errors.New("command timed out")
)

// Default pacing. PollInterval matches one frame at 60 cycles/second.
const (
	DefaultPollInterval   = 16 * time.Millisecond
	DefaultCommandTimeout = 10 * time.Second
	DefaultStaleTimeout   = 5 * time.Second
)

// Config configures a controller client.
type Config struct {
	// ChannelPath is the command-channel mapping path. Empty means the
	// well-known default.
	ChannelPath string

	// PollInterval is the completion-poll interval.
	PollInterval time.Duration

	// CommandTimeout bounds the wait for a command this client
	// submitted.
	CommandTimeout time.Duration

	// StaleTimeout bounds the wait for a command some earlier caller
	// left in flight.
	StaleTimeout time.Duration

	// Logger receives controller diagnostics; nil discards.
	Logger *slog.Logger
}

func (c *Config) fill() {
	if c.ChannelPath == "" {
		c.ChannelPath = channel.DefaultPath()
	}
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.CommandTimeout <= 0 {
		c.CommandTimeout = DefaultCommandTimeout
	}
	if c.StaleTimeout <= 0 {
		c.StaleTimeout = DefaultStaleTimeout
	}
	if c.Logger == nil {
		c.Logger = slog.New(slog.DiscardHandler)
	}
}

// Result reports what a completed submission looked like on the wire.
type Result struct {
	// Duration is the wall time from commit to observed completion.
	Duration time.Duration

	// CursorX, CursorY are the shim's final cursor estimate.
	CursorX, CursorY int32
}

// Client is one controller attachment to the command channel.
type Client struct {
	cfg Config
	ch  *channel.Channel
	log *slog.Logger
}

// Open attaches to the command channel. Failure to open is the "channel
// cannot be opened" error class: no shim has ever created it, or the
// mapping is unreachable.
func Open(cfg Config) (*Client, error) {
	cfg.fill()
	ch, err := channel.Open(cfg.ChannelPath)
	if err != nil {
		return nil, err
	}
	return &Client{cfg: cfg, ch: ch, log: cfg.Logger}, nil
}

// Close detaches from the channel.
func (c *Client) Close() error { return c.ch.Close() }

// Attached reports whether a shim has published readiness. It only
// reads the channel, never mutates it.
func (c *Client) Attached() bool { return c.ch.Ready() }

// Cursor returns the shim's last injected-cursor estimate.
func (c *Client) Cursor() (x, y int32) { return c.ch.Cursor() }

// Submit commits one command and blocks until the shim marks it done or
// a deadline passes. Submissions are serialized against whatever is
// already in flight: the channel holds at most one outstanding command,
// so a stale predecessor is waited out (bounded) before the commit.
func (c *Client) Submit(ctx context.Context, cmd gesture.Command) (Result, error) {
	if !c.Attached() {
		return Result{}, ErrNotAttached
	}

	if c.ch.Kind() != gesture.KindNone {
		c.log.Info("waiting out in-flight command", "stale_timeout", c.cfg.StaleTimeout)
		if err := c.waitDone(ctx, c.cfg.StaleTimeout); err != nil {
			return Result{}, fmt.Errorf("previous command: %w", err)
		}
	}

	start := time.Now()
	c.ch.Commit(cmd)
	c.log.Info("command committed",
		"kind", cmd.Kind.String(), "x", cmd.X, "y", cmd.Y, "key", cmd.Key)

	if err := c.waitDone(ctx, c.cfg.CommandTimeout); err != nil {
		return Result{}, err
	}
	x, y := c.ch.Cursor()
	return Result{Duration: time.Since(start), CursorX: x, CursorY: y}, nil
}

// waitDone polls the done flag at frame cadence up to bound. Timeout
// leaves the channel untouched.
func (c *Client) waitDone(ctx context.Context, bound time.Duration) error {
	if c.ch.Done() {
		return nil
	}
	deadline := time.Now().Add(bound)
	ticker := time.NewTicker(c.cfg.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if c.ch.Done() {
				return nil
			}
			if time.Now().After(deadline) {
				return fmt.Errorf("%w after %s", ErrTimeout, bound)
			}
		}
	}
}
