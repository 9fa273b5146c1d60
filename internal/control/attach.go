package control

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// WaitAttach blocks until a shim creates the command channel and
// publishes readiness, then returns an attached client. It watches the
// channel directory instead of re-running `status` in a polling loop,
// so a scripted caller can start the target and the wait in parallel.
// The context bounds the wait.
func WaitAttach(ctx context.Context, cfg Config) (*Client, error) {
	cfg.fill()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watch channel directory: %w", err)
	}
	defer watcher.Close()

	dir := filepath.Dir(cfg.ChannelPath)
	if err := watcher.Add(dir); err != nil {
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}

	// The shim may have attached before the watch was in place.
	if client, ok := tryAttach(cfg); ok {
		return client, nil
	}

	// The readiness word is flipped through the mapping, which emits no
	// filesystem event, so a slow ticker backs up the watch.
	recheck := time.NewTicker(8 * cfg.PollInterval)
	defer recheck.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %v", ErrNotAttached, ctx.Err())
		case <-recheck.C:
			if client, ok := tryAttach(cfg); ok {
				return client, nil
			}
		case event, ok := <-watcher.Events:
			if !ok {
				return nil, ErrNotAttached
			}
			if event.Name != cfg.ChannelPath {
				continue
			}
			if !event.Op.Has(fsnotify.Create) && !event.Op.Has(fsnotify.Write) {
				continue
			}
			if client, ok := tryAttach(cfg); ok {
				return client, nil
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil, ErrNotAttached
			}
			cfg.Logger.Warn("channel watch error", "error", err)
		}
	}
}

func tryAttach(cfg Config) (*Client, bool) {
	client, err := Open(cfg)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			cfg.Logger.Debug("channel not yet mappable", "error", err)
		}
		return nil, false
	}
	if !client.Attached() {
		client.Close()
		return nil, false
	}
	return client, true
}
