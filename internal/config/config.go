// Package config handles configuration loading, validation, and
// defaults for frameinject.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
)

// Version is the current configuration schema version.
const Version = 1

// Config holds the complete tool configuration, shared by the
// controller CLI, the shim, and the peripheral utilities.
type Config struct {
	// Version is the configuration schema version.
	Version int `toml:"version"`

	// Channel configuration for the shared command channel.
	Channel ChannelConfig `toml:"channel"`

	// Controller configuration for submission pacing and timeouts.
	Controller ControllerConfig `toml:"controller"`

	// Gesture configuration for the injection state machine.
	Gesture GestureConfig `toml:"gesture"`

	// Logging configuration.
	Logging LoggingConfig `toml:"logging"`

	// Journal configuration for the submission journal.
	Journal JournalConfig `toml:"journal"`

	// Launch configuration for the startup-handshake utility.
	Launch LaunchConfig `toml:"launch"`

	// Fallback configuration for the direct-injection utility.
	Fallback FallbackConfig `toml:"fallback"`
}

// ChannelConfig holds command-channel configuration.
type ChannelConfig struct {
	// Path is the mapping path. Empty means the well-known default for
	// the platform. Both the shim and the controller must resolve the
	// same path.
	Path string `toml:"path"`
}

// ControllerConfig holds controller pacing configuration.
type ControllerConfig struct {
	// PollIntervalMs is the completion-poll interval in milliseconds.
	// The default of 16 matches one frame at 60 cycles/second.
	PollIntervalMs int `toml:"poll_interval_ms"`

	// CommandTimeoutSec bounds the wait for a submitted command.
	CommandTimeoutSec int `toml:"command_timeout_sec"`

	// StaleTimeoutSec bounds the wait for a command left in flight by
	// an earlier caller.
	StaleTimeoutSec int `toml:"stale_timeout_sec"`
}

// GestureConfig holds state-machine configuration.
type GestureConfig struct {
	// HoldPolls is the number of extra polls the click button stays
	// held after the button-down poll. Raising it survives targets
	// that debounce more aggressively; the phase ordering itself is
	// fixed.
	HoldPolls int `toml:"hold_polls"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level is the minimum level: "debug", "info", "warn", "error".
	Level string `toml:"level"`

	// Format is "text" or "json".
	Format string `toml:"format"`

	// Output is "stderr", "stdout", or "file".
	Output string `toml:"output"`

	// FilePath is the log file path when Output is "file". The shim
	// always logs to a file: the target owns stdout.
	FilePath string `toml:"file_path"`
}

// JournalConfig holds submission-journal configuration.
type JournalConfig struct {
	// Enabled turns journal recording on.
	Enabled bool `toml:"enabled"`

	// Path is the journal database path.
	Path string `toml:"path"`
}

// LaunchConfig holds startup-handshake configuration.
type LaunchConfig struct {
	// TargetPath is the target executable.
	TargetPath string `toml:"target_path"`

	// WorkDir is the working directory the target expects.
	WorkDir string `toml:"work_dir"`

	// AssetList is the payload string handed over during the
	// handshake.
	AssetList string `toml:"asset_list"`

	// ReadyTimeoutSec bounds the wait for the target's ready signal.
	ReadyTimeoutSec int `toml:"ready_timeout_sec"`
}

// FallbackConfig holds direct-injection configuration.
type FallbackConfig struct {
	// Device is the virtual-input device node.
	Device string `toml:"device"`
}

// DataDir returns the per-user data directory, creating nothing.
func DataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".frameinject"
	}
	return filepath.Join(home, ".frameinject")
}

// DefaultPath returns the default config file path.
func DefaultPath() string {
	return filepath.Join(DataDir(), "config.toml")
}

// Default returns a configuration with every field at its default.
func Default() *Config {
	return &Config{
		Version: Version,
		Controller: ControllerConfig{
			PollIntervalMs:    16,
			CommandTimeoutSec: 10,
			StaleTimeoutSec:   5,
		},
		Gesture: GestureConfig{
			HoldPolls: 1,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
		Journal: JournalConfig{
			Enabled: true,
			Path:    filepath.Join(DataDir(), "journal.db"),
		},
		Launch: LaunchConfig{
			AssetList:       "UIDATA,3DDATA,MAPS",
			ReadyTimeoutSec: 300,
		},
		Fallback: FallbackConfig{
			Device: "/dev/uinput",
		},
	}
}

// Load reads the config at path, or the default path when path is
// empty. A missing file yields the defaults; a malformed file is an
// error. Environment overrides apply after the file.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath()
	}
	cfg := Default()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load config %s: %w", path, err)
		}
	}
	cfg.applyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// applyEnvOverrides lets scripted callers steer the two most commonly
// varied settings without a config file.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("FRAMEINJECT_CHANNEL"); v != "" {
		c.Channel.Path = v
	}
	if v := os.Getenv("FRAMEINJECT_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("FRAMEINJECT_HOLD_POLLS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Gesture.HoldPolls = n
		}
	}
}

// Validate checks field ranges.
func (c *Config) Validate() error {
	if c.Version > Version {
		return fmt.Errorf("config version %d is newer than supported version %d", c.Version, Version)
	}
	if c.Controller.PollIntervalMs <= 0 {
		return errors.New("controller.poll_interval_ms must be positive")
	}
	if c.Controller.CommandTimeoutSec <= 0 {
		return errors.New("controller.command_timeout_sec must be positive")
	}
	if c.Controller.StaleTimeoutSec <= 0 {
		return errors.New("controller.stale_timeout_sec must be positive")
	}
	if c.Gesture.HoldPolls < 1 {
		return errors.New("gesture.hold_polls must be at least 1")
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level %q is not one of debug, info, warn, error", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format %q is not one of text, json", c.Logging.Format)
	}
	switch c.Logging.Output {
	case "stderr", "stdout", "file":
	default:
		return fmt.Errorf("logging.output %q is not one of stderr, stdout, file", c.Logging.Output)
	}
	if c.Logging.Output == "file" && c.Logging.FilePath == "" {
		return errors.New("logging.file_path required when logging.output is file")
	}
	if c.Journal.Enabled && c.Journal.Path == "" {
		return errors.New("journal.path required when journal.enabled")
	}
	if c.Launch.ReadyTimeoutSec < 0 {
		return errors.New("launch.ready_timeout_sec must not be negative")
	}
	return nil
}

// PollInterval returns the controller poll interval as a duration.
func (c *ControllerConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMs) * time.Millisecond
}

// CommandTimeout returns the command timeout as a duration.
func (c *ControllerConfig) CommandTimeout() time.Duration {
	return time.Duration(c.CommandTimeoutSec) * time.Second
}

// StaleTimeout returns the stale-command timeout as a duration.
func (c *ControllerConfig) StaleTimeout() time.Duration {
	return time.Duration(c.StaleTimeoutSec) * time.Second
}

// ReadyTimeout returns the launch ready timeout as a duration.
func (c *LaunchConfig) ReadyTimeout() time.Duration {
	return time.Duration(c.ReadyTimeoutSec) * time.Second
}
