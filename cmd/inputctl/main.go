// inputctl is the controller CLI: it submits synthetic input commands
// to the interception shim over the shared command channel and waits
// for the target's own poll cadence to carry them out.
//
//	inputctl click <x> <y>     Move the cursor to (x, y) and click
//	inputctl move <x> <y>      Move the cursor to (x, y)
//	inputctl key <code>        Press and release a key code
//	inputctl status            Check whether a shim is attached
//	inputctl run <file>        Execute a scenario file
//	inputctl history [n]       List journaled submissions
//
// Exit codes: 0 success, 1 malformed arguments, 2 channel cannot be
// opened or shim not attached, 3 command timed out. Status exits 0 when
// attached and 1 when not.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"frameinject/internal/config"
	"frameinject/internal/control"
	"frameinject/internal/gesture"
	"frameinject/internal/journal"
	"frameinject/internal/logging"
	"frameinject/internal/script"
)

// Exit codes. Scripted callers disambiguate failure classes by code,
// not by parsing output.
const (
	exitOK      = 0
	exitUsage   = 1
	exitChannel = 2
	exitTimeout = 3
)

var (
	configPath = flag.String("config", "", "path to config file")
	waitAttach = flag.Bool("wait", false, "wait for a shim to attach before submitting")
	timeout    = flag.Duration("timeout", 0, "override the command timeout")
)

func main() {
	flag.Usage = usage
	flag.Parse()
	if flag.NArg() < 1 {
		usage()
		os.Exit(exitUsage)
	}
	os.Exit(run(flag.Arg(0), flag.Args()[1:]))
}

func run(cmd string, args []string) int {
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		return exitUsage
	}
	log, closeLog, err := logging.New(cfg.Logging, "inputctl")
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		return exitUsage
	}
	defer closeLog.Close()

	app := &app{cfg: cfg, log: log}

	switch cmd {
	case "click", "move":
		if len(args) != 2 {
			fmt.Fprintf(os.Stderr, "Usage: inputctl %s <x> <y>\n", cmd)
			return exitUsage
		}
		x, errX := strconv.Atoi(args[0])
		y, errY := strconv.Atoi(args[1])
		if errX != nil || errY != nil || x < 0 || y < 0 {
			fmt.Fprintf(os.Stderr, "ERROR: coordinates must be non-negative integers\n")
			return exitUsage
		}
		kind := gesture.KindClick
		if cmd == "move" {
			kind = gesture.KindMove
		}
		return app.submit(gesture.Command{Kind: kind, X: int32(x), Y: int32(y)})

	case "key":
		if len(args) != 1 {
			fmt.Fprintln(os.Stderr, "Usage: inputctl key <code>")
			return exitUsage
		}
		code, err := strconv.Atoi(args[0])
		if err != nil || code < 0 || code > 255 {
			fmt.Fprintln(os.Stderr, "ERROR: key code must be an integer in 0..255")
			return exitUsage
		}
		return app.submit(gesture.Command{Kind: gesture.KindKeypress, Key: int32(code)})

	case "status":
		return app.status()

	case "run":
		if len(args) != 1 {
			fmt.Fprintln(os.Stderr, "Usage: inputctl run <scenario.json>")
			return exitUsage
		}
		return app.runScenario(args[0])

	case "history":
		limit := 20
		if len(args) == 1 {
			n, err := strconv.Atoi(args[0])
			if err != nil || n < 1 {
				fmt.Fprintln(os.Stderr, "Usage: inputctl history [n]")
				return exitUsage
			}
			limit = n
		}
		return app.history(limit)

	case "help":
		usage()
		return exitOK

	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		usage()
		return exitUsage
	}
}

type app struct {
	cfg *config.Config
	log *slog.Logger
}

func (a *app) controllerConfig() control.Config {
	cc := control.Config{
		ChannelPath:    a.cfg.Channel.Path,
		PollInterval:   a.cfg.Controller.PollInterval(),
		CommandTimeout: a.cfg.Controller.CommandTimeout(),
		StaleTimeout:   a.cfg.Controller.StaleTimeout(),
	}
	if *timeout > 0 {
		cc.CommandTimeout = *timeout
	}
	return cc
}

// open attaches to the channel, optionally waiting for the shim.
func (a *app) open(ctx context.Context) (*control.Client, error) {
	cc := a.controllerConfig()
	if *waitAttach {
		waitCtx, cancel := context.WithTimeout(ctx, cc.CommandTimeout)
		defer cancel()
		return control.WaitAttach(waitCtx, cc)
	}
	return control.Open(cc)
}

func (a *app) submit(cmd gesture.Command) int {
	ctx := context.Background()
	client, err := a.open(ctx)
	if err != nil {
		if errors.Is(err, control.ErrNotAttached) {
			fmt.Fprintln(os.Stderr, "ERROR: shim did not attach in time")
			return exitChannel
		}
		fmt.Fprintf(os.Stderr, "ERROR: cannot open command channel: %v\n", err)
		fmt.Fprintln(os.Stderr, "Is the target running with the shim loaded?")
		return exitChannel
	}
	defer client.Close()

	fmt.Printf("Sent %s (%d, %d, key %d), waiting...\n", cmd.Kind, cmd.X, cmd.Y, cmd.Key)
	start := time.Now()
	res, err := client.Submit(ctx, cmd)
	a.journalOutcome(cmd, res, time.Since(start), err)
	switch {
	case errors.Is(err, control.ErrNotAttached):
		fmt.Fprintln(os.Stderr, "ERROR: shim not attached")
		return exitChannel
	case errors.Is(err, control.ErrTimeout):
		fmt.Fprintf(os.Stderr, "WARNING: %s timed out: %v\n", cmd.Kind, err)
		return exitTimeout
	case err != nil:
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		return exitChannel
	}
	fmt.Printf("%s complete in %s (cursor %d, %d)\n",
		cmd.Kind, res.Duration.Round(time.Millisecond), res.CursorX, res.CursorY)
	return exitOK
}

func (a *app) status() int {
	client, err := control.Open(a.controllerConfig())
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: cannot open command channel: %v\n", err)
		return exitChannel
	}
	defer client.Close()
	if client.Attached() {
		fmt.Println("Shim attached")
		return exitOK
	}
	fmt.Println("Shim not attached")
	return exitUsage
}

func (a *app) runScenario(path string) int {
	s, err := script.Load(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		return exitUsage
	}
	ctx := context.Background()
	client, err := a.open(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: cannot open command channel: %v\n", err)
		return exitChannel
	}
	defer client.Close()

	runner := &journalingSubmitter{app: a, client: client}
	if err := script.Run(ctx, s, runner, nil); err != nil {
		if errors.Is(err, control.ErrTimeout) {
			fmt.Fprintf(os.Stderr, "WARNING: scenario timed out: %v\n", err)
			return exitTimeout
		}
		fmt.Fprintf(os.Stderr, "ERROR: scenario failed: %v\n", err)
		return exitChannel
	}
	fmt.Printf("Scenario complete (%d steps)\n", len(s.Steps))
	return exitOK
}

func (a *app) history(limit int) int {
	if !a.cfg.Journal.Enabled {
		fmt.Fprintln(os.Stderr, "ERROR: journal disabled in config")
		return exitUsage
	}
	j, err := journal.Open(a.cfg.Journal.Path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		return exitUsage
	}
	defer j.Close()
	entries, err := j.List(limit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		return exitUsage
	}
	if len(entries) == 0 {
		fmt.Println("No submissions recorded")
		return exitOK
	}
	for _, e := range entries {
		fmt.Printf("%s  %-5s  (%4d,%4d) key=%3d  %-12s  %s\n",
			e.SubmittedAt.Format(time.DateTime), e.Kind,
			e.TargetX, e.TargetY, e.KeyCode, e.Outcome, e.Duration)
	}
	return exitOK
}

// journalOutcome best-effort records a submission; journal failures are
// logged, never surfaced as command failures.
func (a *app) journalOutcome(cmd gesture.Command, res control.Result, d time.Duration, submitErr error) {
	if !a.cfg.Journal.Enabled {
		return
	}
	outcome := journal.OutcomeDone
	switch {
	case errors.Is(submitErr, control.ErrTimeout):
		outcome = journal.OutcomeTimeout
	case errors.Is(submitErr, control.ErrNotAttached):
		outcome = journal.OutcomeNotAttached
	case submitErr != nil:
		outcome = journal.OutcomeError
	}
	j, err := journal.Open(a.cfg.Journal.Path)
	if err != nil {
		a.log.Warn("journal unavailable", "error", err)
		return
	}
	defer j.Close()
	err = j.Record(journal.Entry{
		Kind:    cmd.Kind.String(),
		TargetX: int(cmd.X), TargetY: int(cmd.Y), KeyCode: int(cmd.Key),
		Outcome: outcome, Duration: d,
		CursorX: int(res.CursorX), CursorY: int(res.CursorY),
	})
	if err != nil {
		a.log.Warn("journal record failed", "error", err)
	}
}

// journalingSubmitter adapts the controller client for scenario runs so
// every step lands in the journal too.
type journalingSubmitter struct {
	app    *app
	client *control.Client
}

func (s *journalingSubmitter) Submit(ctx context.Context, cmd gesture.Command) error {
	fmt.Printf("Sent %s (%d, %d, key %d), waiting...\n", cmd.Kind, cmd.X, cmd.Y, cmd.Key)
	start := time.Now()
	res, err := s.client.Submit(ctx, cmd)
	s.app.journalOutcome(cmd, res, time.Since(start), err)
	if err == nil {
		fmt.Printf("%s complete in %s\n", cmd.Kind, res.Duration.Round(time.Millisecond))
	}
	return err
}

func usage() {
	fmt.Fprintln(os.Stderr, `inputctl - controller for the frameinject interception shim

Usage: inputctl [options] <command> [args]

Commands:
  click <x> <y>   Move the cursor to (x, y) and click
  move <x> <y>    Move the cursor to (x, y) without clicking
  key <code>      Press and release a key code (0-255)
  status          Exit 0 if a shim is attached, 1 if not
  run <file>      Execute a scenario file (JSON)
  history [n]     List the last n journaled submissions (default 20)
  help            Show this help

Options:
  -config <path>  Path to config file (default: ~/.frameinject/config.toml)
  -wait           Wait for a shim to attach before submitting
  -timeout <d>    Override the command timeout (e.g. 30s)

Exit codes: 0 success, 1 bad arguments, 2 channel unavailable, 3 timeout.`)
}
