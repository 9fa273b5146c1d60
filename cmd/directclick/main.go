// directclick injects a pointer move and click through the host's
// ordinary virtual-input plumbing, bypassing the interception shim
// entirely. It is the fallback for targets running without the shim;
// against a target that samples its input exclusively it will usually
// be ignored, which is the whole reason the shim exists.
//
//	directclick <x> <y>          Move to (x, y) and click
//	directclick -move <x> <y>    Move to (x, y) only
//	directclick -key <code>      Press and release a key code
//
// Exit codes: 0 success, 1 malformed arguments, 2 direct injection
// unavailable on this host.
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"

	"frameinject/internal/config"
	"frameinject/internal/fallback"
)

var (
	configPath = flag.String("config", "", "path to config file")
	moveOnly   = flag.Bool("move", false, "move without clicking")
	keyCode    = flag.Int("key", -1, "press a key code instead of clicking")
)

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		os.Exit(1)
	}

	inj, err := fallback.Open(cfg.Fallback.Device)
	if err != nil {
		if errors.Is(err, fallback.ErrUnavailable) {
			fmt.Fprintf(os.Stderr, "ERROR: direct injection unavailable: %v\n", err)
			os.Exit(2)
		}
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		os.Exit(2)
	}
	defer inj.Close()

	if *keyCode >= 0 {
		if *keyCode > 255 {
			fmt.Fprintln(os.Stderr, "ERROR: key code must be in 0..255")
			os.Exit(1)
		}
		if err := fallback.PressKey(inj, uint16(*keyCode)); err != nil {
			fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
			os.Exit(2)
		}
		fmt.Printf("Key %d pressed\n", *keyCode)
		return
	}

	if flag.NArg() != 2 {
		fmt.Fprintln(os.Stderr, "Usage: directclick [-move] <x> <y>")
		os.Exit(1)
	}
	x, errX := strconv.Atoi(flag.Arg(0))
	y, errY := strconv.Atoi(flag.Arg(1))
	if errX != nil || errY != nil || x < 0 || y < 0 {
		fmt.Fprintln(os.Stderr, "ERROR: coordinates must be non-negative integers")
		os.Exit(1)
	}

	if *moveOnly {
		err = fallback.Move(inj, int32(x), int32(y))
	} else {
		err = fallback.Click(inj, int32(x), int32(y))
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		os.Exit(2)
	}
	if *moveOnly {
		fmt.Printf("Moved to (%d, %d)\n", x, y)
	} else {
		fmt.Printf("Clicked at (%d, %d)\n", x, y)
	}
}
