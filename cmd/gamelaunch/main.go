// gamelaunch starts the target through its proprietary startup
// handshake and waits for it to exit, propagating the target's exit
// code. The handshake itself lives in internal/launch.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"frameinject/internal/config"
	"frameinject/internal/launch"
	"frameinject/internal/logging"
)

var (
	configPath = flag.String("config", "", "path to config file")
	targetPath = flag.String("target", "", "override launch.target_path")
)

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		os.Exit(1)
	}
	if *targetPath != "" {
		cfg.Launch.TargetPath = *targetPath
	}

	log, closeLog, err := logging.New(cfg.Logging, "gamelaunch")
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		os.Exit(1)
	}
	defer closeLog.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	code, err := launch.New(cfg.Launch, "", log).Run(ctx)
	if err != nil {
		if errors.Is(err, launch.ErrAlreadyRunning) {
			fmt.Fprintln(os.Stderr, "ERROR: another launcher is already running")
			os.Exit(1)
		}
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Target exited with code %d\n", code)
	os.Exit(code)
}
