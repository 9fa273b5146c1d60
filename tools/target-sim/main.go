// Command target-sim is a manual testing stand-in for the real target:
// a loop that polls the device-query interface once per simulated
// frame, with the interception shim loaded in front of a synthetic
// all-zero provider.
//
// Run it in one terminal and drive it with inputctl from another:
//
//	go build -o target-sim ./tools/target-sim
//	./target-sim &
//	inputctl click 400 300
//
// It prints every poll on which the shim substituted synthetic data, so
// a click shows up as its full phase sequence, one line per frame.
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"frameinject/internal/config"
	"frameinject/internal/devquery"
	"frameinject/internal/logging"
	"frameinject/internal/shim"
)

// zeroProvider plays the real device-query implementation: every sample
// is all zeroes, every buffer empty, like an untouched pointer and
// keyboard.
type zeroProvider struct{}

type zeroDevice struct{}

func (zeroProvider) CreateDevice(id devquery.DeviceID) (devquery.Device, error) {
	switch id {
	case devquery.SysPointer, devquery.SysKeyboard:
		return zeroDevice{}, nil
	}
	return nil, devquery.ErrUnknownDevice
}

func (zeroDevice) SampleState(buf []byte) error {
	for i := range buf {
		buf[i] = 0
	}
	return nil
}

func (zeroDevice) BufferedEvents(max int) ([]devquery.Event, error) {
	return nil, nil
}

var (
	configPath = flag.String("config", "", "path to config file")
	hz         = flag.Int("hz", 60, "simulated frame rate")
)

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		os.Exit(1)
	}
	log, closeLog, err := logging.New(cfg.Logging, "target-sim")
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		os.Exit(1)
	}
	defer closeLog.Close()

	devquery.Register("synthetic", zeroProvider{})
	s, err := shim.New("synthetic", shim.Options{
		ChannelPath: cfg.Channel.Path,
		HoldPolls:   int32(cfg.Gesture.HoldPolls),
		Logger:      log,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		os.Exit(1)
	}
	defer s.Close()

	pointer, err := s.CreateDevice(devquery.SysPointer)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: create pointer: %v\n", err)
		os.Exit(1)
	}
	keyboard, err := s.CreateDevice(devquery.SysKeyboard)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: create keyboard: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Polling at %d Hz; drive me with inputctl (Ctrl+C to stop)\n", *hz)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	ticker := time.NewTicker(time.Second / time.Duration(*hz))
	defer ticker.Stop()

	pbuf := make([]byte, devquery.PointerStateSize)
	kbuf := make([]byte, devquery.KeyboardStateSize)
	frame := 0
	for {
		select {
		case <-stop:
			fmt.Println("\nStopping")
			return
		case <-ticker.C:
			frame++
			// Buffered query first, then whole-state, the way the real
			// target falls back.
			pointer.BufferedEvents(16)
			if err := pointer.SampleState(pbuf); err == nil {
				var ps devquery.PointerState
				ps.Decode(pbuf)
				if ps.DX != 0 || ps.DY != 0 || ps.Buttons[0] != 0 {
					fmt.Printf("frame %6d  pointer dx=%-6d dy=%-6d btn=%#02x\n",
						frame, ps.DX, ps.DY, ps.Buttons[0])
				}
			}
			if err := keyboard.SampleState(kbuf); err == nil {
				for code, v := range kbuf {
					if v != 0 {
						fmt.Printf("frame %6d  key %d down\n", frame, code)
					}
				}
			}
		}
	}
}
