package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jdavidguerrero/ableton-push-clone-processor/internal/color"
	"github.com/jdavidguerrero/ableton-push-clone-processor/internal/config"
	"github.com/jdavidguerrero/ableton-push-clone-processor/internal/gridboard"
	"github.com/jdavidguerrero/ableton-push-clone-processor/internal/link"
	"github.com/jdavidguerrero/ableton-push-clone-processor/internal/logging"
	"github.com/jdavidguerrero/ableton-push-clone-processor/internal/monitor"
	"github.com/jdavidguerrero/ableton-push-clone-processor/internal/telemetry"
	"github.com/jdavidguerrero/ableton-push-clone-processor/internal/transport"
)

// Grid simulator flags
var (
	simPort    string
	simBaud    int
	simMonitor bool
)

var gridSimCmd = &cobra.Command{
	Use:   "grid-sim",
	Short: "Simulate a grid board on a serial port",
	Long: `Answer the bridge on a serial port the way the grid board firmware does.

The simulator replies to handshakes and pings, renders LED frames and keeps
track of key scanning, clip states and the ring window. Pair it with the
bridge through a null-modem cable or a virtual port pair such as the one
socat creates.`,
	Example: `  # Create a virtual pair, then run the simulator on one end
  socat -d -d pty,raw,echo=0 pty,raw,echo=0
  pushclone grid-sim --port /dev/pts/4 --monitor`,
	RunE: runGridSim,
}

func init() {
	gridSimCmd.Flags().StringVar(&simPort, "port", "", "Serial port to simulate the board on (required)")
	gridSimCmd.Flags().IntVar(&simBaud, "baud", transport.DefaultBaud, "Baud rate")
	gridSimCmd.Flags().BoolVar(&simMonitor, "monitor", false, "Show the board LEDs in the terminal monitor")
	gridSimCmd.MarkFlagRequired("port")

	rootCmd.AddCommand(gridSimCmd)
}

func runGridSim(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	level := cfg.LogLevel
	if logLevel != "" {
		level = logLevel
	}
	if simMonitor && !monitor.Available() {
		return fmt.Errorf("--monitor needs an interactive terminal")
	}
	if err := logging.Initialize(level); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	defer logging.Sync()

	s, err := transport.OpenSerial(transport.SerialConfig{Port: simPort, Baud: simBaud})
	if err != nil {
		return err
	}

	var (
		sink telemetry.Sink = telemetry.LogSink{Logger: logging.Named("board")}
		leds color.LEDDriver
		mon  *monitor.Monitor
	)
	if simMonitor {
		mon = monitor.New("grid board " + simPort)
		sink, leds = mon, mon
		logging.SetLogger(mon.Logger(logging.ParseLevel(level)))
	}

	board := gridboard.New(gridboard.Config{
		Timing: link.Timing{
			HandshakeTimeout: cfg.Timing.HandshakeTimeout,
			Backoff:          cfg.Timing.Backoff,
			PingInterval:     cfg.Timing.PingInterval,
			LinkTimeout:      cfg.Timing.LinkTimeout,
		},
		FrameTimeout: cfg.Timing.FrameTimeout,
		Color: color.Config{
			Gamma:        cfg.Color.Gamma,
			WhiteBalance: cfg.Color.WhiteBalance,
			Suppression:  cfg.Color.Suppression,
		},
		Sink: sink,
	}, s, leds)
	defer board.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if mon != nil {
		go func() {
			if err := mon.Run(ctx); err != nil {
				logging.Error("Monitor stopped", zap.Error(err))
			}
			stop()
		}()
	}

	logging.Info("Grid board simulator running", zap.String("port", simPort), zap.Int("baud", simBaud))
	ticker := time.NewTicker(cfg.Timing.Tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			board.Step()
			if err := s.Err(); err != nil {
				return fmt.Errorf("serial port failed: %w", err)
			}
			if mon != nil {
				mon.Update(monitor.Status{
					Links: []link.Snapshot{{Name: gridboard.LinkName, State: board.State()}},
					Ring:  board.Window(),
				})
			}
		}
	}
}
