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

	"github.com/jdavidguerrero/ableton-push-clone-processor/internal/app"
	"github.com/jdavidguerrero/ableton-push-clone-processor/internal/capture"
	"github.com/jdavidguerrero/ableton-push-clone-processor/internal/color"
	"github.com/jdavidguerrero/ableton-push-clone-processor/internal/config"
	"github.com/jdavidguerrero/ableton-push-clone-processor/internal/discovery"
	"github.com/jdavidguerrero/ableton-push-clone-processor/internal/gridboard"
	"github.com/jdavidguerrero/ableton-push-clone-processor/internal/logging"
	"github.com/jdavidguerrero/ableton-push-clone-processor/internal/monitor"
	"github.com/jdavidguerrero/ableton-push-clone-processor/internal/server"
	"github.com/jdavidguerrero/ableton-push-clone-processor/internal/telemetry"
	"github.com/jdavidguerrero/ableton-push-clone-processor/internal/transport"
	"github.com/jdavidguerrero/ableton-push-clone-processor/internal/version"
)

// Run command flags
var (
	gridPort    string
	gridBaud    int
	guiMode     string
	guiListen   string
	guiPort     string
	dawIn       string
	dawOut      string
	simulate    bool
	noAdvertise bool
	useMonitor  bool
	captureDir  string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the bridge",
	Long: `Run the bridge until interrupted.

Flags override values from the configuration file. With --simulate the grid
board is replaced by an in-process simulator, which is useful to exercise
the DAW and GUI links without hardware.

To record every frame on every link for later analysis, pass --capture with
a directory; one JSON-lines file is written per run.`,
	Example: `  # Run with the configuration file
  pushclone run

  # Pick the grid board port and show the monitor
  pushclone run --grid-port /dev/ttyACM0 --monitor

  # No hardware, no GUI, capture traffic
  pushclone run --simulate --gui-mode off --capture ./captures`,
	RunE: runBridge,
}

func init() {
	f := runCmd.Flags()
	f.StringVar(&gridPort, "grid-port", "", "Grid board serial port")
	f.IntVar(&gridBaud, "grid-baud", 0, "Grid board baud rate")
	f.StringVar(&guiMode, "gui-mode", "", "GUI link mode (websocket, serial, off)")
	f.StringVar(&guiListen, "gui-listen", "", "GUI WebSocket listen address")
	f.StringVar(&guiPort, "gui-port", "", "GUI serial port in serial mode")
	f.StringVar(&dawIn, "daw-in", "", "DAW MIDI input port name (substring)")
	f.StringVar(&dawOut, "daw-out", "", "DAW MIDI output port name (substring)")
	f.BoolVar(&simulate, "simulate", false, "Use an in-process grid board simulator")
	f.BoolVar(&noAdvertise, "no-advertise", false, "Do not advertise the GUI endpoint over mDNS")
	f.BoolVar(&useMonitor, "monitor", false, "Show the terminal monitor")
	f.StringVar(&captureDir, "capture", "", "Directory to write frame captures (disabled if not specified)")

	rootCmd.AddCommand(runCmd)
}

// applyRunFlags overlays the flags the user set on cfg.
func applyRunFlags(cmd *cobra.Command, cfg *config.Config) {
	f := cmd.Flags()
	if f.Changed("grid-port") {
		cfg.Grid.Port = gridPort
	}
	if f.Changed("grid-baud") {
		cfg.Grid.Baud = gridBaud
	}
	if simulate {
		cfg.Grid.Enabled = false
	}
	if f.Changed("gui-mode") {
		cfg.GUI.Mode = guiMode
		if guiMode == config.GUIModeOff {
			cfg.GUI.Required = false
		}
	}
	if f.Changed("gui-listen") {
		cfg.GUI.Listen = guiListen
	}
	if f.Changed("gui-port") {
		cfg.GUI.Port = guiPort
	}
	if f.Changed("daw-in") {
		cfg.DAW.In = dawIn
	}
	if f.Changed("daw-out") {
		cfg.DAW.Out = dawOut
	}
	if noAdvertise {
		cfg.GUI.Advertise = false
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
}

func runBridge(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	applyRunFlags(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}

	if useMonitor && !monitor.Available() {
		return fmt.Errorf("--monitor needs an interactive terminal")
	}
	if err := logging.Initialize(cfg.LogLevel); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	defer logging.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		sink telemetry.Sink = telemetry.LogSink{Logger: logging.Named("events")}
		leds color.LEDDriver
		mon  *monitor.Monitor
	)
	if useMonitor {
		mon = monitor.New("pushclone " + version.Short())
		sink = mon
		leds = mon
		logging.SetLogger(mon.Logger(logging.ParseLevel(cfg.LogLevel)))
	}

	var rec *capture.Writer
	if captureDir != "" {
		if rec, err = capture.Open(captureDir); err != nil {
			return err
		}
		defer rec.Close()
		logging.Info("Capturing frames", zap.String("file", rec.Path()))
	}

	tr, cleanup, err := openTransports(ctx, cfg, sink)
	if err != nil {
		return err
	}
	defer cleanup()

	opts := app.Options{Sink: sink, LEDs: leds, Capture: rec}
	if mon != nil {
		opts.Status = mon.Update
	}
	bridge, err := app.New(cfg, tr, opts)
	if err != nil {
		return err
	}

	if mon == nil {
		return bridge.Run(ctx)
	}

	monErr := make(chan error, 1)
	go func() {
		err := mon.Run(ctx)
		// Quitting the monitor stops the bridge.
		stop()
		monErr <- err
	}()
	if err := bridge.Run(ctx); err != nil {
		return err
	}
	return <-monErr
}

// openTransports opens the grid, GUI and DAW carriers named by cfg. The
// returned cleanup releases what Close on the App does not own.
func openTransports(ctx context.Context, cfg *config.Config, sink telemetry.Sink) (app.Transports, func(), error) {
	var (
		tr       app.Transports
		cleanups []func()
	)
	cleanup := func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}
	fail := func(err error) (app.Transports, func(), error) {
		for _, c := range []interface{ Close() error }{tr.Grid, tr.GUI} {
			if c != nil {
				c.Close()
			}
		}
		cleanup()
		return app.Transports{}, nil, err
	}

	if cfg.Grid.Enabled {
		if cfg.Grid.Port == "" {
			return fail(fmt.Errorf("no grid board port configured (set grid.port, --grid-port or --simulate)"))
		}
		s, err := transport.OpenSerial(transport.SerialConfig{Port: cfg.Grid.Port, Baud: cfg.Grid.Baud})
		if err != nil {
			return fail(err)
		}
		tr.Grid = s
	} else {
		bridgeEnd, boardEnd := transport.Pipe(0)
		board := gridboard.New(gridboard.Config{
			Color:        color.Config{Gamma: cfg.Color.Gamma, WhiteBalance: cfg.Color.WhiteBalance, Suppression: cfg.Color.Suppression},
			Sink:         sink,
			FrameTimeout: cfg.Timing.FrameTimeout,
		}, boardEnd, nil)
		go stepBoard(ctx, board, cfg.Timing.Tick)
		tr.Grid = bridgeEnd
		logging.Info("Using simulated grid board")
	}

	switch cfg.GUI.Mode {
	case config.GUIModeWebSocket:
		srv := server.New(server.Config{
			Addr:     cfg.GUI.Listen,
			Path:     cfg.GUI.Path,
			CertPath: cfg.GUI.CertFile,
			KeyPath:  cfg.GUI.KeyFile,
		})
		if err := srv.Start(); err != nil {
			return fail(err)
		}
		tr.GUI = srv
		cleanups = append(cleanups, func() {
			sctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := srv.Shutdown(sctx); err != nil {
				logging.Debug("GUI endpoint shutdown", zap.Error(err))
			}
		})
		if cfg.GUI.Advertise {
			adv, err := discovery.Advertise(cfg.GUI.Instance, srv.Port(), cfg.GUI.Path, version.Short())
			if err != nil {
				logging.Warn("mDNS advertisement failed", zap.Error(err))
			} else {
				cleanups = append(cleanups, adv.Shutdown)
			}
		}
	case config.GUIModeSerial:
		s, err := transport.OpenSerial(transport.SerialConfig{Port: cfg.GUI.Port, Baud: cfg.GUI.Baud})
		if err != nil {
			return fail(err)
		}
		tr.GUI = s
	}

	m, err := transport.OpenMIDI(transport.MIDIConfig{In: cfg.DAW.In, Out: cfg.DAW.Out})
	if err != nil {
		return fail(err)
	}
	tr.DAW = m

	return tr, cleanup, nil
}

// stepBoard drives a simulated board until ctx is done.
func stepBoard(ctx context.Context, b *gridboard.Board, tick time.Duration) {
	ticker := time.NewTicker(tick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			if err := b.Close(); err != nil {
				logging.Debug("Simulated board close", zap.Error(err))
			}
			return
		case <-ticker.C:
			b.Step()
		}
	}
}
