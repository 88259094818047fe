package config

import (
	"errors"
	"fmt"
	"time"
)

// CurrentVersion is the only configuration file version understood.
const CurrentVersion = 1

// GUI link modes
const (
	GUIModeWebSocket = "websocket"
	GUIModeSerial    = "serial"
	GUIModeOff       = "off"
)

// ErrInvalid is wrapped by every validation error.
var ErrInvalid = errors.New("invalid configuration")

// Config is the whole configuration file.
type Config struct {
	Version  int          `yaml:"version"`
	LogLevel string       `yaml:"log_level,omitempty"` // debug, info, warn, error; empty is silent
	Grid     GridConfig   `yaml:"grid"`
	GUI      GUIConfig    `yaml:"gui"`
	DAW      DAWConfig    `yaml:"daw"`
	Timing   TimingConfig `yaml:"timing"`
	Faders   FaderConfig  `yaml:"faders"`
	Color    ColorConfig  `yaml:"color"`
}

// GridConfig selects the grid board serial port.
type GridConfig struct {
	Enabled bool   `yaml:"enabled"`
	Port    string `yaml:"port"` // e.g. /dev/ttyACM0 or COM4
	Baud    int    `yaml:"baud"`
}

// GUIConfig selects how the desktop GUI reaches the bridge.
type GUIConfig struct {
	Mode      string `yaml:"mode"`                // websocket, serial or off
	Listen    string `yaml:"listen"`              // WebSocket listen address
	Path      string `yaml:"path"`                // WebSocket path
	CertFile  string `yaml:"cert_file,omitempty"` // Optional TLS certificate
	KeyFile   string `yaml:"key_file,omitempty"`  // Optional TLS key
	Port      string `yaml:"port,omitempty"`      // Serial port in serial mode
	Baud      int    `yaml:"baud,omitempty"`
	Advertise bool   `yaml:"advertise"` // Register the endpoint over mDNS
	Instance  string `yaml:"instance,omitempty"`
	Required  bool   `yaml:"required"` // DAW handshake also waits for the GUI
}

// DAWConfig selects the MIDI ports. Names match by substring.
type DAWConfig struct {
	In  string `yaml:"in"`
	Out string `yaml:"out"`
}

// TimingConfig holds link timing and the tick period.
type TimingConfig struct {
	HandshakeTimeout time.Duration `yaml:"handshake_timeout"`
	Backoff          time.Duration `yaml:"backoff"`
	PingInterval     time.Duration `yaml:"ping_interval"`
	LinkTimeout      time.Duration `yaml:"link_timeout"`
	FrameTimeout     time.Duration `yaml:"frame_timeout"` // Partial frames older than this are dropped
	Tick             time.Duration `yaml:"tick"`
}

// FaderConfig tunes the pickup engine.
type FaderConfig struct {
	Count     int `yaml:"count"`
	Tolerance int `yaml:"tolerance"`
	Threshold int `yaml:"threshold"`
}

// ColorConfig tunes LED color correction.
type ColorConfig struct {
	Gamma        float64       `yaml:"gamma"`
	WhiteBalance [3]float64    `yaml:"white_balance,flow"`
	Suppression  time.Duration `yaml:"suppression"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		Version: CurrentVersion,
		Grid: GridConfig{
			Enabled: true,
			Baud:    1000000,
		},
		GUI: GUIConfig{
			Mode:      GUIModeWebSocket,
			Listen:    ":8765",
			Path:      "/link",
			Baud:      1000000,
			Advertise: true,
			Instance:  "pushclone",
		},
		DAW: DAWConfig{
			In:  "Push Clone",
			Out: "Push Clone",
		},
		Timing: TimingConfig{
			HandshakeTimeout: 1 * time.Second,
			Backoff:          1500 * time.Millisecond,
			PingInterval:     30 * time.Second,
			LinkTimeout:      90 * time.Second,
			FrameTimeout:     50 * time.Millisecond,
			Tick:             5 * time.Millisecond,
		},
		Faders: FaderConfig{
			Count:     4,
			Tolerance: 2,
			Threshold: 3,
		},
		Color: ColorConfig{
			Gamma:        2.2,
			WhiteBalance: [3]float64{1.00, 0.92, 1.00},
			Suppression:  100 * time.Millisecond,
		},
	}
}

// Validate rejects values the bridge cannot run with.
func (c *Config) Validate() error {
	if c.Version != CurrentVersion {
		return fmt.Errorf("unsupported config version %d (expected %d): %w", c.Version, CurrentVersion, ErrInvalid)
	}
	if c.Grid.Enabled && c.Grid.Baud <= 0 {
		return fmt.Errorf("grid.baud must be positive: %w", ErrInvalid)
	}

	switch c.GUI.Mode {
	case GUIModeWebSocket:
		if c.GUI.Listen == "" {
			return fmt.Errorf("gui.listen is required in websocket mode: %w", ErrInvalid)
		}
		if (c.GUI.CertFile == "") != (c.GUI.KeyFile == "") {
			return fmt.Errorf("gui.cert_file and gui.key_file must be set together: %w", ErrInvalid)
		}
	case GUIModeSerial:
		if c.GUI.Baud <= 0 {
			return fmt.Errorf("gui.baud must be positive: %w", ErrInvalid)
		}
	case GUIModeOff:
		if c.GUI.Required {
			return fmt.Errorf("gui.required cannot be set with gui.mode off: %w", ErrInvalid)
		}
	default:
		return fmt.Errorf("gui.mode %q (want websocket, serial or off): %w", c.GUI.Mode, ErrInvalid)
	}

	t := c.Timing
	for name, d := range map[string]time.Duration{
		"handshake_timeout": t.HandshakeTimeout,
		"backoff":           t.Backoff,
		"ping_interval":     t.PingInterval,
		"link_timeout":      t.LinkTimeout,
		"frame_timeout":     t.FrameTimeout,
		"tick":              t.Tick,
	} {
		if d <= 0 {
			return fmt.Errorf("timing.%s must be positive: %w", name, ErrInvalid)
		}
	}
	if t.LinkTimeout <= t.PingInterval {
		return fmt.Errorf("timing.link_timeout %s must exceed ping_interval %s: %w", t.LinkTimeout, t.PingInterval, ErrInvalid)
	}

	if c.Faders.Count < 1 || c.Faders.Count > 8 {
		return fmt.Errorf("faders.count %d outside 1..8: %w", c.Faders.Count, ErrInvalid)
	}
	if c.Faders.Tolerance < 0 || c.Faders.Threshold < 0 {
		return fmt.Errorf("faders.tolerance and faders.threshold must not be negative: %w", ErrInvalid)
	}

	if c.Color.Gamma <= 0 || c.Color.Gamma > 5 {
		return fmt.Errorf("color.gamma %.2f outside (0, 5]: %w", c.Color.Gamma, ErrInvalid)
	}
	for i, v := range c.Color.WhiteBalance {
		if v <= 0 || v > 1 {
			return fmt.Errorf("color.white_balance[%d] %.2f outside (0, 1]: %w", i, v, ErrInvalid)
		}
	}
	if c.Color.Suppression < 0 {
		return fmt.Errorf("color.suppression must not be negative: %w", ErrInvalid)
	}
	return nil
}
