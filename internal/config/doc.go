// Package config loads and saves the bridge configuration.
//
// The configuration is a YAML file holding the serial, GUI and MIDI port
// selection, link timing, fader tuning and LED color correction. Every field
// has a default, so a missing file or a partial file is valid.
//
// # Configuration File Location
//
// The configuration file is stored in platform-appropriate locations:
//   - Linux: $XDG_CONFIG_HOME/pushclone/config.yaml or $HOME/.config/pushclone/config.yaml
//   - macOS: $HOME/.config/pushclone/config.yaml
//   - Windows: %LOCALAPPDATA%\pushclone\config.yaml
//
// # Usage Example
//
//	cfg, err := config.Load("")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	cfg.Grid.Port = "/dev/ttyACM0"
//	if err := cfg.Save(""); err != nil {
//	    log.Fatal(err)
//	}
//
// Command-line flags override file values; see cmd/pushclone.
package config
